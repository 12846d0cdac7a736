package rpcapi

import (
	"fmt"
	"math/big"
	"time"

	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/store"
)

// txScanDepth bounds how far back chain_getTransaction walks the main
// chain looking for a confirmed transaction when it isn't in the mempool.
// The store keeps no txid index (see DESIGN.md), so a transaction confirmed
// more than this many blocks ago reports NotFound rather than scanning the
// whole chain on every miss.
const txScanDepth = 10_000

// ChainInfoResult is returned by chain_getInfo. Difficulty is the work
// metric 2^256/(target+1) rendered as a decimal string, since the chain
// defines no separate "difficulty 1" reference unit to normalize against.
type ChainInfoResult struct {
	Height        uint64 `json:"height"`
	BestBlockHash string `json:"best_block_hash"`
	Difficulty    string `json:"difficulty"`
	TotalSupply   uint64 `json:"total_supply"`

	Network     string `json:"network"`
	NetworkID   uint32 `json:"network_id"`
	GenesisHash string `json:"genesis_hash"`
	MempoolSize int    `json:"mempool_size"`
}

func (s *Server) handleChainGetInfo() (interface{}, *apiError) {
	genesis, ok, err := s.db.GetGenesisHash()
	if err != nil {
		return nil, errInternal(err.Error())
	}
	if !ok {
		return nil, errUnavailable("chain not yet initialized")
	}
	height := s.mgr.BestHeight()
	difficulty := store.WorkFromTarget(s.mgr.BestHeader().Target)
	return ChainInfoResult{
		Height:        height,
		BestBlockHash: hashHex(s.mgr.BestHash()),
		Difficulty:    difficulty.String(),
		TotalSupply:   totalSupplyAtHeight(height),
		Network:       string(s.params.Network),
		NetworkID:     s.params.NetworkID,
		GenesisHash:   hashHex(genesis),
		MempoolSize:   s.pool.Len(),
	}, nil
}

// totalSupplyAtHeight sums the block subsidy paid at every height from
// genesis through height inclusive. It ignores any value burned by
// undersized coinbases, so it is an upper bound on circulating supply
// rather than an exact ledger total.
func totalSupplyAtHeight(height uint64) uint64 {
	total := new(big.Int)
	halvingInterval := big.NewInt(int64(consensus.SubsidyHalvingInterval))
	remaining := new(big.Int).SetUint64(height + 1)
	subsidy := consensus.InitialSubsidy
	for remaining.Sign() > 0 && subsidy > 0 {
		windowLen := new(big.Int).Set(halvingInterval)
		if windowLen.Cmp(remaining) > 0 {
			windowLen.Set(remaining)
		}
		total.Add(total, new(big.Int).Mul(windowLen, big.NewInt(int64(subsidy))))
		remaining.Sub(remaining, windowLen)
		subsidy /= 2
	}
	if !total.IsUint64() {
		return ^uint64(0)
	}
	return total.Uint64()
}

// BlockHeightResult is returned by chain_getBlockHeight.
type BlockHeightResult struct {
	Height uint64 `json:"height"`
}

func (s *Server) handleChainGetBlockHeight() (interface{}, *apiError) {
	return BlockHeightResult{Height: s.mgr.BestHeight()}, nil
}

func (s *Server) handleChainGetBlockByHeight(req *Request) (interface{}, *apiError) {
	var p HeightParam
	if apiErr := parseParams(req, &p); apiErr != nil {
		return nil, apiErr
	}
	hash, ok, err := s.db.GetHashAtHeight(p.Height)
	if err != nil {
		return nil, errInternal(err.Error())
	}
	if !ok {
		return nil, errNotFound("no block at that height")
	}
	return s.loadBlockDTO(hash, p.Height)
}

func (s *Server) handleChainGetBlockByHash(req *Request) (interface{}, *apiError) {
	var p HashParam
	if apiErr := parseParams(req, &p); apiErr != nil {
		return nil, apiErr
	}
	hash, err := parseHash(p.Hash)
	if err != nil {
		return nil, errInvalid("hash: " + err.Error())
	}
	entry, ok, err := s.db.GetIndexEntry(hash)
	if err != nil {
		return nil, errInternal(err.Error())
	}
	if !ok {
		return nil, errNotFound("unknown block hash")
	}
	return s.loadBlockDTO(hash, entry.Height)
}

func (s *Server) loadBlockDTO(hash consensus.Hash, height uint64) (interface{}, *apiError) {
	raw, ok, err := s.db.GetBlockBody(hash)
	if err != nil {
		return nil, errInternal(err.Error())
	}
	if !ok {
		return nil, errNotFound("block body not stored")
	}
	block, err := consensus.ParseBlockBytes(raw)
	if err != nil {
		return nil, errInternal("corrupt block body: " + err.Error())
	}
	return NewBlockDTO(hash, height, block), nil
}

func (s *Server) handleChainGetTransaction(req *Request) (interface{}, *apiError) {
	var p HashParam
	if apiErr := parseParams(req, &p); apiErr != nil {
		return nil, apiErr
	}
	txid, err := parseHash(p.Hash)
	if err != nil {
		return nil, errInvalid("hash: " + err.Error())
	}

	if entry, ok := s.pool.Get(txid); ok {
		return NewTxDTO(entry.Tx), nil
	}

	best := s.mgr.BestHeight()
	minHeight := uint64(0)
	if best > txScanDepth {
		minHeight = best - txScanDepth
	}
	for h := best; ; h-- {
		hash, ok, err := s.db.GetHashAtHeight(h)
		if err != nil {
			return nil, errInternal(err.Error())
		}
		if ok {
			raw, ok, err := s.db.GetBlockBody(hash)
			if err != nil {
				return nil, errInternal(err.Error())
			}
			if ok {
				block, err := consensus.ParseBlockBytes(raw)
				if err != nil {
					return nil, errInternal("corrupt block body: " + err.Error())
				}
				for _, tx := range block.Txs {
					if consensus.TxID(tx) == txid {
						dto := NewTxDTO(tx)
						dto.Confirmed = true
						dto.Height = h
						return dto, nil
					}
				}
			}
		}
		if h == minHeight {
			break
		}
	}
	return nil, errNotFound(fmt.Sprintf("transaction not found in mempool or the last %d blocks", txScanDepth))
}

// SubmitTxResult is returned by chain_submitTransaction.
type SubmitTxResult struct {
	TxHash   string `json:"tx_hash"`
	Accepted bool   `json:"accepted"`
}

func (s *Server) handleChainSubmitTransaction(req *Request) (interface{}, *apiError) {
	var p SubmitTxParam
	if apiErr := parseParams(req, &p); apiErr != nil {
		return nil, apiErr
	}
	return s.submitTx(p.Transaction)
}

// submitTx decodes, admits, and reports the txid of a submitted
// transaction. It is shared by the JSON-RPC chain_submitTransaction
// method and the REST transaction/send and proof/anchor endpoints, so a
// validation failure is translated into the same Rejected shape no
// matter which transport it arrived over.
func (s *Server) submitTx(dto TxDTO) (interface{}, *apiError) {
	tx, err := dto.ToTransaction()
	if err != nil {
		return nil, errInvalid(err.Error())
	}
	now := uint64(time.Now().Unix())
	if err := s.mgr.SubmitMempoolTx(s.pool, tx, now); err != nil {
		return nil, errRejected(err.Error())
	}
	return SubmitTxResult{TxHash: hashHex(consensus.TxID(tx)), Accepted: true}, nil
}

// BalanceResult is returned by chain_getBalance.
type BalanceResult struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

func (s *Server) handleChainGetBalance(req *Request) (interface{}, *apiError) {
	var p AddressParam
	if apiErr := parseParams(req, &p); apiErr != nil {
		return nil, apiErr
	}
	return s.balanceFor(p.Address)
}

func (s *Server) balanceFor(addrHex string) (interface{}, *apiError) {
	addr, err := parseAddress(addrHex)
	if err != nil {
		return nil, errInvalid("address: " + err.Error())
	}
	var total uint64
	scanErr := s.db.ScanUTXOs(func(op consensus.Outpoint, e consensus.UtxoEntry) bool {
		if owner, ok := ownerAddress(e); ok && owner == addr {
			total += e.Value
		}
		return true
	})
	if scanErr != nil {
		return nil, errInternal(scanErr.Error())
	}
	return BalanceResult{Address: addrHex, Balance: total}, nil
}

func (s *Server) handleChainGetUtxos(req *Request) (interface{}, *apiError) {
	var p AddressParam
	if apiErr := parseParams(req, &p); apiErr != nil {
		return nil, apiErr
	}
	return s.utxosFor(p.Address)
}

// utxosFor returns the bare list of UTXOs owned by addrHex, per
// chain_getUtxos's result shape.
func (s *Server) utxosFor(addrHex string) (interface{}, *apiError) {
	addr, err := parseAddress(addrHex)
	if err != nil {
		return nil, errInvalid("address: " + err.Error())
	}
	out := []UtxoDTO{}
	scanErr := s.db.ScanUTXOs(func(op consensus.Outpoint, e consensus.UtxoEntry) bool {
		if owner, ok := ownerAddress(e); ok && owner == addr {
			out = append(out, NewUtxoDTO(op, e))
		}
		return true
	})
	if scanErr != nil {
		return nil, errInternal(scanErr.Error())
	}
	return out, nil
}
