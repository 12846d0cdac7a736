package rpcapi

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/photon-chain/node/chainmgr"
	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/mempool"
	"github.com/photon-chain/node/store"
)

func newTestServer(t *testing.T) (*Server, *chainmgr.Manager, consensus.Hash) {
	t.Helper()
	params := chainparams.DevnetParams()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	pool := mempool.New(params, params.NetworkID, time.Hour)
	mgr := chainmgr.New(db, pool, params)

	genesis := consensus.BuildGenesisBlock(params, 1_700_000_000)
	if err := mgr.InitGenesis(genesis); err != nil {
		t.Fatalf("init genesis: %v", err)
	}
	genesisHash := consensus.BlockHash(genesis.Header)

	s := New(":0", mgr, db, pool, params, zerolog.Nop())
	return s, mgr, genesisHash
}

func TestHandleChainGetInfo(t *testing.T) {
	s, mgr, genesisHash := newTestServer(t)

	result, apiErr := s.handleChainGetInfo()
	if apiErr != nil {
		t.Fatalf("chain_getInfo: %v", apiErr)
	}
	info := result.(ChainInfoResult)
	if info.Height != 0 {
		t.Fatalf("expected height 0, got %d", info.Height)
	}
	if info.BestBlockHash != hashHex(mgr.BestHash()) {
		t.Fatalf("best block hash mismatch: %s vs %s", info.BestBlockHash, hashHex(mgr.BestHash()))
	}
	if info.GenesisHash != hashHex(genesisHash) {
		t.Fatalf("genesis hash mismatch")
	}
	if info.TotalSupply != consensus.InitialSubsidy {
		t.Fatalf("expected total supply to equal one block subsidy at height 0, got %d", info.TotalSupply)
	}
	if info.Difficulty == "" {
		t.Fatalf("expected a non-empty difficulty string")
	}
}

func TestHandleChainGetBlockByHeightGenesis(t *testing.T) {
	s, _, genesisHash := newTestServer(t)

	req := &Request{Method: "chain_getBlockByHeight", Params: HeightParam{Height: 0}}
	result, apiErr := s.handleChainGetBlockByHeight(req)
	if apiErr != nil {
		t.Fatalf("chain_getBlockByHeight: %v", apiErr)
	}
	block := result.(BlockDTO)
	if block.Hash != hashHex(genesisHash) {
		t.Fatalf("expected genesis hash %s, got %s", hashHex(genesisHash), block.Hash)
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("expected genesis to carry one coinbase tx, got %d", len(block.Transactions))
	}
}

func TestHandleChainGetBlockByHeightUnknown(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := &Request{Method: "chain_getBlockByHeight", Params: HeightParam{Height: 99}}
	_, apiErr := s.handleChainGetBlockByHeight(req)
	if apiErr == nil {
		t.Fatalf("expected NotFound for an unknown height")
	}
	if apiErr.Code != CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %v", apiErr.Code)
	}
}

func TestHandleChainGetBalanceUnfundedAddress(t *testing.T) {
	s, _, _ := newTestServer(t)

	addrHex := hashHex(consensus.Hash{0x42})
	req := &Request{Method: "chain_getBalance", Params: AddressParam{Address: addrHex}}
	result, apiErr := s.handleChainGetBalance(req)
	if apiErr != nil {
		t.Fatalf("chain_getBalance: %v", apiErr)
	}
	bal := result.(BalanceResult)
	if bal.Balance != 0 {
		t.Fatalf("expected zero balance for an unfunded address, got %d", bal.Balance)
	}
}

func TestHandleChainGetBalanceRejectsBadAddress(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := &Request{Method: "chain_getBalance", Params: AddressParam{Address: "not-hex"}}
	_, apiErr := s.handleChainGetBalance(req)
	if apiErr == nil || apiErr.Code != CodeInvalid {
		t.Fatalf("expected CodeInvalid for a malformed address, got %v", apiErr)
	}
}

func TestHandleChainSubmitTransactionRejectsMissingUTXO(t *testing.T) {
	s, _, _ := newTestServer(t)

	txid := consensus.Hash{}
	dto := TxDTO{
		Version: 1,
		Inputs: []TxInDTO{
			{PrevTxid: hashHex(txid), PrevVout: 0, Sequence: 0xffffffff},
		},
		Outputs: []TxOutDTO{
			{Value: 1, CovenantType: consensus.CovP2PKH, CovenantData: hashHex(consensus.Hash{1})},
		},
		Witnesses: []PqSigDTO{
			{Algorithm: uint8(0), PublicKey: hashHex(consensus.Hash{2}), Signature: hashHex(consensus.Hash{3})},
		},
	}
	req := &Request{Method: "chain_submitTransaction", Params: SubmitTxParam{Transaction: dto}}
	_, apiErr := s.handleChainSubmitTransaction(req)
	if apiErr == nil {
		t.Fatalf("expected submission of a transaction spending a nonexistent utxo to be rejected")
	}
	if apiErr.Code != CodeRejected {
		t.Fatalf("expected CodeRejected, got %v", apiErr.Code)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	s, _, _ := newTestServer(t)

	_, apiErr := s.dispatch(&Request{Method: "does_not_exist"})
	if apiErr == nil || apiErr.Code != CodeInvalid {
		t.Fatalf("expected CodeInvalid for an unknown method, got %v", apiErr)
	}
}
