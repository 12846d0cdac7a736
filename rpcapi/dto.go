package rpcapi

import (
	"encoding/hex"
	"fmt"

	"github.com/photon-chain/node/consensus"
)

func hashHex(h consensus.Hash) string { return hex.EncodeToString(h[:]) }

func parseHash(s string) (consensus.Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return consensus.Hash{}, fmt.Errorf("not valid hex: %w", err)
	}
	if len(b) != 32 {
		return consensus.Hash{}, fmt.Errorf("must decode to 32 bytes, got %d", len(b))
	}
	var h consensus.Hash
	copy(h[:], b)
	return h, nil
}

func parseAddress(s string) ([32]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return [32]byte{}, fmt.Errorf("not valid hex: %w", err)
	}
	if len(b) != 32 {
		return [32]byte{}, fmt.Errorf("must decode to 32 bytes, got %d", len(b))
	}
	var a [32]byte
	copy(a[:], b)
	return a, nil
}

// PqSigDTO is the wire-safe JSON shape of one transaction witness.
type PqSigDTO struct {
	Algorithm       uint8  `json:"algorithm"`
	PublicKey       string `json:"public_key"`
	Signature       string `json:"signature"`
	HybridPublicKey string `json:"hybrid_public_key,omitempty"`
	HybridSignature string `json:"hybrid_signature,omitempty"`
}

// TxOutDTO is the wire-safe JSON shape of one transaction output.
type TxOutDTO struct {
	Value        uint64 `json:"value"`
	CovenantType uint16 `json:"covenant_type"`
	CovenantData string `json:"covenant_data"`
}

// TxInDTO is the wire-safe JSON shape of one transaction input.
type TxInDTO struct {
	PrevTxid string `json:"prev_txid"`
	PrevVout uint32 `json:"prev_vout"`
	Sequence uint32 `json:"sequence"`
}

// TxDTO is the wire-safe JSON shape of a whole transaction, used both to
// accept chain_submitTransaction/REST submissions and to render
// chain_getTransaction results.
type TxDTO struct {
	Txid      string     `json:"txid,omitempty"`
	Version   uint32     `json:"version"`
	TxKind    uint8      `json:"tx_kind"`
	Locktime  uint32     `json:"locktime"`
	Inputs    []TxInDTO  `json:"inputs"`
	Outputs   []TxOutDTO `json:"outputs"`
	Witnesses []PqSigDTO `json:"witnesses"`
	Confirmed bool       `json:"confirmed"`
	Height    uint64     `json:"height,omitempty"`
}

func NewTxDTO(tx consensus.Transaction) TxDTO {
	ins := make([]TxInDTO, len(tx.Inputs))
	for i, in := range tx.Inputs {
		ins[i] = TxInDTO{
			PrevTxid: hashHex(in.PrevOut.Txid),
			PrevVout: in.PrevOut.Vout,
			Sequence: in.Sequence,
		}
	}
	outs := make([]TxOutDTO, len(tx.Outputs))
	for i, out := range tx.Outputs {
		outs[i] = TxOutDTO{
			Value:        out.Value,
			CovenantType: out.CovenantType,
			CovenantData: hex.EncodeToString(out.CovenantData),
		}
	}
	wits := make([]PqSigDTO, len(tx.Witnesses))
	for i, w := range tx.Witnesses {
		wits[i] = PqSigDTO{
			Algorithm:       w.Algorithm,
			PublicKey:       hex.EncodeToString(w.PublicKey),
			Signature:       hex.EncodeToString(w.Signature),
			HybridPublicKey: hex.EncodeToString(w.HybridPublicKey),
			HybridSignature: hex.EncodeToString(w.HybridSignature),
		}
	}
	return TxDTO{
		Txid:      hashHex(consensus.TxID(tx)),
		Version:   tx.Version,
		TxKind:    tx.TxKind,
		Locktime:  tx.Locktime,
		Inputs:    ins,
		Outputs:   outs,
		Witnesses: wits,
	}
}

// ToTransaction decodes a submitted DTO back into consensus.Transaction.
// Every hex field is validated for shape; CheckTxStateless/CheckTxStateful
// still run on the result and remain the source of truth for semantic
// validity.
func (d TxDTO) ToTransaction() (consensus.Transaction, error) {
	ins := make([]consensus.TxIn, len(d.Inputs))
	for i, in := range d.Inputs {
		txid, err := parseHash(in.PrevTxid)
		if err != nil {
			return consensus.Transaction{}, fmt.Errorf("inputs[%d].prev_txid: %w", i, err)
		}
		ins[i] = consensus.TxIn{PrevOut: consensus.Outpoint{Txid: txid, Vout: in.PrevVout}, Sequence: in.Sequence}
	}
	outs := make([]consensus.TxOut, len(d.Outputs))
	for i, out := range d.Outputs {
		data, err := hex.DecodeString(out.CovenantData)
		if err != nil {
			return consensus.Transaction{}, fmt.Errorf("outputs[%d].covenant_data: not valid hex: %w", i, err)
		}
		outs[i] = consensus.TxOut{Value: out.Value, CovenantType: out.CovenantType, CovenantData: data}
	}
	wits := make([]consensus.PqSig, len(d.Witnesses))
	for i, w := range d.Witnesses {
		pub, err := hex.DecodeString(w.PublicKey)
		if err != nil {
			return consensus.Transaction{}, fmt.Errorf("witnesses[%d].public_key: not valid hex: %w", i, err)
		}
		sig, err := hex.DecodeString(w.Signature)
		if err != nil {
			return consensus.Transaction{}, fmt.Errorf("witnesses[%d].signature: not valid hex: %w", i, err)
		}
		hpub, err := hex.DecodeString(w.HybridPublicKey)
		if err != nil {
			return consensus.Transaction{}, fmt.Errorf("witnesses[%d].hybrid_public_key: not valid hex: %w", i, err)
		}
		hsig, err := hex.DecodeString(w.HybridSignature)
		if err != nil {
			return consensus.Transaction{}, fmt.Errorf("witnesses[%d].hybrid_signature: not valid hex: %w", i, err)
		}
		wits[i] = consensus.PqSig{
			Algorithm: w.Algorithm, PublicKey: pub, Signature: sig,
			HybridPublicKey: hpub, HybridSignature: hsig,
		}
	}
	return consensus.Transaction{
		Version: d.Version, TxKind: d.TxKind, Locktime: d.Locktime,
		Inputs: ins, Outputs: outs, Witnesses: wits,
	}, nil
}

// BlockHeaderDTO is the wire-safe JSON shape of a block header.
type BlockHeaderDTO struct {
	Version    uint32 `json:"version"`
	PrevHash   string `json:"prev_hash"`
	MerkleRoot string `json:"merkle_root"`
	Timestamp  uint64 `json:"timestamp"`
	Target     string `json:"target"`
	Nonce      uint64 `json:"nonce"`
}

func NewBlockHeaderDTO(h consensus.BlockHeader) BlockHeaderDTO {
	return BlockHeaderDTO{
		Version:    h.Version,
		PrevHash:   hashHex(h.PrevHash),
		MerkleRoot: hashHex(h.MerkleRoot),
		Timestamp:  h.Timestamp,
		Target:     hashHex(h.Target),
		Nonce:      h.Nonce,
	}
}

// BlockDTO is the wire-safe JSON shape of a full block, returned by
// chain_getBlockByHash and chain_getBlockByHeight.
type BlockDTO struct {
	Hash         string         `json:"hash"`
	Height       uint64         `json:"height"`
	Header       BlockHeaderDTO `json:"header"`
	Transactions []TxDTO        `json:"transactions"`
}

func NewBlockDTO(hash consensus.Hash, height uint64, b consensus.Block) BlockDTO {
	txs := make([]TxDTO, len(b.Txs))
	for i, tx := range b.Txs {
		dto := NewTxDTO(tx)
		dto.Confirmed = true
		dto.Height = height
		txs[i] = dto
	}
	return BlockDTO{
		Hash:         hashHex(hash),
		Height:       height,
		Header:       NewBlockHeaderDTO(b.Header),
		Transactions: txs,
	}
}

// UtxoDTO is the wire-safe JSON shape of one unspent output, returned by
// chain_getUtxos and the REST balance/UTXO endpoints.
type UtxoDTO struct {
	Txid              string `json:"txid"`
	Vout              uint32 `json:"vout"`
	Value             uint64 `json:"value"`
	CovenantType      uint16 `json:"covenant_type"`
	CovenantData      string `json:"covenant_data"`
	CreationHeight    uint64 `json:"creation_height"`
	CreatedByCoinbase bool   `json:"created_by_coinbase"`
}

func NewUtxoDTO(op consensus.Outpoint, e consensus.UtxoEntry) UtxoDTO {
	return UtxoDTO{
		Txid:              hashHex(op.Txid),
		Vout:              op.Vout,
		Value:             e.Value,
		CovenantType:      e.CovenantType,
		CovenantData:      hex.EncodeToString(e.CovenantData),
		CreationHeight:    e.CreationHeight,
		CreatedByCoinbase: e.CreatedByCoinbase,
	}
}

// ownerAddress extracts the 32-byte recipient hash a P2PKH/ContractDeploy
// UTXO's covenant data commits to. Reports ok=false for covenants (e.g.
// ProofAnchor) that carry no recipient.
func ownerAddress(e consensus.UtxoEntry) (addr [32]byte, ok bool) {
	if e.CovenantType != consensus.CovP2PKH && e.CovenantType != consensus.CovContractDeploy {
		return addr, false
	}
	if len(e.CovenantData) < 32 {
		return addr, false
	}
	copy(addr[:], e.CovenantData[:32])
	return addr, true
}
