// Package miner assembles block templates and searches the nonce space
// for a header that satisfies proof-of-work: coinbase shape, a
// witness-commitment anchor, merkle root, median-time-past-aware
// timestamp selection, and nonce search spread across N parallel workers
// sharing one atomic cancellation flag.
package miner

import (
	"sort"
	"time"

	"github.com/photon-chain/node/chainmgr"
	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/mempool"
)

// TimeSource returns the current Unix time used for timestamp selection.
// Overridable so tests can drive deterministic clocks.
var TimeSource = func() uint64 { return uint64(time.Now().Unix()) }

// Template is an unsolved candidate block: a header missing only its
// winning nonce, plus the transaction list the header's roots commit to.
type Template struct {
	Header consensus.BlockHeader
	Txs    []consensus.Transaction
}

// BuildTemplate assembles a new candidate block extending mgr's current
// best tip: a coinbase paying subsidy+fees to recipient plus a witness
// commitment anchor, followed by mempool transactions selected by
// descending fee up to maxBlockBytes.
func BuildTemplate(mgr *chainmgr.Manager, pool *mempool.Pool, params chainparams.Params, recipient [32]byte) (Template, error) {
	tip := mgr.BestHeader()
	nextHeight := mgr.BestHeight() + 1
	tipHash := consensus.BlockHash(tip)

	// retargetAncestors is oldest-first, parent-last — the order
	// ExpectedTarget and MedianTimePast both expect.
	retargetAncestors := mgr.AncestorHeaders(tipHash, params.RetargetInterval)
	mtpWindow := retargetAncestors
	if len(mtpWindow) > 11 {
		mtpWindow = mtpWindow[len(mtpWindow)-11:]
	}
	prevTimestamps := make([]uint64, len(mtpWindow))
	for i, h := range mtpWindow {
		prevTimestamps[i] = h.Timestamp
	}
	// chooseValidTimestamp/mtpMedian want most-recent-first ordering;
	// mtpWindow is oldest-first, so reverse it.
	reverseTimestamps(prevTimestamps)

	selected := pool.SelectForTemplate(params.MaxBlockBytes - coinbaseReserveBytes)

	// The coinbase's own wtxid is conventionally zeroed in the commitment
	// calculation, since the real wtxid cannot be known until the
	// commitment itself is computed.
	wtxids := make([]consensus.Hash, 0, 1+len(selected))
	wtxids = append(wtxids, consensus.Hash{})
	for _, tx := range selected {
		wtxids = append(wtxids, consensus.WTxID(tx))
	}
	witnessRoot, err := consensus.WitnessMerkleRootWtxids(wtxids)
	if err != nil {
		return Template{}, err
	}
	witnessCommitment := consensus.WitnessCommitmentHash(witnessRoot)

	var fees uint64
	for _, tx := range selected {
		if fee, ok := pool.FeeOf(consensus.TxID(tx)); ok {
			fees += fee
		}
	}

	coinbase := buildCoinbaseTx(nextHeight, recipient, witnessCommitment, consensus.BlockSubsidy(nextHeight)+fees)

	txids := make([]consensus.Hash, 0, 1+len(selected))
	txids = append(txids, consensus.TxID(coinbase))
	for _, tx := range selected {
		txids = append(txids, consensus.TxID(tx))
	}
	merkleRoot, err := consensus.MerkleRootTxids(txids)
	if err != nil {
		return Template{}, err
	}

	now := TimeSource()
	timestamp := chooseValidTimestamp(nextHeight, prevTimestamps, now, params)

	header := consensus.BlockHeader{
		Version:    1,
		PrevHash:   tipHash,
		MerkleRoot: merkleRoot,
		Timestamp:  timestamp,
		Target:     tip.Target,
	}
	if nextHeight > 0 {
		target, err := consensus.ExpectedTarget(nextHeight, retargetAncestors, params)
		if err == nil {
			header.Target = target
		}
	}

	txs := make([]consensus.Transaction, 0, 1+len(selected))
	txs = append(txs, coinbase)
	txs = append(txs, selected...)
	return Template{Header: header, Txs: txs}, nil
}

// coinbaseReserveBytes is subtracted from the block byte budget before
// selecting mempool transactions, leaving headroom for the coinbase
// itself and the header.
const coinbaseReserveBytes = 512

func reverseTimestamps(ts []uint64) {
	for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
		ts[i], ts[j] = ts[j], ts[i]
	}
}

// chooseValidTimestamp picks the current time if it both exceeds the
// median-time-past and stays within the network's future-drift allowance;
// otherwise it falls back to one second past the median, guaranteeing
// forward progress without ever violating either bound.
func chooseValidTimestamp(nextHeight uint64, prevTimestamps []uint64, now uint64, params chainparams.Params) uint64 {
	if nextHeight == 0 || len(prevTimestamps) == 0 {
		if now == 0 {
			return 1
		}
		return now
	}
	median := mtpMedian(prevTimestamps)
	if now > median && now <= median+params.MaxFutureDrift {
		return now
	}
	return median + 1
}

func mtpMedian(prevTimestamps []uint64) uint64 {
	if len(prevTimestamps) == 0 {
		return 0
	}
	k := len(prevTimestamps)
	if k > 11 {
		k = 11
	}
	window := append([]uint64(nil), prevTimestamps[:k]...)
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
	return window[(len(window)-1)/2]
}

// buildCoinbaseTx assembles the first transaction of a candidate block: a
// single output paying value to recipient under a P2PKH covenant, plus a
// zero-value ProofAnchor output carrying the witness commitment hash.
func buildCoinbaseTx(height uint64, recipient [32]byte, witnessCommitment consensus.Hash, value uint64) consensus.Transaction {
	return consensus.Transaction{
		Version:  1,
		TxKind:   consensus.TxKindCoinbase,
		Locktime: uint32(height),
		Inputs: []consensus.TxIn{{
			PrevOut:  consensus.Outpoint{Txid: consensus.Hash{}, Vout: ^uint32(0)},
			Sequence: ^uint32(0),
		}},
		Outputs: []consensus.TxOut{
			{Value: value, CovenantType: consensus.CovP2PKH, CovenantData: recipient[:]},
			{Value: 0, CovenantType: consensus.CovProofAnchor, CovenantData: witnessCommitment[:]},
		},
	}
}
