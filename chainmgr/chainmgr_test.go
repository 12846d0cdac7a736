package chainmgr

import (
	"testing"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/mempool"
	"github.com/photon-chain/node/pqcrypto"
	"github.com/photon-chain/node/store"
)

func mineBlock(t *testing.T, block consensus.Block) consensus.Block {
	t.Helper()
	for nonce := uint64(0); nonce < 1_000_000; nonce++ {
		block.Header.Nonce = nonce
		if consensus.PowCheck(block.Header, block.Header.Target) == nil {
			return block
		}
	}
	t.Fatalf("failed to find a valid nonce")
	return block
}

func childBlock(t *testing.T, params chainparams.Params, parent consensus.BlockHeader, ts uint64) consensus.Block {
	t.Helper()
	coinbase := consensus.Transaction{
		Version: 1,
		TxKind:  consensus.TxKindCoinbase,
		Inputs:  []consensus.TxIn{{PrevOut: consensus.Outpoint{Txid: consensus.Hash{}, Vout: ^uint32(0)}}},
		Outputs: []consensus.TxOut{{Value: consensus.BlockSubsidy(0), CovenantType: consensus.CovP2PKH, CovenantData: make([]byte, 32)}},
	}
	txids := []consensus.Hash{consensus.TxID(coinbase)}
	root, err := consensus.MerkleRootTxids(txids)
	if err != nil {
		t.Fatalf("merkle root: %v", err)
	}
	header := consensus.BlockHeader{
		Version:    1,
		PrevHash:   consensus.BlockHash(parent),
		MerkleRoot: root,
		Timestamp:  ts,
		Target:     params.PowLimit,
	}
	block := consensus.Block{Header: header, Txs: []consensus.Transaction{coinbase}}
	return mineBlock(t, block)
}

func recipientOf(pub []byte) consensus.Hash {
	return consensus.Hash(sha3.Sum256(pub))
}

// coinbaseTo builds a coinbase transaction paying the block subsidy to
// recipient instead of the unspendable all-zero address childBlock uses.
func coinbaseTo(recipient consensus.Hash) consensus.Transaction {
	return consensus.Transaction{
		Version: 1,
		TxKind:  consensus.TxKindCoinbase,
		Inputs:  []consensus.TxIn{{PrevOut: consensus.Outpoint{Txid: consensus.Hash{}, Vout: ^uint32(0)}}},
		Outputs: []consensus.TxOut{{Value: consensus.BlockSubsidy(0), CovenantType: consensus.CovP2PKH, CovenantData: recipient[:]}},
	}
}

func blockWithTxs(t *testing.T, params chainparams.Params, parent consensus.BlockHeader, ts uint64, txs []consensus.Transaction) consensus.Block {
	t.Helper()
	txids := make([]consensus.Hash, len(txs))
	for i, tx := range txs {
		txids[i] = consensus.TxID(tx)
	}
	root, err := consensus.MerkleRootTxids(txids)
	if err != nil {
		t.Fatalf("merkle root: %v", err)
	}
	header := consensus.BlockHeader{
		Version:    1,
		PrevHash:   consensus.BlockHash(parent),
		MerkleRoot: root,
		Timestamp:  ts,
		Target:     params.PowLimit,
	}
	return mineBlock(t, consensus.Block{Header: header, Txs: txs})
}

func newTestManager(t *testing.T) (*Manager, chainparams.Params) {
	t.Helper()
	params := chainparams.DevnetParams()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	pool := mempool.New(params, params.NetworkID, time.Hour)
	mgr := New(db, pool, params)

	genesis := consensus.BuildGenesisBlock(params, 1_700_000_000)
	if err := mgr.InitGenesis(genesis); err != nil {
		t.Fatalf("init genesis: %v", err)
	}
	return mgr, params
}

func TestAcceptBlockExtendsTip(t *testing.T) {
	mgr, params := newTestManager(t)
	genesisHeader := mgr.BestHeader()

	b1 := childBlock(t, params, genesisHeader, 1_700_000_700)
	result, err := mgr.AcceptBlock(b1)
	if err != nil {
		t.Fatalf("accept block 1: %v", err)
	}
	if result != AcceptExtended {
		t.Fatalf("expected AcceptExtended, got %v", result)
	}
	if mgr.BestHeight() != 1 {
		t.Fatalf("expected height 1, got %d", mgr.BestHeight())
	}
	if mgr.BestHash() != consensus.BlockHash(b1.Header) {
		t.Fatalf("tip did not advance to new block")
	}
}

func TestAcceptBlockOrphansUnknownParent(t *testing.T) {
	mgr, params := newTestManager(t)
	genesisHeader := mgr.BestHeader()
	b1 := childBlock(t, params, genesisHeader, 1_700_000_700)
	b2 := childBlock(t, params, b1.Header, 1_700_001_400)

	result, err := mgr.AcceptBlock(b2)
	if err != nil {
		t.Fatalf("accept orphan: %v", err)
	}
	if result != AcceptOrphaned {
		t.Fatalf("expected AcceptOrphaned, got %v", result)
	}
	if mgr.BestHeight() != 0 {
		t.Fatalf("tip should not have advanced")
	}

	result, err = mgr.AcceptBlock(b1)
	if err != nil {
		t.Fatalf("accept parent: %v", err)
	}
	if result != AcceptExtended {
		t.Fatalf("expected parent to extend tip, got %v", result)
	}
	if mgr.BestHeight() != 2 {
		t.Fatalf("expected orphan drain to advance tip to height 2, got %d", mgr.BestHeight())
	}
}

func TestReorgAdoptsHeavierSideChain(t *testing.T) {
	mgr, params := newTestManager(t)
	genesisHeader := mgr.BestHeader()

	a1 := childBlock(t, params, genesisHeader, 1_700_000_700)
	if _, err := mgr.AcceptBlock(a1); err != nil {
		t.Fatalf("accept a1: %v", err)
	}
	a2 := childBlock(t, params, a1.Header, 1_700_001_400)
	if _, err := mgr.AcceptBlock(a2); err != nil {
		t.Fatalf("accept a2: %v", err)
	}

	b1 := childBlock(t, params, genesisHeader, 1_700_000_600)
	if result, err := mgr.AcceptBlock(b1); err != nil || result != AcceptSideBranch {
		t.Fatalf("expected b1 as side branch, got %v err=%v", result, err)
	}
	b2 := childBlock(t, params, b1.Header, 1_700_001_200)
	if result, err := mgr.AcceptBlock(b2); err != nil || result != AcceptSideBranch {
		t.Fatalf("expected b2 as side branch, got %v err=%v", result, err)
	}
	b3 := childBlock(t, params, b2.Header, 1_700_001_800)
	result, err := mgr.AcceptBlock(b3)
	if err != nil {
		t.Fatalf("accept b3: %v", err)
	}
	if result != AcceptReorged {
		t.Fatalf("expected AcceptReorged, got %v", result)
	}
	if mgr.BestHash() != consensus.BlockHash(b3.Header) {
		t.Fatalf("tip did not reorg onto b-chain")
	}
	if mgr.BestHeight() != 3 {
		t.Fatalf("expected height 3 after reorg, got %d", mgr.BestHeight())
	}
}

// TestSideBranchValidatesAgainstAsOfParentUTXOView covers a competing block
// whose spend is only valid as of its own parent, not as of the current
// tip: a1's coinbase output is spent once on the main chain (by a2) and
// once more on a side branch (by c1) that shares a1 as its parent. Both
// spends are individually valid against the UTXO set as it stood right
// after a1. A side-branch block must be checked against that as-of-parent
// view, not against whatever the tip's snapshot looks like once a2 has
// already consumed the output.
func TestSideBranchValidatesAgainstAsOfParentUTXOView(t *testing.T) {
	mgr, params := newTestManager(t)
	genesisHeader := mgr.BestHeader()

	pubA, privA, err := pqcrypto.GenerateKeypair(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("generate keypair a: %v", err)
	}
	recipientA := recipientOf(pubA)

	a1 := blockWithTxs(t, params, genesisHeader, 1_700_000_700, []consensus.Transaction{coinbaseTo(recipientA)})
	if result, err := mgr.AcceptBlock(a1); err != nil || result != AcceptExtended {
		t.Fatalf("accept a1: result=%v err=%v", result, err)
	}

	a1Coinbase := coinbaseTo(recipientA)
	a1Txid := consensus.TxID(a1Coinbase)
	prevOut := consensus.Outpoint{Txid: a1Txid, Vout: 0}
	prevValue := consensus.BlockSubsidy(0)

	spendTo := func(recipient consensus.Hash) consensus.Transaction {
		tx := consensus.Transaction{
			Version: 1,
			Inputs:  []consensus.TxIn{{PrevOut: prevOut}},
			Outputs: []consensus.TxOut{{Value: prevValue, CovenantType: consensus.CovP2PKH, CovenantData: recipient[:]}},
		}
		digest := consensus.SighashDigest(params.NetworkID, tx, 0, prevValue)
		sig, err := pqcrypto.Sign(pqcrypto.AlgClassicalTest, privA, digest[:])
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		tx.Witnesses = []consensus.PqSig{{Algorithm: consensus.SigClassicalTest, PublicKey: pubA, Signature: sig}}
		return tx
	}

	pubB, _, err := pqcrypto.GenerateKeypair(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("generate keypair b: %v", err)
	}
	recipientB := recipientOf(pubB)

	a2 := blockWithTxs(t, params, a1.Header, 1_700_001_400, []consensus.Transaction{coinbaseTo(recipientB), spendTo(recipientB)})
	if result, err := mgr.AcceptBlock(a2); err != nil || result != AcceptExtended {
		t.Fatalf("accept a2: result=%v err=%v", result, err)
	}

	pubC, _, err := pqcrypto.GenerateKeypair(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("generate keypair c: %v", err)
	}
	recipientC := recipientOf(pubC)

	c1 := blockWithTxs(t, params, a1.Header, 1_700_001_300, []consensus.Transaction{coinbaseTo(recipientC), spendTo(recipientC)})
	result, err := mgr.AcceptBlock(c1)
	if err != nil {
		t.Fatalf("accept c1: %v", err)
	}
	if result != AcceptSideBranch {
		t.Fatalf("expected c1 spending a1's already-spent output to validate as a side branch against its as-of-parent view, got %v", result)
	}
}
