package mempool

import (
	"testing"
	"time"

	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/pqcrypto"
)

func signedTx(t *testing.T, params chainparams.Params, prevOut consensus.Outpoint, prevValue uint64, outValue uint64) (consensus.Transaction, []byte) {
	t.Helper()
	pub, priv, err := pqcrypto.GenerateKeypair(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	tx := consensus.Transaction{
		Version: 1,
		Inputs:  []consensus.TxIn{{PrevOut: prevOut}},
		Outputs: []consensus.TxOut{{Value: outValue, CovenantType: consensus.CovP2PKH, CovenantData: make([]byte, 32)}},
	}
	digest := consensus.SighashDigest(params.NetworkID, tx, 0, prevValue)
	sig, err := pqcrypto.Sign(pqcrypto.AlgClassicalTest, priv, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx.Witnesses = []consensus.PqSig{{Algorithm: consensus.SigClassicalTest, PublicKey: pub, Signature: sig}}
	return tx, pub
}

func TestAdmitAndSelectByFee(t *testing.T) {
	params := chainparams.DevnetParams()
	pool := New(params, params.NetworkID, time.Hour)

	prevOut1 := consensus.Outpoint{Txid: consensus.Hash{1}, Vout: 0}
	tx1, pub1 := signedTx(t, params, prevOut1, 1000, 900) // fee 100
	prevOut2 := consensus.Outpoint{Txid: consensus.Hash{2}, Vout: 0}
	tx2, pub2 := signedTx(t, params, prevOut2, 1000, 700) // fee 300

	utxo := map[consensus.Outpoint]consensus.UtxoEntry{
		prevOut1: {Value: 1000, CovenantType: consensus.CovP2PKH, CovenantData: sha3Recipient(pub1)},
		prevOut2: {Value: 1000, CovenantType: consensus.CovP2PKH, CovenantData: sha3Recipient(pub2)},
	}

	if err := pool.Admit(tx1, utxo, 5, 1000); err != nil {
		t.Fatalf("admit tx1: %v", err)
	}
	if err := pool.Admit(tx2, utxo, 5, 1000); err != nil {
		t.Fatalf("admit tx2: %v", err)
	}
	if pool.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", pool.Len())
	}

	selected := pool.SelectForTemplate(1 << 20)
	if len(selected) != 2 {
		t.Fatalf("expected both selected, got %d", len(selected))
	}
	if consensus.TxID(selected[0]) != consensus.TxID(tx2) {
		t.Fatalf("expected higher-fee tx2 first")
	}
}

func TestAdmitRejectsConflict(t *testing.T) {
	params := chainparams.DevnetParams()
	pool := New(params, params.NetworkID, time.Hour)

	prevOut := consensus.Outpoint{Txid: consensus.Hash{3}, Vout: 0}
	tx1, pub1 := signedTx(t, params, prevOut, 1000, 900)
	utxo := map[consensus.Outpoint]consensus.UtxoEntry{
		prevOut: {Value: 1000, CovenantType: consensus.CovP2PKH, CovenantData: sha3Recipient(pub1)},
	}
	if err := pool.Admit(tx1, utxo, 5, 1000); err != nil {
		t.Fatalf("admit tx1: %v", err)
	}

	tx2, _ := signedTx(t, params, prevOut, 1000, 800)
	err := pool.Admit(tx2, utxo, 5, 1000)
	me, ok := err.(*Error)
	if !ok || me.Code != "conflict" {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestReapEvictsOldEntries(t *testing.T) {
	params := chainparams.DevnetParams()
	pool := New(params, params.NetworkID, time.Second)

	prevOut := consensus.Outpoint{Txid: consensus.Hash{4}, Vout: 0}
	tx, pub := signedTx(t, params, prevOut, 1000, 900)
	utxo := map[consensus.Outpoint]consensus.UtxoEntry{
		prevOut: {Value: 1000, CovenantType: consensus.CovP2PKH, CovenantData: sha3Recipient(pub)},
	}
	if err := pool.Admit(tx, utxo, 5, 1000); err != nil {
		t.Fatalf("admit: %v", err)
	}

	removed := pool.Reap(1000 + 10)
	if removed != 1 {
		t.Fatalf("expected 1 reaped, got %d", removed)
	}
	if pool.Len() != 0 {
		t.Fatalf("expected pool empty after reap")
	}
}

func sha3Recipient(pub []byte) []byte {
	h := pqcrypto.SHA3256(pub)
	return h[:]
}
