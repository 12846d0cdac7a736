package store

import (
	"math/big"
	"testing"

	"github.com/photon-chain/node/consensus"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestTipRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if _, ok, err := db.GetTip(); err != nil || ok {
		t.Fatalf("expected no tip on fresh db, ok=%v err=%v", ok, err)
	}

	hash := consensus.Hash{1, 2, 3}
	batch := NewWriteBatch()
	batch.NewTip = &TipInfo{Hash: hash, Height: 7, CumulativeWork: big.NewInt(12345)}
	if err := db.Commit(batch); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tip, ok, err := db.GetTip()
	if err != nil || !ok {
		t.Fatalf("expected tip, ok=%v err=%v", ok, err)
	}
	if tip.Hash != hash || tip.Height != 7 || tip.CumulativeWork.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("unexpected tip: %+v", tip)
	}
}

func TestUTXOPutGetDelete(t *testing.T) {
	db := openTestDB(t)
	op := consensus.Outpoint{Txid: consensus.Hash{9}, Vout: 2}
	entry := consensus.UtxoEntry{Value: 500, CovenantType: consensus.CovP2PKH, CovenantData: make([]byte, 32)}

	batch := NewWriteBatch()
	batch.UtxoPuts[op] = entry
	if err := db.Commit(batch); err != nil {
		t.Fatalf("commit put: %v", err)
	}
	got, ok, err := db.GetUTXO(op)
	if err != nil || !ok {
		t.Fatalf("expected utxo present, ok=%v err=%v", ok, err)
	}
	if got.Value != 500 {
		t.Fatalf("unexpected value %d", got.Value)
	}

	batch2 := NewWriteBatch()
	batch2.UtxoDeletes = []consensus.Outpoint{op}
	if err := db.Commit(batch2); err != nil {
		t.Fatalf("commit delete: %v", err)
	}
	if _, ok, err := db.GetUTXO(op); err != nil || ok {
		t.Fatalf("expected utxo gone, ok=%v err=%v", ok, err)
	}
}

func TestIndexAndUndoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	hash := consensus.Hash{4, 4, 4}
	entry := consensus.BlockIndexEntry{
		Height:         3,
		PrevHash:       consensus.Hash{3, 3, 3},
		CumulativeWork: big.NewInt(99).Bytes(),
		Status:         consensus.StatusValid,
	}
	undo := UndoRecord{
		Spent: []SpentOutput{{
			Outpoint: consensus.Outpoint{Txid: consensus.Hash{5}, Vout: 0},
			Entry:    consensus.UtxoEntry{Value: 10, CovenantType: consensus.CovP2PKH, CovenantData: make([]byte, 32)},
		}},
		Created: []consensus.Outpoint{{Txid: consensus.Hash{6}, Vout: 1}},
	}

	batch := NewWriteBatch()
	batch.IndexEntries[hash] = entry
	batch.UndoRecords[hash] = undo
	if err := db.Commit(batch); err != nil {
		t.Fatalf("commit: %v", err)
	}

	gotEntry, ok, err := db.GetIndexEntry(hash)
	if err != nil || !ok {
		t.Fatalf("expected index entry, ok=%v err=%v", ok, err)
	}
	if gotEntry.Height != 3 || gotEntry.Status != consensus.StatusValid {
		t.Fatalf("unexpected index entry: %+v", gotEntry)
	}

	gotUndo, ok, err := db.GetUndo(hash)
	if err != nil || !ok {
		t.Fatalf("expected undo record, ok=%v err=%v", ok, err)
	}
	if len(gotUndo.Spent) != 1 || len(gotUndo.Created) != 1 {
		t.Fatalf("unexpected undo shape: %+v", gotUndo)
	}
	if gotUndo.Spent[0].Entry.Value != 10 {
		t.Fatalf("unexpected restored value: %d", gotUndo.Spent[0].Entry.Value)
	}
}

func TestHeightToHash(t *testing.T) {
	db := openTestDB(t)
	hash := consensus.Hash{8}
	batch := NewWriteBatch()
	batch.HeightToHash[42] = hash
	if err := db.Commit(batch); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, ok, err := db.GetHashAtHeight(42)
	if err != nil || !ok || got != hash {
		t.Fatalf("unexpected result: got=%v ok=%v err=%v", got, ok, err)
	}
}
