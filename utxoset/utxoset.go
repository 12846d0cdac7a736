// Package utxoset layers an in-process working view over the durable
// UTXO bucket in store: every in-flight block or mempool admission check
// mutates a cache that can be discarded wholesale on failure, and is only
// flushed to store on success.
package utxoset

import (
	"fmt"

	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/store"
)

// View is a UTXO lookup surface backed by store, overlaid with pending
// writes. It satisfies the map-like contract consensus.ApplyBlock and
// consensus.ApplyTx want (entries addressable by consensus.Outpoint),
// without materializing the entire durable UTXO set in memory.
type View struct {
	db      *store.DB
	pending map[consensus.Outpoint]*consensus.UtxoEntry // nil entry means "deleted in this view"
}

// NewView opens a fresh overlay on top of db's durable UTXO set.
func NewView(db *store.DB) *View {
	return &View{db: db, pending: map[consensus.Outpoint]*consensus.UtxoEntry{}}
}

// Get resolves an outpoint, checking the pending overlay first.
func (v *View) Get(op consensus.Outpoint) (consensus.UtxoEntry, bool, error) {
	if e, ok := v.pending[op]; ok {
		if e == nil {
			return consensus.UtxoEntry{}, false, nil
		}
		return *e, true, nil
	}
	return v.db.GetUTXO(op)
}

// Contains reports whether op is currently spendable in this view.
func (v *View) Contains(op consensus.Outpoint) (bool, error) {
	_, ok, err := v.Get(op)
	return ok, err
}

// Put stages the creation of a new output.
func (v *View) Put(op consensus.Outpoint, e consensus.UtxoEntry) {
	entry := e
	v.pending[op] = &entry
}

// Consume stages the removal of op, failing if it does not currently
// exist in the view.
func (v *View) Consume(op consensus.Outpoint) (consensus.UtxoEntry, error) {
	e, ok, err := v.Get(op)
	if err != nil {
		return consensus.UtxoEntry{}, err
	}
	if !ok {
		return consensus.UtxoEntry{}, fmt.Errorf("utxoset: outpoint not found: %x:%d", op.Txid, op.Vout)
	}
	v.pending[op] = nil
	return e, nil
}

// Snapshot returns a plain map suitable for consensus.ApplyBlock /
// consensus.ApplyTx, seeded from the outpoints named in need (typically
// every input a candidate block or transaction set references). Each
// lookup sees the overlay's staged adds and consumes, but staged entries
// not named in need are not included. Validation mutates the returned
// map directly; call Absorb afterward to fold accepted changes back in.
func (v *View) Snapshot(need []consensus.Outpoint) (map[consensus.Outpoint]consensus.UtxoEntry, error) {
	out := make(map[consensus.Outpoint]consensus.UtxoEntry, len(need))
	for _, op := range need {
		e, ok, err := v.Get(op)
		if err != nil {
			return nil, err
		}
		if ok {
			out[op] = e
		}
	}
	return out, nil
}

// Absorb folds the result of validating against a snapshot back into the
// overlay: any outpoint from need no longer present in snapshot was
// consumed; anything new in snapshot beyond need was created.
func (v *View) Absorb(before map[consensus.Outpoint]consensus.UtxoEntry, after map[consensus.Outpoint]consensus.UtxoEntry) {
	for op := range before {
		if _, stillThere := after[op]; !stillThere {
			v.pending[op] = nil
		}
	}
	for op, e := range after {
		if _, existedBefore := before[op]; !existedBefore {
			entry := e
			v.pending[op] = &entry
		}
	}
}

// Reset discards every staged change without touching the durable store.
func (v *View) Reset() {
	v.pending = map[consensus.Outpoint]*consensus.UtxoEntry{}
}

// Flush writes every staged change into batch, to be committed alongside
// the rest of a block's durable writes in a single store transaction.
func (v *View) Flush(batch *store.WriteBatch) {
	for op, e := range v.pending {
		if e == nil {
			batch.UtxoDeletes = append(batch.UtxoDeletes, op)
			continue
		}
		batch.UtxoPuts[op] = *e
	}
}

// Pending exposes the raw overlay, for callers (chainmgr's undo-record
// construction) that need to know exactly which outpoints changed.
func (v *View) Pending() map[consensus.Outpoint]*consensus.UtxoEntry {
	return v.pending
}
