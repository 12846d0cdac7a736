// Package mempool holds validated, not-yet-confirmed transactions,
// ordered for block template assembly and evicted on confirmation,
// conflict, or age. No standalone teacher mempool exists to ground this
// on directly; it generalizes consensus's own stateful-check entry point
// (ApplyTx against a UTXO snapshot) and validate.go's duplicate-input
// detection idiom into a persistent conflict index.
package mempool

import (
	"sort"
	"sync"
	"time"

	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/consensus"
)

// Entry is one admitted, not-yet-confirmed transaction.
type Entry struct {
	Tx        consensus.Transaction
	Txid      consensus.Hash
	Fee       uint64
	FirstSeen uint64
}

// Pool is the node's single pending-transaction set, safe for concurrent
// use by the chain-manager task and RPC submission path.
type Pool struct {
	mu sync.RWMutex

	entries   map[consensus.Hash]*Entry
	byInput   map[consensus.Outpoint]consensus.Hash // conflict index
	maxAge    time.Duration
	params    chainparams.Params
	networkID uint32
}

// New returns an empty pool. maxAge bounds how long an entry may sit
// unconfirmed before Reap discards it.
func New(params chainparams.Params, networkID uint32, maxAge time.Duration) *Pool {
	return &Pool{
		entries:   map[consensus.Hash]*Entry{},
		byInput:   map[consensus.Outpoint]consensus.Hash{},
		maxAge:    maxAge,
		params:    params,
		networkID: networkID,
	}
}

// Admit validates tx (stateless, then stateful against utxo) and, on
// success, adds it to the pool. A transaction whose inputs conflict with
// one already admitted is rejected rather than silently replacing it;
// fee-bumping replacement is not supported.
func (p *Pool) Admit(tx consensus.Transaction, utxo map[consensus.Outpoint]consensus.UtxoEntry, height uint64, now uint64) error {
	if err := consensus.CheckTxStateless(tx, p.params, p.networkID); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	txid := consensus.TxID(tx)
	if _, exists := p.entries[txid]; exists {
		return txerr("duplicate", "transaction already in mempool")
	}
	for _, in := range tx.Inputs {
		if conflictTxid, conflicted := p.byInput[in.PrevOut]; conflicted {
			return txerr("conflict", "input already spent by "+hexShort(conflictTxid))
		}
	}

	fee, err := consensus.CheckTxStateful(tx, utxo, height, p.params, p.networkID)
	if err != nil {
		return err
	}

	e := &Entry{Tx: tx, Txid: txid, Fee: fee, FirstSeen: now}
	p.entries[txid] = e
	for _, in := range tx.Inputs {
		p.byInput[in.PrevOut] = txid
	}
	return nil
}

// Remove drops a transaction (on confirmation, explicit eviction, or
// conflict resolution) and clears its conflict-index entries.
func (p *Pool) Remove(txid consensus.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(txid)
}

func (p *Pool) removeLocked(txid consensus.Hash) {
	e, ok := p.entries[txid]
	if !ok {
		return
	}
	delete(p.entries, txid)
	for _, in := range e.Tx.Inputs {
		if p.byInput[in.PrevOut] == txid {
			delete(p.byInput, in.PrevOut)
		}
	}
}

// RemoveConflicting evicts every pooled transaction that spends any
// outpoint tx also spends — used when a block confirms tx and the pool
// must drop now-invalid double-spends.
func (p *Pool) RemoveConflicting(tx consensus.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, in := range tx.Inputs {
		if conflictTxid, ok := p.byInput[in.PrevOut]; ok {
			p.removeLocked(conflictTxid)
		}
	}
}

// Reap discards every entry older than maxAge relative to now.
func (p *Pool) Reap(now uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cutoff := uint64(p.maxAge.Seconds())
	removed := 0
	for txid, e := range p.entries {
		if now > e.FirstSeen && now-e.FirstSeen > cutoff {
			p.removeLocked(txid)
			removed++
		}
	}
	return removed
}

// SelectForTemplate returns pooled transactions in descending fee order,
// greedily filling a block template: a transaction that would push the
// running encoded size past maxBytes is skipped, and later (smaller) ones
// are still considered.
func (p *Pool) SelectForTemplate(maxBytes uint32) []consensus.Transaction {
	p.mu.RLock()
	ordered := make([]*Entry, 0, len(p.entries))
	for _, e := range p.entries {
		ordered = append(ordered, e)
	}
	p.mu.RUnlock()

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Fee != ordered[j].Fee {
			return ordered[i].Fee > ordered[j].Fee
		}
		return ordered[i].FirstSeen < ordered[j].FirstSeen
	})

	var size uint32
	out := make([]consensus.Transaction, 0, len(ordered))
	for _, e := range ordered {
		txBytes := uint32(len(consensus.TxBytes(e.Tx)))
		if size+txBytes > maxBytes {
			continue
		}
		size += txBytes
		out = append(out, e.Tx)
	}
	return out
}

// Len reports the current number of pooled transactions.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Has reports whether txid is currently pooled.
func (p *Pool) Has(txid consensus.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[txid]
	return ok
}

// FeeOf reports the fee recorded at admission for a pooled transaction.
func (p *Pool) FeeOf(txid consensus.Hash) (uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[txid]
	if !ok {
		return 0, false
	}
	return e.Fee, true
}

// Get returns the pooled entry for txid, if any. The returned Entry is a
// copy of the pool's bookkeeping fields; the embedded Transaction is
// shared and must not be mutated by the caller.
func (p *Pool) Get(txid consensus.Hash) (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[txid]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func hexShort(h consensus.Hash) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 8)
	for i := 0; i < 4; i++ {
		out[i*2] = hexdigits[h[i]>>4]
		out[i*2+1] = hexdigits[h[i]&0xf]
	}
	return string(out)
}
