// Package chainmgr owns the in-memory block index, the orphan pool, and
// the accept-block pipeline: stateless/stateful validation, best-tip
// selection by cumulative work, and atomic reorg. It is the single writer
// to store, utxoset, and mempool.
package chainmgr

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/mempool"
	"github.com/photon-chain/node/store"
	"github.com/photon-chain/node/utxoset"
)

// indexEntry is the in-memory mirror of store.GetIndexEntry, kept hot so
// accept-block and fork-point search never round-trip through bbolt for
// headers already seen.
type indexEntry struct {
	header         consensus.BlockHeader
	height         uint64
	cumulativeWork *big.Int
	status         consensus.BlockStatus
}

// Manager is the chain's single logical owner of block-index, UTXO, and
// mempool state. Exported methods take its internal read/write lock, so
// they are safe to call from multiple goroutines.
type Manager struct {
	mu sync.RWMutex

	db     *store.DB
	utxo   *utxoset.View
	pool   *mempool.Pool
	params chainparams.Params

	index      map[consensus.Hash]*indexEntry
	orphans    map[consensus.Hash][]consensus.Block // keyed by missing parent hash
	bodies     map[consensus.Hash]consensus.Block
	bestHash   consensus.Hash
	bestHeight uint64
	bestWork   *big.Int
	genesis    consensus.Hash
}

// New constructs a chain manager over an already-open store. Callers must
// call InitGenesis before anything else if the store has never been
// initialized.
func New(db *store.DB, pool *mempool.Pool, params chainparams.Params) *Manager {
	return &Manager{
		db:      db,
		utxo:    utxoset.NewView(db),
		pool:    pool,
		params:  params,
		index:   map[consensus.Hash]*indexEntry{},
		orphans: map[consensus.Hash][]consensus.Block{},
		bodies:  map[consensus.Hash]consensus.Block{},
	}
}

// InitGenesis accepts block as the chain's genesis if the store has none
// yet, or verifies it matches the already-committed genesis otherwise.
func (m *Manager) InitGenesis(genesisBlock consensus.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := consensus.BlockHash(genesisBlock.Header)
	existing, ok, err := m.db.GetGenesisHash()
	if err != nil {
		return err
	}
	if ok {
		if existing != hash {
			return fmt.Errorf("chainmgr: store genesis %x does not match configured genesis %x", existing, hash)
		}
		return m.loadFromStore()
	}

	utxo := map[consensus.Outpoint]consensus.UtxoEntry{}
	ctx := consensus.BlockValidationContext{Height: 0}
	if err := consensus.ApplyBlock(genesisBlock, utxo, ctx, m.params, m.params.NetworkID); err != nil {
		return fmt.Errorf("chainmgr: invalid genesis: %w", err)
	}

	batch := store.NewWriteBatch()
	batch.Headers[hash] = consensus.HeaderBytes(genesisBlock.Header)
	batch.Bodies[hash] = consensus.BlockBytes(genesisBlock)
	work := store.WorkFromTarget(genesisBlock.Header.Target)
	batch.IndexEntries[hash] = consensus.BlockIndexEntry{
		Height: 0, PrevHash: consensus.Hash{}, CumulativeWork: work.Bytes(), Status: consensus.StatusValid,
	}
	batch.HeightToHash[0] = hash
	for op, e := range utxo {
		batch.UtxoPuts[op] = e
	}
	batch.NewGenesis = &hash
	batch.NewTip = &store.TipInfo{Hash: hash, Height: 0, CumulativeWork: work}
	if err := m.db.Commit(batch); err != nil {
		return err
	}

	m.genesis = hash
	m.bestHash = hash
	m.bestHeight = 0
	m.bestWork = work
	m.index[hash] = &indexEntry{header: genesisBlock.Header, height: 0, cumulativeWork: work, status: consensus.StatusValid}
	m.bodies[hash] = genesisBlock
	return nil
}

func (m *Manager) loadFromStore() error {
	tip, ok, err := m.db.GetTip()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("chainmgr: store has a genesis hash but no tip")
	}
	m.bestHash = tip.Hash
	m.bestHeight = tip.Height
	m.bestWork = tip.CumulativeWork
	genesis, _, err := m.db.GetGenesisHash()
	if err != nil {
		return err
	}
	m.genesis = genesis
	return m.loadIndexEntry(tip.Hash)
}

func (m *Manager) loadIndexEntry(hash consensus.Hash) error {
	if _, cached := m.index[hash]; cached {
		return nil
	}
	headerRaw, ok, err := m.db.GetHeader(hash)
	if err != nil || !ok {
		return fmt.Errorf("chainmgr: missing header for %x", hash)
	}
	header, err := consensus.ParseHeaderBytes(headerRaw)
	if err != nil {
		return err
	}
	entry, ok, err := m.db.GetIndexEntry(hash)
	if err != nil || !ok {
		return fmt.Errorf("chainmgr: missing index entry for %x", hash)
	}
	m.index[hash] = &indexEntry{
		header: header, height: entry.Height,
		cumulativeWork: new(big.Int).SetBytes(entry.CumulativeWork),
		status:         entry.Status,
	}
	if header.PrevHash != (consensus.Hash{}) {
		return m.loadIndexEntry(header.PrevHash)
	}
	return nil
}

// BestHash and BestHeight report the current main-chain tip.
func (m *Manager) BestHash() consensus.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bestHash
}

func (m *Manager) BestHeight() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.bestHeight
}

// BestHeader returns the header at the current tip.
func (m *Manager) BestHeader() consensus.BlockHeader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index[m.bestHash].header
}

// AncestorHeaders returns up to n headers walking back from hash,
// most-recent-last (hash's own header last), for median-time-past and
// retarget computation.
func (m *Manager) AncestorHeaders(hash consensus.Hash, n uint64) []consensus.BlockHeader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]consensus.BlockHeader, 0, n)
	cur := hash
	for uint64(len(out)) < n {
		e, ok := m.index[cur]
		if !ok {
			break
		}
		out = append(out, e.header)
		if cur == m.genesis {
			break
		}
		cur = e.header.PrevHash
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// AcceptResult classifies what AcceptBlock did with a candidate block.
type AcceptResult int

const (
	AcceptAlreadyKnown AcceptResult = iota
	AcceptOrphaned
	AcceptExtended
	AcceptReorged
	AcceptSideBranch
	AcceptRejected
)

// AcceptBlock runs the five-step pipeline: dedup, orphan buffering,
// validation, best-tip comparison and reorg, then orphan-pool drain for
// any now-connectable children.
func (m *Manager) AcceptBlock(block consensus.Block) (AcceptResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acceptBlockLocked(block)
}

// HaveBlock reports whether hash is already present in the in-memory
// block index, regardless of which branch it sits on.
func (m *Manager) HaveBlock(hash consensus.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.index[hash]
	return ok
}

// SubmitMempoolTx snapshots the UTXO entries tx's inputs reference at the
// current tip and hands tx to pool.Admit. It exists so callers outside the
// chain-manager task (RPC submission, local wallet broadcast) never build a
// UTXO snapshot themselves and risk racing a concurrent reorg.
func (m *Manager) SubmitMempoolTx(pool *mempool.Pool, tx consensus.Transaction, now uint64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	need := make([]consensus.Outpoint, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		need = append(need, in.PrevOut)
	}
	snapshot, err := m.utxo.Snapshot(need)
	if err != nil {
		return err
	}
	return pool.Admit(tx, snapshot, m.bestHeight+1, now)
}

func (m *Manager) acceptBlockLocked(block consensus.Block) (AcceptResult, error) {
	hash := consensus.BlockHash(block.Header)
	if e, known := m.index[hash]; known {
		if e.status == consensus.StatusInvalid {
			return AcceptRejected, fmt.Errorf("chainmgr: block %x previously rejected", hash)
		}
		return AcceptAlreadyKnown, nil
	}

	parent, haveParent := m.index[block.Header.PrevHash]
	if !haveParent {
		m.orphans[block.Header.PrevHash] = append(m.orphans[block.Header.PrevHash], block)
		return AcceptOrphaned, nil
	}

	height := parent.height + 1
	ancestors := m.ancestorHeadersLocked(block.Header.PrevHash, 2016)
	ctx := consensus.BlockValidationContext{
		Height: height, ParentHash: block.Header.PrevHash, AncestorHeaders: ancestors,
	}
	workingUTXO, err := m.utxoSnapshotForBlockLocked(block)
	if err != nil {
		return AcceptRejected, err
	}
	before := cloneUTXOMap(workingUTXO)
	if err := consensus.ApplyBlock(block, workingUTXO, ctx, m.params, m.params.NetworkID); err != nil {
		m.index[hash] = &indexEntry{header: block.Header, height: height, cumulativeWork: big.NewInt(0), status: consensus.StatusInvalid}
		return AcceptRejected, err
	}

	work := new(big.Int).Add(parent.cumulativeWork, store.WorkFromTarget(block.Header.Target))
	m.index[hash] = &indexEntry{header: block.Header, height: height, cumulativeWork: work, status: consensus.StatusValid}
	m.bodies[hash] = block
	for _, tx := range block.Txs {
		m.pool.Remove(consensus.TxID(tx))
	}

	result := AcceptSideBranch
	if work.Cmp(m.bestWork) > 0 {
		if block.Header.PrevHash == m.bestHash {
			if err := m.connectBlockLocked(hash, block, height, work, before, workingUTXO); err != nil {
				return AcceptRejected, err
			}
			result = AcceptExtended
		} else {
			if err := m.reorgToLocked(hash); err != nil {
				return AcceptRejected, err
			}
			result = AcceptReorged
		}
	} else {
		// Validated but not (yet) the best chain: still persist the header,
		// body, and index entry so a later reorg candidate can find this
		// block after a restart, without touching height_to_hash or tip.
		if err := m.persistSideBranchLocked(hash, block, height, work); err != nil {
			return AcceptRejected, err
		}
	}

	m.drainOrphansLocked(hash)
	return result, nil
}

// persistSideBranchLocked durably stores a validated block that is not
// (yet) part of the best chain, so it survives a restart and remains
// available if a later block makes its branch the new best.
func (m *Manager) persistSideBranchLocked(hash consensus.Hash, block consensus.Block, height uint64, work *big.Int) error {
	batch := store.NewWriteBatch()
	batch.Headers[hash] = consensus.HeaderBytes(block.Header)
	batch.Bodies[hash] = consensus.BlockBytes(block)
	batch.IndexEntries[hash] = consensus.BlockIndexEntry{
		Height: height, PrevHash: block.Header.PrevHash, CumulativeWork: work.Bytes(), Status: consensus.StatusValid,
	}
	return m.db.Commit(batch)
}

// connectBlockLocked commits one block as a direct extension of the
// current best tip: the UTXO delta already computed by ApplyBlock, the
// undo record needed to later disconnect it, and the new tip pointer, all
// in one store batch.
func (m *Manager) connectBlockLocked(
	hash consensus.Hash, block consensus.Block, height uint64, work *big.Int,
	before, after map[consensus.Outpoint]consensus.UtxoEntry,
) error {
	batch := store.NewWriteBatch()
	batch.Headers[hash] = consensus.HeaderBytes(block.Header)
	batch.Bodies[hash] = consensus.BlockBytes(block)
	batch.IndexEntries[hash] = consensus.BlockIndexEntry{
		Height: height, PrevHash: block.Header.PrevHash, CumulativeWork: work.Bytes(), Status: consensus.StatusValid,
	}
	batch.HeightToHash[height] = hash
	undo := store.UndoRecord{}
	for op, e := range before {
		if _, stillThere := after[op]; !stillThere {
			undo.Spent = append(undo.Spent, store.SpentOutput{Outpoint: op, Entry: e})
			batch.UtxoDeletes = append(batch.UtxoDeletes, op)
		}
	}
	for op, e := range after {
		if _, existedBefore := before[op]; !existedBefore {
			undo.Created = append(undo.Created, op)
			batch.UtxoPuts[op] = e
		}
	}
	batch.UndoRecords[hash] = undo
	batch.NewTip = &store.TipInfo{Hash: hash, Height: height, CumulativeWork: work}

	if err := m.db.Commit(batch); err != nil {
		return err
	}
	m.bestHash = hash
	m.bestHeight = height
	m.bestWork = work
	return nil
}

// disconnectTipLocked reverses the block currently at the tip using its
// undo record, moving bestHash back to its parent.
func (m *Manager) disconnectTipLocked() error {
	hash := m.bestHash
	entry := m.index[hash]
	undo, ok, err := m.db.GetUndo(hash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("chainmgr: missing undo record for %x", hash)
	}

	batch := store.NewWriteBatch()
	for _, s := range undo.Spent {
		batch.UtxoPuts[s.Outpoint] = s.Entry
	}
	for _, c := range undo.Created {
		batch.UtxoDeletes = append(batch.UtxoDeletes, c)
	}
	batch.DeleteHeightToHash = []uint64{entry.height}
	parentEntry := m.index[entry.header.PrevHash]
	batch.NewTip = &store.TipInfo{Hash: entry.header.PrevHash, Height: parentEntry.height, CumulativeWork: parentEntry.cumulativeWork}
	if err := m.db.Commit(batch); err != nil {
		return err
	}
	m.bestHash = entry.header.PrevHash
	m.bestHeight = parentEntry.height
	m.bestWork = parentEntry.cumulativeWork
	return nil
}

// forkScratch is a read-through UTXO view as-of some ancestor behind the
// current tip: it starts from the durable UTXO bucket (which reflects the
// current tip) and layers undo records replayed in tip-to-ancestor order
// on top, without writing anything to store. It lets reorg validate the
// entire new-side path before a single disconnect/reconnect write lands.
type forkScratch struct {
	db      *store.DB
	overlay map[consensus.Outpoint]*consensus.UtxoEntry // nil = deleted relative to store
}

func newForkScratch(db *store.DB) *forkScratch {
	return &forkScratch{db: db, overlay: map[consensus.Outpoint]*consensus.UtxoEntry{}}
}

func (s *forkScratch) get(op consensus.Outpoint) (consensus.UtxoEntry, bool, error) {
	if e, ok := s.overlay[op]; ok {
		if e == nil {
			return consensus.UtxoEntry{}, false, nil
		}
		return *e, true, nil
	}
	return s.db.GetUTXO(op)
}

// applyUndo reverses one block's UTXO effect: entries it spent are
// restored, entries it created are deleted. This is the same
// transformation disconnectTipLocked commits to store, performed here
// purely in memory.
func (s *forkScratch) applyUndo(u store.UndoRecord) {
	for _, spent := range u.Spent {
		e := spent.Entry
		s.overlay[spent.Outpoint] = &e
	}
	for _, created := range u.Created {
		s.overlay[created] = nil
	}
}

// snapshot materializes a plain map for exactly the outpoints in need,
// the shape consensus.ApplyBlock operates on.
func (s *forkScratch) snapshot(need []consensus.Outpoint) (map[consensus.Outpoint]consensus.UtxoEntry, error) {
	out := make(map[consensus.Outpoint]consensus.UtxoEntry, len(need))
	for _, op := range need {
		e, ok, err := s.get(op)
		if err != nil {
			return nil, err
		}
		if ok {
			out[op] = e
		}
	}
	return out, nil
}

// absorb folds a validated block's snapshot delta back into the overlay
// so later blocks on the same new-side path see outputs it just created.
func (s *forkScratch) absorb(before, after map[consensus.Outpoint]consensus.UtxoEntry) {
	for op := range before {
		if _, stillThere := after[op]; !stillThere {
			s.overlay[op] = nil
		}
	}
	for op, e := range after {
		if _, existedBefore := before[op]; !existedBefore {
			entry := e
			s.overlay[op] = &entry
		}
	}
}

// reorgToLocked switches the best chain to end at newTip. It validates
// the entire new-side path against a scratch UTXO view rebuilt back to
// the fork point before committing any disconnect/reconnect writes, so a
// mid-path validation failure leaves the original tip completely
// untouched.
func (m *Manager) reorgToLocked(newTip consensus.Hash) error {
	forkPoint, oldSide, newSide, err := m.findForkLocked(m.bestHash, newTip)
	if err != nil {
		return err
	}

	scratch := newForkScratch(m.db)
	for _, hash := range oldSide {
		undo, ok, err := m.db.GetUndo(hash)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("chainmgr: missing undo record for %x while rewinding to fork point", hash)
		}
		scratch.applyUndo(undo)
	}

	type step struct {
		hash   consensus.Hash
		block  consensus.Block
		height uint64
		work   *big.Int
		before map[consensus.Outpoint]consensus.UtxoEntry
		after  map[consensus.Outpoint]consensus.UtxoEntry
	}
	steps := make([]step, 0, len(newSide))
	runningWork := m.index[forkPoint].cumulativeWork
	for _, hash := range newSide {
		block, ok := m.bodies[hash]
		if !ok {
			return fmt.Errorf("chainmgr: missing body for reorg candidate %x", hash)
		}
		e := m.index[hash]
		need := make([]consensus.Outpoint, 0)
		for _, tx := range block.Txs {
			for _, in := range tx.Inputs {
				need = append(need, in.PrevOut)
			}
		}
		before, err := scratch.snapshot(need)
		if err != nil {
			return err
		}
		working := cloneUTXOMap(before)
		ancestors := m.ancestorHeadersLocked(block.Header.PrevHash, 2016)
		ctx := consensus.BlockValidationContext{Height: e.height, ParentHash: block.Header.PrevHash, AncestorHeaders: ancestors}
		if err := consensus.ApplyBlock(block, working, ctx, m.params, m.params.NetworkID); err != nil {
			return fmt.Errorf("chainmgr: reorg candidate %x invalid, aborting reorg: %w", hash, err)
		}
		scratch.absorb(before, working)
		runningWork = new(big.Int).Add(runningWork, store.WorkFromTarget(block.Header.Target))
		steps = append(steps, step{hash: hash, block: block, height: e.height, work: runningWork, before: before, after: working})
	}

	for range oldSide {
		if err := m.disconnectTipLocked(); err != nil {
			return fmt.Errorf("chainmgr: reorg disconnect failed, chain left at intermediate tip %x: %w", m.bestHash, err)
		}
	}
	for _, s := range steps {
		if err := m.connectBlockLocked(s.hash, s.block, s.height, s.work, s.before, s.after); err != nil {
			return fmt.Errorf("chainmgr: reorg reconnect failed, chain left at intermediate tip %x: %w", m.bestHash, err)
		}
	}
	return nil
}

// findForkLocked walks both chains back to their common ancestor,
// returning the fork point plus the two divergent paths (old side from
// tip to just above fork, new side from just above fork to newTip, in
// connect order).
func (m *Manager) findForkLocked(oldTip, newTip consensus.Hash) (fork consensus.Hash, oldSide, newSide []consensus.Hash, err error) {
	aPath := []consensus.Hash{}
	bPath := []consensus.Hash{}
	a, b := oldTip, newTip
	for m.index[a].height > m.index[b].height {
		aPath = append(aPath, a)
		a = m.index[a].header.PrevHash
	}
	for m.index[b].height > m.index[a].height {
		bPath = append(bPath, b)
		b = m.index[b].header.PrevHash
	}
	for a != b {
		aPath = append(aPath, a)
		bPath = append(bPath, b)
		a = m.index[a].header.PrevHash
		b = m.index[b].header.PrevHash
		if _, ok := m.index[a]; !ok {
			return fork, nil, nil, fmt.Errorf("chainmgr: no common ancestor found")
		}
	}
	for i, j := 0, len(bPath)-1; i < j; i, j = i+1, j-1 {
		bPath[i], bPath[j] = bPath[j], bPath[i]
	}
	return a, aPath, bPath, nil
}

// utxoSnapshotForBlockLocked gathers the UTXO entries block's inputs
// reference, as of block's parent rather than the current tip. When
// block directly extends the tip the durable UTXO set already is that
// view; otherwise (a competing side branch, or a block draining from
// the orphan pool onto a non-tip parent) it rebuilds the as-of-parent
// view with utxoViewAsOfLocked first. Without this, a side-branch
// block spending an output already spent on the main chain would
// validate against the wrong UTXO set and could be wrongly accepted
// or wrongly rejected.
func (m *Manager) utxoSnapshotForBlockLocked(block consensus.Block) (map[consensus.Outpoint]consensus.UtxoEntry, error) {
	need := make([]consensus.Outpoint, 0)
	for _, tx := range block.Txs {
		for _, in := range tx.Inputs {
			need = append(need, in.PrevOut)
		}
	}
	if block.Header.PrevHash == m.bestHash {
		return m.utxo.Snapshot(need)
	}
	scratch, err := m.utxoViewAsOfLocked(block.Header.PrevHash)
	if err != nil {
		return nil, err
	}
	return scratch.snapshot(need)
}

// utxoViewAsOfLocked builds a forkScratch reflecting the UTXO set as it
// stood immediately after hash was connected: the current tip rewound
// to the fork point with stored undo records, then the other branch
// replayed forward from the fork point up to hash using the bodies
// already recorded for it. hash must already be present in the index.
func (m *Manager) utxoViewAsOfLocked(hash consensus.Hash) (*forkScratch, error) {
	scratch := newForkScratch(m.db)
	if hash == m.bestHash {
		return scratch, nil
	}
	_, back, fwd, err := m.findForkLocked(m.bestHash, hash)
	if err != nil {
		return nil, err
	}
	for _, h := range back {
		undo, ok, err := m.db.GetUndo(h)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("chainmgr: missing undo record for %x while building as-of-parent view", h)
		}
		scratch.applyUndo(undo)
	}
	for _, h := range fwd {
		block, ok := m.bodies[h]
		if !ok {
			return nil, fmt.Errorf("chainmgr: missing body for %x while building as-of-parent view", h)
		}
		e, ok := m.index[h]
		if !ok {
			return nil, fmt.Errorf("chainmgr: missing index entry for %x while building as-of-parent view", h)
		}
		need := make([]consensus.Outpoint, 0)
		for _, tx := range block.Txs {
			for _, in := range tx.Inputs {
				need = append(need, in.PrevOut)
			}
		}
		before, err := scratch.snapshot(need)
		if err != nil {
			return nil, err
		}
		working := cloneUTXOMap(before)
		ancestors := m.ancestorHeadersLocked(block.Header.PrevHash, 2016)
		ctx := consensus.BlockValidationContext{Height: e.height, ParentHash: block.Header.PrevHash, AncestorHeaders: ancestors}
		if err := consensus.ApplyBlock(block, working, ctx, m.params, m.params.NetworkID); err != nil {
			return nil, fmt.Errorf("chainmgr: ancestor %x on side branch no longer valid while building as-of-parent view: %w", h, err)
		}
		scratch.absorb(before, working)
	}
	return scratch, nil
}

func (m *Manager) ancestorHeadersLocked(hash consensus.Hash, n uint64) []consensus.BlockHeader {
	out := make([]consensus.BlockHeader, 0, n)
	cur := hash
	for uint64(len(out)) < n {
		e, ok := m.index[cur]
		if !ok {
			break
		}
		out = append(out, e.header)
		if cur == m.genesis {
			break
		}
		cur = e.header.PrevHash
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (m *Manager) drainOrphansLocked(parent consensus.Hash) {
	children := m.orphans[parent]
	if len(children) == 0 {
		return
	}
	delete(m.orphans, parent)
	for _, child := range children {
		_, _ = m.acceptBlockLocked(child)
	}
}

func cloneUTXOMap(m map[consensus.Outpoint]consensus.UtxoEntry) map[consensus.Outpoint]consensus.UtxoEntry {
	out := make(map[consensus.Outpoint]consensus.UtxoEntry, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
