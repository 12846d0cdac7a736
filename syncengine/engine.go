// Package syncengine drives Initial Block Download and steady-state
// gossip against a set of connected peers: header-first batch requests,
// pipelined body windows applied to the chain manager in height order,
// orphan recovery, and retry-with-backoff on peer loss. It generalizes
// a single-peer header-sync-request-plus-IBD-lag design into tracking
// many peers at once, each with its own in-flight window and backoff.
package syncengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/photon-chain/node/chainmgr"
	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/consensus"
)

// PeerLink is the subset of a peer session the sync engine needs to
// drive requests. p2p.Peer satisfies it via its Send* methods.
type PeerLink interface {
	SendGetHeaders(fromHeight uint64, max uint32) error
	SendGetBlocks(hashes []consensus.Hash) error
	SendBlock(block consensus.Block) error
}

// peerState tracks one peer's advertised tip, in-flight header request,
// and pipelined block window.
type peerState struct {
	link PeerLink

	advertisedHeight uint64
	advertisedHash   consensus.Hash
	knownTip         consensus.Hash // highest tip we believe this peer already has

	pendingHeaders bool
	queuedHashes   []consensus.Hash
	inFlightBlocks map[consensus.Hash]struct{}

	backoff      time.Duration
	nextAttempt  time.Time
	disconnected bool
}

// Engine coordinates IBD and gossip across every connected peer. It does
// not itself read sockets; callers feed it Hello/Headers/Block arrivals
// and call its On* methods to decide what to send.
type Engine struct {
	mgr    *chainmgr.Manager
	params chainparams.Params

	mu      sync.Mutex
	peers   map[string]*peerState
	retries []pendingRetry
}

// New constructs a sync engine bound to mgr.
func New(mgr *chainmgr.Manager, params chainparams.Params) *Engine {
	return &Engine{
		mgr:    mgr,
		params: params,
		peers:  map[string]*peerState{},
	}
}

// AddPeer registers a newly-handshaken peer under id.
func (e *Engine) AddPeer(id string, link PeerLink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peers[id] = &peerState{link: link, inFlightBlocks: map[consensus.Hash]struct{}{}}
}

// RemovePeer drops a peer's tracked state, including its queued and
// in-flight hashes, without scheduling them for retry; DisconnectPeer is
// the variant that hands them to the retry queue.
func (e *Engine) RemovePeer(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.peers, id)
}

// IsInIBD reports whether the local chain is still far enough behind
// wall-clock time that the node should be requesting full header
// batches rather than relying on steady-state gossip.
func (e *Engine) IsInIBD(now time.Time) bool {
	tip := e.mgr.BestHeader()
	if tip.Timestamp == 0 && e.mgr.BestHeight() == 0 {
		return true
	}
	nowUnix := uint64(now.Unix())
	if nowUnix < tip.Timestamp {
		return false
	}
	return nowUnix-tip.Timestamp > ibdLagSeconds
}

// ibdLagSeconds is how far behind wall-clock the local tip can be
// before the engine still considers itself in Initial Block Download.
const ibdLagSeconds = 24 * 60 * 60

// OnHello records a peer's advertised tip and, if it is ahead of the
// local chain, kicks off a header request.
func (e *Engine) OnHello(id string, tipHeight uint64, tipHash consensus.Hash) error {
	e.mu.Lock()
	ps, ok := e.peers[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("syncengine: unknown peer %q", id)
	}
	ps.advertisedHeight = tipHeight
	ps.advertisedHash = tipHash
	needHeaders := tipHeight > e.mgr.BestHeight() && !ps.pendingHeaders
	if needHeaders {
		ps.pendingHeaders = true
	}
	e.mu.Unlock()

	if needHeaders {
		return ps.link.SendGetHeaders(e.mgr.BestHeight()+1, uint32(e.params.HeaderBatch))
	}
	return nil
}

// OnHeaders validates an incoming header batch statelessly against
// proof-of-work and queues their hashes for body requests in height
// order. An empty batch means the peer believes we are caught up.
func (e *Engine) OnHeaders(id string, headers []consensus.BlockHeader) error {
	e.mu.Lock()
	ps, ok := e.peers[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("syncengine: unknown peer %q", id)
	}

	e.mu.Lock()
	ps.pendingHeaders = false
	e.mu.Unlock()

	if len(headers) == 0 {
		return nil
	}

	hashes := make([]consensus.Hash, 0, len(headers))
	for _, h := range headers {
		if err := consensus.PowCheck(h, h.Target); err != nil {
			return fmt.Errorf("syncengine: header fails proof of work: %w", err)
		}
		hash := consensus.BlockHash(h)
		if e.mgr.HaveBlock(hash) {
			continue
		}
		hashes = append(hashes, hash)
	}

	e.mu.Lock()
	ps.queuedHashes = append(ps.queuedHashes, hashes...)
	e.mu.Unlock()

	return e.pumpBlockWindow(id)
}

// pumpBlockWindow sends GetBlocks for as many queued hashes as fit
// within the peer's pipelined window, respecting its current in-flight
// count.
func (e *Engine) pumpBlockWindow(id string) error {
	e.mu.Lock()
	ps, ok := e.peers[id]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	window := e.params.BlockWindow
	available := window - len(ps.inFlightBlocks)
	if available <= 0 || len(ps.queuedHashes) == 0 {
		e.mu.Unlock()
		return nil
	}
	if available > len(ps.queuedHashes) {
		available = len(ps.queuedHashes)
	}
	batch := ps.queuedHashes[:available]
	ps.queuedHashes = ps.queuedHashes[available:]
	for _, h := range batch {
		ps.inFlightBlocks[h] = struct{}{}
	}
	link := ps.link
	e.mu.Unlock()

	return link.SendGetBlocks(batch)
}

// OnBlock applies a received block body to the chain manager and
// refills the sender's block window. On an orphan result it requests
// headers from the sender starting just past the local tip, per the
// out-of-order-arrival recovery rule.
func (e *Engine) OnBlock(id string, block consensus.Block) (chainmgr.AcceptResult, error) {
	hash := consensus.BlockHash(block.Header)

	e.mu.Lock()
	if ps, ok := e.peers[id]; ok {
		delete(ps.inFlightBlocks, hash)
	}
	e.mu.Unlock()

	result, err := e.mgr.AcceptBlock(block)
	if err != nil {
		return result, err
	}

	e.mu.Lock()
	ps, ok := e.peers[id]
	e.mu.Unlock()
	if !ok {
		return result, nil
	}

	if result == chainmgr.AcceptOrphaned {
		if serr := ps.link.SendGetHeaders(e.mgr.BestHeight()+1, uint32(e.params.HeaderBatch)); serr != nil {
			return result, serr
		}
	}
	if perr := e.pumpBlockWindow(id); perr != nil {
		return result, perr
	}
	return result, nil
}

// PeersNeedingTip returns every peer id that is not yet known to have
// newTip, for unsolicited Block gossip on a local tip change.
func (e *Engine) PeersNeedingTip(newTip consensus.Hash) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for id, ps := range e.peers {
		if ps.knownTip != newTip {
			out = append(out, id)
		}
	}
	return out
}

// MarkTipSent records that id has now been sent (or is otherwise known
// to have) hash, so it is not gossiped the same tip again.
func (e *Engine) MarkTipSent(id string, hash consensus.Hash) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ps, ok := e.peers[id]; ok {
		ps.knownTip = hash
	}
}

// GossipNewTip sends block unsolicited to every peer not already known
// to have its header.
func (e *Engine) GossipNewTip(block consensus.Block) error {
	hash := consensus.BlockHash(block.Header)
	for _, id := range e.PeersNeedingTip(hash) {
		e.mu.Lock()
		ps, ok := e.peers[id]
		e.mu.Unlock()
		if !ok {
			continue
		}
		if err := ps.link.SendBlock(block); err != nil {
			continue
		}
		e.MarkTipSent(id, hash)
	}
	return nil
}
