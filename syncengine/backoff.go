package syncengine

import (
	"time"

	"github.com/photon-chain/node/consensus"
)

// NextBackoff doubles cur (starting from a one-second floor) and clamps
// the result to max.
func NextBackoff(cur, max time.Duration) time.Duration {
	if cur <= 0 {
		cur = time.Second
	}
	next := cur * 2
	if next > max || next <= 0 {
		next = max
	}
	return next
}

// pendingRetry is a batch of block hashes orphaned by a peer
// disconnection, awaiting reassignment to another peer.
type pendingRetry struct {
	hashes  []consensus.Hash
	backoff time.Duration
	readyAt time.Time
}

// DisconnectPeer cancels every outstanding request to id and schedules
// its queued and in-flight hashes for retry against another peer after
// NextBackoff(ps.backoff, MaxSyncBackoff). No code raises a peer's
// backoff field, so every batch waits NextBackoff's first step (two
// seconds, or MaxSyncBackoff if smaller); the delay does not grow when
// the same hashes are retried and lost again.
func (e *Engine) DisconnectPeer(id string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ps, ok := e.peers[id]
	if !ok {
		return
	}
	delete(e.peers, id)

	hashes := append([]consensus.Hash{}, ps.queuedHashes...)
	for h := range ps.inFlightBlocks {
		hashes = append(hashes, h)
	}
	if len(hashes) == 0 {
		return
	}

	backoff := NextBackoff(ps.backoff, e.params.MaxSyncBackoff)
	e.retries = append(e.retries, pendingRetry{
		hashes:  hashes,
		backoff: backoff,
		readyAt: now.Add(backoff),
	})
}

// DueRetries pops every retry batch whose backoff has elapsed and
// returns their hashes, flattened. The caller is responsible for
// reissuing them to a different peer via RequestBlocksFrom.
func (e *Engine) DueRetries(now time.Time) []consensus.Hash {
	e.mu.Lock()
	defer e.mu.Unlock()

	var due []consensus.Hash
	remaining := e.retries[:0]
	for _, r := range e.retries {
		if now.Before(r.readyAt) {
			remaining = append(remaining, r)
			continue
		}
		due = append(due, r.hashes...)
	}
	e.retries = remaining
	return due
}

// RequestBlocksFrom queues hashes for id's pipelined block window,
// pumping immediately if capacity allows.
func (e *Engine) RequestBlocksFrom(id string, hashes []consensus.Hash) error {
	e.mu.Lock()
	ps, ok := e.peers[id]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	ps.queuedHashes = append(ps.queuedHashes, hashes...)
	e.mu.Unlock()
	return e.pumpBlockWindow(id)
}
