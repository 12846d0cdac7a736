package miner

import (
	"context"
	"time"

	"github.com/photon-chain/node/chainmgr"
	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/mempool"
)

// Config drives one running miner instance.
type Config struct {
	Params            chainparams.Params
	CoinbaseRecipient [32]byte
	Threads           int
}

// Miner repeatedly builds a template against the chain manager's current
// tip and searches for a solving nonce, submitting any block it finds
// back through mgr.AcceptBlock. It rebuilds whenever the tip changes,
// the mempool changes, or TemplateRefreshInterval elapses, whichever
// comes first.
type Miner struct {
	mgr  *chainmgr.Manager
	pool *mempool.Pool
	cfg  Config
}

// New constructs a miner bound to mgr and pool. It does not start mining;
// call Run in its own goroutine.
func New(mgr *chainmgr.Manager, pool *mempool.Pool, cfg Config) *Miner {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	return &Miner{mgr: mgr, pool: pool, cfg: cfg}
}

// Run mines until ctx is cancelled. found, if non-nil, is sent every block
// this miner successfully assembles and submits; the send never blocks,
// so a block is not delivered when found has no free buffer space.
func (m *Miner) Run(ctx context.Context, found chan<- consensus.Block) {
	for {
		if ctx.Err() != nil {
			return
		}
		m.mineOneRound(ctx, found)
	}
}

func (m *Miner) mineOneRound(ctx context.Context, found chan<- consensus.Block) {
	tmpl, err := BuildTemplate(m.mgr, m.pool, m.cfg.Params, m.cfg.CoinbaseRecipient)
	if err != nil {
		return
	}

	roundCtx, cancel := context.WithTimeout(ctx, m.cfg.Params.TemplateRefreshInterval)
	defer cancel()

	startTip := m.mgr.BestHash()
	startPoolLen := m.pool.Len()
	stopWatch := make(chan struct{})
	go m.watchForStaleness(roundCtx, cancel, startTip, startPoolLen, stopWatch)
	defer close(stopWatch)

	header, ok := SearchNonce(roundCtx, tmpl.Header, m.cfg.Threads)
	if !ok {
		return
	}

	block := consensus.Block{Header: header, Txs: tmpl.Txs}
	if _, err := m.mgr.AcceptBlock(block); err != nil {
		return
	}
	if found != nil {
		select {
		case found <- block:
		default:
		}
	}
}

// watchForStaleness cancels the current round early if the tip advances
// (another miner or peer found a block first) or the mempool's contents
// change, so the next round rebuilds against fresh state instead of
// racing a round that can no longer win.
func (m *Miner) watchForStaleness(ctx context.Context, cancel context.CancelFunc, startTip consensus.Hash, startPoolLen int, stop <-chan struct{}) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.mgr.BestHash() != startTip || m.pool.Len() != startPoolLen {
				cancel()
				return
			}
		}
	}
}
