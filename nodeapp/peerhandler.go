package nodeapp

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/photon-chain/node/chainmgr"
	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/mempool"
	"github.com/photon-chain/node/p2p"
	"github.com/photon-chain/node/store"
	"github.com/photon-chain/node/syncengine"
)

// handler bridges one connected peer's decoded messages into the chain
// manager, mempool, and sync engine. One handler instance is shared by
// every peer; the peer identity a given call concerns is recovered from
// the *p2p.Peer argument p2p's dispatch loop always passes in.
type handler struct {
	mgr    *chainmgr.Manager
	db     *store.DB
	pool   *mempool.Pool
	engine *syncengine.Engine
	logger zerolog.Logger
}

func newHandler(mgr *chainmgr.Manager, db *store.DB, pool *mempool.Pool, engine *syncengine.Engine, logger zerolog.Logger) *handler {
	return &handler{mgr: mgr, db: db, pool: pool, engine: engine, logger: logger}
}

func peerID(p *p2p.Peer) string {
	return p.Conn.RemoteAddr().String()
}

func (h *handler) OnHeaders(p *p2p.Peer, headers []consensus.BlockHeader) error {
	return h.engine.OnHeaders(peerID(p), headers)
}

func (h *handler) OnGetHeaders(p *p2p.Peer, req p2p.GetHeaders) ([]consensus.BlockHeader, error) {
	max := req.Max
	if max == 0 || max > maxHeadersServed {
		max = maxHeadersServed
	}
	best := h.mgr.BestHeight()
	var out []consensus.BlockHeader
	for height := req.FromHeight; height <= best && uint32(len(out)) < max; height++ {
		hash, ok, err := h.db.GetHashAtHeight(height)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		raw, ok, err := h.db.GetHeader(hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		hdr, err := consensus.ParseHeaderBytes(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, hdr)
	}
	return out, nil
}

// maxHeadersServed bounds OnGetHeaders regardless of what Max a peer
// requests, so a misbehaving or buggy peer can't force an unbounded scan.
const maxHeadersServed = 2000

func (h *handler) OnGetBlocks(p *p2p.Peer, hashes []consensus.Hash) ([]consensus.Block, error) {
	var out []consensus.Block
	for _, hash := range hashes {
		raw, ok, err := h.db.GetBlockBody(hash)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		block, err := consensus.ParseBlockBytes(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, block)
	}
	return out, nil
}

func (h *handler) OnBlock(p *p2p.Peer, block consensus.Block) error {
	result, err := h.engine.OnBlock(peerID(p), block)
	if err != nil {
		return err
	}
	if result == chainmgr.AcceptExtended || result == chainmgr.AcceptReorged {
		if gerr := h.engine.GossipNewTip(block); gerr != nil {
			h.logger.Warn().Err(gerr).Msg("gossip new tip failed")
		}
	}
	return nil
}

func (h *handler) OnInvTx(p *p2p.Peer, txids []consensus.Hash) error {
	var wanted []consensus.Hash
	for _, txid := range txids {
		if _, ok := h.pool.Get(txid); ok {
			continue
		}
		wanted = append(wanted, txid)
	}
	if len(wanted) == 0 {
		return nil
	}
	return p.SendGetTx(wanted)
}

func (h *handler) OnGetTx(p *p2p.Peer, txids []consensus.Hash) ([]consensus.Transaction, error) {
	var out []consensus.Transaction
	for _, txid := range txids {
		if entry, ok := h.pool.Get(txid); ok {
			out = append(out, entry.Tx)
		}
	}
	return out, nil
}

func (h *handler) OnTx(p *p2p.Peer, tx consensus.Transaction) error {
	now := uint64(time.Now().Unix())
	if err := h.mgr.SubmitMempoolTx(h.pool, tx, now); err != nil {
		return fmt.Errorf("reject tx from peer: %w", err)
	}
	return nil
}
