package p2p

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/consensus"
)

// Handler reacts to decoded messages arriving from a peer. Errors from
// OnBlock/OnTx/OnHeaders are treated as protocol violations and increase
// the peer's ban score; errors from the request handlers (OnGetHeaders,
// OnGetBlocks, OnGetTx) are local failures and never penalize the peer.
type Handler interface {
	OnHeaders(peer *Peer, headers []consensus.BlockHeader) error
	OnGetHeaders(peer *Peer, req GetHeaders) ([]consensus.BlockHeader, error)
	OnGetBlocks(peer *Peer, hashes []consensus.Hash) ([]consensus.Block, error)
	OnBlock(peer *Peer, block consensus.Block) error
	OnInvTx(peer *Peer, txids []consensus.Hash) error
	OnGetTx(peer *Peer, txids []consensus.Hash) ([]consensus.Transaction, error)
	OnTx(peer *Peer, tx consensus.Transaction) error
}

// Peer is one framed TCP session with a remote node, past its handshake.
type Peer struct {
	Conn      net.Conn
	Outbound  bool
	Params    chainparams.Params
	PeerHello Hello
	Version   uint32

	Ban          BanScore
	lastPingSent time.Time
	pendingPing  uint64
}

// Dial opens an outbound connection to addr and completes the handshake.
func Dial(ctx context.Context, addr string, params chainparams.Params, ours Hello) (*Peer, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	res, err := Handshake(conn, params, ours)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Peer{Conn: conn, Outbound: true, Params: params, PeerHello: res.PeerHello, Version: res.NegotiatedVersion}, nil
}

// Accept completes the handshake on an already-accepted inbound conn.
func Accept(conn net.Conn, params chainparams.Params, ours Hello) (*Peer, error) {
	res, err := Handshake(conn, params, ours)
	if err != nil {
		return nil, err
	}
	return &Peer{Conn: conn, Outbound: false, Params: params, PeerHello: res.PeerHello, Version: res.NegotiatedVersion}, nil
}

func (p *Peer) send(payload []byte) error {
	return WriteFrame(p.Conn, p.Params.MaxFrameBytes, payload)
}

func (p *Peer) SendPing(nonce uint64) error {
	p.lastPingSent = time.Now()
	p.pendingPing = nonce
	return p.send(encodePing(Ping{Nonce: nonce}))
}

func (p *Peer) SendGetHeaders(fromHeight uint64, max uint32) error {
	return p.send(encodeGetHeaders(GetHeaders{FromHeight: fromHeight, Max: max}))
}

func (p *Peer) SendHeaders(headers []consensus.BlockHeader) error {
	return p.send(encodeHeaders(Headers{Headers: headers}))
}

func (p *Peer) SendGetBlocks(hashes []consensus.Hash) error {
	return p.send(encodeGetBlocks(GetBlocks{Hashes: hashes}))
}

func (p *Peer) SendBlock(block consensus.Block) error {
	return p.send(encodeBlock(BlockMsg{Block: block}))
}

func (p *Peer) SendInvTx(txids []consensus.Hash) error {
	return p.send(encodeInvTx(InvTx{Txids: txids}))
}

func (p *Peer) SendGetTx(txids []consensus.Hash) error {
	return p.send(encodeGetTx(GetTx{Txids: txids}))
}

func (p *Peer) SendTx(tx consensus.Transaction) error {
	return p.send(encodeTx(TxMsg{Tx: tx}))
}

// Run drives the peer's read loop until ctx is cancelled, the connection
// closes, or the peer is banned. h dispatches every decoded message.
func (p *Peer) Run(ctx context.Context, h Handler) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = p.Conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p.Params.PingTimeout > 0 {
			_ = p.Conn.SetReadDeadline(time.Now().Add(p.Params.PingTimeout))
		}
		payload, ferr := ReadFrame(p.Conn, p.Params.MaxFrameBytes)
		if ferr != nil {
			now := time.Now()
			p.Ban.Add(now, ferr.BanScoreDelta)
			if p.Ban.ShouldBan(now, int(p.Params.BanThreshold)) {
				return fmt.Errorf("p2p: peer banned (score=%d): %w", p.Ban.Score(now), ferr.Err)
			}
			if ferr.Disconnect {
				return ferr
			}
			continue
		}

		now := time.Now()
		if p.Ban.ShouldThrottle(now, int(p.Params.ThrottleThresh)) {
			time.Sleep(100 * time.Millisecond)
		}

		if err := p.dispatch(now, payload, h); err != nil {
			return err
		}
	}
}

func (p *Peer) dispatch(now time.Time, payload []byte, h Handler) error {
	tag, body, err := decodeTypeTag(payload)
	if err != nil {
		p.Ban.Add(now, 10)
		return nil
	}

	switch tag {
	case TagPing:
		msg, err := decodePing(body)
		if err != nil {
			p.Ban.Add(now, 10)
			return nil
		}
		return p.send(encodePong(Pong{Nonce: msg.Nonce}))

	case TagPong:
		msg, err := decodePong(body)
		if err == nil && msg.Nonce == p.pendingPing {
			p.pendingPing = 0
		}
		return nil

	case TagGetHeaders:
		req, err := decodeGetHeaders(body)
		if err != nil {
			p.Ban.Add(now, 10)
			return nil
		}
		headers, err := h.OnGetHeaders(p, req)
		if err != nil {
			return nil
		}
		return p.SendHeaders(headers)

	case TagHeaders:
		msg, err := decodeHeaders(body)
		if err != nil {
			p.Ban.Add(now, 10)
			return nil
		}
		if err := h.OnHeaders(p, msg.Headers); err != nil {
			p.Ban.Add(now, 100)
			if p.Ban.ShouldBan(now, int(p.Params.BanThreshold)) {
				return fmt.Errorf("p2p: peer banned for invalid headers: %w", err)
			}
		}
		return nil

	case TagGetBlocks:
		req, err := decodeGetBlocks(body)
		if err != nil {
			p.Ban.Add(now, 10)
			return nil
		}
		blocks, err := h.OnGetBlocks(p, req.Hashes)
		if err != nil {
			return nil
		}
		for _, b := range blocks {
			if err := p.SendBlock(b); err != nil {
				return err
			}
		}
		return nil

	case TagBlock:
		msg, err := decodeBlock(body)
		if err != nil {
			p.Ban.Add(now, 10)
			return nil
		}
		if err := h.OnBlock(p, msg.Block); err != nil {
			p.Ban.Add(now, 100)
			if p.Ban.ShouldBan(now, int(p.Params.BanThreshold)) {
				return fmt.Errorf("p2p: peer banned for invalid block: %w", err)
			}
		}
		return nil

	case TagInvTx:
		msg, err := decodeInvTx(body)
		if err != nil {
			p.Ban.Add(now, 10)
			return nil
		}
		if err := h.OnInvTx(p, msg.Txids); err != nil {
			p.Ban.Add(now, 5)
		}
		return nil

	case TagGetTx:
		req, err := decodeGetTx(body)
		if err != nil {
			p.Ban.Add(now, 10)
			return nil
		}
		txs, err := h.OnGetTx(p, req.Txids)
		if err != nil {
			return nil
		}
		for _, tx := range txs {
			if err := p.SendTx(tx); err != nil {
				return err
			}
		}
		return nil

	case TagTx:
		msg, err := decodeTx(body)
		if err != nil {
			p.Ban.Add(now, 10)
			return nil
		}
		if err := h.OnTx(p, msg.Tx); err != nil {
			p.Ban.Add(now, 5)
		}
		return nil

	default:
		return nil
	}
}
