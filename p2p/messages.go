package p2p

import (
	"fmt"

	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/wire"
)

// Message type tags, the first byte of every frame's payload.
const (
	TagHello      byte = 1
	TagPing       byte = 2
	TagPong       byte = 3
	TagGetHeaders byte = 4
	TagHeaders    byte = 5
	TagGetBlocks  byte = 6
	TagBlock      byte = 7
	TagInvTx      byte = 8
	TagGetTx      byte = 9
	TagTx         byte = 10
)

const (
	maxHeadersPerMessage = 4096
	maxHashesPerMessage  = 4096
)

// Hello is sent first by both sides of a connection. A mismatched
// NetworkID or GenesisHash is grounds for closing the connection with no
// ban-score penalty, since it indicates a different chain, not abuse.
type Hello struct {
	NetworkID       uint32
	GenesisHash     consensus.Hash
	TipHeight       uint64
	TipHash         consensus.Hash
	ProtocolVersion uint32
}

func encodeHello(h Hello) []byte {
	buf := []byte{TagHello}
	buf = wire.AppendU32LE(buf, h.NetworkID)
	buf = wire.AppendHash32(buf, h.GenesisHash)
	buf = wire.AppendU64LE(buf, h.TipHeight)
	buf = wire.AppendHash32(buf, h.TipHash)
	buf = wire.AppendU32LE(buf, h.ProtocolVersion)
	return buf
}

func decodeHello(payload []byte) (Hello, error) {
	c := wire.NewCursor(payload)
	var h Hello
	var err error
	if h.NetworkID, err = c.U32LE(); err != nil {
		return Hello{}, err
	}
	if h.GenesisHash, err = c.Hash32(); err != nil {
		return Hello{}, err
	}
	if h.TipHeight, err = c.U64LE(); err != nil {
		return Hello{}, err
	}
	if h.TipHash, err = c.Hash32(); err != nil {
		return Hello{}, err
	}
	if h.ProtocolVersion, err = c.U32LE(); err != nil {
		return Hello{}, err
	}
	return h, c.RequireConsumed()
}

// Ping/Pong carry a nonce the responder must echo back.
type Ping struct{ Nonce uint64 }
type Pong struct{ Nonce uint64 }

func encodePing(p Ping) []byte { return wire.AppendU64LE([]byte{TagPing}, p.Nonce) }
func encodePong(p Pong) []byte { return wire.AppendU64LE([]byte{TagPong}, p.Nonce) }

func decodePing(payload []byte) (Ping, error) {
	c := wire.NewCursor(payload)
	n, err := c.U64LE()
	if err != nil {
		return Ping{}, err
	}
	return Ping{Nonce: n}, c.RequireConsumed()
}

func decodePong(payload []byte) (Pong, error) {
	c := wire.NewCursor(payload)
	n, err := c.U64LE()
	if err != nil {
		return Pong{}, err
	}
	return Pong{Nonce: n}, c.RequireConsumed()
}

// GetHeaders requests up to Max headers starting at FromHeight.
type GetHeaders struct {
	FromHeight uint64
	Max        uint32
}

func encodeGetHeaders(g GetHeaders) []byte {
	buf := wire.AppendU64LE([]byte{TagGetHeaders}, g.FromHeight)
	return wire.AppendU32LE(buf, g.Max)
}

func decodeGetHeaders(payload []byte) (GetHeaders, error) {
	c := wire.NewCursor(payload)
	from, err := c.U64LE()
	if err != nil {
		return GetHeaders{}, err
	}
	max, err := c.U32LE()
	if err != nil {
		return GetHeaders{}, err
	}
	return GetHeaders{FromHeight: from, Max: max}, c.RequireConsumed()
}

// Headers answers a GetHeaders; an empty list means the sender believes
// the requester is already caught up.
type Headers struct {
	Headers []consensus.BlockHeader
}

func encodeHeaders(h Headers) []byte {
	buf := wire.AppendCompactSize([]byte{TagHeaders}, uint64(len(h.Headers)))
	for _, hdr := range h.Headers {
		buf = append(buf, consensus.HeaderBytes(hdr)...)
	}
	return buf
}

func decodeHeaders(payload []byte) (Headers, error) {
	c := wire.NewCursor(payload)
	n, err := c.CompactSize()
	if err != nil {
		return Headers{}, err
	}
	if n > maxHeadersPerMessage {
		return Headers{}, wire.ErrFieldTooLarge
	}
	out := make([]consensus.BlockHeader, 0, n)
	for i := uint64(0); i < n; i++ {
		raw, err := c.Bytes(consensus.BlockHeaderBytes)
		if err != nil {
			return Headers{}, err
		}
		hdr, err := consensus.ParseHeaderBytes(raw)
		if err != nil {
			return Headers{}, err
		}
		out = append(out, hdr)
	}
	return Headers{Headers: out}, c.RequireConsumed()
}

func encodeHashList(tag byte, hashes []consensus.Hash) []byte {
	buf := wire.AppendCompactSize([]byte{tag}, uint64(len(hashes)))
	for _, h := range hashes {
		buf = wire.AppendHash32(buf, h)
	}
	return buf
}

func decodeHashList(payload []byte) ([]consensus.Hash, error) {
	c := wire.NewCursor(payload)
	n, err := c.CompactSize()
	if err != nil {
		return nil, err
	}
	if n > maxHashesPerMessage {
		return nil, wire.ErrFieldTooLarge
	}
	out := make([]consensus.Hash, 0, n)
	for i := uint64(0); i < n; i++ {
		h, err := c.Hash32()
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, c.RequireConsumed()
}

// GetBlocks requests full bodies for the given header hashes.
type GetBlocks struct{ Hashes []consensus.Hash }

func encodeGetBlocks(g GetBlocks) []byte { return encodeHashList(TagGetBlocks, g.Hashes) }
func decodeGetBlocks(payload []byte) (GetBlocks, error) {
	h, err := decodeHashList(payload)
	return GetBlocks{Hashes: h}, err
}

// BlockMsg carries one full block, either as a GetBlocks response or
// unsolicited on a local tip change.
type BlockMsg struct{ Block consensus.Block }

func encodeBlock(b BlockMsg) []byte {
	return append([]byte{TagBlock}, consensus.BlockBytes(b.Block)...)
}

func decodeBlock(payload []byte) (BlockMsg, error) {
	blk, err := consensus.ParseBlockBytes(payload)
	if err != nil {
		return BlockMsg{}, err
	}
	return BlockMsg{Block: blk}, nil
}

// InvTx announces transaction hashes the sender holds.
type InvTx struct{ Txids []consensus.Hash }

func encodeInvTx(i InvTx) []byte { return encodeHashList(TagInvTx, i.Txids) }
func decodeInvTx(payload []byte) (InvTx, error) {
	h, err := decodeHashList(payload)
	return InvTx{Txids: h}, err
}

// GetTx requests transactions by hash.
type GetTx struct{ Txids []consensus.Hash }

func encodeGetTx(g GetTx) []byte { return encodeHashList(TagGetTx, g.Txids) }
func decodeGetTx(payload []byte) (GetTx, error) {
	h, err := decodeHashList(payload)
	return GetTx{Txids: h}, err
}

// TxMsg carries one transaction, either as a GetTx response or gossip.
type TxMsg struct{ Tx consensus.Transaction }

func encodeTx(t TxMsg) []byte {
	return append([]byte{TagTx}, consensus.TxBytes(t.Tx)...)
}

func decodeTx(payload []byte) (TxMsg, error) {
	tx, _, err := consensus.ParseTx(payload)
	if err != nil {
		return TxMsg{}, err
	}
	return TxMsg{Tx: tx}, nil
}

func decodeTypeTag(payload []byte) (byte, []byte, error) {
	if len(payload) == 0 {
		return 0, nil, fmt.Errorf("p2p: empty message payload")
	}
	return payload[0], payload[1:], nil
}
