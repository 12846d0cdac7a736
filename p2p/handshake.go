package p2p

import (
	"fmt"
	"net"
	"time"

	"github.com/photon-chain/node/chainparams"
)

// HandshakeTimeout bounds how long a side waits for the peer's Hello.
const HandshakeTimeout = 10 * time.Second

// HandshakeResult is what a completed handshake yields: the peer's
// advertised state and the protocol version both sides will now use.
type HandshakeResult struct {
	PeerHello       Hello
	NegotiatedVersion uint32
}

// Handshake exchanges Hello messages over conn. A NetworkID or
// GenesisHash mismatch closes the connection without any ban-score
// penalty, since it reflects a different chain rather than misbehavior.
// Rather than requiring exact version equality, the negotiated version
// is min(local, peer) — the two sides simply speak whichever dialect
// both understand.
func Handshake(conn net.Conn, params chainparams.Params, ours Hello) (*HandshakeResult, error) {
	if conn == nil {
		return nil, fmt.Errorf("p2p: handshake: nil conn")
	}
	ours.ProtocolVersion = params.ProtocolVersion

	if err := WriteFrame(conn, params.MaxFrameBytes, encodeHello(ours)); err != nil {
		return nil, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	payload, ferr := ReadFrame(conn, params.MaxFrameBytes)
	if ferr != nil {
		return nil, ferr
	}
	tag, body, err := decodeTypeTag(payload)
	if err != nil {
		return nil, err
	}
	if tag != TagHello {
		return nil, fmt.Errorf("p2p: handshake: expected Hello, got tag %d", tag)
	}
	peerHello, err := decodeHello(body)
	if err != nil {
		return nil, err
	}

	if peerHello.NetworkID != ours.NetworkID {
		return nil, fmt.Errorf("p2p: handshake: network_id mismatch")
	}
	if peerHello.GenesisHash != ours.GenesisHash {
		return nil, fmt.Errorf("p2p: handshake: genesis_hash mismatch")
	}

	_ = conn.SetReadDeadline(time.Time{})
	version := ours.ProtocolVersion
	if peerHello.ProtocolVersion < version {
		version = peerHello.ProtocolVersion
	}
	return &HandshakeResult{PeerHello: peerHello, NegotiatedVersion: version}, nil
}
