// Package p2p implements the node's peer session layer: a framed TCP
// message stream, handshake, ban-scoring, and a per-peer read loop that
// dispatches decoded messages to a Handler. Framing uses a simple
// length-prefix-plus-type-tag layout rather than a fixed header with a
// checksum, and the message set matches the node's own protocol.
package p2p

import (
	"encoding/binary"
	"fmt"
	"io"
)

// LengthPrefixBytes is the size of the frame's length field.
const LengthPrefixBytes = 4

// WriteFrame writes one length-prefixed message: a 4-byte big-endian
// length followed by payload, whose own first byte is its type tag.
func WriteFrame(w io.Writer, maxFrameBytes uint32, payload []byte) error {
	if uint32(len(payload)) > maxFrameBytes {
		return fmt.Errorf("p2p: payload of %d bytes exceeds max frame size %d", len(payload), maxFrameBytes)
	}
	var lenBytes [LengthPrefixBytes]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(payload)))
	if _, err := w.Write(lenBytes[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// FrameError conveys how the caller should treat a malformed frame: a
// ban-score delta to apply, and whether the connection must be dropped.
type FrameError struct {
	Err           error
	BanScoreDelta int
	Disconnect    bool
}

func (e *FrameError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// ReadFrame reads exactly one length-prefixed message from r.
func ReadFrame(r io.Reader, maxFrameBytes uint32) ([]byte, *FrameError) {
	var lenBytes [LengthPrefixBytes]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, &FrameError{Err: err, Disconnect: true}
	}
	n := binary.BigEndian.Uint32(lenBytes[:])
	if n > maxFrameBytes {
		return nil, &FrameError{Err: fmt.Errorf("p2p: frame length %d exceeds max %d", n, maxFrameBytes), Disconnect: true}
	}
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, &FrameError{Err: err, BanScoreDelta: 20, Disconnect: true}
		}
	}
	return payload, nil
}
