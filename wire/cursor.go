// Package wire implements the canonical binary codec shared by every
// on-disk and on-wire structure: fixed-width little-endian integers,
// CompactSize variable-length integers with strict minimal-encoding
// enforcement, and a small cursor type for sequential, bounds-checked
// decoding.
package wire

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned when a decode needs more bytes than remain.
var ErrTruncated = errors.New("wire: truncated input")

// ErrTrailingBytes is returned when a decode left unconsumed input after
// the caller expected the whole buffer to be consumed.
var ErrTrailingBytes = errors.New("wire: trailing bytes")

// ErrNonMinimal is returned when a CompactSize value was not encoded in
// its shortest form.
var ErrNonMinimal = errors.New("wire: non-minimal compactsize")

// ErrFieldTooLarge is returned when a length-prefixed field exceeds the
// caller-supplied bound.
var ErrFieldTooLarge = errors.New("wire: field exceeds maximum size")

// Cursor is a bounds-checked forward-only reader over a byte slice.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential decoding.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos returns the number of bytes consumed so far.
func (c *Cursor) Pos() int { return c.pos }

// Remaining returns the number of unconsumed bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Done reports whether every byte has been consumed.
func (c *Cursor) Done() bool { return c.pos == len(c.buf) }

// RequireConsumed returns ErrTrailingBytes unless the cursor is exhausted.
func (c *Cursor) RequireConsumed() error {
	if !c.Done() {
		return ErrTrailingBytes
	}
	return nil
}

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, ErrTruncated
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Bytes reads exactly n raw bytes.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	return c.take(n)
}

// Hash32 reads a raw, non-length-prefixed 32-byte hash field.
func (c *Cursor) Hash32() ([32]byte, error) {
	var out [32]byte
	b, err := c.take(32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// U8 reads a single byte.
func (c *Cursor) U8() (byte, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16LE reads a little-endian uint16.
func (c *Cursor) U16LE() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32LE reads a little-endian uint32.
func (c *Cursor) U32LE() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64LE reads a little-endian uint64.
func (c *Cursor) U64LE() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// CompactSize reads a Bitcoin-style variable-length integer, rejecting any
// encoding that is not the shortest possible for the decoded value.
func (c *Cursor) CompactSize() (uint64, error) {
	prefix, err := c.U8()
	if err != nil {
		return 0, err
	}
	switch {
	case prefix < 0xFD:
		return uint64(prefix), nil
	case prefix == 0xFD:
		v, err := c.U16LE()
		if err != nil {
			return 0, err
		}
		if v < 0xFD {
			return 0, ErrNonMinimal
		}
		return uint64(v), nil
	case prefix == 0xFE:
		v, err := c.U32LE()
		if err != nil {
			return 0, err
		}
		if v <= 0xFFFF {
			return 0, ErrNonMinimal
		}
		return uint64(v), nil
	default:
		v, err := c.U64LE()
		if err != nil {
			return 0, err
		}
		if v <= 0xFFFF_FFFF {
			return 0, ErrNonMinimal
		}
		return v, nil
	}
}

// BoundedBytes reads a CompactSize-prefixed byte field no longer than max.
func (c *Cursor) BoundedBytes(max uint64) ([]byte, error) {
	n, err := c.CompactSize()
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, ErrFieldTooLarge
	}
	return c.take(int(n))
}
