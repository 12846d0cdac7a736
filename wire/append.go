package wire

import "encoding/binary"

// AppendU8 appends a single byte.
func AppendU8(dst []byte, v byte) []byte {
	return append(dst, v)
}

// AppendU16LE appends a little-endian uint16.
func AppendU16LE(dst []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(dst, b[:]...)
}

// AppendU32LE appends a little-endian uint32.
func AppendU32LE(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// AppendU64LE appends a little-endian uint64.
func AppendU64LE(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// AppendHash32 appends a raw 32-byte hash with no length prefix.
func AppendHash32(dst []byte, h [32]byte) []byte {
	return append(dst, h[:]...)
}

// AppendCompactSize appends value using the shortest valid CompactSize form.
func AppendCompactSize(dst []byte, value uint64) []byte {
	switch {
	case value < 0xFD:
		return append(dst, byte(value))
	case value <= 0xFFFF:
		dst = append(dst, 0xFD)
		return AppendU16LE(dst, uint16(value))
	case value <= 0xFFFF_FFFF:
		dst = append(dst, 0xFE)
		return AppendU32LE(dst, uint32(value))
	default:
		dst = append(dst, 0xFF)
		return AppendU64LE(dst, value)
	}
}

// AppendBoundedBytes appends b prefixed with its CompactSize length. The
// caller is responsible for ensuring len(b) respects whatever maximum the
// corresponding reader will enforce.
func AppendBoundedBytes(dst []byte, b []byte) []byte {
	dst = AppendCompactSize(dst, uint64(len(b)))
	return append(dst, b...)
}
