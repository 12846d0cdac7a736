package pqcrypto

import "golang.org/x/crypto/argon2"

// KDFParams are the pinned Argon2id parameters for one keystore record.
// They are generated once at record creation and stored alongside the
// ciphertext, so a later change to the node's defaults never invalidates
// existing records.
type KDFParams struct {
	TimeCost    uint32
	MemoryKiB   uint32
	Parallelism uint8
	KeyLen      uint32
}

// DefaultKDFParams is used for newly created keystore records.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		TimeCost:    3,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
	}
}

// Argon2idDerive derives a key of params.KeyLen bytes from password and
// salt under the pinned parameters.
func Argon2idDerive(password, salt []byte, params KDFParams) []byte {
	return argon2.IDKey(password, salt, params.TimeCost, params.MemoryKiB, params.Parallelism, params.KeyLen)
}

// NewSalt fills a fresh random 16-byte KDF salt.
func NewSalt() ([16]byte, error) {
	var s [16]byte
	if _, err := readRandom(s[:]); err != nil {
		return s, errf(BadInput, "kdf: salt generation: %v", err)
	}
	return s, nil
}
