// Package pqcrypto implements the chain's cryptographic primitives: the
// fixed SHA3-256 hash function, post-quantum signature algorithms tagged by
// a small compile-time-known enum, ML-KEM-1024 key encapsulation for the
// wallet layer, AES-256-GCM AEAD, and Argon2id key derivation.
package pqcrypto

import "fmt"

// Algorithm tags the signature scheme a PqSig was produced with. The set is
// finite and known at compile time, so verification dispatches on the tag
// rather than through an open interface.
type Algorithm uint8

const (
	AlgMLDSA87 Algorithm = iota
	AlgFalcon512
	AlgHybrid
	AlgClassicalTest
)

func (a Algorithm) String() string {
	switch a {
	case AlgMLDSA87:
		return "ML-DSA-87"
	case AlgFalcon512:
		return "Falcon-512"
	case AlgHybrid:
		return "Hybrid"
	case AlgClassicalTest:
		return "ClassicalTest"
	default:
		return fmt.Sprintf("Algorithm(%d)", uint8(a))
	}
}

// ErrorKind enumerates the narrow set of crypto failure classes.
type ErrorKind string

const (
	BadInput     ErrorKind = "bad_input"
	BadSignature ErrorKind = "bad_signature"
	BadAead      ErrorKind = "bad_aead"
)

// CryptoError is returned by every fallible operation in this package.
type CryptoError struct {
	Kind ErrorKind
	Msg  string
}

func (e *CryptoError) Error() string {
	if e.Msg == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Msg
}

func errf(kind ErrorKind, format string, args ...any) *CryptoError {
	return &CryptoError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
