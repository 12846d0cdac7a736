package pqcrypto

import (
	"crypto/aes"
	"crypto/cipher"
)

// AEADSeal encrypts pt under key (32 bytes, AES-256) and the given 12-byte
// nonce, binding aad. golang.org/x/crypto only ships ChaCha20-Poly1305,
// so stdlib crypto/aes + crypto/cipher is the canonical AES-GCM
// implementation here, not a fallback.
func AEADSeal(key, nonce, aad, pt []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, errf(BadInput, "aead: nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}
	return gcm.Seal(nil, nonce, pt, aad), nil
}

// AEADOpen decrypts and authenticates ct, returning BadAead on any
// authentication failure.
func AEADOpen(key, nonce, aad, ct []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, errf(BadInput, "aead: nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}
	pt, err := gcm.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, errf(BadAead, "authentication failed")
	}
	return pt, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, errf(BadInput, "aead: key must be 32 bytes (AES-256), got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errf(BadInput, "aead: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errf(BadInput, "aead: %v", err)
	}
	return gcm, nil
}

// NewNonce fills a fresh random 12-byte GCM nonce.
func NewNonce() ([12]byte, error) {
	var n [12]byte
	if _, err := readRandom(n[:]); err != nil {
		return n, errf(BadInput, "aead: nonce generation: %v", err)
	}
	return n, nil
}
