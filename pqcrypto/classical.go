package pqcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"io"
)

func readRandom(b []byte) (int, error) {
	return io.ReadFull(rand.Reader, b)
}

// AlgClassicalTest exists purely so conformance fixtures and unit tests can
// sign fast, deterministic vectors without paying ML-DSA's cost; it is
// disposable scaffolding, never a production signature path.
func generateClassicalTest() (pub, priv []byte, err error) {
	p, s, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, errf(BadInput, "classical-test keygen: %v", err)
	}
	return []byte(p), []byte(s), nil
}

func signClassicalTest(priv, msg []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errf(BadInput, "classical-test private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), msg), nil
}

func verifyClassicalTest(pub, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}
