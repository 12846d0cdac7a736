package pqcrypto

import (
	"crypto/rand"

	"github.com/cloudflare/circl/sign/mldsa/mldsa87"
)

// generateMLDSA87 produces a fresh ML-DSA-87 keypair ("Dilithium5" in the
// wire/data model's naming). Public keys are ~2592 bytes, secret keys
// ~4896, signatures ~4627.
func generateMLDSA87() (pub, priv []byte, err error) {
	p, s, err := mldsa87.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, errf(BadInput, "mldsa87 keygen: %v", err)
	}
	var pubBytes [mldsa87.PublicKeySize]byte
	var privBytes [mldsa87.PrivateKeySize]byte
	p.Pack(&pubBytes)
	s.Pack(&privBytes)
	return pubBytes[:], privBytes[:], nil
}

func signMLDSA87(priv, msg []byte) ([]byte, error) {
	if len(priv) != mldsa87.PrivateKeySize {
		return nil, errf(BadInput, "mldsa87 private key must be %d bytes, got %d", mldsa87.PrivateKeySize, len(priv))
	}
	var skBytes [mldsa87.PrivateKeySize]byte
	copy(skBytes[:], priv)
	var sk mldsa87.PrivateKey
	sk.Unpack(&skBytes)

	sig := make([]byte, mldsa87.SignatureSize)
	mldsa87.SignTo(&sk, msg, nil, false, sig)
	return sig, nil
}

func verifyMLDSA87(pub, msg, sig []byte) bool {
	if len(pub) != mldsa87.PublicKeySize || len(sig) != mldsa87.SignatureSize {
		return false
	}
	var pkBytes [mldsa87.PublicKeySize]byte
	copy(pkBytes[:], pub)
	var pk mldsa87.PublicKey
	pk.Unpack(&pkBytes)
	return mldsa87.Verify(&pk, msg, nil, sig)
}
