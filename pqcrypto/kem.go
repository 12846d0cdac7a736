package pqcrypto

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem1024"
)

// KEMGenerate produces a fresh ML-KEM-1024 ("Kyber-1024") keypair for the
// wallet-layer recovery path.
func KEMGenerate() (pub, priv []byte, err error) {
	pk, sk, err := mlkem1024.Scheme().GenerateKeyPair()
	if err != nil {
		return nil, nil, errf(BadInput, "mlkem1024 keygen: %v", err)
	}
	pubBytes, err := pk.MarshalBinary()
	if err != nil {
		return nil, nil, errf(BadInput, "mlkem1024 pack pub: %v", err)
	}
	privBytes, err := sk.MarshalBinary()
	if err != nil {
		return nil, nil, errf(BadInput, "mlkem1024 pack priv: %v", err)
	}
	return pubBytes, privBytes, nil
}

// KEMEncapsulate derives a fresh shared secret and its ciphertext under pub.
func KEMEncapsulate(pub []byte) (ct, sharedSecret []byte, err error) {
	scheme := mlkem1024.Scheme()
	pk, err := scheme.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return nil, nil, errf(BadInput, "mlkem1024 unpack pub: %v", err)
	}
	ct, ss, err := scheme.Encapsulate(pk)
	if err != nil {
		return nil, nil, errf(BadInput, "mlkem1024 encapsulate: %v", err)
	}
	return ct, ss, nil
}

// KEMDecapsulate recovers the shared secret encapsulated in ct under priv.
func KEMDecapsulate(priv, ct []byte) (sharedSecret []byte, err error) {
	scheme := mlkem1024.Scheme()
	sk, err := scheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, errf(BadInput, "mlkem1024 unpack priv: %v", err)
	}
	ss, err := scheme.Decapsulate(sk, ct)
	if err != nil {
		return nil, errf(BadInput, "mlkem1024 decapsulate: %v", err)
	}
	return ss, nil
}
