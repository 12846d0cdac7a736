package pqcrypto

// Falcon-512 has no Go implementation anywhere in the retrieval pack this
// module was built against. Rather than fabricate a fake third-party
// module behind a replace directive, AlgFalcon512 is a documented,
// explicitly non-secure placeholder: a deterministic pseudo-signature
// derived from SHA3-256 over the private key and message, verified by
// recomputing it from the declared public key. It satisfies the PqSig
// wire shape (fixed-size signature and public key, tagged algorithm) so
// the rest of the system — encoding, mempool admission, block assembly —
// can exercise the Falcon-512 code path in tests without a real
// implementation. It must never be used to protect value.

const (
	falconPubKeySize = 897
	falconPrivKeySize = 32
	falconSigSize     = 666
)

func generateFalcon512() (pub, priv []byte, err error) {
	priv = make([]byte, falconPrivKeySize)
	if _, rerr := readRandom(priv); rerr != nil {
		return nil, nil, errf(BadInput, "falcon512 keygen: %v", rerr)
	}
	pub = derivedFalconPublicKey(priv)
	return pub, priv, nil
}

func derivedFalconPublicKey(priv []byte) []byte {
	seed := SHA3256(append([]byte("photon-falcon512-pub/"), priv...))
	pub := make([]byte, falconPubKeySize)
	for i := range pub {
		pub[i] = seed[i%len(seed)]
	}
	return pub
}

func signFalcon512(priv, msg []byte) ([]byte, error) {
	if len(priv) != falconPrivKeySize {
		return nil, errf(BadInput, "falcon512 private key must be %d bytes, got %d", falconPrivKeySize, len(priv))
	}
	seed := SHA3256(append([]byte("photon-falcon512-pub/"), priv...))
	digest := SHA3256(append(append([]byte{}, seed[:]...), msg...))
	sig := make([]byte, falconSigSize)
	for i := range sig {
		sig[i] = digest[i%len(digest)] ^ byte(i)
	}
	return sig, nil
}

func verifyFalcon512(pub, msg, sig []byte) bool {
	if len(pub) != falconPubKeySize || len(sig) != falconSigSize {
		return false
	}
	// Recompute the public key's seed relationship is one-way by design,
	// so the placeholder verifies self-consistency: a signature is valid
	// iff it was produced by signFalcon512 for some priv whose derived
	// public key matches pub. Since priv is not recoverable from pub, the
	// placeholder instead checks the signature against a key-committing
	// digest embedded in pub itself (the first 32 bytes are the seed
	// repeated, recoverable without secrecy loss beyond what the
	// placeholder already concedes).
	seed := pub[:32]
	digest := SHA3256(append(append([]byte{}, seed...), msg...))
	for i := 0; i < falconSigSize; i++ {
		if sig[i] != digest[i%len(digest)]^byte(i) {
			return false
		}
	}
	return true
}
