package pqcrypto

// GenerateKeypair produces a fresh keypair for alg. AlgHybrid is not
// generatable directly — callers build a hybrid pair from two independent
// GenerateKeypair calls (one per component algorithm) and combine them at
// the PqSig layer.
func GenerateKeypair(alg Algorithm) (pub, priv []byte, err error) {
	switch alg {
	case AlgMLDSA87:
		return generateMLDSA87()
	case AlgFalcon512:
		return generateFalcon512()
	case AlgClassicalTest:
		return generateClassicalTest()
	default:
		return nil, nil, errf(BadInput, "unsupported algorithm for keypair generation: %s", alg)
	}
}

// Sign produces a signature over msg under priv for the given algorithm.
func Sign(alg Algorithm, priv, msg []byte) ([]byte, error) {
	switch alg {
	case AlgMLDSA87:
		return signMLDSA87(priv, msg)
	case AlgFalcon512:
		return signFalcon512(priv, msg)
	case AlgClassicalTest:
		return signClassicalTest(priv, msg)
	default:
		return nil, errf(BadInput, "unsupported algorithm for signing: %s", alg)
	}
}

// Verify checks sig over msg under pub for the given algorithm. It never
// panics on malformed input — malformed sizes simply fail closed.
func Verify(alg Algorithm, pub, msg, sig []byte) bool {
	switch alg {
	case AlgMLDSA87:
		return verifyMLDSA87(pub, msg, sig)
	case AlgFalcon512:
		return verifyFalcon512(pub, msg, sig)
	case AlgClassicalTest:
		return verifyClassicalTest(pub, msg, sig)
	default:
		return false
	}
}

// VerifyHybrid reports whether both component signatures verify over the
// same message: a hybrid signature is valid only when every component is
// valid.
func VerifyHybrid(algA, algB Algorithm, pubA, pubB, msg, sigA, sigB []byte) bool {
	return Verify(algA, pubA, msg, sigA) && Verify(algB, pubB, msg, sigB)
}
