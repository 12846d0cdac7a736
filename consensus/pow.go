package consensus

import "math/big"

// targetToBig interprets a raw 32-byte target as a big-endian unsigned
// integer, the same convention PowCheck uses to compare it against a
// block hash.
func targetToBig(t Hash) *big.Int {
	return new(big.Int).SetBytes(t[:])
}

func bigToTarget32(v *big.Int) Hash {
	var out Hash
	b := v.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}

// PowCheck reports whether header, interpreted as a big-endian integer via
// its hash, is strictly less than target.
func PowCheck(h BlockHeader, target Hash) error {
	hash := BlockHash(h)
	hashInt := new(big.Int).SetBytes(hash[:])
	targetInt := targetToBig(target)
	if hashInt.Cmp(targetInt) >= 0 {
		return txerr(ErrBadPoW, "hash does not meet target")
	}
	return nil
}

// RetargetV1 computes the next difficulty target from the actual and
// expected durations of the most recent retarget window, clamped to
// [oldTarget/4, oldTarget*4] and never looser than powLimit.
func RetargetV1(oldTarget Hash, actualTimespan, expectedTimespan uint64, powLimit Hash) Hash {
	if actualTimespan < expectedTimespan/4 {
		actualTimespan = expectedTimespan / 4
	}
	if actualTimespan > expectedTimespan*4 {
		actualTimespan = expectedTimespan * 4
	}

	old := targetToBig(oldTarget)
	next := new(big.Int).Mul(old, big.NewInt(int64(actualTimespan)))
	next.Div(next, big.NewInt(int64(expectedTimespan)))

	limit := targetToBig(powLimit)
	if next.Cmp(limit) > 0 {
		next = limit
	}
	return bigToTarget32(next)
}
