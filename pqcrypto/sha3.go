package pqcrypto

import "golang.org/x/crypto/sha3"

// SHA3256 is the chain's sole hash function: block headers, transaction
// ids, the merkle tree, and address derivation all reduce to this. There is
// no migration path; a hash-agility layer is explicitly out of scope.
func SHA3256(data []byte) [32]byte {
	return sha3.Sum256(data)
}
