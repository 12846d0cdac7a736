package consensus

import "golang.org/x/crypto/sha3"

func sha3_256(b []byte) Hash {
	return Hash(sha3.Sum256(b))
}

// BlockHash is the SHA3-256 digest of a header's canonical encoding. It is
// never stored on BlockHeader itself — always recomputed from bytes, so
// there is no stored field that can drift out of sync with the header it
// supposedly hashes.
func BlockHash(h BlockHeader) Hash {
	return sha3_256(HeaderBytes(h))
}

// TxID is a transaction's identity hash: the witness-stripped encoding,
// with signatures zeroed. Re-signing a transaction never changes its
// TxID, so outpoints, the block's merkle root, and mempool keys all
// stay stable across malleation of the witness alone.
func TxID(tx Transaction) Hash {
	return sha3_256(TxBytesNoWitness(tx))
}

// WTxID is the witness-inclusive identity hash, used for the witness
// merkle tree so that committing to it actually commits to the
// signatures a block carries.
func WTxID(tx Transaction) Hash {
	return sha3_256(TxBytes(tx))
}
