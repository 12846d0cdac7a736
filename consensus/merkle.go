package consensus

import "golang.org/x/crypto/sha3"

// Domain-separation tags for the merkle tree. Using distinct tags for leaf
// and inner-node hashing, and a distinct tag pair for the witness tree,
// stops an attacker from relabeling an inner node as a leaf (or vice
// versa) to forge an alternate tree with the same root.
const (
	merkleTagLeaf        byte = 0x00
	merkleTagNode         byte = 0x01
	witnessMerkleTagLeaf byte = 0x02
	witnessMerkleTagNode byte = 0x03
)

func taggedHash(tag byte, a, b []byte) Hash {
	h := sha3.New256()
	h.Write([]byte{tag})
	h.Write(a)
	if b != nil {
		h.Write(b)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func merkleRootTagged(leaves []Hash, leafTag, nodeTag byte) (Hash, error) {
	if len(leaves) == 0 {
		return Hash{}, txerr(ErrBadMerkle, "empty leaf set")
	}
	level := make([]Hash, len(leaves))
	for i, l := range leaves {
		level[i] = taggedHash(leafTag, l[:], nil)
	}
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, taggedHash(nodeTag, level[i][:], level[i+1][:]))
			} else {
				// Odd node at this level: carried forward unchanged
				// rather than duplicated, so a duplicated subtree can
				// never be mistaken for two distinct transactions.
				next = append(next, level[i])
			}
		}
		level = next
	}
	return level[0], nil
}

// MerkleRootTxids computes the canonical transaction-id merkle root.
func MerkleRootTxids(txids []Hash) (Hash, error) {
	return merkleRootTagged(txids, merkleTagLeaf, merkleTagNode)
}

// WitnessMerkleRootWtxids computes the witness merkle root. By convention
// the coinbase's wtxid is taken to be the zero hash in this tree, since a
// coinbase has no witness of its own to commit to.
func WitnessMerkleRootWtxids(wtxids []Hash) (Hash, error) {
	return merkleRootTagged(wtxids, witnessMerkleTagLeaf, witnessMerkleTagNode)
}

// WitnessCommitmentHash binds a witness merkle root into the single hash
// carried in the coinbase's anchor output.
func WitnessCommitmentHash(witnessRoot Hash) Hash {
	return taggedHash(witnessMerkleTagNode, witnessRoot[:], nil)
}
