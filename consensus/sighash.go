package consensus

import "github.com/photon-chain/node/wire"

// SighashDigest computes the per-input signing digest. The transaction's
// signing hash is its identity hash with signatures zeroed, which here
// is TxID — the witness-stripped encoding. The digest is
// additionally domain-separated by network id, input index, and the value
// of the output being spent, binding the chain, position, and amount into
// every signature so it cannot be replayed across networks, inputs, or a
// different spend value.
func SighashDigest(networkID uint32, tx Transaction, inputIndex int, prevValue uint64) Hash {
	txid := TxID(tx)
	buf := make([]byte, 0, 32+4+4+8)
	buf = append(buf, txid[:]...)
	buf = wire.AppendU32LE(buf, networkID)
	buf = wire.AppendU32LE(buf, uint32(inputIndex))
	buf = wire.AppendU64LE(buf, prevValue)
	return sha3_256(buf)
}
