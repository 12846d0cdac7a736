package consensus

import (
	"github.com/photon-chain/node/wire"
)

// HeaderBytes canonically encodes a block header. This is also the hash
// preimage: BlockHash(h) == SHA3_256(HeaderBytes(h)).
func HeaderBytes(h BlockHeader) []byte {
	b := make([]byte, 0, BlockHeaderBytes)
	b = wire.AppendU32LE(b, h.Version)
	b = wire.AppendHash32(b, h.PrevHash)
	b = wire.AppendHash32(b, h.MerkleRoot)
	b = wire.AppendU64LE(b, h.Timestamp)
	b = wire.AppendHash32(b, h.Target)
	b = wire.AppendU64LE(b, h.Nonce)
	return b
}

// ParseHeaderBytes decodes exactly BlockHeaderBytes bytes into a header.
func ParseHeaderBytes(b []byte) (BlockHeader, error) {
	c := wire.NewCursor(b)
	var h BlockHeader
	var err error
	if h.Version, err = c.U32LE(); err != nil {
		return h, err
	}
	if h.PrevHash, err = c.Hash32(); err != nil {
		return h, err
	}
	if h.MerkleRoot, err = c.Hash32(); err != nil {
		return h, err
	}
	if h.Timestamp, err = c.U64LE(); err != nil {
		return h, err
	}
	if h.Target, err = c.Hash32(); err != nil {
		return h, err
	}
	if h.Nonce, err = c.U64LE(); err != nil {
		return h, err
	}
	if err := c.RequireConsumed(); err != nil {
		return h, err
	}
	return h, nil
}

func txOutBytes(dst []byte, o TxOut) []byte {
	dst = wire.AppendU64LE(dst, o.Value)
	dst = wire.AppendU16LE(dst, o.CovenantType)
	dst = wire.AppendBoundedBytes(dst, o.CovenantData)
	return dst
}

func parseTxOut(c *wire.Cursor) (TxOut, error) {
	var o TxOut
	var err error
	if o.Value, err = c.U64LE(); err != nil {
		return o, err
	}
	if o.CovenantType, err = c.U16LE(); err != nil {
		return o, err
	}
	if o.CovenantData, err = c.BoundedBytes(MaxCovenantBytes); err != nil {
		return o, err
	}
	return o, nil
}

func txInBytes(dst []byte, in TxIn) []byte {
	dst = wire.AppendHash32(dst, in.PrevOut.Txid)
	dst = wire.AppendU32LE(dst, in.PrevOut.Vout)
	dst = wire.AppendU32LE(dst, in.Sequence)
	return dst
}

func parseTxIn(c *wire.Cursor) (TxIn, error) {
	var in TxIn
	var err error
	if in.PrevOut.Txid, err = c.Hash32(); err != nil {
		return in, err
	}
	if in.PrevOut.Vout, err = c.U32LE(); err != nil {
		return in, err
	}
	if in.Sequence, err = c.U32LE(); err != nil {
		return in, err
	}
	return in, nil
}

func pqSigBytes(dst []byte, s PqSig) []byte {
	dst = wire.AppendU8(dst, s.Algorithm)
	dst = wire.AppendBoundedBytes(dst, s.PublicKey)
	dst = wire.AppendBoundedBytes(dst, s.Signature)
	if s.Algorithm == SigHybrid {
		dst = wire.AppendBoundedBytes(dst, s.HybridPublicKey)
		dst = wire.AppendBoundedBytes(dst, s.HybridSignature)
	}
	return dst
}

func parsePqSig(c *wire.Cursor) (PqSig, error) {
	var s PqSig
	var err error
	if s.Algorithm, err = c.U8(); err != nil {
		return s, err
	}
	if s.PublicKey, err = c.BoundedBytes(MaxPubKeyBytes); err != nil {
		return s, err
	}
	if s.Signature, err = c.BoundedBytes(MaxSigBytes); err != nil {
		return s, err
	}
	if s.Algorithm == SigHybrid {
		if s.HybridPublicKey, err = c.BoundedBytes(MaxPubKeyBytes); err != nil {
			return s, err
		}
		if s.HybridSignature, err = c.BoundedBytes(MaxSigBytes); err != nil {
			return s, err
		}
	}
	return s, nil
}

// TxBytesNoWitness encodes the part of a transaction that is covered by
// its identity hash and its signing digest: version, kind, locktime,
// inputs, and outputs, but not witnesses.
func TxBytesNoWitness(tx Transaction) []byte {
	b := make([]byte, 0, 128)
	b = wire.AppendU32LE(b, tx.Version)
	b = wire.AppendU8(b, tx.TxKind)
	b = wire.AppendU32LE(b, tx.Locktime)
	b = wire.AppendCompactSize(b, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		b = txInBytes(b, in)
	}
	b = wire.AppendCompactSize(b, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		b = txOutBytes(b, out)
	}
	return b
}

// TxBytes canonically encodes a full transaction including witnesses.
func TxBytes(tx Transaction) []byte {
	b := TxBytesNoWitness(tx)
	b = wire.AppendCompactSize(b, uint64(len(tx.Witnesses)))
	for _, w := range tx.Witnesses {
		b = pqSigBytes(b, w)
	}
	return b
}

// ParseTx decodes a single canonically-encoded transaction, returning the
// number of bytes consumed so callers can detect trailing-byte framing
// errors across a concatenated buffer.
func ParseTx(b []byte) (Transaction, int, error) {
	c := wire.NewCursor(b)
	tx, err := parseTxFrom(c)
	if err != nil {
		return tx, c.Pos(), err
	}
	return tx, c.Pos(), nil
}

func parseTxFrom(c *wire.Cursor) (Transaction, error) {
	var tx Transaction
	var err error
	if tx.Version, err = c.U32LE(); err != nil {
		return tx, err
	}
	if tx.TxKind, err = c.U8(); err != nil {
		return tx, err
	}
	if tx.Locktime, err = c.U32LE(); err != nil {
		return tx, err
	}
	nIn, err := c.CompactSize()
	if err != nil {
		return tx, err
	}
	if nIn > MaxInputs {
		return tx, txerr(ErrTooManyInputs, "")
	}
	tx.Inputs = make([]TxIn, 0, nIn)
	for i := uint64(0); i < nIn; i++ {
		in, err := parseTxIn(c)
		if err != nil {
			return tx, err
		}
		tx.Inputs = append(tx.Inputs, in)
	}
	nOut, err := c.CompactSize()
	if err != nil {
		return tx, err
	}
	if nOut > MaxOutputs {
		return tx, txerr(ErrTooManyOutputs, "")
	}
	tx.Outputs = make([]TxOut, 0, nOut)
	for i := uint64(0); i < nOut; i++ {
		out, err := parseTxOut(c)
		if err != nil {
			return tx, err
		}
		tx.Outputs = append(tx.Outputs, out)
	}
	nWit, err := c.CompactSize()
	if err != nil {
		return tx, err
	}
	// A coinbase carries no witnesses; every other transaction carries
	// exactly one per input.
	if nWit != nIn && !(nWit == 0 && isCoinbase(tx)) {
		return tx, txerr(ErrBadWitnessCount, "")
	}
	tx.Witnesses = make([]PqSig, 0, nWit)
	for i := uint64(0); i < nWit; i++ {
		w, err := parsePqSig(c)
		if err != nil {
			return tx, err
		}
		tx.Witnesses = append(tx.Witnesses, w)
	}
	return tx, nil
}

// BlockBytes canonically encodes a full block: header followed by a
// CompactSize transaction count and each transaction in full.
func BlockBytes(b Block) []byte {
	out := HeaderBytes(b.Header)
	out = wire.AppendCompactSize(out, uint64(len(b.Txs)))
	for _, tx := range b.Txs {
		out = append(out, TxBytes(tx)...)
	}
	return out
}

// ParseBlockBytes decodes a full block, rejecting any trailing bytes.
func ParseBlockBytes(b []byte) (Block, error) {
	c := wire.NewCursor(b)
	var blk Block
	headerRaw, err := c.Bytes(BlockHeaderBytes)
	if err != nil {
		return blk, err
	}
	blk.Header, err = ParseHeaderBytes(headerRaw)
	if err != nil {
		return blk, err
	}
	nTx, err := c.CompactSize()
	if err != nil {
		return blk, err
	}
	blk.Txs = make([]Transaction, 0, nTx)
	for i := uint64(0); i < nTx; i++ {
		tx, err := parseTxFrom(c)
		if err != nil {
			return blk, err
		}
		blk.Txs = append(blk.Txs, tx)
	}
	if err := c.RequireConsumed(); err != nil {
		return blk, err
	}
	return blk, nil
}

// UtxoEntryBytes encodes a durable UTXO record for storage.
func UtxoEntryBytes(e UtxoEntry) []byte {
	b := make([]byte, 0, 32+len(e.CovenantData))
	b = wire.AppendU64LE(b, e.Value)
	b = wire.AppendU16LE(b, e.CovenantType)
	b = wire.AppendBoundedBytes(b, e.CovenantData)
	b = wire.AppendU64LE(b, e.CreationHeight)
	if e.CreatedByCoinbase {
		b = wire.AppendU8(b, 1)
	} else {
		b = wire.AppendU8(b, 0)
	}
	return b
}

// ParseUtxoEntryBytes decodes a durable UTXO record.
func ParseUtxoEntryBytes(b []byte) (UtxoEntry, error) {
	c := wire.NewCursor(b)
	var e UtxoEntry
	var err error
	if e.Value, err = c.U64LE(); err != nil {
		return e, err
	}
	if e.CovenantType, err = c.U16LE(); err != nil {
		return e, err
	}
	if e.CovenantData, err = c.BoundedBytes(MaxCovenantBytes); err != nil {
		return e, err
	}
	if e.CreationHeight, err = c.U64LE(); err != nil {
		return e, err
	}
	flag, err := c.U8()
	if err != nil {
		return e, err
	}
	e.CreatedByCoinbase = flag != 0
	if err := c.RequireConsumed(); err != nil {
		return e, err
	}
	return e, nil
}
