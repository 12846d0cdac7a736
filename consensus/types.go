// Package consensus implements the chain's data model, its canonical
// encoding, and every stateless and stateful validation rule: merkle
// trees, proof-of-work, the subsidy curve, cumulative-work fork choice,
// and transaction/block application against a UTXO view.
package consensus

// Hash is a raw SHA3-256 digest. It is never length-prefixed on the wire.
type Hash [32]byte

// Covenant types. Only three are defined; everything else is reserved.
const (
	CovReserved        uint16 = 0
	CovP2PKH           uint16 = 1
	CovProofAnchor     uint16 = 2
	CovContractDeploy  uint16 = 3
)

// Transaction kinds.
const (
	TxKindStandard uint8 = 0
	TxKindCoinbase uint8 = 1
)

// Signature algorithm tags, mirrored from pqcrypto.Algorithm so this
// package does not need to import pqcrypto for type declarations alone.
const (
	SigMLDSA87       uint8 = 0
	SigFalcon512     uint8 = 1
	SigHybrid        uint8 = 2
	SigClassicalTest uint8 = 3
)

// Size limits.
const (
	MaxPubKeyBytes    = 4 * 1024
	MaxSigBytes       = 8 * 1024
	MaxCovenantBytes  = 64 * 1024
	MaxInputs         = 1 << 16
	MaxOutputs        = 1 << 16
	BlockHeaderBytes  = 4 + 32 + 32 + 8 + 32 + 8
	MaxFutureDrift    = 2 * 60 * 60
)

// Outpoint identifies a single previously created output.
type Outpoint struct {
	Txid Hash
	Vout uint32
}

// TxIn spends one prior output.
type TxIn struct {
	PrevOut  Outpoint
	Sequence uint32
}

// TxOut creates one new output under a covenant.
type TxOut struct {
	Value        uint64
	CovenantType uint16
	CovenantData []byte
}

// PqSig is a tagged-variant post-quantum (or, for SigClassicalTest, a fast
// classical test-only) signature attached to one transaction input.
type PqSig struct {
	Algorithm uint8
	PublicKey []byte
	Signature []byte
	// HybridPublicKey and HybridSignature carry the second component's key
	// and signature
	// when Algorithm == SigHybrid; nil otherwise.
	HybridPublicKey []byte
	HybridSignature []byte
}

// Transaction is the chain's only transaction shape: a set of inputs
// spending prior outputs, a set of new outputs, and one witness per input.
type Transaction struct {
	Version   uint32
	TxKind    uint8
	Locktime  uint32
	Inputs    []TxIn
	Outputs   []TxOut
	Witnesses []PqSig // len(Witnesses) == len(Inputs), empty for coinbase
}

// BlockHeader is fixed-width and never carries a stored hash of itself;
// the hash is always computed from the encoded bytes.
type BlockHeader struct {
	Version    uint32
	PrevHash   Hash
	MerkleRoot Hash
	Timestamp  uint64
	Target     Hash
	Nonce      uint64
}

// Block is one header plus its full transaction list, coinbase first.
type Block struct {
	Header BlockHeader
	Txs    []Transaction
}

// UtxoEntry is the durable record for one unspent output.
type UtxoEntry struct {
	Value             uint64
	CovenantType      uint16
	CovenantData      []byte
	CreationHeight    uint64
	CreatedByCoinbase bool
}

// BlockStatus classifies a block-index entry's validation state.
type BlockStatus uint8

const (
	StatusUnknown BlockStatus = iota
	StatusHeaderOnly
	StatusValid
	StatusInvalid
)

// BlockIndexEntry is the chain manager's per-header bookkeeping record,
// keyed externally by the header's hash. It holds only hash-valued
// cross-references (PrevHash), never owning pointers, so the index is
// trivially acyclic and serializable.
type BlockIndexEntry struct {
	Height         uint64
	PrevHash       Hash
	CumulativeWork []byte // big-endian big.Int bytes
	Status         BlockStatus
}

// UndoEntry records what must be reversed to disconnect one block: the
// outpoints it created (to be deleted) and the entries it spent (to be
// restored).
type UndoEntry struct {
	Created []Outpoint
	Spent   []SpentEntry
}

// SpentEntry restores one output consumed by the block being disconnected.
type SpentEntry struct {
	Outpoint Outpoint
	Entry    UtxoEntry
}
