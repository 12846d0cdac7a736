package consensus

import (
	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/pqcrypto"
)

// addU64 adds a and b, failing closed on overflow rather than wrapping.
func addU64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, txerr(ErrValueOverflow, "")
	}
	return sum, nil
}

func subU64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, txerr(ErrNegativeFee, "")
	}
	return a - b, nil
}

// sigAlgToPq maps the wire-level signature tag to the pqcrypto algorithm
// it delegates to. Defined here, not in pqcrypto, so pqcrypto stays
// independent of the wire tag values consensus chooses to assign.
func sigAlgToPq(tag uint8) (pqcrypto.Algorithm, bool) {
	switch tag {
	case SigMLDSA87:
		return pqcrypto.AlgMLDSA87, true
	case SigFalcon512:
		return pqcrypto.AlgFalcon512, true
	case SigClassicalTest:
		return pqcrypto.AlgClassicalTest, true
	default:
		return 0, false
	}
}

// keyIDFromWitness is the address a witness authorizes against: the hash
// of its public key material. A signature is only valid against an output
// whose recipient equals this hash. For a hybrid signature the address
// commits to both component public keys.
func keyIDFromWitness(w PqSig) Hash {
	if w.Algorithm == SigHybrid {
		return sha3_256(append(append([]byte{}, w.PublicKey...), w.HybridPublicKey...))
	}
	return sha3_256(w.PublicKey)
}

func verifyWitness(w PqSig, digest Hash) bool {
	if w.Algorithm == SigHybrid {
		return pqcrypto.VerifyHybrid(pqcrypto.AlgMLDSA87, pqcrypto.AlgFalcon512,
			w.PublicKey, w.HybridPublicKey, digest[:], w.Signature, w.HybridSignature)
	}
	alg, ok := sigAlgToPq(w.Algorithm)
	if !ok {
		return false
	}
	return pqcrypto.Verify(alg, w.PublicKey, digest[:], w.Signature)
}

// checkOutputCovenant enforces the structural constraints attached to
// each covenant type: P2PKH and ContractDeploy outputs carry a
// 32-byte recipient address as the CovenantData prefix (any remaining
// bytes are opaque aux data); ProofAnchor outputs carry no recipient, must
// have zero value, and must carry at least one byte of anchored aux data.
func checkOutputCovenant(o TxOut) error {
	switch o.CovenantType {
	case CovP2PKH, CovContractDeploy:
		if len(o.CovenantData) < 32 {
			return txerr(ErrBadEncoding, "covenant data shorter than a recipient address")
		}
	case CovProofAnchor:
		if o.Value != 0 {
			return txerr(ErrUnknownCovenant, "proof anchor outputs must carry zero value")
		}
		if len(o.CovenantData) == 0 {
			return txerr(ErrUnknownCovenant, "proof anchor outputs must carry aux data")
		}
	default:
		return txerr(ErrUnknownCovenant, "")
	}
	return nil
}

// CheckTxStateless performs every transaction check that needs no chain
// state: non-empty inputs/outputs, amount bounds, duplicate-input
// detection, witness-count match, per-output covenant shape, and that
// every hybrid witness carries both components. It does NOT verify
// signatures or check that the authorizing key's hash equals the spent
// output's recipient: the signing hash commits to the spent output's
// value, so both checks are done by CheckTxStateful against the UTXO.
func CheckTxStateless(tx Transaction, params chainparams.Params, networkID uint32) error {
	if len(tx.Inputs) == 0 {
		return txerr(ErrNoInputs, "")
	}
	if len(tx.Outputs) == 0 {
		return txerr(ErrNoOutputs, "")
	}
	if len(tx.Witnesses) != len(tx.Inputs) {
		return txerr(ErrBadWitnessCount, "")
	}

	seen := make(map[Outpoint]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if _, dup := seen[in.PrevOut]; dup {
			return txerr(ErrDuplicateInput, "")
		}
		seen[in.PrevOut] = struct{}{}
	}

	var outputTotal uint64
	for _, out := range tx.Outputs {
		if out.Value > params.MaxMoney {
			return txerr(ErrValueOverflow, "output exceeds MAX_MONEY")
		}
		if err := checkOutputCovenant(out); err != nil {
			return err
		}
		var err error
		outputTotal, err = addU64(outputTotal, out.Value)
		if err != nil {
			return err
		}
	}

	for _, w := range tx.Witnesses {
		if w.Algorithm == SigHybrid {
			if len(w.HybridPublicKey) == 0 || len(w.HybridSignature) == 0 {
				return txerr(ErrBadSignature, "hybrid witness missing a component")
			}
		}
	}
	return nil
}

// CheckTxStateful validates tx against a UTXO view and returns the fee
// (sum(inputs) - sum(outputs)). It does not mutate utxo.
func CheckTxStateful(
	tx Transaction,
	utxo map[Outpoint]UtxoEntry,
	height uint64,
	params chainparams.Params,
	networkID uint32,
) (fee uint64, err error) {
	var inputTotal uint64
	for i, in := range tx.Inputs {
		entry, ok := utxo[in.PrevOut]
		if !ok {
			return 0, txerr(ErrMissingUTXO, "")
		}
		if entry.CreatedByCoinbase && height < entry.CreationHeight+params.CoinbaseMaturity {
			return 0, txerr(ErrImmatureCoinbase, "")
		}
		if entry.CovenantType == CovProofAnchor {
			return 0, txerr(ErrUnspendable, "proof anchor outputs cannot be spent")
		}

		witness := tx.Witnesses[i]
		if len(entry.CovenantData) < 32 {
			return 0, txerr(ErrBadEncoding, "")
		}
		expectedRecipient := Hash{}
		copy(expectedRecipient[:], entry.CovenantData[:32])
		if keyIDFromWitness(witness) != expectedRecipient {
			return 0, txerr(ErrBadSignature, "witness key does not match output recipient")
		}
		digest := SighashDigest(networkID, tx, i, entry.Value)
		if !verifyWitness(witness, digest) {
			return 0, txerr(ErrBadSignature, "")
		}

		var addErr error
		inputTotal, addErr = addU64(inputTotal, entry.Value)
		if addErr != nil {
			return 0, addErr
		}
	}

	var outputTotal uint64
	for _, out := range tx.Outputs {
		var addErr error
		outputTotal, addErr = addU64(outputTotal, out.Value)
		if addErr != nil {
			return 0, addErr
		}
	}
	if outputTotal > inputTotal {
		return 0, txerr(ErrNegativeFee, "")
	}
	return subU64(inputTotal, outputTotal)
}

// ApplyTx validates tx statefully and mutates utxo: consuming every input
// and creating every non-anchor output. Callers must run CheckTxStateless
// first; ApplyTx assumes shape has already been checked.
func ApplyTx(
	tx Transaction,
	utxo map[Outpoint]UtxoEntry,
	height uint64,
	params chainparams.Params,
	networkID uint32,
) (fee uint64, err error) {
	fee, err = CheckTxStateful(tx, utxo, height, params, networkID)
	if err != nil {
		return 0, err
	}
	for _, in := range tx.Inputs {
		delete(utxo, in.PrevOut)
	}
	txid := TxID(tx)
	for i, out := range tx.Outputs {
		if out.CovenantType == CovProofAnchor {
			continue
		}
		utxo[Outpoint{Txid: txid, Vout: uint32(i)}] = UtxoEntry{
			Value:             out.Value,
			CovenantType:      out.CovenantType,
			CovenantData:      out.CovenantData,
			CreationHeight:    height,
			CreatedByCoinbase: false,
		}
	}
	return fee, nil
}

// isCoinbase reports whether tx is shaped like a coinbase: exactly one
// input, with a zero prev-txid and max prev-index. It does not look at
// witnesses; CheckBlockStateless rejects a coinbase that carries any.
func isCoinbase(tx Transaction) bool {
	if len(tx.Inputs) != 1 {
		return false
	}
	in := tx.Inputs[0]
	return in.PrevOut.Txid == (Hash{}) && in.PrevOut.Vout == ^uint32(0)
}

// CheckBlockStateless runs every block rule that needs no chain state
// beyond the block itself: PoW, merkle root, coinbase shape
// and position, and encoded size.
func CheckBlockStateless(block Block, params chainparams.Params) error {
	if len(block.Txs) == 0 {
		return txerr(ErrBadCoinbase, "block has no transactions")
	}
	if !isCoinbase(block.Txs[0]) {
		return txerr(ErrBadCoinbase, "first transaction is not a coinbase")
	}
	for i := 1; i < len(block.Txs); i++ {
		if isCoinbase(block.Txs[i]) {
			return txerr(ErrBadCoinbase, "coinbase-shaped transaction outside position 0")
		}
	}
	if len(block.Txs[0].Witnesses) != 0 {
		return txerr(ErrBadCoinbase, "coinbase must carry no witnesses")
	}

	if err := PowCheck(block.Header, block.Header.Target); err != nil {
		return err
	}

	txids := make([]Hash, len(block.Txs))
	for i, tx := range block.Txs {
		txids[i] = TxID(tx)
	}
	root, err := MerkleRootTxids(txids)
	if err != nil {
		return err
	}
	if root != block.Header.MerkleRoot {
		return txerr(ErrBadMerkle, "")
	}

	if uint32(len(BlockBytes(block))) > params.MaxBlockBytes {
		return txerr(ErrBlockTooLarge, "")
	}
	return nil
}

// MedianTimePast returns the median timestamp of the last up-to-11
// ancestor headers, most recent last.
func MedianTimePast(ancestors []BlockHeader) uint64 {
	n := len(ancestors)
	if n > 11 {
		ancestors = ancestors[n-11:]
		n = 11
	}
	ts := make([]uint64, n)
	for i, h := range ancestors {
		ts[i] = h.Timestamp
	}
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0 && ts[j-1] > ts[j]; j-- {
			ts[j-1], ts[j] = ts[j], ts[j-1]
		}
	}
	if len(ts) == 0 {
		return 0
	}
	return ts[(len(ts)-1)/2]
}

// ExpectedTarget computes the difficulty target a block at height must
// carry: held constant within a retarget window, recomputed at each
// boundary from the timespan between the window's first and last headers.
func ExpectedTarget(height uint64, ancestors []BlockHeader, params chainparams.Params) (Hash, error) {
	if height == 0 {
		return params.PowLimit, nil
	}
	if height%params.RetargetInterval != 0 {
		return ancestors[len(ancestors)-1].Target, nil
	}
	if uint64(len(ancestors)) < params.RetargetInterval {
		return params.PowLimit, nil
	}
	windowStart := ancestors[uint64(len(ancestors))-params.RetargetInterval]
	windowEnd := ancestors[len(ancestors)-1]
	actual := windowEnd.Timestamp - windowStart.Timestamp
	expected := params.RetargetInterval * params.TargetBlockInterval
	return RetargetV1(windowEnd.Target, actual, expected, params.PowLimit), nil
}

// BlockValidationContext carries everything CheckBlockStateful needs about
// a candidate block's position in the chain beyond the block itself.
type BlockValidationContext struct {
	Height          uint64
	ParentHash      Hash
	AncestorHeaders []BlockHeader // most-recent-last, parent last
	LocalTime       uint64
}

// ApplyBlock validates block statefully against utxo (a snapshot the
// caller owns) and, on success, mutates it in place: every non-coinbase
// transaction is applied in list order, then the coinbase output is
// created once its value has been checked against subsidy+fees. On any
// failure utxo is left unmodified relative to its state on entry except
// for transactions already applied earlier in the same call — callers
// that need all-or-nothing semantics across the whole block must pass a
// scratch copy and only commit it after ApplyBlock returns nil (this is
// exactly how chainmgr uses it).
func ApplyBlock(
	block Block,
	utxo map[Outpoint]UtxoEntry,
	ctx BlockValidationContext,
	params chainparams.Params,
	networkID uint32,
) error {
	if err := CheckBlockStateless(block, params); err != nil {
		return err
	}

	if ctx.Height == 0 {
		if block.Header.PrevHash != (Hash{}) {
			return txerr(ErrUnknownParent, "genesis must have zero prev_hash")
		}
	} else {
		if block.Header.PrevHash != ctx.ParentHash {
			return txerr(ErrUnknownParent, "")
		}
		medianTS := MedianTimePast(ctx.AncestorHeaders)
		if block.Header.Timestamp <= medianTS {
			return txerr(ErrTimestampOld, "")
		}
	}
	if ctx.LocalTime != 0 && block.Header.Timestamp > ctx.LocalTime+params.MaxClockSkew {
		return txerr(ErrTimestampFuture, "")
	}

	expectedTarget, err := ExpectedTarget(ctx.Height, ctx.AncestorHeaders, params)
	if err != nil {
		return err
	}
	if expectedTarget != block.Header.Target {
		return txerr(ErrBadDifficulty, "")
	}

	var totalFees uint64
	for _, tx := range block.Txs[1:] {
		if err := CheckTxStateless(tx, params, networkID); err != nil {
			return err
		}
		fee, err := ApplyTx(tx, utxo, ctx.Height, params, networkID)
		if err != nil {
			return err
		}
		totalFees, err = addU64(totalFees, fee)
		if err != nil {
			return err
		}
	}

	coinbase := block.Txs[0]
	var coinbaseValue uint64
	for _, out := range coinbase.Outputs {
		var err error
		coinbaseValue, err = addU64(coinbaseValue, out.Value)
		if err != nil {
			return err
		}
		if err := checkOutputCovenant(out); err != nil {
			return err
		}
	}
	maxCoinbase, err := addU64(BlockSubsidy(ctx.Height), totalFees)
	if err != nil {
		return err
	}
	if coinbaseValue > maxCoinbase {
		return txerr(ErrBadCoinbase, "coinbase exceeds subsidy plus fees")
	}

	coinbaseTxid := TxID(coinbase)
	for i, out := range coinbase.Outputs {
		if out.CovenantType == CovProofAnchor {
			continue
		}
		utxo[Outpoint{Txid: coinbaseTxid, Vout: uint32(i)}] = UtxoEntry{
			Value:             out.Value,
			CovenantType:      out.CovenantType,
			CovenantData:      out.CovenantData,
			CreationHeight:    ctx.Height,
			CreatedByCoinbase: true,
		}
	}
	return nil
}
