package consensus

import "github.com/photon-chain/node/chainparams"

// GenesisMessage is embedded in the genesis coinbase's proof-anchor output,
// in the spirit of Bitcoin's famous newspaper headline: evidence the chain
// did not exist before a particular moment.
const GenesisMessage = "photon genesis: post-quantum settlement begins"

// BuildGenesisBlock constructs the deterministic first block for a
// network. Its coinbase pays the height-0 block subsidy to a
// burn-style all-zero recipient (no one holds the genesis key), and its
// single other output anchors GenesisMessage so the block's content is
// reproducible from params alone.
func BuildGenesisBlock(params chainparams.Params, timestamp uint64) Block {
	coinbase := Transaction{
		Version:  1,
		TxKind:   TxKindCoinbase,
		Locktime: 0,
		Inputs: []TxIn{{
			PrevOut:  Outpoint{Txid: Hash{}, Vout: ^uint32(0)},
			Sequence: 0,
		}},
		Outputs: []TxOut{
			{
				Value:        BlockSubsidy(0),
				CovenantType: CovP2PKH,
				CovenantData: make([]byte, 32),
			},
			{
				Value:        0,
				CovenantType: CovProofAnchor,
				CovenantData: []byte(GenesisMessage),
			},
		},
		Witnesses: nil,
	}

	txids := []Hash{TxID(coinbase)}
	root, err := MerkleRootTxids(txids)
	if err != nil {
		// Unreachable: a single-element tree never fails to build.
		panic(err)
	}

	header := BlockHeader{
		Version:    1,
		PrevHash:   Hash{},
		MerkleRoot: root,
		Timestamp:  timestamp,
		Target:     params.PowLimit,
		Nonce:      0,
	}
	return Block{Header: header, Txs: []Transaction{coinbase}}
}
