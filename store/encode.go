package store

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/photon-chain/node/consensus"
)

// UndoRecord captures what must be reversed to disconnect one block: the
// outpoints it created (deleted on disconnect) and the entries it spent
// (restored on disconnect).
type UndoRecord struct {
	Spent   []SpentOutput
	Created []consensus.Outpoint
}

// SpentOutput restores one UTXO a disconnected block had consumed.
type SpentOutput struct {
	Outpoint consensus.Outpoint
	Entry    consensus.UtxoEntry
}

func encodeU64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func decodeU64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("store: bad u64 length %d", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// encodeOutpointKey produces the 36-byte lookup key for one outpoint:
// txid followed by the little-endian output index.
func encodeOutpointKey(op consensus.Outpoint) []byte {
	k := make([]byte, 36)
	copy(k[:32], op.Txid[:])
	binary.LittleEndian.PutUint32(k[32:], op.Vout)
	return k
}

func decodeOutpointKey(b []byte) (consensus.Outpoint, error) {
	if len(b) != 36 {
		return consensus.Outpoint{}, fmt.Errorf("store: bad outpoint key length %d", len(b))
	}
	var op consensus.Outpoint
	copy(op.Txid[:], b[:32])
	op.Vout = binary.LittleEndian.Uint32(b[32:])
	return op, nil
}

// encodeIndexEntry lays out a block-index record:
// height u64le | prev_hash 32 | status u8 | work_len u16le | work_bytes
func encodeIndexEntry(e consensus.BlockIndexEntry) []byte {
	work := e.CumulativeWork
	out := make([]byte, 0, 8+32+1+2+len(work))
	out = append(out, encodeU64(e.Height)...)
	out = append(out, e.PrevHash[:]...)
	out = append(out, byte(e.Status))
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(work)))
	out = append(out, lenBuf[:]...)
	out = append(out, work...)
	return out
}

func decodeIndexEntry(b []byte) (consensus.BlockIndexEntry, error) {
	var e consensus.BlockIndexEntry
	if len(b) < 8+32+1+2 {
		return e, fmt.Errorf("store: truncated index entry")
	}
	e.Height = binary.LittleEndian.Uint64(b[0:8])
	copy(e.PrevHash[:], b[8:40])
	e.Status = consensus.BlockStatus(b[40])
	workLen := int(binary.LittleEndian.Uint16(b[41:43]))
	if 43+workLen != len(b) {
		return e, fmt.Errorf("store: bad index entry work length")
	}
	e.CumulativeWork = append([]byte(nil), b[43:]...)
	return e, nil
}

// WorkFromTarget is the per-header work metric, 2^256/(target+1), that the
// store layer accumulates into cumulative work; the consensus package has
// no work function of its own.
func WorkFromTarget(target consensus.Hash) *big.Int {
	targetInt := new(big.Int).SetBytes(target[:])
	if targetInt.Sign() == 0 {
		return big.NewInt(0)
	}
	maxHash := new(big.Int).Lsh(big.NewInt(1), 256)
	return new(big.Int).Div(maxHash, new(big.Int).Add(targetInt, big.NewInt(1)))
}

// encodeUndoRecord lays out an undo record:
// spent_count u32le (outpoint 36 | utxo_len u32le | utxo_bytes)*
// created_count u32le (outpoint 36)*
func encodeUndoRecord(u UndoRecord) []byte {
	out := make([]byte, 0, 4+len(u.Spent)*64+4+len(u.Created)*36)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(u.Spent)))
	out = append(out, u32[:]...)
	for _, s := range u.Spent {
		out = append(out, encodeOutpointKey(s.Outpoint)...)
		eb := consensus.UtxoEntryBytes(s.Entry)
		binary.LittleEndian.PutUint32(u32[:], uint32(len(eb)))
		out = append(out, u32[:]...)
		out = append(out, eb...)
	}
	binary.LittleEndian.PutUint32(u32[:], uint32(len(u.Created)))
	out = append(out, u32[:]...)
	for _, c := range u.Created {
		out = append(out, encodeOutpointKey(c)...)
	}
	return out
}

func decodeUndoRecord(b []byte) (UndoRecord, error) {
	var u UndoRecord
	off := 0
	readU32 := func() (uint32, error) {
		if off+4 > len(b) {
			return 0, fmt.Errorf("store: truncated undo record")
		}
		v := binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
		return v, nil
	}
	spentN, err := readU32()
	if err != nil {
		return u, err
	}
	u.Spent = make([]SpentOutput, 0, spentN)
	for i := uint32(0); i < spentN; i++ {
		if off+36 > len(b) {
			return u, fmt.Errorf("store: truncated undo outpoint")
		}
		op, err := decodeOutpointKey(b[off : off+36])
		if err != nil {
			return u, err
		}
		off += 36
		entryLen, err := readU32()
		if err != nil {
			return u, err
		}
		if off+int(entryLen) > len(b) {
			return u, fmt.Errorf("store: truncated undo entry")
		}
		entry, err := consensus.ParseUtxoEntryBytes(b[off : off+int(entryLen)])
		if err != nil {
			return u, err
		}
		off += int(entryLen)
		u.Spent = append(u.Spent, SpentOutput{Outpoint: op, Entry: entry})
	}
	createdN, err := readU32()
	if err != nil {
		return u, err
	}
	u.Created = make([]consensus.Outpoint, 0, createdN)
	for i := uint32(0); i < createdN; i++ {
		if off+36 > len(b) {
			return u, fmt.Errorf("store: truncated created outpoint")
		}
		op, err := decodeOutpointKey(b[off : off+36])
		if err != nil {
			return u, err
		}
		off += 36
		u.Created = append(u.Created, op)
	}
	if off != len(b) {
		return u, fmt.Errorf("store: trailing bytes in undo record")
	}
	return u, nil
}
