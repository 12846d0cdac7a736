// Package store is the durable bbolt-backed key/value layer: block
// headers and bodies, the block index, height-to-hash lookups, the UTXO
// set, and keystore material, all behind a single database file with one
// atomic transaction per write.
package store

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/photon-chain/node/consensus"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketHeaders      = []byte("headers")
	bucketBlockBodies  = []byte("block_bodies")
	bucketBlockIndex   = []byte("block_index")
	bucketHeightToHash = []byte("height_to_hash")
	bucketUTXO         = []byte("utxo")
	bucketUndo         = []byte("undo")
	bucketMeta         = []byte("meta")
	bucketKeystore     = []byte("keystore")
)

var allBuckets = [][]byte{
	bucketHeaders, bucketBlockBodies, bucketBlockIndex,
	bucketHeightToHash, bucketUTXO, bucketUndo, bucketMeta, bucketKeystore,
}

// Meta keys. The tip pointer lives here, in the same bolt.DB as every
// other table, so a single bolt.Tx commits tip + index + UTXO together —
// there is no second out-of-band file that can desync from the database.
var (
	metaKeyTipHash    = []byte("tip_hash")
	metaKeyTipHeight  = []byte("tip_height")
	metaKeyTipWork    = []byte("tip_cumulative_work")
	metaKeyGenesis    = []byte("genesis_hash")
	metaKeySchemaVers = []byte("schema_version")
)

const SchemaVersion uint32 = 1

// DB wraps a single bbolt database file holding everything one chain
// needs to persist across restarts.
type DB struct {
	path string
	bdb  *bolt.DB
}

// Open creates or opens the database at datadir/chain.db, ensuring every
// bucket exists.
func Open(datadir string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("store: datadir required")
	}
	if err := os.MkdirAll(datadir, 0o700); err != nil {
		return nil, fmt.Errorf("store: mkdir datadir: %w", err)
	}
	path := filepath.Join(datadir, "chain.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt: %w", err)
	}
	d := &DB{path: path, bdb: bdb}
	if err := d.bdb.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("store: create bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.bdb == nil {
		return nil
	}
	return d.bdb.Close()
}

func (d *DB) Path() string { return d.path }

// TipInfo is the chain's persisted best-tip pointer.
type TipInfo struct {
	Hash           consensus.Hash
	Height         uint64
	CumulativeWork *big.Int
}

// GetTip reads the persisted tip pointer, returning ok=false if the
// database has never had a tip committed (a fresh, ungenesised store).
func (d *DB) GetTip() (TipInfo, bool, error) {
	var info TipInfo
	var ok bool
	err := d.bdb.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		hv := meta.Get(metaKeyTipHash)
		if hv == nil {
			return nil
		}
		var h consensus.Hash
		copy(h[:], hv)
		hv2 := meta.Get(metaKeyTipHeight)
		height, err := decodeU64(hv2)
		if err != nil {
			return err
		}
		workBytes := meta.Get(metaKeyTipWork)
		info = TipInfo{Hash: h, Height: height, CumulativeWork: new(big.Int).SetBytes(workBytes)}
		ok = true
		return nil
	})
	return info, ok, err
}

// GetGenesisHash returns the committed genesis hash, if any.
func (d *DB) GetGenesisHash() (consensus.Hash, bool, error) {
	var h consensus.Hash
	var ok bool
	err := d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(metaKeyGenesis)
		if v == nil {
			return nil
		}
		copy(h[:], v)
		ok = true
		return nil
	})
	return h, ok, err
}

// WriteBatch accumulates every mutation one block application produces so
// it can be committed as a single bolt.Tx: header, body, index entry,
// height index, UTXO deltas, undo record, and (when this block becomes the
// new best tip) the tip pointer itself.
type WriteBatch struct {
	Headers      map[consensus.Hash][]byte
	Bodies       map[consensus.Hash][]byte
	IndexEntries map[consensus.Hash]consensus.BlockIndexEntry
	HeightToHash map[uint64]consensus.Hash
	UtxoPuts     map[consensus.Outpoint]consensus.UtxoEntry
	UtxoDeletes  []consensus.Outpoint
	UndoRecords  map[consensus.Hash]UndoRecord

	NewTip        *TipInfo
	NewGenesis    *consensus.Hash
	DeleteHeightToHash []uint64
}

// NewWriteBatch returns an empty batch ready to accumulate puts.
func NewWriteBatch() *WriteBatch {
	return &WriteBatch{
		Headers:      map[consensus.Hash][]byte{},
		Bodies:       map[consensus.Hash][]byte{},
		IndexEntries: map[consensus.Hash]consensus.BlockIndexEntry{},
		HeightToHash: map[uint64]consensus.Hash{},
		UtxoPuts:     map[consensus.Outpoint]consensus.UtxoEntry{},
		UndoRecords:  map[consensus.Hash]UndoRecord{},
	}
}

// Commit applies every accumulated mutation inside one bolt.Tx. Either the
// whole batch lands, or (on any encode/write failure) none of it does.
func (d *DB) Commit(b *WriteBatch) error {
	return d.bdb.Update(func(tx *bolt.Tx) error {
		headers := tx.Bucket(bucketHeaders)
		for h, raw := range b.Headers {
			if err := headers.Put(h[:], raw); err != nil {
				return err
			}
		}
		bodies := tx.Bucket(bucketBlockBodies)
		for h, raw := range b.Bodies {
			if err := bodies.Put(h[:], raw); err != nil {
				return err
			}
		}
		index := tx.Bucket(bucketBlockIndex)
		for h, e := range b.IndexEntries {
			if err := index.Put(h[:], encodeIndexEntry(e)); err != nil {
				return err
			}
		}
		h2h := tx.Bucket(bucketHeightToHash)
		for height, hash := range b.HeightToHash {
			if err := h2h.Put(encodeU64(height), hash[:]); err != nil {
				return err
			}
		}
		for _, height := range b.DeleteHeightToHash {
			if err := h2h.Delete(encodeU64(height)); err != nil {
				return err
			}
		}
		utxo := tx.Bucket(bucketUTXO)
		for op, e := range b.UtxoPuts {
			if err := utxo.Put(encodeOutpointKey(op), consensus.UtxoEntryBytes(e)); err != nil {
				return err
			}
		}
		for _, op := range b.UtxoDeletes {
			if err := utxo.Delete(encodeOutpointKey(op)); err != nil {
				return err
			}
		}
		undo := tx.Bucket(bucketUndo)
		for h, u := range b.UndoRecords {
			if err := undo.Put(h[:], encodeUndoRecord(u)); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if err := meta.Put(metaKeySchemaVers, encodeU64(uint64(SchemaVersion))); err != nil {
			return err
		}
		if b.NewTip != nil {
			if err := meta.Put(metaKeyTipHash, b.NewTip.Hash[:]); err != nil {
				return err
			}
			if err := meta.Put(metaKeyTipHeight, encodeU64(b.NewTip.Height)); err != nil {
				return err
			}
			work := b.NewTip.CumulativeWork.Bytes()
			if err := meta.Put(metaKeyTipWork, work); err != nil {
				return err
			}
		}
		if b.NewGenesis != nil {
			if err := meta.Put(metaKeyGenesis, b.NewGenesis[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DB) GetHeader(hash consensus.Hash) ([]byte, bool, error) {
	return d.getBytes(bucketHeaders, hash[:])
}

func (d *DB) GetBlockBody(hash consensus.Hash) ([]byte, bool, error) {
	return d.getBytes(bucketBlockBodies, hash[:])
}

func (d *DB) GetIndexEntry(hash consensus.Hash) (consensus.BlockIndexEntry, bool, error) {
	raw, ok, err := d.getBytes(bucketBlockIndex, hash[:])
	if err != nil || !ok {
		return consensus.BlockIndexEntry{}, ok, err
	}
	e, err := decodeIndexEntry(raw)
	return e, err == nil, err
}

func (d *DB) GetHashAtHeight(height uint64) (consensus.Hash, bool, error) {
	raw, ok, err := d.getBytes(bucketHeightToHash, encodeU64(height))
	var h consensus.Hash
	if !ok || err != nil {
		return h, ok, err
	}
	copy(h[:], raw)
	return h, true, nil
}

func (d *DB) GetUTXO(op consensus.Outpoint) (consensus.UtxoEntry, bool, error) {
	raw, ok, err := d.getBytes(bucketUTXO, encodeOutpointKey(op))
	if err != nil || !ok {
		return consensus.UtxoEntry{}, ok, err
	}
	e, err := consensus.ParseUtxoEntryBytes(raw)
	return e, err == nil, err
}

func (d *DB) GetUndo(blockHash consensus.Hash) (UndoRecord, bool, error) {
	raw, ok, err := d.getBytes(bucketUndo, blockHash[:])
	if err != nil || !ok {
		return UndoRecord{}, ok, err
	}
	u, err := decodeUndoRecord(raw)
	return u, err == nil, err
}

// ScanUTXOs walks every entry in the UTXO bucket in key order, the
// store's scan_prefix primitive specialized to a full-bucket walk since
// callers here (balance and UTXO-by-address lookups) have no usable key
// prefix to narrow on — outpoints are keyed by txid, not by recipient.
// Iteration stops early if fn returns false.
func (d *DB) ScanUTXOs(fn func(consensus.Outpoint, consensus.UtxoEntry) (keepGoing bool)) error {
	return d.bdb.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketUTXO).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			op, err := decodeOutpointKey(k)
			if err != nil {
				return err
			}
			entry, err := consensus.ParseUtxoEntryBytes(v)
			if err != nil {
				return err
			}
			if !fn(op, entry) {
				return nil
			}
		}
		return nil
	})
}

// PutKeystoreEntry and GetKeystoreEntry store opaque encrypted key
// material under an identifier the keystore package controls; this
// package has no opinion on the entry's internal shape.
func (d *DB) PutKeystoreEntry(id string, raw []byte) error {
	return d.bdb.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKeystore).Put([]byte(id), raw)
	})
}

func (d *DB) GetKeystoreEntry(id string) ([]byte, bool, error) {
	return d.getBytes(bucketKeystore, []byte(id))
}

// PutKeystoreEntries writes every entry in entries inside a single bolt
// transaction, so a master-secret rotation either re-encrypts every
// record or leaves the keystore entirely untouched.
func (d *DB) PutKeystoreEntries(entries map[string][]byte) error {
	return d.bdb.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKeystore)
		for id, raw := range entries {
			if err := b.Put([]byte(id), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListKeystoreIDs returns every key identifier currently stored.
func (d *DB) ListKeystoreIDs() ([]string, error) {
	var ids []string
	err := d.bdb.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKeystore).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

func (d *DB) getBytes(bucket, key []byte) ([]byte, bool, error) {
	var out []byte
	err := d.bdb.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}
