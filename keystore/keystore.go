// Package keystore generates and persists post-quantum keypairs,
// encrypting secret keys at rest under a key derived from a
// process-scoped master secret. Plaintext secret keys are only ever
// held transiently for signing and are zeroized immediately after use.
package keystore

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/photon-chain/node/pqcrypto"
	"github.com/photon-chain/node/store"
)

// MasterSecretEnvVar is the environment variable a process reads its
// master secret from at startup. LoadMasterSecretFromEnv reports its
// absence as an error; the node treats that error as fatal only when
// mining or an anchor key is configured, and otherwise runs without a
// keystore.
const MasterSecretEnvVar = "PHOTON_MASTER_SECRET"

const minMasterSecretBytes = 32

// record is the durable, at-rest shape of one keystore entry. It is
// JSON-encoded before being written to the store's keystore bucket.
//
// The secret key is sealed under a random per-record DEK rather than
// directly under the password-derived key. The DEK itself is then
// wrapped twice: once under the Argon2id-derived KEK (the password
// path, always present) and, when the Store was constructed with a
// wallet recovery public key, a second time under an ML-KEM-1024
// shared secret encapsulated against that key (the recovery path).
// Either wrap alone is enough to recover the DEK and, from it, the
// secret key.
type record struct {
	Version   int                `json:"version"`
	Algorithm pqcrypto.Algorithm `json:"algorithm"`
	PublicKey []byte             `json:"public_key"`

	Salt      []byte             `json:"salt"`
	KDFParams pqcrypto.KDFParams `json:"kdf_params"`

	SecretNonce      []byte `json:"secret_nonce"`
	SecretCiphertext []byte `json:"secret_ciphertext"`

	DEKNonce      []byte `json:"dek_nonce"`
	DEKCiphertext []byte `json:"dek_ciphertext"`

	RecoveryKEMCiphertext []byte `json:"recovery_kem_ciphertext,omitempty"`
	RecoveryNonce         []byte `json:"recovery_nonce,omitempty"`
	RecoveryDEKCiphertext []byte `json:"recovery_dek_ciphertext,omitempty"`

	CreatedAt int64 `json:"created_at"`
	Destroyed bool  `json:"destroyed"`
}

const recordVersion = 1

// Store is a durable, encrypted-at-rest collection of PQ keypairs.
type Store struct {
	db           *store.DB
	masterSecret []byte
	recoveryPub  []byte
}

// LoadMasterSecretFromEnv reads and hex-decodes PHOTON_MASTER_SECRET.
// It returns an error if the variable is absent, empty, not hex, or
// shorter than 32 bytes once decoded.
func LoadMasterSecretFromEnv() ([]byte, error) {
	raw := os.Getenv(MasterSecretEnvVar)
	if raw == "" {
		return nil, fmt.Errorf("keystore: %s is not set", MasterSecretEnvVar)
	}
	secret, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("keystore: %s is not valid hex: %w", MasterSecretEnvVar, err)
	}
	if len(secret) < minMasterSecretBytes {
		return nil, fmt.Errorf("keystore: %s must decode to at least %d bytes, got %d", MasterSecretEnvVar, minMasterSecretBytes, len(secret))
	}
	return secret, nil
}

// New constructs a Store over db, keyed by masterSecret. masterSecret is
// copied; the caller may zeroize its own copy afterward.
func New(db *store.DB, masterSecret []byte) (*Store, error) {
	if len(masterSecret) < minMasterSecretBytes {
		return nil, fmt.Errorf("keystore: master secret must be at least %d bytes", minMasterSecretBytes)
	}
	owned := make([]byte, len(masterSecret))
	copy(owned, masterSecret)
	return &Store{db: db, masterSecret: owned}, nil
}

// NewWithRecovery is New plus an ML-KEM-1024 public key: every record
// created afterward additionally wraps its DEK under this key, so
// whoever holds the matching private key can recover the record via
// UnsealWithRecovery without ever knowing the master secret. recoveryPub
// is copied; the Store never sees or stores the matching private key.
func NewWithRecovery(db *store.DB, masterSecret, recoveryPub []byte) (*Store, error) {
	s, err := New(db, masterSecret)
	if err != nil {
		return nil, err
	}
	s.recoveryPub = append([]byte(nil), recoveryPub...)
	return s, nil
}

// GenerateRecoveryKeypair produces a fresh ML-KEM-1024 keypair for use
// as a wallet recovery key: pub is handed to NewWithRecovery, priv is
// kept by the operator out of band and never touches the Store.
func GenerateRecoveryKeypair() (pub, priv []byte, err error) {
	return pqcrypto.KEMGenerate()
}

// Create generates a fresh keypair under alg, encrypts its secret key,
// and persists the record keyed by key_id = hex(SHA3-256(public_key)).
func (s *Store) Create(alg pqcrypto.Algorithm) (keyID string, err error) {
	pub, priv, err := pqcrypto.GenerateKeypair(alg)
	if err != nil {
		return "", fmt.Errorf("keystore: generate keypair: %w", err)
	}
	defer zeroize(priv)

	keyID = deriveKeyID(pub)

	rec, err := s.seal(alg, pub, priv)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("keystore: encode record: %w", err)
	}
	if err := s.db.PutKeystoreEntry(keyID, raw); err != nil {
		return "", fmt.Errorf("keystore: persist record: %w", err)
	}
	return keyID, nil
}

// PublicKey returns the public key for key_id without touching the
// encrypted secret.
func (s *Store) PublicKey(keyID string) ([]byte, error) {
	rec, err := s.load(keyID)
	if err != nil {
		return nil, err
	}
	return rec.PublicKey, nil
}

// Algorithm returns the signature algorithm key_id was created under, so
// callers that sign outside of Sign (e.g. composing a witness by hand)
// know which wire tag to attach to the resulting signature.
func (s *Store) Algorithm(keyID string) (pqcrypto.Algorithm, error) {
	rec, err := s.load(keyID)
	if err != nil {
		return 0, err
	}
	return rec.Algorithm, nil
}

// Sign decrypts key_id's secret key, signs msg, and zeroizes the
// plaintext secret before returning.
func (s *Store) Sign(keyID string, msg []byte) ([]byte, error) {
	rec, err := s.load(keyID)
	if err != nil {
		return nil, err
	}
	priv, err := s.unseal(rec)
	if err != nil {
		return nil, err
	}
	defer zeroize(priv)

	sig, err := pqcrypto.Sign(rec.Algorithm, priv, msg)
	if err != nil {
		return nil, fmt.Errorf("keystore: sign: %w", err)
	}
	return sig, nil
}

// Destroy tombstones key_id: the ciphertext is overwritten with zeros
// and the record is marked destroyed, leaving no recoverable plaintext
// and no way to unseal the record again. The record id itself remains,
// since the store has no delete primitive and a tombstone is
// sufficient to satisfy the no-recoverable-plaintext requirement.
func (s *Store) Destroy(keyID string) error {
	rec, err := s.load(keyID)
	if err != nil {
		return err
	}
	zeroize(rec.SecretCiphertext)
	zeroize(rec.DEKCiphertext)
	zeroize(rec.RecoveryDEKCiphertext)
	rec.Destroyed = true
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("keystore: encode tombstone: %w", err)
	}
	return s.db.PutKeystoreEntry(keyID, raw)
}

// List returns every non-destroyed key identifier.
func (s *Store) List() ([]string, error) {
	ids, err := s.db.ListKeystoreIDs()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		rec, err := s.load(id)
		if err != nil {
			continue
		}
		if !rec.Destroyed {
			out = append(out, id)
		}
	}
	return out, nil
}

// Rotate re-encrypts every non-destroyed record under newMasterSecret
// inside a single atomic store batch: either every record rotates, or
// none do.
func (s *Store) Rotate(newMasterSecret []byte) error {
	if len(newMasterSecret) < minMasterSecretBytes {
		return fmt.Errorf("keystore: new master secret must be at least %d bytes", minMasterSecretBytes)
	}
	ids, err := s.db.ListKeystoreIDs()
	if err != nil {
		return err
	}

	newStore := &Store{db: s.db, masterSecret: newMasterSecret, recoveryPub: s.recoveryPub}
	entries := make(map[string][]byte, len(ids))
	for _, id := range ids {
		stored, ok, err := s.db.GetKeystoreEntry(id)
		if err != nil {
			return fmt.Errorf("keystore: rotate: load %s: %w", id, err)
		}
		if !ok {
			return fmt.Errorf("keystore: rotate: unknown key_id %q", id)
		}
		var rec record
		if err := json.Unmarshal(stored, &rec); err != nil {
			return fmt.Errorf("keystore: rotate: decode %s: %w", id, err)
		}
		if rec.Destroyed {
			entries[id] = stored
			continue
		}
		priv, err := s.unseal(&rec)
		if err != nil {
			return fmt.Errorf("keystore: rotate: unseal %s: %w", id, err)
		}
		newRec, err := newStore.seal(rec.Algorithm, rec.PublicKey, priv)
		zeroize(priv)
		if err != nil {
			return fmt.Errorf("keystore: rotate: reseal %s: %w", id, err)
		}
		newRec.CreatedAt = rec.CreatedAt
		raw, err := json.Marshal(newRec)
		if err != nil {
			return err
		}
		entries[id] = raw
	}

	if err := s.db.PutKeystoreEntries(entries); err != nil {
		return fmt.Errorf("keystore: rotate: commit: %w", err)
	}
	zeroize(s.masterSecret)
	s.masterSecret = make([]byte, len(newMasterSecret))
	copy(s.masterSecret, newMasterSecret)
	return nil
}

func (s *Store) load(keyID string) (*record, error) {
	raw, ok, err := s.db.GetKeystoreEntry(keyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("keystore: unknown key_id %q", keyID)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("keystore: decode record: %w", err)
	}
	if rec.Destroyed {
		return nil, fmt.Errorf("keystore: key_id %q has been destroyed", keyID)
	}
	return &rec, nil
}

func (s *Store) seal(alg pqcrypto.Algorithm, pub, priv []byte) (*record, error) {
	dek := make([]byte, 32)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("keystore: generate dek: %w", err)
	}
	defer zeroize(dek)

	secretNonce, err := pqcrypto.NewNonce()
	if err != nil {
		return nil, err
	}
	secretCt, err := pqcrypto.AEADSeal(dek, secretNonce[:], pub, priv)
	if err != nil {
		return nil, fmt.Errorf("keystore: seal secret key: %w", err)
	}

	salt, err := pqcrypto.NewSalt()
	if err != nil {
		return nil, err
	}
	params := pqcrypto.DefaultKDFParams()
	kek := pqcrypto.Argon2idDerive(s.masterSecret, salt[:], params)
	defer zeroize(kek)

	dekNonce, err := pqcrypto.NewNonce()
	if err != nil {
		return nil, err
	}
	dekCt, err := pqcrypto.AEADSeal(kek, dekNonce[:], pub, dek)
	if err != nil {
		return nil, fmt.Errorf("keystore: wrap dek: %w", err)
	}

	rec := &record{
		Version:          recordVersion,
		Algorithm:        alg,
		PublicKey:        append([]byte(nil), pub...),
		Salt:             salt[:],
		KDFParams:        params,
		SecretNonce:      secretNonce[:],
		SecretCiphertext: secretCt,
		DEKNonce:         dekNonce[:],
		DEKCiphertext:    dekCt,
		CreatedAt:        time.Now().Unix(),
	}

	if len(s.recoveryPub) > 0 {
		kemCt, sharedSecret, err := pqcrypto.KEMEncapsulate(s.recoveryPub)
		if err != nil {
			return nil, fmt.Errorf("keystore: kem wrap dek: %w", err)
		}
		defer zeroize(sharedSecret)

		recNonce, err := pqcrypto.NewNonce()
		if err != nil {
			return nil, err
		}
		recCt, err := pqcrypto.AEADSeal(sharedSecret, recNonce[:], pub, dek)
		if err != nil {
			return nil, fmt.Errorf("keystore: seal recovery dek: %w", err)
		}
		rec.RecoveryKEMCiphertext = kemCt
		rec.RecoveryNonce = recNonce[:]
		rec.RecoveryDEKCiphertext = recCt
	}

	return rec, nil
}

func (s *Store) unseal(rec *record) ([]byte, error) {
	kek := pqcrypto.Argon2idDerive(s.masterSecret, rec.Salt, rec.KDFParams)
	defer zeroize(kek)
	dek, err := pqcrypto.AEADOpen(kek, rec.DEKNonce, rec.PublicKey, rec.DEKCiphertext)
	if err != nil {
		return nil, fmt.Errorf("keystore: unwrap dek: %w", err)
	}
	defer zeroize(dek)
	priv, err := pqcrypto.AEADOpen(dek, rec.SecretNonce, rec.PublicKey, rec.SecretCiphertext)
	if err != nil {
		return nil, fmt.Errorf("keystore: unseal secret key: %w", err)
	}
	return priv, nil
}

// UnsealWithRecovery decrypts key_id's secret key using an ML-KEM-1024
// recovery private key in place of the master secret, for the case
// where the master secret has been lost. It fails if key_id was sealed
// by a Store with no recovery public key configured, or if priv
// doesn't match the key that was.
func (s *Store) UnsealWithRecovery(keyID string, recoveryPriv []byte) ([]byte, error) {
	rec, err := s.load(keyID)
	if err != nil {
		return nil, err
	}
	if len(rec.RecoveryKEMCiphertext) == 0 {
		return nil, fmt.Errorf("keystore: key_id %q has no recovery path", keyID)
	}
	sharedSecret, err := pqcrypto.KEMDecapsulate(recoveryPriv, rec.RecoveryKEMCiphertext)
	if err != nil {
		return nil, fmt.Errorf("keystore: kem decapsulate: %w", err)
	}
	defer zeroize(sharedSecret)

	dek, err := pqcrypto.AEADOpen(sharedSecret, rec.RecoveryNonce, rec.PublicKey, rec.RecoveryDEKCiphertext)
	if err != nil {
		return nil, fmt.Errorf("keystore: unwrap recovery dek: %w", err)
	}
	defer zeroize(dek)

	priv, err := pqcrypto.AEADOpen(dek, rec.SecretNonce, rec.PublicKey, rec.SecretCiphertext)
	if err != nil {
		return nil, fmt.Errorf("keystore: unseal secret key via recovery: %w", err)
	}
	return priv, nil
}

// deriveKeyID computes a record's key_id, matching the
// key-id-from-public-key check used to verify keystore integrity.
func deriveKeyID(pub []byte) string {
	sum := pqcrypto.SHA3256(pub)
	return hex.EncodeToString(sum[:])
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
