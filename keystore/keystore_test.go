package keystore

import (
	"bytes"
	"strings"
	"testing"

	"github.com/photon-chain/node/pqcrypto"
	"github.com/photon-chain/node/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	secret := bytes.Repeat([]byte{0x42}, 32)
	s, err := New(db, secret)
	if err != nil {
		t.Fatalf("new keystore: %v", err)
	}
	return s
}

func TestCreateSignVerifyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	keyID, err := s.Create(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pub, err := s.PublicKey(keyID)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}

	msg := []byte("hello photon")
	sig, err := s.Sign(keyID, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !pqcrypto.Verify(pqcrypto.AlgClassicalTest, pub, msg, sig) {
		t.Fatalf("expected signature to verify")
	}
}

func TestCreateProducesDistinctKeys(t *testing.T) {
	s := newTestStore(t)
	id1, err := s.Create(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("create 1: %v", err)
	}
	id2, err := s.Create(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("create 2: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected distinct key ids for independently generated keys")
	}
}

func TestDestroyTombstonesAndBlocksFurtherUse(t *testing.T) {
	s := newTestStore(t)
	keyID, err := s.Create(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Destroy(keyID); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if _, err := s.PublicKey(keyID); err == nil {
		t.Fatalf("expected public key lookup to fail after destroy")
	}
	if _, err := s.Sign(keyID, []byte("x")); err == nil {
		t.Fatalf("expected sign to fail after destroy")
	}
}

func TestListExcludesDestroyedKeys(t *testing.T) {
	s := newTestStore(t)
	keep, err := s.Create(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gone, err := s.Create(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Destroy(gone); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	ids, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == gone {
			t.Fatalf("destroyed key %s should not be listed", gone)
		}
		if id == keep {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s to be listed", keep)
	}
}

func TestRotateAllowsSigningUnderNewSecret(t *testing.T) {
	s := newTestStore(t)
	keyID, err := s.Create(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	newSecret := bytes.Repeat([]byte{0x7a}, 32)
	if err := s.Rotate(newSecret); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := s.Sign(keyID, []byte("after rotation")); err != nil {
		t.Fatalf("sign after rotation: %v", err)
	}
}

func TestLoadMasterSecretFromEnvRejectsShortSecret(t *testing.T) {
	t.Setenv(MasterSecretEnvVar, "aabbcc")
	if _, err := LoadMasterSecretFromEnv(); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}

func TestLoadMasterSecretFromEnvRejectsMissing(t *testing.T) {
	t.Setenv(MasterSecretEnvVar, "")
	_, err := LoadMasterSecretFromEnv()
	if err == nil || !strings.Contains(err.Error(), MasterSecretEnvVar) {
		t.Fatalf("expected error naming %s, got %v", MasterSecretEnvVar, err)
	}
}

func TestRecoveryPathUnsealsWithoutMasterSecret(t *testing.T) {
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	recoveryPub, recoveryPriv, err := GenerateRecoveryKeypair()
	if err != nil {
		t.Fatalf("generate recovery keypair: %v", err)
	}

	secret := bytes.Repeat([]byte{0x42}, 32)
	s, err := NewWithRecovery(db, secret, recoveryPub)
	if err != nil {
		t.Fatalf("new keystore with recovery: %v", err)
	}

	keyID, err := s.Create(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pub, err := s.PublicKey(keyID)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}

	priv, err := s.UnsealWithRecovery(keyID, recoveryPriv)
	if err != nil {
		t.Fatalf("unseal with recovery: %v", err)
	}

	msg := []byte("recovered without the master secret")
	sig, err := pqcrypto.Sign(pqcrypto.AlgClassicalTest, priv, msg)
	if err != nil {
		t.Fatalf("sign with recovered key: %v", err)
	}
	if !pqcrypto.Verify(pqcrypto.AlgClassicalTest, pub, msg, sig) {
		t.Fatalf("expected signature from the recovered secret key to verify")
	}

	wrongPriv := make([]byte, len(recoveryPriv))
	copy(wrongPriv, recoveryPriv)
	wrongPriv[0] ^= 0xff
	if _, err := s.UnsealWithRecovery(keyID, wrongPriv); err == nil {
		t.Fatalf("expected the wrong recovery key to fail")
	}
}

func TestUnsealWithRecoveryRejectsKeyWithNoRecoveryPath(t *testing.T) {
	s := newTestStore(t)
	keyID, err := s.Create(pqcrypto.AlgClassicalTest)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, priv, err := GenerateRecoveryKeypair()
	if err != nil {
		t.Fatalf("generate recovery keypair: %v", err)
	}
	if _, err := s.UnsealWithRecovery(keyID, priv); err == nil {
		t.Fatalf("expected an error for a key sealed with no recovery path")
	}
}
