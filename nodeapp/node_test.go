package nodeapp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadOrCreateIdentityPersists(t *testing.T) {
	dir := t.TempDir()
	id1, err := loadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("loadOrCreateIdentity: %v", err)
	}
	if len(id1) != 32 {
		t.Fatalf("expected a 32-character hex identity, got %q", id1)
	}
	id2, err := loadOrCreateIdentity(dir)
	if err != nil {
		t.Fatalf("loadOrCreateIdentity (reload): %v", err)
	}
	if id1 != id2 {
		t.Fatalf("identity should persist across loads: %q vs %q", id1, id2)
	}
}

func TestNewInitializesGenesis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Network = "devnet"
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.RPCListenAddr = "127.0.0.1:0"

	n, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer n.db.Close()

	if n.mgr.BestHeight() != 0 {
		t.Fatalf("expected height 0 right after genesis init, got %d", n.mgr.BestHeight())
	}
	if _, ok, err := n.db.GetGenesisHash(); err != nil || !ok {
		t.Fatalf("expected a persisted genesis hash, ok=%v err=%v", ok, err)
	}
}

func TestNewReloadsExistingChainState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Network = "devnet"
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.RPCListenAddr = "127.0.0.1:0"

	first, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New (first): %v", err)
	}
	wantHash := first.mgr.BestHash()
	wantHeight := first.mgr.BestHeight()
	if err := first.db.Close(); err != nil {
		t.Fatalf("close first store: %v", err)
	}

	second, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New (second, same data dir): %v", err)
	}
	defer second.db.Close()

	if second.mgr.BestHeight() != wantHeight {
		t.Fatalf("reopened node lost height: got %d want %d", second.mgr.BestHeight(), wantHeight)
	}
	if second.mgr.BestHash() != wantHash {
		t.Fatalf("reopened node lost tip hash: got %x want %x", second.mgr.BestHash(), wantHash)
	}
}

func TestRunStartsAndStopsCleanly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Network = "devnet"
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.RPCListenAddr = "127.0.0.1:0"

	n, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- n.Run(ctx) }()

	pidPath := filepath.Join(cfg.DataDir, pidFileName)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(pidPath); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := os.Stat(pidPath); err != nil {
		t.Fatalf("expected a pid file to appear while running: %v", err)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned an error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop within the timeout")
	}

	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected the pid file to be removed after shutdown, err=%v", err)
	}
}
