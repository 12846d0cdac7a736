package nodeapp

import (
	"strings"
	"testing"
)

func TestNormalizePeers(t *testing.T) {
	got := NormalizePeers("127.0.0.1:19333, 127.0.0.1:19334", "127.0.0.1:19333", " ", "10.0.0.1:19333")
	want := []string{"127.0.0.1:19333", "127.0.0.1:19334", "10.0.0.1:19333"}
	if len(got) != len(want) {
		t.Fatalf("len=%d want=%d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("at %d got=%q want=%q", i, got[i], want[i])
		}
	}
}

func TestValidateConfigOK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bootnodes = []string{"127.0.0.1:19333"}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateConfigRejectsBadListenAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateConfigRejectsBadBootnode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bootnodes = []string{"not-an-address"}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestValidateConfigRejectsUnknownNetwork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network = "nonexistent"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error for an unknown network")
	}
}

func TestValidateConfigRejectsMiningWithoutCoinbase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mining = true
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error when mining is enabled with no coinbase address")
	}
}

func TestValidateConfigRejectsMiningWithBadCoinbase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mining = true
	cfg.CoinbaseAddress = "not-hex"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error for a malformed coinbase address")
	}
}

func TestValidateConfigRejectsBadWalletRecoveryPubKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WalletRecoveryPubKey = "not-hex"
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected error for a non-hex wallet recovery pubkey")
	}
}

func TestValidateConfigAcceptsHexWalletRecoveryPubKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WalletRecoveryPubKey = strings.Repeat("ab", 32)
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateConfigAcceptsMiningWithCoinbase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mining = true
	cfg.CoinbaseAddress = strings.Repeat("42", 32)
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
