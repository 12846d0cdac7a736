// Package nodeapp wires the chain manager, mempool, miner, P2P layer,
// sync engine, keystore, and RPC server into one running process, and
// owns the process-level concerns (config validation, logging,
// graceful shutdown) none of those packages know about individually.
package nodeapp

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/photon-chain/node/chainparams"
)

// Config is the effective, validated configuration for one node process.
type Config struct {
	Network         string
	DataDir         string
	ListenAddr      string
	RPCListenAddr   string
	Bootnodes       []string
	Mining          bool
	MiningThreads   int
	CoinbaseAddress string
	LogLevel        string
	AnchorKeyID     string

	// WalletRecoveryPubKey is an optional hex-encoded ML-KEM-1024 public
	// key. When set, every keystore record additionally wraps its DEK
	// under it, so the matching private key (held by the operator,
	// never by the node) can recover a key without the master secret.
	WalletRecoveryPubKey string
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// DefaultDataDir returns the per-user default data directory, falling
// back to a relative path when the home directory can't be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".photon-chain"
	}
	return filepath.Join(home, ".photon-chain")
}

// DefaultConfig returns the configuration a node starts from before any
// flags or environment variables are applied.
func DefaultConfig() Config {
	return Config{
		Network:       string(chainparams.Devnet),
		DataDir:       DefaultDataDir(),
		ListenAddr:    "0.0.0.0:19333",
		RPCListenAddr: "127.0.0.1:19334",
		LogLevel:      "info",
		MiningThreads: 1,
	}
}

// NormalizePeers splits comma-separated tokens, trims whitespace,
// drops empties, and deduplicates while preserving first-seen order.
func NormalizePeers(raw ...string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, token := range raw {
		for _, p := range strings.Split(token, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig rejects a configuration that would cause startup to
// fail in a way the caller should have caught before opening the store.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if _, ok := chainparams.ByName(cfg.Network); !ok {
		return fmt.Errorf("unknown network %q", cfg.Network)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data-dir is required")
	}
	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}
	if err := validateAddr(cfg.RPCListenAddr); err != nil {
		return fmt.Errorf("invalid rpc-listen address: %w", err)
	}
	for _, peer := range cfg.Bootnodes {
		if err := validatePeerAddr(peer); err != nil {
			return fmt.Errorf("invalid bootnode %q: %w", peer, err)
		}
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	if cfg.Mining {
		if cfg.MiningThreads <= 0 {
			return errors.New("mining-threads must be > 0 when mining is enabled")
		}
		if strings.TrimSpace(cfg.CoinbaseAddress) == "" {
			return errors.New("coinbase-address is required when mining is enabled")
		}
		if _, err := parseCoinbaseAddress(cfg.CoinbaseAddress); err != nil {
			return fmt.Errorf("invalid coinbase-address: %w", err)
		}
	}
	if strings.TrimSpace(cfg.WalletRecoveryPubKey) != "" {
		if _, err := hex.DecodeString(cfg.WalletRecoveryPubKey); err != nil {
			return fmt.Errorf("invalid wallet-recovery-pubkey: %w", err)
		}
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

func validatePeerAddr(addr string) error {
	if err := validateAddr(addr); err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(addr)
	if strings.TrimSpace(host) == "" {
		return errors.New("missing host")
	}
	return nil
}
