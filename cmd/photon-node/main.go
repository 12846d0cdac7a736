// Command photon-node runs one post-quantum UTXO chain node: chain
// manager, mempool, optional miner, P2P session layer, sync engine,
// and the JSON-RPC/REST external interface.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/photon-chain/node/keystore"
	"github.com/photon-chain/node/nodeapp"
)

// exit codes, per the node's documented CLI contract.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitStoreCorrupted = 2
	exitPanic          = 3
)

type multiStringFlag []string

func (m *multiStringFlag) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(*m, ",")
}

func (m *multiStringFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "panic: %v\n", r)
			exitCode = exitPanic
		}
	}()

	defaults := nodeapp.DefaultConfig()
	cfg := defaults
	var bootnodeCSV string
	var bootnodes multiStringFlag

	fs := flag.NewFlagSet("photon-node", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&cfg.DataDir, "data-dir", defaults.DataDir, "node data directory")
	fs.StringVar(&cfg.ListenAddr, "listen", defaults.ListenAddr, "P2P listen address host:port")
	fs.StringVar(&cfg.RPCListenAddr, "rpc-listen", defaults.RPCListenAddr, "JSON-RPC/REST listen address host:port")
	fs.StringVar(&bootnodeCSV, "bootnodes", "", "bootstrap peers, comma-separated host:port")
	fs.Var(&bootnodes, "bootnode", "single bootstrap peer host:port (repeatable)")
	fs.BoolVar(&cfg.Mining, "mining", false, "enable local mining")
	fs.IntVar(&cfg.MiningThreads, "mining-threads", defaults.MiningThreads, "number of mining worker threads")
	fs.StringVar(&cfg.CoinbaseAddress, "coinbase-address", "", "32-byte hex address to receive mined coinbases")
	fs.StringVar(&cfg.Network, "network", defaults.Network, "network name (mainnet/testnet/devnet)")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&cfg.AnchorKeyID, "anchor-key-id", "", "keystore key id authorized to sign proof-anchor transactions")
	fs.StringVar(&cfg.WalletRecoveryPubKey, "wallet-recovery-pubkey", "", "hex ML-KEM-1024 public key that can recover wallet keys without the master secret")
	dryRun := fs.Bool("dry-run", false, "validate configuration and exit")
	genRecoveryKeypair := fs.Bool("generate-recovery-keypair", false, "print a fresh ML-KEM-1024 recovery keypair and exit")

	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}

	if *genRecoveryKeypair {
		pub, priv, err := keystore.GenerateRecoveryKeypair()
		if err != nil {
			fmt.Fprintf(stderr, "generate recovery keypair: %v\n", err)
			return exitConfigError
		}
		fmt.Fprintf(stdout, "recovery-pubkey:  %s\n", hex.EncodeToString(pub))
		fmt.Fprintf(stdout, "recovery-privkey: %s\n", hex.EncodeToString(priv))
		fmt.Fprintln(stdout, "store the private key offline; pass the public key to --wallet-recovery-pubkey")
		return exitOK
	}

	cfg.Bootnodes = nodeapp.NormalizePeers(append([]string{bootnodeCSV}, bootnodes...)...)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := nodeapp.ValidateConfig(cfg); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return exitConfigError
	}
	if *dryRun {
		fmt.Fprintf(stdout, "config ok: network=%s data-dir=%s listen=%s rpc-listen=%s mining=%v\n",
			cfg.Network, cfg.DataDir, cfg.ListenAddr, cfg.RPCListenAddr, cfg.Mining)
		return exitOK
	}

	logger := nodeapp.NewLogger(cfg.LogLevel, stdout)

	node, err := nodeapp.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "node init failed: %v\n", err)
		return exitStoreCorrupted
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := node.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "node exited with error: %v\n", err)
		return exitStoreCorrupted
	}
	return exitOK
}
