package nodeapp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/photon-chain/node/chainmgr"
	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/keystore"
	"github.com/photon-chain/node/mempool"
	"github.com/photon-chain/node/miner"
	"github.com/photon-chain/node/p2p"
	"github.com/photon-chain/node/rpcapi"
	"github.com/photon-chain/node/store"
	"github.com/photon-chain/node/syncengine"
)

// mempoolMaxAge is how long an admitted transaction may sit unconfirmed
// before the mempool evicts it.
const mempoolMaxAge = 72 * time.Hour

// dialRetryInterval is how often the node retries a bootnode it failed
// to connect to or that disconnected.
const dialRetryInterval = 10 * time.Second

// identityFileName and pidFileName live directly under the data
// directory alongside the store's own chain.db file.
const (
	identityFileName = "identity"
	pidFileName      = "photon-node.pid"
)

// Node owns every long-lived component of one running process: the
// store, chain manager, mempool, optional keystore and miner, the P2P
// listener and bootnode dialer, the sync engine, and the RPC server.
type Node struct {
	cfg    Config
	params chainparams.Params
	logger zerolog.Logger

	db   *store.DB
	mgr  *chainmgr.Manager
	pool *mempool.Pool
	ks   *keystore.Store

	engine  *syncengine.Engine
	handler *handler
	rpc     *rpcapi.Server

	hello p2p.Hello

	identityID string

	mu        sync.Mutex
	listeners []net.Listener
	wg        sync.WaitGroup
}

// New opens the store, wires every component together, and builds the
// node's identity, but does not yet bind any sockets or start any
// background task. Call Run to actually serve.
func New(cfg Config, logger zerolog.Logger) (*Node, error) {
	params, ok := chainparams.ByName(cfg.Network)
	if !ok {
		return nil, fmt.Errorf("nodeapp: unknown network %q", cfg.Network)
	}

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("nodeapp: open store: %w", err)
	}

	identityID, err := loadOrCreateIdentity(cfg.DataDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("nodeapp: identity: %w", err)
	}

	pool := mempool.New(params, params.NetworkID, mempoolMaxAge)
	mgr := chainmgr.New(db, pool, params)

	// genesis is rebuilt from params on every startup, not just the
	// first. It is fully deterministic (fixed timestamp, no wall-clock
	// input), so InitGenesis either commits it fresh or recognizes it
	// already matches what's on disk and reloads chain state from the
	// store instead.
	genesis := consensus.BuildGenesisBlock(params, params.GenesisTimestamp)
	genesisHash := consensus.BlockHash(genesis.Header)
	if err := mgr.InitGenesis(genesis); err != nil {
		db.Close()
		return nil, fmt.Errorf("nodeapp: init genesis: %w", err)
	}
	logger.Info().Str("hash", hashHex(genesisHash)).Uint64("height", mgr.BestHeight()).Msg("genesis ready")

	var recoveryPub []byte
	if cfg.WalletRecoveryPubKey != "" {
		recoveryPub, err = hex.DecodeString(cfg.WalletRecoveryPubKey)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("nodeapp: wallet recovery pubkey: %w", err)
		}
	}

	var ks *keystore.Store
	if secret, envErr := keystore.LoadMasterSecretFromEnv(); envErr == nil {
		if len(recoveryPub) > 0 {
			ks, err = keystore.NewWithRecovery(db, secret, recoveryPub)
		} else {
			ks, err = keystore.New(db, secret)
		}
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("nodeapp: keystore: %w", err)
		}
		for i := range secret {
			secret[i] = 0
		}
	} else if cfg.Mining || cfg.AnchorKeyID != "" {
		db.Close()
		return nil, fmt.Errorf("nodeapp: keystore required but unavailable: %w", envErr)
	}

	engine := syncengine.New(mgr, params)
	h := newHandler(mgr, db, pool, engine, logger)

	rpc := rpcapi.New(cfg.RPCListenAddr, mgr, db, pool, params, logger)
	if ks != nil && cfg.AnchorKeyID != "" {
		rpc.SetAnchorSigner(ks, cfg.AnchorKeyID)
	}

	hello := p2p.Hello{
		NetworkID:   params.NetworkID,
		GenesisHash: genesisHash,
		TipHeight:   mgr.BestHeight(),
		TipHash:     mgr.BestHash(),
	}

	return &Node{
		cfg:        cfg,
		params:     params,
		logger:     logger,
		db:         db,
		mgr:        mgr,
		pool:       pool,
		ks:         ks,
		engine:     engine,
		handler:    h,
		rpc:        rpc,
		hello:      hello,
		identityID: identityID,
	}, nil
}

// Run starts every background task and blocks until ctx is cancelled,
// then shuts everything down gracefully: cancel tasks, drain pending
// batches to the Store, fsync, exit.
func (n *Node) Run(ctx context.Context) error {
	n.logger.Info().
		Str("identity", n.identityID).
		Str("network", string(n.params.Network)).
		Uint64("height", n.mgr.BestHeight()).
		Msg("starting node")

	if err := n.writePIDFile(); err != nil {
		return fmt.Errorf("nodeapp: pid file: %w", err)
	}
	defer n.removePIDFile()

	if err := n.rpc.Start(); err != nil {
		return fmt.Errorf("nodeapp: rpc start: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ln, err := net.Listen("tcp", n.cfg.ListenAddr)
	if err != nil {
		cancel()
		n.stopRPC()
		return fmt.Errorf("nodeapp: listen: %w", err)
	}
	n.mu.Lock()
	n.listeners = append(n.listeners, ln)
	n.mu.Unlock()
	n.logger.Info().Str("addr", ln.Addr().String()).Msg("p2p listening")

	n.wg.Add(1)
	go n.acceptLoop(runCtx, ln)

	for _, addr := range n.cfg.Bootnodes {
		n.wg.Add(1)
		go n.dialLoop(runCtx, addr)
	}

	if n.cfg.Mining {
		recipient, err := parseCoinbaseAddress(n.cfg.CoinbaseAddress)
		if err != nil {
			cancel()
			n.stopRPC()
			return fmt.Errorf("nodeapp: coinbase address: %w", err)
		}
		m := miner.New(n.mgr, n.pool, miner.Config{
			Params:            n.params,
			CoinbaseRecipient: recipient,
			Threads:           n.cfg.MiningThreads,
		})
		found := make(chan consensus.Block, 1)
		n.wg.Add(2)
		go func() {
			defer n.wg.Done()
			m.Run(runCtx, found)
		}()
		go n.minedBlockLoop(runCtx, found)
	}

	<-ctx.Done()
	n.logger.Info().Msg("shutting down")
	cancel()
	n.closeListeners()
	n.stopRPC()
	n.wg.Wait()

	if err := n.db.Close(); err != nil {
		return fmt.Errorf("nodeapp: close store: %w", err)
	}
	n.logger.Info().Msg("stopped")
	return nil
}

func (n *Node) stopRPC() {
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := n.rpc.Stop(stopCtx); err != nil {
		n.logger.Warn().Err(err).Msg("rpc shutdown")
	}
}

func (n *Node) closeListeners() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ln := range n.listeners {
		_ = ln.Close()
	}
}

// minedBlockLoop announces every block this node mines to peers that
// don't already have it, the same path OnBlock uses for peer-relayed
// blocks reaching a new tip.
func (n *Node) minedBlockLoop(ctx context.Context, found <-chan consensus.Block) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-found:
			if !ok {
				return
			}
			hash := consensus.BlockHash(block.Header)
			height := n.mgr.BestHeight()
			if entry, ok, err := n.db.GetIndexEntry(hash); err == nil && ok {
				height = entry.Height
			}
			n.logger.Info().
				Uint64("height", height).
				Str("hash", hashHex(hash)).
				Msg("mined block")
			if err := n.engine.GossipNewTip(block); err != nil {
				n.logger.Warn().Err(err).Msg("gossip mined block failed")
			}
		}
	}
}

func (n *Node) acceptLoop(ctx context.Context, ln net.Listener) {
	defer n.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			n.logger.Warn().Err(err).Msg("accept failed")
			continue
		}
		n.wg.Add(1)
		go n.serveConn(ctx, conn, false, "")
	}
}

func (n *Node) dialLoop(ctx context.Context, addr string) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n.wg.Add(1)
		n.serveConn(ctx, nil, true, addr)
		select {
		case <-ctx.Done():
			return
		case <-time.After(dialRetryInterval):
		}
	}
}

// serveConn drives one peer connection end to end: handshake (dialing
// addr if conn is nil), registration with the sync engine, the read
// loop, and deregistration on exit. It returns once the connection is
// no longer usable, so dialLoop can decide whether to retry.
func (n *Node) serveConn(ctx context.Context, conn net.Conn, outbound bool, addr string) {
	defer n.wg.Done()

	hello := n.hello
	hello.TipHeight = n.mgr.BestHeight()
	hello.TipHash = n.mgr.BestHash()

	var peer *p2p.Peer
	var err error
	if outbound {
		dialCtx, dialCancel := context.WithTimeout(ctx, p2p.HandshakeTimeout)
		peer, err = p2p.Dial(dialCtx, addr, n.params, hello)
		dialCancel()
	} else {
		peer, err = p2p.Accept(conn, n.params, hello)
	}
	if err != nil {
		n.logger.Debug().Err(err).Str("addr", addr).Bool("outbound", outbound).Msg("handshake failed")
		if conn != nil {
			_ = conn.Close()
		}
		return
	}

	id := peerID(peer)
	n.engine.AddPeer(id, peer)
	defer n.engine.RemovePeer(id)

	if err := n.engine.OnHello(id, peer.PeerHello.TipHeight, peer.PeerHello.TipHash); err != nil {
		n.logger.Debug().Err(err).Str("peer", id).Msg("hello handling failed")
	}

	n.logger.Info().Str("peer", id).Bool("outbound", outbound).Uint64("peer_height", peer.PeerHello.TipHeight).Msg("peer connected")
	if err := peer.Run(ctx, n.handler); err != nil && ctx.Err() == nil {
		n.logger.Debug().Err(err).Str("peer", id).Msg("peer session ended")
	}
}

func (n *Node) writePIDFile() error {
	path := filepath.Join(n.cfg.DataDir, pidFileName)
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (n *Node) removePIDFile() {
	path := filepath.Join(n.cfg.DataDir, pidFileName)
	_ = os.Remove(path)
}

// loadOrCreateIdentity reads the node's persistent identity id from the
// data directory, generating and saving a fresh random one on first run.
func loadOrCreateIdentity(dataDir string) (string, error) {
	path := filepath.Join(dataDir, identityFileName)
	if raw, err := os.ReadFile(path); err == nil {
		id := string(raw)
		if len(id) == 32 {
			return id, nil
		}
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate identity: %w", err)
	}
	id := hex.EncodeToString(buf)
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", err
	}
	return id, nil
}

func hashHex(h consensus.Hash) string {
	return hex.EncodeToString(h[:])
}
