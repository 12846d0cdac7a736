package syncengine

import (
	"testing"
	"time"

	"github.com/photon-chain/node/chainmgr"
	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/mempool"
	"github.com/photon-chain/node/store"
)

type fakeLink struct {
	getHeadersCalls []uint64
	getBlocksCalls  [][]consensus.Hash
	blocksSent      []consensus.Block
}

func (f *fakeLink) SendGetHeaders(fromHeight uint64, max uint32) error {
	f.getHeadersCalls = append(f.getHeadersCalls, fromHeight)
	return nil
}
func (f *fakeLink) SendGetBlocks(hashes []consensus.Hash) error {
	f.getBlocksCalls = append(f.getBlocksCalls, hashes)
	return nil
}
func (f *fakeLink) SendBlock(block consensus.Block) error {
	f.blocksSent = append(f.blocksSent, block)
	return nil
}

func mineBlock(t *testing.T, block consensus.Block) consensus.Block {
	t.Helper()
	for nonce := uint64(0); nonce < 1_000_000; nonce++ {
		block.Header.Nonce = nonce
		if consensus.PowCheck(block.Header, block.Header.Target) == nil {
			return block
		}
	}
	t.Fatalf("failed to find a valid nonce")
	return block
}

func childBlock(t *testing.T, params chainparams.Params, parent consensus.BlockHeader, ts uint64) consensus.Block {
	t.Helper()
	coinbase := consensus.Transaction{
		Version: 1,
		TxKind:  consensus.TxKindCoinbase,
		Inputs:  []consensus.TxIn{{PrevOut: consensus.Outpoint{Txid: consensus.Hash{}, Vout: ^uint32(0)}}},
		Outputs: []consensus.TxOut{{Value: consensus.BlockSubsidy(0), CovenantType: consensus.CovP2PKH, CovenantData: make([]byte, 32)}},
	}
	txids := []consensus.Hash{consensus.TxID(coinbase)}
	root, err := consensus.MerkleRootTxids(txids)
	if err != nil {
		t.Fatalf("merkle root: %v", err)
	}
	header := consensus.BlockHeader{
		Version:    1,
		PrevHash:   consensus.BlockHash(parent),
		MerkleRoot: root,
		Timestamp:  ts,
		Target:     params.PowLimit,
	}
	block := consensus.Block{Header: header, Txs: []consensus.Transaction{coinbase}}
	return mineBlock(t, block)
}

func newTestEngine(t *testing.T) (*Engine, *chainmgr.Manager, chainparams.Params) {
	t.Helper()
	params := chainparams.DevnetParams()
	db, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	pool := mempool.New(params, params.NetworkID, time.Hour)
	mgr := chainmgr.New(db, pool, params)

	genesis := consensus.BuildGenesisBlock(params, 1_700_000_000)
	if err := mgr.InitGenesis(genesis); err != nil {
		t.Fatalf("init genesis: %v", err)
	}
	return New(mgr, params), mgr, params
}

func TestOnHelloRequestsHeadersWhenPeerIsAhead(t *testing.T) {
	e, mgr, _ := newTestEngine(t)
	link := &fakeLink{}
	e.AddPeer("peerA", link)

	if err := e.OnHello("peerA", 5, consensus.Hash{1}); err != nil {
		t.Fatalf("on hello: %v", err)
	}
	if len(link.getHeadersCalls) != 1 {
		t.Fatalf("expected one GetHeaders call, got %d", len(link.getHeadersCalls))
	}
	if link.getHeadersCalls[0] != mgr.BestHeight()+1 {
		t.Fatalf("expected request from height %d, got %d", mgr.BestHeight()+1, link.getHeadersCalls[0])
	}
}

func TestOnHelloSkipsRequestWhenNotAhead(t *testing.T) {
	e, mgr, _ := newTestEngine(t)
	link := &fakeLink{}
	e.AddPeer("peerA", link)

	if err := e.OnHello("peerA", mgr.BestHeight(), consensus.Hash{}); err != nil {
		t.Fatalf("on hello: %v", err)
	}
	if len(link.getHeadersCalls) != 0 {
		t.Fatalf("expected no GetHeaders call, got %d", len(link.getHeadersCalls))
	}
}

func TestOnHeadersQueuesBlockRequestsWithinWindow(t *testing.T) {
	e, mgr, params := newTestEngine(t)
	link := &fakeLink{}
	e.AddPeer("peerA", link)

	genesisHeader := mgr.BestHeader()
	b1 := childBlock(t, params, genesisHeader, 1_700_000_700)

	if err := e.OnHeaders("peerA", []consensus.BlockHeader{b1.Header}); err != nil {
		t.Fatalf("on headers: %v", err)
	}
	if len(link.getBlocksCalls) != 1 {
		t.Fatalf("expected one GetBlocks call, got %d", len(link.getBlocksCalls))
	}
	if len(link.getBlocksCalls[0]) != 1 {
		t.Fatalf("expected one hash requested, got %d", len(link.getBlocksCalls[0]))
	}
}

func TestOnBlockExtendsTipAndClearsInFlight(t *testing.T) {
	e, mgr, params := newTestEngine(t)
	link := &fakeLink{}
	e.AddPeer("peerA", link)

	genesisHeader := mgr.BestHeader()
	b1 := childBlock(t, params, genesisHeader, 1_700_000_700)

	if err := e.OnHeaders("peerA", []consensus.BlockHeader{b1.Header}); err != nil {
		t.Fatalf("on headers: %v", err)
	}
	result, err := e.OnBlock("peerA", b1)
	if err != nil {
		t.Fatalf("on block: %v", err)
	}
	if result != chainmgr.AcceptExtended {
		t.Fatalf("expected AcceptExtended, got %v", result)
	}
	if mgr.BestHeight() != 1 {
		t.Fatalf("expected height 1, got %d", mgr.BestHeight())
	}
}

func TestOnBlockOrphanTriggersGetHeaders(t *testing.T) {
	e, mgr, params := newTestEngine(t)
	link := &fakeLink{}
	e.AddPeer("peerA", link)

	genesisHeader := mgr.BestHeader()
	b1 := childBlock(t, params, genesisHeader, 1_700_000_700)
	b2 := childBlock(t, params, b1.Header, 1_700_001_400)

	result, err := e.OnBlock("peerA", b2)
	if err != nil {
		t.Fatalf("on block: %v", err)
	}
	if result != chainmgr.AcceptOrphaned {
		t.Fatalf("expected AcceptOrphaned, got %v", result)
	}
	if len(link.getHeadersCalls) != 1 {
		t.Fatalf("expected GetHeaders to be requested on orphan, got %d calls", len(link.getHeadersCalls))
	}
}

func TestGossipNewTipSendsToPeersNotKnownToHaveIt(t *testing.T) {
	e, mgr, params := newTestEngine(t)
	link := &fakeLink{}
	e.AddPeer("peerA", link)

	genesisHeader := mgr.BestHeader()
	b1 := childBlock(t, params, genesisHeader, 1_700_000_700)

	if err := e.GossipNewTip(b1); err != nil {
		t.Fatalf("gossip new tip: %v", err)
	}
	if len(link.blocksSent) != 1 {
		t.Fatalf("expected one block sent, got %d", len(link.blocksSent))
	}

	if err := e.GossipNewTip(b1); err != nil {
		t.Fatalf("gossip new tip again: %v", err)
	}
	if len(link.blocksSent) != 1 {
		t.Fatalf("expected peer already known to have tip to be skipped, got %d sends", len(link.blocksSent))
	}
}

func TestDisconnectPeerSchedulesRetryWithBackoff(t *testing.T) {
	e, mgr, params := newTestEngine(t)
	link := &fakeLink{}
	e.AddPeer("peerA", link)

	genesisHeader := mgr.BestHeader()
	b1 := childBlock(t, params, genesisHeader, 1_700_000_700)
	if err := e.OnHeaders("peerA", []consensus.BlockHeader{b1.Header}); err != nil {
		t.Fatalf("on headers: %v", err)
	}

	now := time.Unix(1_700_000_800, 0)
	e.DisconnectPeer("peerA", now)

	if due := e.DueRetries(now); len(due) != 0 {
		t.Fatalf("expected no retries due immediately, got %d", len(due))
	}
	later := now.Add(e.params.MaxSyncBackoff + time.Second)
	due := e.DueRetries(later)
	if len(due) != 1 {
		t.Fatalf("expected one retried hash once backoff elapses, got %d", len(due))
	}
}

func TestNextBackoffClampsToMax(t *testing.T) {
	max := 10 * time.Second
	b := time.Second
	for i := 0; i < 10; i++ {
		b = NextBackoff(b, max)
	}
	if b != max {
		t.Fatalf("expected backoff to clamp at %v, got %v", max, b)
	}
}
