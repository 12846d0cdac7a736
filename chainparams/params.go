// Package chainparams holds the per-network constant sets consensus and
// the rest of the node are parameterized over.
package chainparams

import "time"

// Network identifies which constant set a node is running with.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Devnet  Network = "devnet"
)

// Params is the full set of consensus and policy constants for one network.
type Params struct {
	Network Network

	NetworkID uint32

	MaxMoney      uint64
	MaxBlockBytes uint32
	MaxClockSkew  uint64

	TargetBlockInterval uint64 // seconds
	RetargetInterval    uint64 // blocks
	PowLimit            [32]byte
	MaxFutureDrift      uint64 // seconds, miner timestamp slack

	CoinbaseMaturity uint64

	MaxFrameBytes  uint32
	PingTimeout    time.Duration
	BanThreshold   int64
	ThrottleThresh int64
	BanDuration    time.Duration

	HeaderBatch    int
	BlockWindow    int
	MaxSyncBackoff time.Duration

	TemplateRefreshInterval time.Duration
	ProtocolVersion         uint32

	// GenesisTimestamp is the fixed Unix timestamp every node on this
	// network builds its genesis block with. It must never depend on
	// wall-clock time: two independently started nodes on the same
	// network have to derive byte-identical genesis blocks, since the
	// P2P handshake rejects a peer whose genesis hash disagrees.
	GenesisTimestamp uint64
}

var powLimitMainnet = [32]byte{
	0x00, 0x00, 0x0f, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

var powLimitDevnet = [32]byte{
	0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// MainnetParams is the production network's constant set.
func MainnetParams() Params {
	return Params{
		Network:                 Mainnet,
		NetworkID:               0x504e0001, // "PN" + version
		MaxMoney:                21_000_000_00000000,
		MaxBlockBytes:           4 * 1024 * 1024,
		MaxClockSkew:            2 * 60 * 60,
		TargetBlockInterval:     600,
		RetargetInterval:        2016,
		PowLimit:                powLimitMainnet,
		MaxFutureDrift:          2 * 60 * 60,
		CoinbaseMaturity:        100,
		MaxFrameBytes:           32 * 1024 * 1024,
		PingTimeout:             30 * time.Second,
		BanThreshold:            200,
		ThrottleThresh:          50,
		BanDuration:             24 * time.Hour,
		HeaderBatch:             2000,
		BlockWindow:             16,
		MaxSyncBackoff:          5 * time.Minute,
		TemplateRefreshInterval: 30 * time.Second,
		ProtocolVersion:         1,
		GenesisTimestamp:        1_700_000_000,
	}
}

// TestnetParams mirrors mainnet but with a distinct network name and id;
// every other constant, and therefore the genesis block, is mainnet's.
func TestnetParams() Params {
	p := MainnetParams()
	p.Network = Testnet
	p.NetworkID = 0x504e0002
	return p
}

// DevnetParams loosens PoW and retarget so local chains advance quickly.
func DevnetParams() Params {
	p := MainnetParams()
	p.Network = Devnet
	p.NetworkID = 0x504e00ff
	p.PowLimit = powLimitDevnet
	p.TargetBlockInterval = 5
	p.RetargetInterval = 32
	p.CoinbaseMaturity = 1
	return p
}

// ByName resolves a --network flag value to a Params set.
func ByName(name string) (Params, bool) {
	switch Network(name) {
	case Mainnet:
		return MainnetParams(), true
	case Testnet:
		return TestnetParams(), true
	case Devnet:
		return DevnetParams(), true
	default:
		return Params{}, false
	}
}
