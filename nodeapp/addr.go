package nodeapp

import (
	"encoding/hex"
	"fmt"
)

// parseCoinbaseAddress decodes a 32-byte hex address, the same format
// rpcapi accepts for chain_getBalance/chain_getUtxos.
func parseCoinbaseAddress(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("not valid hex: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
