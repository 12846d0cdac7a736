package consensus

// SubsidyHalvingInterval is the number of blocks between successive
// halvings of the coinbase subsidy.
const SubsidyHalvingInterval = 210_000

// InitialSubsidy is the coinbase subsidy paid at height 0, denominated in
// the chain's smallest unit.
const InitialSubsidy = 50_00000000

// BlockSubsidy returns the coinbase subsidy due at height, halving every
// SubsidyHalvingInterval blocks until it reaches zero.
func BlockSubsidy(height uint64) uint64 {
	halvings := height / SubsidyHalvingInterval
	if halvings >= 64 {
		return 0
	}
	return InitialSubsidy >> halvings
}
