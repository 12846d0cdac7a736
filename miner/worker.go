package miner

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/photon-chain/node/consensus"
)

// hashCheckInterval bounds how many nonces a worker tries between polls
// of the shared cancellation flag.
const hashCheckInterval = 4096

// Result is a solved header, returned by whichever worker finds it first.
type Result struct {
	Header consensus.BlockHeader
}

// SearchNonce splits the uint64 nonce space into workers disjoint strides
// and races them against header.Target, N goroutines sharing one atomic
// cancellation flag. The first worker to find a satisfying nonce reports
// it and every other worker stops at its next poll. SearchNonce returns
// early with ok=false if ctx is cancelled before any worker succeeds.
func SearchNonce(ctx context.Context, header consensus.BlockHeader, workers int) (consensus.BlockHeader, bool) {
	if workers < 1 {
		workers = 1
	}

	var done atomic.Bool
	resultCh := make(chan consensus.BlockHeader, 1)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(start uint64, stride uint64) {
			defer wg.Done()
			h := header
			for i, nonce := uint64(0), start; ; i, nonce = i+1, nonce+stride {
				if i%hashCheckInterval == 0 {
					if done.Load() {
						return
					}
					select {
					case <-ctx.Done():
						return
					default:
					}
				}
				h.Nonce = nonce
				if consensus.PowCheck(h, header.Target) == nil {
					if done.CompareAndSwap(false, true) {
						resultCh <- h
					}
					return
				}
				if nonce > ^uint64(0)-stride {
					return
				}
			}
		}(uint64(w), uint64(workers))
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	solved, ok := <-resultCh
	return solved, ok
}
