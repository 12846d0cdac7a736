package p2p

import "time"

// BanScoreDecayPerMinute is the rate at which an idle peer's score relaxes
// back toward zero, so transient or one-off violations age out rather
// than accumulating forever.
const BanScoreDecayPerMinute = 1

// BanScore is a small deterministic policy primitive, not a consensus
// rule: protocol violations add to it, valid traffic never subtracts
// from it directly, and it decays passively over time.
type BanScore struct {
	score       int
	lastUpdated time.Time
}

// Score returns the current score after applying any decay owed since
// the last update.
func (b *BanScore) Score(now time.Time) int {
	b.decayTo(now)
	return b.score
}

// Add applies delta (positive for a violation) and returns the resulting
// score.
func (b *BanScore) Add(now time.Time, delta int) int {
	b.decayTo(now)
	b.score += delta
	if b.score < 0 {
		b.score = 0
	}
	return b.score
}

func (b *BanScore) ShouldBan(now time.Time, threshold int) bool {
	return b.Score(now) >= threshold
}

func (b *BanScore) ShouldThrottle(now time.Time, threshold int) bool {
	return b.Score(now) >= threshold
}

func (b *BanScore) decayTo(now time.Time) {
	if b.lastUpdated.IsZero() {
		b.lastUpdated = now
		return
	}
	if now.Before(b.lastUpdated) {
		b.lastUpdated = now
		return
	}
	minutes := int(now.Sub(b.lastUpdated) / time.Minute)
	if minutes <= 0 {
		return
	}
	b.score -= minutes * BanScoreDecayPerMinute
	if b.score < 0 {
		b.score = 0
	}
	b.lastUpdated = now
}
