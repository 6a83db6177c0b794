package model

import "time"

// ChainTracking is the latest witnessed external height per chain, used to
// estimate channel expiry timestamps. One row per chain.
type ChainTracking struct {
	Chain          Chain     `db:"chain"`
	ExternalHeight int64     `db:"external_height"`
	BlockIndex     string    `db:"block_index"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// EstimateExpiry projects the wall-clock time at which expiryBlock will be
// reached, given the tracked height at the given time.
func (t *ChainTracking) EstimateExpiry(at time.Time, expiryBlock int64) time.Time {
	remaining := expiryBlock - t.ExternalHeight
	if remaining < 0 {
		remaining = 0
	}
	return at.Add(time.Duration(float64(remaining) * t.Chain.BlockSeconds() * float64(time.Second)))
}
