package models

import (
	"time"
)

// OnChainSample is one timestamped observation of aggregate on-chain
// liquidity: total value locked and circulating stablecoin supply. Samples are
// append-only; the oracle never rewrites history.
type OnChainSample struct {
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	TVL          float64   `json:"tvl" db:"tvl"`
	StableSupply float64   `json:"stable_supply" db:"stable_supply"`
}

// Velocity is the signed rate of change of stablecoin supply over a trailing
// window of samples, expressed as a fraction per day. Requires at least two
// samples spanning a positive duration; otherwise ok is false.
func Velocity(samples []OnChainSample) (v float64, ok bool) {
	if len(samples) < 2 {
		return 0, false
	}
	first := samples[0]
	last := samples[len(samples)-1]
	days := last.Timestamp.Sub(first.Timestamp).Hours() / 24
	if days <= 0 || first.StableSupply == 0 {
		return 0, false
	}
	return (last.StableSupply - first.StableSupply) / first.StableSupply / days, true
}
