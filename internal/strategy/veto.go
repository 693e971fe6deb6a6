package strategy

import (
	"github.com/virellia/driftline/internal/models"
)

// VetoConfig holds the safety-gate thresholds. All thresholds are positive;
// the sign convention is applied here.
type VetoConfig struct {
	// DipThreshold T qualifies an entry only when the price Z-score is
	// strictly below -T.
	DipThreshold float64

	// VWAPVetoZ denies when the Z-score of the close's deviation from VWAP
	// exceeds +VWAPVetoZ.
	VWAPVetoZ float64

	// PumpCap24h and PumpCap7d deny when the trailing percent change exceeds
	// either cap.
	PumpCap24h float64
	PumpCap7d  float64
}

// RiskContext carries the regime flags into an evaluation pass explicitly,
// so passes for different pairs stay independent and testable in isolation.
type RiskContext struct {
	// RiskOff is the on-chain oracle's liquidity flag.
	RiskOff bool

	// DominanceVeto is set when BTC dominance is high enough to veto
	// altcoin entries for this pair.
	DominanceVeto bool
}

// EvaluateVeto composes every safety gate against a single snapshot. Any
// single veto denies the whole entry; there is no override. Missing
// indicator values never trigger a veto and never qualify the dip gate.
func EvaluateVeto(snap *models.IndicatorSnapshot, cfg VetoConfig, risk RiskContext, isDCA bool) models.VetoDecision {
	d := models.VetoDecision{Timestamp: snap.Timestamp}

	// Adaptive dip gate: strict inequality, a Z-score of exactly -T does not
	// qualify.
	d.DipQualified = snap.ZScorePrice.Valid && snap.ZScorePrice.Value < -cfg.DipThreshold

	d.VWAPVeto = snap.ZScoreVWAPDev.Valid && snap.ZScoreVWAPDev.Value > cfg.VWAPVetoZ

	// Averaging into a falling knife is deferred until the candle closes
	// green; initial entries are exempt.
	d.CandleColorVeto = isDCA && snap.Close <= snap.Open

	d.PumpVeto = (snap.Change24h.Valid && snap.Change24h.Value > cfg.PumpCap24h) ||
		(snap.Change7d.Valid && snap.Change7d.Value > cfg.PumpCap7d)

	d.RiskOffVeto = risk.RiskOff
	d.DominanceVeto = risk.DominanceVeto

	d.Admit = d.DipQualified &&
		!d.VWAPVeto &&
		!d.CandleColorVeto &&
		!d.PumpVeto &&
		!d.RiskOffVeto &&
		!d.DominanceVeto

	return d
}
