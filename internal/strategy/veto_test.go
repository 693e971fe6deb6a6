package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/virellia/driftline/internal/models"
)

func vetoConfig() VetoConfig {
	return VetoConfig{
		DipThreshold: 1.28,
		VWAPVetoZ:    2.0,
		PumpCap24h:   0.18,
		PumpCap7d:    0.45,
	}
}

// qualifiedSnap is a green candle with a deep dip Z-score and no veto inputs
// firing.
func qualifiedSnap() *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{
		Pair:          "ETH/USDT",
		Timestamp:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Open:          99,
		Close:         100,
		ZScorePrice:   models.MetricOf(-2.0),
		ZScoreVWAPDev: models.MetricOf(-0.5),
		Change24h:     models.MetricOf(0.01),
		Change7d:      models.MetricOf(0.05),
	}
}

func TestDipGateStrictInequality(t *testing.T) {
	cfg := vetoConfig()

	snap := qualifiedSnap()
	snap.ZScorePrice = models.MetricOf(-1.28)
	d := EvaluateVeto(snap, cfg, RiskContext{}, false)
	assert.False(t, d.DipQualified, "a Z-score of exactly -T must not qualify")
	assert.False(t, d.Admit)

	snap.ZScorePrice = models.MetricOf(-1.2801)
	d = EvaluateVeto(snap, cfg, RiskContext{}, false)
	assert.True(t, d.DipQualified)
	assert.True(t, d.Admit)
}

func TestMissingZScoreNeverQualifies(t *testing.T) {
	snap := qualifiedSnap()
	snap.ZScorePrice = models.MissingMetric

	d := EvaluateVeto(snap, vetoConfig(), RiskContext{}, false)
	assert.False(t, d.DipQualified)
	assert.False(t, d.Admit)
}

func TestVWAPVeto(t *testing.T) {
	snap := qualifiedSnap()
	snap.ZScoreVWAPDev = models.MetricOf(2.5)

	d := EvaluateVeto(snap, vetoConfig(), RiskContext{}, false)
	assert.True(t, d.VWAPVeto)
	assert.False(t, d.Admit)

	// Missing deviation never vetoes
	snap.ZScoreVWAPDev = models.MissingMetric
	d = EvaluateVeto(snap, vetoConfig(), RiskContext{}, false)
	assert.False(t, d.VWAPVeto)
	assert.True(t, d.Admit)
}

func TestCandleColorVetoAppliesOnlyToDCA(t *testing.T) {
	snap := qualifiedSnap()
	snap.Open = 101 // red candle

	d := EvaluateVeto(snap, vetoConfig(), RiskContext{}, false)
	assert.False(t, d.CandleColorVeto, "initial entries are exempt")
	assert.True(t, d.Admit)

	d = EvaluateVeto(snap, vetoConfig(), RiskContext{}, true)
	assert.True(t, d.CandleColorVeto)
	assert.False(t, d.Admit)

	// A doji counts as red for DCA
	snap.Open = snap.Close
	d = EvaluateVeto(snap, vetoConfig(), RiskContext{}, true)
	assert.True(t, d.CandleColorVeto)
}

func TestPumpVeto(t *testing.T) {
	snap := qualifiedSnap()
	snap.Change24h = models.MetricOf(0.19)
	d := EvaluateVeto(snap, vetoConfig(), RiskContext{}, false)
	assert.True(t, d.PumpVeto)

	snap = qualifiedSnap()
	snap.Change7d = models.MetricOf(0.50)
	d = EvaluateVeto(snap, vetoConfig(), RiskContext{}, false)
	assert.True(t, d.PumpVeto)

	// Missing change history never vetoes
	snap = qualifiedSnap()
	snap.Change24h = models.MissingMetric
	snap.Change7d = models.MissingMetric
	d = EvaluateVeto(snap, vetoConfig(), RiskContext{}, false)
	assert.False(t, d.PumpVeto)
	assert.True(t, d.Admit)
}

func TestRegimeVetoes(t *testing.T) {
	snap := qualifiedSnap()

	d := EvaluateVeto(snap, vetoConfig(), RiskContext{RiskOff: true}, false)
	assert.True(t, d.RiskOffVeto)
	assert.False(t, d.Admit)

	d = EvaluateVeto(snap, vetoConfig(), RiskContext{DominanceVeto: true}, false)
	assert.True(t, d.DominanceVeto)
	assert.False(t, d.Admit)
}

func TestAnySingleVetoDenies(t *testing.T) {
	snap := qualifiedSnap()
	d := EvaluateVeto(snap, vetoConfig(), RiskContext{}, false)
	assert.True(t, d.Admit, "clean snapshot must admit")

	// Each veto alone flips the decision
	snap.ZScoreVWAPDev = models.MetricOf(3.0)
	assert.False(t, EvaluateVeto(snap, vetoConfig(), RiskContext{}, false).Admit)
}
