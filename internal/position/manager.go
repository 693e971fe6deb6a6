package position

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/virellia/driftline/internal/models"
)

// Exit reasons reported in advice.
const (
	ExitReasonROI          = "roi"
	ExitReasonTrailingStop = "trailing_stop"
)

// ROIStep maps a minimum holding duration to the minimum acceptable profit
// fraction once that duration has elapsed.
type ROIStep struct {
	After     time.Duration
	MinProfit float64
}

// Config holds the DCA ladder and exit parameters.
type Config struct {
	// DCAMultipliers space the averaging fills: stage n+1 triggers when price
	// has fallen from the prior fill by DCAMultipliers[n] times the current
	// ATR, so spacing adapts to volatility instead of fixed percentages.
	DCAMultipliers []float64

	// ROISteps is the time-decaying profit target table, non-increasing in
	// duration.
	ROISteps []ROIStep

	// TrendBoostEWO and TrendBoostExtend retain a raised ROI target for
	// longer while trend confirmation holds.
	TrendBoostEWO    float64
	TrendBoostExtend time.Duration

	// StopActivationPct is the unrealized profit fraction that arms the
	// trailing stop; StopATRMultiplier sets its distance below the maximum
	// price since entry.
	StopActivationPct float64
	StopATRMultiplier float64
}

// DefaultConfig returns the default ladder and exit parameters.
func DefaultConfig() Config {
	return Config{
		DCAMultipliers: []float64{1.5, 4.0},
		ROISteps: []ROIStep{
			{After: 0, MinProfit: 0.045},
			{After: 20 * time.Minute, MinProfit: 0.035},
			{After: time.Hour, MinProfit: 0.025},
			{After: 3 * time.Hour, MinProfit: 0.015},
			{After: 8 * time.Hour, MinProfit: 0.008},
		},
		TrendBoostEWO:     4.0,
		TrendBoostExtend:  40 * time.Minute,
		StopActivationPct: 0.015,
		StopATRMultiplier: 2.0,
	}
}

// Manager evaluates DCA triggers and exit conditions for open trades. It
// holds no per-trade state of its own: TradeState stays exclusively owned by
// the pair's evaluation context.
type Manager struct {
	cfg    Config
	logger *logrus.Logger
}

// NewManager creates a position manager.
func NewManager(cfg Config, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// MaxStage returns the highest stage the configured ladder can reach.
func (m *Manager) MaxStage() int {
	max := models.StageInitial + len(m.cfg.DCAMultipliers)
	if max > models.MaxStages {
		max = models.MaxStages
	}
	return max
}

// ShouldDCA reports whether the next averaging fill is due: the price has
// fallen from the prior fill by the stage's ATR multiple and a slot remains.
// Stages only ever advance; a stage passed is never re-entered.
func (m *Manager) ShouldDCA(t *models.TradeState, snap *models.IndicatorSnapshot) bool {
	if t == nil || t.Stage < models.StageInitial || t.Stage >= m.MaxStage() {
		return false
	}
	if !snap.ATR.Valid {
		return false
	}

	multiplier := m.cfg.DCAMultipliers[t.Stage-models.StageInitial]
	trigger := t.LastFillPrice().InexactFloat64() - multiplier*snap.ATR.Value

	return snap.Close <= trigger
}

// Observe updates the trade's running maximum and the trailing-stop ratchet
// for the current candle. Must be called once per evaluation cycle before
// CheckExit.
func (m *Manager) Observe(t *models.TradeState, snap *models.IndicatorSnapshot) {
	t.ObservePrice(snap.High)

	if !t.StopActive {
		if t.ProfitAt(snap.Close) >= m.cfg.StopActivationPct {
			t.StopActive = true
			t.StopPrice = m.chandelierLevel(t, snap)
			m.logger.WithFields(logrus.Fields{
				"pair":  t.Pair,
				"stop":  t.StopPrice,
				"stage": t.Stage,
			}).Info("Trailing stop armed")
		}
		return
	}

	// Ratchet: the stop is only ever raised, never loosened on a retrace.
	if level := m.chandelierLevel(t, snap); level > t.StopPrice {
		t.StopPrice = level
	}
}

func (m *Manager) chandelierLevel(t *models.TradeState, snap *models.IndicatorSnapshot) float64 {
	if !snap.ATR.Valid {
		return t.StopPrice
	}
	return t.MaxPrice - m.cfg.StopATRMultiplier*snap.ATR.Value
}

// CheckExit evaluates the trailing stop and the dynamic ROI target and
// returns the exit reason when either signals. The whole position closes on
// exit; partial exits are not supported.
func (m *Manager) CheckExit(t *models.TradeState, snap *models.IndicatorSnapshot) (string, bool) {
	if t == nil || t.Stage == models.StageFlat {
		return "", false
	}

	if t.StopActive && snap.Close <= t.StopPrice {
		return ExitReasonTrailingStop, true
	}

	elapsed := snap.Timestamp.Sub(t.EntryTime)
	if snap.EWO.Valid && snap.EWO.Value >= m.cfg.TrendBoostEWO {
		// Trend confirmation holds the raised target for longer.
		elapsed -= m.cfg.TrendBoostExtend
		if elapsed < 0 {
			elapsed = 0
		}
	}

	if t.ProfitAt(snap.Close) >= m.MinROI(elapsed) {
		return ExitReasonROI, true
	}

	return "", false
}

// MinROI returns the minimum acceptable profit fraction after the given
// holding duration. The table is non-increasing in duration.
func (m *Manager) MinROI(elapsed time.Duration) float64 {
	min := m.cfg.ROISteps[0].MinProfit
	for _, step := range m.cfg.ROISteps {
		if elapsed >= step.After {
			min = step.MinProfit
		}
	}
	return min
}

// StopPrice returns the current trailing stop when armed, for host-side
// custom-stop integration.
func (m *Manager) StopPrice(t *models.TradeState) (float64, bool) {
	if t == nil || !t.StopActive {
		return 0, false
	}
	return t.StopPrice, true
}
