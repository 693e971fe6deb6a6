package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virellia/driftline/internal/models"
)

func seriesOf(t *testing.T, start time.Time, step time.Duration, closes ...float64) *models.CandleSeries {
	t.Helper()
	s := &models.CandleSeries{Pair: "BTC/USDT"}
	for i, c := range closes {
		ok := s.Append(models.Candle{
			Timestamp: start.Add(time.Duration(i) * step),
			Open:      c - 0.1,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    100,
		})
		require.True(t, ok)
	}
	return s
}

func flatCloses(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + float64(i%3)*0.2 // small wobble so deviation is nonzero
	}
	return out
}

func TestSnapshotShortHistoryReportsMissing(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	series := seriesOf(t, start, 5*time.Minute, 100, 101, 102)

	snap, err := engine.Snapshot(series)
	require.NoError(t, err)

	assert.False(t, snap.EMAAt(5).Valid, "EMA5 needs 5 candles")
	assert.False(t, snap.RSI.Valid, "RSI needs period+1 candles")
	assert.False(t, snap.ATR.Valid)
	assert.False(t, snap.MFI.Valid)
	assert.False(t, snap.Change24h.Valid)
	assert.False(t, snap.Change7d.Valid)
}

func TestSnapshotEmptySeriesErrors(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	_, err := engine.Snapshot(&models.CandleSeries{Pair: "BTC/USDT"})
	assert.Error(t, err)
}

func TestSnapshotLongHistoryComputesAll(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	series := seriesOf(t, start, 5*time.Minute, flatCloses(250, 100)...)

	snap, err := engine.Snapshot(series)
	require.NoError(t, err)

	for _, period := range []int{5, 8, 16, 35, 50, 100, 200} {
		assert.True(t, snap.EMAAt(period).Valid, "EMA%d should be computable", period)
	}
	assert.True(t, snap.RSI.Valid)
	assert.True(t, snap.RSIFast.Valid)
	assert.True(t, snap.MFI.Valid)
	assert.True(t, snap.ATR.Valid)
	assert.True(t, snap.VWAP.Valid)
	assert.True(t, snap.EWO.Valid)
	assert.True(t, snap.ZScorePrice.Valid)
}

func TestSnapshotAtExcludesFormingCandle(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	series := seriesOf(t, start, 5*time.Minute, 100, 101, 102, 103)

	// The candle stamped exactly at the evaluation time is still forming and
	// must not contribute.
	snap, err := engine.SnapshotAt(series, start.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 101.0, snap.Close)
	assert.Equal(t, start.Add(5*time.Minute), snap.Timestamp)

	_, err = engine.SnapshotAt(series, start.Add(-time.Minute))
	assert.Error(t, err)
}

func TestCalculateZScore(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)

	t.Run("too few samples", func(t *testing.T) {
		assert.False(t, engine.calculateZScore([]float64{100}, 21).Valid)
	})

	t.Run("zero deviation", func(t *testing.T) {
		assert.False(t, engine.calculateZScore([]float64{100, 100, 100}, 21).Valid)
	})

	t.Run("population stddev", func(t *testing.T) {
		// mean 2, population stddev sqrt(2/3)
		m := engine.calculateZScore([]float64{1, 2, 3}, 21)
		require.True(t, m.Valid)
		assert.InDelta(t, 1.2247, m.Value, 1e-3)
	})

	t.Run("window limits the sample", func(t *testing.T) {
		// Only the trailing 3 values participate: [2, 2, 5]
		m := engine.calculateZScore([]float64{1000, 2, 2, 5}, 3)
		require.True(t, m.Valid)
		assert.InDelta(t, 1.4142, m.Value, 1e-3)
	})
}

func TestCalculateVWAP(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)

	t.Run("zero volume is missing", func(t *testing.T) {
		m := engine.calculateVWAP(
			[]float64{101, 102}, []float64{99, 100}, []float64{100, 101},
			[]float64{0, 0}, 48)
		assert.False(t, m.Valid)
	})

	t.Run("volume weighted", func(t *testing.T) {
		// typical prices 100 and 200, volumes 1 and 3 -> 175
		m := engine.calculateVWAP(
			[]float64{100, 200}, []float64{100, 200}, []float64{100, 200},
			[]float64{1, 3}, 48)
		require.True(t, m.Valid)
		assert.InDelta(t, 175, m.Value, 1e-9)
	})
}

func TestCalculateEWO(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)

	m := engine.calculateEWO(models.MetricOf(105), models.MetricOf(100), 100)
	require.True(t, m.Valid)
	assert.InDelta(t, 5.0, m.Value, 1e-9)

	assert.False(t, engine.calculateEWO(models.MissingMetric, models.MetricOf(100), 100).Valid)
	assert.False(t, engine.calculateEWO(models.MetricOf(105), models.MetricOf(100), 0).Valid)
}

func TestCalculateMFI(t *testing.T) {
	engine := NewEngine(DefaultConfig(), nil)

	rising := []float64{100, 101, 102, 103, 104}
	vol := []float64{10, 10, 10, 10, 10}

	m := engine.calculateMFI(rising, rising, rising, vol, 4)
	require.True(t, m.Valid)
	assert.InDelta(t, 100, m.Value, 1e-9, "all-positive flow saturates at 100")

	falling := []float64{104, 103, 102, 101, 100}
	m = engine.calculateMFI(falling, falling, falling, vol, 4)
	require.True(t, m.Valid)
	assert.InDelta(t, 0, m.Value, 1e-9)
}

func TestCalculateChange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeframe = time.Hour
	engine := NewEngine(cfg, nil)

	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	closes[0] = 100
	closes[24] = 120

	// 24 bars back at 1h timeframe is closes[0]
	m := engine.calculateChange(closes, 24*time.Hour)
	require.True(t, m.Valid)
	assert.InDelta(t, 0.2, m.Value, 1e-9)

	assert.False(t, engine.calculateChange(closes[:24], 24*time.Hour).Valid,
		"window must be fully covered by history")
}
