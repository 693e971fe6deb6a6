package indicators

import (
	"fmt"
	"math"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/sirupsen/logrus"

	"github.com/virellia/driftline/internal/models"
)

// Config holds the periods and windows for the indicator engine.
type Config struct {
	EMAPeriods    []int
	RSIPeriod     int
	RSIFastPeriod int
	MFIPeriod     int
	ATRPeriod     int
	VWAPWindow    int
	ZScoreWindow  int

	// Timeframe is the candle interval, used to size the 24h and 7d
	// trailing-change windows in bars.
	Timeframe time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		EMAPeriods:    []int{5, 8, 16, 35, 50, 100, 200},
		RSIPeriod:     14,
		RSIFastPeriod: 4,
		MFIPeriod:     14,
		ATRPeriod:     14,
		VWAPWindow:    48,
		ZScoreWindow:  21,
		Timeframe:     5 * time.Minute,
	}
}

// Engine computes an IndicatorSnapshot for a candle from the candles at or
// before it. Indicators that lack enough history are reported as missing, not
// as errors: a missing value means "no signal available", never a crash.
type Engine struct {
	cfg    Config
	logger *logrus.Logger
}

// NewEngine creates a new indicator engine.
func NewEngine(cfg Config, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// SnapshotAt produces the snapshot for the last candle closed at or before
// ts. A candle still forming at exactly ts is excluded, so no in-progress
// data can influence the result.
func (e *Engine) SnapshotAt(series *models.CandleSeries, ts time.Time) (*models.IndicatorSnapshot, error) {
	idx := series.LastClosedIndex(ts, true)
	if idx < 0 {
		return nil, fmt.Errorf("no closed candle at or before %s for %s", ts.Format(time.RFC3339), series.Pair)
	}
	return e.snapshot(series.Pair, series.Slice(idx)), nil
}

// Snapshot produces the snapshot for the last candle of the series.
func (e *Engine) Snapshot(series *models.CandleSeries) (*models.IndicatorSnapshot, error) {
	if series.Len() == 0 {
		return nil, fmt.Errorf("empty candle series for %s", series.Pair)
	}
	return e.snapshot(series.Pair, series.Candles), nil
}

func (e *Engine) snapshot(pair string, candles []models.Candle) *models.IndicatorSnapshot {
	last := candles[len(candles)-1]
	snap := &models.IndicatorSnapshot{
		Pair:      pair,
		Timestamp: last.Timestamp,
		Open:      last.Open,
		High:      last.High,
		Low:       last.Low,
		Close:     last.Close,
		Volume:    last.Volume,
		EMA:       make(map[int]models.Metric, len(e.cfg.EMAPeriods)),
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	for _, period := range e.cfg.EMAPeriods {
		snap.EMA[period] = e.calculateEMA(closes, period)
	}

	snap.RSI = e.calculateRSI(closes, e.cfg.RSIPeriod)
	snap.RSIFast = e.calculateRSI(closes, e.cfg.RSIFastPeriod)
	snap.MFI = e.calculateMFI(highs, lows, closes, volumes, e.cfg.MFIPeriod)
	snap.ATR = e.calculateATR(highs, lows, closes, e.cfg.ATRPeriod)
	snap.VWAP = e.calculateVWAP(highs, lows, closes, volumes, e.cfg.VWAPWindow)
	snap.EWO = e.calculateEWO(snap.EMAAt(5), snap.EMAAt(35), last.Close)
	snap.ZScorePrice = e.calculateZScore(closes, e.cfg.ZScoreWindow)
	snap.ZScoreVWAPDev = e.calculateVWAPDevZScore(highs, lows, closes, volumes)
	snap.Change24h = e.calculateChange(closes, 24*time.Hour)
	snap.Change7d = e.calculateChange(closes, 7*24*time.Hour)

	return snap
}

// calculateEMA computes the Exponential Moving Average and returns its most
// recent value.
func (e *Engine) calculateEMA(prices []float64, period int) models.Metric {
	if len(prices) < period {
		return models.MissingMetric
	}

	emaIndicator := trend.NewEmaWithPeriod[float64](period)
	result := helper.ChanToSlice(emaIndicator.Compute(helper.SliceToChan(prices)))
	if len(result) == 0 {
		return models.MissingMetric
	}

	return models.MetricOf(result[len(result)-1])
}

// calculateRSI computes the Relative Strength Index and returns its most
// recent value.
func (e *Engine) calculateRSI(prices []float64, period int) models.Metric {
	if len(prices) < period+1 {
		return models.MissingMetric
	}

	rsiIndicator := momentum.NewRsiWithPeriod[float64](period)
	result := helper.ChanToSlice(rsiIndicator.Compute(helper.SliceToChan(prices)))
	if len(result) == 0 {
		return models.MissingMetric
	}

	return models.MetricOf(result[len(result)-1])
}

// calculateATR computes the Average True Range and returns its most recent
// value.
func (e *Engine) calculateATR(high, low, close []float64, period int) models.Metric {
	if len(close) < period+1 {
		return models.MissingMetric
	}

	atrIndicator := volatility.NewAtr[float64]()

	highChan := helper.SliceToChan(high)
	lowChan := helper.SliceToChan(low)
	closeChan := helper.SliceToChan(close)

	result := helper.ChanToSlice(atrIndicator.Compute(highChan, lowChan, closeChan))
	if len(result) == 0 {
		return models.MissingMetric
	}

	return models.MetricOf(result[len(result)-1])
}

// calculateMFI computes the Money Flow Index over the trailing period.
func (e *Engine) calculateMFI(high, low, close, volume []float64, period int) models.Metric {
	if len(close) < period+1 {
		return models.MissingMetric
	}

	positive := 0.0
	negative := 0.0
	for i := len(close) - period; i < len(close); i++ {
		tp := typicalPrice(high[i], low[i], close[i])
		prevTp := typicalPrice(high[i-1], low[i-1], close[i-1])
		flow := tp * volume[i]
		if tp > prevTp {
			positive += flow
		} else if tp < prevTp {
			negative += flow
		}
	}

	if negative == 0 {
		if positive == 0 {
			return models.MissingMetric
		}
		return models.MetricOf(100)
	}

	return models.MetricOf(100 - 100/(1+positive/negative))
}

// calculateVWAP computes the rolling Volume-Weighted Average Price over the
// trailing window.
func (e *Engine) calculateVWAP(high, low, close, volume []float64, window int) models.Metric {
	start := len(close) - window
	if start < 0 {
		start = 0
	}
	if len(close)-start < 2 {
		return models.MissingMetric
	}

	pv := 0.0
	vol := 0.0
	for i := start; i < len(close); i++ {
		pv += typicalPrice(high[i], low[i], close[i]) * volume[i]
		vol += volume[i]
	}
	if vol == 0 {
		return models.MissingMetric
	}

	return models.MetricOf(pv / vol)
}

// calculateEWO derives the momentum oscillator from the fast and slow EMAs,
// normalized by the close in percent.
func (e *Engine) calculateEWO(fast, slow models.Metric, close float64) models.Metric {
	if !fast.Valid || !slow.Valid || close == 0 {
		return models.MissingMetric
	}
	return models.MetricOf((fast.Value - slow.Value) / close * 100)
}

// calculateZScore computes the Z-score of the latest value against the
// trailing window. Undefined when fewer than two samples are available or the
// window has zero deviation.
func (e *Engine) calculateZScore(values []float64, window int) models.Metric {
	start := len(values) - window
	if start < 0 {
		start = 0
	}
	sample := values[start:]
	if len(sample) < 2 {
		return models.MissingMetric
	}

	mean := 0.0
	for _, v := range sample {
		mean += v
	}
	mean /= float64(len(sample))

	stdDev := standardDeviation(sample, mean)
	if stdDev == 0 {
		return models.MissingMetric
	}

	return models.MetricOf((sample[len(sample)-1] - mean) / stdDev)
}

// calculateVWAPDevZScore computes the Z-score of the close's deviation from
// the rolling VWAP, over the Z-score window.
func (e *Engine) calculateVWAPDevZScore(high, low, close, volume []float64) models.Metric {
	window := e.cfg.ZScoreWindow
	if len(close) < 2 {
		return models.MissingMetric
	}

	start := len(close) - window
	if start < 0 {
		start = 0
	}

	deviations := make([]float64, 0, len(close)-start)
	for i := start; i < len(close); i++ {
		vwap := e.calculateVWAP(high[:i+1], low[:i+1], close[:i+1], volume[:i+1], e.cfg.VWAPWindow)
		if !vwap.Valid {
			continue
		}
		deviations = append(deviations, close[i]-vwap.Value)
	}

	return e.calculateZScore(deviations, window)
}

// calculateChange computes the percent change over the trailing wall-clock
// window, sized in bars from the configured timeframe.
func (e *Engine) calculateChange(closes []float64, window time.Duration) models.Metric {
	if e.cfg.Timeframe <= 0 {
		return models.MissingMetric
	}
	bars := int(window / e.cfg.Timeframe)
	if bars < 1 || len(closes) <= bars {
		return models.MissingMetric
	}

	base := closes[len(closes)-1-bars]
	if base == 0 {
		return models.MissingMetric
	}

	return models.MetricOf(closes[len(closes)-1]/base - 1)
}

// standardDeviation calculates the population standard deviation of a window.
func standardDeviation(window []float64, mean float64) float64 {
	if len(window) == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range window {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(window))

	return math.Sqrt(variance)
}

func typicalPrice(high, low, close float64) float64 {
	return (high + low + close) / 3
}
