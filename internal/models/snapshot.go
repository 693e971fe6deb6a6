package models

import (
	"time"
)

// Metric is an indicator value that may be missing when there is not enough
// history to compute it. Missing values never fire a rule or a veto.
type Metric struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// MetricOf wraps a computed value.
func MetricOf(v float64) Metric {
	return Metric{Value: v, Valid: true}
}

// MissingMetric is the zero Metric, reported when an indicator is undefined.
var MissingMetric = Metric{}

// IndicatorSnapshot holds all derived values for a single candle. It is
// recomputed per evaluation cycle from candles at or before its timestamp and
// is not stored beyond the current decision.
type IndicatorSnapshot struct {
	Pair      string    `json:"pair"`
	Timestamp time.Time `json:"timestamp"`

	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`

	// Moving averages keyed by period (5, 8, 16, 35, 50, 100, 200).
	EMA map[int]Metric `json:"ema"`

	RSI     Metric `json:"rsi"`
	RSIFast Metric `json:"rsi_fast"`
	MFI     Metric `json:"mfi"`
	ATR     Metric `json:"atr"`
	VWAP    Metric `json:"vwap"`

	// EWO is the Elliott-wave-oscillator-style momentum: (EMA5 - EMA35)
	// normalized by close, in percent.
	EWO Metric `json:"ewo"`

	// ZScorePrice is the Z-score of close over the configured trailing window.
	ZScorePrice Metric `json:"zscore_price"`
	// ZScoreVWAPDev is the Z-score of (close - VWAP) over the same window.
	ZScoreVWAPDev Metric `json:"zscore_vwap_dev"`

	// Trailing percent change, used by the pump-protection veto.
	Change24h Metric `json:"change_24h"`
	Change7d  Metric `json:"change_7d"`
}

// EMAAt returns the EMA metric for the given period, missing when the period
// was not computed.
func (s *IndicatorSnapshot) EMAAt(period int) Metric {
	if s.EMA == nil {
		return MissingMetric
	}
	m, ok := s.EMA[period]
	if !ok {
		return MissingMetric
	}
	return m
}
