package models

import (
	"time"
)

// Candle represents a single closed OHLCV candle. Candles are append-only and
// never mutated once closed.
type Candle struct {
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Open      float64   `json:"open" db:"open"`
	High      float64   `json:"high" db:"high"`
	Low       float64   `json:"low" db:"low"`
	Close     float64   `json:"close" db:"close"`
	Volume    float64   `json:"volume" db:"volume"`
}

// IsRed reports whether the candle closed at or below its open. A doji
// (close == open) counts as red for veto purposes.
func (c Candle) IsRed() bool {
	return c.Close <= c.Open
}

// CandleSeries is an ordered sequence of closed candles for one trading pair,
// sorted by ascending timestamp.
type CandleSeries struct {
	Pair    string   `json:"pair"`
	Candles []Candle `json:"candles"`
}

// Append adds a closed candle to the series. Out-of-order candles are ignored
// so the series stays strictly ascending.
func (s *CandleSeries) Append(c Candle) bool {
	if n := len(s.Candles); n > 0 && !s.Candles[n-1].Timestamp.Before(c.Timestamp) {
		return false
	}
	s.Candles = append(s.Candles, c)
	return true
}

// Len returns the number of candles in the series.
func (s *CandleSeries) Len() int {
	return len(s.Candles)
}

// LastClosedIndex returns the index of the last candle whose timestamp is at
// or before ts, excluding a same-timestamp candle that is still forming when
// openExcluded is set. Returns -1 when no candle qualifies. This is the
// strictly-causal lookup used by every evaluation pass: nothing at a later
// timestamp can leak into a decision made at ts.
func (s *CandleSeries) LastClosedIndex(ts time.Time, openExcluded bool) int {
	// Binary search for the first candle after ts.
	lo, hi := 0, len(s.Candles)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.Candles[mid].Timestamp.After(ts) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	idx := lo - 1
	if idx >= 0 && openExcluded && s.Candles[idx].Timestamp.Equal(ts) {
		idx--
	}
	return idx
}

// Slice returns the causal prefix of the series ending at index i inclusive.
func (s *CandleSeries) Slice(i int) []Candle {
	if i < 0 {
		return nil
	}
	if i >= len(s.Candles) {
		i = len(s.Candles) - 1
	}
	return s.Candles[:i+1]
}
