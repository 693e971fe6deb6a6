package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSeries(t *testing.T, start time.Time, closes ...float64) *CandleSeries {
	t.Helper()
	s := &CandleSeries{Pair: "BTC/USDT"}
	for i, c := range closes {
		ok := s.Append(Candle{
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		})
		require.True(t, ok)
	}
	return s
}

func TestCandleIsRed(t *testing.T) {
	assert.True(t, Candle{Open: 100, Close: 99}.IsRed())
	assert.False(t, Candle{Open: 100, Close: 101}.IsRed())
	// A doji counts as red
	assert.True(t, Candle{Open: 100, Close: 100}.IsRed())
}

func TestCandleSeriesAppendRejectsOutOfOrder(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := makeSeries(t, start, 100, 101)

	assert.False(t, s.Append(Candle{Timestamp: start}), "older timestamp must be rejected")
	assert.False(t, s.Append(Candle{Timestamp: start.Add(5 * time.Minute)}), "duplicate timestamp must be rejected")
	assert.Equal(t, 2, s.Len())

	assert.True(t, s.Append(Candle{Timestamp: start.Add(10 * time.Minute)}))
	assert.Equal(t, 3, s.Len())
}

func TestLastClosedIndex(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := makeSeries(t, start, 100, 101, 102)

	tests := []struct {
		name         string
		ts           time.Time
		openExcluded bool
		want         int
	}{
		{"before first candle", start.Add(-time.Minute), false, -1},
		{"exact match included", start.Add(5 * time.Minute), false, 1},
		{"exact match excluded as forming", start.Add(5 * time.Minute), true, 0},
		{"between candles", start.Add(7 * time.Minute), true, 1},
		{"after last candle", start.Add(time.Hour), true, 2},
		{"first candle forming", start, true, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.LastClosedIndex(tt.ts, tt.openExcluded))
		})
	}
}

func TestSlice(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := makeSeries(t, start, 100, 101, 102)

	assert.Nil(t, s.Slice(-1))
	assert.Len(t, s.Slice(0), 1)
	assert.Len(t, s.Slice(1), 2)
	assert.Len(t, s.Slice(10), 3)
}
