package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/virellia/driftline/internal/utils"
)

// Trade stages. The stage counter is monotonically non-decreasing for the
// lifetime of a trade and is reset only by a full exit.
const (
	StageFlat    = 0
	StageInitial = 1
	StageDCA1    = 2
	StageDCA2    = 3

	// MaxStages is the hard cap on fills per trade: the initial entry plus
	// two averaging fills.
	MaxStages = 3
)

// ErrStageOverflow is returned when a fill would advance a trade past its
// configured slot count. This is a logic error in the caller and is surfaced
// to the operator, never swallowed.
var ErrStageOverflow = utils.NewInvariantErrorf("trade stage overflow: all %d slots already filled", MaxStages)

// Fill is a single executed entry into a position.
type Fill struct {
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Timestamp time.Time       `json:"timestamp"`
}

// TradeState tracks one open position for one pair. It is exclusively owned
// by the pair's evaluation context; no locking happens here.
type TradeState struct {
	ID        uuid.UUID `json:"id"`
	Pair      string    `json:"pair"`
	Fills     []Fill    `json:"fills"`
	Stage     int       `json:"stage"`
	EntryTime time.Time `json:"entry_time"`

	// MaxPrice is the highest price observed since entry, tracked for the
	// trailing stop.
	MaxPrice float64 `json:"max_price"`

	// StopActive and StopPrice hold the trailing-stop ratchet once the
	// activation threshold has been crossed.
	StopActive bool    `json:"stop_active"`
	StopPrice  float64 `json:"stop_price"`
}

// NewTradeState opens a trade with its initial fill.
func NewTradeState(pair string, fill Fill) *TradeState {
	return &TradeState{
		ID:        uuid.New(),
		Pair:      pair,
		Fills:     []Fill{fill},
		Stage:     StageInitial,
		EntryTime: fill.Timestamp,
		MaxPrice:  fill.Price.InexactFloat64(),
	}
}

// AddFill appends an averaging fill and advances the stage. Stages never
// decrease and never exceed MaxStages.
func (t *TradeState) AddFill(fill Fill) error {
	if t.Stage >= MaxStages {
		return ErrStageOverflow
	}
	t.Fills = append(t.Fills, fill)
	t.Stage++
	return nil
}

// AvgEntry is the size-weighted average entry price over all fills.
func (t *TradeState) AvgEntry() decimal.Decimal {
	totalCost := decimal.Zero
	totalSize := decimal.Zero
	for _, f := range t.Fills {
		totalCost = totalCost.Add(f.Price.Mul(f.Size))
		totalSize = totalSize.Add(f.Size)
	}
	if totalSize.IsZero() {
		return decimal.Zero
	}
	return totalCost.Div(totalSize)
}

// LastFillPrice is the price of the most recent fill.
func (t *TradeState) LastFillPrice() decimal.Decimal {
	return t.Fills[len(t.Fills)-1].Price
}

// ProfitAt returns the unrealized profit fraction at the given price.
func (t *TradeState) ProfitAt(price float64) float64 {
	avg := t.AvgEntry().InexactFloat64()
	if avg == 0 {
		return 0
	}
	return price/avg - 1
}

// ObservePrice updates the running price maximum.
func (t *TradeState) ObservePrice(price float64) {
	if price > t.MaxPrice {
		t.MaxPrice = price
	}
}
