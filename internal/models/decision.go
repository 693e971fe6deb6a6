package models

import (
	"time"
)

// VetoDecision records the outcome of every safety gate for one evaluation.
// It is computed fresh per cycle against a single snapshot timestamp and is
// never persisted.
type VetoDecision struct {
	Timestamp time.Time `json:"timestamp"`

	// DipQualified is the adaptive dip gate: it must be true for an entry to
	// qualify at all. It is a gate, not a veto.
	DipQualified bool `json:"dip_qualified"`

	VWAPVeto        bool `json:"vwap_veto"`
	CandleColorVeto bool `json:"candle_color_veto"`
	PumpVeto        bool `json:"pump_veto"`
	RiskOffVeto     bool `json:"risk_off_veto"`
	DominanceVeto   bool `json:"dominance_veto"`

	Admit bool `json:"admit"`
}

// Action is the decision the engine hands back to the host framework.
type Action string

const (
	ActionNone Action = "none"
	ActionBuy  Action = "buy"
	ActionDCA  Action = "dca"
	ActionExit Action = "exit"
)

// Advice is the result of one evaluation pass for one pair.
type Advice struct {
	Pair      string    `json:"pair"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`

	// Rule names the entry rule that fired, empty for exits.
	Rule string `json:"rule,omitempty"`

	// StakeFraction is the suggested stake as a fraction of the configured
	// base stake, already scaled by the market-context modifier.
	StakeFraction float64 `json:"stake_fraction,omitempty"`

	// TargetPrice is the suggested limit price for entries.
	TargetPrice float64 `json:"target_price,omitempty"`

	// ExitReason is set for exits: "roi" or "trailing_stop".
	ExitReason string `json:"exit_reason,omitempty"`

	// StopPrice is the current custom stop price when a trailing stop is
	// active, for host-side trailing-stop integration.
	StopPrice float64 `json:"stop_price,omitempty"`

	Veto VetoDecision `json:"veto"`
}
