package strategy

import (
	"math"

	"github.com/virellia/driftline/internal/models"
)

// Rule is one independent buy condition: a name, a fixed priority given by
// its position in the rule set, and a pure predicate over a snapshot. A rule
// whose inputs are missing simply does not fire.
type Rule struct {
	Name      string
	Predicate func(s *models.IndicatorSnapshot) bool
}

// RuleSet evaluates rules in a fixed priority order with early exit. Ties are
// broken by order, never by signal magnitude.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet creates a rule set from rules in priority order.
func NewRuleSet(rules []Rule) *RuleSet {
	return &RuleSet{rules: rules}
}

// FirstMatch returns the highest-priority rule whose predicate holds.
func (rs *RuleSet) FirstMatch(s *models.IndicatorSnapshot) (Rule, bool) {
	for _, r := range rs.rules {
		if r.Predicate(s) {
			return r, true
		}
	}
	return Rule{}, false
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// dipParams parameterizes one offset-based dip rule: buy when the close sits
// below an EMA by at least the offset while RSI and MFI are depressed, with
// an optional EWO band.
type dipParams struct {
	emaPeriod int
	offset    float64
	rsiMax    float64
	mfiMax    float64
	ewoMin    float64
	ewoMax    float64
}

func dipRule(name string, p dipParams) Rule {
	if p.ewoMin == 0 && p.ewoMax == 0 {
		p.ewoMin = math.Inf(-1)
		p.ewoMax = math.Inf(1)
	}
	return Rule{
		Name: name,
		Predicate: func(s *models.IndicatorSnapshot) bool {
			ema := s.EMAAt(p.emaPeriod)
			if !ema.Valid || !s.RSI.Valid || !s.MFI.Valid {
				return false
			}
			if s.Close >= ema.Value*(1-p.offset) {
				return false
			}
			if s.RSI.Value >= p.rsiMax || s.MFI.Value >= p.mfiMax {
				return false
			}
			if !math.IsInf(p.ewoMin, -1) || !math.IsInf(p.ewoMax, 1) {
				if !s.EWO.Valid {
					return false
				}
				if s.EWO.Value < p.ewoMin || s.EWO.Value > p.ewoMax {
					return false
				}
			}
			return true
		},
	}
}

// scalpRule is the precision-scalp condition: fast RSI deeply oversold below
// the short EMA while momentum is still positive.
func scalpRule(ewoMin float64) Rule {
	return Rule{
		Name: "precision_scalp",
		Predicate: func(s *models.IndicatorSnapshot) bool {
			ema8 := s.EMAAt(8)
			if !s.RSIFast.Valid || !ema8.Valid || !s.EWO.Valid {
				return false
			}
			return s.RSIFast.Value < 35 && s.Close < ema8.Value && s.EWO.Value > ewoMin
		},
	}
}

// DefaultRules returns the full rule set in priority order: nineteen
// offset-based dip rules spanning the EMA ladder, from shallow pullbacks in
// strong uptrends to deep capitulation below the 200 EMA, plus the precision
// scalp as an additional independent rule.
func DefaultRules(scalpEWOMin float64) *RuleSet {
	rules := []Rule{
		dipRule("dip_ema16_shallow", dipParams{emaPeriod: 16, offset: 0.016, rsiMax: 36, mfiMax: 49}),
		dipRule("dip_ema16_bull", dipParams{emaPeriod: 16, offset: 0.022, rsiMax: 35, mfiMax: 46, ewoMin: 2.0, ewoMax: math.Inf(1)}),
		dipRule("dip_ema16_deep", dipParams{emaPeriod: 16, offset: 0.028, rsiMax: 33, mfiMax: 44}),
		dipRule("dip_ema50_shallow", dipParams{emaPeriod: 50, offset: 0.018, rsiMax: 35, mfiMax: 48}),
		dipRule("dip_ema50_bull", dipParams{emaPeriod: 50, offset: 0.024, rsiMax: 34, mfiMax: 45, ewoMin: 1.8, ewoMax: math.Inf(1)}),
		dipRule("dip_ema50_deep", dipParams{emaPeriod: 50, offset: 0.03, rsiMax: 32, mfiMax: 42}),
		dipRule("dip_ema50_capitulation", dipParams{emaPeriod: 50, offset: 0.04, rsiMax: 30, mfiMax: 40, ewoMin: math.Inf(-1), ewoMax: -8.0}),
		dipRule("dip_ema100_shallow", dipParams{emaPeriod: 100, offset: 0.02, rsiMax: 35, mfiMax: 47}),
		dipRule("dip_ema100_bull", dipParams{emaPeriod: 100, offset: 0.026, rsiMax: 33, mfiMax: 44, ewoMin: 1.5, ewoMax: math.Inf(1)}),
		dipRule("dip_ema100_deep", dipParams{emaPeriod: 100, offset: 0.032, rsiMax: 31, mfiMax: 42}),
		dipRule("dip_ema100_capitulation", dipParams{emaPeriod: 100, offset: 0.044, rsiMax: 30, mfiMax: 39, ewoMin: math.Inf(-1), ewoMax: -9.0}),
		dipRule("dip_ema200_shallow", dipParams{emaPeriod: 200, offset: 0.022, rsiMax: 34, mfiMax: 46}),
		dipRule("dip_ema200_bull", dipParams{emaPeriod: 200, offset: 0.028, rsiMax: 33, mfiMax: 43, ewoMin: 1.2, ewoMax: math.Inf(1)}),
		dipRule("dip_ema200_deep", dipParams{emaPeriod: 200, offset: 0.036, rsiMax: 31, mfiMax: 41}),
		dipRule("dip_ema200_capitulation", dipParams{emaPeriod: 200, offset: 0.05, rsiMax: 29, mfiMax: 38, ewoMin: math.Inf(-1), ewoMax: -10.0}),
		dipRule("dip_ema16_oversold", dipParams{emaPeriod: 16, offset: 0.034, rsiMax: 28, mfiMax: 36}),
		dipRule("dip_ema50_oversold", dipParams{emaPeriod: 50, offset: 0.046, rsiMax: 27, mfiMax: 35}),
		dipRule("dip_ema100_oversold", dipParams{emaPeriod: 100, offset: 0.052, rsiMax: 26, mfiMax: 34}),
		dipRule("dip_ema200_oversold", dipParams{emaPeriod: 200, offset: 0.06, rsiMax: 25, mfiMax: 33}),
		scalpRule(scalpEWOMin),
	}
	return NewRuleSet(rules)
}
