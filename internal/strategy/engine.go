package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/virellia/driftline/internal/indicators"
	"github.com/virellia/driftline/internal/models"
	"github.com/virellia/driftline/internal/position"
)

// RiskSource is the on-chain oracle's view into an evaluation pass.
type RiskSource interface {
	RiskOff() bool
}

// MarketContext provides the external regime inputs: a stake modifier from
// the fear/greed feed and the BTC-dominance altcoin veto.
type MarketContext interface {
	StakeModifier(ctx context.Context) float64
	ShouldVetoAltcoin(ctx context.Context, pair string) bool
}

// Config holds the engine-level settings.
type Config struct {
	MaxOpenPairs int
	Veto         VetoConfig
}

// Engine runs one synchronous evaluation pass per closed candle per pair:
// indicators, then the veto layer, then entry rules, with exits evaluated
// first and taking priority. Each pair's TradeState is owned by that pair's
// evaluation; the engine only shares the open-pair capacity counter.
type Engine struct {
	cfg        Config
	indicators *indicators.Engine
	rules      *RuleSet
	positions  *position.Manager
	risk       RiskSource
	market     MarketContext
	logger     *logrus.Logger
	tracer     trace.Tracer

	mu     sync.Mutex
	states map[string]*models.TradeState
}

// NewEngine wires the evaluation pipeline together. market may be nil, in
// which case the stake modifier is 1 and no dominance veto applies.
func NewEngine(
	cfg Config,
	ind *indicators.Engine,
	rules *RuleSet,
	positions *position.Manager,
	risk RiskSource,
	market MarketContext,
	logger *logrus.Logger,
) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		cfg:        cfg,
		indicators: ind,
		rules:      rules,
		positions:  positions,
		risk:       risk,
		market:     market,
		logger:     logger,
		tracer:     otel.Tracer("driftline/strategy"),
		states:     make(map[string]*models.TradeState),
	}
}

// Evaluate runs one pass for the pair's latest closed candle. It must be
// called from a single goroutine per pair; different pairs may evaluate
// concurrently.
func (e *Engine) Evaluate(ctx context.Context, series *models.CandleSeries) (models.Advice, error) {
	ctx, span := e.tracer.Start(ctx, "strategy.evaluate",
		trace.WithAttributes(attribute.String("pair", series.Pair)))
	defer span.End()

	snap, err := e.indicators.Snapshot(series)
	if err != nil {
		return models.Advice{}, fmt.Errorf("indicator snapshot failed: %w", err)
	}

	advice := models.Advice{
		Pair:      series.Pair,
		Timestamp: snap.Timestamp,
		Action:    models.ActionNone,
	}

	state := e.state(series.Pair)

	// Exit evaluation runs every candle for open trades and takes priority
	// over any entry or averaging action on the same candle.
	if state != nil {
		e.positions.Observe(state, snap)
		if stop, ok := e.positions.StopPrice(state); ok {
			advice.StopPrice = stop
		}

		if reason, exit := e.positions.CheckExit(state, snap); exit {
			e.closeState(series.Pair)
			advice.Action = models.ActionExit
			advice.ExitReason = reason
			advice.TargetPrice = snap.Close
			e.logger.WithFields(logrus.Fields{
				"pair":   series.Pair,
				"reason": reason,
				"profit": state.ProfitAt(snap.Close),
				"stage":  state.Stage,
			}).Info("Exit signal")
			return advice, nil
		}
	}

	risk := RiskContext{RiskOff: e.risk.RiskOff()}
	if e.market != nil {
		risk.DominanceVeto = e.market.ShouldVetoAltcoin(ctx, series.Pair)
	}

	if state != nil {
		return e.evaluateDCA(ctx, snap, state, risk, advice)
	}
	return e.evaluateEntry(ctx, snap, risk, advice)
}

func (e *Engine) evaluateDCA(ctx context.Context, snap *models.IndicatorSnapshot, state *models.TradeState, risk RiskContext, advice models.Advice) (models.Advice, error) {
	if !e.positions.ShouldDCA(state, snap) {
		return advice, nil
	}

	veto := EvaluateVeto(snap, e.cfg.Veto, risk, true)
	advice.Veto = veto
	if !veto.Admit {
		// A red candle or any other veto defers the fill to a later cycle;
		// the ladder trigger will still hold if the price stays down.
		return advice, nil
	}

	fill := models.Fill{
		Price:     decimal.NewFromFloat(snap.Close),
		Size:      e.stakeSize(ctx),
		Timestamp: snap.Timestamp,
	}
	if err := state.AddFill(fill); err != nil {
		// Stage overflow is a logic error: surface it, do not trade through it.
		return advice, err
	}

	advice.Action = models.ActionDCA
	advice.TargetPrice = snap.Close
	advice.StakeFraction, _ = fill.Size.Float64()
	e.logger.WithFields(logrus.Fields{
		"pair":  snap.Pair,
		"stage": state.Stage,
		"price": snap.Close,
	}).Info("DCA fill")

	return advice, nil
}

func (e *Engine) evaluateEntry(ctx context.Context, snap *models.IndicatorSnapshot, risk RiskContext, advice models.Advice) (models.Advice, error) {
	veto := EvaluateVeto(snap, e.cfg.Veto, risk, false)
	advice.Veto = veto
	if !veto.Admit {
		return advice, nil
	}

	rule, ok := e.rules.FirstMatch(snap)
	if !ok {
		return advice, nil
	}

	state, ok := e.openState(snap.Pair, models.Fill{
		Price:     decimal.NewFromFloat(snap.Close),
		Size:      e.stakeSize(ctx),
		Timestamp: snap.Timestamp,
	})
	if !ok {
		e.logger.WithFields(logrus.Fields{
			"pair": snap.Pair,
			"rule": rule.Name,
		}).Debug("Entry skipped, open-pair capacity reached")
		return advice, nil
	}

	advice.Action = models.ActionBuy
	advice.Rule = rule.Name
	advice.TargetPrice = snap.Close
	advice.StakeFraction, _ = state.Fills[0].Size.Float64()
	e.logger.WithFields(logrus.Fields{
		"pair":  snap.Pair,
		"rule":  rule.Name,
		"price": snap.Close,
		"stake": advice.StakeFraction,
	}).Info("Buy signal")

	return advice, nil
}

func (e *Engine) stakeSize(ctx context.Context) decimal.Decimal {
	modifier := 1.0
	if e.market != nil {
		modifier = e.market.StakeModifier(ctx)
	}
	return decimal.NewFromFloat(modifier)
}

// state returns the open trade for the pair, nil when flat.
func (e *Engine) state(pair string) *models.TradeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[pair]
}

// openState creates a trade if capacity allows.
func (e *Engine) openState(pair string, fill models.Fill) (*models.TradeState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.states) >= e.cfg.MaxOpenPairs {
		return nil, false
	}
	state := models.NewTradeState(pair, fill)
	e.states[pair] = state
	return state, true
}

func (e *Engine) closeState(pair string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, pair)
}

// OpenTrades returns a copy of the currently open trade states.
func (e *Engine) OpenTrades() []*models.TradeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*models.TradeState, 0, len(e.states))
	for _, s := range e.states {
		out = append(out, s)
	}
	return out
}

// CustomStopPrice exposes the trailing stop for the host's stop integration.
func (e *Engine) CustomStopPrice(pair string) (float64, bool) {
	state := e.state(pair)
	if state == nil {
		return 0, false
	}
	return e.positions.StopPrice(state)
}
