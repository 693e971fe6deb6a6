package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/virellia/driftline/internal/models"
	"github.com/virellia/driftline/internal/services"
	"github.com/virellia/driftline/internal/strategy"
)

// StrategyHandler exposes the evaluation pipeline over HTTP. The host
// framework posts closed candles per pair and receives the engine's advice.
type StrategyHandler struct {
	engine   *strategy.Engine
	notifier *services.Notifier
}

func NewStrategyHandler(engine *strategy.Engine, notifier *services.Notifier) *StrategyHandler {
	return &StrategyHandler{
		engine:   engine,
		notifier: notifier,
	}
}

type StatusResponse struct {
	OpenTrades []*models.TradeState `json:"open_trades"`
	Count      int                  `json:"count"`
}

// Status returns the currently open trades.
func (h *StrategyHandler) Status(c *gin.Context) {
	trades := h.engine.OpenTrades()
	c.JSON(http.StatusOK, StatusResponse{
		OpenTrades: trades,
		Count:      len(trades),
	})
}

type AdviceRequest struct {
	Candles []models.Candle `json:"candles" binding:"required"`
}

// Advice evaluates the posted candle history for one pair. The pair is
// path-encoded with a dash separator ("DOGE-USDT" for DOGE/USDT).
func (h *StrategyHandler) Advice(c *gin.Context) {
	pair := strings.ReplaceAll(c.Param("pair"), "-", "/")
	if pair == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pair is required"})
		return
	}

	var req AdviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Candles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one candle is required"})
		return
	}

	series := &models.CandleSeries{Pair: pair}
	for _, candle := range req.Candles {
		if !series.Append(candle) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "candles must be strictly ascending by timestamp"})
			return
		}
	}

	advice, err := h.engine.Evaluate(c.Request.Context(), series)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyAdvice(c.Request.Context(), &advice)
	}

	c.JSON(http.StatusOK, advice)
}
