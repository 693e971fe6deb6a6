package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	fearGreedCacheKey = "market:fear_greed"
	dominanceCacheKey = "market:btc_dominance"

	// Neutral fallbacks: the context never fails hard, it degrades to values
	// that disable its filters.
	neutralFearGreed = 50
	neutralDominance = 50.0
)

// Config holds the external feed endpoints and cache TTLs.
type Config struct {
	FearGreedURL     string
	GlobalURL        string
	FearGreedTTL     time.Duration
	DominanceTTL     time.Duration
	DominanceVetoPct float64
}

// Cache is the TTL cache used to stay under API rate limits. It is satisfied
// by database.RedisClient; a nil cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Context provides the external regime inputs: the Fear & Greed Index for
// position sizing and BTC dominance for the altcoin veto.
type Context struct {
	cfg    Config
	cache  Cache
	client *http.Client
	logger *logrus.Logger
}

// NewContext creates a market context. cache may be nil.
func NewContext(cfg Config, cache Cache, logger *logrus.Logger) *Context {
	if logger == nil {
		logger = logrus.New()
	}
	return &Context{
		cfg:    cfg,
		cache:  cache,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

type fearGreedResponse struct {
	Data []struct {
		Value string `json:"value"`
	} `json:"data"`
}

type globalResponse struct {
	Data struct {
		MarketCapPercentage map[string]float64 `json:"market_cap_percentage"`
	} `json:"data"`
}

// FearGreed returns the current Fear & Greed Index (0-100), neutral 50 on
// any failure.
func (c *Context) FearGreed(ctx context.Context) int {
	if cached, ok := c.cachedInt(ctx, fearGreedCacheKey); ok {
		return cached
	}

	var resp fearGreedResponse
	if err := c.getJSON(ctx, c.cfg.FearGreedURL, &resp); err != nil {
		c.logger.WithField("error", err.Error()).Warn("Fear & Greed fetch failed, using neutral")
		return neutralFearGreed
	}
	if len(resp.Data) == 0 {
		return neutralFearGreed
	}

	value, err := strconv.Atoi(resp.Data[0].Value)
	if err != nil {
		c.logger.WithField("error", err.Error()).Warn("Fear & Greed value unparsable, using neutral")
		return neutralFearGreed
	}

	c.cacheSet(ctx, fearGreedCacheKey, strconv.Itoa(value), c.cfg.FearGreedTTL)
	return value
}

// BTCDominance returns the BTC share of total crypto market cap in percent,
// neutral 50 on any failure.
func (c *Context) BTCDominance(ctx context.Context) float64 {
	if cached, ok := c.cachedFloat(ctx, dominanceCacheKey); ok {
		return cached
	}

	var resp globalResponse
	if err := c.getJSON(ctx, c.cfg.GlobalURL, &resp); err != nil {
		c.logger.WithField("error", err.Error()).Warn("BTC dominance fetch failed, using neutral")
		return neutralDominance
	}

	dom, ok := resp.Data.MarketCapPercentage["btc"]
	if !ok {
		return neutralDominance
	}

	c.cacheSet(ctx, dominanceCacheKey, strconv.FormatFloat(dom, 'f', -1, 64), c.cfg.DominanceTTL)
	return dom
}

// StakeModifier maps the Fear & Greed Index to a stake multiplier: buy the
// fear, shrink into euphoria.
func (c *Context) StakeModifier(ctx context.Context) float64 {
	fng := c.FearGreed(ctx)

	switch {
	case fng < 25:
		return 1.5
	case fng < 45:
		return 1.2
	case fng < 55:
		return 1.0
	case fng < 75:
		return 0.8
	default:
		return 0.5
	}
}

// ShouldVetoAltcoin reports whether high BTC dominance vetoes an altcoin
// entry. BTC pairs are never vetoed.
func (c *Context) ShouldVetoAltcoin(ctx context.Context, pair string) bool {
	base := strings.Split(pair, "/")[0]
	if strings.Contains(base, "BTC") {
		return false
	}

	dom := c.BTCDominance(ctx)
	if dom > c.cfg.DominanceVetoPct {
		c.logger.WithFields(logrus.Fields{
			"pair":      pair,
			"dominance": dom,
		}).Info("Altcoin entry vetoed by BTC dominance")
		return true
	}
	return false
}

func (c *Context) cachedInt(ctx context.Context, key string) (int, bool) {
	if c.cache == nil {
		return 0, false
	}
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (c *Context) cachedFloat(ctx context.Context, key string) (float64, bool) {
	if c.cache == nil {
		return 0, false
	}
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (c *Context) cacheSet(ctx context.Context, key, value string, ttl time.Duration) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, value, ttl); err != nil {
		c.logger.WithField("error", err.Error()).Debug("Market cache write failed")
	}
}

func (c *Context) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
