package oracle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/virellia/driftline/internal/models"
	"github.com/virellia/driftline/internal/services"
)

// Config holds the oracle refresh and risk parameters.
type Config struct {
	MaxAge            time.Duration
	RefreshInterval   time.Duration
	FetchTimeout      time.Duration
	VelocityWindow    time.Duration
	VelocityThreshold float64
}

// Status is a point-in-time view of the oracle for the operator API.
type Status struct {
	Samples      int       `json:"samples"`
	FreshestAt   time.Time `json:"freshest_at"`
	Stale        bool      `json:"stale"`
	RiskOff      bool      `json:"risk_off"`
	SoftFailures int64     `json:"soft_failures"`
	BreakerOpen  bool      `json:"breaker_open"`
}

// Oracle maintains an append-only cache of on-chain samples and derives a
// risk-off flag from stablecoin-supply velocity. Data unavailability is a
// soft failure by policy: when the feed cannot be refreshed the oracle keeps
// serving the last-good cache and reports risk-off as false ("unknown risk
// regime"), never deny-all and never allow-on-risk.
type Oracle struct {
	cfg     Config
	store   *SampleStore
	fetcher Fetcher
	breaker *services.CircuitBreaker
	archive *Archive
	logger  *logrus.Logger

	// now is injectable for staleness tests.
	now func() time.Time

	// cache holds []models.OnChainSample and is swapped wholesale so readers
	// never observe a half-written refresh.
	cache atomic.Value

	// refreshMu makes the refresh single-flight; a query during a refresh in
	// progress reads the last-good cache instead of waiting.
	refreshMu sync.Mutex

	softFailures atomic.Int64
}

// New creates an oracle, loading persisted samples from the store. The
// archive may be nil when no database is configured.
func New(cfg Config, store *SampleStore, fetcher Fetcher, archive *Archive, logger *logrus.Logger) (*Oracle, error) {
	if logger == nil {
		logger = logrus.New()
	}

	o := &Oracle{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		archive: archive,
		logger:  logger,
		now:     time.Now,
		breaker: services.NewCircuitBreaker("onchain-fetch", services.CircuitBreakerConfig{}, logger),
	}

	samples, err := store.Load()
	if err != nil {
		return nil, err
	}
	o.cache.Store(samples)

	logger.WithFields(logrus.Fields{
		"samples": len(samples),
	}).Info("On-chain oracle loaded")

	return o, nil
}

// Samples returns the current cached samples. The returned slice must not be
// mutated.
func (o *Oracle) Samples() []models.OnChainSample {
	s, _ := o.cache.Load().([]models.OnChainSample)
	return s
}

// Freshest returns the most recent cached sample.
func (o *Oracle) Freshest() (models.OnChainSample, bool) {
	s := o.Samples()
	if len(s) == 0 {
		return models.OnChainSample{}, false
	}
	return s[len(s)-1], true
}

// RefreshIfStale fetches a new sample when the freshest cached sample is
// strictly older than maxAge, or the cache is empty. Fetch failures are soft:
// the stale cache keeps serving and the failure is logged and counted, never
// escalated into blocking trading.
func (o *Oracle) RefreshIfStale(ctx context.Context, maxAge time.Duration) (bool, error) {
	if fresh, ok := o.Freshest(); ok {
		if o.now().Sub(fresh.Timestamp) <= maxAge {
			return false, nil
		}
	}

	if !o.refreshMu.TryLock() {
		// A refresh is already in flight; serve the last-good cache.
		return false, nil
	}
	defer o.refreshMu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	var sample models.OnChainSample
	err := o.breaker.Execute(fetchCtx, func(ctx context.Context) error {
		var fetchErr error
		sample, fetchErr = o.fetcher.Fetch(ctx)
		return fetchErr
	})
	if err != nil {
		o.softFailures.Add(1)
		o.logger.WithFields(logrus.Fields{
			"error":         err.Error(),
			"soft_failures": o.softFailures.Load(),
		}).Warn("On-chain refresh failed, serving stale cache")
		return false, err
	}

	o.append(ctx, sample)
	return true, nil
}

func (o *Oracle) append(ctx context.Context, sample models.OnChainSample) {
	old := o.Samples()
	updated := make([]models.OnChainSample, len(old), len(old)+1)
	copy(updated, old)
	updated = append(updated, sample)
	o.cache.Store(updated)

	if err := o.store.Append(sample); err != nil {
		o.logger.WithField("error", err.Error()).Warn("Failed to persist on-chain sample")
	}
	if o.archive != nil {
		if err := o.archive.Insert(ctx, sample); err != nil {
			o.logger.WithField("error", err.Error()).Warn("Failed to archive on-chain sample")
		}
	}

	o.logger.WithFields(logrus.Fields{
		"tvl":           sample.TVL,
		"stable_supply": sample.StableSupply,
	}).Info("On-chain sample appended")
}

// Velocity returns the stablecoin-supply velocity over the trailing window.
func (o *Oracle) Velocity() (float64, bool) {
	samples := o.Samples()
	cutoff := o.now().Add(-o.cfg.VelocityWindow)

	start := len(samples)
	for i, s := range samples {
		if !s.Timestamp.Before(cutoff) {
			start = i
			break
		}
	}

	return models.Velocity(samples[start:])
}

// RiskOff reports whether stablecoin supply is draining faster than the
// configured threshold. An unknown velocity (empty or flat feed) is not
// risk-off.
func (o *Oracle) RiskOff() bool {
	v, ok := o.Velocity()
	if !ok {
		return false
	}
	return v < -o.cfg.VelocityThreshold
}

// ResetBreaker manually closes the fetch circuit breaker.
func (o *Oracle) ResetBreaker() {
	o.breaker.Reset()
}

// Status returns the oracle's current state for the operator API.
func (o *Oracle) Status() Status {
	st := Status{
		Samples:      len(o.Samples()),
		RiskOff:      o.RiskOff(),
		SoftFailures: o.softFailures.Load(),
		BreakerOpen:  o.breaker.IsOpen(),
		Stale:        true,
	}
	if fresh, ok := o.Freshest(); ok {
		st.FreshestAt = fresh.Timestamp
		st.Stale = o.now().Sub(fresh.Timestamp) > o.cfg.MaxAge
	}
	return st
}

// Start runs the background refresh loop until the context is cancelled. The
// loop never blocks per-candle evaluation: it only swaps the cache reference.
func (o *Oracle) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(o.cfg.RefreshInterval)
		defer ticker.Stop()

		if _, err := o.RefreshIfStale(ctx, o.cfg.MaxAge); err != nil {
			o.logger.WithField("error", err.Error()).Warn("Initial on-chain refresh failed")
		}

		for {
			select {
			case <-ctx.Done():
				o.logger.Info("On-chain oracle stopped")
				return
			case <-ticker.C:
				if _, err := o.RefreshIfStale(ctx, o.cfg.MaxAge); err != nil {
					continue // already logged as a soft failure
				}
			}
		}
	}()
}
