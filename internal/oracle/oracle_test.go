package oracle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virellia/driftline/internal/models"
)

type stubFetcher struct {
	sample models.OnChainSample
	err    error
	calls  int
}

func (f *stubFetcher) Fetch(context.Context) (models.OnChainSample, error) {
	f.calls++
	return f.sample, f.err
}

func testConfig() Config {
	return Config{
		MaxAge:            6 * time.Hour,
		RefreshInterval:   time.Hour,
		FetchTimeout:      time.Second,
		VelocityWindow:    72 * time.Hour,
		VelocityThreshold: 0.005,
	}
}

func newTestOracle(t *testing.T, fetcher Fetcher) *Oracle {
	t.Helper()
	store := NewSampleStore(filepath.Join(t.TempDir(), "samples.csv"))
	o, err := New(testConfig(), store, fetcher, nil, nil)
	require.NoError(t, err)
	return o
}

func seed(o *Oracle, samples ...models.OnChainSample) {
	o.cache.Store(samples)
}

func TestRefreshIfStaleBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		age         time.Duration
		wantRefresh bool
	}{
		{"just under max age", 6*time.Hour - time.Minute, false},
		{"exactly max age", 6 * time.Hour, false},
		{"just past max age", 6*time.Hour + time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{sample: models.OnChainSample{Timestamp: now, TVL: 1e9, StableSupply: 1e8}}
			o := newTestOracle(t, fetcher)
			o.now = func() time.Time { return now }
			seed(o, models.OnChainSample{Timestamp: now.Add(-tt.age), TVL: 1e9, StableSupply: 1e8})

			refreshed, err := o.RefreshIfStale(context.Background(), o.cfg.MaxAge)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRefresh, refreshed)
			if tt.wantRefresh {
				assert.Equal(t, 1, fetcher.calls)
				assert.Len(t, o.Samples(), 2)
			} else {
				assert.Zero(t, fetcher.calls)
				assert.Len(t, o.Samples(), 1)
			}
		})
	}
}

func TestRefreshEmptyCacheAlwaysFetches(t *testing.T) {
	fetcher := &stubFetcher{sample: models.OnChainSample{Timestamp: time.Now(), TVL: 1e9, StableSupply: 1e8}}
	o := newTestOracle(t, fetcher)

	refreshed, err := o.RefreshIfStale(context.Background(), o.cfg.MaxAge)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Len(t, o.Samples(), 1)
}

func TestRefreshSoftFailureServesStaleCache(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &stubFetcher{err: errors.New("upstream down")}
	o := newTestOracle(t, fetcher)
	o.now = func() time.Time { return now }

	stale := models.OnChainSample{Timestamp: now.Add(-24 * time.Hour), TVL: 1e9, StableSupply: 1e8}
	seed(o, stale)

	refreshed, err := o.RefreshIfStale(context.Background(), o.cfg.MaxAge)
	assert.False(t, refreshed)
	assert.Error(t, err)

	// The last-good cache is untouched and the failure is only counted.
	require.Len(t, o.Samples(), 1)
	assert.Equal(t, stale, o.Samples()[0])
	assert.Equal(t, int64(1), o.Status().SoftFailures)
	assert.False(t, o.RiskOff(), "fetch failure must not flip the regime")
}

func TestRefreshPersistsToStore(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	fetcher := &stubFetcher{sample: models.OnChainSample{Timestamp: now, TVL: 2e9, StableSupply: 3e8}}
	o := newTestOracle(t, fetcher)

	_, err := o.RefreshIfStale(context.Background(), o.cfg.MaxAge)
	require.NoError(t, err)

	persisted, err := o.store.Load()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, 2e9, persisted[0].TVL)
	assert.Equal(t, 3e8, persisted[0].StableSupply)
}

func TestRiskOff(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unknown velocity is not risk-off", func(t *testing.T) {
		o := newTestOracle(t, &stubFetcher{})
		assert.False(t, o.RiskOff())
	})

	t.Run("flat supply is not risk-off", func(t *testing.T) {
		o := newTestOracle(t, &stubFetcher{})
		o.now = func() time.Time { return now }
		seed(o,
			models.OnChainSample{Timestamp: now.Add(-48 * time.Hour), StableSupply: 1e8},
			models.OnChainSample{Timestamp: now, StableSupply: 1e8},
		)
		assert.False(t, o.RiskOff())
	})

	t.Run("draining supply is risk-off", func(t *testing.T) {
		o := newTestOracle(t, &stubFetcher{})
		o.now = func() time.Time { return now }
		// 2% drain over two days: -1%/day, well past the 0.5%/day threshold
		seed(o,
			models.OnChainSample{Timestamp: now.Add(-48 * time.Hour), StableSupply: 1e8},
			models.OnChainSample{Timestamp: now, StableSupply: 0.98e8},
		)
		assert.True(t, o.RiskOff())
	})

	t.Run("growing supply is not risk-off", func(t *testing.T) {
		o := newTestOracle(t, &stubFetcher{})
		o.now = func() time.Time { return now }
		seed(o,
			models.OnChainSample{Timestamp: now.Add(-48 * time.Hour), StableSupply: 1e8},
			models.OnChainSample{Timestamp: now, StableSupply: 1.1e8},
		)
		assert.False(t, o.RiskOff())
	})
}

func TestVelocityWindowExcludesOldSamples(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o := newTestOracle(t, &stubFetcher{})
	o.now = func() time.Time { return now }

	// The ancient crash sits outside the 72h window; inside it supply is flat.
	seed(o,
		models.OnChainSample{Timestamp: now.Add(-30 * 24 * time.Hour), StableSupply: 2e8},
		models.OnChainSample{Timestamp: now.Add(-48 * time.Hour), StableSupply: 1e8},
		models.OnChainSample{Timestamp: now, StableSupply: 1e8},
	)

	v, ok := o.Velocity()
	require.True(t, ok)
	assert.Zero(t, v)
	assert.False(t, o.RiskOff())
}

func TestStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o := newTestOracle(t, &stubFetcher{})
	o.now = func() time.Time { return now }

	st := o.Status()
	assert.Zero(t, st.Samples)
	assert.True(t, st.Stale)

	fresh := models.OnChainSample{Timestamp: now.Add(-time.Hour), StableSupply: 1e8}
	seed(o, fresh)

	st = o.Status()
	assert.Equal(t, 1, st.Samples)
	assert.Equal(t, fresh.Timestamp, st.FreshestAt)
	assert.False(t, st.Stale)
	assert.False(t, st.BreakerOpen)
}

func TestResetBreaker(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("upstream down")}
	o := newTestOracle(t, fetcher)

	// Trip the breaker with repeated failures.
	for i := 0; i < 6; i++ {
		_, _ = o.RefreshIfStale(context.Background(), o.cfg.MaxAge)
	}
	assert.True(t, o.Status().BreakerOpen)

	o.ResetBreaker()
	assert.False(t, o.Status().BreakerOpen)
}
