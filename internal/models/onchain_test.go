package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sample(ts time.Time, supply float64) OnChainSample {
	return OnChainSample{Timestamp: ts, TVL: 1e9, StableSupply: supply}
}

func TestVelocity(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("too few samples", func(t *testing.T) {
		_, ok := Velocity(nil)
		assert.False(t, ok)
		_, ok = Velocity([]OnChainSample{sample(base, 100)})
		assert.False(t, ok)
	})

	t.Run("zero duration span", func(t *testing.T) {
		_, ok := Velocity([]OnChainSample{sample(base, 100), sample(base, 110)})
		assert.False(t, ok)
	})

	t.Run("growth per day", func(t *testing.T) {
		v, ok := Velocity([]OnChainSample{
			sample(base, 100),
			sample(base.Add(48*time.Hour), 110),
		})
		assert.True(t, ok)
		assert.InDelta(t, 0.05, v, 1e-9)
	})

	t.Run("drain is negative", func(t *testing.T) {
		v, ok := Velocity([]OnChainSample{
			sample(base, 100),
			sample(base.Add(24*time.Hour), 98),
		})
		assert.True(t, ok)
		assert.InDelta(t, -0.02, v, 1e-9)
	})

	t.Run("flat supply is known and zero", func(t *testing.T) {
		v, ok := Velocity([]OnChainSample{
			sample(base, 100),
			sample(base.Add(24*time.Hour), 100),
		})
		assert.True(t, ok)
		assert.Zero(t, v)
	})
}
