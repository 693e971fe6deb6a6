package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virellia/driftline/internal/utils"
)

func validConfig() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server:      ServerConfig{Port: 8080},
		Oracle: OracleConfig{
			DataFile:          "data/onchain_samples.csv",
			MaxAge:            "6h",
			RefreshInterval:   "30m",
			FetchTimeout:      "30s",
			VelocityWindow:    "168h",
			VelocityThreshold: 0.005,
		},
		Market: MarketConfig{
			FearGreedTTL:     "1h",
			DominanceTTL:     "10m",
			DominanceVetoPct: 55.0,
		},
		Strategy: StrategyConfig{
			Pairs:        []string{"BTC/USDT"},
			MaxOpenPairs: 6,
			Timeframe:    "5m",
			ZScoreWindow: 21,
			DipThreshold: 1.28,
			VWAPWindow:   48,
			VWAPVetoZ:    2.0,
			PumpCap24h:   0.18,
			PumpCap7d:    0.45,
			ScalpEWOMin:  2.5,
		},
		Position: PositionConfig{
			DCAMultipliers: []float64{1.5, 4.0},
			ROISteps: []ROIStep{
				{After: "0s", MinProfit: 0.045},
				{After: "20m", MinProfit: 0.035},
				{After: "1h", MinProfit: 0.025},
			},
			TrendBoostEWO:     4.0,
			TrendBoostExtend:  "40m",
			StopActivationPct: 0.015,
			StopATRMultiplier: 2.0,
		},
		Security: SecurityConfig{
			JWTExpiry:  "24h",
			BcryptCost: 12,
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateReturnsValidationError(t *testing.T) {
	cfg := validConfig()
	cfg.Strategy.DipThreshold = -1

	err := Validate(cfg)
	require.Error(t, err)

	var verr *utils.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"jwt secret required outside development", func(c *Config) {
			c.Environment = "production"
			c.Security.JWTSecret = ""
		}},
		{"bad jwt expiry", func(c *Config) { c.Security.JWTExpiry = "tomorrow" }},
		{"bcrypt cost too low", func(c *Config) { c.Security.BcryptCost = 2 }},
		{"bcrypt cost too high", func(c *Config) { c.Security.BcryptCost = 99 }},
		{"zscore window too small", func(c *Config) { c.Strategy.ZScoreWindow = 1 }},
		{"negative dip threshold", func(c *Config) { c.Strategy.DipThreshold = -1.28 }},
		{"zero dip threshold", func(c *Config) { c.Strategy.DipThreshold = 0 }},
		{"vwap window too small", func(c *Config) { c.Strategy.VWAPWindow = 1 }},
		{"zero vwap veto z", func(c *Config) { c.Strategy.VWAPVetoZ = 0 }},
		{"zero pump cap", func(c *Config) { c.Strategy.PumpCap24h = 0 }},
		{"zero max open pairs", func(c *Config) { c.Strategy.MaxOpenPairs = 0 }},
		{"bad timeframe", func(c *Config) { c.Strategy.Timeframe = "five minutes" }},
		{"empty dca multipliers", func(c *Config) { c.Position.DCAMultipliers = nil }},
		{"negative dca multiplier", func(c *Config) { c.Position.DCAMultipliers = []float64{1.5, -4.0} }},
		{"zero stop activation", func(c *Config) { c.Position.StopActivationPct = 0 }},
		{"zero stop atr multiplier", func(c *Config) { c.Position.StopATRMultiplier = 0 }},
		{"roi steps out of order", func(c *Config) {
			c.Position.ROISteps = []ROIStep{
				{After: "1h", MinProfit: 0.045},
				{After: "20m", MinProfit: 0.035},
			}
		}},
		{"roi steps increasing profit", func(c *Config) {
			c.Position.ROISteps = []ROIStep{
				{After: "0s", MinProfit: 0.02},
				{After: "1h", MinProfit: 0.03},
			}
		}},
		{"roi step bad duration", func(c *Config) {
			c.Position.ROISteps = []ROIStep{{After: "soon", MinProfit: 0.045}}
		}},
		{"roi step negative profit", func(c *Config) {
			c.Position.ROISteps = []ROIStep{{After: "0s", MinProfit: -0.01}}
		}},
		{"bad oracle max age", func(c *Config) { c.Oracle.MaxAge = "six hours" }},
		{"zero velocity threshold", func(c *Config) { c.Oracle.VelocityThreshold = 0 }},
		{"dominance veto out of range", func(c *Config) { c.Market.DominanceVetoPct = 100 }},
		{"zero dominance veto", func(c *Config) { c.Market.DominanceVetoPct = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg), "misconfiguration must be rejected, never clamped")
		})
	}
}
