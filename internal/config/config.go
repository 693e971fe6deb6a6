package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/virellia/driftline/internal/utils"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Oracle      OracleConfig    `mapstructure:"oracle"`
	Market      MarketConfig    `mapstructure:"market"`
	Strategy    StrategyConfig  `mapstructure:"strategy"`
	Position    PositionConfig  `mapstructure:"position"`
	Telegram    TelegramConfig  `mapstructure:"telegram"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
	Security    SecurityConfig  `mapstructure:"security"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OracleConfig controls the on-chain data oracle.
type OracleConfig struct {
	DataFile          string  `mapstructure:"data_file"`
	SourceURL         string  `mapstructure:"source_url"`
	StableURL         string  `mapstructure:"stable_url"`
	MaxAge            string  `mapstructure:"max_age"`
	RefreshInterval   string  `mapstructure:"refresh_interval"`
	FetchTimeout      string  `mapstructure:"fetch_timeout"`
	VelocityWindow    string  `mapstructure:"velocity_window"`
	VelocityThreshold float64 `mapstructure:"velocity_threshold"`
}

// MarketConfig controls the external market-context feeds.
type MarketConfig struct {
	FearGreedURL     string  `mapstructure:"fear_greed_url"`
	GlobalURL        string  `mapstructure:"global_url"`
	FearGreedTTL     string  `mapstructure:"fear_greed_ttl"`
	DominanceTTL     string  `mapstructure:"dominance_ttl"`
	DominanceVetoPct float64 `mapstructure:"dominance_veto_pct"`
}

// StrategyConfig holds the thresholds shared by the entry rules and the
// safety veto layer.
type StrategyConfig struct {
	Pairs        []string `mapstructure:"pairs"`
	MaxOpenPairs int      `mapstructure:"max_open_pairs"`
	Timeframe    string   `mapstructure:"timeframe"`

	ZScoreWindow int     `mapstructure:"zscore_window"`
	DipThreshold float64 `mapstructure:"dip_threshold"`
	VWAPWindow   int     `mapstructure:"vwap_window"`
	VWAPVetoZ    float64 `mapstructure:"vwap_veto_z"`
	PumpCap24h   float64 `mapstructure:"pump_cap_24h"`
	PumpCap7d    float64 `mapstructure:"pump_cap_7d"`
	ScalpEWOMin  float64 `mapstructure:"scalp_ewo_min"`
}

// PositionConfig holds the DCA ladder and exit parameters.
type PositionConfig struct {
	DCAMultipliers    []float64 `mapstructure:"dca_multipliers"`
	ROISteps          []ROIStep `mapstructure:"roi_steps"`
	TrendBoostEWO     float64   `mapstructure:"trend_boost_ewo"`
	TrendBoostExtend  string    `mapstructure:"trend_boost_extend"`
	StopActivationPct float64   `mapstructure:"stop_activation_pct"`
	StopATRMultiplier float64   `mapstructure:"stop_atr_multiplier"`
}

// ROIStep maps a minimum holding duration to the minimum acceptable profit
// fraction once that duration has elapsed.
type ROIStep struct {
	After     string  `mapstructure:"after"`
	MinProfit float64 `mapstructure:"min_profit"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"` // "stdout" or "otlp"
	Endpoint string `mapstructure:"endpoint"`
}

type SecurityConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry     string `mapstructure:"jwt_expiry"`
	BcryptCost    int    `mapstructure:"bcrypt_cost"`
	AdminPassHash string `mapstructure:"admin_pass_hash" json:"-" yaml:"-"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind specific environment variables
	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN environment variable: %w", err)
	}
	if err := viper.BindEnv("security.admin_pass_hash", "ADMIN_PASS_HASH"); err != nil {
		return nil, fmt.Errorf("failed to bind ADMIN_PASS_HASH environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects out-of-range values at startup. Nothing is silently
// clamped: a bad threshold is an operator mistake and must surface.
func Validate(config *Config) error {
	if environment := config.Environment; environment != "development" && config.Security.JWTSecret == "" {
		return utils.NewValidationError("JWT_SECRET environment variable is required in non-development environments")
	}

	if config.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(config.Security.JWTExpiry); err != nil {
			return utils.NewValidationErrorf("invalid JWT expiry duration: %v", err)
		}
	}

	if config.Security.BcryptCost < bcrypt.MinCost || config.Security.BcryptCost > bcrypt.MaxCost {
		return utils.NewValidationErrorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, config.Security.BcryptCost)
	}

	s := config.Strategy
	if s.ZScoreWindow < 2 {
		return utils.NewValidationErrorf("strategy.zscore_window must be at least 2, got %d", s.ZScoreWindow)
	}
	if s.DipThreshold <= 0 {
		return utils.NewValidationErrorf("strategy.dip_threshold must be positive, got %g", s.DipThreshold)
	}
	if s.VWAPWindow < 2 {
		return utils.NewValidationErrorf("strategy.vwap_window must be at least 2, got %d", s.VWAPWindow)
	}
	if s.VWAPVetoZ <= 0 {
		return utils.NewValidationErrorf("strategy.vwap_veto_z must be positive, got %g", s.VWAPVetoZ)
	}
	if s.PumpCap24h <= 0 || s.PumpCap7d <= 0 {
		return utils.NewValidationErrorf("strategy pump caps must be positive, got 24h=%g 7d=%g", s.PumpCap24h, s.PumpCap7d)
	}
	if s.MaxOpenPairs <= 0 {
		return utils.NewValidationErrorf("strategy.max_open_pairs must be positive, got %d", s.MaxOpenPairs)
	}
	if _, err := time.ParseDuration(s.Timeframe); err != nil {
		return utils.NewValidationErrorf("invalid strategy.timeframe: %v", err)
	}

	p := config.Position
	if len(p.DCAMultipliers) == 0 {
		return utils.NewValidationError("position.dca_multipliers must not be empty")
	}
	for i, m := range p.DCAMultipliers {
		if m <= 0 {
			return utils.NewValidationErrorf("position.dca_multipliers[%d] must be positive, got %g", i, m)
		}
	}
	if p.StopActivationPct <= 0 {
		return utils.NewValidationErrorf("position.stop_activation_pct must be positive, got %g", p.StopActivationPct)
	}
	if p.StopATRMultiplier <= 0 {
		return utils.NewValidationErrorf("position.stop_atr_multiplier must be positive, got %g", p.StopATRMultiplier)
	}
	prev := time.Duration(-1)
	prevProfit := 0.0
	for i, step := range p.ROISteps {
		d, err := time.ParseDuration(step.After)
		if err != nil {
			return utils.NewValidationErrorf("invalid position.roi_steps[%d].after: %v", i, err)
		}
		if d <= prev {
			return utils.NewValidationError("position.roi_steps must be ordered by ascending duration")
		}
		if step.MinProfit < 0 {
			return utils.NewValidationErrorf("position.roi_steps[%d].min_profit must not be negative, got %g", i, step.MinProfit)
		}
		if i > 0 && step.MinProfit > prevProfit {
			return utils.NewValidationError("position.roi_steps must be non-increasing in profit")
		}
		prev = d
		prevProfit = step.MinProfit
	}

	o := config.Oracle
	for _, field := range []struct {
		name, value string
	}{
		{"oracle.max_age", o.MaxAge},
		{"oracle.refresh_interval", o.RefreshInterval},
		{"oracle.fetch_timeout", o.FetchTimeout},
		{"oracle.velocity_window", o.VelocityWindow},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return utils.NewValidationErrorf("invalid %s: %v", field.name, err)
		}
	}
	if o.VelocityThreshold <= 0 {
		return utils.NewValidationErrorf("oracle.velocity_threshold must be positive, got %g", o.VelocityThreshold)
	}

	m := config.Market
	if m.DominanceVetoPct <= 0 || m.DominanceVetoPct >= 100 {
		return utils.NewValidationErrorf("market.dominance_veto_pct must be in (0, 100), got %g", m.DominanceVetoPct)
	}

	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database (optional on-chain sample archive)
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "driftline")
	viper.SetDefault("database.sslmode", "disable")

	// Redis (market-context cache)
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Oracle
	viper.SetDefault("oracle.data_file", "data/onchain_samples.csv")
	viper.SetDefault("oracle.source_url", "https://api.llama.fi/v2/chains")
	viper.SetDefault("oracle.stable_url", "https://stablecoins.llama.fi/stablecoins")
	viper.SetDefault("oracle.max_age", "6h")
	viper.SetDefault("oracle.refresh_interval", "30m")
	viper.SetDefault("oracle.fetch_timeout", "30s")
	viper.SetDefault("oracle.velocity_window", "168h")
	viper.SetDefault("oracle.velocity_threshold", 0.005)

	// Market context
	viper.SetDefault("market.fear_greed_url", "https://api.alternative.me/fng/")
	viper.SetDefault("market.global_url", "https://api.coingecko.com/api/v3/global")
	viper.SetDefault("market.fear_greed_ttl", "1h")
	viper.SetDefault("market.dominance_ttl", "10m")
	viper.SetDefault("market.dominance_veto_pct", 55.0)

	// Strategy
	viper.SetDefault("strategy.pairs", []string{"BTC/USDT", "ETH/USDT", "SOL/USDT", "ADA/USDT"})
	viper.SetDefault("strategy.max_open_pairs", 6)
	viper.SetDefault("strategy.timeframe", "5m")
	viper.SetDefault("strategy.zscore_window", 21)
	viper.SetDefault("strategy.dip_threshold", 1.28)
	viper.SetDefault("strategy.vwap_window", 48)
	viper.SetDefault("strategy.vwap_veto_z", 2.0)
	viper.SetDefault("strategy.pump_cap_24h", 0.18)
	viper.SetDefault("strategy.pump_cap_7d", 0.45)
	viper.SetDefault("strategy.scalp_ewo_min", 2.5)

	// Position
	viper.SetDefault("position.dca_multipliers", []float64{1.5, 4.0})
	viper.SetDefault("position.roi_steps", []map[string]interface{}{
		{"after": "0s", "min_profit": 0.045},
		{"after": "20m", "min_profit": 0.035},
		{"after": "1h", "min_profit": 0.025},
		{"after": "3h", "min_profit": 0.015},
		{"after": "8h", "min_profit": 0.008},
	})
	viper.SetDefault("position.trend_boost_ewo", 4.0)
	viper.SetDefault("position.trend_boost_extend", "40m")
	viper.SetDefault("position.stop_activation_pct", 0.015)
	viper.SetDefault("position.stop_atr_multiplier", 2.0)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", 0)

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.exporter", "stdout")
	viper.SetDefault("telemetry.endpoint", "localhost:4318")

	// Security
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
	viper.SetDefault("security.bcrypt_cost", 12)
	viper.SetDefault("security.admin_pass_hash", "")
}
