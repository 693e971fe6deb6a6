package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/virellia/driftline/internal/api"
	"github.com/virellia/driftline/internal/api/handlers"
	"github.com/virellia/driftline/internal/config"
	"github.com/virellia/driftline/internal/database"
	"github.com/virellia/driftline/internal/indicators"
	"github.com/virellia/driftline/internal/logging"
	"github.com/virellia/driftline/internal/market"
	"github.com/virellia/driftline/internal/middleware"
	"github.com/virellia/driftline/internal/oracle"
	"github.com/virellia/driftline/internal/position"
	"github.com/virellia/driftline/internal/services"
	"github.com/virellia/driftline/internal/strategy"
	"github.com/virellia/driftline/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local overrides; absent .env is fine in deployment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogrusLogger(cfg.LogLevel, cfg.Environment)

	// Structured log export shares the OTLP endpoint with tracing; with any
	// other exporter it degrades to stdout slog.
	otlpLogs, err := logging.NewOTLPLogger(logging.OTLPConfig{
		Enabled:        cfg.Telemetry.Enabled && cfg.Telemetry.Exporter == "otlp",
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    "driftline",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize log exporter: %w", err)
	}
	defer func() {
		if err := otlpLogs.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Log exporter shutdown failed")
		}
	}()
	slogger := otlpLogs.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown failed")
		}
	}()

	var db *database.PostgresDB
	if cfg.Database.Enabled {
		db, err = database.NewPostgresConnection(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		logger.Info("PostgreSQL archive connected")
	}

	var redis *database.RedisClient
	if cfg.Redis.Enabled {
		redis, err = database.NewRedisConnection(cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redis.Close()
		logger.Info("Redis cache connected")
	}

	// On-chain oracle: CSV store, DeFiLlama fetcher, optional Postgres archive
	var archive *oracle.Archive
	if db != nil {
		archive = oracle.NewArchive(db.Pool, logger)
	}
	fetchTimeout := parseDuration(cfg.Oracle.FetchTimeout, 30*time.Second)
	onchain, err := oracle.New(
		oracle.Config{
			MaxAge:            parseDuration(cfg.Oracle.MaxAge, 6*time.Hour),
			RefreshInterval:   parseDuration(cfg.Oracle.RefreshInterval, time.Hour),
			FetchTimeout:      fetchTimeout,
			VelocityWindow:    parseDuration(cfg.Oracle.VelocityWindow, 72*time.Hour),
			VelocityThreshold: cfg.Oracle.VelocityThreshold,
		},
		oracle.NewSampleStore(cfg.Oracle.DataFile),
		oracle.NewLlamaClient(cfg.Oracle.SourceURL, cfg.Oracle.StableURL, fetchTimeout),
		archive,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize on-chain oracle: %w", err)
	}
	onchain.Start(ctx)

	var marketCache market.Cache
	if redis != nil {
		marketCache = redis
	}
	marketCtx := market.NewContext(market.Config{
		FearGreedURL:     cfg.Market.FearGreedURL,
		GlobalURL:        cfg.Market.GlobalURL,
		FearGreedTTL:     parseDuration(cfg.Market.FearGreedTTL, time.Hour),
		DominanceTTL:     parseDuration(cfg.Market.DominanceTTL, time.Hour),
		DominanceVetoPct: cfg.Market.DominanceVetoPct,
	}, marketCache, logger)

	indicatorCfg := indicators.DefaultConfig()
	indicatorCfg.VWAPWindow = cfg.Strategy.VWAPWindow
	indicatorCfg.ZScoreWindow = cfg.Strategy.ZScoreWindow
	indicatorCfg.Timeframe = parseDuration(cfg.Strategy.Timeframe, 5*time.Minute)

	positions := position.NewManager(positionConfig(cfg.Position), logger)

	engine := strategy.NewEngine(
		strategy.Config{
			MaxOpenPairs: cfg.Strategy.MaxOpenPairs,
			Veto: strategy.VetoConfig{
				DipThreshold: cfg.Strategy.DipThreshold,
				VWAPVetoZ:    cfg.Strategy.VWAPVetoZ,
				PumpCap24h:   cfg.Strategy.PumpCap24h,
				PumpCap7d:    cfg.Strategy.PumpCap7d,
			},
		},
		indicators.NewEngine(indicatorCfg, logger),
		strategy.DefaultRules(cfg.Strategy.ScalpEWOMin),
		positions,
		onchain,
		marketCtx,
		logger,
	)

	notifier := services.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
	go watchRiskRegime(ctx, onchain, notifier, logger)

	authMW := middleware.NewAuthMiddleware(cfg.Security.JWTSecret, cfg.Security.AdminPassHash, cfg.Security.BcryptCost)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	api.SetupRoutes(router, api.Dependencies{
		Health:   handlers.NewHealthHandler(db, redis, onchain),
		Strategy: handlers.NewStrategyHandler(engine, notifier),
		Oracle:   handlers.NewOracleHandler(onchain),
		Auth:     handlers.NewAuthHandler(authMW, parseDuration(cfg.Security.JWTExpiry, 24*time.Hour)),
		AuthMW:   authMW,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":  cfg.Server.Port,
			"pairs": cfg.Strategy.Pairs,
		}).Info("Engine started")
		slogger.Info("Engine started", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown signal received")
	slogger.Info("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}

// watchRiskRegime alerts once per risk-off transition.
func watchRiskRegime(ctx context.Context, onchain *oracle.Oracle, notifier *services.Notifier, logger *logrus.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	wasRiskOff := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			riskOff := onchain.RiskOff()
			if riskOff && !wasRiskOff {
				velocity, _ := onchain.Velocity()
				logger.WithField("velocity", velocity).Warn("Risk-off regime entered")
				notifier.NotifyRiskOff(ctx, velocity)
			}
			wasRiskOff = riskOff
		}
	}
}

func positionConfig(p config.PositionConfig) position.Config {
	cfg := position.DefaultConfig()
	if len(p.DCAMultipliers) > 0 {
		cfg.DCAMultipliers = p.DCAMultipliers
	}
	if len(p.ROISteps) > 0 {
		steps := make([]position.ROIStep, 0, len(p.ROISteps))
		for _, s := range p.ROISteps {
			steps = append(steps, position.ROIStep{
				After:     parseDuration(s.After, 0),
				MinProfit: s.MinProfit,
			})
		}
		cfg.ROISteps = steps
	}
	cfg.TrendBoostEWO = p.TrendBoostEWO
	cfg.TrendBoostExtend = parseDuration(p.TrendBoostExtend, 40*time.Minute)
	cfg.StopActivationPct = p.StopActivationPct
	cfg.StopATRMultiplier = p.StopATRMultiplier
	return cfg
}

// parseDuration falls back to a default for empty or invalid strings. Config
// validation has already rejected malformed values at load time.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
