package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/cache"
	"papertrade/internal/config"
	"papertrade/internal/database"
	"papertrade/internal/history"
	"papertrade/internal/logger"
	"papertrade/internal/metrics"
	"papertrade/internal/notify"
	"papertrade/internal/pricing"
	"papertrade/internal/scheduler"
	"papertrade/internal/services"
	"papertrade/internal/validator"
)

// @title           Papertrade API
// @version         1.0
// @description     Simulated stock and mutual-fund trading with periodic price updates and live portfolio valuation.

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey AdminKey
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New("papertrade")

	// Event fan-out: websocket clients always, Kafka when brokers are configured.
	var sinks []notify.Sink
	if len(appConfig.KafkaBrokers) > 0 {
		sinks = append(sinks, notify.NewKafkaSink(appConfig.KafkaBrokers, appConfig.KafkaTopic))
		log.Infow("kafka event sink enabled", "brokers", appConfig.KafkaBrokers, "topic", appConfig.KafkaTopic)
	}
	hub := notify.NewHub(m, sinks...)
	defer hub.Close()

	var historyCache services.HistoryCache
	if appConfig.RedisURL != "" {
		client, err := cache.Connect(ctx, appConfig.RedisURL)
		if err != nil {
			log.Warnw("redis unavailable, graph data served uncached", "error", err)
		} else {
			defer client.Close()
			historyCache = cache.NewHistoryCache(client, appConfig.HistoryCacheTTL)
			log.Info("redis history cache enabled")
		}
	}

	params := simulationParams(appConfig.Simulation)
	db := dbManager.DB()
	locks := services.NewAccountLocks()

	userService := services.NewUserService(db, locks,
		decimal.NewFromFloat(appConfig.StartingBalance), decimal.NewFromFloat(appConfig.MaxDeposit))
	assetService := services.NewAssetService(db, history.NewLog(db, appConfig.HistoryCap), historyCache, pricing.NewSimulator(params, nil))
	portfolioService := services.NewPortfolioService(db, locks)
	tradeService := services.NewTradeService(db, locks, hub, appConfig.TransactionsLimit)
	auditService := services.NewAuditService(db)

	if appConfig.SeedCatalog {
		n, err := assetService.SeedCatalog(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed asset catalog: %w", err)
		}
		if n > 0 {
			log.Infow("seeded asset catalog", "assets", n)
		}
	}

	sched := scheduler.New(assetService, portfolioService, hub, pricing.NewSimulator(params, nil), m, scheduler.Options{
		Interval:    appConfig.UpdateInterval,
		Schedule:    appConfig.UpdateSchedule,
		Concurrency: appConfig.CycleConcurrency,
	})
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	validator.Register()
	limiter := newRateLimiter(appConfig)
	go limiter.Run(ctx.Done())

	router := newRouter(&app{
		cfg:       appConfig,
		db:        dbManager,
		users:     userService,
		assets:    assetService,
		portfolio: portfolioService,
		trades:    tradeService,
		audit:     auditService,
		scheduler: sched,
		hub:       hub,
		metrics:   m,
		limiter:   limiter,
	})

	// Request contexts derive from ctx so hijacked websocket connections,
	// which Shutdown does not track, end on the same signal.
	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Papertrade server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	if err := hub.Close(); err != nil {
		log.Warnw("closing notification hub failed", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func simulationParams(c config.SimulationConfig) pricing.Params {
	return pricing.Params{
		StockVolatility: c.StockVolatility,
		FundVolatility:  c.FundVolatility,
		FloorRatio:      c.FloorRatio,
		CeilingRatio:    c.CeilingRatio,
		StockBaseVolume: c.StockBaseVolume,
		FundBaseVolume:  c.FundBaseVolume,
	}
}
