// Package main provides the main entry point for the term insurance analyzer
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/term-insurance-analyzer/app/handlers"
	"github.com/amirphl/term-insurance-analyzer/app/recommender"
	"github.com/amirphl/term-insurance-analyzer/app/router"
	"github.com/amirphl/term-insurance-analyzer/app/scheduler"
	"github.com/amirphl/term-insurance-analyzer/app/scraper"
	"github.com/amirphl/term-insurance-analyzer/app/services"
	businessflow "github.com/amirphl/term-insurance-analyzer/business_flow"
	"github.com/amirphl/term-insurance-analyzer/config"
	"github.com/amirphl/term-insurance-analyzer/repository"
	"github.com/amirphl/term-insurance-analyzer/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	logger    *utils.Logger
	db        *gorm.DB
	rc        *redis.Client
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting term insurance analyzer",
		"version", cfg.Deployment.Version,
		"environment", cfg.Deployment.Environment,
		"commit", cfg.Deployment.CommitHash,
	)

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server stopped unexpectedly", "error", err)
		}
	}

	app.shutdown()
	logger.Info("Server stopped")
}

// shutdown stops the HTTP server first so no request starts a scrape after the scheduler is gone
func (a *Application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		a.logger.Error("Error during server shutdown", "error", err)
	}

	for _, fn := range a.stopFuncs {
		fn()
	}

	if a.rc != nil {
		if err := a.rc.Close(); err != nil {
			a.logger.Warn("Error closing redis client", "error", err)
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("Error closing database", "error", err)
		}
	}
}

// initializeDatabase opens the plan store and configures connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger *utils.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormlogger.Config{
				SlowThreshold:             cfg.SlowQueryTime,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// single writer
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := repository.AutoMigrate(db); err != nil {
		return nil, err
	}

	logger.Info("Database connection established",
		"driver", cfg.Driver,
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
	)
	return db, nil
}

// initializeCache initializes the redis client and verifies connectivity.
// It returns nil when caching is disabled.
func initializeCache(cfg config.CacheConfig, logger *utils.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", "db", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings redis and logs connectivity problems.
// The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger *utils.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("Redis healthcheck failed", "error", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeRanking builds the ranking chain and the chat advisor over the same models.
// Without an API key both answer locally.
func initializeRanking(cfg config.RankingConfig, logger *utils.Logger) (*recommender.Composer, *recommender.Advisor) {
	var client services.RankingClient
	if cfg.APIKey == "" {
		logger.Warn("No ranking API key configured, recommendations use local scoring only")
	} else {
		c, err := services.NewRankingClient(cfg, logger)
		if err != nil {
			logger.Warn("Ranking client unavailable, recommendations use local scoring only", "error", err)
		} else {
			client = c
			logger.Info("Ranking models configured", "models", cfg.Models)
		}
	}
	composer := recommender.NewComposer(recommender.NewModelRankers(client, cfg.Models), cfg.AttemptTimeout, cfg.MaxPlans, logger)
	return composer, recommender.NewAdvisor(client, cfg.Models, cfg.AttemptTimeout, logger)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger *utils.Logger) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval, logger))
	}

	// Repositories
	planRepo := repository.NewInsurancePlanRepository(db)
	runRepo := repository.NewScrapeRunRepository(db)

	// Scraping
	orchestrator := scraper.NewOrchestrator(
		planRepo,
		runRepo,
		scraper.NewLiveAdapters(cfg.Scraper, logger),
		scraper.NewFallbackAdapter(),
		rc,
		scraper.OrchestratorConfig{
			LockKey:    cfg.Cache.RedisPrefix + scraper.DefaultLockKey,
			LockTTL:    cfg.Scraper.LockTTL,
			RunTimeout: cfg.Scraper.RunTimeout,
		},
		logger,
	)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	_, err = orchestrator.SeedFallback(seedCtx)
	cancelSeed()
	if err != nil {
		return nil, fmt.Errorf("failed to seed plan store: %w", err)
	}

	if cfg.Scraper.Enabled {
		scrapeScheduler := scheduler.NewScrapeScheduler(orchestrator, cfg.Scraper.Interval, cfg.Scraper.RunOnStartup, logger)
		stopFuncs = append(stopFuncs, scrapeScheduler.Start(context.Background()))
		logger.Info("Scrape scheduler started", "interval", cfg.Scraper.Interval.String())
	}

	// Flows
	composer, advisor := initializeRanking(cfg.Ranking, logger)
	planFlow := businessflow.NewPlanFlow(planRepo, runRepo, logger)
	recommendationFlow := businessflow.NewRecommendationFlow(
		planRepo,
		composer,
		rc,
		businessflow.RecommendationCacheConfig{
			Prefix: cfg.Cache.RedisPrefix,
			TTL:    cfg.Ranking.CacheTTL,
		},
		logger,
	)
	assistantFlow := businessflow.NewAssistantFlow(planRepo, advisor, logger)
	scrapeFlow := businessflow.NewScrapeFlow(orchestrator, runRepo, logger)

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Handlers
	h := router.Handlers{
		Plan:           handlers.NewPlanHandler(planFlow, logger, cfg.Server.RequestTimeout),
		Recommendation: handlers.NewRecommendationHandler(recommendationFlow, logger, cfg.Server.RequestTimeout),
		Scrape:         handlers.NewScrapeHandler(scrapeFlow, logger, cfg.Server.RequestTimeout, cfg.Scraper.RunTimeout),
		Assistant:      handlers.NewAssistantHandler(assistantFlow, logger, cfg.Server.RequestTimeout),
		Health:         handlers.NewHealthHandler(cfg.Deployment.Version, sqlDB.PingContext, logger).Health,
	}

	return &Application{
		router:    router.NewFiberRouter(h, cfg.Server, cfg.Metrics, logger),
		config:    cfg,
		logger:    logger,
		db:        db,
		rc:        rc,
		stopFuncs: stopFuncs,
	}, nil
}
