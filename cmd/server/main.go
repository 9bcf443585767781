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
	"github.com/sirupsen/logrus"

	"github.com/dromero86/macrovista/internal/api"
	"github.com/dromero86/macrovista/internal/api/handlers"
	"github.com/dromero86/macrovista/internal/cache"
	"github.com/dromero86/macrovista/internal/config"
	"github.com/dromero86/macrovista/internal/database"
	"github.com/dromero86/macrovista/internal/feeds"
	"github.com/dromero86/macrovista/internal/services"
)

// sourceGuardConfig maps the sources section of the config onto the guard
// policy, keeping defaults for any duration left unset.
func sourceGuardConfig(src config.SourcesConfig) services.SourceGuardConfig {
	guardCfg := services.DefaultSourceGuardConfig()
	guardCfg.MaxConcurrent = src.MaxConcurrent
	guardCfg.MaxRetries = src.MaxRetries
	guardCfg.BackoffBase = config.Duration(src.BackoffBase, guardCfg.BackoffBase)
	guardCfg.BackoffCap = config.Duration(src.BackoffCap, guardCfg.BackoffCap)
	guardCfg.FailureThreshold = src.FailureThreshold
	guardCfg.OpenTimeout = config.Duration(src.OpenTimeout, guardCfg.OpenTimeout)
	return guardCfg
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Environment == "production" {
		logger.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redis, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	signalCache := cache.NewSignalCache(redis.Client, 24*time.Hour)

	guard := services.NewSourceGuard(sourceGuardConfig(cfg.Sources), logger)

	// With no feed endpoint configured the engine serves NO_DATA results
	// instead of failing at startup.
	var observationFeed services.ObservationFeed = feeds.NullObservationFeed{}
	var eventFeed services.UpcomingEventFeed
	if cfg.Sources.FeedBaseURL != "" {
		httpFeed := feeds.NewHTTPFeed(cfg.Sources.FeedBaseURL, config.Duration(cfg.Sources.FetchTimeout, 15*time.Second))
		observationFeed = httpFeed
		eventFeed = httpFeed
	} else {
		logger.Warn("No feed base URL configured, serving empty observation series")
	}

	corrRepo := database.NewCorrelationRepository(db.Pool)
	narrativeRepo := database.NewNarrativeRepository(db.Pool)

	notifier := services.NewNotificationService(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Alerts.OutboundPerMinute, logger)

	correlationService := services.NewCorrelationStateService(cfg.Correlation, observationFeed, guard, corrRepo, signalCache, logger)

	regimeProvider := feeds.NewRedisRegimeProvider(redis.Client)
	biasService, err := services.NewTradingBiasService(cfg.Bias, services.DefaultInstrumentPolicies(), correlationService, regimeProvider, nil, logger)
	if err != nil {
		logger.Fatalf("Invalid instrument policies: %v", err)
	}

	reliabilityService := services.NewReliabilityService(cfg.Reliability, correlationService, eventFeed, logger)
	narrativeService := services.NewNarrativeService(cfg.Narrative, narrativeRepo, notifier, logger)
	alertService := services.NewAlertService(cfg.Alerts, signalCache, notifier, logger)
	monitor := services.NewPerformanceMonitor(logger)

	// Warm the correlation state so the first API read does not pay the
	// full fetch-and-compute cost.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		state, err := correlationService.GetCorrelationState(ctx)
		if err != nil {
			logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Initial correlation cycle failed")
			return
		}
		if _, err := alertService.CheckCorrelationShifts(ctx, state); err != nil {
			logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Correlation shift alert check failed")
		}
	}()

	signalsHandler := handlers.NewSignalsHandler(correlationService, biasService, reliabilityService, narrativeService, guard, logger)

	router := gin.Default()
	api.SetupRoutes(router, db, redis, monitor, signalsHandler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Infof("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
