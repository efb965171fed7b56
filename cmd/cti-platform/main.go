package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/encasitacov19/CTI-PLATFORM/internal/alerting"
	"github.com/encasitacov19/CTI-PLATFORM/internal/api"
	"github.com/encasitacov19/CTI-PLATFORM/internal/catalog"
	"github.com/encasitacov19/CTI-PLATFORM/internal/collector"
	engineconfig "github.com/encasitacov19/CTI-PLATFORM/internal/config"
	"github.com/encasitacov19/CTI-PLATFORM/internal/evidence"
	"github.com/encasitacov19/CTI-PLATFORM/internal/feed"
	"github.com/encasitacov19/CTI-PLATFORM/internal/jobs"
	"github.com/encasitacov19/CTI-PLATFORM/internal/reconcile"
	"github.com/encasitacov19/CTI-PLATFORM/internal/risk"
	"github.com/encasitacov19/CTI-PLATFORM/internal/scheduler"
	"github.com/encasitacov19/CTI-PLATFORM/internal/store"
	"github.com/encasitacov19/CTI-PLATFORM/pkg/config"
	"github.com/encasitacov19/CTI-PLATFORM/pkg/database"
	"github.com/encasitacov19/CTI-PLATFORM/pkg/health"
	"github.com/encasitacov19/CTI-PLATFORM/pkg/logger"
	"github.com/encasitacov19/CTI-PLATFORM/pkg/metrics"
	"github.com/encasitacov19/CTI-PLATFORM/pkg/redis"
)

func main() {
	cfg, err := config.Load("cti-platform")
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	log_ := logger.New(cfg.LogLevel, cfg.ServiceName)
	engineCfg := engineconfig.Load(log_)

	metricsCollector := metrics.NewCollector("cti_platform")

	db, err := database.NewPostgres(cfg.Database.URL)
	if err != nil {
		log_.Error("failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db, store.MigrationsFS, "migrations"); err != nil {
		log_.Error("failed to apply migrations", "error", err.Error())
		os.Exit(1)
	}

	// Redis is optional: it only ever backs read-model response caching,
	// never the engine's own correctness. A missing or unreachable cache
	// degrades the API to uncached reads instead of failing startup.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redis.NewClient(cfg.Redis.URL)
		if err != nil {
			log_.Warn("redis unavailable, read-model endpoints will bypass the cache", "error", err.Error())
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	healthChecker := health.New()
	healthChecker.AddCheck("database", database.HealthCheck(db))
	if redisClient != nil {
		healthChecker.AddCheck("redis", redis.HealthCheck(redisClient))
	}

	dataStore := store.New(db)

	feedClient := feed.New(engineCfg.VTBaseURL, engineCfg.VTAPIKey, engineCfg.VTRequestsPerSecond)
	mitreSyncer := catalog.New(engineCfg.MitreLegacyURL, engineCfg.MitreBundleURL, dataStore)
	evidenceRecorder := evidence.New(dataStore)
	debouncer := alerting.New(dataStore, engineCfg.AlertSilenceWindow)
	riskEvaluator := risk.New(dataStore)
	engine := reconcile.New(dataStore, feedClient, debouncer, evidenceRecorder, engineCfg)
	collectorRunner := collector.New(dataStore, engine, riskEvaluator)
	jobLedger := jobs.New(dataStore)

	tz := cfg.Scheduling.DisplayTimezone
	collectorScheduler := scheduler.NewCollectorScheduler(
		dataStore, collectorRunner, jobLedger, log_, tz,
		time.Duration(cfg.Scheduling.CollectorTick)*time.Second,
		time.Duration(cfg.Scheduling.CollectorLease)*time.Minute,
	)
	mitreScheduler := scheduler.NewMitreScheduler(
		dataStore, mitreSyncer, jobLedger, log_, tz,
		time.Duration(cfg.Scheduling.MitreSyncTick)*time.Second,
		time.Duration(cfg.Scheduling.MitreSyncLease)*time.Minute,
	)

	schedulerCtx, stopSchedulers := context.WithCancel(context.Background())
	defer stopSchedulers()
	go collectorScheduler.Run(schedulerCtx)
	go mitreScheduler.Run(schedulerCtx)

	apiService := api.New(dataStore, collectorRunner, mitreSyncer, jobLedger, redisClient, log_)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.LoggingMiddleware(log_))
	router.Use(api.MetricsMiddleware("cti_platform", metricsCollector))

	router.GET("/health", health.HandlerFunc(healthChecker))
	router.GET("/ready", health.ReadinessHandlerFunc(healthChecker))
	router.GET("/metrics", metrics.HandlerFunc())

	v1 := router.Group("/api/v1")
	apiService.RegisterRoutes(v1)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: corsHandler.Handler(router),
	}

	go func() {
		log_.Info("starting cti-platform service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log_.Error("failed to start server", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log_.Info("shutting down cti-platform service")
	stopSchedulers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log_.Error("server forced to shutdown", "error", err.Error())
	}

	log_.Info("cti-platform service stopped")
}
