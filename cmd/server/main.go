package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/kataoka/daicho/internal/handlers"
	"github.com/kataoka/daicho/internal/infrastructure/config"
	"github.com/kataoka/daicho/internal/infrastructure/database"
	"github.com/kataoka/daicho/internal/infrastructure/metrics"
	"github.com/kataoka/daicho/internal/repositories/postgres"
	"github.com/kataoka/daicho/internal/services"
	"github.com/kataoka/daicho/internal/services/authorization"
	"github.com/kataoka/daicho/internal/services/lifecycle"
	"github.com/kataoka/daicho/pkg/cache"
	"github.com/kataoka/daicho/pkg/cache/memorycache"
	"github.com/kataoka/daicho/pkg/cache/rediscache"
)

const defaultEnv = "dev"

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		logger.WithError(err).Fatal("failed to initialize config")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}

	// Connect to database
	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer pg.Close()

	logger.WithFields(logrus.Fields{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Database,
	}).Info("connected to database")

	typeCache, err := newCache(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize cache")
	}
	if typeCache != nil {
		defer typeCache.Close()
	}

	// Repositories
	typeRepo := postgres.NewPostgresEntityTypeRepository(pg.DB)
	registryRepo := postgres.NewPostgresRegistryRepository(pg.DB)
	linkRepo := postgres.NewPostgresLinkRepository(pg.DB)
	grantRepo := postgres.NewPostgresGrantRepository(pg.DB)

	// Services
	cacheTTL := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	typeService := services.NewEntityTypeService(typeRepo, typeCache, cacheTTL)
	linkService := services.NewLinkService(linkRepo, typeService)
	grantService := services.NewGrantService(grantRepo, typeService)
	resolver := authorization.NewResolver(linkRepo, grantRepo, logger)
	filterBuilder := authorization.NewFilterBuilder(linkRepo, grantRepo, registryRepo, resolver)
	orchestrator := lifecycle.NewOrchestrator(pg.DB, typeService, logger)

	// Metrics
	collector := metrics.NewCollector()
	if typeCache != nil {
		collector.SetCache(typeCache)
	}
	exporter := metrics.NewPrometheusExporter(collector)
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			exporter.Update()
		}
	}()

	// HTTP router
	router := handlers.NewRouter(&handlers.Handlers{
		Authorization: handlers.NewAuthorizationHandler(resolver, filterBuilder, logger, exporter.RecordAuthorizeDecision),
		Entities:      handlers.NewEntityHandler(orchestrator, resolver, logger, exporter.RecordLifecycleOperation),
		EntityTypes:   handlers.NewEntityTypeHandler(typeService, logger),
		Links:         handlers.NewLinkHandler(linkService, resolver, logger),
		Grants:        handlers.NewGrantHandler(grantService, resolver, logger),
	})
	router.Use(metrics.Middleware(collector, exporter))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}

	serverErrors := make(chan error, 2)
	go func() {
		logger.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		logger.WithField("addr", metricsServer.Addr).Info("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// Graceful shutdown on SIGTERM/SIGINT
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		logger.WithError(err).Fatal("server error")
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("forcing HTTP server stop")
			_ = server.Close()
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			_ = metricsServer.Close()
		}

		if err := pg.Close(); err != nil {
			logger.WithError(err).Error("error closing database connection")
		}

		logger.Info("shutdown complete")
	}
}

func newCache(cfg *config.Config, logger *logrus.Logger) (cache.Cache, error) {
	if !cfg.Cache.Enabled {
		logger.Info("entity type cache disabled")
		return nil, nil
	}

	ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	switch cfg.Cache.Backend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return rediscache.New(ctx, &rediscache.Config{
			Addr:       cfg.Cache.RedisAddr,
			Password:   cfg.Cache.RedisPassword,
			DB:         cfg.Cache.RedisDB,
			DefaultTTL: ttl,
		})
	default:
		return memorycache.New(&memorycache.Config{
			MaxEntries: cfg.Cache.MaxEntries,
			DefaultTTL: ttl,
		})
	}
}
