package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/materiel-backend/api/routes"
	"github.com/angelmondragon/materiel-backend/internal/access"
	"github.com/angelmondragon/materiel-backend/internal/materiel"
	"github.com/angelmondragon/materiel-backend/internal/materiellogs"
	"github.com/angelmondragon/materiel-backend/internal/materieltypes"
	"github.com/angelmondragon/materiel-backend/pkg/config"
	"github.com/angelmondragon/materiel-backend/pkg/db"
	"github.com/angelmondragon/materiel-backend/pkg/logger"
	"github.com/angelmondragon/materiel-backend/pkg/metrics"
	"github.com/angelmondragon/materiel-backend/pkg/migrate"
	"github.com/angelmondragon/materiel-backend/pkg/redis"
	"github.com/angelmondragon/materiel-backend/pkg/tracing"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: cfg.App.ServiceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(runCtx, cfg.Tracing, cfg.App.ServiceName)
	if err != nil {
		logg.Error(runCtx, "failed to init tracing", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logg.Error(ctx, "error flushing traces", err)
		}
	}()

	dbClient, err := db.New(runCtx, cfg.DB, logg)
	if err != nil {
		logg.Error(runCtx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(runCtx, cfg, logg, dbClient); err != nil {
		logg.Error(runCtx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(runCtx, cfg.Redis, logg)
	if err != nil {
		if cfg.App.IsProd() {
			logg.Error(runCtx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		logg.Warn(logg.WithField(runCtx, "error", err.Error()), "redis unavailable, continuing without cache, idempotency and write limits")
		redisClient = nil
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var accessCache access.CacheStore
	if redisClient != nil {
		accessCache = redisClient
	}
	policy, err := access.FromConfig(cfg.Access, dbClient.DB(), accessCache, logg)
	if err != nil {
		logg.Error(runCtx, "failed to build access policy", err)
		os.Exit(1)
	}

	logRepo := materiellogs.NewRepository(dbClient.DB())
	recorder, err := materiellogs.NewRecorder(logRepo)
	if err != nil {
		logg.Error(runCtx, "failed to create log recorder", err)
		os.Exit(1)
	}
	historyService, err := materiellogs.NewService(logRepo, recorder, policy)
	if err != nil {
		logg.Error(runCtx, "failed to create history service", err)
		os.Exit(1)
	}
	typeService, err := materieltypes.NewService(materieltypes.NewRepository(dbClient.DB()), dbClient, policy, logg)
	if err != nil {
		logg.Error(runCtx, "failed to create materiel type service", err)
		os.Exit(1)
	}
	materielService, err := materiel.NewService(materiel.NewRepository(dbClient.DB()), recorder, dbClient, policy, materiel.Options{
		AllowRetiredReactivation: cfg.FeatureFlags.AllowRetiredReactivation,
		Metrics:                  metrics.NewMaterielMetrics(reg),
		Logger:                   logg,
	})
	if err != nil {
		logg.Error(runCtx, "failed to create materiel service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(runCtx, map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"driver": dbClient.Driver(),
		"access": cfg.Access.Mode,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, reg, metrics.NewHTTPMetrics(reg), materielService, typeService, historyService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
