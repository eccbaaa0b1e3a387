package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/careflow/scheduling-engine/internal/api/router"
	appconfig "github.com/careflow/scheduling-engine/internal/config"
	"github.com/careflow/scheduling-engine/internal/engine"
	"github.com/careflow/scheduling-engine/internal/http/handlers"
	"github.com/careflow/scheduling-engine/internal/integrator"
	"github.com/careflow/scheduling-engine/internal/observability/metrics"
	"github.com/careflow/scheduling-engine/internal/rules"
	"github.com/careflow/scheduling-engine/internal/snapshot"
	"github.com/careflow/scheduling-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling-engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)

	snapshots := snapshot.NewStore(redisClient, cfg.SnapshotTTL, logger)

	var rulesRepo engine.RulesProvider
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		rulesRepo = rules.NewRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set; all scheduling rules disabled")
	}

	registry := integrator.NewRegistry()
	if err := registry.Register(&integrator.Mock{}); err != nil {
		logger.Error("failed to register mock integrator", "error", err)
		os.Exit(1)
	}

	schedMetrics := metrics.NewSchedulingMetrics(nil)
	eng := engine.New(registry, rulesRepo, snapshots, schedMetrics, logger)

	availability := handlers.NewAvailabilityHandler(eng, cfg.DefaultVendor, cfg.DefaultSlotLimit, logger)

	r := router.New(&router.Config{
		Logger:              logger,
		AvailabilityHandler: availability,
		MetricsHandler:      promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("listening", "addr", srv.Addr, "vendors", registry.Names())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
