package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/intake-api/internal/worker"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging/redis"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

type Config struct {
	RedisURL     string        `envconfig:"REDIS_URL" required:"true"`
	Channel      string        `envconfig:"REDIS_CHANNEL" default:"intake.events"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"5"`
	MaxRetries   int           `envconfig:"REDIS_MAX_RETRIES" default:"3"`
	RetryBackoff time.Duration `envconfig:"REDIS_RETRY_BACKOFF" default:"100ms"`
	Port         int           `envconfig:"WORKER_PORT" default:"8081"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
	Namespace    string        `envconfig:"METRICS_NAMESPACE" default:"intake"`
}

func setupHealthCheck(cfg Config, reg *prometheus.Registry, appLogger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Output: os.Stdout,
	})
	appLogger = appLogger.With("service", "audit-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.RedisURL,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PoolSize:     cfg.PoolSize,
	}, appLogger.Zerolog())
	if err != nil {
		appLogger.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(cfg.Namespace, reg)

	srv := setupHealthCheck(cfg, reg, appLogger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	w := worker.NewAuditWorker(broker, cfg.Channel, appLogger, m)
	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error(err, "Audit worker exited")
	}
}
