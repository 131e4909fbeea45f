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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/intake-api/internal/config"
	chathandler "github.com/jwalitptl/intake-api/internal/handler/chat"
	"github.com/jwalitptl/intake-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/intake-api/internal/handler/patient"
	promhandler "github.com/jwalitptl/intake-api/internal/handler/prometheus"
	storagehandler "github.com/jwalitptl/intake-api/internal/handler/storage"
	"github.com/jwalitptl/intake-api/internal/middleware"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/internal/repository/memory"
	"github.com/jwalitptl/intake-api/internal/repository/postgres"
	"github.com/jwalitptl/intake-api/internal/router"
	"github.com/jwalitptl/intake-api/internal/service/chat"
	"github.com/jwalitptl/intake-api/internal/service/event"
	"github.com/jwalitptl/intake-api/internal/service/generation"
	"github.com/jwalitptl/intake-api/internal/service/storage"
	"github.com/jwalitptl/intake-api/internal/service/submission"
	"github.com/jwalitptl/intake-api/pkg/blobstore"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging"
	"github.com/jwalitptl/intake-api/pkg/messaging/redis"
	"github.com/jwalitptl/intake-api/pkg/metrics"
	"github.com/jwalitptl/intake-api/pkg/security"
)

// app is the fully wired API: the HTTP handler plus what must be released
// on shutdown.
type app struct {
	handler http.Handler
	logger  *logger.Logger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	appLogger := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Output:  os.Stdout,
		Console: cfg.Log.Format == "console" && !cfg.IsProduction(),
	})
	// Middleware logs through the global logger.
	log.Logger = *appLogger.Zerolog()

	a := &app{logger: appLogger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(cfg.Metrics.Namespace, reg)

	// Record store
	store, closeStore, err := openStore(ctx, cfg, appLogger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	// Collaborators
	uploader, err := blobstore.New(ctx, cfg.Blob.ToBlobstoreConfig())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create blob uploader: %w", err)
	}
	if err := pingUploader(ctx, uploader, startupPingTimeout); err != nil {
		appLogger.Warn("Blob storage not reachable at startup", "provider", cfg.Blob.Provider, "error", err.Error())
	}

	generator := generation.NewOpenAIGenerator(generation.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
	})
	if cfg.OpenAI.APIKey == "" {
		appLogger.Warn("OPENAI_API_KEY not set, generation requests will fail")
	}

	// Events
	publisher, closeBroker := openPublisher(ctx, cfg, appLogger)
	a.closers = append(a.closers, closeBroker)
	events := event.NewService(publisher, appLogger.With("component", "events"), m)

	var encryptor security.Encryptor
	if cfg.Security.PHIEncryptionKey != "" {
		encryptor, err = security.NewEncryptorFromSecret(cfg.Security.PHIEncryptionKey)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
	}

	// Services
	submissionSvc := submission.NewService(store, generator, uploader, events, m,
		appLogger.With("component", "submission"),
		submission.Config{
			CollaboratorTimeout: cfg.Pipeline.CollaboratorTimeout,
			Encryptor:           encryptor,
		})
	chatSvc := chat.NewService(store, generator, events, m,
		appLogger.With("component", "chat"), cfg.Pipeline.CollaboratorTimeout)
	storageSvc := storage.NewService(uploader, cfg.Blob.StatusCacheTTL, m)

	// Router
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins

	r := router.NewRouter(router.RouterConfig{
		CORSConfig:     corsConfig,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodySize:    cfg.Server.MaxBodySize,
		Registerer:     reg,
		MetricsPrefix:  cfg.Metrics.Namespace + "_http",
	})
	r.Setup(
		[]router.Handler{
			patienthandler.NewHandler(submissionSvc),
			chathandler.NewHandler(chatSvc),
			storagehandler.NewHandler(storageSvc),
		},
		[]router.Handler{
			health.NewHandler(store),
			promhandler.New(reg),
		},
	)
	a.handler = r.Engine()

	return a, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server listening", "port", cfg.Server.Port, "store", cfg.Store.Driver, "blob_provider", cfg.Blob.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("Server exited properly")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (repository.RecordStore, func(), error) {
	if cfg.Store.Driver != config.StoreDriverPostgres {
		return memory.NewStore(), func() {}, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Store.DatabaseURL, cfg.Store.ToPoolConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Store.AutoMigrate {
		if err := postgres.Migrate(ctx, db.DB); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	store := postgres.NewStore(db)
	if err := store.SeedGreeting(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to seed chat greeting: %w", err)
	}
	appLogger.Info("Connected to postgres record store")

	return store, func() { db.Close() }, nil
}

// openPublisher falls back to dropping events when Redis is not configured
// or unreachable. Events never gate a request.
func openPublisher(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (messaging.Publisher, func()) {
	if cfg.Redis.URL == "" {
		return messaging.NopPublisher{}, func() {}
	}

	brokerLogger := appLogger.With("component", "redis").Zerolog()
	broker, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), brokerLogger)
	if err != nil {
		appLogger.Error(err, "Failed to connect to Redis, events disabled")
		return messaging.NopPublisher{}, func() {}
	}
	return messaging.NewEventPublisher(broker, cfg.Redis.Channel), func() { broker.Close() }
}

const startupPingTimeout = 10 * time.Second

// pingUploader bounds the startup connectivity check so an endpoint that
// accepts connections but never answers cannot hold up serve.
func pingUploader(ctx context.Context, uploader blobstore.Uploader, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return uploader.Ping(ctx)
}
