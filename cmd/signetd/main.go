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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"signet/internal/config"
	"signet/internal/domain"
	"signet/internal/infra/cachemem"
	"signet/internal/infra/db"
	httpinfra "signet/internal/infra/http"
	"signet/internal/infra/keys/soft"
	"signet/internal/infra/memstore"
	"signet/internal/infra/metrics"
	"signet/internal/infra/notify"
	"signet/internal/infra/policyopa"
	"signet/internal/infra/ratelimit"
	"signet/internal/infra/storage"
	"signet/internal/usecase"
)

func main() {
	cfg := config.FromEnv()
	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("signetd exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	keys, err := buildKeys(cfg, logger)
	if err != nil {
		return fmt.Errorf("init signing key: %w", err)
	}

	objects, err := buildStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}

	policy, err := buildPolicy(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init policy engine: %w", err)
	}

	notifier := notify.NewDispatcher(cfg.NotifyBuffer, nil, logger)
	notifier.Start(ctx)

	m := metrics.New()
	registry := prometheus.NewRegistry()
	m.MustRegister(registry)
	registry.MustRegister(collectors.NewGoCollector())

	sweeper := &usecase.ExpirySweeper{
		Expire:   &usecase.ExpireRequests{Store: store},
		Interval: cfg.SweepInterval(),
		OnSweep: func(expired int, err error) {
			if err != nil {
				logger.Error("request expiry sweep failed", zap.Error(err))
				return
			}
			if expired > 0 {
				logger.Info("expired signature requests", zap.Int("count", expired))
				m.RecordExpired(expired)
			}
		},
	}
	go sweeper.Run(ctx)

	server := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Store:          store,
		Keys:           keys,
		Storage:        objects,
		Notifier:       notifier,
		Policy:         policy,
		Cache:          cachemem.New(nil),
		RateLimiter:    buildRateLimiter(cfg, logger),
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Logger:         logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("signetd listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	select {
	case <-notifier.Done():
	case <-shutdownCtx.Done():
	}
	return nil
}

func newLogger(level string) *zap.Logger {
	if level == "debug" {
		return zap.Must(zap.NewDevelopment())
	}
	return zap.Must(zap.NewProduction())
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (usecase.Store, error) {
	if cfg.PostgresDSN == "" {
		logger.Warn("postgres dsn not configured, state is in-memory and lost on restart")
		return memstore.New(), nil
	}
	store, err := db.Open(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func buildKeys(cfg config.Config, logger *zap.Logger) (domain.KeyManager, error) {
	if cfg.SigningKeySeedHex == "" {
		keys, err := soft.NewEphemeralManager()
		if err != nil {
			return nil, err
		}
		logger.Warn("no signing key configured, generated an ephemeral key; certificates will not survive a restart",
			zap.String("key_id", keys.KeyID()))
		return keys, nil
	}
	keys, err := soft.NewManagerFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("signing key loaded", zap.String("key_id", keys.KeyID()))
	return keys, nil
}

func buildStorage(cfg config.Config, logger *zap.Logger) (domain.ObjectStore, error) {
	if cfg.ObjectStoreDir == "" {
		logger.Warn("object store dir not configured, documents are held in memory")
		return storage.NewMemory(), nil
	}
	return storage.NewFS(cfg.ObjectStoreDir)
}

func buildPolicy(ctx context.Context, cfg config.Config, logger *zap.Logger) (usecase.PolicyEngine, error) {
	if cfg.PolicyBundlePath == "" {
		return nil, nil
	}
	engine, err := policyopa.NewEngineFromBundlePath(ctx, cfg.PolicyBundlePath, cfg.PolicyBundleID)
	if err != nil {
		return nil, err
	}
	logger.Info("policy bundle loaded",
		zap.String("path", cfg.PolicyBundlePath),
		zap.String("bundle_id", cfg.PolicyBundleID))
	return engine, nil
}

func buildRateLimiter(cfg config.Config, logger *zap.Logger) domain.RateLimiter {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.RateLimitMaxKeys, nil)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Info("rate limiting via redis", zap.String("addr", cfg.RedisAddr))
	return ratelimit.NewRedis(client, nil)
}
