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

	"summary-relay/config"
	"summary-relay/logging"
	"summary-relay/middleware/ratelimit"
	"summary-relay/middleware/ratelimit/domain"
	"summary-relay/middleware/ratelimit/infra"
	"summary-relay/server"
	"summary-relay/summary"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay: %v\n", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so deferred cleanup always happens.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.RapidAPIKey == "" {
		logger.Warn("RAPID_API_KEY is empty, upstream calls will likely be rejected")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Error("redis ping failed", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
	}

	store := newCounterStore(ctx, cfg, rdb)
	statsStore, statsSource := newStatsStore(cfg, rdb)

	limiter := func(w domain.Window) *ratelimit.Limiter {
		return ratelimit.NewLimiter(ratelimit.Options{
			Store:              store,
			Stats:              statsStore,
			Window:             w,
			KeyHeader:          cfg.RateKeyHeader,
			TrustXForwardedFor: cfg.TrustXFF,
			StandardHeaders:    true,
			Logger:             logger.Named("ratelimit"),
		})
	}

	client := summary.NewClient(summary.ClientConfig{
		BaseURL: cfg.UpstreamURL,
		APIKey:  cfg.RapidAPIKey,
		Host:    cfg.RapidAPIHost,
		Logger:  logger,
	})

	router := server.New(server.Deps{
		Summary:    summary.NewHandler(client, logger),
		Monthly:    limiter(monthlyWindow(cfg)),
		Minute:     limiter(minuteWindow(cfg)),
		Stats:      statsSource,
		AdminToken: cfg.AdminToken,
		Logger:     logger,
	})

	// No WriteTimeout: a relayed response lasts as long as the upstream call.
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("relay listening",
		zap.String("addr", cfg.ListenAddr()),
		zap.String("upstream", cfg.UpstreamURL),
		zap.String("rate_store", cfg.RateStore),
		zap.Bool("rate_stats", cfg.RateStatsEnabled),
		zap.Int("monthly_limit", cfg.MonthlyLimit),
		zap.Duration("monthly_window", cfg.MonthlyWindow),
		zap.Int("minute_limit", cfg.MinuteLimit),
		zap.Duration("minute_window", cfg.MinuteWindow),
		zap.String("key_header", cfg.RateKeyHeader),
		zap.Bool("trust_xff", cfg.TrustXFF))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func monthlyWindow(cfg config.Config) domain.Window {
	return domain.Window{
		Name:     "monthly",
		Duration: cfg.MonthlyWindow,
		Limit:    cfg.MonthlyLimit,
		Message:  fmt.Sprintf("You have reached your monthly limit of %d requests. Please wait until next month.", cfg.MonthlyLimit),
	}
}

func minuteWindow(cfg config.Config) domain.Window {
	return domain.Window{
		Name:     "minute",
		Duration: cfg.MinuteWindow,
		Limit:    cfg.MinuteLimit,
		Message:  "Too many requests from this IP, please try again after a minute.",
	}
}

// newCounterStore returns the shared Redis store when configured, else a
// process-local store whose janitor stops with ctx.
func newCounterStore(ctx context.Context, cfg config.Config, rdb *redis.Client) domain.CounterStore {
	if rdb != nil {
		return infra.NewRedisStore(rdb, infra.WithStorePrefix(cfg.RedisPrefix+":counter"))
	}
	store := infra.NewMemoryStore()
	store.StartJanitor(ctx)
	return store
}

// newStatsStore picks the stats backend: Redis when the counters live there,
// memory otherwise. Both sides are nil when stats are disabled.
func newStatsStore(cfg config.Config, rdb *redis.Client) (domain.StatsStore, server.StatsSource) {
	if !cfg.RateStatsEnabled {
		return nil, nil
	}
	if rdb != nil {
		s := infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.RedisPrefix+":stats"),
			infra.WithStatsTTL(cfg.RateStatsTTL),
			infra.WithStatsTrackKeys(cfg.RateStatsTrackKeys),
		)
		return s, s
	}
	s := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.RateStatsTrackKeys))
	return s, s
}
