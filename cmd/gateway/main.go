package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"demo-gateway/gateway/democonvert"
	"demo-gateway/gateway/democonvert/application"
	"demo-gateway/gateway/democonvert/domain"
	"demo-gateway/gateway/democonvert/infra"

	"github.com/redis/go-redis/v9"
	"go.uber.org/automaxprocs/maxprocs"
)

const demoConvertPath = "/api/demo-convert"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := readConfig(args, os.LookupEnv)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// Erro ignorado: maxprocs.Set só falha com GOMAXPROCS inválido, e aí vale o padrão do runtime.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, a ...any) {
		logger.Debug(fmt.Sprintf(format, a...))
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var stats domain.StatsStore
	if cfg.StatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.StatsRedisAddr,
			Password: cfg.StatsRedisPassword,
			DB:       cfg.StatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			return fmt.Errorf("redis stats ping: %w", err)
		}

		stats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.StatsPrefix),
			infra.WithStatsTTL(cfg.StatsTTL),
			infra.WithStatsBucket(cfg.StatsBucket),
			infra.WithStatsTrackKeys(cfg.StatsTrackKeys),
		)
	}

	h, err := buildHandler(ctx, cfg, stats, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// precisa cobrir o timeout do upstream + envio do PDF
		WriteTimeout: cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening",
		"addr", cfg.ListenAddr,
		"upstream", cfg.UpstreamURL,
		"daily_limit", cfg.DailyLimit,
		"upstream_timeout", cfg.UpstreamTimeout.String(),
		"timezone", cfg.QuotaTimezone,
	)
	logger.Info("throttle", "enabled", cfg.RateEnabled, "rps", cfg.RateRPS, "burst", cfg.RateBurst)
	logger.Info("stats", "enabled", cfg.StatsEnabled, "redis_addr", cfg.StatsRedisAddr, "bucket", cfg.StatsBucket, "ttl", cfg.StatsTTL.String())
	logger.Info("concurrency", "max", cfg.ConcurrencyMax, "acquire_timeout", cfg.ConcurrencyTimeout.String())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// buildHandler monta quota, conversor e middlewares. Os janitors param com ctx.
func buildHandler(ctx context.Context, cfg config, stats domain.StatsStore, logger *slog.Logger) (http.Handler, error) {
	loc, err := time.LoadLocation(cfg.QuotaTimezone)
	if err != nil {
		return nil, fmt.Errorf("load quota timezone: %w", err)
	}

	quota := infra.NewMemoryQuotaStore(
		infra.WithDailyLimit(cfg.DailyLimit),
		infra.WithLocation(loc),
		infra.WithMaxClients(cfg.QuotaMaxClients),
		infra.WithQuotaCleanupEvery(cfg.QuotaCleanupEvery),
	)
	quota.StartJanitor(ctx)

	converter := infra.NewHTTPConverter(cfg.UpstreamURL, cfg.DemoAPIKey,
		infra.WithAPIKeyHeader(cfg.APIKeyHeader),
		infra.WithMaxPDFBytes(cfg.MaxPDFBytes),
		infra.WithHTTPClient(&http.Client{
			// o limite real é o timeout do GatewayService; isto é só uma rede de segurança
			Timeout: cfg.UpstreamTimeout + 5*time.Second,
		}),
	)

	svc := application.GatewayService{
		Quota:     quota,
		Converter: converter,
		Timeout:   cfg.UpstreamTimeout,
		Logger:    logger,
	}

	var throttle democonvert.ThrottleOptions
	if cfg.RateEnabled {
		store := infra.NewThrottleStore(cfg.RateRPS, cfg.RateBurst)
		store.StartJanitor(ctx)
		throttle = democonvert.ThrottleOptions{
			Store:               store,
			RetryAfter:          cfg.RetryAfter,
			AddRateLimitHeaders: cfg.AddHeaders,
		}
	}

	var demo http.Handler = democonvert.Handler(democonvert.HandlerOptions{
		Gateway:      svc,
		Stats:        stats,
		Logger:       logger,
		Throttle:     throttle,
		DailyLimit:   cfg.DailyLimit,
		PDFFilename:  cfg.PDFFilename,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	if cfg.ConcurrencyMax > 0 {
		demo = democonvert.ConcurrencyMiddleware(democonvert.ConcurrencyOptions{
			Pool:           infra.NewChanPool(cfg.ConcurrencyMax),
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.ConcurrencyTimeout,
		})(demo)
	}
	mux := http.NewServeMux()
	mux.Handle(demoConvertPath, demo)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	h := http.Handler(mux)
	h = democonvert.AccessLog(logger)(h)
	h = democonvert.RequestIDMiddleware(h)
	h = democonvert.CanonicalHostMiddleware(cfg.CanonicalHostFrom, cfg.CanonicalHostTo)(h)
	return h, nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
