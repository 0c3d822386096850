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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"motopos/backend/internal/cache"
	"motopos/backend/internal/config"
	"motopos/backend/internal/httpapi"
	"motopos/backend/internal/logger"
	"motopos/backend/internal/metrics"
	"motopos/backend/internal/service"
	"motopos/backend/internal/store"
	"motopos/backend/internal/store/memory"
	pgstore "motopos/backend/internal/store/postgres"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "motopos-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment", nil)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		logg.Error(context.Background(), "invalid security configuration", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "motopos-api",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "server stopped with error", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "server stopped")
}

type closer func() error

func run(ctx context.Context, cfg config.Config, logg *logger.Logger) (err error) {
	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	repo, closeRepo, err := openRepository(bootCtx, cfg, logg)
	if err != nil {
		return err
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	reportCache, notifier, subscriber, closeRedis := openCache(bootCtx, cfg, logg)
	if closeRedis != nil {
		closers = append(closers, closeRedis)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := service.New(repo, service.Options{
		DefaultBranchID: cfg.DefaultBranchID,
		Location:        cfg.Location(),
		ReportCacheTTL:  cfg.ReportCacheTTL,
		Cache:           reportCache,
		Notifier:        notifier,
		Metrics:         metrics.NewShopMetrics(reg),
		Logger:          logg,
	})
	auth := httpapi.NewAuthManager(bootCtx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin:  cfg.AllowedOrigin,
		LoginPerMinute: cfg.LoginRatePerMinute,
		Logger:         logg,
		Gatherer:       reg,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(gctx, fmt.Sprintf("motopos backend listening on %s", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Sales written by other instances invalidate this instance's reports.
		return subscriber.Subscribe(gctx, svc.HandleSaleEvent)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openRepository(ctx context.Context, cfg config.Config, logg *logger.Logger) (store.Repository, closer, error) {
	if cfg.DatabaseURL == "" {
		logg.Info(ctx, "repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}
	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		return nil, nil, multierr.Append(fmt.Errorf("apply migrations: %w", err), pg.Close())
	}
	logg.Info(ctx, "repository: postgres")
	return pg, pg.Close, nil
}

// openCache falls back to process-local implementations when Redis is not
// configured or unreachable.
func openCache(ctx context.Context, cfg config.Config, logg *logger.Logger) (cache.ReportCache, cache.Notifier, cache.Subscriber, closer) {
	local := cache.NewLocalNotifier()
	if cfg.RedisAddr == "" {
		logg.Info(ctx, "cache: in-process")
		return cache.NewMemoryReportCache(), local, local, nil
	}
	client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	reportCache := cache.NewRedisReportCache(client)
	if err := reportCache.Ping(ctx); err != nil {
		logg.Warn(ctx, "redis unavailable, using in-process cache", err)
		_ = client.Close()
		return cache.NewMemoryReportCache(), local, local, nil
	}
	notifier := cache.NewRedisNotifier(client, cfg.NotifyChannel)
	logg.Info(ctx, "cache: redis")
	return reportCache, notifier, notifier, client.Close
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name a single origin")
	}
	return nil
}
