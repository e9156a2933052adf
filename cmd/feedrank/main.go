// Command feedrank 以 HTTP 服务的形式提供内容排序。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/feedrank/config"
	_ "github.com/rushteam/feedrank/config/builders"
	"github.com/rushteam/feedrank/core"
	"github.com/rushteam/feedrank/filter"
	"github.com/rushteam/feedrank/service"
	fsignal "github.com/rushteam/feedrank/signal"
	"github.com/rushteam/feedrank/store"
)

func main() {
	configPath := flag.String("config", os.Getenv(envPrefix+"CONFIG"), "path to YAML settings file")
	flag.Parse()

	settings, err := loadSettings(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := newLogger(settings.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings, logger); err != nil {
		logger.Fatal().Err(err).Msg("feedrank exited")
	}
}

func run(ctx context.Context, settings *Settings, logger zerolog.Logger) error {
	kv, err := openStore(ctx, settings.Store, logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	blocklist := filter.NewStoreBlacklistFilter(filter.NewStoreAdapter(kv), settings.Store.KeyPrefix)
	opts := []service.Option{
		service.WithFilters(blocklist),
		service.WithLogger(logger),
		service.WithRegisterer(registry),
		service.WithMaxCandidates(settings.Rank.MaxCandidates),
		service.WithMaxConcurrency(settings.Rank.BatchConcurrency),
	}
	if settings.Pipeline != "" {
		p, err := config.Load(settings.Pipeline)
		if err != nil {
			return fmt.Errorf("load pipeline: %w", err)
		}
		opts = append(opts, service.WithPipeline(p))
	}
	rec, err := service.New(opts...)
	if err != nil {
		return err
	}

	srv := &server{
		recommender:  rec,
		loader:       fsignal.NewLoader(kv, settings.Store.KeyPrefix),
		recorder:     fsignal.NewRecorder(kv, settings.Store.KeyPrefix),
		blocklist:    blocklist,
		gatherer:     registry,
		logger:       logger.With().Str("component", "http").Logger(),
		maxBodyBytes: settings.Server.MaxBodyBytes,
		rateLimit:    settings.Server.RateLimit,
		rateWindow:   settings.Server.RateWindow,
	}
	httpServer := &http.Server{
		Addr:         settings.Server.Addr,
		Handler:      srv.routes(),
		ReadTimeout:  settings.Server.ReadTimeout,
		WriteTimeout: settings.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", settings.Server.Addr).Str("store", kv.Name()).Msg("feedrank listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info().Msg("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg StoreSettings, logger zerolog.Logger) (core.KeyValueStore, error) {
	switch cfg.Backend {
	case "redis":
		rs, err := store.NewRedisStore(ctx, store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		if !cfg.Breaker.Enabled {
			return rs, nil
		}
		return store.NewBreakerStore(rs, store.BreakerOptions{
			Timeout:      cfg.Breaker.Timeout,
			MinRequests:  cfg.Breaker.MinRequests,
			FailureRatio: cfg.Breaker.FailureRatio,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().Str("store", name).Str("from", from.String()).Str("to", to.String()).Msg("store circuit breaker")
			},
		}), nil
	case "badger":
		return store.OpenBadgerStore(cfg.Badger.Dir)
	default:
		return store.NewMemoryStore(), nil
	}
}
