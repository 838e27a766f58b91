package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/manenim/leaky-limiter/internal/config"
	"github.com/manenim/leaky-limiter/internal/logger"
	"github.com/manenim/leaky-limiter/pkg/limiter"
	"github.com/manenim/leaky-limiter/pkg/limiter/prommetrics"
)

// CLI defines the command-line interface.
type CLI struct {
	Config string `short:"c" help:"Path to config file." type:"path"`

	config.Overrides `embed:""`
}

func main() {
	// Values from .env become defaults for the env-bound flags below.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("load .env", "error", err)
		os.Exit(1)
	}

	var cli CLI
	kong.Parse(&cli,
		kong.Name("example-server"),
		kong.Description("HTTP server protected by a Redis leaky-bucket limiter."),
	)

	if err := run(cli); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cli CLI) error {
	cfg, err := config.Load(cli.Config, cli.Overrides)
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	store := limiter.NewRedisStore(client)
	preloadCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Preload(preloadCtx); err != nil {
		// The first call will load the script instead.
		log.Warn("could not preload limiter script", "redis", cfg.Redis.Addr, "error", err)
	}
	cancel()

	opts, err := cfg.LimiterOptions()
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	opts = append(opts,
		limiter.WithLogger(log),
		limiter.WithRecorder(prommetrics.New(reg, "example")),
	)
	l, err := limiter.New(store, opts...)
	if err != nil {
		return err
	}
	log.Info("limiter ready", "tiers", len(l.Limits()), "prefix", cfg.Limiter.Prefix)

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware(limiter.MiddlewareConfig{
			Limiter:  l,
			KeyFunc:  limiter.RemoteIPKey,
			FailOpen: cfg.Server.FailOpen,
			Logger:   log,
		}))
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("Pong!\n"))
		})
	})

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Server.ListenAddr, "redis", cfg.Redis.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
