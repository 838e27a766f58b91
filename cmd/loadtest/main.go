// Command loadtest drives a limiter at a fixed request rate and reports how
// many calls each key was allowed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/manenim/leaky-limiter/internal/config"
	"github.com/manenim/leaky-limiter/internal/logger"
	"github.com/manenim/leaky-limiter/pkg/limiter"
)

type CLI struct {
	Config   string        `short:"c" help:"Path to config file." type:"path"`
	Memory   bool          `help:"Use an in-process store instead of Redis."`
	Duration time.Duration `help:"How long to run." default:"10s"`
	RPS      float64       `name:"rps" help:"Requests per second per key." default:"10"`
	Keys     int           `help:"Number of distinct keys." default:"4"`
	Workers  int           `help:"Concurrent callers per key." default:"2"`
	Cost     float64       `help:"Cost of each call." default:"1"`

	config.Overrides `embed:""`
}

type keyStats struct {
	mu      sync.Mutex
	allowed int
	denied  int
	errors  int
	maxWait time.Duration
}

func (s *keyStats) add(dec limiter.Decision, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.errors++
	case dec.Allow:
		s.allowed++
	default:
		s.denied++
		if dec.RetryAfter > s.maxWait {
			s.maxWait = dec.RetryAfter
		}
	}
}

func main() {
	var cli CLI
	kong.Parse(&cli, kong.Name("loadtest"))
	if err := run(cli); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cli CLI) error {
	cfg, err := config.Load(cli.Config, cli.Overrides)
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	var store limiter.Store
	if cli.Memory {
		store = limiter.NewMemoryStore()
	} else {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		store = limiter.NewRedisStore(client)
	}

	opts, err := cfg.LimiterOptions()
	if err != nil {
		return err
	}
	l, err := limiter.New(store, append(opts, limiter.WithLogger(log))...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cli.Duration)
	defer cancel()

	runID := uuid.NewString()
	stats := make(map[string]*keyStats, cli.Keys)
	g, gctx := errgroup.WithContext(ctx)
	for k := 0; k < cli.Keys; k++ {
		key := fmt.Sprintf("loadtest:%s:%d", runID, k)
		st := &keyStats{}
		stats[key] = st
		pacer := rate.NewLimiter(rate.Limit(cli.RPS), 1)
		for w := 0; w < cli.Workers; w++ {
			g.Go(func() error {
				for {
					if err := pacer.Wait(gctx); err != nil {
						return nil
					}
					dec, err := l.AllowN(gctx, key, cli.Cost)
					if err != nil && gctx.Err() != nil {
						return nil
					}
					st.add(dec, err)
				}
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		st := stats[k]
		log.Info("key summary",
			slog.String("key", k),
			slog.Int("allowed", st.allowed),
			slog.Int("denied", st.denied),
			slog.Int("errors", st.errors),
			slog.Float64("allowed_per_second", float64(st.allowed)/cli.Duration.Seconds()),
			slog.Duration("max_retry_after", st.maxWait),
		)
	}
	return nil
}
