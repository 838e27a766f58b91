// Package config loads the YAML configuration shared by the binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/manenim/leaky-limiter/pkg/limiter"
)

// Config describes the configuration file.
type Config struct {
	Redis   RedisConfig   `yaml:"redis"`
	Limiter LimiterConfig `yaml:"limiter"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LimiterConfig struct {
	Prefix   string           `yaml:"prefix"`
	Timeout  time.Duration    `yaml:"timeout"`
	Backoff  BackoffConfig    `yaml:"backoff"`
	Capacity []CapacityConfig `yaml:"capacity"`
	Rate     []RateConfig     `yaml:"rate"`
}

type BackoffConfig struct {
	Scaling string  `yaml:"scaling"`
	Factor  float64 `yaml:"factor"`
}

type CapacityConfig struct {
	Window time.Duration `yaml:"window"`
	Min    float64       `yaml:"min"`
	Max    float64       `yaml:"max"`
}

type RateConfig struct {
	Flow  float64 `yaml:"flow"`
	Burst float64 `yaml:"burst"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	FailOpen   bool   `yaml:"fail_open"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given: a single
// tier of 5 calls per second with a burst of 10.
func Default() Config {
	return Config{
		Redis: RedisConfig{Addr: "localhost:6379"},
		Limiter: LimiterConfig{
			Prefix:  "demo:",
			Timeout: 100 * time.Millisecond,
			Backoff: BackoffConfig{Scaling: "linear", Factor: limiter.DefaultBackoffFactor},
			Rate:    []RateConfig{{Flow: 5, Burst: 10}},
		},
		Server: ServerConfig{ListenAddr: ":8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (when not empty) over the defaults, applies the flag and
// environment overrides and validates the result.
func Load(path string, o Overrides) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, err
		}
	}
	o.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Limits in the document replace the default
// ones rather than being appended to them.
func Parse(data []byte, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	var probe struct {
		Limiter struct {
			Capacity []CapacityConfig `yaml:"capacity"`
			Rate     []RateConfig     `yaml:"rate"`
		} `yaml:"limiter"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if probe.Limiter.Capacity != nil || probe.Limiter.Rate != nil {
		cfg.Limiter.Capacity = nil
		cfg.Limiter.Rate = nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks that the limiter section can build a limiter.
func (c Config) Validate() error {
	if c.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if _, err := limiter.ParseScaling(c.Limiter.Backoff.Scaling); err != nil {
		return err
	}
	tiers := make([]limiter.Tier, 0, len(c.Limiter.Capacity)+len(c.Limiter.Rate))
	for _, b := range c.buckets() {
		t, err := b.Tier()
		if err != nil {
			return err
		}
		tiers = append(tiers, t)
	}
	_, err := limiter.Normalize(tiers)
	return err
}

// LimiterOptions translates the limiter section into options for
// limiter.New.
func (c Config) LimiterOptions() ([]limiter.Option, error) {
	scale, err := limiter.ParseScaling(c.Limiter.Backoff.Scaling)
	if err != nil {
		return nil, err
	}
	factor := c.Limiter.Backoff.Factor
	if factor == 0 {
		factor = limiter.DefaultBackoffFactor
	}
	opts := []limiter.Option{
		limiter.WithPrefix(c.Limiter.Prefix),
		limiter.WithTimeout(c.Limiter.Timeout),
		limiter.WithBackoff(scale, factor),
	}
	for _, b := range c.buckets() {
		opts = append(opts, limiter.WithBucket(b))
	}
	return opts, nil
}

func (c Config) buckets() []limiter.Bucket {
	out := make([]limiter.Bucket, 0, len(c.Limiter.Capacity)+len(c.Limiter.Rate))
	for _, cp := range c.Limiter.Capacity {
		out = append(out, limiter.Capacity{Window: cp.Window, Min: cp.Min, Max: cp.Max})
	}
	for _, r := range c.Limiter.Rate {
		out = append(out, limiter.Rate{Flow: r.Flow, Burst: r.Burst})
	}
	return out
}
