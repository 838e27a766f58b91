package config

import "time"

// Overrides are the settings that may also be given as flags or environment
// variables. Embed it in a kong CLI struct. Zero values leave the file's
// settings untouched.
type Overrides struct {
	RedisAddr     string        `name:"redis-addr" help:"Redis address." env:"REDIS_ADDR" placeholder:"HOST:PORT"`
	RedisPassword string        `name:"redis-password" help:"Redis password." env:"REDIS_PASSWORD"`
	RedisDB       int           `name:"redis-db" help:"Redis database number." env:"REDIS_DB"`
	Prefix        string        `name:"prefix" help:"Prefix prepended to every limiter key." env:"LIMITER_PREFIX"`
	Timeout       time.Duration `name:"timeout" help:"Bound on each store round trip." env:"LIMITER_TIMEOUT"`
	ListenAddr    string        `name:"listen-addr" help:"HTTP listen address." env:"LISTEN_ADDR" placeholder:"ADDR"`
	FailOpen      bool          `name:"fail-open" help:"Let requests through when the store is unreachable." env:"FAIL_OPEN"`
	LogLevel      string        `name:"log-level" help:"Log level (debug, info, warn, error)." env:"LOG_LEVEL"`
	LogFormat     string        `name:"log-format" help:"Log format (text or json)." env:"LOG_FORMAT"`
}

// Apply copies every non-zero override onto cfg.
func (o Overrides) Apply(cfg *Config) {
	if o.RedisAddr != "" {
		cfg.Redis.Addr = o.RedisAddr
	}
	if o.RedisPassword != "" {
		cfg.Redis.Password = o.RedisPassword
	}
	if o.RedisDB != 0 {
		cfg.Redis.DB = o.RedisDB
	}
	if o.Prefix != "" {
		cfg.Limiter.Prefix = o.Prefix
	}
	if o.Timeout != 0 {
		cfg.Limiter.Timeout = o.Timeout
	}
	if o.ListenAddr != "" {
		cfg.Server.ListenAddr = o.ListenAddr
	}
	if o.FailOpen {
		cfg.Server.FailOpen = true
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
}
