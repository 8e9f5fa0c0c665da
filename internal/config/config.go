// Package config loads YAML configuration and optimization job files.
// Loading follows one pipeline: unmarshal, fill defaults, validate.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"defi-strategy-lab/internal/domain"
)

var validate = validator.New()

// Config is the server configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Tokens    []TokenSpec     `yaml:"tokens" validate:"dive"`
}

// TokenSpec registers a token on top of the built-in registry. An entry with
// a known symbol overrides the built-in one.
type TokenSpec struct {
	Symbol   string `yaml:"symbol" validate:"required"`
	Mint     string `yaml:"mint" validate:"required"`
	Decimals int    `yaml:"decimals" validate:"gte=0,lte=18"`
}

// LogConfig selects the root logger's level and rendering.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"json" validate:"oneof=json console"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string   `yaml:"addr" default:":8080" validate:"required"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// SetDefaults fills duration fields, which default tags cannot express for
// the YAML-aware Duration type.
func (c *ServerConfig) SetDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = Duration(15 * time.Second)
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = Duration(30 * time.Second)
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(10 * time.Second)
	}
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Path      string `yaml:"path" default:"/metrics" validate:"required"`
	Namespace string `yaml:"namespace" default:"strategy_lab"`
}

// StorageConfig selects the persistence backend. The memory backend needs no
// DSNs and is the default; the database backend requires both.
type StorageConfig struct {
	Backend       string `yaml:"backend" default:"memory" validate:"oneof=memory database"`
	PostgresDSN   string `yaml:"postgres_dsn" validate:"required_if=Backend database"`
	ClickhouseDSN string `yaml:"clickhouse_dsn" validate:"required_if=Backend database"`
}

// CacheConfig selects the evaluation cache backend.
type CacheConfig struct {
	Backend    string      `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
	TTL        Duration    `yaml:"ttl"`
	MaxEntries int         `yaml:"max_entries" default:"10000" validate:"gt=0"`
	Redis      RedisConfig `yaml:"redis"`
}

// SetDefaults fills the cache TTL.
func (c *CacheConfig) SetDefaults() {
	if c.TTL == 0 {
		c.TTL = Duration(24 * time.Hour)
	}
}

// RedisConfig holds redis connection settings for the shared cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	PoolSize int    `yaml:"pool_size" validate:"gte=0"`
	Prefix   string `yaml:"prefix" default:"strategylab"`
}

// SchedulerConfig tunes the evaluation worker pool. Zero workers means one
// per CPU, capped.
type SchedulerConfig struct {
	Workers           int      `yaml:"workers" validate:"gte=0"`
	QueueSize         int      `yaml:"queue_size" default:"64" validate:"gt=0"`
	BackoffBase       Duration `yaml:"backoff_base"`
	EvaluationTimeout Duration `yaml:"evaluation_timeout"`
}

// SetDefaults fills retry backoff and per-evaluation timeout.
func (c *SchedulerConfig) SetDefaults() {
	if c.BackoffBase == 0 {
		c.BackoffBase = Duration(100 * time.Millisecond)
	}
	if c.EvaluationTimeout == 0 {
		c.EvaluationTimeout = Duration(2 * time.Minute)
	}
}

// Default returns a Config with every default applied and no file read.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads, defaults and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(b)
}

// LoadWithEnv loads a config file and applies environment overrides for the
// settings that commonly differ per deployment.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	return c, c.check()
}

func parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// check runs struct validation plus the cross-section rules tags cannot
// express.
func (c *Config) check() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("validate config: cache.redis.addr is required when cache.backend is redis")
	}
	for _, t := range c.Tokens {
		if err := domain.ValidateMint(t.Mint); err != nil {
			return fmt.Errorf("validate config: token %s: %w", t.Symbol, err)
		}
	}
	return nil
}

// Registry merges the built-in token registry with the configured tokens.
func (c *Config) Registry() map[string]domain.Token {
	out := make(map[string]domain.Token, len(domain.DefaultTokens)+len(c.Tokens))
	for sym, t := range domain.DefaultTokens {
		out[sym] = t
	}
	for _, t := range c.Tokens {
		out[t.Symbol] = domain.Token{Symbol: t.Symbol, Mint: t.Mint, Decimals: t.Decimals}
	}
	return out
}
