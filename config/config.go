// Package config provides loading of coachmem.yaml configuration files with
// environment overrides.
//
// Values are resolved in this order, later sources winning:
//
//  1. built-in defaults
//  2. the YAML file, if a path is given
//  3. a .env file in the working directory, if present
//  4. process environment variables
//
// Recognized environment variables:
//
//	COACHMEM_ENV               development | staging | production
//	REDIS_URL                  Redis connection string
//	COACHMEM_HTTP_ADDR         HTTP listen address
//	COACHMEM_GRPC_ADDR         gRPC health listen address
//	COACHMEM_LOG_LEVEL         debug | info | warn | error
//	COACHMEM_LOG_FORMAT        text | json
//	COACHMEM_LAST_MESSAGES     default retrieval window
//	COACHMEM_MAX_ALL_MESSAGES  cap for "all" queries
//	COACHMEM_ALLOW_FLUSH       true enables whole-store flush
//	COACHMEM_ID_GENERATOR      uuid | ulid | legacy
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/coachmem/ids"
	"github.com/zero-day-ai/coachmem/memory"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// ErrFlushInProduction is returned by Validate when allow_flush is enabled in
// the production environment.
var ErrFlushInProduction = errors.New("config: allow_flush cannot be enabled in production")

// Config represents a coachmem.yaml configuration file.
type Config struct {
	Env string `yaml:"env,omitempty"`

	Redis  RedisConfig   `yaml:"redis"`
	Memory memory.Config `yaml:"memory"`
	IDs    IDsConfig     `yaml:"ids,omitempty"`
	HTTP   HTTPConfig    `yaml:"http,omitempty"`
	GRPC   GRPCConfig    `yaml:"grpc,omitempty"`
	Log    LogConfig     `yaml:"log,omitempty"`
}

// RedisConfig configures the backend connection.
type RedisConfig struct {
	URL string `yaml:"url"`

	// Format: Go duration string (e.g., "5s")
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`
	ReadTimeout    string `yaml:"read_timeout,omitempty"`
	WriteTimeout   string `yaml:"write_timeout,omitempty"`

	PoolSize int `yaml:"pool_size,omitempty"`
}

// IDsConfig selects the identifier scheme for new threads and messages.
type IDsConfig struct {
	// Generator is one of "uuid", "ulid" or "legacy". Default: uuid
	Generator string `yaml:"generator,omitempty"`
}

// HTTPConfig configures the HTTP surface.
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`

	// Format: Go duration string. Default: 30s
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty"`
}

// GRPCConfig configures the gRPC health endpoint.
type GRPCConfig struct {
	Addr string `yaml:"addr,omitempty"`

	// Format: Go duration string. Default: 10s
	HealthInterval string `yaml:"health_interval,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Env: EnvDevelopment,
		Redis: RedisConfig{
			URL: "redis://localhost:6379",
		},
		Memory: memory.DefaultConfig(),
		IDs:    IDsConfig{Generator: ids.KindUUID},
		HTTP:   HTTPConfig{Addr: ":8080"},
		GRPC:   GRPCConfig{Addr: ":9090"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), .env and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile reads path, or coachmem.yaml / coachmem.yml inside it when path
// is a directory, over the current values.
func (c *Config) loadFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath = ""
		for _, name := range []string{"coachmem.yaml", "coachmem.yml"} {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				configPath = candidate
				break
			}
		}
		if configPath == "" {
			return fmt.Errorf("no coachmem.yaml or coachmem.yml found in %s", path)
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// applyEnv overrides fields from environment variables looked up with
// lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("COACHMEM_ENV", &c.Env)
	str("REDIS_URL", &c.Redis.URL)
	str("COACHMEM_HTTP_ADDR", &c.HTTP.Addr)
	str("COACHMEM_GRPC_ADDR", &c.GRPC.Addr)
	str("COACHMEM_LOG_LEVEL", &c.Log.Level)
	str("COACHMEM_LOG_FORMAT", &c.Log.Format)
	str("COACHMEM_ID_GENERATOR", &c.IDs.Generator)

	for key, dst := range map[string]*int{
		"COACHMEM_LAST_MESSAGES":    &c.Memory.LastMessages,
		"COACHMEM_MAX_ALL_MESSAGES": &c.Memory.MaxAllMessages,
	} {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	if v, ok := lookup("COACHMEM_ALLOW_FLUSH"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid COACHMEM_ALLOW_FLUSH: %w", err)
		}
		c.Memory.AllowFlush = b
	}
	return nil
}

// Validate checks the configuration for values that cannot be used.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("config: unknown env %q", c.Env)
	}

	if c.Redis.URL == "" {
		return errors.New("config: redis.url is required")
	}

	if c.Env == EnvProduction && c.Memory.AllowFlush {
		return ErrFlushInProduction
	}

	if err := c.Memory.Validate(); err != nil {
		return err
	}

	if _, err := ids.Parse(c.IDs.Generator); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// GetConnectTimeout parses the connect timeout. Default: 5s
func (r RedisConfig) GetConnectTimeout() time.Duration {
	return parseDuration(r.ConnectTimeout, 5*time.Second)
}

// GetReadTimeout parses the read timeout. Default: 3s
func (r RedisConfig) GetReadTimeout() time.Duration {
	return parseDuration(r.ReadTimeout, 3*time.Second)
}

// GetWriteTimeout parses the write timeout. Default: 3s
func (r RedisConfig) GetWriteTimeout() time.Duration {
	return parseDuration(r.WriteTimeout, 3*time.Second)
}

// GetShutdownTimeout parses the shutdown timeout. Default: 30s
func (h HTTPConfig) GetShutdownTimeout() time.Duration {
	return parseDuration(h.ShutdownTimeout, 30*time.Second)
}

// GetHealthInterval parses the health check interval. Default: 10s
func (g GRPCConfig) GetHealthInterval() time.Duration {
	return parseDuration(g.HealthInterval, 10*time.Second)
}

// SlogLevel maps Level to a slog level. An empty level is info.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", l.Level)
	}
}

// IsJSON reports whether logs should be written as JSON.
func (l LogConfig) IsJSON() bool {
	return strings.EqualFold(l.Format, "json")
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
