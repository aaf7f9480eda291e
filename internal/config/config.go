// Package config loads prisma-miner configuration from files, environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/prisma-miner/internal/domain"
)

const (
	configName = "prisma-miner"
	envPrefix  = "PRISMA"
)

// Manager owns a viper instance and the configuration decoded from it.
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager prepares defaults and environment bindings. configFile may be
// empty, in which case the standard search paths are used. Call Load after
// binding any flags.
func NewManager(configFile string) *Manager {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".prisma-miner"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// NCBI credentials are commonly exported without the prefix.
	_ = v.BindEnv("ncbi.email", envPrefix+"_NCBI_EMAIL", "NCBI_EMAIL")
	_ = v.BindEnv("ncbi.api_key", envPrefix+"_NCBI_API_KEY", "NCBI_API_KEY")

	setDefaults(v)
	return &Manager{v: v, configFile: configFile}
}

// Viper exposes the underlying instance for flag binding.
func (m *Manager) Viper() *viper.Viper { return m.v }

// Load reads the config file, if any, and decodes all sources.
func (m *Manager) Load() error {
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &domain.Config{}
	if err := m.v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	m.config = cfg
	return nil
}

// ConfigFileUsed returns the path of the file that was read, or "".
func (m *Manager) ConfigFileUsed() string { return m.v.ConfigFileUsed() }

// Config returns the decoded configuration. Load must have succeeded.
func (m *Manager) Config() *domain.Config { return m.config }

// Reload re-reads every source.
func (m *Manager) Reload() error { return m.Load() }

func setDefaults(v *viper.Viper) {
	// NCBI defaults
	v.SetDefault("ncbi.email", "")
	v.SetDefault("ncbi.api_key", "")
	v.SetDefault("ncbi.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/")
	v.SetDefault("ncbi.tool", "prisma-miner")
	v.SetDefault("ncbi.batch_size", 500)
	v.SetDefault("ncbi.max_results", 10000)
	v.SetDefault("ncbi.timeout", "30s")
	v.SetDefault("ncbi.requests_per_second", 0)
	v.SetDefault("ncbi.max_retries", 3)
	v.SetDefault("ncbi.retry_backoff", "1s")
	v.SetDefault("ncbi.databases", []string{"bioproject", "sra", "gds", "pubmed"})

	// Circuit breaker defaults
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("circuit_breaker.min_requests", 3)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.size", 1024)

	// Pipeline defaults
	v.SetDefault("pipeline.min_quality", 50.0)
	v.SetDefault("pipeline.quality_filter", true)
	v.SetDefault("pipeline.output_dir", ".")
	v.SetDefault("pipeline.flow_format", "json")

	// Store defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "./data/prisma-miner.db")
	v.SetDefault("store.postgres_url", "")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.enabled", true)
}

// Validate checks the loaded configuration and names the first invalid
// field. requireEmail is set by commands that contact NCBI.
func (m *Manager) Validate(requireEmail bool) error {
	c := m.config
	if c == nil {
		return fmt.Errorf("configuration not loaded")
	}

	if requireEmail && !strings.Contains(c.NCBI.Email, "@") {
		return domain.NewValidationError("ncbi.email", "a contact email is required by NCBI", c.NCBI.Email)
	}
	if c.NCBI.BatchSize < 1 || c.NCBI.BatchSize > 10000 {
		return domain.NewValidationError("ncbi.batch_size", "must be between 1 and 10000", c.NCBI.BatchSize)
	}
	if c.NCBI.MaxResults < 1 {
		return domain.NewValidationError("ncbi.max_results", "must be positive", c.NCBI.MaxResults)
	}
	if c.NCBI.RequestsPerSecond < 0 {
		return domain.NewValidationError("ncbi.requests_per_second", "must not be negative", c.NCBI.RequestsPerSecond)
	}
	if c.NCBI.MaxRetries < 0 {
		return domain.NewValidationError("ncbi.max_retries", "must not be negative", c.NCBI.MaxRetries)
	}

	if c.Pipeline.MinQuality < 0 || c.Pipeline.MinQuality > 100 {
		return domain.NewValidationError("pipeline.min_quality", "must be between 0 and 100", c.Pipeline.MinQuality)
	}
	if f := strings.ToLower(c.Pipeline.FlowFormat); f != "json" && f != "yaml" && f != "yml" {
		return domain.NewValidationError("pipeline.flow_format", "must be json or yaml", c.Pipeline.FlowFormat)
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			return domain.NewValidationError("cache.redis_url", "required for the redis backend", "")
		}
	default:
		return domain.NewValidationError("cache.backend", "must be memory, redis or none", c.Cache.Backend)
	}

	switch strings.ToLower(c.Store.Driver) {
	case "none":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return domain.NewValidationError("store.sqlite_path", "required for the sqlite driver", "")
		}
	case "postgres":
		if c.Store.PostgresURL == "" {
			return domain.NewValidationError("store.postgres_url", "required for the postgres driver", "")
		}
	default:
		return domain.NewValidationError("store.driver", "must be sqlite, postgres or none", c.Store.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return domain.NewValidationError("server.port", "must be between 1 and 65535", c.Server.Port)
	}

	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return domain.NewValidationError("logging.level", "unknown log level", c.Logging.Level)
	}
	if f := strings.ToLower(c.Logging.Format); f != "json" && f != "text" {
		return domain.NewValidationError("logging.format", "must be json or text", c.Logging.Format)
	}

	return nil
}
