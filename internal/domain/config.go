package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	NCBI           NCBIConfig           `mapstructure:"ncbi"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Pipeline       PipelineConfig       `mapstructure:"pipeline"`
	Store          StoreConfig          `mapstructure:"store"`
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
}

// NCBIConfig represents E-utilities access settings
type NCBIConfig struct {
	Email             string        `mapstructure:"email"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Tool              string        `mapstructure:"tool"`
	BatchSize         int           `mapstructure:"batch_size"`
	MaxResults        int           `mapstructure:"max_results"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	Databases         []string      `mapstructure:"databases"`
}

// EffectiveRate returns the configured request rate, or the NCBI default for
// the presence of an API key.
func (c NCBIConfig) EffectiveRate() float64 {
	if c.RequestsPerSecond > 0 {
		return c.RequestsPerSecond
	}
	if c.APIKey != "" {
		return 10
	}
	return 3
}

// CircuitBreakerConfig configures the per-database breakers
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

// CacheConfig represents summary cache configuration
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
	Size     int           `mapstructure:"size"`
}

// PipelineConfig holds defaults for mining runs
type PipelineConfig struct {
	MinQuality    float64 `mapstructure:"min_quality"`
	QualityFilter bool    `mapstructure:"quality_filter"`
	OutputDir     string  `mapstructure:"output_dir"`
	FlowFormat    string  `mapstructure:"flow_format"`
}

// StoreConfig selects the run store backend
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig toggles Prometheus collection
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
