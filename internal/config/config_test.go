package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisma-miner/internal/domain"
)

func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NCBI_EMAIL", "NCBI_API_KEY",
		"PRISMA_NCBI_EMAIL", "PRISMA_NCBI_API_KEY", "PRISMA_NCBI_BATCH_SIZE",
		"PRISMA_NCBI_DATABASES", "PRISMA_PIPELINE_MIN_QUALITY", "PRISMA_LOGGING_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func loadFile(t *testing.T, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prisma-miner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	m := NewManager(path)
	require.NoError(t, m.Load())
	return m
}

func TestDefaults(t *testing.T) {
	clearEnvVars(t)
	t.Chdir(t.TempDir())

	m := NewManager("")
	require.NoError(t, m.Load())
	cfg := m.Config()

	assert.Equal(t, "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/", cfg.NCBI.BaseURL)
	assert.Equal(t, 500, cfg.NCBI.BatchSize)
	assert.Equal(t, 10000, cfg.NCBI.MaxResults)
	assert.Equal(t, 30*time.Second, cfg.NCBI.Timeout)
	assert.Equal(t, time.Second, cfg.NCBI.RetryBackoff)
	assert.Equal(t, []string{"bioproject", "sra", "gds", "pubmed"}, cfg.NCBI.Databases)
	assert.Equal(t, 3.0, cfg.NCBI.EffectiveRate())
	assert.Equal(t, 0.6, cfg.CircuitBreaker.FailureRatio)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 50.0, cfg.Pipeline.MinQuality)
	assert.True(t, cfg.Pipeline.QualityFilter)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Empty(t, m.ConfigFileUsed())

	require.NoError(t, m.Validate(false))
	err := m.Validate(true)
	require.Error(t, err)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ncbi.email", verr.Field)
}

func TestConfigFile(t *testing.T) {
	clearEnvVars(t)
	m := loadFile(t, `
ncbi:
  email: curator@example.org
  api_key: abc123
  batch_size: 200
pipeline:
  min_quality: 70
  flow_format: yaml
store:
  driver: none
`)
	cfg := m.Config()

	assert.Equal(t, "curator@example.org", cfg.NCBI.Email)
	assert.Equal(t, 200, cfg.NCBI.BatchSize)
	assert.Equal(t, 10.0, cfg.NCBI.EffectiveRate())
	assert.Equal(t, 70.0, cfg.Pipeline.MinQuality)
	assert.Equal(t, "none", cfg.Store.Driver)
	assert.NoError(t, m.Validate(true))
}

func TestMissingExplicitConfigFile(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, m.Load())
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("NCBI_EMAIL", "env@example.org")
	t.Setenv("PRISMA_NCBI_BATCH_SIZE", "50")
	t.Setenv("PRISMA_NCBI_DATABASES", "sra,gds")
	t.Setenv("PRISMA_LOGGING_LEVEL", "debug")

	m := loadFile(t, "ncbi:\n  batch_size: 200\n")
	cfg := m.Config()

	assert.Equal(t, "env@example.org", cfg.NCBI.Email)
	assert.Equal(t, 50, cfg.NCBI.BatchSize)
	assert.Equal(t, []string{"sra", "gds"}, cfg.NCBI.Databases)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestPrefixedEmailWins(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("NCBI_EMAIL", "plain@example.org")
	t.Setenv("PRISMA_NCBI_EMAIL", "prefixed@example.org")

	m := loadFile(t, "logging:\n  format: text\n")
	assert.Equal(t, "prefixed@example.org", m.Config().NCBI.Email)
}

func TestValidateNamesField(t *testing.T) {
	clearEnvVars(t)
	tests := []struct {
		yaml  string
		field string
	}{
		{"ncbi:\n  batch_size: 20000\n", "ncbi.batch_size"},
		{"pipeline:\n  min_quality: 120\n", "pipeline.min_quality"},
		{"pipeline:\n  flow_format: xml\n", "pipeline.flow_format"},
		{"cache:\n  backend: redis\n", "cache.redis_url"},
		{"cache:\n  backend: disk\n", "cache.backend"},
		{"store:\n  driver: postgres\n", "store.postgres_url"},
		{"store:\n  driver: mysql\n", "store.driver"},
		{"server:\n  port: 70000\n", "server.port"},
		{"logging:\n  level: chatty\n", "logging.level"},
		{"logging:\n  format: xml\n", "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			err := loadFile(t, tt.yaml).Validate(false)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(domain.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	logger.Info("hidden")
	logger.WithField("db", "sra").Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"db":"sra"`)

	fallback := NewLogger(domain.LoggingConfig{Level: "loud"}, &buf)
	assert.Equal(t, logrus.InfoLevel, fallback.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, fallback.Formatter)
}

func TestPaths(t *testing.T) {
	root := t.TempDir()
	p := NewPaths(root)
	require.NoError(t, p.EnsureDirs())

	for _, dir := range []string{p.ProcessedDir(), p.ExcludedDir(), p.FlowDir(), p.QualityDir(), p.LogDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
	assert.Equal(t, filepath.Join(root, "data", "prisma_flows"), p.FlowDir())
	assert.Equal(t, ".", NewPaths("").Root)
}
