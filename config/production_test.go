package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProductionConfig_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", filepath.Join(t.TempDir(), "plans.db"))

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Scraper.Interval)
	assert.True(t, cfg.Scraper.RunOnStartup)
	assert.Equal(t, 20, cfg.Ranking.MaxPlans)
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-flash-8b"}, cfg.Ranking.Models)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoadProductionConfig_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("SCRAPER_INTERVAL", "6h")
	t.Setenv("RANKING_MODELS", "model-a, model-b ,,")
	t.Setenv("RANKING_TEMPERATURE", "0.7")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("GEMINI_API_KEY", "legacy-key")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, 6*time.Hour, cfg.Scraper.Interval)
	assert.Equal(t, []string{"model-a", "model-b"}, cfg.Ranking.Models)
	assert.InDelta(t, 0.7, cfg.Ranking.Temperature, 1e-9)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "legacy-key", cfg.Ranking.APIKey)
}

func TestLoadProductionConfig_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("SCRAPER_INTERVAL", "daily")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Scraper.Interval)
}

func TestValidateProductionConfig(t *testing.T) {
	valid := func() *ProductionConfig {
		return &ProductionConfig{
			Database: DatabaseConfig{Driver: "postgres", Host: "localhost", Port: 5432, Name: "db", User: "u"},
			Server:   ServerConfig{Port: 8000, ReadTimeout: time.Second, WriteTimeout: time.Second},
			Logging:  LoggingConfig{Level: "info", Output: "stdout"},
			Scraper:  ScraperConfig{Interval: time.Hour, RunTimeout: time.Minute, HTTPRetries: 1},
			Ranking:  RankingConfig{AttemptTimeout: time.Second, MaxPlans: 20},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ProductionConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*ProductionConfig) {}},
		{name: "unknown driver", mutate: func(c *ProductionConfig) { c.Database.Driver = "mysql" }, wantErr: "DB_DRIVER"},
		{name: "sqlite without path", mutate: func(c *ProductionConfig) { c.Database = DatabaseConfig{Driver: "sqlite"} }, wantErr: "DB_SQLITE_PATH"},
		{name: "bad port", mutate: func(c *ProductionConfig) { c.Server.Port = 70000 }, wantErr: "SERVER_PORT"},
		{name: "zero interval", mutate: func(c *ProductionConfig) { c.Scraper.Interval = 0 }, wantErr: "SCRAPER_INTERVAL"},
		{name: "zero attempt timeout", mutate: func(c *ProductionConfig) { c.Ranking.AttemptTimeout = 0 }, wantErr: "RANKING_ATTEMPT_TIMEOUT"},
		{name: "bad log level", mutate: func(c *ProductionConfig) { c.Logging.Level = "trace" }, wantErr: "LOG_LEVEL"},
		{name: "file output without path", mutate: func(c *ProductionConfig) { c.Logging.Output = "file" }, wantErr: "LOG_FILE_PATH"},
		{name: "cache without url", mutate: func(c *ProductionConfig) {
			c.Cache = CacheConfig{Enabled: true, Provider: "redis"}
		}, wantErr: "CACHE_REDIS_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("existing environment wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("TIA_TEST_FROM_FILE=file\nTIA_TEST_PRESET=file\n"), 0o600))
		t.Setenv("TIA_TEST_PRESET", "env")
		t.Setenv("TIA_TEST_FROM_FILE", "")
		require.NoError(t, os.Unsetenv("TIA_TEST_FROM_FILE"))

		require.NoError(t, loadEnvFile(path))
		assert.Equal(t, "file", os.Getenv("TIA_TEST_FROM_FILE"))
		assert.Equal(t, "env", os.Getenv("TIA_TEST_PRESET"))
	})
}
