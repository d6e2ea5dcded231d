package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                   8080,
		Env:                    "development",
		DatabaseURL:            "postgres://localhost/test",
		RedisURL:               "redis://localhost:6379",
		PublicBaseURL:          "http://localhost:8080",
		DefaultLinkTTLHours:    48,
		MaxLinkTTLDays:         90,
		AccessLogRetentionDays: 30,
		CleanupIntervalMinutes: 60,
	}
}

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("durations convert from configured units", func(t *testing.T) {
		cfg := validConfig()
		assert.Equal(t, 48*time.Hour, cfg.DefaultLinkTTL())
		assert.Equal(t, 90*24*time.Hour, cfg.MaxLinkTTL())
		assert.Equal(t, 30*24*time.Hour, cfg.AccessLogRetention())
		assert.Equal(t, time.Hour, cfg.CleanupInterval())
	})

	t.Run("IsProduction", func(t *testing.T) {
		cfg := validConfig()
		assert.False(t, cfg.IsProduction())
		cfg.Env = "production"
		assert.True(t, cfg.IsProduction())
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts development defaults", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("rejects default ttl above maximum", func(t *testing.T) {
		cfg := validConfig()
		cfg.DefaultLinkTTLHours = 91 * 24
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-positive retention", func(t *testing.T) {
		cfg := validConfig()
		cfg.AccessLogRetentionDays = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects base url without scheme", func(t *testing.T) {
		cfg := validConfig()
		cfg.PublicBaseURL = "clinic.example.com"
		assert.Error(t, cfg.Validate())
	})

	t.Run("production requires strong session secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.Env = "production"
		cfg.StaffSessionSecret = "secret"
		assert.Error(t, cfg.Validate())

		cfg.StaffSessionSecret = "0123456789abcdef0123456789abcdef"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("production forbids debug errors", func(t *testing.T) {
		cfg := validConfig()
		cfg.Env = "production"
		cfg.StaffSessionSecret = "0123456789abcdef0123456789abcdef"
		cfg.DebugErrors = true
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads config with defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/test")
		t.Setenv("REDIS_URL", "redis://localhost:6379")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, 48, cfg.DefaultLinkTTLHours)
		assert.Equal(t, 90, cfg.MaxLinkTTLDays)
		assert.Equal(t, 30, cfg.AccessLogRetentionDays)
		assert.False(t, cfg.DebugErrors)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/test")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("PORT", "3000")
		t.Setenv("DEFAULT_LINK_TTL_HOURS", "72")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, 72, cfg.DefaultLinkTTLHours)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails without required DATABASE_URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})
}
