package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	Env                    string `env:"ENV" envDefault:"development"`
	DatabaseURL            string `env:"DATABASE_URL,required,notEmpty"`
	RedisURL               string `env:"REDIS_URL,required,notEmpty"`
	PublicBaseURL          string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	StaffSessionSecret     string `env:"STAFF_SESSION_SECRET"`
	DefaultLinkTTLHours    int    `env:"DEFAULT_LINK_TTL_HOURS" envDefault:"48"`
	MaxLinkTTLDays         int    `env:"MAX_LINK_TTL_DAYS" envDefault:"90"`
	AccessLogRetentionDays int    `env:"ACCESS_LOG_RETENTION_DAYS" envDefault:"30"`
	CleanupIntervalMinutes int    `env:"CLEANUP_INTERVAL_MINUTES" envDefault:"60"`
	IssueLimitPerPatient   int    `env:"ISSUE_LIMIT_PER_PATIENT" envDefault:"10"`
	DebugErrors            bool   `env:"DEBUG_ERRORS" envDefault:"false"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) DefaultLinkTTL() time.Duration {
	return time.Duration(c.DefaultLinkTTLHours) * time.Hour
}

func (c *Config) MaxLinkTTL() time.Duration {
	return time.Duration(c.MaxLinkTTLDays) * 24 * time.Hour
}

func (c *Config) AccessLogRetention() time.Duration {
	return time.Duration(c.AccessLogRetentionDays) * 24 * time.Hour
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) Validate() error {
	if c.DefaultLinkTTLHours <= 0 {
		return fmt.Errorf("DEFAULT_LINK_TTL_HOURS must be positive")
	}
	if c.MaxLinkTTLDays <= 0 {
		return fmt.Errorf("MAX_LINK_TTL_DAYS must be positive")
	}
	if c.DefaultLinkTTL() > c.MaxLinkTTL() {
		return fmt.Errorf("DEFAULT_LINK_TTL_HOURS exceeds MAX_LINK_TTL_DAYS")
	}
	if c.AccessLogRetentionDays <= 0 {
		return fmt.Errorf("ACCESS_LOG_RETENTION_DAYS must be positive")
	}
	if !strings.HasPrefix(c.PublicBaseURL, "http://") && !strings.HasPrefix(c.PublicBaseURL, "https://") {
		return fmt.Errorf("PUBLIC_BASE_URL must start with http:// or https://")
	}

	if c.IsProduction() {
		if err := validateSecret("STAFF_SESSION_SECRET", c.StaffSessionSecret); err != nil {
			return err
		}
		if c.DebugErrors {
			return fmt.Errorf("DEBUG_ERRORS must not be enabled in production")
		}
		if strings.HasPrefix(c.PublicBaseURL, "http://") {
			log.Warn().Msg("PUBLIC_BASE_URL uses http:// in production: secure links will travel unencrypted")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

// Load reads configuration from the environment, after merging a local .env
// file when one exists. Variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
