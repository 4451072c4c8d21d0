package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// loads configuration from environment variables
func LoadEnvironmentVariables() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // not an error - production environments may not have .env file
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// derives durations and checks cross-field rules
func (c *Config) Validate() error {
	var err error

	if c.AccessTTL, err = ParseDuration(c.AccessExpiresIn); err != nil {
		return fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}

	if c.RefreshTTL, err = ParseDuration(c.RefreshExpiresIn); err != nil {
		return fmt.Errorf("JWT_REFRESH_EXPIRES_IN: %w", err)
	}

	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must not be empty")
	}

	if c.LegacySessionsEnabled && c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET must be set when LEGACY_SESSIONS_ENABLED is true")
	}

	switch c.DatabaseDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required for the postgres driver")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI environment variable is required for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver)
	}

	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{c.FrontendURL}
	}

	return nil
}

// true when OAuth login can be offered
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// true when either signing secret still has its development value
func (c *Config) UsesDefaultSecrets() bool {
	return c.AccessSecret == DefaultAccessSecret || c.RefreshSecret == DefaultRefreshSecret
}

// parses a Go duration, additionally accepting a whole-day suffix ("30d")
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}

	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", s)
	}

	return d, nil
}
