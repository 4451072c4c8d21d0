package config

import "time"

// storage backends for the identity store
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// development fallbacks for the signing secrets
const (
	DefaultAccessSecret  = "storefront-dev-access-secret"
	DefaultRefreshSecret = "storefront-dev-refresh-secret"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	AccessSecret     string `env:"JWT_SECRET" envDefault:"storefront-dev-access-secret"`
	RefreshSecret    string `env:"JWT_REFRESH_SECRET" envDefault:"storefront-dev-refresh-secret"`
	AccessExpiresIn  string `env:"JWT_EXPIRES_IN" envDefault:"24h"`
	RefreshExpiresIn string `env:"JWT_REFRESH_EXPIRES_IN" envDefault:"30d"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	SessionSecret         string `env:"SESSION_SECRET"`
	LegacySessionsEnabled bool   `env:"LEGACY_SESSIONS_ENABLED" envDefault:"false"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	MongoURI       string `env:"MONGO_URI"`
	MongoDatabase  string `env:"MONGO_DATABASE" envDefault:"storefront"`

	RedisURL               string `env:"REDIS_URL"`
	TokenRevocationEnabled bool   `env:"TOKEN_REVOCATION_ENABLED" envDefault:"false"`

	AuthRateLimit      string   `env:"AUTH_RATE_LIMIT" envDefault:"20-M"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// derived by Validate
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// CLI flags for the storefront client
type Flags struct {
	API      string
	Email    string
	Password string
	Name     string
}
