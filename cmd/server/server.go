package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"codeberg.org/storefront/server/api/rest/auth"
	"codeberg.org/storefront/server/internal/config"
	"codeberg.org/storefront/server/internal/logger"
	"codeberg.org/storefront/server/internal/metrics"
	"codeberg.org/storefront/server/internal/ratelimit"
	"codeberg.org/storefront/server/internal/revocation"
	"codeberg.org/storefront/server/storefront/users"

	authn "codeberg.org/storefront/server/internal/auth"
)

const (
	connectTimeout = 10 * time.Second

	// in-process deny-list bounds when redis is not configured
	revocationCacheSize = 100_000
)

// creates and configures a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if cfg.IsProduction() && cfg.UsesDefaultSecrets() {
		logger.Warn("JWT secrets are using development defaults; set JWT_SECRET and JWT_REFRESH_SECRET")
	}

	s := &Server{config: cfg, metrics: metrics.New()}

	if err := s.openStore(ctx); err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		client, err := revocation.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}

		s.redis = client
		s.closers = append(s.closers, func() { client.Close() }) //nolint:errcheck,gosec // best-effort cleanup on shutdown
		s.checks = append(s.checks, func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}

	if err := s.wireAuth(); err != nil {
		s.Close()
		return nil, err
	}

	limiter, err := ratelimit.New(cfg.AuthRateLimit, s.redis)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.limiter = limiter

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.Default()
	RegisterRoutes(s.router, s)

	return s, nil
}

// picks the identity store named by DATABASE_DRIVER
func (s *Server) openStore(ctx context.Context) error {
	switch s.config.DatabaseDriver {
	case config.DriverPostgres:
		pool, err := openPostgres(ctx, s.config.DatabaseURL)
		if err != nil {
			return err
		}

		s.store = users.NewRepository(pool)
		s.closers = append(s.closers, pool.Close)
		s.checks = append(s.checks, pool.Ping)

	case config.DriverMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(s.config.MongoURI))
		if err != nil {
			return fmt.Errorf("failed to connect to mongo: %w", err)
		}

		if err := client.Ping(ctx, nil); err != nil {
			client.Disconnect(context.Background()) //nolint:errcheck,gosec // best-effort cleanup on init failure
			return fmt.Errorf("failed to ping mongo: %w", err)
		}

		repo := users.NewMongoRepository(client.Database(s.config.MongoDatabase))
		if err := repo.EnsureIndexes(ctx); err != nil {
			client.Disconnect(context.Background()) //nolint:errcheck,gosec // best-effort cleanup on init failure
			return fmt.Errorf("failed to create mongo indexes: %w", err)
		}

		s.store = repo
		s.closers = append(s.closers, func() { client.Disconnect(context.Background()) }) //nolint:errcheck,gosec // best-effort cleanup on shutdown
		s.checks = append(s.checks, func(ctx context.Context) error { return client.Ping(ctx, nil) })

	case config.DriverMemory:
		logger.Warn("using the in-memory identity store; accounts are lost on restart")
		s.store = users.NewMemoryStore()

	default:
		return fmt.Errorf("unknown database driver %q", s.config.DatabaseDriver)
	}

	logger.Info("identity store ready", "driver", s.config.DatabaseDriver)
	return nil
}

func openPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, users.Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply users schema: %w", err)
	}

	return pool, nil
}

// builds the codec, strategies and optional auth features from config
func (s *Server) wireAuth() error {
	cfg := s.config

	codec, err := authn.NewCodec(authn.CodecConfig{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	deps := &auth.Dependencies{
		Users:       s.store,
		Codec:       codec,
		Local:       authn.NewLocalStrategy(s.store, s.metrics),
		OAuth:       authn.NewOAuthStrategy(s.store, s.metrics),
		FrontendURL: cfg.FrontendURL,
	}

	secure := strings.HasPrefix(cfg.BaseURL, "https://")

	var revoked authn.Revoker
	if cfg.TokenRevocationEnabled {
		var store revocation.Store
		if s.redis != nil {
			store = revocation.NewRedisStore(s.redis)
		} else {
			store = revocation.NewMemoryStore(revocationCacheSize, cfg.AccessTTL)
		}

		deps.Revoker = store
		revoked = store
		logger.Info("token revocation enabled", "redis", s.redis != nil)
	}

	if cfg.LegacySessionsEnabled {
		sessions, err := authn.NewSessionManager(cfg.SessionSecret, secure, s.store)
		if err != nil {
			return fmt.Errorf("failed to create session manager: %w", err)
		}

		deps.Sessions = sessions
		logger.Info("legacy cookie sessions enabled")
	}

	if cfg.GoogleEnabled() {
		stateSecret := cfg.SessionSecret
		if stateSecret == "" {
			stateSecret = cfg.AccessSecret
		}

		google, err := authn.NewGoogleProvider(authn.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			CallbackURL:  strings.TrimRight(cfg.BaseURL, "/") + "/api/auth/google/callback",
			StateSecret:  stateSecret,
			Secure:       secure,
		})
		if err != nil {
			return fmt.Errorf("failed to create google provider: %w", err)
		}

		deps.Google = google
		logger.Info("google sign-in enabled")
	} else {
		logger.Info("google sign-in disabled", "reason", "GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
	}

	bearer := authn.NewBearerStrategy(codec, s.store, revoked, s.metrics)
	s.authn = authn.NewAuthenticator(bearer, deps.Sessions, s.metrics)
	s.auth = deps

	return nil
}

// releases database and redis connections
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
