package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"codeberg.org/storefront/server/internal/auth"
	"codeberg.org/storefront/server/internal/config"
	"codeberg.org/storefront/server/storefront/users"
)

// mints a token pair for a local test account, creating it when missing
func main() {
	email := flag.String("email", "test@storefront.dev", "test account email")
	admin := flag.Bool("admin", false, "give the test account the admin role")
	flag.Parse()

	cfg, err := config.LoadEnvironmentVariables()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.DatabaseDriver != config.DriverPostgres {
		log.Fatalf("gen_test_token only supports DATABASE_DRIVER=postgres, got %q", cfg.DatabaseDriver)
	}

	ctx := context.Background()

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	repo := users.NewRepository(dbPool)

	role := users.RoleUser
	if *admin {
		role = users.RoleAdmin
	}

	user, err := repo.FindByEmail(ctx, *email)
	switch {
	case errors.Is(err, users.ErrNotFound):
		user = &users.User{
			Name:     "Test User",
			Email:    *email,
			Role:     role,
			Provider: users.ProviderGoogle,
			// google-linked accounts need no password hash
			ProviderID: "test-user-" + *email,
			IsVerified: true,
			IsActive:   true,
		}

		if err := repo.Create(ctx, user); err != nil {
			log.Fatalf("Failed to create test user: %v", err)
		}
		fmt.Printf("Created test user: %s (ID: %s)\n", user.Email, user.ID)

	case err != nil:
		log.Fatalf("Failed to look up test user: %v", err)

	default:
		if user.Role != role {
			if user, err = repo.UpdateRole(ctx, user.ID, role); err != nil {
				log.Fatalf("Failed to update test user role: %v", err)
			}
		}
		fmt.Printf("Using existing test user (ID: %s)\n", user.ID)
	}

	codec, err := auth.NewCodec(auth.CodecConfig{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		log.Fatalf("Failed to create token codec: %v", err)
	}

	pair, err := codec.IssuePair(auth.IdentityOf(user))
	if err != nil {
		log.Fatalf("Failed to issue tokens: %v", err)
	}

	fmt.Printf("\nrole: %s, expires in %ds\n", user.Role, pair.ExpiresIn)
	fmt.Printf("\naccess token:\n%s\n", pair.AccessToken)
	fmt.Printf("\nrefresh token:\n%s\n", pair.RefreshToken)
	fmt.Printf("\ncurl -H 'Authorization: Bearer %s' %s/api/auth/me\n", pair.AccessToken, cfg.BaseURL)
}
