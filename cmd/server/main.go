package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/storefront/server/internal/config"
	"codeberg.org/storefront/server/internal/logger"
)

// @title Storefront API
// @version 1.0
// @description Authentication and account management for the storefront
// @description
// @description Features:
// @description - Email and password accounts with JWT access and refresh tokens
// @description - Google sign-in
// @description - Admin role management

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token for authenticated requests. Format: Bearer {token}

func main() {
	// load configuration from environment
	cfg, err := config.LoadEnvironmentVariables()
	if err != nil {
		logger.FatalErr(err, "failed to load configuration")
	}

	logger.SetDefault(logger.New(cfg.Environment))
	logger.Info("starting storefront server", "environment", cfg.Environment)

	// create server with all dependencies
	srv, err := NewServer(cfg)
	if err != nil {
		logger.FatalErr(err, "failed to create server")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Default().Handler(), slog.LevelWarn),
	}

	// start server in goroutine
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalErr(err, "server failed to start")
		}
	}()

	// wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// graceful shutdown with 10 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// close database and redis connections
	srv.Close()

	logger.Info("server stopped")
}
