// Command esgfolio-server runs the development portfolio API backed by SQLite.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/esgfolio/internal/app"
	"github.com/bobmcallan/esgfolio/internal/common"
)

func main() {
	// Config path comes from ESGFOLIO_CONFIG or the default locations
	config, err := common.LoadConfig(app.ResolveConfigPath(""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := common.NewLoggerFromConfig(config.Logging)

	if config.Server.JWTSecret == "" ||
		(config.IsProduction() && config.Server.JWTSecret == common.NewDefaultConfig().Server.JWTSecret) {
		logger.Fatal().Msg("server.jwt_secret must be set (or ESGFOLIO_JWT_SECRET)")
	}

	a, err := app.NewServerApp(context.Background(), config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize server")
	}

	common.PrintBanner(os.Stdout, config, logger)

	go func() {
		if err := a.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	common.PrintShutdownBanner(os.Stdout, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	a.Close()
	logger.Info().Msg("Server stopped")
}
