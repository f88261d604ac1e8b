package app

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/esgfolio/internal/common"
	"github.com/bobmcallan/esgfolio/internal/interfaces"
	"github.com/bobmcallan/esgfolio/internal/server"
	"github.com/bobmcallan/esgfolio/internal/services/catalog"
	"github.com/bobmcallan/esgfolio/internal/storage/sqlite"
)

// ServerApp holds the development API server and its storage.
type ServerApp struct {
	Config  *common.Config
	Logger  *common.Logger
	Storage *sqlite.Store
	Server  *server.Server
}

// NewServerApp opens storage, seeds the catalog from the configured file
// and builds the HTTP server.
func NewServerApp(ctx context.Context, config *common.Config, logger *common.Logger) (*ServerApp, error) {
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	store, err := sqlite.NewStore(logger.WithComponent("storage"), config.Server.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if config.Catalog.File != "" {
		if err := SeedCatalog(ctx, store, catalog.NewFileSource(config.Catalog.File), logger); err != nil {
			store.Close()
			return nil, err
		}
	}

	return &ServerApp{
		Config:  config,
		Logger:  logger,
		Storage: store,
		Server:  server.NewServer(store, config, logger.WithComponent("server")),
	}, nil
}

// SeedCatalog copies every company from source into storage.
func SeedCatalog(ctx context.Context, store interfaces.PortfolioStorage, source interfaces.CatalogSource, logger *common.Logger) error {
	start := time.Now()
	companies, err := source.GetCompanies(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	if err := store.SaveCompanies(ctx, companies); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	logger.Info().Int("companies", len(companies)).Dur("elapsed", time.Since(start)).Msg("Catalog seeded")
	return nil
}

// Close releases storage.
func (a *ServerApp) Close() {
	if err := a.Storage.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close storage")
	}
}
