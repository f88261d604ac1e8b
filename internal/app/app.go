// Package app wires configuration, logging, clients and services into the
// shared core used by cmd/esgfolio and cmd/esgfolio-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobmcallan/esgfolio/internal/clients/esgapi"
	"github.com/bobmcallan/esgfolio/internal/common"
	"github.com/bobmcallan/esgfolio/internal/interfaces"
	"github.com/bobmcallan/esgfolio/internal/models"
	"github.com/bobmcallan/esgfolio/internal/services/catalog"
	"github.com/bobmcallan/esgfolio/internal/services/holdings"
	"github.com/bobmcallan/esgfolio/internal/services/ingest"
	"github.com/bobmcallan/esgfolio/internal/services/session"
)

// App holds the initialized client, catalog and holding store for one caller.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Remote      interfaces.PortfolioRemote
	Catalog     *catalog.Service
	Store       *holdings.Store
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, ESGFOLIO_CONFIG,
// esgfolio.toml next to the binary, then config/esgfolio.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("ESGFOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "esgfolio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/esgfolio.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and builds the client-side services.
func NewApp(configPath string) (*App, error) {

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	return NewWithConfig(config, logger)
}

// NewWithConfig builds the client-side services from an already loaded config.
func NewWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	if missing := config.ValidateRequired(); len(missing) > 0 {
		return nil, fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	client := esgapi.NewClient(config.API.Token,
		esgapi.WithBaseURL(config.API.BaseURL),
		esgapi.WithLogger(logger.WithComponent("esgapi")),
		esgapi.WithRateLimit(config.API.RateLimit),
		esgapi.WithTimeout(config.API.GetTimeout()),
	)

	var source interfaces.CatalogSource = client
	if config.Catalog.File != "" {
		source = catalog.NewFileSource(config.Catalog.File)
		logger.Debug().Str("file", config.Catalog.File).Msg("Using catalog file")
	}

	a := &App{
		Config:      config,
		Logger:      logger,
		Remote:      client,
		Catalog:     catalog.NewService(source, config.Catalog.GetCacheTTL(), logger.WithComponent("catalog")),
		Store:       holdings.NewStore(client, logger.WithComponent("holdings")),
		StartupTime: startupStart,
	}

	logger.Debug().
		Str("api", config.API.BaseURL).
		Dur("elapsed", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// ResolvePortfolio returns name, or the configured default portfolio when name is blank.
func (a *App) ResolvePortfolio(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return a.Config.DefaultPortfolio()
}

// NewSession starts an edit session in view state over the app's store.
func (a *App) NewSession() *session.Session {
	return session.New(a.Store, a.Logger.WithComponent("session"))
}

// AddByISINText parses ISIN lines and commits them to portfolio.
func (a *App) AddByISINText(ctx context.Context, portfolio, text string, opt ingest.Allocation) (*models.Portfolio, error) {
	additions, err := ingest.ByISINText(text, opt)
	if err != nil {
		return nil, err
	}
	return a.Store.CommitAdditions(ctx, a.ResolvePortfolio(portfolio), additions)
}

// AddByNames resolves company names against the catalog and commits them to portfolio.
func (a *App) AddByNames(ctx context.Context, portfolio string, names []string, opt ingest.Allocation) (*models.Portfolio, error) {
	additions, err := ingest.ByCompanyNames(ctx, a.Catalog, names, opt)
	if err != nil {
		return nil, err
	}
	return a.Store.CommitAdditions(ctx, a.ResolvePortfolio(portfolio), additions)
}
