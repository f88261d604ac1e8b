// Package common provides shared utilities for esgfolio
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// DefaultPortfolioNames are the portfolio tabs offered when the config names none.
var DefaultPortfolioNames = []string{"Portfolio 1", "Portfolio 2", "Portfolio 3"}

// Config holds all configuration for esgfolio
type Config struct {
	Environment string        `toml:"environment"`
	Portfolios  []string      `toml:"portfolios"`
	API         APIConfig     `toml:"api"`
	Catalog     CatalogConfig `toml:"catalog"`
	Server      ServerConfig  `toml:"server"`
	Logging     LoggingConfig `toml:"logging"`
}

// APIConfig holds the remote portfolio API configuration
type APIConfig struct {
	BaseURL   string `toml:"base_url"`
	Token     string `toml:"token"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *APIConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// CatalogConfig holds the reference company catalog configuration.
// When File is set the catalog is read from disk instead of the remote API.
type CatalogConfig struct {
	File     string `toml:"file"`
	CacheTTL string `toml:"cache_ttl"`
}

// GetCacheTTL parses and returns the catalog cache TTL
func (c *CatalogConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// ServerConfig holds the development API server configuration
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	DatabasePath string `toml:"database_path"`
	JWTSecret    string `toml:"jwt_secret"`
	TokenExpiry  string `toml:"token_expiry"` // duration string, default "24h"
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *ServerConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Portfolios:  append([]string(nil), DefaultPortfolioNames...),
		API: APIConfig{
			BaseURL:   "http://localhost:8090/api",
			RateLimit: 10,
			Timeout:   "30s",
		},
		Catalog: CatalogConfig{
			CacheTTL: "10m",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8090,
			DatabasePath: "data/esgfolio.db",
			JWTSecret:    "dev-jwt-secret-change-in-production",
			TokenExpiry:  "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPortfolio returns the first portfolio in the list (the default), or empty string.
func (c *Config) DefaultPortfolio() string {
	if len(c.Portfolios) > 0 {
		return c.Portfolios[0]
	}
	return ""
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// LoadConfig loads configuration from files with environment overrides.
// A .env file in the working directory is loaded first; variables already
// present in the environment win.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if len(config.Portfolios) == 0 {
		config.Portfolios = append([]string(nil), DefaultPortfolioNames...)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ESGFOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if v := os.Getenv("ESGFOLIO_API_URL"); v != "" {
		config.API.BaseURL = v
	}
	if v := os.Getenv("ESGFOLIO_API_TOKEN"); v != "" {
		config.API.Token = v
	}
	if v := os.Getenv("ESGFOLIO_API_TIMEOUT"); v != "" {
		config.API.Timeout = v
	}
	if v := os.Getenv("ESGFOLIO_API_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.API.RateLimit = n
		}
	}

	if v := os.Getenv("ESGFOLIO_CATALOG_FILE"); v != "" {
		config.Catalog.File = v
	}

	if host := os.Getenv("ESGFOLIO_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("ESGFOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if v := os.Getenv("ESGFOLIO_DB_PATH"); v != "" {
		config.Server.DatabasePath = v
	}
	if v := os.Getenv("ESGFOLIO_JWT_SECRET"); v != "" {
		config.Server.JWTSecret = v
	}

	if level := os.Getenv("ESGFOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if dp := os.Getenv("ESGFOLIO_DEFAULT_PORTFOLIO"); dp != "" {
		// Move (or add) dp to the front, preserving the others
		filtered := []string{dp}
		for _, p := range config.Portfolios {
			if p != dp {
				filtered = append(filtered, p)
			}
		}
		config.Portfolios = filtered
	}
}

// ValidateRequired returns the config keys that must be set before talking
// to the remote API.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if strings.TrimSpace(c.API.BaseURL) == "" {
		missing = append(missing, "api.base_url")
	}
	if strings.TrimSpace(c.API.Token) == "" {
		missing = append(missing, "api.token")
	}
	return missing
}
