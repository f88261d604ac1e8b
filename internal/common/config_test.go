package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8090)
	}
	if cfg.DefaultPortfolio() != "Portfolio 1" {
		t.Errorf("DefaultPortfolio = %q, want %q", cfg.DefaultPortfolio(), "Portfolio 1")
	}
	if cfg.API.GetTimeout() != 30*time.Second {
		t.Errorf("API timeout = %v, want 30s", cfg.API.GetTimeout())
	}
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("ESGFOLIO_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_APIEnvOverrides(t *testing.T) {
	t.Setenv("ESGFOLIO_API_URL", "https://ratings.example.com/api")
	t.Setenv("ESGFOLIO_API_TOKEN", "tok")
	t.Setenv("ESGFOLIO_API_RATE_LIMIT", "3")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.API.BaseURL != "https://ratings.example.com/api" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Token != "tok" {
		t.Errorf("API.Token = %q, want tok", cfg.API.Token)
	}
	if cfg.API.RateLimit != 3 {
		t.Errorf("API.RateLimit = %d, want 3", cfg.API.RateLimit)
	}
}

func TestConfig_DefaultPortfolioEnvMovesToFront(t *testing.T) {
	t.Setenv("ESGFOLIO_DEFAULT_PORTFOLIO", "Portfolio 3")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	want := []string{"Portfolio 3", "Portfolio 1", "Portfolio 2"}
	if len(cfg.Portfolios) != len(want) {
		t.Fatalf("Portfolios = %v, want %v", cfg.Portfolios, want)
	}
	for i := range want {
		if cfg.Portfolios[i] != want[i] {
			t.Errorf("Portfolios[%d] = %q, want %q", i, cfg.Portfolios[i], want[i])
		}
	}
}

func TestConfig_ValidateRequired(t *testing.T) {
	cfg := NewDefaultConfig()
	missing := cfg.ValidateRequired()
	if len(missing) != 1 || missing[0] != "api.token" {
		t.Errorf("missing = %v, want [api.token]", missing)
	}

	cfg.API.Token = "tok"
	if missing := cfg.ValidateRequired(); len(missing) != 0 {
		t.Errorf("missing = %v, want none", missing)
	}
}

func TestLoadConfig_TOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "esgfolio.toml")
	content := `
portfolios = ["Core", "Satellite"]

[api]
base_url = "https://ratings.example.com/api"
timeout = "5s"

[catalog]
cache_ttl = "1m"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path, filepath.Join(dir, "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DefaultPortfolio() != "Core" {
		t.Errorf("DefaultPortfolio = %q, want Core", cfg.DefaultPortfolio())
	}
	if cfg.API.GetTimeout() != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg.API.GetTimeout())
	}
	if cfg.Catalog.GetCacheTTL() != time.Minute {
		t.Errorf("cache ttl = %v, want 1m", cfg.Catalog.GetCacheTTL())
	}
	// Untouched sections keep their defaults
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want default 8090", cfg.Server.Port)
	}
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("portfolios = ["), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected parse error for invalid TOML")
	}
}

func TestCatalogConfig_InvalidTTLFallsBack(t *testing.T) {
	c := CatalogConfig{CacheTTL: "soon"}
	if c.GetCacheTTL() != 10*time.Minute {
		t.Errorf("GetCacheTTL = %v, want 10m", c.GetCacheTTL())
	}
}
