// Command esgfolio manages ESG-rated portfolio allocations against the
// portfolio API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/esgfolio/internal/app"
	"github.com/bobmcallan/esgfolio/internal/common"
	"github.com/bobmcallan/esgfolio/internal/models"
)

var (
	configPath string
	portfolio  string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "esgfolio",
	Short:         "Manage ESG portfolio allocations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: esgfolio.toml beside the binary, then config/esgfolio.toml)")
	rootCmd.PersistentFlags().StringVarP(&portfolio, "portfolio", "p", "", "portfolio name (default: first configured portfolio)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		portfoliosCmd,
		showCmd,
		addISINCmd,
		addNameCmd,
		editCmd,
		removeCmd,
		companiesCmd,
		tokenCmd,
		versionCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

// loadConfig reads configuration and applies the --log-level flag.
func loadConfig() (*common.Config, error) {
	config, err := common.LoadConfig(app.ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
	return config, nil
}

// loadApp builds the app and loads the caller's portfolios.
func loadApp(ctx context.Context) (*app.App, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.NewWithConfig(config, common.NewLoggerFromConfig(config.Logging))
	if err != nil {
		return nil, err
	}
	if _, err := a.Store.LoadPortfolios(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// describeError renders domain errors as user-facing messages.
func describeError(err error) string {
	var (
		exceeded *models.AllocationExceededError
		persist  *models.PersistError
		fetch    *models.FetchError
		invalid  *models.ValidationError
	)
	switch {
	case errors.As(err, &exceeded):
		return fmt.Sprintf("Total allocation cannot exceed 100%%: %.2f%% already allocated, %.2f%% requested.",
			exceeded.Current, exceeded.Attempted)
	case errors.As(err, &invalid):
		return "Invalid input: " + invalid.Error()
	case errors.As(err, &persist):
		return "Could not save changes: " + persist.Error()
	case errors.As(err, &fetch):
		return "Could not load data: " + fetch.Error()
	default:
		return "Error: " + err.Error()
	}
}
