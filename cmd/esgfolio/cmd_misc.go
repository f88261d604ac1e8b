package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/esgfolio/internal/app"
	"github.com/bobmcallan/esgfolio/internal/common"
	"github.com/bobmcallan/esgfolio/internal/server"
)

var companiesLimit int

var companiesCmd = &cobra.Command{
	Use:   "companies [query]",
	Short: "Search the reference company catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.NewWithConfig(config, common.NewLoggerFromConfig(config.Logging))
		if err != nil {
			return err
		}
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		companies, err := a.Catalog.Search(cmd.Context(), query, companiesLimit)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatCompanies(companies))
		return nil
	},
}

var tokenEmail string

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a development API token signed with server.jwt_secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		if config.IsProduction() {
			return fmt.Errorf("token issuing is disabled in production")
		}
		token, err := server.IssueToken(args[0], tokenEmail, &config.Server)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), common.CurrentBuild())
	},
}

func init() {
	companiesCmd.Flags().IntVarP(&companiesLimit, "limit", "n", 20, "maximum number of companies")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
}
