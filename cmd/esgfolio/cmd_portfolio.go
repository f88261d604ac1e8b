package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var portfoliosCmd = &cobra.Command{
	Use:   "portfolios",
	Short: "List portfolios that hold at least one company",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		names := a.Store.Names()
		totals := make(map[string]float64, len(names))
		for _, n := range names {
			totals[n] = a.Store.CurrentTotal(n)
		}
		fmt.Fprint(cmd.OutOrStdout(), formatPortfolioList(names, totals))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a portfolio's holdings, weighted ESG score and rating",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		name := a.ResolvePortfolio(portfolio)
		fmt.Fprint(cmd.OutOrStdout(), formatPortfolioHoldings(name, a.Store.Holdings(name), a.Store.Stats(name), false))
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <holding-id>...",
	Short: "Remove holdings by id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := a.Store.RemoveHolding(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed holding %s\n", id)
		}
		return nil
	},
}
