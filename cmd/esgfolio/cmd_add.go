package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/esgfolio/internal/services/ingest"
)

var (
	addPercent string
	addWithout bool
	addFile    string
)

var addISINCmd = &cobra.Command{
	Use:   "add-isin [ISIN[,percent]]...",
	Short: "Add companies by ISIN, one entry per argument or per line of --file",
	Long: `Add companies by ISIN. Each entry is "ISIN[, percent]". A per-entry percent
takes precedence over --percent; with neither the allocation is 0. Use --file -
to read lines from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, "\n")
		if addFile != "" {
			data, err := readInput(cmd.InOrStdin(), addFile)
			if err != nil {
				return err
			}
			text = strings.TrimSpace(text + "\n" + string(data))
		}

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		p, err := a.AddByISINText(cmd.Context(), portfolio, text, ingest.Allocation{Percent: addPercent, Without: addWithout})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatPortfolioHoldings(p.Name, p.Holdings, a.Store.Stats(p.Name), false))
		return nil
	},
}

var addNameCmd = &cobra.Command{
	Use:   "add-name <company name>...",
	Short: "Add catalog companies by name, each with the full --percent",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		p, err := a.AddByNames(cmd.Context(), portfolio, args, ingest.Allocation{Percent: addPercent, Without: addWithout})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatPortfolioHoldings(p.Name, p.Holdings, a.Store.Stats(p.Name), false))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{addISINCmd, addNameCmd} {
		c.Flags().StringVar(&addPercent, "percent", "", "allocation percent applied to each company")
		c.Flags().BoolVar(&addWithout, "without-allocation", false, "add companies with 0% allocation")
	}
	addISINCmd.Flags().StringVarP(&addFile, "file", "f", "", "read ISIN lines from a file, or - for stdin")
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
