package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/esgfolio/internal/models"
)

var (
	editSet    []string
	editDryRun bool
)

var editCmd = &cobra.Command{
	Use:   "edit --set <holding-id>=<percent>...",
	Short: "Edit several allocations of one portfolio and save them together",
	Long: `Edit allocations of one portfolio. Changes are applied to a working copy and
saved only if the new total stays within 100%. With --dry-run the working copy
is shown and discarded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(editSet) == 0 {
			return &models.ValidationError{Field: "set", Message: "at least one --set id=percent is required"}
		}

		a, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		name := a.ResolvePortfolio(portfolio)

		sess := a.NewSession()
		if err := sess.Begin(name); err != nil {
			return err
		}
		for _, kv := range editSet {
			id, value, ok := strings.Cut(kv, "=")
			if !ok {
				return &models.ValidationError{Field: "set", Message: fmt.Sprintf("%q is not id=percent", kv)}
			}
			if err := sess.SetAllocationText(strings.TrimSpace(id), value); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if editDryRun {
			fmt.Fprint(out, formatPortfolioHoldings(name, sess.Working(), sess.Stats(), true))
			return sess.Cancel()
		}

		report, err := sess.Save(cmd.Context())
		if report != nil {
			fmt.Fprint(out, formatSaveReport(report))
		}
		if err != nil {
			return err
		}
		fmt.Fprint(out, "\n"+formatPortfolioHoldings(name, a.Store.Holdings(name), a.Store.Stats(name), false))
		return nil
	},
}

func init() {
	editCmd.Flags().StringArrayVar(&editSet, "set", nil, "holding-id=percent (repeatable)")
	editCmd.Flags().BoolVar(&editDryRun, "dry-run", false, "show the edited portfolio without saving")
}
