package main

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/esgfolio/internal/allocation"
	"github.com/bobmcallan/esgfolio/internal/models"
	"github.com/bobmcallan/esgfolio/internal/services/session"
)

func formatPct(v float64) string { return allocation.FormatPercent(v) + "%" }

// truncate shortens s to n runes, ending in "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

// formatBudget shows the allocation left under 100% and whether the total is within it.
func formatBudget(total float64) string {
	sum := allocation.SumAllocations(total)
	note := "Within limit"
	if allocation.OverBudget(sum) {
		note = "Exceeds 100%"
	}
	return fmt.Sprintf("%s%% (%s)", allocation.Remaining(sum).StringFixed(2), note)
}

func formatRating(band models.RatingBand) string {
	if band == "" {
		return "-"
	}
	if cat := band.Category(); cat != "" {
		return fmt.Sprintf("%s (%s)", band, cat)
	}
	return band.String()
}

// formatPortfolioHoldings formats a portfolio's holdings and stats as markdown
func formatPortfolioHoldings(name string, holdings []models.Holding, stats models.PortfolioStats, editing bool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Portfolio: %s\n\n", name))
	if editing {
		sb.WriteString("_Unsaved edits_\n\n")
	}
	sb.WriteString(fmt.Sprintf("**Total Allocation:** %s\n", formatPct(stats.TotalAllocation)))
	sb.WriteString(fmt.Sprintf("**Remaining:** %s\n", formatBudget(stats.TotalAllocation)))
	sb.WriteString(fmt.Sprintf("**Weighted ESG Score:** %.2f\n", stats.AverageScore))
	sb.WriteString(fmt.Sprintf("**Rating:** %s\n\n", formatRating(stats.AverageRating)))

	if len(holdings) == 0 {
		sb.WriteString("No holdings. Use `add-isin` or `add-name` to add companies.\n")
		return sb.String()
	}

	sb.WriteString("| ID | ISIN | Company | Allocation | ESG Score | Rating |\n")
	sb.WriteString("|----|------|---------|------------|-----------|--------|\n")
	for _, h := range holdings {
		score := "-"
		if v, ok := allocation.ParseEsgScore(h.ESGComposite); ok {
			score = fmt.Sprintf("%.2f", v)
		}
		rating := "-"
		if h.ESGRating != nil {
			rating = h.ESGRating.String()
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			h.ID, h.ISIN, truncate(h.CompanyName, 30), formatPct(h.Allocation()), score, rating))
	}
	sb.WriteString("\n")

	return sb.String()
}

// formatPortfolioList formats the names of portfolios that hold companies
func formatPortfolioList(names []string, totals map[string]float64) string {
	var sb strings.Builder

	sb.WriteString("# Portfolios\n\n")

	if len(names) == 0 {
		sb.WriteString("No portfolios found. Add a company to create one.\n")
		return sb.String()
	}

	for i, name := range names {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s allocated)\n", i+1, name, formatPct(totals[name])))
	}

	return sb.String()
}

// formatCompanies formats catalog rows as markdown
func formatCompanies(companies []models.Company) string {
	var sb strings.Builder

	if len(companies) == 0 {
		return "No companies found.\n"
	}

	sb.WriteString("| ISIN | Company | Sector | ESG Score | Rating |\n")
	sb.WriteString("|------|---------|--------|-----------|--------|\n")
	for _, c := range companies {
		score := "-"
		if c.ESGComposite != nil {
			score = fmt.Sprintf("%.2f", *c.ESGComposite)
		}
		rating := c.ESGRating
		if rating == "" {
			rating = "-"
		}
		sector := c.Sector
		if sector == "" {
			sector = "-"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			c.ISIN, truncate(c.CompanyName, 30), sector, score, rating))
	}

	return sb.String()
}

// formatSaveReport formats the outcome of an edit save
func formatSaveReport(report *session.SaveReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Saved: %s\n\n", report.Portfolio))
	sb.WriteString(fmt.Sprintf("**Total Allocation:** %s\n", formatPct(report.Total)))
	sb.WriteString(fmt.Sprintf("**Updated:** %d\n", len(report.Succeeded)))
	if len(report.Failed) > 0 {
		sb.WriteString(fmt.Sprintf("**Failed:** %s\n", strings.Join(report.Failed, ", ")))
	}
	if len(report.Succeeded) == 0 && len(report.Failed) == 0 {
		sb.WriteString("\nNo allocations changed.\n")
	}

	return sb.String()
}
