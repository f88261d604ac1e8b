// Package ingest turns user input into add batches for the holding store.
package ingest

import (
	"context"
	"strings"
	"unicode"

	"github.com/bobmcallan/esgfolio/internal/allocation"
	"github.com/bobmcallan/esgfolio/internal/interfaces"
	"github.com/bobmcallan/esgfolio/internal/models"
)

// Allocation is the shared percentage typed once for a batch.
type Allocation struct {
	Percent string // typed text; blank means no shared percentage
	Without bool   // "without allocation": every entry gets 0
}

// shared returns the parsed shared percentage, or nil when none was typed.
func (a Allocation) shared() *float64 {
	if a.Without {
		return models.Float(0)
	}
	if strings.TrimSpace(a.Percent) == "" {
		return nil
	}
	return models.Float(allocation.ParsePercentText(a.Percent))
}

// ByName builds a batch from selected catalog entries. Every entry gets the
// full shared percentage, not a share of it.
func ByName(selected []models.Company, opt Allocation) ([]models.Addition, error) {
	if len(selected) == 0 {
		return nil, &models.ValidationError{Field: "companies", Message: "select at least one company"}
	}

	pct := 0.0
	if p := opt.shared(); p != nil {
		pct = *p
	}

	additions := make([]models.Addition, 0, len(selected))
	for _, c := range selected {
		key := strings.TrimSpace(c.ISIN)
		if key == "" {
			key = strings.TrimSpace(c.CompanyName)
		}
		if key == "" {
			continue
		}
		additions = append(additions, models.Addition{Key: key, AUM: pct})
	}
	if len(additions) == 0 {
		return nil, &models.ValidationError{Field: "companies", Message: "selected companies have no ISIN or name"}
	}
	return additions, nil
}

// ByCompanyNames resolves names against the catalog and builds a batch with ByName.
func ByCompanyNames(ctx context.Context, catalog interfaces.CatalogService, names []string, opt Allocation) ([]models.Addition, error) {
	if len(names) == 0 {
		return nil, &models.ValidationError{Field: "companies", Message: "select at least one company"}
	}
	companies, err := catalog.ResolveNames(ctx, names)
	if err != nil {
		return nil, err
	}
	return ByName(companies, opt)
}

// ByISINText parses free text with one "ISIN[, percentage]" entry per line.
func ByISINText(text string, opt Allocation) ([]models.Addition, error) {
	def := opt.shared()

	var additions []models.Addition
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		a, ok := ParseLine(line, def)
		if !ok {
			continue
		}
		if opt.Without {
			a.AUM = 0
		}
		additions = append(additions, a)
	}

	if len(additions) == 0 {
		return nil, &models.ValidationError{Field: "isins", Message: "enter at least one ISIN"}
	}
	return additions, nil
}

// ParseLine splits one line on comma and whitespace runs. The first token is
// the ISIN; a second token is the percentage and takes precedence over def.
// With neither the allocation is 0. ok is false when the line has no tokens.
func ParseLine(line string, def *float64) (models.Addition, bool) {
	tokens := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(tokens) == 0 {
		return models.Addition{}, false
	}

	a := models.Addition{Key: tokens[0]}
	switch {
	case len(tokens) > 1:
		a.AUM = allocation.ParsePercentText(tokens[1])
	case def != nil:
		a.AUM = allocation.NormalizePercent(*def)
	}
	return a, true
}
