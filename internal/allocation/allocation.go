// Package allocation provides the pure percentage, score and rating
// calculations behind portfolio statistics.
package allocation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bobmcallan/esgfolio/internal/models"
)

// ClampPercent bounds n to [0, 100]. Callers pass 0 instead of a non-finite value.
func ClampPercent(n float64) float64 {
	return math.Min(100, math.Max(0, n))
}

// NormalizePercent clamps n, mapping NaN and infinities to 0.
func NormalizePercent(n float64) float64 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return ClampPercent(n)
}

// ParseEsgScore accepts a number or a numeric string ("78", "78.2", "78%")
// and returns the score clamped to [0, 100]. ok is false for nil, empty or
// non-numeric input.
func ParseEsgScore(value any) (score float64, ok bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return finiteScore(v)
	case float32:
		return finiteScore(float64(v))
	case int:
		return finiteScore(float64(v))
	case int64:
		return finiteScore(float64(v))
	case *float64:
		if v == nil {
			return 0, false
		}
		return finiteScore(*v)
	case json.Number:
		return parseScoreString(v.String())
	case string:
		return parseScoreString(v)
	case *string:
		if v == nil {
			return 0, false
		}
		return parseScoreString(*v)
	default:
		return 0, false
	}
}

// ParsePercentText converts typed allocation text to a percentage. Blank or
// unparsable text yields 0; a trailing "%" is accepted; the result is clamped.
func ParsePercentText(raw string) float64 {
	n, ok := parseScoreString(raw)
	if !ok {
		return 0
	}
	return n
}

func parseScoreString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finiteScore(n)
}

func finiteScore(n float64) (float64, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return ClampPercent(n), true
}

// ScoreToRatingBand maps a composite score to its rating band. Thresholds are
// checked top-down and the first match wins.
func ScoreToRatingBand(score float64) models.RatingBand {
	s := ClampPercent(score)
	switch {
	case s > 75:
		return models.RatingAPlus
	case s >= 70:
		return models.RatingA
	case s >= 65:
		return models.RatingBPlus
	case s >= 60:
		return models.RatingB
	case s >= 55:
		return models.RatingCPlus
	case s >= 50:
		return models.RatingC
	default:
		return models.RatingD
	}
}

// WeightedPortfolioStats computes the total allocation and the
// allocation-weighted average score of holdings. Only holdings with a score
// and a strictly positive allocation weight the average.
func WeightedPortfolioStats(holdings []models.Holding) models.PortfolioStats {
	var total, weighted, weight float64

	for _, h := range holdings {
		pct := 0.0
		if h.AUMValue != nil {
			pct = NormalizePercent(*h.AUMValue)
		}
		total += pct

		score, ok := ParseEsgScore(h.ESGComposite)
		if ok && pct > 0 {
			weighted += score * pct
			weight += pct
		}
	}

	avg := 0.0
	if weight > 0 {
		avg = weighted / weight
	}

	return models.PortfolioStats{
		TotalAllocation: total,
		AverageScore:    avg,
		AverageRating:   ScoreToRatingBand(avg),
	}
}
