package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/esgfolio/internal/models"
)

var (
	budgetCap = decimal.NewFromFloat(models.AllocationBudget).Add(decimal.NewFromFloat(models.AllocationEpsilon))
	hundred   = decimal.NewFromInt(100)
)

// SumAllocations adds percentages as decimals, so "2.01" + "97.99" is exactly 100.
func SumAllocations(values ...float64) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum
}

// HoldingsTotal is the decimal sum of holding allocations, unset counting as
// 0. Each allocation is clamped as in WeightedPortfolioStats.
func HoldingsTotal(holdings []models.Holding) decimal.Decimal {
	sum := decimal.Zero
	for _, h := range holdings {
		sum = sum.Add(decimal.NewFromFloat(NormalizePercent(h.Allocation())))
	}
	return sum
}

// AdditionsTotal is the decimal sum of an add batch.
func AdditionsTotal(additions []models.Addition) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range additions {
		sum = sum.Add(decimal.NewFromFloat(a.AUM))
	}
	return sum
}

// OverBudget reports whether total reaches 100 + epsilon.
func OverBudget(total decimal.Decimal) bool {
	return total.GreaterThanOrEqual(budgetCap)
}

// ExceedsBudget reports whether adding to current would go over budget.
func ExceedsBudget(current, adding decimal.Decimal) bool {
	return OverBudget(current.Add(adding))
}

// Remaining is the allocation still available under the budget, never negative.
func Remaining(current decimal.Decimal) decimal.Decimal {
	left := hundred.Sub(current)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// FormatPercent renders a percentage with two decimals.
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
