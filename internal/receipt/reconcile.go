package receipt

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// reconciliation is the outcome of comparing summed line items against the
// declared transaction amount. A mismatch is a first-class validation
// outcome, not an error.
type reconciliation struct {
	Matches    bool
	Difference decimal.Decimal
	Warnings   []string
}

// reconcileTotals sums the extracted line items and compares the sum
// against the declared transaction amount within tolerance. Sums are
// rounded to currency precision before comparison to keep floating-point
// noise out of the difference.
func reconcileTotals(items []LineItem, amount *decimal.Decimal, tolerance decimal.Decimal) reconciliation {
	if amount == nil {
		return reconciliation{
			Matches:    false,
			Difference: decimal.Zero,
			Warnings:   []string{"transaction amount missing"},
		}
	}

	if len(items) == 0 {
		// Nothing to sum; skip reconciliation instead of reporting a
		// false mismatch against a zero total.
		return reconciliation{
			Matches:    true,
			Difference: decimal.Zero,
			Warnings:   []string{"no line items detected"},
		}
	}

	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(decimal.NewFromFloat(item.LineAmount))
	}
	sum = sum.Round(2)

	difference := sum.Sub(amount.Round(2)).Abs().Round(2)
	matches := difference.LessThanOrEqual(tolerance)

	r := reconciliation{
		Matches:    matches,
		Difference: difference,
	}
	if !matches {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"line items total (%s) does not match transaction amount (%s)",
			sum.StringFixed(2), amount.Round(2).StringFixed(2)))
	}

	return r
}
