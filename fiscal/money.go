/*
Package fiscal provides the shared primitives of the fiscal engine.

PURPOSE:
  Domain types used by both the tax calculator and the obligation ledger:
  monetary amounts, calendar arithmetic, yearly parameter tables, regime
  flags and the error taxonomy. Nothing in this package persists anything.

KEY CONCEPTS IN THIS FILE (money.go):
  - Amounts are decimal.Decimal, never float64
  - Round: round-half-up to the cent, applied at persistence/display points
  - NonNegative: revenue-shaped inputs clamp to zero instead of failing

DESIGN PRINCIPLES:
  1. Precision: decimal arithmetic end to end, rounding only at boundaries
  2. Graceful degradation: negative revenue is zero revenue
  3. Explicit years: every rate comes from a ParameterSet looked up by year

SEE ALSO:
  - params.go: ParameterSet and the year-keyed Table
  - time.go: Date, YearMonth, Period
  - errors.go: sentinel and structured errors
*/
package fiscal

import (
	"github.com/shopspring/decimal"
)

// CentPlaces is the number of decimal places kept for currency amounts.
const CentPlaces = 2

// Round rounds an amount to the cent, half away from zero. For the
// non-negative amounts this engine produces that is round-half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(CentPlaces)
}

// NonNegative clamps negative amounts to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
