/*
params.go - Yearly fiscal parameter sets

PURPOSE:
  Every rate the engine applies comes from a ParameterSet keyed by calendar
  year. Adding a fiscal year is a data change (see factory/), never a code
  change, and asking for a year that has no set is a fatal error rather than
  a silent fallback to the closest year.

INVARIANTS (checked by Validate):
  - all rates in [0, 1]
  - brackets start at 0, are contiguous, strictly increasing, and only the
    last one is unbounded
  - abatements in [0, 1), ceilings positive

SEE ALSO:
  - factory/params.go: JSON parsing and the embedded default tables
  - tax/calculator.go: the only consumer of the rates
*/
package fiscal

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACTIVITY CLASS
// =============================================================================

// ActivityClass selects revenue ceilings and flat-rate abatements.
type ActivityClass string

const (
	ActivityService ActivityClass = "service" // services, non-commercial profits
	ActivityGoods   ActivityClass = "goods"   // sale of goods, accommodation
	ActivityMixed   ActivityClass = "mixed"   // goods and services
)

// ActivityClasses lists the classes every parameter set must cover.
var ActivityClasses = []ActivityClass{ActivityService, ActivityGoods, ActivityMixed}

func (c ActivityClass) Valid() bool {
	for _, known := range ActivityClasses {
		if c == known {
			return true
		}
	}
	return false
}

// =============================================================================
// BRACKET - One slice of the progressive income-tax scale
// =============================================================================

// Bracket taxes the part of the household quotient within [Lower, Upper)
// at Rate. A nil Upper marks the last, unbounded bracket.
type Bracket struct {
	Lower decimal.Decimal
	Upper *decimal.Decimal
	Rate  decimal.Decimal
}

func (b Bracket) Unbounded() bool { return b.Upper == nil }

// Label renders the bracket bounds for per-bracket detail lines.
func (b Bracket) Label() string {
	if b.Unbounded() {
		return fmt.Sprintf("%s+", b.Lower.String())
	}
	return fmt.Sprintf("%s-%s", b.Lower.String(), b.Upper.String())
}

// =============================================================================
// PARAMETER SET
// =============================================================================

// ParameterSet holds the legal parameters of one calendar year.
// Treat it as immutable once it is part of a Table.
type ParameterSet struct {
	Year int

	ContributionRate     decimal.Decimal // standard social contribution rate
	AcreContributionRate decimal.Decimal // reduced rate while ACRE applies
	AcreTenureYears      int             // years after creation during which ACRE applies
	TrainingRate         decimal.Decimal // professional-training contribution, regime independent
	LiberatoryRate       decimal.Decimal // flat income-tax rate on revenue

	VATRate  decimal.Decimal
	VATStart YearMonth // exempt strictly before, liable from this month on

	Brackets   []Bracket
	Ceilings   map[ActivityClass]decimal.Decimal
	Abatements map[ActivityClass]decimal.Decimal
}

// ContributionRateFor returns the social contribution rate, excluding training.
func (p ParameterSet) ContributionRateFor(acre bool) decimal.Decimal {
	if acre {
		return p.AcreContributionRate
	}
	return p.ContributionRate
}

// Ceiling returns the revenue ceiling for class, falling back to services.
func (p ParameterSet) Ceiling(class ActivityClass) decimal.Decimal {
	if c, ok := p.Ceilings[class]; ok {
		return c
	}
	return p.Ceilings[ActivityService]
}

// Abatement returns the flat-rate abatement for class, falling back to services.
func (p ParameterSet) Abatement(class ActivityClass) decimal.Decimal {
	if a, ok := p.Abatements[class]; ok {
		return a
	}
	return p.Abatements[ActivityService]
}

// VATLiable reports whether month falls on or after the VAT start month.
func (p ParameterSet) VATLiable(month YearMonth) bool {
	return !month.Before(p.VATStart)
}

// Validate checks the set's invariants.
func (p ParameterSet) Validate() error {
	fail := func(format string, args ...any) error {
		return &ParameterError{Year: p.Year, Reason: fmt.Sprintf(format, args...)}
	}

	if p.Year <= 0 {
		return fail("year must be positive")
	}

	rates := map[string]decimal.Decimal{
		"contribution rate":      p.ContributionRate,
		"acre contribution rate": p.AcreContributionRate,
		"training rate":          p.TrainingRate,
		"liberatory rate":        p.LiberatoryRate,
		"vat rate":               p.VATRate,
	}
	for name, r := range rates {
		if !isRate(r) {
			return fail("%s %s outside [0, 1]", name, r)
		}
	}
	if p.AcreTenureYears < 0 {
		return fail("acre tenure must not be negative")
	}
	if p.VATStart.IsZero() || p.VATStart.Month < 1 || p.VATStart.Month > 12 {
		return fail("vat start month is required")
	}

	if len(p.Brackets) == 0 {
		return fail("at least one income-tax bracket is required")
	}
	if !p.Brackets[0].Lower.IsZero() {
		return fail("first bracket must start at 0")
	}
	for i, b := range p.Brackets {
		if !isRate(b.Rate) {
			return fail("bracket %d rate %s outside [0, 1]", i, b.Rate)
		}
		last := i == len(p.Brackets)-1
		if b.Unbounded() != last {
			return fail("only the last bracket may be unbounded (bracket %d)", i)
		}
		if !last {
			if !b.Upper.GreaterThan(b.Lower) {
				return fail("bracket %d upper bound must exceed its lower bound", i)
			}
			if !p.Brackets[i+1].Lower.Equal(*b.Upper) {
				return fail("bracket %d does not start where bracket %d ends", i+1, i)
			}
		}
	}

	for _, class := range ActivityClasses {
		c, ok := p.Ceilings[class]
		if !ok || !c.IsPositive() {
			return fail("ceiling for %s must be positive", class)
		}
		a, ok := p.Abatements[class]
		if !ok || a.IsNegative() || a.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return fail("abatement for %s must be in [0, 1)", class)
		}
	}
	return nil
}

func isRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThanOrEqual(decimal.NewFromInt(1))
}

// =============================================================================
// TABLE - Year-keyed lookup with a fatal miss
// =============================================================================

// Table maps calendar years to parameter sets. It is immutable after
// construction and safe for concurrent use.
type Table struct {
	sets map[int]ParameterSet
}

// NewTable validates every set and rejects duplicate years.
func NewTable(sets ...ParameterSet) (*Table, error) {
	t := &Table{sets: make(map[int]ParameterSet, len(sets))}
	for _, s := range sets {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.sets[s.Year]; dup {
			return nil, &ParameterError{Year: s.Year, Reason: "defined twice"}
		}
		t.sets[s.Year] = s
	}
	return t, nil
}

// Lookup returns the set for year or a *MissingParametersError.
func (t *Table) Lookup(year int) (ParameterSet, error) {
	s, ok := t.sets[year]
	if !ok {
		return ParameterSet{}, &MissingParametersError{Year: year}
	}
	return s, nil
}

// Has reports whether year is defined.
func (t *Table) Has(year int) bool {
	_, ok := t.sets[year]
	return ok
}

// Years returns the defined years in ascending order.
func (t *Table) Years() []int {
	years := make([]int, 0, len(t.sets))
	for y := range t.sets {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
