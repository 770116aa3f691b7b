/*
Package tax computes social contributions, income tax and VAT for a
micro-enterprise.

PURPOSE:
  Pure functions from (revenue, year, regime flags) to amounts. The
  calculator holds nothing but the parameter table; it never persists and
  never blocks, so one instance is shared by every ledger.

ROUNDING:
  Bracket arithmetic accumulates unrounded. Rounding to the cent happens at
  the taxable-income and quotient boundaries and on final figures, so errors
  do not compound across brackets. Contribution is returned unrounded; the
  ledger rounds when it persists an obligation.

FAILURE MODES:
  Negative revenue is zero revenue. The only error is a year without a
  parameter set (*fiscal.MissingParametersError), which is never defaulted.

SEE ALSO:
  - fiscal/params.go: the rates
  - charges/ledger.go: persists amounts computed here
*/
package tax

import (
	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/fiscal"
)

var (
	one = decimal.NewFromInt(1)

	ceilingWarningRatio = decimal.RequireFromString("0.8")

	// average marginal rate used to approximate progressive tax as a flat rate
	approxProgressiveRate = decimal.RequireFromString("0.11")
)

// LiberatoryLabel labels the single detail line of the flat-rate path.
const LiberatoryLabel = "liberatory"

// Calculator computes fiscal amounts from a parameter table.
type Calculator struct {
	params *fiscal.Table
}

func NewCalculator(params *fiscal.Table) *Calculator {
	return &Calculator{params: params}
}

// Params returns the set for year.
func (c *Calculator) Params(year int) (fiscal.ParameterSet, error) {
	return c.params.Lookup(year)
}

// =============================================================================
// CONTRIBUTION
// =============================================================================

// Contribution returns revenue × (ACRE or standard rate) + revenue × training
// rate, unrounded.
func (c *Calculator) Contribution(revenue decimal.Decimal, year int, acre bool) (decimal.Decimal, error) {
	p, err := c.params.Lookup(year)
	if err != nil {
		return decimal.Zero, err
	}
	revenue = fiscal.NonNegative(revenue)
	if revenue.IsZero() {
		return decimal.Zero, nil
	}
	return revenue.Mul(p.ContributionRateFor(acre)).Add(revenue.Mul(p.TrainingRate)), nil
}

// =============================================================================
// INCOME TAX
// =============================================================================

// IncomeTax computes household income tax, either at the flat liberatory rate
// or through the progressive brackets with household-quotient splitting.
func (c *Calculator) IncomeTax(revenue decimal.Decimal, opts IncomeTaxOptions) (IncomeTaxResult, error) {
	p, err := c.params.Lookup(opts.Year)
	if err != nil {
		return IncomeTaxResult{}, err
	}

	revenue = fiscal.NonNegative(revenue)
	if revenue.IsZero() {
		return IncomeTaxResult{Details: []BracketDetail{}}, nil
	}

	parts := opts.HouseholdParts
	if parts.LessThan(one) {
		parts = one
	}
	abatement := opts.AbatementRate
	if abatement.IsNegative() || abatement.GreaterThanOrEqual(one) {
		abatement = decimal.Zero
	}

	taxable := fiscal.Round(revenue.Mul(one.Sub(abatement)))
	quotient := fiscal.Round(taxable.Div(parts))

	if opts.Liberatory {
		tax := fiscal.Round(revenue.Mul(p.LiberatoryRate))
		return IncomeTaxResult{
			Tax:           tax,
			TaxableIncome: taxable,
			Quotient:      quotient,
			Details: []BracketDetail{{
				Label:  LiberatoryLabel,
				Base:   revenue,
				Rate:   p.LiberatoryRate,
				Amount: tax,
			}},
		}, nil
	}

	perPart, details := applyBrackets(quotient, p.Brackets)
	return IncomeTaxResult{
		Tax:           fiscal.Round(perPart.Mul(parts)),
		TaxableIncome: taxable,
		Quotient:      quotient,
		Details:       details,
	}, nil
}

// applyBrackets taxes quotient bracket by bracket. Brackets are ascending and
// contiguous (fiscal.ParameterSet.Validate).
func applyBrackets(quotient decimal.Decimal, brackets []fiscal.Bracket) (decimal.Decimal, []BracketDetail) {
	total := decimal.Zero
	details := []BracketDetail{}

	for _, b := range brackets {
		if quotient.LessThanOrEqual(b.Lower) {
			break
		}
		top := quotient
		if !b.Unbounded() && b.Upper.LessThan(quotient) {
			top = *b.Upper
		}
		base := top.Sub(b.Lower)
		amount := base.Mul(b.Rate)
		if !amount.IsPositive() {
			continue
		}
		total = total.Add(amount)
		details = append(details, BracketDetail{
			Label:  b.Label(),
			Base:   base,
			Rate:   b.Rate,
			Amount: fiscal.Round(amount),
		})
	}
	return total, details
}

// =============================================================================
// VAT
// =============================================================================

// VAT computes the VAT position of a period. Before the VAT start month the
// regime is exempt and revenue passes through untaxed. Due is floored at
// zero; a deductible surplus is not carried forward.
func (c *Calculator) VAT(revenueExclTax decimal.Decimal, month fiscal.YearMonth, deductibleInputExclTax decimal.Decimal) (VATResult, error) {
	p, err := c.params.Lookup(month.Year)
	if err != nil {
		return VATResult{}, err
	}
	revenue := fiscal.NonNegative(revenueExclTax)

	if !p.VATLiable(month) {
		return VATResult{
			Collected:      decimal.Zero,
			Deductible:     decimal.Zero,
			Due:            decimal.Zero,
			RevenueExclTax: revenue,
			RevenueInclTax: revenue,
			Liable:         false,
		}, nil
	}

	collected := fiscal.Round(revenue.Mul(p.VATRate))
	deductible := fiscal.Round(fiscal.NonNegative(deductibleInputExclTax).Mul(p.VATRate))
	due := decimal.Max(decimal.Zero, fiscal.Round(collected.Sub(deductible)))

	return VATResult{
		Collected:      collected,
		Deductible:     deductible,
		Due:            due,
		RevenueExclTax: revenue,
		RevenueInclTax: revenue.Add(collected),
		Liable:         true,
	}, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

// Provisions composes contribution, income tax and, when the regime carries a
// period month, VAT.
func (c *Calculator) Provisions(revenue decimal.Decimal, year int, regime Regime) (ProvisionBreakdown, error) {
	contribution, err := c.Contribution(revenue, year, regime.AcreActive)
	if err != nil {
		return ProvisionBreakdown{}, err
	}
	it, err := c.IncomeTax(revenue, IncomeTaxOptions{
		HouseholdParts: regime.HouseholdParts,
		AbatementRate:  regime.AbatementRate,
		Liberatory:     regime.LiberatoryElection,
		Year:           year,
	})
	if err != nil {
		return ProvisionBreakdown{}, err
	}

	out := ProvisionBreakdown{
		Contribution: fiscal.Round(contribution),
		IncomeTax:    it.Tax,
	}
	out.Total = out.Contribution.Add(out.IncomeTax)

	if regime.PeriodMonth != nil {
		vat, err := c.VAT(revenue, *regime.PeriodMonth, regime.DeductibleInput)
		if err != nil {
			return ProvisionBreakdown{}, err
		}
		out.VAT = &vat.Due
		out.Total = out.Total.Add(vat.Due)
	}
	return out, nil
}

// CheckCeiling compares annual revenue with the activity class ceiling. The
// warning fires above 80% usage, whether or not the ceiling is exceeded.
func (c *Calculator) CheckCeiling(annualRevenue decimal.Decimal, class fiscal.ActivityClass, year int) (CeilingStatus, error) {
	p, err := c.params.Lookup(year)
	if err != nil {
		return CeilingStatus{}, err
	}
	if !class.Valid() {
		class = fiscal.ActivityService
	}
	revenue := fiscal.NonNegative(annualRevenue)
	ceiling := p.Ceiling(class)
	usage := revenue.Div(ceiling)

	return CeilingStatus{
		Ceiling:    ceiling,
		Revenue:    revenue,
		UsageRatio: usage,
		Remaining:  decimal.Max(decimal.Zero, ceiling.Sub(revenue)),
		Exceeded:   revenue.GreaterThan(ceiling),
		Warning:    usage.GreaterThan(ceilingWarningRatio),
		Class:      class,
	}, nil
}

// NetRevenue returns revenue minus contribution and income tax.
func (c *Calculator) NetRevenue(revenue decimal.Decimal, year int, regime Regime) (NetRevenue, error) {
	revenue = fiscal.NonNegative(revenue)
	regime.PeriodMonth = nil

	prov, err := c.Provisions(revenue, year, regime)
	if err != nil {
		return NetRevenue{}, err
	}
	out := NetRevenue{
		Revenue:      revenue,
		Contribution: prov.Contribution,
		IncomeTax:    prov.IncomeTax,
		TotalCharges: prov.Total,
		Net:          revenue.Sub(prov.Total),
		ChargeRate:   decimal.Zero,
	}
	if revenue.IsPositive() {
		out.ChargeRate = prov.Total.DivRound(revenue, 4)
	}
	return out, nil
}

// TotalChargeRate is the overall share of revenue to set aside. Progressive
// income tax is approximated at 11% of the abated revenue.
func (c *Calculator) TotalChargeRate(year int, acre, liberatory bool, abatement decimal.Decimal) (decimal.Decimal, error) {
	p, err := c.params.Lookup(year)
	if err != nil {
		return decimal.Zero, err
	}
	incomeTaxRate := p.LiberatoryRate
	if !liberatory {
		incomeTaxRate = approxProgressiveRate.Mul(one.Sub(abatement))
	}
	return p.ContributionRateFor(acre).Add(p.TrainingRate).Add(incomeTaxRate), nil
}
