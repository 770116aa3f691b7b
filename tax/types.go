package tax

import (
	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/fiscal"
)

// =============================================================================
// INPUTS
// =============================================================================

// IncomeTaxOptions selects the income-tax computation path.
type IncomeTaxOptions struct {
	HouseholdParts decimal.Decimal // >= 1, fractional parts allowed
	AbatementRate  decimal.Decimal // [0, 1)
	Liberatory     bool            // flat rate on revenue instead of brackets
	Year           int
}

// Regime is the full set of flags a provision computation needs.
// PeriodMonth is optional: VAT is only provisioned when it is set.
type Regime struct {
	AcreActive         bool
	LiberatoryElection bool
	AbatementRate      decimal.Decimal
	HouseholdParts     decimal.Decimal
	PeriodMonth        *fiscal.YearMonth
	DeductibleInput    decimal.Decimal
}

// RegimeFrom maps validated enterprise flags onto a Regime. ACRE tenure is
// not applied here; callers that know the period use AcreActiveAt.
func RegimeFrom(flags fiscal.RegimeFlags) Regime {
	return Regime{
		AcreActive:         flags.AcreActive,
		LiberatoryElection: flags.LiberatoryElection,
		AbatementRate:      flags.AbatementRate,
		HouseholdParts:     flags.HouseholdParts,
	}
}

// WithMonth returns a copy of r that also provisions VAT for month.
func (r Regime) WithMonth(month fiscal.YearMonth, deductibleInput decimal.Decimal) Regime {
	r.PeriodMonth = &month
	r.DeductibleInput = deductibleInput
	return r
}

// =============================================================================
// RESULTS
// =============================================================================

// BracketDetail is one line of an income-tax breakdown.
type BracketDetail struct {
	Label  string          `json:"label"`
	Base   decimal.Decimal `json:"base"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// IncomeTaxResult is the household income tax for one revenue figure.
type IncomeTaxResult struct {
	Tax           decimal.Decimal `json:"tax"`
	TaxableIncome decimal.Decimal `json:"taxable_income"`
	Quotient      decimal.Decimal `json:"quotient"`
	Details       []BracketDetail `json:"details"`
}

// VATResult is the VAT position of one period.
type VATResult struct {
	Collected      decimal.Decimal `json:"collected"`
	Deductible     decimal.Decimal `json:"deductible"`
	Due            decimal.Decimal `json:"due"`
	RevenueExclTax decimal.Decimal `json:"revenue_excl_tax"`
	RevenueInclTax decimal.Decimal `json:"revenue_incl_tax"`
	Liable         bool            `json:"liable"`
}

// ProvisionBreakdown is what to set aside for one revenue figure.
// VAT is nil when no period month was supplied.
type ProvisionBreakdown struct {
	Contribution decimal.Decimal  `json:"contribution"`
	IncomeTax    decimal.Decimal  `json:"income_tax"`
	VAT          *decimal.Decimal `json:"vat,omitempty"`
	Total        decimal.Decimal  `json:"total"`
}

// CeilingStatus reports revenue against the micro-enterprise ceiling.
type CeilingStatus struct {
	Ceiling    decimal.Decimal      `json:"ceiling"`
	Revenue    decimal.Decimal      `json:"revenue"`
	UsageRatio decimal.Decimal      `json:"usage_ratio"`
	Remaining  decimal.Decimal      `json:"remaining"`
	Exceeded   bool                 `json:"exceeded"`
	Warning    bool                 `json:"warning"`
	Class      fiscal.ActivityClass `json:"activity_class"`
}

// NetRevenue is revenue after contributions and income tax.
type NetRevenue struct {
	Revenue      decimal.Decimal `json:"revenue"`
	Contribution decimal.Decimal `json:"contribution"`
	IncomeTax    decimal.Decimal `json:"income_tax"`
	TotalCharges decimal.Decimal `json:"total_charges"`
	Net          decimal.Decimal `json:"net"`
	ChargeRate   decimal.Decimal `json:"charge_rate"`
}
