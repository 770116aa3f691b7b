package tax_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fiscal-engine/factory"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/tax"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newCalculator(t *testing.T) *tax.Calculator {
	table, err := factory.DefaultTable()
	require.NoError(t, err)
	return tax.NewCalculator(table)
}

func eur(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}

func progressive(year int, parts string) tax.IncomeTaxOptions {
	return tax.IncomeTaxOptions{
		HouseholdParts: eur(parts),
		AbatementRate:  eur("0.34"),
		Year:           year,
	}
}

// =============================================================================
// CONTRIBUTION TESTS
// =============================================================================

func TestContribution_StandardRate(t *testing.T) {
	// GIVEN: 10 000 of revenue in 2025 without ACRE
	// WHEN: Computing the contribution
	// THEN: 10 000 × (0.211 + 0.002) = 2 130.00

	calc := newCalculator(t)

	got, err := calc.Contribution(eur("10000"), 2025, false)
	require.NoError(t, err)
	assertAmount(t, "2130.00", fiscal.Round(got))
}

func TestContribution_AcreRate(t *testing.T) {
	// GIVEN: Same revenue with ACRE active
	// THEN: 10 000 × (0.1065 + 0.002) = 1 085.00

	calc := newCalculator(t)

	got, err := calc.Contribution(eur("10000"), 2025, true)
	require.NoError(t, err)
	assertAmount(t, "1085.00", fiscal.Round(got))
}

func TestContribution_AcreNeverExceedsStandard(t *testing.T) {
	calc := newCalculator(t)

	for _, r := range []string{"0", "1", "999.99", "12000", "77700", "250000"} {
		for _, year := range []int{2025, 2026} {
			acre, err := calc.Contribution(eur(r), year, true)
			require.NoError(t, err)
			standard, err := calc.Contribution(eur(r), year, false)
			require.NoError(t, err)
			assert.True(t, acre.LessThanOrEqual(standard), "revenue %s in %d", r, year)
		}
	}
}

func TestContribution_ZeroAndNegativeRevenue(t *testing.T) {
	calc := newCalculator(t)

	got, err := calc.Contribution(decimal.Zero, 2025, false)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = calc.Contribution(eur("-500"), 2025, false)
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "negative revenue is treated as zero")
}

func TestContribution_MissingYear(t *testing.T) {
	calc := newCalculator(t)

	_, err := calc.Contribution(eur("10000"), 2030, false)
	assert.True(t, fiscal.IsInvariantViolation(err))

	var missing *fiscal.MissingParametersError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 2030, missing.Year)
}

// =============================================================================
// INCOME TAX TESTS
// =============================================================================

func TestIncomeTax_ProgressiveBrackets(t *testing.T) {
	// GIVEN: 50 000 of revenue, 34% abatement, one part, 2025
	// WHEN: Computing through the brackets
	// THEN: (28 797 − 11 294) × 0.11 + (33 000 − 28 797) × 0.30 = 3 186.23

	calc := newCalculator(t)

	res, err := calc.IncomeTax(eur("50000"), progressive(2025, "1"))
	require.NoError(t, err)

	assertAmount(t, "33000.00", res.TaxableIncome)
	assertAmount(t, "33000.00", res.Quotient)
	assertAmount(t, "3186.23", res.Tax)

	require.Len(t, res.Details, 2, "zero-rate bracket produces no detail line")
	assert.Equal(t, "11294-28797", res.Details[0].Label)
	assertAmount(t, "1925.33", res.Details[0].Amount)
	assert.Equal(t, "28797-82341", res.Details[1].Label)
	assertAmount(t, "1260.90", res.Details[1].Amount)
}

func TestIncomeTax_MorePartsNeverIncreasesTax(t *testing.T) {
	calc := newCalculator(t)

	for _, r := range []string{"15000", "50000", "120000", "400000"} {
		prev := decimal.NewFromInt(-1)
		for _, parts := range []string{"4", "3", "2.5", "2", "1.5", "1"} {
			res, err := calc.IncomeTax(eur(r), progressive(2025, parts))
			require.NoError(t, err)
			assert.True(t, res.Tax.GreaterThanOrEqual(prev), "revenue %s parts %s", r, parts)
			prev = res.Tax
		}
	}
}

func TestIncomeTax_TwoParts(t *testing.T) {
	calc := newCalculator(t)

	res, err := calc.IncomeTax(eur("50000"), progressive(2025, "2"))
	require.NoError(t, err)

	// quotient 16 500: (16 500 − 11 294) × 0.11 = 572.66 per part
	assertAmount(t, "16500.00", res.Quotient)
	assertAmount(t, "1145.32", res.Tax)
}

func TestIncomeTax_Liberatory(t *testing.T) {
	calc := newCalculator(t)

	opts := progressive(2025, "3")
	opts.Liberatory = true

	res, err := calc.IncomeTax(eur("50000"), opts)
	require.NoError(t, err)

	assertAmount(t, "1100.00", res.Tax, "flat 2.2% of revenue, parts ignored")
	require.Len(t, res.Details, 1)
	assert.Equal(t, tax.LiberatoryLabel, res.Details[0].Label)
}

func TestIncomeTax_ZeroRevenue(t *testing.T) {
	calc := newCalculator(t)

	res, err := calc.IncomeTax(decimal.Zero, progressive(2025, "1"))
	require.NoError(t, err)
	assert.True(t, res.Tax.IsZero())
	assert.NotNil(t, res.Details)
	assert.Empty(t, res.Details)
}

func TestIncomeTax_NormalizesOutOfRangeOptions(t *testing.T) {
	calc := newCalculator(t)

	odd := tax.IncomeTaxOptions{HouseholdParts: eur("0.5"), AbatementRate: eur("1.5"), Year: 2025}
	plain := tax.IncomeTaxOptions{HouseholdParts: eur("1"), AbatementRate: decimal.Zero, Year: 2025}

	a, err := calc.IncomeTax(eur("30000"), odd)
	require.NoError(t, err)
	b, err := calc.IncomeTax(eur("30000"), plain)
	require.NoError(t, err)
	assert.True(t, a.Tax.Equal(b.Tax))
}

func TestIncomeTax_MissingYear(t *testing.T) {
	calc := newCalculator(t)

	_, err := calc.IncomeTax(eur("50000"), progressive(2030, "1"))
	assert.True(t, fiscal.IsInvariantViolation(err))
}

// =============================================================================
// VAT TESTS
// =============================================================================

func TestVAT_ExemptBeforeStartMonth(t *testing.T) {
	calc := newCalculator(t)

	res, err := calc.VAT(eur("1000"), fiscal.NewYearMonth(2025, time.September), eur("200"))
	require.NoError(t, err)

	assert.False(t, res.Liable)
	assert.True(t, res.Due.IsZero())
	assert.True(t, res.Collected.IsZero())
	assert.True(t, res.RevenueInclTax.Equal(res.RevenueExclTax))
}

func TestVAT_LiableFromStartMonth(t *testing.T) {
	calc := newCalculator(t)

	res, err := calc.VAT(eur("1000"), fiscal.NewYearMonth(2025, time.October), eur("200"))
	require.NoError(t, err)

	assert.True(t, res.Liable)
	assertAmount(t, "200.00", res.Collected)
	assertAmount(t, "40.00", res.Deductible)
	assertAmount(t, "160.00", res.Due)
	assertAmount(t, "1200.00", res.RevenueInclTax)
}

func TestVAT_DueFlooredAtZero(t *testing.T) {
	calc := newCalculator(t)

	res, err := calc.VAT(eur("100"), fiscal.NewYearMonth(2026, time.March), eur("5000"))
	require.NoError(t, err)
	assert.True(t, res.Due.IsZero())
}

// =============================================================================
// PROVISIONS / CEILING TESTS
// =============================================================================

func TestProvisions_SumsComponents(t *testing.T) {
	calc := newCalculator(t)
	regime := tax.RegimeFrom(fiscal.DefaultRegime())

	// taxable 6 600 stays in the zero-rate bracket
	prov, err := calc.Provisions(eur("10000"), 2025, regime)
	require.NoError(t, err)
	assertAmount(t, "2130.00", prov.Contribution)
	assert.True(t, prov.IncomeTax.IsZero())
	assert.Nil(t, prov.VAT)
	assertAmount(t, "2130.00", prov.Total)

	withVAT := regime.WithMonth(fiscal.NewYearMonth(2025, time.November), decimal.Zero)
	prov, err = calc.Provisions(eur("10000"), 2025, withVAT)
	require.NoError(t, err)
	require.NotNil(t, prov.VAT)
	assertAmount(t, "2000.00", *prov.VAT)
	assertAmount(t, "4130.00", prov.Total)
}

func TestCheckCeiling_WarningBelowCeiling(t *testing.T) {
	// GIVEN: 70 000 of service revenue against the 77 700 ceiling
	// THEN: usage ≈ 0.9009, not exceeded, warning raised

	calc := newCalculator(t)

	st, err := calc.CheckCeiling(eur("70000"), fiscal.ActivityService, 2025)
	require.NoError(t, err)

	assertAmount(t, "77700.00", st.Ceiling)
	assert.Equal(t, "0.9009", st.UsageRatio.Round(4).String())
	assert.False(t, st.Exceeded)
	assert.True(t, st.Warning)
	assertAmount(t, "7700.00", st.Remaining)
}

func TestCheckCeiling_Exceeded(t *testing.T) {
	calc := newCalculator(t)

	st, err := calc.CheckCeiling(eur("80000"), fiscal.ActivityService, 2025)
	require.NoError(t, err)
	assert.True(t, st.Exceeded)
	assert.True(t, st.Warning)
	assert.True(t, st.Remaining.IsZero())
}

func TestCheckCeiling_UnknownClassFallsBackToService(t *testing.T) {
	calc := newCalculator(t)

	st, err := calc.CheckCeiling(eur("10000"), "farming", 2025)
	require.NoError(t, err)
	assert.Equal(t, fiscal.ActivityService, st.Class)
	assert.False(t, st.Warning)
}

func TestNetRevenue(t *testing.T) {
	calc := newCalculator(t)

	net, err := calc.NetRevenue(eur("10000"), 2025, tax.RegimeFrom(fiscal.DefaultRegime()))
	require.NoError(t, err)
	assertAmount(t, "7870.00", net.Net)
	assert.Equal(t, "0.213", net.ChargeRate.String())
}

func TestTotalChargeRate_Liberatory(t *testing.T) {
	calc := newCalculator(t)

	rate, err := calc.TotalChargeRate(2025, false, true, eur("0.34"))
	require.NoError(t, err)
	assert.Equal(t, "0.235", rate.String())
}
