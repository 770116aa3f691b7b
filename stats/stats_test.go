package stats_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fiscal-engine/factory"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/revenue"
	"github.com/warp/fiscal-engine/stats"
	"github.com/warp/fiscal-engine/tax"
)

func newService() *stats.Service {
	return stats.NewService(tax.NewCalculator(factory.MustDefaultTable()))
}

func date(month time.Month, day int) fiscal.Date { return fiscal.NewDate(2025, month, day) }

func ym(month time.Month) fiscal.YearMonth { return fiscal.NewYearMonth(2025, month) }

// q1Mission bills 64 days at 500: January 22, February 20, March 22.
func q1Mission() revenue.Mission {
	m := revenue.NewMission("Globex", decimal.NewFromInt(500), date(time.January, 1), date(time.March, 31))
	m.ID = "m-1"
	return m
}

func TestYear_ProgressiveRegime(t *testing.T) {
	// GIVEN: 32000 of Q1 revenue, standard rate, progressive income tax
	// WHEN: Computing 2025 statistics
	// THEN: 6816 contribution, 1080.86 tax on 21120 taxable, 500 a day

	st, err := newService().Year([]revenue.Mission{q1Mission()}, 2025, fiscal.DefaultRegime())
	require.NoError(t, err)

	assert.Equal(t, "32000.00", st.Revenue.StringFixed(2))
	assert.Equal(t, "64", st.Days.String())
	assert.Equal(t, "6816.00", st.Contribution.StringFixed(2))
	assert.Equal(t, "1080.86", st.IncomeTax.StringFixed(2))
	assert.Equal(t, "7896.86", st.TotalCharges.StringFixed(2))
	assert.Equal(t, "24103.14", st.Net.StringFixed(2))
	assert.Equal(t, "500.00", st.AverageDailyRate.StringFixed(2))
	assert.Equal(t, "0.2468", st.ChargeRate.StringFixed(4))
	assert.Equal(t, "0.2856", st.EstimatedChargeRate.StringFixed(4), "0.211 + 0.002 + 0.11 × 0.66")
	assert.False(t, st.Ceiling.Warning)
}

func TestYear_NoMissions(t *testing.T) {
	st, err := newService().Year(nil, 2025, fiscal.DefaultRegime())
	require.NoError(t, err)
	assert.True(t, st.Revenue.IsZero())
	assert.True(t, st.AverageDailyRate.IsZero())
	assert.True(t, st.ChargeRate.IsZero())
}

func TestYear_MissingParameters(t *testing.T) {
	_, err := newService().Year(nil, 2030, fiscal.DefaultRegime())
	assert.True(t, fiscal.IsInvariantViolation(err))
}

func TestMonthly_LiberatorySeries(t *testing.T) {
	regime := fiscal.DefaultRegime()
	regime.LiberatoryElection = true

	points, err := newService().Monthly([]revenue.Mission{q1Mission()}, ym(time.January), ym(time.April), regime)
	require.NoError(t, err)
	require.Len(t, points, 4)

	jan := points[0]
	assert.Equal(t, "January 2025", jan.Label)
	assert.Equal(t, "11000.00", jan.Revenue.StringFixed(2))
	assert.Equal(t, "2343.00", jan.Contribution.StringFixed(2))
	assert.Equal(t, "242.00", jan.IncomeTax.StringFixed(2))
	assert.Equal(t, "0.2350", jan.ChargeRate.StringFixed(4))
	assert.False(t, jan.VATLiable)

	assert.Equal(t, "10000.00", points[1].Revenue.StringFixed(2))
	assert.True(t, points[3].Revenue.IsZero())
	assert.True(t, points[3].ChargeRate.IsZero())
}

func TestMonthly_ProgressiveHasNoMonthlyIncomeTax(t *testing.T) {
	points, err := newService().Monthly([]revenue.Mission{q1Mission()}, ym(time.January), ym(time.January), fiscal.DefaultRegime())
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].IncomeTax.IsZero())
}

func TestMonthly_AcreEndsWithTenure(t *testing.T) {
	// GIVEN: ACRE since 2022-05-15 (expires 2025-05-15) and a Q2 mission
	// WHEN: Computing April to June
	// THEN: April and May at the reduced rate, June at the standard rate

	regime := fiscal.DefaultRegime()
	regime.AcreActive = true
	regime.CreationDate = fiscal.NewDate(2022, time.May, 15)
	m := revenue.NewMission("Initech", decimal.NewFromInt(500), date(time.April, 1), date(time.June, 30))

	points, err := newService().Monthly([]revenue.Mission{m}, ym(time.April), ym(time.June), regime)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, "1139.25", points[0].Contribution.StringFixed(2), "10500 × 10.85%")
	assert.Equal(t, "1193.50", points[1].Contribution.StringFixed(2), "11000 × 10.85%")
	assert.Equal(t, "2236.50", points[2].Contribution.StringFixed(2), "10500 × 21.3%")
}

func TestMonthly_VATLiability(t *testing.T) {
	points, err := newService().Monthly(nil, ym(time.September), ym(time.October), fiscal.DefaultRegime())
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.False(t, points[0].VATLiable)
	assert.True(t, points[1].VATLiable)
}

func TestMonthly_InvalidRanges(t *testing.T) {
	svc := newService()
	regime := fiscal.DefaultRegime()

	_, err := svc.Monthly(nil, ym(time.March), ym(time.January), regime)
	assert.True(t, fiscal.IsClientError(err))

	_, err = svc.Monthly(nil, fiscal.YearMonth{}, ym(time.January), regime)
	assert.True(t, fiscal.IsClientError(err))

	_, err = svc.Monthly(nil, fiscal.NewYearMonth(2010, time.January), ym(time.January), regime)
	assert.True(t, fiscal.IsClientError(err), "longer than the series bound")

	_, err = svc.Monthly(nil, fiscal.NewYearMonth(2026, time.December), fiscal.NewYearMonth(2027, time.January), regime)
	assert.True(t, fiscal.IsInvariantViolation(err))
}

func TestMission_StatsAndStatus(t *testing.T) {
	// GIVEN: The Q1 mission, looked at in mid-June
	// WHEN: Computing its statistics
	// THEN: Charges are summed per monthly line, the mission has ended

	st, err := newService().Mission(q1Mission(), 2025, fiscal.DefaultRegime(), date(time.June, 15))
	require.NoError(t, err)

	assert.Equal(t, "m-1", st.MissionID)
	assert.Equal(t, revenue.StatusEnded, st.Status)
	assert.Equal(t, "64", st.Days.String())
	assert.Equal(t, "32000.00", st.Revenue.StringFixed(2))
	assert.Equal(t, "6816.00", st.Charges.StringFixed(2), "monthly taxable income stays in the 0% bracket")
	assert.Equal(t, "25184.00", st.Net.StringFixed(2))
	assert.Equal(t, "0.7870", st.Margin.StringFixed(4))
	assert.False(t, st.VATApplicable)
}

func TestMission_VATApplicableWhenEndingAfterStart(t *testing.T) {
	m := revenue.NewMission("Umbrella", decimal.NewFromInt(400), date(time.September, 1), date(time.November, 30))

	st, err := newService().Mission(m, 2025, fiscal.DefaultRegime(), date(time.June, 15))
	require.NoError(t, err)
	assert.True(t, st.VATApplicable)
	assert.Equal(t, revenue.StatusUpcoming, st.Status)
}

func TestMission_EmptyMission(t *testing.T) {
	st, err := newService().Mission(revenue.Mission{ID: "empty"}, 2025, fiscal.DefaultRegime(), date(time.June, 15))
	require.NoError(t, err)
	assert.True(t, st.Revenue.IsZero())
	assert.True(t, st.Margin.IsZero())
	assert.Equal(t, revenue.StatusActive, st.Status)
}
