package revenue_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/revenue"
)

func date(year int, month time.Month, day int) fiscal.Date {
	return fiscal.NewDate(year, month, day)
}

func TestBuildLines_OnePerMonth(t *testing.T) {
	// GIVEN: A mission starting mid-January and ending with March
	// WHEN: Deriving monthly lines
	// THEN: Three lines, the first prorated to the days covered

	lines := revenue.BuildLines(date(2025, time.January, 16), date(2025, time.March, 31))

	require.Len(t, lines, 3)
	assert.Equal(t, "2025-01", lines[0].Month.String())
	assert.Equal(t, 11, lines[0].BusinessDays)
	assert.Equal(t, 20, lines[1].BusinessDays)
	assert.Equal(t, 22, lines[2].BusinessDays)
	assert.True(t, lines[2].PlannedDays.Equal(decimal.NewFromInt(22)))
	assert.True(t, lines[2].LeaveDays.IsZero())
}

func TestBuildLines_InvalidRanges(t *testing.T) {
	assert.Empty(t, revenue.BuildLines(fiscal.Date{}, date(2025, time.March, 31)))
	assert.Empty(t, revenue.BuildLines(date(2025, time.March, 31), date(2025, time.January, 1)))
	assert.Empty(t, revenue.BuildLines(date(2015, time.January, 1), date(2026, time.January, 1)), "longer than ten years")
	assert.NotNil(t, revenue.BuildLines(fiscal.Date{}, fiscal.Date{}))
}

func TestMonthLine_RealDays(t *testing.T) {
	l := revenue.MonthLine{PlannedDays: decimal.NewFromInt(20), LeaveDays: decimal.NewFromInt(3)}
	assert.Equal(t, "17", l.RealDays().String())

	actual := decimal.NewFromInt(15)
	l.ActualDays = &actual
	assert.Equal(t, "15", l.RealDays().String(), "actual days override planned minus leave")

	l = revenue.MonthLine{PlannedDays: decimal.NewFromInt(2), LeaveDays: decimal.NewFromInt(5)}
	assert.True(t, l.RealDays().IsZero())
}

func TestAggregate_WindowUsesFirstDayOfLine(t *testing.T) {
	// GIVEN: A 500/day mission over the first half of 2025
	// WHEN: Aggregating the first quarter
	// THEN: Only January through March lines count

	m := revenue.NewMission("Acme", decimal.NewFromInt(500), date(2025, time.January, 1), date(2025, time.June, 30))
	q1 := fiscal.Quarter(1).Period(2025)

	got := revenue.Aggregate([]revenue.Mission{m}, q1.Start, q1.End)

	days := m.Lines[0].BusinessDays + m.Lines[1].BusinessDays + m.Lines[2].BusinessDays
	assert.True(t, got.Equal(decimal.NewFromInt(int64(500*days))), "got %s", got)

	// a window starting on the 2nd of a month misses that month's line
	got = revenue.Aggregate([]revenue.Mission{m}, date(2025, time.January, 2), date(2025, time.January, 31))
	assert.True(t, got.IsZero())

	assert.True(t, m.Revenue().GreaterThan(revenue.Aggregate([]revenue.Mission{m}, q1.Start, q1.End)))
}

func TestBook_ReplacesByID(t *testing.T) {
	ctx := context.Background()
	m := revenue.NewMission("Acme", decimal.NewFromInt(400), date(2025, time.April, 1), date(2025, time.April, 30))
	book := revenue.NewBook(m)

	m.DailyRate = decimal.NewFromInt(600)
	book.Add(m)
	require.Len(t, book.Missions(), 1)

	got, err := book.AggregateRevenue(ctx, date(2025, time.April, 1), date(2025, time.April, 30))
	require.NoError(t, err)
	// 30 days: (300 + 7) / 14 = 21 business days
	assert.Equal(t, "12600", got.String())
}

func TestMissionClone_DoesNotShareLines(t *testing.T) {
	m := revenue.NewMission("Acme", decimal.NewFromInt(500), date(2025, time.January, 1), date(2025, time.February, 28))
	actual := decimal.NewFromInt(18)
	m.Lines[0].ActualDays = &actual

	c := m.Clone()
	m.Lines[1].PlannedDays = decimal.NewFromInt(100)
	*m.Lines[0].ActualDays = decimal.NewFromInt(1)

	assert.Equal(t, "20", c.Lines[1].PlannedDays.String())
	assert.Equal(t, "18", c.Lines[0].ActualDays.String())
}

func TestBook_CopiesOnAddAndRead(t *testing.T) {
	// GIVEN: A Q1 mission added to a book
	// WHEN: The caller edits its own copy, then a returned copy
	// THEN: The book's revenue does not move

	m := revenue.NewMission("Acme", decimal.NewFromInt(500), date(2025, time.January, 1), date(2025, time.March, 31))
	book := revenue.NewBook()
	book.Add(m)

	from, to := date(2025, time.January, 1), date(2025, time.March, 31)
	before, err := book.AggregateRevenue(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, "32000", before.String())

	m.Lines[0].PlannedDays = decimal.NewFromInt(100)
	book.Missions()[0].Lines[1].PlannedDays = decimal.NewFromInt(100)

	after, err := book.AggregateRevenue(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, "32000", after.String())
}

func TestMissionStatus(t *testing.T) {
	m := revenue.Mission{Start: date(2025, time.March, 1), End: date(2025, time.June, 30)}

	assert.Equal(t, revenue.StatusUpcoming, m.Status(date(2025, time.February, 28)))
	assert.Equal(t, revenue.StatusActive, m.Status(date(2025, time.March, 1)))
	assert.Equal(t, revenue.StatusActive, m.Status(date(2025, time.June, 30)))
	assert.Equal(t, revenue.StatusEnded, m.Status(date(2025, time.July, 1)))
	assert.Equal(t, revenue.StatusActive, revenue.Mission{}.Status(date(2025, time.July, 1)), "open bounds")
}

func TestAggregateDays(t *testing.T) {
	m := revenue.NewMission("Acme", decimal.NewFromInt(500), date(2025, time.January, 1), date(2025, time.March, 31))
	leave := m.Lines[1]
	leave.LeaveDays = decimal.NewFromInt(5)
	m.Lines[1] = leave

	days := revenue.AggregateDays([]revenue.Mission{m}, date(2025, time.January, 1), date(2025, time.February, 28))
	assert.Equal(t, "37", days.String(), "22 + (20 - 5)")
}
