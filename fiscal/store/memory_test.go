package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fiscal-engine/charges"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/revenue"
)

var q1 = fiscal.Quarter(1).Period(2025)

func q1Mission() revenue.Mission {
	m := revenue.NewMission("Acme", decimal.NewFromInt(500), q1.Start, q1.End)
	m.ID = "m-1"
	return m
}

func TestMemory_SavedMissionIsIsolatedFromCaller(t *testing.T) {
	// GIVEN: A Q1 mission saved for an enterprise (32000 of revenue)
	// WHEN: The caller edits its mission and the listed copies afterwards
	// THEN: The stored revenue snapshot is unchanged

	m := NewMemory()
	ctx := context.Background()
	ms := q1Mission()
	actual := decimal.NewFromInt(22)
	ms.Lines[2].ActualDays = &actual
	require.NoError(t, m.SaveMission(ctx, "ent-1", ms))

	src := m.RevenueSource("ent-1")
	before, err := src.AggregateRevenue(ctx, q1.Start, q1.End)
	require.NoError(t, err)
	assert.Equal(t, "32000", before.String())

	ms.Lines[0].PlannedDays = decimal.NewFromInt(100)
	*ms.Lines[2].ActualDays = decimal.NewFromInt(100)

	listed, err := m.Missions(ctx, "ent-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].Lines[1].PlannedDays = decimal.NewFromInt(100)
	*listed[0].Lines[2].ActualDays = decimal.NewFromInt(100)

	after, err := src.AggregateRevenue(ctx, q1.Start, q1.End)
	require.NoError(t, err)
	assert.Equal(t, "32000", after.String())
}

func TestMemory_ReadsOfUnknownEnterpriseAllocateNothing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	missions, err := m.Missions(ctx, "ghost")
	require.NoError(t, err)
	assert.NotNil(t, missions)
	assert.Empty(t, missions)

	total, err := m.RevenueSource("ghost").AggregateRevenue(ctx, q1.Start, q1.End)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	_, err = m.Load(ctx, "ghost")
	assert.True(t, fiscal.IsNotFound(err))

	assert.Empty(t, m.books)
	assert.Empty(t, m.enterprises)
}

func TestMemory_RevenueSourceSeesLaterMissions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	src := m.RevenueSource("ent-1")
	require.NoError(t, m.SaveMission(ctx, "ent-1", q1Mission()))

	total, err := src.AggregateRevenue(ctx, q1.Start, q1.End)
	require.NoError(t, err)
	assert.Equal(t, "32000", total.String())
}

func TestMemory_SaveAndLoadCopyRecords(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	paidAt := fiscal.NewDate(2025, time.April, 30)
	ent := charges.Enterprise{
		ID:     "ent-1",
		Regime: fiscal.DefaultRegime(),
		Charges: charges.Charges{
			Contributions: []charges.Obligation{{ID: "contribution-2025-q1", Paid: true, PaidAt: &paidAt}},
		},
	}
	require.NoError(t, m.Save(ctx, ent))

	ent.Charges.Contributions[0].ID = "changed"
	*ent.Charges.Contributions[0].PaidAt = fiscal.NewDate(2025, time.May, 1)

	got, err := m.Load(ctx, "ent-1")
	require.NoError(t, err)
	assert.Equal(t, "contribution-2025-q1", got.Charges.Contributions[0].ID)
	assert.Equal(t, "2025-04-30", got.Charges.Contributions[0].PaidAt.String())

	assert.Error(t, m.Save(ctx, charges.Enterprise{}), "id required")
}

func TestMemory_ListEnterprisesSorted(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"b", "c", "a"} {
		require.NoError(t, m.Save(ctx, charges.Enterprise{ID: id}))
	}

	list, err := m.ListEnterprises(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "c", list[2].ID)
}

func TestFixedRevenue(t *testing.T) {
	f := NewFixedRevenue()
	f.Set(q1, decimal.NewFromInt(10000))

	got, err := f.AggregateRevenue(context.Background(), q1.Start, q1.End)
	require.NoError(t, err)
	assert.Equal(t, "10000", got.String())

	q2 := fiscal.Quarter(2).Period(2025)
	got, err = f.AggregateRevenue(context.Background(), q2.Start, q2.End)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
