// Package store provides in-memory implementations of the ledger
// collaborators, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/charges"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/revenue"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds enterprise aggregates and their missions. Every read and write
// copies, so callers never share slices or pointers with the store. Books are
// only created by SaveMission; reads of an unknown enterprise allocate nothing.
type Memory struct {
	mu          sync.RWMutex
	enterprises map[string]charges.Enterprise
	books       map[string]*revenue.Book
}

func NewMemory() *Memory {
	return &Memory{
		enterprises: make(map[string]charges.Enterprise),
		books:       make(map[string]*revenue.Book),
	}
}

// Load implements charges.Repository.
func (m *Memory) Load(_ context.Context, enterpriseID string) (charges.Enterprise, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ent, ok := m.enterprises[enterpriseID]
	if !ok {
		return charges.Enterprise{}, fiscal.ErrEnterpriseNotFound
	}
	return ent.Clone(), nil
}

// Save implements charges.Repository. The record is replaced as a whole.
func (m *Memory) Save(_ context.Context, e charges.Enterprise) error {
	if e.ID == "" {
		return &fiscal.ValidationError{Field: "id", Reason: "required"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enterprises[e.ID] = e.Clone()
	return nil
}

// ListEnterprises returns every stored enterprise, sorted by id.
func (m *Memory) ListEnterprises(_ context.Context) ([]charges.Enterprise, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]charges.Enterprise, 0, len(m.enterprises))
	for _, e := range m.enterprises {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveMission adds or replaces a copy of mission for enterpriseID.
func (m *Memory) SaveMission(_ context.Context, enterpriseID string, mission revenue.Mission) error {
	m.mu.Lock()
	b, ok := m.books[enterpriseID]
	if !ok {
		b = revenue.NewBook()
		m.books[enterpriseID] = b
	}
	m.mu.Unlock()

	b.Add(mission)
	return nil
}

// Missions lists copies of the missions of enterpriseID.
func (m *Memory) Missions(_ context.Context, enterpriseID string) ([]revenue.Mission, error) {
	b, ok := m.book(enterpriseID)
	if !ok {
		return []revenue.Mission{}, nil
	}
	return b.Missions(), nil
}

// RevenueSource returns the revenue collaborator of enterpriseID. The book is
// resolved on every aggregation, so missions saved later are seen.
func (m *Memory) RevenueSource(enterpriseID string) charges.RevenueSource {
	return &memoryRevenue{store: m, enterpriseID: enterpriseID}
}

func (m *Memory) book(enterpriseID string) (*revenue.Book, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[enterpriseID]
	return b, ok
}

type memoryRevenue struct {
	store        *Memory
	enterpriseID string
}

func (r *memoryRevenue) AggregateRevenue(ctx context.Context, from, to fiscal.Date) (decimal.Decimal, error) {
	b, ok := r.store.book(r.enterpriseID)
	if !ok {
		return decimal.Zero, nil
	}
	return b.AggregateRevenue(ctx, from, to)
}

// =============================================================================
// FIXED REVENUE - Stub revenue source
// =============================================================================

// FixedRevenue answers every window with the revenue registered for its
// exact bounds, zero otherwise.
type FixedRevenue struct {
	mu      sync.RWMutex
	windows map[string]decimal.Decimal
}

func NewFixedRevenue() *FixedRevenue {
	return &FixedRevenue{windows: make(map[string]decimal.Decimal)}
}

// Set registers the revenue of window.
func (f *FixedRevenue) Set(window fiscal.Period, amount decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows[window.String()] = amount
}

// AggregateRevenue implements charges.RevenueSource.
func (f *FixedRevenue) AggregateRevenue(_ context.Context, from, to fiscal.Date) (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if v, ok := f.windows[fiscal.Period{Start: from, End: to}.String()]; ok {
		return v, nil
	}
	return decimal.Zero, nil
}
