// Package revenue aggregates billable revenue from client missions.
// A mission bills a daily rate over monthly lines of worked days; the ledger
// only ever sees the aggregated figure for a date window.
package revenue

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/fiscal"
)

// MaxMissionMonths bounds line generation for a single mission.
const MaxMissionMonths = 120

// Mission is a client engagement billed per day.
type Mission struct {
	ID        string          `json:"id"`
	Client    string          `json:"client"`
	Title     string          `json:"title,omitempty"`
	DailyRate decimal.Decimal `json:"daily_rate"`
	Start     fiscal.Date     `json:"start"`
	End       fiscal.Date     `json:"end"`
	Lines     []MonthLine     `json:"lines"`
}

// MonthLine is one month of a mission. ActualDays, when entered, overrides
// planned minus leave.
type MonthLine struct {
	Month        fiscal.YearMonth `json:"month"`
	BusinessDays int              `json:"business_days"`
	PlannedDays  decimal.Decimal  `json:"planned_days"`
	LeaveDays    decimal.Decimal  `json:"leave_days"`
	ActualDays   *decimal.Decimal `json:"actual_days,omitempty"`
}

// RealDays returns the billable days of the line.
func (l MonthLine) RealDays() decimal.Decimal {
	if l.ActualDays != nil {
		return fiscal.NonNegative(*l.ActualDays)
	}
	return fiscal.NonNegative(l.PlannedDays.Sub(l.LeaveDays))
}

// Clone returns a deep copy: the lines and their actual days are not shared.
func (m Mission) Clone() Mission {
	if m.Lines == nil {
		return m
	}
	lines := make([]MonthLine, len(m.Lines))
	for i, l := range m.Lines {
		if l.ActualDays != nil {
			v := *l.ActualDays
			l.ActualDays = &v
		}
		lines[i] = l
	}
	m.Lines = lines
	return m
}

// NewMission creates a mission and derives its monthly lines.
func NewMission(client string, dailyRate decimal.Decimal, start, end fiscal.Date) Mission {
	m := Mission{
		ID:        uuid.NewString(),
		Client:    client,
		DailyRate: dailyRate,
		Start:     start,
		End:       end,
	}
	m.Lines = BuildLines(start, end)
	return m
}

// BuildLines creates one line per month between start and end, planned days
// defaulting to the month's approximate business days. Missing, reversed or
// overlong ranges produce no lines.
func BuildLines(start, end fiscal.Date) []MonthLine {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return []MonthLine{}
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if months > MaxMissionMonths {
		return []MonthLine{}
	}

	lines := make([]MonthLine, 0, months+1)
	for ym := start.YearMonth(); !end.YearMonth().Before(ym); ym = ym.Next() {
		days := businessDays(ym, start, end)
		lines = append(lines, MonthLine{
			Month:        ym,
			BusinessDays: days,
			PlannedDays:  decimal.NewFromInt(int64(days)),
			LeaveDays:    decimal.Zero,
		})
	}
	return lines
}

// businessDays approximates weekdays as 5/7 of the calendar days the mission
// covers in month, rounded half up.
func businessDays(month fiscal.YearMonth, start, end fiscal.Date) int {
	from, to := month.First(), month.Last()
	if start.After(from) {
		from = start
	}
	if end.Before(to) {
		to = end
	}
	if from.After(to) {
		return 0
	}
	days := int(to.Time.Sub(from.Time).Hours()/24) + 1
	return (10*days + 7) / 14
}

// Revenue returns the mission's billed revenue over all lines.
func (m Mission) Revenue() decimal.Decimal {
	total := decimal.Zero
	for _, l := range m.Lines {
		total = total.Add(m.DailyRate.Mul(l.RealDays()))
	}
	return total
}

// RevenueBetween sums lines whose first day lies within [from, to].
func (m Mission) RevenueBetween(from, to fiscal.Date) decimal.Decimal {
	total := decimal.Zero
	for _, l := range m.Lines {
		first := l.Month.First()
		if first.Before(from) || first.After(to) {
			continue
		}
		total = total.Add(m.DailyRate.Mul(l.RealDays()))
	}
	return total
}

// DaysBetween sums the billable days of lines whose first day lies within
// [from, to].
func (m Mission) DaysBetween(from, to fiscal.Date) decimal.Decimal {
	total := decimal.Zero
	for _, l := range m.Lines {
		first := l.Month.First()
		if first.Before(from) || first.After(to) {
			continue
		}
		total = total.Add(l.RealDays())
	}
	return total
}

// Status is where a mission stands relative to a given day.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusActive   Status = "active"
	StatusEnded    Status = "ended"
)

// Status reports whether the mission has not started, is running, or has
// ended on today. Missing bounds are treated as open.
func (m Mission) Status(today fiscal.Date) Status {
	switch {
	case !m.End.IsZero() && m.End.Before(today):
		return StatusEnded
	case !m.Start.IsZero() && m.Start.After(today):
		return StatusUpcoming
	default:
		return StatusActive
	}
}

// Aggregate sums RevenueBetween over missions.
func Aggregate(missions []Mission, from, to fiscal.Date) decimal.Decimal {
	total := decimal.Zero
	for _, m := range missions {
		total = total.Add(m.RevenueBetween(from, to))
	}
	return fiscal.NonNegative(total)
}

// AggregateDays sums DaysBetween over missions.
func AggregateDays(missions []Mission, from, to fiscal.Date) decimal.Decimal {
	total := decimal.Zero
	for _, m := range missions {
		total = total.Add(m.DaysBetween(from, to))
	}
	return total
}

// =============================================================================
// BOOK - In-memory revenue source
// =============================================================================

// Book is an in-memory set of missions usable as a ledger revenue source.
type Book struct {
	mu       sync.RWMutex
	missions []Mission
}

func NewBook(missions ...Mission) *Book {
	b := &Book{missions: make([]Mission, 0, len(missions))}
	for _, m := range missions {
		b.missions = append(b.missions, m.Clone())
	}
	return b
}

// Add appends or replaces (by ID) a copy of m.
func (b *Book) Add(m Mission) {
	m = m.Clone()

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.missions {
		if b.missions[i].ID == m.ID {
			b.missions[i] = m
			return
		}
	}
	b.missions = append(b.missions, m)
}

// Missions returns copies of the missions.
func (b *Book) Missions() []Mission {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Mission, len(b.missions))
	for i, m := range b.missions {
		out[i] = m.Clone()
	}
	return out
}

// AggregateRevenue implements charges.RevenueSource.
func (b *Book) AggregateRevenue(_ context.Context, from, to fiscal.Date) (decimal.Decimal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Aggregate(b.missions, from, to), nil
}
