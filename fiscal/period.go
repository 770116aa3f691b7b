package fiscal

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Computation window of an obligation
// =============================================================================

// Period is an inclusive date range [Start, End].
//
// Examples:
//   - Q1 2025: 2025-01-01 .. 2025-03-31
//   - March 2025: 2025-03-01 .. 2025-03-31
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Valid reports whether both bounds are set and ordered.
func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && !p.End.Before(p.Start)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// QUARTERS
// =============================================================================

// Quarter is a calendar quarter, 1-4.
type Quarter int

// Quarters lists the four calendar quarters in order.
var Quarters = []Quarter{1, 2, 3, 4}

// FirstMonth returns the first month of the quarter.
func (q Quarter) FirstMonth() time.Month { return time.Month(3*(int(q)-1) + 1) }

// LastMonth returns the last month of the quarter.
func (q Quarter) LastMonth() time.Month { return q.FirstMonth() + 2 }

func (q Quarter) Valid() bool { return q >= 1 && q <= 4 }

// Period returns the quarter's window within year.
func (q Quarter) Period(year int) Period {
	return Period{
		Start: NewDate(year, q.FirstMonth(), 1),
		End:   EndOfMonth(year, q.LastMonth()),
	}
}

// Deadline returns the payment deadline for the quarter: the last day of the
// month following the quarter. Q4 wraps into January of the next year.
func (q Quarter) Deadline(year int) Date {
	return EndOfMonth(year, q.LastMonth()+1)
}

// QuarterOf returns the quarter containing month.
func QuarterOf(month time.Month) Quarter {
	return Quarter((int(month)-1)/3 + 1)
}

// =============================================================================
// LABELS - Display names of obligation periods
// =============================================================================

// Label names a quarter, e.g. "Q1 2025".
func (q Quarter) Label(year int) string { return fmt.Sprintf("Q%d %d", int(q), year) }

// Label names a month, e.g. "March 2025".
func (ym YearMonth) Label() string { return fmt.Sprintf("%s %d", ym.Month, ym.Year) }
