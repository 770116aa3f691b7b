package charges

import (
	"context"

	"github.com/warp/fiscal-engine/fiscal"
)

// ExportHeader names the columns of ExportRow.Strings.
var ExportHeader = []string{
	"kind", "label", "deadline", "revenue_basis", "expected_amount", "paid_amount", "paid", "paid_at",
}

// ExportRow is the flat projection of an obligation handed to formatters.
type ExportRow struct {
	Kind           Kind   `json:"kind"`
	Label          string `json:"label"`
	Deadline       string `json:"deadline"`
	RevenueBasis   string `json:"revenue_basis"`
	ExpectedAmount string `json:"expected_amount"`
	PaidAmount     string `json:"paid_amount"`
	Paid           bool   `json:"paid"`
	PaidAt         string `json:"paid_at"`
}

// Strings renders the row in ExportHeader order.
func (r ExportRow) Strings() []string {
	paid := "no"
	if r.Paid {
		paid = "yes"
	}
	return []string{
		string(r.Kind), r.Label, r.Deadline, r.RevenueBasis, r.ExpectedAmount, r.PaidAmount, paid, r.PaidAt,
	}
}

// ToExportRow projects o. Unpaid obligations show "-" as paid amount and an
// empty paid date.
func ToExportRow(o Obligation) ExportRow {
	row := ExportRow{
		Kind:           o.Kind,
		Label:          o.Label,
		Deadline:       o.Deadline.String(),
		RevenueBasis:   o.RevenueBasis.StringFixed(fiscal.CentPlaces),
		ExpectedAmount: o.Amount.StringFixed(fiscal.CentPlaces),
		PaidAmount:     "-",
		Paid:           o.Paid,
	}
	if o.PaidAmount != nil {
		row.PaidAmount = o.PaidAmount.StringFixed(fiscal.CentPlaces)
	}
	if o.PaidAt != nil {
		row.PaidAt = o.PaidAt.String()
	}
	return row
}

// Export returns the rows of year sorted by deadline.
func (l *Ledger) Export(ctx context.Context, year int) ([]ExportRow, error) {
	view, err := l.ByYear(ctx, year)
	if err != nil {
		return nil, err
	}
	rows := make([]ExportRow, 0, len(view.All))
	for _, o := range view.All {
		rows = append(rows, ToExportRow(o))
	}
	return rows, nil
}
