// Package charges manages periodic fiscal obligations: quarterly social
// contributions and monthly income-tax installments.
package charges

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/fiscal"
)

// =============================================================================
// OBLIGATION KIND
// =============================================================================

type Kind string

const (
	KindContribution Kind = "contribution"
	KindIncomeTax    Kind = "income_tax_installment"
)

// ContributionID is the identity of a quarterly contribution obligation.
func ContributionID(year int, q fiscal.Quarter) string {
	return fmt.Sprintf("contribution-%d-q%d", year, int(q))
}

// IncomeTaxID is the identity of a monthly income-tax installment.
func IncomeTaxID(ym fiscal.YearMonth) string {
	return fmt.Sprintf("income_tax-%s", ym.String())
}

// =============================================================================
// OBLIGATION
// =============================================================================

// Obligation is one datable payment requirement. Its identity is
// (Kind, Year, Period); ID encodes that triple.
//
// Amount and RevenueBasis change only while Paid is false.
type Obligation struct {
	ID           string           `json:"id"`
	Kind         Kind             `json:"kind"`
	Year         int              `json:"year"`
	Period       int              `json:"period"` // quarter 1-4 or month 1-12
	Label        string           `json:"label"`
	Window       fiscal.Period    `json:"window"`
	Deadline     fiscal.Date      `json:"deadline"`
	RevenueBasis decimal.Decimal  `json:"revenue_basis"`
	Amount       decimal.Decimal  `json:"amount"`
	Paid         bool             `json:"paid"`
	PaidAmount   *decimal.Decimal `json:"paid_amount"`
	PaidAt       *fiscal.Date     `json:"paid_at"`
}

func (o Obligation) clone() Obligation {
	if o.PaidAmount != nil {
		v := *o.PaidAmount
		o.PaidAmount = &v
	}
	if o.PaidAt != nil {
		v := *o.PaidAt
		o.PaidAt = &v
	}
	return o
}

// PaidOrExpected is the paid amount when recorded, else the computed amount.
func (o Obligation) PaidOrExpected() decimal.Decimal {
	if o.PaidAmount != nil {
		return *o.PaidAmount
	}
	return o.Amount
}

// PaymentEntry is the audit record of one payment. Entries are inserted on
// payment and removed only when that obligation is reverted to unpaid.
type PaymentEntry struct {
	ID             string          `json:"id"`
	ObligationID   string          `json:"obligation_id"`
	Kind           Kind            `json:"kind"`
	Label          string          `json:"label"`
	Amount         decimal.Decimal `json:"amount"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	PaidAt         fiscal.Date     `json:"paid_at"`
	Year           int             `json:"year"`
}

// =============================================================================
// ENTERPRISE AGGREGATE
// =============================================================================

// Charges is the persisted obligation ledger of one enterprise.
type Charges struct {
	Contributions         []Obligation   `json:"contribution"`
	IncomeTaxInstallments []Obligation   `json:"income_tax_installment"`
	History               []PaymentEntry `json:"history"`
}

// Clone returns a deep copy.
func (c Charges) Clone() Charges {
	out := Charges{
		Contributions:         make([]Obligation, len(c.Contributions)),
		IncomeTaxInstallments: make([]Obligation, len(c.IncomeTaxInstallments)),
		History:               append([]PaymentEntry{}, c.History...),
	}
	for i, o := range c.Contributions {
		out.Contributions[i] = o.clone()
	}
	for i, o := range c.IncomeTaxInstallments {
		out.IncomeTaxInstallments[i] = o.clone()
	}
	return out
}

// All returns both kinds, contributions first.
func (c Charges) All() []Obligation {
	all := make([]Obligation, 0, len(c.Contributions)+len(c.IncomeTaxInstallments))
	all = append(all, c.Contributions...)
	return append(all, c.IncomeTaxInstallments...)
}

// Enterprise is the aggregate the ledger reads and writes as a whole.
type Enterprise struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Regime  fiscal.RegimeFlags `json:"regime"`
	Charges Charges            `json:"charges"`
}

// Clone returns a deep copy.
func (e Enterprise) Clone() Enterprise {
	e.Charges = e.Charges.Clone()
	return e
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Repository loads and saves whole enterprise aggregates. Load returns
// fiscal.ErrEnterpriseNotFound (possibly wrapped) for unknown ids.
type Repository interface {
	Load(ctx context.Context, enterpriseID string) (Enterprise, error)
	Save(ctx context.Context, e Enterprise) error
}

// RevenueSource aggregates billed revenue over the inclusive window [from, to].
type RevenueSource interface {
	AggregateRevenue(ctx context.Context, from, to fiscal.Date) (decimal.Decimal, error)
}

// Warning reports an obligation that could not be (re)computed. The batch
// it belongs to still completes.
type Warning struct {
	ObligationID string `json:"obligation_id"`
	Message      string `json:"message"`
}
