package charges

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/fiscal"
	"go.uber.org/zap"
)

// MarkPaid records a payment of amount on paidAt against obligation id and
// appends an audit entry carrying the expected amount at that time. A zero
// paidAt means today. Marking an already paid obligation again replaces its
// payment and its audit entry.
func (l *Ledger) MarkPaid(ctx context.Context, id string, amount decimal.Decimal, paidAt fiscal.Date) (Obligation, error) {
	if amount.IsNegative() {
		return Obligation{}, &fiscal.ValidationError{Field: "amount", Reason: "must not be negative"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ent, err := l.repo.Load(ctx, l.enterpriseID)
	if err != nil {
		return Obligation{}, err
	}
	next := ent.Charges.Clone()
	ob, ok := next.find(id)
	if !ok {
		return Obligation{}, &fiscal.NotFoundError{ID: id}
	}
	if paidAt.IsZero() {
		paidAt = l.today()
	}

	paid := amount
	at := paidAt
	ob.Paid = true
	ob.PaidAmount = &paid
	ob.PaidAt = &at

	next.History = withoutEntriesFor(next.History, id)
	next.History = append(next.History, PaymentEntry{
		ID:             uuid.NewString(),
		ObligationID:   id,
		Kind:           ob.Kind,
		Label:          ob.Label,
		Amount:         amount,
		ExpectedAmount: ob.Amount,
		PaidAt:         paidAt,
		Year:           ob.Year,
	})

	if err := l.commit(ctx, ent, next); err != nil {
		return Obligation{}, err
	}
	l.log.Info("obligation marked paid",
		zap.String("obligation_id", id),
		zap.String("amount", amount.StringFixed(fiscal.CentPlaces)),
		zap.String("expected", ob.Amount.StringFixed(fiscal.CentPlaces)),
		zap.String("paid_at", paidAt.String()))
	return ob.clone(), nil
}

// MarkUnpaid reverts a payment: the obligation loses its payment fields and
// every audit entry referencing it is removed.
func (l *Ledger) MarkUnpaid(ctx context.Context, id string) (Obligation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ent, err := l.repo.Load(ctx, l.enterpriseID)
	if err != nil {
		return Obligation{}, err
	}
	next := ent.Charges.Clone()
	ob, ok := next.find(id)
	if !ok {
		return Obligation{}, &fiscal.NotFoundError{ID: id}
	}

	ob.Paid = false
	ob.PaidAmount = nil
	ob.PaidAt = nil
	next.History = withoutEntriesFor(next.History, id)

	if err := l.commit(ctx, ent, next); err != nil {
		return Obligation{}, err
	}
	l.log.Info("obligation marked unpaid", zap.String("obligation_id", id))
	return ob.clone(), nil
}

// find returns a pointer into c's own slices.
func (c *Charges) find(id string) (*Obligation, bool) {
	for i := range c.Contributions {
		if c.Contributions[i].ID == id {
			return &c.Contributions[i], true
		}
	}
	for i := range c.IncomeTaxInstallments {
		if c.IncomeTaxInstallments[i].ID == id {
			return &c.IncomeTaxInstallments[i], true
		}
	}
	return nil, false
}

func withoutEntriesFor(history []PaymentEntry, obligationID string) []PaymentEntry {
	out := make([]PaymentEntry, 0, len(history))
	for _, e := range history {
		if e.ObligationID != obligationID {
			out = append(out, e)
		}
	}
	return out
}
