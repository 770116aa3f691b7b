package charges

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/fiscal"
)

// YearView lists the obligations of one year.
type YearView struct {
	Year                  int          `json:"year"`
	Contributions         []Obligation `json:"contribution"`
	IncomeTaxInstallments []Obligation `json:"income_tax_installment"`
	All                   []Obligation `json:"all"` // both kinds by deadline
}

// KindStats aggregates amounts over a set of obligations. Paid sums the
// recorded paid amounts; Unpaid sums the expected amounts still due.
type KindStats struct {
	Total     decimal.Decimal `json:"total"`
	Paid      decimal.Decimal `json:"paid"`
	Unpaid    decimal.Decimal `json:"unpaid"`
	Count     int             `json:"count"`
	CountPaid int             `json:"count_paid"`
}

// Statistics aggregates one year.
type Statistics struct {
	Year         int       `json:"year"`
	Contribution KindStats `json:"contribution"`
	IncomeTax    KindStats `json:"income_tax_installment"`
	Total        KindStats `json:"total"`
}

// Get returns obligation id.
func (l *Ledger) Get(ctx context.Context, id string) (Obligation, error) {
	ch, err := l.charges(ctx)
	if err != nil {
		return Obligation{}, err
	}
	ob, ok := ch.find(id)
	if !ok {
		return Obligation{}, &fiscal.NotFoundError{ID: id}
	}
	return ob.clone(), nil
}

// ByYear returns the obligations of year, each kind and the merged list
// sorted by deadline.
func (l *Ledger) ByYear(ctx context.Context, year int) (YearView, error) {
	ch, err := l.charges(ctx)
	if err != nil {
		return YearView{}, err
	}
	view := YearView{
		Year:                  year,
		Contributions:         filter(ch.Contributions, func(o Obligation) bool { return o.Year == year }),
		IncomeTaxInstallments: filter(ch.IncomeTaxInstallments, func(o Obligation) bool { return o.Year == year }),
	}
	view.All = append(append([]Obligation{}, view.Contributions...), view.IncomeTaxInstallments...)
	sortByDeadline(view.Contributions)
	sortByDeadline(view.IncomeTaxInstallments)
	sortByDeadline(view.All)
	return view, nil
}

// Overdue returns unpaid obligations whose deadline is strictly before asOf,
// oldest first. A zero asOf means today.
func (l *Ledger) Overdue(ctx context.Context, asOf fiscal.Date) ([]Obligation, error) {
	ch, err := l.charges(ctx)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = l.today()
	}
	out := filter(ch.All(), func(o Obligation) bool {
		return !o.Paid && o.Deadline.Before(asOf)
	})
	sortByDeadline(out)
	return out, nil
}

// Upcoming returns unpaid obligations due within [asOf, asOf + months],
// soonest first. A zero asOf means today.
func (l *Ledger) Upcoming(ctx context.Context, asOf fiscal.Date, months int) ([]Obligation, error) {
	if months < 0 {
		return nil, &fiscal.ValidationError{Field: "months", Reason: "must not be negative"}
	}
	ch, err := l.charges(ctx)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = l.today()
	}
	until := asOf.AddMonths(months)
	out := filter(ch.All(), func(o Obligation) bool {
		return !o.Paid && o.Deadline.AfterOrEqual(asOf) && o.Deadline.BeforeOrEqual(until)
	})
	sortByDeadline(out)
	return out, nil
}

// Statistics totals the obligations of year per kind and combined.
func (l *Ledger) Statistics(ctx context.Context, year int) (Statistics, error) {
	ch, err := l.charges(ctx)
	if err != nil {
		return Statistics{}, err
	}
	inYear := func(o Obligation) bool { return o.Year == year }
	contrib := filter(ch.Contributions, inYear)
	installments := filter(ch.IncomeTaxInstallments, inYear)

	return Statistics{
		Year:         year,
		Contribution: stats(contrib),
		IncomeTax:    stats(installments),
		Total:        stats(append(contrib, installments...)),
	}, nil
}

// PaymentHistory returns every payment entry, most recent first.
func (l *Ledger) PaymentHistory(ctx context.Context) ([]PaymentEntry, error) {
	ch, err := l.charges(ctx)
	if err != nil {
		return nil, err
	}
	out := append([]PaymentEntry{}, ch.History...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PaidAt.After(out[j].PaidAt)
	})
	return out, nil
}

// charges loads a private copy of the ledger. An enterprise that was never
// saved has an empty ledger.
func (l *Ledger) charges(ctx context.Context) (Charges, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ent, err := l.repo.Load(ctx, l.enterpriseID)
	if fiscal.IsNotFound(err) {
		return Charges{}.Clone(), nil
	}
	if err != nil {
		return Charges{}, err
	}
	return ent.Charges.Clone(), nil
}

func stats(obs []Obligation) KindStats {
	s := KindStats{Total: decimal.Zero, Paid: decimal.Zero, Unpaid: decimal.Zero}
	for _, o := range obs {
		s.Count++
		s.Total = s.Total.Add(o.Amount)
		if o.Paid {
			s.CountPaid++
			s.Paid = s.Paid.Add(o.PaidOrExpected())
		} else {
			s.Unpaid = s.Unpaid.Add(o.Amount)
		}
	}
	return s
}

func filter(obs []Obligation, keep func(Obligation) bool) []Obligation {
	out := []Obligation{}
	for _, o := range obs {
		if keep(o) {
			out = append(out, o.clone())
		}
	}
	return out
}

func sortByDeadline(obs []Obligation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if !obs[i].Deadline.Equal(obs[j].Deadline) {
			return obs[i].Deadline.Before(obs[j].Deadline)
		}
		return obs[i].ID < obs[j].ID
	})
}
