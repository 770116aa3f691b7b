package charges

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/tax"
	"go.uber.org/zap"
)

// GenerationReport summarizes one generation call.
type GenerationReport struct {
	Year     int       `json:"year"`
	Kind     Kind      `json:"kind"`
	Created  []string  `json:"created"`
	Existing int       `json:"existing"`
	Warnings []Warning `json:"warnings"`
}

// RecalculationReport summarizes one recalculation pass.
type RecalculationReport struct {
	Updated  int       `json:"updated"`
	Frozen   int       `json:"frozen"` // paid, left untouched
	Warnings []Warning `json:"warnings"`
}

// =============================================================================
// GENERATION
// =============================================================================

// GenerateContributions creates the four quarterly contribution obligations
// of year that do not exist yet. Existing obligations are left as they are,
// so calling it twice is a no-op the second time.
func (l *Ledger) GenerateContributions(ctx context.Context, year int) (GenerationReport, error) {
	report := GenerationReport{Year: year, Kind: KindContribution, Created: []string{}, Warnings: []Warning{}}
	if _, err := l.calc.Params(year); err != nil {
		return report, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ent, err := l.repo.Load(ctx, l.enterpriseID)
	if err != nil {
		return report, err
	}
	next := ent.Charges.Clone()
	existing := indexByID(next.Contributions)

	for _, q := range fiscal.Quarters {
		id := ContributionID(year, q)
		if _, ok := existing[id]; ok {
			report.Existing++
			continue
		}
		ob := Obligation{
			ID:           id,
			Kind:         KindContribution,
			Year:         year,
			Period:       int(q),
			Label:        q.Label(year),
			Window:       q.Period(year),
			Deadline:     q.Deadline(year),
			RevenueBasis: decimal.Zero,
			Amount:       decimal.Zero,
		}
		if err := l.compute(ctx, ent.Regime, &ob); err != nil {
			if fiscal.IsInvariantViolation(err) {
				return report, err
			}
			report.Warnings = append(report.Warnings, Warning{ObligationID: id, Message: err.Error()})
		}
		next.Contributions = append(next.Contributions, ob)
		report.Created = append(report.Created, id)
	}

	if len(report.Created) == 0 {
		return report, nil
	}
	if err := l.commit(ctx, ent, next); err != nil {
		return report, err
	}
	l.log.Info("contribution obligations generated",
		zap.Int("year", year),
		zap.Int("created", len(report.Created)),
		zap.Int("warnings", len(report.Warnings)))
	return report, nil
}

// GenerateIncomeTaxInstallments creates the monthly installments of year that
// do not exist yet. Installments only exist under the liberatory election;
// without it this is a no-op.
func (l *Ledger) GenerateIncomeTaxInstallments(ctx context.Context, year int) (GenerationReport, error) {
	report := GenerationReport{Year: year, Kind: KindIncomeTax, Created: []string{}, Warnings: []Warning{}}

	l.mu.Lock()
	defer l.mu.Unlock()

	ent, err := l.repo.Load(ctx, l.enterpriseID)
	if err != nil {
		return report, err
	}
	if !ent.Regime.LiberatoryElection {
		return report, nil
	}
	if _, err := l.calc.Params(year); err != nil {
		return report, err
	}

	next := ent.Charges.Clone()
	existing := indexByID(next.IncomeTaxInstallments)

	for m := time.January; m <= time.December; m++ {
		ym := fiscal.NewYearMonth(year, m)
		id := IncomeTaxID(ym)
		if _, ok := existing[id]; ok {
			report.Existing++
			continue
		}
		ob := Obligation{
			ID:           id,
			Kind:         KindIncomeTax,
			Year:         year,
			Period:       int(m),
			Label:        ym.Label(),
			Window:       ym.Period(),
			Deadline:     ym.Last(),
			RevenueBasis: decimal.Zero,
			Amount:       decimal.Zero,
		}
		if err := l.compute(ctx, ent.Regime, &ob); err != nil {
			if fiscal.IsInvariantViolation(err) {
				return report, err
			}
			report.Warnings = append(report.Warnings, Warning{ObligationID: id, Message: err.Error()})
		}
		next.IncomeTaxInstallments = append(next.IncomeTaxInstallments, ob)
		report.Created = append(report.Created, id)
	}

	if len(report.Created) == 0 {
		return report, nil
	}
	if err := l.commit(ctx, ent, next); err != nil {
		return report, err
	}
	l.log.Info("income-tax installments generated",
		zap.Int("year", year),
		zap.Int("created", len(report.Created)),
		zap.Int("warnings", len(report.Warnings)))
	return report, nil
}

// =============================================================================
// RECALCULATION
// =============================================================================

// RecalculateUnpaid recomputes every unpaid obligation from the revenue of its
// stored window. Paid obligations are never touched. A failing item keeps its
// previous amount and is reported; a missing parameter set aborts the pass
// without saving anything.
func (l *Ledger) RecalculateUnpaid(ctx context.Context) (RecalculationReport, error) {
	report := RecalculationReport{Warnings: []Warning{}}

	l.mu.Lock()
	defer l.mu.Unlock()

	ent, err := l.repo.Load(ctx, l.enterpriseID)
	if err != nil {
		return report, err
	}
	next := ent.Charges.Clone()

	recompute := func(obs []Obligation) error {
		for i := range obs {
			if obs[i].Paid {
				report.Frozen++
				continue
			}
			candidate := obs[i]
			if err := l.compute(ctx, ent.Regime, &candidate); err != nil {
				if fiscal.IsInvariantViolation(err) {
					return err
				}
				report.Warnings = append(report.Warnings, Warning{ObligationID: obs[i].ID, Message: err.Error()})
				continue
			}
			obs[i] = candidate
			report.Updated++
		}
		return nil
	}
	if err := recompute(next.Contributions); err != nil {
		return report, err
	}
	if err := recompute(next.IncomeTaxInstallments); err != nil {
		return report, err
	}

	if err := l.commit(ctx, ent, next); err != nil {
		return report, err
	}
	for _, w := range report.Warnings {
		l.log.Warn("obligation not recalculated",
			zap.String("obligation_id", w.ObligationID),
			zap.String("reason", w.Message))
	}
	l.log.Info("unpaid obligations recalculated",
		zap.Int("updated", report.Updated),
		zap.Int("frozen", report.Frozen))
	return report, nil
}

// =============================================================================
// AMOUNT COMPUTATION
// =============================================================================

var errMissingWindow = errors.New("computation window is missing or reversed")

// compute sets ob.Amount and ob.RevenueBasis from the revenue of ob.Window.
// On a revenue failure ob is left unchanged.
func (l *Ledger) compute(ctx context.Context, regime fiscal.RegimeFlags, ob *Obligation) error {
	if !ob.Window.Valid() {
		return errMissingWindow
	}
	params, err := l.calc.Params(ob.Year)
	if err != nil {
		return err
	}

	revenue, err := l.revenue.AggregateRevenue(ctx, ob.Window.Start, ob.Window.End)
	if err != nil {
		return fmt.Errorf("aggregate revenue %s: %w", ob.Window, err)
	}
	revenue = fiscal.NonNegative(revenue)

	var amount decimal.Decimal
	switch ob.Kind {
	case KindContribution:
		acre := regime.AcreActiveAt(ob.Window.Start, params.AcreTenureYears)
		c, err := l.calc.Contribution(revenue, ob.Year, acre)
		if err != nil {
			return err
		}
		amount = fiscal.Round(c)

	case KindIncomeTax:
		// An installment outlives a withdrawn election but owes nothing.
		if !regime.LiberatoryElection {
			amount = decimal.Zero
			break
		}
		it, err := l.calc.IncomeTax(revenue, tax.IncomeTaxOptions{
			HouseholdParts: regime.HouseholdParts,
			AbatementRate:  regime.AbatementRate,
			Liberatory:     true,
			Year:           ob.Year,
		})
		if err != nil {
			return err
		}
		amount = it.Tax

	default:
		return fmt.Errorf("unknown obligation kind %q", ob.Kind)
	}

	ob.Amount = amount
	ob.RevenueBasis = fiscal.Round(revenue)
	return nil
}

func indexByID(obs []Obligation) map[string]int {
	idx := make(map[string]int, len(obs))
	for i, o := range obs {
		idx[o.ID] = i
	}
	return idx
}
