/*
ledger.go - Obligation ledger for one enterprise

PURPOSE:
  Generates quarterly contribution obligations and monthly income-tax
  installments, recomputes the unpaid ones against current revenue, and
  records payments with an audit trail.

STATE MACHINE (per obligation):
  Unpaid --recalculate--> Unpaid
  Unpaid --MarkPaid-----> Paid
  Paid   --MarkUnpaid---> Unpaid

  There is no other transition. A paid obligation is a historical fact: its
  amount and revenue basis are frozen until it is explicitly reverted.

CONSISTENCY:
  Every public method runs under one mutex and performs
  load -> build a new Charges value -> save whole record. Nothing is mutated
  in place on data a concurrent reader could hold, and concurrent generation
  cannot drop each other's inserts.

FAILURE SEMANTICS:
  - missing or failing revenue: treated as zero, reported as a Warning
  - obligation id unknown: *fiscal.NotFoundError
  - year without parameters: *fiscal.MissingParametersError, nothing saved

SEE ALSO:
  - generate.go: generation and recalculation
  - payment.go: MarkPaid / MarkUnpaid
  - queries.go: read side
*/
package charges

import (
	"context"
	"sync"
	"time"

	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/tax"
	"go.uber.org/zap"
)

// Ledger is the sole mutator of one enterprise's charges.
type Ledger struct {
	mu sync.Mutex

	enterpriseID string
	repo         Repository
	revenue      RevenueSource
	calc         *tax.Calculator

	log *zap.Logger
	now func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithClock overrides the time source used for "now" defaults.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger creates the ledger of enterpriseID.
func NewLedger(enterpriseID string, repo Repository, revenue RevenueSource, calc *tax.Calculator, opts ...Option) *Ledger {
	l := &Ledger{
		enterpriseID: enterpriseID,
		repo:         repo,
		revenue:      revenue,
		calc:         calc,
		log:          zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With(zap.String("enterprise_id", enterpriseID))
	return l
}

func (l *Ledger) EnterpriseID() string { return l.enterpriseID }

func (l *Ledger) today() fiscal.Date { return fiscal.DateOf(l.now()) }

// Enterprise returns a copy of the current aggregate.
func (l *Ledger) Enterprise(ctx context.Context) (Enterprise, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.repo.Load(ctx, l.enterpriseID)
}

// UpdateRegime validates and stores new regime flags, creating the aggregate
// if it does not exist yet. Obligation amounts are not touched; callers run
// RecalculateUnpaid to apply the new regime.
func (l *Ledger) UpdateRegime(ctx context.Context, name string, flags fiscal.RegimeFlags) (Enterprise, error) {
	if err := flags.Validate(); err != nil {
		return Enterprise{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ent, err := l.repo.Load(ctx, l.enterpriseID)
	if fiscal.IsNotFound(err) {
		ent, err = Enterprise{ID: l.enterpriseID}, nil
	}
	if err != nil {
		return Enterprise{}, err
	}
	ent.Regime = flags
	if name != "" {
		ent.Name = name
	}
	if err := l.repo.Save(ctx, ent); err != nil {
		return Enterprise{}, err
	}
	l.log.Info("regime updated",
		zap.Bool("acre", flags.AcreActive),
		zap.Bool("liberatory", flags.LiberatoryElection))
	return ent, nil
}

// commit saves ent with next as its charges.
func (l *Ledger) commit(ctx context.Context, ent Enterprise, next Charges) error {
	ent.Charges = next
	return l.repo.Save(ctx, ent)
}
