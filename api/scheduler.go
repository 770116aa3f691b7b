/*
scheduler.go - Automated obligation recalculation scheduler

PURPOSE:
  Periodically brings every enterprise's ledger up to date: generates the
  current year's obligations that do not exist yet and recomputes the
  unpaid ones against current mission data.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Goes through Handler.Ledger, so a cycle never interleaves with an HTTP
    mutation of the same enterprise
  - A failing enterprise is logged and skipped; the cycle continues
  - A year without fiscal parameters is logged once per cycle and nothing
    is generated for it

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRecalculationScheduler(handler, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - charges.go: RecalculateCharges endpoint (manual recalculation)
  - charges/generate.go: generation and recalculation
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/fiscal-engine/fiscal"
	"go.uber.org/zap"
)

// CycleSummary reports one scheduler cycle.
type CycleSummary struct {
	Enterprises int
	Created     int
	Updated     int
	Warnings    int
	Failed      int
}

// RecalculationScheduler keeps ledgers current in the background.
type RecalculationScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRecalculationScheduler creates a new scheduler.
func NewRecalculationScheduler(handler *Handler, log *zap.Logger) *RecalculationScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecalculationScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           log.Named("scheduler"),
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *RecalculationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.log.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run()

	rs.log.Info("started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for a running cycle to finish.
func (rs *RecalculationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.log.Info("stopped")
	}
}

func (rs *RecalculationScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow(context.Background())

	for {
		select {
		case <-rs.ticker.C:
			rs.RunNow(context.Background())
		case <-rs.stop:
			return
		}
	}
}

// RunNow runs one cycle synchronously (for testing/admin).
func (rs *RecalculationScheduler) RunNow(ctx context.Context) CycleSummary {
	var summary CycleSummary
	year := rs.Handler.currentYear()

	ents, err := rs.Handler.Store.ListEnterprises(ctx)
	if err != nil {
		rs.log.Error("listing enterprises", zap.Error(err))
		return summary
	}

	for _, ent := range ents {
		summary.Enterprises++
		ledger := rs.Handler.Ledger(ent.ID)
		log := rs.log.With(zap.String("enterprise_id", ent.ID))

		contrib, err := ledger.GenerateContributions(ctx, year)
		if fiscal.IsInvariantViolation(err) {
			// applies to every enterprise alike
			rs.log.Error("no fiscal parameters for current year", zap.Int("year", year), zap.Error(err))
			summary.Failed += len(ents) - summary.Enterprises + 1
			return summary
		}
		if err != nil {
			log.Error("generating contributions", zap.Error(err))
			summary.Failed++
			continue
		}
		installments, err := ledger.GenerateIncomeTaxInstallments(ctx, year)
		if err != nil {
			log.Error("generating income-tax installments", zap.Error(err))
			summary.Failed++
			continue
		}
		report, err := ledger.RecalculateUnpaid(ctx)
		if err != nil {
			log.Error("recalculating", zap.Error(err))
			summary.Failed++
			continue
		}

		summary.Created += len(contrib.Created) + len(installments.Created)
		summary.Updated += report.Updated
		summary.Warnings += len(contrib.Warnings) + len(installments.Warnings) + len(report.Warnings)
	}

	rs.log.Info("cycle completed",
		zap.Int("year", year),
		zap.Int("enterprises", summary.Enterprises),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("warnings", summary.Warnings),
		zap.Int("failed", summary.Failed))
	return summary
}

// NextRunTime returns when the next scheduled check will occur.
func (rs *RecalculationScheduler) NextRunTime() time.Time {
	return time.Now().Add(rs.CheckInterval)
}
