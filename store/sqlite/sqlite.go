/*
Package sqlite provides a SQLite-backed implementation of the ledger
collaborators.

PURPOSE:
  Persists enterprise aggregates (regime flags, obligations, payment
  history) and the missions their revenue is aggregated from.

INTERFACES IMPLEMENTED:
  charges.Repository:    Load / Save of the whole enterprise aggregate
  charges.RevenueSource: via RevenueSource(enterpriseID)

WHOLE-RECORD WRITES:
  Save replaces an enterprise's obligations and history inside one SQL
  transaction (delete, then reinsert). A reader never observes a half-saved
  ledger, and the ledger never issues partial updates.

KEY TABLES:
  enterprises:     Regime flags, one row per enterprise
  obligations:     Contribution and income-tax obligations, ordered by seq
  payment_history: Audit entries, removed only by a payment revert
  missions:        Client missions with daily rate
  mission_lines:   Monthly worked-day lines of a mission

STORAGE FORMATS:
  - amounts and rates: decimal strings (TEXT), never REAL
  - dates: YYYY-MM-DD (TEXT); months: YYYY-MM (TEXT)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Per-enterprise read-modify-write
  exclusion is the ledger's job, not the store's.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/fiscal.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := charges.NewLedger(id, store, store.RevenueSource(id), calc)

SEE ALSO:
  - charges/types.go: Interface definitions
  - fiscal/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/charges"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/revenue"
)

// Store implements the ledger collaborators using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if dbPath == ":memory:" {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate database")
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS enterprises (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		acre_active BOOLEAN NOT NULL DEFAULT FALSE,
		liberatory_election BOOLEAN NOT NULL DEFAULT FALSE,
		household_parts TEXT NOT NULL,
		abatement_rate TEXT NOT NULL,
		creation_date TEXT,
		activity_class TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS obligations (
		enterprise_id TEXT NOT NULL REFERENCES enterprises(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		year INTEGER NOT NULL,
		period INTEGER NOT NULL,
		label TEXT NOT NULL,
		window_start TEXT,
		window_end TEXT,
		deadline TEXT NOT NULL,
		revenue_basis TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_amount TEXT,
		paid_at TEXT,
		PRIMARY KEY (enterprise_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_obligations_enterprise_year
		ON obligations(enterprise_id, year);

	CREATE TABLE IF NOT EXISTS payment_history (
		id TEXT PRIMARY KEY,
		enterprise_id TEXT NOT NULL REFERENCES enterprises(id) ON DELETE CASCADE,
		obligation_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		label TEXT NOT NULL,
		amount TEXT NOT NULL,
		expected_amount TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		year INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payment_history_enterprise
		ON payment_history(enterprise_id, paid_at DESC);

	CREATE TABLE IF NOT EXISTS missions (
		id TEXT PRIMARY KEY,
		enterprise_id TEXT NOT NULL,
		client TEXT NOT NULL,
		title TEXT,
		daily_rate TEXT NOT NULL,
		start_date TEXT,
		end_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_missions_enterprise
		ON missions(enterprise_id);

	CREATE TABLE IF NOT EXISTS mission_lines (
		mission_id TEXT NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
		month TEXT NOT NULL,
		business_days INTEGER NOT NULL,
		planned_days TEXT NOT NULL,
		leave_days TEXT NOT NULL,
		actual_days TEXT,
		PRIMARY KEY (mission_id, month)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTERPRISE AGGREGATE (charges.Repository)
// =============================================================================

// Load implements charges.Repository.
func (s *Store) Load(ctx context.Context, enterpriseID string) (charges.Enterprise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, err := s.loadEnterprise(ctx, enterpriseID)
	if err != nil {
		return charges.Enterprise{}, err
	}

	obs, err := s.queryObligations(ctx, enterpriseID)
	if err != nil {
		return charges.Enterprise{}, err
	}
	ent.Charges.Contributions = []charges.Obligation{}
	ent.Charges.IncomeTaxInstallments = []charges.Obligation{}
	for _, o := range obs {
		if o.Kind == charges.KindIncomeTax {
			ent.Charges.IncomeTaxInstallments = append(ent.Charges.IncomeTaxInstallments, o)
		} else {
			ent.Charges.Contributions = append(ent.Charges.Contributions, o)
		}
	}

	ent.Charges.History, err = s.queryHistory(ctx, enterpriseID)
	if err != nil {
		return charges.Enterprise{}, err
	}
	return ent, nil
}

// Save implements charges.Repository. The enterprise row is upserted and its
// obligations and history are replaced in one transaction.
func (s *Store) Save(ctx context.Context, e charges.Enterprise) error {
	if e.ID == "" {
		return &fiscal.ValidationError{Field: "id", Reason: "required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer sqlTx.Rollback()

	r := e.Regime
	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO enterprises (id, name, acre_active, liberatory_election, household_parts,
		                         abatement_rate, creation_date, activity_class, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			acre_active = excluded.acre_active,
			liberatory_election = excluded.liberatory_election,
			household_parts = excluded.household_parts,
			abatement_rate = excluded.abatement_rate,
			creation_date = excluded.creation_date,
			activity_class = excluded.activity_class,
			updated_at = excluded.updated_at
	`,
		e.ID, e.Name, r.AcreActive, r.LiberatoryElection,
		r.HouseholdParts.String(), r.AbatementRate.String(),
		nullString(r.CreationDate.String()), string(r.ActivityClass),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrapf(err, "save enterprise %s", e.ID)
	}

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM obligations WHERE enterprise_id = ?", e.ID); err != nil {
		return errors.Wrap(err, "clear obligations")
	}
	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM payment_history WHERE enterprise_id = ?", e.ID); err != nil {
		return errors.Wrap(err, "clear payment history")
	}

	for seq, o := range e.Charges.All() {
		if err := insertObligation(ctx, sqlTx, e.ID, seq, o); err != nil {
			return err
		}
	}
	for seq, h := range e.Charges.History {
		if err := insertPayment(ctx, sqlTx, e.ID, seq, h); err != nil {
			return err
		}
	}

	return errors.Wrap(sqlTx.Commit(), "commit enterprise")
}

// ListEnterprises returns every enterprise with its charges, sorted by id.
func (s *Store) ListEnterprises(ctx context.Context) ([]charges.Enterprise, error) {
	s.mu.RLock()
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM enterprises ORDER BY id")
	if err != nil {
		s.mu.RUnlock()
		return nil, errors.Wrap(err, "list enterprises")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			s.mu.RUnlock()
			return nil, errors.Wrap(err, "scan enterprise id")
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	rows.Close()
	s.mu.RUnlock()
	if err != nil {
		return nil, errors.Wrap(err, "list enterprises")
	}

	out := make([]charges.Enterprise, 0, len(ids))
	for _, id := range ids {
		ent, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ent)
	}
	return out, nil
}

func (s *Store) loadEnterprise(ctx context.Context, id string) (charges.Enterprise, error) {
	var (
		ent                         charges.Enterprise
		parts, abatement, class     string
		creationDate                sql.NullString
		acreActive, liberatoryElect bool
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, acre_active, liberatory_election, household_parts, abatement_rate,
		       creation_date, activity_class
		FROM enterprises WHERE id = ?
	`, id).Scan(&ent.ID, &ent.Name, &acreActive, &liberatoryElect, &parts, &abatement, &creationDate, &class)
	if errors.Is(err, sql.ErrNoRows) {
		return charges.Enterprise{}, errors.Wrapf(fiscal.ErrEnterpriseNotFound, "enterprise %s", id)
	}
	if err != nil {
		return charges.Enterprise{}, errors.Wrapf(err, "load enterprise %s", id)
	}

	ent.Regime = fiscal.RegimeFlags{
		AcreActive:         acreActive,
		LiberatoryElection: liberatoryElect,
		ActivityClass:      fiscal.ActivityClass(class),
	}
	if ent.Regime.HouseholdParts, err = decimal.NewFromString(parts); err != nil {
		return charges.Enterprise{}, errors.Wrap(err, "parse household_parts")
	}
	if ent.Regime.AbatementRate, err = decimal.NewFromString(abatement); err != nil {
		return charges.Enterprise{}, errors.Wrap(err, "parse abatement_rate")
	}
	if ent.Regime.CreationDate, err = parseNullDate(creationDate); err != nil {
		return charges.Enterprise{}, errors.Wrap(err, "parse creation_date")
	}
	return ent, nil
}

// =============================================================================
// OBLIGATIONS
// =============================================================================

func insertObligation(ctx context.Context, tx *sql.Tx, enterpriseID string, seq int, o charges.Obligation) error {
	var paidAmount, paidAt sql.NullString
	if o.PaidAmount != nil {
		paidAmount = nullString(o.PaidAmount.String())
	}
	if o.PaidAt != nil {
		paidAt = nullString(o.PaidAt.String())
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO obligations (enterprise_id, id, seq, kind, year, period, label, window_start,
		                         window_end, deadline, revenue_basis, amount, paid, paid_amount, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		enterpriseID, o.ID, seq, string(o.Kind), o.Year, o.Period, o.Label,
		nullString(o.Window.Start.String()), nullString(o.Window.End.String()),
		o.Deadline.String(), o.RevenueBasis.String(), o.Amount.String(),
		o.Paid, paidAmount, paidAt,
	)
	return errors.Wrapf(err, "insert obligation %s", o.ID)
}

func (s *Store) queryObligations(ctx context.Context, enterpriseID string) ([]charges.Obligation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, year, period, label, window_start, window_end, deadline,
		       revenue_basis, amount, paid, paid_amount, paid_at
		FROM obligations
		WHERE enterprise_id = ?
		ORDER BY seq ASC
	`, enterpriseID)
	if err != nil {
		return nil, errors.Wrap(err, "query obligations")
	}
	defer rows.Close()

	var out []charges.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "iterate obligations")
}

func scanObligation(rows *sql.Rows) (charges.Obligation, error) {
	var (
		o                             charges.Obligation
		kind, deadline, basis, amount string
		windowStart, windowEnd        sql.NullString
		paidAmount, paidAt            sql.NullString
	)
	if err := rows.Scan(&o.ID, &kind, &o.Year, &o.Period, &o.Label, &windowStart, &windowEnd,
		&deadline, &basis, &amount, &o.Paid, &paidAmount, &paidAt); err != nil {
		return o, errors.Wrap(err, "scan obligation")
	}
	o.Kind = charges.Kind(kind)

	var err error
	if o.Window.Start, err = parseNullDate(windowStart); err != nil {
		return o, err
	}
	if o.Window.End, err = parseNullDate(windowEnd); err != nil {
		return o, err
	}
	if o.Deadline, err = fiscal.ParseDate(deadline); err != nil {
		return o, err
	}
	if o.RevenueBasis, err = decimal.NewFromString(basis); err != nil {
		return o, errors.Wrapf(err, "obligation %s revenue_basis", o.ID)
	}
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return o, errors.Wrapf(err, "obligation %s amount", o.ID)
	}
	if paidAmount.Valid {
		v, err := decimal.NewFromString(paidAmount.String)
		if err != nil {
			return o, errors.Wrapf(err, "obligation %s paid_amount", o.ID)
		}
		o.PaidAmount = &v
	}
	if paidAt.Valid {
		d, err := fiscal.ParseDate(paidAt.String)
		if err != nil {
			return o, err
		}
		o.PaidAt = &d
	}
	return o, nil
}

// =============================================================================
// PAYMENT HISTORY
// =============================================================================

func insertPayment(ctx context.Context, tx *sql.Tx, enterpriseID string, seq int, h charges.PaymentEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_history (id, enterprise_id, obligation_id, seq, kind, label, amount,
		                             expected_amount, paid_at, year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		h.ID, enterpriseID, h.ObligationID, seq, string(h.Kind), h.Label,
		h.Amount.String(), h.ExpectedAmount.String(), h.PaidAt.String(), h.Year,
	)
	return errors.Wrapf(err, "insert payment %s", h.ID)
}

func (s *Store) queryHistory(ctx context.Context, enterpriseID string) ([]charges.PaymentEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, obligation_id, kind, label, amount, expected_amount, paid_at, year
		FROM payment_history
		WHERE enterprise_id = ?
		ORDER BY seq ASC
	`, enterpriseID)
	if err != nil {
		return nil, errors.Wrap(err, "query payment history")
	}
	defer rows.Close()

	out := []charges.PaymentEntry{}
	for rows.Next() {
		var (
			h                         charges.PaymentEntry
			kind, amount, exp, paidAt string
		)
		if err := rows.Scan(&h.ID, &h.ObligationID, &kind, &h.Label, &amount, &exp, &paidAt, &h.Year); err != nil {
			return nil, errors.Wrap(err, "scan payment")
		}
		h.Kind = charges.Kind(kind)
		if h.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, errors.Wrapf(err, "payment %s amount", h.ID)
		}
		if h.ExpectedAmount, err = decimal.NewFromString(exp); err != nil {
			return nil, errors.Wrapf(err, "payment %s expected_amount", h.ID)
		}
		if h.PaidAt, err = fiscal.ParseDate(paidAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, errors.Wrap(rows.Err(), "iterate payment history")
}

// =============================================================================
// MISSIONS (revenue collaborator)
// =============================================================================

// SaveMission upserts a mission of enterpriseID together with its lines.
func (s *Store) SaveMission(ctx context.Context, enterpriseID string, m revenue.Mission) error {
	if m.ID == "" {
		return &fiscal.ValidationError{Field: "id", Reason: "required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO missions (id, enterprise_id, client, title, daily_rate, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client = excluded.client,
			title = excluded.title,
			daily_rate = excluded.daily_rate,
			start_date = excluded.start_date,
			end_date = excluded.end_date
	`,
		m.ID, enterpriseID, m.Client, nullString(m.Title), m.DailyRate.String(),
		nullString(m.Start.String()), nullString(m.End.String()),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrapf(err, "save mission %s", m.ID)
	}

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM mission_lines WHERE mission_id = ?", m.ID); err != nil {
		return errors.Wrap(err, "clear mission lines")
	}
	for _, l := range m.Lines {
		var actual sql.NullString
		if l.ActualDays != nil {
			actual = nullString(l.ActualDays.String())
		}
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO mission_lines (mission_id, month, business_days, planned_days, leave_days, actual_days)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.ID, l.Month.String(), l.BusinessDays, l.PlannedDays.String(), l.LeaveDays.String(), actual)
		if err != nil {
			return errors.Wrapf(err, "insert line %s of mission %s", l.Month, m.ID)
		}
	}

	return errors.Wrap(sqlTx.Commit(), "commit mission")
}

// Missions lists the missions of enterpriseID with their lines.
func (s *Store) Missions(ctx context.Context, enterpriseID string) ([]revenue.Mission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client, title, daily_rate, start_date, end_date
		FROM missions
		WHERE enterprise_id = ?
		ORDER BY created_at ASC, id ASC
	`, enterpriseID)
	if err != nil {
		return nil, errors.Wrap(err, "query missions")
	}

	missions := []revenue.Mission{}
	for rows.Next() {
		var (
			m          revenue.Mission
			title      sql.NullString
			rate       string
			start, end sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Client, &title, &rate, &start, &end); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan mission")
		}
		m.Title = title.String
		if m.DailyRate, err = decimal.NewFromString(rate); err != nil {
			rows.Close()
			return nil, errors.Wrapf(err, "mission %s daily_rate", m.ID)
		}
		if m.Start, err = parseNullDate(start); err != nil {
			rows.Close()
			return nil, err
		}
		if m.End, err = parseNullDate(end); err != nil {
			rows.Close()
			return nil, err
		}
		missions = append(missions, m)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, errors.Wrap(err, "iterate missions")
	}

	// lines are read after the mission cursor is closed: an in-memory
	// database runs on a single connection
	for i := range missions {
		if missions[i].Lines, err = s.queryLines(ctx, missions[i].ID); err != nil {
			return nil, err
		}
	}
	return missions, nil
}

func (s *Store) queryLines(ctx context.Context, missionID string) ([]revenue.MonthLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT month, business_days, planned_days, leave_days, actual_days
		FROM mission_lines
		WHERE mission_id = ?
		ORDER BY month ASC
	`, missionID)
	if err != nil {
		return nil, errors.Wrap(err, "query mission lines")
	}
	defer rows.Close()

	lines := []revenue.MonthLine{}
	for rows.Next() {
		var (
			l                     revenue.MonthLine
			month, planned, leave string
			actual                sql.NullString
		)
		if err := rows.Scan(&month, &l.BusinessDays, &planned, &leave, &actual); err != nil {
			return nil, errors.Wrap(err, "scan mission line")
		}
		if l.Month, err = fiscal.ParseYearMonth(month); err != nil {
			return nil, err
		}
		if l.PlannedDays, err = decimal.NewFromString(planned); err != nil {
			return nil, errors.Wrap(err, "line planned_days")
		}
		if l.LeaveDays, err = decimal.NewFromString(leave); err != nil {
			return nil, errors.Wrap(err, "line leave_days")
		}
		if actual.Valid {
			v, err := decimal.NewFromString(actual.String)
			if err != nil {
				return nil, errors.Wrap(err, "line actual_days")
			}
			l.ActualDays = &v
		}
		lines = append(lines, l)
	}
	return lines, errors.Wrap(rows.Err(), "iterate mission lines")
}

// RevenueSource returns the revenue collaborator of enterpriseID, backed by
// its stored missions.
func (s *Store) RevenueSource(enterpriseID string) charges.RevenueSource {
	return &revenueSource{store: s, enterpriseID: enterpriseID}
}

type revenueSource struct {
	store        *Store
	enterpriseID string
}

func (r *revenueSource) AggregateRevenue(ctx context.Context, from, to fiscal.Date) (decimal.Decimal, error) {
	missions, err := r.store.Missions(ctx, r.enterpriseID)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "revenue of %s", r.enterpriseID)
	}
	return revenue.Aggregate(missions, from, to), nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseNullDate(s sql.NullString) (fiscal.Date, error) {
	if !s.Valid || s.String == "" {
		return fiscal.Date{}, nil
	}
	return fiscal.ParseDate(s.String)
}
