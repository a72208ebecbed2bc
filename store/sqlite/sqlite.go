/*
Package sqlite provides the SQLite-backed implementation of coverage.TxStore.

PURPOSE:
  Production persistence for the coverage engine. The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  credit_events has no UPDATE path. The single DELETE is reversal of an
  adjustment/away impact, keyed by adjustment_id. A partial unique index on
  (enrolment_id, occurred_on) for CONSUME rows enforces the
  one-consumption-per-day invariant at the schema level, so concurrent
  attendance hooks cannot double count even without application checks.

TRANSACTIONS:
  The DSN carries _txlock=immediate, so every transaction takes the write
  lock up front (BEGIN IMMEDIATE). Combined with WAL mode this serializes
  the engine's read-modify-write flows (away periods, moves); a busy/locked
  error surfaces as coverage.ErrConcurrentConflict and the engine retries
  the whole operation.

KEY TABLES:
  plans, templates, enrolments, enrolment_templates (seat join),
  credit_events (append-only ledger), holidays, cancellations, adjustments,
  away_periods, away_impacts, makeup_bookings

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - coverage/store.go: Interface definitions
  - coverage/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/pirouette/coverage-engine/coverage"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so every query method
// works identically inside and outside a transaction scope.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements coverage.TxStore using SQLite.
type Store struct {
	db *sql.DB
	q  querier // db outside a transaction, tx inside
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, q: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
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
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		billing_type TEXT NOT NULL,
		duration_weeks INTEGER NOT NULL DEFAULT 0,
		sessions_per_week INTEGER NOT NULL DEFAULT 1,
		block_class_count INTEGER NOT NULL DEFAULT 0,
		price_cents INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		level_id TEXT NOT NULL DEFAULT '',
		teacher_id TEXT NOT NULL DEFAULT '',
		day_of_week INTEGER,
		start_minute INTEGER NOT NULL DEFAULT 0,
		end_minute INTEGER NOT NULL DEFAULT 0,
		start_date TEXT NOT NULL,
		end_date TEXT,
		capacity INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS enrolments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		billing_group_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		status TEXT NOT NULL,
		paid_through TEXT,
		paid_through_computed TEXT,
		next_due_computed TEXT,
		credits_balance_cached INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_enrolments_student ON enrolments(student_id);
	CREATE INDEX IF NOT EXISTS idx_enrolments_status ON enrolments(status);

	CREATE TABLE IF NOT EXISTS enrolment_templates (
		enrolment_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		PRIMARY KEY (enrolment_id, template_id)
	);
	CREATE INDEX IF NOT EXISTS idx_enrolment_templates_template
		ON enrolment_templates(template_id);

	-- Credit events (append-only ledger)
	CREATE TABLE IF NOT EXISTS credit_events (
		id TEXT PRIMARY KEY,
		enrolment_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		credits_delta INTEGER NOT NULL,
		occurred_on TEXT NOT NULL,
		invoice_id TEXT NOT NULL DEFAULT '',
		attendance_id TEXT NOT NULL DEFAULT '',
		adjustment_id TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_credit_events_enrolment_date
		ON credit_events(enrolment_id, occurred_on);
	CREATE INDEX IF NOT EXISTS idx_credit_events_adjustment
		ON credit_events(adjustment_id) WHERE adjustment_id != '';

	-- CRITICAL: at most one CONSUME per (enrolment, day)
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_consumption
		ON credit_events(enrolment_id, occurred_on)
		WHERE event_type = 'CONSUME';

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		level_id TEXT NOT NULL DEFAULT '',
		template_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS cancellations (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		date TEXT NOT NULL,
		UNIQUE (template_id, date)
	);

	CREATE TABLE IF NOT EXISTS adjustments (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		enrolment_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		date TEXT NOT NULL,
		credits_delta INTEGER NOT NULL DEFAULT 0,
		paid_through_delta_days INTEGER NOT NULL DEFAULT 0,
		reversed INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS away_periods (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL DEFAULT '',
		student_ids TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS away_impacts (
		id TEXT PRIMARY KEY,
		away_period_id TEXT NOT NULL,
		enrolment_id TEXT NOT NULL,
		missed_occurrences INTEGER NOT NULL DEFAULT 0,
		credits_delta INTEGER NOT NULL DEFAULT 0,
		paid_through_delta_days INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_away_impacts_period
		ON away_impacts(away_period_id);

	CREATE TABLE IF NOT EXISTS makeup_bookings (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		date TEXT NOT NULL,
		enrolment_id TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_makeup_bookings_slot
		ON makeup_bookings(template_id, date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn inside one transaction (BEGIN IMMEDIATE via _txlock).
// Busy/locked errors roll back and surface as ErrConcurrentConflict for the
// engine's bounded retry. A nested call joins the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(coverage.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(mapErr(err), rbErr)
		}
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}

// mapErr translates driver errors into the engine's error taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", coverage.ErrConcurrentConflict, err)
		case se.Code == sqlite3.ErrConstraint && se.ExtendedCode == sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%w: %v", coverage.ErrDuplicateConsumption, err)
		}
	}
	return err
}

// =============================================================================
// DATE HELPERS - Days are stored as YYYY-MM-DD text
// =============================================================================

func dayStr(d coverage.Day) string { return d.String() }

func dayPtrStr(d *coverage.Day) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func scanDay(s string) (coverage.Day, error) { return coverage.ParseDay(s) }

func scanDayPtr(ns sql.NullString) (*coverage.Day, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := coverage.ParseDay(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

type rowScanner interface{ Scan(dest ...any) error }

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) GetPlan(ctx context.Context, id coverage.PlanID) (coverage.Plan, error) {
	var p coverage.Plan
	err := s.q.QueryRowContext(ctx, `
		SELECT id, name, billing_type, duration_weeks, sessions_per_week, block_class_count, price_cents
		FROM plans WHERE id = ?`, string(id),
	).Scan(&p.ID, &p.Name, &p.BillingType, &p.DurationWeeks, &p.SessionsPerWeek, &p.BlockClassCount, &p.PriceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return p, coverage.ErrPlanNotFound
	}
	return p, err
}

func (s *Store) PutPlan(ctx context.Context, p coverage.Plan) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO plans (id, name, billing_type, duration_weeks, sessions_per_week, block_class_count, price_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			billing_type = excluded.billing_type,
			duration_weeks = excluded.duration_weeks,
			sessions_per_week = excluded.sessions_per_week,
			block_class_count = excluded.block_class_count,
			price_cents = excluded.price_cents`,
		string(p.ID), p.Name, string(p.BillingType), p.DurationWeeks, p.SessionsPerWeek, p.BlockClassCount, p.PriceCents)
	return mapErr(err)
}

func (s *Store) GetTemplate(ctx context.Context, id coverage.TemplateID) (coverage.ClassTemplate, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, level_id, teacher_id, day_of_week, start_minute, end_minute, start_date, end_date, capacity
		FROM templates WHERE id = ?`, string(id))
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, coverage.ErrTemplateNotFound
	}
	return t, err
}

func scanTemplate(r rowScanner) (coverage.ClassTemplate, error) {
	var t coverage.ClassTemplate
	var dow sql.NullInt64
	var start string
	var end sql.NullString
	if err := r.Scan(&t.ID, &t.LevelID, &t.TeacherID, &dow, &t.StartMinute, &t.EndMinute, &start, &end, &t.Capacity); err != nil {
		return t, err
	}
	if dow.Valid {
		d := int(dow.Int64)
		t.DayOfWeek = &d
	}
	var err error
	if t.StartDate, err = scanDay(start); err != nil {
		return t, err
	}
	if t.EndDate, err = scanDayPtr(end); err != nil {
		return t, err
	}
	return t, nil
}

func (s *Store) GetTemplates(ctx context.Context, ids []coverage.TemplateID) ([]coverage.ClassTemplate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, level_id, teacher_id, day_of_week, start_minute, end_minute, start_date, end_date, capacity
		FROM templates WHERE id IN (`+placeholders(len(ids))+`) ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coverage.ClassTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) PutTemplate(ctx context.Context, t coverage.ClassTemplate) error {
	var dow any
	if t.DayOfWeek != nil {
		dow = *t.DayOfWeek
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO templates (id, level_id, teacher_id, day_of_week, start_minute, end_minute, start_date, end_date, capacity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			level_id = excluded.level_id,
			teacher_id = excluded.teacher_id,
			day_of_week = excluded.day_of_week,
			start_minute = excluded.start_minute,
			end_minute = excluded.end_minute,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			capacity = excluded.capacity`,
		string(t.ID), t.LevelID, t.TeacherID, dow, t.StartMinute, t.EndMinute, dayStr(t.StartDate), dayPtrStr(t.EndDate), t.Capacity)
	return mapErr(err)
}

func (s *Store) ListHolidays(ctx context.Context, from, to coverage.Day) ([]coverage.Holiday, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, start_date, end_date, level_id, template_id
		FROM holidays WHERE end_date >= ? AND start_date <= ?
		ORDER BY start_date`, dayStr(from), dayStr(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coverage.Holiday
	for rows.Next() {
		var h coverage.Holiday
		var start, end string
		if err := rows.Scan(&h.ID, &h.Name, &start, &end, &h.LevelID, &h.TemplateID); err != nil {
			return nil, err
		}
		if h.Start, err = scanDay(start); err != nil {
			return nil, err
		}
		if h.End, err = scanDay(end); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) PutHoliday(ctx context.Context, h coverage.Holiday) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO holidays (id, name, start_date, end_date, level_id, template_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			level_id = excluded.level_id,
			template_id = excluded.template_id`,
		h.ID, h.Name, dayStr(h.Start), dayStr(h.End), h.LevelID, string(h.TemplateID))
	return mapErr(err)
}

func (s *Store) ListCancellations(ctx context.Context, templateIDs []coverage.TemplateID, from, to coverage.Day) ([]coverage.Cancellation, error) {
	if len(templateIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(templateIDs)+2)
	for _, id := range templateIDs {
		args = append(args, string(id))
	}
	args = append(args, dayStr(from), dayStr(to))
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, template_id, date FROM cancellations
		WHERE template_id IN (`+placeholders(len(templateIDs))+`) AND date >= ? AND date <= ?
		ORDER BY date`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coverage.Cancellation
	for rows.Next() {
		var c coverage.Cancellation
		var date string
		if err := rows.Scan(&c.ID, &c.TemplateID, &date); err != nil {
			return nil, err
		}
		if c.Date, err = scanDay(date); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) PutCancellation(ctx context.Context, c coverage.Cancellation) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO cancellations (id, template_id, date) VALUES (?, ?, ?)
		ON CONFLICT (template_id, date) DO NOTHING`,
		c.ID, string(c.TemplateID), dayStr(c.Date))
	return mapErr(err)
}

// =============================================================================
// ENROLMENTS
// =============================================================================

const enrolmentCols = `id, student_id, plan_id, template_id, billing_group_id, start_date, end_date,
	status, paid_through, paid_through_computed, next_due_computed, credits_balance_cached`

func (s *Store) GetEnrolment(ctx context.Context, id coverage.EnrolmentID) (coverage.Enrolment, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+enrolmentCols+` FROM enrolments WHERE id = ?`, string(id))
	e, err := scanEnrolment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return e, coverage.ErrEnrolmentNotFound
	}
	if err != nil {
		return e, err
	}
	e.TemplateIDs, err = s.templateIDsFor(ctx, e.ID)
	return e, err
}

func scanEnrolment(r rowScanner) (coverage.Enrolment, error) {
	var e coverage.Enrolment
	var start string
	var end, paidThrough, ptComputed, ndComputed sql.NullString
	if err := r.Scan(&e.ID, &e.StudentID, &e.PlanID, &e.TemplateID, &e.BillingGroupID,
		&start, &end, &e.Status, &paidThrough, &ptComputed, &ndComputed, &e.CreditsBalanceCached); err != nil {
		return e, err
	}
	var err error
	if e.StartDate, err = scanDay(start); err != nil {
		return e, err
	}
	if e.EndDate, err = scanDayPtr(end); err != nil {
		return e, err
	}
	if e.PaidThrough, err = scanDayPtr(paidThrough); err != nil {
		return e, err
	}
	if e.PaidThroughComputed, err = scanDayPtr(ptComputed); err != nil {
		return e, err
	}
	if e.NextDueComputed, err = scanDayPtr(ndComputed); err != nil {
		return e, err
	}
	return e, nil
}

func (s *Store) templateIDsFor(ctx context.Context, id coverage.EnrolmentID) ([]coverage.TemplateID, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT template_id FROM enrolment_templates WHERE enrolment_id = ? ORDER BY template_id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coverage.TemplateID
	for rows.Next() {
		var t coverage.TemplateID
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) PutEnrolment(ctx context.Context, e coverage.Enrolment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO enrolments (`+enrolmentCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			student_id = excluded.student_id,
			plan_id = excluded.plan_id,
			template_id = excluded.template_id,
			billing_group_id = excluded.billing_group_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			paid_through = excluded.paid_through`,
		string(e.ID), e.StudentID, string(e.PlanID), string(e.TemplateID), e.BillingGroupID,
		dayStr(e.StartDate), dayPtrStr(e.EndDate), string(e.Status), dayPtrStr(e.PaidThrough),
		dayPtrStr(e.PaidThroughComputed), dayPtrStr(e.NextDueComputed), e.CreditsBalanceCached)
	if err != nil {
		return mapErr(err)
	}

	// Rebuild the seat join. The cached snapshot columns are NOT updated
	// here: SaveSnapshot owns them.
	if _, err := s.q.ExecContext(ctx, `DELETE FROM enrolment_templates WHERE enrolment_id = ?`, string(e.ID)); err != nil {
		return mapErr(err)
	}
	for _, t := range e.AllTemplateIDs() {
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO enrolment_templates (enrolment_id, template_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING`, string(e.ID), string(t)); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (s *Store) ListEnrolmentsByStatus(ctx context.Context, status coverage.EnrolmentStatus) ([]coverage.Enrolment, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+enrolmentCols+` FROM enrolments WHERE status = ? ORDER BY id`, string(status))
	if err != nil {
		return nil, err
	}
	return s.collectEnrolments(ctx, rows)
}

func (s *Store) ListEnrolmentsForStudents(ctx context.Context, studentIDs []string) ([]coverage.Enrolment, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(studentIDs))
	for i, id := range studentIDs {
		args[i] = id
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+enrolmentCols+` FROM enrolments
		WHERE student_id IN (`+placeholders(len(studentIDs))+`) ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	return s.collectEnrolments(ctx, rows)
}

func (s *Store) ListEnrolmentsForTemplate(ctx context.Context, id coverage.TemplateID) ([]coverage.Enrolment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+enrolmentCols+` FROM enrolments
		WHERE id IN (SELECT enrolment_id FROM enrolment_templates WHERE template_id = ?)
		ORDER BY id`, string(id))
	if err != nil {
		return nil, err
	}
	return s.collectEnrolments(ctx, rows)
}

func (s *Store) collectEnrolments(ctx context.Context, rows *sql.Rows) ([]coverage.Enrolment, error) {
	defer rows.Close()
	var out []coverage.Enrolment
	for rows.Next() {
		e, err := scanEnrolment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		ids, err := s.templateIDsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].TemplateIDs = ids
	}
	return out, nil
}

// SaveSnapshot writes the cached projector output onto the enrolment row.
func (s *Store) SaveSnapshot(ctx context.Context, snap coverage.Snapshot) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE enrolments SET
			paid_through_computed = ?,
			next_due_computed = ?,
			credits_balance_cached = ?
		WHERE id = ?`,
		dayPtrStr(snap.PaidThrough), dayPtrStr(snap.NextDue), snap.LedgerBalance, string(snap.EnrolmentID))
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return coverage.ErrEnrolmentNotFound
	}
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (s *Store) AppendEvent(ctx context.Context, ev coverage.CreditEvent) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO credit_events (id, enrolment_id, event_type, credits_delta, occurred_on, invoice_id, attendance_id, adjustment_id, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.EnrolmentID), string(ev.Type), ev.CreditsDelta, dayStr(ev.OccurredOn),
		ev.InvoiceID, ev.AttendanceID, ev.AdjustmentID, ev.Note)
	return mapErr(err)
}

func (s *Store) ListEvents(ctx context.Context, id coverage.EnrolmentID) ([]coverage.CreditEvent, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, enrolment_id, event_type, credits_delta, occurred_on, invoice_id, attendance_id, adjustment_id, note
		FROM credit_events WHERE enrolment_id = ? ORDER BY occurred_on, id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coverage.CreditEvent
	for rows.Next() {
		var ev coverage.CreditEvent
		var occurred string
		if err := rows.Scan(&ev.ID, &ev.EnrolmentID, &ev.Type, &ev.CreditsDelta, &occurred,
			&ev.InvoiceID, &ev.AttendanceID, &ev.AdjustmentID, &ev.Note); err != nil {
			return nil, err
		}
		if ev.OccurredOn, err = scanDay(occurred); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) SumDeltasThrough(ctx context.Context, id coverage.EnrolmentID, asOf coverage.Day) (int, error) {
	var sum int
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(credits_delta), 0) FROM credit_events
		WHERE enrolment_id = ? AND occurred_on <= ?`, string(id), dayStr(asOf)).Scan(&sum)
	return sum, err
}

func (s *Store) ConsumedDays(ctx context.Context, id coverage.EnrolmentID, from, to coverage.Day) ([]coverage.Day, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT occurred_on FROM credit_events
		WHERE enrolment_id = ? AND event_type = 'CONSUME' AND occurred_on >= ? AND occurred_on <= ?
		ORDER BY occurred_on`, string(id), dayStr(from), dayStr(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coverage.Day
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		day, err := scanDay(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return out, rows.Err()
}

func (s *Store) DeleteEventsByAdjustment(ctx context.Context, adjustmentID string) (int, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM credit_events WHERE adjustment_id = ?`, adjustmentID)
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// ADJUSTMENTS & AWAY PERIODS
// =============================================================================

func (s *Store) GetAdjustment(ctx context.Context, id string) (coverage.Adjustment, error) {
	var a coverage.Adjustment
	var date string
	var reversed int
	err := s.q.QueryRowContext(ctx, `
		SELECT id, kind, enrolment_id, template_id, date, credits_delta, paid_through_delta_days, reversed
		FROM adjustments WHERE id = ?`, id,
	).Scan(&a.ID, &a.Kind, &a.EnrolmentID, &a.TemplateID, &date, &a.CreditsDelta, &a.PaidThroughDeltaDays, &reversed)
	if errors.Is(err, sql.ErrNoRows) {
		return a, coverage.ErrAdjustmentNotFound
	}
	if err != nil {
		return a, err
	}
	a.Reversed = reversed != 0
	a.Date, err = scanDay(date)
	return a, err
}

func (s *Store) PutAdjustment(ctx context.Context, a coverage.Adjustment) error {
	reversed := 0
	if a.Reversed {
		reversed = 1
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO adjustments (id, kind, enrolment_id, template_id, date, credits_delta, paid_through_delta_days, reversed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			credits_delta = excluded.credits_delta,
			paid_through_delta_days = excluded.paid_through_delta_days,
			reversed = excluded.reversed`,
		a.ID, string(a.Kind), string(a.EnrolmentID), string(a.TemplateID), dayStr(a.Date),
		a.CreditsDelta, a.PaidThroughDeltaDays, reversed)
	return mapErr(err)
}

func (s *Store) GetAwayPeriod(ctx context.Context, id string) (coverage.AwayPeriod, error) {
	var p coverage.AwayPeriod
	var students, start, end string
	err := s.q.QueryRowContext(ctx, `
		SELECT id, family_id, student_ids, start_date, end_date FROM away_periods WHERE id = ?`, id,
	).Scan(&p.ID, &p.FamilyID, &students, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return p, coverage.ErrAwayPeriodNotFound
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(students), &p.StudentIDs); err != nil {
		return p, fmt.Errorf("decode student ids: %w", err)
	}
	if p.Start, err = scanDay(start); err != nil {
		return p, err
	}
	p.End, err = scanDay(end)
	return p, err
}

func (s *Store) PutAwayPeriod(ctx context.Context, p coverage.AwayPeriod) error {
	students, err := json.Marshal(p.StudentIDs)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO away_periods (id, family_id, student_ids, start_date, end_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			family_id = excluded.family_id,
			student_ids = excluded.student_ids,
			start_date = excluded.start_date,
			end_date = excluded.end_date`,
		p.ID, p.FamilyID, string(students), dayStr(p.Start), dayStr(p.End))
	return mapErr(err)
}

func (s *Store) DeleteAwayPeriod(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM away_periods WHERE id = ?`, id)
	return mapErr(err)
}

func (s *Store) ListAwayImpacts(ctx context.Context, awayPeriodID string) ([]coverage.AwayImpact, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, away_period_id, enrolment_id, missed_occurrences, credits_delta, paid_through_delta_days
		FROM away_impacts WHERE away_period_id = ? ORDER BY id`, awayPeriodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []coverage.AwayImpact
	for rows.Next() {
		var i coverage.AwayImpact
		if err := rows.Scan(&i.ID, &i.AwayPeriodID, &i.EnrolmentID, &i.MissedOccurrences,
			&i.CreditsDelta, &i.PaidThroughDeltaDays); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (s *Store) PutAwayImpact(ctx context.Context, i coverage.AwayImpact) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO away_impacts (id, away_period_id, enrolment_id, missed_occurrences, credits_delta, paid_through_delta_days)
		VALUES (?, ?, ?, ?, ?, ?)`,
		i.ID, i.AwayPeriodID, string(i.EnrolmentID), i.MissedOccurrences, i.CreditsDelta, i.PaidThroughDeltaDays)
	return mapErr(err)
}

func (s *Store) DeleteAwayImpacts(ctx context.Context, awayPeriodID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM away_impacts WHERE away_period_id = ?`, awayPeriodID)
	return mapErr(err)
}

// =============================================================================
// ROSTER
// =============================================================================

// GetRosterCounts counts seats in Go rather than SQL: the excused check
// needs the away periods' student lists, which are stored as JSON.
func (s *Store) GetRosterCounts(ctx context.Context, id coverage.TemplateID, date coverage.Day) (coverage.RosterCounts, error) {
	var counts coverage.RosterCounts

	enrolments, err := s.ListEnrolmentsForTemplate(ctx, id)
	if err != nil {
		return counts, err
	}
	var students []string
	for _, e := range enrolments {
		if e.Status != coverage.StatusActive {
			continue
		}
		if date.Before(e.StartDate) || (e.EndDate != nil && date.After(*e.EndDate)) {
			continue
		}
		counts.Scheduled++
		students = append(students, e.StudentID)
	}

	excused, err := s.excusedStudents(ctx, date)
	if err != nil {
		return counts, err
	}
	for _, sid := range students {
		if _, ok := excused[sid]; ok {
			counts.Excused++
		}
	}

	err = s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM makeup_bookings WHERE template_id = ? AND date = ?`,
		string(id), dayStr(date)).Scan(&counts.BookedMakeups)
	return counts, err
}

func (s *Store) excusedStudents(ctx context.Context, date coverage.Day) (map[string]struct{}, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT student_ids FROM away_periods WHERE start_date <= ? AND end_date >= ?`,
		dayStr(date), dayStr(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("decode student ids: %w", err)
		}
		for _, id := range ids {
			out[id] = struct{}{}
		}
	}
	return out, rows.Err()
}

func (s *Store) PutMakeupBooking(ctx context.Context, b coverage.MakeupBooking) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO makeup_bookings (id, template_id, date, enrolment_id) VALUES (?, ?, ?, ?)`,
		b.ID, string(b.TemplateID), dayStr(b.Date), string(b.EnrolmentID))
	return mapErr(err)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
