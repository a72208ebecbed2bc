/*
store.go - Persistence interfaces for the coverage engine

PURPOSE:
  Defines the boundary between the engine and the database. The ledger table
  is append-only: the ONLY sanctioned delete is reversal of an adjustment,
  which removes exactly the entries that adjustment created.

TRANSACTIONS:
  Every mutating engine operation runs inside one WithTx scope that also
  recomputes and persists the snapshot, so no caller can ever observe a
  half-updated enrolment (ledger changed but snapshot stale, or vice versa).
  Multi-step read-modify-write flows (away periods, moves) additionally rely
  on the store providing at least snapshot isolation; on conflict the store
  returns an error satisfying errors.Is(err, ErrConcurrentConflict) and the
  engine retries the whole operation.

IMPLEMENTATIONS:
  - store/sqlite: production store (WAL, BEGIN IMMEDIATE, partial unique
    index enforcing CONSUME idempotency)
  - coverage/store: in-memory store for tests
*/
package coverage

import "context"

// =============================================================================
// CATALOG - Plans, templates, calendar exclusions
// =============================================================================

type CatalogStore interface {
	GetPlan(ctx context.Context, id PlanID) (Plan, error)
	PutPlan(ctx context.Context, p Plan) error

	GetTemplate(ctx context.Context, id TemplateID) (ClassTemplate, error)
	GetTemplates(ctx context.Context, ids []TemplateID) ([]ClassTemplate, error)
	PutTemplate(ctx context.Context, t ClassTemplate) error

	// ListHolidays returns holidays overlapping [from, to].
	ListHolidays(ctx context.Context, from, to Day) ([]Holiday, error)
	PutHoliday(ctx context.Context, h Holiday) error

	// ListCancellations returns cancellations for the templates in [from, to].
	ListCancellations(ctx context.Context, templateIDs []TemplateID, from, to Day) ([]Cancellation, error)
	PutCancellation(ctx context.Context, c Cancellation) error
}

// =============================================================================
// ENROLMENTS
// =============================================================================

type EnrolmentStore interface {
	GetEnrolment(ctx context.Context, id EnrolmentID) (Enrolment, error)
	PutEnrolment(ctx context.Context, e Enrolment) error

	ListEnrolmentsByStatus(ctx context.Context, status EnrolmentStatus) ([]Enrolment, error)
	ListEnrolmentsForStudents(ctx context.Context, studentIDs []string) ([]Enrolment, error)
	ListEnrolmentsForTemplate(ctx context.Context, id TemplateID) ([]Enrolment, error)

	// SaveSnapshot writes the cached projector output onto the enrolment row.
	// Engine.refreshSnapshot is the only caller.
	SaveSnapshot(ctx context.Context, s Snapshot) error
}

// =============================================================================
// LEDGER - Append-only credit events
// =============================================================================

type EventStore interface {
	// AppendEvent persists one ledger entry. A CONSUME entry duplicating an
	// existing (enrolment, day) consumption fails with ErrDuplicateConsumption.
	AppendEvent(ctx context.Context, ev CreditEvent) error

	ListEvents(ctx context.Context, id EnrolmentID) ([]CreditEvent, error)

	// SumDeltasThrough computes balance-as-of: the sum of CreditsDelta over
	// entries with OccurredOn <= asOf.
	SumDeltasThrough(ctx context.Context, id EnrolmentID, asOf Day) (int, error)

	// ConsumedDays returns the days with a CONSUME entry in [from, to].
	ConsumedDays(ctx context.Context, id EnrolmentID, from, to Day) ([]Day, error)

	// DeleteEventsByAdjustment removes the entries a reversed adjustment or
	// away impact created. The only delete on the ledger.
	DeleteEventsByAdjustment(ctx context.Context, adjustmentID string) (int, error)
}

// =============================================================================
// ADJUSTMENTS & AWAY PERIODS
// =============================================================================

type AdjustmentStore interface {
	GetAdjustment(ctx context.Context, id string) (Adjustment, error)
	PutAdjustment(ctx context.Context, a Adjustment) error
}

type AwayStore interface {
	GetAwayPeriod(ctx context.Context, id string) (AwayPeriod, error)
	PutAwayPeriod(ctx context.Context, p AwayPeriod) error
	DeleteAwayPeriod(ctx context.Context, id string) error

	ListAwayImpacts(ctx context.Context, awayPeriodID string) ([]AwayImpact, error)
	PutAwayImpact(ctx context.Context, i AwayImpact) error
	DeleteAwayImpacts(ctx context.Context, awayPeriodID string) error
}

// =============================================================================
// ROSTER - Makeup seat accounting
// =============================================================================

// RosterCounts are the inputs to makeup availability for a template+date.
type RosterCounts struct {
	Scheduled     int // enrolments holding a seat on the occurrence
	Excused       int // of those, excused by an away period covering the date
	BookedMakeups int // makeup seats already booked for the occurrence
}

type MakeupBooking struct {
	ID          string
	TemplateID  TemplateID
	Date        Day
	EnrolmentID EnrolmentID
}

type RosterStore interface {
	GetRosterCounts(ctx context.Context, id TemplateID, date Day) (RosterCounts, error)
	PutMakeupBooking(ctx context.Context, b MakeupBooking) error
}

// =============================================================================
// AGGREGATE STORE
// =============================================================================

type Store interface {
	CatalogStore
	EnrolmentStore
	EventStore
	AdjustmentStore
	AwayStore
	RosterStore
}

// TxStore executes engine operations atomically. If fn returns an error the
// transaction rolls back and nothing - ledger write or snapshot - is visible.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
