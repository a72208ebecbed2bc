/*
Package coverage is the billing entitlement engine for the studio.

PURPOSE:
  Given an enrolment's plan (pay-per-week or pay-per-class), its weekly
  schedule templates, calendar exclusions (holidays, cancellations), and the
  append-only credit ledger, the engine computes the paid-through date, the
  next payment due date, and the remaining credit balance - and keeps those
  consistent as the underlying facts change (payments, attendance,
  cancellations, class moves, away periods).

KEY CONCEPTS IN THIS FILE (types.go):
  - Enrolment: a student's subscription to class templates under one plan
  - Plan: the billing template (PER_WEEK cadence or PER_CLASS credit blocks)
  - ClassTemplate: a weekly recurring slot
  - CreditEvent: an immutable ledger entry of a signed credit delta
  - Snapshot: the projector's denormalized output (the read model)

DESIGN PRINCIPLES:
  1. Ledger truth: credit balance is always a derived sum, never mutated
  2. Single writer: cached snapshot fields are written by refreshSnapshot only
  3. Determinism: identical inputs produce identical outputs; "now" is a
     parameter, never a wall-clock read
  4. Integer credits: no fractional credit consumption; money uses decimal

SEE ALSO:
  - ledger.go: append-only credit ledger
  - calendar.go: occurrence resolution
  - projector.go: snapshot computation
  - engine.go: the operations other subsystems call
*/
package coverage

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EnrolmentID string
type PlanID string
type TemplateID string

// =============================================================================
// PLAN - Billing template
// =============================================================================

type BillingType string

const (
	// PerWeek: entitlement is an explicit paid-through date advanced by
	// billing cycles of DurationWeeks. The credit ledger is not consulted.
	PerWeek BillingType = "PER_WEEK"

	// PerClass: entitlement is a block of integer credits, one consumed per
	// attended (or scheduled) occurrence.
	PerClass BillingType = "PER_CLASS"
)

// Plan is immutable once referenced by an invoice; edits must not change the
// meaning of past invoices.
type Plan struct {
	ID              PlanID
	Name            string
	BillingType     BillingType
	DurationWeeks   int // PER_WEEK: weeks covered per billing cycle
	SessionsPerWeek int
	BlockClassCount int // PER_CLASS: credits per purchase
	PriceCents      int64
}

// Price returns the plan price as a decimal dollar amount.
func (p Plan) Price() decimal.Decimal {
	return decimal.New(p.PriceCents, -2)
}

// PerOccurrencePrice derives the price of a single class occurrence under
// this plan. Used by proration, which always prices at the destination plan.
func (p Plan) PerOccurrencePrice() decimal.Decimal {
	var occurrences int64
	switch p.BillingType {
	case PerClass:
		occurrences = int64(p.BlockClassCount)
	case PerWeek:
		occurrences = int64(p.DurationWeeks * p.SessionsPerWeek)
	}
	if occurrences <= 0 {
		return decimal.Zero
	}
	return p.Price().Div(decimal.NewFromInt(occurrences))
}

// =============================================================================
// CLASS TEMPLATE - Weekly recurring slot
// =============================================================================

type ClassTemplate struct {
	ID        TemplateID
	LevelID   string
	TeacherID string

	// DayOfWeek is nil for enrolments with no fixed schedule. A nil day means
	// the template produces no occurrences and coverage is unresolvable.
	DayOfWeek *int // 0=Sunday .. 6=Saturday

	StartMinute int // minutes since midnight
	EndMinute   int

	StartDate Day
	EndDate   *Day // nil = open-ended
	Capacity  int
}

// ActiveOn reports whether the template's validity window contains d.
func (t ClassTemplate) ActiveOn(d Day) bool {
	if d.Before(t.StartDate) {
		return false
	}
	if t.EndDate != nil && d.After(*t.EndDate) {
		return false
	}
	return true
}

// =============================================================================
// ENROLMENT
// =============================================================================

type EnrolmentStatus string

const (
	StatusActive     EnrolmentStatus = "ACTIVE"
	StatusPaused     EnrolmentStatus = "PAUSED"
	StatusChangeover EnrolmentStatus = "CHANGEOVER" // superseded by a class move
	StatusCancelled  EnrolmentStatus = "CANCELLED"
)

// CanTransitionTo enforces the enrolment state machine:
// ACTIVE <-> PAUSED; ACTIVE -> CHANGEOVER (terminal);
// ACTIVE/PAUSED -> CANCELLED (terminal).
func (s EnrolmentStatus) CanTransitionTo(next EnrolmentStatus) bool {
	switch s {
	case StatusActive:
		return next == StatusPaused || next == StatusChangeover || next == StatusCancelled
	case StatusPaused:
		return next == StatusActive || next == StatusCancelled
	default:
		return false // CHANGEOVER and CANCELLED are terminal
	}
}

type Enrolment struct {
	ID        EnrolmentID
	StudentID string
	PlanID    PlanID

	// TemplateID is the primary slot; TemplateIDs is the full set of weekly
	// slots this enrolment spans (always contains TemplateID).
	TemplateID  TemplateID
	TemplateIDs []TemplateID

	// BillingGroupID chains superseded enrolments across class moves.
	BillingGroupID string

	StartDate Day
	EndDate   *Day // nil = open-ended
	Status    EnrolmentStatus

	// PaidThrough is the explicit paid-through date. Authoritative when set
	// (manual edit or PER_WEEK purchase); nil means "derive from StartDate".
	PaidThrough *Day

	// Cached projector output. Read model only - refreshSnapshot is the sole
	// writer; these must never drift from what the projector computes fresh.
	PaidThroughComputed  *Day
	NextDueComputed      *Day
	CreditsBalanceCached int
}

// AllTemplateIDs returns the template set, falling back to the primary slot.
func (e Enrolment) AllTemplateIDs() []TemplateID {
	if len(e.TemplateIDs) > 0 {
		return e.TemplateIDs
	}
	return []TemplateID{e.TemplateID}
}

// HasTemplate reports whether the enrolment holds a seat on the template.
func (e Enrolment) HasTemplate(id TemplateID) bool {
	for _, t := range e.AllTemplateIDs() {
		if t == id {
			return true
		}
	}
	return false
}

// EffectivePaidThrough is the authoritative paid-through base for PER_WEEK
// plans: the explicit date when set, else the start date (a brand-new
// enrolment is paid through its own start as day zero).
func (e Enrolment) EffectivePaidThrough() Day {
	if e.PaidThrough != nil {
		return *e.PaidThrough
	}
	return e.StartDate
}

// =============================================================================
// CREDIT LEDGER ENTRY
// =============================================================================

type EventType string

const (
	EventPurchase           EventType = "PURCHASE"
	EventConsume            EventType = "CONSUME"
	EventCancellationCredit EventType = "CANCELLATION_CREDIT"
	EventManualAdjust       EventType = "MANUAL_ADJUST"
)

// CreditEvent is one append-only ledger entry. Balance-as-of(d) is the sum of
// CreditsDelta over entries with OccurredOn <= d. Entries are never updated;
// the single sanctioned delete is reversal of an adjustment, which removes
// exactly the entries that adjustment created.
type CreditEvent struct {
	ID          string
	EnrolmentID EnrolmentID
	Type        EventType
	CreditsDelta int
	OccurredOn  Day

	// Provenance
	InvoiceID    string
	AttendanceID string
	AdjustmentID string
	Note         string
}

// =============================================================================
// CALENDAR EXCLUSIONS
// =============================================================================

// Holiday removes scheduled occurrences inside [Start, End]. Scope narrows
// from global (no LevelID, no TemplateID) to level-wide to a single template.
type Holiday struct {
	ID         string
	Name       string
	Start      Day
	End        Day
	LevelID    string     // non-empty: only templates of this level
	TemplateID TemplateID // non-empty: only this template
}

// AppliesTo reports whether the holiday excludes occurrences of t.
func (h Holiday) AppliesTo(t ClassTemplate) bool {
	if h.TemplateID != "" {
		return h.TemplateID == t.ID
	}
	if h.LevelID != "" {
		return h.LevelID == t.LevelID
	}
	return true
}

// Cancellation removes a single template+date occurrence.
type Cancellation struct {
	ID         string
	TemplateID TemplateID
	Date       Day
}

// =============================================================================
// ADJUSTMENTS & AWAY PERIODS
// =============================================================================

type AdjustmentKind string

const (
	AdjustCancellationCredit AdjustmentKind = "CANCELLATION_CREDIT"
)

// Adjustment records a billing-affecting event tied to a template+date. The
// applied delta is stored on the row so reversal always inverts exactly what
// was applied, never a fresh recomputation.
type Adjustment struct {
	ID          string
	Kind        AdjustmentKind
	EnrolmentID EnrolmentID
	TemplateID  TemplateID
	Date        Day

	CreditsDelta         int // PER_CLASS
	PaidThroughDeltaDays int // PER_WEEK
	Reversed             bool
}

// AwayPeriod is a date range during which the listed students are excused.
// Resolution of a family to its students happens in the family subsystem;
// the engine only sees student ids.
type AwayPeriod struct {
	ID         string
	FamilyID   string
	StudentIDs []string
	Start      Day
	End        Day
}

// AwayImpact is the audit row recording what an away period did to one
// enrolment, so edits and deletes revert from the stored deltas.
type AwayImpact struct {
	ID                   string
	AwayPeriodID         string
	EnrolmentID          EnrolmentID
	MissedOccurrences    int
	CreditsDelta         int // PER_CLASS: credits issued
	PaidThroughDeltaDays int // PER_WEEK: extension applied
}

// =============================================================================
// SNAPSHOT - The projector's read model
// =============================================================================

// Snapshot is the denormalized coverage state for one enrolment as of a day.
// It is the single sanctioned read path for all billing UI and reports.
type Snapshot struct {
	EnrolmentID EnrolmentID
	AsOf        Day

	// PaidThrough is the last occurrence date fully covered. Nil when nothing
	// is covered (exhausted credits) or coverage is unresolvable (no schedule).
	PaidThrough *Day

	// NextDue is the first scheduled occurrence that is not covered. Nil when
	// no further occurrence exists within the enrolment window or horizon.
	NextDue *Day

	// LedgerBalance is the ledger sum as of AsOf (PER_CLASS only). This is
	// what the enrolment's cached balance column mirrors.
	LedgerBalance int

	// RemainingCredits is the balance left after walking future occurrences:
	// zero when the walk exhausted the balance, positive when the enrolment
	// window truncated it. May go negative: negative means overdue, it is
	// deliberately not clamped. Always 0 for PER_WEEK plans.
	RemainingCredits int

	// CoveredOccurrences lists the future occurrences the balance walk
	// covered (PER_CLASS only).
	CoveredOccurrences []Day
}

// Overdue is the single "is this enrolment behind" check. Negative credits or
// a paid-through date in the past both signal overdue; this is a reported
// business state, not an error.
func (s Snapshot) Overdue(asOf Day) bool {
	if s.RemainingCredits < 0 {
		return true
	}
	return s.PaidThrough != nil && s.PaidThrough.Before(asOf)
}
