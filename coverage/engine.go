/*
engine.go - The operations other subsystems call

PURPOSE:
  Engine is the single entry point for everything coverage-affecting:
  billing status reads, purchases, attendance consumption, cancellation
  credits, away periods, class moves, makeup seats, and the nightly batch
  refresh. UI, invoicing, and report code never interpret ledger or template
  rows themselves - they ask the engine.

TRANSACTION DISCIPLINE:
  Every mutation runs inside exactly one store transaction that ends by
  recomputing and persisting the enrolment's snapshot, so ledger and
  snapshot can never be observed out of step. Operations touching different
  enrolments are independent; multi-step read-modify-write flows (away
  periods, moves) retry the WHOLE operation a bounded number of times when
  the store reports a conflict. Nothing is ever partially applied.

SNAPSHOT WRITER:
  refreshSnapshot is the only code path that writes the cached snapshot
  columns. Cancelled enrolments freeze their last computed snapshot.
*/
package coverage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store        TxStore
	clock        Clock
	loc          *time.Location
	invoices     InvoiceService
	horizonWeeks int
	maxRetries   int
}

type Option func(*Engine)

func WithClock(c Clock) Option                 { return func(e *Engine) { e.clock = c } }
func WithInvoiceService(s InvoiceService) Option { return func(e *Engine) { e.invoices = s } }
func WithHorizonWeeks(w int) Option            { return func(e *Engine) { e.horizonWeeks = w } }
func WithMaxRetries(n int) Option              { return func(e *Engine) { e.maxRetries = n } }

// New builds an Engine. loc is the studio's operating timezone - the single
// place wall-clock instants become calendar days.
func New(store TxStore, loc *time.Location, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		clock:        SystemClock{},
		loc:          loc,
		invoices:     NopInvoiceService{},
		horizonWeeks: DefaultHorizonWeeks,
		maxRetries:   3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today is the current calendar day in the studio timezone.
func (e *Engine) Today() Day {
	return DayOf(e.clock.Now(), e.loc)
}

func (e *Engine) asOfOrToday(asOf *Day) Day {
	if asOf != nil {
		return *asOf
	}
	return e.Today()
}

// withRetry re-runs the whole transaction on store conflicts, up to the
// bounded attempt count.
func (e *Engine) withRetry(ctx context.Context, op string, fn func(Store) error) error {
	var err error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		err = e.store.WithTx(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
	return &ConflictError{Op: op, Err: err}
}

// =============================================================================
// BILLING STATUS READS
// =============================================================================

// GetEnrolmentBillingStatus refreshes and returns one enrolment's snapshot.
// This is the sanctioned read path for all billing UI and reports.
func (e *Engine) GetEnrolmentBillingStatus(ctx context.Context, id EnrolmentID, asOf *Day) (Snapshot, error) {
	day := e.asOfOrToday(asOf)
	var snap Snapshot
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		snap, err = e.refreshSnapshot(ctx, s, id, day)
		return err
	})
	return snap, err
}

// GetBillingStatusForEnrolments is the batch variant: one transaction per
// enrolment to bound lock scope.
func (e *Engine) GetBillingStatusForEnrolments(ctx context.Context, ids []EnrolmentID, asOf *Day) (map[EnrolmentID]Snapshot, error) {
	day := e.asOfOrToday(asOf)
	out := make(map[EnrolmentID]Snapshot, len(ids))
	for _, id := range ids {
		var snap Snapshot
		err := e.store.WithTx(ctx, func(s Store) error {
			var err error
			snap, err = e.refreshSnapshot(ctx, s, id, day)
			return err
		})
		if err != nil {
			return out, fmt.Errorf("enrolment %s: %w", id, err)
		}
		out[id] = snap
	}
	return out, nil
}

// RefreshOpenEnrolments recomputes every ACTIVE enrolment's snapshot, one
// transaction each, and returns how many refreshed. Safe to run concurrently
// with live mutations; per-enrolment failures are collected, not fatal.
func (e *Engine) RefreshOpenEnrolments(ctx context.Context, asOf *Day) (int, error) {
	day := e.asOfOrToday(asOf)
	var active []Enrolment
	if err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		active, err = s.ListEnrolmentsByStatus(ctx, StatusActive)
		return err
	}); err != nil {
		return 0, err
	}

	refreshed := 0
	var errs []error
	for _, enr := range active {
		id := enr.ID
		err := e.store.WithTx(ctx, func(s Store) error {
			_, err := e.refreshSnapshot(ctx, s, id, day)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("enrolment %s: %w", id, err))
			continue
		}
		refreshed++
	}
	return refreshed, errors.Join(errs...)
}

// =============================================================================
// ENROLMENT LIFECYCLE
// =============================================================================

// CreateEnrolment validates and persists a new enrolment, then computes its
// first snapshot.
func (e *Engine) CreateEnrolment(ctx context.Context, enr Enrolment) (Snapshot, error) {
	if enr.EndDate != nil && enr.EndDate.Before(enr.StartDate) {
		return Snapshot{}, &ValidationError{Field: "endDate", Message: "end date before start date"}
	}
	if enr.ID == "" {
		enr.ID = EnrolmentID(uuid.NewString())
	}
	if enr.BillingGroupID == "" {
		enr.BillingGroupID = string(enr.ID)
	}
	if enr.Status == "" {
		enr.Status = StatusActive
	}
	day := e.Today()

	var snap Snapshot
	err := e.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetPlan(ctx, enr.PlanID); err != nil {
			return err
		}
		if _, err := e.loadTemplates(ctx, s, enr); err != nil {
			return err
		}
		if err := s.PutEnrolment(ctx, enr); err != nil {
			return err
		}
		var err error
		snap, err = e.refreshSnapshot(ctx, s, enr.ID, day)
		return err
	})
	return snap, err
}

// SetPaidThrough is the manual paid-through edit. The explicit date is
// authoritative from then on.
func (e *Engine) SetPaidThrough(ctx context.Context, id EnrolmentID, paidThrough Day) (Snapshot, error) {
	var snap Snapshot
	err := e.store.WithTx(ctx, func(s Store) error {
		enr, err := s.GetEnrolment(ctx, id)
		if err != nil {
			return err
		}
		if paidThrough.Before(enr.StartDate) {
			return &ValidationError{Field: "paidThroughDate", Message: "before enrolment start"}
		}
		enr.PaidThrough = &paidThrough
		if err := s.PutEnrolment(ctx, enr); err != nil {
			return err
		}
		snap, err = e.refreshSnapshot(ctx, s, id, e.Today())
		return err
	})
	return snap, err
}

// SetStatus drives the enrolment state machine. Cancelling sets the end date
// and freezes the last computed snapshot.
func (e *Engine) SetStatus(ctx context.Context, id EnrolmentID, next EnrolmentStatus, endDate *Day) error {
	return e.store.WithTx(ctx, func(s Store) error {
		enr, err := s.GetEnrolment(ctx, id)
		if err != nil {
			return err
		}
		if !enr.Status.CanTransitionTo(next) {
			return &TransitionError{EnrolmentID: id, From: enr.Status, To: next}
		}
		enr.Status = next
		if next == StatusCancelled {
			end := e.Today()
			if endDate != nil {
				end = *endDate
			}
			enr.EndDate = &end
		}
		if err := s.PutEnrolment(ctx, enr); err != nil {
			return err
		}
		if next == StatusCancelled {
			return nil // snapshot frozen as-is
		}
		_, err = e.refreshSnapshot(ctx, s, id, e.Today())
		return err
	})
}

// =============================================================================
// PURCHASES & ATTENDANCE
// =============================================================================

type PurchaseInput struct {
	EnrolmentID EnrolmentID
	InvoiceID   string
	OccurredOn  *Day // default today
	Credits     int  // PER_CLASS override; default plan block size
}

// RecordPurchase applies a payment: a PURCHASE ledger entry for PER_CLASS
// plans, a paid-through advance of one billing cycle for PER_WEEK plans.
func (e *Engine) RecordPurchase(ctx context.Context, in PurchaseInput) (Snapshot, error) {
	day := e.asOfOrToday(in.OccurredOn)
	var snap Snapshot
	err := e.store.WithTx(ctx, func(s Store) error {
		enr, err := s.GetEnrolment(ctx, in.EnrolmentID)
		if err != nil {
			return err
		}
		plan, err := s.GetPlan(ctx, enr.PlanID)
		if err != nil {
			return err
		}

		switch plan.BillingType {
		case PerClass:
			credits := in.Credits
			if credits <= 0 {
				credits = plan.BlockClassCount
			}
			ledger := NewLedger(s)
			if _, err := ledger.Append(ctx, CreditEvent{
				EnrolmentID:  enr.ID,
				Type:         EventPurchase,
				CreditsDelta: credits,
				OccurredOn:   day,
				InvoiceID:    in.InvoiceID,
			}); err != nil {
				return err
			}

		case PerWeek:
			base := MaxDay(enr.EffectivePaidThrough(), day.AddDays(-1))
			advanced := base.AddWeeks(plan.DurationWeeks)
			enr.PaidThrough = &advanced
			if err := s.PutEnrolment(ctx, enr); err != nil {
				return err
			}
		}

		snap, err = e.refreshSnapshot(ctx, s, enr.ID, day)
		return err
	})
	return snap, err
}

// RegisterCreditConsumptionForDate is the attendance hook: consumes one
// credit when a matching ACTIVE PER_CLASS enrolment exists and the date is
// not cancelled or already consumed. A non-match is a silent no-op (nil
// snapshot); duplicates never double-count.
func (e *Engine) RegisterCreditConsumptionForDate(ctx context.Context, templateID TemplateID, studentID string, date Day, attendanceID string) (*Snapshot, error) {
	var snap *Snapshot
	err := e.store.WithTx(ctx, func(s Store) error {
		enrolments, err := s.ListEnrolmentsForStudents(ctx, []string{studentID})
		if err != nil {
			return err
		}
		var match *Enrolment
		for i := range enrolments {
			enr := enrolments[i]
			if enr.Status != StatusActive || !enr.HasTemplate(templateID) {
				continue
			}
			if date.Before(enr.StartDate) || (enr.EndDate != nil && date.After(*enr.EndDate)) {
				continue
			}
			plan, err := s.GetPlan(ctx, enr.PlanID)
			if err != nil {
				return err
			}
			if plan.BillingType != PerClass {
				continue
			}
			match = &enr
			break
		}
		if match == nil {
			return nil
		}

		_, templates, x, err := e.loadProjectionContext(ctx, s, *match, date)
		if err != nil {
			return err
		}
		tmpl, ok := templateByID(templates, templateID)
		if !ok {
			return ErrTemplateNotFound
		}
		if x.Excludes(tmpl, date) {
			return nil // cancelled or holiday: nothing to consume
		}

		ledger := NewLedger(s)
		if _, err := ledger.Append(ctx, CreditEvent{
			EnrolmentID:  match.ID,
			Type:         EventConsume,
			CreditsDelta: -1,
			OccurredOn:   date,
			AttendanceID: attendanceID,
		}); err != nil {
			return err
		}

		fresh, err := e.refreshSnapshot(ctx, s, match.ID, e.Today())
		if err != nil {
			return err
		}
		snap = &fresh
		return nil
	})
	return snap, err
}

// =============================================================================
// CANCELLATION CREDITS
// =============================================================================

// CancelOccurrence records a single-class cancellation and compensates every
// enrolment holding a seat on it. Returns the adjustments applied.
func (e *Engine) CancelOccurrence(ctx context.Context, templateID TemplateID, date Day) ([]Adjustment, error) {
	var applied []Adjustment
	err := e.withRetry(ctx, "cancel occurrence", func(s Store) error {
		applied = applied[:0]
		if _, err := s.GetTemplate(ctx, templateID); err != nil {
			return err
		}
		if err := s.PutCancellation(ctx, Cancellation{
			ID:         uuid.NewString(),
			TemplateID: templateID,
			Date:       date,
		}); err != nil {
			return err
		}

		enrolments, err := s.ListEnrolmentsForTemplate(ctx, templateID)
		if err != nil {
			return err
		}
		for _, enr := range enrolments {
			if enr.Status != StatusActive {
				continue
			}
			if date.Before(enr.StartDate) || (enr.EndDate != nil && date.After(*enr.EndDate)) {
				continue
			}
			adj, err := e.applyCancellationCredit(ctx, s, Adjustment{
				ID:          uuid.NewString(),
				Kind:        AdjustCancellationCredit,
				EnrolmentID: enr.ID,
				TemplateID:  templateID,
				Date:        date,
			})
			if err != nil {
				return err
			}
			applied = append(applied, adj)
		}
		return nil
	})
	return applied, err
}

// RegisterCancellationCredit applies a cancellation credit to one enrolment.
func (e *Engine) RegisterCancellationCredit(ctx context.Context, adj Adjustment) (Adjustment, error) {
	if adj.ID == "" {
		adj.ID = uuid.NewString()
	}
	adj.Kind = AdjustCancellationCredit
	var out Adjustment
	err := e.store.WithTx(ctx, func(s Store) error {
		var err error
		out, err = e.applyCancellationCredit(ctx, s, adj)
		return err
	})
	return out, err
}

func (e *Engine) applyCancellationCredit(ctx context.Context, s Store, adj Adjustment) (Adjustment, error) {
	enr, err := s.GetEnrolment(ctx, adj.EnrolmentID)
	if err != nil {
		return adj, err
	}
	plan, templates, x, err := e.loadProjectionContext(ctx, s, enr, adj.Date)
	if err != nil {
		return adj, err
	}

	calc := NewAdjustmentCalculator(NewLedger(s), e.horizonWeeks)
	adj, err = calc.ApplyCancellationCredit(ctx, s, enr, plan, templates, x, adj)
	if err != nil {
		return adj, err
	}
	_, err = e.refreshSnapshot(ctx, s, enr.ID, e.Today())
	return adj, err
}

// RemoveCancellationCredit exactly inverts a previously applied adjustment
// (the uncancel hook) and recomputes the snapshot.
func (e *Engine) RemoveCancellationCredit(ctx context.Context, adjustmentID string) error {
	return e.store.WithTx(ctx, func(s Store) error {
		adj, err := s.GetAdjustment(ctx, adjustmentID)
		if err != nil {
			return err
		}
		enr, err := s.GetEnrolment(ctx, adj.EnrolmentID)
		if err != nil {
			return err
		}
		plan, err := s.GetPlan(ctx, enr.PlanID)
		if err != nil {
			return err
		}

		calc := NewAdjustmentCalculator(NewLedger(s), e.horizonWeeks)
		if err := calc.ReverseCancellationCredit(ctx, s, enr, plan, adj); err != nil {
			return err
		}
		_, err = e.refreshSnapshot(ctx, s, enr.ID, e.Today())
		return err
	})
}

// =============================================================================
// AWAY PERIODS
// =============================================================================

// CreateAwayPeriod records the away range and applies its impact to every
// affected active enrolment, all in one retried transaction.
func (e *Engine) CreateAwayPeriod(ctx context.Context, p AwayPeriod) (AwayPeriod, error) {
	if p.End.Before(p.Start) {
		return p, &ValidationError{Field: "end", Message: "end date before start date"}
	}
	if len(p.StudentIDs) == 0 {
		return p, &ValidationError{Field: "studentIds", Message: "at least one student required"}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := e.withRetry(ctx, "create away period", func(s Store) error {
		if err := s.PutAwayPeriod(ctx, p); err != nil {
			return err
		}
		return e.applyAwayImpacts(ctx, s, p)
	})
	return p, err
}

// UpdateAwayPeriod reverts the previously recorded impacts FIRST (from the
// stored audit rows), then reapplies against the new range, so repeated
// edits never compound.
func (e *Engine) UpdateAwayPeriod(ctx context.Context, p AwayPeriod) (AwayPeriod, error) {
	if p.End.Before(p.Start) {
		return p, &ValidationError{Field: "end", Message: "end date before start date"}
	}
	err := e.withRetry(ctx, "update away period", func(s Store) error {
		existing, err := s.GetAwayPeriod(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(p.StudentIDs) == 0 {
			p.StudentIDs = existing.StudentIDs
		}
		if err := e.revertAwayImpacts(ctx, s, existing); err != nil {
			return err
		}
		if err := s.PutAwayPeriod(ctx, p); err != nil {
			return err
		}
		return e.applyAwayImpacts(ctx, s, p)
	})
	return p, err
}

// DeleteAwayPeriod reverts recorded impacts and removes the period.
func (e *Engine) DeleteAwayPeriod(ctx context.Context, id string) error {
	return e.withRetry(ctx, "delete away period", func(s Store) error {
		existing, err := s.GetAwayPeriod(ctx, id)
		if err != nil {
			return err
		}
		if err := e.revertAwayImpacts(ctx, s, existing); err != nil {
			return err
		}
		return s.DeleteAwayPeriod(ctx, id)
	})
}

func (e *Engine) applyAwayImpacts(ctx context.Context, s Store, p AwayPeriod) error {
	enrolments, err := s.ListEnrolmentsForStudents(ctx, p.StudentIDs)
	if err != nil {
		return err
	}
	calc := NewAwayCalculator(NewLedger(s), e.horizonWeeks)
	for _, enr := range enrolments {
		if enr.Status != StatusActive {
			continue
		}
		plan, templates, x, err := e.loadProjectionContext(ctx, s, enr, p.End)
		if err != nil {
			return err
		}
		impact, err := calc.ComputeImpact(enr, plan, templates, x, p)
		if err != nil {
			return err
		}
		if err := calc.ApplyImpact(ctx, s, enr, plan, p, impact); err != nil {
			return err
		}
		if _, err := e.refreshSnapshot(ctx, s, enr.ID, e.Today()); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) revertAwayImpacts(ctx context.Context, s Store, p AwayPeriod) error {
	impacts, err := s.ListAwayImpacts(ctx, p.ID)
	if err != nil {
		return err
	}
	calc := NewAwayCalculator(NewLedger(s), e.horizonWeeks)
	for _, impact := range impacts {
		enr, err := s.GetEnrolment(ctx, impact.EnrolmentID)
		if err != nil {
			return err
		}
		plan, err := s.GetPlan(ctx, enr.PlanID)
		if err != nil {
			return err
		}
		if err := calc.RevertImpact(ctx, s, enr, plan, impact); err != nil {
			return err
		}
		if _, err := e.refreshSnapshot(ctx, s, enr.ID, e.Today()); err != nil {
			return err
		}
	}
	return s.DeleteAwayImpacts(ctx, p.ID)
}

// =============================================================================
// CLASS MOVES
// =============================================================================

type MoveInput struct {
	EnrolmentID   EnrolmentID
	EffectiveDate Day
	NewPlanID     PlanID
	NewTemplateIDs []TemplateID
}

type MoveResult struct {
	OldEnrolmentID EnrolmentID
	NewEnrolment   Enrolment
	Proration      ProrationResult
	InvoiceID      string
}

// MoveEnrolment closes the old enrolment (CHANGEOVER), opens a successor in
// the same billing group, transfers any PER_CLASS balance, and prices the
// paid-through gap at the destination plan's per-occurrence rate, realized
// through the invoice service as a charge or a settled credit - never both.
func (e *Engine) MoveEnrolment(ctx context.Context, in MoveInput) (MoveResult, error) {
	if len(in.NewTemplateIDs) == 0 {
		return MoveResult{}, &ValidationError{Field: "newTemplateIds", Message: "at least one template required"}
	}
	today := e.Today()
	var result MoveResult
	err := e.withRetry(ctx, "move enrolment", func(s Store) error {
		old, err := s.GetEnrolment(ctx, in.EnrolmentID)
		if err != nil {
			return err
		}
		if old.Status != StatusActive {
			return &TransitionError{EnrolmentID: old.ID, From: old.Status, To: StatusChangeover}
		}

		oldSnap, err := e.refreshSnapshot(ctx, s, old.ID, today)
		if err != nil {
			return err
		}
		if in.EffectiveDate.Before(today) && oldSnap.PaidThrough != nil && oldSnap.PaidThrough.After(in.EffectiveDate) {
			return fmt.Errorf("%w: coverage extends past effective date %s", ErrConsistency, in.EffectiveDate)
		}

		oldPlan, err := s.GetPlan(ctx, old.PlanID)
		if err != nil {
			return err
		}
		newPlan, err := s.GetPlan(ctx, in.NewPlanID)
		if err != nil {
			return err
		}

		// Close the old enrolment the day before the move takes effect.
		closed := in.EffectiveDate.AddDays(-1)
		old.Status = StatusChangeover
		old.EndDate = &closed
		if err := s.PutEnrolment(ctx, old); err != nil {
			return err
		}

		successor := Enrolment{
			ID:             EnrolmentID(uuid.NewString()),
			StudentID:      old.StudentID,
			PlanID:         in.NewPlanID,
			TemplateID:     in.NewTemplateIDs[0],
			TemplateIDs:    in.NewTemplateIDs,
			BillingGroupID: old.BillingGroupID,
			StartDate:      in.EffectiveDate,
			Status:         StatusActive,
		}
		if err := s.PutEnrolment(ctx, successor); err != nil {
			return err
		}

		// Carry remaining block credits across a PER_CLASS -> PER_CLASS move.
		ledger := NewLedger(s)
		if oldPlan.BillingType == PerClass && newPlan.BillingType == PerClass {
			balance, err := ledger.BalanceAsOf(ctx, old.ID, today)
			if err != nil {
				return err
			}
			if balance != 0 {
				if _, err := ledger.Append(ctx, CreditEvent{
					EnrolmentID:  old.ID,
					Type:         EventManualAdjust,
					CreditsDelta: -balance,
					OccurredOn:   today,
					Note:         "balance transferred to " + string(successor.ID),
				}); err != nil {
					return err
				}
				if _, err := ledger.Append(ctx, CreditEvent{
					EnrolmentID:  successor.ID,
					Type:         EventManualAdjust,
					CreditsDelta: balance,
					OccurredOn:   today,
					Note:         "balance transferred from " + string(old.ID),
				}); err != nil {
					return err
				}
			}
		}

		if _, err := e.refreshSnapshot(ctx, s, old.ID, today); err != nil {
			return err
		}
		newSnap, err := e.refreshSnapshot(ctx, s, successor.ID, today)
		if err != nil {
			return err
		}

		result = MoveResult{OldEnrolmentID: old.ID, NewEnrolment: successor}

		if oldSnap.PaidThrough != nil && newSnap.PaidThrough != nil {
			_, destTemplates, x, err := e.loadProjectionContext(ctx, s, successor, today)
			if err != nil {
				return err
			}
			proration, err := CalculateMoveProration(*oldSnap.PaidThrough, *newSnap.PaidThrough, newPlan, destTemplates, x)
			if err != nil {
				return err
			}
			result.Proration = proration

			draft := InvoiceDraft{
				EnrolmentID: successor.ID,
				StudentID:   successor.StudentID,
				Description: fmt.Sprintf("class move proration (%d occurrences)", proration.Occurrences),
				AmountCents: proration.AmountCents(),
			}
			switch proration.Kind {
			case ProrationCharge:
				result.InvoiceID, err = e.invoices.CreateInvoice(ctx, draft)
			case ProrationCredit:
				result.InvoiceID, err = e.invoices.CreateInvoiceWithPayment(ctx, draft)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return result, err
}

// =============================================================================
// MAKEUP SEATS
// =============================================================================

// MakeupAvailability reports bookable makeup seats for one occurrence.
func (e *Engine) MakeupAvailability(ctx context.Context, templateID TemplateID, date Day) (MakeupAvailability, error) {
	var out MakeupAvailability
	err := e.store.WithTx(ctx, func(s Store) error {
		tmpl, err := s.GetTemplate(ctx, templateID)
		if err != nil {
			return err
		}
		counts, err := s.GetRosterCounts(ctx, templateID, date)
		if err != nil {
			return err
		}
		out = MakeupAvailability{
			TemplateID: templateID,
			Date:       date,
			Capacity:   tmpl.Capacity,
			Counts:     counts,
			Available:  AvailableMakeupSeats(tmpl.Capacity, counts),
		}
		return nil
	})
	return out, err
}

// BookMakeup reserves a makeup seat, rejecting when the occurrence is full.
func (e *Engine) BookMakeup(ctx context.Context, templateID TemplateID, date Day, enrolmentID EnrolmentID) (MakeupBooking, error) {
	booking := MakeupBooking{
		ID:          uuid.NewString(),
		TemplateID:  templateID,
		Date:        date,
		EnrolmentID: enrolmentID,
	}
	err := e.withRetry(ctx, "book makeup", func(s Store) error {
		tmpl, err := s.GetTemplate(ctx, templateID)
		if err != nil {
			return err
		}
		if _, err := s.GetEnrolment(ctx, enrolmentID); err != nil {
			return err
		}
		counts, err := s.GetRosterCounts(ctx, templateID, date)
		if err != nil {
			return err
		}
		if AvailableMakeupSeats(tmpl.Capacity, counts) <= 0 {
			return fmt.Errorf("%w: template %s on %s", ErrCapacityExceeded, templateID, date)
		}
		return s.PutMakeupBooking(ctx, booking)
	})
	return booking, err
}

// =============================================================================
// SNAPSHOT REFRESH - the only writer of cached snapshot fields
// =============================================================================

func (e *Engine) refreshSnapshot(ctx context.Context, s Store, id EnrolmentID, asOf Day) (Snapshot, error) {
	enr, err := s.GetEnrolment(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}

	if enr.Status == StatusCancelled {
		// Frozen: report the last computed state without recomputation.
		return Snapshot{
			EnrolmentID:      enr.ID,
			AsOf:             asOf,
			PaidThrough:      enr.PaidThroughComputed,
			NextDue:          enr.NextDueComputed,
			LedgerBalance:    enr.CreditsBalanceCached,
			RemainingCredits: enr.CreditsBalanceCached,
		}, nil
	}

	plan, templates, x, err := e.loadProjectionContext(ctx, s, enr, asOf)
	if err != nil {
		return Snapshot{}, err
	}

	projector := NewProjector(NewLedger(s), e.horizonWeeks)
	snap, err := projector.ComputeSnapshot(ctx, enr, plan, templates, x, asOf)
	if err != nil {
		return snap, err
	}
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// loadProjectionContext gathers the plan, templates, and calendar exclusions
// an enrolment's projection needs. The exclusion window spans from the
// enrolment start to the horizon (plus a year of slack for balance-adaptive
// walks).
func (e *Engine) loadProjectionContext(ctx context.Context, s Store, enr Enrolment, asOf Day) (Plan, []ClassTemplate, Exclusions, error) {
	plan, err := s.GetPlan(ctx, enr.PlanID)
	if err != nil {
		return Plan{}, nil, Exclusions{}, err
	}
	templates, err := e.loadTemplates(ctx, s, enr)
	if err != nil {
		return Plan{}, nil, Exclusions{}, err
	}

	from := MinDay(enr.StartDate, asOf)
	to := asOf.AddWeeks(e.horizonWeeks + 52)
	holidays, err := s.ListHolidays(ctx, from, to)
	if err != nil {
		return Plan{}, nil, Exclusions{}, err
	}
	cancellations, err := s.ListCancellations(ctx, enr.AllTemplateIDs(), from, to)
	if err != nil {
		return Plan{}, nil, Exclusions{}, err
	}
	return plan, templates, NewExclusions(holidays, cancellations), nil
}

func (e *Engine) loadTemplates(ctx context.Context, s Store, enr Enrolment) ([]ClassTemplate, error) {
	ids := enr.AllTemplateIDs()
	templates, err := s.GetTemplates(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(templates) != len(ids) {
		return nil, ErrTemplateNotFound
	}
	return templates, nil
}

func templateByID(templates []ClassTemplate, id TemplateID) (ClassTemplate, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return ClassTemplate{}, false
}
