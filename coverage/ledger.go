/*
ledger.go - Append-only credit ledger

PURPOSE:
  The ledger is the source of truth for PER_CLASS entitlement. Balance is
  always a derived sum over entries with OccurredOn <= as-of; the cached
  balance on the enrolment row is a read model, refreshed after every write,
  never authoritative.

INVARIANTS:
  1. Append-only: entries are never updated. The single sanctioned delete is
     reversal of an adjustment, which removes the entries it created and
     recomputes the balance.
  2. One CONSUME per (enrolment, day): a duplicate is silently skipped, so
     attendance hooks and the backfill in EnsureConsumptionEvents can both
     run without double counting.
  3. Integer deltas only. No fractional credits.

BACKFILL:
  Attendance is not always recorded in real time. EnsureConsumptionEvents
  walks the scheduled, non-excluded occurrences from the enrolment start to
  a target day and appends the missing -1 CONSUME entries, so the ledger
  reflects "credits used so far" before any projection.
*/
package coverage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Append persists one ledger entry and returns the recomputed balance as of
// the entry's day. Must run inside the same transaction as the caller's
// enrolment mutation so balance and enrolment state cannot diverge.
//
// A duplicate CONSUME for the same (enrolment, day) is skipped silently and
// the current balance returned; any other append failure is surfaced.
func (l *Ledger) Append(ctx context.Context, ev CreditEvent) (int, error) {
	if ev.EnrolmentID == "" {
		return 0, &ValidationError{Field: "enrolmentId", Message: "required"}
	}
	if ev.OccurredOn.IsZero() {
		return 0, &ValidationError{Field: "occurredOn", Message: "required"}
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	err := l.store.AppendEvent(ctx, ev)
	if err != nil {
		if ev.Type == EventConsume && errors.Is(err, ErrDuplicateConsumption) {
			// Already counted; idempotent no-op.
			return l.BalanceAsOf(ctx, ev.EnrolmentID, ev.OccurredOn)
		}
		return 0, fmt.Errorf("append %s event: %w", ev.Type, err)
	}
	return l.BalanceAsOf(ctx, ev.EnrolmentID, ev.OccurredOn)
}

// BalanceAsOf returns the sum of credit deltas with OccurredOn <= asOf.
func (l *Ledger) BalanceAsOf(ctx context.Context, id EnrolmentID, asOf Day) (int, error) {
	return l.store.SumDeltasThrough(ctx, id, asOf)
}

// EnsureConsumptionEvents backfills missing CONSUME entries (-1 per scheduled,
// non-excluded occurrence) from the enrolment start through the given day.
// Idempotent: calling it twice for the same range leaves the ledger unchanged.
// Returns the number of entries appended.
func (l *Ledger) EnsureConsumptionEvents(ctx context.Context, e Enrolment, templates []ClassTemplate, x Exclusions, through Day) (int, error) {
	end := through
	if e.EndDate != nil {
		end = MinDay(end, *e.EndDate)
	}
	if end.Before(e.StartDate) {
		return 0, nil
	}

	occurrences, err := ListOccurrences(OccurrenceQuery{
		Templates:    templates,
		From:         e.StartDate,
		To:           &end,
		Exclusions:   x,
		HorizonWeeks: DaysBetween(e.StartDate, end)/7 + 2,
	})
	if err != nil {
		return 0, err
	}
	if len(occurrences) == 0 {
		return 0, nil
	}

	consumed, err := l.store.ConsumedDays(ctx, e.ID, e.StartDate, end)
	if err != nil {
		return 0, err
	}
	have := make(map[Day]struct{}, len(consumed))
	for _, d := range consumed {
		have[d] = struct{}{}
	}

	appended := 0
	for _, d := range occurrences {
		if _, ok := have[d]; ok {
			continue
		}
		ev := CreditEvent{
			ID:           uuid.NewString(),
			EnrolmentID:  e.ID,
			Type:         EventConsume,
			CreditsDelta: -1,
			OccurredOn:   d,
			Note:         "scheduled occurrence",
		}
		if err := l.store.AppendEvent(ctx, ev); err != nil {
			if errors.Is(err, ErrDuplicateConsumption) {
				continue
			}
			return appended, fmt.Errorf("backfill consumption %s: %w", d, err)
		}
		appended++
	}
	return appended, nil
}
