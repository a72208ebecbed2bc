/*
projector.go - Coverage snapshot computation

PURPOSE:
  Computes, for one enrolment as of a day, the paid-through date, the next
  payment due date, and the remaining credits. This is the one place the two
  billing models meet:

  PER_WEEK:
    Pure date walk. Paid-through is the explicit date (or the start date for
    a brand-new enrolment); next due is the first scheduled occurrence
    strictly after it. The credit ledger is not consulted.

  PER_CLASS:
    1. Backfill CONSUME entries through as-of (ledger reflects usage-to-date)
    2. Read balance-as-of
    3. Walk future occurrences consuming one credit each until the balance
       is exhausted or the enrolment window ends
    Paid-through is the last covered occurrence; next due is the first
    occurrence the balance does not reach.

TIE-BREAK RULES:
  - balance <= 0: paid-through is nil (nothing covered), next due is the next
    scheduled occurrence, remaining credits carry the (possibly negative)
    balance. Negative means overdue - a reported state, never an error.
  - no schedulable template (nil day-of-week): paid-through and next due are
    both nil for any credit count.

TERMINATION:
  The forward walk requests exactly balance occurrences under a horizon that
  adapts to the balance (one occurrence per week minimum plus slack), so a
  pathological calendar surfaces ErrHorizonExhausted instead of spinning.
*/
package coverage

import (
	"context"
	"errors"
)

// =============================================================================
// PROJECTOR
// =============================================================================

type Projector struct {
	ledger       *Ledger
	horizonWeeks int
}

func NewProjector(ledger *Ledger, horizonWeeks int) *Projector {
	if horizonWeeks <= 0 {
		horizonWeeks = DefaultHorizonWeeks
	}
	return &Projector{ledger: ledger, horizonWeeks: horizonWeeks}
}

// ComputeSnapshot projects coverage for the enrolment as of the given day.
// Mutates the ledger only via the idempotent consumption backfill; callers
// wrap it in the same transaction that persists the result.
func (p *Projector) ComputeSnapshot(ctx context.Context, e Enrolment, plan Plan, templates []ClassTemplate, x Exclusions, asOf Day) (Snapshot, error) {
	snap := Snapshot{EnrolmentID: e.ID, AsOf: asOf}

	if !hasSchedule(templates) {
		// No fixed schedule: coverage is unresolvable.
		return snap, nil
	}

	switch plan.BillingType {
	case PerWeek:
		return p.projectPerWeek(e, templates, x, snap)
	case PerClass:
		return p.projectPerClass(ctx, e, plan, templates, x, asOf, snap)
	default:
		return snap, &ValidationError{Field: "billingType", Message: "unknown billing type " + string(plan.BillingType)}
	}
}

func (p *Projector) projectPerWeek(e Enrolment, templates []ClassTemplate, x Exclusions, snap Snapshot) (Snapshot, error) {
	paidThrough := e.EffectivePaidThrough()
	snap.PaidThrough = &paidThrough

	next, err := NextOccurrenceAfter(templates, paidThrough, e.EndDate, x, p.horizonWeeks)
	if err != nil {
		return snap, err
	}
	snap.NextDue = next
	return snap, nil
}

func (p *Projector) projectPerClass(ctx context.Context, e Enrolment, plan Plan, templates []ClassTemplate, x Exclusions, asOf Day, snap Snapshot) (Snapshot, error) {
	if _, err := p.ledger.EnsureConsumptionEvents(ctx, e, templates, x, asOf); err != nil {
		return snap, err
	}

	balance, err := p.ledger.BalanceAsOf(ctx, e.ID, asOf)
	if err != nil {
		return snap, err
	}
	snap.LedgerBalance = balance

	// The uncovered region starts after as-of (occurrences through as-of were
	// consumed above), or at the start date for enrolments starting later.
	walkFrom := e.StartDate
	if asOf.AfterOrEqual(e.StartDate) {
		walkFrom = asOf.AddDays(1)
	}

	if balance <= 0 {
		// Entitlement exhausted (or never purchased): nothing is covered and
		// the next scheduled occurrence is immediately due.
		snap.RemainingCredits = balance
		next, err := firstOccurrenceOnOrAfter(templates, walkFrom, e.EndDate, x, p.horizonWeeks)
		if err != nil {
			return snap, err
		}
		snap.NextDue = next
		return snap, nil
	}

	horizon := p.horizonWeeks
	if need := balance + plan.SessionsPerWeek + 16; need > horizon {
		horizon = need
	}

	covered, err := ListOccurrences(OccurrenceQuery{
		Templates:    templates,
		From:         walkFrom,
		To:           e.EndDate,
		Max:          balance,
		Exclusions:   x,
		HorizonWeeks: horizon,
	})
	if err != nil && !errors.Is(err, ErrHorizonExhausted) {
		return snap, err
	}
	horizonHit := errors.Is(err, ErrHorizonExhausted)

	snap.CoveredOccurrences = covered
	snap.RemainingCredits = balance - len(covered)

	if len(covered) == 0 {
		// Credits in hand but no occurrence to spend them on (template ended
		// or walk could not resolve).
		if horizonHit {
			return snap, ErrHorizonExhausted
		}
		return snap, nil
	}

	last := covered[len(covered)-1]
	snap.PaidThrough = &last

	if snap.RemainingCredits > 0 {
		// Enrolment window truncated the walk; there is no further
		// occurrence to owe for.
		if horizonHit {
			return snap, ErrHorizonExhausted
		}
		return snap, nil
	}

	next, err := NextOccurrenceAfter(templates, last, e.EndDate, x, p.horizonWeeks)
	if err != nil {
		return snap, err
	}
	snap.NextDue = next
	return snap, nil
}

// firstOccurrenceOnOrAfter is NextOccurrenceAfter with an inclusive lower
// bound, for the exhausted-credit branch.
func firstOccurrenceOnOrAfter(templates []ClassTemplate, from Day, bound *Day, x Exclusions, horizonWeeks int) (*Day, error) {
	return NextOccurrenceAfter(templates, from.AddDays(-1), bound, x, horizonWeeks)
}

func hasSchedule(templates []ClassTemplate) bool {
	for _, t := range templates {
		if t.DayOfWeek != nil {
			return true
		}
	}
	return false
}
