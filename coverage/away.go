/*
away.go - Away periods: excused absence with reversible billing impact

PURPOSE:
  A family declares a date range away. For each affected enrolment we count
  the occurrences that would have been missed (scheduled, not already
  excluded) and convert them into compensation: extra credits for PER_CLASS
  plans, a paid-through extension for PER_WEEK plans. The extension walks the
  real occurrence calendar, so holidays inside the extension window lengthen
  it correctly.

REVERSIBILITY:
  Every application is recorded as an AwayImpact audit row carrying the
  exact deltas applied. Editing or deleting an away period FIRST reverts the
  recorded impacts from those rows, then (for edits) recomputes against the
  new range. Reverting from the stored delta rather than recomputing is what
  keeps repeated edits from compounding errors.
*/
package coverage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// =============================================================================
// AWAY CALCULATOR
// =============================================================================

type AwayCalculator struct {
	ledger       *Ledger
	horizonWeeks int
}

func NewAwayCalculator(ledger *Ledger, horizonWeeks int) *AwayCalculator {
	if horizonWeeks <= 0 {
		horizonWeeks = DefaultHorizonWeeks
	}
	return &AwayCalculator{ledger: ledger, horizonWeeks: horizonWeeks}
}

// ComputeImpact determines what the away period owes one enrolment. Pure
// computation; nothing is written.
func (c *AwayCalculator) ComputeImpact(e Enrolment, plan Plan, templates []ClassTemplate, x Exclusions, period AwayPeriod) (AwayImpact, error) {
	impact := AwayImpact{
		ID:           uuid.NewString(),
		AwayPeriodID: period.ID,
		EnrolmentID:  e.ID,
	}

	from := MaxDay(period.Start, e.StartDate)
	to := period.End
	if e.EndDate != nil {
		to = MinDay(to, *e.EndDate)
	}
	if to.Before(from) {
		return impact, nil
	}

	missed, err := CountOccurrences(templates, from, to, x)
	if err != nil {
		return impact, err
	}
	impact.MissedOccurrences = missed
	if missed == 0 {
		return impact, nil
	}

	switch plan.BillingType {
	case PerClass:
		impact.CreditsDelta = missed

	case PerWeek:
		base := e.EffectivePaidThrough()
		occurrences, err := ListOccurrences(OccurrenceQuery{
			Templates:    templates,
			From:         base.AddDays(1),
			Max:          missed,
			Exclusions:   x,
			HorizonWeeks: c.horizonWeeks + missed,
		})
		if err != nil {
			return impact, fmt.Errorf("away extension for enrolment %s: %w", e.ID, err)
		}
		if len(occurrences) > 0 {
			last := occurrences[len(occurrences)-1]
			impact.PaidThroughDeltaDays = DaysBetween(base, last)
		}
	}

	return impact, nil
}

// ApplyImpact writes the computed deltas: a credit ledger entry tagged with
// the impact id, or a paid-through shift. The impact row itself is persisted
// so reversal can read the exact deltas later.
func (c *AwayCalculator) ApplyImpact(ctx context.Context, s Store, e Enrolment, plan Plan, period AwayPeriod, impact AwayImpact) error {
	if impact.MissedOccurrences == 0 {
		return nil
	}

	switch plan.BillingType {
	case PerClass:
		if impact.CreditsDelta != 0 {
			_, err := c.ledger.Append(ctx, CreditEvent{
				EnrolmentID:  e.ID,
				Type:         EventCancellationCredit,
				CreditsDelta: impact.CreditsDelta,
				OccurredOn:   period.Start,
				AdjustmentID: impact.ID,
				Note:         "away period credit",
			})
			if err != nil {
				return err
			}
		}

	case PerWeek:
		if impact.PaidThroughDeltaDays != 0 {
			shifted := clampToStart(e.EffectivePaidThrough().AddDays(impact.PaidThroughDeltaDays), e.StartDate)
			e.PaidThrough = &shifted
			if err := s.PutEnrolment(ctx, e); err != nil {
				return err
			}
		}
	}

	return s.PutAwayImpact(ctx, impact)
}

// RevertImpact undoes a recorded impact from its stored deltas.
func (c *AwayCalculator) RevertImpact(ctx context.Context, s Store, e Enrolment, plan Plan, impact AwayImpact) error {
	switch plan.BillingType {
	case PerClass:
		if impact.CreditsDelta != 0 {
			if _, err := s.DeleteEventsByAdjustment(ctx, impact.ID); err != nil {
				return fmt.Errorf("delete away credit events: %w", err)
			}
		}

	case PerWeek:
		if impact.PaidThroughDeltaDays != 0 {
			shifted := clampToStart(e.EffectivePaidThrough().AddDays(-impact.PaidThroughDeltaDays), e.StartDate)
			e.PaidThrough = &shifted
			if err := s.PutEnrolment(ctx, e); err != nil {
				return err
			}
		}
	}
	return nil
}
