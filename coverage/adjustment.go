/*
adjustment.go - Cancellation credits and their exact reversal

PURPOSE:
  When a class occurrence is cancelled, every enrolment with a seat on it is
  made whole: PER_CLASS plans receive a +1 credit ledger entry, PER_WEEK
  plans have their paid-through date shifted forward to the next equivalent
  occurrence. Uncancelling must invert exactly what was applied.

REVERSAL DOCTRINE:
  The applied delta is stored on the Adjustment row at apply time. Reversal
  reads the stored delta - it never recomputes it - so a calendar or code
  change between apply and reverse cannot desynchronize the two. PER_CLASS
  reversal deletes the ledger entries tagged with the adjustment id (the
  single sanctioned ledger delete); PER_WEEK reversal subtracts the stored
  day delta, clamped so paid-through never lands before the enrolment start.
*/
package coverage

import (
	"context"
	"fmt"
)

// =============================================================================
// ADJUSTMENT CALCULATOR
// =============================================================================

type AdjustmentCalculator struct {
	ledger       *Ledger
	horizonWeeks int
}

func NewAdjustmentCalculator(ledger *Ledger, horizonWeeks int) *AdjustmentCalculator {
	if horizonWeeks <= 0 {
		horizonWeeks = DefaultHorizonWeeks
	}
	return &AdjustmentCalculator{ledger: ledger, horizonWeeks: horizonWeeks}
}

// ApplyCancellationCredit compensates one enrolment for a cancelled
// occurrence, persisting the applied delta on the adjustment row. Runs inside
// the caller's transaction; the caller refreshes the snapshot afterwards.
func (c *AdjustmentCalculator) ApplyCancellationCredit(ctx context.Context, s Store, e Enrolment, plan Plan, templates []ClassTemplate, x Exclusions, adj Adjustment) (Adjustment, error) {
	if !e.HasTemplate(adj.TemplateID) {
		return adj, &ValidationError{Field: "templateId", Message: "enrolment holds no seat on template " + string(adj.TemplateID)}
	}

	switch plan.BillingType {
	case PerClass:
		adj.CreditsDelta = 1
		_, err := c.ledger.Append(ctx, CreditEvent{
			EnrolmentID:  e.ID,
			Type:         EventCancellationCredit,
			CreditsDelta: adj.CreditsDelta,
			OccurredOn:   adj.Date,
			AdjustmentID: adj.ID,
			Note:         "class cancelled",
		})
		if err != nil {
			return adj, err
		}

	case PerWeek:
		delta, err := c.deltaToNextEquivalent(templates, adj, x)
		if err != nil {
			return adj, err
		}
		adj.PaidThroughDeltaDays = delta
		shifted := clampToStart(e.EffectivePaidThrough().AddDays(delta), e.StartDate)
		e.PaidThrough = &shifted
		if err := s.PutEnrolment(ctx, e); err != nil {
			return adj, err
		}
	}

	if err := s.PutAdjustment(ctx, adj); err != nil {
		return adj, err
	}
	return adj, nil
}

// ReverseCancellationCredit inverts a previously applied adjustment from its
// stored deltas and marks it reversed.
func (c *AdjustmentCalculator) ReverseCancellationCredit(ctx context.Context, s Store, e Enrolment, plan Plan, adj Adjustment) error {
	if adj.Reversed {
		return &ValidationError{Field: "adjustmentId", Message: "adjustment already reversed"}
	}

	switch plan.BillingType {
	case PerClass:
		if _, err := s.DeleteEventsByAdjustment(ctx, adj.ID); err != nil {
			return fmt.Errorf("delete adjustment events: %w", err)
		}

	case PerWeek:
		shifted := clampToStart(e.EffectivePaidThrough().AddDays(-adj.PaidThroughDeltaDays), e.StartDate)
		e.PaidThrough = &shifted
		if err := s.PutEnrolment(ctx, e); err != nil {
			return err
		}
	}

	adj.Reversed = true
	return s.PutAdjustment(ctx, adj)
}

// deltaToNextEquivalent measures the calendar span from the cancelled
// occurrence to the next scheduled occurrence of the same template, so a
// PER_WEEK paid-through date skips exactly one delivery.
func (c *AdjustmentCalculator) deltaToNextEquivalent(templates []ClassTemplate, adj Adjustment, x Exclusions) (int, error) {
	var same []ClassTemplate
	for _, t := range templates {
		if t.ID == adj.TemplateID {
			same = append(same, t)
		}
	}
	if len(same) == 0 {
		return 0, ErrTemplateNotFound
	}
	next, err := NextOccurrenceAfter(same, adj.Date, nil, x, c.horizonWeeks)
	if err != nil {
		return 0, err
	}
	if next == nil {
		// Template ends before another occurrence; nothing to shift to.
		return 0, nil
	}
	return DaysBetween(adj.Date, *next), nil
}

// clampToStart keeps a shifted paid-through date from landing before the
// enrolment start.
func clampToStart(d, start Day) Day {
	if d.Before(start) {
		return start
	}
	return d
}
