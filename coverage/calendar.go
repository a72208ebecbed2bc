/*
calendar.go - Occurrence resolution for weekly recurring class templates

PURPOSE:
  Turns a weekly template (day-of-week + validity window) plus calendar
  exclusions (holidays, single-class cancellations) into the ordered sequence
  of dates a session actually happens.

DETERMINISM & TERMINATION:
  Given identical inputs the output is identical; there are no wall-clock
  reads. Open-ended projection is bounded by an explicit horizon (default
  104 weeks of lookahead from the query start). When the horizon is reached
  before the requested number of occurrences is found, the resolver returns
  what it found together with ErrHorizonExhausted - it never loops
  indefinitely.

OCCURRENCE IDENTITY:
  An occurrence is a DATE. An enrolment spanning several weekly slots merges
  the slots' dates into one ascending sequence; two slots landing on the same
  date count once, matching the one-consumption-per-day ledger invariant.

EDGE CASE:
  A template with no fixed day (DayOfWeek == nil) yields an empty sequence;
  callers must treat coverage as unresolvable (nil paid-through/next-due).
*/
package coverage

import (
	"errors"
	"sort"
)

// DefaultHorizonWeeks bounds open-ended occurrence projection.
const DefaultHorizonWeeks = 104

// =============================================================================
// EXCLUSIONS - Holidays and cancellations, resolved per template+date
// =============================================================================

type cancelKey struct {
	TemplateID TemplateID
	Date       Day
}

// Exclusions is an immutable lookup built from the holidays and cancellations
// overlapping the projection window.
type Exclusions struct {
	holidays  []Holiday
	cancelled map[cancelKey]struct{}
}

func NewExclusions(holidays []Holiday, cancellations []Cancellation) Exclusions {
	x := Exclusions{holidays: holidays, cancelled: make(map[cancelKey]struct{}, len(cancellations))}
	for _, c := range cancellations {
		x.cancelled[cancelKey{TemplateID: c.TemplateID, Date: c.Date}] = struct{}{}
	}
	return x
}

// Excludes reports whether the template's occurrence on d is removed by a
// holiday (global, level-scoped, or template-scoped) or a cancellation.
func (x Exclusions) Excludes(t ClassTemplate, d Day) bool {
	if _, ok := x.cancelled[cancelKey{TemplateID: t.ID, Date: d}]; ok {
		return true
	}
	for _, h := range x.holidays {
		if h.AppliesTo(t) && d.AfterOrEqual(h.Start) && d.BeforeOrEqual(h.End) {
			return true
		}
	}
	return false
}

// IsCancelled reports a single-class cancellation for template+date,
// independent of holidays. Used to decide whether a consumption applies.
func (x Exclusions) IsCancelled(id TemplateID, d Day) bool {
	_, ok := x.cancelled[cancelKey{TemplateID: id, Date: d}]
	return ok
}

// =============================================================================
// OCCURRENCE QUERY
// =============================================================================

// OccurrenceQuery asks for the scheduled dates of a set of weekly slots.
// At least one bound is required: an end date (To) or a count (Max).
type OccurrenceQuery struct {
	Templates  []ClassTemplate
	From       Day
	To         *Day // inclusive; nil = open-ended
	Max        int  // stop after this many occurrences; 0 = unlimited
	Exclusions Exclusions

	// HorizonWeeks caps lookahead from From for open-ended queries.
	// Zero means DefaultHorizonWeeks.
	HorizonWeeks int
}

func (q OccurrenceQuery) horizonEnd() Day {
	weeks := q.HorizonWeeks
	if weeks <= 0 {
		weeks = DefaultHorizonWeeks
	}
	return q.From.AddWeeks(weeks)
}

// ListOccurrences resolves the ascending sequence of scheduled, non-excluded
// dates matching the query. Templates without a fixed day contribute nothing.
//
// When Max > 0 and the horizon ends before Max occurrences are found (and no
// explicit To terminated the walk), the partial sequence is returned with
// ErrHorizonExhausted.
func ListOccurrences(q OccurrenceQuery) ([]Day, error) {
	if q.To == nil && q.Max <= 0 {
		return nil, &ValidationError{Field: "query", Message: "occurrence query needs an end date or a count"}
	}
	if q.To != nil && q.To.Before(q.From) {
		return nil, &ValidationError{Field: "to", Message: "end before start"}
	}

	horizon := q.horizonEnd()
	end := horizon
	bounded := false
	if q.To != nil && q.To.Before(horizon) {
		end = *q.To
		bounded = true
	}

	seen := make(map[Day]struct{})
	var dates []Day
	for _, t := range q.Templates {
		if t.DayOfWeek == nil {
			continue
		}
		cur := firstOnOrAfter(MaxDay(t.StartDate, q.From), *t.DayOfWeek)
		for cur.BeforeOrEqual(end) {
			if t.EndDate != nil && cur.After(*t.EndDate) {
				break
			}
			if !q.Exclusions.Excludes(t, cur) {
				if _, dup := seen[cur]; !dup {
					seen[cur] = struct{}{}
					dates = append(dates, cur)
				}
			}
			cur = cur.AddDays(7)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if q.Max > 0 && len(dates) > q.Max {
		dates = dates[:q.Max]
	}
	if q.Max > 0 && len(dates) < q.Max && !bounded {
		return dates, ErrHorizonExhausted
	}
	return dates, nil
}

// NextOccurrenceAfter returns the first scheduled occurrence strictly after
// the given day, or nil when none exists within the bound (or horizon).
func NextOccurrenceAfter(templates []ClassTemplate, after Day, bound *Day, x Exclusions, horizonWeeks int) (*Day, error) {
	q := OccurrenceQuery{
		Templates:    templates,
		From:         after.AddDays(1),
		To:           bound,
		Max:          1,
		Exclusions:   x,
		HorizonWeeks: horizonWeeks,
	}
	dates, err := ListOccurrences(q)
	if err != nil && !errors.Is(err, ErrHorizonExhausted) {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, nil
	}
	d := dates[0]
	return &d, nil
}

// CountOccurrences counts scheduled occurrences in [from, to].
func CountOccurrences(templates []ClassTemplate, from, to Day, x Exclusions) (int, error) {
	if to.Before(from) {
		return 0, nil
	}
	dates, err := ListOccurrences(OccurrenceQuery{
		Templates:  templates,
		From:       from,
		To:         &to,
		Exclusions: x,
		// [from, to] is explicit; lift the horizon past it.
		HorizonWeeks: DaysBetween(from, to)/7 + 2,
	})
	if err != nil {
		return 0, err
	}
	return len(dates), nil
}

// firstOnOrAfter returns the first date with the given weekday on or after d.
func firstOnOrAfter(d Day, dayOfWeek int) Day {
	diff := (dayOfWeek - int(d.Weekday()) + 7) % 7
	return d.AddDays(diff)
}
