/*
day.go - Canonical calendar day type

PURPOSE:
  Every date the engine touches is a calendar day in the studio's single
  operating timezone. Mixing UTC-midnight and local-midnight normalization
  is the most consequential bug class in entitlement math, so there is
  exactly ONE conversion point from wall-clock time to a Day: DayOf().

REPRESENTATION:
  A Day stores a time.Time pinned to 00:00:00 UTC. The UTC midnight is an
  internal encoding of the (year, month, day) triple - it carries no
  timezone meaning of its own. Callers convert instants to Days at the
  ingress boundary with DayOf(t, studioLocation) and never compare raw
  time.Time values inside the engine.

SEE ALSO:
  - calendar.go: occurrence resolution walks Days
  - types.go: all domain dates are Days
*/
package coverage

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - A calendar date at day granularity
// =============================================================================

type Day struct {
	t time.Time
}

// NewDay constructs a Day from a calendar triple.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf converts a wall-clock instant to the calendar day it falls on in the
// studio's operating timezone. This is the ONLY sanctioned conversion from
// time.Time to Day.
func DayOf(t time.Time, loc *time.Location) Day {
	local := t.In(loc)
	return NewDay(local.Year(), local.Month(), local.Day())
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, fmt.Errorf("malformed day %q: %w", s, err)
	}
	return NewDay(t.Year(), t.Month(), t.Day()), nil
}

// MustDay is ParseDay for literals in tests and fixtures. Panics on error.
func MustDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Day) Before(other Day) bool        { return d.t.Before(other.t) }
func (d Day) After(other Day) bool         { return d.t.After(other.t) }
func (d Day) Equal(other Day) bool         { return d.t.Equal(other.t) }
func (d Day) BeforeOrEqual(other Day) bool { return !d.t.After(other.t) }
func (d Day) AfterOrEqual(other Day) bool  { return !d.t.Before(other.t) }

// Arithmetic
func (d Day) AddDays(n int) Day  { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) AddWeeks(n int) Day { return Day{t: d.t.AddDate(0, 0, 7*n)} }

// Properties
func (d Day) Year() int             { return d.t.Year() }
func (d Day) Month() time.Month     { return d.t.Month() }
func (d Day) Day() int              { return d.t.Day() }
func (d Day) Weekday() time.Weekday { return d.t.Weekday() }
func (d Day) IsZero() bool          { return d.t.IsZero() }

func (d Day) String() string { return d.t.Format("2006-01-02") }

// Time returns the internal UTC-midnight encoding, for persistence only.
func (d Day) Time() time.Time { return d.t }

// DaysBetween returns the signed number of days from a to b.
func DaysBetween(a, b Day) int {
	return int(b.t.Sub(a.t).Hours() / 24)
}

// MinDay / MaxDay
func MinDay(a, b Day) Day {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxDay(a, b Day) Day {
	if a.After(b) {
		return a
	}
	return b
}

// =============================================================================
// CLOCK - Explicit "now" provider
// =============================================================================

// Clock supplies the current instant. The engine never reads the wall clock
// directly; determinism requires every computation to receive its "as of" day
// from a Clock (or an explicit parameter).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock pins time for tests.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
