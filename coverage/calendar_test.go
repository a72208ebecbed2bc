package coverage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pirouette/coverage-engine/coverage"
)

// =============================================================================
// FIXTURES
// =============================================================================

func weeklyTemplate(id string, dayOfWeek int, start string) coverage.ClassTemplate {
	dow := dayOfWeek
	return coverage.ClassTemplate{
		ID:          coverage.TemplateID(id),
		LevelID:     "level-1",
		DayOfWeek:   &dow,
		StartMinute: 17 * 60,
		EndMinute:   18 * 60,
		StartDate:   coverage.MustDay(start),
		Capacity:    10,
	}
}

func noExclusions() coverage.Exclusions {
	return coverage.NewExclusions(nil, nil)
}

// =============================================================================
// OCCURRENCE RESOLUTION
// =============================================================================

func TestListOccurrences_WeeklyWalk(t *testing.T) {
	// GIVEN: A Monday class starting 2026-01-12
	// WHEN: Listing four occurrences
	// THEN: Four consecutive Mondays come back in order

	tmpl := weeklyTemplate("t-mon", 1, "2026-01-12")

	dates, err := coverage.ListOccurrences(coverage.OccurrenceQuery{
		Templates:  []coverage.ClassTemplate{tmpl},
		From:       coverage.MustDay("2026-01-12"),
		Max:        4,
		Exclusions: noExclusions(),
	})
	require.NoError(t, err)
	assert.Equal(t, []coverage.Day{
		coverage.MustDay("2026-01-12"),
		coverage.MustDay("2026-01-19"),
		coverage.MustDay("2026-01-26"),
		coverage.MustDay("2026-02-02"),
	}, dates)
}

func TestListOccurrences_HolidayExcluded(t *testing.T) {
	// GIVEN: A Monday class and a public holiday on 2026-01-26
	// WHEN: Listing occurrences across the holiday
	// THEN: The holiday Monday is skipped; the sequence continues after

	tmpl := weeklyTemplate("t-mon", 1, "2026-01-12")
	x := coverage.NewExclusions([]coverage.Holiday{{
		ID:    "hol-1",
		Name:  "Australia Day",
		Start: coverage.MustDay("2026-01-26"),
		End:   coverage.MustDay("2026-01-26"),
	}}, nil)

	dates, err := coverage.ListOccurrences(coverage.OccurrenceQuery{
		Templates:  []coverage.ClassTemplate{tmpl},
		From:       coverage.MustDay("2026-01-12"),
		Max:        3,
		Exclusions: x,
	})
	require.NoError(t, err)
	assert.Equal(t, []coverage.Day{
		coverage.MustDay("2026-01-12"),
		coverage.MustDay("2026-01-19"),
		coverage.MustDay("2026-02-02"),
	}, dates)
}

func TestListOccurrences_HolidayScoping(t *testing.T) {
	// GIVEN: A level-scoped holiday
	// WHEN: Resolving a template of a DIFFERENT level
	// THEN: The holiday does not exclude its occurrence

	other := weeklyTemplate("t-other", 1, "2026-01-12")
	other.LevelID = "level-2"
	x := coverage.NewExclusions([]coverage.Holiday{{
		ID:      "hol-lvl",
		Start:   coverage.MustDay("2026-01-19"),
		End:     coverage.MustDay("2026-01-19"),
		LevelID: "level-1",
	}}, nil)

	dates, err := coverage.ListOccurrences(coverage.OccurrenceQuery{
		Templates:  []coverage.ClassTemplate{other},
		From:       coverage.MustDay("2026-01-12"),
		Max:        2,
		Exclusions: x,
	})
	require.NoError(t, err)
	assert.Contains(t, dates, coverage.MustDay("2026-01-19"))
}

func TestListOccurrences_CancellationExcluded(t *testing.T) {
	tmpl := weeklyTemplate("t-mon", 1, "2026-01-12")
	x := coverage.NewExclusions(nil, []coverage.Cancellation{{
		ID:         "c-1",
		TemplateID: "t-mon",
		Date:       coverage.MustDay("2026-01-19"),
	}})

	dates, err := coverage.ListOccurrences(coverage.OccurrenceQuery{
		Templates:  []coverage.ClassTemplate{tmpl},
		From:       coverage.MustDay("2026-01-12"),
		Max:        2,
		Exclusions: x,
	})
	require.NoError(t, err)
	assert.Equal(t, []coverage.Day{
		coverage.MustDay("2026-01-12"),
		coverage.MustDay("2026-01-26"),
	}, dates)
}

func TestListOccurrences_MultiSlotMergesAndDedupes(t *testing.T) {
	// GIVEN: An enrolment spanning a Monday slot and a Wednesday slot, plus a
	//        second Monday slot at a different time
	// WHEN: Resolving occurrences
	// THEN: Dates merge ascending and the duplicate Monday DATE counts once

	mon := weeklyTemplate("t-mon", 1, "2026-01-12")
	monLate := weeklyTemplate("t-mon-late", 1, "2026-01-12")
	monLate.StartMinute = 19 * 60
	wed := weeklyTemplate("t-wed", 3, "2026-01-12")

	dates, err := coverage.ListOccurrences(coverage.OccurrenceQuery{
		Templates:  []coverage.ClassTemplate{mon, wed, monLate},
		From:       coverage.MustDay("2026-01-12"),
		Max:        4,
		Exclusions: noExclusions(),
	})
	require.NoError(t, err)
	assert.Equal(t, []coverage.Day{
		coverage.MustDay("2026-01-12"),
		coverage.MustDay("2026-01-14"),
		coverage.MustDay("2026-01-19"),
		coverage.MustDay("2026-01-21"),
	}, dates)
}

func TestListOccurrences_NoScheduleYieldsNothing(t *testing.T) {
	tmpl := coverage.ClassTemplate{
		ID:        "t-floating",
		StartDate: coverage.MustDay("2026-01-12"),
	}

	dates, err := coverage.ListOccurrences(coverage.OccurrenceQuery{
		Templates:  []coverage.ClassTemplate{tmpl},
		From:       coverage.MustDay("2026-01-12"),
		To:         dayPtr("2026-06-01"),
		Exclusions: noExclusions(),
	})
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestListOccurrences_RequiresBound(t *testing.T) {
	tmpl := weeklyTemplate("t-mon", 1, "2026-01-12")

	_, err := coverage.ListOccurrences(coverage.OccurrenceQuery{
		Templates:  []coverage.ClassTemplate{tmpl},
		From:       coverage.MustDay("2026-01-12"),
		Exclusions: noExclusions(),
	})
	assert.ErrorIs(t, err, coverage.ErrValidation)
}

func TestListOccurrences_HorizonExhausted(t *testing.T) {
	// GIVEN: A template whose window ends after two occurrences
	// WHEN: Asking for ten under an open-ended walk
	// THEN: Template EndDate stops the per-template walk, the count is unmet,
	//       and the partial result comes back with ErrHorizonExhausted

	tmpl := weeklyTemplate("t-mon", 1, "2026-01-12")
	end := coverage.MustDay("2026-01-19")
	tmpl.EndDate = &end

	dates, err := coverage.ListOccurrences(coverage.OccurrenceQuery{
		Templates:    []coverage.ClassTemplate{tmpl},
		From:         coverage.MustDay("2026-01-12"),
		Max:          10,
		Exclusions:   noExclusions(),
		HorizonWeeks: 8,
	})
	assert.ErrorIs(t, err, coverage.ErrHorizonExhausted)
	assert.Len(t, dates, 2)
}

func TestNextOccurrenceAfter_StrictlyAfter(t *testing.T) {
	tmpl := weeklyTemplate("t-mon", 1, "2026-01-12")

	next, err := coverage.NextOccurrenceAfter(
		[]coverage.ClassTemplate{tmpl}, coverage.MustDay("2026-01-12"), nil, noExclusions(), 0)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, coverage.MustDay("2026-01-19"), *next)
}

func TestNextOccurrenceAfter_NoneWithinBound(t *testing.T) {
	tmpl := weeklyTemplate("t-mon", 1, "2026-01-12")
	bound := coverage.MustDay("2026-01-18")

	next, err := coverage.NextOccurrenceAfter(
		[]coverage.ClassTemplate{tmpl}, coverage.MustDay("2026-01-12"), &bound, noExclusions(), 0)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestCountOccurrences(t *testing.T) {
	tmpl := weeklyTemplate("t-mon", 1, "2026-01-12")

	n, err := coverage.CountOccurrences(
		[]coverage.ClassTemplate{tmpl},
		coverage.MustDay("2026-01-12"), coverage.MustDay("2026-02-02"), noExclusions())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Inverted range counts zero, not an error.
	n, err = coverage.CountOccurrences(
		[]coverage.ClassTemplate{tmpl},
		coverage.MustDay("2026-02-02"), coverage.MustDay("2026-01-12"), noExclusions())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func dayPtr(s string) *coverage.Day {
	d := coverage.MustDay(s)
	return &d
}
