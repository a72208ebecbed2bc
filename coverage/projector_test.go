package coverage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pirouette/coverage-engine/coverage"
	"github.com/pirouette/coverage-engine/coverage/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestProjector(t *testing.T) (*coverage.Projector, *coverage.Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ledger := coverage.NewLedger(mem)
	return coverage.NewProjector(ledger, 0), ledger, mem
}

func perClassPlan(block int) coverage.Plan {
	return coverage.Plan{
		ID:              "plan-class",
		Name:            "Class block",
		BillingType:     coverage.PerClass,
		SessionsPerWeek: 1,
		BlockClassCount: block,
		PriceCents:      int64(block) * 2500,
	}
}

func perWeekPlan(weeks int) coverage.Plan {
	return coverage.Plan{
		ID:              "plan-week",
		Name:            "Weekly",
		BillingType:     coverage.PerWeek,
		DurationWeeks:   weeks,
		SessionsPerWeek: 1,
		PriceCents:      int64(weeks) * 3000,
	}
}

// =============================================================================
// PER_CLASS PROJECTION
// =============================================================================

func TestProjector_PerClass_EightCreditsWeekly(t *testing.T) {
	// GIVEN: A Monday class starting 2026-01-12 and a block of 8 credits
	//        purchased before the start
	// WHEN: Projecting as of the purchase day
	// THEN: Paid-through is the 8th Monday, 2026-03-02, and the 9th Monday is
	//       the next due date

	projector, ledger, _ := newTestProjector(t)
	ctx := context.Background()

	enr := coverage.Enrolment{
		ID:         "enr-1",
		StudentID:  "stu-1",
		PlanID:     "plan-class",
		TemplateID: "t-mon",
		StartDate:  coverage.MustDay("2026-01-12"),
		Status:     coverage.StatusActive,
	}
	templates := []coverage.ClassTemplate{weeklyTemplate("t-mon", 1, "2026-01-12")}

	_, err := ledger.Append(ctx, coverage.CreditEvent{
		EnrolmentID:  enr.ID,
		Type:         coverage.EventPurchase,
		CreditsDelta: 8,
		OccurredOn:   coverage.MustDay("2026-01-10"),
	})
	require.NoError(t, err)

	snap, err := projector.ComputeSnapshot(ctx, enr, perClassPlan(8), templates, noExclusions(), coverage.MustDay("2026-01-10"))
	require.NoError(t, err)

	require.NotNil(t, snap.PaidThrough)
	assert.Equal(t, coverage.MustDay("2026-03-02"), *snap.PaidThrough)
	require.NotNil(t, snap.NextDue)
	assert.Equal(t, coverage.MustDay("2026-03-09"), *snap.NextDue)
	assert.Equal(t, 8, snap.LedgerBalance)
	assert.Equal(t, 0, snap.RemainingCredits)
	assert.Len(t, snap.CoveredOccurrences, 8)
}

func TestProjector_PerClass_HolidayExtendsCoverage(t *testing.T) {
	// GIVEN: The same 8-credit enrolment with a holiday on 2026-01-26
	// WHEN: Projecting
	// THEN: The skipped Monday pushes paid-through one week to 2026-03-09

	projector, ledger, _ := newTestProjector(t)
	ctx := context.Background()

	enr := coverage.Enrolment{
		ID:         "enr-1",
		PlanID:     "plan-class",
		TemplateID: "t-mon",
		StartDate:  coverage.MustDay("2026-01-12"),
		Status:     coverage.StatusActive,
	}
	templates := []coverage.ClassTemplate{weeklyTemplate("t-mon", 1, "2026-01-12")}
	x := coverage.NewExclusions([]coverage.Holiday{{
		ID:    "hol-1",
		Start: coverage.MustDay("2026-01-26"),
		End:   coverage.MustDay("2026-01-26"),
	}}, nil)

	_, err := ledger.Append(ctx, coverage.CreditEvent{
		EnrolmentID:  enr.ID,
		Type:         coverage.EventPurchase,
		CreditsDelta: 8,
		OccurredOn:   coverage.MustDay("2026-01-10"),
	})
	require.NoError(t, err)

	snap, err := projector.ComputeSnapshot(ctx, enr, perClassPlan(8), templates, x, coverage.MustDay("2026-01-10"))
	require.NoError(t, err)

	require.NotNil(t, snap.PaidThrough)
	assert.Equal(t, coverage.MustDay("2026-03-09"), *snap.PaidThrough)
}

func TestProjector_PerClass_BackfillShrinksBalance(t *testing.T) {
	// GIVEN: 8 credits purchased at the start, four Mondays already elapsed
	//        with no attendance recorded
	// WHEN: Projecting as of the fifth week
	// THEN: Backfill consumes the elapsed occurrences, leaving 4 credits that
	//       cover the next four Mondays

	projector, ledger, _ := newTestProjector(t)
	ctx := context.Background()

	enr := coverage.Enrolment{
		ID:         "enr-1",
		PlanID:     "plan-class",
		TemplateID: "t-mon",
		StartDate:  coverage.MustDay("2026-01-12"),
		Status:     coverage.StatusActive,
	}
	templates := []coverage.ClassTemplate{weeklyTemplate("t-mon", 1, "2026-01-12")}

	_, err := ledger.Append(ctx, coverage.CreditEvent{
		EnrolmentID:  enr.ID,
		Type:         coverage.EventPurchase,
		CreditsDelta: 8,
		OccurredOn:   coverage.MustDay("2026-01-12"),
	})
	require.NoError(t, err)

	asOf := coverage.MustDay("2026-02-04") // Wednesday after the 4th Monday
	snap, err := projector.ComputeSnapshot(ctx, enr, perClassPlan(8), templates, noExclusions(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.LedgerBalance)
	assert.Equal(t, 0, snap.RemainingCredits)
	require.NotNil(t, snap.PaidThrough)
	assert.Equal(t, coverage.MustDay("2026-03-02"), *snap.PaidThrough)
}

func TestProjector_PerClass_ExhaustedCredits(t *testing.T) {
	// GIVEN: No purchases at all
	// WHEN: Projecting
	// THEN: Nothing is covered (nil paid-through) and the next scheduled
	//       occurrence is immediately due

	projector, _, _ := newTestProjector(t)
	ctx := context.Background()

	enr := coverage.Enrolment{
		ID:         "enr-1",
		PlanID:     "plan-class",
		TemplateID: "t-mon",
		StartDate:  coverage.MustDay("2026-01-12"),
		Status:     coverage.StatusActive,
	}
	templates := []coverage.ClassTemplate{weeklyTemplate("t-mon", 1, "2026-01-12")}

	snap, err := projector.ComputeSnapshot(ctx, enr, perClassPlan(8), templates, noExclusions(), coverage.MustDay("2026-01-10"))
	require.NoError(t, err)

	assert.Nil(t, snap.PaidThrough)
	require.NotNil(t, snap.NextDue)
	assert.Equal(t, coverage.MustDay("2026-01-12"), *snap.NextDue)
	assert.Equal(t, 0, snap.RemainingCredits)
}

func TestProjector_PerClass_NegativeBalanceIsOverdue(t *testing.T) {
	// GIVEN: One credit purchased, three Mondays elapsed
	// WHEN: Projecting after the third Monday
	// THEN: Remaining credits go negative - reported, not clamped, not an error

	projector, ledger, _ := newTestProjector(t)
	ctx := context.Background()

	enr := coverage.Enrolment{
		ID:         "enr-1",
		PlanID:     "plan-class",
		TemplateID: "t-mon",
		StartDate:  coverage.MustDay("2026-01-12"),
		Status:     coverage.StatusActive,
	}
	templates := []coverage.ClassTemplate{weeklyTemplate("t-mon", 1, "2026-01-12")}

	_, err := ledger.Append(ctx, coverage.CreditEvent{
		EnrolmentID:  enr.ID,
		Type:         coverage.EventPurchase,
		CreditsDelta: 1,
		OccurredOn:   coverage.MustDay("2026-01-12"),
	})
	require.NoError(t, err)

	asOf := coverage.MustDay("2026-01-27")
	snap, err := projector.ComputeSnapshot(ctx, enr, perClassPlan(8), templates, noExclusions(), asOf)
	require.NoError(t, err)

	assert.Equal(t, -2, snap.RemainingCredits)
	assert.Nil(t, snap.PaidThrough)
	assert.True(t, snap.Overdue(asOf))
}

func TestProjector_PerClass_WindowTruncatesWalk(t *testing.T) {
	// GIVEN: 8 credits but the enrolment ends after two more Mondays
	// WHEN: Projecting
	// THEN: Paid-through is the last occurrence inside the window, leftover
	//       credits are reported, and nothing further is due

	projector, ledger, _ := newTestProjector(t)
	ctx := context.Background()

	end := coverage.MustDay("2026-01-26")
	enr := coverage.Enrolment{
		ID:         "enr-1",
		PlanID:     "plan-class",
		TemplateID: "t-mon",
		StartDate:  coverage.MustDay("2026-01-12"),
		EndDate:    &end,
		Status:     coverage.StatusActive,
	}
	templates := []coverage.ClassTemplate{weeklyTemplate("t-mon", 1, "2026-01-12")}

	_, err := ledger.Append(ctx, coverage.CreditEvent{
		EnrolmentID:  enr.ID,
		Type:         coverage.EventPurchase,
		CreditsDelta: 8,
		OccurredOn:   coverage.MustDay("2026-01-10"),
	})
	require.NoError(t, err)

	snap, err := projector.ComputeSnapshot(ctx, enr, perClassPlan(8), templates, noExclusions(), coverage.MustDay("2026-01-10"))
	require.NoError(t, err)

	require.NotNil(t, snap.PaidThrough)
	assert.Equal(t, coverage.MustDay("2026-01-26"), *snap.PaidThrough)
	assert.Equal(t, 5, snap.RemainingCredits)
	assert.Nil(t, snap.NextDue)
}

func TestProjector_NoSchedule_Unresolvable(t *testing.T) {
	// A floating enrolment (no fixed day) has no resolvable coverage for any
	// credit count.
	projector, ledger, _ := newTestProjector(t)
	ctx := context.Background()

	enr := coverage.Enrolment{
		ID:         "enr-1",
		PlanID:     "plan-class",
		TemplateID: "t-floating",
		StartDate:  coverage.MustDay("2026-01-12"),
		Status:     coverage.StatusActive,
	}
	templates := []coverage.ClassTemplate{{
		ID:        "t-floating",
		StartDate: coverage.MustDay("2026-01-12"),
	}}

	_, err := ledger.Append(ctx, coverage.CreditEvent{
		EnrolmentID:  enr.ID,
		Type:         coverage.EventPurchase,
		CreditsDelta: 100,
		OccurredOn:   coverage.MustDay("2026-01-10"),
	})
	require.NoError(t, err)

	snap, err := projector.ComputeSnapshot(ctx, enr, perClassPlan(8), templates, noExclusions(), coverage.MustDay("2026-01-10"))
	require.NoError(t, err)

	assert.Nil(t, snap.PaidThrough)
	assert.Nil(t, snap.NextDue)
}

// =============================================================================
// PER_WEEK PROJECTION
// =============================================================================

func TestProjector_PerWeek_ExplicitPaidThrough(t *testing.T) {
	projector, _, _ := newTestProjector(t)
	ctx := context.Background()

	paidThrough := coverage.MustDay("2026-02-02")
	enr := coverage.Enrolment{
		ID:          "enr-1",
		PlanID:      "plan-week",
		TemplateID:  "t-mon",
		StartDate:   coverage.MustDay("2026-01-12"),
		Status:      coverage.StatusActive,
		PaidThrough: &paidThrough,
	}
	templates := []coverage.ClassTemplate{weeklyTemplate("t-mon", 1, "2026-01-12")}

	snap, err := projector.ComputeSnapshot(ctx, enr, perWeekPlan(4), templates, noExclusions(), coverage.MustDay("2026-01-15"))
	require.NoError(t, err)

	require.NotNil(t, snap.PaidThrough)
	assert.Equal(t, paidThrough, *snap.PaidThrough)
	require.NotNil(t, snap.NextDue)
	assert.Equal(t, coverage.MustDay("2026-02-09"), *snap.NextDue)
	assert.Equal(t, 0, snap.RemainingCredits, "PER_WEEK never reports credits")
}

func TestProjector_PerWeek_NewEnrolmentDerivesFromStart(t *testing.T) {
	// No explicit paid-through: the start date is day zero and the first
	// occurrence strictly after it is due.
	projector, _, _ := newTestProjector(t)
	ctx := context.Background()

	enr := coverage.Enrolment{
		ID:         "enr-1",
		PlanID:     "plan-week",
		TemplateID: "t-mon",
		StartDate:  coverage.MustDay("2026-01-12"),
		Status:     coverage.StatusActive,
	}
	templates := []coverage.ClassTemplate{weeklyTemplate("t-mon", 1, "2026-01-12")}

	snap, err := projector.ComputeSnapshot(ctx, enr, perWeekPlan(4), templates, noExclusions(), coverage.MustDay("2026-01-12"))
	require.NoError(t, err)

	require.NotNil(t, snap.PaidThrough)
	assert.Equal(t, coverage.MustDay("2026-01-12"), *snap.PaidThrough)
	require.NotNil(t, snap.NextDue)
	assert.Equal(t, coverage.MustDay("2026-01-19"), *snap.NextDue)
}
