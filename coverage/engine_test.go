package coverage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pirouette/coverage-engine/coverage"
	"github.com/pirouette/coverage-engine/coverage/store"
)

// newTestEngine pins the clock to Saturday 2026-01-10 and seeds the catalog
// with the shared plans and the Monday template starting 2026-01-12.
func newTestEngine(t *testing.T, opts ...coverage.Option) (*coverage.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.PutPlan(ctx, perClassPlan(8)))
	require.NoError(t, mem.PutPlan(ctx, perWeekPlan(4)))
	require.NoError(t, mem.PutTemplate(ctx, weeklyTemplate("t-mon", 1, "2026-01-12")))

	base := []coverage.Option{
		coverage.WithClock(coverage.FixedClock{At: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}),
	}
	return coverage.New(mem, time.UTC, append(base, opts...)...), mem
}

func newEnrolment(id, student, planID string) coverage.Enrolment {
	return coverage.Enrolment{
		ID:         coverage.EnrolmentID(id),
		StudentID:  student,
		PlanID:     coverage.PlanID(planID),
		TemplateID: "t-mon",
		StartDate:  coverage.MustDay("2026-01-12"),
	}
}

// =============================================================================
// ENROLMENT LIFECYCLE
// =============================================================================

func TestEngine_CreateEnrolment_FirstSnapshot(t *testing.T) {
	// GIVEN: A fresh PER_CLASS enrolment with no purchases
	// WHEN: It is created
	// THEN: The first snapshot shows zero balance with the first class due

	eng, _ := newTestEngine(t)

	snap, err := eng.CreateEnrolment(context.Background(), newEnrolment("enr-1", "stu-1", "plan-class"))
	require.NoError(t, err)

	assert.Equal(t, 0, snap.LedgerBalance)
	assert.Nil(t, snap.PaidThrough)
	require.NotNil(t, snap.NextDue)
	assert.Equal(t, coverage.MustDay("2026-01-12"), *snap.NextDue)
}

func TestEngine_CreateEnrolment_EndBeforeStart(t *testing.T) {
	eng, _ := newTestEngine(t)

	enr := newEnrolment("enr-1", "stu-1", "plan-class")
	end := coverage.MustDay("2026-01-05")
	enr.EndDate = &end

	_, err := eng.CreateEnrolment(context.Background(), enr)
	assert.ErrorIs(t, err, coverage.ErrValidation)
}

func TestEngine_CreateEnrolment_UnknownPlan(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.CreateEnrolment(context.Background(), newEnrolment("enr-1", "stu-1", "plan-nope"))
	assert.ErrorIs(t, err, coverage.ErrPlanNotFound)
}

func TestEngine_SetStatus_Transitions(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-class"))
	require.NoError(t, err)

	require.NoError(t, eng.SetStatus(ctx, "enr-1", coverage.StatusPaused, nil))
	require.NoError(t, eng.SetStatus(ctx, "enr-1", coverage.StatusActive, nil))

	require.NoError(t, eng.SetStatus(ctx, "enr-1", coverage.StatusCancelled, nil))
	cancelled, err := mem.GetEnrolment(ctx, "enr-1")
	require.NoError(t, err)
	require.NotNil(t, cancelled.EndDate)
	assert.Equal(t, coverage.MustDay("2026-01-10"), *cancelled.EndDate)

	// Terminal: no way back.
	err = eng.SetStatus(ctx, "enr-1", coverage.StatusActive, nil)
	assert.ErrorIs(t, err, coverage.ErrIllegalTransition)
}

func TestEngine_SetStatus_CancelFreezesSnapshot(t *testing.T) {
	// GIVEN: A cancelled enrolment whose last refresh saw 8 credits
	// WHEN: Billing status is read afterwards
	// THEN: The frozen cached values come back without recomputation

	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-class"))
	require.NoError(t, err)
	_, err = eng.RecordPurchase(ctx, coverage.PurchaseInput{EnrolmentID: "enr-1", InvoiceID: "inv-1"})
	require.NoError(t, err)

	require.NoError(t, eng.SetStatus(ctx, "enr-1", coverage.StatusCancelled, nil))

	later := coverage.MustDay("2026-06-01")
	snap, err := eng.GetEnrolmentBillingStatus(ctx, "enr-1", &later)
	require.NoError(t, err)
	assert.Equal(t, 8, snap.LedgerBalance)
	require.NotNil(t, snap.PaidThrough)
	assert.Equal(t, coverage.MustDay("2026-03-02"), *snap.PaidThrough)
}

func TestEngine_SetPaidThrough(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-week"))
	require.NoError(t, err)

	_, err = eng.SetPaidThrough(ctx, "enr-1", coverage.MustDay("2026-01-09"))
	assert.ErrorIs(t, err, coverage.ErrValidation, "paid-through before start is rejected")

	snap, err := eng.SetPaidThrough(ctx, "enr-1", coverage.MustDay("2026-02-02"))
	require.NoError(t, err)
	require.NotNil(t, snap.PaidThrough)
	assert.Equal(t, coverage.MustDay("2026-02-02"), *snap.PaidThrough)
	require.NotNil(t, snap.NextDue)
	assert.Equal(t, coverage.MustDay("2026-02-09"), *snap.NextDue)
}

// =============================================================================
// PURCHASES
// =============================================================================

func TestEngine_RecordPurchase_PerClass(t *testing.T) {
	// GIVEN: A PER_CLASS enrolment buying its default block of 8
	// WHEN: The purchase lands before the first class
	// THEN: Coverage projects through the 8th Monday

	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-class"))
	require.NoError(t, err)

	snap, err := eng.RecordPurchase(ctx, coverage.PurchaseInput{EnrolmentID: "enr-1", InvoiceID: "inv-1"})
	require.NoError(t, err)

	assert.Equal(t, 8, snap.LedgerBalance)
	require.NotNil(t, snap.PaidThrough)
	assert.Equal(t, coverage.MustDay("2026-03-02"), *snap.PaidThrough)
	require.NotNil(t, snap.NextDue)
	assert.Equal(t, coverage.MustDay("2026-03-09"), *snap.NextDue)
}

func TestEngine_RecordPurchase_PerWeek_AdvancesOneCycle(t *testing.T) {
	// A new PER_WEEK enrolment is paid through its own start; one purchase
	// advances that base by the plan's cycle length.
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-week"))
	require.NoError(t, err)

	snap, err := eng.RecordPurchase(ctx, coverage.PurchaseInput{EnrolmentID: "enr-1", InvoiceID: "inv-1"})
	require.NoError(t, err)

	require.NotNil(t, snap.PaidThrough)
	assert.Equal(t, coverage.MustDay("2026-02-09"), *snap.PaidThrough)

	// A second purchase stacks on the advanced date, not on today.
	snap, err = eng.RecordPurchase(ctx, coverage.PurchaseInput{EnrolmentID: "enr-1", InvoiceID: "inv-2"})
	require.NoError(t, err)
	require.NotNil(t, snap.PaidThrough)
	assert.Equal(t, coverage.MustDay("2026-03-09"), *snap.PaidThrough)
}

// =============================================================================
// ATTENDANCE CONSUMPTION
// =============================================================================

func TestEngine_Consumption_IdempotentPerDay(t *testing.T) {
	// GIVEN: A checked-in student whose attendance hook fires twice for the
	//        same class day
	// WHEN: Both calls are processed
	// THEN: Exactly one CONSUME entry exists and neither call errors

	eng, mem := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-class"))
	require.NoError(t, err)
	_, err = eng.RecordPurchase(ctx, coverage.PurchaseInput{EnrolmentID: "enr-1", InvoiceID: "inv-1"})
	require.NoError(t, err)

	day := coverage.MustDay("2026-01-12")
	snap, err := eng.RegisterCreditConsumptionForDate(ctx, "t-mon", "stu-1", day, "att-1")
	require.NoError(t, err)
	require.NotNil(t, snap)

	snap, err = eng.RegisterCreditConsumptionForDate(ctx, "t-mon", "stu-1", day, "att-2")
	require.NoError(t, err)
	require.NotNil(t, snap)

	events, err := mem.ListEvents(ctx, "enr-1")
	require.NoError(t, err)
	consumes := 0
	for _, ev := range events {
		if ev.Type == coverage.EventConsume {
			consumes++
		}
	}
	assert.Equal(t, 1, consumes)

	balance, err := coverage.NewLedger(mem).BalanceAsOf(ctx, "enr-1", day)
	require.NoError(t, err)
	assert.Equal(t, 7, balance)
}

func TestEngine_Consumption_NoMatchingEnrolment_SilentNoOp(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()

	// PER_WEEK enrolments never consume credits.
	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-week"))
	require.NoError(t, err)

	snap, err := eng.RegisterCreditConsumptionForDate(ctx, "t-mon", "stu-1", coverage.MustDay("2026-01-12"), "att-1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	// Unknown student: same silent no-op.
	snap, err = eng.RegisterCreditConsumptionForDate(ctx, "t-mon", "stu-ghost", coverage.MustDay("2026-01-12"), "att-2")
	require.NoError(t, err)
	assert.Nil(t, snap)

	events, err := mem.ListEvents(ctx, "enr-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEngine_Consumption_CancelledDate_NoOp(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-class"))
	require.NoError(t, err)
	require.NoError(t, mem.PutCancellation(ctx, coverage.Cancellation{
		ID:         "can-1",
		TemplateID: "t-mon",
		Date:       coverage.MustDay("2026-01-12"),
	}))

	snap, err := eng.RegisterCreditConsumptionForDate(ctx, "t-mon", "stu-1", coverage.MustDay("2026-01-12"), "att-1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	events, err := mem.ListEvents(ctx, "enr-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

// =============================================================================
// OCCURRENCE CANCELLATION
// =============================================================================

func TestEngine_CancelOccurrence_CompensatesEverySeat(t *testing.T) {
	// GIVEN: Two active PER_CLASS enrolments on the Monday class
	// WHEN: The 2026-01-19 occurrence is cancelled
	// THEN: Each seat gets one compensating credit

	eng, mem := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-class"))
	require.NoError(t, err)
	_, err = eng.CreateEnrolment(ctx, newEnrolment("enr-2", "stu-2", "plan-class"))
	require.NoError(t, err)

	applied, err := eng.CancelOccurrence(ctx, "t-mon", coverage.MustDay("2026-01-19"))
	require.NoError(t, err)
	require.Len(t, applied, 2)

	ledger := coverage.NewLedger(mem)
	yearEnd := coverage.MustDay("2026-12-31")
	for _, id := range []coverage.EnrolmentID{"enr-1", "enr-2"} {
		balance, err := ledger.BalanceAsOf(ctx, id, yearEnd)
		require.NoError(t, err)
		assert.Equal(t, 1, balance)
	}

	// Uncancelling one enrolment's adjustment takes back exactly its credit.
	require.NoError(t, eng.RemoveCancellationCredit(ctx, applied[0].ID))
	balance, err := ledger.BalanceAsOf(ctx, applied[0].EnrolmentID, yearEnd)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

// =============================================================================
// AWAY PERIODS
// =============================================================================

func TestEngine_AwayPeriod_CreateUpdateDelete(t *testing.T) {
	// GIVEN: A PER_CLASS enrolment and an away range covering two Mondays
	// WHEN: The range is created, then shortened, then deleted
	// THEN: Credits track the current range exactly - edits never compound

	eng, mem := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-class"))
	require.NoError(t, err)

	ledger := coverage.NewLedger(mem)
	yearEnd := coverage.MustDay("2026-12-31")

	period, err := eng.CreateAwayPeriod(ctx, coverage.AwayPeriod{
		StudentIDs: []string{"stu-1"},
		Start:      coverage.MustDay("2026-01-18"),
		End:        coverage.MustDay("2026-01-31"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, period.ID)

	balance, err := ledger.BalanceAsOf(ctx, "enr-1", yearEnd)
	require.NoError(t, err)
	assert.Equal(t, 2, balance)

	// Shorten to one missed Monday.
	period.End = coverage.MustDay("2026-01-24")
	_, err = eng.UpdateAwayPeriod(ctx, period)
	require.NoError(t, err)

	balance, err = ledger.BalanceAsOf(ctx, "enr-1", yearEnd)
	require.NoError(t, err)
	assert.Equal(t, 1, balance)

	require.NoError(t, eng.DeleteAwayPeriod(ctx, period.ID))

	balance, err = ledger.BalanceAsOf(ctx, "enr-1", yearEnd)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestEngine_AwayPeriod_Validation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateAwayPeriod(ctx, coverage.AwayPeriod{
		StudentIDs: []string{"stu-1"},
		Start:      coverage.MustDay("2026-01-31"),
		End:        coverage.MustDay("2026-01-18"),
	})
	assert.ErrorIs(t, err, coverage.ErrValidation)

	_, err = eng.CreateAwayPeriod(ctx, coverage.AwayPeriod{
		Start: coverage.MustDay("2026-01-18"),
		End:   coverage.MustDay("2026-01-31"),
	})
	assert.ErrorIs(t, err, coverage.ErrValidation)
}

// =============================================================================
// CLASS MOVES
// =============================================================================

type fakeInvoices struct {
	charges []coverage.InvoiceDraft
	credits []coverage.InvoiceDraft
}

func (f *fakeInvoices) CreateInvoice(_ context.Context, d coverage.InvoiceDraft) (string, error) {
	f.charges = append(f.charges, d)
	return "inv-move", nil
}

func (f *fakeInvoices) CreateInvoiceWithPayment(_ context.Context, d coverage.InvoiceDraft) (string, error) {
	f.credits = append(f.credits, d)
	return "inv-move-credit", nil
}

func TestEngine_MoveEnrolment_TransfersBalanceAndProrates(t *testing.T) {
	// GIVEN: A PER_CLASS enrolment with a full block of 8, paid through
	//        2026-03-02
	// WHEN: It moves to the same Monday schedule effective 2026-01-19
	// THEN: The block transfers whole, the successor projects through
	//       2026-03-09, and the one extra Monday is invoiced at $25

	invoices := &fakeInvoices{}
	eng, mem := newTestEngine(t, coverage.WithInvoiceService(invoices))
	ctx := context.Background()

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-class"))
	require.NoError(t, err)
	_, err = eng.RecordPurchase(ctx, coverage.PurchaseInput{EnrolmentID: "enr-1", InvoiceID: "inv-1"})
	require.NoError(t, err)

	result, err := eng.MoveEnrolment(ctx, coverage.MoveInput{
		EnrolmentID:    "enr-1",
		EffectiveDate:  coverage.MustDay("2026-01-19"),
		NewPlanID:      "plan-class",
		NewTemplateIDs: []coverage.TemplateID{"t-mon"},
	})
	require.NoError(t, err)

	old, err := mem.GetEnrolment(ctx, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, coverage.StatusChangeover, old.Status)
	require.NotNil(t, old.EndDate)
	assert.Equal(t, coverage.MustDay("2026-01-18"), *old.EndDate)

	successor := result.NewEnrolment
	assert.Equal(t, old.BillingGroupID, successor.BillingGroupID)
	assert.Equal(t, coverage.MustDay("2026-01-19"), successor.StartDate)

	ledger := coverage.NewLedger(mem)
	today := coverage.MustDay("2026-01-10")
	oldBalance, err := ledger.BalanceAsOf(ctx, old.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 0, oldBalance)
	newBalance, err := ledger.BalanceAsOf(ctx, successor.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 8, newBalance)

	assert.Equal(t, coverage.ProrationCharge, result.Proration.Kind)
	assert.Equal(t, 1, result.Proration.Occurrences)
	assert.Equal(t, int64(2500), result.Proration.AmountCents())
	assert.Equal(t, "inv-move", result.InvoiceID)
	require.Len(t, invoices.charges, 1)
	assert.Empty(t, invoices.credits)
}

func TestEngine_MoveEnrolment_RejectsBackdatedCoverageOverlap(t *testing.T) {
	// Moving an enrolment to a past effective date its coverage already
	// extends beyond would strand paid classes.
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.PutPlan(ctx, perClassPlan(8)))
	require.NoError(t, mem.PutTemplate(ctx, weeklyTemplate("t-mon", 1, "2026-01-12")))
	eng := coverage.New(mem, time.UTC,
		coverage.WithClock(coverage.FixedClock{At: time.Date(2026, 2, 4, 12, 0, 0, 0, time.UTC)}))

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-class"))
	require.NoError(t, err)
	purchased := coverage.MustDay("2026-01-10")
	_, err = eng.RecordPurchase(ctx, coverage.PurchaseInput{
		EnrolmentID: "enr-1", InvoiceID: "inv-1", OccurredOn: &purchased,
	})
	require.NoError(t, err)

	_, err = eng.MoveEnrolment(ctx, coverage.MoveInput{
		EnrolmentID:    "enr-1",
		EffectiveDate:  coverage.MustDay("2026-01-20"),
		NewPlanID:      "plan-class",
		NewTemplateIDs: []coverage.TemplateID{"t-mon"},
	})
	assert.ErrorIs(t, err, coverage.ErrConsistency)
}

func TestEngine_MoveEnrolment_RequiresTemplates(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.MoveEnrolment(context.Background(), coverage.MoveInput{
		EnrolmentID:   "enr-1",
		EffectiveDate: coverage.MustDay("2026-01-19"),
		NewPlanID:     "plan-class",
	})
	assert.ErrorIs(t, err, coverage.ErrValidation)
}

// =============================================================================
// MAKEUP SEATS
// =============================================================================

func TestEngine_Makeups_AvailabilityAndCapacity(t *testing.T) {
	// GIVEN: A two-seat class with one scheduled student
	// WHEN: Makeups are booked into the spare seat
	// THEN: The first booking succeeds and the second hits the capacity wall

	eng, mem := newTestEngine(t)
	ctx := context.Background()

	small := weeklyTemplate("t-small", 3, "2026-01-14")
	small.Capacity = 2
	require.NoError(t, mem.PutTemplate(ctx, small))

	regular := newEnrolment("enr-1", "stu-1", "plan-class")
	regular.TemplateID = "t-small"
	_, err := eng.CreateEnrolment(ctx, regular)
	require.NoError(t, err)
	_, err = eng.CreateEnrolment(ctx, newEnrolment("enr-2", "stu-2", "plan-class"))
	require.NoError(t, err)

	date := coverage.MustDay("2026-01-14")
	avail, err := eng.MakeupAvailability(ctx, "t-small", date)
	require.NoError(t, err)
	assert.Equal(t, 1, avail.Available)
	assert.Equal(t, 1, avail.Counts.Scheduled)

	booking, err := eng.BookMakeup(ctx, "t-small", date, "enr-2")
	require.NoError(t, err)
	assert.NotEmpty(t, booking.ID)

	_, err = eng.BookMakeup(ctx, "t-small", date, "enr-2")
	assert.ErrorIs(t, err, coverage.ErrCapacityExceeded)
}

func TestEngine_Makeups_ExcusedSeatFreesCapacity(t *testing.T) {
	eng, mem := newTestEngine(t)
	ctx := context.Background()

	full := weeklyTemplate("t-full", 3, "2026-01-14")
	full.Capacity = 1
	require.NoError(t, mem.PutTemplate(ctx, full))

	regular := newEnrolment("enr-1", "stu-1", "plan-class")
	regular.TemplateID = "t-full"
	_, err := eng.CreateEnrolment(ctx, regular)
	require.NoError(t, err)

	date := coverage.MustDay("2026-01-14")
	avail, err := eng.MakeupAvailability(ctx, "t-full", date)
	require.NoError(t, err)
	assert.Equal(t, 0, avail.Available)

	// The scheduled student goes away; their seat opens up.
	_, err = eng.CreateAwayPeriod(ctx, coverage.AwayPeriod{
		StudentIDs: []string{"stu-1"},
		Start:      coverage.MustDay("2026-01-12"),
		End:        coverage.MustDay("2026-01-18"),
	})
	require.NoError(t, err)

	avail, err = eng.MakeupAvailability(ctx, "t-full", date)
	require.NoError(t, err)
	assert.Equal(t, 1, avail.Available)
	assert.Equal(t, 1, avail.Counts.Excused)
}

// =============================================================================
// BATCH REFRESH
// =============================================================================

func TestEngine_RefreshOpenEnrolments_ActiveOnly(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	for _, id := range []string{"enr-1", "enr-2", "enr-3"} {
		_, err := eng.CreateEnrolment(ctx, newEnrolment(id, "stu-"+id, "plan-class"))
		require.NoError(t, err)
	}
	require.NoError(t, eng.SetStatus(ctx, "enr-3", coverage.StatusCancelled, nil))

	refreshed, err := eng.RefreshOpenEnrolments(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, refreshed)
}

func TestEngine_GetBillingStatusForEnrolments(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateEnrolment(ctx, newEnrolment("enr-1", "stu-1", "plan-class"))
	require.NoError(t, err)
	_, err = eng.RecordPurchase(ctx, coverage.PurchaseInput{EnrolmentID: "enr-1", InvoiceID: "inv-1"})
	require.NoError(t, err)
	_, err = eng.CreateEnrolment(ctx, newEnrolment("enr-2", "stu-2", "plan-class"))
	require.NoError(t, err)

	out, err := eng.GetBillingStatusForEnrolments(ctx, []coverage.EnrolmentID{"enr-1", "enr-2"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 8, out["enr-1"].LedgerBalance)
	assert.Equal(t, 0, out["enr-2"].LedgerBalance)

	_, err = eng.GetBillingStatusForEnrolments(ctx, []coverage.EnrolmentID{"enr-missing"}, nil)
	assert.ErrorIs(t, err, coverage.ErrEnrolmentNotFound)
}
