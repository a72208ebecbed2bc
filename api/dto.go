/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

  Dates cross the wire as YYYY-MM-DD strings in the studio timezone.

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - coverage/types.go: Domain model these map onto
*/
package api

import (
	"github.com/pirouette/coverage-engine/coverage"
)

// =============================================================================
// BILLING STATUS
// =============================================================================

// SnapshotDTO is the coverage snapshot as returned to clients.
type SnapshotDTO struct {
	EnrolmentID        string   `json:"enrolment_id"`
	AsOf               string   `json:"as_of"`
	PaidThrough        *string  `json:"paid_through"`
	NextDue            *string  `json:"next_due"`
	LedgerBalance      int      `json:"ledger_balance"`
	RemainingCredits   int      `json:"remaining_credits"`
	CoveredOccurrences []string `json:"covered_occurrences,omitempty"`
	Overdue            bool     `json:"overdue"`
}

// BatchStatusRequest asks for several enrolments' snapshots at once.
type BatchStatusRequest struct {
	EnrolmentIDs []string `json:"enrolment_ids"`
	AsOf         string   `json:"as_of,omitempty"`
}

// =============================================================================
// ENROLMENTS
// =============================================================================

type EnrolmentDTO struct {
	ID             string   `json:"id"`
	StudentID      string   `json:"student_id"`
	PlanID         string   `json:"plan_id"`
	TemplateIDs    []string `json:"template_ids"`
	BillingGroupID string   `json:"billing_group_id"`
	StartDate      string   `json:"start_date"`
	EndDate        *string  `json:"end_date,omitempty"`
	Status         string   `json:"status"`
	PaidThrough    *string  `json:"paid_through,omitempty"`
}

type CreateEnrolmentRequest struct {
	ID          string   `json:"id,omitempty"`
	StudentID   string   `json:"student_id"`
	PlanID      string   `json:"plan_id"`
	TemplateIDs []string `json:"template_ids"`
	StartDate   string   `json:"start_date"`
	EndDate     *string  `json:"end_date,omitempty"`
	PaidThrough *string  `json:"paid_through,omitempty"`
}

type SetPaidThroughRequest struct {
	PaidThrough string `json:"paid_through"`
}

type SetStatusRequest struct {
	Status  string  `json:"status"`
	EndDate *string `json:"end_date,omitempty"`
}

type PurchaseRequest struct {
	InvoiceID  string `json:"invoice_id,omitempty"`
	OccurredOn string `json:"occurred_on,omitempty"`
	Credits    int    `json:"credits,omitempty"`
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type ConsumptionRequest struct {
	TemplateID   string `json:"template_id"`
	StudentID    string `json:"student_id"`
	Date         string `json:"date"`
	AttendanceID string `json:"attendance_id,omitempty"`
}

// ConsumptionResponse reports whether a credit was actually consumed: the
// attendance hook is a silent no-op when no eligible enrolment matches.
type ConsumptionResponse struct {
	Consumed bool         `json:"consumed"`
	Snapshot *SnapshotDTO `json:"snapshot,omitempty"`
}

// =============================================================================
// CANCELLATIONS & ADJUSTMENTS
// =============================================================================

type CancelOccurrenceRequest struct {
	TemplateID string `json:"template_id"`
	Date       string `json:"date"`
}

type AdjustmentDTO struct {
	ID                   string `json:"id"`
	Kind                 string `json:"kind"`
	EnrolmentID          string `json:"enrolment_id"`
	TemplateID           string `json:"template_id"`
	Date                 string `json:"date"`
	CreditsDelta         int    `json:"credits_delta"`
	PaidThroughDeltaDays int    `json:"paid_through_delta_days"`
	Reversed             bool   `json:"reversed"`
}

type CreateAdjustmentRequest struct {
	EnrolmentID string `json:"enrolment_id"`
	TemplateID  string `json:"template_id"`
	Date        string `json:"date"`
}

// =============================================================================
// AWAY PERIODS
// =============================================================================

type AwayPeriodRequest struct {
	ID         string   `json:"id,omitempty"`
	FamilyID   string   `json:"family_id,omitempty"`
	StudentIDs []string `json:"student_ids"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
}

type AwayPeriodDTO struct {
	ID         string   `json:"id"`
	FamilyID   string   `json:"family_id,omitempty"`
	StudentIDs []string `json:"student_ids"`
	Start      string   `json:"start"`
	End        string   `json:"end"`
}

// =============================================================================
// CLASS MOVES
// =============================================================================

type MoveRequest struct {
	EffectiveDate  string   `json:"effective_date"`
	NewPlanID      string   `json:"new_plan_id"`
	NewTemplateIDs []string `json:"new_template_ids"`
}

type MoveResultDTO struct {
	OldEnrolmentID string       `json:"old_enrolment_id"`
	NewEnrolment   EnrolmentDTO `json:"new_enrolment"`
	ProrationKind  string       `json:"proration_kind"`
	Occurrences    int          `json:"occurrences"`
	AmountCents    int64        `json:"amount_cents"`
	InvoiceID      string       `json:"invoice_id,omitempty"`
}

// =============================================================================
// MAKEUPS
// =============================================================================

type MakeupAvailabilityDTO struct {
	TemplateID    string `json:"template_id"`
	Date          string `json:"date"`
	Capacity      int    `json:"capacity"`
	Scheduled     int    `json:"scheduled"`
	Excused       int    `json:"excused"`
	BookedMakeups int    `json:"booked_makeups"`
	Available     int    `json:"available"`
}

type BookMakeupRequest struct {
	TemplateID  string `json:"template_id"`
	Date        string `json:"date"`
	EnrolmentID string `json:"enrolment_id"`
}

type MakeupBookingDTO struct {
	ID          string `json:"id"`
	TemplateID  string `json:"template_id"`
	Date        string `json:"date"`
	EnrolmentID string `json:"enrolment_id"`
}

// =============================================================================
// CATALOG
// =============================================================================

type PlanRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	BillingType     string `json:"billing_type"`
	DurationWeeks   int    `json:"duration_weeks,omitempty"`
	SessionsPerWeek int    `json:"sessions_per_week,omitempty"`
	BlockClassCount int    `json:"block_class_count,omitempty"`
	PriceCents      int64  `json:"price_cents"`
}

type TemplateRequest struct {
	ID          string  `json:"id"`
	LevelID     string  `json:"level_id,omitempty"`
	TeacherID   string  `json:"teacher_id,omitempty"`
	DayOfWeek   *int    `json:"day_of_week"`
	StartMinute int     `json:"start_minute"`
	EndMinute   int     `json:"end_minute"`
	StartDate   string  `json:"start_date"`
	EndDate     *string `json:"end_date,omitempty"`
	Capacity    int     `json:"capacity"`
}

type HolidayRequest struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Start      string `json:"start"`
	End        string `json:"end"`
	LevelID    string `json:"level_id,omitempty"`
	TemplateID string `json:"template_id,omitempty"`
}

// =============================================================================
// ADMIN
// =============================================================================

type RefreshResponse struct {
	Refreshed int    `json:"refreshed"`
	Error     string `json:"error,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSnapshotDTO(s coverage.Snapshot) SnapshotDTO {
	dto := SnapshotDTO{
		EnrolmentID:      string(s.EnrolmentID),
		AsOf:             s.AsOf.String(),
		PaidThrough:      dayPtrString(s.PaidThrough),
		NextDue:          dayPtrString(s.NextDue),
		LedgerBalance:    s.LedgerBalance,
		RemainingCredits: s.RemainingCredits,
		Overdue:          s.Overdue(s.AsOf),
	}
	for _, d := range s.CoveredOccurrences {
		dto.CoveredOccurrences = append(dto.CoveredOccurrences, d.String())
	}
	return dto
}

func toEnrolmentDTO(e coverage.Enrolment) EnrolmentDTO {
	dto := EnrolmentDTO{
		ID:             string(e.ID),
		StudentID:      e.StudentID,
		PlanID:         string(e.PlanID),
		BillingGroupID: e.BillingGroupID,
		StartDate:      e.StartDate.String(),
		EndDate:        dayPtrString(e.EndDate),
		Status:         string(e.Status),
		PaidThrough:    dayPtrString(e.PaidThrough),
	}
	for _, t := range e.AllTemplateIDs() {
		dto.TemplateIDs = append(dto.TemplateIDs, string(t))
	}
	return dto
}

func toAdjustmentDTO(a coverage.Adjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:                   a.ID,
		Kind:                 string(a.Kind),
		EnrolmentID:          string(a.EnrolmentID),
		TemplateID:           string(a.TemplateID),
		Date:                 a.Date.String(),
		CreditsDelta:         a.CreditsDelta,
		PaidThroughDeltaDays: a.PaidThroughDeltaDays,
		Reversed:             a.Reversed,
	}
}

func dayPtrString(d *coverage.Day) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
