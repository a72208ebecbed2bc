/*
handlers.go - HTTP API handlers for the coverage engine

PURPOSE:
  Exposes the billing coverage engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates everything
  coverage-affecting to the engine.

ENDPOINTS:
  Enrolments:
    POST   /api/enrolments                        Create enrolment
    GET    /api/enrolments/{id}/billing-status    Snapshot (refreshes first)
    POST   /api/enrolments/billing-status         Batch snapshots
    PUT    /api/enrolments/{id}/paid-through      Manual paid-through edit
    PUT    /api/enrolments/{id}/status            State machine transition
    POST   /api/enrolments/{id}/purchases         Record a payment
    POST   /api/enrolments/{id}/move              Class move

  Attendance:
    POST   /api/attendance/consume                Consume one credit for a date

  Cancellations:
    POST   /api/occurrences/cancel                Cancel one class occurrence
    POST   /api/adjustments                       Credit one enrolment
    DELETE /api/adjustments/{id}                  Reverse an adjustment

  Away periods:
    POST   /api/away-periods
    PUT    /api/away-periods/{id}
    DELETE /api/away-periods/{id}

  Makeups:
    GET    /api/makeups/availability              Seats for template+date
    POST   /api/makeups/bookings                  Book a makeup seat

  Catalog (admin):
    POST   /api/plans, /api/templates, /api/holidays

  Admin:
    POST   /api/admin/refresh                     Batch snapshot refresh

ERROR HANDLING:
  Engine errors map to HTTP status via the coverage classifiers:
  - 400: validation, consistency, illegal transition, capacity
  - 404: missing enrolment/plan/template/adjustment/away period
  - 409: concurrent conflict after retries exhausted
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - coverage/engine.go: The operations these handlers delegate to
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pirouette/coverage-engine/coverage"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *coverage.Engine
	Store  coverage.TxStore
	Log    *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(engine *coverage.Engine, store coverage.TxStore, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Engine: engine, Store: store, Log: log}
}

// =============================================================================
// ENROLMENT HANDLERS
// =============================================================================

// CreateEnrolment creates an enrolment and returns its first snapshot.
func (h *Handler) CreateEnrolment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrolmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := coverage.ParseDay(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := parseDayPtr(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}
	paidThrough, err := parseDayPtr(req.PaidThrough)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_through (use YYYY-MM-DD)", err)
		return
	}
	if len(req.TemplateIDs) == 0 {
		writeError(w, http.StatusBadRequest, "template_ids is required", nil)
		return
	}

	enr := coverage.Enrolment{
		ID:          coverage.EnrolmentID(req.ID),
		StudentID:   req.StudentID,
		PlanID:      coverage.PlanID(req.PlanID),
		TemplateID:  coverage.TemplateID(req.TemplateIDs[0]),
		StartDate:   start,
		EndDate:     end,
		PaidThrough: paidThrough,
	}
	for _, t := range req.TemplateIDs {
		enr.TemplateIDs = append(enr.TemplateIDs, coverage.TemplateID(t))
	}

	snap, err := h.Engine.CreateEnrolment(r.Context(), enr)
	if err != nil {
		h.writeEngineError(w, "create enrolment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSnapshotDTO(snap))
}

// GetBillingStatus refreshes and returns one enrolment's snapshot.
func (h *Handler) GetBillingStatus(w http.ResponseWriter, r *http.Request) {
	id := coverage.EnrolmentID(chi.URLParam(r, "id"))
	asOf, err := parseDayQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of (use YYYY-MM-DD)", err)
		return
	}

	snap, err := h.Engine.GetEnrolmentBillingStatus(r.Context(), id, asOf)
	if err != nil {
		h.writeEngineError(w, "billing status", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// GetBatchBillingStatus refreshes and returns snapshots for several
// enrolments (the roster / reports read path).
func (h *Handler) GetBatchBillingStatus(w http.ResponseWriter, r *http.Request) {
	var req BatchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	var asOf *coverage.Day
	if req.AsOf != "" {
		d, err := coverage.ParseDay(req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of (use YYYY-MM-DD)", err)
			return
		}
		asOf = &d
	}

	ids := make([]coverage.EnrolmentID, len(req.EnrolmentIDs))
	for i, id := range req.EnrolmentIDs {
		ids[i] = coverage.EnrolmentID(id)
	}

	snaps, err := h.Engine.GetBillingStatusForEnrolments(r.Context(), ids, asOf)
	if err != nil {
		h.writeEngineError(w, "batch billing status", err)
		return
	}

	out := make(map[string]SnapshotDTO, len(snaps))
	for id, snap := range snaps {
		out[string(id)] = toSnapshotDTO(snap)
	}
	writeJSON(w, http.StatusOK, out)
}

// SetPaidThrough applies a manual paid-through edit.
func (h *Handler) SetPaidThrough(w http.ResponseWriter, r *http.Request) {
	id := coverage.EnrolmentID(chi.URLParam(r, "id"))
	var req SetPaidThroughRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := coverage.ParseDay(req.PaidThrough)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid paid_through (use YYYY-MM-DD)", err)
		return
	}

	snap, err := h.Engine.SetPaidThrough(r.Context(), id, day)
	if err != nil {
		h.writeEngineError(w, "set paid-through", err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(snap))
}

// SetStatus drives the enrolment state machine.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := coverage.EnrolmentID(chi.URLParam(r, "id"))
	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	endDate, err := parseDayPtr(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Engine.SetStatus(r.Context(), id, coverage.EnrolmentStatus(req.Status), endDate); err != nil {
		h.writeEngineError(w, "set status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordPurchase applies a payment to an enrolment.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	id := coverage.EnrolmentID(chi.URLParam(r, "id"))
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	occurredOn, err := parseDayPtrStr(req.OccurredOn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid occurred_on (use YYYY-MM-DD)", err)
		return
	}

	snap, err := h.Engine.RecordPurchase(r.Context(), coverage.PurchaseInput{
		EnrolmentID: id,
		InvoiceID:   req.InvoiceID,
		OccurredOn:  occurredOn,
		Credits:     req.Credits,
	})
	if err != nil {
		h.writeEngineError(w, "record purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSnapshotDTO(snap))
}

// MoveEnrolment closes an enrolment and opens its successor.
func (h *Handler) MoveEnrolment(w http.ResponseWriter, r *http.Request) {
	id := coverage.EnrolmentID(chi.URLParam(r, "id"))
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	effective, err := coverage.ParseDay(req.EffectiveDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_date (use YYYY-MM-DD)", err)
		return
	}

	in := coverage.MoveInput{
		EnrolmentID:   id,
		EffectiveDate: effective,
		NewPlanID:     coverage.PlanID(req.NewPlanID),
	}
	for _, t := range req.NewTemplateIDs {
		in.NewTemplateIDs = append(in.NewTemplateIDs, coverage.TemplateID(t))
	}

	result, err := h.Engine.MoveEnrolment(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, "move enrolment", err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResultDTO{
		OldEnrolmentID: string(result.OldEnrolmentID),
		NewEnrolment:   toEnrolmentDTO(result.NewEnrolment),
		ProrationKind:  string(result.Proration.Kind),
		Occurrences:    result.Proration.Occurrences,
		AmountCents:    result.Proration.AmountCents(),
		InvoiceID:      result.InvoiceID,
	})
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// RegisterConsumption is the attendance hook.
func (h *Handler) RegisterConsumption(w http.ResponseWriter, r *http.Request) {
	var req ConsumptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := coverage.ParseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	snap, err := h.Engine.RegisterCreditConsumptionForDate(r.Context(),
		coverage.TemplateID(req.TemplateID), req.StudentID, date, req.AttendanceID)
	if err != nil {
		h.writeEngineError(w, "register consumption", err)
		return
	}

	resp := ConsumptionResponse{Consumed: snap != nil}
	if snap != nil {
		dto := toSnapshotDTO(*snap)
		resp.Snapshot = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// CANCELLATIONS & ADJUSTMENTS
// =============================================================================

// CancelOccurrence cancels one class occurrence and credits every seat.
func (h *Handler) CancelOccurrence(w http.ResponseWriter, r *http.Request) {
	var req CancelOccurrenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := coverage.ParseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	applied, err := h.Engine.CancelOccurrence(r.Context(), coverage.TemplateID(req.TemplateID), date)
	if err != nil {
		h.writeEngineError(w, "cancel occurrence", err)
		return
	}
	dtos := make([]AdjustmentDTO, len(applied))
	for i, a := range applied {
		dtos[i] = toAdjustmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAdjustment applies a cancellation credit to one enrolment.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CreateAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := coverage.ParseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	adj, err := h.Engine.RegisterCancellationCredit(r.Context(), coverage.Adjustment{
		EnrolmentID: coverage.EnrolmentID(req.EnrolmentID),
		TemplateID:  coverage.TemplateID(req.TemplateID),
		Date:        date,
	})
	if err != nil {
		h.writeEngineError(w, "create adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

// ReverseAdjustment inverts a previously applied adjustment.
func (h *Handler) ReverseAdjustment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.RemoveCancellationCredit(r.Context(), id); err != nil {
		h.writeEngineError(w, "reverse adjustment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// AWAY PERIODS
// =============================================================================

func (h *Handler) CreateAwayPeriod(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decodeAwayPeriod(w, r, "")
	if !ok {
		return
	}
	created, err := h.Engine.CreateAwayPeriod(r.Context(), p)
	if err != nil {
		h.writeEngineError(w, "create away period", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAwayPeriodDTO(created))
}

func (h *Handler) UpdateAwayPeriod(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decodeAwayPeriod(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	updated, err := h.Engine.UpdateAwayPeriod(r.Context(), p)
	if err != nil {
		h.writeEngineError(w, "update away period", err)
		return
	}
	writeJSON(w, http.StatusOK, toAwayPeriodDTO(updated))
}

func (h *Handler) DeleteAwayPeriod(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Engine.DeleteAwayPeriod(r.Context(), id); err != nil {
		h.writeEngineError(w, "delete away period", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeAwayPeriod(w http.ResponseWriter, r *http.Request, id string) (coverage.AwayPeriod, bool) {
	var req AwayPeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return coverage.AwayPeriod{}, false
	}
	start, err := coverage.ParseDay(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (use YYYY-MM-DD)", err)
		return coverage.AwayPeriod{}, false
	}
	end, err := coverage.ParseDay(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (use YYYY-MM-DD)", err)
		return coverage.AwayPeriod{}, false
	}
	if id == "" {
		id = req.ID
	}
	return coverage.AwayPeriod{
		ID:         id,
		FamilyID:   req.FamilyID,
		StudentIDs: req.StudentIDs,
		Start:      start,
		End:        end,
	}, true
}

func toAwayPeriodDTO(p coverage.AwayPeriod) AwayPeriodDTO {
	return AwayPeriodDTO{
		ID:         p.ID,
		FamilyID:   p.FamilyID,
		StudentIDs: p.StudentIDs,
		Start:      p.Start.String(),
		End:        p.End.String(),
	}
}

// =============================================================================
// MAKEUPS
// =============================================================================

// GetMakeupAvailability reports bookable seats for template+date.
// GET /api/makeups/availability?template_id=...&date=...
func (h *Handler) GetMakeupAvailability(w http.ResponseWriter, r *http.Request) {
	templateID := r.URL.Query().Get("template_id")
	date, err := coverage.ParseDay(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	avail, err := h.Engine.MakeupAvailability(r.Context(), coverage.TemplateID(templateID), date)
	if err != nil {
		h.writeEngineError(w, "makeup availability", err)
		return
	}
	writeJSON(w, http.StatusOK, MakeupAvailabilityDTO{
		TemplateID:    string(avail.TemplateID),
		Date:          avail.Date.String(),
		Capacity:      avail.Capacity,
		Scheduled:     avail.Counts.Scheduled,
		Excused:       avail.Counts.Excused,
		BookedMakeups: avail.Counts.BookedMakeups,
		Available:     avail.Available,
	})
}

// BookMakeup reserves a makeup seat.
func (h *Handler) BookMakeup(w http.ResponseWriter, r *http.Request) {
	var req BookMakeupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := coverage.ParseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	booking, err := h.Engine.BookMakeup(r.Context(),
		coverage.TemplateID(req.TemplateID), date, coverage.EnrolmentID(req.EnrolmentID))
	if err != nil {
		h.writeEngineError(w, "book makeup", err)
		return
	}
	writeJSON(w, http.StatusCreated, MakeupBookingDTO{
		ID:          booking.ID,
		TemplateID:  string(booking.TemplateID),
		Date:        booking.Date.String(),
		EnrolmentID: string(booking.EnrolmentID),
	})
}

// =============================================================================
// CATALOG (admin)
// =============================================================================

func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	bt := coverage.BillingType(req.BillingType)
	if bt != coverage.PerWeek && bt != coverage.PerClass {
		writeError(w, http.StatusBadRequest, "billing_type must be PER_WEEK or PER_CLASS", nil)
		return
	}

	plan := coverage.Plan{
		ID:              coverage.PlanID(req.ID),
		Name:            req.Name,
		BillingType:     bt,
		DurationWeeks:   req.DurationWeeks,
		SessionsPerWeek: req.SessionsPerWeek,
		BlockClassCount: req.BlockClassCount,
		PriceCents:      req.PriceCents,
	}
	if err := h.Store.PutPlan(r.Context(), plan); err != nil {
		h.writeEngineError(w, "create plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := coverage.ParseDay(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := parseDayPtr(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	tmpl := coverage.ClassTemplate{
		ID:          coverage.TemplateID(req.ID),
		LevelID:     req.LevelID,
		TeacherID:   req.TeacherID,
		DayOfWeek:   req.DayOfWeek,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		StartDate:   start,
		EndDate:     end,
		Capacity:    req.Capacity,
	}
	if err := h.Store.PutTemplate(r.Context(), tmpl); err != nil {
		h.writeEngineError(w, "create template", err)
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := coverage.ParseDay(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (use YYYY-MM-DD)", err)
		return
	}
	end, err := coverage.ParseDay(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (use YYYY-MM-DD)", err)
		return
	}

	holiday := coverage.Holiday{
		ID:         req.ID,
		Name:       req.Name,
		Start:      start,
		End:        end,
		LevelID:    req.LevelID,
		TemplateID: coverage.TemplateID(req.TemplateID),
	}
	if err := h.Store.PutHoliday(r.Context(), holiday); err != nil {
		h.writeEngineError(w, "create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, holiday)
}

// =============================================================================
// ADMIN
// =============================================================================

// TriggerRefresh recomputes every ACTIVE enrolment's snapshot.
func (h *Handler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDayQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of (use YYYY-MM-DD)", err)
		return
	}
	refreshed, err := h.Engine.RefreshOpenEnrolments(r.Context(), asOf)
	resp := RefreshResponse{Refreshed: refreshed}
	if err != nil {
		// Per-enrolment failures are reported, not fatal to the batch.
		resp.Error = err.Error()
		h.Log.Warn("batch refresh completed with errors",
			zap.Int("refreshed", refreshed), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeEngineError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case coverage.IsClientError(err):
		status = http.StatusBadRequest
	case coverage.IsNotFound(err):
		status = http.StatusNotFound
	case coverage.IsRetryable(err) || errors.Is(err, coverage.ErrDuplicateConsumption):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.Log.Error("handler error", zap.String("op", op), zap.Error(err))
	}
	writeError(w, status, "Failed to "+op, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func parseDayPtr(s *string) (*coverage.Day, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := coverage.ParseDay(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseDayPtrStr(s string) (*coverage.Day, error) {
	if s == "" {
		return nil, nil
	}
	d, err := coverage.ParseDay(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseDayQuery(r *http.Request, key string) (*coverage.Day, error) {
	raw := r.URL.Query().Get(key)
	return parseDayPtrStr(raw)
}
