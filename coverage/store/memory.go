// Package store provides the in-memory coverage.TxStore used by tests and
// local development. Transactions are simulated with a global serializing
// lock plus snapshot/rollback, which gives the serializable isolation the
// engine's read-modify-write flows assume.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pirouette/coverage-engine/coverage"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type consumeKey struct {
	EnrolmentID coverage.EnrolmentID
	Day         coverage.Day
}

type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes WithTx scopes

	plans         map[coverage.PlanID]coverage.Plan
	templates     map[coverage.TemplateID]coverage.ClassTemplate
	holidays      []coverage.Holiday
	cancellations []coverage.Cancellation
	enrolments    map[coverage.EnrolmentID]coverage.Enrolment
	events        map[coverage.EnrolmentID][]coverage.CreditEvent
	consumed      map[consumeKey]struct{}
	adjustments   map[string]coverage.Adjustment
	awayPeriods   map[string]coverage.AwayPeriod
	awayImpacts   map[string][]coverage.AwayImpact
	makeups       []coverage.MakeupBooking
}

func NewMemory() *Memory {
	return &Memory{
		plans:       make(map[coverage.PlanID]coverage.Plan),
		templates:   make(map[coverage.TemplateID]coverage.ClassTemplate),
		enrolments:  make(map[coverage.EnrolmentID]coverage.Enrolment),
		events:      make(map[coverage.EnrolmentID][]coverage.CreditEvent),
		consumed:    make(map[consumeKey]struct{}),
		adjustments: make(map[string]coverage.Adjustment),
		awayPeriods: make(map[string]coverage.AwayPeriod),
		awayImpacts: make(map[string][]coverage.AwayImpact),
	}
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) GetPlan(_ context.Context, id coverage.PlanID) (coverage.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return coverage.Plan{}, coverage.ErrPlanNotFound
	}
	return p, nil
}

func (m *Memory) PutPlan(_ context.Context, p coverage.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
	return nil
}

func (m *Memory) GetTemplate(_ context.Context, id coverage.TemplateID) (coverage.ClassTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return coverage.ClassTemplate{}, coverage.ErrTemplateNotFound
	}
	return t, nil
}

func (m *Memory) GetTemplates(_ context.Context, ids []coverage.TemplateID) ([]coverage.ClassTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]coverage.ClassTemplate, 0, len(ids))
	for _, id := range ids {
		if t, ok := m.templates[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Memory) PutTemplate(_ context.Context, t coverage.ClassTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	return nil
}

func (m *Memory) ListHolidays(_ context.Context, from, to coverage.Day) ([]coverage.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []coverage.Holiday
	for _, h := range m.holidays {
		if h.End.AfterOrEqual(from) && h.Start.BeforeOrEqual(to) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *Memory) PutHoliday(_ context.Context, h coverage.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays = append(m.holidays, h)
	return nil
}

func (m *Memory) ListCancellations(_ context.Context, templateIDs []coverage.TemplateID, from, to coverage.Day) ([]coverage.Cancellation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[coverage.TemplateID]struct{}, len(templateIDs))
	for _, id := range templateIDs {
		wanted[id] = struct{}{}
	}
	var out []coverage.Cancellation
	for _, c := range m.cancellations {
		if _, ok := wanted[c.TemplateID]; !ok {
			continue
		}
		if c.Date.AfterOrEqual(from) && c.Date.BeforeOrEqual(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) PutCancellation(_ context.Context, c coverage.Cancellation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancellations = append(m.cancellations, c)
	return nil
}

// =============================================================================
// ENROLMENTS
// =============================================================================

func (m *Memory) GetEnrolment(_ context.Context, id coverage.EnrolmentID) (coverage.Enrolment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.enrolments[id]
	if !ok {
		return coverage.Enrolment{}, coverage.ErrEnrolmentNotFound
	}
	return e, nil
}

func (m *Memory) PutEnrolment(_ context.Context, e coverage.Enrolment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrolments[e.ID] = e
	return nil
}

func (m *Memory) ListEnrolmentsByStatus(_ context.Context, status coverage.EnrolmentStatus) ([]coverage.Enrolment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []coverage.Enrolment
	for _, e := range m.enrolments {
		if e.Status == status {
			out = append(out, e)
		}
	}
	sortEnrolments(out)
	return out, nil
}

func (m *Memory) ListEnrolmentsForStudents(_ context.Context, studentIDs []string) ([]coverage.Enrolment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = struct{}{}
	}
	var out []coverage.Enrolment
	for _, e := range m.enrolments {
		if _, ok := wanted[e.StudentID]; ok {
			out = append(out, e)
		}
	}
	sortEnrolments(out)
	return out, nil
}

func (m *Memory) ListEnrolmentsForTemplate(_ context.Context, id coverage.TemplateID) ([]coverage.Enrolment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []coverage.Enrolment
	for _, e := range m.enrolments {
		if e.HasTemplate(id) {
			out = append(out, e)
		}
	}
	sortEnrolments(out)
	return out, nil
}

func (m *Memory) SaveSnapshot(_ context.Context, s coverage.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrolments[s.EnrolmentID]
	if !ok {
		return coverage.ErrEnrolmentNotFound
	}
	e.PaidThroughComputed = s.PaidThrough
	e.NextDueComputed = s.NextDue
	e.CreditsBalanceCached = s.LedgerBalance
	m.enrolments[e.ID] = e
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (m *Memory) AppendEvent(_ context.Context, ev coverage.CreditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.Type == coverage.EventConsume {
		k := consumeKey{EnrolmentID: ev.EnrolmentID, Day: ev.OccurredOn}
		if _, dup := m.consumed[k]; dup {
			return coverage.ErrDuplicateConsumption
		}
		m.consumed[k] = struct{}{}
	}

	evs := m.events[ev.EnrolmentID]
	// Insert in OccurredOn order so range reads stay chronological.
	i := sort.Search(len(evs), func(i int) bool {
		return evs[i].OccurredOn.After(ev.OccurredOn)
	})
	evs = append(evs, coverage.CreditEvent{})
	copy(evs[i+1:], evs[i:])
	evs[i] = ev
	m.events[ev.EnrolmentID] = evs
	return nil
}

func (m *Memory) ListEvents(_ context.Context, id coverage.EnrolmentID) ([]coverage.CreditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]coverage.CreditEvent, len(m.events[id]))
	copy(out, m.events[id])
	return out, nil
}

func (m *Memory) SumDeltasThrough(_ context.Context, id coverage.EnrolmentID, asOf coverage.Day) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := 0
	for _, ev := range m.events[id] {
		if ev.OccurredOn.After(asOf) {
			break
		}
		sum += ev.CreditsDelta
	}
	return sum, nil
}

func (m *Memory) ConsumedDays(_ context.Context, id coverage.EnrolmentID, from, to coverage.Day) ([]coverage.Day, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []coverage.Day
	for _, ev := range m.events[id] {
		if ev.Type != coverage.EventConsume {
			continue
		}
		if ev.OccurredOn.AfterOrEqual(from) && ev.OccurredOn.BeforeOrEqual(to) {
			out = append(out, ev.OccurredOn)
		}
	}
	return out, nil
}

func (m *Memory) DeleteEventsByAdjustment(_ context.Context, adjustmentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, evs := range m.events {
		kept := evs[:0]
		for _, ev := range evs {
			if ev.AdjustmentID == adjustmentID {
				deleted++
				if ev.Type == coverage.EventConsume {
					delete(m.consumed, consumeKey{EnrolmentID: ev.EnrolmentID, Day: ev.OccurredOn})
				}
				continue
			}
			kept = append(kept, ev)
		}
		m.events[id] = kept
	}
	return deleted, nil
}

// =============================================================================
// ADJUSTMENTS & AWAY PERIODS
// =============================================================================

func (m *Memory) GetAdjustment(_ context.Context, id string) (coverage.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adjustments[id]
	if !ok {
		return coverage.Adjustment{}, coverage.ErrAdjustmentNotFound
	}
	return a, nil
}

func (m *Memory) PutAdjustment(_ context.Context, a coverage.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustments[a.ID] = a
	return nil
}

func (m *Memory) GetAwayPeriod(_ context.Context, id string) (coverage.AwayPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.awayPeriods[id]
	if !ok {
		return coverage.AwayPeriod{}, coverage.ErrAwayPeriodNotFound
	}
	return p, nil
}

func (m *Memory) PutAwayPeriod(_ context.Context, p coverage.AwayPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awayPeriods[p.ID] = p
	return nil
}

func (m *Memory) DeleteAwayPeriod(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.awayPeriods, id)
	return nil
}

func (m *Memory) ListAwayImpacts(_ context.Context, awayPeriodID string) ([]coverage.AwayImpact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]coverage.AwayImpact, len(m.awayImpacts[awayPeriodID]))
	copy(out, m.awayImpacts[awayPeriodID])
	return out, nil
}

func (m *Memory) PutAwayImpact(_ context.Context, i coverage.AwayImpact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awayImpacts[i.AwayPeriodID] = append(m.awayImpacts[i.AwayPeriodID], i)
	return nil
}

func (m *Memory) DeleteAwayImpacts(_ context.Context, awayPeriodID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.awayImpacts, awayPeriodID)
	return nil
}

// =============================================================================
// ROSTER
// =============================================================================

func (m *Memory) GetRosterCounts(_ context.Context, id coverage.TemplateID, date coverage.Day) (coverage.RosterCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var counts coverage.RosterCounts
	for _, e := range m.enrolments {
		if e.Status != coverage.StatusActive || !e.HasTemplate(id) {
			continue
		}
		if date.Before(e.StartDate) || (e.EndDate != nil && date.After(*e.EndDate)) {
			continue
		}
		counts.Scheduled++
		if m.isExcusedLocked(e.StudentID, date) {
			counts.Excused++
		}
	}
	for _, b := range m.makeups {
		if b.TemplateID == id && b.Date.Equal(date) {
			counts.BookedMakeups++
		}
	}
	return counts, nil
}

func (m *Memory) isExcusedLocked(studentID string, date coverage.Day) bool {
	for _, p := range m.awayPeriods {
		if date.Before(p.Start) || date.After(p.End) {
			continue
		}
		for _, s := range p.StudentIDs {
			if s == studentID {
				return true
			}
		}
	}
	return false
}

func (m *Memory) PutMakeupBooking(_ context.Context, b coverage.MakeupBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.makeups = append(m.makeups, b)
	return nil
}

// =============================================================================
// TRANSACTIONS - global serializing lock + snapshot/rollback
// =============================================================================

func (m *Memory) WithTx(_ context.Context, fn func(coverage.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshotState()
	if err := fn(m); err != nil {
		m.restoreState(snap)
		return err
	}
	return nil
}

type memoryState struct {
	plans         map[coverage.PlanID]coverage.Plan
	templates     map[coverage.TemplateID]coverage.ClassTemplate
	holidays      []coverage.Holiday
	cancellations []coverage.Cancellation
	enrolments    map[coverage.EnrolmentID]coverage.Enrolment
	events        map[coverage.EnrolmentID][]coverage.CreditEvent
	consumed      map[consumeKey]struct{}
	adjustments   map[string]coverage.Adjustment
	awayPeriods   map[string]coverage.AwayPeriod
	awayImpacts   map[string][]coverage.AwayImpact
	makeups       []coverage.MakeupBooking
}

func (m *Memory) snapshotState() memoryState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := memoryState{
		plans:         make(map[coverage.PlanID]coverage.Plan, len(m.plans)),
		templates:     make(map[coverage.TemplateID]coverage.ClassTemplate, len(m.templates)),
		holidays:      append([]coverage.Holiday(nil), m.holidays...),
		cancellations: append([]coverage.Cancellation(nil), m.cancellations...),
		enrolments:    make(map[coverage.EnrolmentID]coverage.Enrolment, len(m.enrolments)),
		events:        make(map[coverage.EnrolmentID][]coverage.CreditEvent, len(m.events)),
		consumed:      make(map[consumeKey]struct{}, len(m.consumed)),
		adjustments:   make(map[string]coverage.Adjustment, len(m.adjustments)),
		awayPeriods:   make(map[string]coverage.AwayPeriod, len(m.awayPeriods)),
		awayImpacts:   make(map[string][]coverage.AwayImpact, len(m.awayImpacts)),
		makeups:       append([]coverage.MakeupBooking(nil), m.makeups...),
	}
	for k, v := range m.plans {
		st.plans[k] = v
	}
	for k, v := range m.templates {
		st.templates[k] = v
	}
	for k, v := range m.enrolments {
		st.enrolments[k] = v
	}
	for k, v := range m.events {
		st.events[k] = append([]coverage.CreditEvent(nil), v...)
	}
	for k := range m.consumed {
		st.consumed[k] = struct{}{}
	}
	for k, v := range m.adjustments {
		st.adjustments[k] = v
	}
	for k, v := range m.awayPeriods {
		st.awayPeriods[k] = v
	}
	for k, v := range m.awayImpacts {
		st.awayImpacts[k] = append([]coverage.AwayImpact(nil), v...)
	}
	return st
}

func (m *Memory) restoreState(st memoryState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = st.plans
	m.templates = st.templates
	m.holidays = st.holidays
	m.cancellations = st.cancellations
	m.enrolments = st.enrolments
	m.events = st.events
	m.consumed = st.consumed
	m.adjustments = st.adjustments
	m.awayPeriods = st.awayPeriods
	m.awayImpacts = st.awayImpacts
	m.makeups = st.makeups
}

func sortEnrolments(es []coverage.Enrolment) {
	sort.Slice(es, func(i, j int) bool { return es[i].ID < es[j].ID })
}
