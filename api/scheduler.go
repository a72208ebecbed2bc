/*
scheduler.go - Automated snapshot refresh scheduler

PURPOSE:
  Periodically recomputes every ACTIVE enrolment's coverage snapshot so the
  cached paid-through / next-due / balance columns track the calendar even
  when no mutation touches an enrolment (e.g. a week elapses and backfill
  consumption moves the balance).

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Each cycle delegates to Engine.RefreshOpenEnrolments, which uses one
    transaction per enrolment; a long roster never holds one big lock
  - Per-enrolment failures are logged and skipped, never fatal to the cycle
  - Safe to run concurrently with live mutations

CONFIGURATION:
  - Interval: How often to refresh (default: 1 hour)
  - Enabled:  Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewRefreshScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRefresh endpoint (manual refresh)
  - coverage/engine.go: RefreshOpenEnrolments
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pirouette/coverage-engine/coverage"
)

// RefreshScheduler recomputes open enrolment snapshots on an interval.
type RefreshScheduler struct {
	Engine   *coverage.Engine
	Log      *zap.Logger
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRefreshScheduler creates a new scheduler.
func NewRefreshScheduler(engine *coverage.Engine, log *zap.Logger) *RefreshScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RefreshScheduler{
		Engine:   engine,
		Log:      log,
		Interval: 1 * time.Hour,
		Enabled:  true,
		stop:     make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info("refresh scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)
	go rs.run()

	rs.Log.Info("refresh scheduler started", zap.Duration("interval", rs.Interval))
}

// Stop stops the scheduler and waits for an in-flight cycle to finish.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.Log.Info("refresh scheduler stopped")
	}
}

func (rs *RefreshScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.refresh()

	for {
		select {
		case <-rs.ticker.C:
			rs.refresh()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RefreshScheduler) refresh() {
	ctx := context.Background()
	start := time.Now()

	refreshed, err := rs.Engine.RefreshOpenEnrolments(ctx, nil)
	if err != nil {
		rs.Log.Warn("refresh cycle completed with errors",
			zap.Int("refreshed", refreshed),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return
	}
	rs.Log.Info("refresh cycle completed",
		zap.Int("refreshed", refreshed),
		zap.Duration("took", time.Since(start)))
}

// RunNow triggers an immediate refresh cycle (for testing/admin).
func (rs *RefreshScheduler) RunNow() {
	rs.refresh()
}
