package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
)

const logTimeLayout = "15:04:05"

// runTracker owns the live RunState. The dispatcher worker is the only
// writer; pollers read deep copies.
type runTracker struct {
	mu    sync.RWMutex
	state domain.RunState
	now   func() time.Time
}

func newRunTracker(now func() time.Time) *runTracker {
	if now == nil {
		now = time.Now
	}
	return &runTracker{
		state: domain.RunState{Status: domain.RunStatusIdle},
		now:   now,
	}
}

// begin resets the state for a new run and marks it active.
func (t *runTracker) begin(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = domain.RunState{
		RunID:     runID,
		IsActive:  true,
		Status:    domain.RunStatusProcessing,
		Logs:      []string{},
		StartedAt: t.now(),
	}
}

func (t *runTracker) setTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Total = total
}

func (t *runTracker) logf(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s", t.now().Format(logTimeLayout), fmt.Sprintf(format, args...))

	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Logs = append(t.state.Logs, line)
}

// recordOutcome counts exactly one outcome for the recipient at index (1-based).
func (t *runTracker) recordOutcome(index int, sent bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sent {
		t.state.SuccessCount++
	} else {
		t.state.FailureCount++
	}
	t.state.CurrentIndex = index
}

// finish freezes the run with the given terminal status.
func (t *runTracker) finish(status domain.RunStatus) domain.RunState {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.IsActive = false
	t.state.Status = status
	t.state.FinishedAt = t.now()
	return t.state.Clone()
}

// counts returns total, success and failure without copying the logs.
func (t *runTracker) counts() (int, int, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state.Total, t.state.SuccessCount, t.state.FailureCount
}

func (t *runTracker) snapshot() domain.RunState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state.Clone()
}
