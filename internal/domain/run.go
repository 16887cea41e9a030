package domain

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus represents the processing state of a batch run.
type RunStatus string

const (
	RunStatusIdle       RunStatus = "IDLE"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusFailed     RunStatus = "FAILED"
	RunStatusCanceled   RunStatus = "CANCELED"
)

func (s RunStatus) String() string { return string(s) }

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusIdle, RunStatusProcessing, RunStatusCompleted, RunStatusFailed, RunStatusCanceled:
		return true
	}
	return false
}

func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCanceled:
		return true
	}
	return false
}

func ParseRunStatusFromString(s string) (RunStatus, error) {
	st := RunStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid run status %q", ErrValidation, s)
	}
	return st, nil
}

// RunState is the single-writer record of an in-progress or just-finished batch.
type RunState struct {
	RunID        string
	IsActive     bool
	Status       RunStatus
	CurrentIndex int
	Total        int
	SuccessCount int
	FailureCount int
	Logs         []string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Clone returns a deep copy safe to hand to readers.
func (s RunState) Clone() RunState {
	cp := s
	if s.Logs != nil {
		cp.Logs = make([]string, len(s.Logs))
		copy(cp.Logs, s.Logs)
	}
	return cp
}

func (s RunState) Processed() int {
	return s.SuccessCount + s.FailureCount
}

// Result freezes the state into a BatchResult.
func (s RunState) Result() BatchResult {
	var duration time.Duration
	if !s.StartedAt.IsZero() && !s.FinishedAt.IsZero() {
		duration = s.FinishedAt.Sub(s.StartedAt)
	}

	logs := make([]string, len(s.Logs))
	copy(logs, s.Logs)

	return BatchResult{
		RunID:        s.RunID,
		Status:       s.Status,
		Total:        s.Total,
		SuccessCount: s.SuccessCount,
		FailureCount: s.FailureCount,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
		Duration:     duration,
		Logs:         logs,
	}
}

// BatchResult is the read-only outcome of a finished run.
type BatchResult struct {
	RunID        string
	Status       RunStatus
	Total        int
	SuccessCount int
	FailureCount int
	StartedAt    time.Time
	FinishedAt   time.Time
	Duration     time.Duration
	Logs         []string
}

func (r BatchResult) Processed() int {
	return r.SuccessCount + r.FailureCount
}

// Run is the persisted summary of a batch run.
type Run struct {
	ID             string
	Status         RunStatus
	TotalCount     int
	SuccessCount   int
	FailureCount   int
	RecipientsFile string
	AttachmentFile *string
	Error          *string
	StartedAt      time.Time
	FinishedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
