package queue

import (
	"fmt"
	"strings"
	"time"
)

// EventKind names a dispatch lifecycle event.
type EventKind string

const (
	EventRunStarted        EventKind = "run.started"
	EventRecipientFinished EventKind = "recipient.finished"
	EventRunFinished       EventKind = "run.finished"
)

func (k EventKind) IsValid() bool {
	switch k {
	case EventRunStarted, EventRecipientFinished, EventRunFinished:
		return true
	}
	return false
}

// EventMessage is the broker payload for dispatch events.
type EventMessage struct {
	ID             string    `json:"id"`
	Kind           EventKind `json:"kind"`
	RunID          string    `json:"runId"`
	Status         string    `json:"status,omitempty"`
	RecipientIndex int       `json:"recipientIndex,omitempty"`
	Contact        string    `json:"contact,omitempty"`
	Attempts       int       `json:"attempts,omitempty"`
	Total          int       `json:"total,omitempty"`
	SuccessCount   int       `json:"successCount,omitempty"`
	FailureCount   int       `json:"failureCount,omitempty"`
	Error          string    `json:"error,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

func (m EventMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(m.RunID) == "" {
		return fmt.Errorf("runId is required")
	}
	if !m.Kind.IsValid() {
		return fmt.Errorf("invalid event kind %q", m.Kind)
	}
	if m.Kind == EventRecipientFinished && m.RecipientIndex < 1 {
		return fmt.Errorf("recipientIndex is required for %s", m.Kind)
	}
	return nil
}
