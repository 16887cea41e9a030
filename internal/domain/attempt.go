package domain

import "time"

// DeliveryAttempt records a single delivery try for one recipient of a run.
type DeliveryAttempt struct {
	ID             string
	RunID          string
	RecipientIndex int
	Contact        string
	AttemptNumber  int
	Outcome        RecipientStatus
	Error          *string
	DurationMillis int64
	CreatedAt      time.Time
}
