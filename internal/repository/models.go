package repository

import (
	"time"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
)

// RunModel is the persistence model for the runs table.
type RunModel struct {
	ID             string           `gorm:"type:uuid;primaryKey"`
	Status         domain.RunStatus `gorm:"type:varchar(20);not null"`
	TotalCount     int              `gorm:"not null;default:0"`
	SuccessCount   int              `gorm:"not null;default:0"`
	FailureCount   int              `gorm:"not null;default:0"`
	RecipientsFile string           `gorm:"type:varchar(512);not null"`
	AttachmentFile *string          `gorm:"type:varchar(512)"`
	Error          *string          `gorm:"type:text"`
	StartedAt      time.Time        `gorm:"type:timestamptz;not null"`
	FinishedAt     *time.Time       `gorm:"type:timestamptz"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (RunModel) TableName() string {
	return "runs"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
type DeliveryAttemptModel struct {
	ID             string                 `gorm:"type:uuid;primaryKey"`
	RunID          string                 `gorm:"type:uuid;not null"`
	RecipientIndex int                    `gorm:"not null"`
	Contact        string                 `gorm:"type:varchar(32);not null"`
	AttemptNumber  int                    `gorm:"not null"`
	Outcome        domain.RecipientStatus `gorm:"type:varchar(20);not null"`
	Error          *string                `gorm:"type:text"`
	DurationMillis int64                  `gorm:"not null;default:0"`
	CreatedAt      time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func runModelFromDomain(r *domain.Run) *RunModel {
	if r == nil {
		return nil
	}

	return &RunModel{
		ID:             r.ID,
		Status:         r.Status,
		TotalCount:     r.TotalCount,
		SuccessCount:   r.SuccessCount,
		FailureCount:   r.FailureCount,
		RecipientsFile: r.RecipientsFile,
		AttachmentFile: r.AttachmentFile,
		Error:          r.Error,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func runModelToDomain(m *RunModel) *domain.Run {
	if m == nil {
		return nil
	}

	return &domain.Run{
		ID:             m.ID,
		Status:         m.Status,
		TotalCount:     m.TotalCount,
		SuccessCount:   m.SuccessCount,
		FailureCount:   m.FailureCount,
		RecipientsFile: m.RecipientsFile,
		AttachmentFile: m.AttachmentFile,
		Error:          m.Error,
		StartedAt:      m.StartedAt,
		FinishedAt:     m.FinishedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:             a.ID,
		RunID:          a.RunID,
		RecipientIndex: a.RecipientIndex,
		Contact:        a.Contact,
		AttemptNumber:  a.AttemptNumber,
		Outcome:        a.Outcome,
		Error:          a.Error,
		DurationMillis: a.DurationMillis,
		CreatedAt:      a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		RunID:          m.RunID,
		RecipientIndex: m.RecipientIndex,
		Contact:        m.Contact,
		AttemptNumber:  m.AttemptNumber,
		Outcome:        m.Outcome,
		Error:          m.Error,
		DurationMillis: m.DurationMillis,
		CreatedAt:      m.CreatedAt,
	}
}
