package repository

import (
	"context"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
	"gorm.io/gorm"
)

type AttemptRepository interface {
	Create(ctx context.Context, a *domain.DeliveryAttempt) error
	ListByRunID(ctx context.Context, runID string, filter AttemptFilter) ([]domain.DeliveryAttempt, error)
}

// AttemptFilter narrows a run's attempt log. Zero values match everything.
type AttemptFilter struct {
	Contact string
	Outcome domain.RecipientStatus
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *attemptModelToDomain(model)
	}
	return nil
}

func (r *GormAttemptRepo) ListByRunID(ctx context.Context, runID string, filter AttemptFilter) ([]domain.DeliveryAttempt, error) {
	query := r.db.WithContext(ctx).Model(&DeliveryAttemptModel{}).Where("run_id = ?", runID)
	if filter.Contact != "" {
		query = query.Where("contact = ?", filter.Contact)
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}

	var models []DeliveryAttemptModel
	if err := query.Order("recipient_index ASC, attempt_number ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}

	return attempts, nil
}
