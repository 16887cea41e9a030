package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/bulk-dispatch/internal/domain"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type ListParams struct {
	Status   *domain.RunStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// normalized clamps paging to sane bounds.
func (p ListParams) normalized() ListParams {
	p.Page = max(p.Page, 1)
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	p.PageSize = min(p.PageSize, maxPageSize)
	return p
}

// RunFinish carries the terminal figures of a run.
type RunFinish struct {
	Status       domain.RunStatus
	TotalCount   int
	SuccessCount int
	FailureCount int
	Error        *string
	FinishedAt   time.Time
}

type RunRepository interface {
	Create(ctx context.Context, r *domain.Run) error
	UpdateProgress(ctx context.Context, id string, total, success, failure int) error
	Finish(ctx context.Context, id string, finish RunFinish) error
	GetByID(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, params ListParams) ([]domain.Run, int64, error)
}

type GormRunRepo struct {
	db *gorm.DB
}

func NewGormRunRepo(db *gorm.DB) *GormRunRepo {
	return &GormRunRepo{db: db}
}

func (r *GormRunRepo) Create(ctx context.Context, run *domain.Run) error {
	model := runModelFromDomain(run)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if run != nil {
		*run = *runModelToDomain(model)
	}
	return nil
}

func (r *GormRunRepo) UpdateProgress(ctx context.Context, id string, total, success, failure int) error {
	result := r.db.WithContext(ctx).
		Model(&RunModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_count":   total,
			"success_count": success,
			"failure_count": failure,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormRunRepo) Finish(ctx context.Context, id string, finish RunFinish) error {
	result := r.db.WithContext(ctx).
		Model(&RunModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        finish.Status,
			"total_count":   finish.TotalCount,
			"success_count": finish.SuccessCount,
			"failure_count": finish.FailureCount,
			"error":         finish.Error,
			"finished_at":   finish.FinishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormRunRepo) GetByID(ctx context.Context, id string) (*domain.Run, error) {
	var model RunModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return runModelToDomain(&model), nil
}

func (r *GormRunRepo) List(ctx context.Context, params ListParams) ([]domain.Run, int64, error) {
	params = params.normalized()
	query := r.db.WithContext(ctx).Model(&RunModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.From != nil {
		query = query.Where("started_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("started_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []RunModel
	err := query.
		Order("started_at DESC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	runs := make([]domain.Run, 0, len(models))
	for i := range models {
		runs = append(runs, *runModelToDomain(&models[i]))
	}

	return runs, total, nil
}
