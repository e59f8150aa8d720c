package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type auditTrailGormRepository struct {
	db *gorm.DB
}

func NewAuditTrailGormRepository(db *gorm.DB) repo.AuditTrailRepository {
	return &auditTrailGormRepository{db: db}
}

func (r *auditTrailGormRepository) Create(ctx context.Context, row *model.AuditTrail) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *auditTrailGormRepository) List(ctx context.Context, filter repo.AuditTrailFilter) ([]model.AuditTrail, error) {
	q := r.db.WithContext(ctx).Model(&model.AuditTrail{})

	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Endpoint != "" {
		q = q.Where("endpoint = ?", filter.Endpoint)
	}
	if filter.Method != "" {
		q = q.Where("method = ?", filter.Method)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("creation_date >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("creation_date <= ?", *filter.CreatedTo)
	}

	//新しい順
	q = q.Order("id DESC")

	// limit/offset
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	q = q.Limit(limit).Offset(filter.Offset)

	var rows []model.AuditTrail
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
