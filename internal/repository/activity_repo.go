package repository

import (
	"context"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultActivityLimit = 100

type GormActivityRepo struct {
	db *gorm.DB
}

func NewGormActivityRepo(db *gorm.DB) *GormActivityRepo {
	return &GormActivityRepo{db: db}
}

func (r *GormActivityRepo) Create(ctx context.Context, e *domain.ActivityEntry) error {
	model := activityModelFromDomain(e)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(model).Error
}

func (r *GormActivityRepo) ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]domain.ActivityEntry, error) {
	if limit <= 0 || limit > defaultActivityLimit {
		limit = defaultActivityLimit
	}

	var models []ActivityLogModel
	err := r.db.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.ActivityEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *activityModelToDomain(&models[i]))
	}
	return entries, nil
}
