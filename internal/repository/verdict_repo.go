package repository

import (
	"context"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"gorm.io/gorm"
)

type GormVerdictRepo struct {
	db *gorm.DB
}

func NewGormVerdictRepo(db *gorm.DB) *GormVerdictRepo {
	return &GormVerdictRepo{db: db}
}

func (r *GormVerdictRepo) Create(ctx context.Context, v *domain.ReviewVerdict) error {
	var last int
	err := r.db.WithContext(ctx).
		Model(&ReviewVerdictModel{}).
		Select("COALESCE(MAX(sequence), 0)").
		Where("work_item_id = ?", v.WorkItemID).
		Scan(&last).Error
	if err != nil {
		return err
	}
	v.Sequence = last + 1

	model := verdictModelFromDomain(v)
	// Categories already exist in the catalog; only the join rows are written.
	if err := r.db.WithContext(ctx).Omit("Defects.*").Create(model).Error; err != nil {
		if IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	*v = *verdictModelToDomain(model)
	return nil
}

func (r *GormVerdictRepo) ListByWorkItem(ctx context.Context, workItemID string) ([]domain.ReviewVerdict, error) {
	var models []ReviewVerdictModel
	err := r.db.WithContext(ctx).
		Preload("Defects").
		Where("work_item_id = ?", workItemID).
		Order("sequence ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	verdicts := make([]domain.ReviewVerdict, 0, len(models))
	for i := range models {
		verdicts = append(verdicts, *verdictModelToDomain(&models[i]))
	}
	return verdicts, nil
}

func (r *GormVerdictRepo) LatestByWorkItems(ctx context.Context, workItemIDs []string) (map[string]domain.ReviewVerdict, error) {
	latest := make(map[string]domain.ReviewVerdict, len(workItemIDs))
	if len(workItemIDs) == 0 {
		return latest, nil
	}

	sub := r.db.
		Model(&ReviewVerdictModel{}).
		Select("work_item_id, MAX(sequence)").
		Where("work_item_id IN ?", workItemIDs).
		Group("work_item_id")

	var models []ReviewVerdictModel
	err := r.db.WithContext(ctx).
		Preload("Defects").
		Where("(work_item_id, sequence) IN (?)", sub).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	for i := range models {
		latest[models[i].WorkItemID] = *verdictModelToDomain(&models[i])
	}
	return latest, nil
}
