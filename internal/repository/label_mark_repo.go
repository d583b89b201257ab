package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"gorm.io/gorm"
)

type GormLabelMarkRepo struct {
	db *gorm.DB
}

func NewGormLabelMarkRepo(db *gorm.DB) *GormLabelMarkRepo {
	return &GormLabelMarkRepo{db: db}
}

func (r *GormLabelMarkRepo) Create(ctx context.Context, m *domain.LabelMark) error {
	model := labelMarkModelFromDomain(m)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*m = *labelMarkModelToDomain(model)
	return nil
}

func (r *GormLabelMarkRepo) GetByID(ctx context.Context, id string) (*domain.LabelMark, error) {
	var model LabelMarkModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return labelMarkModelToDomain(&model), nil
}

func (r *GormLabelMarkRepo) Update(ctx context.Context, m *domain.LabelMark) error {
	model := labelMarkModelFromDomain(m)
	result := r.db.WithContext(ctx).
		Model(&LabelMarkModel{ID: m.ID}).
		Select("class_name", "shape", "points", "updated_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormLabelMarkRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&LabelMarkModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormLabelMarkRepo) ListByWorkItem(ctx context.Context, workItemID string) ([]domain.LabelMark, error) {
	var models []LabelMarkModel
	err := r.db.WithContext(ctx).
		Where("work_item_id = ?", workItemID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	marks := make([]domain.LabelMark, 0, len(models))
	for i := range models {
		marks = append(marks, *labelMarkModelToDomain(&models[i]))
	}
	return marks, nil
}

// DeleteByWorkItems drops every mark drawn on the given items.
func (r *GormLabelMarkRepo) DeleteByWorkItems(ctx context.Context, workItemIDs []string) (int64, error) {
	if len(workItemIDs) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Where("work_item_id IN ?", workItemIDs).Delete(&LabelMarkModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
