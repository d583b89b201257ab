package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormWorkItemRepo struct {
	db *gorm.DB
}

func NewGormWorkItemRepo(db *gorm.DB) *GormWorkItemRepo {
	return &GormWorkItemRepo{db: db}
}

func (r *GormWorkItemRepo) Create(ctx context.Context, item *domain.WorkItem) error {
	model := workItemModelFromDomain(item)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*item = *workItemModelToDomain(model)
	return nil
}

func (r *GormWorkItemRepo) GetByID(ctx context.Context, id string) (*domain.WorkItem, error) {
	var model WorkItemModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return workItemModelToDomain(&model), nil
}

func (r *GormWorkItemRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.WorkItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []WorkItemModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}

	items := make([]domain.WorkItem, 0, len(models))
	for i := range models {
		items = append(items, *workItemModelToDomain(&models[i]))
	}
	return items, nil
}

func (r *GormWorkItemRepo) List(ctx context.Context, params ItemListParams) ([]domain.WorkItem, int64, error) {
	query := r.db.WithContext(ctx).Model(&WorkItemModel{})

	if params.DatasetID != nil {
		query = query.Where("dataset_id = ?", *params.DatasetID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := pageBounds(params.Page, params.PageSize)

	var models []WorkItemModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	items := make([]domain.WorkItem, 0, len(models))
	for i := range models {
		items = append(items, *workItemModelToDomain(&models[i]))
	}
	return items, total, nil
}

func (r *GormWorkItemRepo) TransitionStatus(ctx context.Context, id string, from, to domain.ItemStatus) error {
	result := r.db.WithContext(ctx).
		Model(&WorkItemModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormWorkItemRepo) BulkUpdateStatus(ctx context.Context, ids []string, to domain.ItemStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	// Row locks are taken in id order so concurrent bulk updates over
	// overlapping items queue behind each other instead of deadlocking.
	var locked []string
	err := r.db.WithContext(ctx).
		Model(&WorkItemModel{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Pluck("id", &locked).Error
	if err != nil {
		return 0, err
	}
	if len(locked) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Model(&WorkItemModel{}).
		Where("id IN ?", locked).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormWorkItemRepo) CountByStatus(ctx context.Context, projectID string) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).
		Model(&WorkItemModel{}).
		Select("work_items.status AS status, COUNT(*) AS count").
		Joins("JOIN datasets ON datasets.id = work_items.dataset_id").
		Where("datasets.project_id = ?", projectID).
		Group("work_items.status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
