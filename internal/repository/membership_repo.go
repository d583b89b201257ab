package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"gorm.io/gorm"
)

type GormMembershipRepo struct {
	db *gorm.DB
}

func NewGormMembershipRepo(db *gorm.DB) *GormMembershipRepo {
	return &GormMembershipRepo{db: db}
}

func (r *GormMembershipRepo) Create(ctx context.Context, m *domain.Membership) error {
	model := membershipModelFromDomain(m)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if IsUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	*m = *membershipModelToDomain(model)
	return nil
}

func (r *GormMembershipRepo) GetByID(ctx context.Context, id string) (*domain.Membership, error) {
	var model MembershipModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return membershipModelToDomain(&model), nil
}

func (r *GormMembershipRepo) GetByBatchAndItem(ctx context.Context, batchID, workItemID string) (*domain.Membership, error) {
	var model MembershipModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND work_item_id = ?", batchID, workItemID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return membershipModelToDomain(&model), nil
}

func (r *GormMembershipRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.Membership, error) {
	return r.list(ctx, "batch_id = ?", batchID)
}

func (r *GormMembershipRepo) ListByWorkItem(ctx context.Context, workItemID string) ([]domain.Membership, error) {
	return r.list(ctx, "work_item_id = ?", workItemID)
}

func (r *GormMembershipRepo) list(ctx context.Context, where string, arg string) ([]domain.Membership, error) {
	var models []MembershipModel
	err := r.db.WithContext(ctx).
		Where(where, arg).
		Order("assigned_at ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	memberships := make([]domain.Membership, 0, len(models))
	for i := range models {
		memberships = append(memberships, *membershipModelToDomain(&models[i]))
	}
	return memberships, nil
}

func (r *GormMembershipRepo) CountByBatch(ctx context.Context, batchID string) (int, int, error) {
	var row struct {
		Total     int `gorm:"column:total"`
		Completed int `gorm:"column:completed"`
	}
	err := r.db.WithContext(ctx).
		Model(&MembershipModel{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE status = ?) AS completed", domain.MembershipStatusCompleted).
		Where("batch_id = ?", batchID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Completed, nil
}

func (r *GormMembershipRepo) Update(ctx context.Context, m *domain.Membership) error {
	result := r.db.WithContext(ctx).
		Model(&MembershipModel{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"status":       m.Status,
			"started_at":   m.StartedAt,
			"completed_at": m.CompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormMembershipRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&MembershipModel{}).Error
}
