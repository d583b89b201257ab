package repository

import (
	"context"
	"errors"

	"github.com/kursadbilgin/labelflow/internal/domain"
	"gorm.io/gorm"
)

type GormProjectRepo struct {
	db *gorm.DB
}

func NewGormProjectRepo(db *gorm.DB) *GormProjectRepo {
	return &GormProjectRepo{db: db}
}

func (r *GormProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	model := projectModelFromDomain(p)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*p = *projectModelToDomain(model)
	return nil
}

func (r *GormProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var model ProjectModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return projectModelToDomain(&model), nil
}

type GormDatasetRepo struct {
	db *gorm.DB
}

func NewGormDatasetRepo(db *gorm.DB) *GormDatasetRepo {
	return &GormDatasetRepo{db: db}
}

func (r *GormDatasetRepo) Create(ctx context.Context, d *domain.Dataset) error {
	model := datasetModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*d = *datasetModelToDomain(model)
	return nil
}

func (r *GormDatasetRepo) GetByID(ctx context.Context, id string) (*domain.Dataset, error) {
	var model DatasetModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return datasetModelToDomain(&model), nil
}

func (r *GormDatasetRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Dataset, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []DatasetModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}

	datasets := make([]domain.Dataset, 0, len(models))
	for i := range models {
		datasets = append(datasets, *datasetModelToDomain(&models[i]))
	}
	return datasets, nil
}

type GormDefectCategoryRepo struct {
	db *gorm.DB
}

func NewGormDefectCategoryRepo(db *gorm.DB) *GormDefectCategoryRepo {
	return &GormDefectCategoryRepo{db: db}
}

func (r *GormDefectCategoryRepo) List(ctx context.Context) ([]domain.DefectCategory, error) {
	var models []DefectCategoryModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	categories := make([]domain.DefectCategory, 0, len(models))
	for i := range models {
		categories = append(categories, defectCategoryModelToDomain(&models[i]))
	}
	return categories, nil
}

func (r *GormDefectCategoryRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.DefectCategory, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []DefectCategoryModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	categories := make([]domain.DefectCategory, 0, len(models))
	for i := range models {
		categories = append(categories, defectCategoryModelToDomain(&models[i]))
	}
	return categories, nil
}
