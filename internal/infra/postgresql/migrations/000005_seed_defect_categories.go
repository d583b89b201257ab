package migrations

import (
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var defaultDefectCategories = []repository.DefectCategoryModel{
	{ID: "missing-object", Name: "Missing object", Description: "An object that should be labeled has no mark."},
	{ID: "wrong-class", Name: "Wrong class", Description: "A mark carries the wrong class name."},
	{ID: "loose-box", Name: "Loose bounding box", Description: "Box or polygon does not tightly fit the object."},
	{ID: "extra-object", Name: "Extra object", Description: "A mark was drawn where there is no object."},
	{ID: "occlusion", Name: "Occlusion not handled", Description: "Occluded or truncated object labeled incorrectly."},
}

func seedDefectCategories() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_seed_defect_categories",
		Migrate: func(tx *gorm.DB) error {
			now := time.Now().UTC()
			rows := make([]repository.DefectCategoryModel, len(defaultDefectCategories))
			copy(rows, defaultDefectCategories)
			for i := range rows {
				rows[i].CreatedAt = now
			}
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
		},
		Rollback: func(tx *gorm.DB) error {
			ids := make([]string, 0, len(defaultDefectCategories))
			for _, c := range defaultDefectCategories {
				ids = append(ids, c.ID)
			}
			return tx.Where("id IN ?", ids).Delete(&repository.DefectCategoryModel{}).Error
		},
	}
}
