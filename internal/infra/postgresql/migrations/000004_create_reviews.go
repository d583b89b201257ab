package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"gorm.io/gorm"
)

func createReviewTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_reviews",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DefectCategoryModel{}, &repository.ReviewVerdictModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_review_verdicts_item_sequence ON review_verdicts (work_item_id, sequence)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				"review_verdict_defects",
				&repository.ReviewVerdictModel{},
				&repository.DefectCategoryModel{},
			)
		},
	}
}
