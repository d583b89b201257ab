package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"gorm.io/gorm"
)

func createCatalogTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_catalog",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(
				&repository.ProjectModel{},
				&repository.DatasetModel{},
				&repository.WorkItemModel{},
			); err != nil {
				return err
			}
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_work_items_dataset_status ON work_items (dataset_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_work_items_created ON work_items (created_at)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&repository.WorkItemModel{},
				&repository.DatasetModel{},
				&repository.ProjectModel{},
			)
		},
	}
}
