package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"gorm.io/gorm"
)

func createBatchTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_batches",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BatchModel{}, &repository.MembershipModel{}); err != nil {
				return err
			}
			return execAll(tx, []string{
				`ALTER TABLE batches ADD CONSTRAINT chk_batches_counters CHECK (completed_items >= 0 AND completed_items <= total_items)`,
				`CREATE INDEX IF NOT EXISTS idx_batches_assignee_status ON batches (assignee_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_batches_project_status ON batches (project_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_memberships_batch ON memberships (batch_id)`,
				// One open membership per item; a second claim fails on this index.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_work_item ON memberships (work_item_id)`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.MembershipModel{}, &repository.BatchModel{})
		},
	}
}
