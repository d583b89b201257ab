package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"gorm.io/gorm"
)

func createActivityLogsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000006_create_activity_logs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ActivityLogModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_activity_logs_target ON activity_logs (target_type, target_id, occurred_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ActivityLogModel{})
		},
	}
}
