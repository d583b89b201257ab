package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/labelflow/internal/repository"
	"gorm.io/gorm"
)

func createLabelMarksTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_label_marks",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.LabelMarkModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.LabelMarkModel{})
		},
	}
}
