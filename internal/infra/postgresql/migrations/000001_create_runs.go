package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/bulk-dispatch/internal/repository"
	"gorm.io/gorm"
)

func createRunsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_runs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.RunModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs (started_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs (status)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.RunModel{})
		},
	}
}
