package postgres

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all remote database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_interviews",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Interview{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("interviews")
			},
		},
	})
	return m.Migrate()
}
