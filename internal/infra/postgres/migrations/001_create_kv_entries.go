package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// createKVEntriesTable creates the single table backing the postgres store.
func createKVEntriesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "001_create_kv_entries",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS kv_entries (
					key VARCHAR(512) PRIMARY KEY,
					value TEXT NOT NULL,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP TABLE IF EXISTS kv_entries;").Error
		},
	}
}
