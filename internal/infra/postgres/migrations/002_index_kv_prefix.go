package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// addKeyPrefixIndex speeds up the prefix scans behind lease listings.
// text_pattern_ops lets LIKE 'prefix%' use the index under any collation.
func addKeyPrefixIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "002_index_kv_prefix",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_kv_entries_key_pattern
				ON kv_entries (key text_pattern_ops)
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_kv_entries_key_pattern`).Error
		},
	}
}
