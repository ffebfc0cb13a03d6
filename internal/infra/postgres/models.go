package postgres

import "time"

// DefaultTable is the table the migrations create.
const DefaultTable = "kv_entries"

// KVEntryModel is the GORM model for one key-value pair.
type KVEntryModel struct {
	Key       string    `gorm:"column:key;type:varchar(512);primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name for KVEntryModel.
func (KVEntryModel) TableName() string {
	return DefaultTable
}
