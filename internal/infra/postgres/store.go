package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxSwapRounds bounds the select-then-insert loop in Swap. A second round is only
// needed when a concurrent insert of the same key wins between our SELECT and INSERT.
const maxSwapRounds = 3

var errSwapContended = errors.New("swap kept losing insert races")

// Store implements kvstore.Store on a single PostgreSQL table.
// Swap runs in a transaction holding a row lock, so it is atomic with respect to
// SetIfAbsent and Delete.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	table  string
	quoted string
}

// NewStore returns a Store over table. An empty table uses DefaultTable.
func NewStore(db *gorm.DB, logger *zap.Logger, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{
		db:     db,
		logger: logger,
		table:  table,
		quoted: pq.QuoteIdentifier(table),
	}
}

// SetIfAbsent implements kvstore.Store.SetIfAbsent with INSERT ... ON CONFLICT DO NOTHING.
func (s *Store) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	res := s.db.WithContext(ctx).
		Table(s.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).
		Create(&KVEntryModel{Key: key, Value: value})
	if res.Error != nil {
		return false, fmt.Errorf("inserting %s: %w", key, res.Error)
	}

	s.logger.Debug("postgres set if absent",
		zap.String("key", key),
		zap.Bool("written", res.RowsAffected == 1),
	)
	return res.RowsAffected == 1, nil
}

// Get implements kvstore.Store.Get.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var model KVEntryModel
	err := s.db.WithContext(ctx).Table(s.table).Where("key = ?", key).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return model.Value, true, nil
}

// Swap implements kvstore.Store.Swap.
//
// An existing row is locked with SELECT ... FOR UPDATE and overwritten. A missing row is
// inserted; if a concurrent writer inserted it first, the loop re-reads and swaps
// against the committed row instead.
func (s *Store) Swap(ctx context.Context, key, value string) (string, bool, error) {
	var (
		prev  string
		found bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for round := 0; round < maxSwapRounds; round++ {
			var rows []string
			selectSQL := fmt.Sprintf(`SELECT value FROM %s WHERE key = ? FOR UPDATE`, s.quoted)
			if err := tx.Raw(selectSQL, key).Scan(&rows).Error; err != nil {
				return err
			}

			if len(rows) > 0 {
				prev, found = rows[0], true
				updateSQL := fmt.Sprintf(`UPDATE %s SET value = ?, updated_at = now() WHERE key = ?`, s.quoted)
				return tx.Exec(updateSQL, value, key).Error
			}

			insertSQL := fmt.Sprintf(
				`INSERT INTO %s (key, value, updated_at) VALUES (?, ?, now()) ON CONFLICT (key) DO NOTHING`,
				s.quoted,
			)
			res := tx.Exec(insertSQL, key, value)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				prev, found = "", false
				return nil
			}

			s.logger.Debug("postgres swap lost insert race, retrying", zap.String("key", key))
		}
		return errSwapContended
	})
	if err != nil {
		return "", false, fmt.Errorf("swapping %s: %w", key, err)
	}
	return prev, found, nil
}

// Delete implements kvstore.Store.Delete.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Table(s.table).Where("key = ?", key).Delete(&KVEntryModel{}).Error
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Keys implements kvstore.Lister.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	query := fmt.Sprintf(`SELECT key FROM %s WHERE key LIKE ? ESCAPE '\' ORDER BY key`, s.quoted)
	if err := s.db.WithContext(ctx).Raw(query, escapeLike(prefix)+"%").Scan(&keys).Error; err != nil {
		return nil, fmt.Errorf("listing keys with prefix %q: %w", prefix, err)
	}
	return keys, nil
}

// Ping implements kvstore.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
