package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/couchcryptid/weather-backup-etl/internal/domain"
)

// InsertIgnore projects each record onto columns and inserts the rows that
// are not already present, returning how many were inserted. Presence is
// decided on the full projected tuple with NULL-safe equality, and the
// INSERT itself carries the dialect's ignore modifier so a unique key on the
// tuple also absorbs races. All rows go through one transaction; any error
// rolls the whole call back.
func (s *Store) InsertIgnore(ctx context.Context, table string, columns []string, rows []domain.Record) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, errors.New("insert ignore: no columns")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, r := range rows {
			values, err := domain.Project(r, columns)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}

			var n int64
			if err := tx.Table(table).Where(values).Count(&n).Error; err != nil {
				return fmt.Errorf("probe %s row %d: %w", table, i, err)
			}
			if n > 0 {
				continue
			}

			res := tx.Table(table).Clauses(s.ignore).Create(values)
			if res.Error != nil {
				return fmt.Errorf("insert into %s row %d: %w", table, i, res.Error)
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("insert ignore committed", "table", table, "rows", len(rows), "inserted", inserted)
	return inserted, nil
}
