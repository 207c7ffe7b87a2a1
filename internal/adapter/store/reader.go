package store

import (
	"context"
	"fmt"

	"github.com/couchcryptid/weather-backup-etl/internal/domain"
)

// ReadEntries returns every row of the entries table.
func (s *Store) ReadEntries(ctx context.Context, table string) ([]domain.RawEntry, error) {
	return readAll[domain.RawEntry](ctx, s, table)
}

// ReadWeather returns every row of the weather observations table.
func (s *Store) ReadWeather(ctx context.Context, table string) ([]domain.RawWeatherObservation, error) {
	return readAll[domain.RawWeatherObservation](ctx, s, table)
}

// ReadCleanedWeather returns every row of the cleaned weather table.
func (s *Store) ReadCleanedWeather(ctx context.Context, table string) ([]domain.CleanedWeatherObservation, error) {
	return readAll[domain.CleanedWeatherObservation](ctx, s, table)
}

func readAll[T any](ctx context.Context, s *Store, table string) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []T
	if err := s.db.WithContext(ctx).Table(table).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	s.logger.Debug("table read", "table", table, "count", len(rows))
	return rows, nil
}
