// Package store reads source tables and writes backup and cleaned tables
// through gorm. Every call runs on a pooled connection that is released when
// the call returns; writes run inside one transaction per call.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/couchcryptid/weather-backup-etl/internal/config"
)

// Store implements pipeline.Extractor and pipeline.Loader.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
	ignore  clause.Insert
	logger  *slog.Logger
}

// Open connects to the configured database and sizes its connection pool.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DBDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("retrieve generic DB object: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return New(db, cfg.DBTimeout, logger), nil
}

// New wraps an open gorm handle. timeout bounds each read and each write
// transaction.
func New(db *gorm.DB, timeout time.Duration, logger *slog.Logger) *Store {
	return &Store{
		db:      db,
		timeout: timeout,
		ignore:  ignoreModifier(db.Dialector.Name()),
		logger:  logger,
	}
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}

// ignoreModifier returns the INSERT modifier that turns a unique-key
// conflict into a no-op for the given dialect.
func ignoreModifier(dialect string) clause.Insert {
	switch dialect {
	case "sqlite":
		return clause.Insert{Modifier: "OR IGNORE"}
	default:
		return clause.Insert{Modifier: "IGNORE"}
	}
}
