package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	kafkaadapter "github.com/couchcryptid/weather-backup-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-backup-etl/internal/adapter/snapshot"
	"github.com/couchcryptid/weather-backup-etl/internal/adapter/store"
	"github.com/couchcryptid/weather-backup-etl/internal/config"
	"github.com/couchcryptid/weather-backup-etl/internal/observability"
	"github.com/couchcryptid/weather-backup-etl/internal/pipeline"
)

// app holds the wired dependencies shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	reports  *kafkaadapter.Writer
	pipeline *pipeline.Pipeline
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return nil, err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	st, err := store.Open(cfg, logger)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.DBDriver, "error", err)
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := st.Ping(pingCtx); err != nil {
		// Reads and writes are fail-soft per table, so an unreachable
		// database at startup is logged and retried on every run.
		logger.Warn("database not reachable at startup", "error", err)
	}

	exporter, err := snapshot.NewExporter(cfg.SnapshotDir, cfg.SnapshotFormat, clock, logger)
	if err != nil {
		_ = st.Close()
		logger.Error("failed to prepare snapshot directory", "dir", cfg.SnapshotDir, "error", err)
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: st}

	var notifier pipeline.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		a.reports = kafkaadapter.NewWriter(cfg, logger)
		notifier = a.reports
		logger.Info("run report publishing enabled", "topic", cfg.KafkaReportTopic)
	} else {
		logger.Info("run report publishing disabled")
	}

	a.pipeline = pipeline.New(cfg, st, st, exporter, notifier, logger, metrics, clock)
	return a, nil
}

func (a *app) close() {
	if a.reports != nil {
		if err := a.reports.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("database close error", "error", err)
	}
}
