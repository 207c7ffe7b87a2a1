package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/weather-backup-etl/internal/config"
	"github.com/couchcryptid/weather-backup-etl/internal/domain"
	"github.com/couchcryptid/weather-backup-etl/internal/observability"
)

// Snapshot logical names.
const (
	EntriesRawSnapshot     = "entradas_raw"
	EntriesCleanedSnapshot = "entradas_cleaned"
	WeatherRawSnapshot     = "weather_raw"
	WeatherCleanedSnapshot = "weather_data_cleaned"
)

const publishTimeout = 10 * time.Second

// ErrRunInProgress is returned by Run when another run has not finished yet.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Extractor reads every current row of a source table.
type Extractor interface {
	ReadEntries(ctx context.Context, table string) ([]domain.RawEntry, error)
	ReadWeather(ctx context.Context, table string) ([]domain.RawWeatherObservation, error)
}

// Loader inserts rows that are not already present in a table and reports
// how many were new.
type Loader interface {
	InsertIgnore(ctx context.Context, table string, columns []string, rows []domain.Record) (int, error)
}

// Exporter writes a batch to a new snapshot file and returns its path.
type Exporter interface {
	Export(name string, rows []domain.Record) (string, error)
}

// Notifier announces a finished run to downstream consumers.
type Notifier interface {
	Publish(ctx context.Context, report domain.RunReport) error
}

// Pipeline runs the entries and weather flows: read, back up, snapshot the
// raw batch, clean, store the cleaned batch, snapshot it.
type Pipeline struct {
	cfg         *config.Config
	extractor   Extractor
	loader      Loader
	exporter    Exporter
	notifier    Notifier
	transformer *Transformer
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock

	running atomic.Bool
	ready   atomic.Bool
}

// New creates a Pipeline. notifier may be nil to disable run reports.
func New(
	cfg *config.Config,
	e Extractor,
	l Loader,
	x Exporter,
	n Notifier,
	logger *slog.Logger,
	metrics *observability.Metrics,
	clock clockwork.Clock,
) *Pipeline {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		cfg:         cfg,
		extractor:   e,
		loader:      l,
		exporter:    x,
		notifier:    n,
		transformer: NewTransformer(cfg.Thresholds, metrics),
		logger:      logger,
		metrics:     metrics,
		clock:       clock,
	}
}

// CheckReadiness returns nil once a run has completed without a run-level
// error, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes both flows once. Overlapping calls return ErrRunInProgress
// without touching any table or file. Table-level read and write failures
// are logged and contained; only a snapshot export failure is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		p.metrics.Runs.WithLabelValues("skipped").Inc()
		p.logger.Warn("pipeline run skipped, previous run still in progress")
		return ErrRunInProgress
	}
	defer p.running.Store(false)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	report := domain.RunReport{RunID: uuid.NewString(), StartedAt: p.clock.Now()}
	logger := p.logger.With("run_id", report.RunID)
	logger.Info("pipeline run started", "concurrent", p.cfg.ConcurrentFlows)

	flows := []func(context.Context, *slog.Logger) (domain.FlowReport, error){
		p.runEntries,
		p.runWeather,
	}
	reports := make([]domain.FlowReport, len(flows))

	var err error
	if p.cfg.ConcurrentFlows {
		var g errgroup.Group
		for i, f := range flows {
			i, f := i, f
			g.Go(func() error {
				r, ferr := f(ctx, logger)
				reports[i] = r
				return ferr
			})
		}
		err = g.Wait()
	} else {
		for i, f := range flows {
			reports[i], err = f(ctx, logger)
			if err != nil {
				break
			}
		}
	}

	report.CompletedAt = p.clock.Now()
	for _, r := range reports {
		if r.Flow != "" {
			report.Flows = append(report.Flows, r)
		}
	}
	elapsed := report.CompletedAt.Sub(report.StartedAt)
	p.metrics.RunDuration.Observe(elapsed.Seconds())

	if err != nil {
		report.Error = err.Error()
		p.metrics.Runs.WithLabelValues("failed").Inc()
		logger.Error("pipeline run failed", "error", err, "elapsed_ms", elapsed.Milliseconds())
	} else {
		p.metrics.Runs.WithLabelValues("success").Inc()
		p.metrics.LastSuccess.Set(float64(report.CompletedAt.Unix()))
		p.ready.Store(true)
		logger.Info("pipeline run completed", "elapsed_ms", elapsed.Milliseconds())
	}

	p.publish(ctx, report, logger)
	return err
}

func (p *Pipeline) runEntries(ctx context.Context, logger *slog.Logger) (domain.FlowReport, error) {
	return runFlow(ctx, p, logger, flow[domain.RawEntry, domain.CleanedEntry]{
		name:            "entries",
		source:          p.cfg.EntriesTable,
		backup:          p.cfg.EntriesBackupTable,
		cleaned:         p.cfg.EntriesCleanedTable,
		rawSnapshot:     EntriesRawSnapshot,
		cleanedSnapshot: EntriesCleanedSnapshot,
		read:            p.extractor.ReadEntries,
		transform:       p.transformer.CleanEntries,
	})
}

func (p *Pipeline) runWeather(ctx context.Context, logger *slog.Logger) (domain.FlowReport, error) {
	return runFlow(ctx, p, logger, flow[domain.RawWeatherObservation, domain.CleanedWeatherObservation]{
		name:            "weather",
		source:          p.cfg.WeatherTable,
		backup:          p.cfg.WeatherBackupTable,
		cleaned:         p.cfg.WeatherCleanedTable,
		rawSnapshot:     WeatherRawSnapshot,
		cleanedSnapshot: WeatherCleanedSnapshot,
		read:            p.extractor.ReadWeather,
		transform:       p.transformer.TransformWeather,
	})
}

// flow describes one source table and everything derived from it.
type flow[R, C domain.Record] struct {
	name            string
	source          string
	backup          string
	cleaned         string
	rawSnapshot     string
	cleanedSnapshot string
	read            func(context.Context, string) ([]R, error)
	transform       func([]R, *slog.Logger) ([]C, int)
}

func runFlow[R, C domain.Record](ctx context.Context, p *Pipeline, logger *slog.Logger, f flow[R, C]) (domain.FlowReport, error) {
	rep := domain.FlowReport{Flow: f.name}
	logger = logger.With("flow", f.name)

	raw, err := f.read(ctx, f.source)
	if err != nil {
		p.stageFailed(&rep, logger, "read", f.source, err)
		raw = nil
	} else {
		p.metrics.RecordsRead.WithLabelValues(f.source).Add(float64(len(raw)))
		logger.Info("source rows read", "table", f.source, "count", len(raw))
	}
	rep.Read = len(raw)
	if len(raw) == 0 {
		logger.Info("no source rows, flow skipped", "table", f.source)
		return rep, nil
	}

	rawRecords := asRecords(raw)
	rep.BackedUp = p.store(ctx, &rep, logger, f.backup, rawRecords)

	path, err := p.snapshot(f.rawSnapshot, rawRecords)
	if err != nil {
		p.stageFailed(&rep, logger, "export", f.rawSnapshot, err)
		return rep, err
	}
	rep.Snapshots = append(rep.Snapshots, path)

	cleaned, dropped := f.transform(raw, logger)
	rep.Cleaned = len(cleaned)
	rep.Dropped = dropped
	if len(cleaned) == 0 {
		logger.Info("no cleaned records produced", "dropped", dropped)
		return rep, nil
	}

	cleanedRecords := asRecords(cleaned)
	rep.Stored = p.store(ctx, &rep, logger, f.cleaned, cleanedRecords)

	path, err = p.snapshot(f.cleanedSnapshot, cleanedRecords)
	if err != nil {
		p.stageFailed(&rep, logger, "export", f.cleanedSnapshot, err)
		return rep, err
	}
	rep.Snapshots = append(rep.Snapshots, path)

	return rep, nil
}

// store writes rows with insert-ignore semantics. A failure is logged and
// contained: the table is skipped for this run and retried on the next.
func (p *Pipeline) store(ctx context.Context, rep *domain.FlowReport, logger *slog.Logger, table string, rows []domain.Record) int {
	inserted, err := p.loader.InsertIgnore(ctx, table, rows[0].Columns(), rows)
	if err != nil {
		p.stageFailed(rep, logger, "write", table, err)
		return 0
	}
	p.metrics.RecordsInserted.WithLabelValues(table).Add(float64(inserted))
	logger.Info("rows stored", "table", table, "rows", len(rows), "inserted", inserted)
	return inserted
}

func (p *Pipeline) snapshot(name string, rows []domain.Record) (string, error) {
	path, err := p.exporter.Export(name, rows)
	if err != nil {
		return "", fmt.Errorf("export %s snapshot: %w", name, err)
	}
	p.metrics.SnapshotsWritten.WithLabelValues(name).Inc()
	return path, nil
}

func (p *Pipeline) stageFailed(rep *domain.FlowReport, logger *slog.Logger, stage, table string, err error) {
	p.metrics.StageErrors.WithLabelValues(stage, table).Inc()
	rep.Errors = append(rep.Errors, fmt.Sprintf("%s %s: %v", stage, table, err))
	logger.Error(stage+" failed", "table", table, "error", err)
}

func (p *Pipeline) publish(ctx context.Context, report domain.RunReport, logger *slog.Logger) {
	if p.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.notifier.Publish(ctx, report); err != nil {
		p.metrics.StageErrors.WithLabelValues("publish", "run_report").Inc()
		logger.Warn("run report publish failed", "error", err)
	}
}

func asRecords[R domain.Record](rows []R) []domain.Record {
	out := make([]domain.Record, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
