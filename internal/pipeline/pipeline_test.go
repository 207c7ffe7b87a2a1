package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-backup-etl/internal/config"
	"github.com/couchcryptid/weather-backup-etl/internal/domain"
	"github.com/couchcryptid/weather-backup-etl/internal/observability"
	"github.com/couchcryptid/weather-backup-etl/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	entries    []domain.RawEntry
	weather    []domain.RawWeatherObservation
	entriesErr error
	weatherErr error
}

func (m *mockExtractor) ReadEntries(context.Context, string) ([]domain.RawEntry, error) {
	return m.entries, m.entriesErr
}

func (m *mockExtractor) ReadWeather(context.Context, string) ([]domain.RawWeatherObservation, error) {
	return m.weather, m.weatherErr
}

type insertCall struct {
	table string
	rows  int
}

type mockLoader struct {
	mu    sync.Mutex
	calls []insertCall
	fail  map[string]error
}

func (m *mockLoader) InsertIgnore(_ context.Context, table string, _ []string, rows []domain.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[table]; err != nil {
		return 0, err
	}
	m.calls = append(m.calls, insertCall{table: table, rows: len(rows)})
	return len(rows), nil
}

func (m *mockLoader) tables() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.table
	}
	return out
}

type mockExporter struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (m *mockExporter) Export(name string, _ []domain.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.names = append(m.names, name)
	return "backups/" + name + "_20250601_123045.csv", nil
}

type mockNotifier struct {
	reports []domain.RunReport
	err     error
}

func (m *mockNotifier) Publish(_ context.Context, r domain.RunReport) error {
	m.reports = append(m.reports, r)
	return m.err
}

// --- helpers ---

func ptr[T any](v T) *T { return &v }

func testConfig() *config.Config {
	return &config.Config{
		EntriesTable:        "entradas",
		EntriesBackupTable:  "entradas_backup",
		EntriesCleanedTable: "entradas_cleaned",
		WeatherTable:        "weather_data",
		WeatherBackupTable:  "weather_data_backup",
		WeatherCleanedTable: "weather_data_cleaned",
		Thresholds:          domain.DefaultThresholds(),
	}
}

func sampleEntries() []domain.RawEntry {
	return []domain.RawEntry{
		{Name: ptr(" juan pérez "), City: ptr("bogotá"), WeatherLabel: ptr("LLUVIOSO")},
		{Name: nil, City: ptr("cali"), WeatherLabel: ptr("soleado")},
	}
}

func sampleWeather() []domain.RawWeatherObservation {
	return []domain.RawWeatherObservation{{
		City:        ptr("Bogotá"),
		Country:     ptr("CO"),
		Temperature: ptr(14.2),
		TempMin:     ptr(12.0),
		TempMax:     ptr(16.0),
		Description: ptr("lluvia ligera"),
		WindSpeed:   ptr(3.6),
		Visibility:  ptr(int64(8000)),
		Timestamp:   ptr("2025-06-01T12:00:00"),
	}}
}

func newPipeline(cfg *config.Config, ext pipeline.Extractor, ldr pipeline.Loader, exp pipeline.Exporter, n pipeline.Notifier) (*pipeline.Pipeline, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.June, 1, 12, 30, 45, 0, time.UTC))
	return pipeline.New(cfg, ext, ldr, exp, n, slog.Default(), metrics, clock), metrics
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{entries: sampleEntries(), weather: sampleWeather()}
	ldr := &mockLoader{}
	exp := &mockExporter{}
	notifier := &mockNotifier{}

	p, metrics := newPipeline(testConfig(), ext, ldr, exp, notifier)
	require.Error(t, p.CheckReadiness(context.Background()))

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []insertCall{
		{table: "entradas_backup", rows: 2},
		{table: "entradas_cleaned", rows: 1},
		{table: "weather_data_backup", rows: 1},
		{table: "weather_data_cleaned", rows: 1},
	}, ldr.calls)
	assert.Equal(t, []string{
		pipeline.EntriesRawSnapshot,
		pipeline.EntriesCleanedSnapshot,
		pipeline.WeatherRawSnapshot,
		pipeline.WeatherCleanedSnapshot,
	}, exp.names)

	require.Len(t, notifier.reports, 1)
	report := notifier.reports[0]
	assert.NotEmpty(t, report.RunID)
	assert.Empty(t, report.Error)
	want := []domain.FlowReport{
		{
			Flow: "entries", Read: 2, BackedUp: 2, Cleaned: 1, Dropped: 1, Stored: 1,
			Snapshots: []string{
				"backups/entradas_raw_20250601_123045.csv",
				"backups/entradas_cleaned_20250601_123045.csv",
			},
		},
		{
			Flow: "weather", Read: 1, BackedUp: 1, Cleaned: 1, Stored: 1,
			Snapshots: []string{
				"backups/weather_raw_20250601_123045.csv",
				"backups/weather_data_cleaned_20250601_123045.csv",
			},
		},
	}
	if diff := cmp.Diff(want, report.Flows); diff != "" {
		t.Errorf("flow reports mismatch (-want +got):\n%s", diff)
	}

	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RecordsDropped.WithLabelValues("entries", "missing_field")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_EmptySource(t *testing.T) {
	ldr := &mockLoader{}
	exp := &mockExporter{}
	p, _ := newPipeline(testConfig(), &mockExtractor{}, ldr, exp, nil)

	require.NoError(t, p.Run(context.Background()))

	assert.Empty(t, ldr.calls)
	assert.Empty(t, exp.names)
	assert.NoError(t, p.CheckReadiness(context.Background()), "an empty run still completes")
}

func TestPipeline_Run_AllRecordsDropped(t *testing.T) {
	ext := &mockExtractor{entries: []domain.RawEntry{{City: ptr("cali")}}}
	ldr := &mockLoader{}
	exp := &mockExporter{}
	p, _ := newPipeline(testConfig(), ext, ldr, exp, nil)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"entradas_backup"}, ldr.tables())
	assert.Equal(t, []string{pipeline.EntriesRawSnapshot}, exp.names)
}

func TestPipeline_Run_DroppedRecordsDoNotStopBatch(t *testing.T) {
	longName := strings.Repeat("a", 101)
	noVisibility := sampleWeather()[0]
	noVisibility.City = ptr("Lima")
	noVisibility.Visibility = nil

	ext := &mockExtractor{
		entries: []domain.RawEntry{
			{Name: ptr(longName), City: ptr("cali"), WeatherLabel: ptr("soleado")},
			sampleEntries()[0],
		},
		weather: []domain.RawWeatherObservation{noVisibility, sampleWeather()[0]},
	}
	ldr := &mockLoader{}
	notifier := &mockNotifier{}
	p, metrics := newPipeline(testConfig(), ext, ldr, &mockExporter{}, notifier)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []insertCall{
		{table: "entradas_backup", rows: 2},
		{table: "entradas_cleaned", rows: 1},
		{table: "weather_data_backup", rows: 2},
		{table: "weather_data_cleaned", rows: 1},
	}, ldr.calls)

	require.Len(t, notifier.reports, 1)
	flows := notifier.reports[0].Flows
	require.Len(t, flows, 2)
	assert.Equal(t, 1, flows[0].Cleaned)
	assert.Equal(t, 1, flows[0].Dropped)
	assert.Equal(t, 1, flows[1].Cleaned)
	assert.Equal(t, 1, flows[1].Dropped)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RecordsDropped.WithLabelValues("entries", "field_too_long")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RecordsDropped.WithLabelValues("weather", "missing_field")), 0)
}

func TestPipeline_Run_ReadFailureIsContained(t *testing.T) {
	ext := &mockExtractor{entries: sampleEntries(), weatherErr: errors.New("table weather_data doesn't exist")}
	ldr := &mockLoader{}
	notifier := &mockNotifier{}
	p, metrics := newPipeline(testConfig(), ext, ldr, &mockExporter{}, notifier)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"entradas_backup", "entradas_cleaned"}, ldr.tables())
	require.Len(t, notifier.reports, 1)
	weather := notifier.reports[0].Flows[1]
	assert.Equal(t, "weather", weather.Flow)
	assert.Zero(t, weather.Read)
	require.Len(t, weather.Errors, 1)
	assert.Contains(t, weather.Errors[0], "read weather_data")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.StageErrors.WithLabelValues("read", "weather_data")), 0)
}

func TestPipeline_Run_WriteFailureIsContained(t *testing.T) {
	ext := &mockExtractor{entries: sampleEntries(), weather: sampleWeather()}
	ldr := &mockLoader{fail: map[string]error{"entradas_backup": errors.New("lock wait timeout")}}
	exp := &mockExporter{}
	p, _ := newPipeline(testConfig(), ext, ldr, exp, nil)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"entradas_cleaned", "weather_data_backup", "weather_data_cleaned"}, ldr.tables())
	assert.Len(t, exp.names, 4, "snapshots are still written when a table write fails")
}

func TestPipeline_Run_ExportFailureAbortsRun(t *testing.T) {
	ext := &mockExtractor{entries: sampleEntries(), weather: sampleWeather()}
	ldr := &mockLoader{}
	exp := &mockExporter{err: errors.New("disk full")}
	notifier := &mockNotifier{}
	p, metrics := newPipeline(testConfig(), ext, ldr, exp, notifier)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export entradas_raw snapshot")

	assert.Equal(t, []string{"entradas_backup"}, ldr.tables(), "weather flow must not start")
	require.Len(t, notifier.reports, 1)
	assert.NotEmpty(t, notifier.reports[0].Error)
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("failed")), 0)
}

func TestPipeline_Run_NotifierFailureIsIgnored(t *testing.T) {
	ext := &mockExtractor{entries: sampleEntries()}
	notifier := &mockNotifier{err: errors.New("broker unavailable")}
	p, _ := newPipeline(testConfig(), ext, &mockLoader{}, &mockExporter{}, notifier)

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, notifier.reports, 1)
}

func TestPipeline_Run_ConcurrentFlows(t *testing.T) {
	cfg := testConfig()
	cfg.ConcurrentFlows = true
	ext := &mockExtractor{entries: sampleEntries(), weather: sampleWeather()}
	ldr := &mockLoader{}
	exp := &mockExporter{}
	notifier := &mockNotifier{}
	p, _ := newPipeline(cfg, ext, ldr, exp, notifier)

	require.NoError(t, p.Run(context.Background()))

	assert.ElementsMatch(t, []string{
		"entradas_backup", "entradas_cleaned", "weather_data_backup", "weather_data_cleaned",
	}, ldr.tables())
	require.Len(t, notifier.reports, 1)
	flows := notifier.reports[0].Flows
	require.Len(t, flows, 2)
	assert.Equal(t, "entries", flows[0].Flow)
	assert.Equal(t, "weather", flows[1].Flow)
}

// blockingExtractor holds the entries read open until released.
type blockingExtractor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingExtractor) ReadEntries(context.Context, string) ([]domain.RawEntry, error) {
	close(b.started)
	<-b.release
	return nil, nil
}

func (b *blockingExtractor) ReadWeather(context.Context, string) ([]domain.RawWeatherObservation, error) {
	return nil, nil
}

func TestPipeline_Run_RejectsOverlap(t *testing.T) {
	ext := &blockingExtractor{started: make(chan struct{}), release: make(chan struct{})}
	p, metrics := newPipeline(testConfig(), ext, &mockLoader{}, &mockExporter{}, nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	<-ext.started
	assert.ErrorIs(t, p.Run(context.Background()), pipeline.ErrRunInProgress)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PipelineRunning), 0)

	close(ext.release)
	require.NoError(t, <-done)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("skipped")), 0)

	// The guard is released once the first run finishes.
	ext.started = make(chan struct{})
	ext.release = make(chan struct{})
	close(ext.release)
	assert.NoError(t, p.Run(context.Background()))
}
