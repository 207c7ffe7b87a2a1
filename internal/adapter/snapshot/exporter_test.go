package snapshot

import (
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/weather-backup-etl/internal/domain"
)

var fixedTime = time.Date(2025, time.June, 1, 12, 30, 45, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newTestExporter(t *testing.T, format string) (*Exporter, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "backups")
	e, err := NewExporter(dir, format, clockwork.NewFakeClockAt(fixedTime), slog.Default())
	require.NoError(t, err)
	return e, dir
}

func sampleEntries() []domain.Record {
	return []domain.Record{
		domain.RawEntry{Name: ptr("Juan"), City: ptr("Bogotá"), WeatherLabel: ptr("Lluvioso")},
		domain.RawEntry{Name: ptr("Ana"), City: ptr("Cali"), WeatherLabel: ptr("Soleado"), Description: ptr("sol, mucho"), ImageRef: ptr("a.png")},
	}
}

func TestExport_CSV(t *testing.T) {
	e, dir := newTestExporter(t, "csv")

	path, err := e.Export("entradas_raw", sampleEntries())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "entradas_raw_20250601_123045.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.EntryColumns, records[0])
	assert.Equal(t, []string{"Juan", "Bogotá", "Lluvioso", "", ""}, records[1])
	assert.Equal(t, []string{"Ana", "Cali", "Soleado", "sol, mucho", "a.png"}, records[2])
}

func TestExport_SameSecondGetsSuffix(t *testing.T) {
	e, dir := newTestExporter(t, "csv")

	first, err := e.Export("entradas_raw", sampleEntries())
	require.NoError(t, err)
	second, err := e.Export("entradas_raw", sampleEntries())
	require.NoError(t, err)
	third, err := e.Export("entradas_raw", sampleEntries())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "entradas_raw_20250601_123045.csv"), first)
	assert.Equal(t, filepath.Join(dir, "entradas_raw_20250601_123045_1.csv"), second)
	assert.Equal(t, filepath.Join(dir, "entradas_raw_20250601_123045_2.csv"), third)
}

func TestExport_NeverOverwrites(t *testing.T) {
	e, dir := newTestExporter(t, "csv")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	existing := filepath.Join(dir, "weather_raw_20250601_123045.csv")
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o644))

	path, err := e.Export("weather_raw", sampleEntries())
	require.NoError(t, err)
	assert.NotEqual(t, existing, path)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestExport_EmptyBatch(t *testing.T) {
	e, dir := newTestExporter(t, "csv")

	_, err := e.Export("entradas_raw", nil)
	require.ErrorIs(t, err, ErrEmptyBatch)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "no directory or file should be created")
}

func TestExport_XLSX(t *testing.T) {
	e, dir := newTestExporter(t, "xlsx")

	rows := []domain.Record{
		domain.CleanedWeatherObservation{
			City: "Bogotá", Country: "CO", Description: "Lluvia", Temperature: 14.2,
			WindClassification: domain.WindBreeze, TemperatureClassification: domain.TempMild,
			VisibilityClassification: domain.VisibilityMedium, Timestamp: "2025-06-01T12:00:00",
		},
	}

	path, err := e.Export("weather_data_cleaned", rows)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "weather_data_cleaned_20250601_123045.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("weather_data_cleaned")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.CleanedWeatherColumns, got[0])
	assert.Equal(t, "Bogotá", got[1][0])
	assert.Equal(t, "Breeze", got[1][4])
}

func TestNewExporter_UnknownFormat(t *testing.T) {
	_, err := NewExporter(t.TempDir(), "parquet", nil, slog.Default())
	assert.ErrorContains(t, err, "parquet")
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "short", sheetName("short"))
	assert.Len(t, sheetName("a_very_long_logical_snapshot_name_over_limit"), 31)
}
