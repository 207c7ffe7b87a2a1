// Command validate performs offline integrity checks on the snapshot files a
// pipeline run leaves behind. For each flow it pairs the latest raw snapshot
// with the latest cleaned snapshot, re-derives the cleaned rows from the raw
// rows using the stock classification thresholds and reports every mismatch.
//
// Empty raw cells are read back as NULL, so a source value that was an empty
// string is indistinguishable from a missing one.
//
// Usage:
//
//	go run ./cmd/validate -dir backups
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/weather-backup-etl/internal/adapter/snapshot"
	"github.com/couchcryptid/weather-backup-etl/internal/domain"
	"github.com/couchcryptid/weather-backup-etl/internal/pipeline"
)

// flowSpec names the snapshot pair and column layout of one flow.
type flowSpec struct {
	flow           string
	rawName        string
	cleanedName    string
	rawColumns     []string
	cleanedColumns []string
}

var specs = []flowSpec{
	{
		flow:           "entries",
		rawName:        pipeline.EntriesRawSnapshot,
		cleanedName:    pipeline.EntriesCleanedSnapshot,
		rawColumns:     domain.EntryColumns,
		cleanedColumns: domain.EntryColumns,
	},
	{
		flow:           "weather",
		rawName:        pipeline.WeatherRawSnapshot,
		cleanedName:    pipeline.WeatherCleanedSnapshot,
		rawColumns:     domain.WeatherColumns,
		cleanedColumns: domain.CleanedWeatherColumns,
	},
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "backups", "directory containing snapshot files")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

// snapshotPair is the raw and cleaned snapshot of one flow, parsed.
type snapshotPair struct {
	spec        flowSpec
	rawPath     string
	cleanedPath string
	raw         table
	cleaned     table
}

func run(dir string, out io.Writer) int {
	fmt.Fprintln(out, "=== Snapshot Integrity Validation ===")
	fmt.Fprintln(out)

	var pairs []snapshotPair
	for _, s := range specs {
		pair, err := loadPair(dir, s)
		if errors.Is(err, errNoSnapshot) {
			fmt.Fprintf(out, "  %s: no raw snapshot, skipped\n", s.flow)
			continue
		}
		if err != nil {
			fmt.Fprintf(out, "FATAL: load %s snapshots: %v\n", s.flow, err)
			return 1
		}
		fmt.Fprintf(out, "  %s: %s (%d rows) -> %s (%d rows)\n", s.flow,
			filepath.Base(pair.rawPath), len(pair.raw.rows),
			filepath.Base(pair.cleanedPath), len(pair.cleaned.rows))
		pairs = append(pairs, pair)
	}
	if len(pairs) == 0 {
		fmt.Fprintln(out, "\nNo snapshots found.")
		return 1
	}

	phases := []*phase{
		validateHeaders(pairs),
		validateEntries(pairs),
		validateWeather(pairs),
		validateLabels(pairs),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Data loading ──

var errNoSnapshot = errors.New("no snapshot")

// table is a parsed snapshot: header plus data rows.
type table struct {
	header []string
	rows   [][]string
}

func loadPair(dir string, s flowSpec) (snapshotPair, error) {
	rawPath, err := latest(dir, s.rawName, "")
	if err != nil {
		return snapshotPair{}, err
	}
	cleanedPath, err := latest(dir, s.cleanedName, stamp(rawPath, s.rawName))
	if errors.Is(err, errNoSnapshot) {
		// Every raw row was dropped: the run wrote no cleaned snapshot.
		cleanedPath = ""
	} else if err != nil {
		return snapshotPair{}, err
	}

	pair := snapshotPair{spec: s, rawPath: rawPath, cleanedPath: cleanedPath}
	if pair.raw, err = loadTable(rawPath); err != nil {
		return snapshotPair{}, err
	}
	if cleanedPath != "" {
		if pair.cleaned, err = loadTable(cleanedPath); err != nil {
			return snapshotPair{}, err
		}
	}
	return pair, nil
}

// latest returns the newest snapshot for name whose timestamp is not before
// notBefore. Timestamps sort lexically and a collision suffix sorts after the
// unsuffixed file of the same second.
func latest(dir, name, notBefore string) (string, error) {
	var matches []string
	for _, ext := range []string{"csv", "xlsx"} {
		m, err := filepath.Glob(filepath.Join(dir, name+"_[0-9]*_[0-9]*."+ext))
		if err != nil {
			return "", err
		}
		for _, path := range m {
			if stamp(path, name) >= notBefore {
				matches = append(matches, path)
			}
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%s: %w", name, errNoSnapshot)
	}
	sort.Slice(matches, func(i, j int) bool {
		return stripExt(matches[i]) < stripExt(matches[j])
	})
	return matches[len(matches)-1], nil
}

// stamp extracts the YYYYMMDD_HHMMSS part of a snapshot file name.
func stamp(path, name string) string {
	s := strings.TrimPrefix(filepath.Base(stripExt(path)), name+"_")
	if len(s) > len(snapshot.TimestampLayout) {
		s = s[:len(snapshot.TimestampLayout)]
	}
	return s
}

func stripExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func loadTable(path string) (table, error) {
	var all [][]string
	var err error
	switch filepath.Ext(path) {
	case ".xlsx":
		all, err = loadXLSX(path)
	default:
		all, err = loadCSV(path)
	}
	if err != nil {
		return table{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if len(all) == 0 {
		return table{}, fmt.Errorf("%s: missing header row", filepath.Base(path))
	}
	return table{header: all[0], rows: all[1:]}, nil
}

func loadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}

func loadXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	// GetRows trims trailing empty cells; pad back to the header width.
	if len(rows) > 0 {
		width := len(rows[0])
		for i, r := range rows {
			for len(r) < width {
				r = append(r, "")
			}
			rows[i] = r
		}
	}
	return rows, nil
}

// field returns the cell for column, or "" when absent.
func (t table) field(row []string, column string) string {
	i := slices.Index(t.header, column)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// ── Phase 1: Headers ──
// Validates that every snapshot carries exactly the expected columns in order.

func validateHeaders(pairs []snapshotPair) *phase {
	p := &phase{name: "Phase 1: Snapshot Headers"}
	for _, pair := range pairs {
		if !slices.Equal(pair.raw.header, pair.spec.rawColumns) {
			p.errorf("%s: header %v, want %v", filepath.Base(pair.rawPath), pair.raw.header, pair.spec.rawColumns)
		}
		if pair.cleanedPath != "" && !slices.Equal(pair.cleaned.header, pair.spec.cleanedColumns) {
			p.errorf("%s: header %v, want %v", filepath.Base(pair.cleanedPath), pair.cleaned.header, pair.spec.cleanedColumns)
		}
	}
	return p
}

// ── Phase 2: Entry Cleaning ──
// Re-derives cleaned entries from the raw snapshot and compares them to the
// cleaned snapshot as multisets.

func validateEntries(pairs []snapshotPair) *phase {
	p := &phase{name: "Phase 2: Entry Cleaning"}
	for _, pair := range pairs {
		if pair.spec.flow != "entries" {
			continue
		}
		var expected [][]string
		for _, row := range pair.raw.rows {
			raw := domain.RawEntry{
				Name:         nullable(pair.raw.field(row, "nombre")),
				City:         nullable(pair.raw.field(row, "ciudad")),
				WeatherLabel: nullable(pair.raw.field(row, "clima")),
				Description:  nullable(pair.raw.field(row, "descripcion")),
				ImageRef:     nullable(pair.raw.field(row, "imagen")),
			}
			cleaned, err := domain.CleanEntry(raw)
			if err != nil {
				continue
			}
			expected = append(expected, formatRecord(cleaned))
		}
		compareRows(p, pair, expected)
	}
	return p
}

// ── Phase 3: Weather Classification ──
// Re-derives cleaned weather observations from the raw snapshot and compares
// them to the cleaned snapshot as multisets.

func validateWeather(pairs []snapshotPair) *phase {
	p := &phase{name: "Phase 3: Weather Classification"}
	thresholds := domain.DefaultThresholds()
	for _, pair := range pairs {
		if pair.spec.flow != "weather" {
			continue
		}
		var expected [][]string
		for i, row := range pair.raw.rows {
			raw, err := parseWeather(pair.raw, row)
			if err != nil {
				p.errorf("%s row %d: %v", filepath.Base(pair.rawPath), i+2, err)
				continue
			}
			cleaned, err := thresholds.TransformWeather(raw)
			if err != nil {
				continue
			}
			expected = append(expected, formatRecord(cleaned))
		}
		compareRows(p, pair, expected)
	}
	return p
}

func parseWeather(t table, row []string) (domain.RawWeatherObservation, error) {
	var errs []error
	f := func(col string) *float64 {
		s := t.field(row, col)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("column %s: %w", col, err))
			return nil
		}
		return &v
	}
	n := func(col string) *int64 {
		s := t.field(row, col)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("column %s: %w", col, err))
			return nil
		}
		return &v
	}
	s := func(col string) *string { return nullable(t.field(row, col)) }

	obs := domain.RawWeatherObservation{
		City:        s("ciudad"),
		Country:     s("pais"),
		Temperature: f("temperatura"),
		FeelsLike:   f("sensacion_termica"),
		TempMin:     f("temp_min"),
		TempMax:     f("temp_max"),
		Humidity:    n("humedad"),
		Pressure:    n("presion"),
		Description: s("descripcion"),
		Icon:        s("icono"),
		Cloudiness:  n("nubosidad"),
		WindSpeed:   f("viento_velocidad"),
		WindDeg:     n("viento_direccion"),
		Visibility:  n("visibilidad"),
		Sunrise:     s("amanecer"),
		Sunset:      s("atardecer"),
		Latitude:    f("latitud"),
		Longitude:   f("longitud"),
		Timestamp:   s("timestamp"),
	}
	return obs, errors.Join(errs...)
}

// ── Phase 4: Label Domains ──
// Validates that cleaned snapshots only carry values the cleaning rules can
// produce.

func validateLabels(pairs []snapshotPair) *phase {
	p := &phase{name: "Phase 4: Label Domains"}
	allowed := map[string][]string{
		"viento_clasificacion":      {domain.WindCalm, domain.WindBreeze, domain.WindModerate, domain.WindStrong},
		"temperatura_clasificacion": {domain.TempCold, domain.TempMild, domain.TempHot},
		"visibilidad_clasificacion": {domain.VisibilityHigh, domain.VisibilityMedium, domain.VisibilityLow},
	}
	for _, pair := range pairs {
		name := filepath.Base(pair.cleanedPath)
		for i, row := range pair.cleaned.rows {
			line := i + 2
			switch pair.spec.flow {
			case "entries":
				for _, col := range []string{"nombre", "ciudad"} {
					if v := pair.cleaned.field(row, col); utf8.RuneCountInString(v) > domain.MaxNameLength {
						p.errorf("%s line %d: %s longer than %d characters", name, line, col, domain.MaxNameLength)
					}
				}
			case "weather":
				for col, labels := range allowed {
					if v := pair.cleaned.field(row, col); !slices.Contains(labels, v) {
						p.errorf("%s line %d: %s=%q not in %v", name, line, col, v, labels)
					}
				}
			}
		}
	}
	return p
}

// ── Helpers ──

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatRecord(r domain.Record) []string {
	values := r.Values()
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = domain.FormatValue(v)
	}
	return out
}

// compareRows reports rows present on only one side, counting duplicates.
func compareRows(p *phase, pair snapshotPair, expected [][]string) {
	counts := make(map[string]int)
	for _, row := range expected {
		counts[strings.Join(row, "\x1f")]++
	}
	name := filepath.Base(pair.cleanedPath)
	if pair.cleanedPath == "" {
		name = pair.spec.cleanedName + " (absent)"
	}
	for i, row := range pair.cleaned.rows {
		key := strings.Join(row, "\x1f")
		if counts[key] == 0 {
			p.errorf("%s line %d: row %q not derivable from %s", name, i+2, row, filepath.Base(pair.rawPath))
			continue
		}
		counts[key]--
	}
	for key, n := range counts {
		for j := 0; j < n; j++ {
			p.errorf("%s: missing cleaned row %q", name, strings.Split(key, "\x1f"))
		}
	}
}
