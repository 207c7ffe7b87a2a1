// Package snapshot writes write-once flat-file exports of record batches.
package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/weather-backup-etl/internal/domain"
)

// TimestampLayout is the second-precision stamp embedded in snapshot names.
const TimestampLayout = "20060102_150405"

// maxCollisions bounds the sequence suffixes tried for one second.
const maxCollisions = 1000

// ErrEmptyBatch is returned when Export is called without records.
var ErrEmptyBatch = errors.New("empty batch")

// Exporter writes each batch to <dir>/<name>_<YYYYMMDD_HHMMSS>.<format>.
// An existing file is never touched: if the name is taken, a _<n> suffix is
// appended before the extension.
type Exporter struct {
	dir    string
	format string
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewExporter creates an exporter for format "csv" or "xlsx".
func NewExporter(dir, format string, clock clockwork.Clock, logger *slog.Logger) (*Exporter, error) {
	switch format {
	case "csv", "xlsx":
	default:
		return nil, fmt.Errorf("unsupported snapshot format %q", format)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Exporter{dir: dir, format: format, clock: clock, logger: logger}, nil
}

// Export writes rows to a new file and returns its path. The header is the
// column list of the first record.
func (e *Exporter) Export(name string, rows []domain.Record) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("export %s: %w", name, ErrEmptyBatch)
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	f, path, err := e.create(name)
	if err != nil {
		return "", err
	}

	var writeErr error
	switch e.format {
	case "xlsx":
		writeErr = writeXLSX(f, name, rows)
	default:
		writeErr = writeCSV(f, rows)
	}
	closeErr := f.Close()

	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write snapshot %s: %w", path, err)
	}

	e.logger.Info("snapshot written", "name", name, "path", path, "rows", len(rows))
	return path, nil
}

// create opens a new file exclusively, walking the _<n> suffixes on collision.
func (e *Exporter) create(name string) (*os.File, string, error) {
	stamp := e.clock.Now().Format(TimestampLayout)
	for n := 0; n < maxCollisions; n++ {
		path := filepath.Join(e.dir, fileName(name, stamp, n, e.format))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create snapshot file: %w", err)
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("create snapshot file: %d names taken for %s_%s", maxCollisions, name, stamp)
}

func fileName(name, stamp string, seq int, ext string) string {
	if seq == 0 {
		return fmt.Sprintf("%s_%s.%s", name, stamp, ext)
	}
	return fmt.Sprintf("%s_%s_%d.%s", name, stamp, seq, ext)
}

func writeCSV(w io.Writer, rows []domain.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rows[0].Columns()); err != nil {
		return err
	}
	line := make([]string, len(rows[0].Columns()))
	for _, r := range rows {
		for i, v := range r.Values() {
			line[i] = domain.FormatValue(v)
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, name string, rows []domain.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(name)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	for i, h := range rows[0].Columns() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, rec := range rows {
		for c, v := range rec.Values() {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// sheetName trims name to the 31 characters a worksheet title allows.
func sheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	return name
}
