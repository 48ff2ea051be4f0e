// Package audit writes the monthly usage workbook: a per-student summary of
// the month's bookings followed by a raw dump of every table.
package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"practicerooms/internal/models"
)

// TableExporter exposes raw table contents for the dump sheets.
type TableExporter interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error)
}

// BookingSource lists bookings starting in [from, to).
type BookingSource interface {
	ListBookingsStartingBetween(ctx context.Context, from, to time.Time) ([]models.Booking, error)
}

// ExcelWriter builds a workbook sheet by sheet.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []interface{}) error
	Save(w io.Writer) error
	Close() error
}

// ReportSink receives a finished workbook.
type ReportSink interface {
	Deliver(ctx context.Context, filename string, data io.Reader) (string, error)
}

// DirSink stores reports as files in a directory.
type DirSink struct {
	Dir string
}

// Deliver writes data to Dir/filename through a temp file and returns the final path.
func (s DirSink) Deliver(_ context.Context, filename string, data io.Reader) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".report-*")
	if err != nil {
		return "", fmt.Errorf("create temp report: %w", err)
	}
	if _, err = io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write report: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	path := filepath.Join(s.Dir, filename)
	if err = os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("move report into place: %w", err)
	}
	return path, nil
}

// Filename names the workbook for the month containing t, e.g.
// practicerooms_2026-02.xlsx.
func Filename(t time.Time) string {
	return fmt.Sprintf("practicerooms_%s.xlsx", t.Format("2006-01"))
}

// MonthBounds returns the first instant of t's month and of the next month.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 1, 0)
}

// PreviousMonth returns a time inside the month before t's.
func PreviousMonth(t time.Time) time.Time {
	from, _ := MonthBounds(t)
	return from.AddDate(0, -1, 0)
}
