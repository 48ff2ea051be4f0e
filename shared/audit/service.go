package audit

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"practicerooms/internal/models"
)

const exportTimeout = 30 * time.Minute

type Config struct {
	// ExportOnStart writes the previous month's workbook right away.
	ExportOnStart bool
	// Location decides where month boundaries fall. Defaults to UTC.
	Location *time.Location
}

// Service exports the previous month's workbook shortly after each month starts.
type Service struct {
	config   Config
	exporter TableExporter
	bookings BookingSource
	writer   func() ExcelWriter
	sink     ReportSink
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

func NewService(
	config Config,
	exporter TableExporter,
	bookings BookingSource,
	writerFactory func() ExcelWriter,
	sink ReportSink,
	logger zerolog.Logger,
	now func() time.Time,
) *Service {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		config:   config,
		exporter: exporter,
		bookings: bookings,
		writer:   writerFactory,
		sink:     sink,
		logger:   logger.With().Str("component", "audit").Logger(),
		now:      now,
	}
}

// Start runs the monthly scheduler until ctx is cancelled. Calling Start on a
// running service is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runScheduled(ctx)
		}()
	}

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info().Msg("Audit service started")
}

// Wait blocks until the scheduler and any in-flight export have returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	nextRun := s.nextFirstOfMonth()
	timer := time.NewTimer(nextRun.Sub(s.now()))
	defer timer.Stop()
	s.logger.Info().Time("at", nextRun).Msg("Next audit export scheduled")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Audit service stopped")
			return
		case <-timer.C:
			s.runScheduled(ctx)

			nextRun = s.nextFirstOfMonth()
			timer.Reset(nextRun.Sub(s.now()))
			s.logger.Info().Time("at", nextRun).Msg("Next audit export scheduled")
		}
	}
}

// nextFirstOfMonth is one minute past midnight on the 1st of next month.
func (s *Service) nextFirstOfMonth() time.Time {
	now := s.now().In(s.config.Location)
	return time.Date(now.Year(), now.Month()+1, 1, 0, 1, 0, 0, s.config.Location)
}

func (s *Service) runScheduled(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	month := PreviousMonth(s.now().In(s.config.Location))
	path, err := s.ExportMonth(ctx, month)
	if err != nil {
		s.logger.Error().Err(err).Str("month", month.Format("2006-01")).Msg("Failed to export audit workbook")
		return
	}
	s.logger.Info().Str("path", path).Msg("Audit workbook exported")
}

// ExportMonth builds the workbook for the month containing month and hands it
// to the sink. It returns where the sink stored it.
func (s *Service) ExportMonth(ctx context.Context, month time.Time) (string, error) {
	if s.sink == nil {
		return "", fmt.Errorf("audit: no report sink configured")
	}

	w := s.writer()
	defer w.Close()

	from, to := MonthBounds(month.In(s.config.Location))
	if s.bookings != nil {
		if err := s.writeSummary(ctx, w, from, to); err != nil {
			return "", err
		}
	}
	if s.exporter != nil {
		if err := s.writeTables(ctx, w); err != nil {
			return "", err
		}
	}

	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return s.sink.Deliver(ctx, Filename(from), &buf)
}

// StudentSummary aggregates one student's bookings over a month.
type StudentSummary struct {
	StudentID        int64
	Bookings         int
	BookedHours      float64
	Completed        int
	NoShows          int
	Cancelled        int
	AwaitingApproval int
}

// Summarize groups bookings by student, ordered by student id. Cancelled
// bookings are counted but do not add booked hours.
func Summarize(bookings []models.Booking) []StudentSummary {
	byStudent := make(map[int64]*StudentSummary)
	for i := range bookings {
		b := &bookings[i]
		sum, ok := byStudent[b.StudentID]
		if !ok {
			sum = &StudentSummary{StudentID: b.StudentID}
			byStudent[b.StudentID] = sum
		}
		sum.Bookings++
		switch b.Status {
		case models.StatusCancelled:
			sum.Cancelled++
			continue
		case models.StatusCompleted:
			sum.Completed++
		case models.StatusNoShow:
			sum.NoShows++
		case models.StatusConfirmed:
			if b.AwaitingApproval() {
				sum.AwaitingApproval++
			}
		}
		sum.BookedHours += b.DurationHours()
	}

	out := make([]StudentSummary, 0, len(byStudent))
	for _, sum := range byStudent {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

func (s *Service) writeSummary(ctx context.Context, w ExcelWriter, from, to time.Time) error {
	list, err := s.bookings.ListBookingsStartingBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list bookings for %s: %w", from.Format("2006-01"), err)
	}

	if err = w.AddSheet("summary"); err != nil {
		return err
	}
	if err = w.WriteHeader([]string{
		"student_id", "bookings", "booked_hours", "completed", "no_show", "cancelled", "awaiting_approval",
	}); err != nil {
		return err
	}
	for _, sum := range Summarize(list) {
		if err = w.WriteRow([]interface{}{
			sum.StudentID, sum.Bookings, sum.BookedHours,
			sum.Completed, sum.NoShows, sum.Cancelled, sum.AwaitingApproval,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) writeTables(ctx context.Context, w ExcelWriter) error {
	tables, err := s.exporter.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("get table names: %w", err)
	}

	for _, table := range tables {
		data, columns, err := s.exporter.GetTableData(ctx, table)
		if err != nil {
			s.logger.Warn().Err(err).Str("table", table).Msg("Skipping table in audit export")
			continue
		}
		if err = w.AddSheet(table); err != nil {
			return err
		}
		if err = w.WriteHeader(columns); err != nil {
			return err
		}
		for _, row := range data {
			values := make([]interface{}, len(columns))
			for i, col := range columns {
				values[i] = row[col]
			}
			if err = w.WriteRow(values); err != nil {
				return err
			}
		}
		s.logger.Debug().Str("table", table).Int("rows", len(data)).Msg("Exported table")
	}
	return nil
}
