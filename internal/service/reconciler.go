package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"practicerooms/internal/database"
	"practicerooms/internal/events"
	"practicerooms/internal/lock"
	"practicerooms/internal/models"
)

type noShowStore interface {
	MarkExpiredAsNoShow(ctx context.Context, now time.Time) ([]models.NoShowMark, error)
}

// ReconcileResult describes one no-show pass. Skipped lists students that were
// deleted before their penalty step ran.
type ReconcileResult struct {
	BookingsMarked   int
	StudentsNotified []int64
	Penalized        []int64
	Skipped          []int64
}

// NoShowReconciler lazily turns confirmed bookings that ended without a
// check-in into no-shows and charges each affected student once per pass.
type NoShowReconciler struct {
	store    noShowStore
	students StudentRegistry
	locker   lock.Locker
	events   EventPublisher
	logger   zerolog.Logger
	now      func() time.Time
}

func NewNoShowReconciler(store noShowStore, students StudentRegistry, locker lock.Locker, publisher EventPublisher, logger zerolog.Logger, now func() time.Time) *NoShowReconciler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &NoShowReconciler{
		store:    store,
		students: students,
		locker:   locker,
		events:   publisher,
		logger:   logger.With().Str("component", "noshow").Logger(),
		now:      now,
	}
}

// Reconcile runs one pass. Passes are serialised, so concurrent readers never
// charge the same booking twice.
func (r *NoShowReconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	release, err := r.locker.Acquire(ctx, lock.ReconcileKey)
	if err != nil {
		return result, fmt.Errorf("lock no-show reconcile: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn().Err(err).Msg("release reconcile lock")
		}
	}()

	marks, err := r.store.MarkExpiredAsNoShow(ctx, r.now())
	if err != nil {
		return result, fmt.Errorf("mark expired bookings: %w", err)
	}
	result.BookingsMarked = len(marks)
	if len(marks) == 0 {
		return result, nil
	}

	var studentIDs []int64
	seen := make(map[int64]struct{}, len(marks))
	for _, m := range marks {
		r.publish(events.BookingNoShow, events.BookingPayload{
			BookingID: m.BookingID,
			StudentID: m.StudentID,
			RoomID:    m.RoomID,
			Status:    string(models.StatusNoShow),
		})
		if _, ok := seen[m.StudentID]; !ok {
			seen[m.StudentID] = struct{}{}
			studentIDs = append(studentIDs, m.StudentID)
		}
	}
	r.logger.Info().Int("bookings", len(marks)).Int("students", len(studentIDs)).Msg("expired bookings marked as no-show")

	var errs []error
	for _, id := range studentIDs {
		st, penalized, err := r.students.RecordNoShow(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			r.logger.Warn().Int64("student_id", id).Msg("no-show for deleted student, penalty skipped")
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if err != nil {
			r.logger.Error().Err(err).Int64("student_id", id).Msg("no-show penalty step failed")
			errs = append(errs, err)
			continue
		}
		result.StudentsNotified = append(result.StudentsNotified, id)
		if penalized {
			result.Penalized = append(result.Penalized, id)
		}

		r.publish(events.StudentPenalized, events.PenaltyPayload{
			StudentID:         id,
			NoShowCount:       st.NoShowCount,
			QuotaPenaltyHours: st.QuotaPenaltyHours,
			PenaltyApplied:    penalized,
		})
	}

	return result, errors.Join(errs...)
}

func (r *NoShowReconciler) publish(eventType string, payload interface{}) {
	if r.events == nil {
		return
	}
	if err := r.events.PublishJSON(eventType, payload); err != nil {
		r.logger.Warn().Err(err).Str("event", eventType).Msg("event handler failed")
	}
}
