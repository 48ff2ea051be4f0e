// Package service orchestrates the booking lifecycle: validation gates,
// conflict detection, quota accounting, transitions and no-show reconciliation.
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
	"practicerooms/internal/rules"
)

// Deps are the collaborators of BookingService. Clock defaults to UTC wall time.
type Deps struct {
	Bookings BookingRepository
	Rooms    RoomCatalog
	Students StudentRegistry
	Locker   lock.Locker
	Events   EventPublisher
	Clock    func() time.Time
}

// CreateBookingInput carries the caller-supplied fields of a new booking.
type CreateBookingInput struct {
	StudentID int64                 `json:"student_id"`
	RoomID    int64                 `json:"room_id"`
	StartTime time.Time             `json:"start_time"`
	EndTime   time.Time             `json:"end_time"`
	Purpose   models.BookingPurpose `json:"purpose"`
	Notes     string                `json:"notes,omitempty"`
}

// RoomAvailability summarises a room for one interval.
type RoomAvailability struct {
	RoomID           int64     `json:"room_id"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Capacity         int       `json:"capacity"`
	ApprovedBookings int       `json:"approved_bookings"`
	Available        bool      `json:"available"`
	Bookable         bool      `json:"bookable"`
}

type BookingService struct {
	repo       BookingRepository
	rooms      RoomCatalog
	students   StudentRegistry
	locker     lock.Locker
	events     EventPublisher
	conflicts  *ConflictDetector
	reconciler *NoShowReconciler
	logger     zerolog.Logger
	now        func() time.Time
}

func NewBookingService(d Deps, logger zerolog.Logger) *BookingService {
	now := d.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &BookingService{
		repo:       d.Bookings,
		rooms:      d.Rooms,
		students:   d.Students,
		locker:     d.Locker,
		events:     d.Events,
		conflicts:  NewConflictDetector(d.Bookings),
		reconciler: NewNoShowReconciler(d.Bookings, d.Students, d.Locker, d.Events, logger, now),
		logger:     logger.With().Str("component", "booking").Logger(),
		now:        now,
	}
}

func (s *BookingService) lock(ctx context.Context, key string) (func(), error) {
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("release lock")
		}
	}, nil
}

func (s *BookingService) publish(eventType string, b *models.Booking, mutate func(*events.BookingPayload)) {
	if s.events == nil {
		return
	}
	p := events.BookingPayload{}
	if b != nil {
		p.BookingID = b.ID
		p.StudentID = b.StudentID
		p.RoomID = b.RoomID
		p.Purpose = string(b.Purpose)
		p.Status = string(b.Status)
	}
	if mutate != nil {
		mutate(&p)
	}
	if err := s.events.PublishJSON(eventType, p); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("event handler failed")
	}
}

// HasTimeConflict reports whether [start, end) overlaps a live, non-cancelled
// booking of the room, optionally ignoring excludeID.
func (s *BookingService) HasTimeConflict(ctx context.Context, roomID int64, start, end time.Time, excludeID *int64) (bool, error) {
	return s.conflicts.HasTimeConflict(ctx, roomID, start, end, excludeID)
}

// CreateBooking runs every validation gate in order and persists the booking.
// The first failing gate aborts with a *models.RejectionError and nothing is written.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	b, err := s.createBooking(ctx, in)
	if err != nil {
		if rej, ok := models.AsRejection(err); ok {
			s.logger.Info().
				Int64("student_id", in.StudentID).
				Int64("room_id", in.RoomID).
				Str("reason", string(rej.Reason)).
				Msg(rej.Message)
			s.publish(events.BookingRejected, nil, func(p *events.BookingPayload) {
				p.StudentID = in.StudentID
				p.RoomID = in.RoomID
				p.Purpose = string(in.Purpose)
				p.Reason = string(rej.Reason)
				p.Message = rej.Message
			})
		}
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("student_id", b.StudentID).
		Int64("room_id", b.RoomID).
		Str("purpose", string(b.Purpose)).
		Time("start", b.StartTime).
		Time("end", b.EndTime).
		Bool("requires_approval", b.RequiresApproval).
		Msg("booking created")
	s.publish(events.BookingCreated, b, nil)
	return b, nil
}

func (s *BookingService) createBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	if !in.Purpose.Valid() {
		return nil, models.Reject(models.ReasonInvalidInput, "unknown booking purpose %q", in.Purpose)
	}
	now := s.now()
	start := in.StartTime.UTC().Truncate(time.Microsecond)
	end := in.EndTime.UTC().Truncate(time.Microsecond)

	if err := checkTiming(now, start, end, in.Purpose); err != nil {
		return nil, err
	}

	// Student before room, always, so two creates never wait on each other crosswise.
	unlockStudent, err := s.lock(ctx, lock.StudentKey(in.StudentID))
	if err != nil {
		return nil, err
	}
	defer unlockStudent()
	unlockRoom, err := s.lock(ctx, lock.RoomKey(in.RoomID))
	if err != nil {
		return nil, err
	}
	defer unlockRoom()

	room, err := s.rooms.GetRoom(ctx, in.RoomID)
	if err != nil {
		return nil, fmt.Errorf("load room %d: %w", in.RoomID, err)
	}
	if room == nil {
		return nil, models.Reject(models.ReasonNotFound, "room %d not found", in.RoomID)
	}
	if err := checkRoomType(room, in.Purpose); err != nil {
		return nil, err
	}

	student, err := s.students.GetStudent(ctx, in.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load student %d: %w", in.StudentID, err)
	}
	if student == nil {
		return nil, models.Reject(models.ReasonNotFound, "student %d not found", in.StudentID)
	}
	if err := checkEquipment(room, student, in.Purpose); err != nil {
		return nil, err
	}
	if err := checkSoundproofing(room, student); err != nil {
		return nil, err
	}

	weekStart, weekEnd := WeekWindow(now)
	used, err := s.repo.SumStudentDuration(ctx, student.ID, weekStart, weekEnd)
	if err != nil {
		return nil, fmt.Errorf("weekly hours for student %d: %w", student.ID, err)
	}
	if err := checkQuota(student, used, end.Sub(start)); err != nil {
		return nil, err
	}

	conflict, err := s.conflicts.HasTimeConflict(ctx, room.ID, start, end, nil)
	if err != nil {
		return nil, fmt.Errorf("conflict check: %w", err)
	}
	if conflict {
		return nil, timeConflict(room, start, end)
	}

	b := &models.Booking{
		StudentID:        student.ID,
		RoomID:           room.ID,
		StartTime:        start,
		EndTime:          end,
		Status:           models.StatusConfirmed,
		Purpose:          in.Purpose,
		RequiresApproval: rules.RequiresApproval(in.Purpose),
		Notes:            in.Notes,
		CreatedAt:        now,
	}
	if err := s.repo.CreateBooking(ctx, b); err != nil {
		if errors.Is(err, database.ErrTimeConflict) {
			return nil, timeConflict(room, start, end)
		}
		return nil, fmt.Errorf("save booking: %w", err)
	}
	return b, nil
}

func timeConflict(room *models.Room, start, end time.Time) error {
	return models.Reject(models.ReasonTimeConflict,
		"room %q is already booked between %s and %s",
		room.Name, start.Format(time.RFC3339), end.Format(time.RFC3339))
}

// UpdateBooking stores the caller's version of a booking. Unless the booking is
// being cancelled, its slot is re-checked for conflicts with other bookings.
// It returns false when the booking does not exist.
func (s *BookingService) UpdateBooking(ctx context.Context, b *models.Booking) (bool, error) {
	if b == nil {
		return false, models.Reject(models.ReasonInvalidInput, "booking is required")
	}
	if !b.Status.Valid() {
		return false, models.Reject(models.ReasonInvalidInput, "unknown booking status %q", b.Status)
	}
	if !b.Purpose.Valid() {
		return false, models.Reject(models.ReasonInvalidInput, "unknown booking purpose %q", b.Purpose)
	}
	b.StartTime = b.StartTime.UTC().Truncate(time.Microsecond)
	b.EndTime = b.EndTime.UTC().Truncate(time.Microsecond)
	if !b.EndTime.After(b.StartTime) {
		return false, models.Reject(models.ReasonInvalidTimeRange,
			"end time %s must be after start time %s", b.EndTime.Format(time.RFC3339), b.StartTime.Format(time.RFC3339))
	}

	if b.Status != models.StatusCancelled {
		unlock, err := s.lock(ctx, lock.RoomKey(b.RoomID))
		if err != nil {
			return false, err
		}
		defer unlock()
	}

	current, err := s.repo.GetBooking(ctx, b.ID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load booking %d: %w", b.ID, err)
	}
	if current.Status.IsTerminal() && b.Status == models.StatusConfirmed {
		return false, models.Reject(models.ReasonInvalidStatusTransition,
			"booking %d is %s and cannot return to %s", b.ID, current.Status, models.StatusConfirmed)
	}

	if b.Status != models.StatusCancelled {
		id := b.ID
		conflict, err := s.conflicts.HasTimeConflict(ctx, b.RoomID, b.StartTime, b.EndTime, &id)
		if err != nil {
			return false, fmt.Errorf("conflict check: %w", err)
		}
		if conflict {
			return false, models.Reject(models.ReasonTimeConflict,
				"room %d is already booked between %s and %s",
				b.RoomID, b.StartTime.Format(time.RFC3339), b.EndTime.Format(time.RFC3339))
		}
	}

	now := s.now()
	if b.Version == 0 {
		b.Version = current.Version
	}
	b.CreatedAt = current.CreatedAt
	b.ModifiedAt = &now
	if b.Status == models.StatusCancelled && b.CancelledAt == nil {
		b.CancelledAt = &now
	}

	ok, err := s.save(ctx, b)
	if !ok || err != nil {
		return ok, err
	}

	s.logger.Info().Int64("booking_id", b.ID).Str("status", string(b.Status)).Msg("booking updated")
	s.publish(events.BookingUpdated, b, nil)
	return true, nil
}

// save writes b under optimistic concurrency. A version mismatch is resolved
// by checking whether the booking still exists: gone reports false, present
// surfaces the conflict.
func (s *BookingService) save(ctx context.Context, b *models.Booking) (bool, error) {
	err := s.repo.UpdateBooking(ctx, b)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, database.ErrConcurrentModification) {
		return false, fmt.Errorf("save booking %d: %w", b.ID, err)
	}
	exists, existsErr := s.repo.BookingExists(ctx, b.ID)
	if existsErr != nil {
		return false, fmt.Errorf("save booking %d: %w", b.ID, existsErr)
	}
	if !exists {
		return false, nil
	}
	return false, fmt.Errorf("save booking %d: %w", b.ID, err)
}

// transition loads a booking, applies fn and saves it. fn may return a rejection.
func (s *BookingService) transition(ctx context.Context, id int64, fn func(b *models.Booking, now time.Time) error) (*models.Booking, bool, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load booking %d: %w", id, err)
	}

	now := s.now()
	if err := fn(b, now); err != nil {
		return nil, false, err
	}
	b.ModifiedAt = &now

	ok, err := s.save(ctx, b)
	if !ok || err != nil {
		return nil, ok, err
	}
	return b, true, nil
}

// CancelBooking marks the booking cancelled. Cancelling again refreshes CancelledAt.
func (s *BookingService) CancelBooking(ctx context.Context, id int64) (bool, error) {
	b, ok, err := s.transition(ctx, id, func(b *models.Booking, now time.Time) error {
		b.Status = models.StatusCancelled
		b.CancelledAt = &now
		return nil
	})
	if !ok || err != nil {
		return ok, err
	}
	s.logger.Info().Int64("booking_id", id).Msg("booking cancelled")
	s.publish(events.BookingCancelled, b, func(p *events.BookingPayload) { p.Operation = "cancel" })
	return true, nil
}

// CheckIn completes a confirmed booking and credits its hours to the student.
func (s *BookingService) CheckIn(ctx context.Context, id int64) (bool, error) {
	b, ok, err := s.transition(ctx, id, func(b *models.Booking, now time.Time) error {
		if b.AwaitingApproval() {
			return models.Reject(models.ReasonApprovalRequired,
				"booking %d needs instructor approval before check-in", b.ID)
		}
		if b.Status != models.StatusConfirmed {
			return models.Reject(models.ReasonInvalidStatusTransition,
				"booking %d is %s and cannot be checked in", b.ID, b.Status)
		}
		b.CheckedInAt = &now
		b.Status = models.StatusCompleted
		return nil
	})
	if !ok || err != nil {
		return ok, err
	}

	if err := s.students.AddLoggedHours(ctx, b.StudentID, b.DurationHours()); err != nil {
		return true, fmt.Errorf("log hours for student %d: %w", b.StudentID, err)
	}
	s.logger.Info().Int64("booking_id", id).Float64("hours", b.DurationHours()).Msg("checked in")
	s.publish(events.BookingCheckedIn, b, func(p *events.BookingPayload) { p.Operation = "check_in" })
	return true, nil
}

// Approve records an instructor's sign-off on a booking that requires one.
func (s *BookingService) Approve(ctx context.Context, id, instructorID int64) (bool, error) {
	b, ok, err := s.transition(ctx, id, func(b *models.Booking, now time.Time) error {
		if !b.RequiresApproval {
			return models.Reject(models.ReasonNothingToApprove, "booking %d does not require approval", b.ID)
		}
		if _, err := s.students.GetInstructor(ctx, instructorID); err != nil {
			return err
		}
		b.IsApproved = true
		b.ApprovedByInstructorID = &instructorID
		b.ApprovedAt = &now
		return nil
	})
	if !ok || err != nil {
		return ok, err
	}
	s.logger.Info().Int64("booking_id", id).Int64("instructor_id", instructorID).Msg("booking approved")
	s.publish(events.BookingApproved, b, func(p *events.BookingPayload) { p.Instructor = instructorID })
	return true, nil
}

// DeleteBooking hides the booking from every read and from conflict detection.
func (s *BookingService) DeleteBooking(ctx context.Context, id int64) (bool, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load booking %d: %w", id, err)
	}
	ok, err := s.repo.SoftDeleteBooking(ctx, id, s.now())
	if err != nil || !ok {
		return ok, err
	}
	s.logger.Info().Int64("booking_id", id).Msg("booking deleted")
	s.publish(events.BookingDeleted, b, nil)
	return true, nil
}

// ReconcileNoShows runs one no-show pass. Reads call it implicitly.
func (s *BookingService) ReconcileNoShows(ctx context.Context) (ReconcileResult, error) {
	return s.reconciler.Reconcile(ctx)
}

func (s *BookingService) reconcile(ctx context.Context) error {
	if _, err := s.reconciler.Reconcile(ctx); err != nil {
		return fmt.Errorf("no-show reconcile: %w", err)
	}
	return nil
}

// GetBooking returns the booking or nil if it does not exist.
func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	if err := s.reconcile(ctx); err != nil {
		return nil, err
	}
	b, err := s.repo.GetBooking(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return b, err
}

func (s *BookingService) ListAll(ctx context.Context) ([]models.Booking, error) {
	if err := s.reconcile(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListBookings(ctx)
}

func (s *BookingService) ListByStudent(ctx context.Context, studentID int64) ([]models.Booking, error) {
	if err := s.reconcile(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListBookingsByStudent(ctx, studentID)
}

func (s *BookingService) ListByRoom(ctx context.Context, roomID int64) ([]models.Booking, error) {
	if err := s.reconcile(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListBookingsByRoom(ctx, roomID)
}

// WeeklyUsage reports the hours the student has booked in the current week.
func (s *BookingService) WeeklyUsage(ctx context.Context, studentID int64) (*QuotaUsage, error) {
	student, err := s.students.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("load student %d: %w", studentID, err)
	}
	if student == nil {
		return nil, models.Reject(models.ReasonNotFound, "student %d not found", studentID)
	}

	start, end := WeekWindow(s.now())
	used, err := s.repo.SumStudentDuration(ctx, studentID, start, end)
	if err != nil {
		return nil, fmt.Errorf("weekly hours for student %d: %w", studentID, err)
	}
	quota := student.EffectiveWeeklyQuota()
	remaining := time.Duration(quota)*time.Hour - used
	if remaining < 0 {
		remaining = 0
	}
	return &QuotaUsage{
		StudentID:      studentID,
		WeekStart:      start,
		WeekEnd:        end,
		UsedHours:      used.Hours(),
		QuotaHours:     quota,
		PenaltyHours:   student.QuotaPenaltyHours,
		RemainingHours: remaining.Hours(),
	}, nil
}

// CheckRoomAvailability counts approved bookings overlapping [start, end)
// against the room's capacity. Bookable is false whenever any live booking
// overlaps, since a create would be rejected for a time conflict.
func (s *BookingService) CheckRoomAvailability(ctx context.Context, roomID int64, start, end time.Time) (*RoomAvailability, error) {
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return nil, models.Reject(models.ReasonInvalidTimeRange,
			"end time %s must be after start time %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room %d: %w", roomID, err)
	}
	if room == nil {
		return nil, models.Reject(models.ReasonNotFound, "room %d not found", roomID)
	}

	bookings, err := s.repo.ListRoomBookingsInRange(ctx, roomID, start, end)
	if err != nil {
		return nil, err
	}
	approved := 0
	for i := range bookings {
		if !bookings[i].AwaitingApproval() {
			approved++
		}
	}
	return &RoomAvailability{
		RoomID:           roomID,
		StartTime:        start,
		EndTime:          end,
		Capacity:         room.Capacity(),
		ApprovedBookings: approved,
		Available:        approved < room.Capacity(),
		Bookable:         len(bookings) == 0,
	}, nil
}
