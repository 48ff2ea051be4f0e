// Package registry holds student and instructor records and applies
// the no-show penalty.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"practicerooms/internal/database"
	"practicerooms/internal/lock"
	"practicerooms/internal/models"
)

type Repository interface {
	CreateStudent(ctx context.Context, s *models.Student) error
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	ListStudents(ctx context.Context) ([]models.Student, error)
	UpdateStudent(ctx context.Context, s *models.Student) error
	SoftDeleteStudent(ctx context.Context, id int64, at time.Time) (bool, error)
	RecordNoShow(ctx context.Context, id int64, at time.Time) (*models.Student, error)
	AddLoggedHours(ctx context.Context, id int64, hours float64, at time.Time) error

	CreateInstructor(ctx context.Context, i *models.Instructor) error
	GetInstructor(ctx context.Context, id int64) (*models.Instructor, error)
	ListInstructors(ctx context.Context) ([]models.Instructor, error)
}

// Service is the Student Registry.
type Service struct {
	repo   Repository
	locker lock.Locker
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker lock.Locker, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		logger: logger.With().Str("component", "registry").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetStudent returns the live student or nil if none exists.
func (s *Service) GetStudent(ctx context.Context, id int64) (*models.Student, error) {
	st, err := s.repo.GetStudent(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return st, err
}

func (s *Service) ListStudents(ctx context.Context) ([]models.Student, error) {
	return s.repo.ListStudents(ctx)
}

// EffectiveWeeklyQuota returns the student's allowance after penalties.
func (s *Service) EffectiveWeeklyQuota(ctx context.Context, id int64) (int, error) {
	st, err := s.GetStudent(ctx, id)
	if err != nil {
		return 0, err
	}
	if st == nil {
		return 0, models.Reject(models.ReasonNotFound, "student %d not found", id)
	}
	return st.EffectiveWeeklyQuota(), nil
}

func (s *Service) validateStudent(ctx context.Context, st *models.Student) error {
	st.FirstName = strings.TrimSpace(st.FirstName)
	st.LastName = strings.TrimSpace(st.LastName)
	st.Email = strings.TrimSpace(st.Email)
	st.StudentNumber = strings.TrimSpace(st.StudentNumber)

	if st.FirstName == "" || st.LastName == "" {
		return models.Reject(models.ReasonInvalidInput, "first and last name are required")
	}
	if _, err := mail.ParseAddress(st.Email); err != nil {
		return models.Reject(models.ReasonInvalidInput, "invalid email %q", st.Email)
	}
	if st.StudentNumber == "" {
		return models.Reject(models.ReasonInvalidInput, "student number is required")
	}
	if !st.Program.Valid() {
		return models.Reject(models.ReasonInvalidInput, "unknown program %q", st.Program)
	}
	if !st.PrimaryInstrument.Valid() {
		return models.Reject(models.ReasonInvalidInput, "unknown instrument %q", st.PrimaryInstrument)
	}
	if st.InstructorID != nil {
		if _, err := s.GetInstructor(ctx, *st.InstructorID); err != nil {
			return err
		}
	}
	return nil
}

// CreateStudent registers a student with zeroed no-show counters.
func (s *Service) CreateStudent(ctx context.Context, st *models.Student) error {
	if err := s.validateStudent(ctx, st); err != nil {
		return err
	}
	st.NoShowCount = 0
	st.QuotaPenaltyHours = 0
	st.TotalLoggedHours = 0
	st.CreatedAt = s.now()

	if err := s.repo.CreateStudent(ctx, st); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return models.Reject(models.ReasonDuplicateName, "email or student number already registered")
		}
		return err
	}

	s.logger.Info().Int64("student_id", st.ID).Str("program", string(st.Program)).Msg("student registered")
	return nil
}

// UpdateStudent changes profile fields. It returns false if the student does not exist.
func (s *Service) UpdateStudent(ctx context.Context, st *models.Student) (bool, error) {
	if err := s.validateStudent(ctx, st); err != nil {
		return false, err
	}
	now := s.now()
	st.ModifiedAt = &now

	err := s.repo.UpdateStudent(ctx, st)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return false, nil
	case errors.Is(err, database.ErrDuplicate):
		return false, models.Reject(models.ReasonDuplicateName, "email or student number already registered")
	case err != nil:
		return false, err
	}
	return true, nil
}

// DeleteStudent soft-deletes the student and cancels their confirmed
// bookings. It holds the student lock so no booking is created mid-delete.
func (s *Service) DeleteStudent(ctx context.Context, id int64) (bool, error) {
	release, err := s.locker.Acquire(ctx, lock.StudentKey(id))
	if err != nil {
		return false, fmt.Errorf("lock student %d: %w", id, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Int64("student_id", id).Msg("release student lock")
		}
	}()

	ok, err := s.repo.SoftDeleteStudent(ctx, id, s.now())
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info().Int64("student_id", id).Msg("student deleted")
	}
	return ok, nil
}

// RecordNoShow is the penalty step: the no-show counter grows by one and
// every third no-show costs one hour of weekly quota. It reports whether a
// penalty hour was added.
func (s *Service) RecordNoShow(ctx context.Context, studentID int64) (*models.Student, bool, error) {
	release, err := s.locker.Acquire(ctx, lock.StudentKey(studentID))
	if err != nil {
		return nil, false, fmt.Errorf("lock student %d: %w", studentID, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn().Err(err).Int64("student_id", studentID).Msg("release student lock")
		}
	}()

	st, err := s.repo.RecordNoShow(ctx, studentID, s.now())
	if err != nil {
		return nil, false, fmt.Errorf("record no-show for student %d: %w", studentID, err)
	}

	penalized := st.NoShowCount%models.NoShowsPerPenaltyHour == 0
	evt := s.logger.Info()
	if penalized {
		evt = s.logger.Warn()
	}
	evt.Int64("student_id", studentID).
		Int("no_show_count", st.NoShowCount).
		Int("quota_penalty_hours", st.QuotaPenaltyHours).
		Bool("penalized", penalized).
		Msg("no-show recorded")
	return st, penalized, nil
}

// AddLoggedHours credits completed practice toward the graduation mandate.
func (s *Service) AddLoggedHours(ctx context.Context, studentID int64, hours float64) error {
	if hours <= 0 {
		return nil
	}
	return s.repo.AddLoggedHours(ctx, studentID, hours, s.now())
}

// GetInstructor returns the instructor or a NotFound rejection.
func (s *Service) GetInstructor(ctx context.Context, id int64) (*models.Instructor, error) {
	ins, err := s.repo.GetInstructor(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, models.Reject(models.ReasonNotFound, "instructor %d not found", id)
	}
	return ins, err
}

func (s *Service) ListInstructors(ctx context.Context) ([]models.Instructor, error) {
	return s.repo.ListInstructors(ctx)
}

func (s *Service) CreateInstructor(ctx context.Context, ins *models.Instructor) error {
	ins.FirstName = strings.TrimSpace(ins.FirstName)
	ins.LastName = strings.TrimSpace(ins.LastName)
	if ins.FirstName == "" || ins.LastName == "" {
		return models.Reject(models.ReasonInvalidInput, "first and last name are required")
	}
	if _, err := mail.ParseAddress(ins.Email); err != nil {
		return models.Reject(models.ReasonInvalidInput, "invalid email %q", ins.Email)
	}
	ins.CreatedAt = s.now()
	if err := s.repo.CreateInstructor(ctx, ins); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return models.Reject(models.ReasonDuplicateName, "instructor email already registered")
		}
		return err
	}
	s.logger.Info().Int64("instructor_id", ins.ID).Msg("instructor created")
	return nil
}
