package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"practicerooms/internal/models"
)

const studentColumns = `id, first_name, last_name, email, student_number, program, primary_instrument,
	instructor_id, no_show_count, quota_penalty_hours, total_logged_hours,
	created_at, modified_at, is_deleted, deleted_at`

func scanStudent(row rowScanner) (*models.Student, error) {
	var (
		s                   models.Student
		program, instrument string
		instructorID        sql.NullInt64
		created             string
		modified, deletedAt sql.NullString
	)
	err := row.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.StudentNumber, &program, &instrument,
		&instructorID, &s.NoShowCount, &s.QuotaPenaltyHours, &s.TotalLoggedHours,
		&created, &modified, &s.IsDeleted, &deletedAt)
	if err != nil {
		return nil, err
	}
	s.Program = models.StudentProgram(program)
	s.PrimaryInstrument = models.Instrument(instrument)
	if instructorID.Valid {
		id := instructorID.Int64
		s.InstructorID = &id
	}
	if s.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if s.ModifiedAt, err = parseNullTime(modified); err != nil {
		return nil, err
	}
	if s.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) CreateStudent(ctx context.Context, s *models.Student) error {
	res, err := db.ExecContext(ctx, `
		INSERT INTO students (first_name, last_name, email, student_number, program, primary_instrument,
			instructor_id, no_show_count, quota_penalty_hours, total_logged_hours, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.FirstName, s.LastName, s.Email, s.StudentNumber, string(s.Program), string(s.PrimaryInstrument),
		nullInt64(s.InstructorID), s.NoShowCount, s.QuotaPenaltyHours, s.TotalLoggedHours, formatTime(s.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("student %s: %w", s.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	s.ID, err = res.LastInsertId()
	return err
}

func (db *DB) GetStudent(ctx context.Context, id int64) (*models.Student, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE id = ? AND is_deleted = 0`, id)
	s, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get student %d: %w", id, err)
	}
	return s, nil
}

func (db *DB) ListStudents(ctx context.Context) ([]models.Student, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+studentColumns+` FROM students WHERE is_deleted = 0 ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *s)
	}
	return students, rows.Err()
}

// UpdateStudent writes profile fields. Penalty counters are left untouched.
func (db *DB) UpdateStudent(ctx context.Context, s *models.Student) error {
	res, err := db.ExecContext(ctx, `
		UPDATE students SET first_name = ?, last_name = ?, email = ?, student_number = ?,
			program = ?, primary_instrument = ?, instructor_id = ?, modified_at = ?
		WHERE id = ? AND is_deleted = 0`,
		s.FirstName, s.LastName, s.Email, s.StudentNumber, string(s.Program), string(s.PrimaryInstrument),
		nullInt64(s.InstructorID), formatTimePtr(s.ModifiedAt), s.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("student %s: %w", s.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update student %d: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteStudent hides the student and cancels every booking of theirs that
// is still confirmed, in one transaction.
func (db *DB) SoftDeleteStudent(ctx context.Context, id int64, at time.Time) (bool, error) {
	deleted := false
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE students SET is_deleted = 1, deleted_at = ? WHERE id = ? AND is_deleted = 0`,
			formatTime(at), id)
		if err != nil {
			return fmt.Errorf("delete student %d: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}
		deleted = true

		_, err = tx.ExecContext(ctx, `
			UPDATE bookings SET status = ?, cancelled_at = ?, modified_at = ?, version = version + 1
			WHERE student_id = ? AND status = ? AND is_deleted = 0`,
			string(models.StatusCancelled), formatTime(at), formatTime(at), id, string(models.StatusConfirmed))
		if err != nil {
			return fmt.Errorf("cancel bookings of student %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// RecordNoShow applies one no-show to the student as a compare-and-set on the
// previous counter value, so concurrent callers cannot lose an increment.
func (db *DB) RecordNoShow(ctx context.Context, id int64, at time.Time) (*models.Student, error) {
	var student *models.Student
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		s, err := scanStudent(tx.QueryRowContext(ctx,
			`SELECT `+studentColumns+` FROM students WHERE id = ? AND is_deleted = 0`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get student %d: %w", id, err)
		}

		previous := s.NoShowCount
		s.RecordNoShow()
		s.ModifiedAt = &at

		res, err := tx.ExecContext(ctx, `
			UPDATE students SET no_show_count = ?, quota_penalty_hours = ?, modified_at = ?
			WHERE id = ? AND no_show_count = ?`,
			s.NoShowCount, s.QuotaPenaltyHours, formatTime(at), id, previous)
		if err != nil {
			return fmt.Errorf("record no-show for student %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrConcurrentModification
		}
		student = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return student, nil
}

// AddLoggedHours credits completed practice time toward the graduation mandate.
func (db *DB) AddLoggedHours(ctx context.Context, id int64, hours float64, at time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE students SET total_logged_hours = total_logged_hours + ?, modified_at = ? WHERE id = ? AND is_deleted = 0`,
		hours, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("add logged hours for student %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
