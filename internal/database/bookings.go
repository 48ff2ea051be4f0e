package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"practicerooms/internal/models"
)

const bookingColumns = `id, student_id, room_id, start_time, end_time, status, purpose,
	requires_approval, is_approved, approved_by_instructor_id, approved_at, checked_in_at,
	notes, created_at, modified_at, cancelled_at, is_deleted, deleted_at, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b                   models.Booking
		start, end, created string
		status, purpose     string
		approvedBy          sql.NullInt64
		approvedAt          sql.NullString
		checkedIn           sql.NullString
		modified, cancelled sql.NullString
		deletedAt           sql.NullString
	)
	err := row.Scan(&b.ID, &b.StudentID, &b.RoomID, &start, &end, &status, &purpose,
		&b.RequiresApproval, &b.IsApproved, &approvedBy, &approvedAt, &checkedIn,
		&b.Notes, &created, &modified, &cancelled, &b.IsDeleted, &deletedAt, &b.Version)
	if err != nil {
		return nil, err
	}

	b.Status = models.BookingStatus(status)
	b.Purpose = models.BookingPurpose(purpose)
	if approvedBy.Valid {
		id := approvedBy.Int64
		b.ApprovedByInstructorID = &id
	}
	if b.StartTime, err = parseTime(start); err != nil {
		return nil, fmt.Errorf("parse start_time: %w", err)
	}
	if b.EndTime, err = parseTime(end); err != nil {
		return nil, fmt.Errorf("parse end_time: %w", err)
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	for _, f := range []struct {
		dst **time.Time
		src sql.NullString
	}{
		{&b.ApprovedAt, approvedAt},
		{&b.CheckedInAt, checkedIn},
		{&b.ModifiedAt, modified},
		{&b.CancelledAt, cancelled},
		{&b.DeletedAt, deletedAt},
	} {
		if *f.dst, err = parseNullTime(f.src); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]models.Booking, error) {
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func hasConflict(ctx context.Context, q querier, roomID int64, start, end time.Time, excludeID *int64) (bool, error) {
	query := `SELECT COUNT(*) FROM bookings
		WHERE room_id = ? AND is_deleted = 0 AND status != ?
		AND start_time < ? AND end_time > ?`
	args := []interface{}{roomID, string(models.StatusCancelled), formatTime(end), formatTime(start)}
	if excludeID != nil {
		query += ` AND id != ?`
		args = append(args, *excludeID)
	}

	var count int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check conflict: %w", err)
	}
	return count > 0, nil
}

// HasTimeConflict reports whether a live, non-cancelled booking in the room
// overlaps [start, end). excludeID skips the booking being edited.
func (db *DB) HasTimeConflict(ctx context.Context, roomID int64, start, end time.Time, excludeID *int64) (bool, error) {
	return hasConflict(ctx, db, roomID, start, end, excludeID)
}

// CreateBooking inserts the booking after re-checking the room inside the same
// transaction. It returns ErrTimeConflict if the slot was taken meanwhile.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		conflict, err := hasConflict(ctx, tx, b.RoomID, b.StartTime, b.EndTime, nil)
		if err != nil {
			return err
		}
		if conflict {
			return ErrTimeConflict
		}

		if b.Version == 0 {
			b.Version = 1
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO bookings (student_id, room_id, start_time, end_time, status, purpose,
				requires_approval, is_approved, approved_by_instructor_id, approved_at, checked_in_at,
				notes, created_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.StudentID, b.RoomID, formatTime(b.StartTime), formatTime(b.EndTime),
			string(b.Status), string(b.Purpose), b.RequiresApproval, b.IsApproved,
			nullInt64(b.ApprovedByInstructorID), formatTimePtr(b.ApprovedAt), formatTimePtr(b.CheckedInAt),
			b.Notes, formatTime(b.CreatedAt), b.Version,
		)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("booking id: %w", err)
		}
		b.ID = id
		return nil
	})
}

// GetBooking returns a live booking or ErrNotFound.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ? AND is_deleted = 0`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

// BookingExists reports whether a live booking with id exists.
func (db *DB) BookingExists(ctx context.Context, id int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE id = ? AND is_deleted = 0`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("booking exists %d: %w", id, err)
	}
	return count > 0, nil
}

// UpdateBooking writes every mutable field if the stored version still matches
// b.Version. On success b.Version is advanced.
func (db *DB) UpdateBooking(ctx context.Context, b *models.Booking) error {
	res, err := db.ExecContext(ctx, `
		UPDATE bookings SET
			student_id = ?, room_id = ?, start_time = ?, end_time = ?, status = ?, purpose = ?,
			requires_approval = ?, is_approved = ?, approved_by_instructor_id = ?, approved_at = ?,
			checked_in_at = ?, notes = ?, modified_at = ?, cancelled_at = ?,
			version = version + 1
		WHERE id = ? AND version = ? AND is_deleted = 0`,
		b.StudentID, b.RoomID, formatTime(b.StartTime), formatTime(b.EndTime),
		string(b.Status), string(b.Purpose), b.RequiresApproval, b.IsApproved,
		nullInt64(b.ApprovedByInstructorID), formatTimePtr(b.ApprovedAt), formatTimePtr(b.CheckedInAt),
		b.Notes, formatTimePtr(b.ModifiedAt), formatTimePtr(b.CancelledAt),
		b.ID, b.Version,
	)
	if err != nil {
		return fmt.Errorf("update booking %d: %w", b.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update booking %d: %w", b.ID, err)
	}
	if affected == 0 {
		return ErrConcurrentModification
	}
	b.Version++
	return nil
}

// SoftDeleteBooking hides the booking from every query. Returns false if it was not live.
func (db *DB) SoftDeleteBooking(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET is_deleted = 1, deleted_at = ?, version = version + 1 WHERE id = ? AND is_deleted = 0`,
		formatTime(at), id)
	if err != nil {
		return false, fmt.Errorf("delete booking %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListBookings returns every live booking ordered by start time.
func (db *DB) ListBookings(ctx context.Context) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE is_deleted = 0 ORDER BY start_time, id`)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return scanBookings(rows)
}

func (db *DB) ListBookingsByStudent(ctx context.Context, studentID int64) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE student_id = ? AND is_deleted = 0 ORDER BY start_time, id`,
		studentID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for student %d: %w", studentID, err)
	}
	return scanBookings(rows)
}

func (db *DB) ListBookingsByRoom(ctx context.Context, roomID int64) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE room_id = ? AND is_deleted = 0 ORDER BY start_time, id`,
		roomID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for room %d: %w", roomID, err)
	}
	return scanBookings(rows)
}

// ListRoomBookingsInRange returns live, non-cancelled bookings overlapping [from, to).
func (db *DB) ListRoomBookingsInRange(ctx context.Context, roomID int64, from, to time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		WHERE room_id = ? AND is_deleted = 0 AND status != ? AND start_time < ? AND end_time > ?
		ORDER BY start_time, id`,
		roomID, string(models.StatusCancelled), formatTime(to), formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("list room %d bookings in range: %w", roomID, err)
	}
	return scanBookings(rows)
}

// SumStudentDuration totals the duration of the student's non-cancelled bookings
// whose start falls in [from, to).
func (db *DB) SumStudentDuration(ctx context.Context, studentID int64, from, to time.Time) (time.Duration, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		WHERE student_id = ? AND is_deleted = 0 AND status != ? AND start_time >= ? AND start_time < ?`,
		studentID, string(models.StatusCancelled), formatTime(from), formatTime(to))
	if err != nil {
		return 0, fmt.Errorf("sum hours for student %d: %w", studentID, err)
	}
	bookings, err := scanBookings(rows)
	if err != nil {
		return 0, err
	}

	var total time.Duration
	for i := range bookings {
		total += bookings[i].Duration()
	}
	return total, nil
}

// MarkExpiredAsNoShow flips every confirmed, never checked-in booking that ended
// before now to no_show. Selection and update share one immediate transaction so
// a booking is flipped, and reported, by exactly one caller.
func (db *DB) MarkExpiredAsNoShow(ctx context.Context, now time.Time) ([]models.NoShowMark, error) {
	var marks []models.NoShowMark
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, student_id, room_id FROM bookings
			WHERE status = ? AND is_deleted = 0 AND checked_in_at IS NULL AND end_time < ?
			ORDER BY student_id, id`,
			string(models.StatusConfirmed), formatTime(now))
		if err != nil {
			return fmt.Errorf("select expired bookings: %w", err)
		}

		var ids []interface{}
		for rows.Next() {
			var m models.NoShowMark
			if err := rows.Scan(&m.BookingID, &m.StudentID, &m.RoomID); err != nil {
				rows.Close()
				return err
			}
			marks = append(marks, m)
			ids = append(ids, m.BookingID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := append([]interface{}{string(models.StatusNoShow), formatTime(now)}, ids...)
		args = append(args, string(models.StatusConfirmed))
		res, err := tx.ExecContext(ctx, `
			UPDATE bookings SET status = ?, modified_at = ?, version = version + 1
			WHERE id IN (`+placeholders+`) AND status = ?`, args...)
		if err != nil {
			return fmt.Errorf("mark no-show: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if int(n) != len(ids) {
			return fmt.Errorf("mark no-show: %d of %d bookings changed: %w", n, len(ids), ErrConcurrentModification)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marks, nil
}

// ListBookingsStartingBetween is used by the monthly report.
func (db *DB) ListBookingsStartingBetween(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		WHERE is_deleted = 0 AND start_time >= ? AND start_time < ? ORDER BY start_time, id`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("list bookings between: %w", err)
	}
	return scanBookings(rows)
}
