package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"practicerooms/internal/models"
)

const instructorColumns = `id, first_name, last_name, email, created_at, modified_at, is_deleted, deleted_at`

func scanInstructor(row rowScanner) (*models.Instructor, error) {
	var (
		i                   models.Instructor
		created             string
		modified, deletedAt sql.NullString
	)
	err := row.Scan(&i.ID, &i.FirstName, &i.LastName, &i.Email, &created, &modified, &i.IsDeleted, &deletedAt)
	if err != nil {
		return nil, err
	}
	if i.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if i.ModifiedAt, err = parseNullTime(modified); err != nil {
		return nil, err
	}
	if i.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (db *DB) CreateInstructor(ctx context.Context, i *models.Instructor) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO instructors (first_name, last_name, email, created_at) VALUES (?, ?, ?, ?)`,
		i.FirstName, i.LastName, i.Email, formatTime(i.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("instructor %s: %w", i.Email, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert instructor: %w", err)
	}
	i.ID, err = res.LastInsertId()
	return err
}

func (db *DB) GetInstructor(ctx context.Context, id int64) (*models.Instructor, error) {
	i, err := scanInstructor(db.QueryRowContext(ctx,
		`SELECT `+instructorColumns+` FROM instructors WHERE id = ? AND is_deleted = 0`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get instructor %d: %w", id, err)
	}
	return i, nil
}

func (db *DB) ListInstructors(ctx context.Context) ([]models.Instructor, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+instructorColumns+` FROM instructors WHERE is_deleted = 0 ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, fmt.Errorf("list instructors: %w", err)
	}
	defer rows.Close()

	var instructors []models.Instructor
	for rows.Next() {
		i, err := scanInstructor(rows)
		if err != nil {
			return nil, err
		}
		instructors = append(instructors, *i)
	}
	return instructors, rows.Err()
}
