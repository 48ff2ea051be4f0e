package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the SQLite connection pool with the booking repositories.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

var (
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrNotFound               = errors.New("not found")
	ErrTimeConflict           = errors.New("room already booked for the requested interval")
	ErrDuplicate              = errors.New("duplicate value")
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// NewDB opens (or creates) the database at path and applies migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// BEGIN IMMEDIATE for every transaction so read-then-write sequences
	// take the write lock before reading.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS instructors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL,
			created_at TEXT NOT NULL,
			modified_at TEXT,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			deleted_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS students (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL,
			student_number TEXT NOT NULL,
			program TEXT NOT NULL,
			primary_instrument TEXT NOT NULL,
			instructor_id INTEGER,
			no_show_count INTEGER NOT NULL DEFAULT 0,
			quota_penalty_hours INTEGER NOT NULL DEFAULT 0,
			total_logged_hours REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			modified_at TEXT,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			deleted_at TEXT,
			FOREIGN KEY (instructor_id) REFERENCES instructors(id)
		)`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL COLLATE NOCASE,
			type TEXT NOT NULL,
			is_soundproof BOOLEAN NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			modified_at TEXT,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			deleted_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS equipment (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			modified_at TEXT,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			deleted_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS room_equipment (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			room_id INTEGER NOT NULL,
			equipment_id INTEGER NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			deleted_at TEXT,
			FOREIGN KEY (room_id) REFERENCES rooms(id),
			FOREIGN KEY (equipment_id) REFERENCES equipment(id)
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			student_id INTEGER NOT NULL,
			room_id INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'confirmed',
			purpose TEXT NOT NULL,
			requires_approval BOOLEAN NOT NULL DEFAULT 0,
			is_approved BOOLEAN NOT NULL DEFAULT 0,
			approved_by_instructor_id INTEGER,
			approved_at TEXT,
			checked_in_at TEXT,
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			modified_at TEXT,
			cancelled_at TEXT,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			deleted_at TEXT,
			version INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (student_id) REFERENCES students(id),
			FOREIGN KEY (room_id) REFERENCES rooms(id),
			FOREIGN KEY (approved_by_instructor_id) REFERENCES instructors(id)
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_rooms_name ON rooms(name) WHERE is_deleted = 0`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_students_email ON students(email) WHERE is_deleted = 0`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_students_number ON students(student_number) WHERE is_deleted = 0`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_instructors_email ON instructors(email) WHERE is_deleted = 0`,
		`CREATE INDEX IF NOT EXISTS idx_room_equipment_room ON room_equipment(room_id, is_deleted)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_room_time ON bookings(room_id, start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_student_time ON bookings(student_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status_end ON bookings(status, end_time)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(query), err)
		}
	}

	return db.ensureNewColumns()
}

// ensureNewColumns adds columns introduced after the first schema version.
func (db *DB) ensureNewColumns() error {
	migrations := []string{
		`ALTER TABLE bookings ADD COLUMN notes TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE students ADD COLUMN total_logged_hours REAL NOT NULL DEFAULT 0`,
	}

	for _, m := range migrations {
		_, err := db.Exec(m)
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			return fmt.Errorf("migration %s: %w", trimSQL(m), err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, committing on nil error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
