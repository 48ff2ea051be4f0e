package service

import (
	"context"
	"time"

	"practicerooms/internal/models"
)

// BookingRepository is the storage the orchestrator needs. Implementations
// hide soft-deleted rows from every read.
type BookingRepository interface {
	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	BookingExists(ctx context.Context, id int64) (bool, error)
	UpdateBooking(ctx context.Context, b *models.Booking) error
	SoftDeleteBooking(ctx context.Context, id int64, at time.Time) (bool, error)
	ListBookings(ctx context.Context) ([]models.Booking, error)
	ListBookingsByStudent(ctx context.Context, studentID int64) ([]models.Booking, error)
	ListBookingsByRoom(ctx context.Context, roomID int64) ([]models.Booking, error)
	ListRoomBookingsInRange(ctx context.Context, roomID int64, from, to time.Time) ([]models.Booking, error)
	HasTimeConflict(ctx context.Context, roomID int64, start, end time.Time, excludeID *int64) (bool, error)
	SumStudentDuration(ctx context.Context, studentID int64, from, to time.Time) (time.Duration, error)
	MarkExpiredAsNoShow(ctx context.Context, now time.Time) ([]models.NoShowMark, error)
}

// RoomCatalog returns nil for rooms that do not exist.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
}

// StudentRegistry returns nil for students that do not exist and a NotFound
// rejection for unknown instructors.
type StudentRegistry interface {
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	GetInstructor(ctx context.Context, id int64) (*models.Instructor, error)
	RecordNoShow(ctx context.Context, studentID int64) (*models.Student, bool, error)
	AddLoggedHours(ctx context.Context, studentID int64, hours float64) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
