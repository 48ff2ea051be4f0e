package models

import "time"

// Booking is a reservation of a room by a student for a half-open interval [StartTime, EndTime).
type Booking struct {
	ID                     int64          `json:"id"`
	StudentID              int64          `json:"student_id"`
	RoomID                 int64          `json:"room_id"`
	StartTime              time.Time      `json:"start_time"`
	EndTime                time.Time      `json:"end_time"`
	Status                 BookingStatus  `json:"status"`
	Purpose                BookingPurpose `json:"purpose"`
	RequiresApproval       bool           `json:"requires_approval"`
	IsApproved             bool           `json:"is_approved"`
	ApprovedByInstructorID *int64         `json:"approved_by_instructor_id,omitempty"`
	ApprovedAt             *time.Time     `json:"approved_at,omitempty"`
	CheckedInAt            *time.Time     `json:"checked_in_at,omitempty"`
	Notes                  string         `json:"notes,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	ModifiedAt             *time.Time     `json:"modified_at,omitempty"`
	CancelledAt            *time.Time     `json:"cancelled_at,omitempty"`
	IsDeleted              bool           `json:"-"`
	DeletedAt              *time.Time     `json:"-"`
	Version                int64          `json:"version"`
}

// Duration returns EndTime - StartTime.
func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// DurationHours returns the booking length in fractional hours.
func (b *Booking) DurationHours() float64 {
	return b.Duration().Hours()
}

// OverlapsWith reports whether the two bookings share any instant.
// Intervals are half-open, so back-to-back bookings do not overlap.
func (b *Booking) OverlapsWith(other *Booking) bool {
	return Overlaps(b.StartTime, b.EndTime, other.StartTime, other.EndTime)
}

// BlocksRoom reports whether the booking takes part in conflict detection.
func (b *Booking) BlocksRoom() bool {
	return !b.IsDeleted && b.Status != StatusCancelled
}

// AwaitingApproval is true for bookings that cannot be checked in yet.
func (b *Booking) AwaitingApproval() bool {
	return b.RequiresApproval && !b.IsApproved
}

// NoShowMark identifies a booking flipped to no_show by a reconcile pass.
type NoShowMark struct {
	BookingID int64
	StudentID int64
	RoomID    int64
}

// Overlaps checks [aStart, aEnd) against [bStart, bEnd).
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
