package service

import (
	"context"
	"time"
)

type conflictQuerier interface {
	HasTimeConflict(ctx context.Context, roomID int64, start, end time.Time, excludeID *int64) (bool, error)
}

// ConflictDetector answers whether a room is already taken for an interval.
// Only live, non-cancelled bookings count, and back-to-back bookings do not
// conflict.
type ConflictDetector struct {
	repo conflictQuerier
}

func NewConflictDetector(repo conflictQuerier) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

func (d *ConflictDetector) HasTimeConflict(ctx context.Context, roomID int64, start, end time.Time, excludeID *int64) (bool, error) {
	if !end.After(start) {
		return false, nil
	}
	return d.repo.HasTimeConflict(ctx, roomID, start.UTC(), end.UTC(), excludeID)
}
