// Package lock provides advisory locks that serialise check-then-write
// sequences on a room, a student, or the no-show reconciliation pass.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotHeld is returned by a release whose lease expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// Release gives the lock back.
type Release func(ctx context.Context) error

// Locker acquires named locks. Acquire blocks until the lock is obtained or ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

func RoomKey(roomID int64) string {
	return fmt.Sprintf("practicerooms:lock:room:%d", roomID)
}

func StudentKey(studentID int64) string {
	return fmt.Sprintf("practicerooms:lock:student:%d", studentID)
}

// ReconcileKey guards the no-show pass.
const ReconcileKey = "practicerooms:lock:noshow:reconcile"

const retryInterval = 20 * time.Millisecond

func waitRetry(ctx context.Context, key string) error {
	t := time.NewTimer(retryInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("acquire %s: %w", key, ctx.Err())
	case <-t.C:
		return nil
	}
}
