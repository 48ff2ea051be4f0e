package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"practicerooms/internal/metrics"
)

const recoveryInterval = time.Minute

// FailoverLocker uses the primary locker and switches to the fallback when
// the primary returns an infrastructure error. The primary is retried once
// recoveryInterval has passed since it went down.
type FailoverLocker struct {
	primary   Locker
	fallback  Locker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverLocker(primary, fallback Locker, logger *zerolog.Logger) *FailoverLocker {
	l := logger.With().Str("component", "lock_failover").Logger()
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		logger:   &l,
	}
}

func (f *FailoverLocker) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) >= recoveryInterval {
		f.lastCheck = time.Now()
		return true
	}
	return false
}

func (f *FailoverLocker) markDown(err error) {
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
	if !f.isDown.Swap(true) {
		metrics.IncLockFailover("to_fallback")
		f.logger.Warn().Err(err).Msg("primary locker unavailable, switching to fallback")
	}
}

func (f *FailoverLocker) markUp() {
	if f.isDown.Swap(false) {
		metrics.IncLockFailover("to_primary")
		f.logger.Info().Msg("primary locker recovered")
	}
}

func (f *FailoverLocker) Acquire(ctx context.Context, key string) (Release, error) {
	if f.usePrimary() {
		release, err := f.primary.Acquire(ctx, key)
		if err == nil {
			f.markUp()
			return release, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		f.markDown(err)
	}
	return f.fallback.Acquire(ctx, key)
}

// Degraded reports whether the fallback is in use.
func (f *FailoverLocker) Degraded() bool {
	return f.isDown.Load()
}
