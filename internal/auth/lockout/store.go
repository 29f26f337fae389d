package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/store"
)

// StoreLimiter keeps counters in the credential store. It is the fallback
// when no Redis is configured and is correct for a single node.
type StoreLimiter struct {
	attempts store.MFAAttempts
	cfg      Config
	now      func() time.Time
}

func NewStoreLimiter(attempts store.MFAAttempts, cfg Config) *StoreLimiter {
	return &StoreLimiter{attempts: attempts, cfg: cfg.withDefaults(), now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (l *StoreLimiter) WithClock(now func() time.Time) *StoreLimiter {
	l.now = now
	return l
}

func (l *StoreLimiter) Check(ctx context.Context, key string) error {
	failures, start, err := l.attempts.GetMFAFailures(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !start.After(l.now().Add(-l.cfg.Window)) {
		return nil
	}
	if failures >= l.cfg.MaxFailures {
		return ErrLocked
	}
	return nil
}

func (l *StoreLimiter) RecordFailure(ctx context.Context, key string) error {
	now := l.now()
	failures, err := l.attempts.RecordMFAFailure(ctx, key, now, now.Add(-l.cfg.Window))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if failures >= l.cfg.MaxFailures {
		return ErrLocked
	}
	return nil
}

func (l *StoreLimiter) Reset(ctx context.Context, key string) error {
	if err := l.attempts.ResetMFAFailures(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
