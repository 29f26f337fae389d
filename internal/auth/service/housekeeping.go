package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/workbench/internal/auth/store"
)

const (
	// DefaultInactiveSessionRetention keeps revoked sessions around for a
	// day so session listings and audits can still see them.
	DefaultInactiveSessionRetention = 24 * time.Hour

	defaultHousekeepingInterval = time.Hour
)

// HousekeepingService periodically deletes expired sessions, stale revoked
// sessions, expired MFA challenges and lapsed MFA failure counters.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// InactiveRetention is how long a revoked session is kept.
	InactiveRetention time.Duration

	// LockoutWindow matches the MFA limiter window; counters older than it
	// can no longer lock anyone.
	LockoutWindow time.Duration

	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping worker. Non-positive
// durations fall back to defaults.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, lockoutWindow time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = defaultHousekeepingInterval
	}
	return &HousekeepingService{
		Store:             st,
		Logger:            logger,
		Interval:          interval,
		InactiveRetention: DefaultInactiveSessionRetention,
		LockoutWindow:     lockoutWindow,
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup performs one pass. Each deletion is independent; a failure in one
// does not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := nowOrDefault(s.Now)
	retention := s.InactiveRetention
	if retention <= 0 {
		retention = DefaultInactiveSessionRetention
	}

	steps := []struct {
		name string
		run  func() (int64, error)
	}{
		{"sessions", func() (int64, error) {
			return s.Store.Sessions().DeleteStaleSessions(ctx, now, now.Add(-retention))
		}},
		{"mfa_challenges", func() (int64, error) {
			return s.Store.MFAChallenges().DeleteExpiredMFAChallenges(ctx, now)
		}},
		{"mfa_attempts", func() (int64, error) {
			if s.LockoutWindow <= 0 {
				return 0, nil
			}
			return s.Store.MFAAttempts().DeleteMFAFailuresBefore(ctx, now.Add(-s.LockoutWindow))
		}},
	}

	var total int64
	for _, step := range steps {
		n, err := step.run()
		if err != nil {
			s.Logger.Error("housekeeping step failed", "step", step.name, "error", err)
			continue
		}
		s.Logger.Debug("housekeeping step done", "step", step.name, "deleted", n)
		total += n
	}
	s.Logger.Info("housekeeping cleanup completed", "deleted", total)
}
