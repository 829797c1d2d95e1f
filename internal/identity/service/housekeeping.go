package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/store"
)

// HousekeepingService periodically deletes expired refresh tokens,
// authorization codes and access-token records.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Clock    Clock

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults a non-positive interval to one hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background until Stop is called.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-flight cleanup has finished.
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

// Cleanup runs one pass. A failing table does not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := s.Clock.now()

	tasks := []struct {
		name string
		run  func(context.Context, time.Time) (int64, error)
	}{
		{"refresh_tokens", s.Store.RefreshTokens().DeleteExpiredRefreshTokens},
		{"authorization_codes", s.Store.AuthorizationCodes().DeleteExpiredAuthorizationCodes},
		{"oauth2_access_token", s.Store.OAuth2Tokens().DeleteExpiredAccessTokens},
	}

	var total int64
	for _, task := range tasks {
		n, err := task.run(ctx, now)
		if err != nil {
			s.Logger.Error("housekeeping cleanup failed", "table", task.name, "error", err)
			continue
		}
		if n > 0 {
			s.Logger.Debug("deleted expired rows", "table", task.name, "count", n)
		}
		total += n
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", total)
}
