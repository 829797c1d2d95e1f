package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/aussiebroadwan/identity/pkg/idx"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

var ErrSessionNotFound = errors.New("session_not_found")

// SessionService tracks login sessions. A user has at most one open session.
type SessionService struct {
	Store store.Store
	Clock Clock
}

// StartSession closes whatever is open for userID and opens a new session.
func (s *SessionService) StartSession(ctx context.Context, userID string) (string, error) {
	now := s.Clock.now()
	sess := domain.Session{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		StartedAt: now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}

		closed, err := tx.Sessions().FinishOpenSessions(ctx, userID, now)
		if err != nil {
			return fmt.Errorf("finish open sessions: %w", err)
		}
		if closed > 0 {
			slogx.FromContext(ctx).Info("closed stale sessions",
				slog.String("user_id", userID),
				slog.Int64("count", closed),
			)
		}

		return tx.Sessions().CreateSession(ctx, sess)
	})
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// FinishCurrentSession closes the open session of userID, if any.
func (s *SessionService) FinishCurrentSession(ctx context.Context, userID string) error {
	now := s.Clock.now()

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}

		open, err := tx.Sessions().GetOpenSession(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				slogx.FromContext(ctx).Debug("no open session to finish", slog.String("user_id", userID))
				return nil
			}
			return err
		}

		if err := tx.Sessions().FinishSession(ctx, open.ID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return nil
	})
}

// FinishSession closes session id if it is still open.
func (s *SessionService) FinishSession(ctx context.Context, id string) error {
	err := s.Store.Sessions().FinishSession(ctx, id, s.Clock.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// CountSessions counts sessions of userID started within r.
func (s *SessionService) CountSessions(ctx context.Context, userID string, r domain.DateRange) (int64, error) {
	return s.Store.Sessions().CountSessionsInRange(ctx, userID, r)
}

// LastActivity is the start of the user's latest session, nil if none.
func (s *SessionService) LastActivity(ctx context.Context, userID string) (*time.Time, error) {
	return s.Store.Sessions().LastActivity(ctx, userID)
}

// ListSessions pages through userID's sessions, newest first.
func (s *SessionService) ListSessions(ctx context.Context, userID string, page, limit int) (domain.Page[domain.Session], error) {
	page, limit = normalisePage(page, limit)

	total, err := s.Store.Sessions().CountUserSessions(ctx, userID)
	if err != nil {
		return domain.Page[domain.Session]{}, err
	}
	items, err := s.Store.Sessions().ListUserSessions(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return domain.Page[domain.Session]{}, err
	}
	return domain.NewPage(items, page, limit, total), nil
}

func (s *SessionService) GetSession(ctx context.Context, id string) (domain.Session, error) {
	sess, err := s.Store.Sessions().GetSessionByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, ErrSessionNotFound
	}
	return sess, err
}
