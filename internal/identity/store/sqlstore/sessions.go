package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
)

type sessionsRepo struct{ conn }

const sessionColumns = `id, user_id, started_at, finished_at`

func scanSession(row scanner) (domain.Session, error) {
	var (
		s                 domain.Session
		started, finished nullTime
	)
	if err := row.Scan(&s.ID, &s.UserID, &started, &finished); err != nil {
		return domain.Session{}, err
	}
	s.StartedAt = started.Time
	s.FinishedAt = finished.ptr()
	return s, nil
}

func (r sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	return r.insert(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, ts(s.StartedAt), tsPtr(s.FinishedAt),
	)
}

func (r sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	s, err := scanSession(r.queryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r sessionsRepo) GetOpenSession(ctx context.Context, userID string) (domain.Session, error) {
	s, err := scanSession(r.queryRow(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND finished_at IS NULL
		ORDER BY started_at DESC, id DESC
		LIMIT 1`, userID))
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r sessionsRepo) FinishSession(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, `
		UPDATE sessions SET finished_at = ?
		WHERE id = ? AND finished_at IS NULL`, ts(at), id)
}

func (r sessionsRepo) FinishOpenSessions(ctx context.Context, userID string, at time.Time) (int64, error) {
	return r.execCount(ctx, `
		UPDATE sessions SET finished_at = ?
		WHERE user_id = ? AND finished_at IS NULL`, ts(at), userID)
}

func (r sessionsRepo) ListUserSessions(ctx context.Context, userID string, offset, limit int) ([]domain.Session, error) {
	rows, err := r.query(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r sessionsRepo) CountUserSessions(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func (r sessionsRepo) CountSessionsInRange(ctx context.Context, userID string, dr domain.DateRange) (int64, error) {
	where, args := rangeClause([]string{"user_id = ?"}, []any{userID}, "started_at", dr.From, dr.To)

	var n int64
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE `+strings.Join(where, " AND "), args...).Scan(&n)
	return n, err
}

func (r sessionsRepo) LastActivity(ctx context.Context, userID string) (*time.Time, error) {
	var last nullTime
	if err := r.queryRow(ctx, `SELECT MAX(started_at) FROM sessions WHERE user_id = ?`, userID).Scan(&last); err != nil {
		return nil, err
	}
	return last.ptr(), nil
}
