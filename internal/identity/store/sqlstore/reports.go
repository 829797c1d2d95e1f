package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
)

type reportsRepo struct{ conn }

// UserActivity puts the date bounds in the join so users without sessions in
// range still appear with a zero count.
func (r reportsRepo) UserActivity(ctx context.Context, dr domain.DateRange) ([]domain.UserActivity, error) {
	on, args := rangeClause([]string{"s.user_id = u.id"}, nil, "s.started_at", dr.From, dr.To)

	rows, err := r.query(ctx, `
		SELECT u.username, COUNT(s.id), MAX(s.started_at)
		FROM users u
		LEFT JOIN sessions s ON `+strings.Join(on, " AND ")+`
		GROUP BY u.id, u.username
		ORDER BY u.username`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UserActivity
	for rows.Next() {
		var (
			a    domain.UserActivity
			last nullTime
		)
		if err := rows.Scan(&a.Username, &a.SessionCount, &last); err != nil {
			return nil, err
		}
		a.LastActivity = last.ptr()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r reportsRepo) RegistrationTimes(ctx context.Context, dr domain.DateRange) ([]time.Time, error) {
	where, args := rangeClause([]string{"1 = 1"}, nil, "created_at", dr.From, dr.To)

	rows, err := r.query(ctx, `
		SELECT created_at FROM users
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t nullTime
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t.Time)
	}
	return out, rows.Err()
}
