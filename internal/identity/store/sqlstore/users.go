package sqlstore

import (
	"context"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
)

type usersRepo struct{ conn }

const userColumns = `id, username, email, password_hash, roles, is_blocked, created_at, updated_at`

func scanUser(row scanner) (domain.User, error) {
	var (
		u                domain.User
		roles            string
		created, updated nullTime
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &roles, &u.IsBlocked, &created, &updated); err != nil {
		return domain.User{}, err
	}
	u.Roles = domain.ParseRoles(roles)
	u.CreatedAt = created.Time
	u.UpdatedAt = updated.Time
	return u, nil
}

func (r usersRepo) getBy(ctx context.Context, column, value string) (domain.User, error) {
	u, err := scanUser(r.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getBy(ctx, "username", username)
}

func (r usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	return r.insert(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Roles.String(), u.IsBlocked, ts(u.CreatedAt), ts(u.UpdatedAt),
	)
}

func (r usersRepo) UpdateUser(ctx context.Context, u domain.User) error {
	return r.execOne(ctx, `
		UPDATE users
		SET username = ?, email = ?, password_hash = ?, roles = ?, is_blocked = ?, updated_at = ?
		WHERE id = ?`,
		u.Username, u.Email, u.PasswordHash, u.Roles.String(), u.IsBlocked, ts(u.UpdatedAt), u.ID,
	)
}

func (r usersRepo) DeleteUser(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = ?`, id)
}

func (r usersRepo) ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error) {
	rows, err := r.query(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at, id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r usersRepo) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
