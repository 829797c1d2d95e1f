package sqlstore

import (
	"context"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
)

type clientsRepo struct{ conn }

const clientColumns = `id, name, redirect_uris, scopes, active, created_at, updated_at`

func scanClient(row scanner) (domain.Client, error) {
	var (
		c                domain.Client
		uris, scopes     string
		created, updated nullTime
	)
	if err := row.Scan(&c.ID, &c.Name, &uris, &scopes, &c.Active, &created, &updated); err != nil {
		return domain.Client{}, err
	}
	c.RedirectURIs = splitFields(uris)
	c.Scopes = splitFields(scopes)
	c.CreatedAt = created.Time
	c.UpdatedAt = updated.Time
	return c, nil
}

func (r clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	c, err := scanClient(r.queryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	return c, nil
}

func (r clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	return r.insert(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, joinFields(c.RedirectURIs), joinFields(c.Scopes), c.Active, ts(c.CreatedAt), ts(c.UpdatedAt),
	)
}

func (r clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
