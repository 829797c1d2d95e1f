package sqlstore

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/identity/internal/identity/store"
)

type txStore struct {
	tx *sql.Tx
	d  *Dialect
}

var _ store.Tx = (*txStore)(nil)

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) LockUser(ctx context.Context, userID string) error {
	if t.d.LockUser == nil {
		return nil
	}
	return t.d.LockUser(ctx, t.tx, userID)
}

func (t *txStore) Close() error { return nil } // caller commits or rolls back; the DB stays open

// Ping is a no-op; the transaction already holds a live connection.
func (t *txStore) Ping(context.Context) error { return nil }

func (t *txStore) Tx(context.Context) (store.Tx, error) {
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(context.Context, func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx

func (t *txStore) conn() conn { return conn{q: t.tx, d: t.d} }

func (t *txStore) Users() store.Users                 { return usersRepo{t.conn()} }
func (t *txStore) Sessions() store.Sessions           { return sessionsRepo{t.conn()} }
func (t *txStore) RefreshTokens() store.RefreshTokens { return refreshTokensRepo{t.conn()} }
func (t *txStore) Clients() store.Clients             { return clientsRepo{t.conn()} }
func (t *txStore) OAuth2Tokens() store.OAuth2Tokens   { return oauth2TokensRepo{t.conn()} }
func (t *txStore) AuthorizationCodes() store.AuthorizationCodes {
	return authorizationCodesRepo{t.conn()}
}
func (t *txStore) Reports() store.Reports { return reportsRepo{t.conn()} }
