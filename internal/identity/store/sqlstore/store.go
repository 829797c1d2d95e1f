package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/store"
)

// Store implements store.Store on database/sql for any Dialect.
type Store struct {
	db *sql.DB
	d  *Dialect
}

var _ store.Store = (*Store)(nil)

// New wraps an open database. The Store takes ownership of db.
func New(db *sql.DB, d *Dialect) *Store {
	return &Store{db: db, d: d}
}

// DB exposes the underlying handle for drivers and tests.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the dialect name, e.g. "sqlite".
func (s *Store) Dialect() string { return s.d.Name }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ApplyMigrations applies any pending up migrations.
func (s *Store) ApplyMigrations() error {
	return s.d.migrate(s.db, Up)
}

// Migrate runs every migration in the given direction.
func (s *Store) Migrate(dir Direction) error {
	return s.d.migrate(s.db, dir)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, d: s.d}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) conn() conn { return conn{q: s.db, d: s.d} }

func (s *Store) Users() store.Users                 { return usersRepo{s.conn()} }
func (s *Store) Sessions() store.Sessions           { return sessionsRepo{s.conn()} }
func (s *Store) RefreshTokens() store.RefreshTokens { return refreshTokensRepo{s.conn()} }
func (s *Store) Clients() store.Clients             { return clientsRepo{s.conn()} }
func (s *Store) OAuth2Tokens() store.OAuth2Tokens   { return oauth2TokensRepo{s.conn()} }
func (s *Store) AuthorizationCodes() store.AuthorizationCodes {
	return authorizationCodesRepo{s.conn()}
}
func (s *Store) Reports() store.Reports { return reportsRepo{s.conn()} }

// conn binds a Querier to the dialect so repos share placeholder handling.
type conn struct {
	q Querier
	d *Dialect
}

func (c conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.d.rebind(query), args...)
}

func (c conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.d.rebind(query), args...)
}

func (c conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
}

// insert maps unique violations to a *store.ConflictError.
func (c conn) insert(ctx context.Context, query string, args ...any) error {
	_, err := c.exec(ctx, query, args...)
	if c.d.uniqueViolation(err) {
		return c.d.conflict(err)
	}
	return err
}

// execOne fails with store.ErrNotFound when no row was affected and maps
// unique violations like insert.
func (c conn) execOne(ctx context.Context, query string, args ...any) error {
	res, err := c.exec(ctx, query, args...)
	if c.d.uniqueViolation(err) {
		return c.d.conflict(err)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c conn) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// ts normalises times before they are written. Postgres keeps microseconds.
func ts(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func tsPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ts(*t)
}
