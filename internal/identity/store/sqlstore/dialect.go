package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/identity/internal/identity/store"

	"github.com/golang-migrate/migrate/v4"
)

// Direction selects which way migrations run.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case Up, Down:
		return d, nil
	}
	return "", fmt.Errorf("sqlstore: unknown migration direction %q", s)
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect captures what differs between database engines. Queries are
// written with "?" placeholders and rebound when Numbered is set.
type Dialect struct {
	Name string

	// Numbered rewrites "?" placeholders to $1, $2, ...
	Numbered bool

	// LockUser takes a transaction-scoped lock keyed by user id. Nil when the
	// engine already serializes writers.
	LockUser func(ctx context.Context, q Querier, userID string) error

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool

	// ConflictColumn names the column behind a unique violation, or "".
	ConflictColumn func(err error) string

	// NewMigrate builds a migrate instance over db with the embedded files.
	NewMigrate func(db *sql.DB) (*migrate.Migrate, error)
}

func (d *Dialect) rebind(query string) string {
	if !d.Numbered || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *Dialect) uniqueViolation(err error) bool {
	return err != nil && d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}

func (d *Dialect) conflict(err error) error {
	var col string
	if d.ConflictColumn != nil {
		col = d.ConflictColumn(err)
	}
	return &store.ConflictError{Column: col}
}

func (d *Dialect) migrate(db *sql.DB, dir Direction) error {
	if d.NewMigrate == nil {
		return fmt.Errorf("sqlstore: %s has no migrations", d.Name)
	}

	m, err := d.NewMigrate(db)
	if err != nil {
		return fmt.Errorf("sqlstore: init migrations: %w", err)
	}

	switch dir {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	default:
		return fmt.Errorf("sqlstore: unknown migration direction %q", dir)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlstore: migrate %s: %w", dir, err)
	}
	return nil
}
