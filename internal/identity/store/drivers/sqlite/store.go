// Package sqlite is the SQLite driver for the identity store, built on
// modernc.org/sqlite (pure Go, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/aussiebroadwan/identity/internal/identity/store/drivers/sqlite/migrations"
	"github.com/aussiebroadwan/identity/internal/identity/store/sqlstore"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect for SQLite. No user lock is needed: the store runs a single
// connection, so transactions never interleave.
var Dialect = &sqlstore.Dialect{
	Name:              "sqlite",
	IsUniqueViolation: isUniqueViolation,
	ConflictColumn:    conflictColumn,
	NewMigrate:        newMigrate,
}

// NewStore opens dsn (a path, "file:" URI or ":memory:") and returns a store.
// Foreign keys are enforced and times are written in SQLite's sortable text
// format so range comparisons work on the stored values.
func NewStore(dsn string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite", withParams(dsn))
	if err != nil {
		return nil, err
	}

	// One connection serializes writers and keeps ":memory:" databases alive
	// for the life of the store.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqlstore.New(db, Dialect), nil
}

func withParams(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_time_format=") {
		params = append(params, "_time_format=sqlite")
	}
	if !strings.Contains(dsn, "foreign_keys") {
		params = append(params, "_pragma=foreign_keys(1)")
	}
	if len(params) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// conflictColumn reads the column out of "UNIQUE constraint failed: users.email".
func conflictColumn(err error) string {
	const marker = "constraint failed: "
	msg := err.Error()
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	target := msg[i+len(marker):]
	if j := strings.IndexAny(target, " ,)"); j >= 0 {
		target = target[:j]
	}
	if k := strings.LastIndexByte(target, '.'); k >= 0 {
		target = target[k+1:]
	}
	return target
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, err
	}

	return migrate.NewWithInstance("iofs", src, "sqlite", driver)
}
