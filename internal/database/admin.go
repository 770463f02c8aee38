// internal/database/admin.go
//
// Server-level administration: create and drop physical databases.
//
// Both statements are written in their IF [NOT] EXISTS form so a retried
// lifecycle step after a partial failure is a no-op rather than an error.
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Admin issues schema-level DDL on a pool with no database selected.
type Admin struct {
	db *sqlx.DB
}

// NewAdmin wraps a server-level pool.
func NewAdmin(db *sqlx.DB) *Admin { return &Admin{db: db} }

// CreateDatabase creates name unless it already exists.
func (a *Admin) CreateDatabase(ctx context.Context, name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	q := "CREATE DATABASE IF NOT EXISTS `" + name + "` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"
	if _, err := a.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

// DropDatabase removes name and every table in it.  Dropping a database
// that does not exist succeeds.
func (a *Admin) DropDatabase(ctx context.Context, name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	if _, err := a.db.ExecContext(ctx, "DROP DATABASE IF EXISTS `"+name+"`"); err != nil {
		return fmt.Errorf("drop database %s: %w", name, err)
	}
	return nil
}

// DatabaseExists reports whether name is present on the server.
func (a *Admin) DatabaseExists(ctx context.Context, name string) (bool, error) {
	const q = `
        SELECT COUNT(*)
        FROM   information_schema.schemata
        WHERE  schema_name = ?`
	var n int
	if err := a.db.GetContext(ctx, &n, q, name); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the server-level pool.
func (a *Admin) Close() error { return a.db.Close() }
