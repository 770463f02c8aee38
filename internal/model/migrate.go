// internal/model/migrate.go
//
// Versioned schema migration.
//
// Workflow
// --------
//  1. Ensure `schema_migrations (model, version)` exists.
//  2. Read the applied version per model.
//  3. For each declared Schema, run the statements past that version in
//     order and record the new version after each one.
//
// Every statement is CREATE … IF NOT EXISTS or otherwise safe to repeat,
// so a crash between a DDL statement and its version update only causes
// that statement to run again.  Migrate runs at startup and during tenant
// creation, never on the request path.
package model

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	qMigrationsTable = `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            model      VARCHAR(64) PRIMARY KEY,
            version    INT         NOT NULL,
            applied_at TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP
                       ON UPDATE CURRENT_TIMESTAMP
        )`
	qAppliedVersions = `SELECT model, version FROM schema_migrations`
	qRecordVersion   = `
        INSERT INTO schema_migrations (model, version) VALUES (?, ?)
        ON DUPLICATE KEY UPDATE version = VALUES(version)`
)

// Migrate brings every declared model on db up to its latest version and
// returns the number of statements applied.
func (r *Registry) Migrate(ctx context.Context, db *sqlx.DB) (int, error) {
	if _, err := db.ExecContext(ctx, qMigrationsTable); err != nil {
		return 0, fmt.Errorf("migrate: schema_migrations: %w", err)
	}

	rows := make([]struct {
		Model   string `db:"model"`
		Version int    `db:"version"`
	}, 0, len(r.schemas))
	if err := db.SelectContext(ctx, &rows, qAppliedVersions); err != nil {
		return 0, fmt.Errorf("migrate: read versions: %w", err)
	}
	applied := make(map[string]int, len(rows))
	for _, row := range rows {
		applied[row.Model] = row.Version
	}

	var n int
	for _, s := range r.schemas {
		for v := applied[s.Name]; v < s.Version(); v++ {
			if _, err := db.ExecContext(ctx, s.Migrations[v]); err != nil {
				return n, fmt.Errorf("migrate: %s v%d: %w", s.Name, v+1, err)
			}
			if _, err := db.ExecContext(ctx, qRecordVersion, s.Name, v+1); err != nil {
				return n, fmt.Errorf("migrate: record %s v%d: %w", s.Name, v+1, err)
			}
			n++
		}
	}
	return n, nil
}
