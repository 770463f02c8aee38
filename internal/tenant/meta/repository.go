// internal/tenant/meta/repository.go
//
// Tenant-table query helpers.
//
// Context
// -------
// Store is the tenant directory.  Its pool is opened at process start and
// is never routed per tenant.  Callers rely on two error classes:
//
//   - ErrNotFound    – the directory answered and has no such row.
//   - ErrUnavailable – the directory could not answer at all.
//
// The router treats the first as a single bad tenant and the second as a
// directory outage affecting everyone, so the distinction must survive
// wrapping.
//
// Notes
// -----
//   - Column list matches the fields in `Record`; update both together.
//   - Helpers never log; callers decide what to log.
package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/clinic/internal/database"
)

var (
	ErrNotFound    = errors.New("tenant not found")
	ErrUnavailable = errors.New("tenant directory unavailable")
	ErrDBNameTaken = errors.New("physical database name already in use")
	ErrIDTaken     = errors.New("tenant id already in use")
)

const columns = `id, display_name, db_name, active, database_created, config,
               created_at, updated_at`

// Store reads and writes the `tenant` table.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps a pool already connected to the directory database.
func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// DB exposes the directory pool.
func (s *Store) DB() *sqlx.DB { return s.db }

// EnsureSchema creates the `tenant` table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const q = `
        CREATE TABLE IF NOT EXISTS tenant (
            id               VARCHAR(64)  PRIMARY KEY,
            display_name     VARCHAR(255) NOT NULL,
            db_name          VARCHAR(64)  NOT NULL UNIQUE,
            active           TINYINT(1)   NOT NULL DEFAULT 1,
            database_created TINYINT(1)   NOT NULL DEFAULT 0,
            config           JSON         NULL,
            created_at       TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at       TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
                             ON UPDATE CURRENT_TIMESTAMP
        )`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return unavailable(err)
	}
	return nil
}

// Ping checks that the directory answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// ByID fetches one tenant regardless of its active flag.
func (s *Store) ByID(ctx context.Context, id string) (*Record, error) {
	q := `
        SELECT ` + columns + `
        FROM   tenant
        WHERE  id = ?
        LIMIT  1`
	var rec Record
	if err := s.db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}
	return &rec, nil
}

// AllActive returns every active tenant ordered by id.
func (s *Store) AllActive(ctx context.Context) ([]Record, error) {
	q := `
        SELECT ` + columns + `
        FROM   tenant
        WHERE  active = TRUE
        ORDER  BY id`
	var rows []Record
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, unavailable(err)
	}
	return rows, nil
}

// Insert writes a new tenant.  It rejects a db_name or id that another row
// already uses.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	const qTaken = `
        SELECT COALESCE(SUM(id = ?), 0)      AS id_taken,
               COALESCE(SUM(db_name = ?), 0) AS db_taken
        FROM   tenant
        WHERE  id = ? OR db_name = ?`
	var taken struct {
		ID int `db:"id_taken"`
		DB int `db:"db_taken"`
	}
	if err := s.db.GetContext(ctx, &taken, qTaken, rec.ID, rec.DBName, rec.ID, rec.DBName); err != nil {
		return unavailable(err)
	}
	switch {
	case taken.ID > 0:
		return fmt.Errorf("%w: %s", ErrIDTaken, rec.ID)
	case taken.DB > 0:
		return fmt.Errorf("%w: %s", ErrDBNameTaken, rec.DBName)
	}

	if len(rec.Config) == 0 {
		rec.Config = []byte("{}")
	}
	const q = `
        INSERT INTO tenant (id, display_name, db_name, active, database_created, config)
        VALUES (:id, :display_name, :db_name, :active, :database_created, :config)`
	if _, err := s.db.NamedExecContext(ctx, q, rec); err != nil {
		if database.IsDuplicateKey(err) {
			// Lost a race with a concurrent insert.
			return fmt.Errorf("%w: %s", ErrDBNameTaken, rec.DBName)
		}
		return unavailable(err)
	}
	return nil
}

// MarkDatabaseCreated records that the physical database is provisioned.
func (s *Store) MarkDatabaseCreated(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE tenant SET database_created = TRUE WHERE id = ?`, id)
}

// MarkDatabaseDropped clears the provisioned flag.
func (s *Store) MarkDatabaseDropped(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE tenant SET database_created = FALSE WHERE id = ?`, id)
}

// MarkInactive stops the tenant from being routed to.
func (s *Store) MarkInactive(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE tenant SET active = FALSE WHERE id = ?`, id)
}

// MarkActive re-enables routing for the tenant.
func (s *Store) MarkActive(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE tenant SET active = TRUE WHERE id = ?`, id)
}

// Delete removes the tenant row.  Deleting a missing row succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM tenant WHERE id = ?`, id)
}

func (s *Store) exec(ctx context.Context, q string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
