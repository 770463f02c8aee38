// internal/tenant/meta/model.go
//
// `tenant` table row model.
//
// Context
// -------
// The `Record` struct mirrors one row in the directory's **tenant** table,
// the source of truth for whether a clinic exists, which physical database
// it owns, and whether it may be routed to.  It is used by the tenant
// router on cache misses and by the lifecycle manager and admin API.
//
// Schema reference (2026-10-01)
//
//	CREATE TABLE tenant (
//	    id               VARCHAR(64)  PRIMARY KEY,
//	    display_name     VARCHAR(255) NOT NULL,
//	    db_name          VARCHAR(64)  NOT NULL UNIQUE,
//	    active           TINYINT(1)   NOT NULL DEFAULT 1,
//	    database_created TINYINT(1)   NOT NULL DEFAULT 0,
//	    config           JSON         NULL,
//	    created_at       TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    updated_at       TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
//	);
//
// Notes
// -----
//   - `DBName` is immutable once written; no helper updates it.
//   - `Config` holds branding and other tenant-scoped settings.  The
//     directory never parses it; the bytes round-trip unchanged.
//   - This struct contains no behaviour.  Pure data model for sqlx scans.
package meta

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Record mirrors one row in the `tenant` table.
type Record struct {
	ID              string         `db:"id"               json:"id"`
	DisplayName     string         `db:"display_name"     json:"display_name"`
	DBName          string         `db:"db_name"          json:"db_name"`
	Active          bool           `db:"active"           json:"active"`
	DatabaseCreated bool           `db:"database_created" json:"database_created"`
	Config          types.JSONText `db:"config"           json:"config,omitempty"`
	CreatedAt       time.Time      `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"       json:"updated_at"`
}
