// internal/model/accessor.go
//
// Generic sqlx-backed accessor for one model on one database.
//
// Queries are built once at bind time from the Schema, so the request path
// never concatenates table names.  Callers scan into their own structs
// using `db:"…"` tags; the accessor does not know row shapes.
package model

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Bound is any value the registry stores on a Handle.  *Accessor and the
// model-specific wrappers that embed it satisfy it.
type Bound interface {
	unwrap() *Accessor
}

// Accessor reads and writes one table on one physical database.
type Accessor struct {
	schema Schema
	db     *sqlx.DB

	qGet    string
	qSelect string
	qInsert string
	qDelete string
	qCount  string
}

func newAccessor(s Schema, db *sqlx.DB) *Accessor {
	t := "`" + s.Table + "`"
	named := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		named[i] = ":" + c
	}
	return &Accessor{
		schema:  s,
		db:      db,
		qGet:    "SELECT * FROM " + t + " WHERE id = ? LIMIT 1",
		qSelect: "SELECT * FROM " + t,
		qInsert: "INSERT INTO " + t + " (" + strings.Join(s.Columns, ", ") + ") VALUES (" +
			strings.Join(named, ", ") + ")",
		qDelete: "DELETE FROM " + t + " WHERE id = ?",
		qCount:  "SELECT COUNT(*) FROM " + t,
	}
}

func (a *Accessor) unwrap() *Accessor { return a }

// Name returns the model name.
func (a *Accessor) Name() string { return a.schema.Name }

// Table returns the backing table.
func (a *Accessor) Table() string { return a.schema.Table }

// DB returns the pool this accessor is bound to.
func (a *Accessor) DB() *sqlx.DB { return a.db }

// Get scans the row with id into dest.  A missing row yields sql.ErrNoRows.
func (a *Accessor) Get(ctx context.Context, dest any, id int64) error {
	return a.db.GetContext(ctx, dest, a.qGet, id)
}

// Select scans every row matching where into dest (a slice pointer).  An
// empty where selects the whole table.
func (a *Accessor) Select(ctx context.Context, dest any, where string, args ...any) error {
	q := a.qSelect
	if where != "" {
		q += " WHERE " + where
	}
	return a.db.SelectContext(ctx, dest, q, args...)
}

// Insert writes arg (a struct with db tags or a map) and returns the new id.
func (a *Accessor) Insert(ctx context.Context, arg any) (int64, error) {
	res, err := a.db.NamedExecContext(ctx, a.qInsert, arg)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Delete removes the row with id and reports whether it existed.
func (a *Accessor) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := a.db.ExecContext(ctx, a.qDelete, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Count returns the number of rows in the table.
func (a *Accessor) Count(ctx context.Context) (int64, error) {
	var n int64
	err := a.db.GetContext(ctx, &n, a.qCount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}
