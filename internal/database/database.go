// Package database centralises sqlx connection helpers.  The default driver
// is go-sql-driver/mysql, which also works with MariaDB and Cockroach when
// configured for the MySQL wire protocol.
//
// Public entry points:
//
//	OpenDSN(ctx, dsn, opts)   – process-wide pools (directory, default DB).
//	Factory.Open(ctx, name)   – one pool per tenant database.
//	Factory.OpenAdmin(ctx)    – server-level pool for CREATE / DROP DATABASE.
//
// Every helper pings under the configured connect timeout before returning
// so callers can fail fast.  None of them retry; retry policy belongs to the
// caller.
package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// ErrConnectFailed wraps every open or ping failure.
var ErrConnectFailed = errors.New("database connect failed")

// ErrInvalidName is returned for physical database names that cannot be
// used as a MySQL schema identifier.
var ErrInvalidName = errors.New("invalid database name")

var nameRE = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// Options tunes one pool.  Zero values fall back to DefaultOptions.
type Options struct {
	Driver          string // "mysql" unless a test swaps in sqlmock
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
}

// DefaultOptions mirrors the conservative pool sizes used for per-tenant
// pools: 5 open, 2 idle, 30-minute lifetime, 5 s connect timeout.
func DefaultOptions() Options {
	return Options{
		Driver:          "mysql",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnectTimeout:  5 * time.Second,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Driver == "" {
		o.Driver = d.Driver
	}
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = d.MaxOpenConns
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = d.MaxIdleConns
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = d.ConnMaxLifetime
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	return o
}

// ValidName reports whether name is usable as a physical database name.
func ValidName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// OpenDSN opens and pings a pool for a fully formed DSN.
func OpenDSN(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	opts = opts.withDefaults()

	db, err := sqlx.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	return db, nil
}

// IsUnknownDatabase recognises MySQL error 1049, returned when a pool
// points at a schema that was never created or has been dropped.
func IsUnknownDatabase(err error) bool {
	return mysqlErrNumber(err) == 1049
}

// IsDuplicateKey recognises MySQL error 1062.
func IsDuplicateKey(err error) bool {
	return mysqlErrNumber(err) == 1062
}

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}
