// internal/database/factory.go
//
// Connection factory for tenant databases.
//
// Context
// -------
// Every tenant database lives on the same server address; only the schema
// name differs.  The factory combines the fixed address, the credentials
// strategy, and the physical database name into a MySQL DSN, opens a small
// pool, and pings it under the connect timeout.
//
// Credentials
// -----------
//   - StaticCredentials – one shared user/password for every tenant.
//   - VaultCredentials  – user equals the database name and the password
//     is read from `<path>/<name>#password` in Vault KV-v2.  The admin
//     pool uses `<path>/admin#user` and `#password`.
//
// Notes
// -----
//   - No caching and no retries here.  The tenant router owns both.
//   - The factory never mutates shared state; it is safe for concurrent use.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

//
// Credentials strategies
//

// Credentials resolves the user and password for one physical database.
type Credentials interface {
	Credentials(ctx context.Context, dbName string) (user, password string, err error)
}

// StaticCredentials returns the same pair for every database.
type StaticCredentials struct {
	User     string
	Password string
}

// Credentials implements Credentials.
func (s StaticCredentials) Credentials(context.Context, string) (string, string, error) {
	return s.User, s.Password, nil
}

// KVGetter is the subset of the Vault client used for tenant passwords.
type KVGetter interface {
	GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error)
}

// VaultCredentials reads a per-database password from Vault.  The database
// name doubles as the user name.
type VaultCredentials struct {
	Client KVGetter
	Path   string        // e.g. "secret/clinic/tenants"
	TTL    time.Duration // secret cache lifetime
}

// Credentials implements Credentials.  The server-level pool (empty
// dbName) reads both user and password from `<path>/admin`.
func (v VaultCredentials) Credentials(ctx context.Context, dbName string) (string, string, error) {
	base := strings.TrimSuffix(v.Path, "/")
	if dbName == "" {
		user, err := v.Client.GetKV(ctx, base+"/admin", "user", v.TTL)
		if err != nil {
			return "", "", err
		}
		pw, err := v.Client.GetKV(ctx, base+"/admin", "password", v.TTL)
		if err != nil {
			return "", "", err
		}
		return user, pw, nil
	}
	pw, err := v.Client.GetKV(ctx, base+"/"+dbName, "password", v.TTL)
	if err != nil {
		return "", "", err
	}
	return dbName, pw, nil
}

//
// Factory
//

// Factory opens pools against one database server.
type Factory struct {
	addr  string
	creds Credentials
	opts  Options
}

// NewFactory returns a Factory for the server at addr ("host:port").
func NewFactory(addr string, creds Credentials, opts Options) *Factory {
	return &Factory{addr: addr, creds: creds, opts: opts.withDefaults()}
}

// DSN builds the connection string for dbName.  An empty dbName yields a
// server-level DSN with no schema selected.
func (f *Factory) DSN(ctx context.Context, dbName string) (string, error) {
	user, pw, err := f.creds.Credentials(ctx, dbName)
	if err != nil {
		return "", fmt.Errorf("credentials for %q: %w", dbName, err)
	}

	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pw
	cfg.Net = "tcp"
	cfg.Addr = f.addr
	cfg.DBName = dbName
	cfg.ParseTime = true
	cfg.Timeout = f.opts.ConnectTimeout
	cfg.ReadTimeout = f.opts.ReadTimeout
	cfg.WriteTimeout = f.opts.WriteTimeout
	return cfg.FormatDSN(), nil
}

// Open returns a new Handle for dbName.  Failures wrap ErrConnectFailed and
// keep the driver error in the chain.
func (f *Factory) Open(ctx context.Context, dbName string) (*Handle, error) {
	if err := ValidName(dbName); err != nil {
		return nil, err
	}
	dsn, err := f.DSN(ctx, dbName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	db, err := OpenDSN(ctx, dsn, f.opts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbName, err)
	}
	return NewHandle(dbName, db), nil
}

// OpenAdmin returns an Admin bound to a server-level pool.
func (f *Factory) OpenAdmin(ctx context.Context) (*Admin, error) {
	dsn, err := f.DSN(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	opts := f.opts
	opts.MaxOpenConns, opts.MaxIdleConns = 2, 1
	db, err := OpenDSN(ctx, dsn, opts)
	if err != nil {
		return nil, fmt.Errorf("open admin pool: %w", err)
	}
	return NewAdmin(db), nil
}
