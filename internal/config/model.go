// internal/config/model.go
//
// Typed configuration model.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   - optional `.env`                          – dotenv values,
//   - `conf/global.yaml`                       – primary static file,
//   - `CLINIC_`-prefixed environment overrides – highest precedence.
//
// Any string whose value begins with `vault:` is resolved through the
// Vault client before validation, so the model never stores Vault URIs
// once Load returns.
//
// Notes
// -----
//   - Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   - The `Paths` block is filled at runtime; YAML must not try to set it.
//   - Oxford commas, two spaces after periods.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr      string        `koanf:"listen_addr"       validate:"required,hostname_port"`
	AdminListenAddr string        `koanf:"admin_listen_addr" validate:"omitempty,hostname_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

//
// Database section
//

// Tenant credential strategies.
const (
	TenantAuthPassword = "password"
	TenantAuthVault    = "vault"
)

// Database describes the directory pool, the shared default database, and
// how tenant pools authenticate.
//
// The directory DSN is a full go-sql-driver DSN.  Tenant pools are built
// from TenantAddr plus credentials so only the schema name varies between
// tenants.
type Database struct {
	DirectoryDSN    string        `koanf:"directory_dsn"     validate:"required"`
	TenantAddr      string        `koanf:"tenant_addr"       validate:"required,hostname_port"`
	TenantUser      string        `koanf:"tenant_user"       validate:"required_if=TenantAuth password"`
	TenantPassword  string        `koanf:"tenant_password"`
	TenantAuth      string        `koanf:"tenant_auth"       validate:"oneof=password vault"`
	TenantVaultPath string        `koanf:"tenant_vault_path" validate:"required_if=TenantAuth vault"`
	DefaultDB       string        `koanf:"default_db"        validate:"required,dbname"`
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
}

//
// Router section
//

// Router tunes the tenant connection cache.
type Router struct {
	ConnectRetries    int           `koanf:"connect_retries"    validate:"gte=-1"`
	RetryBackoff      time.Duration `koanf:"retry_backoff"`
	LookupTimeout     time.Duration `koanf:"lookup_timeout"     validate:"gte=0"`
	ReconcileInterval time.Duration `koanf:"reconcile_interval"`
}

//
// Auth section
//

// Auth configures bearer-token identity extraction.
type Auth struct {
	JWTSecret   string `koanf:"jwt_secret"   validate:"required,min=16"`
	TenantClaim string `koanf:"tenant_claim" validate:"required"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // CLINIC_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Router   Router   `koanf:"router"`
	Auth     Auth     `koanf:"auth"`
	Paths    Paths    `koanf:"-"`
}

// defaults seeds the koanf tree before YAML and env layers.
func defaults() map[string]any {
	return map[string]any{
		"http.listen_addr":           ":8080",
		"http.admin_listen_addr":     "127.0.0.1:8081",
		"http.shutdown_timeout":      "15s",
		"database.tenant_auth":       TenantAuthPassword,
		"database.default_db":        "clinic_default",
		"database.max_open_conns":    5,
		"database.max_idle_conns":    2,
		"database.conn_max_lifetime": "30m",
		"database.connect_timeout":   "5s",
		"router.connect_retries":     2,
		"router.retry_backoff":       "200ms",
		"router.lookup_timeout":      "5s",
		"router.reconcile_interval":  "1m",
		"auth.tenant_claim":          "tenant_id",
	}
}
