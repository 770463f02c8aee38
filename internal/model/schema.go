// internal/model/schema.go
//
// Declared schemas, one per model.
//
// Context
// -------
// Each Schema is the single source of truth for one model: its accessor
// name, backing table, insertable columns, and an ordered list of DDL
// migrations.  Migration N (1-based) is applied once per database and
// recorded in `schema_migrations`, so adding a column means appending a
// statement, never editing an old one.
//
// Document bodies for appointments, journal entries, moods, and invoices
// are opaque JSON owned by the business layer.  Only the columns the
// tenant core needs to index or join on are broken out.
//
// Notes
// -----
//   - Wrap is optional.  When set it decorates the generic Accessor with
//     model behaviour (the User model adds credential verification).
//   - Oxford commas, two spaces after periods.
package model

// Model names known to the registry.
const (
	UserModel         = "User"
	AppointmentModel  = "Appointment"
	JournalEntryModel = "JournalEntry"
	MoodModel         = "Mood"
	TenantModel       = "Tenant"
	InvoiceModel      = "Invoice"
)

// Schema declares one model.
type Schema struct {
	Name       string
	Table      string
	Columns    []string // insertable columns, id and defaults excluded
	Migrations []string
	Wrap       func(*Accessor) Bound
}

// Version is the schema version after every migration has run.
func (s Schema) Version() int { return len(s.Migrations) }

// Builtin returns the models every clinic database carries.
func Builtin() []Schema {
	return []Schema{
		{
			Name:    UserModel,
			Table:   "users",
			Columns: []string{"email", "password_hash", "display_name", "role"},
			Migrations: []string{`
				CREATE TABLE IF NOT EXISTS users (
				    id            BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
				    email         VARCHAR(255) NOT NULL UNIQUE,
				    password_hash VARCHAR(255) NOT NULL,
				    display_name  VARCHAR(255) NOT NULL DEFAULT '',
				    role          VARCHAR(32)  NOT NULL DEFAULT 'patient',
				    created_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
				    updated_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
				                  ON UPDATE CURRENT_TIMESTAMP
				)`,
			},
			Wrap: func(a *Accessor) Bound { return newUsers(a) },
		},
		{
			Name:    AppointmentModel,
			Table:   "appointments",
			Columns: []string{"clinician_id", "patient_id", "starts_at", "ends_at", "status", "doc"},
			Migrations: []string{`
				CREATE TABLE IF NOT EXISTS appointments (
				    id           BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
				    clinician_id BIGINT UNSIGNED NOT NULL,
				    patient_id   BIGINT UNSIGNED NOT NULL,
				    starts_at    DATETIME     NOT NULL,
				    ends_at      DATETIME     NOT NULL,
				    status       VARCHAR(32)  NOT NULL DEFAULT 'booked',
				    doc          JSON         NULL,
				    created_at   TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
				    INDEX idx_appointments_starts (starts_at)
				)`,
			},
		},
		{
			Name:    JournalEntryModel,
			Table:   "journal_entries",
			Columns: []string{"user_id", "doc"},
			Migrations: []string{`
				CREATE TABLE IF NOT EXISTS journal_entries (
				    id         BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
				    user_id    BIGINT UNSIGNED NOT NULL,
				    doc        JSON      NULL,
				    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				    INDEX idx_journal_user (user_id)
				)`,
			},
		},
		{
			Name:    MoodModel,
			Table:   "moods",
			Columns: []string{"user_id", "score", "doc"},
			Migrations: []string{`
				CREATE TABLE IF NOT EXISTS moods (
				    id          BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
				    user_id     BIGINT UNSIGNED NOT NULL,
				    score       TINYINT   NOT NULL,
				    doc         JSON      NULL,
				    recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				    INDEX idx_moods_user (user_id)
				)`,
			},
		},
		{
			Name:    TenantModel,
			Table:   "tenant_settings",
			Columns: []string{"name", "value"},
			Migrations: []string{`
				CREATE TABLE IF NOT EXISTS tenant_settings (
				    id         BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
				    name       VARCHAR(128) NOT NULL UNIQUE,
				    value      TEXT         NOT NULL,
				    updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP
				                ON UPDATE CURRENT_TIMESTAMP
				)`,
			},
		},
		{
			Name:    InvoiceModel,
			Table:   "invoices",
			Columns: []string{"patient_id", "amount_cents", "currency", "status", "doc"},
			Migrations: []string{`
				CREATE TABLE IF NOT EXISTS invoices (
				    id           BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
				    patient_id   BIGINT UNSIGNED NOT NULL,
				    amount_cents BIGINT      NOT NULL,
				    currency     CHAR(3)     NOT NULL DEFAULT 'USD',
				    status       VARCHAR(32) NOT NULL DEFAULT 'open',
				    doc          JSON        NULL,
				    issued_at    TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP
				)`,
			},
		},
	}
}
