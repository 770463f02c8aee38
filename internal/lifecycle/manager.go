// internal/lifecycle/manager.go
//
// Tenant lifecycle manager.
//
// Context
// -------
// The manager provisions and destroys physical tenant databases and keeps
// the directory flags in step.  It never touches the router's cache map;
// cached connections are closed through Router.Evict.
//
// Ordering
// --------
//   - create:  CREATE DATABASE IF NOT EXISTS → open throwaway pool →
//     migrate every model → close → mark database_created.
//   - delete:  mark inactive → evict cached connection → DROP DATABASE
//     IF EXISTS → clear database_created.  The row goes inactive first so
//     a racing request cannot re-cache a pool on a database about to
//     vanish, and the eviction runs before the drop so no warm handle is
//     left pointing at it.
//
// Every step is safe to repeat, so a retried call after a partial failure
// converges instead of erroring.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/clinic/internal/database"
	"github.com/yanizio/clinic/internal/metrics"
	"github.com/yanizio/clinic/internal/tenant"
	"github.com/yanizio/clinic/internal/tenant/meta"
)

//
// Collaborators
//

// Directory is the subset of meta.Store the manager writes.
type Directory interface {
	ByID(ctx context.Context, id string) (*meta.Record, error)
	Insert(ctx context.Context, rec *meta.Record) error
	MarkDatabaseCreated(ctx context.Context, id string) error
	MarkDatabaseDropped(ctx context.Context, id string) error
	MarkInactive(ctx context.Context, id string) error
	MarkActive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Evictor closes a tenant's cached connection.  *tenant.Router satisfies it.
type Evictor interface {
	Evict(tenantID string) bool
}

// Admin creates and drops physical databases.  *database.Admin satisfies it.
type Admin interface {
	CreateDatabase(ctx context.Context, name string) error
	DropDatabase(ctx context.Context, name string) error
}

// Migrator forces every declared model's table to exist.
// *model.Registry satisfies it.
type Migrator interface {
	Migrate(ctx context.Context, db *sqlx.DB) (int, error)
}

//
// Manager
//

// Manager runs tenant lifecycle operations.
type Manager struct {
	dir    Directory
	router Evictor
	admin  Admin
	opener tenant.Opener
	models Migrator
	log    *zap.Logger
}

// New returns a Manager.  A nil logger uses zap.L().
func New(dir Directory, router Evictor, admin Admin, opener tenant.Opener, models Migrator, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.L()
	}
	return &Manager{dir: dir, router: router, admin: admin, opener: opener, models: models, log: log}
}

// CreateTenant registers rec in the directory and provisions its database.
// An empty ID gets a UUID; an empty DBName is derived from the ID.
func (m *Manager) CreateTenant(ctx context.Context, rec *meta.Record) Result {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.DBName == "" {
		rec.DBName = tenant.PhysicalName(rec.ID)
	}
	res := Result{Op: OpCreateTenant, TenantID: rec.ID, DBName: rec.DBName}

	if err := database.ValidName(rec.DBName); err != nil {
		res.Record.fail(err)
		return m.finish(res)
	}
	rec.DatabaseCreated = false
	if err := m.dir.Insert(ctx, rec); err != nil {
		res.Record.fail(err)
		return m.finish(res)
	}
	res.Record.done()

	m.provision(ctx, rec, &res)
	return m.finish(res)
}

// CreateTenantDatabase provisions the physical database for an existing
// tenant and marks it created.  Calling it again is harmless.
func (m *Manager) CreateTenantDatabase(ctx context.Context, tenantID string) Result {
	res := Result{Op: OpCreateTenantDatabase, TenantID: tenantID}

	rec, err := m.dir.ByID(ctx, tenantID)
	if err != nil {
		res.Record.fail(err)
		return m.finish(res)
	}
	res.DBName = rec.DBName

	m.provision(ctx, rec, &res)
	return m.finish(res)
}

// provision runs the database half, then records success in the directory.
func (m *Manager) provision(ctx context.Context, rec *meta.Record, res *Result) {
	if err := m.createAndMigrate(ctx, rec.DBName); err != nil {
		res.Database.fail(err)
		return
	}
	res.Database.done()

	if err := m.dir.MarkDatabaseCreated(ctx, rec.ID); err != nil {
		res.Record.fail(err)
		return
	}
	rec.DatabaseCreated = true
	res.Record.done()
}

func (m *Manager) createAndMigrate(ctx context.Context, dbName string) error {
	if err := m.admin.CreateDatabase(ctx, dbName); err != nil {
		return err
	}
	h, err := m.opener.Open(ctx, dbName)
	if err != nil {
		return err
	}
	defer h.Close()

	n, err := m.models.Migrate(ctx, h.DB())
	if err != nil {
		return fmt.Errorf("initialise %s: %w", dbName, err)
	}
	m.log.Info("tenant database initialised", zap.String("db", dbName), zap.Int("migrations", n))
	return nil
}

// DeleteTenantDatabase deactivates the tenant, evicts its cached
// connection, and drops its physical database.  The directory row stays.
func (m *Manager) DeleteTenantDatabase(ctx context.Context, tenantID string) Result {
	res := Result{Op: OpDeleteTenantDatabase, TenantID: tenantID}
	m.teardown(ctx, tenantID, &res)
	return m.finish(res)
}

// DeleteTenant drops the tenant's database and then removes its row.  The
// row is kept when the drop fails so the operation can be retried.
func (m *Manager) DeleteTenant(ctx context.Context, tenantID string) Result {
	res := Result{Op: OpDeleteTenant, TenantID: tenantID}
	if !m.teardown(ctx, tenantID, &res) {
		return m.finish(res)
	}
	if err := m.dir.Delete(ctx, tenantID); err != nil {
		res.Record.fail(err)
	}
	return m.finish(res)
}

// teardown reports whether every step succeeded.
func (m *Manager) teardown(ctx context.Context, tenantID string, res *Result) bool {
	rec, err := m.dir.ByID(ctx, tenantID)
	if err != nil {
		res.Record.fail(err)
		m.evictOrphan(tenantID, err, res)
		return false
	}
	res.DBName = rec.DBName

	if err := m.dir.MarkInactive(ctx, tenantID); err != nil {
		res.Record.fail(err)
		m.evictOrphan(tenantID, err, res)
		return false
	}

	res.Evicted = m.router.Evict(tenantID)

	if err := m.admin.DropDatabase(ctx, rec.DBName); err != nil {
		res.Database.fail(err)
		res.Record.done()
		return false
	}
	res.Database.done()

	if err := m.dir.MarkDatabaseDropped(ctx, tenantID); err != nil {
		res.Record.fail(err)
		return false
	}
	res.Record.done()
	return true
}

// DeactivateTenant marks the tenant inactive and closes its cached
// connection.  Its database is left in place.
func (m *Manager) DeactivateTenant(ctx context.Context, tenantID string) Result {
	res := Result{Op: OpDeactivateTenant, TenantID: tenantID}
	if err := m.dir.MarkInactive(ctx, tenantID); err != nil {
		res.Record.fail(err)
		m.evictOrphan(tenantID, err, &res)
		return m.finish(res)
	}
	res.Record.done()
	res.Evicted = m.router.Evict(tenantID)
	return m.finish(res)
}

// ActivateTenant re-enables routing.  The next request opens a fresh pool.
func (m *Manager) ActivateTenant(ctx context.Context, tenantID string) Result {
	res := Result{Op: OpActivateTenant, TenantID: tenantID}
	if err := m.dir.MarkActive(ctx, tenantID); err != nil {
		res.Record.fail(err)
	} else {
		res.Record.done()
	}
	return m.finish(res)
}

// evictOrphan closes a cached connection whose directory row is gone.  A
// pool can outlive its row when the row is removed outside the manager.
func (m *Manager) evictOrphan(tenantID string, err error, res *Result) {
	if errors.Is(err, meta.ErrNotFound) {
		res.Evicted = m.router.Evict(tenantID)
	}
}

func (m *Manager) finish(res Result) Result {
	fields := []zap.Field{
		zap.String("op", res.Op),
		zap.String("tenant", res.TenantID),
		zap.String("db", res.DBName),
		zap.Bool("evicted", res.Evicted),
	}
	if err := res.Err(); err != nil {
		metrics.TenantLifecycleTotal.WithLabelValues(res.Op, "error").Inc()
		m.log.Error("tenant lifecycle step failed", append(fields, zap.Error(err))...)
		return res
	}
	metrics.TenantLifecycleTotal.WithLabelValues(res.Op, "ok").Inc()
	m.log.Info("tenant lifecycle op complete", fields...)
	return res
}
