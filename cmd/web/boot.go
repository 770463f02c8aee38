package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	json "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/clinic/internal/acl"
	"github.com/yanizio/clinic/internal/admin"
	"github.com/yanizio/clinic/internal/auth"
	"github.com/yanizio/clinic/internal/config"
	"github.com/yanizio/clinic/internal/database"
	"github.com/yanizio/clinic/internal/health"
	"github.com/yanizio/clinic/internal/lifecycle"
	"github.com/yanizio/clinic/internal/middleware"
	"github.com/yanizio/clinic/internal/model"
	"github.com/yanizio/clinic/internal/requestinfo"
	"github.com/yanizio/clinic/internal/tenant"
	"github.com/yanizio/clinic/internal/tenant/meta"
	"github.com/yanizio/clinic/internal/vault"
)

// startupMigrations bounds concurrent tenant migrations at boot.
const startupMigrations = 4

// app owns every long-lived resource built at boot.
type app struct {
	log       *zap.Logger
	directory *meta.Store
	def       *database.Handle
	adminDB   *database.Admin
	models    *model.Registry
	router    *tenant.Router
	lifecycle *lifecycle.Manager
}

func boot(ctx context.Context, cfg *config.Config, sec *vault.Client, log *zap.Logger) (*app, error) {
	opts := database.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	}

	var creds database.Credentials = database.StaticCredentials{
		User:     cfg.Database.TenantUser,
		Password: cfg.Database.TenantPassword,
	}
	if cfg.Database.TenantAuth == config.TenantAuthVault {
		if sec == nil {
			return nil, fmt.Errorf("database.tenant_auth is vault but VAULT_ADDR is not set")
		}
		creds = database.VaultCredentials{Client: sec, Path: cfg.Database.TenantVaultPath, TTL: cfg.Database.ConnMaxLifetime}
	}
	factory := database.NewFactory(cfg.Database.TenantAddr, creds, opts)

	a := &app{log: log}

	// Directory.
	dirDB, err := database.OpenDSN(ctx, cfg.Database.DirectoryDSN, opts)
	if err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}
	a.directory = meta.NewStore(dirDB)
	if err := a.directory.EnsureSchema(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("directory schema: %w", err)
	}
	log.Info("tenant directory online")

	// Models and the default database.
	if a.models, err = model.NewRegistry(model.Builtin()...); err != nil {
		a.close()
		return nil, err
	}
	if a.adminDB, err = factory.OpenAdmin(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.adminDB.CreateDatabase(ctx, cfg.Database.DefaultDB); err != nil {
		a.close()
		return nil, fmt.Errorf("default database: %w", err)
	}
	if a.def, err = factory.Open(ctx, cfg.Database.DefaultDB); err != nil {
		a.close()
		return nil, fmt.Errorf("default database: %w", err)
	}
	if _, err := a.models.Migrate(ctx, a.def.DB()); err != nil {
		a.close()
		return nil, fmt.Errorf("default migrations: %w", err)
	}
	if err := a.models.Bind(a.def); err != nil {
		a.close()
		return nil, fmt.Errorf("default models: %w", err)
	}
	log.Info("default database online", zap.String("db", a.def.Name()), zap.Strings("models", a.models.Names()))

	// Existing tenants.
	a.migrateTenants(ctx, factory)

	// Router and lifecycle.
	retries := cfg.Router.ConnectRetries
	if retries == 0 {
		retries = -1
	}
	a.router = tenant.NewRouter(a.directory, factory, a.models, a.def, tenant.Options{
		Retries:        retries,
		RetryBackoff:   cfg.Router.RetryBackoff,
		LookupTimeout:  cfg.Router.LookupTimeout,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		Logger:         log.Named("router"),
	})
	a.router.Start(ctx, cfg.Router.ReconcileInterval)
	a.lifecycle = lifecycle.New(a.directory, a.router, a.adminDB, factory, a.models, log.Named("lifecycle"))

	return a, nil
}

// migrateTenants brings every active tenant database to the current model
// versions.  A failing tenant is logged and left for the next restart or an
// explicit CreateTenantDatabase.
func (a *app) migrateTenants(ctx context.Context, opener tenant.Opener) {
	recs, err := a.directory.AllActive(ctx)
	if err != nil {
		a.log.Error("startup migration skipped", zap.Bool("directory_unavailable", true), zap.Error(err))
		return
	}

	var g errgroup.Group
	g.SetLimit(startupMigrations)
	for _, rec := range recs {
		if !rec.DatabaseCreated {
			continue
		}
		g.Go(func() error {
			h, err := opener.Open(ctx, rec.DBName)
			if err != nil {
				a.log.Error("tenant migration open failed", zap.String("tenant", rec.ID), zap.Error(err))
				return nil
			}
			defer h.Close()
			n, err := a.models.Migrate(ctx, h.DB())
			if err != nil {
				a.log.Error("tenant migration failed", zap.String("tenant", rec.ID), zap.Error(err))
				return nil
			}
			if n > 0 {
				a.log.Info("tenant migrated", zap.String("tenant", rec.ID), zap.Int("applied", n))
			}
			return nil
		})
	}
	_ = g.Wait()
	a.log.Info("startup migration complete", zap.Int("tenants", len(recs)))
}

func (a *app) publicMux(cfg *config.Config) http.Handler {
	hc := health.New(a.directory, a.models, a.router)

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Security)
	r.Get("/healthz", hc.Live)
	r.Get("/readyz", hc.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Bearer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TenantClaim))
		r.Use(middleware.Tenant(a.router))
		r.Use(requestinfo.Enrich)
		r.Get("/v1/whoami", a.whoami)
		r.With(acl.RequireRole("admin", "clinician")).Get("/v1/users/count", a.countUsers)
	})
	return r
}

func (a *app) adminMux() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer)
	r.Mount("/admin", admin.New(a.lifecycle).Routes())
	return r
}

// whoami reports which database serves the caller.
func (a *app) whoami(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	h := middleware.Handle(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"user":     id.UserID,
		"tenant":   id.TenantID,
		"database": h.Name(),
	})
}

// countUsers reports how many users the caller's clinic has.
func (a *app) countUsers(w http.ResponseWriter, r *http.Request) {
	users, err := middleware.Users(r.Context())
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	n, err := users.Count(r.Context())
	if err != nil {
		a.log.Error("count users", zap.String("db", middleware.Handle(r.Context()).Name()), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{"users": n})
}

// close releases pools in reverse order of creation.  The router never
// closes the default handle, so it is closed here after the router.
func (a *app) close() {
	if a.router != nil {
		a.router.Close()
	}
	if a.def != nil {
		_ = a.def.Close()
	}
	if a.adminDB != nil {
		_ = a.adminDB.Close()
	}
	if a.directory != nil {
		_ = a.directory.DB().Close()
	}
	a.log.Info("pools closed")
}

var _ lifecycle.Migrator = (*model.Registry)(nil)
