// internal/admin/admin.go
//
// Operator API for tenant lifecycle.
//
// Routes (mounted under /admin)
// -----------------------------
//
//	POST   /tenants                  create tenant and provision its database
//	DELETE /tenants/{id}             drop database, then remove the row
//	POST   /tenants/{id}/database    (re)provision the database
//	DELETE /tenants/{id}/database    drop the database, keep the row
//	POST   /tenants/{id}/deactivate  stop routing, keep the database
//	POST   /tenants/{id}/activate    resume routing
//
// Every response carries the per-step Result so an operator can see which
// half failed and retry only that.
//
// Notes
// -----
//   - The admin mux is served on its own listener (http.admin_listen_addr)
//     which defaults to loopback.
//   - Oxford commas, two spaces after periods.
package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/json-iterator/go"
	"github.com/jmoiron/sqlx/types"

	"github.com/yanizio/clinic/internal/database"
	"github.com/yanizio/clinic/internal/lifecycle"
	"github.com/yanizio/clinic/internal/tenant/meta"
)

// Manager is the lifecycle surface the API drives.
// *lifecycle.Manager satisfies it.
type Manager interface {
	CreateTenant(ctx context.Context, rec *meta.Record) lifecycle.Result
	CreateTenantDatabase(ctx context.Context, tenantID string) lifecycle.Result
	DeleteTenant(ctx context.Context, tenantID string) lifecycle.Result
	DeleteTenantDatabase(ctx context.Context, tenantID string) lifecycle.Result
	DeactivateTenant(ctx context.Context, tenantID string) lifecycle.Result
	ActivateTenant(ctx context.Context, tenantID string) lifecycle.Result
}

// CreateRequest is the POST /tenants body.
type CreateRequest struct {
	ID          string          `json:"id"           validate:"omitempty,max=64"`
	DisplayName string          `json:"display_name" validate:"required,max=255"`
	DBName      string          `json:"db_name"      validate:"omitempty,dbname"`
	Inactive    bool            `json:"inactive"`
	Config      json.RawMessage `json:"config"       validate:"omitempty,json"`
}

// StepView renders one half of a Result.
type StepView struct {
	Attempted bool   `json:"attempted"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// ResultView renders a lifecycle.Result.
type ResultView struct {
	Op       string   `json:"op"`
	TenantID string   `json:"tenant_id"`
	DBName   string   `json:"db_name,omitempty"`
	OK       bool     `json:"ok"`
	Record   StepView `json:"record"`
	Database StepView `json:"database"`
	Evicted  bool     `json:"evicted"`
}

// API holds the handlers.
type API struct {
	mgr      Manager
	validate *validator.Validate
}

// New returns an API bound to mgr.
func New(mgr Manager) *API {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("dbname", func(fl validator.FieldLevel) bool {
		return database.ValidName(fl.Field().String()) == nil
	})
	return &API{mgr: mgr, validate: v}
}

// Routes returns the admin mux.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/tenants", func(r chi.Router) {
		r.Post("/", a.createTenant)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", a.byID(a.mgr.DeleteTenant))
			r.Post("/database", a.byID(a.mgr.CreateTenantDatabase))
			r.Delete("/database", a.byID(a.mgr.DeleteTenantDatabase))
			r.Post("/deactivate", a.byID(a.mgr.DeactivateTenant))
			r.Post("/activate", a.byID(a.mgr.ActivateTenant))
		})
	})
	return r
}

func (a *API) createTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json: "+err.Error())
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := &meta.Record{
		ID:          req.ID,
		DisplayName: req.DisplayName,
		DBName:      req.DBName,
		Active:      !req.Inactive,
		Config:      types.JSONText(req.Config),
	}
	res := a.mgr.CreateTenant(r.Context(), rec)
	code := status(res)
	if code == http.StatusOK {
		code = http.StatusCreated
	}
	writeJSON(w, code, view(res))
}

// byID adapts a lifecycle call keyed by the {id} URL parameter.
func (a *API) byID(op func(context.Context, string) lifecycle.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := op(r.Context(), chi.URLParam(r, "id"))
		writeJSON(w, status(res), view(res))
	}
}

// status maps the first failing step to an HTTP code.
func status(res lifecycle.Result) int {
	err := res.Err()
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, meta.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, meta.ErrDBNameTaken), errors.Is(err, meta.ErrIDTaken):
		return http.StatusConflict
	case errors.Is(err, database.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, meta.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func view(res lifecycle.Result) ResultView {
	return ResultView{
		Op:       res.Op,
		TenantID: res.TenantID,
		DBName:   res.DBName,
		OK:       res.OK(),
		Record:   stepView(res.Record),
		Database: stepView(res.Database),
		Evicted:  res.Evicted,
	}
}

func stepView(s lifecycle.Step) StepView {
	v := StepView{Attempted: s.Attempted, OK: s.OK()}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	return v
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
