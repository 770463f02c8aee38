// Package health serves liveness and readiness probes.
//
//	/healthz – process is up; never touches a database.
//	/readyz  – directory reachable, the router's last lookup or reconcile
//	           probe succeeded, and default database fully bound.
//
// Readiness returns 503 while degraded so a load balancer stops sending
// traffic, but the router keeps serving default-database requests either
// way.
package health

import (
	"context"
	"net/http"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/yanizio/clinic/internal/database"
)

// Probe timeout for the directory ping.
const Timeout = 2 * time.Second

// Pinger reports whether the tenant directory answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker verifies a handle carries every declared model.
type Checker interface {
	Check(h *database.Handle) error
}

// Router is the subset of *tenant.Router the probes read.
type Router interface {
	Default() *database.Handle
	Len() int
	Healthy() bool
	DirectoryErr() error
}

// Handler serves both probes.
type Handler struct {
	dir    Pinger
	models Checker
	router Router
}

// New returns a Handler.
func New(dir Pinger, models Checker, router Router) *Handler {
	return &Handler{dir: dir, models: models, router: router}
}

// Report is the readiness body.
type Report struct {
	Status        string `json:"status"`
	Directory     string `json:"directory"`
	Lookups       string `json:"lookups"`
	DefaultModels string `json:"default_models"`
	CachedTenants int    `json:"cached_tenants"`
}

// Live answers 200 unconditionally.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready probes the directory and the default handle.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), Timeout)
	defer cancel()

	rep := Report{Status: "ok", Directory: "ok", Lookups: "ok", DefaultModels: "ok", CachedTenants: h.router.Len()}
	code := http.StatusOK

	if err := h.dir.Ping(ctx); err != nil {
		rep.Status, rep.Directory = "degraded", err.Error()
		code = http.StatusServiceUnavailable
	}
	if !h.router.Healthy() {
		rep.Status, rep.Lookups = "degraded", "directory unavailable"
		if err := h.router.DirectoryErr(); err != nil {
			rep.Lookups = err.Error()
		}
		code = http.StatusServiceUnavailable
	}
	if err := h.models.Check(h.router.Default()); err != nil {
		rep.Status, rep.DefaultModels = "degraded", err.Error()
		code = http.StatusServiceUnavailable
	}
	if code != http.StatusOK {
		zap.L().Warn("readiness degraded",
			zap.String("directory", rep.Directory), zap.String("lookups", rep.Lookups),
			zap.String("default_models", rep.DefaultModels))
	}
	writeJSON(w, code, rep)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
