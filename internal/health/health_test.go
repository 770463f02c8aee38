package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/clinic/internal/database"
	"github.com/yanizio/clinic/internal/model"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubRouter struct {
	def    *database.Handle
	dirErr error
}

func (s stubRouter) Default() *database.Handle { return s.def }
func (s stubRouter) Len() int                  { return 3 }
func (s stubRouter) Healthy() bool             { return s.dirErr == nil }
func (s stubRouter) DirectoryErr() error       { return s.dirErr }

func ready(t *testing.T, h *Handler) (int, Report) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var rep Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	return rec.Code, rep
}

func TestReady(t *testing.T) {
	reg, err := model.NewRegistry(model.Builtin()...)
	require.NoError(t, err)
	bound := database.NewHandle("clinic_default", nil)
	require.NoError(t, reg.Bind(bound))

	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	code, rep := ready(t, New(up, reg, stubRouter{def: bound}))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", rep.Status)
	assert.Equal(t, 3, rep.CachedTenants)
	assert.Equal(t, "ok", rep.Lookups)

	code, rep = ready(t, New(down, reg, stubRouter{def: bound}))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "connection refused", rep.Directory)

	code, rep = ready(t, New(up, reg, stubRouter{def: database.NewHandle("clinic_default", nil)}))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", rep.Status)
	assert.NotEqual(t, "ok", rep.DefaultModels)
}

func TestReadyReportsFailedLookups(t *testing.T) {
	reg, err := model.NewRegistry(model.Builtin()...)
	require.NoError(t, err)
	bound := database.NewHandle("clinic_default", nil)
	require.NoError(t, reg.Bind(bound))
	up := pingFunc(func(context.Context) error { return nil })

	code, rep := ready(t, New(up, reg, stubRouter{def: bound, dirErr: errors.New("lookup timed out")}))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", rep.Status)
	assert.Equal(t, "ok", rep.Directory)
	assert.Equal(t, "lookup timed out", rep.Lookups)
}

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	New(nil, nil, nil).Live(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
