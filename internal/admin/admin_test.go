package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/clinic/internal/lifecycle"
	"github.com/yanizio/clinic/internal/tenant/meta"
)

// fakeManager records calls and returns canned results.
type fakeManager struct {
	calls   []string
	created *meta.Record
	result  func(op, id string) lifecycle.Result
}

func (f *fakeManager) run(op, id string) lifecycle.Result {
	f.calls = append(f.calls, op+":"+id)
	if f.result != nil {
		return f.result(op, id)
	}
	res := lifecycle.Result{Op: op, TenantID: id, DBName: "clinic_" + id}
	res.Record.Attempted = true
	res.Database.Attempted = true
	return res
}

func (f *fakeManager) CreateTenant(_ context.Context, rec *meta.Record) lifecycle.Result {
	if rec.ID == "" {
		rec.ID = "generated"
	}
	f.created = rec
	return f.run(lifecycle.OpCreateTenant, rec.ID)
}

func (f *fakeManager) CreateTenantDatabase(_ context.Context, id string) lifecycle.Result {
	return f.run(lifecycle.OpCreateTenantDatabase, id)
}

func (f *fakeManager) DeleteTenant(_ context.Context, id string) lifecycle.Result {
	return f.run(lifecycle.OpDeleteTenant, id)
}

func (f *fakeManager) DeleteTenantDatabase(_ context.Context, id string) lifecycle.Result {
	return f.run(lifecycle.OpDeleteTenantDatabase, id)
}

func (f *fakeManager) DeactivateTenant(_ context.Context, id string) lifecycle.Result {
	return f.run(lifecycle.OpDeactivateTenant, id)
}

func (f *fakeManager) ActivateTenant(_ context.Context, id string) lifecycle.Result {
	return f.run(lifecycle.OpActivateTenant, id)
}

func do(t *testing.T, mgr Manager, method, path, body string) (*httptest.ResponseRecorder, ResultView) {
	t.Helper()
	rec := httptest.NewRecorder()
	New(mgr).Routes().ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var v ResultView
	_ = json.Unmarshal(rec.Body.Bytes(), &v)
	return rec, v
}

func TestCreateTenant(t *testing.T) {
	mgr := &fakeManager{}
	rec, v := do(t, mgr, http.MethodPost, "/tenants",
		`{"display_name":"Harbor Clinic","config":{"timezone":"Europe/Oslo"}}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, v.OK)
	assert.Equal(t, "generated", v.TenantID)
	require.NotNil(t, mgr.created)
	assert.True(t, mgr.created.Active)
	assert.JSONEq(t, `{"timezone":"Europe/Oslo"}`, mgr.created.Config.String())
}

func TestCreateTenantValidation(t *testing.T) {
	for name, body := range map[string]string{
		"malformed":    `{"display_name":`,
		"missing name": `{"id":"t1"}`,
		"bad db name":  `{"display_name":"x","db_name":"drop table;"}`,
		"long id":      `{"display_name":"x","id":"` + strings.Repeat("a", 65) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			mgr := &fakeManager{}
			rec, _ := do(t, mgr, http.MethodPost, "/tenants", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, mgr.calls)
		})
	}
}

func TestByIDRoutes(t *testing.T) {
	cases := []struct {
		method, path, call string
	}{
		{http.MethodDelete, "/tenants/t1", "delete_tenant:t1"},
		{http.MethodPost, "/tenants/t1/database", "create_tenant_database:t1"},
		{http.MethodDelete, "/tenants/t1/database", "delete_tenant_database:t1"},
		{http.MethodPost, "/tenants/t1/deactivate", "deactivate_tenant:t1"},
		{http.MethodPost, "/tenants/t1/activate", "activate_tenant:t1"},
	}
	for _, tc := range cases {
		t.Run(tc.call, func(t *testing.T) {
			mgr := &fakeManager{}
			rec, v := do(t, mgr, tc.method, tc.path, "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, []string{tc.call}, mgr.calls)
			assert.Equal(t, "t1", v.TenantID)
		})
	}
}

func TestStepFailureStatus(t *testing.T) {
	cases := map[error]int{
		meta.ErrNotFound:            http.StatusNotFound,
		meta.ErrDBNameTaken:         http.StatusConflict,
		meta.ErrUnavailable:         http.StatusServiceUnavailable,
		errors.New("access denied"): http.StatusInternalServerError,
	}
	for cause, want := range cases {
		t.Run(cause.Error(), func(t *testing.T) {
			mgr := &fakeManager{result: func(op, id string) lifecycle.Result {
				res := lifecycle.Result{Op: op, TenantID: id}
				res.Record = lifecycle.Step{Attempted: true}
				res.Database = lifecycle.Step{Attempted: true, Err: cause}
				return res
			}}
			rec, v := do(t, mgr, http.MethodDelete, "/tenants/t1/database", "")
			assert.Equal(t, want, rec.Code)
			assert.False(t, v.OK)
			assert.True(t, v.Record.OK)
			assert.False(t, v.Database.OK)
			assert.Equal(t, cause.Error(), v.Database.Error)
		})
	}
}
