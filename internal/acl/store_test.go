// internal/acl/store_test.go
//
// Unit-tests for acl role lookup and middleware using sqlmock.
//
// Run: go test ./internal/acl -v

package acl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/clinic/internal/auth"
	"github.com/yanizio/clinic/internal/database"
	"github.com/yanizio/clinic/internal/middleware"
	"github.com/yanizio/clinic/internal/model"
)

const roleQuery = "SELECT role FROM `users` WHERE id = ? LIMIT 1"

func mockHandle(t *testing.T) (*database.Handle, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg, err := model.NewRegistry(model.Builtin()...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	h := database.NewHandle("clinic_t1", sqlx.NewDb(db, "mysql"))
	if err := reg.Bind(h); err != nil {
		t.Fatalf("bind: %v", err)
	}
	return h, mock
}

func TestUserRole(t *testing.T) {
	h, mock := mockHandle(t)

	mock.ExpectQuery(regexp.QuoteMeta(roleQuery)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("clinician"))

	got, err := UserRole(context.Background(), h, "42")
	if err != nil {
		t.Fatalf("UserRole error: %v", err)
	}
	if got != "clinician" {
		t.Fatalf("unexpected role: %q", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestUserRoleUnknown(t *testing.T) {
	h, mock := mockHandle(t)

	mock.ExpectQuery(regexp.QuoteMeta(roleQuery)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"role"}))

	if _, err := UserRole(context.Background(), h, "7"); err == nil {
		t.Fatal("expected ErrUnknownUser for missing row")
	}
	if _, err := UserRole(context.Background(), h, "not-a-number"); err == nil {
		t.Fatal("expected ErrUnknownUser for non-numeric id")
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name string
		role string // "" → no row
		anon bool
		want int
	}{
		{name: "allowed", role: "admin", want: http.StatusOK},
		{name: "wrong role", role: "patient", want: http.StatusForbidden},
		{name: "unknown user", want: http.StatusForbidden},
		{name: "anonymous", anon: true, want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, mock := mockHandle(t)
			rows := sqlmock.NewRows([]string{"role"})
			if tc.role != "" {
				rows.AddRow(tc.role)
			}
			if !tc.anon {
				mock.ExpectQuery(regexp.QuoteMeta(roleQuery)).WithArgs(int64(42)).WillReturnRows(rows)
			}

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
			mw := RequireRole("admin", "clinician")(next)

			ctx := middleware.WithHandle(context.Background(), h)
			if !tc.anon {
				ctx = auth.WithIdentity(ctx, auth.Identity{UserID: "42", TenantID: "t1"})
			}
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet SQL expectations: %v", err)
			}
		})
	}
}
