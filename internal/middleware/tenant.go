// internal/middleware/tenant.go
//
// Request-scoped tenant resolver.
//
// Context
// -------
// Tenant runs after auth.Bearer.  It reads the caller's tenant id, asks the
// router for a handle, and attaches that handle to the request context so
// handlers reach the correct database through Handle or GetModel.
//
// Outcomes
// --------
//   - anonymous or tenant-less caller → default handle.
//   - tenant resolved                 → tenant handle.
//   - tenant inactive                 → 403 "tenant inactive".
//   - any other failure               → default handle (already logged).

package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/yanizio/clinic/internal/auth"
	"github.com/yanizio/clinic/internal/database"
	"github.com/yanizio/clinic/internal/model"
	"github.com/yanizio/clinic/internal/tenant"
)

// Resolver is the subset of *tenant.Router used per request.
type Resolver interface {
	Resolve(ctx context.Context, tenantID string) (*database.Handle, error)
}

type handleKey struct{}

// Tenant returns middleware that binds a database handle to each request.
func Tenant(router Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h, err := router.Resolve(r.Context(), auth.TenantID(r.Context()))
			if errors.Is(err, tenant.ErrInactive) {
				http.Error(w, "tenant inactive", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithHandle(r.Context(), h)))
		})
	}
}

// WithHandle returns a context carrying h.
func WithHandle(ctx context.Context, h *database.Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// Handle returns the database handle bound to the request, or nil outside
// the Tenant middleware.
func Handle(ctx context.Context) *database.Handle {
	h, _ := ctx.Value(handleKey{}).(*database.Handle)
	return h
}

// GetModel returns the named model accessor for the request's database.
func GetModel(ctx context.Context, name string) (*model.Accessor, error) {
	h := Handle(ctx)
	if h == nil {
		return nil, model.ErrNotBound
	}
	return model.Get(h, name)
}

// Users returns the credential-aware User model for the request's database.
func Users(ctx context.Context) (*model.Users, error) {
	h := Handle(ctx)
	if h == nil {
		return nil, model.ErrNotBound
	}
	return model.UsersOf(h)
}
