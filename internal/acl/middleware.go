// internal/acl/middleware.go
//
// Chi middleware that enforces per-tenant roles.  Mount after
// middleware.Tenant so the request already carries its database handle.

package acl

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/clinic/internal/auth"
	"github.com/yanizio/clinic/internal/middleware"
)

// RequireRole ensures the current user holds ANY of the supplied roles in
// the tenant database the request was routed to.
func RequireRole(names ...string) func(http.Handler) http.Handler {
	if len(names) == 0 {
		panic("acl.RequireRole: at least one role name must be supplied")
	}
	allowSet := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowSet[n] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.FromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			h := middleware.Handle(r.Context())
			if h == nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			role, err := UserRole(r.Context(), h, id.UserID)
			switch {
			case errors.Is(err, ErrUnknownUser):
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			case err != nil:
				zap.L().Error("acl user role", zap.String("db", h.Name()), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if _, ok := allowSet[role]; ok {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}
