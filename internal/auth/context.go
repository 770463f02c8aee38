// internal/auth/context.go
//
// Caller identity carried on the request context.
//
// Usage
// -----
//
//	// Attach the caller after token verification.
//	ctx = auth.WithIdentity(ctx, auth.Identity{UserID: "42", TenantID: "t1"})
//
//	// Downstream code retrieves it.
//	id, ok := auth.FromContext(ctx)
//
// Notes
// -----
//   - An anonymous request has no Identity; FromContext returns the zero
//     value and false.
//   - Oxford commas, two spaces after periods.

package auth

import "context"

// Identity is the authenticated caller.  TenantID may be empty for users
// that belong to no clinic.
type Identity struct {
	UserID   string
	TenantID string
}

// identityKey is unexported to avoid context-key collisions.
type identityKey struct{}

// WithIdentity returns a new context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext extracts the Identity from ctx.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// TenantID is a shorthand returning "" for anonymous callers.
func TenantID(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.TenantID
}
