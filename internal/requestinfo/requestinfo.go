//
//  internal/requestinfo/requestinfo.go
//
//  Per-request metadata: client IP, routed tenant, database, and timing.
//  These structs are inert.  They hold no database handles, so they are
//  safe to log or JSON-encode.
//

package requestinfo

import (
	"context"
	"net"
	"time"
)

// RequestInfo is attached to the request context by Enrich.
type RequestInfo struct {
	ClientIP  net.IP
	TenantID  string // "" for anonymous callers
	Database  string // physical database serving the request
	Timestamp time.Time
}

type ctxKey struct{}

// FromContext returns the RequestInfo attached by Enrich, or nil.
func FromContext(ctx context.Context) *RequestInfo {
	info, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return info
}
