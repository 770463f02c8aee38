// internal/tenant/entry.go
//
// Tenant cache entry, collaborator contracts, and error taxonomy.
//
// Context
// -------
// A cached entry pairs the directory row seen at load time with the open
// Handle (models already bound).  Entries are created only by Router.load
// and removed only by Router.Evict; no other code touches the map.
//
// Notes
// -----
//   - The router never closes the default handle or the directory pool.
//     Both are process-wide and owned by main.
package tenant

import (
	"context"
	"errors"

	"github.com/yanizio/clinic/internal/database"
	"github.com/yanizio/clinic/internal/tenant/meta"
)

//
// Error taxonomy
//

var (
	// ErrNotFound: the directory has no such tenant.  Resolve falls back.
	ErrNotFound = meta.ErrNotFound

	// ErrInactive: the tenant exists but is deactivated.  Resolve returns
	// it to the caller instead of falling back.
	ErrInactive = errors.New("tenant inactive")

	// ErrConnectFailed: the physical database could not be opened.
	// Resolve falls back.
	ErrConnectFailed = database.ErrConnectFailed

	// ErrDirectoryUnavailable: the directory itself could not answer.
	// Resolve falls back and the router reports itself unhealthy.
	ErrDirectoryUnavailable = meta.ErrUnavailable

	// errEvicted: the tenant was evicted while its connection was being
	// built, so the fresh handle was discarded.
	errEvicted = errors.New("tenant evicted during resolve")
)

//
// Collaborators
//

// Directory is the subset of meta.Store the router reads.
type Directory interface {
	ByID(ctx context.Context, id string) (*meta.Record, error)
	AllActive(ctx context.Context) ([]meta.Record, error)
	Ping(ctx context.Context) error
}

// Opener builds a new Handle for a physical database.  *database.Factory
// satisfies it.
type Opener interface {
	Open(ctx context.Context, dbName string) (*database.Handle, error)
}

// Binder attaches model accessors to a Handle.  *model.Registry satisfies it.
type Binder interface {
	Bind(h *database.Handle) error
}

//
// Cache entry
//

type entry struct {
	handle *database.Handle
	record meta.Record
}
