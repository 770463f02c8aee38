// internal/database/handle.go
//
// Handle wraps one opened pool together with the model bindings that
// belong to it.
//
// Context
// -------
// Each tenant lives in its own physical database, so model accessors can
// not be shared between pools.  The binding table sits on the Handle and
// is filled by the model registry exactly once per name; concurrent binders
// observe the first value stored.
//
// Notes
// -----
//   - Close is idempotent.  Only the tenant router and the lifecycle
//     manager close tenant handles; request code never does.
package database

import (
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
)

// Handle is an open, pooled connection to one physical database.
type Handle struct {
	name string
	db   *sqlx.DB

	mu       sync.RWMutex
	bindings map[string]any

	closed atomic.Bool
}

// NewHandle wraps an already opened pool.
func NewHandle(name string, db *sqlx.DB) *Handle {
	return &Handle{
		name:     name,
		db:       db,
		bindings: make(map[string]any, 8),
	}
}

// Name returns the physical database name.
func (h *Handle) Name() string { return h.name }

// DB exposes the underlying pool.
func (h *Handle) DB() *sqlx.DB { return h.db }

// Binding returns the value bound under name, if any.
func (h *Handle) Binding(name string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.bindings[name]
	return v, ok
}

// BindOnce stores v under name unless a value is already present.  It
// returns the value that ends up bound and whether it was already there.
func (h *Handle) BindOnce(name string, v any) (actual any, loaded bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.bindings[name]; ok {
		return cur, true
	}
	h.bindings[name] = v
	return v, false
}

// Bindings reports how many names are bound.
func (h *Handle) Bindings() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bindings)
}

// Closed reports whether Close has run.
func (h *Handle) Closed() bool { return h.closed.Load() }

// Close releases the pool.  Later calls are no-ops.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) || h.db == nil {
		return nil
	}
	return h.db.Close()
}
