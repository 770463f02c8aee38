// internal/tenant/cache.go
//
// Tenant connection router.
//
// Context
// -------
// Router maps a tenant id to an open Handle for that tenant's physical
// database.  Per tenant id the state moves Unresolved → Resolving → Cached
// and, after Evict, back to Unresolved.
//
// Resolve outcomes
// ----------------
//   - empty id                         → default handle
//   - cached                           → cached handle, no I/O
//   - not found / directory down       → default handle (logged)
//   - open or bind failure             → default handle (logged)
//   - inactive                         → ErrInactive
//
// There is no other outcome.  Router failures never abort a request.
//
// Concurrency
// -----------
// The map is guarded by an RWMutex and only mutated by load and Evict.
// Cold loads go through a singleflight.Group keyed by tenant id, so N
// concurrent first requests share one directory lookup and one open.  A
// slow cold load for tenant A holds no lock that a cache hit for tenant B
// needs.  Evict bumps a per-tenant generation; a load that started before
// the bump discards its handle instead of caching it.
package tenant

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/clinic/internal/database"
	"github.com/yanizio/clinic/internal/metrics"
)

// Static defaults.  Override via config.
const (
	ConnectRetries    = 2
	RetryBackoff      = 200 * time.Millisecond
	LookupTimeout     = 5 * time.Second
	ConnectTimeout    = 10 * time.Second
	ReconcileInterval = time.Minute
)

// Options tunes a Router.  Zero values use the defaults above; a negative
// Retries disables retrying.
type Options struct {
	Retries        int
	RetryBackoff   time.Duration
	LookupTimeout  time.Duration
	ConnectTimeout time.Duration // per open attempt
	Logger         *zap.Logger
}

// Router owns the tenant connection cache.
type Router struct {
	dir    Directory
	opener Opener
	models Binder
	def    *database.Handle
	log    *zap.Logger

	retries        uint
	backoff        time.Duration
	lookupTimeout  time.Duration
	connectTimeout time.Duration

	mu      sync.RWMutex
	entries map[string]*entry
	gen     map[string]uint64
	sfg     singleflight.Group

	healthy atomic.Bool
	dirErr  atomic.Pointer[error]

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRouter constructs a Router.  def is returned whenever tenant context
// cannot be established; the router never closes it.
func NewRouter(dir Directory, opener Opener, models Binder, def *database.Handle, opts Options) *Router {
	r := &Router{
		dir:            dir,
		opener:         opener,
		models:         models,
		def:            def,
		log:            opts.Logger,
		retries:        ConnectRetries,
		backoff:        opts.RetryBackoff,
		lookupTimeout:  opts.LookupTimeout,
		connectTimeout: opts.ConnectTimeout,
		entries:        make(map[string]*entry),
		gen:            make(map[string]uint64),
		stop:           make(chan struct{}),
	}
	if r.log == nil {
		r.log = zap.L()
	}
	switch {
	case opts.Retries < 0:
		r.retries = 0
	case opts.Retries > 0:
		r.retries = uint(opts.Retries)
	}
	if r.backoff <= 0 {
		r.backoff = RetryBackoff
	}
	if r.lookupTimeout <= 0 {
		r.lookupTimeout = LookupTimeout
	}
	if r.connectTimeout <= 0 {
		r.connectTimeout = ConnectTimeout
	}
	r.healthy.Store(true)
	metrics.DirectoryUp.Set(1)
	return r
}

// Default returns the process-wide fallback handle.
func (r *Router) Default() *database.Handle { return r.def }

// Resolve returns the handle for tenantID.  The only error it returns is
// ErrInactive; every other failure yields the default handle.
func (r *Router) Resolve(ctx context.Context, tenantID string) (*database.Handle, error) {
	if tenantID == "" {
		metrics.TenantResolveTotal.WithLabelValues(metrics.OutcomeDefault).Inc()
		return r.def, nil
	}

	if h := r.cached(tenantID); h != nil {
		metrics.TenantResolveTotal.WithLabelValues(metrics.OutcomeCached).Inc()
		return h, nil
	}

	v, err, _ := r.sfg.Do(tenantID, func() (any, error) {
		// Double-check after singleflight barrier.
		if h := r.cached(tenantID); h != nil {
			return h, nil
		}
		// The build is shared by every waiter, so it must not die with the
		// first caller's request.
		return r.load(context.WithoutCancel(ctx), tenantID)
	})

	switch {
	case err == nil:
		metrics.TenantResolveTotal.WithLabelValues(metrics.OutcomeOpened).Inc()
		return v.(*database.Handle), nil
	case errors.Is(err, ErrInactive):
		metrics.TenantResolveTotal.WithLabelValues(metrics.OutcomeInactive).Inc()
		return nil, ErrInactive
	default:
		metrics.TenantResolveTotal.WithLabelValues(metrics.OutcomeDefault).Inc()
		return r.def, nil
	}
}

// Cached reports whether tenantID has a cached handle.
func (r *Router) Cached(tenantID string) bool { return r.cached(tenantID) != nil }

// Len returns the number of cached tenants.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Tenants returns the cached tenant ids in sorted order.
func (r *Router) Tenants() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Evict closes and removes the cached handle for tenantID.  It also
// invalidates any load for tenantID that is still in flight.  It reports
// whether an entry was removed.
func (r *Router) Evict(tenantID string) bool {
	r.mu.Lock()
	ent, ok := r.entries[tenantID]
	delete(r.entries, tenantID)
	r.gen[tenantID]++
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := ent.handle.Close(); err != nil {
		r.log.Warn("tenant handle close failed",
			zap.String("tenant", tenantID), zap.Error(err))
	}
	metrics.TenantEvictTotal.Inc()
	metrics.ActiveTenants.Dec()
	r.log.Info("tenant evicted",
		zap.String("tenant", tenantID), zap.String("db", ent.record.DBName))
	return true
}

// Close stops the reconcile loop and evicts every cached tenant.  The
// default handle stays open.
func (r *Router) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	for _, id := range r.Tenants() {
		r.Evict(id)
	}
}

// Healthy reports whether the directory answered the last lookup or probe.
func (r *Router) Healthy() bool { return r.healthy.Load() }

// DirectoryErr returns the last directory failure, or nil when healthy.
func (r *Router) DirectoryErr() error {
	if p := r.dirErr.Load(); p != nil {
		return *p
	}
	return nil
}

//
// internals
//

func (r *Router) cached(tenantID string) *database.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ent, ok := r.entries[tenantID]; ok {
		return ent.handle
	}
	return nil
}

func (r *Router) generation(tenantID string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen[tenantID]
}

// store caches h unless tenantID was evicted since gen was read.
func (r *Router) store(tenantID string, gen uint64, ent *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen[tenantID] != gen {
		return false
	}
	r.entries[tenantID] = ent
	return true
}

func (r *Router) setDirectoryHealth(err error) {
	if err == nil {
		if !r.healthy.Swap(true) {
			r.log.Info("tenant directory reachable again")
		}
		r.dirErr.Store(nil)
		metrics.DirectoryUp.Set(1)
		return
	}
	r.healthy.Store(false)
	r.dirErr.Store(&err)
	metrics.DirectoryUp.Set(0)
}
