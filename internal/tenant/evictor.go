// evictor.go houses the reconcile loop for Router.  Every interval it:
//
//   - probes the directory and updates Healthy / directory_up
//   - evicts cached tenants that are no longer listed as active
//
// Connections have no idle TTL.  A cached tenant leaves the cache only
// through Evict: on deletion, on deactivation, or here.
package tenant

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Start runs Reconcile every interval until ctx is done or Close is called.
func (r *Router) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = ReconcileInterval
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-t.C:
				_ = r.Reconcile(ctx)
			}
		}
	}()
}

// Reconcile probes the directory and drops cached tenants that are no
// longer active.  It returns the directory error, if any; cached entries
// are left alone while the directory is unreachable.
func (r *Router) Reconcile(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	if err := r.dir.Ping(ctx); err != nil {
		r.setDirectoryHealth(err)
		r.log.Error("tenant directory probe failed",
			zap.Bool("directory_unavailable", true), zap.Error(err))
		return err
	}

	active, err := r.dir.AllActive(ctx)
	if err != nil {
		r.setDirectoryHealth(err)
		r.log.Error("tenant directory list failed",
			zap.Bool("directory_unavailable", true), zap.Error(err))
		return err
	}
	r.setDirectoryHealth(nil)

	keep := make(map[string]struct{}, len(active))
	for _, rec := range active {
		keep[rec.ID] = struct{}{}
	}
	for _, id := range r.Tenants() {
		if _, ok := keep[id]; !ok {
			r.log.Info("tenant no longer active, evicting", zap.String("tenant", id))
			r.Evict(id)
		}
	}
	return nil
}
