package tenant

import (
	"context"
	"errors"

	retry "github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/yanizio/clinic/internal/database"
	"github.com/yanizio/clinic/internal/metrics"
)

// load turns tenant id → cached *database.Handle.  Steps:
//
//  1. Fetch the directory row.
//  2. Reject inactive tenants.
//  3. Open the tenant pool, retrying transient failures with backoff.  Each
//     attempt is bounded by connectTimeout.
//  4. Bind models.
//  5. Cache, unless the tenant was evicted meanwhile.
//
// Every failure is logged here, once per cold load, so callers sharing the
// singleflight do not repeat the entry.
func (r *Router) load(ctx context.Context, tenantID string) (*database.Handle, error) {
	gen := r.generation(tenantID)
	log := r.log.With(zap.String("tenant", tenantID))

	// 1. directory row
	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	rec, err := r.dir.ByID(lookupCtx, tenantID)
	cancel()
	switch {
	case errors.Is(err, ErrNotFound):
		r.setDirectoryHealth(nil)
		log.Info("tenant not found, using default database")
		return nil, err
	case err != nil:
		r.setDirectoryHealth(err)
		log.Error("tenant directory unavailable, using default database",
			zap.Bool("directory_unavailable", true), zap.Error(err))
		return nil, err
	}
	r.setDirectoryHealth(nil)
	log = log.With(zap.String("db", rec.DBName))

	// 2. active flag
	if !rec.Active {
		log.Warn("tenant inactive, rejecting")
		return nil, ErrInactive
	}
	if !rec.DatabaseCreated {
		log.Warn("tenant database not marked created, opening anyway")
	}

	// 3. tenant pool
	var h *database.Handle
	err = retry.Do(
		func() error {
			openCtx, cancel := context.WithTimeout(ctx, r.connectTimeout)
			defer cancel()
			var err error
			h, err = r.opener.Open(openCtx, rec.DBName)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(r.retries+1),
		retry.Delay(r.backoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(transient),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("tenant connect failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		metrics.TenantConnectErrorsTotal.Inc()
		log.Error("tenant connect failed, using default database", zap.Error(err))
		return nil, err
	}

	// 4. model bindings
	if err := r.models.Bind(h); err != nil {
		_ = h.Close()
		log.Error("tenant model binding failed, using default database", zap.Error(err))
		return nil, err
	}

	// 5. cache
	if !r.store(tenantID, gen, &entry{handle: h, record: *rec}) {
		_ = h.Close()
		log.Info("tenant evicted while resolving, discarding connection")
		return nil, errEvicted
	}
	metrics.ActiveTenants.Inc()
	log.Info("tenant connection cached")
	return h, nil
}

// transient reports whether an open failure is worth retrying.  A missing
// schema or an unusable name will not fix itself between attempts.
func transient(err error) bool {
	return !database.IsUnknownDatabase(err) && !errors.Is(err, database.ErrInvalidName)
}
