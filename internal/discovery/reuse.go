package discovery

import (
	"context"

	"github.com/jonesrussell/prospect-discovery/internal/cache"
	"github.com/jonesrussell/prospect-discovery/internal/domain"
	"github.com/jonesrussell/prospect-discovery/internal/logger"
	"github.com/jonesrussell/prospect-discovery/internal/telemetry"
	"github.com/jonesrussell/prospect-discovery/internal/websets"
)

// Reuser decides whether a search request can ride on a previously
// created remote job instead of paying for a new one. Reuse is an
// optimization: every failure path degrades to a cache miss, never to
// a request failure.
type Reuser struct {
	api     websets.API
	store   cache.Store
	metrics *telemetry.Metrics
	logger  logger.Logger
}

// NewReuser creates a Reuser.
func NewReuser(api websets.API, store cache.Store, metrics *telemetry.Metrics, log logger.Logger) *Reuser {
	return &Reuser{api: api, store: store, metrics: metrics, logger: log}
}

// FindReusable returns the remote job id to reuse for the request, or
// false when a new job must be created. The decision is based on the
// cached fingerprint entry plus the job's live remote state.
func (r *Reuser) FindReusable(ctx context.Context, req *domain.SearchRequest) (string, bool) {
	fp := cache.Fingerprint(req)

	entry, ok, err := r.store.Get(ctx, fp)
	if err != nil {
		r.logger.Warn("Fingerprint cache read failed, treating as miss", logger.Error(err))
		r.metrics.CacheMisses.Inc()
		return "", false
	}
	if !ok {
		r.metrics.CacheMisses.Inc()
		return "", false
	}

	ws, err := r.api.GetWebset(ctx, entry.WebsetID)
	if err != nil {
		// The cached job is gone or unreachable; evict so the next
		// request does not repeat the dead lookup.
		r.logger.Warn("Cached remote job inaccessible, evicting",
			logger.String("webset_id", entry.WebsetID),
			logger.Error(err),
		)
		r.evict(ctx, fp)
		return "", false
	}

	switch {
	case websets.IsRunning(ws.Status):
		// Still producing results; safe to keep streaming from it.
		r.touch(ctx, fp)
		r.metrics.CacheHits.Inc()
		return entry.WebsetID, true

	case websets.IsTerminalSuccess(ws.Status):
		if ws.Progress().Found >= req.TargetCount {
			r.touch(ctx, fp)
			r.metrics.CacheHits.Inc()
			return entry.WebsetID, true
		}
		// Completed but under-provisioned for the new target. The
		// provider surface offers no "extend to N results", so the
		// cached job is abandoned and a new one created.
		r.logger.Info("Cached job under-provisioned for new target",
			logger.String("webset_id", entry.WebsetID),
			logger.Int("found", ws.Progress().Found),
			logger.Int("target", req.TargetCount),
		)
		r.metrics.CacheMisses.Inc()
		return "", false

	case websets.IsTerminalFailure(ws.Status):
		r.evict(ctx, fp)
		return "", false

	default:
		// A status this build does not recognize. Keep the entry (a
		// later poll may resolve it) but do not reuse the job.
		r.logger.Warn("Cached job in unrecognized remote state",
			logger.String("webset_id", entry.WebsetID),
			logger.String("status", ws.Status),
		)
		r.metrics.CacheMisses.Inc()
		return "", false
	}
}

func (r *Reuser) touch(ctx context.Context, fp string) {
	if err := r.store.Touch(ctx, fp); err != nil {
		r.logger.Warn("Fingerprint cache touch failed", logger.Error(err))
	}
}

func (r *Reuser) evict(ctx context.Context, fp string) {
	if err := r.store.Remove(ctx, fp); err != nil {
		r.logger.Warn("Fingerprint cache eviction failed", logger.Error(err))
	}
	r.metrics.CacheEvictions.Inc()
	r.metrics.CacheMisses.Inc()
}
