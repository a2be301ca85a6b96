package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/vidtags/internal/cache"
	"github.com/and161185/vidtags/internal/metrics"
	"github.com/and161185/vidtags/internal/model"
	"github.com/and161185/vidtags/internal/repository"
)

// Reconciler sweeps rows orphaned when a process stopped between the junction
// commit and the cleanup commit of a removal.
type Reconciler struct {
	store   repository.Store
	cache   *cache.Cache
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewReconciler constructs Reconciler. m may be nil.
func NewReconciler(store repository.Store, c *cache.Cache, log *zap.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{store: store, cache: c, log: log, metrics: m}
}

// Sweep deletes UserTag rows without triples, then catalog tags without users,
// then videos without savers. Each kind is its own unit of work.
func (r *Reconciler) Sweep(ctx context.Context) (rep model.ReconcileReport, err error) {
	started := time.Now()
	defer func() { r.metrics.Operation("reconcile", started, err) }()

	steps := []struct {
		name string
		dst  *int64
		run  func(ctx context.Context, repos repository.Repositories) (int64, error)
	}{
		{"user_tags", &rep.UserTags, func(ctx context.Context, repos repository.Repositories) (int64, error) {
			return repos.Assoc.DeleteOrphanUserTags(ctx)
		}},
		{"tags", &rep.Tags, func(ctx context.Context, repos repository.Repositories) (int64, error) {
			return repos.Tags.DeleteOrphans(ctx)
		}},
		{"videos", &rep.Videos, func(ctx context.Context, repos repository.Repositories) (int64, error) {
			return repos.Videos.DeleteOrphans(ctx)
		}},
	}
	for _, s := range steps {
		err := r.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			n, err := s.run(ctx, repos)
			*s.dst = n
			return err
		})
		if err := tolerate(r.log, err, s.name, ""); err != nil {
			return rep, err
		}
	}

	if rep.Total() > 0 {
		// the sweep does not know whose entries went stale
		r.cache.EvictScope(scopeTagsOfUser, "")
		r.cache.EvictScope(scopeVideosOfUser, "")
		r.cache.EvictScope(scopeVideoInfo, "")
		r.cache.EvictScope(scopeGlobalTags, "")
		r.metrics.Cleaned(int(rep.UserTags), int(rep.Tags), int(rep.Videos))
		r.log.Info("orphans repaired",
			zap.Int64("user_tags", rep.UserTags),
			zap.Int64("tags", rep.Tags),
			zap.Int64("videos", rep.Videos))
	}
	return rep, nil
}

// Start runs Run in the background. The returned stop cancels it and waits for
// a sweep in progress to return; calling it again is a no-op.
func (r *Reconciler) Start(interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx, interval)
	}()
	return func() {
		cancel()
		<-done
	}
}

// Run sweeps every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("reconcile sweep failed", zap.Error(err))
			}
		}
	}
}
