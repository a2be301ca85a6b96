// Package service holds the consistency engine (Orchestrator) and the read side
// (QueryService, UserService, Reconciler).
package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/and161185/vidtags/internal/cache"
	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/events"
	"github.com/and161185/vidtags/internal/metadata"
	"github.com/and161185/vidtags/internal/metrics"
	"github.com/and161185/vidtags/internal/model"
	"github.com/and161185/vidtags/internal/repository"
)

const tracerName = "github.com/and161185/vidtags/internal/service"

// DefaultMaxBatch bounds tags×videos of one call.
const DefaultMaxBatch = 1000

// Deps are the collaborators of the Orchestrator. Metrics and Events may be nil.
type Deps struct {
	Store    repository.Store
	Metadata metadata.Provider
	Cache    *cache.Cache
	Events   events.Publisher
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	MaxBatch int
}

// Orchestrator runs every mutating workflow over the association relations.
//
// A removal runs in two phases: the junction rows are deleted and committed,
// then the unused sets are computed against committed state and the leaf rows
// are deleted with guarded statements. Cache eviction and event publication
// follow the cleanup phase. No lock is held across phases; a concurrent re-add
// between them is tolerated by the guards, and rows orphaned by a crash between
// them are repaired by the Reconciler.
type Orchestrator struct {
	store    repository.Store
	meta     metadata.Provider
	cache    *cache.Cache
	pub      events.Publisher
	log      *zap.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	maxBatch int
	now      func() time.Time
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(d Deps) *Orchestrator {
	if d.MaxBatch <= 0 {
		d.MaxBatch = DefaultMaxBatch
	}
	if d.Cache == nil {
		d.Cache = cache.New(d.Metrics)
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Orchestrator{
		store:    d.Store,
		meta:     d.Metadata,
		cache:    d.Cache,
		pub:      d.Events,
		log:      d.Log,
		metrics:  d.Metrics,
		tracer:   otel.Tracer(tracerName),
		maxBatch: d.MaxBatch,
		now:      time.Now,
	}
}

// Subscribe registers the secondary cleanup: an invalidated video is removed
// for every user.
func (o *Orchestrator) Subscribe(d *events.Dispatcher) {
	d.Subscribe(events.VideoInvalidated, func(ctx context.Context, e events.Event) error {
		_, err := o.RemoveVideosGlobally(ctx, e.VideoIDs)
		return err
	})
}

// track opens a span and returns the function recording the outcome.
func (o *Orchestrator) track(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := o.tracer.Start(ctx, "orchestrator."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		o.metrics.Operation(op, started, err)
	}
}

func (o *Orchestrator) publish(e events.Event) {
	if o.pub != nil {
		o.pub.Publish(e)
	}
}

func (o *Orchestrator) checkBatch(tags, videos int) error {
	n := videos
	if tags > 0 {
		n = tags * videos
	}
	if n > o.maxBatch {
		return fmt.Errorf("%w: batch too large (%d > %d)", errs.ErrInvalidInput, n, o.maxBatch)
	}
	return nil
}

func requireNonEmpty(name string, xs []string) error {
	if len(xs) == 0 {
		return fmt.Errorf("%w: no %s given", errs.ErrInvalidInput, name)
	}
	return nil
}

func normalizeTags(raw []string) ([]string, error) {
	tags, err := model.NormalizeTags(raw)
	if err != nil {
		return nil, err
	}
	return tags, requireNonEmpty("tags", tags)
}

func normalizeVideos(raw []string) ([]string, error) {
	videos, err := model.NormalizeVideoIDs(raw)
	if err != nil {
		return nil, err
	}
	return videos, requireNonEmpty("videos", videos)
}
