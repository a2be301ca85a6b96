package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/events"
	"github.com/and161185/vidtags/internal/model"
)

// RefreshVideos re-fetches metadata of existing videos. Ids the provider no
// longer resolves are reported as failed and published as VideoInvalidated;
// the subscription registered by Subscribe then removes them for every user.
func (o *Orchestrator) RefreshVideos(ctx context.Context, videoIDs []string) (res model.BatchResult, err error) {
	ctx, done := o.track(ctx, "refresh_videos", attribute.Int("videos", len(videoIDs)))
	defer func() { done(err) }()

	videos, err := normalizeVideos(videoIDs)
	if err != nil {
		return model.BatchResult{}, err
	}
	if err = o.checkBatch(0, len(videos)); err != nil {
		return model.BatchResult{}, err
	}

	res = model.BatchResult{Succeeded: []string{}, Failed: []model.ItemError{}}
	var invalid []string
	repos := o.store.Repos()
	for _, id := range videos {
		info, ferr := o.meta.FetchInfo(ctx, id)
		if ferr != nil {
			if errors.Is(ferr, context.Canceled) || errors.Is(ferr, context.DeadlineExceeded) {
				err = ferr
				break
			}
			if errors.Is(ferr, errs.ErrInvalidVideoID) {
				invalid = append(invalid, id)
			}
			res.Failed = append(res.Failed, model.ItemError{ID: id, Err: fetchError{ferr}})
			continue
		}
		v := model.NewVideo(id, info, o.now().UTC())
		if verr := v.Validate(); verr != nil {
			res.Failed = append(res.Failed, model.ItemError{ID: id, Err: verr})
			continue
		}
		if uerr := repos.Videos.UpdateInfo(ctx, v); uerr != nil {
			if errors.Is(uerr, errs.ErrNotFound) {
				res.Failed = append(res.Failed, model.ItemError{ID: id, Err: uerr})
				continue
			}
			err = fmt.Errorf("video %s: %w", id, uerr)
			break
		}
		res.Succeeded = append(res.Succeeded, id)
	}

	invalidation{videos: res.Succeeded}.apply(o.cache)
	if len(invalid) > 0 {
		o.log.Info("videos invalidated by provider", zap.Strings("videos", invalid))
		o.publish(events.New(events.VideoInvalidated, "", invalid, nil))
	}
	return res, err
}
