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
	"github.com/and161185/vidtags/internal/repository"
)

// errVideoVanished: the Video row was garbage-collected between the existence
// check and the linking transaction.
var errVideoVanished = errors.New("video vanished")

// errCatalogRaced: a concurrent cleanup dropped a catalog tag between Ensure
// and AddUserTags.
var errCatalogRaced = errors.New("catalog tag removed concurrently")

// fetchError marks a metadata provider failure; it fails one item, not the batch.
type fetchError struct{ err error }

func (e fetchError) Error() string { return "fetch metadata: " + e.err.Error() }
func (e fetchError) Unwrap() error { return e.err }

func itemFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe fetchError
	return errors.As(err, &fe) || errors.Is(err, errVideoVanished) || errors.Is(err, errCatalogRaced)
}

type linkResult struct {
	created  bool     // the UserVideo row is new
	tags     []string // triples added
	userTags []string // UserTag rows added
}

// AddTagsToVideos tags every video for the user. Missing Video rows are created
// from provider metadata. Each video is its own unit of work: a video the
// provider rejects is reported in Failed and does not affect the others.
func (o *Orchestrator) AddTagsToVideos(ctx context.Context, userID string, tags, videoIDs []string) (res model.BatchResult, err error) {
	ctx, done := o.track(ctx, "add_tags", attribute.Int("tags", len(tags)), attribute.Int("videos", len(videoIDs)))
	defer func() { done(err) }()

	user, err := model.NormalizeUserID(userID)
	if err != nil {
		return model.BatchResult{}, err
	}
	if tags, err = normalizeTags(tags); err != nil {
		return model.BatchResult{}, err
	}
	videos, err := normalizeVideos(videoIDs)
	if err != nil {
		return model.BatchResult{}, err
	}
	if err = o.checkBatch(len(tags), len(videos)); err != nil {
		return model.BatchResult{}, err
	}

	res, err = o.link(ctx, user, tags, videos)
	if len(res.Succeeded) > 0 {
		o.publish(events.New(events.TagsAdded, user, res.Succeeded, tags))
	}
	return res, err
}

// SaveVideos adds videos to the user's list without tags.
func (o *Orchestrator) SaveVideos(ctx context.Context, userID string, videoIDs []string) (res model.BatchResult, err error) {
	ctx, done := o.track(ctx, "save_videos", attribute.Int("videos", len(videoIDs)))
	defer func() { done(err) }()

	user, err := model.NormalizeUserID(userID)
	if err != nil {
		return model.BatchResult{}, err
	}
	videos, err := normalizeVideos(videoIDs)
	if err != nil {
		return model.BatchResult{}, err
	}
	if err = o.checkBatch(0, len(videos)); err != nil {
		return model.BatchResult{}, err
	}

	res, err = o.link(ctx, user, nil, videos)
	if len(res.Succeeded) > 0 {
		o.publish(events.New(events.VideosSaved, user, res.Succeeded, nil))
	}
	return res, err
}

func (o *Orchestrator) link(ctx context.Context, user string, tags, videos []string) (model.BatchResult, error) {
	res := model.BatchResult{Succeeded: []string{}, Failed: []model.ItemError{}}
	inv := invalidation{users: []string{user}}

	var err error
	for _, v := range videos {
		lr, lerr := o.linkVideo(ctx, user, v, tags)
		if lerr != nil {
			if itemFailure(lerr) {
				o.log.Warn("video skipped", zap.String("user", user), zap.String("video", v), zap.Error(lerr))
				res.Failed = append(res.Failed, model.ItemError{ID: v, Err: lerr})
				continue
			}
			err = fmt.Errorf("video %s: %w", v, lerr)
			break
		}
		res.Succeeded = append(res.Succeeded, v)
		if len(lr.userTags) > 0 {
			inv.catalog = true
		}
	}
	if len(res.Succeeded) > 0 {
		inv.apply(o.cache)
	}
	return res, err
}

func (o *Orchestrator) linkVideo(ctx context.Context, user, videoID string, tags []string) (linkResult, error) {
	have, err := o.store.Repos().Videos.Existing(ctx, []string{videoID})
	if err != nil {
		return linkResult{}, err
	}
	exists := len(have) == 1

	var info *model.VideoInfo
	for attempt := 0; ; attempt++ {
		if !exists && info == nil {
			vi, ferr := o.meta.FetchInfo(ctx, videoID)
			if ferr != nil {
				return linkResult{}, fetchError{ferr}
			}
			info = &vi
		}
		lr, err := o.linkTx(ctx, user, videoID, tags, info)
		if attempt == 0 {
			switch {
			case errors.Is(err, errVideoVanished):
				exists = false
				continue
			case errors.Is(err, errCatalogRaced):
				continue
			}
		}
		return lr, err
	}
}

func (o *Orchestrator) linkTx(ctx context.Context, user, videoID string, tags []string, info *model.VideoInfo) (linkResult, error) {
	var lr linkResult
	err := o.store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		have, err := r.Videos.Existing(ctx, []string{videoID})
		if err != nil {
			return err
		}
		if len(have) == 0 {
			if info == nil {
				return errVideoVanished
			}
			v := model.NewVideo(videoID, *info, o.now().UTC())
			if err := v.Validate(); err != nil {
				return fetchError{err}
			}
			if err := r.Videos.Insert(ctx, v); err != nil && !errors.Is(err, errs.ErrAlreadyExists) {
				return err
			}
		}

		if lr.created, err = r.Assoc.AddUserVideo(ctx, user, videoID); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errVideoVanished
			}
			return err
		}
		if len(tags) == 0 {
			return nil
		}
		if err = r.Tags.Ensure(ctx, tags); err != nil {
			return err
		}
		if lr.tags, err = r.Assoc.AddUserVideoTags(ctx, user, videoID, tags); err != nil {
			return err
		}
		if lr.userTags, err = r.Assoc.AddUserTags(ctx, user, tags); errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("%w: %w", errCatalogRaced, err)
		}
		return err
	})
	if err != nil {
		return linkResult{}, err
	}
	if len(lr.tags) < len(tags) {
		o.log.Debug("tags already present", zap.String("user", user), zap.String("video", videoID),
			zap.Int("requested", len(tags)), zap.Int("added", len(lr.tags)))
	}
	return lr, nil
}
