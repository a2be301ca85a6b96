package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/events"
	"github.com/and161185/vidtags/internal/model"
	"github.com/and161185/vidtags/internal/repository"
)

// RemoveTagsFromVideos deletes the tags × videos triples of the user and drops
// the user's tags nothing references anymore. Videos stay saved.
func (o *Orchestrator) RemoveTagsFromVideos(ctx context.Context, userID string, tags, videoIDs []string) (res model.Removal, err error) {
	ctx, done := o.track(ctx, "remove_tags", attribute.Int("tags", len(tags)), attribute.Int("videos", len(videoIDs)))
	defer func() { done(err) }()

	user, err := model.NormalizeUserID(userID)
	if err != nil {
		return model.Removal{}, err
	}
	if tags, err = normalizeTags(tags); err != nil {
		return model.Removal{}, err
	}
	videos, err := normalizeVideos(videoIDs)
	if err != nil {
		return model.Removal{}, err
	}
	if err = o.checkBatch(len(tags), len(videos)); err != nil {
		return model.Removal{}, err
	}

	var removed []model.UserVideoTag
	err = o.store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		var err error
		removed, err = r.Assoc.DeleteUserVideoTags(ctx, user, tags, videos)
		return err
	})
	if err != nil {
		return model.Removal{}, err
	}

	res = model.Removal{Tags: tagsOf(removed), Videos: []string{}}
	var plan cleanupPlan
	plan.addUserTags(user, tags)
	return o.finishUserRemoval(ctx, user, res, plan, events.TagsRemoved, videos)
}

// RemoveAllTagsFromVideos deletes every triple of the user on the videos and
// returns the distinct tags removed. Videos stay saved.
func (o *Orchestrator) RemoveAllTagsFromVideos(ctx context.Context, userID string, videoIDs []string) (res model.Removal, err error) {
	ctx, done := o.track(ctx, "remove_all_tags", attribute.Int("videos", len(videoIDs)))
	defer func() { done(err) }()

	user, err := model.NormalizeUserID(userID)
	if err != nil {
		return model.Removal{}, err
	}
	videos, err := normalizeVideos(videoIDs)
	if err != nil {
		return model.Removal{}, err
	}
	if err = o.checkBatch(0, len(videos)); err != nil {
		return model.Removal{}, err
	}

	var removed []model.UserVideoTag
	err = o.store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		var err error
		removed, err = r.Assoc.DeleteAllUserVideoTagsForVideos(ctx, user, videos)
		return err
	})
	if err != nil {
		return model.Removal{}, err
	}

	res = model.Removal{Tags: tagsOf(removed), Videos: []string{}}
	var plan cleanupPlan
	plan.addUserTags(user, res.Tags)
	return o.finishUserRemoval(ctx, user, res, plan, events.TagsRemoved, videos)
}

// RemoveVideosFromUser unlinks videos from the user together with their tags,
// then deletes the Video rows nobody saves anymore.
func (o *Orchestrator) RemoveVideosFromUser(ctx context.Context, userID string, videoIDs []string) (res model.Removal, err error) {
	ctx, done := o.track(ctx, "remove_videos", attribute.Int("videos", len(videoIDs)))
	defer func() { done(err) }()

	user, err := model.NormalizeUserID(userID)
	if err != nil {
		return model.Removal{}, err
	}
	videos, err := normalizeVideos(videoIDs)
	if err != nil {
		return model.Removal{}, err
	}
	if err = o.checkBatch(0, len(videos)); err != nil {
		return model.Removal{}, err
	}

	var (
		removed  []model.UserVideoTag
		unlinked []string
	)
	err = o.store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		var err error
		if removed, err = r.Assoc.DeleteAllUserVideoTagsForVideos(ctx, user, videos); err != nil {
			return err
		}
		unlinked, err = r.Assoc.DeleteUserVideos(ctx, user, videos)
		return err
	})
	if err != nil {
		return model.Removal{}, err
	}

	res = model.Removal{Tags: tagsOf(removed), Videos: unlinked}
	plan := cleanupPlan{videos: unlinked}
	plan.addUserTags(user, res.Tags)
	return o.finishUserRemoval(ctx, user, res, plan, events.VideosRemoved, unlinked)
}

// finishUserRemoval runs the cleanup phase of a single-user removal, evicts the
// user's cache entries and publishes.
func (o *Orchestrator) finishUserRemoval(ctx context.Context, user string, res model.Removal, plan cleanupPlan, typ events.Type, videos []string) (model.Removal, error) {
	cl, err := o.cleanup(ctx, plan)
	res.Cleanup = cl
	inv := invalidation{
		users:   []string{user},
		videos:  cl.Videos,
		catalog: len(cl.UserTags) > 0,
	}
	inv.apply(o.cache)
	if err != nil {
		return res, err
	}

	if len(res.Tags) > 0 || len(res.Videos) > 0 {
		o.publish(events.New(typ, user, videos, res.Tags))
	}
	if len(cl.Videos) > 0 {
		o.publish(events.New(events.VideosDeleted, "", cl.Videos, nil))
	}
	return res, nil
}

// RemoveUserEntirely deletes every association of the user and the User row,
// then garbage-collects the tags and videos only the user referenced.
func (o *Orchestrator) RemoveUserEntirely(ctx context.Context, userID string) (res model.Removal, err error) {
	ctx, done := o.track(ctx, "remove_user")
	defer func() { done(err) }()

	user, err := model.NormalizeUserID(userID)
	if err != nil {
		return model.Removal{}, err
	}

	var (
		triples  int64
		userTags []string
		videos   []string
	)
	err = o.store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		var err error
		if triples, err = r.Assoc.DeleteAllUserVideoTagsOfUser(ctx, user); err != nil {
			return err
		}
		if userTags, err = r.Assoc.DeleteAllUserTags(ctx, user); err != nil {
			return err
		}
		if videos, err = r.Assoc.DeleteAllUserVideos(ctx, user); err != nil {
			return err
		}
		if err = r.Users.Delete(ctx, user); err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return model.Removal{}, err
	}
	o.log.Info("user removed", zap.String("user", user),
		zap.Int64("triples", triples), zap.Int("tags", len(userTags)), zap.Int("videos", len(videos)))

	res = model.Removal{Tags: userTags, Videos: videos}
	cl, err := o.cleanup(ctx, cleanupPlan{tags: userTags, videos: videos})
	for _, t := range userTags {
		cl.UserTags = append(cl.UserTags, model.UserTag{UserID: user, Tag: t})
	}
	res.Cleanup = cl
	invalidation{users: []string{user}, videos: cl.Videos, catalog: len(userTags) > 0}.apply(o.cache)
	if err != nil {
		return res, err
	}

	o.publish(events.New(events.UserRemoved, user, videos, userTags))
	if len(cl.Videos) > 0 {
		o.publish(events.New(events.VideosDeleted, "", cl.Videos, nil))
	}
	return res, nil
}

// RemoveVideosGlobally unlinks the videos from every user, garbage-collects the
// tags that lost their last reference and deletes the Video rows.
func (o *Orchestrator) RemoveVideosGlobally(ctx context.Context, videoIDs []string) (res model.Removal, err error) {
	ctx, done := o.track(ctx, "remove_videos_globally", attribute.Int("videos", len(videoIDs)))
	defer func() { done(err) }()

	videos, err := normalizeVideos(videoIDs)
	if err != nil {
		return model.Removal{}, err
	}
	if err = o.checkBatch(0, len(videos)); err != nil {
		return model.Removal{}, err
	}

	var (
		removed []model.UserVideoTag
		links   []model.UserVideo
	)
	err = o.store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
		var err error
		if removed, err = r.Assoc.DeleteUserVideoTagsForVideosGlobally(ctx, videos); err != nil {
			return err
		}
		links, err = r.Assoc.DeleteUserVideosForVideos(ctx, videos)
		return err
	})
	if err != nil {
		return model.Removal{}, err
	}

	plan := cleanupPlan{tags: tagsOf(removed), videos: videos}
	byUser := map[string][]string{}
	for _, t := range removed {
		byUser[t.UserID] = append(byUser[t.UserID], t.Tag)
	}
	for u, ts := range byUser {
		plan.addUserTags(u, ts)
	}

	res = model.Removal{Tags: tagsOf(removed), Videos: videos}
	cl, err := o.cleanup(ctx, plan)
	res.Cleanup = cl
	invalidation{users: usersOf(removed, links), videos: videos, catalog: true}.apply(o.cache)
	if err != nil {
		return res, err
	}

	if len(cl.Videos) > 0 {
		o.publish(events.New(events.VideosDeleted, "", cl.Videos, res.Tags))
	}
	return res, nil
}
