package service

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/and161185/vidtags/internal/cache"
	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/model"
	"github.com/and161185/vidtags/internal/repository"
)

// QueryService serves reads cache-aside. Concurrent misses for the same key
// share one store query; a fill that overlaps an eviction is not cached.
type QueryService struct {
	store repository.Store
	group singleflight.Group

	tagsOfUser   cache.Scope[[]string]
	tagsOfVideo  cache.Scope[[]string]
	videosOfUser cache.Scope[[]string]
	videoInfo    cache.Scope[model.Video]
	globalTags   cache.Scope[[]model.TagCount]
}

// NewQueryService binds the read scopes to c. Writers must evict the same c.
func NewQueryService(store repository.Store, c *cache.Cache) *QueryService {
	return &QueryService{
		store:        store,
		tagsOfUser:   cache.NewScope[[]string](c, scopeTagsOfUser),
		tagsOfVideo:  cache.NewScope[[]string](c, scopeTagsOfVideo),
		videosOfUser: cache.NewScope[[]string](c, scopeVideosOfUser),
		videoInfo:    cache.NewScope[model.Video](c, scopeVideoInfo),
		globalTags:   cache.NewScope[[]model.TagCount](c, scopeGlobalTags),
	}
}

func load[V any](ctx context.Context, g *singleflight.Group, s cache.Scope[V], key string, fetch func(context.Context) (V, error)) (V, error) {
	var zero V
	if v, ok := s.Get(key); ok {
		return v, nil
	}
	t := s.Ticket()
	// the generation keeps readers arriving after an eviction off an older fill
	flight := s.Name() + "\x00" + strconv.FormatUint(t.Gen(), 10) + "\x00" + key
	// joiners share the fill, so it must outlive the caller that started it
	fctx := context.WithoutCancel(ctx)
	ch := g.DoChan(flight, func() (any, error) {
		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		s.PutIfFresh(t, key, v)
		return v, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// TagsOfUser lists the user's tags, optionally restricted to a prefix.
func (q *QueryService) TagsOfUser(ctx context.Context, userID string, tq model.TagQuery) ([]string, error) {
	user, err := model.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	if tq.Page, err = tq.Page.Normalize(); err != nil {
		return nil, err
	}
	tq.Prefix = strings.ToLower(strings.TrimSpace(tq.Prefix))

	out, err := load(ctx, &q.group, q.tagsOfUser, tagsOfUserKey(user, tq), func(ctx context.Context) ([]string, error) {
		return q.store.Repos().Assoc.ListTagsOfUser(ctx, user, tq)
	})
	return slices.Clone(out), err
}

// TagsOfVideo lists the user's tags on one video. A video the user has not
// saved is ErrNotFound.
func (q *QueryService) TagsOfVideo(ctx context.Context, userID, videoID string) ([]string, error) {
	user, err := model.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	vid, err := model.NormalizeVideoID(videoID)
	if err != nil {
		return nil, err
	}
	out, err := load(ctx, &q.group, q.tagsOfVideo, tagsOfVideoKey(user, vid), func(ctx context.Context) ([]string, error) {
		r := q.store.Repos()
		tags, err := r.Assoc.ListTagsOfVideo(ctx, user, vid)
		if err != nil || len(tags) > 0 {
			return tags, err
		}
		saved, err := r.Assoc.HasUserVideo(ctx, user, vid)
		if err != nil {
			return nil, err
		}
		if !saved {
			return nil, fmt.Errorf("video %s not saved: %w", vid, errs.ErrNotFound)
		}
		return tags, nil
	})
	return slices.Clone(out), err
}

// VideosOfUser lists saved videos, optionally those carrying any (or all) of the tags.
func (q *QueryService) VideosOfUser(ctx context.Context, userID string, vq model.VideoQuery) ([]string, error) {
	user, err := model.NormalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	if vq.Page, err = vq.Page.Normalize(); err != nil {
		return nil, err
	}
	if vq.Tags, err = model.NormalizeTags(vq.Tags); err != nil {
		return nil, err
	}
	if len(vq.Tags) == 0 {
		vq.MatchAll = false
	}

	out, err := load(ctx, &q.group, q.videosOfUser, videosOfUserKey(user, vq), func(ctx context.Context) ([]string, error) {
		return q.store.Repos().Assoc.ListVideoIDsOfUser(ctx, user, vq)
	})
	return slices.Clone(out), err
}

// Video returns the stored metadata of a video; errs.ErrNotFound if nobody saved it.
func (q *QueryService) Video(ctx context.Context, videoID string) (model.Video, error) {
	vid, err := model.NormalizeVideoID(videoID)
	if err != nil {
		return model.Video{}, err
	}
	return load(ctx, &q.group, q.videoInfo, videoInfoKey(vid), func(ctx context.Context) (model.Video, error) {
		v, err := q.store.Repos().Videos.Get(ctx, vid)
		if err != nil {
			return model.Video{}, err
		}
		return *v, nil
	})
}

// GlobalTags lists catalog tags, most used first.
func (q *QueryService) GlobalTags(ctx context.Context, p model.Page) ([]model.TagCount, error) {
	p, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	out, err := load(ctx, &q.group, q.globalTags, globalTagsKey(p), func(ctx context.Context) ([]model.TagCount, error) {
		return q.store.Repos().Tags.List(ctx, p)
	})
	return slices.Clone(out), err
}
