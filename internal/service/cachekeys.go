package service

import (
	"github.com/and161185/vidtags/internal/cache"
	"github.com/and161185/vidtags/internal/model"
)

// Cache scopes. Per-user scopes key under the user id; the rest are global.
const (
	scopeTagsOfUser   = "tags-of-user-query"
	scopeTagsOfVideo  = "tags-of-video"
	scopeVideosOfUser = "videos-of-user-query"
	scopeVideoInfo    = "video-info"
	scopeGlobalTags   = "global-tags"
)

func tagsOfUserKey(userID string, q model.TagQuery) string {
	return cache.For(userID).Str("prefix", q.Prefix).Int("skip", q.Skip).Int("limit", q.Limit).String()
}

func tagsOfVideoKey(userID, videoID string) string {
	return cache.For(userID).Str("video", videoID).String()
}

func videosOfUserKey(userID string, q model.VideoQuery) string {
	return cache.For(userID).
		List("tags", q.Tags).
		Bool("all", q.MatchAll).
		Int("skip", q.Skip).
		Int("limit", q.Limit).
		String()
}

func videoInfoKey(videoID string) string {
	return cache.Global().Str("id", videoID).String()
}

func globalTagsKey(p model.Page) string {
	return cache.Global().Int("skip", p.Skip).Int("limit", p.Limit).String()
}

// invalidation lists what a committed write made stale.
type invalidation struct {
	users   []string
	videos  []string // video-info entries
	catalog bool     // global tag listing
}

func (inv invalidation) apply(c *cache.Cache) {
	for _, u := range inv.users {
		c.EvictOwner(u)
	}
	for _, v := range inv.videos {
		c.EvictKey(scopeVideoInfo, videoInfoKey(v))
	}
	if inv.catalog {
		c.EvictScope(scopeGlobalTags, "")
	}
}
