package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/model"
)

type assocRepo struct{ access }

func (r *assocRepo) AddUserVideo(ctx context.Context, userID, videoID string) (bool, error) {
	var created bool
	err := r.do(ctx, func(st *state) error {
		if _, ok := st.videos[videoID]; !ok {
			return fmt.Errorf("video %s: %w", videoID, errs.ErrNotFound)
		}
		k := model.UserVideo{UserID: userID, VideoID: videoID}
		if _, ok := st.userVideos[k]; ok {
			return nil
		}
		st.userVideos[k] = r.now()
		created = true
		return nil
	})
	return created, err
}

func (r *assocRepo) DeleteUserVideos(ctx context.Context, userID string, videoIDs []string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		keys := make([]model.UserVideo, 0, len(videoIDs))
		for _, id := range model.Distinct(videoIDs) {
			k := model.UserVideo{UserID: userID, VideoID: id}
			if _, ok := st.userVideos[k]; !ok {
				continue
			}
			if st.userVideoTagged(k) {
				return fmt.Errorf("user videos still tagged: %w", errs.ErrInUse)
			}
			keys = append(keys, k)
		}
		for _, k := range keys {
			delete(st.userVideos, k)
			out = append(out, k.VideoID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assocRepo) DeleteAllUserVideos(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.do(ctx, func(st *state) error {
		for k := range st.userVideos {
			if k.UserID == userID {
				ids = append(ids, k.VideoID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.DeleteUserVideos(ctx, userID, ids)
}

func (r *assocRepo) DeleteUserVideosForVideos(ctx context.Context, videoIDs []string) ([]model.UserVideo, error) {
	out := []model.UserVideo{}
	err := r.do(ctx, func(st *state) error {
		want := set(videoIDs)
		for k := range st.userVideos {
			if _, ok := want[k.VideoID]; !ok {
				continue
			}
			if st.userVideoTagged(k) {
				return fmt.Errorf("user videos still tagged: %w", errs.ErrInUse)
			}
			out = append(out, k)
		}
		for _, k := range out {
			delete(st.userVideos, k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VideoID != out[j].VideoID {
			return out[i].VideoID < out[j].VideoID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r *assocRepo) HasUserVideo(ctx context.Context, userID, videoID string) (bool, error) {
	var ok bool
	err := r.do(ctx, func(st *state) error {
		_, ok = st.userVideos[model.UserVideo{UserID: userID, VideoID: videoID}]
		return nil
	})
	return ok, err
}

func (r *assocRepo) ListVideoIDsOfUser(ctx context.Context, userID string, q model.VideoQuery) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		if len(q.Tags) == 0 {
			for k := range st.userVideos {
				if k.UserID == userID {
					out = append(out, k.VideoID)
				}
			}
			return nil
		}
		want := set(q.Tags)
		hits := map[string]int{}
		for k := range st.triples {
			if k.UserID != userID {
				continue
			}
			if _, ok := want[k.Tag]; ok {
				hits[k.VideoID]++
			}
		}
		for id, n := range hits {
			if !q.MatchAll || n == len(want) {
				out = append(out, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	lo, hi := bounds(len(out), q.Page)
	return out[lo:hi], nil
}

func (r *assocRepo) AddUserVideoTags(ctx context.Context, userID, videoID string, tags []string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		if len(tags) == 0 {
			return nil
		}
		if _, ok := st.userVideos[model.UserVideo{UserID: userID, VideoID: videoID}]; !ok {
			return fmt.Errorf("user video %s: %w", videoID, errs.ErrNotFound)
		}
		for _, t := range model.Distinct(tags) {
			k := model.UserVideoTag{UserID: userID, VideoID: videoID, Tag: t}
			if _, ok := st.triples[k]; ok {
				continue
			}
			st.triples[k] = struct{}{}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assocRepo) DeleteUserVideoTags(ctx context.Context, userID string, tags, videoIDs []string) ([]model.UserVideoTag, error) {
	return r.deleteTriples(ctx, func(k model.UserVideoTag) bool {
		return k.UserID == userID && contains(tags, k.Tag) && contains(videoIDs, k.VideoID)
	})
}

func (r *assocRepo) DeleteAllUserVideoTagsForVideos(ctx context.Context, userID string, videoIDs []string) ([]model.UserVideoTag, error) {
	return r.deleteTriples(ctx, func(k model.UserVideoTag) bool {
		return k.UserID == userID && contains(videoIDs, k.VideoID)
	})
}

func (r *assocRepo) DeleteAllUserVideoTagsOfUser(ctx context.Context, userID string) (int64, error) {
	out, err := r.deleteTriples(ctx, func(k model.UserVideoTag) bool { return k.UserID == userID })
	return int64(len(out)), err
}

func (r *assocRepo) DeleteUserVideoTagsForVideosGlobally(ctx context.Context, videoIDs []string) ([]model.UserVideoTag, error) {
	return r.deleteTriples(ctx, func(k model.UserVideoTag) bool { return contains(videoIDs, k.VideoID) })
}

func (r *assocRepo) deleteTriples(ctx context.Context, match func(model.UserVideoTag) bool) ([]model.UserVideoTag, error) {
	out := []model.UserVideoTag{}
	err := r.do(ctx, func(st *state) error {
		for k := range st.triples {
			if match(k) {
				delete(st.triples, k)
				out = append(out, k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTriples(out)
	return out, nil
}

func (r *assocRepo) ListTagsOfVideo(ctx context.Context, userID, videoID string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		for k := range st.triples {
			if k.UserID == userID && k.VideoID == videoID {
				out = append(out, k.Tag)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func (r *assocRepo) AddUserTags(ctx context.Context, userID string, tags []string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		tags = model.Distinct(tags)
		for _, t := range tags {
			if _, ok := st.tags[t]; !ok {
				return fmt.Errorf("catalog tag: %w", errs.ErrNotFound)
			}
		}
		for _, t := range tags {
			k := model.UserTag{UserID: userID, Tag: t}
			if _, ok := st.userTags[k]; ok {
				continue
			}
			st.userTags[k] = struct{}{}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assocRepo) DeleteUserTagsIfUnused(ctx context.Context, userID string, tags []string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		for _, t := range model.Distinct(tags) {
			k := model.UserTag{UserID: userID, Tag: t}
			if _, ok := st.userTags[k]; !ok || st.userTagged(userID, t) {
				continue
			}
			delete(st.userTags, k)
			out = append(out, t)
		}
		return nil
	})
	return out, err
}

func (r *assocRepo) DeleteAllUserTags(ctx context.Context, userID string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		for k := range st.userTags {
			if k.UserID == userID {
				delete(st.userTags, k)
				out = append(out, k.Tag)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func (r *assocRepo) ListTagsOfUser(ctx context.Context, userID string, q model.TagQuery) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		for k := range st.userTags {
			if k.UserID == userID && strings.HasPrefix(k.Tag, q.Prefix) {
				out = append(out, k.Tag)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	lo, hi := bounds(len(out), q.Page)
	return out[lo:hi], nil
}

func (r *assocRepo) DeleteOrphanUserTags(ctx context.Context) (int64, error) {
	var n int64
	err := r.do(ctx, func(st *state) error {
		for k := range st.userTags {
			if !st.userTagged(k.UserID, k.Tag) {
				delete(st.userTags, k)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *assocRepo) FindVideoIDsUnusedAmong(ctx context.Context, videoIDs []string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		for _, id := range model.Distinct(videoIDs) {
			if !st.videoUsed(id) {
				out = append(out, id)
			}
		}
		return nil
	})
	return out, err
}

func (r *assocRepo) FindTagsUnusedByUserAmong(ctx context.Context, userID string, tags []string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		for _, t := range model.Distinct(tags) {
			if !st.userTagged(userID, t) {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

func (r *assocRepo) FindTagsUnusedGloballyAmong(ctx context.Context, tags []string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		for _, t := range model.Distinct(tags) {
			if !st.tagUsed(t) {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}
