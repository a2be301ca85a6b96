package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/model"
)

type videoRepo struct{ access }

func (r *videoRepo) Get(ctx context.Context, id string) (*model.Video, error) {
	var out *model.Video
	err := r.do(ctx, func(st *state) error {
		v, ok := st.videos[id]
		if !ok {
			return errs.ErrNotFound
		}
		out = &v
		return nil
	})
	return out, err
}

func (r *videoRepo) Existing(ctx context.Context, ids []string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		for _, id := range ids {
			if _, ok := st.videos[id]; ok {
				out = append(out, id)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func (r *videoRepo) Insert(ctx context.Context, v model.Video) error {
	return r.do(ctx, func(st *state) error {
		if _, ok := st.videos[v.ID]; ok {
			return fmt.Errorf("video %s: %w", v.ID, errs.ErrAlreadyExists)
		}
		st.videos[v.ID] = v
		return nil
	})
}

func (r *videoRepo) UpdateInfo(ctx context.Context, v model.Video) error {
	return r.do(ctx, func(st *state) error {
		if _, ok := st.videos[v.ID]; !ok {
			return errs.ErrNotFound
		}
		st.videos[v.ID] = v
		return nil
	})
}

func (r *videoRepo) DeleteIfUnused(ctx context.Context, ids []string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		for _, id := range ids {
			if _, ok := st.videos[id]; !ok || st.videoUsed(id) {
				continue
			}
			delete(st.videos, id)
			out = append(out, id)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func (r *videoRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	var n int64
	err := r.do(ctx, func(st *state) error {
		for id := range st.videos {
			if !st.videoUsed(id) {
				delete(st.videos, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type userRepo struct{ access }

func (r *userRepo) Upsert(ctx context.Context, u model.User) (model.User, error) {
	var out model.User
	err := r.do(ctx, func(st *state) error {
		if cur, ok := st.users[u.Email]; ok {
			u.CreatedAt = cur.CreatedAt
		} else {
			u.CreatedAt = r.now()
		}
		st.users[u.Email] = u
		out = u
		return nil
	})
	return out, err
}

func (r *userRepo) Get(ctx context.Context, email string) (*model.User, error) {
	var out *model.User
	err := r.do(ctx, func(st *state) error {
		u, ok := st.users[email]
		if !ok {
			return errs.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepo) Delete(ctx context.Context, email string) error {
	return r.do(ctx, func(st *state) error {
		if _, ok := st.users[email]; !ok {
			return errs.ErrNotFound
		}
		delete(st.users, email)
		return nil
	})
}

type tagRepo struct{ access }

func (r *tagRepo) Ensure(ctx context.Context, tags []string) error {
	return r.do(ctx, func(st *state) error {
		for _, t := range tags {
			if _, ok := st.tags[t]; !ok {
				st.tags[t] = r.now()
			}
		}
		return nil
	})
}

func (r *tagRepo) DeleteIfUnused(ctx context.Context, tags []string) ([]string, error) {
	out := []string{}
	err := r.do(ctx, func(st *state) error {
		for _, t := range tags {
			if _, ok := st.tags[t]; !ok || st.tagUsed(t) {
				continue
			}
			delete(st.tags, t)
			out = append(out, t)
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func (r *tagRepo) List(ctx context.Context, page model.Page) ([]model.TagCount, error) {
	var out []model.TagCount
	err := r.do(ctx, func(st *state) error {
		counts := make(map[string]int64, len(st.tags))
		for t := range st.tags {
			counts[t] = 0
		}
		for ut := range st.userTags {
			counts[ut.Tag]++
		}
		out = make([]model.TagCount, 0, len(counts))
		for t, n := range counts {
			out = append(out, model.TagCount{Tag: t, Users: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Users != out[j].Users {
			return out[i].Users > out[j].Users
		}
		return out[i].Tag < out[j].Tag
	})
	lo, hi := bounds(len(out), page)
	return out[lo:hi], nil
}

func (r *tagRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	var n int64
	err := r.do(ctx, func(st *state) error {
		for t := range st.tags {
			if !st.tagUsed(t) {
				delete(st.tags, t)
				n++
			}
		}
		return nil
	})
	return n, err
}
