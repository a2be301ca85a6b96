package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/model"
	"github.com/and161185/vidtags/internal/repository"
)

// cleanupPlan lists the candidates a committed junction delete may have orphaned.
type cleanupPlan struct {
	userTags map[string][]string // user -> tags the user may no longer use
	tags     []string            // catalog tags that may have lost their last user
	videos   []string            // videos that may have lost their last saver
}

func (p *cleanupPlan) addUserTags(user string, tags []string) {
	if len(tags) == 0 {
		return
	}
	if p.userTags == nil {
		p.userTags = map[string][]string{}
	}
	p.userTags[user] = append(p.userTags[user], tags...)
}

// cleanup is the second phase of every removal. Each step evaluates its unused
// set against committed state and deletes with guarded statements, in its own
// unit of work: user tags, then catalog tags, then videos. A guard that trips
// because a concurrent writer re-added a reference is not an error.
func (o *Orchestrator) cleanup(ctx context.Context, p cleanupPlan) (model.Cleanup, error) {
	out := model.Cleanup{UserTags: []model.UserTag{}, Tags: []string{}, Videos: []string{}}
	catalog := append([]string(nil), p.tags...)

	users := make([]string, 0, len(p.userTags))
	for u := range p.userTags {
		users = append(users, u)
	}
	sort.Strings(users)

	for _, u := range users {
		var gone []string
		err := o.store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
			unused, err := r.Assoc.FindTagsUnusedByUserAmong(ctx, u, model.Distinct(p.userTags[u]))
			if err != nil {
				return err
			}
			gone, err = r.Assoc.DeleteUserTagsIfUnused(ctx, u, unused)
			return err
		})
		if err = tolerate(o.log, err, "user tags", u); err != nil {
			return out, err
		}
		for _, t := range gone {
			out.UserTags = append(out.UserTags, model.UserTag{UserID: u, Tag: t})
		}
		catalog = append(catalog, gone...)
	}

	if len(catalog) > 0 {
		err := o.store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
			unused, err := r.Assoc.FindTagsUnusedGloballyAmong(ctx, model.Distinct(catalog))
			if err != nil {
				return err
			}
			out.Tags, err = r.Tags.DeleteIfUnused(ctx, unused)
			return err
		})
		if err = tolerate(o.log, err, "catalog tags", ""); err != nil {
			return out, err
		}
	}

	if len(p.videos) > 0 {
		err := o.store.WithinTx(ctx, func(ctx context.Context, r repository.Repositories) error {
			unused, err := r.Assoc.FindVideoIDsUnusedAmong(ctx, model.Distinct(p.videos))
			if err != nil {
				return err
			}
			out.Videos, err = r.Videos.DeleteIfUnused(ctx, unused)
			return err
		})
		if err = tolerate(o.log, err, "videos", ""); err != nil {
			return out, err
		}
	}

	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.Videos == nil {
		out.Videos = []string{}
	}
	if !out.Empty() {
		o.log.Debug("cleanup collected",
			zap.Int("user_tags", len(out.UserTags)), zap.Int("tags", len(out.Tags)), zap.Int("videos", len(out.Videos)))
	}
	o.metrics.Cleaned(len(out.UserTags), len(out.Tags), len(out.Videos))
	return out, nil
}

func tolerate(log *zap.Logger, err error, step, user string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errs.ErrInUse) {
		log.Warn("cleanup step raced a concurrent writer", zap.String("step", step), zap.String("user", user), zap.Error(err))
		return nil
	}
	return err
}

func tagsOf(ts []model.UserVideoTag) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Tag)
	}
	return model.Distinct(out)
}

func usersOf(ts []model.UserVideoTag, uvs []model.UserVideo) []string {
	out := make([]string, 0, len(ts)+len(uvs))
	for _, t := range ts {
		out = append(out, t.UserID)
	}
	for _, uv := range uvs {
		out = append(out, uv.UserID)
	}
	return model.Distinct(out)
}
