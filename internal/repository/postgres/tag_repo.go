package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/model"
)

// TagRepo implements TagRepository using PostgreSQL.
type TagRepo struct{ q Querier }

// NewTagRepo constructs a tag catalog repository.
func NewTagRepo(q Querier) *TagRepo { return &TagRepo{q: q} }

// Ensure inserts missing catalog rows.
func (r *TagRepo) Ensure(ctx context.Context, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	const q = `INSERT INTO tags (tag) SELECT unnest($1::text[]) ON CONFLICT (tag) DO NOTHING`
	_, err := r.q.Exec(ctx, q, tags)
	return err
}

// DeleteIfUnused deletes the given tags nobody uses.
func (r *TagRepo) DeleteIfUnused(ctx context.Context, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return []string{}, nil
	}
	const q = `
DELETE FROM tags t
WHERE t.tag = ANY($1)
  AND NOT EXISTS (SELECT 1 FROM user_tags ut WHERE ut.tag = t.tag)
  AND NOT EXISTS (SELECT 1 FROM user_video_tags uvt WHERE uvt.tag = t.tag)
RETURNING t.tag`
	out, err := scanSortedStrings(r.q.Query(ctx, q, tags))
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("delete tags: %w", errs.ErrInUse)
	}
	return out, err
}

// List returns catalog tags ordered by popularity.
func (r *TagRepo) List(ctx context.Context, page model.Page) ([]model.TagCount, error) {
	const q = `
SELECT t.tag, COUNT(ut.user_id) AS users
FROM tags t LEFT JOIN user_tags ut ON ut.tag = t.tag
GROUP BY t.tag
ORDER BY users DESC, t.tag ASC
OFFSET $1 LIMIT $2`
	rows, err := r.q.Query(ctx, q, page.Skip, page.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TagCount{}
	for rows.Next() {
		var tc model.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Users); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// DeleteOrphans deletes every catalog tag without users.
func (r *TagRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	const q = `
DELETE FROM tags t
WHERE NOT EXISTS (SELECT 1 FROM user_tags ut WHERE ut.tag = t.tag)
  AND NOT EXISTS (SELECT 1 FROM user_video_tags uvt WHERE uvt.tag = t.tag)`
	tag, err := r.q.Exec(ctx, q)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("delete orphan tags: %w", errs.ErrInUse)
		}
		return 0, err
	}
	return tag.RowsAffected(), nil
}
