package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/model"
)

// AssociationRepo implements AssociationRepository using PostgreSQL.
type AssociationRepo struct{ q Querier }

// NewAssociationRepo constructs an association repository.
func NewAssociationRepo(q Querier) *AssociationRepo { return &AssociationRepo{q: q} }

// --- user_videos ---

// AddUserVideo inserts a (user, video) row if missing.
func (r *AssociationRepo) AddUserVideo(ctx context.Context, userID, videoID string) (bool, error) {
	const q = `
INSERT INTO user_videos (user_id, video_id) VALUES ($1, $2)
ON CONFLICT (user_id, video_id) DO NOTHING`
	tag, err := r.q.Exec(ctx, q, userID, videoID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, fmt.Errorf("video %s: %w", videoID, errs.ErrNotFound)
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteUserVideos deletes the user's rows for the given videos.
func (r *AssociationRepo) DeleteUserVideos(ctx context.Context, userID string, videoIDs []string) ([]string, error) {
	if len(videoIDs) == 0 {
		return []string{}, nil
	}
	const q = `DELETE FROM user_videos WHERE user_id=$1 AND video_id = ANY($2) RETURNING video_id`
	out, err := scanSortedStrings(r.q.Query(ctx, q, userID, videoIDs))
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("user videos still tagged: %w", errs.ErrInUse)
	}
	return out, err
}

// DeleteAllUserVideos deletes every saved video of the user.
func (r *AssociationRepo) DeleteAllUserVideos(ctx context.Context, userID string) ([]string, error) {
	const q = `DELETE FROM user_videos WHERE user_id=$1 RETURNING video_id`
	out, err := scanSortedStrings(r.q.Query(ctx, q, userID))
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("user videos still tagged: %w", errs.ErrInUse)
	}
	return out, err
}

// DeleteUserVideosForVideos deletes the rows of every user for the given videos.
func (r *AssociationRepo) DeleteUserVideosForVideos(ctx context.Context, videoIDs []string) ([]model.UserVideo, error) {
	if len(videoIDs) == 0 {
		return []model.UserVideo{}, nil
	}
	const q = `DELETE FROM user_videos WHERE video_id = ANY($1) RETURNING user_id, video_id`
	rows, err := r.q.Query(ctx, q, videoIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.UserVideo{}
	for rows.Next() {
		var uv model.UserVideo
		if err := rows.Scan(&uv.UserID, &uv.VideoID); err != nil {
			return nil, err
		}
		out = append(out, uv)
	}
	return out, rows.Err()
}

// HasUserVideo reports whether the user saved the video.
func (r *AssociationRepo) HasUserVideo(ctx context.Context, userID, videoID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM user_videos WHERE user_id=$1 AND video_id=$2)`
	var ok bool
	if err := r.q.QueryRow(ctx, q, userID, videoID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ListVideoIDsOfUser lists saved videos, optionally restricted to any/all of the given tags.
func (r *AssociationRepo) ListVideoIDsOfUser(ctx context.Context, userID string, vq model.VideoQuery) ([]string, error) {
	switch {
	case len(vq.Tags) == 0:
		const q = `
SELECT video_id FROM user_videos
WHERE user_id=$1
ORDER BY video_id OFFSET $2 LIMIT $3`
		return scanStrings(r.q.Query(ctx, q, userID, vq.Skip, vq.Limit))
	case vq.MatchAll:
		const q = `
SELECT video_id FROM user_video_tags
WHERE user_id=$1 AND tag = ANY($2)
GROUP BY video_id HAVING COUNT(*) = $3
ORDER BY video_id OFFSET $4 LIMIT $5`
		return scanStrings(r.q.Query(ctx, q, userID, vq.Tags, len(vq.Tags), vq.Skip, vq.Limit))
	default:
		const q = `
SELECT DISTINCT video_id FROM user_video_tags
WHERE user_id=$1 AND tag = ANY($2)
ORDER BY video_id OFFSET $3 LIMIT $4`
		return scanStrings(r.q.Query(ctx, q, userID, vq.Tags, vq.Skip, vq.Limit))
	}
}

// --- user_video_tags ---

// AddUserVideoTags inserts missing triples and returns the newly added tags.
func (r *AssociationRepo) AddUserVideoTags(ctx context.Context, userID, videoID string, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return []string{}, nil
	}
	const q = `
INSERT INTO user_video_tags (user_id, video_id, tag)
SELECT $1, $2, unnest($3::text[])
ON CONFLICT (user_id, video_id, tag) DO NOTHING
RETURNING tag`
	out, err := scanSortedStrings(r.q.Query(ctx, q, userID, videoID, tags))
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("user video %s: %w", videoID, errs.ErrNotFound)
	}
	return out, err
}

// DeleteUserVideoTags deletes tags × videoIDs triples of the user.
func (r *AssociationRepo) DeleteUserVideoTags(ctx context.Context, userID string, tags, videoIDs []string) ([]model.UserVideoTag, error) {
	if len(tags) == 0 || len(videoIDs) == 0 {
		return []model.UserVideoTag{}, nil
	}
	const q = `
DELETE FROM user_video_tags
WHERE user_id=$1 AND tag = ANY($2) AND video_id = ANY($3)
RETURNING user_id, video_id, tag`
	return scanTriples(r.q.Query(ctx, q, userID, tags, videoIDs))
}

// DeleteAllUserVideoTagsForVideos deletes every triple of the user on the given videos.
func (r *AssociationRepo) DeleteAllUserVideoTagsForVideos(ctx context.Context, userID string, videoIDs []string) ([]model.UserVideoTag, error) {
	if len(videoIDs) == 0 {
		return []model.UserVideoTag{}, nil
	}
	const q = `
DELETE FROM user_video_tags
WHERE user_id=$1 AND video_id = ANY($2)
RETURNING user_id, video_id, tag`
	return scanTriples(r.q.Query(ctx, q, userID, videoIDs))
}

// DeleteAllUserVideoTagsOfUser deletes every triple of the user.
func (r *AssociationRepo) DeleteAllUserVideoTagsOfUser(ctx context.Context, userID string) (int64, error) {
	const q = `DELETE FROM user_video_tags WHERE user_id=$1`
	tag, err := r.q.Exec(ctx, q, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteUserVideoTagsForVideosGlobally deletes the triples of every user on the given videos.
func (r *AssociationRepo) DeleteUserVideoTagsForVideosGlobally(ctx context.Context, videoIDs []string) ([]model.UserVideoTag, error) {
	if len(videoIDs) == 0 {
		return []model.UserVideoTag{}, nil
	}
	const q = `
DELETE FROM user_video_tags
WHERE video_id = ANY($1)
RETURNING user_id, video_id, tag`
	return scanTriples(r.q.Query(ctx, q, videoIDs))
}

// ListTagsOfVideo lists the user's tags on a video.
func (r *AssociationRepo) ListTagsOfVideo(ctx context.Context, userID, videoID string) ([]string, error) {
	const q = `SELECT tag FROM user_video_tags WHERE user_id=$1 AND video_id=$2 ORDER BY tag`
	return scanStrings(r.q.Query(ctx, q, userID, videoID))
}

// --- user_tags ---

// AddUserTags inserts missing (user, tag) rows.
func (r *AssociationRepo) AddUserTags(ctx context.Context, userID string, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return []string{}, nil
	}
	const q = `
INSERT INTO user_tags (user_id, tag)
SELECT $1, unnest($2::text[])
ON CONFLICT (user_id, tag) DO NOTHING
RETURNING tag`
	out, err := scanSortedStrings(r.q.Query(ctx, q, userID, tags))
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("catalog tag: %w", errs.ErrNotFound)
	}
	return out, err
}

// DeleteUserTagsIfUnused deletes the user's tags that no triple of the user references.
func (r *AssociationRepo) DeleteUserTagsIfUnused(ctx context.Context, userID string, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return []string{}, nil
	}
	const q = `
DELETE FROM user_tags ut
WHERE ut.user_id=$1 AND ut.tag = ANY($2)
  AND NOT EXISTS (SELECT 1 FROM user_video_tags uvt WHERE uvt.user_id = ut.user_id AND uvt.tag = ut.tag)
RETURNING ut.tag`
	return scanSortedStrings(r.q.Query(ctx, q, userID, tags))
}

// DeleteAllUserTags deletes every UserTag row of the user.
func (r *AssociationRepo) DeleteAllUserTags(ctx context.Context, userID string) ([]string, error) {
	const q = `DELETE FROM user_tags WHERE user_id=$1 RETURNING tag`
	return scanSortedStrings(r.q.Query(ctx, q, userID))
}

// ListTagsOfUser lists the user's tags, optionally by prefix.
func (r *AssociationRepo) ListTagsOfUser(ctx context.Context, userID string, tq model.TagQuery) ([]string, error) {
	const q = `
SELECT tag FROM user_tags
WHERE user_id=$1 AND ($2 = '' OR starts_with(tag, $2))
ORDER BY tag OFFSET $3 LIMIT $4`
	return scanStrings(r.q.Query(ctx, q, userID, tq.Prefix, tq.Skip, tq.Limit))
}

// DeleteOrphanUserTags deletes UserTag rows without a backing triple.
func (r *AssociationRepo) DeleteOrphanUserTags(ctx context.Context) (int64, error) {
	const q = `
DELETE FROM user_tags ut
WHERE NOT EXISTS (SELECT 1 FROM user_video_tags uvt WHERE uvt.user_id = ut.user_id AND uvt.tag = ut.tag)`
	tag, err := r.q.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- orphan detection ---

// FindVideoIDsUnusedAmong returns the candidates nobody saved.
func (r *AssociationRepo) FindVideoIDsUnusedAmong(ctx context.Context, videoIDs []string) ([]string, error) {
	if len(videoIDs) == 0 {
		return []string{}, nil
	}
	const q = `
SELECT c.id FROM unnest($1::text[]) AS c(id)
WHERE NOT EXISTS (SELECT 1 FROM user_videos uv WHERE uv.video_id = c.id)
ORDER BY c.id`
	return scanStrings(r.q.Query(ctx, q, videoIDs))
}

// FindTagsUnusedByUserAmong returns the candidates with no triple of the user.
func (r *AssociationRepo) FindTagsUnusedByUserAmong(ctx context.Context, userID string, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return []string{}, nil
	}
	const q = `
SELECT c.tag FROM unnest($2::text[]) AS c(tag)
WHERE NOT EXISTS (SELECT 1 FROM user_video_tags uvt WHERE uvt.user_id = $1 AND uvt.tag = c.tag)
ORDER BY c.tag`
	return scanStrings(r.q.Query(ctx, q, userID, tags))
}

// FindTagsUnusedGloballyAmong returns the candidates no user references.
func (r *AssociationRepo) FindTagsUnusedGloballyAmong(ctx context.Context, tags []string) ([]string, error) {
	if len(tags) == 0 {
		return []string{}, nil
	}
	const q = `
SELECT c.tag FROM unnest($1::text[]) AS c(tag)
WHERE NOT EXISTS (SELECT 1 FROM user_tags ut WHERE ut.tag = c.tag)
  AND NOT EXISTS (SELECT 1 FROM user_video_tags uvt WHERE uvt.tag = c.tag)
ORDER BY c.tag`
	return scanStrings(r.q.Query(ctx, q, tags))
}
