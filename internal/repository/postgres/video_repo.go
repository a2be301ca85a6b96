package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/model"
)

// VideoRepo implements VideoRepository using PostgreSQL.
type VideoRepo struct{ q Querier }

// NewVideoRepo constructs a video repository.
func NewVideoRepo(q Querier) *VideoRepo { return &VideoRepo{q: q} }

// Get selects a video by id.
func (r *VideoRepo) Get(ctx context.Context, id string) (*model.Video, error) {
	const q = `
SELECT id, title, description, thumbnail_url, updated_at
FROM videos WHERE id=$1`
	var v model.Video
	err := r.q.QueryRow(ctx, q, id).Scan(&v.ID, &v.Title, &v.Description, &v.ThumbnailURL, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Existing returns the ids that have a row.
func (r *VideoRepo) Existing(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	const q = `SELECT id FROM videos WHERE id = ANY($1) ORDER BY id`
	return scanStrings(r.q.Query(ctx, q, ids))
}

// Insert creates a video row. A taken id does not abort the surrounding transaction.
func (r *VideoRepo) Insert(ctx context.Context, v model.Video) error {
	const q = `
INSERT INTO videos (id, title, description, thumbnail_url, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`
	tag, err := r.q.Exec(ctx, q, v.ID, v.Title, v.Description, v.ThumbnailURL, v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("video %s: %w", v.ID, errs.ErrAlreadyExists)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s: %w", v.ID, errs.ErrAlreadyExists)
	}
	return nil
}

// UpdateInfo replaces the metadata of an existing video.
func (r *VideoRepo) UpdateInfo(ctx context.Context, v model.Video) error {
	const q = `
UPDATE videos
SET title=$2, description=$3, thumbnail_url=$4, updated_at=$5
WHERE id=$1`
	tag, err := r.q.Exec(ctx, q, v.ID, v.Title, v.Description, v.ThumbnailURL, v.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// DeleteIfUnused deletes the given videos that nobody saved.
func (r *VideoRepo) DeleteIfUnused(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	const q = `
DELETE FROM videos v
WHERE v.id = ANY($1)
  AND NOT EXISTS (SELECT 1 FROM user_videos uv WHERE uv.video_id = v.id)
RETURNING v.id`
	out, err := scanSortedStrings(r.q.Query(ctx, q, ids))
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("delete videos: %w", errs.ErrInUse)
	}
	return out, err
}

// DeleteOrphans deletes every video without savers.
func (r *VideoRepo) DeleteOrphans(ctx context.Context) (int64, error) {
	const q = `
DELETE FROM videos v
WHERE NOT EXISTS (SELECT 1 FROM user_videos uv WHERE uv.video_id = v.id)`
	tag, err := r.q.Exec(ctx, q)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, fmt.Errorf("delete orphan videos: %w", errs.ErrInUse)
		}
		return 0, err
	}
	return tag.RowsAffected(), nil
}
