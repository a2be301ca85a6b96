package repository

import (
	"context"

	"github.com/and161185/vidtags/internal/model"
)

// VideoRepository provides CRUD over Video rows.
type VideoRepository interface {
	// Get loads a video by id.
	Get(ctx context.Context, id string) (*model.Video, error)
	// Existing returns the ids among ids that have a Video row.
	Existing(ctx context.Context, ids []string) ([]string, error)
	// Insert creates a Video row; ErrAlreadyExists if the id is taken.
	Insert(ctx context.Context, v model.Video) error
	// UpdateInfo replaces metadata of an existing row.
	UpdateInfo(ctx context.Context, v model.Video) error
	// DeleteIfUnused deletes the given videos that no UserVideo row references and returns them.
	DeleteIfUnused(ctx context.Context, ids []string) ([]string, error)
	// DeleteOrphans deletes every video without a UserVideo row.
	DeleteOrphans(ctx context.Context) (int64, error)
}

// UserRepository provides CRUD access for users.
type UserRepository interface {
	// Upsert inserts the user or refreshes name/picture, preserving CreatedAt.
	Upsert(ctx context.Context, u model.User) (model.User, error)
	// Get loads a user by email.
	Get(ctx context.Context, email string) (*model.User, error)
	// Delete removes the user row; ErrNotFound if absent.
	Delete(ctx context.Context, email string) error
}

// TagRepository maintains the global tag catalog.
type TagRepository interface {
	// Ensure inserts missing catalog rows.
	Ensure(ctx context.Context, tags []string) error
	// DeleteIfUnused deletes the given tags that no UserTag row references and returns them.
	DeleteIfUnused(ctx context.Context, tags []string) ([]string, error)
	// List returns catalog tags with the number of users using each, most used first.
	List(ctx context.Context, page model.Page) ([]model.TagCount, error)
	// DeleteOrphans deletes every catalog tag without a UserTag row.
	DeleteOrphans(ctx context.Context) (int64, error)
}
