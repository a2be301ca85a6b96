// Package model defines domain entities used by services and repositories.
package model

import "time"

// Video is an external video reference. It exists only while at least one user has saved it.
type Video struct {
	ID           string    `json:"id" validate:"required,max=64"`
	Title        string    `json:"title" validate:"max=1024"`
	Description  string    `json:"description" validate:"max=16384"`
	ThumbnailURL string    `json:"thumbnail_url" validate:"omitempty,url"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VideoInfo is the metadata returned by the video metadata provider.
type VideoInfo struct {
	Title        string
	Description  string
	ThumbnailURL string
}

// NewVideo builds a Video row from provider metadata.
func NewVideo(id string, info VideoInfo, now time.Time) Video {
	return Video{
		ID:           id,
		Title:        info.Title,
		Description:  info.Description,
		ThumbnailURL: info.ThumbnailURL,
		UpdatedAt:    now,
	}
}

// User is an account keyed by email. The email is supplied by the identity provider and never changes.
type User struct {
	Email      string    `json:"email" validate:"required,email,max=320"`
	Name       string    `json:"name" validate:"max=256"`
	PictureURL string    `json:"picture_url" validate:"omitempty,url"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserVideo records that a user saved a video.
type UserVideo struct {
	UserID  string
	VideoID string
}

// UserTag records that a user uses a tag on at least one video.
// It is derived from UserVideoTag and never written directly by clients.
type UserTag struct {
	UserID string
	Tag    string
}

// UserVideoTag is the source-of-truth fact "user tagged video with tag".
type UserVideoTag struct {
	UserID  string
	VideoID string
	Tag     string
}

// TagCount is a global tag with the number of users using it.
type TagCount struct {
	Tag   string `json:"tag"`
	Users int64  `json:"users"`
}

// ItemError reports a per-item failure inside a best-effort batch.
type ItemError struct {
	ID  string
	Err error
}

func (e ItemError) Error() string { return e.ID + ": " + e.Err.Error() }

// Unwrap exposes the underlying cause to errors.Is.
func (e ItemError) Unwrap() error { return e.Err }

// BatchResult is the outcome of a per-video best-effort batch.
type BatchResult struct {
	Succeeded []string
	Failed    []ItemError
}

// Cleanup lists what a removal workflow garbage-collected.
type Cleanup struct {
	UserTags []UserTag // UserTag rows left without backing UserVideoTag rows
	Tags     []string  // catalog tags no longer used by anybody
	Videos   []string  // Video rows no longer saved by anybody
}

// Empty reports whether nothing was collected.
func (c Cleanup) Empty() bool {
	return len(c.UserTags) == 0 && len(c.Tags) == 0 && len(c.Videos) == 0
}

// ReconcileReport counts orphan rows repaired by a reconcile sweep.
type ReconcileReport struct {
	UserTags int64
	Tags     int64
	Videos   int64
}

// Total is the number of rows deleted by the sweep.
func (r ReconcileReport) Total() int64 { return r.UserTags + r.Tags + r.Videos }

// Removal is the outcome of a removal workflow.
type Removal struct {
	Tags    []string // distinct tags whose UserVideoTag rows were deleted
	Videos  []string // videos unlinked from the user (or from everybody)
	Cleanup Cleanup
}
