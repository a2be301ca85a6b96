package repository

import (
	"context"

	"github.com/and161185/vidtags/internal/model"
)

// AssociationRepository provides query/write operations over UserVideo, UserTag and UserVideoTag.
//
// The Find*Unused* queries report keys with zero referencing rows. Callers run them after the
// deleting write has committed.
type AssociationRepository interface {
	// AddUserVideo inserts the (user, video) row. created is false if it already existed.
	AddUserVideo(ctx context.Context, userID, videoID string) (created bool, err error)
	// DeleteUserVideos deletes the user's rows for videoIDs and returns the deleted video ids.
	DeleteUserVideos(ctx context.Context, userID string, videoIDs []string) ([]string, error)
	// DeleteAllUserVideos deletes every UserVideo row of the user and returns the video ids.
	DeleteAllUserVideos(ctx context.Context, userID string) ([]string, error)
	// DeleteUserVideosForVideos deletes the rows of every user for videoIDs.
	DeleteUserVideosForVideos(ctx context.Context, videoIDs []string) ([]model.UserVideo, error)
	// HasUserVideo reports whether the user saved the video.
	HasUserVideo(ctx context.Context, userID, videoID string) (bool, error)
	// ListVideoIDsOfUser lists saved videos of the user, optionally filtered by tags.
	ListVideoIDsOfUser(ctx context.Context, userID string, q model.VideoQuery) ([]string, error)

	// AddUserVideoTags inserts missing triples and returns the tags actually added.
	AddUserVideoTags(ctx context.Context, userID, videoID string, tags []string) ([]string, error)
	// DeleteUserVideoTags deletes the triples tags × videoIDs of the user.
	DeleteUserVideoTags(ctx context.Context, userID string, tags, videoIDs []string) ([]model.UserVideoTag, error)
	// DeleteAllUserVideoTagsForVideos deletes every triple of the user on videoIDs.
	DeleteAllUserVideoTagsForVideos(ctx context.Context, userID string, videoIDs []string) ([]model.UserVideoTag, error)
	// DeleteAllUserVideoTagsOfUser deletes every triple of the user.
	DeleteAllUserVideoTagsOfUser(ctx context.Context, userID string) (int64, error)
	// DeleteUserVideoTagsForVideosGlobally deletes the triples of every user on videoIDs.
	DeleteUserVideoTagsForVideosGlobally(ctx context.Context, videoIDs []string) ([]model.UserVideoTag, error)
	// ListTagsOfVideo lists the user's tags on a video.
	ListTagsOfVideo(ctx context.Context, userID, videoID string) ([]string, error)

	// AddUserTags inserts missing (user, tag) rows and returns the tags actually added.
	AddUserTags(ctx context.Context, userID string, tags []string) ([]string, error)
	// DeleteUserTagsIfUnused deletes the user's rows for tags that no triple of the user references.
	DeleteUserTagsIfUnused(ctx context.Context, userID string, tags []string) ([]string, error)
	// DeleteAllUserTags deletes every UserTag row of the user and returns the tags.
	DeleteAllUserTags(ctx context.Context, userID string) ([]string, error)
	// ListTagsOfUser lists the user's tags.
	ListTagsOfUser(ctx context.Context, userID string, q model.TagQuery) ([]string, error)
	// DeleteOrphanUserTags deletes every UserTag row without a backing triple.
	DeleteOrphanUserTags(ctx context.Context) (int64, error)

	// FindVideoIDsUnusedAmong returns the candidates no UserVideo row references.
	FindVideoIDsUnusedAmong(ctx context.Context, videoIDs []string) ([]string, error)
	// FindTagsUnusedByUserAmong returns the candidates no triple of the user references.
	FindTagsUnusedByUserAmong(ctx context.Context, userID string, tags []string) ([]string, error)
	// FindTagsUnusedGloballyAmong returns the candidates no UserTag or triple of any user references.
	FindTagsUnusedGloballyAmong(ctx context.Context, tags []string) ([]string, error)
}
