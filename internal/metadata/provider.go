// Package metadata defines the video metadata collaborator.
package metadata

import (
	"context"
	"fmt"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/model"
)

// Provider resolves a video id to its metadata. Ids the upstream does not know
// fail with errs.ErrInvalidVideoID.
type Provider interface {
	FetchInfo(ctx context.Context, videoID string) (model.VideoInfo, error)
}

// Static answers without network access; used in memory mode and tests.
// Ids listed in Invalid are rejected.
type Static struct {
	Invalid map[string]bool
}

func (s Static) FetchInfo(ctx context.Context, videoID string) (model.VideoInfo, error) {
	if err := ctx.Err(); err != nil {
		return model.VideoInfo{}, err
	}
	if s.Invalid[videoID] {
		return model.VideoInfo{}, fmt.Errorf("%s: %w", videoID, errs.ErrInvalidVideoID)
	}
	return model.VideoInfo{Title: videoID}, nil
}
