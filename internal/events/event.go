// Package events is the in-process fire-and-forget dispatcher used to run
// secondary work after a mutation has committed.
package events

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Type names an event kind.
type Type string

const (
	TagsAdded        Type = "TagsAdded"
	TagsRemoved      Type = "TagsRemoved"
	VideosSaved      Type = "VideosSaved"
	VideosRemoved    Type = "VideosRemoved" // a user dropped videos from their list
	VideosDeleted    Type = "VideosDeleted" // Video rows are gone
	UserRemoved      Type = "UserRemoved"
	VideoInvalidated Type = "VideoInvalidated" // the metadata provider rejected the ids
)

// Event describes a committed mutation.
type Event struct {
	ID         uuid.UUID
	Type       Type
	UserID     string // empty for global events
	VideoIDs   []string
	Tags       []string
	OccurredAt time.Time
}

// New stamps an event with a fresh id and the current time.
func New(t Type, userID string, videoIDs, tags []string) Event {
	id, err := uuid.NewV4()
	if err != nil {
		id = uuid.Nil
	}
	return Event{
		ID:         id,
		Type:       t,
		UserID:     userID,
		VideoIDs:   videoIDs,
		Tags:       tags,
		OccurredAt: time.Now().UTC(),
	}
}
