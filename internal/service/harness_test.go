package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/vidtags/internal/cache"
	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/events"
	"github.com/and161185/vidtags/internal/model"
	"github.com/and161185/vidtags/internal/repository/memory"
)

const (
	u1 = "u1@example.com"
	u2 = "u2@example.com"
)

// fakeMeta resolves every id except those marked invalid.
type fakeMeta struct {
	mu      sync.Mutex
	invalid map[string]bool
	calls   map[string]int
}

func (f *fakeMeta) FetchInfo(_ context.Context, id string) (model.VideoInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[id]++
	if f.invalid[id] {
		return model.VideoInfo{}, fmt.Errorf("%s: %w", id, errs.ErrInvalidVideoID)
	}
	return model.VideoInfo{Title: "title " + id}, nil
}

func (f *fakeMeta) setInvalid(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalid == nil {
		f.invalid = map[string]bool{}
	}
	f.invalid[id] = true
}

func (f *fakeMeta) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type harness struct {
	store *memory.Store
	cache *cache.Cache
	disp  *events.Dispatcher
	meta  *fakeMeta
	orch  *Orchestrator
	q     *QueryService

	mu        sync.Mutex
	published []events.Event
}

func newHarness(t *testing.T, maxBatch int) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	h := &harness{
		store: memory.New(),
		cache: cache.New(nil),
		meta:  &fakeMeta{},
	}
	h.disp = events.NewDispatcher(log, nil, events.Options{Workers: 2})
	t.Cleanup(func() { _ = h.disp.Shutdown(context.Background()) })

	h.orch = NewOrchestrator(Deps{
		Store:    h.store,
		Metadata: h.meta,
		Cache:    h.cache,
		Events:   h.disp,
		Log:      log,
		MaxBatch: maxBatch,
	})
	h.orch.Subscribe(h.disp)
	h.q = NewQueryService(h.store, h.cache)

	for _, typ := range []events.Type{
		events.TagsAdded, events.TagsRemoved, events.VideosSaved, events.VideosRemoved,
		events.VideosDeleted, events.UserRemoved, events.VideoInvalidated,
	} {
		h.disp.Subscribe(typ, func(_ context.Context, e events.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.published = append(h.published, e)
			return nil
		})
	}
	return h
}

func (h *harness) eventTypes() []events.Type {
	h.disp.Wait()
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]events.Type, 0, len(h.published))
	for _, e := range h.published {
		out = append(out, e.Type)
	}
	return out
}

func (h *harness) tagsOfUser(t *testing.T, user string) []string {
	t.Helper()
	tags, err := h.q.TagsOfUser(context.Background(), user, model.TagQuery{})
	require.NoError(t, err)
	return tags
}

func (h *harness) videoExists(t *testing.T, id string) bool {
	t.Helper()
	_, err := h.q.Video(context.Background(), id)
	if err == nil {
		return true
	}
	require.ErrorIs(t, err, errs.ErrNotFound)
	return false
}

// requireConsistent checks the relations are mutually consistent and orphan-free.
func requireConsistent(t *testing.T, s memory.Snapshot) {
	t.Helper()
	uv := map[model.UserVideo]bool{}
	for _, x := range s.UserVideos {
		uv[x] = true
	}
	backed := map[model.UserTag]bool{}
	for _, x := range s.Triples {
		require.True(t, uv[model.UserVideo{UserID: x.UserID, VideoID: x.VideoID}], "triple without UserVideo: %+v", x)
		backed[model.UserTag{UserID: x.UserID, Tag: x.Tag}] = true
	}
	userTags := map[model.UserTag]bool{}
	tagUsers := map[string]bool{}
	for _, x := range s.UserTags {
		require.True(t, backed[x], "UserTag without triple: %+v", x)
		userTags[x] = true
		tagUsers[x.Tag] = true
	}
	for k := range backed {
		require.True(t, userTags[k], "triple without UserTag: %+v", k)
	}
	saved := map[string]bool{}
	for _, x := range s.UserVideos {
		saved[x.VideoID] = true
	}
	videos := map[string]bool{}
	for _, v := range s.Videos {
		require.True(t, saved[v.ID], "video without saver: %s", v.ID)
		videos[v.ID] = true
	}
	for id := range saved {
		require.True(t, videos[id], "UserVideo without Video: %s", id)
	}
	catalog := map[string]bool{}
	for _, tag := range s.Tags {
		require.True(t, tagUsers[tag], "catalog tag without users: %s", tag)
		catalog[tag] = true
	}
	for tag := range tagUsers {
		require.True(t, catalog[tag], "UserTag without catalog row: %s", tag)
	}
}
