// Package memory is an in-process implementation of the repository interfaces.
//
// It enforces the same referential rules as the SQL schema (a triple needs its
// UserVideo row, a UserVideo needs its Video, a UserTag needs its catalog tag)
// so workflow ordering mistakes surface here exactly as they would in Postgres.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/vidtags/internal/model"
	"github.com/and161185/vidtags/internal/repository"
)

type state struct {
	users      map[string]model.User
	videos     map[string]model.Video
	tags       map[string]time.Time
	userVideos map[model.UserVideo]time.Time
	userTags   map[model.UserTag]struct{}
	triples    map[model.UserVideoTag]struct{}
}

func newState() *state {
	return &state{
		users:      map[string]model.User{},
		videos:     map[string]model.Video{},
		tags:       map[string]time.Time{},
		userVideos: map[model.UserVideo]time.Time{},
		userTags:   map[model.UserTag]struct{}{},
		triples:    map[model.UserVideoTag]struct{}{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.videos {
		c.videos[k] = v
	}
	for k, v := range s.tags {
		c.tags[k] = v
	}
	for k, v := range s.userVideos {
		c.userVideos[k] = v
	}
	for k := range s.userTags {
		c.userTags[k] = struct{}{}
	}
	for k := range s.triples {
		c.triples[k] = struct{}{}
	}
	return c
}

// Store is a mutex-guarded in-memory store. Transactions work on a copy that
// replaces the committed state on success.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// WithinTx runs fn against a private copy and commits it if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, s.reposOn(work)); err != nil {
		return err
	}
	s.st = work
	return nil
}

// Repos returns repositories where each call is atomic on its own.
func (s *Store) Repos() repository.Repositories { return s.reposOn(nil) }

func (s *Store) reposOn(tx *state) repository.Repositories {
	a := access{s: s, tx: tx}
	return repository.Repositories{
		Videos: &videoRepo{a},
		Users:  &userRepo{a},
		Tags:   &tagRepo{a},
		Assoc:  &assocRepo{a},
	}
}

// Snapshot is a copy of every row, for assertions in tests.
type Snapshot struct {
	Users      []model.User
	Videos     []model.Video
	Tags       []string
	UserVideos []model.UserVideo
	UserTags   []model.UserTag
	Triples    []model.UserVideoTag
}

// Snapshot copies the committed state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.snapshot()
}

type access struct {
	s  *Store
	tx *state
}

func (a access) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.tx != nil {
		return fn(a.tx)
	}
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	return fn(a.s.st)
}

func (a access) now() time.Time { return a.s.now().UTC() }
