package model

import (
	"fmt"

	"github.com/and161185/vidtags/internal/errs"
)

const (
	// DefaultLimit applies when a page does not set one.
	DefaultLimit = 50
	// MaxLimit caps the page size.
	MaxLimit = 500
)

// Page is skip/limit pagination.
type Page struct {
	Skip  int
	Limit int
}

// Normalize applies defaults and rejects negative values.
func (p Page) Normalize() (Page, error) {
	if p.Skip < 0 || p.Limit < 0 {
		return Page{}, fmt.Errorf("%w: negative skip/limit", errs.ErrInvalidInput)
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p, nil
}

// TagQuery filters the tags of a user.
type TagQuery struct {
	Prefix string // normalized like a tag, may be empty
	Page
}

// VideoQuery filters the saved videos of a user.
type VideoQuery struct {
	Tags     []string // empty means every saved video
	MatchAll bool     // all tags instead of any tag
	Page
}
