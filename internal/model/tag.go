package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/and161185/vidtags/internal/errs"
)

const (
	// ReservedTag is the wildcard literal; it can never be stored.
	ReservedTag = "*"
	// MaxTagLen bounds a normalized tag, in runes.
	MaxTagLen = 64
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// NormalizeTag trims and lowercases a raw tag.
// Blank tags, tags containing a comma and the reserved "*" are rejected.
func NormalizeTag(raw string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case t == "":
		return "", fmt.Errorf("%w: blank tag", errs.ErrInvalidInput)
	case t == ReservedTag:
		return "", errs.ErrReservedTag
	case strings.ContainsRune(t, ','):
		return "", fmt.Errorf("%w: tag %q contains a comma", errs.ErrInvalidInput, t)
	case utf8.RuneCountInString(t) > MaxTagLen:
		return "", fmt.Errorf("%w: tag %q longer than %d", errs.ErrInvalidInput, t, MaxTagLen)
	}
	return t, nil
}

// NormalizeTags normalizes every tag, drops duplicates and sorts the result.
// Any invalid tag fails the whole list.
func NormalizeTags(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t, err := NormalizeTag(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return Distinct(out), nil
}

// NormalizeVideoID trims an external video id and checks its charset.
func NormalizeVideoID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if !videoIDRe.MatchString(id) {
		return "", fmt.Errorf("%w: malformed video id %q", errs.ErrInvalidInput, raw)
	}
	return id, nil
}

// NormalizeVideoIDs normalizes, deduplicates and sorts video ids.
func NormalizeVideoIDs(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		id, err := NormalizeVideoID(r)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return Distinct(out), nil
}

// NormalizeUserID trims and lowercases an email identity.
func NormalizeUserID(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if err := validate.Var(id, "required,email,max=320"); err != nil {
		return "", fmt.Errorf("%w: malformed user id %q", errs.ErrInvalidInput, raw)
	}
	return id, nil
}

// Distinct returns the sorted set of values in in.
func Distinct(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
