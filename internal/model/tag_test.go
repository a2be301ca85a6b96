package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/vidtags/internal/errs"
)

func TestNormalizeTag_Variants(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{" Foo ", "foo", "FOO", "\tfOo\n"} {
		got, err := NormalizeTag(raw)
		require.NoError(t, err)
		require.Equal(t, "foo", got)
	}
}

func TestNormalizeTag_Rejects(t *testing.T) {
	t.Parallel()

	_, err := NormalizeTag("*")
	require.ErrorIs(t, err, errs.ErrReservedTag)
	_, err = NormalizeTag("  *  ")
	require.ErrorIs(t, err, errs.ErrReservedTag)

	_, err = NormalizeTag("   ")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = NormalizeTag("a,b")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = NormalizeTag(strings.Repeat("x", MaxTagLen+1))
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestNormalizeTags_DedupSorted(t *testing.T) {
	t.Parallel()
	got, err := NormalizeTags([]string{"Live", "music", " MUSIC", "live"})
	require.NoError(t, err)
	require.Equal(t, []string{"live", "music"}, got)

	_, err = NormalizeTags([]string{"ok", "*"})
	require.ErrorIs(t, err, errs.ErrReservedTag)
}

func TestNormalizeVideoIDs(t *testing.T) {
	t.Parallel()
	got, err := NormalizeVideoIDs([]string{" dQw4w9WgXcQ", "abc_-1", "dQw4w9WgXcQ"})
	require.NoError(t, err)
	require.Equal(t, []string{"abc_-1", "dQw4w9WgXcQ"}, got)

	_, err = NormalizeVideoIDs([]string{"ok", "bad id"})
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = NormalizeVideoID("")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestNormalizeUserID(t *testing.T) {
	t.Parallel()
	got, err := NormalizeUserID("  Alice@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", got)

	_, err = NormalizeUserID("not-an-email")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestPage_Normalize(t *testing.T) {
	t.Parallel()
	p, err := Page{}.Normalize()
	require.NoError(t, err)
	require.Equal(t, DefaultLimit, p.Limit)

	p, err = Page{Skip: 3, Limit: 10_000}.Normalize()
	require.NoError(t, err)
	require.Equal(t, 3, p.Skip)
	require.Equal(t, MaxLimit, p.Limit)

	_, err = Page{Skip: -1}.Normalize()
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestVideoAndUser_Validate(t *testing.T) {
	t.Parallel()
	v := NewVideo("vidA", VideoInfo{Title: "t", ThumbnailURL: "https://i.ytimg.com/vi/vidA/hq.jpg"}, time.Now())
	require.NoError(t, v.Validate())

	v.ThumbnailURL = "not a url"
	require.ErrorIs(t, v.Validate(), errs.ErrInvalidInput)

	require.NoError(t, User{Email: "u@example.com"}.Validate())
	require.ErrorIs(t, User{Email: "nope"}.Validate(), errs.ErrInvalidInput)
}

func TestCleanup_Empty(t *testing.T) {
	t.Parallel()
	require.True(t, Cleanup{UserTags: []UserTag{}, Tags: []string{}}.Empty())
	require.False(t, Cleanup{Videos: []string{"v"}}.Empty())
	require.False(t, Cleanup{UserTags: []UserTag{{UserID: "u@example.com", Tag: "a"}}}.Empty())
}
