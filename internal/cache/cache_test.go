package cache

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func fill[V any](s Scope[V], key string, v V) {
	s.PutIfFresh(s.Ticket(), key, v)
}

func TestScope_FillGetEvict(t *testing.T) {
	c := New(nil)
	tags := NewScope[[]string](c, "tags-of-user")

	k1 := For("u1@example.com").Str("prefix", "").String()
	k2 := For("u2@example.com").Str("prefix", "").String()
	fill(tags, k1, []string{"a"})
	fill(tags, k2, []string{"b"})

	got, ok := tags.Get(k1)
	require.True(t, ok)
	require.Equal(t, []string{"a"}, got)

	require.Equal(t, 1, c.EvictScope("tags-of-user", OwnerPrefix("u1@example.com")))
	_, ok = tags.Get(k1)
	require.False(t, ok)
	_, ok = tags.Get(k2)
	require.True(t, ok)

	c.EvictKey("tags-of-user", k2)
	_, ok = tags.Get(k2)
	require.False(t, ok)
	require.Equal(t, 0, c.EvictScope("tags-of-user", ""))
}

func TestScope_WrongTypeIsMiss(t *testing.T) {
	c := New(nil)
	fill(NewScope[int](c, "s"), "k", 42)
	_, ok := NewScope[string](c, "s").Get("k")
	require.False(t, ok)
}

func TestEvictOwner_AllScopes(t *testing.T) {
	c := New(nil)
	a := NewScope[int](c, "a")
	b := NewScope[int](c, "b")
	fill(a, For("u1").String(), 1)
	fill(b, For("u1").Int("skip", 0).String(), 2)
	fill(b, For("u10").String(), 3)

	require.Equal(t, 2, c.EvictOwner("u1"))
	_, ok := a.Get(For("u1").String())
	require.False(t, ok)
	v, ok := b.Get(For("u10").String())
	require.True(t, ok)
	require.Equal(t, 3, v)
}

func TestPutIfFresh_DropsFillRacingEviction(t *testing.T) {
	c := New(nil)
	s := NewScope[string](c, "s")
	key := For("u1").String()

	ticket := s.Ticket()
	c.EvictOwner("u1")
	require.False(t, s.PutIfFresh(ticket, key, "stale"))
	_, ok := s.Get(key)
	require.False(t, ok)

	ticket = s.Ticket()
	require.True(t, s.PutIfFresh(ticket, key, "fresh"))
	v, ok := s.Get(key)
	require.True(t, ok)
	require.Equal(t, "fresh", v)
}

func TestKeyBuilder_Canonical(t *testing.T) {
	k1 := For("u1").List("tags", []string{"b", "a", "a"}).Int("skip", 0).Int("limit", 10).String()
	k2 := For("u1").Int("limit", 10).Int("skip", 0).List("tags", []string{"a", "b"}).String()
	require.Equal(t, k1, k2)
	require.True(t, strings.HasPrefix(k1, OwnerPrefix("u1")))

	k3 := For("u1").List("tags", []string{"a,b"}).String()
	require.NotEqual(t, For("u1").List("tags", []string{"a", "b"}).String(), k3)
}

func TestKeyBuilder_DigestsLongParts(t *testing.T) {
	long := make([]string, 50)
	for i := range long {
		long[i] = fmt.Sprintf("video-%03d", i)
	}
	k := For("u1").List("videos", long).String()
	require.Contains(t, k, "videos=b2:")
	require.Less(t, len(k), 100)
	require.Equal(t, k, For("u1").List("videos", long).String())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(nil)
	s := NewScope[int](c, "s")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := fmt.Sprintf("u%d", i%2)
			for j := 0; j < 200; j++ {
				key := For(owner).Int("j", j).String()
				fill(s, key, j)
				s.Get(key)
				if j%20 == 0 {
					c.EvictOwner(owner)
				}
			}
		}(i)
	}
	wg.Wait()
}
