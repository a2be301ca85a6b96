package memory

import (
	"sort"

	"github.com/and161185/vidtags/internal/model"
)

func (s *state) videoUsed(id string) bool {
	for k := range s.userVideos {
		if k.VideoID == id {
			return true
		}
	}
	return false
}

func (s *state) tagUsed(tag string) bool {
	for k := range s.userTags {
		if k.Tag == tag {
			return true
		}
	}
	for k := range s.triples {
		if k.Tag == tag {
			return true
		}
	}
	return false
}

func (s *state) userTagged(userID, tag string) bool {
	for k := range s.triples {
		if k.UserID == userID && k.Tag == tag {
			return true
		}
	}
	return false
}

func (s *state) userVideoTagged(uv model.UserVideo) bool {
	for k := range s.triples {
		if k.UserID == uv.UserID && k.VideoID == uv.VideoID {
			return true
		}
	}
	return false
}

func (s *state) snapshot() Snapshot {
	var out Snapshot
	for _, u := range s.users {
		out.Users = append(out.Users, u)
	}
	sort.Slice(out.Users, func(i, j int) bool { return out.Users[i].Email < out.Users[j].Email })
	for _, v := range s.videos {
		out.Videos = append(out.Videos, v)
	}
	sort.Slice(out.Videos, func(i, j int) bool { return out.Videos[i].ID < out.Videos[j].ID })
	for t := range s.tags {
		out.Tags = append(out.Tags, t)
	}
	sort.Strings(out.Tags)
	for k := range s.userVideos {
		out.UserVideos = append(out.UserVideos, k)
	}
	sort.Slice(out.UserVideos, func(i, j int) bool {
		a, b := out.UserVideos[i], out.UserVideos[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.VideoID < b.VideoID
	})
	for k := range s.userTags {
		out.UserTags = append(out.UserTags, k)
	}
	sort.Slice(out.UserTags, func(i, j int) bool {
		a, b := out.UserTags[i], out.UserTags[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.Tag < b.Tag
	})
	for k := range s.triples {
		out.Triples = append(out.Triples, k)
	}
	sortTriples(out.Triples)
	return out
}

func sortTriples(ts []model.UserVideoTag) {
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.VideoID != b.VideoID {
			return a.VideoID < b.VideoID
		}
		return a.Tag < b.Tag
	})
}

func set(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// bounds clips a skip/limit page to n items. A zero limit means no limit.
func bounds(n int, p model.Page) (int, int) {
	lo := p.Skip
	if lo > n {
		lo = n
	}
	hi := n
	if p.Limit > 0 && lo+p.Limit < n {
		hi = lo + p.Limit
	}
	return lo, hi
}
