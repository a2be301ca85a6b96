package cache

import (
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// maxPart is the longest parameter value kept verbatim in a key; longer values
// are replaced by their digest.
const maxPart = 96

// OwnerPrefix is the prefix of every key owned by owner. Global entries use "".
func OwnerPrefix(owner string) string { return url.QueryEscape(owner) + "|" }

type param struct{ name, value string }

// KeyBuilder builds canonical keys: the same parameters in any order give the same key.
type KeyBuilder struct {
	owner  string
	params []param
}

// For starts a key owned by owner.
func For(owner string) *KeyBuilder { return &KeyBuilder{owner: owner} }

// Global starts a key not owned by any user.
func Global() *KeyBuilder { return &KeyBuilder{} }

func (b *KeyBuilder) Str(name, v string) *KeyBuilder {
	b.params = append(b.params, param{name, url.QueryEscape(v)})
	return b
}

func (b *KeyBuilder) Int(name string, v int) *KeyBuilder {
	return b.Str(name, strconv.Itoa(v))
}

func (b *KeyBuilder) Bool(name string, v bool) *KeyBuilder {
	return b.Str(name, strconv.FormatBool(v))
}

// List adds a set-valued parameter; order and duplicates are ignored.
func (b *KeyBuilder) List(name string, vs []string) *KeyBuilder {
	cp := make([]string, 0, len(vs))
	seen := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		cp = append(cp, url.QueryEscape(v))
	}
	sort.Strings(cp)
	b.params = append(b.params, param{name, strings.Join(cp, ",")})
	return b
}

// String renders the key.
func (b *KeyBuilder) String() string {
	ps := make([]param, len(b.params))
	copy(ps, b.params)
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].name < ps[j].name })

	var sb strings.Builder
	sb.WriteString(OwnerPrefix(b.owner))
	for i, p := range ps {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.name))
		sb.WriteByte('=')
		sb.WriteString(digest(p.value))
	}
	return sb.String()
}

func digest(v string) string {
	if len(v) <= maxPart {
		return v
	}
	sum := blake2b.Sum256([]byte(v))
	return "b2:" + hex.EncodeToString(sum[:16])
}
