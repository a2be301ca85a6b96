package cache

// Scope is a typed view over one named scope of a Cache.
// Stored values are shared between readers and must not be mutated.
type Scope[V any] struct {
	c    *Cache
	name string
}

// NewScope binds name to c.
func NewScope[V any](c *Cache, name string) Scope[V] {
	return Scope[V]{c: c, name: name}
}

// Name returns the scope name.
func (s Scope[V]) Name() string { return s.name }

// Get returns the value under key. A value of another type counts as a miss.
func (s Scope[V]) Get(key string) (V, bool) {
	var zero V
	raw, ok := s.c.Get(s.name, key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

func (s Scope[V]) Ticket() Ticket { return s.c.Ticket(s.name) }

func (s Scope[V]) PutIfFresh(t Ticket, key string, v V) bool {
	return s.c.PutIfFresh(t, key, v)
}
