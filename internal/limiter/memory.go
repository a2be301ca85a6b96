package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is the in-process limiter used with the memory store.
type Memory struct {
	mu    sync.Mutex
	p     Policy
	peers map[string]*entry
	now   func() time.Time
}

// NewMemory constructs an in-process limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{p: p, peers: map[string]*entry{}, now: time.Now}
}

// Allow reports whether the peer is currently allowed and a retry-after duration.
func (l *Memory) Allow(_ context.Context, peerHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.peers[string(peerHash)]
	if !ok {
		return true, 0, nil
	}
	if now := l.now(); e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Failure records a failed attempt; may place a temporary block.
func (l *Memory) Failure(_ context.Context, peerHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	e, ok := l.peers[string(peerHash)]
	if !ok || now.Sub(e.updatedAt) > l.p.Window {
		e = &entry{}
		l.peers[string(peerHash)] = e
	}
	e.fails++
	e.updatedAt = now
	if e.fails >= l.p.MaxFails {
		e.blockedUntil = now.Add(l.p.BlockFor)
		return true, l.p.BlockFor, nil
	}
	return false, 0, nil
}
