// Package limiter locks out peers that keep presenting invalid credentials.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter tracks authentication failures per peer.
type Limiter interface {
	// Allow reports whether the peer may attempt authentication and an optional retry-after.
	Allow(ctx context.Context, peerHash []byte) (bool, time.Duration, error)
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, peerHash []byte) (bool, time.Duration, error)
}

// Policy sizes the lockout: MaxFails failures within Window block the peer for BlockFor.
type Policy struct {
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
}

// DefaultPolicy is 10 failures in 15 minutes, blocked for 15 minutes.
func DefaultPolicy() Policy {
	return Policy{Window: 15 * time.Minute, MaxFails: 10, BlockFor: 15 * time.Minute}
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
