// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity or association does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (association or entity already present).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInUse indicates a leaf row could not be deleted because a concurrent writer referenced it again.
	ErrInUse = errors.New("still referenced")

	// ErrInvalidInput indicates a request rejected before any repository call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrReservedTag indicates use of a reserved tag value ("*").
	ErrReservedTag = errors.New("reserved tag")

	// ErrInvalidVideoID indicates the metadata provider could not resolve a video id.
	ErrInvalidVideoID = errors.New("invalid video id")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated caller lacking the required role.
	ErrForbidden = errors.New("forbidden")
)
