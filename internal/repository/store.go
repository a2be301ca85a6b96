// Package repository defines storage interfaces implemented by concrete backends.
package repository

import "context"

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Videos VideoRepository
	Users  UserRepository
	Tags   TagRepository
	Assoc  AssociationRepository
}

// Store is the durable store of record.
type Store interface {
	// WithinTx runs fn in a single unit of work. A non-nil error from fn rolls it back;
	// otherwise the work is committed before WithinTx returns.
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error

	// Repos returns repositories where every call is its own unit of work. Used by reads.
	Repos() Repositories
}
