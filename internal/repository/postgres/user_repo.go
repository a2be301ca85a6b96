package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/vidtags/internal/errs"
	"github.com/and161185/vidtags/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ q Querier }

// NewUserRepo constructs a user repository.
func NewUserRepo(q Querier) *UserRepo { return &UserRepo{q: q} }

// Upsert inserts a user or refreshes its profile fields.
func (r *UserRepo) Upsert(ctx context.Context, u model.User) (model.User, error) {
	const q = `
INSERT INTO users (email, name, picture_url)
VALUES ($1, $2, $3)
ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, picture_url = EXCLUDED.picture_url
RETURNING email, name, picture_url, created_at`
	var out model.User
	err := r.q.QueryRow(ctx, q, u.Email, u.Name, u.PictureURL).
		Scan(&out.Email, &out.Name, &out.PictureURL, &out.CreatedAt)
	if err != nil {
		return model.User{}, err
	}
	return out, nil
}

// Get selects a user by email.
func (r *UserRepo) Get(ctx context.Context, email string) (*model.User, error) {
	const q = `
SELECT email, name, picture_url, created_at
FROM users WHERE email=$1`
	var u model.User
	if err := r.q.QueryRow(ctx, q, email).Scan(&u.Email, &u.Name, &u.PictureURL, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Delete removes a user row.
func (r *UserRepo) Delete(ctx context.Context, email string) error {
	const q = `DELETE FROM users WHERE email=$1`
	tag, err := r.q.Exec(ctx, q, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
