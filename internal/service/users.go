package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/vidtags/internal/model"
	"github.com/and161185/vidtags/internal/repository"
)

// UserService keeps the User rows in step with the identity provider.
type UserService struct {
	users repository.UserRepository
}

// NewUserService constructs UserService.
func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// EnsureUser upserts the caller's profile. The email is the identity and is
// never changed; name and picture are refreshed, CreatedAt is preserved.
func (s *UserService) EnsureUser(ctx context.Context, u model.User) (model.User, error) {
	email, err := model.NormalizeUserID(u.Email)
	if err != nil {
		return model.User{}, err
	}
	u.Email = email
	if err := u.Validate(); err != nil {
		return model.User{}, err
	}
	return s.users.Upsert(ctx, u)
}

// User loads the stored profile; ErrNotFound before the first EnsureUser.
func (s *UserService) User(ctx context.Context, email string) (model.User, error) {
	email, err := model.NormalizeUserID(email)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.users.Get(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// TokenIssuer mints HS256 access tokens whose subject is the user email.
// The server only verifies tokens; issuing is an operator tool for environments
// without an external identity provider.
type TokenIssuer struct {
	signKey   []byte
	accessTTL time.Duration
}

// NewTokenIssuer constructs TokenIssuer.
func NewTokenIssuer(signKey []byte, accessTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{signKey: signKey, accessTTL: accessTTL}
}

// Issue signs a token for email and returns it with its expiry.
func (s *TokenIssuer) Issue(email string) (string, time.Time, error) {
	if len(s.signKey) == 0 {
		return "", time.Time{}, errors.New("empty signing key")
	}
	sub, err := model.NormalizeUserID(email)
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
