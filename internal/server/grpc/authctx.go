package grpcserver

import "context"

type ctxKey string

const userKey ctxKey = "vt.user"

// WithUser stores the authenticated user email in context.
func WithUser(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userKey, email)
}

// UserFromCtx fetches the authenticated user email from context.
func UserFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userKey).(string)
	return v, ok && v != ""
}
