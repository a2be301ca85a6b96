package grpcserver

import (
	"context"
	"testing"
)

func TestUserCtx_RoundTrip(t *testing.T) {
	t.Parallel()

	if _, ok := UserFromCtx(context.Background()); ok {
		t.Fatalf("empty ctx must not carry a user")
	}
	ctx := WithUser(context.Background(), "u@example.com")
	got, ok := UserFromCtx(ctx)
	if !ok || got != "u@example.com" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
	if _, ok := UserFromCtx(WithUser(context.Background(), "")); ok {
		t.Fatalf("blank user must not count")
	}
}
