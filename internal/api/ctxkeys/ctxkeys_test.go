package ctxkeys

import (
	"context"
	"testing"
)

func TestWithValue_SetsAndGetsTypedKey(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), UserID, "u-999")
	got, ok := String(ctx, UserID)
	if !ok || got != "u-999" {
		t.Fatalf("String = %q, %v; want u-999", got, ok)
	}
}

func TestString_PlainStringKeyDoesNotCollide(t *testing.T) {
	t.Parallel()

	//nolint:staticcheck // plain string key on purpose
	ctx := context.WithValue(context.Background(), "user_id", "u-1")
	if _, ok := String(ctx, UserID); ok {
		t.Fatal("plain string key must not satisfy the typed key")
	}
}

func TestString_EmptyIsMissing(t *testing.T) {
	t.Parallel()

	if _, ok := String(WithValue(context.Background(), UserID, ""), UserID); ok {
		t.Fatal("empty value should be reported as missing")
	}
}
