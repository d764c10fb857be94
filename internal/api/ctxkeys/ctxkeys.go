// Package ctxkeys holds the typed context keys shared by middleware and handlers.
// It is a leaf package so api and api/handlers can both import it.
package ctxkeys

import "context"

// Key is the named type for API context keys. context.Value compares type
// and value, so these never collide with plain string keys.
type Key string

// UserID is the authenticated user, injected by AuthMiddleware.
const UserID Key = "user_id"

// WithValue adds a Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// String returns the non-empty string stored under key.
func String(ctx context.Context, key Key) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
