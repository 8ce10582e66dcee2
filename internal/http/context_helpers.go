package httpx

import "context"

// userIDKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type userIDKey struct{}

// SetUserIDInContext returns a child context that carries the authenticated
// user ID. If id is empty, the original ctx is returned unchanged.
func SetUserIDInContext(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey{}, id)
}

// GetUserIDFromContext returns the authenticated user ID from context and a
// boolean indicating presence.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(userIDKey{}).(string); ok && id != "" {
		return id, true
	}
	return "", false
}
