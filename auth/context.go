package auth

import "context"

type contextKey string

const userIDKey contextKey = "auth.userID"

// WithUserID attaches the authenticated user id to the context.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user id attached by the auth middleware.
func UserID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDKey).(int)
	return id, ok
}
