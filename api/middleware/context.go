package middleware

import "context"

type userIDKey struct{}

// UserIDFromContext returns the acting user set by Auth, or 0.
func UserIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	id, _ := ctx.Value(userIDKey{}).(int64)
	return id
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}
