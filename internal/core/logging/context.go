package logging

import "context"

type contextKey string

const (
	operationIDKey contextKey = "operation_id"
	userIDKey      contextKey = "user_id"
)

// WithOperationID tags the context with the operation a request concerns.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey, id)
}

// WithUserID tags the context with the acting user.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetOperationID retrieves the operation ID from the context.
// Returns empty string if not present.
func GetOperationID(ctx context.Context) string {
	if id, ok := ctx.Value(operationIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUserID retrieves the user ID from the context.
// Returns empty string if not present.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
