package logger

import "context"

type contextKey string

const (
	loggerKey      contextKey = "diskcache.logger"
	operationIDKey contextKey = "diskcache.operation_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithOperationID tags the context with an operation ID, typically one per
// CLI invocation or serve-loop tick.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, operationIDKey, id)
}

// OperationIDFromContext extracts the operation ID from context.
func OperationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(operationIDKey).(string); ok {
		return id
	}
	return ""
}

// L is a shorthand for FromContext that also adds the operation ID, if any.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	if id := OperationIDFromContext(ctx); id != "" {
		l = l.With("operation_id", id)
	}
	return l
}
