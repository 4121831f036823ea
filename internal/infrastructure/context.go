package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

// GenerateTraceID creates a new unique trace ID using UUID v4
func GenerateTraceID() string {
	return uuid.New().String()
}

// EnsureTraceID ensures the context has a trace ID, generating one if needed.
// Background jobs call this so their log lines stay correlated after the
// originating request has returned.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		return WithTraceID(ctx, GenerateTraceID())
	}
	return ctx
}

// DetachedContext keeps the trace ID of ctx but drops its deadline and
// cancellation.
func DetachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(EnsureTraceID(ctx))
}
