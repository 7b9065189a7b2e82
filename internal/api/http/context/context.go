// Package context carries per-request values of outbound API calls.
package context

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	operationKey ctxKey = iota
	requestIDKey
)

// UnknownOperation labels calls made without an operation name.
const UnknownOperation = "unknown"

// WithOperation returns a context naming the API operation being performed.
// The name labels logs and metrics of the request.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey, operation)
}

// Operation returns the operation name stored in ctx, or UnknownOperation.
func Operation(ctx context.Context) string {
	op, ok := ctx.Value(operationKey).(string)
	if !ok || op == "" {
		return UnknownOperation
	}
	return op
}

// WithRequestID returns a context carrying the given request ID.
func WithRequestID(ctx context.Context, requestID uuid.UUID) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID stored in ctx.
func RequestID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(requestIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// EnsureRequestID returns ctx with a request ID, generating one when absent.
func EnsureRequestID(ctx context.Context) (context.Context, uuid.UUID) {
	if id, ok := RequestID(ctx); ok {
		return ctx, id
	}
	id := uuid.New()
	return WithRequestID(ctx, id), id
}
