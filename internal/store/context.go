package store

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const ctxKeyRunID contextKey = "import_run_id"

// WithRunID returns a context that tags rows written by PersonStore with id.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyRunID, id)
}

// RunIDFromContext returns the run ID set by WithRunID, or uuid.Nil.
func RunIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(ctxKeyRunID).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
