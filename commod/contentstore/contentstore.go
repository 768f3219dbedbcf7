package contentstore

import (
	"context"
)

type Target struct {
	Type string
	ID   string
}

// External collaborator which applies auto-action side effects to content.
// All operations are idempotent, keyed by target: the boolean return
// reports whether this call actually mutated anything, so callers can log
// repeat invocations as no-ops.
type ContentStore interface {
	Delete(ctx context.Context, target Target) (bool, error)
	Hide(ctx context.Context, target Target) (bool, error)
	Warn(ctx context.Context, target Target) (bool, error)
}
