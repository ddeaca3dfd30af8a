// Package store declares the local Record Store contract consumed by the
// sync engine and the application write paths.  Implementations live in the
// sqlite and memory subpackages.
package store

import (
	"context"
	"errors"

	"doorsync/internal/record"
)

var (
	// ErrNotFound is returned by Get/Update/MarkSynced for an unknown id.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateID is returned by Insert when the id already exists.
	// Duplicate-id inserts are a store-level error, not an upsert.
	ErrDuplicateID = errors.New("duplicate record id")
)

// AccessStore persists access records.  Writes to distinct records are
// independent; no cross-record transactions are offered.
type AccessStore interface {
	// Insert stores a new record, assigning CreatedAt, and returns the
	// stored copy.
	Insert(ctx context.Context, rec record.Access) (record.Access, error)
	Get(ctx context.Context, id string) (record.Access, error)
	Update(ctx context.Context, rec record.Access) error
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, id string) (bool, error)
	MarkSynced(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status record.Status) ([]record.Access, error)
	ListUnsynced(ctx context.Context) ([]record.Access, error)
	// Subscribe registers fn to receive the full current collection after
	// every mutation.  The returned func cancels the subscription.
	Subscribe(fn func([]record.Access)) (cancel func())
}

// DiagnosticStore persists diagnostic records.
type DiagnosticStore interface {
	Insert(ctx context.Context, rec record.Diagnostic) (record.Diagnostic, error)
	Delete(ctx context.Context, id string) (bool, error)
	ListUnsynced(ctx context.Context) ([]record.Diagnostic, error)
	Subscribe(fn func([]record.Diagnostic)) (cancel func())
}
