// Package gateway is the stateless request/response interface to the remote
// system.  The sync engine never talks HTTP directly; it sees only this
// interface and the structured errors it returns.
package gateway

import (
	"context"
	"fmt"

	"doorsync/internal/record"
)

// CreateResult is the remote acknowledgement for a created record.
type CreateResult struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

// Gateway exposes the remote operations for both record kinds.  Every
// non-2xx outcome or transport failure surfaces as an error; callers
// classify, the gateway does not.
type Gateway interface {
	CreateDiagnostic(ctx context.Context, rec record.Diagnostic) (CreateResult, error)
	GetDiagnostic(ctx context.Context, id string) (record.Diagnostic, error)
	UpdateDiagnostic(ctx context.Context, rec record.Diagnostic) error
	DeleteDiagnostic(ctx context.Context, id string) error
	ListUnsyncedDiagnostics(ctx context.Context) ([]record.Diagnostic, error)

	CreateAccessRecord(ctx context.Context, rec record.Access) (CreateResult, error)
	GetAccessRecord(ctx context.Context, id string) (record.Access, error)
	UpdateAccessRecord(ctx context.Context, rec record.Access) error
	DeleteAccessRecord(ctx context.Context, id string) error
	ListAccessRecordsByStatus(ctx context.Context, status record.Status) ([]record.Access, error)
	ListUnsyncedAccessRecords(ctx context.Context) ([]record.Access, error)
}

// StatusError is returned for any HTTP response outside the 2xx range.  It
// carries the structured status metadata the sync engine prefers over
// message matching when classifying failures.
type StatusError struct {
	StatusCode int
	Status     string // e.g. "404 Not Found"
	Body       string // response body, truncated
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("remote returned %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("remote returned %s", e.Status)
}
