package sessions

import (
	"context"
	"errors"
)

// ErrNotFound is returned for a missing or already-destroyed session. Callers
// treat it as "not authenticated", never as a server fault.
var ErrNotFound = errors.New("session not found")

// Repo is the durable, TTL-bound store of session records. Identifiers are
// allocated by the store and are never derived from user input.
type Repo interface {
	// Create allocates a new opaque identifier and an empty record.
	Create(ctx context.Context) (*Session, error)

	// Get retrieves a session by ID; ErrNotFound if absent or expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Set fully replaces the record after a mutation. Writing to a session
	// that no longer exists returns ErrNotFound — a concurrent Destroy is
	// never silently undone.
	Set(ctx context.Context, id string, session *Session) error

	// Touch refreshes the TTL without altering content.
	Touch(ctx context.Context, id string) error

	// Destroy removes the record, effective immediately. Destroying an
	// absent session is not an error.
	Destroy(ctx context.Context, id string) error
}
