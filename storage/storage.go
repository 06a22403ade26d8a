// Package storage persists ticket session state so a ticket can be resumed
// or audited mid-flight. The engine saves after every transition; backends
// only need durable load/save keyed by session ID.
package storage

import (
	"context"
	"errors"

	"github.com/c360studio/udahub/ticket"
)

// ErrNotFound is returned when no state exists for a session ID.
var ErrNotFound = errors.New("session not found")

// Store persists ticket state keyed by session ID.
type Store interface {
	// Load returns the persisted state for a session, or ErrNotFound.
	Load(ctx context.Context, sessionID string) (*ticket.State, error)

	// Save durably stores the state snapshot for a session, replacing any
	// previous snapshot.
	Save(ctx context.Context, sessionID string, st *ticket.State) error
}
