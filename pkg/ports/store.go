package ports

import (
	"context"

	"github.com/openlms/sequent/pkg/domain"
)

// SnapshotStore persists session snapshots between requests. Implementations
// must return domain.ErrSessionNotFound when loading an unknown session.
type SnapshotStore interface {
	// Save persists the snapshot under the session ID.
	Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error

	// Load retrieves a previously saved snapshot.
	Load(ctx context.Context, sessionID string) (*domain.Snapshot, error)

	// Delete removes the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
