package memory

import (
	"context"
	"sync"

	"github.com/openlms/sequent/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Snapshot),
	}
}

// Save persists the snapshot in memory.
func (s *Store) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	copied := cloneSnapshot(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load retrieves the snapshot from memory.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	// Copy on read so the caller can't mutate store state through the pointer.
	return cloneSnapshot(snap), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns stored session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}

func cloneSnapshot(snap *domain.Snapshot) *domain.Snapshot {
	copied := *snap
	copied.Activities = make(map[string]domain.ActivityRecord, len(snap.Activities))
	for k, v := range snap.Activities {
		copied.Activities[k] = v
	}
	copied.GlobalObjectives = make(map[string]domain.GlobalObjective, len(snap.GlobalObjectives))
	for k, v := range snap.GlobalObjectives {
		copied.GlobalObjectives[k] = v
	}
	return &copied
}
