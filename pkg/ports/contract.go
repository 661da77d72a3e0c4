package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlms/sequent/pkg/domain"
)

// RunSnapshotStoreContract runs a suite of tests verifying that a
// SnapshotStore implementation adheres to the interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newSnapshot := func(id string) *domain.Snapshot {
		return &domain.Snapshot{
			SessionID:         id,
			SessionState:      domain.SessionActive,
			CurrentActivityID: "lesson-1",
			Activities: map[string]domain.ActivityRecord{
				"lesson-1": {
					AttemptState: domain.AttemptIncomplete,
					AttemptCount: 2,
					Satisfied:    domain.Satisfied,
					Measure:      0.8,
					MeasureKnown: true,
				},
			},
			GlobalObjectives: map[string]domain.GlobalObjective{
				"obj-global": {Satisfied: domain.Satisfied, Measure: 0.9, MeasureKnown: true},
			},
			StartedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnapshot(sessionID)
		err := store.Save(ctx, sessionID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.CurrentActivityID, loaded.CurrentActivityID)
		assert.Equal(t, snap.SessionState, loaded.SessionState)
		assert.Equal(t, 2, loaded.Activities["lesson-1"].AttemptCount)
		assert.InDelta(t, 0.9, loaded.GlobalObjectives["obj-global"].Measure, 1e-9)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, newSnapshot(sessionID)))
		require.NoError(t, store.Delete(ctx, sessionID))

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, newSnapshot(id1))
		_ = store.Save(ctx, id2, newSnapshot(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
