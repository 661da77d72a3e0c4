package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlms/sequent/pkg/adapters/memory"
	"github.com/openlms/sequent/pkg/domain"
	"github.com/openlms/sequent/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, memory.NewStore())
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	snap := &domain.Snapshot{
		SessionID:    "s1",
		SessionState: domain.SessionActive,
		Activities: map[string]domain.ActivityRecord{
			"a": {AttemptCount: 1},
		},
		GlobalObjectives: map[string]domain.GlobalObjective{},
	}
	require.NoError(t, store.Save(ctx, "s1", snap))

	// Mutating the original after Save must not leak into the store.
	snap.Activities["a"] = domain.ActivityRecord{AttemptCount: 99}

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Activities["a"].AttemptCount)

	// Mutating a loaded snapshot must not leak either.
	loaded.Activities["a"] = domain.ActivityRecord{AttemptCount: 42}
	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Activities["a"].AttemptCount)
}

func TestMemoryLoader(t *testing.T) {
	_, err := memory.NewLoader(nil)
	assert.Error(t, err)

	m := &domain.Manifest{Identifier: "course"}
	loader, err := memory.NewLoader(m)
	require.NoError(t, err)

	got, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Same(t, m, got)
}
