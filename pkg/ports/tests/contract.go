package tests

import (
	"context"
	"testing"

	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ArtifactSourceContractTest verifies that an adapter complies with
// ports.ArtifactSource. The source must already hold want.
func ArtifactSourceContractTest(t *testing.T, source ports.ArtifactSource, want *domain.ArtifactSet) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_Success", func(t *testing.T) {
		got, err := source.Load(ctx, want.GameID, want.Version)
		require.NoError(t, err)
		assert.Equal(t, want.GameID, got.GameID)
		assert.Equal(t, want.Version, got.Version)
		assert.ElementsMatch(t, want.Graph.Phases, got.Graph.Phases)
		require.Len(t, got.Graph.Transitions, len(want.Graph.Transitions))
		for i, tr := range want.Graph.Transitions {
			assert.Equal(t, tr.ID, got.Graph.Transitions[i].ID)
			assert.Equal(t, tr.FromPhase, got.Graph.Transitions[i].FromPhase)
			assert.Equal(t, tr.ToPhase, got.Graph.Transitions[i].ToPhase)
		}
		assert.Len(t, got.Instructions.Transitions, len(want.Instructions.Transitions))
		assert.Len(t, got.Instructions.PlayerPhases, len(want.Instructions.PlayerPhases))
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := source.Load(ctx, "non-existent-game", "v0")
		assert.ErrorIs(t, err, domain.ErrArtifactsNotFound)
	})

	t.Run("List", func(t *testing.T) {
		keys, err := source.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, domain.Key{GameID: want.GameID, Version: want.Version})
	})
}
