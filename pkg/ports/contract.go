package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/ludus/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractSnapshot(sessionID string) *domain.Snapshot {
	s := domain.NewSnapshot(sessionID, "rps", "v1")
	s.Status = domain.StatusActive
	s.State = domain.NewGameState("u1", "u2")
	s.State.Game["round"] = 2
	s.State.Players["u1"].(map[string]any)["choice"] = "rock"
	s.Aliases = map[string]string{"player1": "u1", "player2": "u2"}
	s.Seq = 3
	return s
}

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snap := contractSnapshot(sessionID)

		err := store.Save(ctx, sessionID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sessionID, loaded.SessionID)
		assert.Equal(t, domain.StatusActive, loaded.Status)
		assert.Equal(t, "rps", loaded.GameID)
		assert.Equal(t, 3, loaded.Seq)
		assert.Equal(t, "u1", loaded.Aliases["player1"])
		require.NotNil(t, loaded.State)
		assert.Equal(t, domain.PhaseInit, loaded.State.Phase())
		u1, ok := loaded.State.Player("u1")
		require.True(t, ok)
		assert.Equal(t, "rock", u1["choice"])
		// JSON-backed stores turn ints into float64; only the value matters.
		assert.EqualValues(t, 2, loaded.State.Game["round"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Fault Round Trip", func(t *testing.T) {
		snap := contractSnapshot(sessionID)
		snap.Status = domain.StatusEnded
		snap.Fault = domain.NewFault(domain.FaultDeadlock, "t-resolve", "resolve", assert.AnError)
		require.NoError(t, store.Save(ctx, sessionID, snap))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, loaded.Fault)
		assert.Equal(t, domain.FaultDeadlock, loaded.Fault.Kind)
		assert.Equal(t, "t-resolve", loaded.Fault.Source)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, contractSnapshot(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, contractSnapshot(id1))
		_ = store.Save(ctx, id2, contractSnapshot(id2))

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
