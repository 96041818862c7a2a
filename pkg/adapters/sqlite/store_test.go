package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/ludus/internal/testutils"
	"github.com/aretw0/ludus/pkg/adapters/sqlite"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
	contract "github.com/aretw0/ludus/pkg/ports/tests"
	"github.com/aretw0/ludus/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.StateStore     = (*sqlite.Store)(nil)
	_ ports.ArtifactSource = (*sqlite.ArtifactSource)(nil)
	_ ports.ArtifactSink   = (*sqlite.ArtifactSource)(nil)
)

func open(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ludus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, open(t))
}

func TestSQLiteStore_ArtifactContract(t *testing.T) {
	store := open(t)
	want := testutils.DuelGame(2)
	require.NoError(t, store.Artifacts().Store(context.Background(), want))
	contract.ArtifactSourceContractTest(t, store.Artifacts(), want)
}

func TestSQLiteStore_ArtifactVersionsAreImmutable(t *testing.T) {
	store := open(t)
	ctx := context.Background()

	require.NoError(t, store.StoreArtifacts(ctx, testutils.DuelGame(2)))
	require.NoError(t, store.StoreArtifacts(ctx, testutils.DuelGame(2)), "same content is idempotent")

	err := store.StoreArtifacts(ctx, testutils.DuelGame(3))
	assert.ErrorIs(t, err, sqlite.ErrArtifactsImmutable)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ludus.db")
	ctx := context.Background()

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	snap := domain.NewSnapshot("s1", "duel", "1")
	snap.Seq = 4
	require.NoError(t, store.Save(ctx, "s1", snap))
	require.NoError(t, store.Close())

	store, err = sqlite.Open(path)
	require.NoError(t, err)
	defer store.Close()
	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Seq)

	ids, err := store.ListByGame(ctx, domain.Key{GameID: "duel", Version: "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestSQLiteStore_BacksSessionManager(t *testing.T) {
	store := open(t)
	ctx := context.Background()
	require.NoError(t, store.StoreArtifacts(ctx, testutils.CounterGame(2)))

	m := session.NewManager(store, artifact.NewRegistry(store.Artifacts()))
	_, err := m.CreateSession(ctx, "s1", "counter", "1")
	require.NoError(t, err)
	_, err = m.InitializeSession(ctx, "s1", []string{"alice", "bob"})
	require.NoError(t, err)
	_, err = m.SubmitAction(ctx, "s1", "alice", "bump")
	require.NoError(t, err)
	out, err := m.SubmitAction(ctx, "s1", "bob", "follow")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusEnded, out.Snapshot.Status)
	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, loaded.WinningPlayers)
	assert.Equal(t, []any{"alice:bump", "bob:follow"}, loaded.State.Game["log"])
}

func TestSQLiteStore_EmptyID(t *testing.T) {
	store := open(t)
	assert.Error(t, store.Save(context.Background(), " ", domain.NewSnapshot("", "g", "1")))
	_, err := sqlite.Open("")
	assert.Error(t, err)
}
