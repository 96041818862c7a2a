package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/ludus/internal/testutils"
	"github.com/aretw0/ludus/pkg/adapters/file"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	contract "github.com/aretw0/ludus/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource_Contract(t *testing.T) {
	src := file.NewSource(t.TempDir())
	want := testutils.DuelGame(2)
	require.NoError(t, src.Store(context.Background(), want))

	contract.ArtifactSourceContractTest(t, src, want)
}

func TestFileSource_RoundTripCompiles(t *testing.T) {
	src := file.NewSource(t.TempDir())
	ctx := context.Background()
	for _, set := range []*domain.ArtifactSet{testutils.DuelGame(2), testutils.DiceGame(), testutils.CounterGame(3)} {
		require.NoError(t, src.Store(ctx, set))

		loaded, err := src.Load(ctx, set.GameID, set.Version)
		require.NoError(t, err)
		c := artifact.Compile(loaded)
		require.NoError(t, c.Err(), set.GameID)
		assert.Len(t, c.Transitions, len(set.Graph.Transitions), set.GameID)
	}
}

func TestFileSource_JSONAndLayoutKey(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tiny"), 0o755))
	doc := `{
  "gameId": "something-else",
  "version": "0",
  "graph": {
    "phases": ["init", "finished"],
    "transitions": [{"id": "end", "fromPhase": "init", "toPhase": "finished"}]
  },
  "instructions": {"transitions": {"end": {"id": "end", "stateDelta": [{"op": "set", "path": "game.gameEnded", "value": true}]}}}
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny", "2.json"), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny", "README.md"), []byte("#"), 0o644))

	src := file.NewSource(dir)
	set, err := src.Load(context.Background(), "tiny", "2")
	require.NoError(t, err)
	assert.Equal(t, "tiny", set.GameID)
	assert.Equal(t, "2", set.Version)

	keys, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Key{{GameID: "tiny", Version: "2"}}, keys)

	_, err = src.Load(context.Background(), "tiny", "3")
	assert.ErrorIs(t, err, domain.ErrArtifactsNotFound)
}
