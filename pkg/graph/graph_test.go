package graph

import (
	"testing"

	"github.com/aretw0/ludus/internal/testutils"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func duel(t *testing.T) *Graph {
	t.Helper()
	c := artifact.Compile(testutils.DuelGame(3))
	require.NoError(t, c.Err())
	return Build(c)
}

func TestReachable(t *testing.T) {
	g := duel(t)
	r := g.Reachable("init")
	for _, p := range []string{"init", "choice", "resolve", "tally", "finished"} {
		assert.True(t, r[p], p)
	}
	assert.True(t, g.CanReach("tally", "choice"))
	assert.False(t, g.CanReach("finished", "init"))

	orphan := Build(artifact.Compile(testutils.OrphanGame()))
	assert.False(t, orphan.Reachable("init")["limbo"])
	assert.True(t, orphan.CanReach("limbo", "finished"))
}

func TestPaths(t *testing.T) {
	g := duel(t)

	paths := g.Paths("init", "finished", 0)
	// 3 round outcomes times 3 endings.
	require.Len(t, paths, 9)
	for _, p := range paths {
		assert.Equal(t, "init", p.Phases[0])
		assert.Equal(t, "finished", p.Phases[len(p.Phases)-1])
		assert.Len(t, p.Phases, len(p.Edges)+1)
		assert.NotContains(t, p.Edges, "next-round")
	}

	assert.Empty(t, g.Paths("init", "finished", 3))
	assert.Len(t, g.Paths("init", "finished", 4), 9)

	loops := g.Paths("choice", "choice", 0)
	require.Len(t, loops, 3)
	assert.Equal(t, []string{"all-chosen", "player1-takes-round", "next-round"}, loops[0].Edges)
}

func TestWriters(t *testing.T) {
	g := duel(t)

	ids := func(ws []Writer) []string {
		out := make([]string, len(ws))
		for i, w := range ws {
			out[i] = w.ID
		}
		return out
	}

	assert.Equal(t, []string{"start", "next-round", "submit-choice"}, ids(g.Writers("players.*.actionRequired")))
	assert.Equal(t, []string{"start", "player1-takes-round", "player2-takes-round", "round-tied"}, ids(g.Writers("game.round")))
	assert.Equal(t, []string{"start", "player1-wins", "player2-wins"}, ids(g.Writers("players.*.isGameWinner")))
	assert.Empty(t, g.Writers("game.nothing"))

	action := g.Writers("players.*.choice")
	last := action[len(action)-1]
	assert.Equal(t, WriterAction, last.Kind)
	assert.Equal(t, "choice", last.Phase)
}

func TestSinksAndInbound(t *testing.T) {
	g := duel(t)
	assert.Equal(t, []string{"finished"}, g.Sinks())
	assert.Len(t, g.Inbound("finished"), 3)
	assert.Len(t, g.Outbound("resolve"), 3)
}

func TestCache_SharesByHash(t *testing.T) {
	gc := NewCache(4)
	a := artifact.Compile(testutils.DuelGame(3))
	b := testutils.DuelGame(3)
	b.Version = "2"
	bc := artifact.Compile(b)

	assert.Same(t, gc.Get(a), gc.Get(bc))
	assert.Equal(t, 1, gc.Len())

	gc.Get(artifact.Compile(testutils.DiceGame()))
	assert.Equal(t, 2, gc.Len())
}
