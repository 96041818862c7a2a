package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/ludus/internal/runtime"
	"github.com/aretw0/ludus/internal/testutils"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/delta"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/dsl"
	"github.com/aretw0/ludus/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, set *domain.ArtifactSet) *artifact.Compiled {
	t.Helper()
	c := artifact.Compile(set)
	require.NoError(t, c.Err())
	return c
}

func start(t *testing.T, e *runtime.Engine, c *artifact.Compiled, players ...string) *ports.Outcome {
	t.Helper()
	snap := domain.NewSnapshot("s1", c.Key.GameID, c.Key.Version)
	out, err := e.Initialize(context.Background(), c, snap, players)
	require.NoError(t, err)
	return out
}

func act(t *testing.T, e *runtime.Engine, c *artifact.Compiled, snap *domain.Snapshot, player, text string) *ports.Outcome {
	t.Helper()
	a, err := runtime.ParseAction(text)
	require.NoError(t, err)
	out, err := e.ApplyAction(context.Background(), c, snap, player, a)
	require.NoError(t, err)
	return out
}

func player(t *testing.T, s *domain.Snapshot, id string) map[string]any {
	t.Helper()
	p, ok := s.State.Player(id)
	require.True(t, ok, "player %s", id)
	return p
}

func TestEngine_DuelRounds(t *testing.T) {
	e := runtime.NewEngine()
	c := compile(t, testutils.DuelGame(2))

	out := start(t, e, c, "alice", "bob")
	require.Nil(t, out.Fault)
	snap := out.Snapshot
	assert.Equal(t, []string{"start"}, out.Fired)
	assert.Equal(t, domain.StatusActive, snap.Status)
	assert.Equal(t, "choice", snap.State.Phase())
	assert.Equal(t, []string{"alice", "bob"}, snap.State.Actionable())
	assert.Equal(t, map[string]string{"player1": "alice", "player2": "bob"}, snap.Aliases)

	// Round 1: alice wins.
	out = act(t, e, c, snap, "alice", "submit-choice choice: 3")
	require.Nil(t, out.Fault)
	assert.Empty(t, out.Fired)
	assert.Equal(t, []ports.Message{{To: "alice", Text: "You chose 3."}}, out.Messages)
	snap = out.Snapshot
	assert.Equal(t, 3, player(t, snap, "alice")["choice"])

	out = act(t, e, c, snap, "player2", `{"action": "submit-choice", "choice": 1}`)
	require.Nil(t, out.Fault)
	assert.Equal(t, []string{"all-chosen", "player1-takes-round", "next-round"}, out.Fired)
	assert.Contains(t, out.Messages, ports.Message{Text: "Round 2 begins."})
	snap = out.Snapshot
	assert.Equal(t, "choice", snap.State.Phase())
	assert.Equal(t, 2, snap.State.Game["round"])
	assert.Equal(t, 1, player(t, snap, "alice")["score"])
	assert.Equal(t, 0, player(t, snap, "bob")["choice"])

	// Round 2: alice again, which ends the game.
	snap = act(t, e, c, snap, "bob", "submit-choice choice=2").Snapshot
	out = act(t, e, c, snap, "alice", "submit-choice choice=3")
	require.Nil(t, out.Fault)
	assert.Equal(t, []string{"all-chosen", "player1-takes-round", "player1-wins"}, out.Fired)

	snap = out.Snapshot
	assert.Equal(t, domain.StatusEnded, snap.Status)
	assert.Equal(t, domain.PhaseFinished, snap.State.Phase())
	assert.True(t, snap.State.Ended())
	assert.Equal(t, []string{"alice"}, snap.WinningPlayers)
	assert.Equal(t, 5, snap.Seq)

	require.NotNil(t, out.Diff)
	require.NotNil(t, out.Diff.Status)
	assert.Equal(t, domain.StatusEnded, *out.Diff.Status)

	_, err := e.ApplyAction(context.Background(), c, snap, "alice", runtime.Action{Name: "submit-choice"})
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)
}

func TestEngine_DuelDraw(t *testing.T) {
	e := runtime.NewEngine()
	c := compile(t, testutils.DuelGame(1))
	snap := start(t, e, c, "alice", "bob").Snapshot

	snap = act(t, e, c, snap, "alice", "submit-choice choice=2").Snapshot
	out := act(t, e, c, snap, "bob", "submit-choice choice=2")
	assert.Equal(t, []string{"all-chosen", "round-tied", "draw"}, out.Fired)
	assert.Equal(t, domain.StatusEnded, out.Snapshot.Status)
	assert.Empty(t, out.Snapshot.WinningPlayers)
	assert.Nil(t, out.Snapshot.Fault)
}

func TestEngine_RuleViolations(t *testing.T) {
	e := runtime.NewEngine()
	c := compile(t, testutils.DuelGame(2))
	snap := start(t, e, c, "alice", "bob").Snapshot
	snap = act(t, e, c, snap, "alice", "submit-choice choice=1").Snapshot

	tests := []struct {
		name   string
		player string
		text   string
		msg    string
	}{
		{"already acted", "alice", "submit-choice choice=2", "not expected to act"},
		{"out of range", "bob", "submit-choice choice=7", "choice must be between 1 and 3"},
		{"missing parameter", "bob", "submit-choice", "could not be evaluated"},
		{"unknown action", "bob", "surrender", "available: submit-choice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := act(t, e, c, snap, tt.player, tt.text)
			require.NotNil(t, out.Fault)
			assert.Equal(t, domain.FaultRuleViolation, out.Fault.Kind)
			assert.True(t, out.Fault.Recoverable())
			assert.Contains(t, out.Fault.Message, tt.msg)
			assert.Equal(t, domain.StatusActive, out.Snapshot.Status)
			assert.Equal(t, snap.Seq, out.Snapshot.Seq)
			assert.Equal(t, snap.State, out.Snapshot.State)
		})
	}

	_, err := e.ApplyAction(context.Background(), c, snap, "mallory", runtime.Action{Name: "submit-choice"})
	assert.ErrorIs(t, err, domain.ErrUnknownPlayer)
}

func TestEngine_DiceIsDeterministicOnceRolled(t *testing.T) {
	c := compile(t, testutils.DiceGame())

	high := start(t, runtime.NewEngine(runtime.WithChooser(delta.FixedChoice(3))), c, "alice", "bob")
	assert.Equal(t, []string{"roll", "high"}, high.Fired)
	assert.Equal(t, 4, high.Snapshot.State.Game["roll"])
	assert.Equal(t, []string{"alice"}, high.Snapshot.WinningPlayers)

	low := start(t, runtime.NewEngine(runtime.WithChooser(delta.FixedChoice(0))), c, "alice", "bob")
	assert.Equal(t, []string{"roll", "low"}, low.Fired)
	assert.Equal(t, []string{"bob"}, low.Snapshot.WinningPlayers)

	for i := 0; i < 20; i++ {
		out := start(t, runtime.NewEngine(), c, "alice", "bob")
		roll := out.Snapshot.State.Game["roll"].(int)
		if roll >= 4 {
			assert.Equal(t, "high", out.Fired[1])
		} else {
			assert.Equal(t, "low", out.Fired[1])
		}
	}
}

func TestEngine_Deadlock(t *testing.T) {
	set := testutils.SelfBlockingGame()
	st := set.Instructions.Transitions["start"]
	st.StateDelta = append(st.StateDelta, domain.DeltaOp{Op: "set", Path: "game.armed", Value: false})
	set.Instructions.Transitions["start"] = st

	var faults []*domain.Fault
	var ended int
	e := runtime.NewEngine(runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnFault:        func(_ context.Context, ev *domain.FaultEvent) { faults = append(faults, ev.Fault) },
		OnSessionEnded: func(context.Context, *domain.SessionEndedEvent) { ended++ },
	}))

	out := start(t, e, compile(t, set), "alice")
	require.NotNil(t, out.Fault)
	assert.ErrorIs(t, out.Fault, &domain.Fault{Kind: domain.FaultDeadlock})
	assert.Contains(t, out.Fault.Message, "game is armed")
	assert.Equal(t, "waiting", out.Fault.Phase)
	assert.Equal(t, domain.StatusEnded, out.Snapshot.Status)
	assert.Equal(t, out.Fault, out.Snapshot.Fault)
	assert.Len(t, faults, 1)
	assert.Equal(t, 1, ended)
}

func TestEngine_UnsetFieldIsInvalidState(t *testing.T) {
	out := start(t, runtime.NewEngine(), compile(t, testutils.SelfBlockingGame()), "alice")
	require.NotNil(t, out.Fault)
	assert.Equal(t, domain.FaultInvalidState, out.Fault.Kind)
	assert.Equal(t, "arm", out.Fault.Source)
}

func TestEngine_IterationCap(t *testing.T) {
	set := &domain.ArtifactSet{
		GameID:  "spin",
		Version: "1",
		Graph: domain.TransitionGraphDef{
			Phases: []string{"init", "a", "b", "finished"},
			Transitions: []domain.Transition{
				{ID: "enter", FromPhase: "init", ToPhase: "a"},
				{ID: "ab", FromPhase: "a", ToPhase: "b"},
				{ID: "ba", FromPhase: "b", ToPhase: "a"},
				{ID: "never", FromPhase: "b", ToPhase: "finished", Preconditions: []domain.Precondition{
					{Logic: false},
				}},
			},
		},
	}
	out := start(t, runtime.NewEngine(runtime.WithMaxIterations(10)), compile(t, set), "alice")
	require.NotNil(t, out.Fault)
	assert.Equal(t, domain.FaultDeadlock, out.Fault.Kind)
	assert.Contains(t, out.Fault.Message, "no stable phase after 10 transitions")
	assert.Len(t, out.Fired, 10)
}

func TestEngine_TransitionFailed(t *testing.T) {
	set := testutils.DuelGame(1)
	set.Instructions.Transitions["start"] = domain.AutomaticTransitionInstruction{
		ID:         "start",
		StateDelta: []domain.DeltaOp{{Op: "increment", Path: "game.round", Amount: 1}},
	}
	out := start(t, runtime.NewEngine(), compile(t, set), "alice", "bob")
	require.NotNil(t, out.Fault)
	assert.Equal(t, domain.FaultTransitionFailed, out.Fault.Kind)
	assert.Equal(t, "start", out.Fault.Source)
	assert.ErrorIs(t, out.Fault, delta.ErrUndefinedPath)
	assert.Equal(t, domain.PhaseInit, out.Snapshot.State.Phase())
}

func TestEngine_SchemaViolation(t *testing.T) {
	set := testutils.DuelGame(1)
	st := set.Instructions.Transitions["start"]
	st.StateDelta = append(st.StateDelta, domain.DeltaOp{Op: "set", Path: "game.round", Value: "one"})
	set.Instructions.Transitions["start"] = st

	out := start(t, runtime.NewEngine(), compile(t, set), "alice", "bob")
	require.NotNil(t, out.Fault)
	assert.Equal(t, domain.FaultInvalidState, out.Fault.Kind)
	assert.Contains(t, out.Fault.Message, "game.round")
}

func TestEngine_Hooks(t *testing.T) {
	var fired, applied []string
	e := runtime.NewEngine(runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnTransitionFired: func(_ context.Context, ev *domain.TransitionEvent) {
			assert.Equal(t, "s1", ev.SessionID)
			fired = append(fired, ev.TransitionID)
		},
		OnActionApplied: func(_ context.Context, ev *domain.ActionEvent) {
			applied = append(applied, ev.PlayerID+":"+ev.Action)
		},
	}))
	c := compile(t, testutils.DuelGame(1))
	snap := start(t, e, c, "alice", "bob").Snapshot
	act(t, e, c, snap, "bob", "submit-choice choice=1")

	assert.Equal(t, []string{"start"}, fired)
	assert.Equal(t, []string{"bob:submit-choice"}, applied)
}

func TestEngine_InitializeErrors(t *testing.T) {
	e := runtime.NewEngine()
	c := compile(t, testutils.DuelGame(1))
	ctx := context.Background()

	_, err := e.Initialize(ctx, c, domain.NewSnapshot("s", "duel", "1"), nil)
	assert.ErrorIs(t, err, runtime.ErrNoPlayers)

	_, err = e.Initialize(ctx, c, domain.NewSnapshot("s", "duel", "1"), []string{"a", "a"})
	assert.Error(t, err)

	snap := start(t, e, c, "alice", "bob").Snapshot
	_, err = e.Initialize(ctx, c, snap, []string{"carol"})
	assert.ErrorIs(t, err, domain.ErrSessionInitialized)

	out, err := e.Settle(ctx, c, snap)
	require.NoError(t, err)
	assert.Empty(t, out.Fired)
	assert.Nil(t, out.Fault)
}

// brawlGame lets players hit each other by naming a target. A knockout moves
// to aftermath, which ends the game without reaching finished; quit ends it
// in place.
func brawlGame(t *testing.T) *artifact.Compiled {
	t.Helper()
	b := dsl.New("brawl", "1").PlayerField("hp", "int")
	b.Phase(domain.PhaseInit).Go("start", "play").Do(
		dsl.Set("game.gameEnded", false),
		dsl.ForAll("hp", 3),
		dsl.ForAll("actionRequired", true),
		dsl.ForAll("isGameWinner", false),
	)
	play := b.Phase("play").Input()
	play.Action("hit").
		Do(dsl.Increment("players.{{target}}.hp", -1)).
		Say(domain.MessageToAll, "player2 watches {{.playerId}} hit {{.target}}.")
	play.Action("quit").Do(dsl.Set("game.gameEnded", true))
	play.Go("knockout", "aftermath").
		When("someone is down", dsl.Rule("anyPlayer", "hp", "<=", 0)).
		Do(dsl.Set("game.gameEnded", true), dsl.Set("players.{{playerId}}.isGameWinner", true))
	b.Phase("aftermath")
	b.Phase(domain.PhaseFinished)

	set, err := b.Build()
	require.NoError(t, err)
	return compile(t, set)
}

func TestEngine_GameEndedOutsideFinished(t *testing.T) {
	e := runtime.NewEngine()
	c := brawlGame(t)

	t.Run("by an action", func(t *testing.T) {
		snap := start(t, e, c, "alice", "bob").Snapshot
		out := act(t, e, c, snap, "bob", "quit")
		require.Nil(t, out.Fault)
		assert.Equal(t, domain.StatusEnded, out.Snapshot.Status)
		assert.Equal(t, "play", out.Snapshot.State.Phase())
		assert.Empty(t, out.Snapshot.WinningPlayers)

		_, err := e.ApplyAction(context.Background(), c, out.Snapshot, "alice", runtime.Action{Name: "hit"})
		assert.ErrorIs(t, err, domain.ErrSessionNotActive)
	})

	t.Run("by a transition", func(t *testing.T) {
		snap := start(t, e, c, "alice", "bob").Snapshot
		snap = act(t, e, c, snap, "alice", "hit target=bob").Snapshot
		snap = act(t, e, c, snap, "alice", "hit target=bob").Snapshot
		out := act(t, e, c, snap, "alice", "hit target=bob")
		require.Nil(t, out.Fault)
		assert.Equal(t, []string{"knockout"}, out.Fired)
		assert.Equal(t, domain.StatusEnded, out.Snapshot.Status)
		assert.Equal(t, "aftermath", out.Snapshot.State.Phase())
		assert.Equal(t, []string{"alice"}, out.Snapshot.WinningPlayers)
	})
}

func TestEngine_AliasesAtTheBoundary(t *testing.T) {
	e := runtime.NewEngine()
	c := brawlGame(t)
	snap := start(t, e, c, "alice", "bob").Snapshot

	out := act(t, e, c, snap, "alice", "hit target=player2")
	require.Nil(t, out.Fault)
	assert.Equal(t, domain.StatusActive, out.Snapshot.Status)
	assert.Equal(t, 2, player(t, out.Snapshot, "bob")["hp"])
	assert.Equal(t, 3, player(t, out.Snapshot, "alice")["hp"])
	assert.Equal(t, []ports.Message{{Text: "bob watches alice hit bob."}}, out.Messages)

	out = act(t, e, c, out.Snapshot, "bob", `{"action": "hit", "target": "player1"}`)
	require.Nil(t, out.Fault)
	assert.Equal(t, 2, player(t, out.Snapshot, "alice")["hp"])
	snap = out.Snapshot

	out = act(t, e, c, snap, "bob", "hit target=carol")
	require.NotNil(t, out.Fault)
	assert.Equal(t, domain.FaultRuleViolation, out.Fault.Kind)
	assert.Contains(t, out.Fault.Message, "carol")
	assert.Equal(t, domain.StatusActive, out.Snapshot.Status)
	assert.Equal(t, snap.State, out.Snapshot.State)
}
