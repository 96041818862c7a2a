package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/ludus/internal/testutils"
	"github.com/aretw0/ludus/pkg/adapters/memory"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validate(set *domain.ArtifactSet) *Report {
	return New().Validate(artifact.Compile(set))
}

func subjects(issues []domain.Issue, check string) []string {
	var out []string
	for _, i := range issues {
		if i.Check == check {
			out = append(out, i.Subject)
		}
	}
	return out
}

func TestValidate_Duel(t *testing.T) {
	r := validate(testutils.DuelGame(3))
	require.True(t, r.OK(), "%v", r.Errors())
	assert.NoError(t, r.Err())

	// The scoring transitions read the choices they reset.
	assert.ElementsMatch(t,
		[]string{"player1-takes-round", "player2-takes-round", "round-tied"},
		subjects(r.Warnings(), CheckSelfBlocking),
	)
	assert.Len(t, r.Warnings(), 3)
}

func TestValidate_SelfBlocking(t *testing.T) {
	r := validate(testutils.SelfBlockingGame())
	require.False(t, r.OK())

	assert.Equal(t, []string{"arm"}, subjects(r.Errors(), CheckSelfBlocking))
	assert.True(t, r.Has(CheckDeadlock, "waiting"))

	var verr *domain.ValidationError
	require.ErrorAs(t, r.Err(), &verr)
	assert.Contains(t, verr.Error(), "arm")
}

func TestValidate_DeadlockMessageNamesCondition(t *testing.T) {
	r := validate(testutils.SelfBlockingGame())
	for _, i := range r.Errors() {
		if i.Check == CheckDeadlock {
			assert.Contains(t, i.Message, "game is armed")
			assert.Contains(t, i.Message, "game.armed")
			return
		}
	}
	t.Fatal("no deadlock issue reported")
}

func TestValidate_OrphanPhase(t *testing.T) {
	r := validate(testutils.OrphanGame())
	assert.Equal(t, []string{"limbo"}, subjects(r.Errors(), CheckReachability))
}

func TestValidate_Dice(t *testing.T) {
	r := validate(testutils.DiceGame())
	assert.True(t, r.OK(), "%v", r.Errors())
	assert.Empty(t, subjects(r.Warnings(), "rng"))
}

func TestValidate_RNGWeights(t *testing.T) {
	set := testutils.DiceGame()
	roll := set.Instructions.Transitions["roll"]
	roll.StateDelta[3].Probabilities = []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}
	set.Instructions.Transitions["roll"] = roll
	r := validate(set)
	assert.True(t, r.OK())
	assert.Equal(t, []string{"roll"}, subjects(r.Warnings(), "rng"))

	roll.StateDelta[3].Probabilities = []float64{1}
	set.Instructions.Transitions["roll"] = roll
	r = validate(set)
	assert.False(t, r.OK())
	assert.Contains(t, subjects(r.Errors(), artifact.CheckCompile), "roll")
}

func TestValidate_Structure(t *testing.T) {
	set := testutils.DuelGame(1)
	set.Graph.Phases = []string{"choice", "resolve", "tally", "finished"}
	set.Graph.Transitions = append(set.Graph.Transitions, domain.Transition{ID: "warp", FromPhase: "tally", ToPhase: "nowhere"})
	set.Instructions.Transitions["ghost"] = domain.AutomaticTransitionInstruction{ID: "ghost"}

	r := validate(set)
	errs := subjects(r.Errors(), CheckStructure)
	assert.Contains(t, errs, "init")
	assert.Contains(t, errs, "warp")
	assert.Contains(t, errs, "ghost")
	assert.False(t, r.Has(CheckDeadlock, "init"))
}

func TestValidate_InputPhaseWithoutActions(t *testing.T) {
	set := testutils.DuelGame(1)
	delete(set.Instructions.PlayerPhases, "choice")
	r := validate(set)
	assert.Contains(t, subjects(r.Errors(), CheckStructure), "choice")
}

func TestValidate_Coverage(t *testing.T) {
	set := testutils.DuelGame(1)
	set.Graph.Transitions[len(set.Graph.Transitions)-1].Preconditions = append(
		set.Graph.Transitions[len(set.Graph.Transitions)-1].Preconditions,
		domain.Precondition{Logic: map[string]any{"==": []any{map[string]any{"var": "game.mystery"}, 1}}},
	)
	r := validate(set)
	require.False(t, r.OK())
	assert.Equal(t, []string{"draw"}, subjects(r.Errors(), CheckCoverage))
	assert.Contains(t, subjects(r.Warnings(), CheckSchema), "draw")
}

func TestValidate_CurrentPhaseIsEngineWritten(t *testing.T) {
	set := testutils.DuelGame(1)
	set.Graph.Transitions[1].Preconditions = append(set.Graph.Transitions[1].Preconditions,
		domain.Precondition{Logic: map[string]any{"==": []any{map[string]any{"var": "game.currentPhase"}, "choice"}}},
	)
	r := validate(set)
	assert.True(t, r.OK(), "%v", r.Errors())
	assert.Empty(t, subjects(r.Issues, CheckCoverage))
}

func TestValidate_WinCoverage(t *testing.T) {
	set := testutils.DuelGame(1)
	for _, id := range []string{"player1-wins", "player2-wins", "draw"} {
		set.Instructions.Transitions[id] = domain.AutomaticTransitionInstruction{ID: id}
	}
	r := validate(set)
	assert.Equal(t, []string{domain.FieldGameEnded}, subjects(r.Errors(), CheckWin))
	assert.Equal(t, []string{winnerField}, subjects(r.Warnings(), CheckWin), "the start program still writes false for everyone")

	// Without any write to isGameWinner the set never decides its winners.
	start := set.Instructions.Transitions["start"]
	var kept []domain.DeltaOp
	for _, op := range start.StateDelta {
		if op.Field != domain.PlayerIsGameWinner {
			kept = append(kept, op)
		}
	}
	start.StateDelta = kept
	set.Instructions.Transitions["start"] = start

	r = validate(set)
	assert.Equal(t, []string{domain.FieldGameEnded, winnerField}, subjects(r.Errors(), CheckWin))
	assert.Empty(t, subjects(r.Warnings(), CheckWin))
}

func TestValidate_DrawOnlyGame(t *testing.T) {
	set := testutils.DuelGame(1)
	for _, id := range []string{"player1-wins", "player2-wins"} {
		set.Instructions.Transitions[id] = domain.AutomaticTransitionInstruction{
			ID:         id,
			StateDelta: []domain.DeltaOp{{Op: "set", Path: "game.gameEnded", Value: true}},
		}
	}
	r := validate(set)
	assert.Empty(t, subjects(r.Errors(), CheckWin), "explicit false writes decide that nobody wins")
	assert.Equal(t, []string{winnerField}, subjects(r.Warnings(), CheckWin))
}

func TestValidate_WinnerNeverOnPath(t *testing.T) {
	set := testutils.DuelGame(1)
	set.Graph.Phases = append(set.Graph.Phases, "bonus")
	set.Graph.PhaseMetadata = append(set.Graph.PhaseMetadata, domain.PhaseMetadata{Phase: "bonus"})
	for _, id := range []string{"player1-wins", "player2-wins"} {
		set.Instructions.Transitions[id] = domain.AutomaticTransitionInstruction{
			ID:         id,
			StateDelta: []domain.DeltaOp{{Op: "set", Path: "game.gameEnded", Value: true}},
		}
	}
	set.Graph.Transitions = append(set.Graph.Transitions,
		domain.Transition{ID: "to-bonus", FromPhase: "finished", ToPhase: "bonus"},
		domain.Transition{ID: "crown", FromPhase: "bonus", ToPhase: "finished"},
	)
	set.Instructions.Transitions["crown"] = domain.AutomaticTransitionInstruction{
		ID:         "crown",
		StateDelta: []domain.DeltaOp{{Op: "set", Path: "players.{{player1}}.isGameWinner", Value: true}},
	}

	r := validate(set)
	found := false
	for _, w := range r.Warnings() {
		if w.Check == CheckWin && strings.Contains(w.Message, "no path") {
			found = true
		}
	}
	assert.True(t, found, "%v", r.Issues)
}

func TestValidateSource(t *testing.T) {
	src := memory.NewSource(testutils.DuelGame(2))
	v := New(WithMockPlayers(3))

	r, err := v.ValidateSource(context.Background(), src, domain.Key{GameID: "duel", Version: "1"})
	require.NoError(t, err)
	assert.True(t, r.OK())

	_, err = v.ValidateSource(context.Background(), src, domain.Key{GameID: "nope", Version: "1"})
	assert.ErrorIs(t, err, domain.ErrArtifactsNotFound)
}

func TestAccept(t *testing.T) {
	v := New()
	assert.NoError(t, v.Accept(artifact.Compile(testutils.DuelGame(1))))
	assert.Error(t, v.Accept(artifact.Compile(testutils.SelfBlockingGame())))
}

func TestValidatePlan(t *testing.T) {
	plan := testutils.DuelGame(1)
	plan.Instructions = domain.Instructions{}

	r := New().ValidatePlan(artifact.Compile(plan))
	assert.True(t, r.OK(), "%v", r.Errors())
	// The full suite rejects the same set for its missing actions.
	assert.False(t, validate(plan).OK())

	orphan := testutils.OrphanGame()
	orphan.Instructions = domain.Instructions{}
	r = New().ValidatePlan(artifact.Compile(orphan))
	assert.Equal(t, []string{"limbo"}, subjects(r.Errors(), CheckReachability))
}
