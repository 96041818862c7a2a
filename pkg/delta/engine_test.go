package delta

import (
	"testing"

	"github.com/aretw0/ludus/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseState() *domain.GameState {
	return &domain.GameState{
		Game: map[string]any{"currentPhase": "choice", "pot": 0, "log": []any{"start"}},
		Players: map[string]any{
			"u1": map[string]any{"score": 0, "coins": 10},
			"u2": map[string]any{"score": 2, "coins": 1},
		},
	}
}

func compile(t *testing.T, ops ...domain.DeltaOp) Program {
	t.Helper()
	prog, errs := CompileProgram(ops)
	require.Empty(t, errs)
	return prog
}

func TestApply_AllOperations(t *testing.T) {
	prog := compile(t,
		domain.DeltaOp{Op: "set", Path: "players.{{playerId}}.choice", Value: "rock"},
		domain.DeltaOp{Op: "increment", Path: "players.{{playerId}}.score", Value: 1},
		domain.DeltaOp{Op: "append", Path: "game.log", Value: "{{playerId}} chose"},
		domain.DeltaOp{Op: "append", Path: "game.history", Value: 1},
		domain.DeltaOp{Op: "merge", Path: "game.meta", Value: map[string]any{"round": 1}},
		domain.DeltaOp{Op: "transfer", From: "players.u1.coins", To: "game.pot", Amount: 4},
		domain.DeltaOp{Op: "setForAllPlayers", Field: "actionRequired", Value: false},
		domain.DeltaOp{Op: "delete", Path: "players.u2.score"},
		domain.DeltaOp{Op: "rng", Path: "game.roll", Choices: []any{1, 2, 3}, Probabilities: []float64{0.2, 0.3, 0.5}},
	)

	e := New(WithChooser(FixedChoice(2)))
	in := baseState()
	res, err := e.Apply(in, prog, Vars{"playerId": "u1"})
	require.NoError(t, err)

	s := res.State
	u1, _ := s.Player("u1")
	u2, _ := s.Player("u2")
	assert.Equal(t, "rock", u1["choice"])
	assert.Equal(t, 1, u1["score"])
	assert.Equal(t, []any{"start", "u1 chose"}, s.Game["log"])
	assert.Equal(t, []any{1}, s.Game["history"])
	assert.Equal(t, map[string]any{"round": 1}, s.Game["meta"])
	assert.Equal(t, 6, u1["coins"])
	assert.Equal(t, 4, s.Game["pot"])
	assert.Equal(t, false, u1["actionRequired"])
	assert.Equal(t, false, u2["actionRequired"])
	assert.NotContains(t, u2, "score")
	assert.Equal(t, 3, s.Game["roll"])

	var touched []string
	for _, p := range res.Touched {
		touched = append(touched, p.String())
	}
	assert.Contains(t, touched, "players.u1.choice")
	assert.Contains(t, touched, "players.u2.actionRequired")

	orig, _ := in.Player("u1")
	assert.Equal(t, 0, orig["score"], "input state must not be mutated")
}

func TestApply_HardErrors(t *testing.T) {
	tests := []struct {
		name string
		op   domain.DeltaOp
		vars Vars
		want error
	}{
		{"increment undefined", domain.DeltaOp{Op: "increment", Path: "game.round", Value: 1}, nil, ErrUndefinedPath},
		{"increment non-number", domain.DeltaOp{Op: "increment", Path: "game.currentPhase", Value: 1}, nil, ErrTypeMismatch},
		{"transfer insufficient", domain.DeltaOp{Op: "transfer", From: "players.u2.coins", To: "game.pot", Amount: 5}, nil, ErrInsufficientAmount},
		{"unresolved placeholder", domain.DeltaOp{Op: "set", Path: "players.{{playerId}}.x", Value: 1}, nil, ErrUnresolvedPlaceholder},
		{"unknown player", domain.DeltaOp{Op: "set", Path: "players.{{playerId}}.x", Value: 1}, Vars{"playerId": "ghost"}, ErrUndefinedPath},
		{"unknown player by name", domain.DeltaOp{Op: "set", Path: "players.{{playerId}}.x", Value: 1}, Vars{"playerId": "ghost"}, domain.ErrUnknownPlayer},
		{"transfer to itself", domain.DeltaOp{Op: "transfer", From: "players.{{playerId}}.coins", To: "players.u1.coins", Amount: 1}, Vars{"playerId": "u1"}, ErrSelfTransfer},
		{"append to scalar", domain.DeltaOp{Op: "append", Path: "game.pot", Value: 1}, nil, ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := compile(t, domain.DeltaOp{Op: "set", Path: "game.touched", Value: true}, tt.op)
			in := baseState()
			_, err := New().Apply(in, prog, tt.vars)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var opErr *OpError
			require.ErrorAs(t, err, &opErr)
			assert.Equal(t, 1, opErr.Index)
			assert.Equal(t, tt.op.Op, opErr.Kind)
			assert.NotContains(t, in.Game, "touched", "failed programs leave state untouched")
		})
	}
}

func TestSetForAllPlayers_IncludesLateJoiners(t *testing.T) {
	prog := compile(t, domain.DeltaOp{Op: "setForAllPlayers", Field: "ready", Value: true})
	s := baseState()
	s.Players["late"] = map[string]any{}

	res, err := New().Apply(s, prog, nil)
	require.NoError(t, err)
	assert.True(t, res.State.PlayerFlag("late", "ready"))
	assert.True(t, res.State.PlayerFlag("u1", "ready"))
}

func TestAmountPlaceholder(t *testing.T) {
	prog := compile(t, domain.DeltaOp{Op: "transfer", From: "players.{{playerId}}.coins", To: "game.pot", Amount: "{{bet}}"})
	res, err := New().Apply(baseState(), prog, Vars{"playerId": "u1", "bet": "3"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.State.Game["pot"])

	_, err = New().Apply(baseState(), prog, Vars{"playerId": "u1", "bet": "lots"})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestCompile_Rejects(t *testing.T) {
	tests := []domain.DeltaOp{
		{Op: "set", Path: "game.roundWinsP{{playerId}}", Value: 1},
		{Op: "set", Path: "game.list", Value: []any{"{{playerId}}"}},
		{Op: "merge", Path: "game.meta", Value: map[string]any{"who": "{{playerId}}"}},
		{Op: "merge", Path: "game.meta", Value: 3},
		{Op: "rng", Path: "game.roll", Choices: []any{1, 2}, Probabilities: []float64{1}},
		{Op: "increment", Path: "game.x", Value: "lots"},
		{Op: "explode", Path: "game.x"},
		{Op: "set"},
	}
	for _, op := range tests {
		_, err := Compile(op)
		assert.Error(t, err, "%+v", op)
	}

	_, err := Compile(domain.DeltaOp{Op: "set", Path: "game.list", Value: []any{"{{playerId}}"}})
	assert.ErrorIs(t, err, ErrNestedPlaceholder)
}

func TestCheck_RNG(t *testing.T) {
	issues := Check(domain.DeltaOp{Op: "rng", Path: "game.roll", Choices: []any{1, 2}, Probabilities: []float64{0.5, 0.4}})
	require.Len(t, issues, 1)
	assert.True(t, issues[0].Warning)

	issues = Check(domain.DeltaOp{Op: "rng", Path: "game.roll", Choices: []any{1, 2}, Probabilities: []float64{0.5, 0.495}})
	assert.Empty(t, issues, "within tolerance")

	issues = Check(domain.DeltaOp{Op: "rng", Path: "game.roll", Choices: []any{1, 2, 3}, Probabilities: []float64{0.5, 0.5}})
	require.Len(t, issues, 1)
	assert.False(t, issues[0].Warning)
}

func TestWeightedChooser_Distribution(t *testing.T) {
	c := NewWeightedChooser(42)
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[c.Choose([]float64{0, 1, 3})]++
	}
	assert.Zero(t, counts[0])
	assert.Greater(t, counts[2], counts[1])

	assert.Equal(t, 0, FirstChoice{}.Choose([]float64{0.1, 0.9}))
}

func TestWrites(t *testing.T) {
	prog := compile(t,
		domain.DeltaOp{Op: "set", Path: "players.{{playerId}}.choice", Value: "x"},
		domain.DeltaOp{Op: "setForAllPlayers", Field: "choice", Value: ""},
		domain.DeltaOp{Op: "transfer", From: "players.{{playerId}}.coins", To: "game.pot", Amount: 1},
	)
	assert.Equal(t, []string{"game.pot", "players.*.choice", "players.*.coins"}, Writes(prog))
}

func TestApply_TypedPlaceholder(t *testing.T) {
	prog := compile(t,
		domain.DeltaOp{Op: "set", Path: "players.{{playerId}}.choice", Value: "{{choice}}"},
		domain.DeltaOp{Op: "set", Path: "game.note", Value: "{{playerId}} picked {{choice}}"},
	)
	res, err := New().Apply(baseState(), prog, Vars{"playerId": "u1", "choice": 3})
	require.NoError(t, err)

	u1, _ := res.State.Player("u1")
	assert.Equal(t, 3, u1["choice"])
	assert.Equal(t, "u1 picked 3", res.State.Game["note"])
}
