package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		name string
		good any
		bad  any
	}{
		{"string", "string", "x", 1},
		{"integer", "int", float64(3), 3.5},
		{"number", "float", json.Number("1.5"), "1.5"},
		{"boolean", "bool", true, "true"},
		{"[string]", "[string]", []any{"a", "b"}, []any{"a", 1}},
		{"array<int>", "[int]", []int{1, 2}, "1,2"},
		{"object", "object", map[string]any{}, []any{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, err := ParseType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.name, typ.Name())
			assert.NoError(t, typ.Validate(tt.good))
			assert.Error(t, typ.Validate(tt.bad))
		})
	}

	_, err := ParseType("tuple")
	assert.Error(t, err)

	anyType, err := ParseType("any")
	require.NoError(t, err)
	assert.NoError(t, anyType.Validate(nil))
}

func TestValidateState(t *testing.T) {
	game, err := ParseTypeMap(map[string]string{"round": "int", "phaseLabel": "string"})
	require.NoError(t, err)
	player, err := ParseTypeMap(map[string]string{"score": "int", "choice": "string"})
	require.NoError(t, err)
	s := StateSchema{Game: game, Player: player}

	ok := s.ValidateState(
		map[string]any{"round": 1, "unknownField": []any{}},
		map[string]any{"u1": map[string]any{"score": 2}},
	)
	assert.NoError(t, ok, "missing and unknown fields are not type errors")

	err = s.ValidateState(
		map[string]any{"round": "one"},
		map[string]any{
			"u1": map[string]any{"score": 2.5, "choice": "rock"},
			"u2": "broken",
		},
	)
	require.Error(t, err)
	errs := ValidationErrors(err)
	require.Len(t, errs, 3)

	var keys []string
	for _, e := range errs {
		var ve *ValidationError
		require.ErrorAs(t, e, &ve)
		keys = append(keys, ve.Key)
	}
	assert.Equal(t, []string{"game.round", "players.u1.score", "players.u2"}, keys)
	assert.Contains(t, err.Error(), "3 validation errors")
}

func TestCustomType(t *testing.T) {
	positive := Custom("positive", func(v any) error {
		if n, ok := v.(int); !ok || n <= 0 {
			return assert.AnError
		}
		return nil
	})
	err := Validate(Schema{"lives": positive}, map[string]any{"lives": 0})
	require.Error(t, err)
	assert.Len(t, ValidationErrors(err), 1)
	assert.NoError(t, Validate(Schema{"lives": positive}, map[string]any{"lives": 2}))
}
