package compiler

import (
	"testing"

	"github.com/aretw0/ludus/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	set, err := NewParser().Parse([]byte(`
gameId: tiny
version: "1"
graph:
  phases: [init, finished]
  transitions:
    - id: end
      fromPhase: init
      toPhase: finished
instructions:
  transitions:
    end:
      id: end
      stateDelta:
        - op: set
          path: game.count
          value: 3
`))
	require.NoError(t, err)
	assert.Equal(t, "tiny", set.GameID)
	assert.Equal(t, []string{"init", "finished"}, set.Graph.Phases)
	assert.Equal(t, 3, set.Instructions.Transitions["end"].StateDelta[0].Value)

	_, err = NewParser().Parse([]byte(`version: "1"`))
	assert.ErrorContains(t, err, "missing gameId")
}

func TestParseInto(t *testing.T) {
	var instr domain.Instructions
	err := NewParser().ParseInto([]byte(`{"transitions": {"end": {"id": "end", "stateDelta": [{"op": "increment", "path": "game.n", "amount": 2}]}}}`), &instr)
	require.NoError(t, err)
	assert.Equal(t, 2, instr.Transitions["end"].StateDelta[0].Amount)

	assert.Error(t, NewParser().ParseInto([]byte(""), &instr))
	assert.Error(t, NewParser().ParseInto([]byte("- a\n- b"), &instr))
}
