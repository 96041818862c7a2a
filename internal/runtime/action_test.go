package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Action
	}{
		{"bare", "pass", Action{Name: "pass", Params: map[string]any{}}},
		{"colon pairs", "bid amount: 3 suit: hearts", Action{Name: "bid", Params: map[string]any{"amount": 3, "suit": "hearts"}}},
		{"equals pairs", "bid amount=2.5 all=true", Action{Name: "bid", Params: map[string]any{"amount": 2.5, "all": true}}},
		{"compact colon", "move to:north", Action{Name: "move", Params: map[string]any{"to": "north"}}},
		{"json", `{"action": "bid", "amount": 4, "tags": ["a"]}`, Action{Name: "bid", Params: map[string]any{"amount": 4, "tags": []any{"a"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAction_Errors(t *testing.T) {
	for _, in := range []string{"", "   ", "bid 3", "bid amount:", `{"amount": 1}`, `{"action":`} {
		_, err := ParseAction(in)
		assert.Error(t, err, in)
	}
	_, err := ParseAction("")
	assert.ErrorIs(t, err, ErrEmptyAction)
}

func TestAction_String(t *testing.T) {
	a := Action{Name: "bid", Params: map[string]any{"suit": "hearts", "amount": 3}}
	assert.Equal(t, "bid amount=3 suit=hearts", a.String())
}
