package runner

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ioPipe() (*io.PipeReader, *io.PipeWriter) { return io.Pipe() }

func activeSnapshot() *domain.Snapshot {
	snap := domain.NewSnapshot("s1", "counter", "1")
	snap.Status = domain.StatusActive
	snap.State = domain.NewGameState("ann", "bob")
	snap.State.Game["currentPhase"] = "play"
	snap.State.Game["count"] = 1
	snap.State.Game["publicMessage"] = "Bump away"
	ann := snap.State.Players["ann"].(map[string]any)
	ann[domain.PlayerActionRequired] = true
	ann[domain.PlayerPrivateMessage] = "secret"
	return snap
}

func TestTextHandler_Output(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader(""), out, WithTextHandlerRenderer(func(s string) (string, error) {
		return "Rendered: " + s, nil
	}))

	prompt := Prompt{Phase: "play", Players: []PlayerPrompt{{PlayerID: "ann", Actions: []ActionInfo{{Name: "bump"}}}}}
	err := h.Output(context.Background(), Frame{
		Snapshot: activeSnapshot(),
		Messages: []ports.Message{{To: "ann", Text: "psst"}},
		Prompt:   &prompt,
	})
	require.NoError(t, err)

	got := out.String()
	assert.True(t, strings.HasPrefix(got, "Rendered: "))
	assert.Contains(t, got, "## Phase: play")
	assert.Contains(t, got, "_Bump away_")
	assert.Contains(t, got, "**@ann:** psst")
	assert.Contains(t, got, "bump")
	assert.NotContains(t, got, "secret")
}

func TestTextHandler_Output_Rejected(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader(""), out)

	f := domain.NewFault(domain.FaultRuleViolation, "follow", "play", assert.AnError)
	require.NoError(t, h.Output(context.Background(), Frame{Snapshot: activeSnapshot(), Fault: f}))
	assert.Contains(t, out.String(), "**Rejected:**")
	assert.NotContains(t, out.String(), "## Phase")
}

func TestTextHandler_Input(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader("\n  bump \n@bob follow now\nbad\x00\x01input\n"), out)
	prompt := Prompt{Players: []PlayerPrompt{{PlayerID: "ann"}}}

	sub, err := h.Input(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, Submission{PlayerID: "ann", Action: "bump"}, sub)

	sub, err = h.Input(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, Submission{PlayerID: "bob", Action: "follow now"}, sub)

	sub, err = h.Input(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "badinput", sub.Action)

	_, err = h.Input(context.Background(), prompt)
	assert.ErrorIs(t, err, io.EOF)
	assert.Contains(t, out.String(), "[ann] > ")
}

func TestTextHandler_Input_Cancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	h := NewTextHandler(pr, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Input(ctx, Prompt{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTextHandler_SystemOutput(t *testing.T) {
	out := &bytes.Buffer{}
	h := NewTextHandler(strings.NewReader(""), out)
	require.NoError(t, h.SystemOutput(context.Background(), "hello"))
	assert.Equal(t, "[System] hello\n", out.String())
}

func TestParseSubmission(t *testing.T) {
	prompt := Prompt{Players: []PlayerPrompt{{PlayerID: "ann"}, {PlayerID: "bob"}}}
	tests := []struct {
		line string
		want Submission
	}{
		{"bump", Submission{PlayerID: "ann", Action: "bump"}},
		{"@bob bump", Submission{PlayerID: "bob", Action: "bump"}},
		{"@bob   submit-choice choice=2", Submission{PlayerID: "bob", Action: "submit-choice choice=2"}},
		{"@bob", Submission{PlayerID: "bob", Action: ""}},
		{`{"name":"bump"}`, Submission{PlayerID: "ann", Action: `{"name":"bump"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSubmission(tt.line, prompt))
		})
	}
	assert.Equal(t, "", Prompt{}.Default())
}
