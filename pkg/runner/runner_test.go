package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/ludus/internal/testutils"
	"github.com/aretw0/ludus/internal/validator"
	"github.com/aretw0/ludus/pkg/adapters/memory"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	source := memory.NewSource(testutils.CounterGame(2))
	registry := artifact.NewRegistry(source, artifact.WithAcceptor(validator.New().Accept))
	return session.NewManager(memory.NewStore(), registry)
}

func runWithInput(t *testing.T, mgr *session.Manager, input string, opts ...Option) string {
	t.Helper()
	out := &bytes.Buffer{}
	opts = append(opts, WithInputHandler(NewTextHandler(strings.NewReader(input), out)))
	r := NewRunner(mgr, "table", opts...)

	done := make(chan error, 1)
	go func() { done <- r.Run(t.Context()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not finish")
	}
	return out.String()
}

func TestRunner_Run_PlaysToTheEnd(t *testing.T) {
	mgr := newManager(t)
	_, err := mgr.CreateSession(t.Context(), "table", "counter", "1")
	require.NoError(t, err)

	output := runWithInput(t, mgr, "follow\nbump\n@zed bump\n@bob follow\n", WithPlayers("ann", "bob"))

	assert.Contains(t, output, "## Phase: play")
	assert.Contains(t, output, "[ann] > ")
	assert.Contains(t, output, "**Rejected:** nothing to follow yet")
	assert.Contains(t, output, "[System] unknown player: zed")
	assert.Contains(t, output, "**Game over.** Winners: ann")

	snap, err := mgr.GetState(t.Context(), "table")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, snap.Status)
	assert.Equal(t, []any{"ann:bump", "bob:follow"}, snap.State.Game["log"])
}

func TestRunner_Run_ResumesActiveSession(t *testing.T) {
	mgr := newManager(t)
	ctx := t.Context()
	_, err := mgr.CreateSession(ctx, "table", "counter", "1")
	require.NoError(t, err)
	_, err = mgr.InitializeSession(ctx, "table", []string{"ann", "bob"})
	require.NoError(t, err)
	_, err = mgr.SubmitAction(ctx, "table", "ann", "bump")
	require.NoError(t, err)

	output := runWithInput(t, mgr, "@bob bump\n")
	assert.Contains(t, output, "**Game over.** Winners: ann")
}

func TestRunner_Run_QuitKeepsSession(t *testing.T) {
	mgr := newManager(t)
	_, err := mgr.CreateSession(t.Context(), "table", "counter", "1")
	require.NoError(t, err)

	runWithInput(t, mgr, "bump\nquit\nbump\n", WithPlayers("ann"))

	snap, err := mgr.GetState(t.Context(), "table")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, snap.Status)
	assert.EqualValues(t, 1, snap.State.Game["count"])
}

func TestRunner_Run_EOF(t *testing.T) {
	mgr := newManager(t)
	_, err := mgr.CreateSession(t.Context(), "table", "counter", "1")
	require.NoError(t, err)

	runWithInput(t, mgr, "", WithPlayers("ann", "bob"))

	snap, err := mgr.GetState(t.Context(), "table")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, snap.Status)
}

func TestRunner_Run_Errors(t *testing.T) {
	mgr := newManager(t)

	r := NewRunner(mgr, "missing", WithInputHandler(NewTextHandler(strings.NewReader(""), &bytes.Buffer{})))
	assert.ErrorIs(t, r.Run(t.Context()), domain.ErrSessionNotFound)

	_, err := mgr.CreateSession(t.Context(), "table", "counter", "1")
	require.NoError(t, err)
	r = NewRunner(mgr, "table", WithInputHandler(NewTextHandler(strings.NewReader(""), &bytes.Buffer{})))
	assert.Error(t, r.Run(t.Context()), "uninitialized session without players")
}

func TestRunner_Run_Cancelled(t *testing.T) {
	mgr := newManager(t)
	_, err := mgr.CreateSession(t.Context(), "table", "counter", "1")
	require.NoError(t, err)

	pr, pw := ioPipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(t.Context())
	r := NewRunner(mgr, "table", WithPlayers("ann"), WithInputHandler(NewTextHandler(pr, &bytes.Buffer{})))

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner ignored cancellation")
	}
}
