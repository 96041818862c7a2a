package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/ludus/internal/testutils"
	"github.com/aretw0/ludus/internal/validator"
	"github.com/aretw0/ludus/pkg/adapters/memory"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	source := memory.NewSource(testutils.DuelGame(1))
	registry := artifact.NewRegistry(source, artifact.WithAcceptor(validator.New().Accept))
	return NewServer(session.NewManager(memory.NewStore(), registry), registry, "test")
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := newTestServer(t)
	assert.NotNil(t, s.MCPServer())
}

func TestPlayDuelThroughTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	snap, err := s.handleCreate(ctx, req, CreateArgs{SessionID: "m1", GameID: "duel", Version: "1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUninitialized, snap.Status)

	out, err := s.handleInit(ctx, req, InitArgs{SessionID: "m1", Players: []string{"ann", "ben"}})
	require.NoError(t, err)
	assert.Equal(t, "choice", out.Snapshot.State.Phase())

	out, err = s.handleSubmit(ctx, req, ActionArgs{SessionID: "m1", PlayerID: "player1", Action: "submit-choice choice: 7"})
	require.NoError(t, err)
	require.NotNil(t, out.Fault)
	assert.Equal(t, domain.FaultRuleViolation, out.Fault.Kind)
	assert.Contains(t, out.Fault.Message, "between 1 and 3")

	_, err = s.handleSubmit(ctx, req, ActionArgs{SessionID: "m1", PlayerID: "ann", Action: "submit-choice choice: 3"})
	require.NoError(t, err)
	out, err = s.handleSubmit(ctx, req, ActionArgs{SessionID: "m1", PlayerID: "ben", Action: `{"action": "submit-choice", "choice": 1}`})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, out.Snapshot.Status)
	assert.Equal(t, []string{"ann"}, out.Snapshot.WinningPlayers)

	got, err := s.handleGetState(ctx, req, SessionRef{SessionID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseFinished, got.State.Phase())

	_, err = s.handleGetState(ctx, req, SessionRef{SessionID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSubmit_RejectsOversizedInput(t *testing.T) {
	s := newTestServer(t)
	t.Setenv("LUDUS_MAX_INPUT_SIZE", "4")
	_, err := s.handleSubmit(context.Background(), mcp.CallToolRequest{}, ActionArgs{SessionID: "x", PlayerID: "a", Action: "submit-choice"})
	assert.ErrorContains(t, err, "input rejected")
}

func TestValidateTool(t *testing.T) {
	s := newTestServer(t)
	doc, err := json.Marshal(testutils.OrphanGame())
	require.NoError(t, err)

	res, err := s.handleValidate(context.Background(), mcp.CallToolRequest{}, ValidateArgs{Document: string(doc)})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Issues)

	_, err = s.handleValidate(context.Background(), mcp.CallToolRequest{}, ValidateArgs{Document: "version: 1"})
	assert.Error(t, err, "a document without gameId does not parse")
}

func TestGraphAndListTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGraph(ctx, mcp.CallToolRequest{}, GraphArgs{GameID: "duel", Version: "1"})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, res), "graph TD")

	res, err = s.handleGraph(ctx, mcp.CallToolRequest{}, GraphArgs{GameID: "duel", Version: "2"})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.handleListGames(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"gameId":"duel","version":"1"}]`, textOf(t, res))
}
