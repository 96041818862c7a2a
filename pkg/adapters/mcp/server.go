package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/ludus/internal/compiler"
	"github.com/aretw0/ludus/internal/logging"
	"github.com/aretw0/ludus/internal/presentation/graph"
	"github.com/aretw0/ludus/internal/validator"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
	"github.com/aretw0/ludus/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// GamesURI is the resource listing the stored artifact sets.
const GamesURI = "ludus://games"

// ValidationResponse is the structured result of validate_artifacts.
type ValidationResponse struct {
	OK     bool           `json:"ok" jsonschema_description:"True when the artifacts may be executed"`
	Issues []domain.Issue `json:"issues" jsonschema_description:"Every error and warning found"`
}

// SessionRef addresses one session.
type SessionRef struct {
	SessionID string `json:"session_id"`
}

// CreateArgs are the arguments of create_session.
type CreateArgs struct {
	SessionID string `json:"session_id"`
	GameID    string `json:"game_id"`
	Version   string `json:"version"`
}

// InitArgs are the arguments of initialize_session.
type InitArgs struct {
	SessionID string   `json:"session_id"`
	Players   []string `json:"players"`
}

// ActionArgs are the arguments of submit_action.
type ActionArgs struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	Action    string `json:"action"`
}

// ValidateArgs are the arguments of validate_artifacts.
type ValidateArgs struct {
	Document string `json:"document"`
}

// GraphArgs are the arguments of get_graph.
type GraphArgs struct {
	GameID    string `json:"game_id"`
	Version   string `json:"version"`
	SessionID string `json:"session_id"`
}

// Server exposes the session service as MCP tools, so that an agent can
// validate the artifacts it generated and play them.
type Server struct {
	sessions  ports.SessionService
	registry  *artifact.Registry
	validator *validator.Validator
	parser    *compiler.Parser
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithValidator sets the validator used by validate_artifacts.
func WithValidator(v *validator.Validator) Option {
	return func(s *Server) {
		s.validator = v
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions ports.SessionService, registry *artifact.Registry, version string, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		registry: registry,
		parser:   compiler.NewParser(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validator.New(validator.WithLogger(s.logger))
	}
	s.mcpServer = server.NewMCPServer("ludus-mcp", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server, mostly for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves on the given port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Baggage, Sentry-Trace")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("validate_artifacts",
		mcp.WithDescription("Run the static validator on an artifact set (JSON or YAML) and report every issue."),
		mcp.WithString("document", mcp.Required(), mcp.Description("The artifact set document")),
		mcp.WithOutputSchema[ValidationResponse](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("list_games",
		mcp.WithDescription("List the stored game versions."),
	), s.handleListGames)

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Render the phase graph of a game version as a Mermaid flowchart."),
		mcp.WithString("game_id", mcp.Required()),
		mcp.WithString("version", mcp.Required()),
		mcp.WithString("session_id", mcp.Description("Highlight the current phase of this session (optional)")),
	), mcp.NewTypedToolHandler(s.handleGraph))

	s.mcpServer.AddTool(mcp.NewTool("create_session",
		mcp.WithDescription("Create a session bound to a validated game version."),
		mcp.WithString("game_id", mcp.Required()),
		mcp.WithString("version", mcp.Required()),
		mcp.WithString("session_id", mcp.Description("Session id (optional, generated when omitted)")),
		mcp.WithOutputSchema[domain.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleCreate))

	s.mcpServer.AddTool(mcp.NewTool("initialize_session",
		mcp.WithDescription("Seed the players, in join order, and run the game until it waits for input."),
		mcp.WithString("session_id", mcp.Required()),
		mcp.WithArray("players", mcp.Required(), mcp.WithStringItems(), mcp.Description("Player ids; the first is player1")),
		mcp.WithOutputSchema[ports.Outcome](),
	), mcp.NewStructuredToolHandler(s.handleInit))

	s.mcpServer.AddTool(mcp.NewTool("submit_action",
		mcp.WithDescription("Submit a player action such as 'submit-choice choice: 2'. Rule violations come back in the fault field with the state unchanged."),
		mcp.WithString("session_id", mcp.Required()),
		mcp.WithString("player_id", mcp.Required(), mcp.Description("Player id or alias (player1, player2, ...)")),
		mcp.WithString("action", mcp.Required()),
		mcp.WithOutputSchema[ports.Outcome](),
	), mcp.NewStructuredToolHandler(s.handleSubmit))

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Fetch the current snapshot of a session."),
		mcp.WithString("session_id", mcp.Required()),
		mcp.WithOutputSchema[domain.Snapshot](),
	), mcp.NewStructuredToolHandler(s.handleGetState))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List session ids."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.sessions.ListSessions(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return jsonResult(ids)
	})

	s.mcpServer.AddTool(mcp.NewTool("delete_session",
		mcp.WithDescription("Delete a session once its queued submissions ran."),
		mcp.WithString("session_id", mcp.Required()),
	), mcp.NewTypedToolHandler(func(ctx context.Context, request mcp.CallToolRequest, args SessionRef) (*mcp.CallToolResult, error) {
		if err := s.sessions.DeleteSession(ctx, args.SessionID); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("deleted " + args.SessionID), nil
	}))
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args ValidateArgs) (ValidationResponse, error) {
	set, err := s.parser.Parse([]byte(args.Document))
	if err != nil {
		return ValidationResponse{}, err
	}
	report := s.validator.Validate(artifact.Compile(set))
	issues := report.Issues
	if issues == nil {
		issues = []domain.Issue{}
	}
	return ValidationResponse{OK: report.OK(), Issues: issues}, nil
}

func (s *Server) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keys, err := s.registry.Source().List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	return jsonResult(keys)
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest, args GraphArgs) (*mcp.CallToolResult, error) {
	c, err := s.registry.Get(ctx, domain.Key{GameID: args.GameID, Version: args.Version})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var overlay *graph.GraphOverlay
	if args.SessionID != "" {
		snap, err := s.sessions.GetState(ctx, args.SessionID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		overlay = &graph.GraphOverlay{}
		if snap.State != nil {
			overlay.CurrentPhase = snap.State.Phase()
		}
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(c, overlay)), nil
}

func (s *Server) handleCreate(ctx context.Context, request mcp.CallToolRequest, args CreateArgs) (domain.Snapshot, error) {
	snap, err := s.sessions.CreateSession(ctx, args.SessionID, args.GameID, args.Version)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return *snap, nil
}

func (s *Server) handleInit(ctx context.Context, request mcp.CallToolRequest, args InitArgs) (ports.Outcome, error) {
	out, err := s.sessions.InitializeSession(ctx, args.SessionID, args.Players)
	if err != nil {
		return ports.Outcome{}, err
	}
	return *out, nil
}

func (s *Server) handleSubmit(ctx context.Context, request mcp.CallToolRequest, args ActionArgs) (ports.Outcome, error) {
	clean, err := runner.SanitizeInput(args.Action)
	if err != nil {
		s.logger.Warn("MCP submit: input rejected", "err", err, "size", len(args.Action))
		return ports.Outcome{}, fmt.Errorf("input rejected: %w", err)
	}
	out, err := s.sessions.SubmitAction(ctx, args.SessionID, args.PlayerID, clean)
	if err != nil {
		return ports.Outcome{}, err
	}
	return *out, nil
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest, args SessionRef) (domain.Snapshot, error) {
	snap, err := s.sessions.GetState(ctx, args.SessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return *snap, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GamesURI, "Stored game versions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		keys, err := s.registry.Source().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list games: %w", err)
		}
		jsonBytes, _ := json.Marshal(keys)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GamesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
