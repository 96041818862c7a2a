package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/ludus/internal/compiler"
	"github.com/aretw0/ludus/internal/logging"
	"github.com/aretw0/ludus/internal/presentation/graph"
	"github.com/aretw0/ludus/internal/runtime"
	"github.com/aretw0/ludus/internal/validator"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
	"github.com/aretw0/ludus/pkg/runner"
	"github.com/aretw0/ludus/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed openapi.yaml
var openapiSpec []byte

// maxArtifactBytes bounds artifact documents posted to /validate and /games.
const maxArtifactBytes = 4 << 20

// Watcher streams the keys of artifact sets that changed on disk.
type Watcher func(ctx context.Context) (<-chan domain.Key, error)

// Server exposes sessions and artifacts over HTTP.
type Server struct {
	sessions  ports.SessionService
	registry  *artifact.Registry
	validator *validator.Validator
	sink      ports.ArtifactSink
	metrics   http.Handler
	watch     Watcher
	version   string
	parser    *compiler.Parser
	Streams   *StreamManager
	logger    *slog.Logger
	strict    bool
}

// Option configures the Server.
type Option func(*Server)

// WithRequestValidation checks requests against the OpenAPI document
// before they reach a handler.
func WithRequestValidation(enabled bool) Option {
	return func(s *Server) {
		s.strict = enabled
	}
}

// WithRegistry enables the /games endpoints and graph rendering.
func WithRegistry(r *artifact.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

// WithValidator sets the validator used by /validate.
func WithValidator(v *validator.Validator) Option {
	return func(s *Server) {
		s.validator = v
	}
}

// WithSink persists artifact sets published through POST /games.
func WithSink(sink ports.ArtifactSink) Option {
	return func(s *Server) {
		s.sink = sink
	}
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithWatcher enables the global /events hot reload stream.
func WithWatcher(w Watcher) Option {
	return func(s *Server) {
		s.watch = w
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server over a session service.
func NewServer(sessions ports.SessionService, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		version:  "dev",
		parser:   compiler.NewParser(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validator.New(validator.WithLogger(s.logger))
	}
	s.Streams = NewStreamManager(s.logger)
	return s
}

// NewHandler creates a new HTTP handler for the session service.
func NewHandler(sessions ports.SessionService, opts ...Option) http.Handler {
	return NewServer(sessions, opts...).Handler()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.strict {
		check, err := requestValidator()
		if err != nil {
			s.logger.Error("Request validation disabled", "err", err)
		} else {
			r.Use(check)
		}
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(openapiSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/events", s.WatchArtifacts)

	r.Post("/validate", s.ValidateArtifacts)
	r.Route("/games", func(r chi.Router) {
		r.Get("/", s.ListGames)
		r.Post("/", s.PublishGame)
		r.Get("/{gameId}/{version}", s.GetGame)
		r.Get("/{gameId}/{version}/graph", s.GetGraph)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/init", s.InitializeSession)
			r.Post("/actions", s.SubmitAction)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Ludus API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := GetSwagger(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "ludus-http",
		"version":     strings.TrimSpace(s.version),
		"api_version": apiVersion,
	})
}

// -- Artifacts --

type publishResponse struct {
	GameID   string         `json:"gameId"`
	Version  string         `json:"version"`
	Hash     string         `json:"hash"`
	Warnings []domain.Issue `json:"warnings,omitempty"`
}

type validateResponse struct {
	OK     bool           `json:"ok"`
	Issues []domain.Issue `json:"issues"`
}

// ValidateArtifacts handles POST /validate. The body is a whole artifact set
// in JSON or YAML; every issue is reported, not just the first.
func (s *Server) ValidateArtifacts(w http.ResponseWriter, r *http.Request) {
	set, ok := s.readArtifacts(w, r)
	if !ok {
		return
	}
	report := s.validator.Validate(artifact.Compile(set))
	issues := report.Issues
	if issues == nil {
		issues = []domain.Issue{}
	}
	writeJSON(w, http.StatusOK, validateResponse{OK: report.OK(), Issues: issues})
}

// PublishGame handles POST /games.
func (s *Server) PublishGame(w http.ResponseWriter, r *http.Request) {
	if !s.requireRegistry(w) {
		return
	}
	set, ok := s.readArtifacts(w, r)
	if !ok {
		return
	}
	c, err := s.registry.Put(r.Context(), set, s.sink)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, publishResponse{
		GameID:   c.Key.GameID,
		Version:  c.Key.Version,
		Hash:     c.Hash,
		Warnings: s.validator.Validate(c).Warnings(),
	})
}

// ListGames handles GET /games.
func (s *Server) ListGames(w http.ResponseWriter, r *http.Request) {
	if !s.requireRegistry(w) {
		return
	}
	keys, err := s.registry.Source().List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if keys == nil {
		keys = []domain.Key{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": keys})
}

// GetGame handles GET /games/{gameId}/{version}.
func (s *Server) GetGame(w http.ResponseWriter, r *http.Request) {
	c, ok := s.compiled(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hash":      c.Hash,
		"artifacts": c.Set,
	})
}

// GetGraph handles GET /games/{gameId}/{version}/graph. It returns the
// Mermaid flowchart; ?session=<id> highlights that session's current phase.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	c, ok := s.compiled(w, r)
	if !ok {
		return
	}
	var overlay *graph.GraphOverlay
	if id := r.URL.Query().Get("session"); id != "" {
		snap, err := s.sessions.GetState(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if snap.Key() != c.Key {
			writeProblem(w, http.StatusBadRequest, fmt.Sprintf("session %s runs %s, not %s", id, snap.Key(), c.Key))
			return
		}
		overlay = &graph.GraphOverlay{}
		if snap.State != nil {
			overlay.CurrentPhase = snap.State.Phase()
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(c, overlay))
}

func (s *Server) compiled(w http.ResponseWriter, r *http.Request) (*artifact.Compiled, bool) {
	if !s.requireRegistry(w) {
		return nil, false
	}
	key := domain.Key{GameID: chi.URLParam(r, "gameId"), Version: chi.URLParam(r, "version")}
	c, err := s.registry.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return c, true
}

func (s *Server) readArtifacts(w http.ResponseWriter, r *http.Request) (*domain.ArtifactSet, bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxArtifactBytes+1))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "failed to read body")
		return nil, false
	}
	if len(data) > maxArtifactBytes {
		writeProblem(w, http.StatusRequestEntityTooLarge, "artifact document too large")
		return nil, false
	}
	set, err := s.parser.Parse(data)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return set, true
}

func (s *Server) requireRegistry(w http.ResponseWriter) bool {
	if s.registry == nil {
		writeProblem(w, http.StatusNotImplemented, "artifact registry not configured")
		return false
	}
	return true
}

// WatchArtifacts handles GET /events (SSE). Each event names an artifact set
// that changed in the source.
func (s *Server) WatchArtifacts(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		writeProblem(w, http.StatusNotImplemented, "artifact watching not configured")
		return
	}
	flusher, ok := startStream(w)
	if !ok {
		return
	}
	events, err := s.watch(r.Context())
	if err != nil {
		s.logger.Error("Watch failed", "err", err)
		writeSSE(w, flusher, Event{Name: "error", Data: err.Error()})
		return
	}
	writeSSE(w, flusher, Event{Name: "ping", Data: "connected"})

	for {
		select {
		case <-r.Context().Done():
			return
		case key, ok := <-events:
			if !ok {
				return
			}
			if s.registry != nil {
				s.registry.Evict(key)
			}
			writeSSE(w, flusher, Event{Name: "reload", Data: key.String()})
		}
	}
}

// -- Sessions --

type createSessionRequest struct {
	SessionID string `json:"sessionId"`
	GameID    string `json:"gameId"`
	Version   string `json:"version"`
}

type initRequest struct {
	Players []string `json:"players"`
}

type actionRequest struct {
	PlayerID string `json:"playerId"`
	// Action is either the text form ("submit-choice choice: 2") or an
	// object with an "action" name and parameters.
	Action json.RawMessage `json:"action"`
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.GameID == "" || body.Version == "" {
		writeProblem(w, http.StatusBadRequest, "gameId and version are required")
		return
	}
	snap, err := s.sessions.CreateSession(r.Context(), body.SessionID, body.GameID, body.Version)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.ListSessions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

// GetSession handles GET /sessions/{sessionId}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.GetState(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// DeleteSession handles DELETE /sessions/{sessionId}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.DeleteSession(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InitializeSession handles POST /sessions/{sessionId}/init.
func (s *Server) InitializeSession(w http.ResponseWriter, r *http.Request) {
	var body initRequest
	if !decodeBody(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "sessionId")
	out, err := s.sessions.InitializeSession(r.Context(), id, body.Players)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.publish(id, out)
	writeJSON(w, http.StatusOK, out)
}

// SubmitAction handles POST /sessions/{sessionId}/actions. A rule violation
// answers 422 with the outcome, so the client sees the unchanged state and
// the reason.
func (s *Server) SubmitAction(w http.ResponseWriter, r *http.Request) {
	var body actionRequest
	if !decodeBody(w, r, &body) {
		return
	}
	text, err := actionText(body.Action)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}
	clean, err := runner.SanitizeInput(text)
	if err != nil {
		s.logger.Warn("Action rejected", "err", err, "size", len(text))
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "sessionId")
	out, err := s.sessions.SubmitAction(r.Context(), id, body.PlayerID, clean)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if out.Fault != nil && out.Fault.Recoverable() {
		writeJSON(w, http.StatusUnprocessableEntity, out)
		return
	}
	s.publish(id, out)
	writeJSON(w, http.StatusOK, out)
}

func actionText(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	switch {
	case trimmed == "" || trimmed == "null":
		return "", errors.New("action is required")
	case strings.HasPrefix(trimmed, `"`):
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", fmt.Errorf("invalid action text: %w", err)
		}
		return text, nil
	case strings.HasPrefix(trimmed, "{"):
		return trimmed, nil
	}
	return "", errors.New("action must be a string or an object")
}

// publish pushes the diff and rendered messages of an outcome to the
// session's event subscribers.
func (s *Server) publish(sessionID string, out *ports.Outcome) {
	if out == nil || s.Streams.Subscribers(sessionID) == 0 {
		return
	}
	if out.Diff != nil {
		if data, err := json.Marshal(out.Diff); err == nil {
			s.Streams.Broadcast(sessionID, Event{Name: "diff", Data: string(data)})
		}
	}
	for _, m := range out.Messages {
		if data, err := json.Marshal(m); err == nil {
			s.Streams.Broadcast(sessionID, Event{Name: "message", Data: string(data), To: m.To})
		}
	}
}

// SubscribeEvents handles GET /sessions/{sessionId}/events (SSE).
//
// ?player=<id> receives that player's private messages as well as broadcasts;
// without it only broadcasts are delivered. ?watch=game,players,phase,status
// drops diffs that touch none of the listed parts.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	params, err := bindEventParams(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.sessions.GetState(r.Context(), sessionID); err != nil {
		s.writeError(w, err)
		return
	}
	flusher, ok := startStream(w)
	if !ok {
		return
	}
	player, watchList := params.Player, params.Watch

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()
	s.logger.Info("SSE: Subscribing to session updates", "session_id", sessionID, "player_id", player)

	writeSSE(w, flusher, Event{Name: "ping", Data: "connected"})
	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "session_id", sessionID)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.To != "" && ev.To != player {
				continue
			}
			if ev.Name == "diff" && !watched(ev.Data, watchList) {
				continue
			}
			writeSSE(w, flusher, ev)
		}
	}
}

func watched(data string, watchList []string) bool {
	if len(watchList) == 0 {
		return true
	}
	var diff domain.SnapshotDiff
	if err := json.Unmarshal([]byte(data), &diff); err != nil {
		return true
	}
	for _, field := range watchList {
		switch strings.TrimSpace(field) {
		case "game":
			if len(diff.Game) > 0 {
				return true
			}
		case "players":
			if len(diff.Players) > 0 {
				return true
			}
		case "phase":
			if diff.Phase != nil {
				return true
			}
		case "status":
			if diff.Status != nil || diff.Fault != nil || len(diff.WinningPlayers) > 0 {
				return true
			}
		}
	}
	return false
}

// -- Helpers --

func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

func writeSSE(w io.Writer, flusher http.Flusher, ev Event) {
	if ev.Name != "" {
		fmt.Fprintf(w, "event: %s\n", ev.Name)
	}
	fmt.Fprintf(w, "data: %s\n\n", ev.Data)
	flusher.Flush()
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type problem struct {
	Error  string         `json:"error"`
	Issues []domain.Issue `json:"issues,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, problem{Error: msg})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "err", err)
	}
	body := problem{Error: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Issues = verr.Issues
	}
	writeJSON(w, status, body)
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrArtifactsNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionExists),
		errors.Is(err, domain.ErrSessionInitialized),
		errors.Is(err, domain.ErrSessionNotActive):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidAction),
		errors.Is(err, runtime.ErrNoPlayers),
		errors.Is(err, runtime.ErrInvalidPlayer),
		errors.Is(err, domain.ErrUnknownPlayer):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
