package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/ludus/internal/testutils"
	"github.com/aretw0/ludus/internal/validator"
	"github.com/aretw0/ludus/pkg/adapters/memory"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
	"github.com/aretw0/ludus/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncRecorder guards the body so a streaming handler can be read while it runs.
type syncRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *syncRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *syncRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

type fixture struct {
	server  *Server
	handler http.Handler
	source  *memory.Source
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	source := memory.NewSource(testutils.CounterGame(2), testutils.DuelGame(2))
	registry := artifact.NewRegistry(source, artifact.WithAcceptor(validator.New().Accept))
	mgr := session.NewManager(memory.NewStore(), registry)

	srv := NewServer(mgr, append([]Option{WithRegistry(registry), WithSink(source)}, opts...)...)
	return &fixture{server: srv, handler: srv.Handler(), source: source}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (f *fixture) startCounter(t *testing.T, id string) {
	t.Helper()
	w := f.do(t, "POST", "/sessions", map[string]string{"sessionId": id, "gameId": "counter", "version": "1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = f.do(t, "POST", "/sessions/"+id+"/init", map[string]any{"players": []string{"alice", "bob"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t, WithVersion("1.2.3\n"))

	w := f.do(t, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	info := decode[map[string]string](t, f.do(t, "GET", "/info", nil))
	assert.Equal(t, "ludus-http", info["app"])
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "0.1.0", info["api_version"])

	w = f.do(t, "GET", "/openapi.yaml", nil)
	assert.Contains(t, w.Body.String(), "Ludus API")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, "OPTIONS", "/sessions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	f.startCounter(t, "s1")

	w := f.do(t, "POST", "/sessions/s1/actions", map[string]any{"playerId": "player1", "action": "bump"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode[ports.Outcome](t, w)
	assert.EqualValues(t, 1, out.Snapshot.State.Game["count"])

	// Object form.
	w = f.do(t, "POST", "/sessions/s1/actions", `{"playerId": "bob", "action": {"action": "follow"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out = decode[ports.Outcome](t, w)
	assert.Equal(t, domain.StatusEnded, out.Snapshot.Status)
	assert.Equal(t, []string{"alice"}, out.Snapshot.WinningPlayers)

	snap := decode[domain.Snapshot](t, f.do(t, "GET", "/sessions/s1", nil))
	assert.Equal(t, domain.PhaseFinished, snap.State.Phase())

	w = f.do(t, "POST", "/sessions/s1/actions", map[string]any{"playerId": "alice", "action": "bump"})
	assert.Equal(t, http.StatusConflict, w.Code)

	list := decode[map[string][]string](t, f.do(t, "GET", "/sessions", nil))
	assert.Equal(t, []string{"s1"}, list["sessions"])

	assert.Equal(t, http.StatusNoContent, f.do(t, "DELETE", "/sessions/s1", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/sessions/s1", nil).Code)
}

func TestSubmitAction_Errors(t *testing.T) {
	f := newFixture(t)
	f.startCounter(t, "s1")

	tests := []struct {
		name string
		body any
		code int
	}{
		{"Rule Violation", map[string]any{"playerId": "alice", "action": "follow"}, http.StatusUnprocessableEntity},
		{"Unknown Action", map[string]any{"playerId": "alice", "action": "dance"}, http.StatusUnprocessableEntity},
		{"Unknown Player", map[string]any{"playerId": "mallory", "action": "bump"}, http.StatusBadRequest},
		{"Unparseable", map[string]any{"playerId": "alice", "action": "bump extra"}, http.StatusBadRequest},
		{"Missing Action", map[string]any{"playerId": "alice"}, http.StatusBadRequest},
		{"Wrong Type", map[string]any{"playerId": "alice", "action": 3}, http.StatusBadRequest},
		{"Bad JSON", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, "POST", "/sessions/s1/actions", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}

	snap := decode[domain.Snapshot](t, f.do(t, "GET", "/sessions/s1", nil))
	assert.EqualValues(t, 0, snap.State.Game["count"], "rejected submissions leave the state untouched")
}

func TestCreateSession_Errors(t *testing.T) {
	f := newFixture(t)
	f.startCounter(t, "s1")

	assert.Equal(t, http.StatusConflict,
		f.do(t, "POST", "/sessions", map[string]string{"sessionId": "s1", "gameId": "counter", "version": "1"}).Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(t, "POST", "/sessions", map[string]string{"gameId": "chess", "version": "1"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, "POST", "/sessions", map[string]string{"gameId": "counter"}).Code)
	assert.Equal(t, http.StatusConflict,
		f.do(t, "POST", "/sessions/s1/init", map[string]any{"players": []string{"carol"}}).Code)

	w := f.do(t, "POST", "/sessions", map[string]string{"gameId": "counter", "version": "1"})
	require.Equal(t, http.StatusCreated, w.Code)
	snap := decode[domain.Snapshot](t, w)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, "POST", "/sessions/"+snap.SessionID+"/init", map[string]any{"players": []string{}}).Code)
}

func TestValidateAndPublish(t *testing.T) {
	f := newFixture(t)

	good, err := json.Marshal(testutils.DuelGame(3))
	require.NoError(t, err)
	report := decode[validateResponse](t, f.do(t, "POST", "/validate", string(good)))
	assert.True(t, report.OK)

	bad := testutils.SelfBlockingGame()
	badDoc, err := json.Marshal(bad)
	require.NoError(t, err)
	report = decode[validateResponse](t, f.do(t, "POST", "/validate", string(badDoc)))
	assert.False(t, report.OK)
	assert.NotEmpty(t, report.Issues)

	w := f.do(t, "POST", "/games", string(badDoc))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEmpty(t, decode[problem](t, w).Issues)

	set := testutils.DuelGame(3)
	set.Version = "2"
	doc, err := json.Marshal(set)
	require.NoError(t, err)
	w = f.do(t, "POST", "/games", string(doc))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "2", decode[publishResponse](t, w).Version)

	games := decode[map[string][]domain.Key](t, f.do(t, "GET", "/games", nil))
	assert.Contains(t, games["games"], domain.Key{GameID: "duel", Version: "2"})

	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/validate", "gameId: [").Code)
}

func TestGetGameAndGraph(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, "GET", "/games/duel/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hash"`)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/games/duel/9", nil).Code)

	w = f.do(t, "GET", "/games/counter/1/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD"))

	f.startCounter(t, "s1")
	w = f.do(t, "GET", "/games/counter/1/graph?session=s1", nil)
	assert.Contains(t, w.Body.String(), "class play current;")

	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/games/duel/1/graph?session=s1", nil).Code)
}

func TestMetricsHandler(t *testing.T) {
	f := newFixture(t, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ludus_up 1"))
	})))
	assert.Equal(t, "ludus_up 1", f.do(t, "GET", "/metrics", nil).Body.String())

	assert.Equal(t, http.StatusNotFound, newFixture(t).do(t, "GET", "/metrics", nil).Code)
}

func TestWatchArtifacts(t *testing.T) {
	f := newFixture(t, WithWatcher(func(ctx context.Context) (<-chan domain.Key, error) {
		ch := make(chan domain.Key, 1)
		ch <- domain.Key{GameID: "duel", Version: "1"}
		close(ch)
		return ch, nil
	}))

	w := f.do(t, "GET", "/events", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "event: ping")
	assert.Contains(t, body, "event: reload\ndata: duel@1")

	assert.Equal(t, http.StatusNotImplemented, newFixture(t).do(t, "GET", "/events", nil).Code)
}

func TestSubscribeEvents_Session(t *testing.T) {
	f := newFixture(t)
	f.startCounter(t, "s1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}
	req := httptest.NewRequest("GET", "/sessions/s1/events?player=alice&watch=game", nil).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		f.handler.ServeHTTP(rec, req)
		close(done)
	}()
	require.Eventually(t, func() bool { return f.server.Streams.Subscribers("s1") == 1 }, time.Second, 5*time.Millisecond)

	w := f.do(t, "POST", "/sessions/s1/actions", map[string]any{"playerId": "alice", "action": "bump"})
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool { return strings.Contains(rec.String(), `"count":1`) }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	out := rec.String()
	assert.Contains(t, out, "event: ping")
	assert.Contains(t, out, "event: diff")
	assert.Equal(t, 0, f.server.Streams.Subscribers("s1"))

	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/sessions/ghost/events", nil).Code)
}

func TestWatched(t *testing.T) {
	phase := "play"
	diff, err := json.Marshal(domain.SnapshotDiff{SessionID: "s1", Phase: &phase})
	require.NoError(t, err)

	assert.True(t, watched(string(diff), nil))
	assert.True(t, watched(string(diff), []string{"game", " phase"}))
	assert.False(t, watched(string(diff), []string{"players"}))
}

func TestStreamManager_PrivateDelivery(t *testing.T) {
	sm := NewStreamManager(nil)
	ch, cancel := sm.Subscribe("s1")
	sm.Broadcast("s1", Event{Name: "message", Data: "hi", To: "bob"})
	sm.Broadcast("s2", Event{Name: "message", Data: "other"})

	ev := <-ch
	assert.Equal(t, "bob", ev.To)
	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrSessionNotFound, http.StatusNotFound},
		{&domain.ValidationError{}, http.StatusUnprocessableEntity},
		{session.ErrInvalidAction, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, StatusFor(tt.err), tt.err.Error())
	}
}

func TestGetSwagger(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)
	assert.Equal(t, "Ludus API", doc.Info.Title)
	assert.NotNil(t, doc.Paths.Find("/sessions/{sessionId}/actions"))
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, WithRequestValidation(true))

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, req)
		return w
	}

	w := post("/sessions", `{"sessionId": "v1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "gameId")

	w = post("/sessions", `{"sessionId": "v1", "gameId": "counter", "version": "1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = post("/sessions/v1/init", `{"players": "ann"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post("/sessions/v1/init", `{"players": ["ann", "bob"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = post("/sessions/v1/actions", `{"playerId": "ann", "action": "bump"}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Undocumented routes are left to the router.
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/nowhere", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, "GET", "/health", nil).Code)
}

func TestBindEventParams(t *testing.T) {
	req := httptest.NewRequest("GET", "/sessions/s1/events?player=ann&watch=game,phase", nil)
	p, err := bindEventParams(req)
	require.NoError(t, err)
	assert.Equal(t, "ann", p.Player)
	assert.Equal(t, []string{"game", "phase"}, p.Watch)

	p, err = bindEventParams(httptest.NewRequest("GET", "/sessions/s1/events", nil))
	require.NoError(t, err)
	assert.Empty(t, p.Player)
	assert.Empty(t, p.Watch)
}
