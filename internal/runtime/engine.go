package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/ludus/internal/logging"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/delta"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
	"github.com/aretw0/ludus/pkg/router"
)

// DefaultMaxIterations caps how many transitions one settle may fire.
const DefaultMaxIterations = 100

// ErrNoPlayers is returned when a session is initialized without players.
var ErrNoPlayers = errors.New("at least one player is required")

// ErrInvalidPlayer is returned for empty or duplicate player ids.
var ErrInvalidPlayer = errors.New("invalid player id")

// Engine executes compiled artifacts against session snapshots. It holds no
// per-session state; callers serialize access to a snapshot.
type Engine struct {
	delta         *delta.Engine
	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	maxIterations int
	now           func() time.Time
	templates     *templateCache
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithChooser sets the random source of rng operations.
func WithChooser(c delta.Chooser) EngineOption {
	return func(e *Engine) {
		e.delta = delta.New(delta.WithChooser(c))
	}
}

// WithMaxIterations overrides DefaultMaxIterations.
func WithMaxIterations(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		delta:         delta.New(),
		logger:        logging.NewNop(),
		maxIterations: DefaultMaxIterations,
		now:           time.Now,
		templates:     newTemplateCache(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run carries the working copy of one submission.
type run struct {
	c        *artifact.Compiled
	before   *domain.Snapshot
	snap     *domain.Snapshot
	out      *ports.Outcome
	aliases  map[string]string
	playerID string
	params   map[string]any
}

func (r *run) routerVars() router.Vars {
	vars := make(router.Vars, len(r.aliases)+1)
	for alias, id := range r.aliases {
		vars[alias] = id
	}
	if r.playerID != "" {
		vars[domain.VarPlayerID] = r.playerID
	}
	return vars
}

func (r *run) deltaVars() delta.Vars {
	vars := make(delta.Vars, len(r.params)+len(r.aliases)+1)
	for k, v := range r.params {
		vars[k] = v
	}
	for alias, id := range r.aliases {
		vars[alias] = id
	}
	if r.playerID != "" {
		vars[domain.VarPlayerID] = r.playerID
	}
	return vars
}

// inbound replaces parameter values that name a player alias with the
// player id.
func (r *run) inbound(params map[string]any) map[string]any {
	if len(params) == 0 {
		return params
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			if id, found := r.aliases[strings.TrimSpace(s)]; found {
				v = id
			}
		}
		out[k] = v
	}
	return out
}

func (e *Engine) begin(c *artifact.Compiled, snap *domain.Snapshot) *run {
	work := snap.Clone()
	return &run{
		c:       c,
		before:  snap,
		snap:    work,
		out:     &ports.Outcome{},
		aliases: work.Aliases,
	}
}

// Initialize seeds the state with the given players, in join order, and
// runs the fire loop from init.
func (e *Engine) Initialize(ctx context.Context, c *artifact.Compiled, snap *domain.Snapshot, playerIDs []string) (*ports.Outcome, error) {
	if snap.Status != domain.StatusUninitialized {
		return nil, domain.ErrSessionInitialized
	}
	if len(playerIDs) == 0 {
		return nil, ErrNoPlayers
	}
	seen := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		if id == "" || seen[id] {
			return nil, fmt.Errorf("%w: empty or duplicate %q", ErrInvalidPlayer, id)
		}
		seen[id] = true
	}

	r := e.begin(c, snap)
	r.snap.State = domain.NewGameState(playerIDs...)
	r.snap.Aliases = domain.AssignAliases(playerIDs)
	r.aliases = r.snap.Aliases
	r.snap.Status = domain.StatusActive

	e.logger.Info("Session initialized", "session_id", snap.SessionID, "game_id", snap.GameID, "players", len(playerIDs))
	e.settle(ctx, r)
	return e.finish(r), nil
}

// ApplyAction validates and applies one player action, then settles.
// Rule violations come back as a recoverable Fault in the outcome with the
// snapshot unchanged.
func (e *Engine) ApplyAction(ctx context.Context, c *artifact.Compiled, snap *domain.Snapshot, playerRef string, action Action) (*ports.Outcome, error) {
	if snap.Status != domain.StatusActive {
		return nil, domain.ErrSessionNotActive
	}
	playerID, ok := snap.ResolvePlayer(playerRef)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, playerRef)
	}

	r := e.begin(c, snap)
	r.playerID = playerID
	action.Params = r.inbound(action.Params)
	r.params = action.Params
	state := r.snap.State
	phase := state.Phase()

	def, found := c.Action(phase, action.Name)
	if !found {
		return e.reject(ctx, r, action.Name, phase, "action %q is not available in phase %q; available: %s",
			action.Name, phase, actionNames(c.Actions(phase))), nil
	}
	if !state.PlayerFlag(playerID, domain.PlayerActionRequired) {
		return e.reject(ctx, r, def.Name(), phase, "player %s is not expected to act in phase %q", playerID, phase), nil
	}

	tree := state.Tree()
	tree["action"] = actionScope(action, playerID)
	vars := r.routerVars()
	for _, chk := range def.Checks {
		held, err := chk.Rule.Eval(tree, vars)
		if err != nil {
			return e.reject(ctx, r, def.Name(), phase, "check %q could not be evaluated: %v", chk.ID, err), nil
		}
		if !held {
			msg := chk.Message
			if msg == "" {
				msg = fmt.Sprintf("check %q failed", chk.ID)
			}
			return e.reject(ctx, r, def.Name(), phase, "%s", msg), nil
		}
	}

	started := e.now()
	res, err := e.delta.Apply(state, def.Program, r.deltaVars())
	if errors.Is(err, delta.ErrUnresolvedPlaceholder) {
		return e.reject(ctx, r, def.Name(), phase, "missing action parameter: %v", err), nil
	}
	if errors.Is(err, domain.ErrUnknownPlayer) {
		return e.reject(ctx, r, def.Name(), phase, "action names a player outside the session: %v", err), nil
	}
	if err != nil {
		e.fail(ctx, r, domain.NewFault(domain.FaultTransitionFailed, def.Name(), phase, err))
		return e.finish(r), nil
	}
	r.snap.State = res.State
	if f := e.checkSchema(r, def.Name()); f != nil {
		e.fail(ctx, r, f)
		return e.finish(r), nil
	}
	e.render(r, def.Def.Messages)

	if e.hooks.OnActionApplied != nil {
		e.hooks.OnActionApplied(ctx, &domain.ActionEvent{
			EventBase: e.event(r, domain.EventActionApplied),
			PlayerID:  playerID,
			Action:    def.Name(),
			Phase:     phase,
			Duration:  e.now().Sub(started),
		})
	}
	e.logger.Debug("Action applied", "session_id", snap.SessionID, "player_id", playerID, "action", def.Name(), "phase", phase)

	e.settle(ctx, r)
	return e.finish(r), nil
}

// Settle runs the fire loop without a player action. It is a no-op on a
// session that is already waiting for input.
func (e *Engine) Settle(ctx context.Context, c *artifact.Compiled, snap *domain.Snapshot) (*ports.Outcome, error) {
	if snap.Status != domain.StatusActive {
		return nil, domain.ErrSessionNotActive
	}
	r := e.begin(c, snap)
	e.settle(ctx, r)
	return e.finish(r), nil
}

// settle fires eligible transitions until the game ends, a fault occurs,
// or the current phase waits for an actionable player. The game ends in
// finished or as soon as game.gameEnded is true, whatever the phase.
func (e *Engine) settle(ctx context.Context, r *run) {
	vars := r.routerVars()
	for {
		state := r.snap.State
		phase := state.Phase()
		if phase == domain.PhaseFinished || state.Ended() {
			e.end(ctx, r)
			return
		}

		t, blocked, fault := e.eligible(r, phase, vars)
		if fault != nil {
			e.fail(ctx, r, fault)
			return
		}
		if t == nil {
			if r.c.RequiresInput(phase) && len(state.Actionable()) > 0 {
				return
			}
			e.fail(ctx, r, deadlock(r.c, phase, blocked))
			return
		}

		if len(r.out.Fired) >= e.maxIterations {
			e.fail(ctx, r, domain.NewFault(domain.FaultDeadlock, t.ID(), phase,
				fmt.Errorf("no stable phase after %d transitions; last eligible %q", e.maxIterations, t.ID())))
			return
		}
		if !e.fire(ctx, r, t) {
			return
		}

		next := r.snap.State
		if next.Ended() || next.Phase() == domain.PhaseFinished {
			continue
		}
		if r.c.RequiresInput(next.Phase()) && len(next.Actionable()) > 0 {
			return
		}
	}
}

// eligible returns the first transition out of phase whose preconditions
// hold, in declaration order. A precondition that cannot be evaluated means
// the state does not have the shape the artifacts expect.
func (e *Engine) eligible(r *run, phase string, vars router.Vars) (*artifact.Transition, []string, *domain.Fault) {
	tree := r.snap.State.Tree()
	var blocked []string
	for _, t := range r.c.Outbound(phase) {
		ok, failure, err := router.EvalAll(t.Preconditions, tree, vars)
		if err != nil {
			return nil, nil, domain.NewFault(domain.FaultInvalidState, t.ID(), phase,
				fmt.Errorf("%s", failure))
		}
		if ok {
			return t, nil, nil
		}
		blocked = append(blocked, fmt.Sprintf("%s: %s", t.ID(), failure))
	}
	return nil, blocked, nil
}

func (e *Engine) fire(ctx context.Context, r *run, t *artifact.Transition) bool {
	from := t.Def.FromPhase
	if len(t.Program) > 0 {
		res, err := e.delta.Apply(r.snap.State, t.Program, r.deltaVars())
		if err != nil {
			e.fail(ctx, r, domain.NewFault(domain.FaultTransitionFailed, t.ID(), from, err))
			return false
		}
		r.snap.State = res.State
	}
	r.snap.State.SetPhase(t.Def.ToPhase)
	r.out.Fired = append(r.out.Fired, t.ID())

	if f := e.checkSchema(r, t.ID()); f != nil {
		e.fail(ctx, r, f)
		return false
	}
	if t.Instruction != nil {
		e.render(r, t.Instruction.Messages)
	}

	if e.hooks.OnTransitionFired != nil {
		e.hooks.OnTransitionFired(ctx, &domain.TransitionEvent{
			EventBase:    e.event(r, domain.EventTransitionFired),
			TransitionID: t.ID(),
			FromPhase:    from,
			ToPhase:      t.Def.ToPhase,
		})
	}
	e.logger.Debug("Transition fired", "session_id", r.snap.SessionID, "transition", t.ID(), "from", from, "to", t.Def.ToPhase)
	return true
}

func (e *Engine) checkSchema(r *run, source string) *domain.Fault {
	if r.c.Schema.IsEmpty() {
		return nil
	}
	state := r.snap.State
	if err := r.c.Schema.ValidateState(state.Game, state.Players); err != nil {
		return domain.NewFault(domain.FaultInvalidState, source, state.Phase(), err)
	}
	return nil
}

func deadlock(c *artifact.Compiled, phase string, blocked []string) *domain.Fault {
	reason := "no transition leaves it"
	if len(blocked) > 0 {
		reason = strings.Join(blocked, "; ")
	}
	if c.RequiresInput(phase) {
		reason = "no player is expected to act and " + reason
	}
	return domain.NewFault(domain.FaultDeadlock, "", phase, fmt.Errorf("stuck in phase %q: %s", phase, reason))
}

func (e *Engine) reject(ctx context.Context, r *run, source, phase, format string, args ...any) *ports.Outcome {
	f := domain.NewFault(domain.FaultRuleViolation, source, phase, fmt.Errorf(format, args...))
	e.emitFault(ctx, r, f)
	e.logger.Info("Action rejected", "session_id", r.snap.SessionID, "player_id", r.playerID, "action", source, "reason", f.Message)
	return &ports.Outcome{Snapshot: r.before.Clone(), Fault: f}
}

func (e *Engine) fail(ctx context.Context, r *run, f *domain.Fault) {
	r.out.Fault = f
	r.snap.Fault = f
	r.snap.Status = domain.StatusEnded
	e.emitFault(ctx, r, f)
	e.logger.Error("Session faulted", "session_id", r.snap.SessionID, "kind", f.Kind, "source", f.Source, "phase", f.Phase, "err", f.Message)
	e.emitEnded(ctx, r)
}

func (e *Engine) end(ctx context.Context, r *run) {
	r.snap.Status = domain.StatusEnded
	r.snap.WinningPlayers = r.snap.State.Winners()
	e.logger.Info("Session ended", "session_id", r.snap.SessionID, "phase", r.snap.State.Phase(), "winners", r.snap.WinningPlayers)
	e.emitEnded(ctx, r)
}

func (e *Engine) finish(r *run) *ports.Outcome {
	r.snap.Seq++
	r.snap.UpdatedAt = e.now().UTC()
	r.out.Snapshot = r.snap
	r.out.Diff = domain.Diff(r.before, r.snap)
	return r.out
}

func (e *Engine) event(r *run, typ domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: e.now().UTC(),
		Type:      typ,
		SessionID: r.snap.SessionID,
		GameID:    r.snap.GameID,
	}
}

func (e *Engine) emitFault(ctx context.Context, r *run, f *domain.Fault) {
	if e.hooks.OnFault != nil {
		e.hooks.OnFault(ctx, &domain.FaultEvent{EventBase: e.event(r, domain.EventFault), Fault: f})
	}
}

func (e *Engine) emitEnded(ctx context.Context, r *run) {
	if e.hooks.OnSessionEnded != nil {
		e.hooks.OnSessionEnded(ctx, &domain.SessionEndedEvent{
			EventBase: e.event(r, domain.EventSessionEnded),
			Winners:   r.snap.WinningPlayers,
			Fault:     r.snap.Fault,
		})
	}
}

func actionScope(a Action, playerID string) map[string]any {
	scope := make(map[string]any, len(a.Params)+2)
	for k, v := range a.Params {
		scope[k] = v
	}
	scope["name"] = a.Name
	scope[domain.VarPlayerID] = playerID
	return scope
}

func actionNames(actions []*artifact.Action) string {
	if len(actions) == 0 {
		return "none"
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name()
	}
	return strings.Join(names, ", ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
