// Package validator runs the static checks an artifact set must pass before
// any session may execute it.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aretw0/ludus/internal/logging"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/delta"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/graph"
	"github.com/aretw0/ludus/pkg/ports"
	"github.com/aretw0/ludus/pkg/router"
	"github.com/aretw0/ludus/pkg/statepath"
	"github.com/aretw0/ludus/pkg/value"
)

// Check names.
const (
	CheckStructure    = "structure"
	CheckReachability = "reachability"
	CheckCoverage     = "coverage"
	CheckSelfBlocking = "self-blocking"
	CheckWin          = "win-condition"
	CheckSchema       = "schema"
	CheckDeadlock     = "deadlock"
)

// DefaultMockPlayers is the number of players in the deadlock simulation.
const DefaultMockPlayers = 2

// Report is the outcome of validating one artifact set.
type Report struct {
	Key    domain.Key
	Issues []domain.Issue
}

// Errors returns the blocking issues.
func (r *Report) Errors() []domain.Issue { return r.filter(domain.SeverityError) }

// Warnings returns the non-blocking issues.
func (r *Report) Warnings() []domain.Issue { return r.filter(domain.SeverityWarning) }

func (r *Report) filter(sev domain.Severity) []domain.Issue {
	var out []domain.Issue
	for _, i := range r.Issues {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// OK reports whether the set may be accepted.
func (r *Report) OK() bool { return len(r.Errors()) == 0 }

// Err returns a *domain.ValidationError listing every error, or nil.
func (r *Report) Err() error {
	if errs := r.Errors(); len(errs) > 0 {
		return &domain.ValidationError{Key: r.Key, Issues: errs}
	}
	return nil
}

// Has reports whether an issue of the given check mentions subject.
func (r *Report) Has(check, subject string) bool {
	for _, i := range r.Issues {
		if i.Check == check && i.Subject == subject {
			return true
		}
	}
	return false
}

func (r *Report) add(sev domain.Severity, check, subject, format string, args ...any) {
	r.Issues = append(r.Issues, domain.Issue{
		Severity: sev,
		Check:    check,
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (r *Report) errorf(check, subject, format string, args ...any) {
	r.add(domain.SeverityError, check, subject, format, args...)
}

func (r *Report) warnf(check, subject, format string, args ...any) {
	r.add(domain.SeverityWarning, check, subject, format, args...)
}

// Validator runs the check suite.
type Validator struct {
	graphs      *graph.Cache
	logger      *slog.Logger
	mockPlayers int
}

// Option configures the Validator.
type Option func(*Validator)

// WithGraphCache shares transition graphs with other components.
func WithGraphCache(c *graph.Cache) Option {
	return func(v *Validator) {
		v.graphs = c
	}
}

// WithLogger configures a logger for the Validator.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// WithMockPlayers sets the player count of the deadlock simulation.
func WithMockPlayers(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.mockPlayers = n
		}
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		logger:      logging.NewNop(),
		mockPlayers: DefaultMockPlayers,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.graphs == nil {
		v.graphs = graph.NewCache(0)
	}
	return v
}

// Validate inspects a compiled set and returns every issue found, compile
// issues included.
func (v *Validator) Validate(c *artifact.Compiled) *Report {
	r := &Report{Key: c.Key}
	r.Issues = append(r.Issues, c.Issues...)

	g := v.graphs.Get(c)
	structureOK := checkStructure(r, c)
	checkReachability(r, c, g)
	checkCoverage(r, c, g)
	checkSelfBlocking(r, c, g)
	checkWin(r, c, g)
	checkSchema(r, c, g)
	if structureOK && len(c.Errors()) == 0 {
		v.simulate(r, c)
	}

	v.logger.Debug("Artifacts validated",
		"game_id", c.Key.GameID,
		"version", c.Key.Version,
		"errors", len(r.Errors()),
		"warnings", len(r.Warnings()),
	)
	return r
}

// Accept is an artifact.Acceptor backed by Validate.
func (v *Validator) Accept(c *artifact.Compiled) error {
	return v.Validate(c).Err()
}

// ValidateSource loads, compiles and validates one stored artifact set.
func (v *Validator) ValidateSource(ctx context.Context, source ports.ArtifactSource, key domain.Key) (*Report, error) {
	set, err := source.Load(ctx, key.GameID, key.Version)
	if err != nil {
		return nil, fmt.Errorf("artifacts %s not found: %w", key, err)
	}
	return v.Validate(artifact.Compile(set)), nil
}

// Validate runs the default suite.
func Validate(c *artifact.Compiled) *Report {
	return New().Validate(c)
}

// ValidatePlan checks only the phase graph of c: required phases, dangling
// phase references and reachability. It runs before instructions exist, so
// missing actions and programs are not reported.
func (v *Validator) ValidatePlan(c *artifact.Compiled) *Report {
	r := &Report{Key: c.Key}
	r.Issues = append(r.Issues, c.Issues...)
	checkPhases(r, c)
	sortIssues(r, CheckStructure)
	checkReachability(r, c, v.graphs.Get(c))
	return r
}

func checkStructure(r *Report, c *artifact.Compiled) bool {
	ok := checkPhases(r, c)
	if out := c.Outbound(domain.PhaseFinished); len(out) > 0 {
		r.warnf(CheckStructure, domain.PhaseFinished, "terminal phase has %d outbound transitions that never fire", len(out))
	}

	for _, p := range c.Phases() {
		if !c.HasMetadata(p) {
			r.warnf(CheckStructure, p, "phase has no metadata; treated as automatic")
		}
	}
	for _, m := range c.Set.Graph.PhaseMetadata {
		if !c.Declared(m.Phase) {
			r.warnf(CheckStructure, m.Phase, "metadata for undeclared phase")
		}
	}

	for id := range c.Set.Instructions.Transitions {
		if _, found := c.Transition(id); !found {
			r.errorf(CheckStructure, id, "instructions reference unknown transition")
		}
	}
	for phase := range c.Set.Instructions.PlayerPhases {
		if !c.Declared(phase) {
			r.errorf(CheckStructure, phase, "player actions declared for undeclared phase")
		} else if !c.RequiresInput(phase) {
			r.warnf(CheckStructure, phase, "player actions declared for a phase that does not wait for input")
		}
	}
	for _, p := range c.Phases() {
		if c.RequiresInput(p) && len(c.Actions(p)) == 0 {
			r.errorf(CheckStructure, p, "phase waits for player input but defines no actions")
		}
	}
	sortIssues(r, CheckStructure)
	return ok
}

// checkPhases reports missing required phases and transitions that name
// undeclared phases.
func checkPhases(r *Report, c *artifact.Compiled) bool {
	ok := true
	for _, p := range []string{domain.PhaseInit, domain.PhaseFinished} {
		if !c.Declared(p) {
			r.errorf(CheckStructure, p, "required phase %q is not declared", p)
			ok = false
		}
	}

	for _, t := range c.Transitions {
		for _, p := range []string{t.Def.FromPhase, t.Def.ToPhase} {
			if !c.Declared(p) {
				r.errorf(CheckStructure, t.ID(), "references undeclared phase %q", p)
				ok = false
			}
		}
	}
	if len(c.Outbound(domain.PhaseInit)) == 0 && c.Declared(domain.PhaseInit) {
		r.errorf(CheckStructure, domain.PhaseInit, "no transition leaves %q", domain.PhaseInit)
		ok = false
	}
	return ok
}

func checkReachability(r *Report, c *artifact.Compiled, g *graph.Graph) {
	if !c.Declared(domain.PhaseInit) {
		return
	}
	reachable := g.Reachable(domain.PhaseInit)
	for _, p := range c.Phases() {
		if !reachable[p] {
			r.errorf(CheckReachability, p, "phase is unreachable from %q", domain.PhaseInit)
			continue
		}
		if p != domain.PhaseFinished && !g.CanReach(p, domain.PhaseFinished) {
			r.errorf(CheckReachability, p, "phase cannot reach %q", domain.PhaseFinished)
		}
	}
}

// engineWritten lists fields the runtime maintains itself.
var engineWritten = map[string]bool{
	domain.FieldCurrentPhase: true,
}

func stateRead(path string) bool {
	root, _, _ := strings.Cut(path, ".")
	return (root == domain.RootGame || root == domain.RootPlayers) && !engineWritten[path]
}

func checkCoverage(r *Report, c *artifact.Compiled, g *graph.Graph) {
	initWrites := make(map[string]bool)
	for _, t := range c.Outbound(domain.PhaseInit) {
		for _, w := range delta.Writes(t.Program) {
			initWrites[w] = true
		}
	}
	initialized := func(path string) bool {
		for w := range initWrites {
			if statepath.Overlaps(w, path) {
				return true
			}
		}
		return false
	}

	for _, t := range c.Transitions {
		for _, read := range t.Reads {
			if !stateRead(read) {
				continue
			}
			if len(g.Writers(read)) == 0 {
				r.errorf(CheckCoverage, t.ID(), "reads %s, which nothing ever writes", read)
				continue
			}
			if !initialized(read) {
				r.warnf(CheckCoverage, t.ID(), "reads %s, which is not initialized when leaving %q", read, domain.PhaseInit)
			}
		}
	}
}

func checkSelfBlocking(r *Report, c *artifact.Compiled, g *graph.Graph) {
	for _, t := range c.Transitions {
		for _, read := range t.Reads {
			if !stateRead(read) {
				continue
			}
			writers := g.Writers(read)
			self, others := false, 0
			for _, w := range writers {
				if w.Kind == graph.WriterTransition && w.ID == t.ID() {
					self = true
				} else {
					others++
				}
			}
			switch {
			case self && others == 0:
				r.errorf(CheckSelfBlocking, t.ID(), "precondition reads %s, which only this transition writes; it can never fire", read)
			case self:
				r.warnf(CheckSelfBlocking, t.ID(), "precondition reads %s, which this transition also writes; firing depends on order", read)
			}
		}
	}
}

// marks reports whether a program writes true to the normalized field.
func marks(prog delta.Program, field string) bool {
	for _, op := range prog {
		switch o := op.(type) {
		case delta.Set:
			if o.Path.Normalize() == field && value.Equal(o.Value.Raw(), true) {
				return true
			}
		case delta.SetForAllPlayers:
			if "players.*."+o.Field.Normalize() == field && value.Equal(o.Value.Raw(), true) {
				return true
			}
		}
	}
	return false
}

// writes reports whether a program writes any literal to the normalized field.
func writes(prog delta.Program, field string) bool {
	for _, op := range prog {
		switch o := op.(type) {
		case delta.Set:
			if o.Path.Normalize() == field {
				return true
			}
		case delta.SetForAllPlayers:
			if "players.*."+o.Field.Normalize() == field {
				return true
			}
		}
	}
	return false
}

const winnerField = "players.*." + domain.PlayerIsGameWinner

// checkWin requires a program that ends the game and one that decides the
// winners. Writing false to isGameWinner decides "nobody", which covers
// draws and abandoned games.
func checkWin(r *Report, c *artifact.Compiled, g *graph.Graph) {
	var endsGame, decidesWinner, marksWinner bool
	winnerEdges := make(map[string]bool)
	winnerPhases := make(map[string]bool)

	for _, t := range c.Transitions {
		if marks(t.Program, domain.FieldGameEnded) {
			endsGame = true
		}
		if writes(t.Program, winnerField) {
			decidesWinner = true
		}
		if marks(t.Program, winnerField) {
			marksWinner = true
			winnerEdges[t.ID()] = true
		}
	}
	for _, a := range c.AllActions() {
		if marks(a.Program, domain.FieldGameEnded) {
			endsGame = true
		}
		if writes(a.Program, winnerField) {
			decidesWinner = true
		}
		if marks(a.Program, winnerField) {
			marksWinner = true
			winnerPhases[a.Phase] = true
		}
	}

	if !endsGame {
		r.errorf(CheckWin, domain.FieldGameEnded, "no transition or action sets %s to true", domain.FieldGameEnded)
	}
	if !decidesWinner {
		r.errorf(CheckWin, winnerField, "no transition or action writes %s; write false for games without winners", winnerField)
		return
	}
	if !marksWinner {
		r.warnf(CheckWin, winnerField, "no program marks a winner; every session ends without winners")
		return
	}

	for _, p := range g.Paths(domain.PhaseInit, domain.PhaseFinished, 0) {
		for _, e := range p.Edges {
			if winnerEdges[e] {
				return
			}
		}
		for _, ph := range p.Phases {
			if winnerPhases[ph] {
				return
			}
		}
	}
	r.warnf(CheckWin, winnerField, "no path from %q to %q marks a winner", domain.PhaseInit, domain.PhaseFinished)
}

// reservedPlayerFields are always valid on a player entry.
var reservedPlayerFields = map[string]bool{
	domain.PlayerActionRequired: true,
	domain.PlayerIsGameWinner:   true,
	domain.PlayerPrivateMessage: true,
}

var reservedGameFields = map[string]bool{
	"currentPhase":  true,
	"gameEnded":     true,
	"publicMessage": true,
}

func checkSchema(r *Report, c *artifact.Compiled, g *graph.Graph) {
	if c.Schema.IsEmpty() {
		return
	}
	seen := make(map[string]bool)
	unknown := func(subject, path string) {
		parts := strings.Split(path, ".")
		var known bool
		switch {
		case parts[0] == domain.RootGame && len(parts) > 1:
			_, declared := c.Schema.Game[parts[1]]
			known = declared || reservedGameFields[parts[1]] || len(c.Schema.Game) == 0
		case parts[0] == domain.RootPlayers && len(parts) > 2:
			_, declared := c.Schema.Player[parts[2]]
			known = declared || reservedPlayerFields[parts[2]] || len(c.Schema.Player) == 0
		default:
			known = true
		}
		if known || seen[subject+path] {
			return
		}
		seen[subject+path] = true
		r.warnf(CheckSchema, subject, "references %s, which the state schema does not declare", path)
	}

	for _, t := range c.Transitions {
		for _, read := range t.Reads {
			unknown(t.ID(), read)
		}
	}
	for _, w := range g.AllWriters() {
		for _, path := range w.Writes {
			unknown(w.ID, path)
		}
	}
}

func (v *Validator) simulate(r *Report, c *artifact.Compiled) {
	ids := make([]string, v.mockPlayers)
	for i := range ids {
		ids[i] = domain.Alias(i)
	}
	aliases := domain.AssignAliases(ids)
	routerVars := router.Vars(aliases)
	deltaVars := make(delta.Vars, len(aliases))
	for k, id := range aliases {
		deltaVars[k] = id
	}

	state := domain.NewGameState(ids...)
	engine := delta.New(delta.WithChooser(delta.FirstChoice{}))

	var start *artifact.Transition
	var blocked []string
	for _, t := range c.Outbound(domain.PhaseInit) {
		ok, failure, _ := router.EvalAll(t.Preconditions, state.Tree(), routerVars)
		if ok {
			start = t
			break
		}
		blocked = append(blocked, fmt.Sprintf("%s: %s", t.ID(), failure))
	}
	if start == nil {
		r.errorf(CheckDeadlock, domain.PhaseInit, "no transition can leave %q on a fresh state: %s", domain.PhaseInit, strings.Join(blocked, "; "))
		return
	}

	res, err := engine.Apply(state, start.Program, deltaVars)
	if err != nil {
		r.errorf(CheckDeadlock, start.ID(), "program fails on a fresh state: %v", err)
		return
	}
	state = res.State
	phase := start.Def.ToPhase
	state.SetPhase(phase)

	if phase == domain.PhaseFinished || state.Ended() {
		return
	}
	if c.RequiresInput(phase) && len(state.Actionable()) > 0 {
		return
	}

	blocked = blocked[:0]
	for _, t := range c.Outbound(phase) {
		ok, failure, _ := router.EvalAll(t.Preconditions, state.Tree(), routerVars)
		if ok {
			return
		}
		blocked = append(blocked, fmt.Sprintf("%s: %s", t.ID(), failure))
	}

	reason := "no transition leaves it"
	if len(blocked) > 0 {
		reason = strings.Join(blocked, "; ")
	}
	if c.RequiresInput(phase) {
		reason = "no player has " + domain.PlayerActionRequired + " set and " + reason
	}
	r.errorf(CheckDeadlock, phase, "after %q the game is stuck in %q: %s", start.ID(), phase, reason)
}

// sortIssues orders the issues of one check by subject so output is stable
// despite map iteration.
func sortIssues(r *Report, check string) {
	var idx []int
	for i, issue := range r.Issues {
		if issue.Check == check {
			idx = append(idx, i)
		}
	}
	sub := make([]domain.Issue, len(idx))
	for i, j := range idx {
		sub[i] = r.Issues[j]
	}
	sort.SliceStable(sub, func(a, b int) bool { return sub[a].Subject < sub[b].Subject })
	for i, j := range idx {
		r.Issues[j] = sub[i]
	}
}
