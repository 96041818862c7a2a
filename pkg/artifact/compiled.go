// Package artifact compiles an artifact set into the executable form shared
// by the validator, the graph analyzer and the session runtime.
//
// Every path and rule is parsed exactly once here. A Compiled value is
// immutable after Compile returns and is safe to share across sessions.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/ludus/pkg/delta"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/router"
	"github.com/aretw0/ludus/pkg/schema"
	"github.com/aretw0/ludus/pkg/statepath"
)

// CheckCompile is the Issue.Check value for compilation failures.
const CheckCompile = "compile"

// Transition is a compiled transition.
type Transition struct {
	Def           domain.Transition
	Preconditions []router.Precondition
	// Reads is the normalized set of paths the preconditions read, merged
	// with the declared checkedFields.
	Reads []string

	// Instruction is nil for transitions without an automatic program.
	Instruction *domain.AutomaticTransitionInstruction
	Program     delta.Program
}

// ID returns the transition id.
func (t *Transition) ID() string { return t.Def.ID }

// Automatic reports whether the transition carries its own program.
func (t *Transition) Automatic() bool { return t.Instruction != nil }

// ActionCheck is a compiled validation check of a player action.
type ActionCheck struct {
	ID      string
	Message string
	Rule    *router.Rule
}

// Action is a compiled player action.
type Action struct {
	Def     domain.PlayerActionInstruction
	Phase   string
	Checks  []ActionCheck
	Program delta.Program
}

// Name returns the action name players type, falling back to the id.
func (a *Action) Name() string {
	if a.Def.ActionName != "" {
		return a.Def.ActionName
	}
	return a.Def.ID
}

// Compiled is the executable form of an artifact set.
type Compiled struct {
	Key    domain.Key
	Set    *domain.ArtifactSet
	Hash   string
	Schema schema.StateSchema

	// Transitions in declaration order.
	Transitions []*Transition
	// Issues found while compiling; errors make the set unusable.
	Issues []domain.Issue

	byID        map[string]*Transition
	outbound    map[string][]*Transition
	actions     map[string][]*Action
	inputPhases map[string]bool
	declared    map[string]bool
}

// Compile parses every rule, path and program of the set. It never stops at
// the first problem; all of them are recorded in Issues.
func Compile(set *domain.ArtifactSet) *Compiled {
	c := &Compiled{
		Key:         domain.Key{GameID: set.GameID, Version: set.Version},
		Set:         set,
		Hash:        Hash(set),
		byID:        make(map[string]*Transition, len(set.Graph.Transitions)),
		outbound:    make(map[string][]*Transition),
		actions:     make(map[string][]*Action),
		inputPhases: make(map[string]bool),
		declared:    make(map[string]bool, len(set.Graph.Phases)),
	}

	for _, p := range set.Graph.Phases {
		c.declared[p] = true
	}
	for _, m := range set.Graph.PhaseMetadata {
		c.inputPhases[m.Phase] = m.RequiresPlayerInput
	}

	c.compileSchema(set.Schema)

	for i := range set.Graph.Transitions {
		def := set.Graph.Transitions[i]
		if _, dup := c.byID[def.ID]; dup {
			c.errorf(def.ID, "duplicate transition id")
			continue
		}
		t := c.compileTransition(def)
		c.byID[def.ID] = t
		c.Transitions = append(c.Transitions, t)
		c.outbound[def.FromPhase] = append(c.outbound[def.FromPhase], t)
	}

	phases := make([]string, 0, len(set.Instructions.PlayerPhases))
	for phase := range set.Instructions.PlayerPhases {
		phases = append(phases, phase)
	}
	sort.Strings(phases)
	for _, phase := range phases {
		for _, def := range set.Instructions.PlayerPhases[phase].PlayerActions {
			c.actions[phase] = append(c.actions[phase], c.compileAction(phase, def))
		}
	}

	return c
}

func (c *Compiled) compileSchema(s domain.StateSchema) {
	toTypes := func(scope string, fields map[string]domain.FieldSpec) schema.Schema {
		raw := make(map[string]string, len(fields))
		for k, f := range fields {
			raw[k] = f.Type
		}
		out, err := schema.ParseTypeMap(raw)
		if err != nil {
			c.errorf(scope+" schema", "%v", err)
			return nil
		}
		return out
	}
	c.Schema = schema.StateSchema{
		Game:   toTypes("game", s.Game),
		Player: toTypes("player", s.Player),
	}
}

func (c *Compiled) compileTransition(def domain.Transition) *Transition {
	t := &Transition{Def: def}
	reads := make(map[string]struct{})

	for i, pre := range def.Preconditions {
		rule, err := router.Compile(pre.Logic)
		if err != nil {
			c.errorf(def.ID, "precondition %d: %v", i, err)
			continue
		}
		t.Preconditions = append(t.Preconditions, router.Precondition{Label: pre.Explain, Rule: rule})
		for _, r := range rule.NormalizedReads() {
			reads[r] = struct{}{}
		}
	}
	for _, f := range def.CheckedFields {
		p, err := statepath.Parse(f)
		if err != nil {
			c.errorf(def.ID, "checkedFields: %v", err)
			continue
		}
		reads[p.Normalize()] = struct{}{}
	}
	for r := range reads {
		t.Reads = append(t.Reads, r)
	}
	sort.Strings(t.Reads)

	if instr, ok := c.Set.Instructions.Transitions[def.ID]; ok {
		instr := instr
		t.Instruction = &instr
		t.Program = c.compileProgram(def.ID, instr.StateDelta)
	}
	return t
}

func (c *Compiled) compileAction(phase string, def domain.PlayerActionInstruction) *Action {
	a := &Action{Def: def, Phase: phase}
	subject := phase + "/" + a.Name()

	for _, chk := range def.Validation.Checks {
		rule, err := router.Compile(chk.Logic)
		if err != nil {
			c.errorf(subject, "check %q: %v", chk.ID, err)
			continue
		}
		a.Checks = append(a.Checks, ActionCheck{ID: chk.ID, Message: chk.ErrorMessage, Rule: rule})
	}
	a.Program = c.compileProgram(subject, def.StateDelta)
	return a
}

func (c *Compiled) compileProgram(subject string, ops []domain.DeltaOp) delta.Program {
	prog, errs := delta.CompileProgram(ops)
	for _, err := range errs {
		c.errorf(subject, "%v", err)
	}
	for _, op := range ops {
		for _, issue := range delta.Check(op) {
			if issue.Warning {
				c.Issues = append(c.Issues, domain.Issue{
					Severity: domain.SeverityWarning,
					Check:    "rng",
					Subject:  subject,
					Message:  issue.Message,
				})
			}
		}
	}
	return prog
}

func (c *Compiled) errorf(subject, format string, args ...any) {
	c.Issues = append(c.Issues, domain.Issue{
		Severity: domain.SeverityError,
		Check:    CheckCompile,
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Transition returns the transition with the given id.
func (c *Compiled) Transition(id string) (*Transition, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// Outbound returns the transitions leaving phase, in declaration order.
func (c *Compiled) Outbound(phase string) []*Transition {
	return c.outbound[phase]
}

// Actions returns the player actions available in phase.
func (c *Compiled) Actions(phase string) []*Action {
	return c.actions[phase]
}

// AllActions returns every player action, ordered by phase.
func (c *Compiled) AllActions() []*Action {
	phases := make([]string, 0, len(c.actions))
	for p := range c.actions {
		phases = append(phases, p)
	}
	sort.Strings(phases)
	var out []*Action
	for _, p := range phases {
		out = append(out, c.actions[p]...)
	}
	return out
}

// Action finds an action by name (case-insensitive) or id within phase.
func (c *Compiled) Action(phase, name string) (*Action, bool) {
	for _, a := range c.actions[phase] {
		if strings.EqualFold(a.Name(), name) || strings.EqualFold(a.Def.ID, name) {
			return a, true
		}
	}
	return nil, false
}

// RequiresInput reports whether phase waits for players.
func (c *Compiled) RequiresInput(phase string) bool {
	return c.inputPhases[phase]
}

// HasMetadata reports whether phase has a phaseMetadata entry.
func (c *Compiled) HasMetadata(phase string) bool {
	_, ok := c.inputPhases[phase]
	return ok
}

// Declared reports whether phase is listed in phases.
func (c *Compiled) Declared(phase string) bool {
	return c.declared[phase]
}

// Phases returns the declared phases in declaration order.
func (c *Compiled) Phases() []string {
	return append([]string(nil), c.Set.Graph.Phases...)
}

// Errors returns the blocking issues.
func (c *Compiled) Errors() []domain.Issue {
	var out []domain.Issue
	for _, i := range c.Issues {
		if i.Severity == domain.SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Err returns a *domain.ValidationError when compilation produced errors.
func (c *Compiled) Err() error {
	if errs := c.Errors(); len(errs) > 0 {
		return &domain.ValidationError{Key: c.Key, Issues: errs}
	}
	return nil
}

// Hash returns the content hash of the (transitions, instructions) pair.
// Two artifact sets with the same hash share one transition graph.
func Hash(set *domain.ArtifactSet) string {
	payload := struct {
		Graph        domain.TransitionGraphDef `json:"graph"`
		Instructions domain.Instructions       `json:"instructions"`
	}{set.Graph, set.Instructions}

	h := sha256.New()
	if b, err := json.Marshal(payload); err == nil {
		h.Write(b)
	} else {
		fmt.Fprintf(h, "%#v", payload)
	}
	return hex.EncodeToString(h.Sum(nil))
}
