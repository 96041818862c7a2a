// Package router compiles and evaluates precondition rules.
//
// Rules use the JSON-logic shape: an object with a single operator key whose
// value is the argument list, e.g.
//
//	{"and": [
//	    {"==": [{"var": "game.currentPhase"}, "resolve"]},
//	    {"allPlayers": ["choice", "!=", ""]}
//	]}
//
// A rule is parsed once by Compile into an AST; evaluation never re-parses.
// Evaluation is pure: no operator consults a random source or mutates state.
// A field reference that cannot be resolved, and an operator called with the
// wrong number of arguments, are errors rather than a silent false.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/ludus/pkg/statepath"
	"github.com/aretw0/ludus/pkg/value"
)

var (
	// ErrUnresolvedField is returned when a var references a missing path.
	ErrUnresolvedField = errors.New("unresolved field reference")
	// ErrArity is returned when an operator receives the wrong number of arguments.
	ErrArity = errors.New("wrong number of arguments")
	// ErrUnknownOperator is returned for operators outside the supported set.
	ErrUnknownOperator = errors.New("unknown operator")
	// ErrNotBoolean is returned when a rule does not evaluate to a boolean.
	ErrNotBoolean = errors.New("rule did not evaluate to a boolean")
)

// Vars binds placeholder names (playerId, action parameters) for evaluation.
type Vars map[string]string

// Rule is a compiled precondition.
type Rule struct {
	raw   any
	root  node
	reads []statepath.Path
}

// Compile parses a decoded JSON-logic tree.
func Compile(rule any) (*Rule, error) {
	c := &compiler{}
	root, err := c.compile(rule)
	if err != nil {
		return nil, err
	}
	return &Rule{raw: rule, root: root, reads: c.reads}, nil
}

// MustCompile panics on error. Intended for tests and fixtures.
func MustCompile(rule any) *Rule {
	r, err := Compile(rule)
	if err != nil {
		panic(err)
	}
	return r
}

// CompileJSON is a convenience for rules held as JSON text.
func CompileJSON(text string) (*Rule, error) {
	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	return Compile(raw)
}

// Eval evaluates the rule against a state tree ({"game": ..., "players": ...}).
func (r *Rule) Eval(state map[string]any, vars Vars) (bool, error) {
	v, err := r.root.eval(&scope{state: state, vars: vars})
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: got %T", ErrNotBoolean, v)
	}
	return b, nil
}

// Reads returns every state path the rule reads, as written.
func (r *Rule) Reads() []statepath.Path {
	return append([]statepath.Path(nil), r.reads...)
}

// NormalizedReads returns the sorted, de-duplicated normalized read set.
func (r *Rule) NormalizedReads() []string {
	seen := make(map[string]struct{}, len(r.reads))
	var out []string
	for _, p := range r.reads {
		n := p.Normalize()
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// String renders the rule as compact JSON.
func (r *Rule) String() string {
	b, err := json.Marshal(r.raw)
	if err != nil {
		return fmt.Sprint(r.raw)
	}
	return string(b)
}

// Raw returns the decoded rule tree the Rule was compiled from.
func (r *Rule) Raw() any { return r.raw }

// EvalError wraps an evaluation failure with the operator that raised it.
type EvalError struct {
	Op   string
	Path string
	Err  error
}

func (e *EvalError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EvalError) Unwrap() error { return e.Err }

type scope struct {
	state map[string]any
	vars  Vars
}

func (s *scope) lookup(p statepath.Path) (any, error) {
	resolved, err := p.Resolve(s.vars)
	if err != nil {
		return nil, err
	}
	v, ok := statepath.Get(s.state, resolved)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedField, resolved)
	}
	return v, nil
}

// players returns the player entries sorted by id so quantifier results and
// error messages are deterministic.
func (s *scope) players() ([]string, map[string]any) {
	raw, _ := s.state[statepath.PlayersRoot].(map[string]any)
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, raw
}

func truthy(v any) bool { return value.Truthy(v) }
