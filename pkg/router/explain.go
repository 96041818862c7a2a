package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/ludus/pkg/statepath"
)

// Precondition is a compiled rule with its human-readable label.
type Precondition struct {
	Label string
	Rule  *Rule
}

// Failure describes the first precondition that blocked a transition.
type Failure struct {
	Label    string
	Required string
	Observed map[string]any
	Err      error
}

func (f *Failure) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "precondition %q", f.Label)
	if f.Err != nil {
		fmt.Fprintf(&b, " could not be evaluated: %v", f.Err)
	} else {
		b.WriteString(" is false")
	}
	fmt.Fprintf(&b, "; requires %s", f.Required)
	if len(f.Observed) > 0 {
		keys := make([]string, 0, len(f.Observed))
		for k := range f.Observed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%s", k, render(f.Observed[k]))
		}
		fmt.Fprintf(&b, "; observed %s", strings.Join(parts, ", "))
	}
	return b.String()
}

type unset struct{}

func render(v any) string {
	switch v.(type) {
	case unset:
		return "<unset>"
	case string:
		return fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("%v", v)
}

// EvalAll evaluates preconditions in order and stops at the first one that
// is false or cannot be evaluated. ok is true when every precondition holds.
// An evaluation error is reported both in the Failure and as err so callers
// can tell "blocked" from "broken".
func EvalAll(pres []Precondition, state map[string]any, vars Vars) (ok bool, failure *Failure, err error) {
	for _, p := range pres {
		held, evalErr := p.Rule.Eval(state, vars)
		if evalErr == nil && held {
			continue
		}
		f := &Failure{
			Label:    p.Label,
			Required: p.Rule.String(),
			Observed: Observe(p.Rule, state, vars),
			Err:      evalErr,
		}
		if f.Label == "" {
			f.Label = f.Required
		}
		return false, f, evalErr
	}
	return true, nil, nil
}

// Observe collects the current value of every path the rule reads. Player
// quantifier paths are expanded per player.
func Observe(r *Rule, state map[string]any, vars Vars) map[string]any {
	out := make(map[string]any)
	for _, p := range r.reads {
		segs := p.Segments()
		if len(segs) > 1 && segs[0].Key == statepath.PlayersRoot && segs[1].Kind == statepath.KindWildcard {
			players, _ := state[statepath.PlayersRoot].(map[string]any)
			rel := statepath.FromSegments(segs[2:]...)
			for id, entry := range players {
				key := statepath.PlayersRoot + "." + id
				if !rel.IsZero() {
					key += "." + rel.String()
				}
				m, _ := entry.(map[string]any)
				if v, ok := statepath.Get(m, rel); ok && m != nil {
					out[key] = v
				} else {
					out[key] = unset{}
				}
			}
			continue
		}
		resolved, err := p.Resolve(vars)
		if err != nil {
			out[p.String()] = unset{}
			continue
		}
		if v, ok := statepath.Get(state, resolved); ok {
			out[resolved.String()] = v
		} else {
			out[resolved.String()] = unset{}
		}
	}
	return out
}
