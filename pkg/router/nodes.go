package router

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/ludus/pkg/statepath"
	"github.com/aretw0/ludus/pkg/value"
)

type node interface {
	eval(*scope) (any, error)
}

type literal struct{ v any }

func (n literal) eval(*scope) (any, error) { return n.v, nil }

type arrayNode struct{ items []node }

func (n arrayNode) eval(s *scope) (any, error) {
	out := make([]any, len(n.items))
	for i, item := range n.items {
		v, err := item.eval(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type varNode struct {
	path   statepath.Path
	def    any
	hasDef bool
}

func (n varNode) eval(s *scope) (any, error) {
	v, err := s.lookup(n.path)
	if err != nil {
		if n.hasDef {
			return n.def, nil
		}
		return nil, &EvalError{Op: "var", Path: n.path.String(), Err: err}
	}
	return v, nil
}

type compareNode struct {
	op   string
	args []node
}

func (n compareNode) eval(s *scope) (any, error) {
	vals := make([]any, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(s)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	if len(vals) == 3 {
		lo, err := compare(n.op, vals[0], vals[1])
		if err != nil || !lo {
			return false, err
		}
		return compare(n.op, vals[1], vals[2])
	}
	return compare(n.op, vals[0], vals[1])
}

func compare(op string, a, b any) (bool, error) {
	switch op {
	case "==":
		return value.Equal(a, b), nil
	case "!=":
		return !value.Equal(a, b), nil
	}
	c, err := value.Compare(a, b)
	if err != nil {
		return false, &EvalError{Op: op, Err: err}
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, &EvalError{Op: op, Err: ErrUnknownOperator}
}

type logicNode struct {
	and  bool
	args []node
}

func (n logicNode) eval(s *scope) (any, error) {
	for _, a := range n.args {
		v, err := a.eval(s)
		if err != nil {
			return nil, err
		}
		if t := truthy(v); t != n.and {
			return t, nil
		}
	}
	return n.and, nil
}

type notNode struct{ arg node }

func (n notNode) eval(s *scope) (any, error) {
	v, err := n.arg.eval(s)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

type inNode struct{ needle, haystack node }

func (n inNode) eval(s *scope) (any, error) {
	needle, err := n.needle.eval(s)
	if err != nil {
		return nil, err
	}
	hay, err := n.haystack.eval(s)
	if err != nil {
		return nil, err
	}
	switch h := value.Normalize(hay).(type) {
	case string:
		sub, ok := needle.(string)
		if !ok {
			return false, &EvalError{Op: "in", Err: fmt.Errorf("cannot search %T in a string", needle)}
		}
		return strings.Contains(h, sub), nil
	case []any:
		for _, item := range h {
			if value.Equal(item, needle) {
				return true, nil
			}
		}
		return false, nil
	case map[string]any:
		_, ok := h[fmt.Sprint(needle)]
		return ok, nil
	case nil:
		return false, nil
	}
	return false, &EvalError{Op: "in", Err: fmt.Errorf("haystack is %T", hay)}
}

type quantifierNode struct {
	all     bool
	op      string
	field   statepath.Path
	cmp     string
	literal node
}

func (n quantifierNode) eval(s *scope) (any, error) {
	want, err := n.literal.eval(s)
	if err != nil {
		return nil, err
	}
	ids, players := s.players()
	for _, id := range ids {
		entry, _ := players[id].(map[string]any)
		matched := false
		if entry != nil {
			// A player without the field does not match; a field of the
			// wrong type is an evaluation error like anywhere else.
			if got, ok := statepath.Get(entry, n.field); ok && got != nil {
				matched, err = compare(n.cmp, got, want)
				if err != nil {
					return nil, &EvalError{Op: n.op, Path: "players." + id + "." + n.field.String(), Err: err}
				}
			}
		}
		if n.all && !matched {
			return false, nil
		}
		if !n.all && matched {
			return true, nil
		}
	}
	return n.all, nil
}

type lookupNode struct{ coll, index node }

func (n lookupNode) eval(s *scope) (any, error) {
	coll, err := n.coll.eval(s)
	if err != nil {
		return nil, err
	}
	idx, err := n.index.eval(s)
	if err != nil {
		return nil, err
	}
	switch c := value.Normalize(coll).(type) {
	case []any:
		f, ok := value.Number(idx)
		if !ok {
			if str, isStr := idx.(string); isStr {
				parsed, perr := strconv.Atoi(str)
				f, ok = float64(parsed), perr == nil
			}
		}
		i := int(f)
		if !ok || float64(i) != f || i < 0 || i >= len(c) {
			return nil, &EvalError{Op: "lookup", Err: fmt.Errorf("%w: index %v of %d items", ErrUnresolvedField, idx, len(c))}
		}
		return c[i], nil
	case map[string]any:
		key := fmt.Sprint(idx)
		if f, ok := value.Number(idx); ok && float64(int(f)) == f {
			key = strconv.Itoa(int(f))
		}
		v, ok := c[key]
		if !ok {
			return nil, &EvalError{Op: "lookup", Err: fmt.Errorf("%w: key %q", ErrUnresolvedField, key)}
		}
		return v, nil
	}
	return nil, &EvalError{Op: "lookup", Err: fmt.Errorf("cannot index into %T", coll)}
}

type lengthNode struct{ arg node }

func (n lengthNode) eval(s *scope) (any, error) {
	v, err := n.arg.eval(s)
	if err != nil {
		return nil, err
	}
	l, err := value.Length(v)
	if err != nil {
		return nil, &EvalError{Op: "length", Err: err}
	}
	return l, nil
}
