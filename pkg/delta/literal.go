package delta

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/aretw0/ludus/pkg/value"
)

var (
	// ErrUndefinedPath is returned when an operation needs an existing value.
	ErrUndefinedPath = errors.New("undefined path")
	// ErrTypeMismatch is returned when the value at a path has the wrong type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrInsufficientAmount is returned when a transfer source cannot cover the amount.
	ErrInsufficientAmount = errors.New("insufficient amount")
	// ErrSelfTransfer is returned when a transfer resolves to one path on both ends.
	ErrSelfTransfer = errors.New("transfer source and destination are the same")
	// ErrUnresolvedPlaceholder is returned when a placeholder has no binding.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")
	// ErrNestedPlaceholder is returned at compile time for placeholders inside
	// array or object literals.
	ErrNestedPlaceholder = errors.New("placeholders inside array or object literals are not supported")
)

var placeholderRE = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_-]+)\s*\}\}`)

// Literal is a value written by an operation. Top-level strings may contain
// placeholders, which are substituted when the program runs.
type Literal struct {
	v        any
	template bool
}

// NewLiteral wraps v, rejecting placeholders nested inside collections.
func NewLiteral(v any) (Literal, error) {
	v = value.Normalize(v)
	switch t := v.(type) {
	case string:
		return Literal{v: t, template: placeholderRE.MatchString(t)}, nil
	case []any, map[string]any:
		if name, ok := findPlaceholder(t); ok {
			return Literal{}, fmt.Errorf("%w: found {{%s}}", ErrNestedPlaceholder, name)
		}
	}
	return Literal{v: v}, nil
}

// Raw returns the literal as authored.
func (l Literal) Raw() any { return l.v }

// Vars binds placeholder names to values. Paths use the string form of a
// value; a literal that is exactly one placeholder takes the bound value
// with its type, so {"value": "{{bet}}"} writes a number when bet is one.
type Vars map[string]any

func (v Vars) strings() map[string]string {
	out := make(map[string]string, len(v))
	for k, val := range v {
		out[k] = fmt.Sprint(val)
	}
	return out
}

func (l Literal) resolve(vars Vars) (any, error) {
	if !l.template {
		return value.Clone(l.v), nil
	}
	s := l.v.(string)
	if m := placeholderRE.FindStringSubmatch(s); m != nil && m[0] == s {
		v, ok := vars[m[1]]
		if !ok {
			return nil, fmt.Errorf("%w: {{%s}}", ErrUnresolvedPlaceholder, m[1])
		}
		return value.Clone(v), nil
	}
	return interpolate(s, vars)
}

func interpolate(s string, vars Vars) (string, error) {
	var missing string
	out := placeholderRE.ReplaceAllStringFunc(s, func(m string) string {
		name := placeholderRE.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return fmt.Sprint(v)
	})
	if missing != "" {
		return "", fmt.Errorf("%w: {{%s}}", ErrUnresolvedPlaceholder, missing)
	}
	return out, nil
}

func findPlaceholder(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if m := placeholderRE.FindStringSubmatch(t); m != nil {
			return m[1], true
		}
	case []any:
		for _, item := range t {
			if name, ok := findPlaceholder(item); ok {
				return name, true
			}
		}
	case map[string]any:
		for k, item := range t {
			if m := placeholderRE.FindStringSubmatch(k); m != nil {
				return m[1], true
			}
			if name, ok := findPlaceholder(item); ok {
				return name, true
			}
		}
	}
	return "", false
}

// Amount is a numeric operand: a number literal or a complete placeholder
// bound to a numeric action parameter.
type Amount struct {
	n           any
	placeholder string
}

// NewAmount validates a numeric operand.
func NewAmount(v any) (Amount, error) {
	if s, ok := v.(string); ok {
		m := placeholderRE.FindStringSubmatch(s)
		if m == nil || m[0] != s {
			return Amount{}, fmt.Errorf("amount %q is neither a number nor a placeholder", s)
		}
		return Amount{placeholder: m[1]}, nil
	}
	if _, ok := value.Number(v); !ok {
		return Amount{}, fmt.Errorf("amount %v (%T) is not a number", v, v)
	}
	return Amount{n: value.Normalize(v)}, nil
}

func (a Amount) resolve(vars Vars) (any, error) {
	if a.placeholder == "" {
		return a.n, nil
	}
	bound, ok := vars[a.placeholder]
	if !ok {
		return nil, fmt.Errorf("%w: {{%s}}", ErrUnresolvedPlaceholder, a.placeholder)
	}
	if _, isNum := value.Number(bound); isNum {
		return value.Normalize(bound), nil
	}
	raw := fmt.Sprint(bound)
	if i, err := strconv.Atoi(raw); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: {{%s}} = %q is not a number", ErrTypeMismatch, a.placeholder, raw)
	}
	return f, nil
}

func sortStrings(s []string) { sort.Strings(s) }
