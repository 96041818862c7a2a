// Package value holds the small set of helpers used to compare, copy and
// combine the loosely typed values found in a game-state tree.
//
// State trees come from JSON, YAML and Go literals, so the same number may
// show up as int, int64, float64 or json.Number depending on where it was
// decoded. Everything here treats those as interchangeable.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Number converts any numeric representation to float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// IsInteger reports whether v is stored as one of Go's integer kinds.
func IsInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := v.(json.Number).Int64()
		return err == nil
	}
	return false
}

// Add sums two numbers. Two integers stay an int, anything else becomes float64.
func Add(a, b any) (any, error) {
	fa, ok := Number(a)
	if !ok {
		return nil, fmt.Errorf("%v (%T) is not a number", a, a)
	}
	fb, ok := Number(b)
	if !ok {
		return nil, fmt.Errorf("%v (%T) is not a number", b, b)
	}
	if IsInteger(a) && IsInteger(b) {
		return int(fa) + int(fb), nil
	}
	return fa + fb, nil
}

// Negate flips the sign of a number, preserving integer-ness.
func Negate(v any) (any, error) {
	f, ok := Number(v)
	if !ok {
		return nil, fmt.Errorf("%v (%T) is not a number", v, v)
	}
	if IsInteger(v) {
		return -int(f), nil
	}
	return -f, nil
}

// Equal compares two state values. Numbers compare by value regardless of
// their Go type; everything else is compared structurally.
func Equal(a, b any) bool {
	fa, aNum := Number(a)
	fb, bNum := Number(b)
	if aNum && bNum {
		return fa == fb
	}
	if aNum != bNum {
		return false
	}
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

// Compare orders two numbers or two strings. It returns -1, 0 or 1.
func Compare(a, b any) (int, error) {
	fa, aNum := Number(a)
	fb, bNum := Number(b)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		}
		return 0, nil
	}
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr && bStr {
		switch {
		case sa < sb:
			return -1, nil
		case sa > sb:
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot order %T and %T", a, b)
}

// Truthy follows the usual JSON-logic truthiness rules.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	}
	if f, ok := Number(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// Clone returns a deep copy of maps and slices found in v. Scalars are
// returned as-is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Clone(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	default:
		return v
	}
}

// CloneMap deep-copies a map. A nil map yields an empty one.
func CloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

// Normalize rewrites typed slices and maps into []any / map[string]any so
// they can be traversed uniformly.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Normalize(item)
		}
		return out
	case []string:
		return Clone(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return f
	}
	if f, ok := Number(v); ok && !IsInteger(v) {
		return f
	}
	if IsInteger(v) {
		f, _ := Number(v)
		return int(f)
	}
	return v
}

// Length returns the length of a string or collection.
func Length(v any) (int, error) {
	switch t := v.(type) {
	case string:
		return len([]rune(t)), nil
	case []any:
		return len(t), nil
	case map[string]any:
		return len(t), nil
	case nil:
		return 0, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	}
	return 0, fmt.Errorf("length of %T is undefined", v)
}
