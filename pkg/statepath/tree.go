package statepath

import (
	"fmt"
	"strconv"
)

// Get reads the value at a concrete path.
func Get(tree map[string]any, p Path) (any, bool) {
	if p.IsZero() || !p.Concrete() {
		return nil, false
	}
	var cur any = tree
	for _, s := range p.segs {
		next, ok := step(cur, s)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur any, s Segment) (any, bool) {
	switch node := cur.(type) {
	case map[string]any:
		key := s.Key
		if s.Kind == KindIndex {
			key = strconv.Itoa(s.Index)
		}
		v, ok := node[key]
		return v, ok
	case []any:
		idx := s.Index
		if s.Kind == KindKey {
			n, err := strconv.Atoi(s.Key)
			if err != nil {
				return nil, false
			}
			idx = n
		}
		if idx < 0 || idx >= len(node) {
			return nil, false
		}
		return node[idx], true
	}
	return nil, false
}

// Set writes v at a concrete path, creating intermediate maps as needed.
// Array elements must already exist.
func Set(tree map[string]any, p Path, v any) error {
	if p.IsZero() {
		return ErrEmptyPath
	}
	if !p.Concrete() {
		return fmt.Errorf("set %q: %w", p.raw, ErrNotConcrete)
	}
	return setIn(tree, p, 0, v)
}

func setIn(node any, p Path, i int, v any) error {
	s := p.segs[i]
	last := i == len(p.segs)-1

	switch n := node.(type) {
	case map[string]any:
		key := s.Key
		if s.Kind == KindIndex {
			key = strconv.Itoa(s.Index)
		}
		if last {
			n[key] = v
			return nil
		}
		child, ok := n[key]
		if !ok || child == nil {
			child = map[string]any{}
			n[key] = child
		}
		return setIn(child, p, i+1, v)
	case []any:
		idx := s.Index
		if s.Kind == KindKey {
			parsed, err := strconv.Atoi(s.Key)
			if err != nil {
				return fmt.Errorf("set %q: key %q on array: %w", p.raw, s.Key, ErrNotContainer)
			}
			idx = parsed
		}
		if idx < 0 || idx >= len(n) {
			return fmt.Errorf("set %q: index %d out of range (len %d)", p.raw, idx, len(n))
		}
		if last {
			n[idx] = v
			return nil
		}
		if n[idx] == nil {
			n[idx] = map[string]any{}
		}
		return setIn(n[idx], p, i+1, v)
	}
	return fmt.Errorf("set %q: segment %q holds %T: %w", p.raw, s.String(), node, ErrNotContainer)
}

// Delete removes the value at a concrete path. Deleting a missing key is not
// an error; removing an array element shifts the remainder.
func Delete(tree map[string]any, p Path) error {
	if p.IsZero() {
		return ErrEmptyPath
	}
	if !p.Concrete() {
		return fmt.Errorf("delete %q: %w", p.raw, ErrNotConcrete)
	}
	parentPath := p.Parent()
	var parent any = tree
	if !parentPath.IsZero() {
		v, ok := Get(tree, parentPath)
		if !ok {
			return nil
		}
		parent = v
	}

	s := p.Last()
	switch n := parent.(type) {
	case map[string]any:
		key := s.Key
		if s.Kind == KindIndex {
			key = strconv.Itoa(s.Index)
		}
		delete(n, key)
		return nil
	case []any:
		idx := s.Index
		if s.Kind == KindKey {
			parsed, err := strconv.Atoi(s.Key)
			if err != nil {
				return fmt.Errorf("delete %q: key %q on array: %w", p.raw, s.Key, ErrNotContainer)
			}
			idx = parsed
		}
		if idx < 0 || idx >= len(n) {
			return nil
		}
		shrunk := append(n[:idx:idx], n[idx+1:]...)
		return Set(tree, parentPath, shrunk)
	}
	return fmt.Errorf("delete %q: parent holds %T: %w", p.raw, parent, ErrNotContainer)
}
