// Package statepath parses and manipulates addresses into a game-state tree.
//
// A path such as "players.{{playerId}}.hand[0]" is parsed once into typed
// segments. Every segment is exactly one of:
//
//   - a literal key ("players", "hand")
//   - a literal array index ("[0]")
//   - a wildcard ("*" or "[*]")
//   - a complete template placeholder ("{{playerId}}")
//
// A segment that mixes literal text with a placeholder ("scoreP{{id}}") is
// rejected at parse time. Placeholders are substituted with Resolve right
// before a path is used against real state; Normalize folds every variable
// segment into a wildcard for static analysis.
package statepath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a single path segment.
type Kind int

const (
	KindKey Kind = iota
	KindIndex
	KindWildcard
	KindPlaceholder
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindIndex:
		return "index"
	case KindWildcard:
		return "wildcard"
	case KindPlaceholder:
		return "placeholder"
	}
	return "unknown"
}

// Wildcard is the normalized form of every variable segment.
const Wildcard = "*"

// PlayersRoot is the collection whose direct children are runtime player ids.
const PlayersRoot = "players"

// Segment is one step of a path.
type Segment struct {
	Kind  Kind
	Key   string // KindKey
	Index int    // KindIndex
	Name  string // KindPlaceholder
}

func (s Segment) String() string {
	switch s.Kind {
	case KindIndex:
		return "[" + strconv.Itoa(s.Index) + "]"
	case KindWildcard:
		return Wildcard
	case KindPlaceholder:
		return "{{" + s.Name + "}}"
	}
	return s.Key
}

var (
	// ErrEmptyPath is returned when parsing an empty string.
	ErrEmptyPath = errors.New("empty path")
	// ErrNotConcrete is returned when a path with wildcards or placeholders is
	// used where a single location is required.
	ErrNotConcrete = errors.New("path is not concrete")
	// ErrNotContainer is returned when traversal hits a scalar.
	ErrNotContainer = errors.New("value is not a container")
)

// SegmentError reports the exact segment that could not be parsed.
type SegmentError struct {
	Path     string
	Segment  string
	Position int
	Reason   string
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("invalid path %q: segment %d %q: %s", e.Path, e.Position, e.Segment, e.Reason)
}

// UnresolvedError is returned by Resolve when a placeholder has no binding.
type UnresolvedError struct {
	Path string
	Name string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("path %q: unresolved placeholder {{%s}}", e.Path, e.Name)
}

// Path is a parsed, immutable state address.
type Path struct {
	raw  string
	segs []Segment
}

// Parse splits raw into typed segments.
func Parse(raw string) (Path, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Path{}, ErrEmptyPath
	}

	var (
		segs []Segment
		buf  strings.Builder
		pos  int
	)

	flush := func(required bool) error {
		text := buf.String()
		buf.Reset()
		if text == "" {
			if required {
				return &SegmentError{Path: raw, Segment: text, Position: pos, Reason: "empty segment"}
			}
			return nil
		}
		seg, err := classify(raw, text, pos)
		if err != nil {
			return err
		}
		segs = append(segs, seg)
		pos++
		return nil
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case strings.HasPrefix(raw[i:], "{{"):
			end := strings.Index(raw[i:], "}}")
			if end < 0 {
				return Path{}, &SegmentError{Path: raw, Segment: raw[i:], Position: pos, Reason: "unterminated placeholder"}
			}
			buf.WriteString(raw[i : i+end+2])
			i += end + 1
		case c == '.':
			// "a[0].b" leaves an empty buffer after the bracket.
			if err := flush(len(segs) == 0 || (i > 0 && raw[i-1] != ']')); err != nil {
				return Path{}, err
			}
		case c == '[':
			if err := flush(false); err != nil {
				return Path{}, err
			}
			end := strings.IndexByte(raw[i:], ']')
			if end < 0 {
				return Path{}, &SegmentError{Path: raw, Segment: raw[i:], Position: pos, Reason: "unterminated index"}
			}
			seg, err := classifyBracket(raw, raw[i+1:i+end], pos)
			if err != nil {
				return Path{}, err
			}
			segs = append(segs, seg)
			pos++
			i += end
		default:
			buf.WriteByte(c)
		}
	}
	if err := flush(raw[len(raw)-1] != ']'); err != nil {
		return Path{}, err
	}

	return Path{raw: raw, segs: segs}, nil
}

// MustParse is Parse for package-level literals and tests.
func MustParse(raw string) Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func classify(raw, text string, pos int) (Segment, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == Wildcard {
		return Segment{Kind: KindWildcard}, nil
	}
	open := strings.Index(trimmed, "{{")
	closeIdx := strings.LastIndex(trimmed, "}}")
	if open < 0 && closeIdx < 0 {
		if strings.ContainsAny(trimmed, "{}* ") {
			return Segment{}, &SegmentError{Path: raw, Segment: text, Position: pos, Reason: "unexpected character"}
		}
		return Segment{Kind: KindKey, Key: trimmed}, nil
	}
	if open != 0 || closeIdx != len(trimmed)-2 || strings.Count(trimmed, "{{") != 1 {
		return Segment{}, &SegmentError{Path: raw, Segment: text, Position: pos, Reason: "segment mixes literal text and a placeholder"}
	}
	name := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
	if !validName(name) {
		return Segment{}, &SegmentError{Path: raw, Segment: text, Position: pos, Reason: "invalid placeholder name"}
	}
	return Segment{Kind: KindPlaceholder, Name: name}, nil
}

func classifyBracket(raw, inner string, pos int) (Segment, error) {
	inner = strings.TrimSpace(inner)
	if inner == Wildcard {
		return Segment{Kind: KindWildcard}, nil
	}
	if strings.HasPrefix(inner, "{{") {
		return classify(raw, inner, pos)
	}
	n, err := strconv.Atoi(inner)
	if err != nil || n < 0 {
		return Segment{}, &SegmentError{Path: raw, Segment: "[" + inner + "]", Position: pos, Reason: "index must be a non-negative integer, * or a placeholder"}
	}
	return Segment{Kind: KindIndex, Index: n}, nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r == '-' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// FromSegments builds a path from already classified segments.
func FromSegments(segs ...Segment) Path {
	cp := append([]Segment(nil), segs...)
	return Path{raw: render(cp), segs: cp}
}

func render(segs []Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if s.Kind == KindIndex {
			b.WriteString(s.String())
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// String returns the path as written.
func (p Path) String() string { return p.raw }

// IsZero reports whether p is the zero Path.
func (p Path) IsZero() bool { return len(p.segs) == 0 }

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segs) }

// Segments returns a copy of the parsed segments.
func (p Path) Segments() []Segment { return append([]Segment(nil), p.segs...) }

// Root returns the first key, usually "game" or "players".
func (p Path) Root() string {
	if len(p.segs) == 0 {
		return ""
	}
	return p.segs[0].Key
}

// Parent drops the last segment.
func (p Path) Parent() Path {
	if len(p.segs) <= 1 {
		return Path{}
	}
	return FromSegments(p.segs[:len(p.segs)-1]...)
}

// Last returns the final segment.
func (p Path) Last() Segment {
	if len(p.segs) == 0 {
		return Segment{}
	}
	return p.segs[len(p.segs)-1]
}

// Child appends segments to a copy of p.
func (p Path) Child(segs ...Segment) Path {
	out := make([]Segment, 0, len(p.segs)+len(segs))
	out = append(out, p.segs...)
	out = append(out, segs...)
	return FromSegments(out...)
}

// Join appends rel (typically a field below a player) to p.
func (p Path) Join(rel Path) Path {
	return p.Child(rel.segs...)
}

// Placeholders lists placeholder names in order of appearance.
func (p Path) Placeholders() []string {
	var names []string
	for _, s := range p.segs {
		if s.Kind == KindPlaceholder {
			names = append(names, s.Name)
		}
	}
	return names
}

// Concrete reports whether every segment is a key or an index.
func (p Path) Concrete() bool {
	for _, s := range p.segs {
		if s.Kind == KindWildcard || s.Kind == KindPlaceholder {
			return false
		}
	}
	return true
}

// Resolve substitutes placeholders with the bound values.
func (p Path) Resolve(vars map[string]string) (Path, error) {
	if len(p.Placeholders()) == 0 {
		return p, nil
	}
	out := make([]Segment, len(p.segs))
	for i, s := range p.segs {
		if s.Kind != KindPlaceholder {
			out[i] = s
			continue
		}
		v, ok := vars[s.Name]
		if !ok || v == "" {
			return Path{}, &UnresolvedError{Path: p.raw, Name: s.Name}
		}
		out[i] = Segment{Kind: KindKey, Key: v}
	}
	return FromSegments(out...), nil
}

// Normalize folds placeholders, indices, wildcards and player ids into "*".
// The result is only meaningful for analysis; it is never used to address
// real state.
func (p Path) Normalize() string {
	parts := make([]string, len(p.segs))
	for i, s := range p.segs {
		switch {
		case s.Kind != KindKey:
			parts[i] = Wildcard
		case i == 1 && p.segs[0].Kind == KindKey && p.segs[0].Key == PlayersRoot:
			parts[i] = Wildcard
		default:
			parts[i] = s.Key
		}
	}
	return strings.Join(parts, ".")
}

// Overlaps reports whether two normalized paths may address the same data:
// one is a segment-wise prefix of the other, with "*" matching anything.
func Overlaps(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := min(len(as), len(bs))
	for i := 0; i < n; i++ {
		if as[i] == Wildcard || bs[i] == Wildcard {
			continue
		}
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
