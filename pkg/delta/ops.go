// Package delta applies typed state-mutation programs to a game state.
//
// The wire form (domain.DeltaOp) is compiled once into the closed set of Op
// variants below; paths are parsed at compile time and never re-parsed when a
// program runs. Programs apply left to right to a copy of the state and abort
// on the first inapplicable operation, so a failed program leaves the
// original state untouched.
package delta

import (
	"github.com/aretw0/ludus/pkg/statepath"
)

// Op is one compiled mutation. The set of implementations is closed: the
// unexported method keeps other packages from adding variants, and every
// switch over Op in this package handles all of them.
type Op interface {
	Kind() string
	isOp()
}

// Set writes a literal at Path.
type Set struct {
	Path  statepath.Path
	Value Literal
}

// Increment adds Amount to the number at Path. The path must already hold a number.
type Increment struct {
	Path   statepath.Path
	Amount Amount
}

// Append pushes Value onto the array at Path, creating the array if missing.
type Append struct {
	Path  statepath.Path
	Value Literal
}

// Delete removes Path.
type Delete struct {
	Path statepath.Path
}

// Merge shallow-merges an object literal into the object at Path.
type Merge struct {
	Path  statepath.Path
	Value Literal
}

// Transfer moves Amount from one numeric path to another.
type Transfer struct {
	From   statepath.Path
	To     statepath.Path
	Amount Amount
}

// SetForAllPlayers writes Value to Field on every player present when the
// program runs.
type SetForAllPlayers struct {
	Field statepath.Path
	Value Literal
}

// RNG draws one of Choices with the given weights and writes it to Path.
type RNG struct {
	Path          statepath.Path
	Choices       []any
	Probabilities []float64
}

func (Set) Kind() string              { return "set" }
func (Increment) Kind() string        { return "increment" }
func (Append) Kind() string           { return "append" }
func (Delete) Kind() string           { return "delete" }
func (Merge) Kind() string            { return "merge" }
func (Transfer) Kind() string         { return "transfer" }
func (SetForAllPlayers) Kind() string { return "setForAllPlayers" }
func (RNG) Kind() string              { return "rng" }

func (Set) isOp()              {}
func (Increment) isOp()        {}
func (Append) isOp()           {}
func (Delete) isOp()           {}
func (Merge) isOp()            {}
func (Transfer) isOp()         {}
func (SetForAllPlayers) isOp() {}
func (RNG) isOp()              {}

// Program is an ordered list of operations.
type Program []Op

var playersWildcard = statepath.FromSegments(
	statepath.Segment{Kind: statepath.KindKey, Key: statepath.PlayersRoot},
	statepath.Segment{Kind: statepath.KindWildcard},
)

// Targets returns the paths an operation writes, as written in the program.
func Targets(op Op) []statepath.Path {
	switch o := op.(type) {
	case Set:
		return []statepath.Path{o.Path}
	case Increment:
		return []statepath.Path{o.Path}
	case Append:
		return []statepath.Path{o.Path}
	case Delete:
		return []statepath.Path{o.Path}
	case Merge:
		return []statepath.Path{o.Path}
	case Transfer:
		return []statepath.Path{o.From, o.To}
	case SetForAllPlayers:
		return []statepath.Path{playersWildcard.Join(o.Field)}
	case RNG:
		return []statepath.Path{o.Path}
	}
	return nil
}

// Writes returns the sorted, de-duplicated normalized write set of a program.
// It is the static counterpart of Result.Touched.
func Writes(p Program) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, op := range p {
		for _, t := range Targets(op) {
			n := t.Normalize()
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	sortStrings(out)
	return out
}
