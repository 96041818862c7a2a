package delta

import (
	"fmt"
	"math"

	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/statepath"
	"github.com/aretw0/ludus/pkg/value"
)

// ProbabilityTolerance is how far an rng distribution may stray from 1.0
// before Check warns about it.
const ProbabilityTolerance = 0.01

// CompileError reports the wire operation that could not be compiled.
type CompileError struct {
	Index int
	Op    string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("op %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// CompileProgram compiles every operation, collecting all failures.
func CompileProgram(ops []domain.DeltaOp) (Program, []error) {
	prog := make(Program, 0, len(ops))
	var errs []error
	for i, raw := range ops {
		op, err := Compile(raw)
		if err != nil {
			errs = append(errs, &CompileError{Index: i, Op: raw.Op, Err: err})
			continue
		}
		prog = append(prog, op)
	}
	return prog, errs
}

// Compile turns one wire operation into its typed form.
func Compile(raw domain.DeltaOp) (Op, error) {
	switch raw.Op {
	case domain.OpSet:
		p, err := parsePath("path", raw.Path)
		if err != nil {
			return nil, err
		}
		v, err := NewLiteral(raw.Value)
		if err != nil {
			return nil, err
		}
		return Set{Path: p, Value: v}, nil

	case domain.OpIncrement:
		p, err := parsePath("path", raw.Path)
		if err != nil {
			return nil, err
		}
		amount := raw.Amount
		if amount == nil {
			amount = raw.Value
		}
		a, err := NewAmount(amount)
		if err != nil {
			return nil, err
		}
		return Increment{Path: p, Amount: a}, nil

	case domain.OpAppend:
		p, err := parsePath("path", raw.Path)
		if err != nil {
			return nil, err
		}
		v, err := NewLiteral(raw.Value)
		if err != nil {
			return nil, err
		}
		return Append{Path: p, Value: v}, nil

	case domain.OpDelete:
		p, err := parsePath("path", raw.Path)
		if err != nil {
			return nil, err
		}
		return Delete{Path: p}, nil

	case domain.OpMerge:
		p, err := parsePath("path", raw.Path)
		if err != nil {
			return nil, err
		}
		v, err := NewLiteral(raw.Value)
		if err != nil {
			return nil, err
		}
		if _, ok := v.Raw().(map[string]any); !ok {
			return nil, fmt.Errorf("merge value must be an object, got %T", raw.Value)
		}
		return Merge{Path: p, Value: v}, nil

	case domain.OpTransfer:
		from, err := parsePath("from", raw.From)
		if err != nil {
			return nil, err
		}
		to, err := parsePath("to", raw.To)
		if err != nil {
			return nil, err
		}
		a, err := NewAmount(raw.Amount)
		if err != nil {
			return nil, err
		}
		return Transfer{From: from, To: to, Amount: a}, nil

	case domain.OpSetForAllPlayers:
		f, err := parsePath("field", raw.Field)
		if err != nil {
			return nil, err
		}
		v, err := NewLiteral(raw.Value)
		if err != nil {
			return nil, err
		}
		return SetForAllPlayers{Field: f, Value: v}, nil

	case domain.OpRNG:
		p, err := parsePath("path", raw.Path)
		if err != nil {
			return nil, err
		}
		if len(raw.Choices) == 0 {
			return nil, fmt.Errorf("rng needs at least one choice")
		}
		if len(raw.Choices) != len(raw.Probabilities) {
			return nil, fmt.Errorf("rng has %d choices but %d probabilities", len(raw.Choices), len(raw.Probabilities))
		}
		choices := make([]any, len(raw.Choices))
		for i, c := range raw.Choices {
			lit, err := NewLiteral(c)
			if err != nil {
				return nil, err
			}
			if lit.template {
				return nil, fmt.Errorf("%w: rng choice %d", ErrNestedPlaceholder, i)
			}
			choices[i] = lit.Raw()
		}
		for i, w := range raw.Probabilities {
			if w < 0 || math.IsNaN(w) {
				return nil, fmt.Errorf("rng probability %d is %v", i, w)
			}
		}
		return RNG{Path: p, Choices: choices, Probabilities: append([]float64(nil), raw.Probabilities...)}, nil
	}

	return nil, fmt.Errorf("unknown operation %q", raw.Op)
}

func parsePath(field, raw string) (statepath.Path, error) {
	if raw == "" {
		return statepath.Path{}, fmt.Errorf("%s is required", field)
	}
	return statepath.Parse(raw)
}

// Issue is a finding from Check.
type Issue struct {
	Warning bool
	Message string
}

// Check inspects a wire operation without compiling it to a program. It
// reports length mismatches and nested placeholders as errors, and rng
// distributions that do not sum to 1.0 as warnings.
func Check(raw domain.DeltaOp) []Issue {
	var issues []Issue
	if raw.Op == domain.OpRNG {
		if len(raw.Choices) != len(raw.Probabilities) {
			issues = append(issues, Issue{Message: fmt.Sprintf("rng on %q has %d choices but %d probabilities", raw.Path, len(raw.Choices), len(raw.Probabilities))})
		} else {
			var sum float64
			for _, p := range raw.Probabilities {
				sum += p
			}
			if math.Abs(sum-1.0) > ProbabilityTolerance {
				issues = append(issues, Issue{Warning: true, Message: fmt.Sprintf("rng on %q probabilities sum to %.3f, expected 1.0", raw.Path, sum)})
			}
		}
	}
	switch v := value.Normalize(raw.Value).(type) {
	case []any, map[string]any:
		if name, ok := findPlaceholder(v); ok {
			issues = append(issues, Issue{Message: fmt.Sprintf("%s on %q: placeholder {{%s}} inside a literal is not supported", raw.Op, raw.Path, name)})
		}
	}
	return issues
}
