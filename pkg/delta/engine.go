package delta

import (
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/statepath"
	"github.com/aretw0/ludus/pkg/value"
)

// OpError reports the operation that aborted a program.
type OpError struct {
	Index int
	Kind  string
	Path  string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("op %d (%s %s): %v", e.Index, e.Kind, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Result is the outcome of a successful program.
type Result struct {
	State *domain.GameState
	// Touched lists every concrete path written, in application order.
	Touched []statepath.Path
}

// Engine applies programs.
type Engine struct {
	chooser Chooser
}

// Option configures the Engine.
type Option func(*Engine)

// WithChooser overrides the random source used by rng operations.
func WithChooser(c Chooser) Option {
	return func(e *Engine) {
		e.chooser = c
	}
}

// New creates an Engine. Without options rng draws are seeded from the clock.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.chooser == nil {
		e.chooser = NewWeightedChooser(uint64(time.Now().UnixNano()))
	}
	return e
}

// Apply runs the program against a copy of state. vars binds placeholders
// such as {{playerId}}. On error the input state is unchanged and the
// returned *OpError names the failing operation.
func (e *Engine) Apply(state *domain.GameState, prog Program, vars Vars) (*Result, error) {
	work := state.Clone()
	if work == nil {
		work = &domain.GameState{}
	}
	tree := work.Tree()
	res := &Result{}
	pathVars := vars.strings()

	for i, op := range prog {
		touched, err := e.apply(tree, op, vars, pathVars)
		if err != nil {
			path := ""
			if targets := Targets(op); len(targets) > 0 {
				path = targets[0].String()
			}
			return nil, &OpError{Index: i, Kind: op.Kind(), Path: path, Err: err}
		}
		res.Touched = append(res.Touched, touched...)
	}

	res.State = domain.FromTree(tree)
	return res, nil
}

func (e *Engine) apply(tree map[string]any, op Op, vars Vars, pathVars map[string]string) ([]statepath.Path, error) {
	switch o := op.(type) {
	case Set:
		p, err := target(tree, o.Path, pathVars)
		if err != nil {
			return nil, err
		}
		v, err := o.Value.resolve(vars)
		if err != nil {
			return nil, err
		}
		return []statepath.Path{p}, statepath.Set(tree, p, v)

	case Increment:
		p, err := target(tree, o.Path, pathVars)
		if err != nil {
			return nil, err
		}
		cur, err := number(tree, p)
		if err != nil {
			return nil, err
		}
		amount, err := o.Amount.resolve(vars)
		if err != nil {
			return nil, err
		}
		sum, err := value.Add(cur, amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		return []statepath.Path{p}, statepath.Set(tree, p, sum)

	case Append:
		p, err := target(tree, o.Path, pathVars)
		if err != nil {
			return nil, err
		}
		v, err := o.Value.resolve(vars)
		if err != nil {
			return nil, err
		}
		var list []any
		if cur, ok := statepath.Get(tree, p); ok && cur != nil {
			existing, isList := value.Normalize(cur).([]any)
			if !isList {
				return nil, fmt.Errorf("%w: %s holds %T, not an array", ErrTypeMismatch, p, cur)
			}
			list = existing
		}
		list = append(list, v)
		return []statepath.Path{p}, statepath.Set(tree, p, list)

	case Delete:
		p, err := target(tree, o.Path, pathVars)
		if err != nil {
			return nil, err
		}
		return []statepath.Path{p}, statepath.Delete(tree, p)

	case Merge:
		p, err := target(tree, o.Path, pathVars)
		if err != nil {
			return nil, err
		}
		patch, err := o.Value.resolve(vars)
		if err != nil {
			return nil, err
		}
		obj := map[string]any{}
		if cur, ok := statepath.Get(tree, p); ok && cur != nil {
			existing, isObj := cur.(map[string]any)
			if !isObj {
				return nil, fmt.Errorf("%w: %s holds %T, not an object", ErrTypeMismatch, p, cur)
			}
			obj = existing
		}
		for k, v := range patch.(map[string]any) {
			obj[k] = v
		}
		return []statepath.Path{p}, statepath.Set(tree, p, obj)

	case Transfer:
		from, err := target(tree, o.From, pathVars)
		if err != nil {
			return nil, err
		}
		to, err := target(tree, o.To, pathVars)
		if err != nil {
			return nil, err
		}
		if samePath(from, to) {
			return nil, fmt.Errorf("%w: %s", ErrSelfTransfer, from)
		}
		src, err := number(tree, from)
		if err != nil {
			return nil, err
		}
		dst, err := number(tree, to)
		if err != nil {
			return nil, err
		}
		amount, err := o.Amount.resolve(vars)
		if err != nil {
			return nil, err
		}
		amt, _ := value.Number(amount)
		have, _ := value.Number(src)
		if amt < 0 {
			return nil, fmt.Errorf("%w: negative transfer amount %v", ErrTypeMismatch, amount)
		}
		if have < amt {
			return nil, fmt.Errorf("%w: %s holds %v, transfer needs %v", ErrInsufficientAmount, from, src, amount)
		}
		neg, _ := value.Negate(amount)
		newSrc, _ := value.Add(src, neg)
		newDst, _ := value.Add(dst, amount)
		if err := statepath.Set(tree, from, newSrc); err != nil {
			return nil, err
		}
		return []statepath.Path{from, to}, statepath.Set(tree, to, newDst)

	case SetForAllPlayers:
		players, _ := tree[statepath.PlayersRoot].(map[string]any)
		var touched []statepath.Path
		for _, id := range sortedKeys(players) {
			v, err := o.Value.resolve(vars)
			if err != nil {
				return nil, err
			}
			p := statepath.FromSegments(
				statepath.Segment{Kind: statepath.KindKey, Key: statepath.PlayersRoot},
				statepath.Segment{Kind: statepath.KindKey, Key: id},
			).Join(o.Field)
			if err := statepath.Set(tree, p, v); err != nil {
				return nil, err
			}
			touched = append(touched, p)
		}
		return touched, nil

	case RNG:
		p, err := target(tree, o.Path, pathVars)
		if err != nil {
			return nil, err
		}
		idx := e.chooser.Choose(o.Probabilities)
		if idx < 0 || idx >= len(o.Choices) {
			return nil, fmt.Errorf("chooser returned index %d for %d choices", idx, len(o.Choices))
		}
		return []statepath.Path{p}, statepath.Set(tree, p, value.Clone(o.Choices[idx]))
	}

	return nil, fmt.Errorf("unsupported operation %T", op)
}

// target resolves placeholders and refuses to conjure player entries that do
// not exist.
func target(tree map[string]any, p statepath.Path, vars map[string]string) (statepath.Path, error) {
	resolved, err := p.Resolve(vars)
	if err != nil {
		var unresolved *statepath.UnresolvedError
		if errors.As(err, &unresolved) {
			return statepath.Path{}, fmt.Errorf("%w: {{%s}} in %s", ErrUnresolvedPlaceholder, unresolved.Name, p)
		}
		return statepath.Path{}, err
	}
	if !resolved.Concrete() {
		return statepath.Path{}, fmt.Errorf("%s: %w", p, statepath.ErrNotConcrete)
	}
	segs := resolved.Segments()
	if len(segs) > 2 && segs[0].Key == statepath.PlayersRoot {
		players, _ := tree[statepath.PlayersRoot].(map[string]any)
		if _, ok := players[segs[1].Key]; !ok {
			return statepath.Path{}, fmt.Errorf("%w: %w %q for %s", ErrUndefinedPath, domain.ErrUnknownPlayer, segs[1].Key, resolved)
		}
	}
	return resolved, nil
}

func samePath(a, b statepath.Path) bool {
	return statepath.FromSegments(a.Segments()...).String() == statepath.FromSegments(b.Segments()...).String()
}

func number(tree map[string]any, p statepath.Path) (any, error) {
	cur, ok := statepath.Get(tree, p)
	if !ok || cur == nil {
		return nil, fmt.Errorf("%w: %s", ErrUndefinedPath, p)
	}
	if _, isNum := value.Number(cur); !isNum {
		return nil, fmt.Errorf("%w: %s holds %T, not a number", ErrTypeMismatch, p, cur)
	}
	return cur, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortStrings(keys)
	return keys
}
