package router

import (
	"fmt"
	"sort"

	"github.com/aretw0/ludus/pkg/statepath"
)

type compiler struct {
	reads []statepath.Path
}

func (c *compiler) compile(raw any) (node, error) {
	switch v := raw.(type) {
	case map[string]any:
		if len(v) != 1 {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("rule object must have exactly one operator, got %v", keys)
		}
		for op, args := range v {
			return c.operator(op, args)
		}
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, item := range v {
			m[fmt.Sprint(k)] = item
		}
		return c.compile(m)
	case []any:
		items, err := c.list(v)
		if err != nil {
			return nil, err
		}
		return arrayNode{items: items}, nil
	}
	return literal{v: raw}, nil
}

func (c *compiler) list(raw []any) ([]node, error) {
	out := make([]node, len(raw))
	for i, item := range raw {
		n, err := c.compile(item)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func argList(args any) []any {
	if list, ok := args.([]any); ok {
		return list
	}
	return []any{args}
}

func arity(op string, got int, allowed ...int) error {
	for _, n := range allowed {
		if got == n {
			return nil
		}
	}
	return &EvalError{Op: op, Err: fmt.Errorf("%w: expected %v, got %d", ErrArity, allowed, got)}
}

func (c *compiler) operator(op string, rawArgs any) (node, error) {
	args := argList(rawArgs)

	switch op {
	case "var":
		return c.variable(args)

	case "==", "!=", ">", ">=":
		if err := arity(op, len(args), 2); err != nil {
			return nil, err
		}
		operands, err := c.list(args)
		if err != nil {
			return nil, err
		}
		return compareNode{op: op, args: operands}, nil

	case "<", "<=":
		if err := arity(op, len(args), 2, 3); err != nil {
			return nil, err
		}
		operands, err := c.list(args)
		if err != nil {
			return nil, err
		}
		return compareNode{op: op, args: operands}, nil

	case "and", "or":
		if len(args) == 0 {
			return nil, &EvalError{Op: op, Err: fmt.Errorf("%w: expected at least 1", ErrArity)}
		}
		operands, err := c.list(args)
		if err != nil {
			return nil, err
		}
		return logicNode{and: op == "and", args: operands}, nil

	case "not", "!":
		if err := arity(op, len(args), 1); err != nil {
			return nil, err
		}
		arg, err := c.compile(args[0])
		if err != nil {
			return nil, err
		}
		return notNode{arg: arg}, nil

	case "in":
		if err := arity(op, len(args), 2); err != nil {
			return nil, err
		}
		operands, err := c.list(args)
		if err != nil {
			return nil, err
		}
		return inNode{needle: operands[0], haystack: operands[1]}, nil

	case "anyPlayer", "allPlayers":
		return c.quantifier(op, args)

	case "lookup":
		if err := arity(op, len(args), 2); err != nil {
			return nil, err
		}
		operands, err := c.list(args)
		if err != nil {
			return nil, err
		}
		return lookupNode{coll: operands[0], index: operands[1]}, nil

	case "length":
		if err := arity(op, len(args), 1); err != nil {
			return nil, err
		}
		arg, err := c.compile(args[0])
		if err != nil {
			return nil, err
		}
		return lengthNode{arg: arg}, nil
	}

	return nil, &EvalError{Op: op, Err: ErrUnknownOperator}
}

func (c *compiler) variable(args []any) (node, error) {
	if err := arity("var", len(args), 1, 2); err != nil {
		return nil, err
	}
	raw, ok := args[0].(string)
	if !ok {
		return nil, &EvalError{Op: "var", Err: fmt.Errorf("path must be a string, got %T", args[0])}
	}
	p, err := statepath.Parse(raw)
	if err != nil {
		return nil, &EvalError{Op: "var", Path: raw, Err: err}
	}
	c.reads = append(c.reads, p)
	n := varNode{path: p}
	if len(args) == 2 {
		n.def, n.hasDef = args[1], true
	}
	return n, nil
}

func (c *compiler) quantifier(op string, args []any) (node, error) {
	if err := arity(op, len(args), 3); err != nil {
		return nil, err
	}
	field, ok := args[0].(string)
	if !ok {
		return nil, &EvalError{Op: op, Err: fmt.Errorf("field must be a string, got %T", args[0])}
	}
	rel, err := statepath.Parse(field)
	if err != nil {
		return nil, &EvalError{Op: op, Path: field, Err: err}
	}
	cmp, ok := args[1].(string)
	if !ok || !isComparison(cmp) {
		return nil, &EvalError{Op: op, Err: fmt.Errorf("%v is not a comparison operator", args[1])}
	}
	lit, err := c.compile(args[2])
	if err != nil {
		return nil, err
	}

	base := statepath.FromSegments(
		statepath.Segment{Kind: statepath.KindKey, Key: statepath.PlayersRoot},
		statepath.Segment{Kind: statepath.KindWildcard},
	)
	c.reads = append(c.reads, base.Join(rel))

	return quantifierNode{all: op == "allPlayers", op: op, field: rel, cmp: cmp, literal: lit}, nil
}

func isComparison(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}
