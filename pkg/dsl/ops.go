package dsl

import "github.com/aretw0/ludus/pkg/domain"

// Var is the JSON-logic reference to a state path.
func Var(path string) map[string]any { return map[string]any{"var": path} }

// Rule builds a JSON-logic operation, e.g. Rule(">=", Var("game.x"), 3).
func Rule(op string, args ...any) map[string]any { return map[string]any{op: args} }

// AllPlayers builds the allPlayers quantifier over a player field.
func AllPlayers(field, op string, value any) map[string]any {
	return Rule("allPlayers", field, op, value)
}

func Set(path string, value any) domain.DeltaOp {
	return domain.DeltaOp{Op: domain.OpSet, Path: path, Value: value}
}

func Increment(path string, amount any) domain.DeltaOp {
	return domain.DeltaOp{Op: domain.OpIncrement, Path: path, Amount: amount}
}

func Append(path string, value any) domain.DeltaOp {
	return domain.DeltaOp{Op: domain.OpAppend, Path: path, Value: value}
}

func Delete(path string) domain.DeltaOp {
	return domain.DeltaOp{Op: domain.OpDelete, Path: path}
}

func Merge(path string, value map[string]any) domain.DeltaOp {
	return domain.DeltaOp{Op: domain.OpMerge, Path: path, Value: value}
}

// Transfer moves amount from one numeric path to another.
func Transfer(from, to string, amount any) domain.DeltaOp {
	return domain.DeltaOp{Op: domain.OpTransfer, From: from, To: to, Amount: amount}
}

// ForAll sets field on every player.
func ForAll(field string, value any) domain.DeltaOp {
	return domain.DeltaOp{Op: domain.OpSetForAllPlayers, Field: field, Value: value}
}

// RNG stores one of choices at path. Nil probabilities mean uniform.
func RNG(path string, choices []any, probabilities []float64) domain.DeltaOp {
	if probabilities == nil && len(choices) > 0 {
		probabilities = make([]float64, len(choices))
		for i := range probabilities {
			probabilities[i] = 1 / float64(len(choices))
		}
	}
	return domain.DeltaOp{Op: domain.OpRNG, Path: path, Choices: choices, Probabilities: probabilities}
}
