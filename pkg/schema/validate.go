package schema

import (
	"fmt"
	"sort"
)

// Schema is a map of field names to their expected types.
type Schema map[string]Type

// Validate checks every field present in data against the schema. Fields
// absent from data are not reported: game state grows as phases run, so a
// missing field is a coverage concern, not a type error. Fields unknown to
// the schema are ignored.
func Validate(schema Schema, data map[string]any) error {
	return validateAt("", schema, data)
}

func validateAt(prefix string, schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		t, ok := schema[k]
		if !ok {
			continue
		}
		v := data[k]
		if v == nil {
			continue
		}
		if err := t.Validate(v); err != nil {
			errs = append(errs, &ValidationError{Key: prefix + k, Reason: err.Error(), Value: v})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// StateSchema validates a whole {game, players} state.
type StateSchema struct {
	Game   Schema
	Player Schema
}

// IsEmpty reports whether the schema declares no fields.
func (s StateSchema) IsEmpty() bool {
	return len(s.Game) == 0 && len(s.Player) == 0
}

// ValidateState checks the game object and every player entry. Keys in the
// returned errors are full state paths (game.round, players.u1.score).
func (s StateSchema) ValidateState(game map[string]any, players map[string]any) error {
	var errs []error

	if err := validateAt("game.", s.Game, game); err != nil {
		errs = append(errs, ValidationErrors(err)...)
	}

	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry, ok := players[id].(map[string]any)
		if !ok {
			errs = append(errs, &ValidationError{
				Key:    "players." + id,
				Reason: fmt.Sprintf("expected object, got %T", players[id]),
				Value:  players[id],
			})
			continue
		}
		if err := validateAt("players."+id+".", s.Player, entry); err != nil {
			errs = append(errs, ValidationErrors(err)...)
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
