// Package schema provides the small type system used to check game state
// against the state schema of an artifact set.
//
// Types are parsed from the names the generation pipeline writes
// ("string", "int", "[string]", "object", ...). A StateSchema pairs the
// game-object schema with the per-player schema:
//
//	game, _ := schema.ParseTypeMap(map[string]string{"round": "int"})
//	player, _ := schema.ParseTypeMap(map[string]string{"score": "int", "hand": "[string]"})
//	s := schema.StateSchema{Game: game, Player: player}
//
//	if err := s.ValidateState(state.Game, state.Players); err != nil {
//	    for _, e := range schema.ValidationErrors(err) {
//	        // e is a *ValidationError keyed by full path, e.g. players.u1.score
//	    }
//	}
//
// Only fields that are present are checked; absent fields are a coverage
// concern handled by the static validator.
package schema
