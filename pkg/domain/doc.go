/*
Package domain contains the core models of the ludus game engine.

It defines the artifact contract produced by the external generation
pipeline (phases, transitions, instructions and the state schema), the live
game state, the persisted session snapshot and the runtime fault taxonomy.
The package is kept pure and free of I/O, following Hexagonal Architecture
principles.

# Key Entities

  - Transition: a rule-gated edge between two phases.
  - Instructions: mutation programs attached to player actions and automatic transitions.
  - GameState: the {game, players} tree mutated by the runtime.
  - Snapshot: the persisted unit of a session (state, status, winners, fault).
  - Fault: a runtime failure (deadlock, invalid_state, rule_violation, transition_failed).
*/
package domain
