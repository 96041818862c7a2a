/*
Package ludus is a runtime for multi-player games whose rules are generated
as data: a state schema, a transition graph and the instructions that run
when players act or transitions fire.

An artifact set is validated before it is accepted. Validation checks the
graph for reachability, deadlocks and win conditions, and simulates a few
mock players through it. Sessions then execute the accepted sets
deterministically. Every submission to a session is applied in order through
a per-session queue, after which the automatic transitions fire until the
game waits for players again or ends.

# Concept

A game state has two halves: "game" for shared fields (including
currentPhase) and "players" keyed by player id. Player actions and automatic
transitions are small programs of state delta operations (set, increment,
append, delete, merge, transfer, setForAllPlayers, rng). Preconditions are
JSON-logic rules over the state, with allPlayers/anyPlayer quantifiers.
Aliases such as {{player1}} bind to the players in seat order.

# Architecture

The engine follows a hexagonal layout. The core (pkg/domain, pkg/artifact,
internal/runtime, pkg/session) talks to storage and artifact sources through
pkg/ports. Adapters cover memory, files, SQLite, Redis and Loam repositories.
An HTTP API and an MCP server expose the same session service.

Artifact sets can also be generated. Engine.Generator runs pkg/pipeline, a
small state machine that asks a planner for the phase graph and an executor
for the instructions, validates both, and retries with the issues it found.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/ludus"
	)

	func main() {
		ctx := context.Background()

		// In-memory source and store by default.
		eng, err := ludus.New()
		if err != nil {
			log.Fatal(err)
		}

		set, err := ludus.ParseArtifacts(gameYAML)
		if err != nil {
			log.Fatal(err)
		}
		// Publish validates the set; invalid sets are rejected.
		if _, err := eng.Publish(ctx, set); err != nil {
			log.Fatal(err)
		}

		sessions := eng.Sessions()
		if _, err := sessions.CreateSession(ctx, "table-1", set.GameID, set.Version); err != nil {
			log.Fatal(err)
		}
		if _, err := sessions.InitializeSession(ctx, "table-1", []string{"ann", "bob"}); err != nil {
			log.Fatal(err)
		}

		out, err := sessions.SubmitAction(ctx, "table-1", "ann", "submit-choice choice: 2")
		if err != nil {
			log.Fatal(err)
		}
		if out.Fault != nil {
			log.Println("rejected:", out.Fault.Message)
		}
	}
*/
package ludus
