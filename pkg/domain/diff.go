package domain

import (
	"reflect"
)

// SnapshotDiff represents the changes between two snapshots of a session.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	Phase  *string        `json:"phase,omitempty"`
	Status *SessionStatus `json:"status,omitempty"`

	// Game contains only changed, added or deleted game keys.
	// For deletions, the key is present with a nil value.
	Game map[string]any `json:"game,omitempty"`

	// Players maps player id to that player's changed keys, same convention
	// as Game. A removed player maps to nil.
	Players map[string]map[string]any `json:"players,omitempty"`

	WinningPlayers []string `json:"winning_players,omitempty"`
	Fault          *Fault   `json:"fault,omitempty"`
}

// Diff calculates the difference between two snapshots.
// If old is nil, it returns a diff representing the entire new snapshot.
// It returns nil when nothing changed.
func Diff(old, new *Snapshot) *SnapshotDiff {
	if new == nil {
		return nil
	}

	diff := &SnapshotDiff{SessionID: new.SessionID}

	var oldState, newState *GameState
	if old != nil {
		oldState = old.State
	}
	newState = new.State

	if newState != nil && (oldState == nil || oldState.Phase() != newState.Phase()) {
		phase := newState.Phase()
		diff.Phase = &phase
	}
	if old == nil || old.Status != new.Status {
		status := new.Status
		diff.Status = &status
	}

	var oldGame, newGame, oldPlayers, newPlayers map[string]any
	if oldState != nil {
		oldGame, oldPlayers = oldState.Game, oldState.Players
	}
	if newState != nil {
		newGame, newPlayers = newState.Game, newState.Players
	}

	diff.Game = diffMap(oldGame, newGame)
	diff.Players = diffPlayers(oldPlayers, newPlayers)

	if old == nil || !reflect.DeepEqual(old.WinningPlayers, new.WinningPlayers) {
		diff.WinningPlayers = new.WinningPlayers
	}
	if new.Fault != nil && (old == nil || old.Fault == nil) {
		diff.Fault = new.Fault
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffMap(old, new map[string]any) map[string]any {
	delta := make(map[string]any)

	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}
	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

func diffPlayers(old, new map[string]any) map[string]map[string]any {
	delta := make(map[string]map[string]any)

	for id, entry := range new {
		newEntry, _ := entry.(map[string]any)
		oldEntry, existed := old[id].(map[string]any)
		if !existed {
			// A brand new player is sent whole, even when empty.
			cp := make(map[string]any, len(newEntry))
			for k, v := range newEntry {
				cp[k] = v
			}
			delta[id] = cp
			continue
		}
		if d := diffMap(oldEntry, newEntry); d != nil {
			delta[id] = d
		}
	}
	for id := range old {
		if _, exists := new[id]; !exists {
			delta[id] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.Phase == nil &&
		d.Status == nil &&
		len(d.Game) == 0 &&
		len(d.Players) == 0 &&
		d.WinningPlayers == nil &&
		d.Fault == nil
}
