package domain

import (
	"sort"
	"strconv"
	"time"

	"github.com/aretw0/ludus/pkg/value"
)

// GameState is the live {game, players} tree of one session.
type GameState struct {
	Game    map[string]any `json:"game"`
	Players map[string]any `json:"players"`
}

// NewGameState seeds a state in the init phase with an empty entry per player.
func NewGameState(playerIDs ...string) *GameState {
	s := &GameState{
		Game:    map[string]any{"currentPhase": PhaseInit},
		Players: make(map[string]any, len(playerIDs)),
	}
	for _, id := range playerIDs {
		s.Players[id] = map[string]any{}
	}
	return s
}

// Clone deep-copies the state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	return &GameState{
		Game:    value.CloneMap(s.Game),
		Players: value.CloneMap(s.Players),
	}
}

// Tree exposes the state as a single map sharing the underlying data.
func (s *GameState) Tree() map[string]any {
	if s.Game == nil {
		s.Game = map[string]any{}
	}
	if s.Players == nil {
		s.Players = map[string]any{}
	}
	return map[string]any{RootGame: s.Game, RootPlayers: s.Players}
}

// FromTree rebuilds a state from a tree produced by Tree (or decoded JSON).
func FromTree(tree map[string]any) *GameState {
	s := &GameState{}
	s.Game, _ = tree[RootGame].(map[string]any)
	s.Players, _ = tree[RootPlayers].(map[string]any)
	if s.Game == nil {
		s.Game = map[string]any{}
	}
	if s.Players == nil {
		s.Players = map[string]any{}
	}
	return s
}

// Phase returns game.currentPhase.
func (s *GameState) Phase() string {
	p, _ := s.Game["currentPhase"].(string)
	return p
}

// SetPhase writes game.currentPhase.
func (s *GameState) SetPhase(phase string) {
	if s.Game == nil {
		s.Game = map[string]any{}
	}
	s.Game["currentPhase"] = phase
}

// Ended reports whether game.gameEnded is true.
func (s *GameState) Ended() bool {
	ended, _ := s.Game["gameEnded"].(bool)
	return ended
}

// PlayerIDs returns the sorted runtime player ids.
func (s *GameState) PlayerIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Player returns the entry for a player id.
func (s *GameState) Player(id string) (map[string]any, bool) {
	p, ok := s.Players[id].(map[string]any)
	return p, ok
}

// PlayerFlag reads a boolean field of a player entry.
func (s *GameState) PlayerFlag(id, field string) bool {
	p, ok := s.Player(id)
	if !ok {
		return false
	}
	b, _ := p[field].(bool)
	return b
}

// Actionable returns the sorted ids of players with actionRequired == true.
func (s *GameState) Actionable() []string {
	var out []string
	for _, id := range s.PlayerIDs() {
		if s.PlayerFlag(id, PlayerActionRequired) {
			out = append(out, id)
		}
	}
	return out
}

// Winners returns the sorted ids of players with isGameWinner == true.
func (s *GameState) Winners() []string {
	var out []string
	for _, id := range s.PlayerIDs() {
		if s.PlayerFlag(id, PlayerIsGameWinner) {
			out = append(out, id)
		}
	}
	return out
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusUninitialized SessionStatus = "uninitialized"
	StatusActive        SessionStatus = "active"
	StatusEnded         SessionStatus = "ended"
)

// Snapshot is the persisted unit of a session.
type Snapshot struct {
	SessionID string        `json:"sessionId"`
	GameID    string        `json:"gameId"`
	Version   string        `json:"version"`
	Status    SessionStatus `json:"status"`
	State     *GameState    `json:"state,omitempty"`

	// Aliases maps symbolic aliases (player1, ...) to runtime player ids, in
	// the order players joined.
	Aliases map[string]string `json:"aliases,omitempty"`
	// WinningPlayers is derived from isGameWinner flags once the loop settles.
	WinningPlayers []string `json:"winningPlayers,omitempty"`
	// Fault is set when a fatal runtime fault ended the session.
	Fault *Fault `json:"fault,omitempty"`

	// Seq counts applied submissions, including initialization.
	Seq       int       `json:"seq"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSnapshot creates an uninitialized session bound to an artifact version.
func NewSnapshot(sessionID, gameID, version string) *Snapshot {
	return &Snapshot{
		SessionID: sessionID,
		GameID:    gameID,
		Version:   version,
		Status:    StatusUninitialized,
		UpdatedAt: time.Now().UTC(),
	}
}

// Key returns the artifact key the session runs against.
func (s *Snapshot) Key() Key { return Key{GameID: s.GameID, Version: s.Version} }

// Clone deep-copies the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	cp := *s
	cp.State = s.State.Clone()
	if s.Aliases != nil {
		cp.Aliases = make(map[string]string, len(s.Aliases))
		for k, v := range s.Aliases {
			cp.Aliases[k] = v
		}
	}
	cp.WinningPlayers = append([]string(nil), s.WinningPlayers...)
	if s.Fault != nil {
		f := *s.Fault
		cp.Fault = &f
	}
	return &cp
}

// AssignAliases maps player1, player2, ... to ids in the given order.
func AssignAliases(ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for i, id := range ids {
		out[Alias(i)] = id
	}
	return out
}

// Alias returns the symbolic alias of the i-th (zero-based) player.
func Alias(i int) string { return AliasPrefix + strconv.Itoa(i+1) }

// ResolvePlayer maps an alias or a raw id to a player id known to the snapshot.
func (s *Snapshot) ResolvePlayer(ref string) (string, bool) {
	if id, ok := s.Aliases[ref]; ok {
		return id, true
	}
	if s.State != nil {
		if _, ok := s.State.Players[ref]; ok {
			return ref, true
		}
	}
	return "", false
}

// AliasOf returns the alias of a player id.
func (s *Snapshot) AliasOf(id string) (string, bool) {
	for alias, pid := range s.Aliases {
		if pid == id {
			return alias, true
		}
	}
	return "", false
}
