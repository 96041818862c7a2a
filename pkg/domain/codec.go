package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aretw0/ludus/pkg/value"
)

// MarshalSnapshot encodes a snapshot for JSON-backed stores.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot decodes a snapshot written by MarshalSnapshot. Integral
// numbers in the state come back as int rather than float64.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if s.State != nil {
		s.State.Game, _ = value.Normalize(s.State.Game).(map[string]any)
		s.State.Players, _ = value.Normalize(s.State.Players).(map[string]any)
	}
	return &s, nil
}
