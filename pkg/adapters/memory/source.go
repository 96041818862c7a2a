package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/ludus/pkg/domain"
)

// Source implements ports.ArtifactSource and ports.ArtifactSink with a map.
type Source struct {
	mu   sync.RWMutex
	sets map[domain.Key]*domain.ArtifactSet
}

// NewSource creates a Source preloaded with sets.
func NewSource(sets ...*domain.ArtifactSet) *Source {
	s := &Source{sets: make(map[domain.Key]*domain.ArtifactSet)}
	for _, set := range sets {
		s.sets[domain.Key{GameID: set.GameID, Version: set.Version}] = set
	}
	return s
}

// Load returns the set stored for gameID and version.
func (s *Source) Load(_ context.Context, gameID, version string) (*domain.ArtifactSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[domain.Key{GameID: gameID, Version: version}]
	if !ok {
		return nil, domain.ErrArtifactsNotFound
	}
	return set, nil
}

// List returns every key, sorted.
func (s *Source) List(context.Context) ([]domain.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]domain.Key, 0, len(s.sets))
	for k := range s.sets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// Store replaces any set with the same key.
func (s *Source) Store(_ context.Context, set *domain.ArtifactSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[domain.Key{GameID: set.GameID, Version: set.Version}] = set
	return nil
}
