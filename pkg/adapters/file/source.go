package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/ludus/internal/compiler"
	"github.com/aretw0/ludus/pkg/domain"
	"gopkg.in/yaml.v3"
)

var artifactExts = []string{".yaml", ".yml", ".json"}

// Source reads artifact sets laid out as <root>/<gameId>/<version>.yaml
// (or .yml, .json). It also implements ports.ArtifactSink.
type Source struct {
	Root   string
	parser *compiler.Parser
}

// NewSource creates a Source rooted at dir.
func NewSource(dir string) *Source {
	return &Source{Root: dir, parser: compiler.NewParser()}
}

// Load parses the artifact set of a game version.
func (s *Source) Load(ctx context.Context, gameID, version string) (*domain.ArtifactSet, error) {
	for _, ext := range artifactExts {
		path := filepath.Join(s.Root, gameID, version+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read artifacts %s: %w", path, err)
		}
		set, err := s.parser.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		// The layout is authoritative for the key.
		set.GameID, set.Version = gameID, version
		return set, nil
	}
	return nil, fmt.Errorf("%w: %s@%s", domain.ErrArtifactsNotFound, gameID, version)
}

// List walks the root and returns every game version found.
func (s *Source) List(ctx context.Context) ([]domain.Key, error) {
	games, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	var keys []domain.Key
	for _, g := range games {
		if !g.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.Root, g.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to list versions of %s: %w", g.Name(), err)
		}
		for _, f := range files {
			ext := filepath.Ext(f.Name())
			if f.IsDir() || !isArtifactExt(ext) {
				continue
			}
			keys = append(keys, domain.Key{GameID: g.Name(), Version: strings.TrimSuffix(f.Name(), ext)})
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// Store writes the set as YAML.
func (s *Source) Store(ctx context.Context, set *domain.ArtifactSet) error {
	dir := filepath.Join(s.Root, set.GameID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	data, err := yaml.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, set.Version+".yaml"), data, 0o644)
}

func isArtifactExt(ext string) bool {
	for _, e := range artifactExts {
		if e == ext {
			return true
		}
	}
	return false
}
