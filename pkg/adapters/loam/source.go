package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/ludus/internal/compiler"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/value"
)

// Source adapts a Loam repository to ports.ArtifactSource and
// ports.ArtifactSink. Each game version is one document whose id is
// "<gameId>/<version>"; the document body holds free-form design notes.
type Source struct {
	Repo   *loam.TypedRepository[ArtifactMetadata]
	parser *compiler.Parser
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[ArtifactMetadata]) *Source {
	return &Source{
		Repo:   repo,
		parser: compiler.NewParser(),
	}
}

// DocumentID is the Loam id of a game version.
func DocumentID(gameID, version string) string {
	return gameID + "/" + version
}

// Load reads and decodes one game version.
func (s *Source) Load(ctx context.Context, gameID, version string) (*domain.ArtifactSet, error) {
	doc, err := s.Repo.Get(ctx, DocumentID(gameID, version))
	if err != nil {
		return nil, fmt.Errorf("%w: %s@%s: %w", domain.ErrArtifactsNotFound, gameID, version, err)
	}
	return s.decode(doc.Data, gameID, version)
}

// Notes returns the document body of a game version.
func (s *Source) Notes(ctx context.Context, gameID, version string) (string, error) {
	doc, err := s.Repo.Get(ctx, DocumentID(gameID, version))
	if err != nil {
		return "", fmt.Errorf("%w: %s@%s: %w", domain.ErrArtifactsNotFound, gameID, version, err)
	}
	return strings.TrimSpace(doc.Content), nil
}

func (s *Source) decode(meta ArtifactMetadata, gameID, version string) (*domain.ArtifactSet, error) {
	// Strict repositories hand out json.Number; nested YAML may hold map[any]any.
	schema, _ := value.Normalize(meta.StateSchema).(map[string]any)
	graph, _ := value.Normalize(meta.Graph).(map[string]any)
	instructions, _ := value.Normalize(meta.Instructions).(map[string]any)
	if len(meta.StateSchema) == 0 {
		schema = nil
	}
	set, err := s.parser.DecodeParts(gameID, version, schema, graph, instructions)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", DocumentID(gameID, version), err)
	}
	return set, nil
}

// List returns every game version in the repository. Documents without a
// "<gameId>/<version>" id and no gameId front matter are skipped.
func (s *Source) List(ctx context.Context) ([]domain.Key, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[domain.Key]string)
	keys := make([]domain.Key, 0, len(docs))
	for _, doc := range docs {
		key, ok := keyOf(doc.ID, doc.Data)
		if !ok {
			continue
		}
		if existing, dup := seen[key]; dup {
			return nil, fmt.Errorf("collision detected: %s is defined in both '%s' and '%s'", key, existing, doc.ID)
		}
		seen[key] = doc.ID
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

func keyOf(docID string, meta ArtifactMetadata) (domain.Key, bool) {
	id := trimExtension(docID)
	game, version := path.Split(id)
	game = strings.TrimSuffix(game, "/")
	if game == "" {
		game, version = meta.GameID, meta.Version
	}
	if game == "" || version == "" {
		return domain.Key{}, false
	}
	return domain.Key{GameID: game, Version: version}, true
}

// Store writes a set as a document. The notes become the document body.
func (s *Source) Store(ctx context.Context, set *domain.ArtifactSet) error {
	return s.StoreWithNotes(ctx, set, "")
}

// StoreWithNotes writes a set together with design notes.
func (s *Source) StoreWithNotes(ctx context.Context, set *domain.ArtifactSet, notes string) error {
	meta := ArtifactMetadata{GameID: set.GameID, Version: set.Version}
	var err error
	if len(set.Schema.Game) > 0 || len(set.Schema.Player) > 0 {
		if meta.StateSchema, err = toMap(set.Schema); err != nil {
			return err
		}
	}
	if meta.Graph, err = toMap(set.Graph); err != nil {
		return err
	}
	if meta.Instructions, err = toMap(set.Instructions); err != nil {
		return err
	}

	err = s.Repo.Save(ctx, &loam.DocumentModel[ArtifactMetadata]{
		ID:      DocumentID(set.GameID, set.Version),
		Content: notes,
		Data:    meta,
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", DocumentID(set.GameID, set.Version), err)
	}
	return nil
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifacts: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to encode artifacts: %w", err)
	}
	return value.Normalize(out).(map[string]any), nil
}

// Watch reports the key of every artifact document that changes.
func (s *Source) Watch(ctx context.Context) (<-chan domain.Key, error) {
	events, err := s.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan domain.Key, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				key, ok := keyOf(evt.ID, ArtifactMetadata{})
				if !ok {
					continue
				}
				select {
				case ch <- key:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func trimExtension(id string) string {
	id = strings.ReplaceAll(id, "\\", "/")
	if ext := path.Ext(id); ext != "" && !strings.Contains(ext, "/") {
		// Versions such as "1.2" must survive; only strip known document extensions.
		switch ext {
		case ".md", ".json", ".yaml", ".yml":
			return strings.TrimSuffix(id, ext)
		}
	}
	return id
}
