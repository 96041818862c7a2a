package ports

import (
	"context"

	"github.com/aretw0/ludus/pkg/domain"
)

// ArtifactSource loads accepted artifact sets.
// This allows the storage layer (Loam, files, memory) to be decoupled.
type ArtifactSource interface {
	// Load returns the artifact set for a game version.
	// Returns domain.ErrArtifactsNotFound if it does not exist.
	Load(ctx context.Context, gameID, version string) (*domain.ArtifactSet, error)

	// List returns the keys of every stored artifact set, for introspection.
	List(ctx context.Context) ([]domain.Key, error)
}

// ArtifactSink stores artifact sets once they pass validation.
type ArtifactSink interface {
	Store(ctx context.Context, set *domain.ArtifactSet) error
}
