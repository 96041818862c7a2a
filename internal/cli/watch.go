package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
)

// WatchArtifacts evicts changed artifact sets from the registry until ctx
// is done, so the next job of every session compiles the new documents.
// It returns immediately when the source cannot be watched.
func WatchArtifacts(ctx context.Context, watch func(context.Context) (<-chan domain.Key, error), registry *artifact.Registry, w io.Writer, logger *slog.Logger) {
	if watch == nil {
		return
	}
	ch, err := watch(ctx)
	if err != nil {
		logger.Warn("Artifact watch unavailable", "err", err)
		return
	}
	logger.Info("Watching artifacts")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case key, ok := <-ch:
				if !ok {
					return
				}
				registry.Evict(key)
				logger.Info("Artifacts changed, evicted", "game_id", key.GameID, "version", key.Version)
				if w != nil {
					printSystemMessage(w, "Change detected in '%s'.", key)
				}
			}
		}
	}()
}
