package artifact

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/ludus/internal/logging"
	"github.com/aretw0/ludus/pkg/cache"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
	"golang.org/x/sync/singleflight"
)

// Acceptor decides whether a compiled set may be executed. The static
// validator is plugged in here.
type Acceptor func(*Compiled) error

// Registry resolves (gameId, version) to accepted compiled artifacts,
// caching them in a bounded cache shared by every session.
type Registry struct {
	source ports.ArtifactSource
	cache  *cache.Bounded[domain.Key, *Compiled]
	group  singleflight.Group
	accept Acceptor
	logger *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithCache injects the compiled-artifact cache.
func WithCache(c *cache.Bounded[domain.Key, *Compiled]) Option {
	return func(r *Registry) {
		r.cache = c
	}
}

// WithAcceptor sets the acceptance gate. Without one, only compile errors
// reject a set.
func WithAcceptor(fn Acceptor) Option {
	return func(r *Registry) {
		r.accept = fn
	}
}

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a Registry over an artifact source.
func NewRegistry(source ports.ArtifactSource, opts ...Option) *Registry {
	r := &Registry{
		source: source,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = cache.New[domain.Key, *Compiled](cache.DefaultCapacity)
	}
	if r.accept == nil {
		r.accept = func(c *Compiled) error { return c.Err() }
	}
	return r
}

// Get returns the compiled artifacts for key, loading, compiling and
// validating them on a cache miss. Concurrent misses for the same key share
// one load.
func (r *Registry) Get(ctx context.Context, key domain.Key) (*Compiled, error) {
	if c, ok := r.cache.Get(key); ok {
		return c, nil
	}

	v, err, shared := r.group.Do(key.String(), func() (any, error) {
		if c, ok := r.cache.Get(key); ok {
			return c, nil
		}
		set, err := r.source.Load(ctx, key.GameID, key.Version)
		if err != nil {
			return nil, fmt.Errorf("load artifacts %s: %w", key, err)
		}
		return r.admit(set)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.Debug("Artifact load shared", "game_id", key.GameID, "version", key.Version)
	}
	return v.(*Compiled), nil
}

// Put compiles, validates and caches a set that did not come from the
// source, storing it in sink when one is given.
func (r *Registry) Put(ctx context.Context, set *domain.ArtifactSet, sink ports.ArtifactSink) (*Compiled, error) {
	c, err := r.admit(set)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		if err := sink.Store(ctx, set); err != nil {
			r.cache.Remove(c.Key)
			return nil, fmt.Errorf("store artifacts %s: %w", c.Key, err)
		}
	}
	return c, nil
}

func (r *Registry) admit(set *domain.ArtifactSet) (*Compiled, error) {
	c := Compile(set)
	if err := r.accept(c); err != nil {
		r.logger.Warn("Artifacts rejected", "game_id", set.GameID, "version", set.Version, "err", err)
		return nil, err
	}
	for _, issue := range c.Issues {
		if issue.Severity == domain.SeverityWarning {
			r.logger.Warn("Artifact warning", "game_id", set.GameID, "version", set.Version, "issue", issue.String())
		}
	}
	r.cache.Add(c.Key, c)
	r.logger.Info("Artifacts accepted", "game_id", set.GameID, "version", set.Version, "hash", c.Hash[:12])
	return c, nil
}

// Len reports how many compiled sets are cached.
func (r *Registry) Len() int { return r.cache.Len() }

// Evict drops a cached set so the next Get reloads it from the source.
// Sessions already holding the old *Compiled keep running against it.
func (r *Registry) Evict(key domain.Key) {
	r.cache.Remove(key)
	r.logger.Debug("Artifacts evicted", "game_id", key.GameID, "version", key.Version)
}

// Keys lists the cached keys.
func (r *Registry) Keys() []domain.Key { return r.cache.Keys() }

// Source returns the artifact source.
func (r *Registry) Source() ports.ArtifactSource { return r.source }
