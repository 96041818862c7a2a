package ludus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/ludus/internal/compiler"
	"github.com/aretw0/ludus/internal/logging"
	"github.com/aretw0/ludus/internal/runtime"
	"github.com/aretw0/ludus/internal/validator"
	loamAdapter "github.com/aretw0/ludus/pkg/adapters/loam"
	"github.com/aretw0/ludus/pkg/adapters/memory"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/cache"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/graph"
	"github.com/aretw0/ludus/pkg/observability"
	"github.com/aretw0/ludus/pkg/pipeline"
	"github.com/aretw0/ludus/pkg/ports"
	"github.com/aretw0/ludus/pkg/session"
)

// Version is the release of the library and its binaries. Overridden at
// build time with -ldflags "-X github.com/aretw0/ludus.Version=...".
var Version = "0.1.0-dev"

// ErrReadOnlySource is returned by Publish when the source cannot store sets.
var ErrReadOnlySource = errors.New("artifact source is read-only")

// Engine is the high-level entry point for the Ludus library. It wires the
// artifact registry, the validator and the session manager around one state
// store and one artifact source.
type Engine struct {
	source    ports.ArtifactSource
	store     ports.StateStore
	locker    ports.DistributedLocker
	hooks     []domain.LifecycleHooks
	metrics   *observability.Metrics
	logger    *slog.Logger
	capacity  int
	lockTTL   time.Duration
	runtimeOp []runtime.EngineOption

	validator *validator.Validator
	registry  *artifact.Registry
	sessions  *session.Manager
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSource sets where artifact sets are read from. Defaults to an empty
// in-memory source.
func WithSource(src ports.ArtifactSource) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithStore sets the session store. Defaults to an in-memory store.
func WithStore(store ports.StateStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes sessions across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL bounds how long a crashed replica can hold a session lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls add up.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, hooks)
	}
}

// WithMetrics records engine and queue metrics into m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCacheCapacity bounds the compiled-artifact and graph caches.
func WithCacheCapacity(n int) Option {
	return func(e *Engine) {
		e.capacity = n
	}
}

// WithRuntimeOptions passes options through to the transition runtime
// (iteration cap, chooser, clock).
func WithRuntimeOptions(opts ...runtime.EngineOption) Option {
	return func(e *Engine) {
		e.runtimeOp = append(e.runtimeOp, opts...)
	}
}

// New initializes a new Ludus Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{capacity: cache.DefaultCapacity}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.source == nil {
		e.source = memory.NewSource()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", e.capacity)
	}

	hooks := e.hooks
	if e.metrics != nil {
		hooks = append(hooks, e.metrics.Hooks())
	}

	e.validator = validator.New(
		validator.WithLogger(e.logger),
		validator.WithGraphCache(graph.NewCache(e.capacity)),
	)
	e.registry = artifact.NewRegistry(e.source,
		artifact.WithCache(cache.New[domain.Key, *artifact.Compiled](e.capacity)),
		artifact.WithAcceptor(e.validator.Accept),
		artifact.WithLogger(e.logger),
	)

	rtOpts := append([]runtime.EngineOption{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(domain.Merge(hooks...)),
	}, e.runtimeOp...)

	mgrOpts := []session.Option{
		session.WithLogger(e.logger),
		session.WithEngine(runtime.NewEngine(rtOpts...)),
		session.WithLockTTL(e.lockTTL),
	}
	if e.locker != nil {
		mgrOpts = append(mgrOpts, session.WithLocker(e.locker))
	}
	if e.metrics != nil {
		mgrOpts = append(mgrOpts, session.WithQueueObserver(e.metrics.ObserveQueue))
	}
	e.sessions = session.NewManager(e.store, e.registry, mgrOpts...)
	return e, nil
}

// Sessions returns the session manager, the service every surface drives.
func (e *Engine) Sessions() *session.Manager { return e.sessions }

// Registry returns the compiled-artifact registry.
func (e *Engine) Registry() *artifact.Registry { return e.registry }

// Validator returns the static validator used as the registry's acceptance gate.
func (e *Engine) Validator() *validator.Validator { return e.validator }

// Source returns the artifact source.
func (e *Engine) Source() ports.ArtifactSource { return e.source }

// Store returns the session store.
func (e *Engine) Store() ports.StateStore { return e.store }

// Sink returns the source as an ArtifactSink when it accepts writes.
func (e *Engine) Sink() (ports.ArtifactSink, bool) {
	sink, ok := e.source.(ports.ArtifactSink)
	return sink, ok
}

// OpenRepository opens a Loam repository of artifact documents at path.
//
// Loam runs in strict mode so numbers keep their integer type. A read-only
// repository never writes, which keeps Loam out of its dev sandbox.
func OpenRepository(path string, readOnly bool) (*loamAdapter.Source, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(readOnly),
		loam.WithVersioning(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return loamAdapter.New(loam.NewTypedRepository[loamAdapter.ArtifactMetadata](repo)), nil
}

// ParseArtifacts decodes a YAML or JSON document holding a whole artifact set.
func ParseArtifacts(data []byte) (*domain.ArtifactSet, error) {
	return compiler.NewParser().Parse(data)
}

// Publish validates set and, when accepted, stores it in the engine's source
// and caches it. Warnings never block publication.
func (e *Engine) Publish(ctx context.Context, set *domain.ArtifactSet) (*artifact.Compiled, error) {
	sink, ok := e.Sink()
	if !ok {
		return nil, ErrReadOnlySource
	}
	return e.registry.Put(ctx, set, sink)
}

// publisher commits generated sets through Publish, so they land in the
// registry cache as well as in the source.
type publisher struct{ e *Engine }

func (p publisher) Store(ctx context.Context, set *domain.ArtifactSet) error {
	_, err := p.e.Publish(ctx, set)
	return err
}

// Generator returns a generation pipeline that validates with the engine's
// validator and publishes committed sets. With a read-only source the
// pipeline stops after validation and only returns the set.
func (e *Engine) Generator(planner pipeline.Planner, executor pipeline.Executor, opts ...pipeline.Option) *pipeline.Orchestrator {
	base := []pipeline.Option{
		pipeline.WithValidator(e.validator),
		pipeline.WithLogger(e.logger),
	}
	if _, ok := e.Sink(); ok {
		base = append(base, pipeline.WithSink(publisher{e}))
	}
	return pipeline.New(planner, executor, append(base, opts...)...)
}
