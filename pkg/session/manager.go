package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/ludus/internal/logging"
	"github.com/aretw0/ludus/internal/runtime"
	"github.com/aretw0/ludus/pkg/artifact"
	"github.com/aretw0/ludus/pkg/domain"
	"github.com/aretw0/ludus/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session.
const DefaultLockTTL = 30 * time.Second

// ErrInvalidAction wraps action text that could not be parsed.
var ErrInvalidAction = errors.New("invalid action")

type result struct {
	out *ports.Outcome
	err error
}

type job struct {
	ctx  context.Context
	run  func(context.Context) (*ports.Outcome, error)
	done chan result
}

// queueEntry is the FIFO of one session. refs counts queued and running
// jobs; the entry is dropped from the map when it reaches zero.
type queueEntry struct {
	jobs     []*job
	draining bool
	refs     int
}

// Ticket tracks one queued submission.
type Ticket struct {
	SessionID string
	// Position is the 1-based queue position at submission time.
	Position int
	done     chan result
}

// Wait blocks until the submission was processed or ctx is done. A done
// ctx does not withdraw the submission; it still runs in order.
func (t *Ticket) Wait(ctx context.Context) (*ports.Outcome, error) {
	select {
	case r := <-t.done:
		return r.out, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Manager runs sessions. Every mutation of a session goes through that
// session's queue, which processes one job at a time in submission order.
type Manager struct {
	store    ports.StateStore
	registry *artifact.Registry
	engine   *runtime.Engine

	mu     sync.Mutex
	queues map[string]*queueEntry
	wg     sync.WaitGroup

	locker  ports.DistributedLocker
	lockTTL time.Duration
	observe func(sessionID string, depth int)
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking around each job.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithEngine sets the runtime used to execute sessions.
func WithEngine(e *runtime.Engine) Option {
	return func(m *Manager) {
		m.engine = e
	}
}

// WithQueueObserver is called with the remaining depth each time a job
// leaves a session queue.
func WithQueueObserver(fn func(sessionID string, depth int)) Option {
	return func(m *Manager) {
		m.observe = fn
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager persisting to store and resolving artifacts
// through registry.
func NewManager(store ports.StateStore, registry *artifact.Registry, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		registry: registry,
		queues:   make(map[string]*queueEntry),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.engine == nil {
		m.engine = runtime.NewEngine(runtime.WithLogger(m.logger))
	}
	return m
}

var _ ports.SessionService = (*Manager)(nil)

// enqueue appends a job to the session queue and starts a drain goroutine
// if none is running.
func (m *Manager) enqueue(ctx context.Context, sessionID string, fn func(context.Context) (*ports.Outcome, error)) *Ticket {
	j := &job{ctx: ctx, run: fn, done: make(chan result, 1)}

	m.mu.Lock()
	entry, ok := m.queues[sessionID]
	if !ok {
		entry = &queueEntry{}
		m.queues[sessionID] = entry
	}
	entry.refs++
	entry.jobs = append(entry.jobs, j)
	pos := len(entry.jobs)
	start := !entry.draining
	if start {
		entry.draining = true
		m.wg.Add(1)
	}
	m.mu.Unlock()

	if start {
		go m.drain(sessionID, entry)
	}
	m.logger.Debug("Job queued", "session_id", sessionID, "position", pos)
	return &Ticket{SessionID: sessionID, Position: pos, done: j.done}
}

func (m *Manager) drain(sessionID string, entry *queueEntry) {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		if len(entry.jobs) == 0 {
			entry.draining = false
			m.mu.Unlock()
			return
		}
		j := entry.jobs[0]
		entry.jobs[0] = nil
		entry.jobs = entry.jobs[1:]
		depth := len(entry.jobs)
		m.mu.Unlock()

		if m.observe != nil {
			m.observe(sessionID, depth)
		}
		out, err := m.execute(sessionID, j)
		m.release(sessionID)
		j.done <- result{out: out, err: err}
	}
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.queues[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.queues, sessionID)
	}
}

// execute runs a job detached from its submitter's cancellation, so a
// queued submission is never withdrawn. Context values are kept.
func (m *Manager) execute(sessionID string, j *job) (*ports.Outcome, error) {
	ctx := context.WithoutCancel(j.ctx)

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}
	return j.run(ctx)
}

// Depth reports how many jobs are queued or running for a session.
func (m *Manager) Depth(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.queues[sessionID]; ok {
		return e.refs
	}
	return 0
}

// WithLock runs fn in the session queue, after every job submitted before it.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	_, err := m.enqueue(ctx, sessionID, func(ctx context.Context) (*ports.Outcome, error) {
		return nil, fn(ctx)
	}).Wait(ctx)
	return err
}

// Wait blocks until every session queue is empty or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateSession binds a new session to an accepted artifact version. An
// empty sessionID gets a random one.
func (m *Manager) CreateSession(ctx context.Context, sessionID, gameID, version string) (*domain.Snapshot, error) {
	key := domain.Key{GameID: gameID, Version: version}
	if _, err := m.registry.Get(ctx, key); err != nil {
		return nil, err
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var snap *domain.Snapshot
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, sessionID)
		if err == nil {
			return fmt.Errorf("%w: %s", domain.ErrSessionExists, sessionID)
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}
		snap = domain.NewSnapshot(sessionID, gameID, version)
		if err := m.store.Save(ctx, sessionID, snap); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("Session created", "session_id", sessionID, "game_id", gameID, "version", version)
	return snap, nil
}

// InitializeSession seeds the players and runs the fire loop from init.
func (m *Manager) InitializeSession(ctx context.Context, sessionID string, playerIDs []string) (*ports.Outcome, error) {
	return m.enqueue(ctx, sessionID, func(ctx context.Context) (*ports.Outcome, error) {
		snap, c, err := m.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		out, err := m.engine.Initialize(ctx, c, snap, playerIDs)
		if err != nil {
			return nil, err
		}
		return out, m.persist(ctx, out)
	}).Wait(ctx)
}

// Submit queues an already parsed action and returns without waiting.
func (m *Manager) Submit(ctx context.Context, sessionID, playerID string, action runtime.Action) *Ticket {
	return m.enqueue(ctx, sessionID, func(ctx context.Context) (*ports.Outcome, error) {
		snap, c, err := m.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		out, err := m.engine.ApplyAction(ctx, c, snap, playerID, action)
		if err != nil {
			return nil, err
		}
		return out, m.persist(ctx, out)
	})
}

// SubmitAction parses the action text, queues it and waits for its outcome.
// A rule violation is reported in Outcome.Fault with a nil error.
func (m *Manager) SubmitAction(ctx context.Context, sessionID, playerID, actionText string) (*ports.Outcome, error) {
	action, err := runtime.ParseAction(actionText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return m.Submit(ctx, sessionID, playerID, action).Wait(ctx)
}

// GetState returns the last persisted snapshot.
func (m *Manager) GetState(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	return m.store.Load(ctx, sessionID)
}

// DeleteSession removes a session once its queued jobs have run.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		if _, err := m.store.Load(ctx, sessionID); err != nil {
			return err
		}
		return m.store.Delete(ctx, sessionID)
	})
}

// ListSessions delegates to the store.
func (m *Manager) ListSessions(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// Registry returns the artifact registry.
func (m *Manager) Registry() *artifact.Registry {
	return m.registry
}

func (m *Manager) load(ctx context.Context, sessionID string) (*domain.Snapshot, *artifact.Compiled, error) {
	snap, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	c, err := m.registry.Get(ctx, snap.Key())
	if err != nil {
		return nil, nil, err
	}
	return snap, c, nil
}

// persist saves the outcome snapshot unless the submission was rejected.
func (m *Manager) persist(ctx context.Context, out *ports.Outcome) error {
	if out.Fault != nil && out.Fault.Recoverable() {
		return nil
	}
	if err := m.store.Save(ctx, out.Snapshot.SessionID, out.Snapshot); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
