package fetch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/radatool/radatool/ra"
)

// Manager owns the single worker slot that all fetch and generation work
// runs through. Starting a second fetch for a console that is already in
// flight is rejected; work for other consoles queues on the slot.
type Manager struct {
	client API
	store  Store
	logger zerolog.Logger

	// slot serializes fetch and artifact passes; progress reporting and
	// cache writes never interleave
	slot *semaphore.Weighted

	mu       sync.Mutex
	inFlight map[int]struct{}
}

// NewManager creates a fetch manager over one client and one cache store
func NewManager(client API, store Store, logger zerolog.Logger) *Manager {
	return &Manager{
		client:   client,
		store:    store,
		logger:   logger,
		slot:     semaphore.NewWeighted(1),
		inFlight: make(map[int]struct{}),
	}
}

// Task is a handle to one background fetch
type Task struct {
	ConsoleID int

	orch   *Orchestrator
	done   chan struct{}
	result *Result
	err    error
}

// Cancel requests a cooperative stop of the fetch; see Orchestrator.Cancel
func (t *Task) Cancel() {
	t.orch.Cancel()
}

// Wait blocks until the fetch finishes and returns its outcome
func (t *Task) Wait() (*Result, error) {
	<-t.done
	return t.result, t.err
}

// Start launches a fetch on a background goroutine. It returns
// ErrFetchInProgress when a fetch for the same console id is already
// running or queued; callers treat that as a no-op.
func (m *Manager) Start(ctx context.Context, consoleID int, opts Options, obs Observer) (*Task, error) {
	m.mu.Lock()
	if _, busy := m.inFlight[consoleID]; busy {
		m.mu.Unlock()
		return nil, ErrFetchInProgress
	}
	m.inFlight[consoleID] = struct{}{}
	m.mu.Unlock()

	task := &Task{
		ConsoleID: consoleID,
		orch:      NewOrchestrator(m.client, m.store, obs, opts, m.logger),
		done:      make(chan struct{}),
	}

	go func() {
		defer close(task.done)
		defer func() {
			m.mu.Lock()
			delete(m.inFlight, consoleID)
			m.mu.Unlock()
		}()

		if err := m.slot.Acquire(ctx, 1); err != nil {
			task.err = err
			return
		}
		defer m.slot.Release(1)

		task.result, task.err = task.orch.Run(ctx, consoleID)
	}()

	return task, nil
}

// Fetch runs a fetch synchronously through the worker slot
func (m *Manager) Fetch(ctx context.Context, consoleID int, opts Options, obs Observer) (*Result, error) {
	task, err := m.Start(ctx, consoleID, opts, obs)
	if err != nil {
		return nil, err
	}
	return task.Wait()
}

// Generate runs an artifact-generation pass through the same worker slot
// as fetches, so output files are never written while a fetch is mutating
// the cache directory.
func (m *Manager) Generate(ctx context.Context, fn func(context.Context) error) error {
	if err := m.slot.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.slot.Release(1)
	return fn(ctx)
}

// Cached returns the cached records for a console without touching the
// network.
func (m *Manager) Cached(consoleID int) ([]ra.TitleRecord, bool) {
	return m.store.Load(consoleID)
}
