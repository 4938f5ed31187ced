// Package task runs long operations as named, cancellable background
// units and tracks them for the lifetime of the process.
package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Operation is a unit of work run by the Manager. Cancellation is
// cooperative: the operation is expected to observe ctx at its
// suspension points and return ctx.Err() when it fires.
type Operation func(ctx context.Context) error

type taskEntry struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager tracks running background tasks. The registry is the only
// shared mutable structure and is always accessed under the mutex.
type Manager struct {
	mu     sync.Mutex
	tasks  map[string]*taskEntry
	logger zerolog.Logger
}

// NewManager creates an empty task manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		tasks:  make(map[string]*taskEntry),
		logger: logger,
	}
}

// Start launches the operation in its own goroutine and returns a
// fresh task id immediately. The registry entry is removed exactly
// once when the operation finishes, whether it completed, was
// cancelled, returned an error, or panicked.
func (m *Manager) Start(name string, op Operation) string {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	entry := &taskEntry{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.tasks[id] = entry
	m.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error().Interface("panic", r).Str("task", name).Msg("Task panicked")
			}
			cancel()
			m.remove(id)
			close(entry.done)
		}()

		err := op(ctx)
		switch {
		case err == nil:
			m.logger.Debug().Str("task", name).Msg("Task completed")
		case errors.Is(err, context.Canceled):
			m.logger.Info().Str("task", name).Msg("Task cancelled")
		default:
			m.logger.Error().Err(err).Str("task", name).Msg("Task failed")
		}
	}()

	return id
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
}

// Cancel requests cancellation of a task. Returns true if the task was
// found and the cancel signal sent.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.tasks[id]; ok {
		entry.cancel()
		return true
	}
	return false
}

// CancelAll requests cancellation of every running task.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.tasks {
		entry.cancel()
	}
}

// Running returns a name to task id mapping of the live tasks.
func (m *Manager) Running() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	running := make(map[string]string, len(m.tasks))
	for id, entry := range m.tasks {
		running[entry.name] = id
	}
	return running
}

// JoinAll waits for every tracked task to finish, bounded by the given
// timeout per task. Tasks exceeding the timeout are not cancelled; the
// wait simply moves on.
func (m *Manager) JoinAll(timeout time.Duration) {
	m.mu.Lock()
	entries := make([]*taskEntry, 0, len(m.tasks))
	for _, entry := range m.tasks {
		entries = append(entries, entry)
	}
	m.mu.Unlock()

	for _, entry := range entries {
		timer := time.NewTimer(timeout)
		select {
		case <-entry.done:
		case <-timer.C:
			m.logger.Warn().Str("task", entry.name).Msg("Timed out waiting for task to finish")
		}
		timer.Stop()
	}
}
