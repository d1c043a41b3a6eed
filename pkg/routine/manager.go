package routine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/frankieli/raffle_engine/pkg/logger"
)

// Handler runs until ctx is cancelled or its work is done.
type Handler func(ctx context.Context) error

var (
	ErrEmptyName       = errors.New("routine: empty name")
	ErrNilHandler      = errors.New("routine: nil handler")
	ErrAlreadyRunning  = errors.New("routine: already running")
	ErrNotRunning      = errors.New("routine: not running")
	ErrManagerStopping = errors.New("routine: manager stopping")
)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager runs named background loops (keeper, provider consumers) and
// stops them on shutdown. Handler errors are logged, not propagated.
type Manager struct {
	base     context.Context
	mu       sync.Mutex
	tasks    map[string]*task
	stopping bool
}

func NewManager(ctx context.Context) *Manager {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Manager{base: ctx, tasks: make(map[string]*task)}
}

// Go starts handler under name. A name can be reused once its previous
// handler has returned.
func (m *Manager) Go(name string, handler Handler) error {
	if name == "" {
		return ErrEmptyName
	}
	if handler == nil {
		return ErrNilHandler
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return ErrManagerStopping
	}
	if _, ok := m.tasks[name]; ok {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(m.base)
	t := &task{cancel: cancel, done: make(chan struct{})}
	m.tasks[name] = t
	m.mu.Unlock()

	go m.run(ctx, name, t, handler)
	return nil
}

func (m *Manager) run(ctx context.Context, name string, t *task, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx).Str("routine", name).Interface("panic", r).Msg("routine panicked")
		}
		close(t.done)
		m.mu.Lock()
		if m.tasks[name] == t {
			delete(m.tasks, name)
		}
		m.mu.Unlock()
		logger.Debug(ctx).Str("routine", name).Msg("routine stopped")
	}()

	logger.Debug(ctx).Str("routine", name).Msg("routine started")
	if err := handler(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx).Err(err).Str("routine", name).Msg("routine failed")
	}
}

// Stop cancels one routine and waits for it to return.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	t, ok := m.tasks[name]
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	t.cancel()
	<-t.done
	return nil
}

// Running lists the names of live routines, sorted.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.tasks))
	for n := range m.tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Shutdown cancels every routine and waits until they return or ctx ends.
// No new routines are accepted afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.stopping = true
	pending := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		t.cancel()
		pending = append(pending, t)
	}
	m.mu.Unlock()

	for _, t := range pending {
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
