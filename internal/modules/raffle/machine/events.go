package machine

import (
	"context"
	"sync"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
	"github.com/frankieli/raffle_engine/pkg/logger"
)

// EventHandler handles raffle events. Handlers run one at a time, in
// event order, on the dispatcher goroutine; a slow handler delays the
// ones after it but never the engine.
type EventHandler func(event domain.Event)

// eventQueue is unbounded so committing an event never blocks a mutator.
type eventQueue struct {
	mu     sync.Mutex
	items  []domain.Event
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev domain.Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []domain.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// RegisterEventHandler registers an event handler
func (sm *StateMachine) RegisterEventHandler(handler EventHandler) {
	sm.handlersMu.Lock()
	defer sm.handlersMu.Unlock()
	sm.handlers = append(sm.handlers, handler)
}

// emit must be called with sm.mu held so sequence numbers follow commit order.
func (sm *StateMachine) emit(ev domain.Event) {
	sm.seq++
	ev.Seq = sm.seq
	sm.queue.push(ev)
}

// Start delivers events to the registered handlers until ctx is done,
// then flushes whatever is still queued.
func (sm *StateMachine) Start(ctx context.Context) {
	logger.Info(ctx).Msg("raffle event dispatcher started")
	for {
		select {
		case <-ctx.Done():
			sm.dispatch(sm.queue.drain())
			logger.Info(ctx).Msg("raffle event dispatcher stopped")
			return
		case <-sm.queue.signal:
			sm.dispatch(sm.queue.drain())
		}
	}
}

func (sm *StateMachine) dispatch(events []domain.Event) {
	if len(events) == 0 {
		return
	}
	sm.handlersMu.RLock()
	handlers := make([]EventHandler, len(sm.handlers))
	copy(handlers, sm.handlers)
	sm.handlersMu.RUnlock()

	for _, ev := range events {
		for _, h := range handlers {
			sm.safeCall(h, ev)
		}
	}
}

func (sm *StateMachine) safeCall(h EventHandler, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorGlobal().
				Interface("panic", r).
				Uint64("seq", ev.Seq).
				Str("event", string(ev.Type)).
				Msg("raffle event handler panicked")
		}
	}()
	h(ev)
}
