package studio

import (
	"log/slog"
	"sync"

	"github.com/grp06/openclaw-studio/wire"
)

// EventFilter selects the frames a handler receives. A nil filter accepts
// every frame.
type EventFilter func(wire.EventFrame) bool

// EventHandler receives event frames. It runs on the client's read
// goroutine and should not block.
type EventHandler func(wire.EventFrame)

// EventName returns a filter matching one exact event name.
func EventName(name string) EventFilter {
	return func(f wire.EventFrame) bool { return f.Event == name }
}

// EventKinds returns a filter matching the given classifications.
func EventKinds(kinds ...wire.EventKind) EventFilter {
	return func(f wire.EventFrame) bool {
		k := wire.Classify(f.Event)
		for _, want := range kinds {
			if k == want {
				return true
			}
		}
		return false
	}
}

type subscription struct {
	filter  EventFilter
	handler EventHandler
}

// eventBus multicasts frames to subscribers in registration order.
type eventBus struct {
	mu   sync.Mutex
	subs []*subscription
	log  *slog.Logger
}

func newEventBus(log *slog.Logger) *eventBus {
	return &eventBus{log: log}
}

func (b *eventBus) subscribe(filter EventFilter, handler EventHandler) func() {
	sub := &subscription{filter: filter, handler: handler}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s == sub {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// publish delivers f to a snapshot of the subscribers taken before the
// first handler runs.
func (b *eventBus) publish(f wire.EventFrame) {
	b.mu.Lock()
	snapshot := b.subs
	b.mu.Unlock()

	for _, sub := range snapshot {
		b.deliver(sub, f)
	}
}

func (b *eventBus) deliver(sub *subscription, f wire.EventFrame) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", "event", f.Event, "panic", r)
		}
	}()
	if sub.filter != nil && !sub.filter(f) {
		return
	}
	sub.handler(f.Clone())
}

func (b *eventBus) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
