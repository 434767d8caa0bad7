package activity

import (
	"log/slog"
	"slices"
	"sync"

	studio "github.com/grp06/openclaw-studio"
	"github.com/grp06/openclaw-studio/internal/clock"
	"github.com/grp06/openclaw-studio/wire"
)

// DefaultCapacity is the number of events a Feed keeps.
const DefaultCapacity = 500

// FeedConfig configures a Feed. The zero value is usable.
type FeedConfig struct {
	Capacity int
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Filter selects feed events. Empty fields match everything.
type Filter struct {
	AgentID string
	Types   []wire.EventKind
}

// Match reports whether ev passes f.
func (f Filter) Match(ev Event) bool {
	if f.AgentID != "" && ev.AgentID != f.AgentID {
		return false
	}
	return len(f.Types) == 0 || slices.Contains(f.Types, ev.Type)
}

// Feed is a fixed-size ring of Events. When full, the oldest event is
// overwritten.
type Feed struct {
	mapper *Mapper
	log    *slog.Logger

	mu       sync.Mutex
	ring     []Event
	head     int // index of the next write
	size     int
	agents   map[string]struct{}
	watchers []*watcher
}

type watcher struct{ fn func(Event) }

// NewFeed returns an empty feed.
func NewFeed(cfg FeedConfig) *Feed {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		mapper: NewMapper(cfg.Clock),
		log:    logger.With("component", "activity"),
		ring:   make([]Event, cfg.Capacity),
		agents: make(map[string]struct{}),
	}
}

// Subscribe feeds every event of src into f until the returned func is
// called.
func (f *Feed) Subscribe(src interface {
	OnEvent(studio.EventFilter, studio.EventHandler) func()
}) (unsubscribe func()) {
	return src.OnEvent(nil, f.Ingest)
}

// Ingest maps and adds one frame. Frames the mapper filters out are
// ignored.
func (f *Feed) Ingest(fr wire.EventFrame) {
	if ev, ok := f.mapper.Map(fr); ok {
		f.Add(ev)
	}
}

// Add appends ev, evicting the oldest event when the feed is full.
func (f *Feed) Add(ev Event) {
	f.mu.Lock()
	f.ring[f.head] = ev
	f.head = (f.head + 1) % len(f.ring)
	if f.size < len(f.ring) {
		f.size++
	}
	if ev.AgentID != "" {
		f.agents[ev.AgentID] = struct{}{}
	}
	watchers := f.watchers
	f.mu.Unlock()

	for _, w := range watchers {
		w.fn(ev)
	}
}

// Events returns every retained event, newest first.
func (f *Feed) Events() []Event {
	return f.Filtered(Filter{})
}

// Filtered returns the retained events matching flt, newest first.
func (f *Feed) Filtered(flt Filter) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Event, 0, f.size)
	for i := 1; i <= f.size; i++ {
		ev := f.ring[(f.head-i+len(f.ring))%len(f.ring)]
		if flt.Match(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of retained events.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// AgentIDs returns every agent id seen since the feed was created, sorted.
// Ids outlive the events that introduced them.
func (f *Feed) AgentIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.agents))
	for id := range f.agents {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Watch calls fn for every event added from now on. Watchers run in
// registration order.
func (f *Feed) Watch(fn func(Event)) (unsubscribe func()) {
	w := &watcher{fn: fn}
	f.mu.Lock()
	f.watchers = append(f.watchers, w)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, x := range f.watchers {
			if x == w {
				f.watchers = append(f.watchers[:i:i], f.watchers[i+1:]...)
				return
			}
		}
	}
}

// Clear drops every retained event. Seen agent ids are kept.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.ring)
	f.head, f.size = 0, 0
	f.log.Debug("activity feed cleared")
}
