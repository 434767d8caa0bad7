package observe

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	studio "github.com/grp06/openclaw-studio"
	"github.com/grp06/openclaw-studio/batch"
	"github.com/grp06/openclaw-studio/frame"
	"github.com/grp06/openclaw-studio/internal/clock"
	"github.com/grp06/openclaw-studio/wire"
)

// Source is the part of *studio.Client a Store needs.
type Source interface {
	Status() studio.Status
	OnStatus(fn studio.StatusListener) (unsubscribe func())
	OnEvent(filter studio.EventFilter, handler studio.EventHandler) (unsubscribe func())
	SessionsList(ctx context.Context, params studio.SessionsListParams) (*studio.SessionsListResult, error)
}

// Default Store timings.
const (
	DefaultRefreshDelay = 2 * time.Second
	hydrateTimeout      = 15 * time.Second
)

// HydrateParams is the sessions.list request sent to discover sessions.
var HydrateParams = studio.SessionsListParams{IncludeGlobal: true, IncludeUnknown: true, Limit: 200}

// StoreConfig configures a Store. The zero value is usable.
type StoreConfig struct {
	Tick         time.Duration // batch tick, default batch.DefaultTick
	RefreshDelay time.Duration // presence-triggered refresh delay, default 2s
	Clock        clock.Clock
	Logger       *slog.Logger
}

// Store keeps a live State for one gateway connection. Events are mapped,
// de-duplicated and batched into one PushEntries per tick. Sessions are
// hydrated from sessions.list on every connect and refreshed after presence
// changes.
type Store struct {
	src    Source
	mapper *Mapper
	dedup  *frame.DedupWindow
	queue  *batch.Queue[Entry]
	clock  clock.Clock
	log    *slog.Logger
	delay  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	unsubs []func()

	// notify serializes reduce-and-notify so listeners see states in
	// reduction order. Listeners must not call Dispatch.
	notify sync.Mutex

	mu        sync.Mutex
	state     State
	listeners []*listener
	refresh   *clock.Timer
	closed    bool
}

type listener struct{ fn func(State) }

// NewStore subscribes to src. When src is already connected the sessions
// are hydrated right away. Call Close to detach.
func NewStore(src Source, cfg StoreConfig) *Store {
	c := clock.OrReal(cfg.Clock)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RefreshDelay <= 0 {
		cfg.RefreshDelay = DefaultRefreshDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		src:       src,
		mapper:    NewMapper(c),
		dedup:     frame.NewDedupWindow(c.Now),
		clock:     c,
		log:       logger.With("component", "observe"),
		delay:     cfg.RefreshDelay,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make([]*listener, 0),
	}
	s.queue = batch.NewQueue(c, cfg.Tick, func(entries []Entry) {
		s.Dispatch(PushEntries{Entries: entries})
	})

	if src != nil {
		s.unsubs = append(s.unsubs,
			src.OnEvent(nil, s.Ingest),
			src.OnStatus(s.onStatus),
		)
		if src.Status() == studio.StatusConnected {
			go s.Refresh(ctx)
		}
	}
	return s
}

// Ingest maps one frame and queues the resulting entry. Presence events
// schedule a session refresh.
func (s *Store) Ingest(f wire.EventFrame) {
	if f.Event == "presence" {
		s.scheduleRefresh()
		return
	}
	e := s.mapper.Map(f)
	if e == nil {
		return
	}
	if key := dedupKey(f); key != "" && s.dedup.IsDuplicate(key) {
		return
	}
	s.queue.Add(*e)
}

// dedupKey identifies an agent event by run and sequence. Gateways can
// resend agent events when a client resubscribes.
func dedupKey(f wire.EventFrame) string {
	if wire.Classify(f.Event) != wire.KindAgent {
		return ""
	}
	var ref struct {
		RunID  string `json:"runId"`
		Stream string `json:"stream"`
		Seq    int64  `json:"seq"`
	}
	if json.Unmarshal(f.Payload, &ref) != nil || ref.RunID == "" || ref.Seq <= 0 {
		return ""
	}
	return ref.RunID + ":" + ref.Stream + ":" + strconv.FormatInt(ref.Seq, 10)
}

// Dispatch applies a to the state and notifies listeners. Concurrent
// dispatches are delivered in the order they were reduced.
func (s *Store) Dispatch(a Action) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	next := Reduce(s.state, a)
	s.state = next
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(next.Clone())
	}
}

// TogglePause pauses or resumes the log. Events arriving while paused are
// dropped.
func (s *Store) TogglePause() { s.Dispatch(TogglePause{}) }

// ClearLog empties the log.
func (s *Store) ClearLog() { s.Dispatch(ClearLog{}) }

// Flush pushes queued entries without waiting for the next tick.
func (s *Store) Flush() { s.queue.Flush() }

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// OnChange registers fn to receive the state after every change, after
// listeners registered earlier.
func (s *Store) OnChange(fn func(State)) (unsubscribe func()) {
	l := &listener{fn: fn}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, x := range s.listeners {
			if x == l {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Refresh lists sessions and merges them into the state.
func (s *Store) Refresh(ctx context.Context) error {
	if s.src == nil {
		return studio.ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, hydrateTimeout)
	defer cancel()

	res, err := s.src.SessionsList(ctx, HydrateParams)
	if err != nil {
		s.log.Warn("failed to load sessions", "error", err)
		return err
	}
	sessions := make([]SessionStatus, 0, len(res.Sessions))
	for _, sum := range res.Sessions {
		sessions = append(sessions, SessionFromSummary(sum))
	}
	s.Dispatch(HydrateSessions{Sessions: sessions})
	return nil
}

// SessionFromSummary converts a sessions.list row into an idle status.
func SessionFromSummary(sum studio.SessionSummary) SessionStatus {
	agentID := sum.AgentID
	if agentID == "" {
		agentID = wire.AgentIDFromSessionKey(sum.Key)
	}
	label := ""
	if sum.Origin != nil {
		label = sum.Origin.Label
	}
	out := SessionStatus{
		SessionKey:  sum.Key,
		AgentID:     agentID,
		DisplayName: orDefault(sum.DisplayName, agentID),
		Origin:      InferOrigin(label, sum.Key),
		Status:      StatusIdle,
	}
	if sum.UpdatedAt > 0 {
		out.LastActivityAt = time.UnixMilli(sum.UpdatedAt)
	}
	return out
}

func (s *Store) onStatus(st studio.Status) {
	switch st {
	case studio.StatusConnected:
		// Status listeners run on the connecting goroutine; the call must
		// not block it.
		go s.Refresh(s.ctx)
	case studio.StatusDisconnected:
		s.mu.Lock()
		s.stopRefreshLocked()
		s.mu.Unlock()
	}
}

// scheduleRefresh coalesces presence bursts into one sessions.list per
// refresh delay.
func (s *Store) scheduleRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.refresh != nil || s.src == nil {
		return
	}
	s.refresh = s.clock.AfterFunc(s.delay, func() {
		s.mu.Lock()
		s.refresh = nil
		s.mu.Unlock()
		s.Refresh(s.ctx)
	})
}

func (s *Store) stopRefreshLocked() {
	if s.refresh != nil {
		s.refresh.Stop()
		s.refresh = nil
	}
}

// Close unsubscribes from the source and cancels pending work. Queued
// entries are dropped.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopRefreshLocked()
	s.mu.Unlock()

	for _, unsub := range s.unsubs {
		unsub()
	}
	s.queue.Stop()
	s.cancel()
}
