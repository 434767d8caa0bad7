package observe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	studio "github.com/grp06/openclaw-studio"
	"github.com/grp06/openclaw-studio/batch"
	"github.com/grp06/openclaw-studio/internal/clock"
	"github.com/grp06/openclaw-studio/wire"
)

type fakeSource struct {
	mu       sync.Mutex
	status   studio.Status
	handlers []studio.EventHandler
	statuses []studio.StatusListener
	sessions []studio.SessionSummary
	lists    int
	listed   chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{status: studio.StatusDisconnected, listed: make(chan struct{}, 16)}
}

func (f *fakeSource) Status() studio.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSource) OnStatus(fn studio.StatusListener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, fn)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.statuses = nil
	}
}

func (f *fakeSource) OnEvent(_ studio.EventFilter, h studio.EventHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers = nil
	}
}

func (f *fakeSource) SessionsList(_ context.Context, p studio.SessionsListParams) (*studio.SessionsListResult, error) {
	f.mu.Lock()
	f.lists++
	out := &studio.SessionsListResult{Sessions: append([]studio.SessionSummary(nil), f.sessions...)}
	f.mu.Unlock()
	f.listed <- struct{}{}
	return out, nil
}

func (f *fakeSource) emit(ev wire.EventFrame) {
	f.mu.Lock()
	hs := append([]studio.EventHandler(nil), f.handlers...)
	f.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

func (f *fakeSource) setStatus(st studio.Status) {
	f.mu.Lock()
	f.status = st
	ls := append([]studio.StatusListener(nil), f.statuses...)
	f.mu.Unlock()
	for _, fn := range ls {
		fn(st)
	}
}

func (f *fakeSource) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func waitListed(t *testing.T, f *fakeSource) {
	t.Helper()
	select {
	case <-f.listed:
	case <-time.After(2 * time.Second):
		t.Fatal("sessions.list was not called")
	}
}

func TestStoreBatchesEntriesPerTick(t *testing.T) {
	src := newFakeSource()
	clk := clock.Fake(epoch)
	s := NewStore(src, StoreConfig{Clock: clk})
	defer s.Close()

	var changes int
	s.OnChange(func(State) { changes++ })

	src.emit(agentEvent("lifecycle", map[string]any{"phase": "start"}))
	src.emit(agentEvent("tool", map[string]any{"name": "read", "phase": "call", "args": map[string]any{"file_path": "/a/b.txt"}}))
	src.emit(event("heartbeat", map[string]any{}))
	assert.Empty(t, s.Snapshot().Entries, "nothing before the tick")

	clk.Advance(batch.DefaultTick)
	snap := s.Snapshot()
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, 1, changes)
	sess, ok := snap.Session("agent:bot1:main")
	require.True(t, ok)
	assert.Equal(t, "Reading b.txt", sess.CurrentActivity)
}

func TestStoreDropsReplayedAgentEvents(t *testing.T) {
	src := newFakeSource()
	clk := clock.Fake(epoch)
	s := NewStore(src, StoreConfig{Clock: clk})
	defer s.Close()

	frame := event("agent", map[string]any{
		"runId": "r1", "seq": 7, "stream": "assistant", "sessionKey": "agent:a:main",
		"data": map[string]any{"text": "hi"},
	})
	src.emit(frame)
	src.emit(frame)
	s.Flush()

	assert.Len(t, s.Snapshot().Entries, 1)
}

func TestStoreHydratesOnConnect(t *testing.T) {
	src := newFakeSource()
	src.sessions = []studio.SessionSummary{
		{Key: "agent:ops:cron:daily", DisplayName: "Daily report", UpdatedAt: epoch.UnixMilli()},
		{Key: "agent:main:main", Origin: &studio.SessionOrigin{Label: "heartbeat"}},
	}
	s := NewStore(src, StoreConfig{Clock: clock.Fake(epoch)})
	defer s.Close()

	src.setStatus(studio.StatusConnected)
	waitListed(t, src)

	require.Eventually(t, func() bool { return len(s.Snapshot().Sessions) == 2 }, time.Second, time.Millisecond)
	snap := s.Snapshot()
	assert.Equal(t, "Daily report", snap.Sessions[0].DisplayName)
	assert.Equal(t, OriginCron, snap.Sessions[0].Origin)
	assert.Equal(t, "ops", snap.Sessions[0].AgentID)
	assert.True(t, snap.Sessions[0].LastActivityAt.Equal(epoch))
	assert.Equal(t, "main", snap.Sessions[1].DisplayName)
	assert.Equal(t, OriginHeartbeat, snap.Sessions[1].Origin)
}

func TestStorePresenceRefreshIsThrottled(t *testing.T) {
	src := newFakeSource()
	clk := clock.Fake(epoch)
	s := NewStore(src, StoreConfig{Clock: clk})
	defer s.Close()

	for i := 0; i < 5; i++ {
		src.emit(event("presence", map[string]any{"n": i}))
	}
	assert.Equal(t, 1, clk.Pending())
	clk.Advance(time.Second)
	assert.Equal(t, 0, src.listCount())

	clk.Advance(time.Second)
	waitListed(t, src)
	assert.Equal(t, 1, src.listCount())

	src.emit(event("presence", map[string]any{}))
	src.setStatus(studio.StatusDisconnected)
	clk.Advance(5 * time.Second)
	assert.Equal(t, 1, src.listCount(), "disconnect cancels the pending refresh")
}

func TestStorePauseAndClose(t *testing.T) {
	src := newFakeSource()
	clk := clock.Fake(epoch)
	s := NewStore(src, StoreConfig{Clock: clk})

	s.TogglePause()
	src.emit(agentEvent("lifecycle", map[string]any{"phase": "start"}))
	s.Flush()
	assert.Empty(t, s.Snapshot().Entries)
	assert.True(t, s.Snapshot().Paused)

	s.TogglePause()
	src.emit(agentEvent("lifecycle", map[string]any{"phase": "start"}))
	s.Close()
	clk.Advance(time.Second)
	assert.Empty(t, s.Snapshot().Entries, "queued entries are dropped on close")
	assert.Nil(t, src.handlers)
}

func TestStoreWithoutSource(t *testing.T) {
	s := NewStore(nil, StoreConfig{Clock: clock.Fake(epoch)})
	defer s.Close()

	s.Ingest(agentEvent("lifecycle", map[string]any{"phase": "start"}))
	s.Ingest(event("presence", map[string]any{}))
	s.Flush()
	assert.Len(t, s.Snapshot().Entries, 1)
	assert.ErrorIs(t, s.Refresh(context.Background()), studio.ErrNotConnected)
}

func TestStoreConcurrentDispatchNotifiesInOrder(t *testing.T) {
	s := NewStore(nil, StoreConfig{Clock: clock.Fake(epoch)})
	defer s.Close()

	var (
		mu   sync.Mutex
		seen []int
	)
	s.OnChange(func(st State) {
		mu.Lock()
		seen = append(seen, len(st.Entries))
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				s.Dispatch(PushEntries{Entries: []Entry{entry(Entry{SessionKey: "k"})}})
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 160)
	for i, n := range seen {
		assert.Equal(t, i+1, n, "notification %d", i)
	}
	assert.Len(t, s.Snapshot().Entries, seen[len(seen)-1])
}
