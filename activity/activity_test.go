package activity

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	studio "github.com/grp06/openclaw-studio"
	"github.com/grp06/openclaw-studio/internal/clock"
	"github.com/grp06/openclaw-studio/wire"
)

func frameOf(name string, payload any) wire.EventFrame {
	b, _ := json.Marshal(payload)
	return wire.EventFrame{Type: wire.TypeEvent, Event: name, Payload: b}
}

func newMapper() *Mapper {
	return NewMapper(clock.Fake(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestMapChatMessage(t *testing.T) {
	ev, ok := newMapper().Map(frameOf("chat.message", map[string]any{
		"message":    strings.Repeat("x", 200),
		"sessionKey": "agent:bot1:main",
	}))
	require.True(t, ok)
	assert.Equal(t, wire.KindChat, ev.Type)
	assert.Equal(t, "bot1", ev.AgentID)
	assert.LessOrEqual(t, len(ev.Summary), SummaryLimit)
	assert.True(t, strings.HasSuffix(ev.Summary, "..."))
	assert.Equal(t, "chat.message", ev.Event)
}

func TestMapSummaries(t *testing.T) {
	m := newMapper()

	ev, _ := m.Map(frameOf("chat.message", map[string]any{"message": "hello world", "sessionKey": "agent:bot1:main"}))
	assert.Equal(t, "hello world", ev.Summary)

	ev, _ = m.Map(frameOf("presence", map[string]any{"agentId": "bot2", "status": "online"}))
	assert.Equal(t, wire.KindPresence, ev.Type)
	assert.Equal(t, "bot2", ev.AgentID)
	assert.Equal(t, "online", ev.Summary)

	ev, _ = m.Map(frameOf("cron.run", map[string]any{}))
	assert.Equal(t, wire.KindCron, ev.Type)
	assert.Equal(t, "cron.run", ev.Summary)

	ev, _ = m.Map(frameOf("unknown.thing", map[string]any{}))
	assert.Equal(t, wire.KindSystem, ev.Type)
	assert.Empty(t, ev.AgentID)

	ev, ok := m.Map(wire.EventFrame{Event: "tick"})
	require.True(t, ok)
	assert.Equal(t, "tick", ev.Summary)
}

func TestMapSkipsStreamingDeltas(t *testing.T) {
	m := newMapper()

	_, ok := m.Map(frameOf("chat", map[string]any{"state": "delta", "sessionKey": "agent:a:main"}))
	assert.False(t, ok)
	_, ok = m.Map(frameOf("agent", map[string]any{"stream": "assistant", "data": map[string]any{"delta": "t"}}))
	assert.False(t, ok)
	_, ok = m.Map(frameOf("agent", map[string]any{"stream": "reasoning"}))
	assert.False(t, ok)

	_, ok = m.Map(frameOf("chat", map[string]any{"state": "final"}))
	assert.True(t, ok)
	_, ok = m.Map(frameOf("agent", map[string]any{"stream": "tool"}))
	assert.True(t, ok)
}

func TestMapIDsAreUnique(t *testing.T) {
	m := newMapper()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		ev, _ := m.Map(frameOf("test", map[string]any{}))
		require.False(t, seen[ev.ID], "duplicate id %s", ev.ID)
		seen[ev.ID] = true
	}
}

func TestFeedRingNewestFirst(t *testing.T) {
	f := NewFeed(FeedConfig{Capacity: 3})
	for i := 0; i < 5; i++ {
		f.Add(Event{ID: string(rune('a' + i))})
	}

	require.Equal(t, 3, f.Len())
	ids := []string{}
	for _, ev := range f.Events() {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{"e", "d", "c"}, ids)
}

func TestFeedDefaultCapacity(t *testing.T) {
	f := NewFeed(FeedConfig{})
	for i := 0; i < DefaultCapacity+20; i++ {
		f.Ingest(frameOf("system", map[string]any{}))
	}
	assert.Equal(t, DefaultCapacity, f.Len())
}

func TestFeedFiltersAndAgentIDs(t *testing.T) {
	f := NewFeed(FeedConfig{})
	f.Ingest(frameOf("chat", map[string]any{"state": "final", "sessionKey": "agent:zed:main"}))
	f.Ingest(frameOf("presence", map[string]any{"agentId": "amy", "status": "online"}))
	f.Ingest(frameOf("cron.run", map[string]any{"agentId": "amy"}))
	f.Ingest(frameOf("heartbeat", map[string]any{}))

	assert.Equal(t, []string{"amy", "zed"}, f.AgentIDs())

	amy := f.Filtered(Filter{AgentID: "amy"})
	require.Len(t, amy, 2)
	assert.Equal(t, wire.KindCron, amy[0].Type)

	typed := f.Filtered(Filter{Types: []wire.EventKind{wire.KindChat, wire.KindHeartbeat}})
	require.Len(t, typed, 2)
	assert.Equal(t, wire.KindHeartbeat, typed[0].Type)

	assert.Empty(t, f.Filtered(Filter{AgentID: "zed", Types: []wire.EventKind{wire.KindCron}}))

	f.Clear()
	assert.Zero(t, f.Len())
	assert.Empty(t, f.Events())
	assert.Equal(t, []string{"amy", "zed"}, f.AgentIDs())
}

type busStub struct{ handler studio.EventHandler }

func (b *busStub) OnEvent(_ studio.EventFilter, h studio.EventHandler) func() {
	b.handler = h
	return func() { b.handler = nil }
}

func TestFeedSubscribe(t *testing.T) {
	bus := &busStub{}
	f := NewFeed(FeedConfig{})
	unsubscribe := f.Subscribe(bus)
	require.NotNil(t, bus.handler)

	bus.handler(frameOf("presence", map[string]any{"agentId": "a"}))
	unsubscribe()
	assert.Nil(t, bus.handler)
	assert.Equal(t, 1, f.Len())
}

func TestFeedWatch(t *testing.T) {
	f := NewFeed(FeedConfig{})
	var got []string
	stop := f.Watch(func(ev Event) { got = append(got, ev.Event) })

	f.Ingest(frameOf("cron.added", map[string]any{}))
	stop()
	f.Ingest(frameOf("cron.removed", map[string]any{}))

	assert.Equal(t, []string{"cron.added"}, got)
	assert.Equal(t, 2, f.Len())
}

func TestFeedWatchersRunInRegistrationOrder(t *testing.T) {
	f := NewFeed(FeedConfig{})
	var order []int
	stops := make([]func(), 0, 10)
	for i := 0; i < 10; i++ {
		stops = append(stops, f.Watch(func(Event) { order = append(order, i) }))
	}
	stops[3]()
	stops[3]()

	f.Add(Event{Event: "cron.added"})
	assert.Equal(t, []int{0, 1, 2, 4, 5, 6, 7, 8, 9}, order)
}
