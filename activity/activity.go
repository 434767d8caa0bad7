// Package activity keeps a capped, newest-first feed of every gateway
// event with a one-line summary, filterable by agent and event kind.
package activity

import (
	"encoding/json"
	"time"

	"github.com/grp06/openclaw-studio/frame"
	"github.com/grp06/openclaw-studio/internal/clock"
	"github.com/grp06/openclaw-studio/wire"
)

// SummaryLimit bounds Event.Summary, ellipsis included.
const SummaryLimit = 120

// Event is one feed row.
type Event struct {
	ID        string          `json:"id"`
	Type      wire.EventKind  `json:"type"`
	Event     string          `json:"event"`
	AgentID   string          `json:"agentId,omitempty"`
	Summary   string          `json:"summary"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Mapper converts frames to Events. Ids are ULIDs, so they sort by arrival.
type Mapper struct {
	clock clock.Clock
	ids   *frame.ULIDGen
}

// NewMapper returns a Mapper reading time from c.
func NewMapper(c clock.Clock) *Mapper {
	c = clock.OrReal(c)
	return &Mapper{clock: c, ids: frame.NewULIDGen(c.Now)}
}

// Map returns the Event for f. ok is false for token streaming noise:
// chat deltas and assistant or reasoning stream updates.
func (m *Mapper) Map(f wire.EventFrame) (ev Event, ok bool) {
	kind := wire.Classify(f.Event)
	fields := wire.Fields(f.Payload)
	if isStreamingDelta(kind, fields) {
		return Event{}, false
	}
	return Event{
		ID:        m.ids.Next().String(),
		Type:      kind,
		Event:     f.Event,
		AgentID:   agentID(fields),
		Summary:   summarize(f.Event, fields),
		Timestamp: m.clock.Now(),
		Payload:   f.Payload,
	}, true
}

func isStreamingDelta(kind wire.EventKind, fields map[string]any) bool {
	switch kind {
	case wire.KindChat:
		return fields["state"] == wire.ChatDelta
	case wire.KindAgent:
		stream, _ := fields["stream"].(string)
		return stream == wire.StreamAssistant || stream == wire.StreamReasoning
	}
	return false
}

func agentID(fields map[string]any) string {
	if id, ok := fields["agentId"].(string); ok && id != "" {
		return id
	}
	if key, ok := fields["sessionKey"].(string); ok {
		return wire.AgentIDFromSessionKey(key)
	}
	return ""
}

func summarize(event string, fields map[string]any) string {
	if msg, ok := fields["message"].(string); ok && msg != "" {
		return wire.Clip(msg, SummaryLimit)
	}
	if status, ok := fields["status"].(string); ok && status != "" {
		return status
	}
	return event
}
