package observe

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/grp06/openclaw-studio/internal/clock"
	"github.com/grp06/openclaw-studio/wire"
)

const (
	textLimit   = 200
	detailLimit = 300
)

// entryIDs is shared by every Mapper so ids never repeat within a process.
var entryIDs atomic.Uint64

func nextEntryID() uint64 { return entryIDs.Add(1) }

// Mapper turns gateway event frames into Entries. Only chat and agent
// events produce entries; chat deltas, empty assistant or reasoning
// updates and every other event kind map to nil.
type Mapper struct {
	clock clock.Clock
}

// NewMapper returns a Mapper stamping entries with c's time.
func NewMapper(c clock.Clock) *Mapper {
	return &Mapper{clock: clock.OrReal(c)}
}

// Map returns the entry for f, or nil when f is filtered out or its payload
// is not understood.
func (m *Mapper) Map(f wire.EventFrame) *Entry {
	now := m.clock.Now()
	switch wire.Classify(f.Event) {
	case wire.KindChat:
		ev, ok := wire.DecodeChat(f.Payload)
		if !ok {
			return nil
		}
		return mapChat(ev, now)
	case wire.KindAgent:
		ev, ok := wire.DecodeAgent(f.Payload)
		if !ok {
			return nil
		}
		return mapAgent(ev, now)
	}
	return nil
}

func mapChat(ev wire.ChatEvent, now time.Time) *Entry {
	if ev.State == wire.ChatDelta {
		return nil
	}
	text := wire.ExtractText(ev.Message)
	isError := ev.State == wire.ChatError || ev.State == wire.ChatAborted

	e := &Entry{
		ID:         nextEntryID(),
		Timestamp:  now,
		EventType:  EventChat,
		SessionKey: ev.SessionKey,
		AgentID:    wire.AgentIDFromSessionKey(ev.SessionKey),
		RunID:      ev.RunID,
		ChatState:  ev.State,
		Text:       wire.Truncate(text, textLimit),
		Severity:   SeverityInfo,
	}

	switch {
	case isError:
		e.Severity = SeverityError
		e.Description = orDefault(ev.ErrorMessage, "Session error")
		e.ErrorMessage = orDefault(ev.ErrorMessage, "Chat error")
	case ev.State == wire.ChatFinal:
		switch ev.Role() {
		case "assistant":
			e.Description = prefixed("Response: ", text, 120, "Response complete")
		case "user":
			e.Description = prefixed("Prompt: ", text, 120, "User message received")
		default:
			e.Description = "Message received"
		}
	default:
		e.Description = "Chat event"
	}
	return e
}

func mapAgent(ev wire.AgentEvent, now time.Time) *Entry {
	e := &Entry{
		ID:         nextEntryID(),
		Timestamp:  now,
		EventType:  EventAgent,
		SessionKey: ev.SessionKey,
		AgentID:    wire.AgentIDFromSessionKey(ev.SessionKey),
		RunID:      ev.RunID,
		Stream:     ev.Stream,
		Severity:   SeverityInfo,
	}

	switch ev.Stream {
	case wire.StreamLifecycle:
		phase, _ := ev.String("phase")
		e.Text = phase
		switch phase {
		case "start":
			e.Description = "Session started"
		case "end":
			e.Description = "Session ended"
		case "error":
			e.Severity = SeverityError
			msg, _ := ev.String("error")
			e.ErrorMessage = orDefault(msg, "Session error")
			e.Description = "Session error: " + wire.Truncate(e.ErrorMessage, 100)
		default:
			e.Description = "Lifecycle: " + orDefault(phase, "unknown")
		}

	case wire.StreamTool:
		e.ToolName, _ = ev.String("name")
		e.ToolPhase, _ = ev.String("phase")
		name := orDefault(e.ToolName, "tool")
		errText, hasErr := ev.String("error")
		isError := ev.Bool("isError") || hasErr
		if isError {
			e.Severity = SeverityError
			e.ErrorMessage = orDefault(errText, "Tool error")
		}
		if e.ToolPhase == ToolPhaseResult {
			e.Text = toolResult(ev.Data)
			e.Description = describeToolResult(name, e.Text, isError)
		} else {
			e.ToolArgs = toolArgs(ev.Data)
			e.Text = e.ToolArgs
			e.Description = describeToolCall(name, e.ToolArgs)
		}

	default:
		// assistant, reasoning and any stream added later carry text or
		// deltas; updates without either are noise.
		text, _ := ev.String("text")
		if text == "" {
			text, _ = ev.String("delta")
		}
		if text == "" {
			return nil
		}
		e.Text = wire.Truncate(text, textLimit)
		e.Description = "Thinking..."
		if ev.Stream == wire.StreamAssistant && e.Text != "" {
			e.Description = "Writing: " + wire.Truncate(e.Text, 100)
		}
	}
	return e
}

func toolArgs(data map[string]any) string {
	var raw any
	for _, key := range []string{"arguments", "args", "input", "parameters"} {
		if v, ok := data[key]; ok && v != nil {
			raw = v
			break
		}
	}
	switch v := raw.(type) {
	case string:
		return wire.Truncate(v, detailLimit)
	case map[string]any, []any:
		return marshalTruncated(v)
	}
	return ""
}

func toolResult(data map[string]any) string {
	switch r := data["result"].(type) {
	case string:
		return wire.Truncate(r, detailLimit)
	case map[string]any:
		if s, ok := r["content"].(string); ok {
			return wire.Truncate(s, detailLimit)
		}
		if s, ok := r["text"].(string); ok {
			return wire.Truncate(s, detailLimit)
		}
		if d, ok := r["details"].(map[string]any); ok {
			var parts []string
			if n, ok := d["exitCode"].(float64); ok {
				parts = append(parts, "exit "+formatNumber(n))
			}
			if n, ok := d["durationMs"].(float64); ok {
				parts = append(parts, formatNumber(n)+"ms")
			}
			if len(parts) > 0 {
				return strings.Join(parts, ", ")
			}
		}
		return marshalTruncated(r)
	case []any:
		return marshalTruncated(r)
	}
	return ""
}

func describeToolCall(name, args string) string {
	fallback := "Calling " + name
	if args == "" {
		return fallback
	}
	var parsed map[string]any
	if json.Unmarshal([]byte(args), &parsed) != nil {
		return fallback
	}
	str := func(key string) (string, bool) {
		s, ok := parsed[key].(string)
		return s, ok
	}

	switch name {
	case "read":
		if p, ok := str("file_path"); ok {
			return "Reading " + baseName(p)
		}
	case "write":
		if p, ok := str("file_path"); ok {
			return "Writing " + baseName(p)
		}
	case "exec":
		if cmd, ok := str("command"); ok {
			return "Running: " + wire.Truncate(cmd, 80)
		}
	case "browser":
		if action, ok := str("action"); ok {
			if url, _ := str("url"); url != "" {
				return "Browser: " + action + " - " + wire.Truncate(url, 60)
			}
			return "Browser: " + action
		}
	case "sessions_spawn":
		if id, ok := str("agentId"); ok {
			return "Spawning subagent: " + id
		}
	case "sessions_send":
		if id, ok := str("agentId"); ok {
			return "Sending message to " + id
		}
	}
	return fallback
}

func describeToolResult(name, result string, isError bool) string {
	if !isError {
		return name + " completed"
	}
	if result == "" {
		return name + " failed"
	}
	return name + " failed: " + wire.Truncate(result, 100)
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func marshalTruncated(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return wire.Truncate(string(b), detailLimit)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func prefixed(prefix, text string, max int, empty string) string {
	if t := wire.Truncate(text, max); t != "" {
		return prefix + t
	}
	return empty
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
