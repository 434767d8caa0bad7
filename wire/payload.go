package wire

import "encoding/json"

// Chat event states.
const (
	ChatDelta   = "delta"
	ChatFinal   = "final"
	ChatAborted = "aborted"
	ChatError   = "error"
)

// Agent event streams.
const (
	StreamLifecycle = "lifecycle"
	StreamTool      = "tool"
	StreamAssistant = "assistant"
	StreamReasoning = "reasoning"
)

// ChatEvent is the payload of a "chat" event.
type ChatEvent struct {
	RunID        string          `json:"runId,omitempty"`
	SessionKey   string          `json:"sessionKey,omitempty"`
	Seq          int64           `json:"seq,omitempty"`
	State        string          `json:"state,omitempty"`
	Message      json.RawMessage `json:"message,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// Role returns message.role, or "" when the message carries none.
func (e ChatEvent) Role() string {
	var m struct {
		Role string `json:"role"`
	}
	if json.Unmarshal(e.Message, &m) != nil {
		return ""
	}
	return m.Role
}

// AgentEvent is the payload of an "agent" event. Data is stream specific
// and probed with the accessors below.
type AgentEvent struct {
	RunID      string         `json:"runId,omitempty"`
	SessionKey string         `json:"sessionKey,omitempty"`
	Seq        int64          `json:"seq,omitempty"`
	Stream     string         `json:"stream,omitempty"`
	TS         int64          `json:"ts,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// String returns Data[key] when it is a string.
func (e AgentEvent) String(key string) (string, bool) {
	s, ok := e.Data[key].(string)
	return s, ok
}

// Bool returns Data[key] == true.
func (e AgentEvent) Bool(key string) bool {
	b, ok := e.Data[key].(bool)
	return ok && b
}

// DecodeChat decodes a chat payload. ok is false for a missing or
// malformed payload.
func DecodeChat(payload json.RawMessage) (ChatEvent, bool) {
	var ev ChatEvent
	if len(payload) == 0 || json.Unmarshal(payload, &ev) != nil {
		return ChatEvent{}, false
	}
	return ev, true
}

// DecodeAgent decodes an agent payload. ok is false for a missing or
// malformed payload.
func DecodeAgent(payload json.RawMessage) (AgentEvent, bool) {
	var ev AgentEvent
	if len(payload) == 0 || json.Unmarshal(payload, &ev) != nil {
		return AgentEvent{}, false
	}
	if ev.Data == nil {
		ev.Data = map[string]any{}
	}
	return ev, true
}

// Fields decodes a payload as a generic object. Non-object payloads yield
// nil.
func Fields(payload json.RawMessage) map[string]any {
	var m map[string]any
	if json.Unmarshal(payload, &m) != nil {
		return nil
	}
	return m
}
