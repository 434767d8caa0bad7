// Package observe folds the gateway's chat and agent events into a live
// view of every session: what each agent is doing right now, plus a capped
// rolling log of everything that happened.
package observe

import "time"

// MaxEntries caps the rolling log. Oldest entries are evicted first.
const MaxEntries = 2000

// EventType is the gateway event an Entry was derived from.
type EventType string

const (
	EventChat  EventType = "chat"
	EventAgent EventType = "agent"
)

// Severity grades an Entry. Error entries count as interventions.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Tool phases reported on the tool stream.
const (
	ToolPhaseCall   = "call"
	ToolPhaseResult = "result"
)

// Entry is one normalized record derived from an event frame. Entries are
// never modified once created. Empty strings stand for absent values.
type Entry struct {
	ID           uint64    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	EventType    EventType `json:"eventType"`
	SessionKey   string    `json:"sessionKey,omitempty"`
	AgentID      string    `json:"agentId,omitempty"`
	RunID        string    `json:"runId,omitempty"`
	Stream       string    `json:"stream,omitempty"`
	ToolName     string    `json:"toolName,omitempty"`
	ToolPhase    string    `json:"toolPhase,omitempty"`
	ToolArgs     string    `json:"toolArgs,omitempty"`
	ChatState    string    `json:"chatState,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Text         string    `json:"text,omitempty"`
	Description  string    `json:"description"`
	Severity     Severity  `json:"severity"`
}

// Origin says what started a session.
type Origin string

const (
	OriginCron        Origin = "cron"
	OriginHeartbeat   Origin = "heartbeat"
	OriginInteractive Origin = "interactive"
	OriginUnknown     Origin = "unknown"
)

// RunStatus is the live state of a session.
type RunStatus string

const (
	StatusIdle    RunStatus = "idle"
	StatusRunning RunStatus = "running"
	StatusError   RunStatus = "error"
)

// SessionStatus is the live state of one session, keyed by SessionKey.
type SessionStatus struct {
	SessionKey      string    `json:"sessionKey"`
	AgentID         string    `json:"agentId,omitempty"`
	DisplayName     string    `json:"displayName,omitempty"`
	Origin          Origin    `json:"origin"`
	Status          RunStatus `json:"status"`
	LastActivityAt  time.Time `json:"lastActivityAt,omitzero"`
	CurrentToolName string    `json:"currentToolName,omitempty"`
	CurrentToolArgs string    `json:"currentToolArgs,omitempty"`
	CurrentActivity string    `json:"currentActivity,omitempty"`
	StreamingText   string    `json:"streamingText,omitempty"`
	LastError       string    `json:"lastError,omitempty"`
	EventCount      int       `json:"eventCount"`
}

// State is the whole observe view. It is only changed through Reduce.
type State struct {
	Entries           []Entry         `json:"entries"`
	Sessions          []SessionStatus `json:"sessions"`
	InterventionCount int             `json:"interventionCount"`
	Paused            bool            `json:"paused"`
}

// Session returns the status of key.
func (s State) Session(key string) (SessionStatus, bool) {
	for _, sess := range s.Sessions {
		if sess.SessionKey == key {
			return sess, true
		}
	}
	return SessionStatus{}, false
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	out := s
	out.Entries = append([]Entry(nil), s.Entries...)
	out.Sessions = append([]SessionStatus(nil), s.Sessions...)
	return out
}

// Action is an input to Reduce.
type Action interface{ observeAction() }

// PushEntries appends mapped entries to the log and folds them into the
// session statuses. It is dropped while the view is paused.
type PushEntries struct{ Entries []Entry }

// HydrateSessions merges a freshly listed set of sessions.
type HydrateSessions struct{ Sessions []SessionStatus }

// TogglePause flips State.Paused.
type TogglePause struct{}

// ClearLog empties the log. Session statuses are kept.
type ClearLog struct{}

func (PushEntries) observeAction()     {}
func (HydrateSessions) observeAction() {}
func (TogglePause) observeAction()     {}
func (ClearLog) observeAction()        {}
