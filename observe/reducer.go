package observe

import (
	"strings"

	"github.com/grp06/openclaw-studio/wire"
)

// Reduce returns the state that results from applying a to s. It never
// modifies s and returns s unchanged for actions it does not know.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case PushEntries:
		return pushEntries(s, a.Entries)
	case *PushEntries:
		if a == nil {
			return s
		}
		return pushEntries(s, a.Entries)
	case HydrateSessions:
		return hydrateSessions(s, a.Sessions)
	case *HydrateSessions:
		if a == nil {
			return s
		}
		return hydrateSessions(s, a.Sessions)
	case TogglePause:
		return togglePause(s)
	case *TogglePause:
		if a == nil {
			return s
		}
		return togglePause(s)
	case ClearLog:
		return clearLog(s)
	case *ClearLog:
		if a == nil {
			return s
		}
		return clearLog(s)
	}
	return s
}

func togglePause(s State) State {
	s.Paused = !s.Paused
	return s
}

func clearLog(s State) State {
	s.Entries = nil
	s.InterventionCount = 0
	return s
}

func pushEntries(s State, entries []Entry) State {
	if s.Paused || len(entries) == 0 {
		return s
	}

	total := len(s.Entries) + len(entries)
	merged := make([]Entry, 0, min(total, MaxEntries))
	if drop := total - MaxEntries; drop > 0 {
		if drop < len(s.Entries) {
			merged = append(merged, s.Entries[drop:]...)
			merged = append(merged, entries...)
		} else {
			merged = append(merged, entries[drop-len(s.Entries):]...)
		}
	} else {
		merged = append(merged, s.Entries...)
		merged = append(merged, entries...)
	}

	s.Entries = merged
	s.Sessions = foldSessions(s.Sessions, entries)
	s.InterventionCount = countInterventions(merged)
	return s
}

// foldSessions applies entries to a copy of sessions. New sessions are
// appended in the order their first entry arrives.
func foldSessions(sessions []SessionStatus, entries []Entry) []SessionStatus {
	out := append([]SessionStatus(nil), sessions...)
	index := make(map[string]int, len(out))
	for i, sess := range out {
		index[sess.SessionKey] = i
	}

	for _, e := range entries {
		if e.SessionKey == "" {
			continue
		}
		i, ok := index[e.SessionKey]
		if !ok {
			out = append(out, SessionStatus{
				SessionKey:  e.SessionKey,
				AgentID:     e.AgentID,
				DisplayName: e.AgentID,
				Origin:      originFromKey(e.SessionKey),
				Status:      StatusIdle,
			})
			i = len(out) - 1
			index[e.SessionKey] = i
		}
		applyEntry(&out[i], e)
	}
	return out
}

func applyEntry(sess *SessionStatus, e Entry) {
	sess.EventCount++
	sess.LastActivityAt = e.Timestamp

	switch {
	case e.Stream == wire.StreamLifecycle:
		switch e.Text {
		case "start":
			sess.Status = StatusRunning
			sess.CurrentToolName = ""
			sess.CurrentToolArgs = ""
			sess.CurrentActivity = "Starting..."
			sess.StreamingText = ""
			sess.LastError = ""
		case "end":
			sess.Status = StatusIdle
			sess.CurrentToolName = ""
			sess.CurrentToolArgs = ""
			sess.CurrentActivity = ""
			sess.StreamingText = ""
		case "error":
			sess.Status = StatusError
			sess.LastError = e.ErrorMessage
			sess.CurrentToolName = ""
			sess.CurrentToolArgs = ""
			sess.CurrentActivity = e.Description
		}

	case e.Stream == wire.StreamTool:
		sess.CurrentActivity = e.Description
		if e.ToolPhase != ToolPhaseResult {
			sess.CurrentToolName = e.ToolName
			sess.CurrentToolArgs = e.ToolArgs
			sess.StreamingText = ""
		}

	case e.Stream == wire.StreamAssistant:
		sess.CurrentToolName = ""
		sess.CurrentActivity = "Writing response..."
		if e.Text != "" {
			sess.StreamingText = e.Text
		}

	case e.EventType == EventChat:
		if e.ChatState == wire.ChatFinal {
			sess.CurrentActivity = e.Description
			sess.StreamingText = ""
		}
	}

	if e.Severity == SeverityError && e.ErrorMessage != "" {
		sess.LastError = e.ErrorMessage
	}
}

func hydrateSessions(s State, incoming []SessionStatus) State {
	out := append([]SessionStatus(nil), s.Sessions...)
	index := make(map[string]int, len(out))
	for i, sess := range out {
		index[sess.SessionKey] = i
	}

	for _, in := range incoming {
		if in.SessionKey == "" {
			continue
		}
		i, ok := index[in.SessionKey]
		if !ok {
			if in.Origin == "" {
				in.Origin = OriginUnknown
			}
			if in.Status == "" {
				in.Status = StatusIdle
			}
			out = append(out, in)
			index[in.SessionKey] = len(out) - 1
			continue
		}
		if in.DisplayName != "" {
			out[i].DisplayName = in.DisplayName
		}
		if in.Origin != "" && in.Origin != OriginUnknown {
			out[i].Origin = in.Origin
		}
	}
	s.Sessions = out
	return s
}

func countInterventions(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Severity == SeverityError {
			n++
		}
	}
	return n
}

// InferOrigin guesses what started a session from its origin label, falling
// back to markers in the session key.
func InferOrigin(label, key string) Origin {
	if label != "" {
		l := strings.ToLower(label)
		switch {
		case strings.Contains(l, "cron"), strings.Contains(l, "isolated"):
			return OriginCron
		case strings.Contains(l, "heartbeat"):
			return OriginHeartbeat
		case strings.Contains(l, "interactive"), strings.Contains(l, "main"):
			return OriginInteractive
		}
	}
	if key != "" {
		k := strings.ToLower(key)
		switch {
		case strings.Contains(k, "cron:"), strings.Contains(k, "isolated"):
			return OriginCron
		case strings.Contains(k, "heartbeat"):
			return OriginHeartbeat
		}
	}
	return OriginUnknown
}

// originFromKey is used for sessions first seen through an event. They are
// interactive unless the key says otherwise.
func originFromKey(key string) Origin {
	if o := InferOrigin("", key); o != OriginUnknown {
		return o
	}
	return OriginInteractive
}
