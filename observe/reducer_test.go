package observe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(e Entry) Entry {
	e.ID = nextEntryID()
	if e.Timestamp.IsZero() {
		e.Timestamp = epoch
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	if e.EventType == "" {
		e.EventType = EventAgent
	}
	return e
}

func TestReduceLifecycleToolLifecycle(t *testing.T) {
	s := Reduce(State{}, PushEntries{Entries: []Entry{
		entry(Entry{Stream: "lifecycle", Text: "start", SessionKey: "k1"}),
		entry(Entry{Stream: "tool", ToolPhase: "call", ToolName: "read", SessionKey: "k1"}),
		entry(Entry{Stream: "lifecycle", Text: "end", SessionKey: "k1"}),
	}})

	sess, ok := s.Session("k1")
	require.True(t, ok)
	assert.Equal(t, StatusIdle, sess.Status)
	assert.Empty(t, sess.CurrentToolName)
	assert.Empty(t, sess.CurrentActivity)
	assert.Equal(t, 3, sess.EventCount)
	assert.Len(t, s.Entries, 3)
}

func TestReduceRunningSession(t *testing.T) {
	s := Reduce(State{}, PushEntries{Entries: []Entry{
		entry(Entry{Stream: "lifecycle", Text: "start", SessionKey: "agent:a:cron:nightly", AgentID: "a"}),
	}})
	sess, _ := s.Session("agent:a:cron:nightly")
	assert.Equal(t, StatusRunning, sess.Status)
	assert.Equal(t, "Starting...", sess.CurrentActivity)
	assert.Equal(t, OriginCron, sess.Origin)
	assert.Equal(t, "a", sess.DisplayName)

	s = Reduce(s, PushEntries{Entries: []Entry{
		entry(Entry{Stream: "tool", ToolPhase: "call", ToolName: "exec", ToolArgs: `{"command":"ls"}`, Description: "Running: ls", SessionKey: "agent:a:cron:nightly"}),
	}})
	sess, _ = s.Session("agent:a:cron:nightly")
	assert.Equal(t, "exec", sess.CurrentToolName)
	assert.Equal(t, `{"command":"ls"}`, sess.CurrentToolArgs)
	assert.Equal(t, "Running: ls", sess.CurrentActivity)

	s = Reduce(s, PushEntries{Entries: []Entry{
		entry(Entry{Stream: "tool", ToolPhase: "result", ToolName: "exec", Description: "exec completed", SessionKey: "agent:a:cron:nightly"}),
	}})
	sess, _ = s.Session("agent:a:cron:nightly")
	assert.Equal(t, "exec", sess.CurrentToolName, "tool name stays visible after its result")
	assert.Equal(t, "exec completed", sess.CurrentActivity)

	s = Reduce(s, PushEntries{Entries: []Entry{
		entry(Entry{Stream: "assistant", Text: "Here is", SessionKey: "agent:a:cron:nightly"}),
	}})
	sess, _ = s.Session("agent:a:cron:nightly")
	assert.Empty(t, sess.CurrentToolName)
	assert.Equal(t, "Writing response...", sess.CurrentActivity)
	assert.Equal(t, "Here is", sess.StreamingText)

	s = Reduce(s, PushEntries{Entries: []Entry{
		entry(Entry{EventType: EventChat, ChatState: "final", Description: "Response: Here is it", SessionKey: "agent:a:cron:nightly"}),
	}})
	sess, _ = s.Session("agent:a:cron:nightly")
	assert.Empty(t, sess.StreamingText)
	assert.Equal(t, "Response: Here is it", sess.CurrentActivity)
}

func TestReduceErrors(t *testing.T) {
	s := Reduce(State{}, PushEntries{Entries: []Entry{
		entry(Entry{Stream: "lifecycle", Text: "start", SessionKey: "k"}),
		entry(Entry{Stream: "tool", ToolPhase: "result", ToolName: "exec", Severity: SeverityError, ErrorMessage: "exit 1", SessionKey: "k"}),
		entry(Entry{Stream: "lifecycle", Text: "error", ErrorMessage: "model down", Description: "Session error: model down", Severity: SeverityError, SessionKey: "k"}),
		entry(Entry{EventType: EventChat, ChatState: "final", Description: "no session"}),
	}})

	sess, _ := s.Session("k")
	assert.Equal(t, StatusError, sess.Status)
	assert.Equal(t, "model down", sess.LastError)
	assert.Equal(t, "Session error: model down", sess.CurrentActivity)
	assert.Equal(t, 2, s.InterventionCount)
	assert.Len(t, s.Sessions, 1, "entries without a session key do not create sessions")

	s = Reduce(s, PushEntries{Entries: []Entry{entry(Entry{Stream: "lifecycle", Text: "start", SessionKey: "k"})}})
	sess, _ = s.Session("k")
	assert.Empty(t, sess.LastError)
}

func TestReducePausedDropsEntries(t *testing.T) {
	s := Reduce(State{}, PushEntries{Entries: []Entry{entry(Entry{Stream: "lifecycle", Text: "error", Severity: SeverityError, ErrorMessage: "x", SessionKey: "k"})}})
	s = Reduce(s, TogglePause{})
	require.True(t, s.Paused)

	next := Reduce(s, PushEntries{Entries: []Entry{
		entry(Entry{Stream: "lifecycle", Text: "start", SessionKey: "k"}),
		entry(Entry{Stream: "lifecycle", Text: "start", SessionKey: "other"}),
	}})
	assert.Equal(t, s.Entries, next.Entries)
	assert.Equal(t, s.Sessions, next.Sessions)
	assert.Equal(t, 1, next.InterventionCount)

	next = Reduce(next, TogglePause{})
	assert.False(t, next.Paused)
}

func TestReduceCapsLog(t *testing.T) {
	var s State
	for i := 0; i < 5; i++ {
		batch := make([]Entry, 700)
		for j := range batch {
			sev := SeverityInfo
			if j == 150 {
				sev = SeverityError
			}
			batch[j] = entry(Entry{Stream: "assistant", Text: "t", Severity: sev})
		}
		s = Reduce(s, PushEntries{Entries: batch})
		assert.LessOrEqual(t, len(s.Entries), MaxEntries)
	}
	require.Len(t, s.Entries, MaxEntries)
	for i := 1; i < len(s.Entries); i++ {
		require.Less(t, s.Entries[i-1].ID, s.Entries[i].ID)
	}
	// 3500 pushed and the first 1500 evicted. Batches 3, 4 and 5 keep
	// their error entry; batch 3's is now at index 50.
	assert.Equal(t, 3, s.InterventionCount)
	assert.Equal(t, SeverityError, s.Entries[50].Severity)
}

func TestReduceOversizedPush(t *testing.T) {
	s := Reduce(State{}, PushEntries{Entries: []Entry{entry(Entry{Text: "old"})}})
	big := make([]Entry, MaxEntries+10)
	for i := range big {
		big[i] = entry(Entry{})
	}
	s = Reduce(s, PushEntries{Entries: big})
	require.Len(t, s.Entries, MaxEntries)
	assert.Equal(t, big[10].ID, s.Entries[0].ID)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	base := Reduce(State{}, PushEntries{Entries: []Entry{entry(Entry{Stream: "lifecycle", Text: "start", SessionKey: "k"})}})
	snapshot := base.Clone()

	_ = Reduce(base, PushEntries{Entries: []Entry{entry(Entry{Stream: "lifecycle", Text: "end", SessionKey: "k"})}})
	_ = Reduce(base, HydrateSessions{Sessions: []SessionStatus{{SessionKey: "k", DisplayName: "Renamed"}}})

	assert.Equal(t, snapshot, base)
}

func TestReduceHydrateKeepsLiveFields(t *testing.T) {
	s := Reduce(State{}, PushEntries{Entries: []Entry{
		entry(Entry{Stream: "lifecycle", Text: "start", SessionKey: "k1", AgentID: "a"}),
		entry(Entry{Stream: "assistant", Text: "partial answer", SessionKey: "k1"}),
	}})

	s = Reduce(s, HydrateSessions{Sessions: []SessionStatus{
		{SessionKey: "k2", DisplayName: "Second", Origin: OriginHeartbeat, Status: StatusIdle},
		{SessionKey: "k1", DisplayName: "Alpha", Origin: OriginUnknown, Status: StatusIdle},
	}})

	require.Len(t, s.Sessions, 2)
	assert.Equal(t, "k1", s.Sessions[0].SessionKey, "existing sessions keep their position")
	assert.Equal(t, "k2", s.Sessions[1].SessionKey)

	k1 := s.Sessions[0]
	assert.Equal(t, "partial answer", k1.StreamingText)
	assert.Equal(t, StatusRunning, k1.Status)
	assert.Equal(t, "Writing response...", k1.CurrentActivity)
	assert.Equal(t, "Alpha", k1.DisplayName)
	assert.Equal(t, OriginInteractive, k1.Origin, "unknown origin does not overwrite")

	s = Reduce(s, HydrateSessions{Sessions: []SessionStatus{{SessionKey: "k1", Origin: OriginCron}}})
	assert.Equal(t, "Alpha", s.Sessions[0].DisplayName, "empty display name does not overwrite")
	assert.Equal(t, OriginCron, s.Sessions[0].Origin)
	assert.Len(t, s.Sessions, 2, "hydration never deletes")

	s = Reduce(s, PushEntries{Entries: []Entry{entry(Entry{Stream: "lifecycle", Text: "end", SessionKey: "k1"})}})
	assert.Empty(t, s.Sessions[0].StreamingText)
}

func TestReduceClearLog(t *testing.T) {
	s := Reduce(State{}, PushEntries{Entries: []Entry{entry(Entry{Severity: SeverityError, SessionKey: "k", ErrorMessage: "e"})}})
	s = Reduce(s, ClearLog{})
	assert.Empty(t, s.Entries)
	assert.Zero(t, s.InterventionCount)
	assert.Len(t, s.Sessions, 1)
}

type bogusAction struct{}

func (bogusAction) observeAction() {}

func TestReduceUnknownAction(t *testing.T) {
	s := Reduce(State{}, PushEntries{Entries: []Entry{entry(Entry{SessionKey: "k"})}})
	assert.Equal(t, s, Reduce(s, bogusAction{}))
	assert.Equal(t, s, Reduce(s, nil))
	assert.Equal(t, s, Reduce(s, (*PushEntries)(nil)))
	assert.Equal(t, s, Reduce(s, (*HydrateSessions)(nil)))
	assert.Equal(t, s, Reduce(s, (*TogglePause)(nil)))
	assert.Equal(t, s, Reduce(s, (*ClearLog)(nil)))
}

func TestInferOrigin(t *testing.T) {
	cases := []struct {
		label, key string
		want       Origin
	}{
		{"Cron: nightly", "", OriginCron},
		{"isolated run", "", OriginCron},
		{"heartbeat", "", OriginHeartbeat},
		{"main", "agent:a:cron:x", OriginInteractive},
		{"", "agent:a:cron:nightly", OriginCron},
		{"", "agent:a:heartbeat", OriginHeartbeat},
		{"telegram", "agent:a:main", OriginUnknown},
		{"", "", OriginUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, InferOrigin(tc.label, tc.key), "%q %q", tc.label, tc.key)
	}
}

func TestEntryTimestampsDriveLastActivity(t *testing.T) {
	at := epoch.Add(time.Minute)
	s := Reduce(State{}, PushEntries{Entries: []Entry{entry(Entry{SessionKey: "k", Timestamp: at})}})
	sess, _ := s.Session("k")
	assert.Equal(t, at, sess.LastActivityAt)
}
