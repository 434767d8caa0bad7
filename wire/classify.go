package wire

import (
	"regexp"
	"strings"
)

// EventKind groups gateway events by namespace.
type EventKind string

const (
	KindChat      EventKind = "chat"
	KindAgent     EventKind = "agent"
	KindPresence  EventKind = "presence"
	KindHeartbeat EventKind = "heartbeat"
	KindCron      EventKind = "cron"
	KindSystem    EventKind = "system"
)

// Kinds lists every EventKind in display order.
var Kinds = []EventKind{KindChat, KindAgent, KindPresence, KindHeartbeat, KindCron, KindSystem}

// Classify maps an event name to its kind using the namespace segment
// before the first dot, or the whole name when there is no dot.
func Classify(event string) EventKind {
	ns, _, _ := strings.Cut(event, ".")
	switch EventKind(ns) {
	case KindChat, KindAgent, KindPresence, KindHeartbeat, KindCron:
		return EventKind(ns)
	}
	return KindSystem
}

var agentKeyRE = regexp.MustCompile(`^agent:([^:]+):`)

// AgentIDFromSessionKey extracts <id> from a session key of the form
// "agent:<id>:<rest>".
func AgentIDFromSessionKey(key string) string {
	m := agentKeyRE.FindStringSubmatch(key)
	if m == nil {
		return ""
	}
	return m[1]
}
