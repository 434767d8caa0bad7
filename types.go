package studio

import "encoding/json"

// --- Sessions ---

// SessionsListParams filters sessions.list.
type SessionsListParams struct {
	IncludeGlobal  bool   `json:"includeGlobal,omitempty"`
	IncludeUnknown bool   `json:"includeUnknown,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	AgentID        string `json:"agentId,omitempty"`
	Search         string `json:"search,omitempty"`
}

// SessionOrigin says what created a session.
type SessionOrigin struct {
	Label    string `json:"label,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// SessionSummary is one row of sessions.list.
type SessionSummary struct {
	Key           string         `json:"key"`
	AgentID       string         `json:"agentId,omitempty"`
	DisplayName   string         `json:"displayName,omitempty"`
	Kind          string         `json:"kind,omitempty"`
	Origin        *SessionOrigin `json:"origin,omitempty"`
	Model         string         `json:"model,omitempty"`
	ThinkingLevel string         `json:"thinkingLevel,omitempty"`
	UpdatedAt     int64          `json:"updatedAt,omitempty"`
	InputTokens   int64          `json:"inputTokens,omitempty"`
	OutputTokens  int64          `json:"outputTokens,omitempty"`
}

// SessionsListResult is the sessions.list payload.
type SessionsListResult struct {
	Count    int              `json:"count,omitempty"`
	Sessions []SessionSummary `json:"sessions"`
}

// SessionsPreviewParams requests recent messages of several sessions.
type SessionsPreviewParams struct {
	Keys     []string `json:"keys"`
	Limit    int      `json:"limit,omitempty"`
	MaxChars int      `json:"maxChars,omitempty"`
}

// SessionPreviewItem is one previewed message.
type SessionPreviewItem struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SessionPreview holds the preview of one session.
type SessionPreview struct {
	Key    string               `json:"key"`
	Status string               `json:"status,omitempty"`
	Items  []SessionPreviewItem `json:"items"`
}

// SessionsPreviewResult is the sessions.preview payload.
type SessionsPreviewResult struct {
	TS       int64            `json:"ts,omitempty"`
	Previews []SessionPreview `json:"previews"`
}

// SessionsPatchParams changes per-session settings. nil fields are left
// untouched.
type SessionsPatchParams struct {
	Key           string  `json:"key"`
	Model         *string `json:"model,omitempty"`
	ThinkingLevel *string `json:"thinkingLevel,omitempty"`
	VerboseLevel  *string `json:"verboseLevel,omitempty"`
	Label         *string `json:"label,omitempty"`
}

// --- Chat ---

// ChatSendParams sends a user message into a session.
type ChatSendParams struct {
	SessionKey     string `json:"sessionKey"`
	Message        string `json:"message"`
	Deliver        bool   `json:"deliver"`
	Thinking       string `json:"thinking,omitempty"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// ChatSendResult acknowledges chat.send. The reply streams as chat and
// agent events for RunID.
type ChatSendResult struct {
	RunID  string `json:"runId"`
	Status string `json:"status,omitempty"`

	// IdempotencyKey is the key the request was sent with. Resend with it
	// to retry without duplicating the message.
	IdempotencyKey string `json:"-"`
}

// ChatHistoryResult is the chat.history payload.
type ChatHistoryResult struct {
	SessionKey string            `json:"sessionKey"`
	Messages   []json.RawMessage `json:"messages"`
}

// --- Cron ---

// Cron schedule kinds.
const (
	ScheduleCron  = "cron"
	ScheduleEvery = "every"
	ScheduleAt    = "at"
)

// Cron payload kinds.
const (
	PayloadSystemEvent = "systemEvent"
	PayloadAgentTurn   = "agentTurn"
)

// CronSchedule says when a job runs.
type CronSchedule struct {
	Kind     string `json:"kind"`
	Expr     string `json:"expr,omitempty"`
	TZ       string `json:"tz,omitempty"`
	EveryMs  int64  `json:"everyMs,omitempty"`
	AnchorMs int64  `json:"anchorMs,omitempty"`
	AtMs     int64  `json:"atMs,omitempty"`
}

// CronPayload says what a job does.
type CronPayload struct {
	Kind           string `json:"kind"`
	Text           string `json:"text,omitempty"`
	Message        string `json:"message,omitempty"`
	Model          string `json:"model,omitempty"`
	Thinking       string `json:"thinking,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
	Deliver        bool   `json:"deliver,omitempty"`
	Channel        string `json:"channel,omitempty"`
	To             string `json:"to,omitempty"`
}

// CronJobState is the gateway-maintained run state of a job.
type CronJobState struct {
	NextRunAtMs int64  `json:"nextRunAtMs,omitempty"`
	LastRunAtMs int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

// CronJob is a scheduled job.
type CronJob struct {
	ID            string       `json:"id,omitempty"`
	AgentID       string       `json:"agentId,omitempty"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	Enabled       bool         `json:"enabled"`
	Schedule      CronSchedule `json:"schedule"`
	SessionTarget string       `json:"sessionTarget,omitempty"`
	WakeMode      string       `json:"wakeMode,omitempty"`
	Payload       CronPayload  `json:"payload"`
	State         CronJobState `json:"state,omitempty"`
	CreatedAtMs   int64        `json:"createdAtMs,omitempty"`
	UpdatedAtMs   int64        `json:"updatedAtMs,omitempty"`
}

// CronListResult is the cron.list payload.
type CronListResult struct {
	Jobs []CronJob `json:"jobs"`
}

// CronJobPatch updates a job. nil fields are left untouched.
type CronJobPatch struct {
	Name     *string       `json:"name,omitempty"`
	Enabled  *bool         `json:"enabled,omitempty"`
	Schedule *CronSchedule `json:"schedule,omitempty"`
	Payload  *CronPayload  `json:"payload,omitempty"`
}

// CronRunResult acknowledges cron.run.
type CronRunResult struct {
	OK  bool `json:"ok"`
	Ran bool `json:"ran,omitempty"`
}

// --- Config ---

// ConfigSnapshot is the config.get payload. Config is kept raw; the
// gateway owns its schema.
type ConfigSnapshot struct {
	Path   string          `json:"path,omitempty"`
	Exists bool            `json:"exists"`
	Raw    string          `json:"raw,omitempty"`
	Hash   string          `json:"hash,omitempty"`
	Valid  bool            `json:"valid"`
	Config json.RawMessage `json:"config,omitempty"`
}

// ConfigPatchParams merges Raw (a JSON object) into the gateway config.
// BaseHash guards against concurrent edits.
type ConfigPatchParams struct {
	Raw      string `json:"raw"`
	BaseHash string `json:"baseHash,omitempty"`
}

// --- Agents ---

// AgentSummary is one row of agents.list.
type AgentSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Identity struct {
		Name  string `json:"name,omitempty"`
		Emoji string `json:"emoji,omitempty"`
	} `json:"identity,omitempty"`
}

// AgentsListResult is the agents.list payload.
type AgentsListResult struct {
	DefaultID string         `json:"defaultId,omitempty"`
	MainKey   string         `json:"mainKey,omitempty"`
	Agents    []AgentSummary `json:"agents"`
}

// AgentFile is one workspace file of an agent.
type AgentFile struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Missing bool   `json:"missing,omitempty"`
	Content string `json:"content,omitempty"`
}

// AgentFileResult is the agents.files.get / agents.files.set payload.
type AgentFileResult struct {
	AgentID string    `json:"agentId"`
	File    AgentFile `json:"file"`
}
