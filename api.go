package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/grp06/openclaw-studio/wire"
)

// Gateway methods used by the studio.
const (
	MethodSessionsList    = "sessions.list"
	MethodSessionsPreview = "sessions.preview"
	MethodSessionsPatch   = "sessions.patch"
	MethodChatSend        = "chat.send"
	MethodChatHistory     = "chat.history"
	MethodChatAbort       = "chat.abort"
	MethodCronList        = "cron.list"
	MethodCronAdd         = "cron.add"
	MethodCronUpdate      = "cron.update"
	MethodCronRemove      = "cron.remove"
	MethodCronRun         = "cron.run"
	MethodConfigGet       = "config.get"
	MethodConfigPatch     = "config.patch"
	MethodAgentsList      = "agents.list"
	MethodAgentFileGet    = "agents.files.get"
	MethodAgentFileSet    = "agents.files.set"
	MethodStatus          = "status"
)

// --------------------------------------------------------------------------
// Sessions
// --------------------------------------------------------------------------

// SessionsList lists the gateway's sessions.
func (c *Client) SessionsList(ctx context.Context, params SessionsListParams) (*SessionsListResult, error) {
	var res SessionsListResult
	if err := c.Call(ctx, MethodSessionsList, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SessionsPreview fetches the latest messages of the given sessions.
func (c *Client) SessionsPreview(ctx context.Context, params SessionsPreviewParams) (*SessionsPreviewResult, error) {
	var res SessionsPreviewResult
	if err := c.Call(ctx, MethodSessionsPreview, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SessionsPatch updates per-session settings.
func (c *Client) SessionsPatch(ctx context.Context, params SessionsPatchParams) error {
	if params.Key == "" {
		return errors.New("sessions.patch: key is required")
	}
	return c.Call(ctx, MethodSessionsPatch, params, nil)
}

// --------------------------------------------------------------------------
// Chat
// --------------------------------------------------------------------------

// ChatSend sends a message into a session. An empty IdempotencyKey is
// filled with a fresh uuid, reported back on the result.
func (c *Client) ChatSend(ctx context.Context, params ChatSendParams) (*ChatSendResult, error) {
	if params.SessionKey == "" {
		return nil, errors.New("chat.send: session key is required")
	}
	if params.IdempotencyKey == "" {
		params.IdempotencyKey = uuid.NewString()
	}
	var res ChatSendResult
	if err := c.Call(ctx, MethodChatSend, params, &res); err != nil {
		return nil, err
	}
	res.IdempotencyKey = params.IdempotencyKey
	return &res, nil
}

// ChatHistory returns up to limit messages of a session.
func (c *Client) ChatHistory(ctx context.Context, sessionKey string, limit int) (*ChatHistoryResult, error) {
	params := map[string]any{"sessionKey": sessionKey}
	if limit > 0 {
		params["limit"] = limit
	}
	var res ChatHistoryResult
	if err := c.Call(ctx, MethodChatHistory, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ChatAbort stops the active run of a session. An empty runID aborts
// whatever is running.
func (c *Client) ChatAbort(ctx context.Context, sessionKey, runID string) error {
	params := map[string]any{"sessionKey": sessionKey}
	if runID != "" {
		params["runId"] = runID
	}
	return c.Call(ctx, MethodChatAbort, params, nil)
}

// --------------------------------------------------------------------------
// Cron
// --------------------------------------------------------------------------

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule checks a schedule locally before it reaches the gateway.
func ValidateSchedule(s CronSchedule) error {
	switch s.Kind {
	case ScheduleCron:
		if _, err := parseCronExpr(s); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", s.Expr, err)
		}
	case ScheduleEvery:
		if s.EveryMs <= 0 {
			return errors.New("every schedule needs a positive everyMs")
		}
	case ScheduleAt:
		if s.AtMs <= 0 {
			return errors.New("at schedule needs atMs")
		}
	default:
		return fmt.Errorf("unknown schedule kind %q", s.Kind)
	}
	return nil
}

// NextRun returns the first run of s strictly after from. ok is false when
// the schedule never fires again.
func NextRun(s CronSchedule, from time.Time) (next time.Time, ok bool) {
	switch s.Kind {
	case ScheduleCron:
		sched, err := parseCronExpr(s)
		if err != nil {
			return time.Time{}, false
		}
		next = sched.Next(from)
		return next, !next.IsZero()
	case ScheduleEvery:
		if s.EveryMs <= 0 {
			return time.Time{}, false
		}
		every := time.Duration(s.EveryMs) * time.Millisecond
		if s.AnchorMs == 0 {
			return from.Add(every), true
		}
		anchor := time.UnixMilli(s.AnchorMs)
		if anchor.After(from) {
			return anchor, true
		}
		n := from.Sub(anchor)/every + 1
		return anchor.Add(n * every), true
	case ScheduleAt:
		at := time.UnixMilli(s.AtMs)
		return at, at.After(from)
	}
	return time.Time{}, false
}

func parseCronExpr(s CronSchedule) (cron.Schedule, error) {
	expr := strings.TrimSpace(s.Expr)
	if s.TZ != "" {
		expr = "CRON_TZ=" + s.TZ + " " + expr
	}
	return cronParser.Parse(expr)
}

// CronList lists cron jobs, disabled ones included when includeDisabled.
func (c *Client) CronList(ctx context.Context, includeDisabled bool) ([]CronJob, error) {
	var res CronListResult
	if err := c.Call(ctx, MethodCronList, map[string]any{"includeDisabled": includeDisabled}, &res); err != nil {
		return nil, err
	}
	return res.Jobs, nil
}

// CronAdd creates a job after validating its schedule.
func (c *Client) CronAdd(ctx context.Context, job CronJob) (*CronJob, error) {
	if strings.TrimSpace(job.Name) == "" {
		return nil, errors.New("cron.add: name is required")
	}
	if err := ValidateSchedule(job.Schedule); err != nil {
		return nil, fmt.Errorf("cron.add: %w", err)
	}
	switch job.Payload.Kind {
	case PayloadSystemEvent, PayloadAgentTurn:
	default:
		return nil, fmt.Errorf("cron.add: unknown payload kind %q", job.Payload.Kind)
	}
	var created CronJob
	if err := c.Call(ctx, MethodCronAdd, map[string]any{"job": job}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CronUpdate applies patch to a job.
func (c *Client) CronUpdate(ctx context.Context, jobID string, patch CronJobPatch) error {
	if patch.Schedule != nil {
		if err := ValidateSchedule(*patch.Schedule); err != nil {
			return fmt.Errorf("cron.update: %w", err)
		}
	}
	return c.Call(ctx, MethodCronUpdate, map[string]any{"jobId": jobID, "patch": patch}, nil)
}

// CronSetEnabled enables or disables a job.
func (c *Client) CronSetEnabled(ctx context.Context, jobID string, enabled bool) error {
	return c.CronUpdate(ctx, jobID, CronJobPatch{Enabled: &enabled})
}

// CronRemove deletes a job.
func (c *Client) CronRemove(ctx context.Context, jobID string) error {
	return c.Call(ctx, MethodCronRemove, map[string]any{"jobId": jobID}, nil)
}

// CronRun triggers a job now.
func (c *Client) CronRun(ctx context.Context, jobID string) (*CronRunResult, error) {
	var res CronRunResult
	if err := c.Call(ctx, MethodCronRun, map[string]any{"jobId": jobID}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --------------------------------------------------------------------------
// Config
// --------------------------------------------------------------------------

// ConfigGet returns the gateway configuration snapshot.
func (c *Client) ConfigGet(ctx context.Context) (*ConfigSnapshot, error) {
	var res ConfigSnapshot
	if err := c.Call(ctx, MethodConfigGet, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ConfigPatch merges a JSON object into the gateway configuration.
func (c *Client) ConfigPatch(ctx context.Context, params ConfigPatchParams) error {
	return c.Call(ctx, MethodConfigPatch, params, nil)
}

// --------------------------------------------------------------------------
// Agents
// --------------------------------------------------------------------------

// AgentsList lists configured agents.
func (c *Client) AgentsList(ctx context.Context) (*AgentsListResult, error) {
	var res AgentsListResult
	if err := c.Call(ctx, MethodAgentsList, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AgentFileGet reads one workspace file of an agent.
func (c *Client) AgentFileGet(ctx context.Context, agentID, name string) (*AgentFile, error) {
	var res AgentFileResult
	if err := c.Call(ctx, MethodAgentFileGet, map[string]any{"agentId": agentID, "name": name}, &res); err != nil {
		return nil, err
	}
	return &res.File, nil
}

// AgentFileSet writes one workspace file of an agent.
func (c *Client) AgentFileSet(ctx context.Context, agentID, name, content string) error {
	return c.Call(ctx, MethodAgentFileSet, map[string]any{"agentId": agentID, "name": name, "content": content}, nil)
}

// GatewayStatus returns the gateway's raw status summary.
func (c *Client) GatewayStatus(ctx context.Context) (map[string]any, error) {
	var res map[string]any
	if err := c.Call(ctx, MethodStatus, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// --------------------------------------------------------------------------
// Typed event helpers
// --------------------------------------------------------------------------

// OnChat subscribes to chat events. Malformed payloads are skipped.
func (c *Client) OnChat(handler func(wire.ChatEvent)) (unsubscribe func()) {
	return c.OnEvent(EventName("chat"), func(f wire.EventFrame) {
		if ev, ok := wire.DecodeChat(f.Payload); ok {
			handler(ev)
		}
	})
}

// OnAgent subscribes to agent events. Malformed payloads are skipped.
func (c *Client) OnAgent(handler func(wire.AgentEvent)) (unsubscribe func()) {
	return c.OnEvent(EventName("agent"), func(f wire.EventFrame) {
		if ev, ok := wire.DecodeAgent(f.Payload); ok {
			handler(ev)
		}
	})
}

// OnPresence subscribes to presence events.
func (c *Client) OnPresence(handler EventHandler) (unsubscribe func()) {
	return c.OnEvent(EventName("presence"), handler)
}
