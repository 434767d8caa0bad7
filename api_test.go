package studio

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grp06/openclaw-studio/internal/gatewaytest"
)

func TestValidateSchedule(t *testing.T) {
	valid := []CronSchedule{
		{Kind: ScheduleCron, Expr: "0 9 * * *"},
		{Kind: ScheduleCron, Expr: "*/30 * * * * *"},
		{Kind: ScheduleCron, Expr: "@hourly", TZ: "Europe/Berlin"},
		{Kind: ScheduleEvery, EveryMs: 60_000},
		{Kind: ScheduleAt, AtMs: 1_700_000_000_000},
	}
	for _, s := range valid {
		assert.NoError(t, ValidateSchedule(s), "%+v", s)
	}

	invalid := []CronSchedule{
		{Kind: ScheduleCron, Expr: "not a cron"},
		{Kind: ScheduleCron, Expr: "0 9 * * *", TZ: "Nowhere/Special"},
		{Kind: ScheduleEvery},
		{Kind: ScheduleAt},
		{Kind: "weekly"},
	}
	for _, s := range invalid {
		assert.Error(t, ValidateSchedule(s), "%+v", s)
	}
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	next, ok := NextRun(CronSchedule{Kind: ScheduleCron, Expr: "0 9 * * *", TZ: "UTC"}, from)
	require.True(t, ok)
	assert.True(t, next.Equal(time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)), next.String())

	next, ok = NextRun(CronSchedule{Kind: ScheduleEvery, EveryMs: 500, AnchorMs: 1000}, time.UnixMilli(2200))
	require.True(t, ok)
	assert.Equal(t, int64(2500), next.UnixMilli())

	next, ok = NextRun(CronSchedule{Kind: ScheduleEvery, EveryMs: 500, AnchorMs: 1000}, time.UnixMilli(2000))
	require.True(t, ok)
	assert.Equal(t, int64(2500), next.UnixMilli(), "strictly after from")

	next, ok = NextRun(CronSchedule{Kind: ScheduleEvery, EveryMs: 500, AnchorMs: 9000}, time.UnixMilli(2000))
	require.True(t, ok)
	assert.Equal(t, int64(9000), next.UnixMilli())

	next, ok = NextRun(CronSchedule{Kind: ScheduleEvery, EveryMs: 1000}, from)
	require.True(t, ok)
	assert.Equal(t, from.Add(time.Second), next)

	_, ok = NextRun(CronSchedule{Kind: ScheduleAt, AtMs: from.Add(-time.Hour).UnixMilli()}, from)
	assert.False(t, ok, "one-shot in the past never fires")

	_, ok = NextRun(CronSchedule{Kind: ScheduleCron, Expr: "bogus"}, from)
	assert.False(t, ok)
}

func TestChatSendFillsIdempotencyKey(t *testing.T) {
	srv := gatewaytest.New(t)
	srv.Reply(MethodChatSend, ChatSendResult{RunID: "run-1", Status: "started"})
	c := connectedClient(t, srv, Config{})

	res, err := c.ChatSend(context.Background(), ChatSendParams{SessionKey: "agent:main:main", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)

	retry, err := c.ChatSend(context.Background(), ChatSendParams{SessionKey: "agent:main:main", Message: "again", IdempotencyKey: "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", retry.IdempotencyKey)

	reqs := srv.Requests(MethodChatSend)
	require.Len(t, reqs, 2)
	var first, second ChatSendParams
	require.NoError(t, json.Unmarshal(reqs[0].Params, &first))
	require.NoError(t, json.Unmarshal(reqs[1].Params, &second))
	assert.NotEmpty(t, first.IdempotencyKey)
	assert.Equal(t, first.IdempotencyKey, res.IdempotencyKey)
	assert.Equal(t, "fixed", second.IdempotencyKey)

	_, err = c.ChatSend(context.Background(), ChatSendParams{Message: "no session"})
	assert.Error(t, err)
	assert.Len(t, srv.Requests(MethodChatSend), 2)
}

func TestCronCalls(t *testing.T) {
	srv := gatewaytest.New(t)
	srv.Reply(MethodCronList, CronListResult{Jobs: []CronJob{{ID: "j1", Name: "daily", Enabled: true}}})
	srv.Reply(MethodCronAdd, CronJob{ID: "j2", Name: "nightly"})
	srv.Reply(MethodCronUpdate, map[string]any{"ok": true})
	c := connectedClient(t, srv, Config{})
	ctx := context.Background()

	jobs, err := c.CronList(ctx, true)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "daily", jobs[0].Name)

	_, err = c.CronAdd(ctx, CronJob{Name: "bad", Schedule: CronSchedule{Kind: ScheduleCron, Expr: "nope"}, Payload: CronPayload{Kind: PayloadSystemEvent}})
	assert.Error(t, err)
	_, err = c.CronAdd(ctx, CronJob{Name: "bad", Schedule: CronSchedule{Kind: ScheduleEvery, EveryMs: 1000}, Payload: CronPayload{Kind: "shell"}})
	assert.Error(t, err)
	assert.Empty(t, srv.Requests(MethodCronAdd), "invalid jobs never reach the gateway")

	created, err := c.CronAdd(ctx, CronJob{
		Name:     "nightly",
		Schedule: CronSchedule{Kind: ScheduleCron, Expr: "0 2 * * *"},
		Payload:  CronPayload{Kind: PayloadAgentTurn, Message: "summarize the day"},
	})
	require.NoError(t, err)
	assert.Equal(t, "j2", created.ID)

	require.NoError(t, c.CronSetEnabled(ctx, "j2", false))
	reqs := srv.Requests(MethodCronUpdate)
	require.Len(t, reqs, 1)
	assert.JSONEq(t, `{"jobId":"j2","patch":{"enabled":false}}`, string(reqs[0].Params))
}

func TestSessionsPatchRequiresKey(t *testing.T) {
	c := NewClient(Config{})
	assert.Error(t, c.SessionsPatch(context.Background(), SessionsPatchParams{}))
}
