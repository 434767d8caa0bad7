package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grp06/openclaw-studio/frame"
	"github.com/grp06/openclaw-studio/wire"
)

// CallOption adjusts a single call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithTimeout overrides Config.CallTimeout for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

type callResult struct {
	body json.RawMessage
	err  error
}

// pendingCall is owned by whoever removes it from Client.pending; only that
// party may complete it, so each call completes exactly once.
type pendingCall struct {
	id        string
	method    string
	createdAt time.Time
	done      chan callResult
}

// Call sends method with params and waits for the matching response. A
// successful payload is decoded into result when result is non-nil.
//
// Errors: ErrNotConnected before anything is sent, *ResponseError when the
// gateway refuses the call, ErrTimeout, ErrDisconnected when the connection
// drops first, or ctx.Err().
func (c *Client) Call(ctx context.Context, method string, params, result any, opts ...CallOption) error {
	o := callOptions{timeout: c.cfg.CallTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	data, err := frame.EncodeRequest(id, method, params)
	if err != nil {
		return err
	}

	p := &pendingCall{
		id:        id,
		method:    method,
		createdAt: c.clock.Now(),
		done:      make(chan callResult, 1),
	}
	c.mu.Lock()
	s := c.sess
	if c.status != StatusConnected || s == nil {
		c.mu.Unlock()
		return fmt.Errorf("call %s: %w", method, ErrNotConnected)
	}
	c.pending[id] = p
	c.mu.Unlock()

	timer := c.clock.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case s.sendCh <- data:
	case r := <-p.done:
		return decodeResult(method, r, result)
	case <-s.done:
		return c.abandon(p, fmt.Errorf("call %s: %w", method, ErrDisconnected), result)
	case <-timer.C:
		return c.abandon(p, fmt.Errorf("call %s: %w", method, ErrTimeout), result)
	case <-ctx.Done():
		return c.abandon(p, ctx.Err(), result)
	}

	select {
	case r := <-p.done:
		return decodeResult(method, r, result)
	case <-timer.C:
		c.log.Warn("call timed out", "method", method, "id", id, "timeout", o.timeout)
		return c.abandon(p, fmt.Errorf("call %s: %w", method, ErrTimeout), result)
	case <-ctx.Done():
		return c.abandon(p, ctx.Err(), result)
	}
}

// abandon completes p with err if it is still pending. Otherwise the
// response or rejection already claimed it and is waiting in p.done.
func (c *Client) abandon(p *pendingCall, err error, result any) error {
	c.mu.Lock()
	_, owned := c.pending[p.id]
	delete(c.pending, p.id)
	c.mu.Unlock()
	if owned {
		return err
	}
	return decodeResult(p.method, <-p.done, result)
}

func decodeResult(method string, r callResult, result any) error {
	if r.err != nil {
		return r.err
	}
	if result == nil || len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, result); err != nil {
		return fmt.Errorf("call %s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) resolve(res *wire.Response) {
	c.mu.Lock()
	p, ok := c.pending[res.ID]
	delete(c.pending, res.ID)
	c.mu.Unlock()
	if !ok {
		c.log.Debug("response for unknown call", "id", res.ID)
		return
	}
	if res.Failed() {
		p.done <- callResult{err: responseError(p.method, res)}
		return
	}
	p.done <- callResult{body: res.Body()}
}

func (c *Client) drainPendingLocked() []*pendingCall {
	out := make([]*pendingCall, 0, len(c.pending))
	for id, p := range c.pending {
		out = append(out, p)
		delete(c.pending, id)
	}
	return out
}

func rejectAll(pending []*pendingCall) {
	for _, p := range pending {
		p.done <- callResult{err: fmt.Errorf("call %s: %w", p.method, ErrDisconnected)}
	}
}

func responseError(method string, res *wire.Response) *ResponseError {
	re := &ResponseError{Method: method, Code: "UNKNOWN", Message: "request failed"}
	if res.Error != nil {
		if res.Error.Code != "" {
			re.Code = res.Error.Code
		}
		if res.Error.Message != "" {
			re.Message = res.Error.Message
		}
		re.Details = res.Error.Details
		re.Retryable = res.Error.Retryable
	}
	return re
}

// PendingCalls returns the number of calls awaiting a response.
func (c *Client) PendingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
