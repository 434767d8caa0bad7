package studio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/grp06/openclaw-studio/internal/clock"
)

// ReconnectConfig configures a Reconnector. The zero value is usable.
type ReconnectConfig struct {
	Initial time.Duration // first delay, default 250ms
	Max     time.Duration // delay cap, default 30s
	Factor  float64       // growth per failed attempt, default 2
	Clock   clock.Clock
	Logger  *slog.Logger
}

func (cfg ReconnectConfig) withDefaults() ReconnectConfig {
	if cfg.Initial <= 0 {
		cfg.Initial = 250 * time.Millisecond
	}
	if cfg.Max <= 0 {
		cfg.Max = 30 * time.Second
	}
	if cfg.Factor < 1 {
		cfg.Factor = 2
	}
	cfg.Clock = clock.OrReal(cfg.Clock)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Reconnector re-invokes Connect after the connection drops unexpectedly,
// backing off exponentially while attempts fail. A Disconnect by the caller
// is not a drop and is never retried.
type Reconnector struct {
	client *Client
	cfg    ReconnectConfig
	log    *slog.Logger
	unsub  func()

	mu         sync.Mutex
	url, token string
	delay      time.Duration
	timer      *clock.Timer
	attempting bool
	stopped    bool
	attempts   int
}

// NewReconnector watches client and reconnects to url with token.
func NewReconnector(client *Client, url, token string, cfg ReconnectConfig) *Reconnector {
	cfg = cfg.withDefaults()
	r := &Reconnector{
		client: client,
		cfg:    cfg,
		log:    cfg.Logger.With("component", "reconnect"),
		url:    url,
		token:  token,
		delay:  cfg.Initial,
	}
	r.unsub = client.OnStatus(r.onStatus)
	return r
}

// SetTarget changes the address and token used by later attempts.
func (r *Reconnector) SetTarget(url, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.url, r.token = url, token
}

// Attempts returns the number of reconnect attempts made so far.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Stop cancels any scheduled attempt and stops watching the client.
func (r *Reconnector) Stop() {
	r.mu.Lock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
	r.unsub()
}

func (r *Reconnector) onStatus(st Status) {
	switch st {
	case StatusConnected:
		r.mu.Lock()
		r.delay = r.cfg.Initial
		r.mu.Unlock()
	case StatusDisconnected:
		if cause := r.client.DropCause(); cause != nil {
			r.schedule(cause)
		}
	}
}

func (r *Reconnector) schedule(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.attempting || r.timer != nil {
		return
	}
	delay := r.delay
	r.delay = min(time.Duration(float64(r.delay)*r.cfg.Factor), r.cfg.Max)
	r.log.Info("reconnecting", "in", delay, "cause", cause)
	r.timer = r.cfg.Clock.AfterFunc(delay, r.attempt)
}

func (r *Reconnector) attempt() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.attempting = true
	r.attempts++
	url, token := r.url, r.token
	r.mu.Unlock()

	// Status listeners run before Connect returns; the attempting flag
	// keeps them from scheduling a second retry.
	err := r.client.Connect(context.Background(), url, token)

	r.mu.Lock()
	r.attempting = false
	r.mu.Unlock()

	switch {
	case err == nil, errors.Is(err, ErrConnectInProgress):
	case errors.Is(err, ErrDisconnected):
		// Disconnect interrupted the attempt.
	default:
		r.schedule(err)
	}
}
