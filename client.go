// Package studio is a Go client for an OpenClaw gateway. It keeps one
// WebSocket open to the gateway and correlates RPC calls with their
// responses. Gateway events fan out to any number of subscribers.
//
// The observe, activity, settings and batch packages build the studio's live
// views on top of a Client.
package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grp06/openclaw-studio/frame"
	"github.com/grp06/openclaw-studio/internal/clock"
	"github.com/grp06/openclaw-studio/wire"
)

// DefaultURL is the gateway address used when nothing else is configured.
const DefaultURL = "ws://127.0.0.1:18789"

// Config holds client parameters. The zero value is usable.
type Config struct {
	CallTimeout      time.Duration // default 30s, per call override with WithTimeout
	HandshakeTimeout time.Duration // dial + connect.challenge + hello, default 10s
	SendBuffer       int           // queued outbound frames, default 256

	ClientID      string   // default "openclaw-studio"
	ClientVersion string   // default "dev"
	Mode          string   // default "ui"
	Role          string   // default "operator"
	Scopes        []string // default operator.admin

	Logger *slog.Logger
	Clock  clock.Clock
}

func (cfg Config) withDefaults() Config {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "openclaw-studio"
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "dev"
	}
	if cfg.Mode == "" {
		cfg.Mode = "ui"
	}
	if cfg.Role == "" {
		cfg.Role = "operator"
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"operator.admin"}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Clock = clock.OrReal(cfg.Clock)
	return cfg
}

// Client is a connection to one gateway. Construct it with NewClient; it
// can be connected and disconnected any number of times.
type Client struct {
	cfg        Config
	log        *slog.Logger
	clock      clock.Clock
	instanceID string

	bus      *eventBus
	statuses statusListeners

	// transition serializes status changes with their notifications so
	// listeners observe transitions in order.
	transition sync.Mutex

	mu      sync.Mutex
	status  Status
	url     string
	attempt uint64
	sess    *session
	dialing *wsConn
	hello   *wire.Hello
	dropErr error
	pending map[string]*pendingCall
}

// NewClient returns a disconnected client.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	log := cfg.Logger.With("component", "gateway")
	return &Client{
		cfg:        cfg,
		log:        log,
		clock:      cfg.Clock,
		instanceID: uuid.NewString(),
		bus:        newEventBus(log),
		status:     StatusDisconnected,
		pending:    make(map[string]*pendingCall),
	}
}

// session is one established socket and its pumps.
type session struct {
	conn      *wsConn
	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// read goroutine only
	lastSeq uint64
	hasSeq  bool
}

func newSession(conn *wsConn, buffer int) *session {
	return &session{
		conn:   conn,
		sendCh: make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Connect dials url, answers the gateway's connect challenge with token and
// waits for the hello. It returns a *ConnectionError when the socket cannot
// be opened or the gateway refuses the handshake. Connect on a connected
// client is a no-op; while another attempt is in flight it returns
// ErrConnectInProgress.
func (c *Client) Connect(ctx context.Context, url, token string) error {
	c.transition.Lock()
	c.mu.Lock()
	switch c.status {
	case StatusConnected:
		c.mu.Unlock()
		c.transition.Unlock()
		return nil
	case StatusConnecting:
		c.mu.Unlock()
		c.transition.Unlock()
		return ErrConnectInProgress
	}
	c.attempt++
	attempt := c.attempt
	c.status = StatusConnecting
	c.url = url
	c.dropErr = nil
	c.mu.Unlock()
	c.statuses.notify(StatusConnecting)
	c.transition.Unlock()

	conn, hello, err := c.handshake(ctx, attempt, url, token)

	c.transition.Lock()
	defer c.transition.Unlock()
	c.mu.Lock()
	if c.attempt != attempt {
		// Disconnect ran while we were handshaking and already reported
		// the transition.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return &ConnectionError{URL: url, Err: ErrDisconnected}
	}
	c.dialing = nil
	if err != nil {
		c.status = StatusDisconnected
		c.mu.Unlock()
		c.log.Warn("gateway connect failed", "url", url, "error", err)
		c.statuses.notify(StatusDisconnected)
		return &ConnectionError{URL: url, Err: err}
	}
	s := newSession(conn, c.cfg.SendBuffer)
	c.sess = s
	c.hello = hello
	c.status = StatusConnected
	c.mu.Unlock()

	go c.readLoop(s)
	go c.writeLoop(s)

	c.log.Info("connected to gateway", "url", url, "protocol", hello.Protocol, "server", hello.Server.Version)
	c.statuses.notify(StatusConnected)
	return nil
}

func (c *Client) handshake(ctx context.Context, attempt uint64, url, token string) (*wsConn, *wire.Hello, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	conn, err := dial(ctx, url, c.cfg.HandshakeTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	if c.attempt != attempt {
		c.mu.Unlock()
		conn.Close()
		return nil, nil, ErrDisconnected
	}
	c.dialing = conn
	c.mu.Unlock()

	hello, err := c.authenticate(ctx, conn, token)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, hello, nil
}

func (c *Client) authenticate(ctx context.Context, conn *wsConn, token string) (*wire.Hello, error) {
	deadline, _ := ctx.Deadline()
	conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read challenge: %w", err)
		}
		in, err := frame.Decode(data)
		if err == nil && in.Kind == frame.KindEvent && in.Event.Event == wire.EventConnectChallenge {
			break
		}
	}

	id := uuid.NewString()
	req, err := frame.EncodeRequest(id, wire.MethodConnect, c.connectParams(token))
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(req); err != nil {
		return nil, fmt.Errorf("send connect: %w", err)
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read hello: %w", err)
		}
		in, err := frame.Decode(data)
		if err != nil {
			c.log.Debug("bad frame during handshake", "error", err)
			continue
		}
		if in.Kind != frame.KindResponse || in.Response.ID != id {
			continue
		}
		if in.Response.Failed() {
			return nil, responseError(wire.MethodConnect, in.Response)
		}
		var hello wire.Hello
		if body := in.Response.Body(); len(body) > 0 {
			if err := json.Unmarshal(body, &hello); err != nil {
				return nil, fmt.Errorf("decode hello: %w", err)
			}
		}
		stop()
		conn.SetReadDeadline(time.Time{})
		return &hello, nil
	}
}

func (c *Client) connectParams(token string) wire.ConnectParams {
	p := wire.ConnectParams{
		MinProtocol: wire.ProtocolVersion,
		MaxProtocol: wire.ProtocolVersion,
		Client: wire.ClientInfo{
			ID:         c.cfg.ClientID,
			Version:    c.cfg.ClientVersion,
			Platform:   runtime.GOOS,
			Mode:       c.cfg.Mode,
			InstanceID: c.instanceID,
		},
		Role:   c.cfg.Role,
		Scopes: c.cfg.Scopes,
		Caps:   []string{},
	}
	if token != "" {
		p.Auth = &wire.AuthParams{Token: token}
	}
	return p
}

// Disconnect closes the connection. Every outstanding call is rejected with
// ErrDisconnected before it returns. Safe to call repeatedly or when never
// connected.
func (c *Client) Disconnect() {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	prev := c.status
	c.attempt++
	s, dialing := c.sess, c.dialing
	c.sess, c.dialing, c.hello = nil, nil, nil
	c.dropErr = nil
	c.status = StatusDisconnected
	pending := c.drainPendingLocked()
	url := c.url
	c.mu.Unlock()

	rejectAll(pending)
	if s != nil {
		s.close()
	}
	if dialing != nil {
		dialing.Close()
	}
	if prev != StatusDisconnected {
		c.log.Info("disconnected from gateway", "url", url)
		c.statuses.notify(StatusDisconnected)
	}
}

// Close disconnects. It implements io.Closer.
func (c *Client) Close() error {
	c.Disconnect()
	return nil
}

// dropSession tears down s after a read or write failure. It is a no-op
// for sessions already replaced or closed by Disconnect.
func (c *Client) dropSession(s *session, cause error) {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	if c.sess != s || s.closed() {
		c.mu.Unlock()
		s.close()
		return
	}
	c.sess, c.hello = nil, nil
	c.dropErr = cause
	c.status = StatusDisconnected
	pending := c.drainPendingLocked()
	url := c.url
	c.mu.Unlock()

	s.close()
	rejectAll(pending)
	c.log.Warn("read error, disconnecting", "url", url, "error", cause)
	c.statuses.notify(StatusDisconnected)
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// URL returns the address of the last connection attempt.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// DropCause returns why the last connection was lost, or nil when it was
// closed by Disconnect or a new attempt has started since.
func (c *Client) DropCause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropErr
}

// Hello returns the gateway's hello payload, or nil when not connected.
func (c *Client) Hello() *wire.Hello {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hello
}

// OnStatus registers fn for status transitions. The returned func removes
// it.
func (c *Client) OnStatus(fn StatusListener) (unsubscribe func()) {
	return c.statuses.add(fn)
}

// OnEvent registers handler for every event accepted by filter (all events
// when filter is nil). Handlers run in registration order on the read
// goroutine; a panicking handler is logged and skipped.
func (c *Client) OnEvent(filter EventFilter, handler EventHandler) (unsubscribe func()) {
	return c.bus.subscribe(filter, handler)
}

// --- Internal ---

func (c *Client) readLoop(s *session) {
	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			c.dropSession(s, err)
			return
		}

		in, err := frame.Decode(data)
		if err != nil {
			c.log.Debug("bad frame", "error", err)
			continue
		}

		switch in.Kind {
		case frame.KindResponse:
			c.resolve(in.Response)
		case frame.KindEvent:
			c.checkSeq(s, in.Event)
			c.bus.publish(*in.Event)
		case frame.KindRequest:
			c.log.Debug("ignoring gateway-initiated request")
		}
	}
}

func (c *Client) writeLoop(s *session) {
	for {
		select {
		case data := <-s.sendCh:
			if err := s.conn.WriteMessage(data); err != nil {
				c.log.Warn("write error", "error", err)
				c.dropSession(s, err)
				return
			}
		case <-s.done:
			return
		}
	}
}

func (c *Client) checkSeq(s *session, ev *wire.EventFrame) {
	if ev.Seq == nil {
		return
	}
	seq := *ev.Seq
	if s.hasSeq && seq > s.lastSeq+1 {
		c.log.Warn("event sequence gap", "expected", s.lastSeq+1, "received", seq)
	}
	s.lastSeq, s.hasSeq = seq, true
}
