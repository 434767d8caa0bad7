// Package gatewaytest runs an in-process OpenClaw gateway for tests. It
// speaks the real wire protocol over a loopback WebSocket: it sends the
// connect challenge, checks the token, answers requests from registered
// handlers and can push events or drop connections on demand.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/grp06/openclaw-studio/wire"
)

// Handler answers one request. Returning a non-nil error shape fails the
// call; returning NoReply leaves it unanswered.
type Handler func(params json.RawMessage) (result any, err *wire.ErrorShape)

// NoReply makes the server swallow a request.
var NoReply = &wire.ErrorShape{Code: "gatewaytest.noreply"}

// Request is a call the server received after the handshake.
type Request struct {
	Method string
	Params json.RawMessage
}

// Server is a fake gateway.
type Server struct {
	// Token is the operator token connect requests must carry. Empty
	// accepts any token.
	Token string

	// LegacyResponses answers with {id, result} / {id, error} instead of
	// protocol v3 response frames.
	LegacyResponses bool

	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[string]Handler
	peers    map[*peer]struct{}
	requests []Request
	connects int
	changed  chan struct{}
}

type peer struct {
	ws  *websocket.Conn
	wmu sync.Mutex
	seq uint64
}

func (p *peer) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.ws.WriteMessage(websocket.TextMessage, data)
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		handlers: make(map[string]Handler),
		peers:    make(map[*peer]struct{}),
		changed:  make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serveWS))
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// address of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Handle registers h for method, replacing any previous handler.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Reply registers a handler that always returns result.
func (s *Server) Reply(method string, result any) {
	s.Handle(method, func(json.RawMessage) (any, *wire.ErrorShape) { return result, nil })
}

// Fail registers a handler that always fails with code and message.
func (s *Server) Fail(method, code, message string) {
	s.Handle(method, func(json.RawMessage) (any, *wire.ErrorShape) {
		return nil, &wire.ErrorShape{Code: code, Message: message}
	})
}

// Requests returns the calls received for method, or every call when
// method is empty.
func (s *Server) Requests(method string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if method == "" || r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// Connections returns the number of authenticated open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Connects returns the number of successful handshakes so far.
func (s *Server) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// WaitConnections blocks until n connections are open or timeout passes.
func (s *Server) WaitConnections(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		s.mu.Lock()
		ok, ch := len(s.peers) == n, s.changed
		s.mu.Unlock()
		if ok {
			return true
		}
		select {
		case <-ch:
		case <-deadline:
			return false
		}
	}
}

// Emit pushes an event to every authenticated connection. Each connection
// numbers its events from 1.
func (s *Server) Emit(event string, payload any) {
	for _, p := range s.snapshot() {
		p.wmu.Lock()
		p.seq++
		seq := p.seq
		p.wmu.Unlock()
		p.write(eventFrame(event, payload, &seq))
	}
}

// EmitRaw writes data verbatim to every authenticated connection.
func (s *Server) EmitRaw(data []byte) {
	for _, p := range s.snapshot() {
		p.wmu.Lock()
		p.ws.WriteMessage(websocket.TextMessage, data)
		p.wmu.Unlock()
	}
}

// DropAll closes every connection without a close handshake.
func (s *Server) DropAll() {
	for _, p := range s.snapshot() {
		p.ws.UnderlyingConn().Close()
	}
}

// Close shuts the server down.
func (s *Server) Close() {
	s.DropAll()
	s.srv.Close()
}

func (s *Server) snapshot() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		out = append(out, p)
	}
	return out
}

func (s *Server) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func eventFrame(event string, payload any, seq *uint64) map[string]any {
	f := map[string]any{"type": wire.TypeEvent, "event": event, "payload": payload}
	if seq != nil {
		f["seq"] = *seq
	}
	return f
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{ws: ws}
	defer func() {
		s.mu.Lock()
		if _, ok := s.peers[p]; ok {
			delete(s.peers, p)
			s.notifyLocked()
		}
		s.mu.Unlock()
		ws.Close()
	}()

	challenge := wire.Challenge{Nonce: uuid.NewString(), TS: time.Now().UnixMilli()}
	if err := p.write(eventFrame(wire.EventConnectChallenge, challenge, nil)); err != nil {
		return
	}

	authed := false
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req wire.Request
		if err := json.Unmarshal(data, &req); err != nil || req.Type != wire.TypeRequest {
			continue
		}

		if !authed {
			if req.Method != wire.MethodConnect {
				s.respond(p, req.ID, nil, &wire.ErrorShape{Code: "INVALID_REQUEST", Message: "connect first"})
				return
			}
			if shape := s.checkConnect(req.Params); shape != nil {
				s.respond(p, req.ID, nil, shape)
				return
			}
			s.mu.Lock()
			s.connects++
			connID := s.connects
			s.mu.Unlock()
			hello := map[string]any{
				"type":     "hello-ok",
				"protocol": wire.ProtocolVersion,
				"server":   map[string]any{"version": "gatewaytest", "connId": strconv.Itoa(connID)},
				"features": map[string]any{"methods": s.methods(), "events": []string{"chat", "agent", "presence"}},
				"policy":   map[string]any{"tickIntervalMs": 30000},
			}
			if err := s.respond(p, req.ID, hello, nil); err != nil {
				return
			}
			authed = true
			s.mu.Lock()
			s.peers[p] = struct{}{}
			s.notifyLocked()
			s.mu.Unlock()
			continue
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: req.Method, Params: req.Params})
		h := s.handlers[req.Method]
		s.mu.Unlock()

		if h == nil {
			s.respond(p, req.ID, nil, &wire.ErrorShape{Code: "INVALID_REQUEST", Message: "unknown method: " + req.Method})
			continue
		}
		result, shape := h(req.Params)
		if shape == NoReply {
			continue
		}
		s.respond(p, req.ID, result, shape)
	}
}

func (s *Server) checkConnect(params json.RawMessage) *wire.ErrorShape {
	var cp wire.ConnectParams
	if err := json.Unmarshal(params, &cp); err != nil {
		return &wire.ErrorShape{Code: "INVALID_REQUEST", Message: "bad connect params"}
	}
	if cp.MinProtocol > wire.ProtocolVersion || cp.MaxProtocol < wire.ProtocolVersion {
		return &wire.ErrorShape{Code: "PROTOCOL_MISMATCH", Message: "protocol 3 required"}
	}
	if s.Token != "" && (cp.Auth == nil || cp.Auth.Token != s.Token) {
		return &wire.ErrorShape{Code: "UNAUTHORIZED", Message: "invalid token"}
	}
	return nil
}

func (s *Server) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		out = append(out, m)
	}
	return out
}

func (s *Server) respond(p *peer, id string, result any, shape *wire.ErrorShape) error {
	if s.LegacyResponses {
		msg := map[string]any{"id": id}
		if shape != nil {
			msg["error"] = shape
		} else {
			msg["result"] = result
		}
		return p.write(msg)
	}
	msg := map[string]any{"type": wire.TypeResponse, "id": id, "ok": shape == nil}
	if shape != nil {
		msg["error"] = shape
	} else if result != nil {
		msg["payload"] = result
	}
	return p.write(msg)
}
