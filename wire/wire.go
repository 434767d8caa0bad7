// Package wire defines the JSON frame and payload types of the OpenClaw
// gateway protocol as the studio consumes them. The gateway is the source of
// truth; these types only describe what the studio reads and writes.
package wire

import "encoding/json"

// ProtocolVersion is the gateway protocol version negotiated on connect.
const ProtocolVersion = 3

// Frame discriminators.
const (
	TypeRequest  = "req"
	TypeResponse = "res"
	TypeEvent    = "event"
)

// EventConnectChallenge is the first event a gateway sends on a new socket.
const EventConnectChallenge = "connect.challenge"

// MethodConnect is the handshake request method.
const MethodConnect = "connect"

// Request is a call frame (client -> gateway).
type Request struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers exactly one Request. Gateways speaking protocol v3 send
// {type:"res", ok, payload, error}; older peers send {id, result} or
// {id, error}. Both shapes decode into this struct.
type Response struct {
	Type    string          `json:"type,omitempty"`
	ID      string          `json:"id"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// Body returns the success payload regardless of which shape carried it.
func (r *Response) Body() json.RawMessage {
	if len(r.Payload) > 0 {
		return r.Payload
	}
	return r.Result
}

// Failed reports whether the response rejects its call.
func (r *Response) Failed() bool {
	return r.Error != nil || (r.OK != nil && !*r.OK)
}

// ErrorShape is the protocol-level error carried by a failed Response.
type ErrorShape struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	Retryable bool            `json:"retryable,omitempty"`
}

// EventFrame is an unsolicited gateway notification. Frames are shared by
// every subscriber and must be treated as read-only.
type EventFrame struct {
	Type         string          `json:"type"`
	Event        string          `json:"event"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Seq          *uint64         `json:"seq,omitempty"`
	StateVersion json.RawMessage `json:"stateVersion,omitempty"`
}

// Clone returns a copy whose payload does not alias f's.
func (f EventFrame) Clone() EventFrame {
	out := f
	if f.Payload != nil {
		out.Payload = append(json.RawMessage(nil), f.Payload...)
	}
	return out
}

// --- Handshake ---

// Challenge is the payload of the connect.challenge event.
type Challenge struct {
	Nonce string `json:"nonce"`
	TS    int64  `json:"ts"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	ID         string `json:"id"`
	Version    string `json:"version"`
	Platform   string `json:"platform"`
	Mode       string `json:"mode"`
	InstanceID string `json:"instanceId,omitempty"`
}

// AuthParams carries the operator token.
type AuthParams struct {
	Token string `json:"token,omitempty"`
}

// ConnectParams is the params object of the connect request.
type ConnectParams struct {
	MinProtocol int         `json:"minProtocol"`
	MaxProtocol int         `json:"maxProtocol"`
	Client      ClientInfo  `json:"client"`
	Role        string      `json:"role"`
	Scopes      []string    `json:"scopes,omitempty"`
	Caps        []string    `json:"caps"`
	Auth        *AuthParams `json:"auth,omitempty"`
}

// Hello is the payload of a successful connect response.
type Hello struct {
	Type     string `json:"type"`
	Protocol int    `json:"protocol"`
	Server   struct {
		Version string `json:"version"`
		Host    string `json:"host,omitempty"`
		ConnID  string `json:"connId,omitempty"`
	} `json:"server"`
	Features struct {
		Methods []string `json:"methods"`
		Events  []string `json:"events"`
	} `json:"features"`
	Policy struct {
		TickIntervalMs int64 `json:"tickIntervalMs,omitempty"`
	} `json:"policy"`
}
