// Package frame encodes and decodes the JSON text frames exchanged with an
// OpenClaw gateway over WebSocket.
//
// Three frame shapes exist on the socket:
//
//	{"type":"req",   "id":..., "method":..., "params":{...}}
//	{"type":"res",   "id":..., "ok":true|false, "payload":{...}, "error":{...}}
//	{"type":"event", "event":"chat", "payload":{...}, "seq":N}
//
// Responses without a type ({id, result} / {id, error}) are accepted too.
package frame

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/grp06/openclaw-studio/wire"
)

// MaxFrameLen bounds a single inbound or outbound frame.
const MaxFrameLen = 32 << 20

// Kind says how an inbound frame must be routed.
type Kind uint8

const (
	KindResponse Kind = iota + 1
	KindEvent
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindEvent:
		return "event"
	case KindRequest:
		return "request"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

var (
	ErrFrameTooLarge = errors.New("frame: exceeds maximum size")
	ErrUnknownFrame  = errors.New("frame: unrecognized shape")
	ErrMissingID     = errors.New("frame: missing id")
)

// Inbound is a decoded gateway frame. Exactly one of Response or Event is
// set, according to Kind. Request frames are surfaced with only Kind set.
type Inbound struct {
	Kind     Kind
	Response *wire.Response
	Event    *wire.EventFrame
}

// EncodeRequest serialises a call frame. nil params encode as {}.
func EncodeRequest(id, method string, params any) ([]byte, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	raw := json.RawMessage(`{}`)
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("frame: encode %s params: %w", method, err)
		}
		raw = b
	}
	out, err := json.Marshal(wire.Request{Type: wire.TypeRequest, ID: id, Method: method, Params: raw})
	if err != nil {
		return nil, err
	}
	if len(out) > MaxFrameLen {
		return nil, ErrFrameTooLarge
	}
	return out, nil
}

// EncodeEvent serialises an event frame. Used by recorders and test peers.
func EncodeEvent(ev wire.EventFrame) ([]byte, error) {
	ev.Type = wire.TypeEvent
	return json.Marshal(ev)
}

// Decode classifies and parses one inbound frame.
func Decode(data []byte) (Inbound, error) {
	if len(data) > MaxFrameLen {
		return Inbound{}, ErrFrameTooLarge
	}
	var shape struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Method string `json:"method"`
		Event  string `json:"event"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return Inbound{}, fmt.Errorf("frame: %w", err)
	}

	switch {
	case shape.Type == wire.TypeEvent || (shape.Type == "" && shape.Event != ""):
		var ev wire.EventFrame
		if err := json.Unmarshal(data, &ev); err != nil {
			return Inbound{}, fmt.Errorf("frame: event: %w", err)
		}
		ev.Type = wire.TypeEvent
		return Inbound{Kind: KindEvent, Event: &ev}, nil

	case shape.Type == wire.TypeResponse || (shape.Type == "" && shape.ID != "" && shape.Method == ""):
		if shape.ID == "" {
			return Inbound{}, ErrMissingID
		}
		var res wire.Response
		if err := json.Unmarshal(data, &res); err != nil {
			return Inbound{}, fmt.Errorf("frame: response: %w", err)
		}
		return Inbound{Kind: KindResponse, Response: &res}, nil

	case shape.Type == wire.TypeRequest:
		return Inbound{Kind: KindRequest}, nil
	}
	return Inbound{}, ErrUnknownFrame
}
