package studio

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a call is issued while the client is
	// not connected.
	ErrNotConnected = errors.New("gateway: not connected")

	// ErrDisconnected rejects every call outstanding when the connection
	// drops or Disconnect is called.
	ErrDisconnected = errors.New("gateway: disconnected")

	// ErrTimeout rejects a call that got no response within its timeout.
	ErrTimeout = errors.New("gateway: call timed out")

	// ErrConnectInProgress is returned by Connect while another attempt is
	// still handshaking.
	ErrConnectInProgress = errors.New("gateway: connect already in progress")
)

// ConnectionError reports that the socket could not be opened or the
// handshake was refused.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("gateway: connect %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ResponseError is a call the gateway understood and refused.
type ResponseError struct {
	Method    string
	Code      string
	Message   string
	Details   json.RawMessage
	Retryable bool
}

func (e *ResponseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s: %s (%s)", e.Method, e.Message, e.Code)
	}
	return fmt.Sprintf("gateway: %s: %s", e.Method, e.Message)
}

// IsResponseError reports whether err is a ResponseError, optionally with
// the given code. An empty code matches any ResponseError.
func IsResponseError(err error, code string) bool {
	var re *ResponseError
	if !errors.As(err, &re) {
		return false
	}
	return code == "" || re.Code == code
}

// FormatError renders err the way the studio surfaces it to users.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	var re *ResponseError
	if errors.As(err, &re) {
		return fmt.Sprintf("Gateway error (%s): %s", re.Code, re.Message)
	}
	return err.Error()
}
