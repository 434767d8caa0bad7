package studio

import "sync"

// Status is the connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// StatusListener is told about every status transition, synchronously with
// the transport event that caused it. Listeners must not call Connect or
// Disconnect on the same goroutine; start a goroutine for that.
type StatusListener func(Status)

type statusListeners struct {
	mu        sync.Mutex
	listeners []*StatusListener
}

func (s *statusListeners) add(fn StatusListener) func() {
	p := &fn
	s.mu.Lock()
	s.listeners = append(s.listeners, p)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l == p {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *statusListeners) notify(st Status) {
	s.mu.Lock()
	snapshot := s.listeners
	s.mu.Unlock()
	for _, l := range snapshot {
		(*l)(st)
	}
}
