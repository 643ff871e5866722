// Package clockx provides the now-source and tick scheduler for the
// board. Wall time can be corrected by a server offset; when none is
// known the local clock is used as-is.
package clockx

import (
	"sync"
	"time"
)

// Clock yields the current instant in epoch milliseconds.
type Clock interface {
	NowMs() int64
}

// System is the production clock: local wall time plus an optional
// server-time offset.
type System struct {
	mu       sync.Mutex
	offsetMs int64
}

// NewSystem creates a system clock with the given server offset
// (serverNow - localNow). Zero means uncorrected local time.
func NewSystem(offsetMs int64) *System {
	return &System{offsetMs: offsetMs}
}

func (s *System) NowMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().UnixMilli() + s.offsetMs
}

// SetOffset updates the server-time correction, e.g. after a ping.
func (s *System) SetOffset(offsetMs int64) {
	s.mu.Lock()
	s.offsetMs = offsetMs
	s.mu.Unlock()
}

// Manual is a hand-driven clock for tests.
type Manual struct {
	mu sync.Mutex
	ms int64
}

// NewManual creates a manual clock at the given instant.
func NewManual(startMs int64) *Manual {
	return &Manual{ms: startMs}
}

func (m *Manual) NowMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ms
}

// Advance moves the clock forward by d milliseconds.
func (m *Manual) Advance(d int64) {
	m.mu.Lock()
	m.ms += d
	m.mu.Unlock()
}

// Set jumps the clock to an absolute instant.
func (m *Manual) Set(ms int64) {
	m.mu.Lock()
	m.ms = ms
	m.mu.Unlock()
}
