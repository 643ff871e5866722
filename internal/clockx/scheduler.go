package clockx

import (
	"sync"
	"time"
)

// Scheduler drives periodic recomputation without tying the board to a
// rendering loop. Cancel is idempotent and stops further ticks.
type Scheduler interface {
	Ticks() <-chan time.Time
	Cancel()
}

// TickerScheduler wraps a time.Ticker.
type TickerScheduler struct {
	ticker *time.Ticker
	once   sync.Once
}

// NewTicker creates a scheduler firing every interval.
func NewTicker(interval time.Duration) *TickerScheduler {
	return &TickerScheduler{ticker: time.NewTicker(interval)}
}

func (t *TickerScheduler) Ticks() <-chan time.Time { return t.ticker.C }

func (t *TickerScheduler) Cancel() {
	t.once.Do(t.ticker.Stop)
}

// ManualScheduler fires only when Fire is called; for tests.
type ManualScheduler struct {
	ch       chan time.Time
	mu       sync.Mutex
	canceled bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{ch: make(chan time.Time, 1)}
}

func (m *ManualScheduler) Ticks() <-chan time.Time { return m.ch }

// Fire delivers one tick unless the scheduler was canceled.
func (m *ManualScheduler) Fire(at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.canceled {
		return
	}
	select {
	case m.ch <- at:
	default:
	}
}

func (m *ManualScheduler) Cancel() {
	m.mu.Lock()
	m.canceled = true
	m.mu.Unlock()
}
