package modal

import (
	"sync"
	"time"
)

// manualTimer captures the auto-close callback so tests decide when it fires.
type manualTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
}

func (m *manualTimer) AfterFunc(d time.Duration, f func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	m.fn = f
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.stopped = true
		return true
	}
}

func (m *manualTimer) Fire() {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (m *manualTimer) Scheduled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fn != nil
}
