package timer

import (
	"sync"
	"time"
)

// Clock abstracts wall time so the countdown can be driven deterministically
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock is backed by the time package
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// ManualClock only moves when Advance is called. Each ticker fires once per
// elapsed interval and Advance blocks until the fire is received, so the
// consumer observes every tick.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualClock) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTicker{
		c:       make(chan time.Time),
		stopped: make(chan struct{}),
		period:  d,
		next:    m.now.Add(d),
	}
	m.tickers = append(m.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing due tickers in order
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	tickers := append([]*manualTicker(nil), m.tickers...)
	m.mu.Unlock()

	for {
		var due *manualTicker
		for _, t := range tickers {
			if t.isStopped() {
				continue
			}
			if !t.next.After(target) && (due == nil || t.next.Before(due.next)) {
				due = t
			}
		}
		if due == nil {
			break
		}

		at := due.next
		due.next = due.next.Add(due.period)

		m.mu.Lock()
		m.now = at
		m.mu.Unlock()

		select {
		case due.c <- at:
		case <-due.stopped:
		}
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// Tickers returns how many tickers are still running. Tests use it to wait
// for a consumer to start before calling Advance.
func (m *ManualClock) Tickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

type manualTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
	period  time.Duration
	next    time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.once.Do(func() { close(t.stopped) })
}

func (t *manualTicker) isStopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}
