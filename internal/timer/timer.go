package timer

import (
	"errors"
	"math"
	"sync"
)

var (
	ErrTimerEnded      = errors.New("timer has ended")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrInvalidExtend   = errors.New("extension must be positive and fit the session length limit")
)

// MaxSeconds is the longest session a timer can hold; it matches the
// INTEGER columns the state is persisted to.
const MaxSeconds = math.MaxInt32

// Warning identifies one of the one-shot threshold warnings
type Warning string

const (
	WarningFifteenMin Warning = "fifteen_min"
	WarningFiveMin    Warning = "five_min"
	WarningOneMin     Warning = "one_min"
)

// Threshold returns the remaining seconds at which w fires
func (w Warning) Threshold() int {
	switch w {
	case WarningFifteenMin:
		return 15 * 60
	case WarningFiveMin:
		return 5 * 60
	case WarningOneMin:
		return 60
	}
	return 0
}

// thresholds are checked in descending order
var thresholds = []Warning{WarningFifteenMin, WarningFiveMin, WarningOneMin}

type Warnings struct {
	FifteenMin bool `json:"fifteen_min"`
	FiveMin    bool `json:"five_min"`
	OneMin     bool `json:"one_min"`
}

func (w *Warnings) fired(warning Warning) bool {
	switch warning {
	case WarningFifteenMin:
		return w.FifteenMin
	case WarningFiveMin:
		return w.FiveMin
	case WarningOneMin:
		return w.OneMin
	}
	return true
}

func (w *Warnings) mark(warning Warning) {
	switch warning {
	case WarningFifteenMin:
		w.FifteenMin = true
	case WarningFiveMin:
		w.FiveMin = true
	case WarningOneMin:
		w.OneMin = true
	}
}

// Snapshot is a point-in-time copy of the timer state
type Snapshot struct {
	TotalSeconds     int      `json:"total_seconds"`
	RemainingSeconds int      `json:"remaining_seconds"`
	Active           bool     `json:"is_active"`
	Paused           bool     `json:"is_paused"`
	Ended            bool     `json:"is_ended"`
	Warnings         Warnings `json:"warnings"`
}

// Callbacks are invoked outside the timer lock, on the goroutine that
// caused the event.
type Callbacks struct {
	OnWarning func(w Warning, s Snapshot)
	OnEnd     func(s Snapshot)
}

// SessionTimer counts a consultation down one second per Tick.
// Invariant: 0 <= remaining <= total.
type SessionTimer struct {
	mu        sync.Mutex
	total     int
	remaining int
	active    bool
	paused    bool
	ended     bool
	warnings  Warnings
	callbacks Callbacks
}

// New creates an inactive timer for the given number of seconds
func New(totalSeconds int, cb Callbacks) (*SessionTimer, error) {
	if totalSeconds <= 0 || totalSeconds > MaxSeconds {
		return nil, ErrInvalidDuration
	}
	return &SessionTimer{
		total:     totalSeconds,
		remaining: totalSeconds,
		callbacks: cb,
	}, nil
}

// Restore rebuilds a timer from persisted state. Active is cleared; the
// caller decides whether to Start again.
func Restore(s Snapshot, cb Callbacks) (*SessionTimer, error) {
	if s.TotalSeconds <= 0 || s.TotalSeconds > MaxSeconds {
		return nil, ErrInvalidDuration
	}

	remaining := s.RemainingSeconds
	if remaining < 0 {
		remaining = 0
	}
	if remaining > s.TotalSeconds {
		remaining = s.TotalSeconds
	}

	return &SessionTimer{
		total:     s.TotalSeconds,
		remaining: remaining,
		paused:    s.Paused,
		ended:     s.Ended || remaining == 0,
		warnings:  s.Warnings,
		callbacks: cb,
	}, nil
}

// Start activates the countdown. No-op when already active.
func (t *SessionTimer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		return ErrTimerEnded
	}
	if t.active {
		return nil
	}
	t.active = true
	t.paused = false
	return nil
}

func (t *SessionTimer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		t.paused = true
	}
}

func (t *SessionTimer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		t.paused = false
	}
}

// Extend adds minutes to both the total and the remaining time.
// The only bound is MaxSeconds for the resulting total.
func (t *SessionTimer) Extend(minutes int) error {
	if minutes <= 0 {
		return ErrInvalidExtend
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ended {
		return ErrTimerEnded
	}
	if minutes > (MaxSeconds-t.total)/60 {
		return ErrInvalidExtend
	}
	t.total += minutes * 60
	t.remaining += minutes * 60
	return nil
}

// Stop deactivates the timer without firing the end callback
func (t *SessionTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	t.ended = true
}

// Tick advances the countdown by one second when active and not paused
func (t *SessionTimer) Tick() Snapshot {
	t.mu.Lock()

	if !t.active || t.paused || t.ended {
		s := t.snapshotLocked()
		t.mu.Unlock()
		return s
	}

	prev := t.remaining
	if t.remaining > 0 {
		t.remaining--
	}

	var fired []Warning
	for _, w := range thresholds {
		th := w.Threshold()
		if prev > th && t.remaining <= th && !t.warnings.fired(w) {
			t.warnings.mark(w)
			fired = append(fired, w)
		}
	}

	endNow := false
	if t.remaining == 0 {
		t.active = false
		t.ended = true
		endNow = true
	}

	s := t.snapshotLocked()
	cb := t.callbacks
	t.mu.Unlock()

	if cb.OnWarning != nil {
		for _, w := range fired {
			cb.OnWarning(w, s)
		}
	}
	if endNow && cb.OnEnd != nil {
		cb.OnEnd(s)
	}
	return s
}

func (t *SessionTimer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *SessionTimer) snapshotLocked() Snapshot {
	return Snapshot{
		TotalSeconds:     t.total,
		RemainingSeconds: t.remaining,
		Active:           t.active,
		Paused:           t.paused,
		Ended:            t.ended,
		Warnings:         t.warnings,
	}
}
