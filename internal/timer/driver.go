package timer

import (
	"context"
	"sync"
	"time"
)

// TickInterval is the real-time length of one countdown step
const TickInterval = time.Second

// Driver ticks a SessionTimer from a clock on its own goroutine.
// Pausing is a flag on the timer; the driver keeps ticking.
type Driver struct {
	timer  *SessionTimer
	clock  Clock
	onTick func(Snapshot)

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewDriver(t *SessionTimer, clock Clock, onTick func(Snapshot)) *Driver {
	if clock == nil {
		clock = RealClock{}
	}
	return &Driver{
		timer:  t,
		clock:  clock,
		onTick: onTick,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run blocks until the timer ends, ctx is cancelled or Stop is called
func (d *Driver) Run(ctx context.Context) {
	ticker := d.clock.NewTicker(TickInterval)
	defer func() {
		ticker.Stop()
		close(d.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C():
			s := d.timer.Tick()
			if d.onTick != nil {
				d.onTick(s)
			}
			if s.Ended {
				return
			}
		}
	}
}

func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Done is closed once Run has returned
func (d *Driver) Done() <-chan struct{} {
	return d.done
}
