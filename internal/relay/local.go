package relay

import (
	"context"
	"sync"
)

// LocalRelay delivers events inside a single process
type LocalRelay struct {
	mu     sync.RWMutex
	subs   map[chan *Event]struct{}
	closed bool
}

func NewLocalRelay() *LocalRelay {
	return &LocalRelay{subs: make(map[chan *Event]struct{})}
}

func (l *LocalRelay) Publish(ctx context.Context, event *Event) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for ch := range l.subs {
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Subscriber too slow; drop rather than block the publisher
		}
	}
	return nil
}

func (l *LocalRelay) Subscribe(ctx context.Context) (<-chan *Event, error) {
	ch := make(chan *Event, 256)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		close(ch)
		return ch, nil
	}
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.remove(ch)
	}()

	return ch, nil
}

func (l *LocalRelay) remove(ch chan *Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[ch]; ok {
		delete(l.subs, ch)
		close(ch)
	}
}

func (l *LocalRelay) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ch := range l.subs {
		delete(l.subs, ch)
		close(ch)
	}
	l.closed = true
	return nil
}
