package bridge

import (
	"context"
	"sync"

	"github.com/aretw0/virtuoso/pkg/domain"
)

type listener struct {
	ch   chan domain.Command
	done chan struct{}
}

// Broadcaster is a CommandSink that fans commands out to attached listeners,
// such as SSE streams.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[*listener]struct{}
	buffer    int
}

// NewBroadcaster creates a Broadcaster whose listeners buffer up to buffer commands.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{
		listeners: make(map[*listener]struct{}),
		buffer:    buffer,
	}
}

// Listen attaches a listener. The returned func detaches it; the channel is
// never closed, so callers stop reading once detached.
func (b *Broadcaster) Listen() (<-chan domain.Command, func()) {
	l := &listener{
		ch:   make(chan domain.Command, b.buffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return l.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, l)
			b.mu.Unlock()
			close(l.done)
		})
	}
}

// Listeners returns the number of attached listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Deliver sends cmd to every listener, waiting while a listener's buffer is full.
// It fails with ErrNoTransport when nobody listens.
func (b *Broadcaster) Deliver(ctx context.Context, cmd domain.Command) error {
	b.mu.Lock()
	targets := make([]*listener, 0, len(b.listeners))
	for l := range b.listeners {
		targets = append(targets, l)
	}
	b.mu.Unlock()

	if len(targets) == 0 {
		return ErrNoTransport
	}
	for _, l := range targets {
		select {
		case l.ch <- cmd:
		case <-l.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
