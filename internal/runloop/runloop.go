// Package runloop serializes state mutation onto a single goroutine.
//
// Every component that owns loop-confined state (party session caches, FTUE
// queue cursor, user info pending handler) receives a Scheduler and only
// touches that state from functions it posted. Backend calls block on worker
// goroutines and post their results back.
package runloop

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("runloop: closed")

type Scheduler interface {
	// Post queues fn to run on the next tick. It reports false when the
	// scheduler no longer accepts work.
	Post(fn func()) bool
}

// Runner executes blocking work. Production code uses Go; tests use Inline so
// completions land on a Manual loop deterministically.
type Runner func(fn func())

func Go(fn func()) { go fn() }

func Inline(fn func()) { fn() }

type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}

	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	return true
}

// Run drains posted work until ctx is done. Work queued after cancellation is
// dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.close()

	for {
		for _, fn := range l.take() {
			if ctx.Err() != nil {
				break
			}

			fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := l.queue
	l.queue = nil
	return batch
}

func (l *Loop) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.queue = nil
}

// After posts fn to s once d has elapsed. The returned stop reports whether it
// prevented the post.
func After(s Scheduler, d time.Duration, fn func()) (stop func() bool) {
	t := time.AfterFunc(d, func() {
		s.Post(fn)
	})

	return t.Stop
}

// Manual is a Scheduler driven explicitly by the caller.
type Manual struct {
	mu    sync.Mutex
	queue []func()
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.queue = append(m.queue, fn)
	return true
}

func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.queue)
}

// Step runs one tick: the work that was queued when Step was called. Work
// posted while stepping waits for the next tick.
func (m *Manual) Step() int {
	m.mu.Lock()
	batch := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, fn := range batch {
		fn()
	}

	return len(batch)
}

// Drain steps until nothing is queued and returns how many functions ran.
func (m *Manual) Drain() int {
	total := 0
	for {
		n := m.Step()
		if n == 0 {
			return total
		}

		total += n
	}
}
