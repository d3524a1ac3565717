// Package events carries client lifecycle, lobby, party and FTUE events
// between components that do not share a run loop.
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrBusClosed    = errors.New("events: bus closed")
	ErrNilEvent     = errors.New("events: nil event")
	ErrWaitTimeout  = errors.New("events: waiter timed out")
	ErrWaitCanceled = errors.New("events: waiter canceled")
)

type Predicate func(Event) bool

type waiter struct {
	pred Predicate
	ch   chan Event
}

type subscriber struct {
	pred    Predicate
	ch      chan Event
	dropped atomic.Uint64
}

// Subscription is a handle to a bus subscription. Cancel is idempotent and
// closes C.
type Subscription struct {
	C      <-chan Event
	sub    *subscriber
	cancel func()
	once   sync.Once
}

func (s *Subscription) Cancel() {
	if s == nil {
		return
	}

	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Dropped reports how many events were discarded because C was full.
func (s *Subscription) Dropped() uint64 {
	if s == nil || s.sub == nil {
		return 0
	}

	return s.sub.dropped.Load()
}

type Bus struct {
	mu      sync.Mutex
	closed  bool
	nextID  uint64
	subs    map[uint64]*subscriber
	waiters map[uint64]*waiter
}

func NewBus() *Bus {
	return &Bus{
		subs:    make(map[uint64]*subscriber),
		waiters: make(map[uint64]*waiter),
	}
}

func (b *Bus) Subscribe(buffer int) (*Subscription, error) {
	return b.SubscribeMatching(buffer, nil)
}

// SubscribeMatching delivers only events accepted by pred. A nil pred accepts
// everything.
func (b *Bus) SubscribeMatching(buffer int, pred Predicate) (*Subscription, error) {
	if buffer <= 0 {
		buffer = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++

	s := &subscriber{pred: pred, ch: make(chan Event, buffer)}
	b.subs[id] = s

	sub := &Subscription{C: s.ch, sub: s}
	sub.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		stored, ok := b.subs[id]
		if !ok {
			return
		}

		delete(b.subs, id)
		close(stored.ch)
	}

	return sub, nil
}

// Emit fans evt out without blocking. Slow subscribers lose events.
func (b *Bus) Emit(evt Event) error {
	if evt == nil {
		return ErrNilEvent
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}

	for _, s := range b.subs {
		if s.pred != nil && !s.pred(evt) {
			continue
		}

		select {
		case s.ch <- evt:
		default:
			s.dropped.Add(1)
		}
	}

	for id, w := range b.waiters {
		if w.pred != nil && !w.pred(evt) {
			continue
		}

		delete(b.waiters, id)
		w.ch <- evt
		close(w.ch)
	}

	return nil
}

// WaitFor blocks until an event matching pred is emitted.
func (b *Bus) WaitFor(ctx context.Context, pred Predicate) (Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	w := &waiter{
		pred: pred,
		ch:   make(chan Event, 1),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++
	b.waiters[id] = w
	b.mu.Unlock()

	select {
	case evt, ok := <-w.ch:
		if ok {
			return evt, nil
		}

		if b.IsClosed() {
			return nil, ErrBusClosed
		}

		return nil, waitErr(ctx)
	case <-ctx.Done():
		b.mu.Lock()
		stored, ok := b.waiters[id]
		if ok {
			delete(b.waiters, id)
			close(stored.ch)
		}
		b.mu.Unlock()

		return nil, waitErr(ctx)
	}
}

func waitErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrWaitTimeout
	}

	return ErrWaitCanceled
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.ch)
	}

	for id, w := range b.waiters {
		delete(b.waiters, id)
		close(w.ch)
	}
}

func (b *Bus) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closed
}
