package stream

import (
	"context"
	"sync"
)

// Replay is a single-producer, multi-consumer broadcast stage holding the
// latest value. New subscribers immediately receive the last value, if
// any. Deliveries conflate: a slow subscriber observes the newest value,
// not every intermediate one.
type Replay[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
	last   T
	has    bool
	closed bool
	first  chan struct{}
}

// NewReplay consumes src until it closes or ctx is done, broadcasting
// each value to the current subscribers.
func NewReplay[T any](ctx context.Context, src <-chan T) *Replay[T] {
	r := &Replay[T]{
		subs:  make(map[int]chan T),
		first: make(chan struct{}),
	}
	go r.run(ctx, src)
	return r
}

func (r *Replay[T]) run(ctx context.Context, src <-chan T) {
	defer r.close()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-src:
			if !ok {
				return
			}
			r.publish(v)
		}
	}
}

func (r *Replay[T]) publish(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if !r.has {
		r.has = true
		close(r.first)
	}
	r.last = v
	for _, ch := range r.subs {
		deliver(ch, v)
	}
}

// deliver pushes v into a one-slot channel, displacing a pending value.
func deliver[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (r *Replay[T]) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
}

// Subscribe returns a channel replaying the latest value and then every
// subsequent one. The subscription ends when ctx is done or the source
// closes.
func (r *Replay[T]) Subscribe(ctx context.Context) <-chan T {
	r.mu.Lock()
	ch := make(chan T, 1)
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return ch
	}
	if r.has {
		ch <- r.last
	}
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}()
	return ch
}

// Latest returns the most recent value and whether one was seen.
func (r *Replay[T]) Latest() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.has
}

// Wait blocks until the first value was published, then returns the
// latest one. It fails if ctx ends first.
func (r *Replay[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.first:
		v, _ := r.Latest()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
