// Package workerchan implements the bounded multi-producer, single-consumer
// channel the storage worker uses to receive requests and report results,
// plus the cross-thread wakeup handle that lets a worker goroutine tell
// the single-threaded engine "a result is ready" without the engine
// polling.
package workerchan

import "errors"

// ErrFull is returned by TrySend when the channel has no spare capacity.
var ErrFull = errors.New("workerchan: channel full")

// Signaler is the wakeup half a Requester pokes after every successful
// enqueue. The reactor satisfies it directly; Wakeup is a standalone
// in-process implementation.
type Signaler interface {
	Signal()
}

// Requester is the producer side: effects call Send (or TrySend) to hand
// a request to the worker.
type Requester[T any] struct {
	ch     chan T
	wakeup Signaler
}

// Responder is the consumer side the worker goroutine reads from.
type Responder[T any] struct {
	ch chan T
}

// New returns a bound Requester/Responder pair with the given capacity.
// wakeup, if non-nil, is signaled every time Send or TrySend successfully
// enqueues a value, so the consumer's reactor can wake on it.
func New[T any](capacity int, wakeup Signaler) (*Requester[T], *Responder[T]) {
	ch := make(chan T, capacity)
	return &Requester[T]{ch: ch, wakeup: wakeup}, &Responder[T]{ch: ch}
}

// Send blocks until there is room for v. The callers that use Send are
// admission-controlled to at most the channel's capacity in outstanding
// values, so blocking here is a scheduling artifact, not data loss.
func (r *Requester[T]) Send(v T) {
	r.ch <- v
	if r.wakeup != nil {
		r.wakeup.Signal()
	}
}

// TrySend enqueues v without blocking, returning ErrFull if there is no
// room.
func (r *Requester[T]) TrySend(v T) error {
	select {
	case r.ch <- v:
		if r.wakeup != nil {
			r.wakeup.Signal()
		}
		return nil
	default:
		return ErrFull
	}
}

// Recv blocks until a value is available.
func (r *Responder[T]) Recv() T {
	return <-r.ch
}

// TryRecv drains one value without blocking, reporting whether one was
// available.
func (r *Responder[T]) TryRecv() (T, bool) {
	select {
	case v := <-r.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the underlying channel for consumers that select over
// several sources at once.
func (r *Responder[T]) C() <-chan T {
	return r.ch
}

// Wakeup is a coalescing cross-thread signal: any number of Signal calls
// between two receives collapse to a single pending wakeup, matching how
// a self-pipe or eventfd-backed WAKE token behaves in the reactor.
type Wakeup struct {
	ch chan struct{}
}

// NewWakeup returns a Wakeup with room for exactly one pending signal.
func NewWakeup() *Wakeup {
	return &Wakeup{ch: make(chan struct{}, 1)}
}

// Signal marks the wakeup pending. Non-blocking: if one is already
// pending, this is a no-op.
func (w *Wakeup) Signal() {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// C returns the channel to select on to observe a pending wakeup.
// Receiving from it clears the pending state.
func (w *Wakeup) C() <-chan struct{} {
	return w.ch
}
