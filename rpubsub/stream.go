package rpubsub

import (
	"context"
	"sync/atomic"
)

// Stream is a linked list of event-driven values.
// Each node is published exactly once;
// readers wait on Ready and then move to Next.
//
// If readers stop consuming the list,
// the node they hold will never be garbage collected.
type Stream[T any] struct {
	Ready chan struct{}
	Next  *Stream[T]
	Val   T
}

// NewStream returns an initialized, unpublished stream node.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{
		Ready: make(chan struct{}),
	}
}

// Publish assigns s's value and initializes s.Next.
// Then s.Ready is closed, notifying observers that
// s.Val can now be safely read.
//
// If Publish is called twice for the same s, Publish panics.
func (s *Stream[T]) Publish(t T) {
	s.Val = t
	s.Next = NewStream[T]()
	close(s.Ready)
}

// Follow calls f for every value published from s onward,
// in order, until ctx is cancelled.
func Follow[T any](ctx context.Context, s *Stream[T], f func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Ready:
			f(s.Val)
			s = s.Next
		}
	}
}

// Head tracks the unpublished tail of a Stream,
// so that late subscribers start at the next value
// rather than replaying history.
//
// Publish must only be called from one goroutine;
// Load is safe from any goroutine.
type Head[T any] struct {
	p atomic.Pointer[Stream[T]]
}

// NewHead returns a Head positioned at a fresh stream.
func NewHead[T any]() *Head[T] {
	h := new(Head[T])
	h.p.Store(NewStream[T]())
	return h
}

// Load returns the node the next value will be published to.
func (h *Head[T]) Load() *Stream[T] {
	return h.p.Load()
}

// Publish publishes t and advances the head.
func (h *Head[T]) Publish(t T) {
	s := h.p.Load()
	s.Publish(t)
	h.p.Store(s.Next)
}
