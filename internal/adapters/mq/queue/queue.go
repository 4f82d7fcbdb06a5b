// Package queue provides the bounded mailbox feeding the sync actor.
//
// Identity events, fetch completions and user commands all enter through
// one mailbox consumed by a single goroutine; that is what serializes every
// state write without locking.
package queue

import (
	"context"
	"sync"

	"github.com/jobkit/synccore/pkg/metrics"
)

const defaultCapacity = 1024

// Mailbox is a bounded, closeable in-memory queue.
type Mailbox[T any] struct {
	messages chan T
	capacity int

	mu     sync.RWMutex
	closed bool
}

// Option applies a configuration option to a Mailbox.
type Option func(*options)

type options struct {
	capacity int
}

// WithCapacity bounds the mailbox.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// New creates a mailbox.
func New[T any](opts ...Option) *Mailbox[T] {
	o := options{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	return &Mailbox[T]{
		messages: make(chan T, o.capacity),
		capacity: o.capacity,
	}
}

// Enqueue posts a message, blocking until the consumer makes room. Every
// message carries state the consumer must see (identity events, fetch
// completions, write results), so a full mailbox is backpressure, never a
// drop. Returns false only when the mailbox is closed or ctx is done.
func (m *Mailbox[T]) Enqueue(ctx context.Context, msg T) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		metrics.RecordMailboxDrop()
		return false
	}

	select {
	case m.messages <- msg:
		metrics.RecordMailboxEnqueue()
		metrics.UpdateMailboxDepth(len(m.messages))
		return true
	case <-ctx.Done():
		metrics.RecordMailboxDrop()
		return false
	}
}

// Dequeue returns the receive channel. It is closed when the mailbox is
// closed and drained.
func (m *Mailbox[T]) Dequeue() <-chan T {
	return m.messages
}

// Len returns the current backlog.
func (m *Mailbox[T]) Len() int {
	return len(m.messages)
}

// Close stops accepting messages and closes the receive channel once.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.messages)
	metrics.UpdateMailboxDepth(0)
}

// IsClosed reports whether Close has been called.
func (m *Mailbox[T]) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
