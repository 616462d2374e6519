// Package actor provides the mailbox primitive the four pipeline actors
// communicate through. Each actor runs a single-threaded loop over its own
// mailbox; senders never block, so the component graph may be cyclic without
// risk of deadlock.
package actor

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("mailbox closed")

// Mailbox is an unbounded FIFO queue with a single consumer.
// Messages from one sender are received in send order.
type Mailbox[T any] struct {
	mu     sync.Mutex
	ready  *sync.Cond
	queue  []T
	closed bool
}

// NewMailbox builds an empty open mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	m := &Mailbox[T]{}
	m.ready = sync.NewCond(&m.mu)
	return m
}

// Send enqueues a message. It never blocks.
func (m *Mailbox[T]) Send(msg T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.queue = append(m.queue, msg)
	m.ready.Signal()
	return nil
}

// Receive blocks until a message is available and returns it. The second
// result is false once the mailbox is closed and drained.
func (m *Mailbox[T]) Receive() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 && !m.closed {
		m.ready.Wait()
	}
	if len(m.queue) == 0 {
		var zero T
		return zero, false
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, true
}

// Close rejects further sends. Already-enqueued messages can still be
// received; Receive reports exhaustion after the queue drains.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.ready.Broadcast()
}

// Len reports the number of queued messages.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
