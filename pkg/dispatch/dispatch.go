package dispatch

import (
	"sync"

	tperrors "github.com/vnykmshr/taskpool/pkg/common/errors"
)

// ErrClosed is returned when attempting to operate on a closed queue.
var ErrClosed = tperrors.ErrClosed

// Stats holds counters describing queue activity.
type Stats struct {
	// SendCount is the total number of accepted send operations.
	SendCount int64

	// ReceiveCount is the total number of completed receive operations.
	ReceiveCount int64

	// Pending is the number of messages accepted but not yet received.
	Pending int
}

// Queue is an unbounded multi-producer FIFO with a single shared blocking
// receive endpoint. Any number of goroutines may send; any number may call
// Receive, but the queue's internal lock guarantees that at most one of
// them is mid-receive at a time, so every message is delivered to exactly
// one receiver.
//
// Send never blocks. Receive blocks until a message is available or the
// queue is closed and drained. Closing the queue rejects further sends
// while letting receivers drain everything accepted before the close.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	buf  []T
	head int

	closed   bool
	sent     int64
	received int64
}

// New creates an empty open queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Send appends v to the queue. It never blocks waiting for a receiver;
// acceptance is bounded only by memory. Returns ErrClosed if the queue
// has been closed.
func (q *Queue[T]) Send(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	q.buf = append(q.buf, v)
	q.sent++
	q.notEmpty.Signal()
	return nil
}

// Receive removes and returns the oldest queued message, blocking while
// the queue is empty. After Close, Receive keeps returning queued
// messages until the queue is drained and then returns ErrClosed.
func (q *Queue[T]) Receive() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.buf) && !q.closed {
		q.notEmpty.Wait()
	}

	if q.head == len(q.buf) {
		var zero T
		return zero, ErrClosed
	}

	return q.pop(), nil
}

// TryReceive removes and returns the oldest queued message without
// blocking. The second return value reports whether a message was
// available. Returns ErrClosed only when the queue is closed and drained.
func (q *Queue[T]) TryReceive() (T, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.buf) {
		var zero T
		if q.closed {
			return zero, false, ErrClosed
		}
		return zero, false, nil
	}

	return q.pop(), true, nil
}

// pop extracts the head message. Caller must hold q.mu with at least one
// message pending.
func (q *Queue[T]) pop() T {
	v := q.buf[q.head]

	// Drop the reference so drained tasks can be collected.
	var zero T
	q.buf[q.head] = zero
	q.head++

	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
	}

	q.received++
	return v
}

// Close marks the queue closed for sending and wakes every blocked
// receiver. Messages accepted before the close remain receivable.
// Returns ErrClosed if the queue is already closed.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	q.closed = true
	q.notEmpty.Broadcast()
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *Queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of messages accepted but not yet received.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) - q.head
}

// Stats returns a snapshot of queue activity counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		SendCount:    q.sent,
		ReceiveCount: q.received,
		Pending:      len(q.buf) - q.head,
	}
}
