package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process notification queue for development and
// testing. It implements the same producing and consuming interfaces as
// RedisQueue.
type MemoryQueue struct {
	ch     chan uuid.UUID
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates a queue buffering up to capacity ids.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{ch: make(chan uuid.UUID, max(capacity, 1))}
}

// EnqueueNotification pushes a notification id onto the queue. Blocks when
// the buffer is full.
func (q *MemoryQueue) EnqueueNotification(ctx context.Context, id uuid.UUID) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue blocks until an id is available or ctx is done. A closed and
// drained queue returns ErrQueueClosed.
func (q *MemoryQueue) Dequeue(ctx context.Context) (uuid.UUID, error) {
	select {
	case id, ok := <-q.ch:
		if !ok {
			return uuid.Nil, ErrQueueClosed
		}
		return id, nil
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

// Len reports the number of buffered ids.
func (q *MemoryQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}

// Close stops accepting new ids. Buffered ids can still be dequeued.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
