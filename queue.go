package trafficlight

import (
	"context"
	"sync"
)

// BlockingQueue is an unbounded FIFO that hands values from producers to
// consumers. Send never blocks. Receive parks the caller on a condition
// variable until a value is available.
//
// All methods are safe for concurrent use. Each value is delivered to exactly
// one receiver.
type BlockingQueue[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []T
}

// NewBlockingQueue creates an empty queue.
func NewBlockingQueue[T any]() *BlockingQueue[T] {
	q := &BlockingQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send appends v to the tail and wakes one waiting receiver.
func (q *BlockingQueue[T]) Send(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.cond.Signal()
}

// Receive removes and returns the head value, blocking until one is sent.
// It blocks forever if nothing is ever sent.
func (q *BlockingQueue[T]) Receive() T {
	v, _ := q.ReceiveContext(context.Background())
	return v
}

// ReceiveContext is like Receive but gives up when ctx is done. A value that
// is already queued is returned even if ctx is done. On cancellation it
// returns the zero value and ctx.Err().
func (q *BlockingQueue[T]) ReceiveContext(ctx context.Context) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 && ctx.Done() != nil {
		// Wait cannot select on ctx, so wake every waiter on cancellation
		// and let each one re-check its own context.
		stop := context.AfterFunc(ctx, func() {
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		})
		defer stop()
	}

	for len(q.items) == 0 {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, err
		}
		q.cond.Wait()
	}

	var zero T
	v := q.items[0]
	q.items[0] = zero // drop the reference held by the backing array
	q.items = q.items[1:]
	return v, nil
}

// Len returns the number of queued values.
func (q *BlockingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
