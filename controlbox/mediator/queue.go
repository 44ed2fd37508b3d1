package mediator

import (
	"sync"

	"github.com/andrem20/allways-safe/controlbox/observability"
)

// Queue is the single multi-producer/single-consumer event queue: an
// unbounded FIFO internally locked by a single mutex and condition
// variable, with a shutdown signal that wakes a blocked consumer (§5
// "Shared resources").
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []Event
	shutdown bool
}

// NewQueue returns an empty, ready-to-use Queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an event and wakes the consumer. Safe for concurrent use by
// any number of producers; FIFO order is preserved only among pushes from a
// single goroutine (§5 ordering guarantees).
func (q *Queue) Push(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shutdown {
		return
	}
	q.items = append(q.items, e)
	observability.QueueDepth.Set(float64(len(q.items)))
	q.cond.Signal()
}

// Pop blocks until an event is available or the queue is shut down. The
// second return value is false only on shutdown with nothing left to drain.
func (q *Queue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.shutdown {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Event{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	observability.QueueDepth.Set(float64(len(q.items)))
	return e, true
}

// Shutdown wakes the consumer; subsequent Push calls are dropped and Pop
// drains whatever remains before reporting closed.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shutdown = true
	q.cond.Broadcast()
}
