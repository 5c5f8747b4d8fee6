package bus

import (
	"context"
	"sync"
	"time"

	"tradepipe/internal/protocol"
	"tradepipe/pkg/exception"
)

// Event is the unit passed through the in-memory bus.
type Event struct {
	Message protocol.Message
	Source  string
	Recv    time.Time
}

// Queue is a bounded event queue funnelling many producers into one consumer.
type Queue struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) error {
	select {
	case <-q.done:
		return exception.ErrQueueClosed
	default:
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return exception.ErrQueueFull
	}
}

// Publish enqueues an event, waiting for room until ctx is done or the
// queue is closed.
func (q *Queue) Publish(ctx context.Context, e Event) error {
	select {
	case <-q.done:
		return exception.ErrQueueClosed
	default:
	}
	select {
	case q.ch <- e:
		return nil
	case <-q.done:
		return exception.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len is the number of buffered events.
func (q *Queue) Len() int { return len(q.ch) }

// Close stops the queue from accepting new events. Buffered events are still
// delivered by Run.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}

// Run consumes events until the context is done, or the queue is closed and
// drained.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-q.ch:
			handler(e)
		case <-q.done:
			for {
				select {
				case e := <-q.ch:
					handler(e)
				default:
					return
				}
			}
		}
	}
}
