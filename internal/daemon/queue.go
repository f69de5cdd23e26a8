package daemon

import (
	"context"
	"sync"

	"github.com/hubwatch/hubwatch/internal/protocol"
)

// request pairs a decoded command with the callback that delivers its
// response back to the waiting connection.
type request struct {
	cmd     *protocol.Command
	respond func(*protocol.Response)
}

// Queue is the unbounded command queue between the IPC server and the single
// processor. Connection handlers enqueue, the processor dequeues; after Close
// every Enqueue is refused so late commands get a shutdown error instead of
// hanging.
type Queue struct {
	mu     sync.Mutex
	items  []request
	signal chan struct{}
	closed bool
}

// NewQueue creates an empty open queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Enqueue appends a request. Returns false once the queue is closed; the
// caller then answers the connection itself.
func (q *Queue) Enqueue(cmd *protocol.Command, respond func(*protocol.Response)) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, request{cmd: cmd, respond: respond})
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Dequeue blocks until a request is available, the queue is closed and
// drained, or the context is canceled. The second return is false when no
// more requests will arrive.
func (q *Queue) Dequeue(ctx context.Context) (request, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			req := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return req, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return request{}, false
		}

		select {
		case <-ctx.Done():
			return request{}, false
		case <-q.signal:
		}
	}
}

// Close marks the queue closed. Pending requests are still dequeued; new
// Enqueue calls are refused.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}
