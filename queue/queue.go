// Package queue implements the in-memory priority queue feeding the
// download worker. Ordering is strictly by priority ascending (1 is most
// urgent) with FIFO order within a priority. The queue is not durable:
// recovery after a crash happens through the persisted video records, not
// through the queue itself.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
)

// Priorities used by the discovery pipeline and the retry policy.
const (
	PriorityHigh   = 1
	PriorityNormal = 5
)

// ErrClosed is returned by Pop once the queue has been closed and drained.
var ErrClosed = errors.New("queue closed")

// Job is one queued download: which video to fetch and how many times it
// has already been attempted.
type Job struct {
	VideoKey string
	Priority int
	Attempts int

	seq uint64
}

type jobHeap []Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	*h = old[:n-1]
	return job
}

// Queue is safe for concurrent producers and a single blocking consumer.
type Queue struct {
	mu     sync.Mutex
	items  jobHeap
	seq    uint64
	closed bool

	// wake carries at most one pending signal for the single consumer.
	wake chan struct{}
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push enqueues a download job. Pushing to a closed queue is a no-op.
func (q *Queue) Push(videoKey string, priority, attempts int) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.seq++
	heap.Push(&q.items, Job{VideoKey: videoKey, Priority: priority, Attempts: attempts, seq: q.seq})
	q.mu.Unlock()

	q.signal()
}

// Pop blocks until a job is available, the context is cancelled, or the
// queue is closed and empty.
func (q *Queue) Pop(ctx context.Context) (Job, error) {
	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			job := heap.Pop(&q.items).(Job)
			q.mu.Unlock()
			return job, nil
		}
		if q.closed {
			q.mu.Unlock()
			return Job{}, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-q.wake:
		}
	}
}

// Len reports the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close stops accepting new jobs; Pop keeps returning queued jobs until the
// queue is empty, then returns ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
