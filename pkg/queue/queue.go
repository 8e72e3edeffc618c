// Package queue holds the online/offline state of a client and the FIFO
// buffer of mutating requests deferred while offline.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fruitsalade/rested/internal/metrics"
)

// Pending is a mutating request waiting for the client to come back online.
type Pending struct {
	ID       string
	Method   string
	URL      string
	Body     any
	Headers  map[string]string
	Enqueued time.Time

	// Replay re-issues the request and binds its outcome to the caller that
	// originally issued it.
	Replay func(ctx context.Context)
}

// NewPending creates a pending request with a fresh ID.
func NewPending(method, url string, body any, headers map[string]string, replay func(ctx context.Context)) *Pending {
	return &Pending{
		ID:       uuid.NewString(),
		Method:   method,
		URL:      url,
		Body:     body,
		Headers:  headers,
		Enqueued: time.Now(),
		Replay:   replay,
	}
}

// Queue tracks connectivity and buffers pending requests while offline.
type Queue struct {
	mu      sync.Mutex
	offline bool
	pending []*Pending
}

// New creates a queue in the given state.
func New(offline bool) *Queue {
	metrics.SetOnline(!offline)
	return &Queue{offline: offline}
}

// IsOnline reports whether the queue is in the online state.
func (q *Queue) IsOnline() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.offline
}

// Offline switches to the offline state. Nothing is drained.
func (q *Queue) Offline() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.offline = true
	metrics.SetOnline(false)
}

// Online switches to the online state and returns every pending request in
// the order it was enqueued, leaving the queue empty. Calling Online while
// already online returns nil.
func (q *Queue) Online() []*Pending {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.offline {
		return nil
	}
	q.offline = false
	drained := q.pending
	q.pending = nil

	metrics.SetOnline(true)
	metrics.SetQueueDepth(0)
	return drained
}

// Enqueue appends p if the queue is offline. It returns false when online,
// in which case the caller should send the request directly.
func (q *Queue) Enqueue(p *Pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.offline {
		return false
	}
	q.pending = append(q.pending, p)

	metrics.RecordQueued()
	metrics.SetQueueDepth(len(q.pending))
	return true
}

// Requeue puts ps back at the head of the queue, ahead of anything enqueued
// since the last drain, if the queue is offline. It returns false when
// online, in which case the caller should keep replaying.
func (q *Queue) Requeue(ps []*Pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.offline {
		return false
	}
	q.pending = append(append(make([]*Pending, 0, len(ps)+len(q.pending)), ps...), q.pending...)

	metrics.SetQueueDepth(len(q.pending))
	return true
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// List returns a copy of the pending requests in FIFO order.
func (q *Queue) List() []*Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Pending, len(q.pending))
	copy(out, q.pending)
	return out
}
