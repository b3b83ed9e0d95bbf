package webhooks

import (
	"container/heap"
	"sync"
	"time"
)

// readyHeap orders jobs by (rank desc, seq asc).
type readyHeap []*Job

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if ri, rj := h[i].Priority.rank(), h[j].Priority.rank(); ri != rj {
		return ri > rj
	}
	return h[i].seq < h[j].seq
}
func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x any)   { *h = append(*h, x.(*Job)) }
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}

// delayedHeap orders jobs waiting on backoff by NextAttemptAt.
type delayedHeap []*Job

func (h delayedHeap) Len() int { return len(h) }
func (h delayedHeap) Less(i, j int) bool {
	if !h[i].NextAttemptAt.Equal(h[j].NextAttemptAt) {
		return h[i].NextAttemptAt.Before(h[j].NextAttemptAt)
	}
	return h[i].seq < h[j].seq
}
func (h delayedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *delayedHeap) Push(x any)   { *h = append(*h, x.(*Job)) }
func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return j
}

// jobQueue is a stable priority queue with ready-time gating. It is not
// safe for concurrent use.
type jobQueue struct {
	ready   readyHeap
	delayed delayedHeap
}

func (q *jobQueue) push(j *Job, now time.Time) {
	if j.NextAttemptAt.After(now) {
		heap.Push(&q.delayed, j)
		return
	}
	heap.Push(&q.ready, j)
}

// popReady returns the highest priority job whose NextAttemptAt <= now.
func (q *jobQueue) popReady(now time.Time) *Job {
	for q.delayed.Len() > 0 && !q.delayed[0].NextAttemptAt.After(now) {
		heap.Push(&q.ready, heap.Pop(&q.delayed))
	}
	if q.ready.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.ready).(*Job)
}

func (q *jobQueue) len() int { return q.ready.Len() + q.delayed.Len() }

func (q *jobQueue) oldest() (t time.Time) {
	for _, set := range [][]*Job{q.ready, q.delayed} {
		for _, j := range set {
			if t.IsZero() || j.CreatedAt.Before(t) {
				t = j.CreatedAt
			}
		}
	}
	return t
}

func (q *jobQueue) clear() int {
	n := q.len()
	q.ready = nil
	q.delayed = nil
	return n
}

// sessionQueue guards the jobs of one session. At most one job is in flight.
type sessionQueue struct {
	id string

	mu       sync.Mutex
	jobs     jobQueue
	inFlight *Job
	// epoch is bumped by clear so late completions can be recognised.
	epoch uint64
	seq   uint64
}

func newSessionQueue(id string) *sessionQueue {
	return &sessionQueue{id: id}
}

// enqueue appends a fresh job unless the queue already holds limit jobs.
func (q *sessionQueue) enqueue(j *Job, limit int, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit > 0 && q.jobs.len() >= limit {
		return false
	}
	q.seq++
	j.seq = q.seq
	q.jobs.push(j, now)
	return true
}

// claim pops the next ready job and marks it in flight.
func (q *sessionQueue) claim(now time.Time) (*Job, uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight != nil {
		return nil, 0
	}
	j := q.jobs.popReady(now)
	if j == nil {
		return nil, 0
	}
	j.Status = StatusInFlight
	j.Attempt++
	q.inFlight = j
	return j, q.epoch
}

// unclaim puts an in-flight job back untouched. It reports false if the
// queue was cleared in the meantime.
func (q *sessionQueue) unclaim(j *Job, epoch uint64, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == j {
		q.inFlight = nil
	}
	if epoch != q.epoch {
		return false
	}
	j.Attempt--
	j.Status = StatusPending
	q.jobs.push(j, now)
	return true
}

// settle releases the in-flight slot. When requeue is set the job goes back
// with its original priority and sequence. It reports false if the queue was
// cleared while the job was in flight, in which case nothing is requeued.
func (q *sessionQueue) settle(j *Job, epoch uint64, requeue bool, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == j {
		q.inFlight = nil
	}
	if epoch != q.epoch {
		return false
	}
	if requeue {
		q.jobs.push(j, now)
	}
	return true
}

func (q *sessionQueue) clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.epoch++
	return q.jobs.clear()
}

// idle reports whether nothing is queued or in flight.
func (q *sessionQueue) idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs.len() == 0 && q.inFlight == nil
}

type queueSnapshot struct {
	depth    int
	inFlight bool
	oldest   time.Time
}

func (q *sessionQueue) snapshot() queueSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queueSnapshot{
		depth:    q.jobs.len(),
		inFlight: q.inFlight != nil,
		oldest:   q.jobs.oldest(),
	}
}
