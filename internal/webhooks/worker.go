package webhooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"wahook/internal/events"
	"wahook/internal/metrics"
)

// dispatcher owns the session queues and runs the delivery workers.
// Only queue mutation is locked; no lock is held across an HTTP call.
type dispatcher struct {
	exec     executor
	stats    *Stats
	policy   RetryPolicy
	pub      events.Publisher
	limiter  *rate.Limiter
	failures *failureLog
	log      zerolog.Logger
	now      func() time.Time

	maxDepth     int
	pollInterval time.Duration

	mu     sync.RWMutex
	queues map[string]*sessionQueue
	ring   []string // sessions in first-seen order, for round robin
	cursor atomic.Uint64

	wake chan struct{}
}

func (d *dispatcher) lookup(sessionID string) *sessionQueue {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.queues[sessionID]
}

// enqueue holds d.mu while pushing so forget cannot drop the queue underneath.
func (d *dispatcher) enqueue(j *Job) error {
	now := d.now()
	d.mu.RLock()
	q := d.queues[j.SessionID]
	ok := q != nil && q.enqueue(j, d.maxDepth, now)
	d.mu.RUnlock()
	if q == nil {
		d.mu.Lock()
		if q = d.queues[j.SessionID]; q == nil {
			q = newSessionQueue(j.SessionID)
			d.queues[j.SessionID] = q
			d.ring = append(d.ring, j.SessionID)
		}
		ok = q.enqueue(j, d.maxDepth, now)
		d.mu.Unlock()
	}
	if !ok {
		return fmt.Errorf("session %s: %w", j.SessionID, ErrQueueFull)
	}
	metrics.WebhookQueueDepth.Inc()
	d.signal()
	return nil
}

// forget drops an idle session queue so the round robin stops visiting it.
// The next enqueue for the session recreates it.
func (d *dispatcher) forget(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := d.queues[sessionID]
	if q == nil || !q.idle() {
		return false
	}
	delete(d.queues, sessionID)
	for i, id := range d.ring {
		if id == sessionID {
			d.ring = append(d.ring[:i], d.ring[i+1:]...)
			break
		}
	}
	return true
}

// signal wakes one idle worker.
func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// next picks the next eligible session round robin and claims its job.
func (d *dispatcher) next(now time.Time) (*sessionQueue, *Job, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := len(d.ring)
	if n == 0 {
		return nil, nil, 0
	}
	start := int(d.cursor.Load() % uint64(n))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		q := d.queues[d.ring[idx]]
		if j, epoch := q.claim(now); j != nil {
			d.cursor.Store(uint64(idx + 1))
			return q, j, epoch
		}
	}
	return nil, nil, 0
}

// run is one worker. It returns when ctx is cancelled.
func (d *dispatcher) run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		if ctx.Err() != nil {
			return nil
		}
		q, job, epoch := d.next(d.now())
		if job == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-d.wake:
			case <-ticker.C:
			}
			continue
		}
		// wakes coalesce; pass one on so a spare worker looks for more
		d.signal()
		metrics.WebhookQueueDepth.Dec()
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				if q.unclaim(job, epoch, d.now()) {
					metrics.WebhookQueueDepth.Inc()
				}
				return nil
			}
		}
		// in-flight attempts finish on shutdown, bounded by their timeout
		d.process(context.WithoutCancel(ctx), q, job, epoch)
	}
}

func (d *dispatcher) process(ctx context.Context, q *sessionQueue, job *Job, epoch uint64) {
	metrics.WebhookInFlight.Inc()
	out := d.attempt(ctx, job)
	metrics.WebhookInFlight.Dec()

	d.stats.RecordLatency(job.SessionID, out.Latency)
	metrics.WebhookAttempts.WithLabelValues(job.EventType, string(out.Kind)).Inc()
	metrics.WebhookLatency.WithLabelValues(job.EventType, string(out.Kind)).Observe(float64(out.Latency.Milliseconds()))

	now := d.now()
	evt := events.Event{
		SessionID:  job.SessionID,
		JobID:      job.ID,
		EventType:  job.EventType,
		Attempt:    job.Attempt,
		StatusCode: out.StatusCode,
		LatencyMs:  out.Latency.Milliseconds(),
		At:         now,
	}
	log := d.log.With().
		Str("session_id", job.SessionID).
		Str("job_id", job.ID).
		Str("event_type", job.EventType).
		Int("attempt", job.Attempt).
		Logger()
	defer d.signal()

	if out.Success() {
		job.Status = StatusDelivered
		q.settle(job, epoch, false, now)
		d.stats.RecordSent(job.SessionID)
		metrics.WebhookJobs.WithLabelValues(job.EventType, "delivered").Inc()
		evt.Type = events.TypeDelivered
		events.PublishSession(d.pub, evt)
		return
	}

	err := out.Err
	if err == nil {
		err = &DeliveryError{Kind: out.Kind, StatusCode: out.StatusCode}
	}
	evt.Error = err.Error()
	dec := d.policy.Decide(job.Attempt, out.Kind, job.target.Retry)
	job.LastError = evt.Error
	if dec.Retry {
		next := now.Add(dec.Delay)
		job.Status = StatusPending
		job.NextAttemptAt = next
		evt.NextAttemptAt = &next
	}
	// the job may be claimed by another worker once settled; only evt is used below
	if !q.settle(job, epoch, dec.Retry, now) {
		d.stats.RecordDiscarded(evt.SessionID)
		metrics.WebhookJobs.WithLabelValues(evt.EventType, "discarded").Inc()
		log.Debug().Err(err).Msg("webhook outcome discarded, session queue was cleared")
		evt.Type = events.TypeDiscarded
		evt.NextAttemptAt = nil
		events.PublishSession(d.pub, evt)
		d.forget(evt.SessionID)
		return
	}

	if dec.Retry {
		metrics.WebhookQueueDepth.Inc()
		metrics.WebhookRetries.Inc()
		d.stats.RecordRetried(evt.SessionID)
		log.Debug().Err(err).Dur("delay", dec.Delay).Msg("webhook delivery failed, retry scheduled")
		evt.Type = events.TypeRetrying
		events.PublishSession(d.pub, evt)
		return
	}

	job.Status = StatusFailedPermanent
	reason := failureReason(err)
	d.stats.RecordFailed(job.SessionID, err)
	d.failures.add(FailureRecord{
		JobID:      job.ID,
		SessionID:  job.SessionID,
		EventType:  job.EventType,
		URL:        job.target.URL,
		Attempts:   job.Attempt,
		StatusCode: out.StatusCode,
		Error:      evt.Error,
		Reason:     reason,
		FailedAt:   now,
	})
	metrics.WebhookJobs.WithLabelValues(job.EventType, "failed").Inc()
	if errors.Is(err, ErrTransient) {
		log.Warn().Err(err).Int("status_code", out.StatusCode).Msg("webhook delivery failed permanently, attempts exhausted")
	} else {
		log.Warn().Err(err).Int("status_code", out.StatusCode).Msg("webhook rejected by receiver")
	}
	evt.Type = events.TypeFailed
	events.PublishSession(d.pub, evt)
}

// attempt runs the executor, turning a panic into a network error.
func (d *dispatcher) attempt(ctx context.Context, job *Job) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("job_id", job.ID).Interface("panic", r).Msg("webhook delivery panicked")
			out = Outcome{Kind: FailureNetworkError, Err: &DeliveryError{Kind: FailureNetworkError, Err: fmt.Errorf("panic: %v", r)}}
		}
	}()
	return d.exec.Deliver(ctx, Request{
		URL:       job.target.URL,
		Body:      job.Body,
		Secret:    job.target.Secret,
		EventType: job.EventType,
		JobID:     job.ID,
		Attempt:   job.Attempt,
		Timeout:   job.target.Timeout,
	})
}

// clear empties the session queue and forgets it unless a delivery is still
// in flight; that one is forgotten when its outcome is discarded.
func (d *dispatcher) clear(sessionID string) int {
	d.mu.RLock()
	q := d.queues[sessionID]
	n := 0
	if q != nil {
		n = q.clear()
	}
	d.mu.RUnlock()
	if q == nil {
		return 0
	}
	metrics.WebhookQueueDepth.Sub(float64(n))
	d.forget(sessionID)
	return n
}

func (d *dispatcher) depth(sessionID string) int {
	q := d.lookup(sessionID)
	if q == nil {
		return 0
	}
	return q.snapshot().depth
}

// QueueStatus is a read-only snapshot of all session queues.
type QueueStatus struct {
	PerSession         map[string]int `json:"perSession"`
	TotalDepth         int            `json:"totalDepth"`
	InFlight           int            `json:"inFlight"`
	OldestPendingAgeMs int64          `json:"oldestPendingAgeMs"`
}

func (d *dispatcher) status(now time.Time) QueueStatus {
	d.mu.RLock()
	qs := make([]*sessionQueue, 0, len(d.ring))
	for _, id := range d.ring {
		qs = append(qs, d.queues[id])
	}
	d.mu.RUnlock()

	st := QueueStatus{PerSession: make(map[string]int, len(qs))}
	var oldest time.Time
	for _, q := range qs {
		snap := q.snapshot()
		st.PerSession[q.id] = snap.depth
		st.TotalDepth += snap.depth
		if snap.inFlight {
			st.InFlight++
		}
		if !snap.oldest.IsZero() && (oldest.IsZero() || snap.oldest.Before(oldest)) {
			oldest = snap.oldest
		}
	}
	if !oldest.IsZero() {
		st.OldestPendingAgeMs = now.Sub(oldest).Milliseconds()
	}
	return st
}
