package webhooks

import (
	"sync"
	"sync/atomic"
	"time"
)

// DeliveryStats is a point-in-time view of the delivery counters.
type DeliveryStats struct {
	Sent         uint64  `json:"sent"`
	Failed       uint64  `json:"failed"`
	Retried      uint64  `json:"retried"`
	Discarded    uint64  `json:"discarded"`
	Tests        uint64  `json:"tests"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
	QueueDepth   int     `json:"queueDepth"`
	LastError    string  `json:"lastError,omitempty"`
}

type counters struct {
	sent      atomic.Uint64
	failed    atomic.Uint64
	retried   atomic.Uint64
	discarded atomic.Uint64
	tests     atomic.Uint64
	latencyUs atomic.Int64
	latencyN  atomic.Uint64
	lastError atomic.Pointer[string]
}

func (c *counters) snapshot() DeliveryStats {
	s := DeliveryStats{
		Sent:      c.sent.Load(),
		Failed:    c.failed.Load(),
		Retried:   c.retried.Load(),
		Discarded: c.discarded.Load(),
		Tests:     c.tests.Load(),
	}
	if n := c.latencyN.Load(); n > 0 {
		s.AvgLatencyMs = float64(c.latencyUs.Load()) / float64(n) / 1000
	}
	if e := c.lastError.Load(); e != nil {
		s.LastError = *e
	}
	return s
}

// Stats aggregates delivery counters globally and per session. All methods
// are safe for concurrent use and never block.
type Stats struct {
	global   counters
	sessions sync.Map // sessionID -> *counters
}

func NewStats() *Stats { return &Stats{} }

func (s *Stats) session(id string) *counters {
	if c, ok := s.sessions.Load(id); ok {
		return c.(*counters)
	}
	c, _ := s.sessions.LoadOrStore(id, &counters{})
	return c.(*counters)
}

func (s *Stats) RecordSent(sessionID string) {
	s.global.sent.Add(1)
	s.session(sessionID).sent.Add(1)
}

// RecordFailed counts a job that reached failed_permanent.
func (s *Stats) RecordFailed(sessionID string, err error) {
	s.global.failed.Add(1)
	c := s.session(sessionID)
	c.failed.Add(1)
	if err != nil {
		msg := err.Error()
		s.global.lastError.Store(&msg)
		c.lastError.Store(&msg)
	}
}

func (s *Stats) RecordRetried(sessionID string) {
	s.global.retried.Add(1)
	s.session(sessionID).retried.Add(1)
}

// RecordDiscarded counts an outcome dropped because its queue was cleared.
func (s *Stats) RecordDiscarded(sessionID string) {
	s.global.discarded.Add(1)
	s.session(sessionID).discarded.Add(1)
}

func (s *Stats) RecordTest(sessionID string) {
	s.global.tests.Add(1)
	s.session(sessionID).tests.Add(1)
}

func (s *Stats) RecordLatency(sessionID string, d time.Duration) {
	us := d.Microseconds()
	s.global.latencyUs.Add(us)
	s.global.latencyN.Add(1)
	c := s.session(sessionID)
	c.latencyUs.Add(us)
	c.latencyN.Add(1)
}

// Global returns the process-wide counters. QueueDepth is left to the caller.
func (s *Stats) Global() DeliveryStats { return s.global.snapshot() }

// Session returns the counters of one session; unknown sessions read as zero.
func (s *Stats) Session(id string) DeliveryStats {
	c, ok := s.sessions.Load(id)
	if !ok {
		return DeliveryStats{}
	}
	return c.(*counters).snapshot()
}
