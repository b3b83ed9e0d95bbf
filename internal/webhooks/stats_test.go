package webhooks

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsGlobalAndSession(t *testing.T) {
	t.Parallel()

	s := NewStats()
	s.RecordSent("a")
	s.RecordSent("b")
	s.RecordRetried("a")
	s.RecordFailed("a", errors.New("server_error: status 500"))
	s.RecordDiscarded("b")
	s.RecordTest("b")
	s.RecordLatency("a", 10*time.Millisecond)
	s.RecordLatency("a", 30*time.Millisecond)
	s.RecordLatency("b", 50*time.Millisecond)

	g := s.Global()
	assert.Equal(t, uint64(2), g.Sent)
	assert.Equal(t, uint64(1), g.Failed)
	assert.Equal(t, uint64(1), g.Retried)
	assert.Equal(t, uint64(1), g.Discarded)
	assert.Equal(t, uint64(1), g.Tests)
	assert.InDelta(t, 30.0, g.AvgLatencyMs, 0.001)
	assert.Equal(t, "server_error: status 500", g.LastError)

	a := s.Session("a")
	assert.Equal(t, uint64(1), a.Sent)
	assert.Equal(t, uint64(1), a.Failed)
	assert.InDelta(t, 20.0, a.AvgLatencyMs, 0.001)
	assert.Equal(t, "server_error: status 500", a.LastError)

	b := s.Session("b")
	assert.Equal(t, uint64(1), b.Sent)
	assert.Zero(t, b.Failed)
	assert.Empty(t, b.LastError)

	assert.Equal(t, DeliveryStats{}, s.Session("unknown"))
}

func TestStatsSnapshotIdempotent(t *testing.T) {
	t.Parallel()

	s := NewStats()
	s.RecordSent("a")
	s.RecordLatency("a", time.Millisecond)

	assert.Equal(t, s.Global(), s.Global())
	assert.Equal(t, s.Session("a"), s.Session("a"))
}

func TestStatsConcurrentIncrements(t *testing.T) {
	t.Parallel()

	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.RecordSent("a")
				s.RecordRetried("b")
				s.RecordLatency("a", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(5000), s.Global().Sent)
	assert.Equal(t, uint64(5000), s.Session("a").Sent)
	assert.Equal(t, uint64(5000), s.Session("b").Retried)
	assert.InDelta(t, 1.0, s.Session("a").AvgLatencyMs, 0.001)
}
