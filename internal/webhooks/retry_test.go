package webhooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wahook/internal/model"
)

func TestRetryPolicyBackoff(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	p := RetryPolicy{}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		d := p.Decide(i+1, FailureServerError, cfg)
		assert.True(t, d.Retry, "attempt %d", i+1)
		assert.Equal(t, w, d.Delay, "attempt %d", i+1)
	}
}

func TestRetryPolicyGivesUp(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	p := RetryPolicy{}

	assert.True(t, p.Decide(2, FailureTimeout, cfg).Retry)
	assert.False(t, p.Decide(3, FailureTimeout, cfg).Retry)
	assert.False(t, p.Decide(4, FailureNetworkError, cfg).Retry)
	assert.False(t, p.Decide(1, FailureClientError, cfg).Retry)
	assert.False(t, p.Decide(1, FailureNone, cfg).Retry)
}

func TestRetryPolicyJitter(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Jitter: 0.1}

	low := RetryPolicy{Rand: func() float64 { return 0 }}
	assert.Equal(t, 900*time.Millisecond, low.Decide(1, FailureServerError, cfg).Delay)

	high := RetryPolicy{Rand: func() float64 { return 0.999999 }}
	d := high.Decide(1, FailureServerError, cfg).Delay
	assert.InDelta(t, float64(1100*time.Millisecond), float64(d), float64(time.Millisecond))

	capped := RetryPolicy{Rand: func() float64 { return 0.999999 }}
	assert.Equal(t, 10*time.Second, capped.Decide(5, FailureServerError, cfg).Delay)

	random := RetryPolicy{}
	for i := 0; i < 50; i++ {
		d := random.Decide(2, FailureServerError, cfg).Delay
		assert.GreaterOrEqual(t, d, 1800*time.Millisecond)
		assert.LessOrEqual(t, d, 2200*time.Millisecond)
	}
}

func TestRetryPolicyDefaultCap(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxAttempts: 100, BaseDelay: time.Second}
	assert.Equal(t, maxBackoff, RetryPolicy{}.Decide(80, FailureServerError, cfg).Delay)
}

func TestRetryConfigMerge(t *testing.T) {
	t.Parallel()

	base := RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute, Jitter: 0.1}

	assert.Equal(t, base, base.merge(model.RetryConfig{}))

	got := base.merge(model.RetryConfig{MaxAttempts: 5, BaseDelayMs: 100})
	assert.Equal(t, 5, got.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, got.BaseDelay)
	assert.Equal(t, time.Minute, got.MaxDelay)
	assert.Equal(t, 0.1, got.Jitter)

	got = base.merge(model.RetryConfig{MaxDelayMs: 500})
	assert.Equal(t, 500*time.Millisecond, got.BaseDelay)
}
