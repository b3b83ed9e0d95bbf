package webhooks

import (
	"math/rand/v2"
	"time"

	"wahook/internal/model"
)

// maxBackoff caps delays when no MaxDelay is configured.
const maxBackoff = time.Hour

// RetryConfig is the effective retry setting of a job.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter spreads each delay by +/- this fraction. Zero disables it.
	Jitter float64
}

// merge applies the non-zero session overrides on top of c.
func (c RetryConfig) merge(o model.RetryConfig) RetryConfig {
	out := c
	if o.MaxAttempts > 0 {
		out.MaxAttempts = o.MaxAttempts
	}
	if o.BaseDelayMs > 0 {
		out.BaseDelay = time.Duration(o.BaseDelayMs) * time.Millisecond
	}
	if o.MaxDelayMs > 0 {
		out.MaxDelay = time.Duration(o.MaxDelayMs) * time.Millisecond
	}
	if out.MaxDelay > 0 && out.BaseDelay > out.MaxDelay {
		out.BaseDelay = out.MaxDelay
	}
	return out
}

// Decision is the outcome of RetryPolicy.Decide.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// RetryPolicy decides whether a failed attempt is retried and when.
type RetryPolicy struct {
	// Rand returns a value in [0,1). Defaults to math/rand/v2.
	Rand func() float64
}

// Decide is given the number of attempts made so far, including the one that
// just failed. It gives up on client errors and once attempts reach
// cfg.MaxAttempts; otherwise the delay is BaseDelay*2^(attempts-1) capped at
// MaxDelay.
func (p RetryPolicy) Decide(attempts int, kind FailureKind, cfg RetryConfig) Decision {
	if !kind.Retryable() || attempts >= cfg.MaxAttempts {
		return Decision{}
	}
	return Decision{Retry: true, Delay: p.backoff(attempts, cfg)}
}

func (p RetryPolicy) backoff(attempts int, cfg RetryConfig) time.Duration {
	limit := cfg.MaxDelay
	if limit <= 0 {
		limit = maxBackoff
	}
	d := cfg.BaseDelay
	if d <= 0 {
		return 0
	}
	for i := 1; i < attempts && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		d = limit
	}
	if cfg.Jitter > 0 {
		r := p.Rand
		if r == nil {
			r = rand.Float64
		}
		d = time.Duration(float64(d) * (1 + (r()*2-1)*cfg.Jitter))
		if d > limit {
			d = limit
		}
		if d < 0 {
			d = 0
		}
	}
	return d
}
