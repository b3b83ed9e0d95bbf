// Package webhooks delivers session events to external HTTP endpoints.
//
// Jobs are queued per session, dispatched by a fixed worker pool with at most
// one delivery in flight per session, and retried with exponential backoff.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"wahook/internal/events"
	"wahook/internal/metrics"
	"wahook/internal/model"
)

// ConfigSource resolves the webhook configuration of a session. It returns
// model.ErrNotFound for unknown sessions.
type ConfigSource interface {
	SessionWebhookConfig(ctx context.Context, sessionID string) (model.WebhookConfig, error)
}

// Defaults apply when a session does not override them.
type Defaults struct {
	Retry   RetryConfig
	Timeout time.Duration
}

func DefaultDefaults() Defaults {
	return Defaults{
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			MaxDelay:    time.Minute,
			Jitter:      0.1,
		},
		Timeout: defaultTimeout,
	}
}

type options struct {
	log          zerolog.Logger
	workers      int
	maxDepth     int
	pollInterval time.Duration
	defaults     Defaults
	httpClient   *http.Client
	exec         executor
	pub          events.Publisher
	limiter      *rate.Limiter
	rand         func() float64
	now          func() time.Time
	failureLog   int
}

type Option func(*options)

func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// WithWorkers sets the global number of concurrent deliveries.
func WithWorkers(n int) Option { return func(o *options) { o.workers = n } }

// WithMaxQueueDepth bounds each session queue. Zero means unbounded.
func WithMaxQueueDepth(n int) Option { return func(o *options) { o.maxDepth = n } }

// WithPollInterval sets how often idle workers look for due retries.
func WithPollInterval(d time.Duration) Option { return func(o *options) { o.pollInterval = d } }

func WithDefaults(d Defaults) Option { return func(o *options) { o.defaults = d } }

func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithPublisher receives delivery lifecycle events.
func WithPublisher(p events.Publisher) Option { return func(o *options) { o.pub = p } }

// WithRateLimit throttles outbound attempts across all sessions.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithRand replaces the jitter source.
func WithRand(f func() float64) Option { return func(o *options) { o.rand = f } }

// WithFailureLog sets how many permanent failures are kept for inspection.
func WithFailureLog(n int) Option { return func(o *options) { o.failureLog = n } }

func withExecutor(e executor) Option { return func(o *options) { o.exec = e } }
func withClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// Service is the entry point of the delivery engine.
type Service struct {
	registry ConfigSource
	defaults Defaults
	exec     executor
	stats    *Stats
	disp     *dispatcher
	workers  int
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	stopped bool
}

func NewService(registry ConfigSource, opts ...Option) *Service {
	o := options{
		log:          log.Logger,
		workers:      4,
		maxDepth:     1000,
		pollInterval: 250 * time.Millisecond,
		defaults:     DefaultDefaults(),
		now:          time.Now,
		failureLog:   100,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if o.pollInterval <= 0 {
		o.pollInterval = 250 * time.Millisecond
	}
	if o.exec == nil {
		o.exec = NewDeliverer(o.httpClient)
	}
	logger := o.log.With().Str("component", "webhooks").Logger()
	stats := NewStats()
	return &Service{
		registry: registry,
		defaults: o.defaults,
		exec:     o.exec,
		stats:    stats,
		workers:  o.workers,
		log:      logger,
		now:      o.now,
		disp: &dispatcher{
			exec:         o.exec,
			stats:        stats,
			policy:       RetryPolicy{Rand: o.rand},
			pub:          o.pub,
			limiter:      o.limiter,
			failures:     newFailureLog(o.failureLog),
			log:          logger,
			now:          o.now,
			maxDepth:     o.maxDepth,
			pollInterval: o.pollInterval,
			queues:       map[string]*sessionQueue{},
			wake:         make(chan struct{}, 1),
		},
	}
}

// Start launches the worker pool. Jobs may be added before Start.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrServiceStopped
	}
	if s.group != nil {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error { return s.disp.run(gctx) })
	}
	s.cancel = cancel
	s.group = g
	s.log.Info().Int("workers", s.workers).Msg("webhook workers started")
	return nil
}

// Shutdown stops the workers and waits for in-flight attempts until ctx ends.
// Queued jobs are dropped with the process.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	g, cancel := s.group, s.cancel
	s.mu.Unlock()
	if g == nil {
		return nil
	}
	cancel()
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		s.log.Info().Msg("webhook workers stopped")
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) resolve(ctx context.Context, sessionID string) (model.WebhookConfig, error) {
	if s.registry == nil {
		return model.WebhookConfig{}, fmt.Errorf("%w: no session registry", ErrConfiguration)
	}
	cfg, err := s.registry.SessionWebhookConfig(ctx, sessionID)
	if errors.Is(err, model.ErrNotFound) {
		return cfg, fmt.Errorf("%w: session %s: %w", ErrConfiguration, sessionID, err)
	}
	return cfg, err
}

func (s *Service) target(cfg model.WebhookConfig) target {
	t := target{
		URL:     cfg.URL,
		Secret:  cfg.Secret,
		Retry:   s.defaults.Retry.merge(cfg.Retry),
		Timeout: s.defaults.Timeout,
	}
	if cfg.TimeoutMs > 0 {
		t.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return t
}

// AddWebhook queues eventType for delivery to the session webhook and returns
// the job id. The session configuration is captured now; later edits do not
// affect the job. An empty priority means normal.
func (s *Service) AddWebhook(ctx context.Context, sessionID, eventType string, payload any, priority Priority) (string, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return "", ErrServiceStopped
	}
	p, err := ParsePriority(string(priority))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(eventType) == "" {
		return "", fmt.Errorf("%w: event type is required", ErrInvalidEvent)
	}
	cfg, err := s.resolve(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if cfg.URL == "" {
		return "", fmt.Errorf("session %s: %w: no webhook url", sessionID, ErrConfiguration)
	}
	if !cfg.Subscribed(eventType) {
		return "", fmt.Errorf("session %s: %q: %w", sessionID, eventType, ErrNotSubscribed)
	}

	now := s.now()
	body, err := encodeBody(eventType, sessionID, payload, now)
	if err != nil {
		return "", err
	}
	job := &Job{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		EventType:     eventType,
		Body:          body,
		Priority:      p,
		Status:        StatusPending,
		CreatedAt:     now,
		NextAttemptAt: now,
		target:        s.target(cfg),
	}
	if err := s.disp.enqueue(job); err != nil {
		s.log.Warn().Str("session_id", sessionID).Str("event_type", eventType).Msg("webhook queue full")
		return "", err
	}
	return job.ID, nil
}

// TestResult is returned by TestWebhook.
type TestResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
	LatencyMs  int64  `json:"latencyMs"`
}

// TestEventType is sent by TestWebhook.
const TestEventType = "webhook.test"

// TestWebhook performs one synchronous delivery outside the queue. url
// overrides the configured URL. Only the test counter is updated.
func (s *Service) TestWebhook(ctx context.Context, sessionID, url string) (TestResult, error) {
	cfg, err := s.resolve(ctx, sessionID)
	if err != nil {
		return TestResult{}, err
	}
	if url == "" {
		url = cfg.URL
	}
	if url == "" {
		return TestResult{}, fmt.Errorf("session %s: %w: no webhook url", sessionID, ErrConfiguration)
	}
	now := s.now()
	body, err := encodeBody(TestEventType, sessionID, map[string]any{
		"message": "This is a test webhook",
	}, now)
	if err != nil {
		return TestResult{}, err
	}
	t := s.target(cfg)
	out := s.exec.Deliver(ctx, Request{
		URL:       url,
		Body:      body,
		Secret:    t.Secret,
		EventType: TestEventType,
		Timeout:   t.Timeout,
	})
	s.stats.RecordTest(sessionID)
	metrics.WebhookTests.WithLabelValues(string(out.Kind)).Inc()

	res := TestResult{Success: out.Success(), StatusCode: out.StatusCode, LatencyMs: out.Latency.Milliseconds()}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}
	return res, nil
}

// QueueStatus never waits for in-progress deliveries.
func (s *Service) QueueStatus() QueueStatus {
	return s.disp.status(s.now())
}

// Stats returns the global counters when sessionID is empty.
func (s *Service) Stats(sessionID string) DeliveryStats {
	if sessionID == "" {
		st := s.stats.Global()
		st.QueueDepth = s.disp.status(s.now()).TotalDepth
		return st
	}
	st := s.stats.Session(sessionID)
	st.QueueDepth = s.disp.depth(sessionID)
	return st
}

// ClearSessionQueue drops every pending job of the session and returns how
// many were removed. A delivery already in flight completes but its outcome
// is not retried.
func (s *Service) ClearSessionQueue(sessionID string) int {
	n := s.disp.clear(sessionID)
	if n > 0 {
		s.log.Info().Str("session_id", sessionID).Int("removed", n).Msg("webhook queue cleared")
	}
	return n
}

// RecentFailures lists permanently failed jobs, newest first.
func (s *Service) RecentFailures(sessionID string, limit int) []FailureRecord {
	return s.disp.failures.list(sessionID, limit)
}
