package webhooks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wahook/internal/buildinfo"
)

const (
	defaultTimeout = 30 * time.Second
	// maxResponseBody bounds how much of a receiver response is read.
	maxResponseBody = 64 << 10
	errorExcerpt    = 256
)

// Request is one delivery attempt.
type Request struct {
	URL       string
	Body      []byte
	Secret    string
	EventType string
	JobID     string
	Attempt   int
	Timeout   time.Duration
}

// Outcome is the classified result of one attempt.
type Outcome struct {
	Kind       FailureKind
	StatusCode int
	Latency    time.Duration
	Err        error
}

func (o Outcome) Success() bool { return o.Kind == FailureNone }

type executor interface {
	Deliver(ctx context.Context, req Request) Outcome
}

// Deliverer performs signed webhook POSTs.
type Deliverer struct {
	HTTP      *http.Client
	UserAgent string
}

// NewDeliverer uses client (or a pooled default) with redirects disabled: a
// redirect would be replayed as a body-less GET, so a 3xx is reported as is.
func NewDeliverer(client *http.Client) *Deliverer {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	c := *client
	c.CheckRedirect = noRedirect
	return &Deliverer{HTTP: &c, UserAgent: buildinfo.UserAgent()}
}

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

// Deliver sends exactly one POST and never returns a Go error; failures are
// described by the Outcome.
func (d *Deliverer) Deliver(ctx context.Context, r Request) Outcome {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return Outcome{Kind: FailureClientError, Err: &DeliveryError{Kind: FailureClientError, Err: err}}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.UserAgent)
	req.Header.Set(HeaderEventType, r.EventType)
	if r.Secret != "" {
		req.Header.Set(HeaderSignature, SignHMAC(r.Secret, r.Body))
	}
	if r.JobID != "" {
		req.Header.Set(HeaderWebhookID, r.JobID)
	}
	if r.Attempt > 0 {
		req.Header.Set(HeaderAttempt, strconv.Itoa(r.Attempt))
	}

	start := time.Now()
	resp, err := d.HTTP.Do(req)
	if err != nil {
		kind := classifyErr(ctx, err)
		return Outcome{Kind: kind, Latency: time.Since(start), Err: &DeliveryError{Kind: kind, Err: err}}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	_ = resp.Body.Close()
	out := Outcome{Kind: classifyStatus(resp.StatusCode), StatusCode: resp.StatusCode, Latency: time.Since(start)}
	if out.Kind != FailureNone {
		out.Err = &DeliveryError{Kind: out.Kind, StatusCode: resp.StatusCode, Body: excerpt(body)}
	}
	return out
}

func classifyStatus(code int) FailureKind {
	switch {
	case code >= 200 && code < 300:
		return FailureNone
	case code >= 500:
		return FailureServerError
	default:
		return FailureClientError
	}
}

func classifyErr(ctx context.Context, err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	return FailureNetworkError
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > errorExcerpt {
		s = s[:errorExcerpt] + "..."
	}
	return s
}
