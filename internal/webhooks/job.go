package webhooks

import (
	"encoding/json"
	"fmt"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps an empty value to normal.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case "":
		return PriorityNormal, nil
	case PriorityLow, PriorityNormal, PriorityHigh:
		return Priority(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// rank orders dispatch tiers. High jobs jump the line; normal and low share
// the standard tier in enqueue order.
func (p Priority) rank() int {
	if p == PriorityHigh {
		return 1
	}
	return 0
}

type Status string

const (
	StatusPending         Status = "pending"
	StatusInFlight        Status = "in_flight"
	StatusDelivered       Status = "delivered"
	StatusFailedPermanent Status = "failed_permanent"
)

type FailureKind string

const (
	FailureNone         FailureKind = "success"
	FailureClientError  FailureKind = "client_error"
	FailureServerError  FailureKind = "server_error"
	FailureTimeout      FailureKind = "timeout"
	FailureNetworkError FailureKind = "network_error"
)

// Retryable reports whether a retry may help.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureServerError, FailureTimeout, FailureNetworkError:
		return true
	}
	return false
}

// target is the webhook configuration resolved when the job was enqueued.
type target struct {
	URL     string
	Secret  string
	Retry   RetryConfig
	Timeout time.Duration
}

// Job is one event waiting to be delivered to a session webhook.
type Job struct {
	ID            string
	SessionID     string
	EventType     string
	Body          []byte
	Priority      Priority
	Attempt       int
	Status        Status
	CreatedAt     time.Time
	NextAttemptAt time.Time
	LastError     string

	target target
	seq    uint64
}

type envelope struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// encodeBody renders the wire body once so every retry sends identical bytes.
func encodeBody(eventType, sessionID string, data any, ts time.Time) ([]byte, error) {
	b, err := json.Marshal(envelope{
		Event:     eventType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %v", ErrInvalidEvent, err)
	}
	return b, nil
}
