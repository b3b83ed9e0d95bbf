package model

import (
	"errors"
	"time"
)

// Core domain types shared by the store, engine and API.

// ErrNotFound is returned by registries when a session does not exist.
var ErrNotFound = errors.New("not found")

const (
	SessionStatusActive       = "active"
	SessionStatusDisconnected = "disconnected"
)

// EventAll subscribes a webhook to every event type.
const EventAll = "*"

type Session struct {
	ID        string         `json:"id" yaml:"id"`
	OwnerID   string         `json:"ownerId" yaml:"ownerId"`
	Name      string         `json:"name,omitempty" yaml:"name"`
	Status    string         `json:"status" yaml:"status"`
	Webhook   *WebhookConfig `json:"webhook,omitempty" yaml:"webhook"`
	CreatedAt time.Time      `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time      `json:"updatedAt" yaml:"-"`
}

// WebhookConfig is the per-session delivery target.
type WebhookConfig struct {
	URL       string      `json:"url" yaml:"url"`
	Events    []string    `json:"events,omitempty" yaml:"events"`
	Secret    string      `json:"secret,omitempty" yaml:"secret"`
	Retry     RetryConfig `json:"retry,omitempty" yaml:"retry"`
	TimeoutMs int64       `json:"timeoutMs,omitempty" yaml:"timeoutMs"`
}

// RetryConfig overrides the service retry defaults; zero fields inherit.
type RetryConfig struct {
	MaxAttempts int   `json:"maxAttempts,omitempty" yaml:"maxAttempts"`
	BaseDelayMs int64 `json:"baseDelayMs,omitempty" yaml:"baseDelayMs"`
	MaxDelayMs  int64 `json:"maxDelayMs,omitempty" yaml:"maxDelayMs"`
}

// Subscribed reports whether eventType is covered by the configured events.
// An empty list or "*" means every event.
func (c WebhookConfig) Subscribed(eventType string) bool {
	if len(c.Events) == 0 {
		return true
	}
	for _, e := range c.Events {
		if e == EventAll || e == eventType {
			return true
		}
	}
	return false
}

// Redacted returns a copy with the secret masked.
func (c WebhookConfig) Redacted() WebhookConfig {
	out := c
	out.Events = append([]string(nil), c.Events...)
	if out.Secret != "" {
		out.Secret = "********"
	}
	return out
}

type SessionIn struct {
	ID      string         `json:"id,omitempty"`
	Name    string         `json:"name,omitempty"`
	Webhook *WebhookConfig `json:"webhook,omitempty"`
}

type WebhookEventIn struct {
	Event    string `json:"event"`
	Data     any    `json:"data"`
	Priority string `json:"priority,omitempty"`
}

type WebhookTestIn struct {
	URL string `json:"url,omitempty"`
}
