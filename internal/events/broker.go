// Package events fans delivery lifecycle events out to live subscribers.
package events

import (
	"sync"
	"time"
)

const (
	TypeDelivered = "webhook.delivered"
	TypeRetrying  = "webhook.retrying"
	TypeFailed    = "webhook.failed"
	TypeDiscarded = "webhook.discarded"
)

// TopicAll receives the events of every session.
const TopicAll = "*"

// Event describes something that happened to a queued webhook.
type Event struct {
	Type          string     `json:"type"`
	SessionID     string     `json:"sessionId"`
	JobID         string     `json:"jobId,omitempty"`
	EventType     string     `json:"eventType,omitempty"`
	Attempt       int        `json:"attempt,omitempty"`
	StatusCode    int        `json:"statusCode,omitempty"`
	LatencyMs     int64      `json:"latencyMs,omitempty"`
	Error         string     `json:"error,omitempty"`
	NextAttemptAt *time.Time `json:"nextAttemptAt,omitempty"`
	At            time.Time  `json:"at"`
}

// Publisher is the write side of a Broker.
type Publisher interface {
	Publish(topic string, evt Event)
}

// Broker is implemented by the in-memory and Redis brokers.
type Broker interface {
	Publisher
	Subscribe(topic string) chan Event
	Unsubscribe(topic string, ch chan Event)
	Close() error
}

// Memory is a process-local broker. Slow subscribers drop events.
type Memory struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // topic -> set of channels
}

func NewMemory() *Memory {
	return &Memory{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Memory) Subscribe(topic string) chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan Event]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Memory) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

func (b *Memory) Publish(topic string, evt Event) {
	b.mu.Lock()
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}

func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, m := range b.subs {
		for ch := range m {
			close(ch)
		}
		delete(b.subs, topic)
	}
	return nil
}

// PublishSession sends evt to its session topic and to TopicAll.
func PublishSession(p Publisher, evt Event) {
	if p == nil {
		return
	}
	p.Publish(evt.SessionID, evt)
	p.Publish(TopicAll, evt)
}
