package webhooks

import (
	"errors"
	"sync"
	"time"
)

// FailureRecord keeps the details of a job that reached failed_permanent.
type FailureRecord struct {
	JobID      string    `json:"jobId"`
	SessionID  string    `json:"sessionId"`
	EventType  string    `json:"eventType"`
	URL        string    `json:"url"`
	Attempts   int       `json:"attempts"`
	StatusCode int       `json:"statusCode,omitempty"`
	Error      string    `json:"error"`
	Reason     string    `json:"reason"`
	FailedAt   time.Time `json:"failedAt"`
}

const (
	// ReasonRejected: the receiver refused the payload; it was not retried.
	ReasonRejected = "rejected"
	// ReasonExhausted: transient failures used up every attempt.
	ReasonExhausted = "exhausted"
)

func failureReason(err error) string {
	if errors.Is(err, ErrClient) {
		return ReasonRejected
	}
	return ReasonExhausted
}

// failureLog is a bounded ring of recent permanent failures. It lives only in
// memory and is lost on restart.
type failureLog struct {
	mu   sync.Mutex
	buf  []FailureRecord
	next int
	full bool
}

func newFailureLog(size int) *failureLog {
	if size <= 0 {
		size = 100
	}
	return &failureLog{buf: make([]FailureRecord, size)}
}

func (l *failureLog) add(r FailureRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = r
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
}

// list returns newest first, optionally filtered by session.
func (l *failureLog) list(sessionID string, limit int) []FailureRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.next
	if l.full {
		n = len(l.buf)
	}
	out := []FailureRecord{}
	for i := 0; i < n; i++ {
		r := l.buf[(l.next-1-i+len(l.buf))%len(l.buf)]
		if sessionID != "" && r.SessionID != sessionID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
