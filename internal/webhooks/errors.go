package webhooks

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means the session has no usable webhook target.
	ErrConfiguration = errors.New("webhook not configured")
	// ErrNotSubscribed means the session webhook does not accept the event type.
	ErrNotSubscribed = fmt.Errorf("%w: event not subscribed", ErrConfiguration)
	// ErrQueueFull is returned when a session queue reached its depth bound.
	ErrQueueFull = errors.New("webhook queue full")

	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrServiceStopped  = errors.New("webhook service stopped")
	ErrAlreadyStarted  = errors.New("webhook service already started")

	// ErrClient and ErrTransient classify failed delivery attempts.
	ErrClient    = errors.New("receiver rejected webhook")
	ErrTransient = errors.New("transient webhook failure")
)

// DeliveryError describes one failed delivery attempt.
type DeliveryError struct {
	Kind       FailureKind
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Kind, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: status %d", e.Kind, e.StatusCode)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Is matches ErrClient for client errors and ErrTransient for everything retryable.
func (e *DeliveryError) Is(target error) bool {
	switch target {
	case ErrClient:
		return e.Kind == FailureClientError
	case ErrTransient:
		return e.Kind.Retryable()
	}
	return false
}
