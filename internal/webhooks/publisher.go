package webhooks

import (
	"context"
	"errors"
)

// urgentEvents are dispatched ahead of routine traffic.
var urgentEvents = map[string]struct{}{
	"session.disconnected": {},
	"session.logged_out":   {},
	"session.qr":           {},
	"session.status":       {},
}

// PriorityFor returns the default dispatch priority of a session event.
func PriorityFor(eventType string) Priority {
	if _, ok := urgentEvents[eventType]; ok {
		return PriorityHigh
	}
	return PriorityNormal
}

// Emit is used by session event sources. Unlike AddWebhook it treats a missing
// webhook or an unsubscribed event as nothing to do and returns an empty id.
func (s *Service) Emit(ctx context.Context, sessionID, eventType string, data any) (string, error) {
	id, err := s.AddWebhook(ctx, sessionID, eventType, data, PriorityFor(eventType))
	if errors.Is(err, ErrConfiguration) {
		s.log.Debug().Str("session_id", sessionID).Str("event_type", eventType).Err(err).Msg("event not forwarded")
		return "", nil
	}
	return id, err
}
