package api

import (
	"net/http"
	"strconv"

	"wahook/internal/model"
	"wahook/internal/webhooks"
)

// redactedSecret is what clients see instead of a stored secret. Sending it
// back on PUT keeps the stored value.
const redactedSecret = "********"

func redact(s model.Session) model.Session {
	if s.Webhook != nil {
		c := s.Webhook.Redacted()
		s.Webhook = &c
	}
	return s
}

// CreateSessionHandler handles POST /v1/sessions
func (s *Server) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var in model.SessionIn
	if err := decodeJSON(w, r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if in.Webhook != nil {
		if err := validateWebhookConfig(in.Webhook); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	sess, err := s.Store.CreateSession(r.Context(), principalFrom(r.Context()).OwnerID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, redact(sess))
}

// ListSessionsHandler handles GET /v1/sessions. Admins see every owner.
func (s *Server) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r.Context())
	owner := p.OwnerID
	if p.IsAdmin() {
		owner = r.URL.Query().Get("ownerId")
	}
	items, err := s.Store.ListSessions(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	for i := range items {
		items[i] = redact(items[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, redact(sess))
}

// DeleteSessionHandler removes the session and drops its pending webhooks.
func (s *Server) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Store.DeleteSession(r.Context(), sess.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Webhooks.ClearSessionQueue(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

// PutWebhookHandler handles PUT /v1/sessions/{id}/webhook. Queued jobs keep
// the configuration they were created with.
func (s *Server) PutWebhookHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var cfg model.WebhookConfig
	if err := decodeJSON(w, r, &cfg, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateWebhookConfig(&cfg); err != nil {
		s.writeError(w, r, err)
		return
	}
	if cfg.Secret == redactedSecret && sess.Webhook != nil {
		cfg.Secret = sess.Webhook.Secret
	}
	updated, err := s.Store.PutSessionWebhook(r.Context(), sess.ID, cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated.Webhook.Redacted())
}

func (s *Server) GetWebhookHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sess.Webhook == nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "webhook not configured", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, sess.Webhook.Redacted())
}

// EnqueueWebhookHandler handles POST /v1/sessions/{id}/webhooks
func (s *Server) EnqueueWebhookHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in model.WebhookEventIn
	if err := decodeJSON(w, r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateEventIn(&in); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.Webhooks.AddWebhook(r.Context(), sess.ID, in.Event, in.Data, webhooks.Priority(in.Priority))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": id})
}

// EmitEventHandler handles POST /v1/sessions/{id}/events. Session event
// sources post here; events the webhook does not take are acknowledged
// without a job.
func (s *Server) EmitEventHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in model.WebhookEventIn
	if err := decodeJSON(w, r, &in, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateEventIn(&in); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.Webhooks.Emit(r.Context(), sess.ID, in.Event, in.Data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobId": id, "forwarded": id != ""})
}

// TestWebhookHandler handles POST /v1/sessions/{id}/webhooks/test. The body
// is optional and may override the URL.
func (s *Server) TestWebhookHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in model.WebhookTestIn
	if err := decodeJSON(w, r, &in, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if in.URL != "" {
		if err := validateWebhookURL(in.URL); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	res, err := s.Webhooks.TestWebhook(r.Context(), sess.ID, in.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ClearQueueHandler handles DELETE /v1/sessions/{id}/webhooks/queue
func (s *Server) ClearQueueHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": s.Webhooks.ClearSessionQueue(sess.ID)})
}

func (s *Server) SessionStatsHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Webhooks.Stats(sess.ID))
}

// GlobalStatsHandler handles GET /v1/webhooks/stats (admin).
func (s *Server) GlobalStatsHandler(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Webhooks.Stats(""))
}

// QueueStatusHandler handles GET /v1/webhooks/queue (admin).
func (s *Server) QueueStatusHandler(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Webhooks.QueueStatus())
}

// FailuresHandler handles GET /v1/webhooks/failures?sessionId=&limit=.
// Non-admins must name one of their sessions.
func (s *Server) FailuresHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		if err := requireAdmin(r); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else if _, err := s.sessionByID(r, sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeProblem(w, http.StatusBadRequest, "Bad Request", "limit must be a positive integer", r.URL.Path)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.Webhooks.RecentFailures(sessionID, limit)})
}
