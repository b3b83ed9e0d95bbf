// Package api implements the HTTP surface of the webhook service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"wahook/internal/auth"
	"wahook/internal/config"
	"wahook/internal/events"
	"wahook/internal/metrics"
	"wahook/internal/store"
	"wahook/internal/webhooks"
)

type Server struct {
	Store    store.Store
	Webhooks *webhooks.Service
	Auth     *auth.Verifier
	Broker   events.Broker
	Config   config.Config
	Log      zerolog.Logger
}

// Routes builds the router. Probes, metrics and docs are unauthenticated.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/openapi.yaml", s.OpenAPIHandler)
	r.Get("/openapi.json", s.OpenAPIJSONHandler)
	r.Get("/docs", s.DocsHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/debug/config", s.DebugJSON)

		r.Route("/v1/sessions", func(r chi.Router) {
			r.Post("/", s.CreateSessionHandler)
			r.Get("/", s.ListSessionsHandler)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.GetSessionHandler)
				r.Delete("/", s.DeleteSessionHandler)
				r.Put("/webhook", s.PutWebhookHandler)
				r.Get("/webhook", s.GetWebhookHandler)
				r.Post("/events", s.EmitEventHandler)
				r.Post("/webhooks", s.EnqueueWebhookHandler)
				r.Post("/webhooks/test", s.TestWebhookHandler)
				r.Delete("/webhooks/queue", s.ClearQueueHandler)
				r.Get("/webhooks/stats", s.SessionStatsHandler)
			})
		})

		r.Route("/v1/webhooks", func(r chi.Router) {
			r.Get("/stats", s.GlobalStatsHandler)
			r.Get("/queue", s.QueueStatusHandler)
			r.Get("/failures", s.FailuresHandler)
			r.Get("/stream", s.StreamHandler)
		})
	})
	return r
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler reports whether the session registry is reachable.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
