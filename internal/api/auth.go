package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"wahook/internal/auth"
	"wahook/internal/model"
)

type ctxKeyPrincipal struct{}

// authenticate resolves the caller from a bearer token (or ?access_token= for
// browser WebSocket clients). In dev mode X-Owner-Id / X-Role headers are
// accepted as a fallback.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.principal(r)
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyPrincipal{}, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) principal(r *http.Request) (auth.Principal, error) {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return s.Auth.Verify(strings.TrimSpace(authz[len("Bearer "):]))
	}
	if tok := r.URL.Query().Get("access_token"); tok != "" {
		return s.Auth.Verify(tok)
	}
	if s.Auth.Mode != auth.ModeDev {
		return auth.Principal{}, fmt.Errorf("%w: missing bearer token", auth.ErrUnauthorized)
	}
	owner := r.Header.Get("X-Owner-Id")
	if owner == "" {
		owner = "demo"
	}
	role := strings.ToLower(r.Header.Get("X-Role"))
	if role == "" {
		role = auth.RoleAdmin
	}
	return auth.Principal{OwnerID: owner, Role: role}, nil
}

func principalFrom(ctx context.Context) auth.Principal {
	p, _ := ctx.Value(ctxKeyPrincipal{}).(auth.Principal)
	return p
}

// loadSession fetches the {id} session and checks the caller may use it.
func (s *Server) loadSession(r *http.Request) (model.Session, error) {
	return s.sessionByID(r, chi.URLParam(r, "id"))
}

func (s *Server) sessionByID(r *http.Request, id string) (model.Session, error) {
	sess, err := s.Store.GetSession(r.Context(), id)
	if err != nil {
		return model.Session{}, fmt.Errorf("session %s: %w", id, err)
	}
	if p := principalFrom(r.Context()); !p.IsAdmin() && p.OwnerID != sess.OwnerID {
		return model.Session{}, fmt.Errorf("%w: session %s", errForbidden, id)
	}
	return sess, nil
}

func requireAdmin(r *http.Request) error {
	if !principalFrom(r.Context()).IsAdmin() {
		return fmt.Errorf("%w: admin required", errForbidden)
	}
	return nil
}
