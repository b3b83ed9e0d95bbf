package api

import (
	"net/http"
	"time"

	"wahook/internal/buildinfo"
)

// DebugJSON reports build info and the effective configuration (admin only).
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"config": s.Config.Redacted(),
	})
}
