package web

import (
	"bytes"
	"net/http"

	"github.com/JonMunkholm/tuitiondesk/internal/core"
	"github.com/JonMunkholm/tuitiondesk/internal/domain"
)

// handleResultCard renders a result card PNG.
func (s *Server) handleResultCard(w http.ResponseWriter, r *http.Request) {
	var req core.ResultCardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.service.RenderResultCard(r.Context(), &buf, req); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleBackfill assigns missing custom IDs across all tenants. When the
// caller is identified by a bearer token it must be an admin.
func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	if a := core.ActorFromContext(r.Context()); a.UserID != "" && a.Role != string(domain.RoleAdmin) {
		s.respondError(w, r, core.ErrForbidden)
		return
	}
	res, err := s.service.BackfillCustomIDs(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"updated": res.Total(),
		"counts":  res,
	})
}
