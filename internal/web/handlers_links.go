package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tuitiondesk/internal/core"
	"github.com/JonMunkholm/tuitiondesk/internal/logging"
)

func (s *Server) handleIssueRegistrationLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TenantID string `json:"tuition_id"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx := logging.WithTenant(r.Context(), body.TenantID)

	link, err := s.service.IssueRegistrationLink(ctx, body.TenantID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, link)
}

// handleSubmitRegistration is public: the link token is the credential.
func (s *Server) handleSubmitRegistration(w http.ResponseWriter, r *http.Request) {
	var form core.RegistrationForm
	if err := decodeJSON(w, r, &form); err != nil {
		s.respondError(w, r, err)
		return
	}

	view, err := s.service.SubmitRegistration(r.Context(), chi.URLParam(r, "token"), form)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, view)
}

func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	ref, err := requireQuery(r, "tuition_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx := logging.WithTenant(r.Context(), ref)

	views, err := s.service.ListRegistrations(ctx, ref, r.URL.Query().Get("status"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, views)
}

func (s *Server) handleReviewRegistration(w http.ResponseWriter, r *http.Request) {
	var in core.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	view, err := s.service.ReviewRegistration(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleIssuePaymentLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StudentID string `json:"student_id"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	link, err := s.service.IssuePaymentLink(r.Context(), body.StudentID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, link)
}

// handleSubmitPaymentLink is public and consumes the token on success.
func (s *Server) handleSubmitPaymentLink(w http.ResponseWriter, r *http.Request) {
	var in core.PaymentLinkInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}

	p, err := s.service.SubmitPaymentLink(r.Context(), chi.URLParam(r, "token"), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}
