package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tuitiondesk/internal/core"
	"github.com/JonMunkholm/tuitiondesk/internal/logging"
)

// handleMarkAttendance upserts one mark: 201 when created, 200 when an
// existing mark for the day was updated.
func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	var in core.MarkAttendanceInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx := logging.WithTenant(r.Context(), in.TenantID)

	a, created, err := s.service.MarkAttendance(ctx, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSONStatus(w, status, a)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var in core.PaymentInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx := logging.WithTenant(r.Context(), in.TenantID)

	p, err := s.service.RecordPayment(ctx, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

// handleListPayments serves GET /api/payments?tuition_id=&status=.
func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	ref, err := requireQuery(r, "tuition_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx := logging.WithTenant(r.Context(), ref)

	views, err := s.service.ListPayments(ctx, ref, r.URL.Query().Get("status"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, views)
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.VerifyPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// handleRejectPayment accepts an optional {"reason": "..."} body.
func (s *Server) handleRejectPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &body); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	p, err := s.service.RejectPayment(r.Context(), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (s *Server) handleSubmitAbsenceReason(w http.ResponseWriter, r *http.Request) {
	var in core.AbsenceReasonInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx := logging.WithTenant(r.Context(), in.TenantID)

	reason, err := s.service.SubmitAbsenceReason(ctx, in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, reason)
}

func (s *Server) handleListAbsenceReasons(w http.ResponseWriter, r *http.Request) {
	ref, err := requireQuery(r, "tuition_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx := logging.WithTenant(r.Context(), ref)

	q := r.URL.Query()
	reasons, err := s.service.ListAbsenceReasons(ctx, ref, q.Get("batch_id"), q.Get("date"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, reasons)
}
