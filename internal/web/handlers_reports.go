package web

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tuitiondesk/internal/core"
	"github.com/JonMunkholm/tuitiondesk/internal/logging"
	"github.com/JonMunkholm/tuitiondesk/internal/reports"
)

// handleReport renders a tenant report as a CSV or XLSX download.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := core.ReportRequest{
		TenantRef: q.Get("tuition_id"),
		Kind:      chi.URLParam(r, "kind"),
		Format:    q.Get("format"),
		Filter: reports.Filter{
			Standard:  q.Get("standard"),
			BatchID:   q.Get("batch_id"),
			StudentID: q.Get("student_id"),
			Date:      q.Get("date"),
			Month:     q.Get("month"),
		},
	}
	ctx := logging.WithTenant(r.Context(), req.TenantRef)

	rep, format, err := s.service.Report(ctx, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// Render fully before writing headers so a failure still gets a JSON error.
	var buf bytes.Buffer
	if err := rep.Write(&buf, format); err != nil {
		s.respondError(w, r, err)
		return
	}
	attachment(w, format.ContentType(), rep.FileName(format), buf.Len())
	_, _ = buf.WriteTo(w)
}
