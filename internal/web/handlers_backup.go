package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/JonMunkholm/tuitiondesk/internal/core"
	"github.com/JonMunkholm/tuitiondesk/internal/logging"
)

// multipartOverhead allows for form boundaries on top of the archive limit.
const multipartOverhead = 1 << 20

// handleExport streams a tenant's backup archive.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ref, err := requireQuery(r, "tuition_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx := logging.WithTenant(r.Context(), ref)

	bundle, err := s.service.Export(ctx, ref)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	attachment(w, "application/zip", bundle.FileName, len(bundle.Data))
	if _, err := w.Write(bundle.Data); err != nil {
		logging.FromContext(ctx).Warn("export write aborted", "error", err)
	}
}

// handleImport restores an uploaded archive. The archive arrives either as
// the multipart field "file" or as a raw application/zip body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	limit := s.service.MaxArchiveSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	body, closeBody, err := uploadedArchive(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer closeBody()

	summary, err := s.service.Import(r.Context(), body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = fmt.Errorf("%w: %v", core.ErrArchiveTooLarge, err)
		}
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

func uploadedArchive(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/zip" || mediaType == "application/octet-stream" {
		return r.Body, func() {}, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, fmt.Errorf("%w: %v", core.ErrArchiveTooLarge, err)
		}
		return nil, nil, fmt.Errorf("%w: file", core.ErrMissingParam)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: file", core.ErrMissingParam)
	}
	return file, func() { file.Close() }, nil
}
