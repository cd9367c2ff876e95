package web

// This file contains shared request helpers used across handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tuitiondesk/internal/core"
)

// maxJSONBody caps JSON request bodies. Result cards carry a photo, so the
// limit is generous.
const maxJSONBody = 8 << 20

// decodeJSON reads a single JSON object from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return &core.ValidationError{Fields: map[string]string{"body": fmt.Sprintf("must be at most %d bytes", maxErr.Limit)}}
		case errors.Is(err, io.EOF):
			return &core.ValidationError{Fields: map[string]string{"body": "is required"}}
		default:
			return &core.ValidationError{Fields: map[string]string{"body": "must be a valid JSON object"}}
		}
	}
	return nil
}

// requireQuery returns a trimmed query parameter or a missing-param error.
func requireQuery(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s", core.ErrMissingParam, name)
	}
	return v, nil
}

// attachment sets download headers.
func attachment(w http.ResponseWriter, contentType, fileName string, size int) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if size >= 0 {
		w.Header().Set("Content-Length", strconv.Itoa(size))
	}
}

// handleHealth pings the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, map[string]any{
		"status":  "ok",
		"imports": s.service.Limiter().Status(),
	})
}
