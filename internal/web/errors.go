package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Error is mapped via core.MapError to a user message and code
//  4. The code picks the HTTP status
//  5. Technical error + request ID is logged; the client gets the message

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tuitiondesk/internal/core"
	"github.com/JonMunkholm/tuitiondesk/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Action string `json:"action,omitempty"`
}

// codeStatus maps error codes to HTTP status. Prefix entries end in "*".
var codeStatus = map[string]int{
	"BAK*":    http.StatusBadRequest,
	"REQ001":  http.StatusBadRequest,
	"REQ002":  http.StatusBadRequest,
	"REQ003":  http.StatusBadRequest,
	"REQ004":  http.StatusNotFound,
	"REQ005":  http.StatusConflict,
	"REQ006":  http.StatusConflict,
	"IMP001":  http.StatusUnprocessableEntity,
	"IMP002":  http.StatusTooManyRequests,
	"AUTH001": http.StatusNotFound,
	"AUTH002": http.StatusUnauthorized,
	"AUTH003": http.StatusForbidden,
	"DB001":   http.StatusNotFound,
	"DB002":   http.StatusConflict,
	"DB006":   http.StatusGatewayTimeout,
}

// statusFor returns the HTTP status for an error code.
func statusFor(code string) int {
	if s, ok := codeStatus[code]; ok {
		return s
	}
	for k, s := range codeStatus {
		if prefix, ok := strings.CutSuffix(k, "*"); ok && strings.HasPrefix(code, prefix) {
			return s
		}
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := core.MapError(err)
	status := statusFor(msg.Code)

	logger := logging.FromContext(r.Context())
	attrs := []any{"path", r.URL.Path, "method", r.Method, "status", status, "code", msg.Code, "error", err.Error()}
	if status >= 500 {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "30")
	}
	writeJSONStatus(w, status, ErrorResponse{Error: msg.Message, Code: msg.Code, Action: msg.Action})
}

// writeJSON encodes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON. Encoding errors are logged since
// headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
