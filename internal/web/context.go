package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/tuitiondesk/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.Header.Get("User-Agent"))
	return ctx
}

// requestMetadata applies WithRequestMetadata to every request.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestMetadata(r.Context(), r)))
	})
}

// clientIP is RemoteAddr without the port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
