package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/JonMunkholm/tuitiondesk/internal/core"
)

// Claims is the bearer token payload. Subject is the user ID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth verifies HS256 bearer tokens and records the caller as a
// core.Actor on the request context. Without required, requests lacking an
// Authorization header pass through anonymously; a header that is present
// but invalid is always rejected.
func JWTAuth(secret string, required bool) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				if required {
					deny(w, core.ErrUnauthorized, http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := ParseToken(key, raw)
			if err != nil {
				slog.Warn("auth: invalid bearer token", "path", r.URL.Path, "error", err)
				deny(w, core.ErrUnauthorized, http.StatusUnauthorized)
				return
			}

			ctx := core.ContextWithActor(r.Context(), core.Actor{UserID: claims.Subject, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

// ParseToken validates signature, algorithm and expiry.
func ParseToken(key []byte, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// SignToken issues an HS256 token for a user, valid until expires.
func SignToken(key []byte, userID, role string, expires time.Time) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
