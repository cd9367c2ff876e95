// Package tokens is the expiring key-value store behind public registration
// and payment links. A token maps to one subject (a tenant for registration
// links, a student for payment links) until its TTL passes or it is deleted.
//
// Two backends exist: MemoryStore, owned by the server process and swept on
// an interval, and RedisStore, which leaves expiry to Redis.
package tokens

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind says what a token grants.
type Kind string

const (
	KindRegistration Kind = "registration"
	KindPayment      Kind = "payment"
)

// ErrNotFound is returned for unknown, expired or consumed tokens.
var ErrNotFound = errors.New("token not found or expired")

// Entry is a stored token.
type Entry struct {
	Token     string    `json:"token"`
	Kind      Kind      `json:"kind"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Store is implemented by every backend. Implementations are safe for
// concurrent use.
type Store interface {
	// Put stores a new random token for subject.
	Put(ctx context.Context, kind Kind, subject string, ttl time.Duration) (Entry, error)
	// Get returns a live token or ErrNotFound.
	Get(ctx context.Context, token string) (Entry, error)
	// Delete removes a token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
	// Close releases the backend.
	Close() error
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
