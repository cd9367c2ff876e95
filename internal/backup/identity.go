package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
)

// DisplayUser renders a user as "Name (Phone)". The phone is the key
// ResolveUser uses on the way back in.
func DisplayUser(u domain.User) string {
	name := strings.TrimSpace(u.Name)
	phone := strings.TrimSpace(u.Phone)
	switch {
	case phone == "":
		return name
	case name == "":
		return "(" + phone + ")"
	}
	return name + " (" + phone + ")"
}

// ParseDisplayPhone extracts the phone from a "Name (Phone)" string. A bare
// value made only of phone characters is accepted as a phone too.
func ParseDisplayPhone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if end := strings.LastIndex(s, ")"); end > 0 {
		if start := strings.LastIndex(s[:end], "("); start >= 0 {
			phone := strings.TrimSpace(s[start+1 : end])
			return phone, phone != ""
		}
	}
	if s != "" && strings.Trim(s, "+0123456789 -") == "" {
		return s, true
	}
	return "", false
}

// SplitDisplayList splits a list of display strings. Both ", " and "; "
// separators are accepted; commas inside parentheses are not separators.
func SplitDisplayList(s string) []string {
	var out []string
	depth, start := 0, 0
	flush := func(end int) {
		if part := strings.TrimSpace(s[start:end]); part != "" {
			out = append(out, part)
		}
	}
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',', ';':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(s))
	return out
}

// Claim is the outcome of resolving a durable custom ID on import.
type Claim struct {
	// ExistingID is the internal ID of a record to reuse, "" when the
	// caller must create one.
	ExistingID string
	// CustomID is the ID the record has, or must be created with.
	CustomID string
}

// Reused reports whether an existing record was matched.
func (c Claim) Reused() bool { return c.ExistingID != "" }

// Mapper translates between internal references and durable keys. It
// caches users by ID and by phone; one Mapper serves one export or import.
type Mapper struct {
	store store.Store

	mu      sync.Mutex
	byID    map[string]domain.User
	byPhone map[string]domain.User
}

// NewMapper returns a Mapper reading from s.
func NewMapper(s store.Store) *Mapper {
	return &Mapper{
		store:   s,
		byID:    make(map[string]domain.User),
		byPhone: make(map[string]domain.User),
	}
}

// Preload fetches the given users in one call so later lookups hit the
// cache. Unknown IDs are ignored.
func (m *Mapper) Preload(ctx context.Context, ids []string) error {
	var missing []string
	m.mu.Lock()
	for _, id := range ids {
		if _, ok := m.byID[id]; !ok && id != "" {
			missing = append(missing, id)
		}
	}
	m.mu.Unlock()
	if len(missing) == 0 {
		return nil
	}

	users, err := m.store.UsersByIDs(ctx, missing)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	m.mu.Lock()
	for _, u := range users {
		m.remember(u)
	}
	m.mu.Unlock()
	return nil
}

func (m *Mapper) remember(u domain.User) {
	m.byID[u.ID] = u
	if u.Phone != "" {
		m.byPhone[u.Phone] = u
	}
}

// UserDisplay returns the display string for a user ID, "" when the user
// no longer exists.
func (m *Mapper) UserDisplay(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	m.mu.Lock()
	u, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		var err error
		if u, err = m.store.UserByID(ctx, id); err != nil {
			return ""
		}
		m.mu.Lock()
		m.remember(u)
		m.mu.Unlock()
	}
	return DisplayUser(u)
}

// UserDisplays maps IDs to display strings, dropping unresolved ones.
func (m *Mapper) UserDisplays(ctx context.Context, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if d := m.UserDisplay(ctx, id); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// ResolveUser finds the user named by a display string by exact phone
// match. It returns store.ErrNotFound when the string carries no phone or
// no user has it.
func (m *Mapper) ResolveUser(ctx context.Context, display string) (domain.User, error) {
	phone, ok := ParseDisplayPhone(display)
	if !ok {
		return domain.User{}, fmt.Errorf("no phone in %q: %w", display, store.ErrNotFound)
	}

	m.mu.Lock()
	u, hit := m.byPhone[phone]
	m.mu.Unlock()
	if hit {
		return u, nil
	}

	u, err := m.store.UserByPhone(ctx, phone)
	if err != nil {
		return domain.User{}, err
	}
	m.mu.Lock()
	m.remember(u)
	m.mu.Unlock()
	return u, nil
}

// Mint allocates the next custom ID of kind k.
func (m *Mapper) Mint(ctx context.Context, k domain.Kind) (string, error) {
	n, err := m.store.NextSequence(ctx, k)
	if err != nil {
		return "", fmt.Errorf("next %s id: %w", k, err)
	}
	return domain.FormatCustomID(k, n), nil
}

// Reserve advances the counter of kind k to the highest custom ID in ids.
// Call it before claiming any of them so a minted ID never equals an
// archive ID that has not been claimed yet.
func (m *Mapper) Reserve(ctx context.Context, k domain.Kind, ids []string) error {
	var highest int64
	for _, id := range ids {
		if n, ok := domain.ParseCustomID(k, strings.TrimSpace(id)); ok && n > highest {
			highest = n
		}
	}
	if highest == 0 {
		return nil
	}
	if err := m.store.AdvanceSequence(ctx, k, highest); err != nil {
		return fmt.Errorf("advance %s counter: %w", k, err)
	}
	return nil
}

// ClaimTenant resolves a tenant custom ID. Tenants are matched globally.
func (m *Mapper) ClaimTenant(ctx context.Context, customID string) (Claim, error) {
	return m.claim(ctx, domain.KindTenant, customID, "", func(ctx context.Context, id string) (string, string, error) {
		t, err := m.store.TenantByCustomID(ctx, id)
		return t.ID, "", err
	})
}

// ClaimBatch resolves a batch custom ID within tenantID.
func (m *Mapper) ClaimBatch(ctx context.Context, tenantID, customID string) (Claim, error) {
	return m.claim(ctx, domain.KindBatch, customID, tenantID, func(ctx context.Context, id string) (string, string, error) {
		b, err := m.store.BatchByCustomID(ctx, id)
		return b.ID, b.TenantID, err
	})
}

// ClaimStudent resolves a student custom ID within tenantID.
func (m *Mapper) ClaimStudent(ctx context.Context, tenantID, customID string) (Claim, error) {
	return m.claim(ctx, domain.KindStudent, customID, tenantID, func(ctx context.Context, id string) (string, string, error) {
		s, err := m.store.StudentByCustomID(ctx, id)
		return s.ID, s.TenantID, err
	})
}

type lookupFunc func(ctx context.Context, customID string) (id, tenantID string, err error)

// claim implements reuse-or-create for one custom ID:
//   - found and owned by tenantID (or tenantID is ""): reuse it
//   - absent: create with the same ID and advance the counter past it
//   - empty, or taken by another tenant: mint a fresh ID
func (m *Mapper) claim(ctx context.Context, k domain.Kind, customID, tenantID string, lookup lookupFunc) (Claim, error) {
	customID = strings.TrimSpace(customID)
	if customID == "" {
		id, err := m.Mint(ctx, k)
		return Claim{CustomID: id}, err
	}

	id, owner, err := lookup(ctx, customID)
	switch {
	case err == nil && (tenantID == "" || owner == tenantID):
		return Claim{ExistingID: id, CustomID: customID}, nil
	case err == nil:
		fresh, err := m.Mint(ctx, k)
		return Claim{CustomID: fresh}, err
	case !errors.Is(err, store.ErrNotFound):
		return Claim{}, fmt.Errorf("lookup %s: %w", customID, err)
	}

	if n, ok := domain.ParseCustomID(k, customID); ok {
		if err := m.store.AdvanceSequence(ctx, k, n); err != nil {
			return Claim{}, fmt.Errorf("advance %s counter: %w", k, err)
		}
	}
	return Claim{CustomID: customID}, nil
}
