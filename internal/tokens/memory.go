package tokens

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is used by Start when interval is not positive.
const DefaultSweepInterval = time.Minute

// MemoryStore keeps tokens in a mutex-guarded map. Expired tokens are
// invisible to Get immediately and are removed by Sweep, which Start runs
// periodically until Close or context cancellation.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. Call Start to enable sweeping.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

func (m *MemoryStore) Put(_ context.Context, kind Kind, subject string, ttl time.Duration) (Entry, error) {
	e := Entry{Token: newToken(), Kind: kind, Subject: subject}
	if ttl > 0 {
		e.ExpiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[e.Token] = e
	m.mu.Unlock()
	return e, nil
}

func (m *MemoryStore) Get(_ context.Context, token string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[token]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if e.Expired(m.now()) {
		delete(m.entries, token)
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.entries, token)
	m.mu.Unlock()
	return nil
}

// Len is the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep removes every entry expired at now and returns how many it removed.
func (m *MemoryStore) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for tok, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, tok)
			n++
		}
	}
	return n
}

// Start runs Sweep every interval in a background goroutine. It returns
// immediately; the goroutine exits when ctx is done or Close is called.
func (m *MemoryStore) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.Debug("token sweeper started", "interval", interval.String())
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				if n := m.Sweep(m.now()); n > 0 {
					slog.Debug("expired tokens swept", "count", n)
				}
			}
		}
	}()
}

// Close stops the sweeper and waits for it to exit. It is safe to call
// more than once.
func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
	return nil
}
