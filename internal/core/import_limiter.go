package core

// import_limiter.go caps how many archive imports run at once.
//
// An import holds its whole archive in memory and fans out store writes, so
// the server admits a few at a time. Callers wait up to maxWait for a slot
// before getting ErrTooManyImports. Shutdown calls WaitForDrain so running
// imports finish before the store is closed.

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	// DefaultMaxConcurrentImports is used when the configured limit is not positive.
	DefaultMaxConcurrentImports = 2

	// DefaultImportWait is how long Acquire waits for a slot by default.
	DefaultImportWait = 30 * time.Second
)

// ImportLimiter is a counting semaphore over import slots.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int32
}

// NewImportLimiter allows at most maxConcurrent imports, each waiting at
// most maxWait for a slot.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultImportWait
	}
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot. The caller must call Release exactly once after a
// nil return.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-timer.C:
		return ErrTooManyImports
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot.
func (l *ImportLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Do runs fn while holding a slot.
func (l *ImportLimiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn(ctx)
}

// ActiveCount is the number of running imports.
func (l *ImportLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// WaitForDrain blocks until no import is running or ctx ends.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.ActiveCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// LimiterStatus is a snapshot for the health endpoint.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *ImportLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
