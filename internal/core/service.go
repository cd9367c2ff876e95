package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/tuitiondesk/internal/backup"
	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
	"github.com/JonMunkholm/tuitiondesk/internal/tokens"
)

// Default link lifetimes.
const (
	DefaultRegistrationTTL = 7 * 24 * time.Hour
	DefaultPaymentTTL      = 72 * time.Hour
)

// DefaultMaxArchiveSize caps an uploaded archive when Options leaves it zero.
const DefaultMaxArchiveSize int64 = 50 << 20

// Options tunes a Service. Zero values take defaults.
type Options struct {
	RegistrationTTL time.Duration
	PaymentTTL      time.Duration

	// MaxArchiveSize caps an uploaded archive in bytes (0: DefaultMaxArchiveSize).
	MaxArchiveSize int64
	// MaxUncompressed caps the decompressed size of an archive.
	MaxUncompressed int64
	// RowConcurrency bounds parallel writes within a restore phase.
	RowConcurrency int

	Limiter *ImportLimiter

	// AuditLogger receives audit records. Defaults to the request logger.
	AuditLogger *slog.Logger
}

// Service is the entry point for every tuitiondesk operation. It is shared
// by the HTTP handlers and the CLI.
type Service struct {
	store    store.Store
	tokens   tokens.Store
	limiter  *ImportLimiter
	opts     Options
	validate *validator.Validate
	auditLog *slog.Logger
	now      func() time.Time
}

// NewService wires a Service over a store and a token store.
func NewService(st store.Store, tk tokens.Store, opts Options) *Service {
	if opts.RegistrationTTL <= 0 {
		opts.RegistrationTTL = DefaultRegistrationTTL
	}
	if opts.PaymentTTL <= 0 {
		opts.PaymentTTL = DefaultPaymentTTL
	}
	if opts.MaxArchiveSize <= 0 {
		opts.MaxArchiveSize = DefaultMaxArchiveSize
	}
	if opts.MaxUncompressed <= 0 {
		opts.MaxUncompressed = backup.DefaultMaxUncompressed
	}
	if opts.Limiter == nil {
		opts.Limiter = NewImportLimiter(DefaultMaxConcurrentImports, DefaultImportWait)
	}
	return &Service{
		store:    st,
		tokens:   tk,
		limiter:  opts.Limiter,
		opts:     opts,
		validate: newValidator(),
		auditLog: opts.AuditLogger,
		now:      time.Now,
	}
}

// Limiter exposes the import limiter for shutdown draining and health.
func (s *Service) Limiter() *ImportLimiter { return s.limiter }

// MaxArchiveSize is the configured upload cap.
func (s *Service) MaxArchiveSize() int64 { return s.opts.MaxArchiveSize }

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// check runs struct validation and converts failures to *ValidationError.
func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fromValidator(err)
	}
	return nil
}

func invalid(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// tenant resolves a tenant custom or internal ID.
func (s *Service) tenant(ctx context.Context, ref string) (domain.Tenant, error) {
	if strings.TrimSpace(ref) == "" {
		return domain.Tenant{}, missing("tuition_id")
	}
	return backup.ResolveTenant(ctx, s.store, ref)
}

// student resolves a student by internal ID or STU-n.
func (s *Service) student(ctx context.Context, ref string) (domain.Student, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Student{}, missing("student_id")
	}
	st, err := s.store.StudentByID(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		st, err = s.store.StudentByCustomID(ctx, ref)
	}
	if err != nil {
		return domain.Student{}, fmt.Errorf("student %s: %w", ref, err)
	}
	return st, nil
}

// batch resolves a batch by internal ID or BATCH-n.
func (s *Service) batch(ctx context.Context, ref string) (domain.Batch, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Batch{}, missing("batch_id")
	}
	b, err := s.store.BatchByID(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		b, err = s.store.BatchByCustomID(ctx, ref)
	}
	if err != nil {
		return domain.Batch{}, fmt.Errorf("batch %s: %w", ref, err)
	}
	return b, nil
}

// mint assigns the next durable ID of kind k.
func (s *Service) mint(ctx context.Context, k domain.Kind) (string, error) {
	n, err := s.store.NextSequence(ctx, k)
	if err != nil {
		return "", fmt.Errorf("next %s id: %w", k, err)
	}
	return domain.FormatCustomID(k, n), nil
}

// day parses an optional YYYY-MM-DD, defaulting to today (UTC).
func (s *Service) day(field, v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return domain.Day(s.now()), nil
	}
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, invalid(field, "must be a date in 2006-01-02 form")
	}
	return d, nil
}
