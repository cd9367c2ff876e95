// Package store defines the persistence boundary. Backends live in
// subpackages: memstore (in-process), postgres (pgx) and mongostore.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write would violate a uniqueness rule,
	// such as a duplicate custom ID within a kind.
	ErrConflict = errors.New("record already exists")
)

// AttendanceFilter narrows an attendance listing. Zero values mean "any".
type AttendanceFilter struct {
	BatchID   string
	StudentID string
	From      time.Time // inclusive
	To        time.Time // exclusive
}

// Store is implemented by every backend. All listing methods return
// records in insertion order unless stated otherwise; callers that need a
// stable presentation order sort explicitly.
type Store interface {
	// NextSequence increments and returns the counter for kind.
	NextSequence(ctx context.Context, kind domain.Kind) (int64, error)
	// AdvanceSequence raises the counter for kind to at least n.
	AdvanceSequence(ctx context.Context, kind domain.Kind, n int64) error

	CreateUser(ctx context.Context, u *domain.User) error
	UserByID(ctx context.Context, id string) (domain.User, error)
	UserByPhone(ctx context.Context, phone string) (domain.User, error)
	UsersByIDs(ctx context.Context, ids []string) ([]domain.User, error)

	CreateTenant(ctx context.Context, t *domain.Tenant) error
	UpdateTenant(ctx context.Context, t domain.Tenant) error
	TenantByID(ctx context.Context, id string) (domain.Tenant, error)
	TenantByCustomID(ctx context.Context, customID string) (domain.Tenant, error)
	ListTenants(ctx context.Context) ([]domain.Tenant, error)

	CreateBatch(ctx context.Context, b *domain.Batch) error
	UpdateBatch(ctx context.Context, b domain.Batch) error
	BatchByID(ctx context.Context, id string) (domain.Batch, error)
	BatchByCustomID(ctx context.Context, customID string) (domain.Batch, error)
	BatchesByTenant(ctx context.Context, tenantID string) ([]domain.Batch, error)
	// AddStudentToBatch appends studentID to the roster if not already present.
	AddStudentToBatch(ctx context.Context, batchID, studentID string) error

	CreateStudent(ctx context.Context, s *domain.Student) error
	UpdateStudent(ctx context.Context, s domain.Student) error
	StudentByID(ctx context.Context, id string) (domain.Student, error)
	StudentByCustomID(ctx context.Context, customID string) (domain.Student, error)
	StudentsByTenant(ctx context.Context, tenantID string) ([]domain.Student, error)

	CreatePayment(ctx context.Context, p *domain.FeePayment) error
	UpdatePayment(ctx context.Context, p domain.FeePayment) error
	PaymentByID(ctx context.Context, id string) (domain.FeePayment, error)
	PaymentsByTenant(ctx context.Context, tenantID string) ([]domain.FeePayment, error)

	CreateAttendance(ctx context.Context, a *domain.Attendance) error
	UpdateAttendance(ctx context.Context, a domain.Attendance) error
	// FindAttendance returns the record for (student, batch, day), where day
	// is compared by UTC calendar date.
	FindAttendance(ctx context.Context, studentID, batchID string, day time.Time) (domain.Attendance, error)
	AttendanceByTenant(ctx context.Context, tenantID string, f AttendanceFilter) ([]domain.Attendance, error)

	CreatePaper(ctx context.Context, p *domain.Paper) error
	PapersByTenant(ctx context.Context, tenantID string) ([]domain.Paper, error)

	// CreateAbsenceReason returns ErrConflict when a reason for the same
	// roll number and UTC day already exists in the tenant.
	CreateAbsenceReason(ctx context.Context, r *domain.AbsenceReason) error
	AbsenceReasonsByTenant(ctx context.Context, tenantID string) ([]domain.AbsenceReason, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Matches reports whether a falls inside the filter.
func (f AttendanceFilter) Matches(a domain.Attendance) bool {
	if f.BatchID != "" && a.BatchID != f.BatchID {
		return false
	}
	if f.StudentID != "" && a.StudentID != f.StudentID {
		return false
	}
	if !f.From.IsZero() && a.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.Date.Before(f.To) {
		return false
	}
	return true
}
