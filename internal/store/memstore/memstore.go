// Package memstore is an in-process Store used by tests and by
// STORE_DRIVER=memory. One mutex guards all tables, so every method is
// safe for concurrent use; returned values are copies.
package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
)

type table[T any] struct {
	order []string
	rows  map[string]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) put(id string, v T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = v
}

func (t *table[T]) get(id string) (T, bool) {
	v, ok := t.rows[id]
	return v, ok
}

func (t *table[T]) find(match func(T) bool) (T, bool) {
	for _, id := range t.order {
		if v := t.rows[id]; match(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (t *table[T]) filter(match func(T) bool) []T {
	out := make([]T, 0)
	for _, id := range t.order {
		if v := t.rows[id]; match(v) {
			out = append(out, v)
		}
	}
	return out
}

// Store is the in-memory backend.
type Store struct {
	mu       sync.RWMutex
	counters map[domain.Kind]int64
	users    *table[domain.User]
	tenants  *table[domain.Tenant]
	batches  *table[domain.Batch]
	students *table[domain.Student]
	payments *table[domain.FeePayment]
	marks    *table[domain.Attendance]
	papers   *table[domain.Paper]
	absences *table[domain.AbsenceReason]
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		counters: make(map[domain.Kind]int64),
		users:    newTable[domain.User](),
		tenants:  newTable[domain.Tenant](),
		batches:  newTable[domain.Batch](),
		students: newTable[domain.Student](),
		payments: newTable[domain.FeePayment](),
		marks:    newTable[domain.Attendance](),
		papers:   newTable[domain.Paper](),
		absences: newTable[domain.AbsenceReason](),
		now:      time.Now,
	}
}

func (s *Store) stamp(id *string, created *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = s.now().UTC()
	}
}

// Counters

func (s *Store) NextSequence(_ context.Context, kind domain.Kind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[kind]++
	return s.counters[kind], nil
}

func (s *Store) AdvanceSequence(_ context.Context, kind domain.Kind, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counters[kind] < n {
		s.counters[kind] = n
	}
	return nil
}

// Users

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.users.find(func(x domain.User) bool { return u.Phone != "" && x.Phone == u.Phone }); dup {
		return store.ErrConflict
	}
	s.stamp(&u.ID, &u.CreatedAt)
	s.users.put(u.ID, *u)
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users.get(id); ok {
		return u, nil
	}
	return domain.User{}, store.ErrNotFound
}

func (s *Store) UserByPhone(_ context.Context, phone string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users.find(func(x domain.User) bool { return x.Phone == phone }); ok {
		return u, nil
	}
	return domain.User{}, store.ErrNotFound
}

func (s *Store) UsersByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users.get(id); ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// Tenants

func cloneTenant(t domain.Tenant) domain.Tenant {
	t.SubTeacherIDs = slices.Clone(t.SubTeacherIDs)
	t.Standards = slices.Clone(t.Standards)
	t.Fees = slices.Clone(t.Fees)
	return t
}

func (s *Store) CreateTenant(_ context.Context, t *domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CustomID != "" {
		if _, dup := s.tenants.find(func(x domain.Tenant) bool { return strings.EqualFold(x.CustomID, t.CustomID) }); dup {
			return store.ErrConflict
		}
	}
	s.stamp(&t.ID, &t.CreatedAt)
	s.tenants.put(t.ID, cloneTenant(*t))
	return nil
}

func (s *Store) UpdateTenant(_ context.Context, t domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants.get(t.ID); !ok {
		return store.ErrNotFound
	}
	s.tenants.put(t.ID, cloneTenant(t))
	return nil
}

func (s *Store) TenantByID(_ context.Context, id string) (domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants.get(id); ok {
		return cloneTenant(t), nil
	}
	return domain.Tenant{}, store.ErrNotFound
}

func (s *Store) TenantByCustomID(_ context.Context, customID string) (domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants.find(func(x domain.Tenant) bool { return strings.EqualFold(x.CustomID, customID) }); ok {
		return cloneTenant(t), nil
	}
	return domain.Tenant{}, store.ErrNotFound
}

func (s *Store) ListTenants(_ context.Context) ([]domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.tenants.filter(func(domain.Tenant) bool { return true })
	for i := range out {
		out[i] = cloneTenant(out[i])
	}
	return out, nil
}

// Batches

func cloneBatch(b domain.Batch) domain.Batch {
	b.TeacherIDs = slices.Clone(b.TeacherIDs)
	b.StudentIDs = slices.Clone(b.StudentIDs)
	b.Schedule.Days = slices.Clone(b.Schedule.Days)
	return b
}

func (s *Store) CreateBatch(_ context.Context, b *domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CustomID != "" {
		if _, dup := s.batches.find(func(x domain.Batch) bool { return strings.EqualFold(x.CustomID, b.CustomID) }); dup {
			return store.ErrConflict
		}
	}
	s.stamp(&b.ID, &b.CreatedAt)
	s.batches.put(b.ID, cloneBatch(*b))
	return nil
}

func (s *Store) UpdateBatch(_ context.Context, b domain.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches.get(b.ID); !ok {
		return store.ErrNotFound
	}
	s.batches.put(b.ID, cloneBatch(b))
	return nil
}

func (s *Store) BatchByID(_ context.Context, id string) (domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.batches.get(id); ok {
		return cloneBatch(b), nil
	}
	return domain.Batch{}, store.ErrNotFound
}

func (s *Store) BatchByCustomID(_ context.Context, customID string) (domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.batches.find(func(x domain.Batch) bool { return strings.EqualFold(x.CustomID, customID) }); ok {
		return cloneBatch(b), nil
	}
	return domain.Batch{}, store.ErrNotFound
}

func (s *Store) BatchesByTenant(_ context.Context, tenantID string) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.batches.filter(func(x domain.Batch) bool { return x.TenantID == tenantID })
	for i := range out {
		out[i] = cloneBatch(out[i])
	}
	return out, nil
}

func (s *Store) AddStudentToBatch(_ context.Context, batchID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches.get(batchID)
	if !ok {
		return store.ErrNotFound
	}
	if !slices.Contains(b.StudentIDs, studentID) {
		b = cloneBatch(b)
		b.StudentIDs = append(b.StudentIDs, studentID)
		s.batches.put(b.ID, b)
	}
	return nil
}

// Students

func (s *Store) CreateStudent(_ context.Context, st *domain.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.CustomID != "" {
		if _, dup := s.students.find(func(x domain.Student) bool { return strings.EqualFold(x.CustomID, st.CustomID) }); dup {
			return store.ErrConflict
		}
	}
	s.stamp(&st.ID, &st.CreatedAt)
	s.students.put(st.ID, *st)
	return nil
}

func (s *Store) UpdateStudent(_ context.Context, st domain.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students.get(st.ID); !ok {
		return store.ErrNotFound
	}
	s.students.put(st.ID, st)
	return nil
}

func (s *Store) StudentByID(_ context.Context, id string) (domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.students.get(id); ok {
		return st, nil
	}
	return domain.Student{}, store.ErrNotFound
}

func (s *Store) StudentByCustomID(_ context.Context, customID string) (domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.students.find(func(x domain.Student) bool { return strings.EqualFold(x.CustomID, customID) }); ok {
		return st, nil
	}
	return domain.Student{}, store.ErrNotFound
}

func (s *Store) StudentsByTenant(_ context.Context, tenantID string) ([]domain.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.students.filter(func(x domain.Student) bool { return x.TenantID == tenantID }), nil
}

// Payments

func (s *Store) CreatePayment(_ context.Context, p *domain.FeePayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&p.ID, &p.CreatedAt)
	s.payments.put(p.ID, *p)
	return nil
}

func (s *Store) UpdatePayment(_ context.Context, p domain.FeePayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments.get(p.ID); !ok {
		return store.ErrNotFound
	}
	s.payments.put(p.ID, p)
	return nil
}

func (s *Store) PaymentByID(_ context.Context, id string) (domain.FeePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.payments.get(id); ok {
		return p, nil
	}
	return domain.FeePayment{}, store.ErrNotFound
}

func (s *Store) PaymentsByTenant(_ context.Context, tenantID string) ([]domain.FeePayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payments.filter(func(x domain.FeePayment) bool { return x.TenantID == tenantID }), nil
}

// Attendance

func (s *Store) CreateAttendance(_ context.Context, a *domain.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	day := domain.Day(a.Date)
	if _, dup := s.marks.find(func(x domain.Attendance) bool {
		return x.StudentID == a.StudentID && x.BatchID == a.BatchID && domain.Day(x.Date).Equal(day)
	}); dup {
		return store.ErrConflict
	}
	s.stamp(&a.ID, &a.CreatedAt)
	s.marks.put(a.ID, *a)
	return nil
}

func (s *Store) UpdateAttendance(_ context.Context, a domain.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.marks.get(a.ID); !ok {
		return store.ErrNotFound
	}
	s.marks.put(a.ID, a)
	return nil
}

func (s *Store) FindAttendance(_ context.Context, studentID, batchID string, day time.Time) (domain.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := domain.Day(day)
	if a, ok := s.marks.find(func(x domain.Attendance) bool {
		return x.StudentID == studentID && x.BatchID == batchID && domain.Day(x.Date).Equal(d)
	}); ok {
		return a, nil
	}
	return domain.Attendance{}, store.ErrNotFound
}

func (s *Store) AttendanceByTenant(_ context.Context, tenantID string, f store.AttendanceFilter) ([]domain.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marks.filter(func(x domain.Attendance) bool { return x.TenantID == tenantID && f.Matches(x) }), nil
}

// Papers

func (s *Store) CreatePaper(_ context.Context, p *domain.Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&p.ID, &p.CreatedAt)
	s.papers.put(p.ID, *p)
	return nil
}

func (s *Store) PapersByTenant(_ context.Context, tenantID string) ([]domain.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.papers.filter(func(x domain.Paper) bool { return x.TenantID == tenantID }), nil
}

// Absence reasons

func (s *Store) CreateAbsenceReason(_ context.Context, r *domain.AbsenceReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.absences.find(func(x domain.AbsenceReason) bool { return x.SameAbsence(*r) }); dup {
		return store.ErrConflict
	}
	s.stamp(&r.ID, &r.CreatedAt)
	s.absences.put(r.ID, *r)
	return nil
}

func (s *Store) AbsenceReasonsByTenant(_ context.Context, tenantID string) ([]domain.AbsenceReason, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.absences.filter(func(x domain.AbsenceReason) bool { return x.TenantID == tenantID }), nil
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }
