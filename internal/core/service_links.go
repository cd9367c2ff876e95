package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
	"github.com/JonMunkholm/tuitiondesk/internal/tokens"
)

// Link is an issued public link token.
type Link struct {
	Token     string      `json:"token"`
	Kind      tokens.Kind `json:"kind"`
	Subject   string      `json:"subject"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (s *Service) issue(ctx context.Context, kind tokens.Kind, tenantID, subject string, ttl time.Duration) (Link, error) {
	e, err := s.tokens.Put(ctx, kind, subject, ttl)
	if err != nil {
		return Link{}, fmt.Errorf("issue %s link: %w", kind, err)
	}
	s.audit(ctx, AuditEntry{Action: ActionLinkIssued, TenantID: tenantID, Subject: subject, Detail: []any{"kind", string(kind)}})
	return Link{Token: e.Token, Kind: e.Kind, Subject: e.Subject, ExpiresAt: e.ExpiresAt}, nil
}

// redeem returns the live token of the expected kind.
func (s *Service) redeem(ctx context.Context, token string, kind tokens.Kind) (tokens.Entry, error) {
	if strings.TrimSpace(token) == "" {
		return tokens.Entry{}, ErrInvalidToken
	}
	e, err := s.tokens.Get(ctx, token)
	if errors.Is(err, tokens.ErrNotFound) {
		return tokens.Entry{}, ErrInvalidToken
	}
	if err != nil {
		return tokens.Entry{}, fmt.Errorf("get token: %w", err)
	}
	if e.Kind != kind {
		return tokens.Entry{}, ErrInvalidToken
	}
	return e, nil
}

// IssueRegistrationLink creates a public registration link for a tenant.
func (s *Service) IssueRegistrationLink(ctx context.Context, tenantRef string) (Link, error) {
	t, err := s.tenant(ctx, tenantRef)
	if err != nil {
		return Link{}, err
	}
	return s.issue(ctx, tokens.KindRegistration, t.ID, t.ID, s.opts.RegistrationTTL)
}

// RegistrationForm is what a prospective student submits.
type RegistrationForm struct {
	Name        string  `json:"name" validate:"required"`
	Phone       string  `json:"phone" validate:"required"`
	Address     string  `json:"address"`
	Standard    string  `json:"standard" validate:"required"`
	BatchName   string  `json:"batch_name"`
	PhotoURL    string  `json:"photo_url" validate:"omitempty,url"`
	FeesPaid    float64 `json:"fees_paid" validate:"gte=0"`
	PaymentMode string  `json:"payment_mode"`
	PaymentDate string  `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
}

// PaymentPending as a form payment mode means "nothing paid yet".
const PaymentPending = "pending"

// SubmitRegistration creates a pending student from a public form. The
// link stays valid for further students of the same tenant.
func (s *Service) SubmitRegistration(ctx context.Context, token string, form RegistrationForm) (domain.RegistrationView, error) {
	e, err := s.redeem(ctx, token, tokens.KindRegistration)
	if err != nil {
		return domain.RegistrationView{}, err
	}
	if err := s.check(form); err != nil {
		return domain.RegistrationView{}, err
	}
	var mode domain.PaymentMode
	payNow := form.FeesPaid > 0 && !strings.EqualFold(strings.TrimSpace(form.PaymentMode), PaymentPending)
	if payNow {
		if mode, err = domain.ParsePaymentMode(form.PaymentMode); err != nil {
			return domain.RegistrationView{}, invalid("payment_mode", "must be one of: cash online upi bank_transfer pending")
		}
	}
	payDate, err := s.day("payment_date", form.PaymentDate)
	if err != nil {
		return domain.RegistrationView{}, err
	}

	t, err := s.store.TenantByID(ctx, e.Subject)
	if err != nil {
		return domain.RegistrationView{}, fmt.Errorf("registration tuition: %w", err)
	}

	var batch *domain.Batch
	if name := strings.TrimSpace(form.BatchName); name != "" {
		b, err := s.findOrCreateBatch(ctx, t, strings.TrimSpace(form.Standard), name)
		if err != nil {
			return domain.RegistrationView{}, err
		}
		batch = &b
	}

	customID, err := s.mint(ctx, domain.KindStudent)
	if err != nil {
		return domain.RegistrationView{}, err
	}
	st := domain.Student{
		CustomID:           customID,
		TenantID:           t.ID,
		Name:               strings.TrimSpace(form.Name),
		Phone:              strings.TrimSpace(form.Phone),
		Address:            strings.TrimSpace(form.Address),
		PhotoURL:           form.PhotoURL,
		Standard:           strings.TrimSpace(form.Standard),
		RegistrationSource: domain.SourcePublicForm,
		Status:             domain.StudentPending,
	}
	if batch != nil {
		st.BatchID = batch.ID
	}
	if err := s.store.CreateStudent(ctx, &st); err != nil {
		return domain.RegistrationView{}, fmt.Errorf("create student: %w", err)
	}
	if batch != nil {
		if err := s.store.AddStudentToBatch(ctx, batch.ID, st.ID); err != nil {
			return domain.RegistrationView{}, fmt.Errorf("add to batch: %w", err)
		}
	}

	var payments []domain.FeePayment
	if payNow {
		p := domain.FeePayment{
			TenantID:  t.ID,
			StudentID: st.ID,
			Amount:    form.FeesPaid,
			Mode:      mode,
			Date:      payDate,
			Status:    domain.PaymentPending,
			Source:    domain.PaymentSourceStudent,
		}
		if err := s.store.CreatePayment(ctx, &p); err != nil {
			return domain.RegistrationView{}, fmt.Errorf("create payment: %w", err)
		}
		payments = append(payments, p)
	}

	return domain.NewRegistrationView(st, t, batch, payments), nil
}

// findOrCreateBatch matches a batch by standard and case-insensitive name.
func (s *Service) findOrCreateBatch(ctx context.Context, t domain.Tenant, standard, name string) (domain.Batch, error) {
	batches, err := s.store.BatchesByTenant(ctx, t.ID)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("list batches: %w", err)
	}
	for _, b := range batches {
		if b.Standard == standard && strings.EqualFold(b.Name, name) {
			return b, nil
		}
	}

	customID, err := s.mint(ctx, domain.KindBatch)
	if err != nil {
		return domain.Batch{}, err
	}
	b := domain.Batch{CustomID: customID, TenantID: t.ID, Name: name, Standard: standard}
	if err := s.store.CreateBatch(ctx, &b); err != nil {
		return domain.Batch{}, fmt.Errorf("create batch: %w", err)
	}
	return b, nil
}

// ListRegistrations returns the tenant's students as registration views,
// newest first, optionally filtered by status.
func (s *Service) ListRegistrations(ctx context.Context, tenantRef, status string) ([]domain.RegistrationView, error) {
	want := domain.StudentStatus(strings.ToLower(strings.TrimSpace(status)))
	if want != "" && !want.Valid() {
		return nil, invalid("status", "must be one of: pending approved rejected")
	}
	t, err := s.tenant(ctx, tenantRef)
	if err != nil {
		return nil, err
	}

	students, err := s.store.StudentsByTenant(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	batches, err := s.store.BatchesByTenant(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	payments, err := s.store.PaymentsByTenant(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	byID := make(map[string]*domain.Batch, len(batches))
	for i := range batches {
		byID[batches[i].ID] = &batches[i]
	}
	byStudent := domain.PaymentsByStudent(payments)

	sort.SliceStable(students, func(i, j int) bool { return students[i].CreatedAt.After(students[j].CreatedAt) })
	out := make([]domain.RegistrationView, 0, len(students))
	for _, st := range students {
		if want != "" && st.Status != want {
			continue
		}
		out = append(out, domain.NewRegistrationView(st, t, byID[st.BatchID], byStudent[st.ID]))
	}
	return out, nil
}

// ReviewInput is a registration decision.
type ReviewInput struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected"`
	Notes  string `json:"notes"`
}

// ReviewRegistration sets a student's status. Approval records the
// reviewer and time.
func (s *Service) ReviewRegistration(ctx context.Context, id string, in ReviewInput) (domain.RegistrationView, error) {
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if err := s.check(in); err != nil {
		return domain.RegistrationView{}, err
	}
	st, err := s.student(ctx, id)
	if err != nil {
		return domain.RegistrationView{}, err
	}

	st.Status = domain.StudentStatus(in.Status)
	if in.Notes != "" {
		st.Notes = in.Notes
	}
	st.ApprovedBy, st.ApprovedAt = "", nil
	if st.Status == domain.StudentApproved {
		now := s.now().UTC()
		st.ApprovedBy = ActorFromContext(ctx).UserID
		st.ApprovedAt = &now
	}
	if err := s.store.UpdateStudent(ctx, st); err != nil {
		return domain.RegistrationView{}, fmt.Errorf("update student: %w", err)
	}

	t, err := s.store.TenantByID(ctx, st.TenantID)
	if err != nil {
		return domain.RegistrationView{}, fmt.Errorf("student tuition: %w", err)
	}
	var batch *domain.Batch
	if st.BatchID != "" {
		if b, err := s.store.BatchByID(ctx, st.BatchID); err == nil {
			batch = &b
		}
	}
	payments, err := s.store.PaymentsByTenant(ctx, t.ID)
	if err != nil {
		return domain.RegistrationView{}, fmt.Errorf("list payments: %w", err)
	}

	s.audit(ctx, AuditEntry{Action: ActionRegistrationReview, TenantID: t.ID, Subject: st.ID, Detail: []any{"status", in.Status}})
	return domain.NewRegistrationView(st, t, batch, payments), nil
}

// IssuePaymentLink creates a public payment link for one student.
func (s *Service) IssuePaymentLink(ctx context.Context, studentRef string) (Link, error) {
	st, err := s.student(ctx, studentRef)
	if err != nil {
		return Link{}, err
	}
	return s.issue(ctx, tokens.KindPayment, st.TenantID, st.ID, s.opts.PaymentTTL)
}

// PaymentLinkInput is what a student submits through a payment link.
type PaymentLinkInput struct {
	Amount float64 `json:"amount" validate:"gt=0"`
	Mode   string  `json:"mode" validate:"required"`
	Date   string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Note   string  `json:"note"`
}

// SubmitPaymentLink records a pending payment and consumes the link. A
// second pending payment for the same student, amount, mode and day is
// rejected with store.ErrConflict.
func (s *Service) SubmitPaymentLink(ctx context.Context, token string, in PaymentLinkInput) (domain.FeePayment, error) {
	e, err := s.redeem(ctx, token, tokens.KindPayment)
	if err != nil {
		return domain.FeePayment{}, err
	}
	if err := s.check(in); err != nil {
		return domain.FeePayment{}, err
	}
	mode, err := domain.ParsePaymentMode(in.Mode)
	if err != nil {
		return domain.FeePayment{}, invalid("mode", "must be one of: cash online upi bank_transfer")
	}
	date, err := s.day("date", in.Date)
	if err != nil {
		return domain.FeePayment{}, err
	}

	st, err := s.store.StudentByID(ctx, e.Subject)
	if err != nil {
		return domain.FeePayment{}, fmt.Errorf("payment link student: %w", err)
	}
	existing, err := s.store.PaymentsByTenant(ctx, st.TenantID)
	if err != nil {
		return domain.FeePayment{}, fmt.Errorf("list payments: %w", err)
	}
	for _, p := range existing {
		if p.StudentID == st.ID && p.Status == domain.PaymentPending && p.Amount == in.Amount &&
			p.Mode == mode && domain.Day(p.Date).Equal(date) {
			return domain.FeePayment{}, fmt.Errorf("pending payment %s already submitted: %w", p.ID, store.ErrConflict)
		}
	}

	p := domain.FeePayment{
		TenantID:  st.TenantID,
		StudentID: st.ID,
		Amount:    in.Amount,
		Mode:      mode,
		Date:      date,
		Status:    domain.PaymentPending,
		Source:    domain.PaymentSourceLink,
		Note:      in.Note,
	}
	if err := s.store.CreatePayment(ctx, &p); err != nil {
		return domain.FeePayment{}, fmt.Errorf("create payment: %w", err)
	}
	if err := s.tokens.Delete(ctx, token); err != nil {
		return domain.FeePayment{}, fmt.Errorf("consume link: %w", err)
	}
	return p, nil
}
