package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
)

// PaymentInput records a fee payment. Date defaults to today (UTC).
type PaymentInput struct {
	TenantID  string  `json:"tuition_id" validate:"required"`
	StudentID string  `json:"student_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"gt=0"`
	Mode      string  `json:"mode" validate:"required"`
	Date      string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Note      string  `json:"note"`
}

func (s *Service) parsePayment(in PaymentInput) (domain.PaymentMode, error) {
	if err := s.check(in); err != nil {
		return "", err
	}
	mode, err := domain.ParsePaymentMode(in.Mode)
	if err != nil {
		return "", invalid("mode", "must be one of: cash online upi bank_transfer")
	}
	return mode, nil
}

// RecordPayment stores a manual payment, verified by the calling user.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (domain.FeePayment, error) {
	mode, err := s.parsePayment(in)
	if err != nil {
		return domain.FeePayment{}, err
	}
	date, err := s.day("date", in.Date)
	if err != nil {
		return domain.FeePayment{}, err
	}
	t, err := s.tenant(ctx, in.TenantID)
	if err != nil {
		return domain.FeePayment{}, err
	}
	st, err := s.student(ctx, in.StudentID)
	if err != nil {
		return domain.FeePayment{}, err
	}
	if st.TenantID != t.ID {
		return domain.FeePayment{}, fmt.Errorf("student %s outside tuition %s: %w", in.StudentID, t.CustomID, store.ErrNotFound)
	}

	now := s.now().UTC()
	p := domain.FeePayment{
		TenantID:   t.ID,
		StudentID:  st.ID,
		Amount:     in.Amount,
		Mode:       mode,
		Date:       date,
		Status:     domain.PaymentVerified,
		Source:     domain.PaymentSourceManual,
		VerifiedBy: ActorFromContext(ctx).UserID,
		VerifiedAt: &now,
		Note:       in.Note,
	}
	if err := s.store.CreatePayment(ctx, &p); err != nil {
		return domain.FeePayment{}, fmt.Errorf("create payment: %w", err)
	}
	return p, nil
}

// VerifyPayment moves a pending payment to verified.
func (s *Service) VerifyPayment(ctx context.Context, id string) (domain.FeePayment, error) {
	return s.transitionPayment(ctx, id, domain.PaymentVerified, "")
}

// RejectPayment moves a pending payment to rejected. reason, when given,
// is appended to the note.
func (s *Service) RejectPayment(ctx context.Context, id, reason string) (domain.FeePayment, error) {
	return s.transitionPayment(ctx, id, domain.PaymentRejected, reason)
}

func (s *Service) transitionPayment(ctx context.Context, id string, to domain.PaymentStatus, reason string) (domain.FeePayment, error) {
	if id == "" {
		return domain.FeePayment{}, missing("payment_id")
	}
	p, err := s.store.PaymentByID(ctx, id)
	if err != nil {
		return domain.FeePayment{}, fmt.Errorf("payment %s: %w", id, err)
	}
	if p.Status != domain.PaymentPending {
		return domain.FeePayment{}, fmt.Errorf("%w: payment is %s", ErrInvalidTransition, p.Status)
	}

	now := s.now().UTC()
	p.Status = to
	p.VerifiedBy = ActorFromContext(ctx).UserID
	p.VerifiedAt = &now
	if reason != "" {
		if p.Note != "" {
			p.Note += "; "
		}
		p.Note += reason
	}
	if err := s.store.UpdatePayment(ctx, p); err != nil {
		return domain.FeePayment{}, fmt.Errorf("update payment: %w", err)
	}

	action := ActionPaymentVerify
	if to == domain.PaymentRejected {
		action = ActionPaymentReject
	}
	s.audit(ctx, AuditEntry{Action: action, TenantID: p.TenantID, Subject: p.ID, Detail: []any{"amount", p.Amount}})
	return p, nil
}

// PaymentView is a payment with the student it belongs to, as listed on
// the verification queue.
type PaymentView struct {
	domain.FeePayment
	StudentName     string `json:"studentName"`
	StudentCustomID string `json:"studentCustomId"`
}

// ListPayments returns the tenant's payments newest first, optionally
// filtered by status.
func (s *Service) ListPayments(ctx context.Context, tenantRef, status string) ([]PaymentView, error) {
	want := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(status)))
	if want != "" && !want.Valid() {
		return nil, invalid("status", "must be one of: pending verified rejected")
	}
	t, err := s.tenant(ctx, tenantRef)
	if err != nil {
		return nil, err
	}

	payments, err := s.store.PaymentsByTenant(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	students, err := s.store.StudentsByTenant(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	byID := make(map[string]domain.Student, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}

	sort.SliceStable(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })
	out := make([]PaymentView, 0, len(payments))
	for _, p := range payments {
		if want != "" && p.Status != want {
			continue
		}
		st := byID[p.StudentID]
		out = append(out, PaymentView{FeePayment: p, StudentName: st.Name, StudentCustomID: st.CustomID})
	}
	return out, nil
}

// ListPendingPayments is ListPayments filtered to payments awaiting review.
func (s *Service) ListPendingPayments(ctx context.Context, tenantRef string) ([]PaymentView, error) {
	return s.ListPayments(ctx, tenantRef, string(domain.PaymentPending))
}
