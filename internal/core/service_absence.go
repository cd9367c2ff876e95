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
)

// AbsenceReasonInput is the public absence form. Date defaults to today (UTC).
type AbsenceReasonInput struct {
	TenantID    string `json:"tuition_id" validate:"required"`
	StudentName string `json:"student_name" validate:"required"`
	RollNumber  string `json:"roll_number" validate:"required"`
	Phone       string `json:"phone_number" validate:"required"`
	Standard    string `json:"standard" validate:"required"`
	BatchName   string `json:"batch_name" validate:"required"`
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Reason      string `json:"reason" validate:"required"`
}

// SubmitAbsenceReason stores one reason per (tenant, roll number, UTC day).
func (s *Service) SubmitAbsenceReason(ctx context.Context, in AbsenceReasonInput) (domain.AbsenceReason, error) {
	if err := s.check(in); err != nil {
		return domain.AbsenceReason{}, err
	}
	date, err := s.day("date", in.Date)
	if err != nil {
		return domain.AbsenceReason{}, err
	}
	t, err := s.tenant(ctx, in.TenantID)
	if err != nil {
		return domain.AbsenceReason{}, err
	}

	r := domain.AbsenceReason{
		TenantID:    t.ID,
		StudentName: strings.TrimSpace(in.StudentName),
		RollNumber:  strings.TrimSpace(in.RollNumber),
		Phone:       strings.TrimSpace(in.Phone),
		Standard:    strings.TrimSpace(in.Standard),
		BatchName:   strings.TrimSpace(in.BatchName),
		Date:        date,
		Reason:      strings.TrimSpace(in.Reason),
	}
	if err := s.store.CreateAbsenceReason(ctx, &r); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.AbsenceReason{}, fmt.Errorf("%w: roll %s on %s", ErrDuplicateAbsence, r.RollNumber, domain.DayKey(date))
		}
		return domain.AbsenceReason{}, fmt.Errorf("create absence reason: %w", err)
	}
	return r, nil
}

// ListAbsenceReasons returns the tenant's absence reasons newest first.
// batchRef narrows to reasons whose batch name matches that batch; date
// (2006-01-02) narrows to one day. Both are optional.
func (s *Service) ListAbsenceReasons(ctx context.Context, tenantRef, batchRef, date string) ([]domain.AbsenceReason, error) {
	var day time.Time
	if strings.TrimSpace(date) != "" {
		d, err := s.day("date", date)
		if err != nil {
			return nil, err
		}
		day = d
	}
	t, err := s.tenant(ctx, tenantRef)
	if err != nil {
		return nil, err
	}
	var batchName string
	if strings.TrimSpace(batchRef) != "" {
		b, err := s.batch(ctx, batchRef)
		if err != nil {
			return nil, err
		}
		if b.TenantID != t.ID {
			return nil, fmt.Errorf("batch %s outside tuition %s: %w", batchRef, t.CustomID, store.ErrNotFound)
		}
		batchName = b.Name
	}

	reasons, err := s.store.AbsenceReasonsByTenant(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list absence reasons: %w", err)
	}
	sort.SliceStable(reasons, func(i, j int) bool { return reasons[i].CreatedAt.After(reasons[j].CreatedAt) })
	out := make([]domain.AbsenceReason, 0, len(reasons))
	for _, r := range reasons {
		if batchName != "" && !strings.EqualFold(strings.TrimSpace(r.BatchName), batchName) {
			continue
		}
		if !day.IsZero() && !domain.Day(r.Date).Equal(day) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
