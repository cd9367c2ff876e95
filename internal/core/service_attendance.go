package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
)

// MarkAttendanceInput is one attendance mark. IDs accept custom or
// internal forms; Date defaults to today (UTC).
type MarkAttendanceInput struct {
	TenantID  string `json:"tuition_id" validate:"required"`
	BatchID   string `json:"batch_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required"`
	Note      string `json:"note"`
	MarkedBy  string `json:"marked_by"`
}

// MarkAttendance records one mark per (student, batch, UTC day). An
// existing mark is updated in place. created reports whether a new record
// was written.
func (s *Service) MarkAttendance(ctx context.Context, in MarkAttendanceInput) (domain.Attendance, bool, error) {
	if err := s.check(in); err != nil {
		return domain.Attendance{}, false, err
	}
	status, err := domain.ParseAttendanceStatus(in.Status)
	if err != nil {
		return domain.Attendance{}, false, invalid("status", "must be one of: present absent leave")
	}
	day, err := s.day("date", in.Date)
	if err != nil {
		return domain.Attendance{}, false, err
	}

	t, err := s.tenant(ctx, in.TenantID)
	if err != nil {
		return domain.Attendance{}, false, err
	}
	b, err := s.batch(ctx, in.BatchID)
	if err != nil {
		return domain.Attendance{}, false, err
	}
	st, err := s.student(ctx, in.StudentID)
	if err != nil {
		return domain.Attendance{}, false, err
	}
	if b.TenantID != t.ID || st.TenantID != t.ID {
		return domain.Attendance{}, false, fmt.Errorf("student or batch outside tuition %s: %w", t.CustomID, store.ErrNotFound)
	}

	marker := strings.TrimSpace(in.MarkedBy)
	if marker == "" {
		marker = ActorFromContext(ctx).UserID
	}

	// A concurrent create of the same key surfaces as ErrConflict; the
	// second attempt then finds and updates it.
	for attempt := 0; ; attempt++ {
		existing, err := s.store.FindAttendance(ctx, st.ID, b.ID, day)
		switch {
		case err == nil:
			existing.Status = status
			existing.MarkedBy = marker
			existing.Note = in.Note
			if err := s.store.UpdateAttendance(ctx, existing); err != nil {
				return domain.Attendance{}, false, fmt.Errorf("update attendance: %w", err)
			}
			return existing, false, nil
		case !errors.Is(err, store.ErrNotFound):
			return domain.Attendance{}, false, fmt.Errorf("find attendance: %w", err)
		}

		a := domain.Attendance{
			TenantID:  t.ID,
			BatchID:   b.ID,
			StudentID: st.ID,
			Date:      day,
			Status:    status,
			MarkedBy:  marker,
			Note:      in.Note,
		}
		err = s.store.CreateAttendance(ctx, &a)
		if err == nil {
			return a, true, nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt > 0 {
			return domain.Attendance{}, false, fmt.Errorf("create attendance: %w", err)
		}
	}
}
