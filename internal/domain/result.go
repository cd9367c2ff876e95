package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// SubjectMark is one subject on a result.
type SubjectMark struct {
	Name     string  `json:"name" validate:"required"`
	MaxMarks float64 `json:"max_marks" validate:"gt=0"`
	Obtained float64 `json:"obtained_marks" validate:"gte=0"`
}

// Percentage is round(obtained/max*100).
func (m SubjectMark) Percentage() int {
	return percentage(m.Obtained, m.MaxMarks)
}

// Grade is the letter grade for the subject.
func (m SubjectMark) Grade() string { return Grade(m.Percentage()) }

// Result is one exam result for a student.
type Result struct {
	ExamName string        `json:"exam_name" validate:"required"`
	ExamType string        `json:"exam_type"`
	ExamDate time.Time     `json:"exam_date"`
	Subjects []SubjectMark `json:"subjects" validate:"required,min=1,dive"`
	Remarks  string        `json:"remarks,omitempty"`
}

// Totals are the aggregate figures for a result.
type Totals struct {
	MaxMarks   float64
	Obtained   float64
	Percentage int
	Grade      string
}

// Totals sums all subjects and grades the aggregate.
func (r Result) Totals() Totals {
	var t Totals
	for _, s := range r.Subjects {
		t.MaxMarks += s.MaxMarks
		t.Obtained += s.Obtained
	}
	t.Percentage = percentage(t.Obtained, t.MaxMarks)
	t.Grade = Grade(t.Percentage)
	return t
}

// Validate rejects marks above the subject maximum.
func (r Result) Validate() error {
	var errs []error
	for _, s := range r.Subjects {
		if s.Obtained > s.MaxMarks {
			errs = append(errs, fmt.Errorf("%s: obtained %.0f exceeds max %.0f", s.Name, s.Obtained, s.MaxMarks))
		}
	}
	return errors.Join(errs...)
}

// Grade maps a percentage to a letter grade.
func Grade(pct int) string {
	switch {
	case pct >= 90:
		return "A+"
	case pct >= 80:
		return "A"
	case pct >= 70:
		return "B+"
	case pct >= 60:
		return "B"
	case pct >= 50:
		return "C"
	case pct >= 40:
		return "D"
	}
	return "F"
}

func percentage(obtained, max float64) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(obtained / max * 100))
}
