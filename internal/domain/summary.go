package domain

import (
	"fmt"
	"sort"
)

// FeeSummary is a student's fee position derived from the tenant fee table
// and the student's payments.
type FeeSummary struct {
	Total    float64
	HasTotal bool
	// Paid is the sum of verified payments only.
	Paid float64
	// Last is the most recent verified payment, nil when there is none.
	Last *FeePayment
}

// Remaining is Total minus Paid. ok is false when no fee is configured for
// the student's standard.
func (s FeeSummary) Remaining() (float64, bool) {
	if !s.HasTotal {
		return 0, false
	}
	return s.Total - s.Paid, true
}

// SummarizeFees computes the fee summary for one student. payments may
// include other students' payments; they are ignored.
func SummarizeFees(t Tenant, st Student, payments []FeePayment) FeeSummary {
	var s FeeSummary
	s.Total, s.HasTotal = t.FeeFor(st.Standard)

	for i := range payments {
		p := &payments[i]
		if p.StudentID != st.ID || !p.Verified() {
			continue
		}
		s.Paid += p.Amount
		if s.Last == nil || p.Date.After(s.Last.Date) {
			s.Last = p
		}
	}
	return s
}

// PaymentsByStudent groups payments by student ID, newest first.
func PaymentsByStudent(payments []FeePayment) map[string][]FeePayment {
	out := make(map[string][]FeePayment)
	for _, p := range payments {
		out[p.StudentID] = append(out[p.StudentID], p)
	}
	for _, ps := range out {
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Date.After(ps[j].Date) })
	}
	return out
}

// AttendanceSummary counts a student's marks over some period.
type AttendanceSummary struct {
	Present int
	Absent  int
	Leave   int
}

// Add counts one mark.
func (a *AttendanceSummary) Add(status AttendanceStatus) {
	switch status {
	case Present:
		a.Present++
	case Absent:
		a.Absent++
	case Leave:
		a.Leave++
	}
}

// Total is the number of marked days.
func (a AttendanceSummary) Total() int { return a.Present + a.Absent + a.Leave }

// Percent renders present/total*100 with two decimals, "0.00" when nothing
// has been marked.
func (a AttendanceSummary) Percent() string {
	total := a.Total()
	if total == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(a.Present)/float64(total)*100)
}
