package domain

import (
	"testing"
	"time"
)

func TestSummarizeFees(t *testing.T) {
	tenant := Tenant{Fees: []FeeStructure{{Standard: "8th", TotalFee: 5000}}}
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	payments := []FeePayment{
		{StudentID: "s1", Amount: 2000, Status: PaymentVerified, Date: day},
		{StudentID: "s1", Amount: 1500, Status: PaymentVerified, Date: day.AddDate(0, 0, 3), Mode: ModeUPI},
		{StudentID: "s1", Amount: 900, Status: PaymentPending, Date: day.AddDate(0, 0, 5)},
		{StudentID: "s2", Amount: 700, Status: PaymentVerified, Date: day},
	}

	t.Run("configured standard", func(t *testing.T) {
		s := SummarizeFees(tenant, Student{ID: "s1", Standard: "8th"}, payments)
		if s.Paid != 3500 {
			t.Errorf("Paid = %v, want 3500", s.Paid)
		}
		rem, ok := s.Remaining()
		if !ok || rem != 1500 {
			t.Errorf("Remaining() = %v, %v, want 1500, true", rem, ok)
		}
		if s.Last == nil || s.Last.Mode != ModeUPI {
			t.Errorf("Last = %+v, want the UPI payment", s.Last)
		}
	})

	t.Run("unconfigured standard", func(t *testing.T) {
		s := SummarizeFees(tenant, Student{ID: "s2", Standard: "9th"}, payments)
		if _, ok := s.Remaining(); ok {
			t.Error("Remaining() ok = true, want false for unconfigured standard")
		}
		if s.Paid != 700 {
			t.Errorf("Paid = %v, want 700", s.Paid)
		}
	})
}

func TestAttendanceSummaryPercent(t *testing.T) {
	var a AttendanceSummary
	if got := a.Percent(); got != "0.00" {
		t.Errorf("empty Percent() = %q, want 0.00", got)
	}
	a.Add(Present)
	a.Add(Present)
	a.Add(Absent)
	if got := a.Percent(); got != "66.67" {
		t.Errorf("Percent() = %q, want 66.67", got)
	}
	if a.Total() != 3 {
		t.Errorf("Total() = %d, want 3", a.Total())
	}
}

func TestCustomIDs(t *testing.T) {
	if got := FormatCustomID(KindStudent, 42); got != "STU-42" {
		t.Errorf("FormatCustomID = %q, want STU-42", got)
	}
	tests := []struct {
		kind Kind
		id   string
		want int64
		ok   bool
	}{
		{KindTenant, "TUI-7", 7, true},
		{KindBatch, "batch-12", 12, true},
		{KindStudent, "STU-", 0, false},
		{KindStudent, "BATCH-3", 0, false},
		{KindStudent, "STU-x1", 0, false},
	}
	for _, tt := range tests {
		n, ok := ParseCustomID(tt.kind, tt.id)
		if n != tt.want || ok != tt.ok {
			t.Errorf("ParseCustomID(%s, %q) = %d, %v, want %d, %v", tt.kind, tt.id, n, ok, tt.want, tt.ok)
		}
	}
}

func TestScheduleRoundTrip(t *testing.T) {
	tests := []Schedule{
		{Days: []string{"Mon", "Wed"}, Time: "17:00"},
		{Days: []string{"Sat"}},
		{Time: "08:30"},
		{},
	}
	for _, s := range tests {
		got := ParseSchedule(s.String())
		if got.String() != s.String() {
			t.Errorf("ParseSchedule(%q) = %q", s.String(), got.String())
		}
	}
}

func TestDayKey(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	ts := time.Date(2024, 1, 10, 23, 0, 0, 0, time.UTC)
	if got := DayKey(ts.In(ist)); got != "2024-01-10" {
		t.Errorf("DayKey = %q, want 2024-01-10", got)
	}
}

func TestParseEnums(t *testing.T) {
	if m, err := ParsePaymentMode("Bank Transfer"); err != nil || m != ModeBankTransfer {
		t.Errorf("ParsePaymentMode = %q, %v", m, err)
	}
	if _, err := ParsePaymentMode("cheque"); err == nil {
		t.Error("ParsePaymentMode(cheque) should fail")
	}
	if s, err := ParseAttendanceStatus(" PRESENT "); err != nil || s != Present {
		t.Errorf("ParseAttendanceStatus = %q, %v", s, err)
	}
}

func TestGrades(t *testing.T) {
	tests := []struct {
		pct  int
		want string
	}{
		{95, "A+"}, {90, "A+"}, {89, "A"}, {75, "B+"}, {60, "B"}, {55, "C"}, {40, "D"}, {39, "F"},
	}
	for _, tt := range tests {
		if got := Grade(tt.pct); got != tt.want {
			t.Errorf("Grade(%d) = %q, want %q", tt.pct, got, tt.want)
		}
	}

	r := Result{Subjects: []SubjectMark{
		{Name: "Maths", MaxMarks: 100, Obtained: 92},
		{Name: "Science", MaxMarks: 50, Obtained: 33},
	}}
	if g := r.Subjects[1].Percentage(); g != 66 {
		t.Errorf("Science percentage = %d, want 66", g)
	}
	tot := r.Totals()
	if tot.Obtained != 125 || tot.MaxMarks != 150 || tot.Percentage != 83 || tot.Grade != "A" {
		t.Errorf("Totals() = %+v", tot)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	r.Subjects[0].Obtained = 101
	if err := r.Validate(); err == nil {
		t.Error("Validate() should reject obtained > max")
	}
}

func TestNewRegistrationView(t *testing.T) {
	tenant := Tenant{ID: "t1", CustomID: "TUI-1", Fees: []FeeStructure{{Standard: "10th", TotalFee: 8000}}}
	st := Student{ID: "s1", TenantID: "t1", Name: "Asha", Standard: "10th", Status: StudentPending}
	batch := &Batch{Name: "Morning"}
	payments := []FeePayment{
		{StudentID: "s1", Amount: 1000, Status: PaymentPending},
		{StudentID: "s1", Amount: 500, Status: PaymentVerified},
		{StudentID: "s1", Amount: 300, Status: PaymentRejected},
	}

	v := NewRegistrationView(st, tenant, batch, payments)
	if v.BatchName != "Morning" || v.TenantCustomID != "TUI-1" {
		t.Errorf("view = %+v", v)
	}
	if v.TotalFee != 8000 || v.FeesPaid != 1500 {
		t.Errorf("TotalFee, FeesPaid = %v, %v, want 8000, 1500", v.TotalFee, v.FeesPaid)
	}

	v = NewRegistrationView(st, tenant, nil, nil)
	if v.BatchName != "" {
		t.Errorf("BatchName = %q, want empty", v.BatchName)
	}
}
