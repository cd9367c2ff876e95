package reports

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/tabular"
)

// Kind names a report.
type Kind string

const (
	KindStudents          Kind = "students"
	KindFees              Kind = "fees"
	KindAttendance        Kind = "attendance"
	KindAttendanceSummary Kind = "attendance-summary"
	KindDefaulters        Kind = "defaulters"
)

// Kinds lists every report.
var Kinds = []Kind{KindStudents, KindFees, KindAttendance, KindAttendanceSummary, KindDefaulters}

// ParseKind validates a report name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == strings.ToLower(strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

var (
	ErrUnknownKind  = errors.New("unknown report")
	ErrMissingMonth = errors.New("month is required (YYYY-MM)")
	ErrBadFilter    = errors.New("invalid report filter")
	ErrNoRows       = errors.New("no records found")
)

// NotApplicable fills last-payment columns for students with no payment.
const NotApplicable = "N/A"

// Filter narrows a report. Empty fields mean "any". BatchID and StudentID
// accept either custom or internal IDs.
type Filter struct {
	Standard  string
	BatchID   string
	StudentID string
	Date      string // YYYY-MM-DD, attendance only
	Month     string // YYYY-MM, attendance-summary
}

// Input is the tenant data a report is built from.
type Input struct {
	Tenant     domain.Tenant
	Batches    []domain.Batch
	Students   []domain.Student
	Payments   []domain.FeePayment
	Attendance []domain.Attendance
	Users      map[string]domain.User
}

// Report is a built report.
type Report struct {
	Kind  Kind
	Sheet *tabular.Sheet
	// Name is the download file name without extension.
	Name string
}

type builder struct {
	in       *Input
	f        Filter
	batches  map[string]domain.Batch
	students map[string]domain.Student
}

// Build produces the report of kind k. It returns ErrNoRows when nothing
// matches.
func Build(k Kind, in *Input, f Filter) (*Report, error) {
	b := &builder{
		in:       in,
		f:        f,
		batches:  make(map[string]domain.Batch, len(in.Batches)),
		students: make(map[string]domain.Student, len(in.Students)),
	}
	for _, x := range in.Batches {
		b.batches[x.ID] = x
	}
	for _, x := range in.Students {
		b.students[x.ID] = x
	}

	var (
		sheet *tabular.Sheet
		err   error
	)
	switch k {
	case KindStudents:
		sheet = b.studentsReport()
	case KindFees:
		sheet = b.feesReport(FeesTable, false)
	case KindDefaulters:
		sheet = b.feesReport(DefaultersTable, true)
	case KindAttendance:
		sheet, err = b.attendanceReport()
	case KindAttendanceSummary:
		sheet, err = b.summaryReport()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	if err != nil {
		return nil, err
	}
	if sheet.Len() == 0 {
		return nil, ErrNoRows
	}
	for i, r := range sheet.Rows {
		r[ColRollNo] = strconv.Itoa(i + 1)
	}
	return &Report{Kind: k, Sheet: sheet, Name: fileName(k, in.Tenant, f)}, nil
}

func fileName(k Kind, t domain.Tenant, f Filter) string {
	id := t.CustomID
	if id == "" {
		id = t.ID
	}
	parts := []string{string(k) + "_report", id}
	for _, v := range []string{f.Standard, f.BatchID, f.StudentID, f.Date, f.Month} {
		if v != "" {
			parts = append(parts, tabular.Segment(v, "x"))
		}
	}
	return strings.ReplaceAll(strings.Join(parts, "_"), " ", "-")
}

func matchID(want, id, customID string) bool {
	return want == "" || want == id || strings.EqualFold(want, customID)
}

func (b *builder) keepStudent(st domain.Student) bool {
	if b.f.Standard != "" && st.Standard != b.f.Standard {
		return false
	}
	if !matchID(b.f.StudentID, st.ID, st.CustomID) {
		return false
	}
	if b.f.BatchID != "" {
		bt, ok := b.batches[st.BatchID]
		return ok && matchID(b.f.BatchID, bt.ID, bt.CustomID)
	}
	return true
}

// orderedStudents returns the filtered students sorted by standard, batch
// name and student name.
func (b *builder) orderedStudents() []domain.Student {
	var out []domain.Student
	for _, st := range b.in.Students {
		if b.keepStudent(st) {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		x, y := out[i], out[j]
		if x.Standard != y.Standard {
			return x.Standard < y.Standard
		}
		bx, by := b.batches[x.BatchID].Name, b.batches[y.BatchID].Name
		if bx != by {
			return bx < by
		}
		return strings.ToLower(x.Name) < strings.ToLower(y.Name)
	})
	return out
}

// identity fills the columns every per-student report shares.
func (b *builder) identity(st domain.Student) tabular.Row {
	bt := b.batches[st.BatchID]
	return tabular.Row{
		ColName:      st.Name,
		ColStandard:  st.Standard,
		ColPhone:     st.Phone,
		ColBatchName: bt.Name,
		ColStudentID: st.CustomID,
		ColBatchID:   bt.CustomID,
		ColTuitionID: b.in.Tenant.CustomID,
	}
}

func (b *builder) studentsReport() *tabular.Sheet {
	s := tabular.NewSheet(StudentsTable, tabular.Location{})
	for _, st := range b.orderedStudents() {
		r := b.identity(st)
		r[ColAddress] = st.Address
		r[ColBatchTime] = b.batches[st.BatchID].Schedule.String()
		s.Add(r)
	}
	return s
}

func (b *builder) feesReport(t tabular.Table, defaultersOnly bool) *tabular.Sheet {
	s := tabular.NewSheet(t, tabular.Location{})
	byStudent := domain.PaymentsByStudent(b.in.Payments)
	for _, st := range b.orderedStudents() {
		sum := domain.SummarizeFees(b.in.Tenant, st, byStudent[st.ID])
		rem, ok := sum.Remaining()
		if defaultersOnly && (!ok || rem <= 0) {
			continue
		}
		r := b.identity(st)
		r[ColPaidFee] = tabular.FormatAmount(sum.Paid)
		if sum.HasTotal {
			r[ColTotalFee] = tabular.FormatAmount(sum.Total)
		}
		if ok {
			r[ColRemaining] = tabular.FormatAmount(rem)
		}
		r[ColLastDate], r[ColLastMode] = NotApplicable, NotApplicable
		if sum.Last != nil {
			r[ColLastDate] = domain.DayKey(sum.Last.Date)
			r[ColLastMode] = string(sum.Last.Mode)
		}
		s.Add(r)
	}
	return s
}

func (b *builder) attendanceReport() (*tabular.Sheet, error) {
	var day time.Time
	if b.f.Date != "" {
		d, err := time.Parse(time.DateOnly, b.f.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: date %q", ErrBadFilter, b.f.Date)
		}
		day = d
	}

	marks := make([]domain.Attendance, 0, len(b.in.Attendance))
	for _, a := range b.in.Attendance {
		st, ok := b.students[a.StudentID]
		if !ok || !b.keepStudent(st) {
			continue
		}
		if b.f.BatchID != "" {
			bt := b.batches[a.BatchID]
			if !matchID(b.f.BatchID, bt.ID, bt.CustomID) {
				continue
			}
		}
		if !day.IsZero() && !domain.Day(a.Date).Equal(day) {
			continue
		}
		marks = append(marks, a)
	}
	sort.SliceStable(marks, func(i, j int) bool {
		if !marks[i].Date.Equal(marks[j].Date) {
			return marks[i].Date.Before(marks[j].Date)
		}
		return strings.ToLower(b.students[marks[i].StudentID].Name) < strings.ToLower(b.students[marks[j].StudentID].Name)
	})

	s := tabular.NewSheet(AttendanceTable, tabular.Location{})
	for _, a := range marks {
		r := b.identity(b.students[a.StudentID])
		bt := b.batches[a.BatchID]
		r[ColBatchName], r[ColBatchID] = bt.Name, bt.CustomID
		r[ColDate] = domain.DayKey(a.Date)
		r[ColStatus] = string(a.Status)
		r[ColMarkedBy] = b.in.Users[a.MarkedBy].Name
		s.Add(r)
	}
	return s, nil
}

// MonthRange returns [first day, first day of next month) for YYYY-MM.
func MonthRange(month string) (time.Time, time.Time, error) {
	if strings.TrimSpace(month) == "" {
		return time.Time{}, time.Time{}, ErrMissingMonth
	}
	start, err := time.Parse("2006-01", strings.TrimSpace(month))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: month %q", ErrBadFilter, month)
	}
	return start, start.AddDate(0, 1, 0), nil
}

func (b *builder) summaryReport() (*tabular.Sheet, error) {
	from, to, err := MonthRange(b.f.Month)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]*domain.AttendanceSummary)
	for _, a := range b.in.Attendance {
		if a.Date.Before(from) || !a.Date.Before(to) {
			continue
		}
		c, ok := counts[a.StudentID]
		if !ok {
			c = &domain.AttendanceSummary{}
			counts[a.StudentID] = c
		}
		c.Add(a.Status)
	}

	s := tabular.NewSheet(SummaryTable, tabular.Location{})
	for _, st := range b.orderedStudents() {
		var c domain.AttendanceSummary
		if got, ok := counts[st.ID]; ok {
			c = *got
		}
		r := b.identity(st)
		r[ColTotalDays] = strconv.Itoa(c.Total())
		r[ColPresent] = strconv.Itoa(c.Present)
		r[ColAbsent] = strconv.Itoa(c.Absent)
		r[ColLeave] = strconv.Itoa(c.Leave)
		r[ColAttendance] = c.Percent()
		s.Add(r)
	}
	return s, nil
}
