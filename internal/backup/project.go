package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/tabular"
)

// Dataset is everything one tenant's export needs.
type Dataset struct {
	Tenant     domain.Tenant
	Batches    []domain.Batch
	Students   []domain.Student
	Payments   []domain.FeePayment
	Attendance []domain.Attendance
	Papers     []domain.Paper
}

// UserIDs lists every user referenced by the dataset.
func (d *Dataset) UserIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(d.Tenant.OwnerID)
	for _, id := range d.Tenant.SubTeacherIDs {
		add(id)
	}
	for _, b := range d.Batches {
		for _, id := range b.TeacherIDs {
			add(id)
		}
	}
	for _, a := range d.Attendance {
		add(a.MarkedBy)
	}
	for _, p := range d.Papers {
		add(p.UploadedBy)
	}
	return ids
}

// Projector flattens a Dataset into archive sheets.
type Projector struct {
	mapper *Mapper
}

// NewProjector returns a Projector that renders user references with m.
func NewProjector(m *Mapper) *Projector {
	return &Projector{mapper: m}
}

type projection struct {
	ds       *Dataset
	batches  map[string]domain.Batch
	students map[string]domain.Student
	payments map[string][]domain.FeePayment
	sheets   map[string]*tabular.Sheet
}

// Project returns one sheet per archive entry, sorted by path. Sheets with
// no rows are not returned.
func (p *Projector) Project(ctx context.Context, ds *Dataset) ([]*tabular.Sheet, error) {
	if err := p.mapper.Preload(ctx, ds.UserIDs()); err != nil {
		return nil, err
	}

	pr := &projection{
		ds:       ds,
		batches:  make(map[string]domain.Batch, len(ds.Batches)),
		students: make(map[string]domain.Student, len(ds.Students)),
		payments: domain.PaymentsByStudent(ds.Payments),
		sheets:   make(map[string]*tabular.Sheet),
	}
	for _, b := range ds.Batches {
		pr.batches[b.ID] = b
	}
	for _, s := range ds.Students {
		pr.students[s.ID] = s
	}

	tenantRow, err := p.tenantRow(ctx, ds.Tenant)
	if err != nil {
		return nil, err
	}
	pr.sheet(TuitionTable, tabular.Location{}).Add(tenantRow)

	for _, b := range sortedBatches(ds.Batches) {
		pr.sheet(BatchesTable, tabular.Location{}).Add(tabular.Row{
			ColBatchID:  b.CustomID,
			ColName:     b.Name,
			ColStandard: b.Standard,
			ColTeachers: strings.Join(p.mapper.UserDisplays(ctx, b.TeacherIDs), ", "),
			ColSchedule: b.Schedule.String(),
		})
	}

	for _, pp := range ds.Papers {
		pr.sheet(PapersTable, tabular.Location{}).Add(tabular.Row{
			ColTitle:      pp.Title,
			ColStandard:   pp.Standard,
			ColFileURL:    pp.FileURL,
			ColUploadedBy: p.mapper.UserDisplay(ctx, pp.UploadedBy),
		})
	}

	for _, st := range sortedStudents(ds.Students) {
		loc := pr.studentLocation(st)
		pr.sheet(StudentsTable, loc).Add(tabular.Row{
			ColStudentID: st.CustomID,
			ColName:      st.Name,
			ColPhone:     st.Phone,
			ColAddress:   st.Address,
			ColBatchID:   pr.batches[st.BatchID].CustomID,
		})
		pr.sheet(FeesTable, loc).Add(pr.feeRow(st))
	}

	for _, a := range pr.sortedAttendance() {
		st, found := pr.students[a.StudentID]
		b := pr.batches[a.BatchID]
		loc := tabular.Location{Standard: b.Standard, Batch: b.Name, Date: domain.DayKey(a.Date)}
		if found {
			loc.Standard = st.Standard
		}
		pr.sheet(AttendanceTable, loc).Add(tabular.Row{
			ColStudentID: st.CustomID,
			ColName:      st.Name,
			ColBatchID:   b.CustomID,
			ColDate:      domain.DayKey(a.Date),
			ColStatus:    string(a.Status),
			ColMarkedBy:  p.mapper.UserDisplay(ctx, a.MarkedBy),
			ColNote:      a.Note,
		})
	}

	return pr.result(), nil
}

func (p *Projector) tenantRow(ctx context.Context, t domain.Tenant) (tabular.Row, error) {
	fees := t.Fees
	if fees == nil {
		fees = []domain.FeeStructure{}
	}
	feesJSON, err := json.Marshal(fees)
	if err != nil {
		return nil, fmt.Errorf("encode fee structure: %w", err)
	}
	return tabular.Row{
		ColTuitionID:   t.CustomID,
		ColName:        t.Name,
		ColAddress:     t.Address,
		ColOwner:       p.mapper.UserDisplay(ctx, t.OwnerID),
		ColContactInfo: t.ContactInfo,
		ColSubTeachers: strings.Join(p.mapper.UserDisplays(ctx, t.SubTeacherIDs), "; "),
		ColFees:        string(feesJSON),
	}, nil
}

func (pr *projection) sheet(t tabular.Table, loc tabular.Location) *tabular.Sheet {
	path := t.Path(loc)
	s, ok := pr.sheets[path]
	if !ok {
		s = tabular.NewSheet(t, loc)
		pr.sheets[path] = s
	}
	return s
}

// studentLocation groups a student by its own standard and batch name.
func (pr *projection) studentLocation(st domain.Student) tabular.Location {
	loc := tabular.Location{Standard: st.Standard}
	if b, ok := pr.batches[st.BatchID]; ok {
		loc.Batch = b.Name
	}
	return loc
}

// feeRow derives the fee columns. Total and Remaining are empty when the
// tenant has no fee configured for the student's standard.
func (pr *projection) feeRow(st domain.Student) tabular.Row {
	sum := domain.SummarizeFees(pr.ds.Tenant, st, pr.payments[st.ID])
	row := tabular.Row{
		ColStudentID: st.CustomID,
		ColName:      st.Name,
		ColPaidFee:   tabular.FormatAmount(sum.Paid),
	}
	if sum.HasTotal {
		row[ColTotalFee] = tabular.FormatAmount(sum.Total)
	}
	if rem, ok := sum.Remaining(); ok {
		row[ColRemainingFee] = tabular.FormatAmount(rem)
	}
	if sum.Last != nil {
		row[ColLastPaymentDate] = domain.DayKey(sum.Last.Date)
		row[ColLastPaymentMode] = string(sum.Last.Mode)
		row[ColNote] = sum.Last.Note
	}
	return row
}

func (pr *projection) sortedAttendance() []domain.Attendance {
	out := append([]domain.Attendance(nil), pr.ds.Attendance...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return studentLess(pr.students[a.StudentID], pr.students[b.StudentID])
	})
	return out
}

// result numbers each sheet's rows and returns the sheets ordered by path.
func (pr *projection) result() []*tabular.Sheet {
	out := make([]*tabular.Sheet, 0, len(pr.sheets))
	for _, s := range pr.sheets {
		if s.Len() == 0 {
			continue
		}
		if s.Table.Layout != tabular.LayoutSingleton {
			for i, r := range s.Rows {
				r[ColRollNo] = strconv.Itoa(i + 1)
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func sortedBatches(bs []domain.Batch) []domain.Batch {
	out := append([]domain.Batch(nil), bs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Standard != out[j].Standard {
			return out[i].Standard < out[j].Standard
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func sortedStudents(ss []domain.Student) []domain.Student {
	out := append([]domain.Student(nil), ss...)
	sort.SliceStable(out, func(i, j int) bool { return studentLess(out[i], out[j]) })
	return out
}

func studentLess(a, b domain.Student) bool {
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	return a.CustomID < b.CustomID
}
