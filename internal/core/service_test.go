package core

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/tuitiondesk/internal/backup"
	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/reports"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
	"github.com/JonMunkholm/tuitiondesk/internal/store/memstore"
	"github.com/JonMunkholm/tuitiondesk/internal/tokens"
)

const ownerPhone = "9990000000"

type fixture struct {
	svc     *Service
	store   *memstore.Store
	owner   domain.User
	tenant  domain.Tenant
	batch   domain.Batch
	student domain.Student
	audit   *bytes.Buffer
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func seedOwner(t *testing.T, s store.Store) domain.User {
	t.Helper()
	u := domain.User{Name: "Meera Rao", Phone: ownerPhone, Role: domain.RoleOwner}
	mustDo(t, s.CreateUser(context.Background(), &u))
	return u
}

func newService(s store.Store, opts Options) (*Service, *bytes.Buffer) {
	var buf bytes.Buffer
	opts.AuditLogger = slog.New(slog.NewJSONHandler(&buf, nil))
	return NewService(s, tokens.NewMemoryStore(), opts), &buf
}

// newFixture seeds TUI-1 with one batch, one student, a verified payment
// of 1000 against a fee of 4000 and one present mark on 2024-01-10.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()
	f := &fixture{store: s, owner: seedOwner(t, s)}

	f.tenant = domain.Tenant{
		CustomID: "TUI-1", Name: "Bright Minds", OwnerID: f.owner.ID,
		Fees: []domain.FeeStructure{{Standard: "8th", TotalFee: 4000}},
	}
	mustDo(t, s.CreateTenant(ctx, &f.tenant))
	f.batch = domain.Batch{CustomID: "BATCH-1", TenantID: f.tenant.ID, Name: "Morning", Standard: "8th"}
	mustDo(t, s.CreateBatch(ctx, &f.batch))
	f.student = domain.Student{
		CustomID: "STU-1", TenantID: f.tenant.ID, Name: "Asha", Phone: "9990001111",
		Standard: "8th", BatchID: f.batch.ID, Status: domain.StudentApproved,
	}
	mustDo(t, s.CreateStudent(ctx, &f.student))
	mustDo(t, s.AddStudentToBatch(ctx, f.batch.ID, f.student.ID))
	mustDo(t, s.CreatePayment(ctx, &domain.FeePayment{
		TenantID: f.tenant.ID, StudentID: f.student.ID, Amount: 1000, Mode: domain.ModeUPI,
		Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Status: domain.PaymentVerified,
	}))
	mustDo(t, s.CreateAttendance(ctx, &domain.Attendance{
		TenantID: f.tenant.ID, BatchID: f.batch.ID, StudentID: f.student.ID,
		Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Status: domain.Present, MarkedBy: f.owner.ID,
	}))
	for _, k := range domain.Kinds {
		mustDo(t, s.AdvanceSequence(ctx, k, 1))
	}

	f.svc, f.audit = newService(s, opts)
	return f
}

func asOwner(f *fixture) context.Context {
	return ContextWithActor(context.Background(), Actor{UserID: f.owner.ID, Role: string(domain.RoleOwner)})
}

func TestService_ExportImportRoundTrip(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := asOwner(f)

	bundle, err := f.svc.Export(ctx, "TUI-1")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.HasPrefix(bundle.FileName, "backup_TUI-1_") {
		t.Errorf("file name = %q", bundle.FileName)
	}
	if !strings.Contains(f.audit.String(), `"action":"backup_export"`) {
		t.Errorf("export not audited: %s", f.audit.String())
	}

	fresh := memstore.New()
	seedOwner(t, fresh)
	svc, _ := newService(fresh, Options{})
	sum, err := svc.Import(ctx, bytes.NewReader(bundle.Data))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	got := [4]int{sum.BatchCount, sum.StudentCount, sum.FeeCount, sum.AttCount}
	if got != [4]int{1, 1, 1, 1} {
		t.Errorf("counts = %v, want [1 1 1 1]", got)
	}
	if sum.TenantCustomID != "TUI-1" || sum.Message == "" {
		t.Errorf("summary = %+v", sum)
	}

	again, err := svc.Import(ctx, bytes.NewReader(bundle.Data))
	if err != nil {
		t.Fatalf("second Import: %v", err)
	}
	if again.BatchCount+again.StudentCount+again.FeeCount+again.AttCount != 0 {
		t.Errorf("second import created records: %+v", again)
	}
	if svc.Limiter().ActiveCount() != 0 {
		t.Error("import slot not released")
	}
}

func TestService_ExportErrors(t *testing.T) {
	f := newFixture(t, Options{})

	if _, err := f.svc.Export(context.Background(), ""); !errors.Is(err, ErrMissingParam) {
		t.Errorf("empty ref: error = %v", err)
	}
	_, err := f.svc.Export(context.Background(), "TUI-99")
	if !errors.Is(err, ErrNoRecords) || MapError(err).Code != "REQ004" {
		t.Errorf("unknown tenant: error = %v (%s)", err, MapError(err).Code)
	}
}

func TestService_ImportLimits(t *testing.T) {
	t.Run("too large", func(t *testing.T) {
		f := newFixture(t, Options{MaxArchiveSize: 16})
		_, err := f.svc.Import(context.Background(), bytes.NewReader(make([]byte, 64)))
		if !errors.Is(err, ErrArchiveTooLarge) {
			t.Errorf("error = %v, want ErrArchiveTooLarge", err)
		}
	})

	t.Run("busy", func(t *testing.T) {
		limiter := NewImportLimiter(1, 10*time.Millisecond)
		f := newFixture(t, Options{Limiter: limiter})
		mustDo(t, limiter.Acquire(context.Background()))
		defer limiter.Release()

		_, err := f.svc.Import(context.Background(), bytes.NewReader([]byte("PK")))
		if !errors.Is(err, ErrTooManyImports) {
			t.Errorf("error = %v, want ErrTooManyImports", err)
		}
	})

	t.Run("not a zip", func(t *testing.T) {
		f := newFixture(t, Options{})
		_, err := f.svc.Import(context.Background(), strings.NewReader("not a zip"))
		if MapError(err).Code != "BAK001" {
			t.Errorf("error = %v (%s), want BAK001", err, MapError(err).Code)
		}
	})
}

func TestService_MarkAttendanceUpserts(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := asOwner(f)

	in := MarkAttendanceInput{TenantID: "TUI-1", BatchID: "BATCH-1", StudentID: "STU-1", Date: "2024-01-11", Status: "Present"}
	first, created, err := f.svc.MarkAttendance(ctx, in)
	if err != nil || !created {
		t.Fatalf("first mark: created=%v err=%v", created, err)
	}
	if first.MarkedBy != f.owner.ID {
		t.Errorf("marker = %q, want the caller", first.MarkedBy)
	}

	in.Status = "absent"
	in.Note = "sick"
	second, created, err := f.svc.MarkAttendance(ctx, in)
	if err != nil || created {
		t.Fatalf("second mark: created=%v err=%v", created, err)
	}
	if second.ID != first.ID || second.Status != domain.Absent || second.Note != "sick" {
		t.Errorf("updated mark = %+v", second)
	}

	rep, _, err := f.svc.Report(ctx, ReportRequest{TenantRef: "TUI-1", Kind: "attendance", Filter: reports.Filter{Date: "2024-01-11"}})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if rep.Sheet.Len() != 1 || rep.Sheet.Rows[0][reports.ColStatus] != "absent" {
		t.Errorf("attendance rows = %v", rep.Sheet.Rows)
	}
}

func TestService_RemarkedAttendanceExportsOneRow(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := asOwner(f)

	in := MarkAttendanceInput{TenantID: "TUI-1", BatchID: "BATCH-1", StudentID: "stu-1", Date: "2024-01-10", Status: "absent"}
	for _, status := range []string{"absent", "leave"} {
		in.Status = status
		if _, created, err := f.svc.MarkAttendance(ctx, in); err != nil || created {
			t.Fatalf("mark %s: created=%v err=%v", status, created, err)
		}
	}

	bundle, err := f.svc.Export(ctx, "TUI-1")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	a, err := backup.ReadArchive(bundle.Data, 0)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	day := a.Entries["attendance/8th/Morning/2024-01-10.csv"]
	if day == nil {
		t.Fatalf("no attendance file for the day; paths = %v", a.Paths())
	}
	if day.Len() != 1 {
		t.Fatalf("rows = %d, want one per student and day", day.Len())
	}
	if got := day.Rows[0].Get(backup.ColStudentID); got != "STU-1" {
		t.Errorf("student = %q, want STU-1", got)
	}
	if got := day.Rows[0].Get(backup.ColStatus); got != "leave" {
		t.Errorf("status = %q, want the last mark", got)
	}
	if a.Rows(backup.AttendanceTable) != 1 {
		t.Errorf("attendance rows in archive = %d, want 1", a.Rows(backup.AttendanceTable))
	}
}

func TestService_MarkAttendanceValidation(t *testing.T) {
	f := newFixture(t, Options{})
	tests := []struct {
		name string
		in   MarkAttendanceInput
		want error
	}{
		{"missing student", MarkAttendanceInput{TenantID: "TUI-1", BatchID: "BATCH-1", Status: "present"}, ErrValidation},
		{"bad status", MarkAttendanceInput{TenantID: "TUI-1", BatchID: "BATCH-1", StudentID: "STU-1", Status: "late"}, ErrValidation},
		{"bad date", MarkAttendanceInput{TenantID: "TUI-1", BatchID: "BATCH-1", StudentID: "STU-1", Status: "present", Date: "11/01/2024"}, ErrValidation},
		{"unknown batch", MarkAttendanceInput{TenantID: "TUI-1", BatchID: "BATCH-9", StudentID: "STU-1", Status: "present"}, store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := f.svc.MarkAttendance(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestService_Payments(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := asOwner(f)

	p, err := f.svc.RecordPayment(ctx, PaymentInput{TenantID: "TUI-1", StudentID: "STU-1", Amount: 500, Mode: "Bank Transfer", Date: "2024-02-01"})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if p.Status != domain.PaymentVerified || p.Mode != domain.ModeBankTransfer || p.VerifiedBy != f.owner.ID {
		t.Errorf("manual payment = %+v", p)
	}
	if _, err := f.svc.VerifyPayment(ctx, p.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("verify verified: error = %v", err)
	}

	if _, err := f.svc.RecordPayment(ctx, PaymentInput{TenantID: "TUI-1", StudentID: "STU-1", Amount: 0, Mode: "cash"}); !errors.Is(err, ErrValidation) {
		t.Errorf("zero amount: error = %v", err)
	}

	link, err := f.svc.IssuePaymentLink(ctx, "STU-1")
	if err != nil {
		t.Fatal(err)
	}
	pending, err := f.svc.SubmitPaymentLink(context.Background(), link.Token, PaymentLinkInput{Amount: 700, Mode: "upi", Date: "2024-02-02"})
	if err != nil {
		t.Fatalf("SubmitPaymentLink: %v", err)
	}
	if pending.Status != domain.PaymentPending || pending.Source != domain.PaymentSourceLink {
		t.Errorf("link payment = %+v", pending)
	}

	rejected, err := f.svc.RejectPayment(ctx, pending.ID, "no receipt")
	if err != nil {
		t.Fatalf("RejectPayment: %v", err)
	}
	if rejected.Status != domain.PaymentRejected || rejected.Note != "no receipt" {
		t.Errorf("rejected = %+v", rejected)
	}
}

func TestService_PaymentLinkDuplicateAndConsumed(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := asOwner(f)
	in := PaymentLinkInput{Amount: 1200, Mode: "cash", Date: "2024-03-01"}

	first, _ := f.svc.IssuePaymentLink(ctx, f.student.ID)
	second, _ := f.svc.IssuePaymentLink(ctx, f.student.ID)

	if _, err := f.svc.SubmitPaymentLink(ctx, first.Token, in); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := f.svc.SubmitPaymentLink(ctx, first.Token, in); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("reused link: error = %v, want ErrInvalidToken", err)
	}
	if _, err := f.svc.SubmitPaymentLink(ctx, second.Token, in); !errors.Is(err, store.ErrConflict) {
		t.Errorf("duplicate pending payment: error = %v, want ErrConflict", err)
	}
}

func TestService_Registration(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := asOwner(f)

	link, err := f.svc.IssueRegistrationLink(ctx, "TUI-1")
	if err != nil {
		t.Fatal(err)
	}
	if link.Kind != tokens.KindRegistration || link.Subject != f.tenant.ID {
		t.Errorf("link = %+v", link)
	}

	form := RegistrationForm{Name: "Ravi", Phone: "9990002222", Standard: "9th", BatchName: "Evening", FeesPaid: 500, PaymentMode: "UPI"}
	view, err := f.svc.SubmitRegistration(context.Background(), link.Token, form)
	if err != nil {
		t.Fatalf("SubmitRegistration: %v", err)
	}
	if view.Status != domain.StudentPending || view.StudentCustomID != "STU-2" || view.BatchName != "Evening" ||
		view.FeesPaid != 500 || view.TenantCustomID != "TUI-1" || view.RegistrationSource != domain.SourcePublicForm {
		t.Errorf("view = %+v", view)
	}

	form.Name, form.FeesPaid, form.PaymentMode = "Kiran", 300, PaymentPending
	if _, err := f.svc.SubmitRegistration(context.Background(), link.Token, form); err != nil {
		t.Fatalf("second SubmitRegistration: %v", err)
	}
	batches, _ := f.store.BatchesByTenant(context.Background(), f.tenant.ID)
	if len(batches) != 2 {
		t.Errorf("batches = %d, want the new batch reused", len(batches))
	}
	payments, _ := f.store.PaymentsByTenant(context.Background(), f.tenant.ID)
	if len(payments) != 2 {
		t.Errorf("payments = %d, want no payment for mode pending", len(payments))
	}

	pending, err := f.svc.ListRegistrations(ctx, "TUI-1", "pending")
	if err != nil || len(pending) != 2 {
		t.Fatalf("ListRegistrations = %d, %v", len(pending), err)
	}

	approved, err := f.svc.ReviewRegistration(ctx, view.ID, ReviewInput{Status: "Approved", Notes: "ok"})
	if err != nil {
		t.Fatalf("ReviewRegistration: %v", err)
	}
	if approved.Status != domain.StudentApproved || approved.ApprovedBy != f.owner.ID || approved.ApprovedAt == nil {
		t.Errorf("approved = %+v", approved)
	}
	if _, err := f.svc.ReviewRegistration(ctx, view.ID, ReviewInput{Status: "maybe"}); !errors.Is(err, ErrValidation) {
		t.Errorf("bad status: error = %v", err)
	}

	payLink, _ := f.svc.IssuePaymentLink(ctx, "STU-1")
	if _, err := f.svc.SubmitRegistration(context.Background(), payLink.Token, form); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("payment token as registration: error = %v", err)
	}
}

func TestService_BackfillCustomIDs(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	owner := seedOwner(t, s)

	tenant := domain.Tenant{Name: "Legacy", OwnerID: owner.ID}
	mustDo(t, s.CreateTenant(ctx, &tenant))
	batch := domain.Batch{TenantID: tenant.ID, Name: "A", Standard: "5th"}
	mustDo(t, s.CreateBatch(ctx, &batch))
	mustDo(t, s.CreateStudent(ctx, &domain.Student{TenantID: tenant.ID, CustomID: "STU-5", Name: "Has ID"}))
	mustDo(t, s.CreateStudent(ctx, &domain.Student{TenantID: tenant.ID, Name: "No ID"}))

	svc, _ := newService(s, Options{})
	res, err := svc.BackfillCustomIDs(ctx)
	if err != nil {
		t.Fatalf("BackfillCustomIDs: %v", err)
	}
	if res != (BackfillResult{Tenants: 1, Batches: 1, Students: 1}) {
		t.Errorf("result = %+v", res)
	}

	if _, err := s.StudentByCustomID(ctx, "STU-6"); err != nil {
		t.Errorf("minted student ID should follow STU-5: %v", err)
	}
	if got, _ := s.TenantByID(ctx, tenant.ID); got.CustomID != "TUI-1" {
		t.Errorf("tenant ID = %q", got.CustomID)
	}

	again, err := svc.BackfillCustomIDs(ctx)
	if err != nil || again.Total() != 0 {
		t.Errorf("second run = %+v, %v", again, err)
	}
}

func TestService_Report(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	rep, format, err := f.svc.Report(ctx, ReportRequest{TenantRef: f.tenant.ID, Kind: "fees", Format: "xlsx"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if format != reports.FormatXLSX || rep.Sheet.Rows[0][reports.ColRemaining] != "3000" {
		t.Errorf("format %q, rows %v", format, rep.Sheet.Rows)
	}

	tests := []struct {
		name string
		req  ReportRequest
		code string
	}{
		{"no tenant", ReportRequest{Kind: "fees"}, "REQ001"},
		{"no month", ReportRequest{TenantRef: "TUI-1", Kind: "attendance-summary"}, "REQ001"},
		{"unknown kind", ReportRequest{TenantRef: "TUI-1", Kind: "payroll"}, "REQ003"},
		{"empty", ReportRequest{TenantRef: "TUI-1", Kind: "students", Filter: reports.Filter{Standard: "12th"}}, "REQ004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.Report(ctx, tt.req)
			if got := MapError(err).Code; got != tt.code {
				t.Errorf("code = %s (%v), want %s", got, err, tt.code)
			}
		})
	}
}

func TestService_RenderResultCard(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	var photo bytes.Buffer
	mustDo(t, png.Encode(&photo, image.NewNRGBA(image.Rect(0, 0, 40, 50))))

	req := ResultCardRequest{
		StudentID: "STU-1",
		Result: domain.Result{
			ExamName: "Unit Test 1",
			Subjects: []domain.SubjectMark{{Name: "Maths", MaxMarks: 100, Obtained: 91}},
		},
		Photo: photo.Bytes(),
	}
	var out bytes.Buffer
	if err := f.svc.RenderResultCard(ctx, &out, req); err != nil {
		t.Fatalf("RenderResultCard: %v", err)
	}
	if _, err := png.DecodeConfig(&out); err != nil {
		t.Errorf("output is not a PNG: %v", err)
	}

	req.Result.Subjects[0].Obtained = 120
	if err := f.svc.RenderResultCard(ctx, &out, req); !errors.Is(err, ErrValidation) {
		t.Errorf("marks over max: error = %v", err)
	}

	req.Result.Subjects = nil
	if err := f.svc.RenderResultCard(ctx, &out, req); !errors.Is(err, ErrValidation) {
		t.Errorf("no subjects: error = %v", err)
	}
}

func TestService_ListPayments(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := asOwner(f)

	link, err := f.svc.IssuePaymentLink(ctx, "STU-1")
	if err != nil {
		t.Fatal(err)
	}
	pending, err := f.svc.SubmitPaymentLink(context.Background(), link.Token, PaymentLinkInput{Amount: 700, Mode: "upi", Date: "2024-02-02"})
	if err != nil {
		t.Fatalf("SubmitPaymentLink: %v", err)
	}

	got, err := f.svc.ListPendingPayments(ctx, "TUI-1")
	if err != nil {
		t.Fatalf("ListPendingPayments: %v", err)
	}
	if len(got) != 1 || got[0].ID != pending.ID || got[0].StudentName != "Asha" || got[0].StudentCustomID != "STU-1" {
		t.Fatalf("pending = %+v", got)
	}

	all, err := f.svc.ListPayments(ctx, "TUI-1", "")
	if err != nil || len(all) != 2 {
		t.Fatalf("ListPayments = %d, %v, want 2", len(all), err)
	}
	if all[0].ID != pending.ID {
		t.Errorf("first = %s, want the newest payment", all[0].ID)
	}

	if _, err := f.svc.VerifyPayment(ctx, pending.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := f.svc.ListPendingPayments(ctx, "TUI-1"); len(got) != 0 {
		t.Errorf("pending after verify = %+v", got)
	}

	tests := []struct {
		name   string
		tenant string
		status string
		want   error
	}{
		{"bad status", "TUI-1", "paid", ErrValidation},
		{"missing tenant", "", "pending", ErrMissingParam},
		{"unknown tenant", "TUI-9", "pending", store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.ListPayments(ctx, tt.tenant, tt.status); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestService_AbsenceReasons(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	other := domain.Batch{CustomID: "BATCH-2", TenantID: f.tenant.ID, Name: "Evening", Standard: "8th"}
	mustDo(t, f.store.CreateBatch(ctx, &other))

	form := AbsenceReasonInput{
		TenantID: "TUI-1", StudentName: "Asha", RollNumber: "r-12", Phone: "9990001111",
		Standard: "8th", BatchName: "morning", Date: "2024-01-11", Reason: "Fever",
	}
	r, err := f.svc.SubmitAbsenceReason(ctx, form)
	if err != nil {
		t.Fatalf("SubmitAbsenceReason: %v", err)
	}
	if r.TenantID != f.tenant.ID || !r.Date.Equal(time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("reason = %+v", r)
	}

	dup := form
	dup.RollNumber, dup.Reason = " R-12 ", "Again"
	_, err = f.svc.SubmitAbsenceReason(ctx, dup)
	if !errors.Is(err, ErrDuplicateAbsence) || MapError(err).Code != "REQ006" {
		t.Errorf("duplicate: error = %v (%s)", err, MapError(err).Code)
	}

	next := form
	next.Date = "2024-01-12"
	evening := form
	evening.RollNumber, evening.BatchName = "r-30", "Evening"
	for _, in := range []AbsenceReasonInput{next, evening} {
		if _, err := f.svc.SubmitAbsenceReason(ctx, in); err != nil {
			t.Fatalf("SubmitAbsenceReason(%s, %s): %v", in.RollNumber, in.Date, err)
		}
	}

	tests := []struct {
		name  string
		batch string
		date  string
		want  int
	}{
		{"all", "", "", 3},
		{"batch by custom id", "BATCH-1", "", 2},
		{"batch by internal id", other.ID, "", 1},
		{"day", "", "2024-01-11", 2},
		{"batch and day", "BATCH-1", "2024-01-12", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.ListAbsenceReasons(ctx, "TUI-1", tt.batch, tt.date)
			if err != nil {
				t.Fatalf("ListAbsenceReasons: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("reasons = %d, want %d", len(got), tt.want)
			}
		})
	}

	if _, err := f.svc.SubmitAbsenceReason(ctx, AbsenceReasonInput{TenantID: "TUI-1", Date: "2024-01-11"}); !errors.Is(err, ErrValidation) {
		t.Errorf("empty form: error = %v, want ErrValidation", err)
	}
	if _, err := f.svc.ListAbsenceReasons(ctx, "TUI-1", "", "11/01/2024"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad date: error = %v, want ErrValidation", err)
	}
}
