package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/logging"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
	"github.com/JonMunkholm/tuitiondesk/internal/tabular"
)

// Result reports what a restore did. Counts are rows created; matched
// existing records are counted under Reused* and discarded rows under
// Skipped*.
type Result struct {
	TenantID         string
	TenantCustomID   string
	TenantReused     bool
	Batches          int
	Students         int
	Fees             int
	Attendance       int
	Papers           int
	ReusedBatches    int
	ReusedStudents   int
	SkippedFees      int
	SkippedAtt       int
	SkippedPapers    int
	SkippedStudents  int
	UnchangedFees    int
	ExistingAtt      int
	DroppedRefs      int
	ArchiveEntries   int
	ArchiveRowsTotal int
}

// Options tunes a Reconciler.
type Options struct {
	// RowConcurrency bounds concurrent store writes within one phase.
	RowConcurrency int
}

// Reconciler replays an Archive into a store: tenant, then batches,
// students, fee payments, attendance and papers. Each phase finishes
// before the next starts; rows inside a phase are written concurrently.
// There is no rollback: a failure leaves earlier phases committed.
type Reconciler struct {
	store  store.Store
	mapper *Mapper
	opts   Options
	now    func() time.Time
}

// NewReconciler returns a Reconciler writing to s.
func NewReconciler(s store.Store, opts Options) *Reconciler {
	if opts.RowConcurrency <= 0 {
		opts.RowConcurrency = 8
	}
	return &Reconciler{store: s, mapper: NewMapper(s), opts: opts, now: time.Now}
}

// restore carries the per-run state shared by the phases.
type restore struct {
	*Reconciler
	archive *Archive
	log     *slog.Logger
	tenant  domain.Tenant
	owner   domain.User
	now     time.Time

	mu       sync.Mutex
	batches  map[string]domain.Batch // archive Batch ID -> batch
	byPath   map[string]domain.Batch // standard/name path segments -> batch
	students map[string]string       // archive Student ID -> internal ID

	tenantReused             bool
	created, reused, skipped tally
	dropped                  atomic.Int64
}

type tally struct {
	batches, students, fees, attendance, papers atomic.Int64
}

// Restore runs every phase against the archive.
func (r *Reconciler) Restore(ctx context.Context, a *Archive) (*Result, error) {
	run := &restore{
		Reconciler: r,
		archive:    a,
		log:        logging.FromContext(ctx),
		now:        r.now().UTC(),
		batches:    make(map[string]domain.Batch),
		byPath:     make(map[string]domain.Batch),
		students:   make(map[string]string),
	}

	phases := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"tenant", run.restoreTenant},
		{"batches", run.restoreBatches},
		{"students", run.restoreStudents},
		{"fees", run.restoreFees},
		{"attendance", run.restoreAttendance},
		{"papers", run.restorePapers},
	}
	for _, p := range phases {
		start := time.Now()
		if err := p.fn(ctx); err != nil {
			return nil, fmt.Errorf("restore %s: %w", p.name, err)
		}
		run.log.Debug("restore phase complete", "phase", p.name, "duration_ms", time.Since(start).Milliseconds())
	}
	return run.result(), nil
}

func (run *restore) result() *Result {
	res := &Result{
		TenantID:        run.tenant.ID,
		TenantCustomID:  run.tenant.CustomID,
		Batches:         int(run.created.batches.Load()),
		Students:        int(run.created.students.Load()),
		Fees:            int(run.created.fees.Load()),
		Attendance:      int(run.created.attendance.Load()),
		Papers:          int(run.created.papers.Load()),
		ReusedBatches:   int(run.reused.batches.Load()),
		ReusedStudents:  int(run.reused.students.Load()),
		UnchangedFees:   int(run.reused.fees.Load()),
		ExistingAtt:     int(run.reused.attendance.Load()),
		SkippedStudents: int(run.skipped.students.Load()),
		SkippedFees:     int(run.skipped.fees.Load()),
		SkippedAtt:      int(run.skipped.attendance.Load()),
		SkippedPapers:   int(run.skipped.papers.Load()),
		DroppedRefs:     int(run.dropped.Load()),
		TenantReused:    run.tenantReused,
		ArchiveEntries:  len(run.archive.Entries),
	}
	for _, t := range Tables() {
		res.ArchiveRowsTotal += run.archive.Rows(t)
	}
	return res
}

// row is one archive row with the location of the file it came from.
type row struct {
	tabular.Row
	path string
	loc  tabular.Location
}

func (run *restore) rows(t tabular.Table) []row {
	var out []row
	for _, s := range run.archive.Sheets(t) {
		for _, r := range s.Rows {
			out = append(out, row{Row: r, path: s.Path, loc: s.Location})
		}
	}
	return out
}

// each runs fn for every row with bounded concurrency. The first error
// cancels the phase.
func (run *restore) each(ctx context.Context, rows []row, fn func(context.Context, row) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(run.opts.RowConcurrency)
	for _, rw := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, rw)
		})
	}
	return g.Wait()
}

func (run *restore) skip(rw row, ref Ref, key string) {
	run.log.Debug("restore row skipped", "path", rw.path, "ref", string(ref), "key", key)
}

// resolveUsers maps display strings to user IDs; unresolved entries are
// handled by ref's rule.
func (run *restore) resolveUsers(ctx context.Context, ref Ref, list string) ([]string, error) {
	var ids []string
	for _, display := range SplitDisplayList(list) {
		u, err := run.mapper.ResolveUser(ctx, display)
		switch {
		case err == nil:
			ids = append(ids, u.ID)
		case errors.Is(err, store.ErrNotFound):
			if Decide(ref, false, false) == Abort {
				return nil, &ReferenceError{Ref: ref, Key: display}
			}
			run.dropped.Add(1)
			run.log.Debug("reference dropped", "ref", string(ref), "key", display)
		default:
			return nil, err
		}
	}
	return ids, nil
}

// resolveUserOrOwner applies a fallback-capable rule to one display string.
func (run *restore) resolveUserOrOwner(ctx context.Context, ref Ref, display string) (string, Outcome, error) {
	u, err := run.mapper.ResolveUser(ctx, display)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", Abort, err
	}
	switch out := Decide(ref, err == nil, run.owner.ID != ""); out {
	case Use:
		return u.ID, out, nil
	case UseFallback:
		return run.owner.ID, out, nil
	default:
		return "", out, nil
	}
}

func (run *restore) restoreTenant(ctx context.Context) error {
	sheets := run.archive.Sheets(TuitionTable)
	if len(sheets) == 0 || sheets[0].Len() == 0 {
		return ErrMissingTenantTable
	}
	rw := sheets[0].Rows[0]

	ownerRef := rw.Clean(ColOwner)
	owner, err := run.mapper.ResolveUser(ctx, ownerRef)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if Decide(RefTenantOwner, err == nil, false) == Abort {
		key := ownerRef
		if phone, ok := ParseDisplayPhone(ownerRef); ok {
			key = phone
		}
		return &ReferenceError{Ref: RefTenantOwner, Key: key}
	}
	run.owner = owner

	for attempt := 0; ; attempt++ {
		claim, err := run.mapper.ClaimTenant(ctx, rw.Clean(ColTuitionID))
		if err != nil {
			return err
		}
		if claim.Reused() {
			if run.tenant, err = run.store.TenantByID(ctx, claim.ExistingID); err != nil {
				return err
			}
			run.tenantReused = true
			break
		}

		t, err := run.newTenant(ctx, rw, claim.CustomID)
		if err != nil {
			return err
		}
		err = run.store.CreateTenant(ctx, &t)
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return fmt.Errorf("create tuition %s: %w", claim.CustomID, err)
		}
		run.tenant = t
		break
	}

	run.log = run.log.With("tenant_id", run.tenant.CustomID)
	return nil
}

func (run *restore) newTenant(ctx context.Context, rw tabular.Row, customID string) (domain.Tenant, error) {
	var fees []domain.FeeStructure
	if raw := strings.TrimSpace(rw[ColFees]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &fees); err != nil {
			return domain.Tenant{}, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, ColFees, err)
		}
	}
	subs, err := run.resolveUsers(ctx, RefTenantSubTeacher, rw.Clean(ColSubTeachers))
	if err != nil {
		return domain.Tenant{}, err
	}

	var standards []string
	seen := make(map[string]bool)
	addStd := func(s string) {
		if s = strings.TrimSpace(s); s != "" && !seen[s] {
			seen[s] = true
			standards = append(standards, s)
		}
	}
	for _, f := range fees {
		addStd(f.Standard)
	}
	for _, b := range run.rows(BatchesTable) {
		addStd(b.Clean(ColStandard))
	}

	return domain.Tenant{
		CustomID:      customID,
		Name:          rw.Get(ColName),
		Address:       rw.Get(ColAddress),
		ContactInfo:   rw.Get(ColContactInfo),
		OwnerID:       run.owner.ID,
		SubTeacherIDs: subs,
		Standards:     standards,
		Fees:          fees,
	}, nil
}

func pathKey(standard, batch string) string {
	return tabular.Segment(standard, tabular.UnspecifiedStandard) + "/" + tabular.Segment(batch, tabular.UnassignedBatch)
}

func idKey(id string) string { return strings.ToUpper(strings.TrimSpace(id)) }

// unique keeps the first row per non-empty key. Rows with an empty key
// are all kept.
func unique(rows []row, key func(row) string) []row {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, rw := range rows {
		k := key(rw)
		if k != "" {
			if seen[k] {
				continue
			}
			seen[k] = true
		}
		out = append(out, rw)
	}
	return out
}

// reserve moves the kind's counter past every ID in column col.
func (run *restore) reserve(ctx context.Context, k domain.Kind, rows []row, col string) error {
	ids := make([]string, 0, len(rows))
	for _, rw := range rows {
		ids = append(ids, rw.Clean(col))
	}
	return run.mapper.Reserve(ctx, k, ids)
}

func (run *restore) rememberBatch(archiveID string, b domain.Batch) {
	run.mu.Lock()
	defer run.mu.Unlock()
	if archiveID != "" {
		run.batches[idKey(archiveID)] = b
	}
	run.byPath[pathKey(b.Standard, b.Name)] = b
}

func (run *restore) restoreBatches(ctx context.Context) error {
	rows := unique(run.rows(BatchesTable), func(rw row) string { return idKey(rw.Clean(ColBatchID)) })
	if err := run.reserve(ctx, domain.KindBatch, rows, ColBatchID); err != nil {
		return err
	}
	return run.each(ctx, rows, func(ctx context.Context, rw row) error {
		name := rw.Get(ColName)
		if name == "" {
			return nil
		}
		archiveID := rw.Clean(ColBatchID)
		claim, err := run.mapper.ClaimBatch(ctx, run.tenant.ID, archiveID)
		if err != nil {
			return err
		}
		if claim.Reused() {
			b, err := run.store.BatchByID(ctx, claim.ExistingID)
			if err != nil {
				return err
			}
			run.rememberBatch(archiveID, b)
			run.reused.batches.Add(1)
			return nil
		}

		teachers, err := run.resolveUsers(ctx, RefBatchTeacher, rw.Clean(ColTeachers))
		if err != nil {
			return err
		}
		b := domain.Batch{
			CustomID:   claim.CustomID,
			TenantID:   run.tenant.ID,
			Name:       name,
			Standard:   rw.Clean(ColStandard),
			TeacherIDs: teachers,
			Schedule:   domain.ParseSchedule(rw.Get(ColSchedule)),
		}
		if err := run.store.CreateBatch(ctx, &b); err != nil {
			return fmt.Errorf("create batch %s: %w", b.CustomID, err)
		}
		run.rememberBatch(archiveID, b)
		run.created.batches.Add(1)
		return nil
	})
}

// lookupBatch resolves a row's batch by its Batch ID column, then by the
// standard and batch name encoded in the file path.
func (run *restore) lookupBatch(archiveID string, loc tabular.Location) (domain.Batch, bool) {
	run.mu.Lock()
	defer run.mu.Unlock()
	if archiveID != "" {
		b, ok := run.batches[idKey(archiveID)]
		return b, ok
	}
	if loc.Batch == "" || loc.Batch == tabular.UnassignedBatch {
		return domain.Batch{}, false
	}
	b, ok := run.byPath[pathKey(loc.Standard, loc.Batch)]
	return b, ok
}

func (run *restore) lookupStudent(archiveID string) (string, bool) {
	run.mu.Lock()
	defer run.mu.Unlock()
	id, ok := run.students[idKey(archiveID)]
	return id, ok && archiveID != ""
}

func (run *restore) restoreStudents(ctx context.Context) error {
	rows := unique(run.rows(StudentsTable), func(rw row) string { return idKey(rw.Clean(ColStudentID)) })
	if err := run.reserve(ctx, domain.KindStudent, rows, ColStudentID); err != nil {
		return err
	}
	return run.each(ctx, rows, func(ctx context.Context, rw row) error {
		name := rw.Get(ColName)
		if name == "" {
			run.skipped.students.Add(1)
			return nil
		}
		archiveID := rw.Clean(ColStudentID)
		claim, err := run.mapper.ClaimStudent(ctx, run.tenant.ID, archiveID)
		if err != nil {
			return err
		}
		if claim.Reused() {
			run.rememberStudent(archiveID, claim.ExistingID)
			run.reused.students.Add(1)
			return nil
		}

		standard := rw.loc.Standard
		if standard == tabular.UnspecifiedStandard {
			standard = ""
		}
		st := domain.Student{
			CustomID:           claim.CustomID,
			TenantID:           run.tenant.ID,
			Name:               name,
			Phone:              rw.Clean(ColPhone),
			Address:            rw.Get(ColAddress),
			Standard:           standard,
			RegistrationSource: domain.SourceBackupImport,
			Status:             domain.StudentApproved,
			ApprovedBy:         run.owner.ID,
			ApprovedAt:         &run.now,
		}

		b, found := run.lookupBatch(rw.Clean(ColBatchID), rw.loc)
		switch Decide(RefStudentBatch, found, false) {
		case Use:
			st.BatchID = b.ID
			if tabular.Segment(b.Standard, tabular.UnspecifiedStandard) == rw.loc.Standard {
				st.Standard = b.Standard
			}
		case Clear:
			if rw.Clean(ColBatchID) != "" {
				run.dropped.Add(1)
			}
		}

		if err := run.store.CreateStudent(ctx, &st); err != nil {
			return fmt.Errorf("create student %s: %w", st.CustomID, err)
		}
		if st.BatchID != "" {
			if err := run.store.AddStudentToBatch(ctx, st.BatchID, st.ID); err != nil {
				return fmt.Errorf("add %s to batch: %w", st.CustomID, err)
			}
		}
		run.rememberStudent(archiveID, st.ID)
		run.created.students.Add(1)
		return nil
	})
}

func (run *restore) rememberStudent(archiveID, id string) {
	if archiveID == "" {
		return
	}
	run.mu.Lock()
	run.students[idKey(archiveID)] = id
	run.mu.Unlock()
}

// restoreFees tops each student up to the archive's Paid Fee: the
// difference between that and the verified total already stored is
// written as one verified payment. Replaying an archive therefore never
// double-counts.
func (run *restore) restoreFees(ctx context.Context) error {
	existing, err := run.store.PaymentsByTenant(ctx, run.tenant.ID)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	paid := make(map[string]float64)
	for _, p := range existing {
		if p.Verified() {
			paid[p.StudentID] += p.Amount
		}
	}

	rows := unique(run.rows(FeesTable), func(rw row) string { return idKey(rw.Clean(ColStudentID)) })
	return run.each(ctx, rows, func(ctx context.Context, rw row) error {
		studentID, ok := run.lookupStudent(rw.Clean(ColStudentID))
		if Decide(RefPaymentStudent, ok, false) != Use {
			run.skipped.fees.Add(1)
			run.skip(rw, RefPaymentStudent, rw.Clean(ColStudentID))
			return nil
		}

		total, err := tabular.ParseAmount(rw.Get(ColPaidFee))
		if err != nil && !errors.Is(err, tabular.ErrEmpty) {
			run.skipped.fees.Add(1)
			run.log.Debug("restore row skipped", "path", rw.path, "reason", err.Error())
			return nil
		}
		amount := total - paid[studentID]
		if amount <= 0 {
			if total > 0 {
				run.reused.fees.Add(1)
			}
			return nil
		}

		date, err := tabular.ParseDate(rw.Get(ColLastPaymentDate))
		if err != nil {
			date = run.now
		}
		mode, err := domain.ParsePaymentMode(rw.Clean(ColLastPaymentMode))
		if err != nil {
			mode = domain.ModeCash
		}

		p := domain.FeePayment{
			TenantID:   run.tenant.ID,
			StudentID:  studentID,
			Amount:     amount,
			Mode:       mode,
			Date:       date,
			Status:     domain.PaymentVerified,
			Source:     domain.PaymentSourceBackup,
			VerifiedBy: run.owner.ID,
			VerifiedAt: &run.now,
			Note:       rw.Get(ColNote),
		}
		if err := run.store.CreatePayment(ctx, &p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		run.created.fees.Add(1)
		return nil
	})
}

func (run *restore) attendanceDate(rw row) (time.Time, bool) {
	if d, err := tabular.ParseDate(rw.Get(ColDate)); err == nil {
		return domain.Day(d), true
	}
	if d, err := time.Parse(time.DateOnly, rw.loc.Date); err == nil {
		return d, true
	}
	return time.Time{}, false
}

func (run *restore) restoreAttendance(ctx context.Context) error {
	rows := run.rows(AttendanceTable)
	type resolved struct {
		row
		studentID string
		batch     domain.Batch
		day       time.Time
		status    domain.AttendanceStatus
	}

	keyed := make([]resolved, 0, len(rows))
	seen := make(map[string]bool, len(rows))

	for _, rw := range rows {
		studentID, okStudent := run.lookupStudent(rw.Clean(ColStudentID))
		if Decide(RefAttendanceStudent, okStudent, false) != Use {
			run.skipped.attendance.Add(1)
			run.skip(rw, RefAttendanceStudent, rw.Clean(ColStudentID))
			continue
		}
		b, okBatch := run.lookupBatch(rw.Clean(ColBatchID), rw.loc)
		if Decide(RefAttendanceBatch, okBatch, false) != Use {
			run.skipped.attendance.Add(1)
			run.skip(rw, RefAttendanceBatch, rw.Clean(ColBatchID))
			continue
		}
		day, ok := run.attendanceDate(rw)
		if !ok {
			run.skipped.attendance.Add(1)
			run.log.Debug("restore row skipped", "path", rw.path, "reason", "no date")
			continue
		}
		status, err := domain.ParseAttendanceStatus(rw.Clean(ColStatus))
		if err != nil {
			run.skipped.attendance.Add(1)
			run.log.Debug("restore row skipped", "path", rw.path, "reason", err.Error())
			continue
		}

		key := studentID + "|" + b.ID + "|" + domain.DayKey(day)
		if seen[key] {
			run.reused.attendance.Add(1)
			continue
		}
		seen[key] = true
		keyed = append(keyed, resolved{row: rw, studentID: studentID, batch: b, day: day, status: status})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(run.opts.RowConcurrency)
	for _, item := range keyed {
		g.Go(func() error {
			return run.restoreMark(gctx, item.row, item.studentID, item.batch, item.day, item.status)
		})
	}
	return g.Wait()
}

func (run *restore) restoreMark(ctx context.Context, rw row, studentID string, b domain.Batch, day time.Time, status domain.AttendanceStatus) error {
	_, err := run.store.FindAttendance(ctx, studentID, b.ID, day)
	if err == nil {
		run.reused.attendance.Add(1)
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	marker, outcome, err := run.resolveUserOrOwner(ctx, RefAttendanceMarker, rw.Clean(ColMarkedBy))
	if err != nil {
		return err
	}
	if outcome == SkipRow {
		run.skipped.attendance.Add(1)
		run.skip(rw, RefAttendanceMarker, rw.Clean(ColMarkedBy))
		return nil
	}

	a := domain.Attendance{
		TenantID:  run.tenant.ID,
		BatchID:   b.ID,
		StudentID: studentID,
		Date:      day,
		Status:    status,
		MarkedBy:  marker,
		Note:      rw.Get(ColNote),
	}
	switch err := run.store.CreateAttendance(ctx, &a); {
	case errors.Is(err, store.ErrConflict):
		run.reused.attendance.Add(1)
	case err != nil:
		return fmt.Errorf("create attendance: %w", err)
	default:
		run.created.attendance.Add(1)
	}
	return nil
}

func paperKey(title, standard, url string) string {
	return strings.ToLower(title) + "|" + strings.ToLower(standard) + "|" + url
}

func (run *restore) restorePapers(ctx context.Context) error {
	existing, err := run.store.PapersByTenant(ctx, run.tenant.ID)
	if err != nil {
		return fmt.Errorf("load papers: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[paperKey(p.Title, p.Standard, p.FileURL)] = true
	}

	rows := unique(run.rows(PapersTable), func(rw row) string {
		return paperKey(rw.Get(ColTitle), rw.Clean(ColStandard), rw.Get(ColFileURL))
	})
	return run.each(ctx, rows, func(ctx context.Context, rw row) error {
		title := rw.Get(ColTitle)
		if title == "" || have[paperKey(title, rw.Clean(ColStandard), rw.Get(ColFileURL))] {
			return nil
		}
		uploader, outcome, err := run.resolveUserOrOwner(ctx, RefPaperUploader, rw.Clean(ColUploadedBy))
		if err != nil {
			return err
		}
		if outcome == SkipRow {
			run.skipped.papers.Add(1)
			return nil
		}
		p := domain.Paper{
			TenantID:   run.tenant.ID,
			Standard:   rw.Clean(ColStandard),
			Title:      title,
			FileURL:    rw.Get(ColFileURL),
			UploadedBy: uploader,
		}
		if err := run.store.CreatePaper(ctx, &p); err != nil {
			return fmt.Errorf("create paper: %w", err)
		}
		run.created.papers.Add(1)
		return nil
	})
}
