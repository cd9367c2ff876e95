// Package postgres implements store.Store on PostgreSQL through pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
)

//go:embed schema.sql
var schema string

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PoolOptions tunes the connection pool.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is the PostgreSQL backend.
type Store struct {
	db   DBTX
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects, pings and applies the embedded schema.
func Open(ctx context.Context, url string, opts PoolOptions) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = opts.MinConns
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection or transaction. Close is a no-op.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

func (s *Store) Close(context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// mapErr converts driver errors to store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func ensureID(id *string, created *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = time.Now().UTC()
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Counters

func (s *Store) NextSequence(ctx context.Context, kind domain.Kind) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO counters (kind, seq) VALUES ($1, 1)
		ON CONFLICT (kind) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq`, string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", kind, err)
	}
	return n, nil
}

func (s *Store) AdvanceSequence(ctx context.Context, kind domain.Kind, n int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO counters (kind, seq) VALUES ($1, $2)
		ON CONFLICT (kind) DO UPDATE SET seq = GREATEST(counters.seq, EXCLUDED.seq)`, string(kind), n)
	if err != nil {
		return fmt.Errorf("advance %s sequence: %w", kind, err)
	}
	return nil
}

// Users

const userCols = `id, name, email, phone, role, tuition_id, created_at`

func scanUser(row pgx.CollectableRow) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role, &u.TenantID, &u.CreatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	ensureID(&u.ID, &u.CreatedAt)
	_, err := s.db.Exec(ctx, `INSERT INTO users (`+userCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Name, u.Email, u.Phone, u.Role, u.TenantID, u.CreatedAt)
	return mapErr(err)
}

func (s *Store) userOne(ctx context.Context, where string, arg any) (domain.User, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+userCols+` FROM users WHERE `+where+` LIMIT 1`, arg)
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	return u, mapErr(err)
}

func (s *Store) UserByID(ctx context.Context, id string) (domain.User, error) {
	return s.userOne(ctx, `id = $1`, id)
}

func (s *Store) UserByPhone(ctx context.Context, phone string) (domain.User, error) {
	return s.userOne(ctx, `phone = $1`, phone)
}

func (s *Store) UsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+userCols+` FROM users WHERE id = ANY($1)`, nonNil(ids))
	users, err := pgx.CollectRows(rows, scanUser)
	return users, mapErr(err)
}

// Tenants

const tenantCols = `id, custom_id, name, address, contact_info, owner_id, sub_teachers, standards, fees_structure, created_at`

func scanTenant(row pgx.CollectableRow) (domain.Tenant, error) {
	var t domain.Tenant
	err := row.Scan(&t.ID, &t.CustomID, &t.Name, &t.Address, &t.ContactInfo, &t.OwnerID,
		&t.SubTeacherIDs, &t.Standards, &t.Fees, &t.CreatedAt)
	return t, err
}

func feesOrEmpty(f []domain.FeeStructure) []domain.FeeStructure {
	if f == nil {
		return []domain.FeeStructure{}
	}
	return f
}

func (s *Store) CreateTenant(ctx context.Context, t *domain.Tenant) error {
	ensureID(&t.ID, &t.CreatedAt)
	_, err := s.db.Exec(ctx, `INSERT INTO tuitions (`+tenantCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.CustomID, t.Name, t.Address, t.ContactInfo, t.OwnerID,
		nonNil(t.SubTeacherIDs), nonNil(t.Standards), feesOrEmpty(t.Fees), t.CreatedAt)
	return mapErr(err)
}

func (s *Store) UpdateTenant(ctx context.Context, t domain.Tenant) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tuitions SET custom_id=$2, name=$3, address=$4, contact_info=$5, owner_id=$6,
			sub_teachers=$7, standards=$8, fees_structure=$9
		WHERE id=$1`,
		t.ID, t.CustomID, t.Name, t.Address, t.ContactInfo, t.OwnerID,
		nonNil(t.SubTeacherIDs), nonNil(t.Standards), feesOrEmpty(t.Fees))
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) tenantOne(ctx context.Context, where string, arg any) (domain.Tenant, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+tenantCols+` FROM tuitions WHERE `+where+` LIMIT 1`, arg)
	t, err := pgx.CollectExactlyOneRow(rows, scanTenant)
	return t, mapErr(err)
}

func (s *Store) TenantByID(ctx context.Context, id string) (domain.Tenant, error) {
	return s.tenantOne(ctx, `id = $1`, id)
}

func (s *Store) TenantByCustomID(ctx context.Context, customID string) (domain.Tenant, error) {
	return s.tenantOne(ctx, `upper(custom_id) = upper($1)`, customID)
}

func (s *Store) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+tenantCols+` FROM tuitions ORDER BY created_at`)
	ts, err := pgx.CollectRows(rows, scanTenant)
	return ts, mapErr(err)
}

// Batches

const batchCols = `id, custom_id, tuition_id, name, standard, teachers, students, schedule_days, schedule_time, created_at`

func scanBatch(row pgx.CollectableRow) (domain.Batch, error) {
	var b domain.Batch
	err := row.Scan(&b.ID, &b.CustomID, &b.TenantID, &b.Name, &b.Standard, &b.TeacherIDs,
		&b.StudentIDs, &b.Schedule.Days, &b.Schedule.Time, &b.CreatedAt)
	return b, err
}

func (s *Store) CreateBatch(ctx context.Context, b *domain.Batch) error {
	ensureID(&b.ID, &b.CreatedAt)
	_, err := s.db.Exec(ctx, `INSERT INTO batches (`+batchCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		b.ID, b.CustomID, b.TenantID, b.Name, b.Standard, nonNil(b.TeacherIDs), nonNil(b.StudentIDs),
		nonNil(b.Schedule.Days), b.Schedule.Time, b.CreatedAt)
	return mapErr(err)
}

func (s *Store) UpdateBatch(ctx context.Context, b domain.Batch) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE batches SET custom_id=$2, name=$3, standard=$4, teachers=$5, students=$6,
			schedule_days=$7, schedule_time=$8
		WHERE id=$1`,
		b.ID, b.CustomID, b.Name, b.Standard, nonNil(b.TeacherIDs), nonNil(b.StudentIDs),
		nonNil(b.Schedule.Days), b.Schedule.Time)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) batchOne(ctx context.Context, where string, arg any) (domain.Batch, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+batchCols+` FROM batches WHERE `+where+` LIMIT 1`, arg)
	b, err := pgx.CollectExactlyOneRow(rows, scanBatch)
	return b, mapErr(err)
}

func (s *Store) BatchByID(ctx context.Context, id string) (domain.Batch, error) {
	return s.batchOne(ctx, `id = $1`, id)
}

func (s *Store) BatchByCustomID(ctx context.Context, customID string) (domain.Batch, error) {
	return s.batchOne(ctx, `upper(custom_id) = upper($1)`, customID)
}

func (s *Store) BatchesByTenant(ctx context.Context, tenantID string) ([]domain.Batch, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+batchCols+` FROM batches WHERE tuition_id = $1 ORDER BY created_at`, tenantID)
	bs, err := pgx.CollectRows(rows, scanBatch)
	return bs, mapErr(err)
}

func (s *Store) AddStudentToBatch(ctx context.Context, batchID, studentID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE batches SET students = array_append(students, $2)
		WHERE id = $1 AND NOT ($2 = ANY(students))`, batchID, studentID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		_, err := s.BatchByID(ctx, batchID)
		return err
	}
	return nil
}

// Students

const studentCols = `id, custom_id, tuition_id, name, phone, address, photo_url, standard, batch_id,
	registration_source, status, notes, approved_by, approved_at, created_at`

func scanStudent(row pgx.CollectableRow) (domain.Student, error) {
	var st domain.Student
	err := row.Scan(&st.ID, &st.CustomID, &st.TenantID, &st.Name, &st.Phone, &st.Address, &st.PhotoURL,
		&st.Standard, &st.BatchID, &st.RegistrationSource, &st.Status, &st.Notes, &st.ApprovedBy,
		&st.ApprovedAt, &st.CreatedAt)
	return st, err
}

func (s *Store) CreateStudent(ctx context.Context, st *domain.Student) error {
	ensureID(&st.ID, &st.CreatedAt)
	_, err := s.db.Exec(ctx, `INSERT INTO students (`+studentCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		st.ID, st.CustomID, st.TenantID, st.Name, st.Phone, st.Address, st.PhotoURL, st.Standard,
		st.BatchID, st.RegistrationSource, st.Status, st.Notes, st.ApprovedBy, st.ApprovedAt, st.CreatedAt)
	return mapErr(err)
}

func (s *Store) UpdateStudent(ctx context.Context, st domain.Student) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE students SET custom_id=$2, name=$3, phone=$4, address=$5, photo_url=$6, standard=$7,
			batch_id=$8, registration_source=$9, status=$10, notes=$11, approved_by=$12, approved_at=$13
		WHERE id=$1`,
		st.ID, st.CustomID, st.Name, st.Phone, st.Address, st.PhotoURL, st.Standard, st.BatchID,
		st.RegistrationSource, st.Status, st.Notes, st.ApprovedBy, st.ApprovedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) studentOne(ctx context.Context, where string, arg any) (domain.Student, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+studentCols+` FROM students WHERE `+where+` LIMIT 1`, arg)
	st, err := pgx.CollectExactlyOneRow(rows, scanStudent)
	return st, mapErr(err)
}

func (s *Store) StudentByID(ctx context.Context, id string) (domain.Student, error) {
	return s.studentOne(ctx, `id = $1`, id)
}

func (s *Store) StudentByCustomID(ctx context.Context, customID string) (domain.Student, error) {
	return s.studentOne(ctx, `upper(custom_id) = upper($1)`, customID)
}

func (s *Store) StudentsByTenant(ctx context.Context, tenantID string) ([]domain.Student, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+studentCols+` FROM students WHERE tuition_id = $1 ORDER BY created_at`, tenantID)
	sts, err := pgx.CollectRows(rows, scanStudent)
	return sts, mapErr(err)
}

// Payments

const paymentCols = `id, tuition_id, student_id, amount, mode, date, status, payment_source, verified_by, verified_at, note, created_at`

func scanPayment(row pgx.CollectableRow) (domain.FeePayment, error) {
	var p domain.FeePayment
	err := row.Scan(&p.ID, &p.TenantID, &p.StudentID, &p.Amount, &p.Mode, &p.Date, &p.Status,
		&p.Source, &p.VerifiedBy, &p.VerifiedAt, &p.Note, &p.CreatedAt)
	return p, err
}

func (s *Store) CreatePayment(ctx context.Context, p *domain.FeePayment) error {
	ensureID(&p.ID, &p.CreatedAt)
	_, err := s.db.Exec(ctx, `INSERT INTO fee_payments (`+paymentCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.TenantID, p.StudentID, p.Amount, p.Mode, p.Date, p.Status, p.Source,
		p.VerifiedBy, p.VerifiedAt, p.Note, p.CreatedAt)
	return mapErr(err)
}

func (s *Store) UpdatePayment(ctx context.Context, p domain.FeePayment) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE fee_payments SET amount=$2, mode=$3, date=$4, status=$5, verified_by=$6, verified_at=$7, note=$8
		WHERE id=$1`,
		p.ID, p.Amount, p.Mode, p.Date, p.Status, p.VerifiedBy, p.VerifiedAt, p.Note)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) PaymentByID(ctx context.Context, id string) (domain.FeePayment, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+paymentCols+` FROM fee_payments WHERE id = $1`, id)
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	return p, mapErr(err)
}

func (s *Store) PaymentsByTenant(ctx context.Context, tenantID string) ([]domain.FeePayment, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+paymentCols+` FROM fee_payments WHERE tuition_id = $1 ORDER BY date`, tenantID)
	ps, err := pgx.CollectRows(rows, scanPayment)
	return ps, mapErr(err)
}

// Attendance

const attendanceCols = `id, tuition_id, batch_id, student_id, date, status, marked_by, note, created_at`

func scanAttendance(row pgx.CollectableRow) (domain.Attendance, error) {
	var a domain.Attendance
	err := row.Scan(&a.ID, &a.TenantID, &a.BatchID, &a.StudentID, &a.Date, &a.Status, &a.MarkedBy, &a.Note, &a.CreatedAt)
	return a, err
}

func (s *Store) CreateAttendance(ctx context.Context, a *domain.Attendance) error {
	ensureID(&a.ID, &a.CreatedAt)
	_, err := s.db.Exec(ctx, `INSERT INTO attendance (`+attendanceCols+`, day)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.TenantID, a.BatchID, a.StudentID, a.Date, a.Status, a.MarkedBy, a.Note, a.CreatedAt,
		domain.Day(a.Date))
	return mapErr(err)
}

func (s *Store) UpdateAttendance(ctx context.Context, a domain.Attendance) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE attendance SET date=$2, day=$3, status=$4, marked_by=$5, note=$6 WHERE id=$1`,
		a.ID, a.Date, domain.Day(a.Date), a.Status, a.MarkedBy, a.Note)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) FindAttendance(ctx context.Context, studentID, batchID string, day time.Time) (domain.Attendance, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+attendanceCols+` FROM attendance
		WHERE student_id = $1 AND batch_id = $2 AND day = $3`, studentID, batchID, domain.Day(day))
	a, err := pgx.CollectExactlyOneRow(rows, scanAttendance)
	return a, mapErr(err)
}

func (s *Store) AttendanceByTenant(ctx context.Context, tenantID string, f store.AttendanceFilter) ([]domain.Attendance, error) {
	var (
		where = []string{"tuition_id = $1"}
		args  = []any{tenantID}
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.BatchID != "" {
		add("batch_id = $%d", f.BatchID)
	}
	if f.StudentID != "" {
		add("student_id = $%d", f.StudentID)
	}
	if !f.From.IsZero() {
		add("date >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("date < $%d", f.To)
	}

	rows, _ := s.db.Query(ctx, `SELECT `+attendanceCols+` FROM attendance WHERE `+
		strings.Join(where, " AND ")+` ORDER BY day, created_at`, args...)
	as, err := pgx.CollectRows(rows, scanAttendance)
	return as, mapErr(err)
}

// Papers

const paperCols = `id, tuition_id, standard, title, file_url, uploaded_by, created_at`

func scanPaper(row pgx.CollectableRow) (domain.Paper, error) {
	var p domain.Paper
	err := row.Scan(&p.ID, &p.TenantID, &p.Standard, &p.Title, &p.FileURL, &p.UploadedBy, &p.CreatedAt)
	return p, err
}

func (s *Store) CreatePaper(ctx context.Context, p *domain.Paper) error {
	ensureID(&p.ID, &p.CreatedAt)
	_, err := s.db.Exec(ctx, `INSERT INTO papers (`+paperCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.TenantID, p.Standard, p.Title, p.FileURL, p.UploadedBy, p.CreatedAt)
	return mapErr(err)
}

func (s *Store) PapersByTenant(ctx context.Context, tenantID string) ([]domain.Paper, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+paperCols+` FROM papers WHERE tuition_id = $1 ORDER BY created_at`, tenantID)
	ps, err := pgx.CollectRows(rows, scanPaper)
	return ps, mapErr(err)
}

// Absence reasons

const absenceCols = `id, tuition_id, student_name, roll_number, phone_number, standard, batch_name, date, reason, created_at`

func scanAbsence(row pgx.CollectableRow) (domain.AbsenceReason, error) {
	var r domain.AbsenceReason
	err := row.Scan(&r.ID, &r.TenantID, &r.StudentName, &r.RollNumber, &r.Phone, &r.Standard,
		&r.BatchName, &r.Date, &r.Reason, &r.CreatedAt)
	return r, err
}

func (s *Store) CreateAbsenceReason(ctx context.Context, r *domain.AbsenceReason) error {
	ensureID(&r.ID, &r.CreatedAt)
	_, err := s.db.Exec(ctx, `INSERT INTO absence_reasons (`+absenceCols+`, day)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.TenantID, r.StudentName, r.RollNumber, r.Phone, r.Standard, r.BatchName, r.Date, r.Reason,
		r.CreatedAt, domain.Day(r.Date))
	return mapErr(err)
}

func (s *Store) AbsenceReasonsByTenant(ctx context.Context, tenantID string) ([]domain.AbsenceReason, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+absenceCols+` FROM absence_reasons WHERE tuition_id = $1 ORDER BY created_at`, tenantID)
	rs, err := pgx.CollectRows(rows, scanAbsence)
	return rs, mapErr(err)
}
