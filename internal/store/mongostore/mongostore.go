// Package mongostore implements store.Store on MongoDB. Documents use the
// bson tags on the domain types; _id values are ObjectID hex strings.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
)

const (
	colCounters   = "counters"
	colUsers      = "users"
	colTenants    = "tuitions"
	colBatches    = "batches"
	colStudents   = "students"
	colPayments   = "feepayments"
	colAttendance = "attendances"
	colPapers     = "papers"
	colAbsences   = "absencereasons"
)

// Store is the MongoDB backend.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	opTimeout time.Duration
}

var _ store.Store = (*Store)(nil)

// attendanceDoc adds the calendar day the unique index is built on.
type attendanceDoc struct {
	domain.Attendance `bson:",inline"`
	Day               string `bson:"day"`
}

// absenceDoc adds the keys the one-reason-per-day index is built on.
type absenceDoc struct {
	domain.AbsenceReason `bson:",inline"`
	RollKey              string `bson:"roll_key"`
	Day                  string `bson:"day"`
}

// Open connects to uri, pings, and ensures indexes on database dbName.
// opTimeout bounds each individual round trip.
func Open(ctx context.Context, uri, dbName string, opTimeout time.Duration) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}

	s := &Store{client: client, db: client.Database(dbName), opTimeout: opTimeout}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	nonEmpty := bson.M{"custom_id": bson.M{"$gt": ""}}
	uniqueCustom := mongo.IndexModel{
		Keys:    bson.D{{Key: "custom_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetPartialFilterExpression(nonEmpty),
	}
	byTenant := mongo.IndexModel{Keys: bson.D{{Key: "tuition_id", Value: 1}}}

	specs := map[string][]mongo.IndexModel{
		colUsers: {{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"phone": bson.M{"$gt": ""}}),
		}},
		colTenants:  {uniqueCustom},
		colBatches:  {uniqueCustom, byTenant},
		colStudents: {uniqueCustom, byTenant},
		colPayments: {byTenant},
		colAttendance: {
			{
				Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "batch_id", Value: 1}, {Key: "day", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			byTenant,
		},
		colPapers: {byTenant},
		colAbsences: {
			{
				Keys:    bson.D{{Key: "tuition_id", Value: 1}, {Key: "roll_key", Value: 1}, {Key: "day", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
	for coll, models := range specs {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) op(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

func newID(id *string, created *time.Time) {
	if *id == "" {
		*id = primitive.NewObjectID().Hex()
	}
	if created.IsZero() {
		*created = time.Now().UTC()
	}
}

// customKey is the stored form of a custom ID. Lookups go through it too,
// so "stu-1" and "STU-1" name the same record.
func customKey(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Store) insert(ctx context.Context, coll string, doc any) error {
	ctx, cancel := s.op(ctx)
	defer cancel()
	_, err := s.db.Collection(coll).InsertOne(ctx, doc)
	return mapErr(err)
}

func (s *Store) replace(ctx context.Context, coll, id string, doc any) error {
	ctx, cancel := s.op(ctx)
	defer cancel()
	res, err := s.db.Collection(coll).ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func findOne[T any](ctx context.Context, s *Store, coll string, filter any) (T, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	var out T
	err := s.db.Collection(coll).FindOne(ctx, filter).Decode(&out)
	return out, mapErr(err)
}

func findAll[T any](ctx context.Context, s *Store, coll string, filter any) ([]T, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	cur, err := s.db.Collection(coll).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Counters

type counterDoc struct {
	Kind string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

func (s *Store) NextSequence(ctx context.Context, kind domain.Kind) (int64, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()
	var c counterDoc
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": string(kind)},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", kind, err)
	}
	return c.Seq, nil
}

func (s *Store) AdvanceSequence(ctx context.Context, kind domain.Kind, n int64) error {
	ctx, cancel := s.op(ctx)
	defer cancel()
	_, err := s.db.Collection(colCounters).UpdateOne(ctx,
		bson.M{"_id": string(kind)},
		bson.M{"$max": bson.M{"seq": n}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("advance %s sequence: %w", kind, err)
	}
	return nil
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	newID(&u.ID, &u.CreatedAt)
	return s.insert(ctx, colUsers, u)
}

func (s *Store) UserByID(ctx context.Context, id string) (domain.User, error) {
	return findOne[domain.User](ctx, s, colUsers, bson.M{"_id": id})
}

func (s *Store) UserByPhone(ctx context.Context, phone string) (domain.User, error) {
	return findOne[domain.User](ctx, s, colUsers, bson.M{"phone": phone})
}

func (s *Store) UsersByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	return findAll[domain.User](ctx, s, colUsers, bson.M{"_id": bson.M{"$in": emptyIfNil(ids)}})
}

// Tenants

func (s *Store) CreateTenant(ctx context.Context, t *domain.Tenant) error {
	newID(&t.ID, &t.CreatedAt)
	t.CustomID = customKey(t.CustomID)
	return s.insert(ctx, colTenants, t)
}

func (s *Store) UpdateTenant(ctx context.Context, t domain.Tenant) error {
	t.CustomID = customKey(t.CustomID)
	return s.replace(ctx, colTenants, t.ID, t)
}

func (s *Store) TenantByID(ctx context.Context, id string) (domain.Tenant, error) {
	return findOne[domain.Tenant](ctx, s, colTenants, bson.M{"_id": id})
}

func (s *Store) TenantByCustomID(ctx context.Context, customID string) (domain.Tenant, error) {
	return findOne[domain.Tenant](ctx, s, colTenants, bson.M{"custom_id": customKey(customID)})
}

func (s *Store) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	return findAll[domain.Tenant](ctx, s, colTenants, bson.M{})
}

// Batches

func (s *Store) CreateBatch(ctx context.Context, b *domain.Batch) error {
	newID(&b.ID, &b.CreatedAt)
	b.CustomID = customKey(b.CustomID)
	doc := *b
	doc.StudentIDs = emptyIfNil(doc.StudentIDs)
	doc.TeacherIDs = emptyIfNil(doc.TeacherIDs)
	return s.insert(ctx, colBatches, doc)
}

func (s *Store) UpdateBatch(ctx context.Context, b domain.Batch) error {
	b.CustomID = customKey(b.CustomID)
	b.StudentIDs = emptyIfNil(b.StudentIDs)
	b.TeacherIDs = emptyIfNil(b.TeacherIDs)
	return s.replace(ctx, colBatches, b.ID, b)
}

func (s *Store) BatchByID(ctx context.Context, id string) (domain.Batch, error) {
	return findOne[domain.Batch](ctx, s, colBatches, bson.M{"_id": id})
}

func (s *Store) BatchByCustomID(ctx context.Context, customID string) (domain.Batch, error) {
	return findOne[domain.Batch](ctx, s, colBatches, bson.M{"custom_id": customKey(customID)})
}

func (s *Store) BatchesByTenant(ctx context.Context, tenantID string) ([]domain.Batch, error) {
	return findAll[domain.Batch](ctx, s, colBatches, bson.M{"tuition_id": tenantID})
}

func (s *Store) AddStudentToBatch(ctx context.Context, batchID, studentID string) error {
	ctx, cancel := s.op(ctx)
	defer cancel()
	res, err := s.db.Collection(colBatches).UpdateOne(ctx,
		bson.M{"_id": batchID},
		bson.M{"$addToSet": bson.M{"students": studentID}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Students

func (s *Store) CreateStudent(ctx context.Context, st *domain.Student) error {
	newID(&st.ID, &st.CreatedAt)
	st.CustomID = customKey(st.CustomID)
	return s.insert(ctx, colStudents, st)
}

func (s *Store) UpdateStudent(ctx context.Context, st domain.Student) error {
	st.CustomID = customKey(st.CustomID)
	return s.replace(ctx, colStudents, st.ID, st)
}

func (s *Store) StudentByID(ctx context.Context, id string) (domain.Student, error) {
	return findOne[domain.Student](ctx, s, colStudents, bson.M{"_id": id})
}

func (s *Store) StudentByCustomID(ctx context.Context, customID string) (domain.Student, error) {
	return findOne[domain.Student](ctx, s, colStudents, bson.M{"custom_id": customKey(customID)})
}

func (s *Store) StudentsByTenant(ctx context.Context, tenantID string) ([]domain.Student, error) {
	return findAll[domain.Student](ctx, s, colStudents, bson.M{"tuition_id": tenantID})
}

// Payments

func (s *Store) CreatePayment(ctx context.Context, p *domain.FeePayment) error {
	newID(&p.ID, &p.CreatedAt)
	return s.insert(ctx, colPayments, p)
}

func (s *Store) UpdatePayment(ctx context.Context, p domain.FeePayment) error {
	return s.replace(ctx, colPayments, p.ID, p)
}

func (s *Store) PaymentByID(ctx context.Context, id string) (domain.FeePayment, error) {
	return findOne[domain.FeePayment](ctx, s, colPayments, bson.M{"_id": id})
}

func (s *Store) PaymentsByTenant(ctx context.Context, tenantID string) ([]domain.FeePayment, error) {
	return findAll[domain.FeePayment](ctx, s, colPayments, bson.M{"tuition_id": tenantID})
}

// Attendance

func (s *Store) CreateAttendance(ctx context.Context, a *domain.Attendance) error {
	newID(&a.ID, &a.CreatedAt)
	return s.insert(ctx, colAttendance, attendanceDoc{Attendance: *a, Day: domain.DayKey(a.Date)})
}

func (s *Store) UpdateAttendance(ctx context.Context, a domain.Attendance) error {
	return s.replace(ctx, colAttendance, a.ID, attendanceDoc{Attendance: a, Day: domain.DayKey(a.Date)})
}

func (s *Store) FindAttendance(ctx context.Context, studentID, batchID string, day time.Time) (domain.Attendance, error) {
	doc, err := findOne[attendanceDoc](ctx, s, colAttendance, bson.M{
		"student_id": studentID,
		"batch_id":   batchID,
		"day":        domain.DayKey(day),
	})
	return doc.Attendance, err
}

func (s *Store) AttendanceByTenant(ctx context.Context, tenantID string, f store.AttendanceFilter) ([]domain.Attendance, error) {
	filter := bson.M{"tuition_id": tenantID}
	if f.BatchID != "" {
		filter["batch_id"] = f.BatchID
	}
	if f.StudentID != "" {
		filter["student_id"] = f.StudentID
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		rng := bson.M{}
		if !f.From.IsZero() {
			rng["$gte"] = f.From
		}
		if !f.To.IsZero() {
			rng["$lt"] = f.To
		}
		filter["date"] = rng
	}

	docs, err := findAll[attendanceDoc](ctx, s, colAttendance, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Attendance, len(docs))
	for i, d := range docs {
		out[i] = d.Attendance
	}
	return out, nil
}

// Papers

func (s *Store) CreatePaper(ctx context.Context, p *domain.Paper) error {
	newID(&p.ID, &p.CreatedAt)
	return s.insert(ctx, colPapers, p)
}

func (s *Store) PapersByTenant(ctx context.Context, tenantID string) ([]domain.Paper, error) {
	return findAll[domain.Paper](ctx, s, colPapers, bson.M{"tuition_id": tenantID})
}

// Absence reasons

func (s *Store) CreateAbsenceReason(ctx context.Context, r *domain.AbsenceReason) error {
	newID(&r.ID, &r.CreatedAt)
	return s.insert(ctx, colAbsences, absenceDoc{
		AbsenceReason: *r,
		RollKey:       customKey(r.RollNumber),
		Day:           domain.DayKey(r.Date),
	})
}

func (s *Store) AbsenceReasonsByTenant(ctx context.Context, tenantID string) ([]domain.AbsenceReason, error) {
	docs, err := findAll[absenceDoc](ctx, s, colAbsences, bson.M{"tuition_id": tenantID})
	if err != nil {
		return nil, err
	}
	out := make([]domain.AbsenceReason, len(docs))
	for i, d := range docs {
		out[i] = d.AbsenceReason
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.op(ctx)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
