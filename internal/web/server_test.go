package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/tuitiondesk/internal/config"
	"github.com/JonMunkholm/tuitiondesk/internal/core"
	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/store/memstore"
	"github.com/JonMunkholm/tuitiondesk/internal/tokens"
	mw "github.com/JonMunkholm/tuitiondesk/internal/web/middleware"
)

const ownerPhone = "9990000000"

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: time.Minute},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, seed bool) (*Server, *memstore.Store) {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()
	owner := domain.User{Name: "Meera Rao", Phone: ownerPhone, Role: domain.RoleOwner}
	if err := s.CreateUser(ctx, &owner); err != nil {
		t.Fatal(err)
	}

	if seed {
		tenant := domain.Tenant{CustomID: "TUI-1", Name: "Bright Minds", OwnerID: owner.ID,
			Fees: []domain.FeeStructure{{Standard: "8th", TotalFee: 4000}}}
		batch := domain.Batch{CustomID: "BATCH-1", Name: "Morning", Standard: "8th"}
		student := domain.Student{CustomID: "STU-1", Name: "Asha", Standard: "8th", Status: domain.StudentApproved}
		steps := []func() error{
			func() error { return s.CreateTenant(ctx, &tenant) },
			func() error { batch.TenantID = tenant.ID; return s.CreateBatch(ctx, &batch) },
			func() error {
				student.TenantID, student.BatchID = tenant.ID, batch.ID
				return s.CreateStudent(ctx, &student)
			},
			func() error {
				return s.CreatePayment(ctx, &domain.FeePayment{TenantID: tenant.ID, StudentID: student.ID,
					Amount: 1000, Mode: domain.ModeCash, Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
					Status: domain.PaymentVerified})
			},
		}
		for _, step := range steps {
			if err := step(); err != nil {
				t.Fatal(err)
			}
		}
		for _, k := range domain.Kinds {
			if err := s.AdvanceSequence(ctx, k, 1); err != nil {
				t.Fatal(err)
			}
		}
	}

	svc := core.NewService(s, tokens.NewMemoryStore(), core.Options{})
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, s
}

func do(srv *Server, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body %q: %v", rec.Body.String(), err)
	}
	return body.Code
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"BAK001", http.StatusBadRequest},
		{"BAK003", http.StatusBadRequest},
		{"REQ001", http.StatusBadRequest},
		{"REQ004", http.StatusNotFound},
		{"REQ005", http.StatusConflict},
		{"REQ006", http.StatusConflict},
		{"IMP001", http.StatusUnprocessableEntity},
		{"IMP002", http.StatusTooManyRequests},
		{"AUTH002", http.StatusUnauthorized},
		{"DB002", http.StatusConflict},
		{"ERR000", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := statusFor(tt.code); got != tt.want {
				t.Errorf("statusFor(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), false)
	rec := do(srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
}

func TestExportAndImport(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), true)

	rec := do(srv, http.MethodGet, "/api/backup", nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "REQ001" {
		t.Fatalf("missing tuition_id = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(srv, http.MethodGet, "/api/backup?tuition_id=TUI-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "backup_TUI-1_") {
		t.Errorf("content disposition = %q", cd)
	}
	archive := rec.Body.Bytes()

	target, _ := newTestServer(t, testConfig(), false)

	var form bytes.Buffer
	mp := multipart.NewWriter(&form)
	part, _ := mp.CreateFormFile("file", "backup.zip")
	_, _ = part.Write(archive)
	_ = mp.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/import/backup", &form)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	imp := httptest.NewRecorder()
	target.Router().ServeHTTP(imp, req)
	if imp.Code != http.StatusOK {
		t.Fatalf("import = %d %s", imp.Code, imp.Body.String())
	}
	var sum core.ImportSummary
	if err := json.Unmarshal(imp.Body.Bytes(), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.BatchCount != 1 || sum.StudentCount != 1 || sum.FeeCount != 1 {
		t.Errorf("summary = %+v", sum)
	}

	raw := do(target, http.MethodPost, "/api/import/backup", archive, "Content-Type", "application/zip")
	if raw.Code != http.StatusOK {
		t.Errorf("raw zip import = %d %s", raw.Code, raw.Body.String())
	}

	bad := do(target, http.MethodPost, "/api/import/backup", []byte("junk"), "Content-Type", "application/zip")
	if bad.Code != http.StatusBadRequest || errorCode(t, bad) != "BAK001" {
		t.Errorf("junk import = %d %s", bad.Code, bad.Body.String())
	}
}

func TestReports(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), true)

	rec := do(srv, http.MethodGet, "/api/reports/fees?tuition_id=TUI-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fees = %d %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "Remaining Fee") || !strings.Contains(rec.Body.String(), "3000") {
		t.Errorf("body = %s", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "fees_report_TUI-1") {
		t.Errorf("content disposition = %q", cd)
	}

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"unknown kind", "/api/reports/payroll?tuition_id=TUI-1", http.StatusBadRequest, "REQ003"},
		{"summary without month", "/api/reports/attendance-summary?tuition_id=TUI-1", http.StatusBadRequest, "REQ001"},
		{"no rows", "/api/reports/students?tuition_id=TUI-1&standard=12th", http.StatusNotFound, "REQ004"},
		{"unknown tenant", "/api/reports/fees?tuition_id=TUI-9", http.StatusNotFound, "DB001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, http.MethodGet, tt.target, nil)
			if rec.Code != tt.status || errorCode(t, rec) != tt.code {
				t.Errorf("got %d %s, want %d %s", rec.Code, rec.Body.String(), tt.status, tt.code)
			}
		})
	}
}

func TestAttendanceAndPayments(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), true)

	mark := map[string]string{"tuition_id": "TUI-1", "batch_id": "BATCH-1", "student_id": "STU-1", "date": "2024-01-10", "status": "present"}
	if rec := do(srv, http.MethodPost, "/api/attendance", mark); rec.Code != http.StatusCreated {
		t.Fatalf("first mark = %d %s", rec.Code, rec.Body.String())
	}
	mark["status"] = "leave"
	if rec := do(srv, http.MethodPost, "/api/attendance", mark); rec.Code != http.StatusOK {
		t.Fatalf("second mark = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(srv, http.MethodPost, "/api/attendance", []byte("{")); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d", rec.Code)
	}

	rec := do(srv, http.MethodPost, "/api/payments", map[string]any{"tuition_id": "TUI-1", "student_id": "STU-1", "amount": 250, "mode": "upi"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record payment = %d %s", rec.Code, rec.Body.String())
	}
	var p domain.FeePayment
	_ = json.Unmarshal(rec.Body.Bytes(), &p)

	rec = do(srv, http.MethodPost, "/api/payments/"+p.ID+"/verify", nil)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "REQ005" {
		t.Errorf("verify verified = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(srv, http.MethodPost, "/api/payments/nope/reject", map[string]string{"reason": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("reject unknown = %d %s", rec.Code, rec.Body.String())
	}
}

func TestListPayments(t *testing.T) {
	srv, s := newTestServer(t, testConfig(), true)
	ctx := context.Background()
	st, err := s.StudentByCustomID(ctx, "STU-1")
	if err != nil {
		t.Fatal(err)
	}
	pending := domain.FeePayment{TenantID: st.TenantID, StudentID: st.ID, Amount: 600, Mode: domain.ModeUPI,
		Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Status: domain.PaymentPending, Source: domain.PaymentSourceLink}
	if err := s.CreatePayment(ctx, &pending); err != nil {
		t.Fatal(err)
	}

	rec := do(srv, http.MethodGet, "/api/payments?tuition_id=TUI-1&status=pending", nil)
	var views []core.PaymentView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("list pending = %d %s", rec.Code, rec.Body.String())
	}
	if len(views) != 1 || views[0].ID != pending.ID || views[0].StudentName != "Asha" || views[0].StudentCustomID != "STU-1" {
		t.Errorf("pending = %+v", views)
	}
	if !strings.Contains(rec.Body.String(), `"studentCustomId":"STU-1"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = do(srv, http.MethodGet, "/api/payments?tuition_id=TUI-1", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil || len(views) != 2 {
		t.Errorf("list all = %d %s", rec.Code, rec.Body.String())
	}

	tests := []struct {
		target string
		status int
		code   string
	}{
		{"/api/payments", http.StatusBadRequest, "REQ001"},
		{"/api/payments?tuition_id=TUI-1&status=paid", http.StatusBadRequest, "REQ002"},
		{"/api/payments?tuition_id=TUI-9&status=pending", http.StatusNotFound, "DB001"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(srv, http.MethodGet, tt.target, nil)
			if rec.Code != tt.status || errorCode(t, rec) != tt.code {
				t.Errorf("got %d %s, want %d %s", rec.Code, rec.Body.String(), tt.status, tt.code)
			}
		})
	}
}

func TestAbsenceReasons(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), true)

	form := map[string]string{
		"tuition_id": "TUI-1", "student_name": "Asha", "roll_number": "12", "phone_number": "9990001111",
		"standard": "8th", "batch_name": "Morning", "date": "2024-01-11", "reason": "Fever",
	}
	rec := do(srv, http.MethodPost, "/api/public/absence-reasons", form)
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"reason":"Fever"`) {
		t.Fatalf("submit = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(srv, http.MethodPost, "/api/public/absence-reasons", form)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "REQ006" {
		t.Errorf("duplicate = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(srv, http.MethodPost, "/api/public/absence-reasons", map[string]string{"tuition_id": "TUI-1"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "REQ002" {
		t.Errorf("empty form = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(srv, http.MethodGet, "/api/absence-reasons?tuition_id=TUI-1&batch_id=BATCH-1&date=2024-01-11", nil)
	var reasons []domain.AbsenceReason
	if err := json.Unmarshal(rec.Body.Bytes(), &reasons); err != nil || len(reasons) != 1 || reasons[0].RollNumber != "12" {
		t.Errorf("list = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(srv, http.MethodGet, "/api/absence-reasons?tuition_id=TUI-1&date=2024-01-12", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &reasons); err != nil || len(reasons) != 0 {
		t.Errorf("other day = %d %s", rec.Code, rec.Body.String())
	}
}

func TestRegistrationFlow(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), true)

	rec := do(srv, http.MethodPost, "/api/registration-links", map[string]string{"tuition_id": "TUI-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue link = %d %s", rec.Code, rec.Body.String())
	}
	var link core.Link
	_ = json.Unmarshal(rec.Body.Bytes(), &link)

	form := map[string]any{"name": "Ravi", "phone": "9990002222", "standard": "9th", "batch_name": "Evening", "fees_paid": 0}
	rec = do(srv, http.MethodPost, "/api/public/register/"+link.Token, form)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", rec.Code, rec.Body.String())
	}
	var view domain.RegistrationView
	_ = json.Unmarshal(rec.Body.Bytes(), &view)

	rec = do(srv, http.MethodPost, "/api/public/register/bogus", form)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "AUTH001" {
		t.Errorf("bogus token = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(srv, http.MethodGet, "/api/registrations?tuition_id=TUI-1&status=pending", nil)
	var views []domain.RegistrationView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil || len(views) != 1 {
		t.Fatalf("list = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(srv, http.MethodPost, "/api/registrations/"+view.ID+"/review", map[string]string{"status": "approved"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"approved"`) {
		t.Errorf("review = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuthGating(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}, JWTSecret: "s3cret"}
	srv, _ := newTestServer(t, cfg, true)

	if rec := do(srv, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz gated: %d", rec.Code)
	}
	if rec := do(srv, http.MethodGet, "/api/backup?tuition_id=TUI-1", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key = %d", rec.Code)
	}
	if rec := do(srv, http.MethodPost, "/api/public/pay/bogus", map[string]any{"amount": 1, "mode": "cash"}); rec.Code != http.StatusNotFound {
		t.Errorf("public route = %d %s", rec.Code, rec.Body.String())
	}
	absence := map[string]string{"tuition_id": "TUI-1", "student_name": "Asha", "roll_number": "12", "phone_number": "9990001111",
		"standard": "8th", "batch_name": "Morning", "reason": "Fever"}
	if rec := do(srv, http.MethodPost, "/api/public/absence-reasons", absence); rec.Code != http.StatusCreated {
		t.Errorf("public absence form = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(srv, http.MethodGet, "/api/absence-reasons?tuition_id=TUI-1", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("absence list without key = %d", rec.Code)
	}

	owner, _ := mw.SignToken([]byte("s3cret"), "u1", string(domain.RoleOwner), time.Now().Add(time.Hour))
	rec := do(srv, http.MethodPost, "/api/admin/backfill-ids", nil, "X-API-Key", "k1", "Authorization", "Bearer "+owner)
	if rec.Code != http.StatusForbidden {
		t.Errorf("owner backfill = %d %s", rec.Code, rec.Body.String())
	}
	admin, _ := mw.SignToken([]byte("s3cret"), "u2", string(domain.RoleAdmin), time.Now().Add(time.Hour))
	rec = do(srv, http.MethodPost, "/api/admin/backfill-ids", nil, "X-API-Key", "k1", "Authorization", "Bearer "+admin)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"updated":0`) {
		t.Errorf("admin backfill = %d %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	srv, _ := newTestServer(t, cfg, false)

	for i := 0; i < 2; i++ {
		if rec := do(srv, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	rec := do(srv, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Errorf("third request = %d", rec.Code)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || rl.allow("a") {
		t.Fatal("budget of one not enforced")
	}
	if !rl.allow("b") {
		t.Error("visitors should be independent")
	}
	now = now.Add(2 * time.Minute)
	if !rl.allow("a") {
		t.Error("window should reset")
	}
}
