package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/tuitiondesk/internal/application"
	"github.com/JonMunkholm/tuitiondesk/internal/config"
	"github.com/JonMunkholm/tuitiondesk/internal/core"
	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/store/memstore"
	"github.com/JonMunkholm/tuitiondesk/internal/tokens"
	mw "github.com/JonMunkholm/tuitiondesk/internal/web/middleware"
)

func memOpener(st *memstore.Store) opener {
	return func(ctx context.Context) (*application.App, error) {
		tk := tokens.NewMemoryStore()
		return &application.App{
			Config:  &config.Config{},
			Store:   st,
			Tokens:  tk,
			Service: core.NewService(st, tk, core.Options{}),
		}, nil
	}
}

func seededStore(t *testing.T, withTenant bool) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	owner := domain.User{Name: "Owner", Phone: "9990000000", Role: domain.RoleOwner}
	if err := st.CreateUser(ctx, &owner); err != nil {
		t.Fatal(err)
	}
	if !withTenant {
		return st
	}
	tenant := domain.Tenant{CustomID: "TUI-1", Name: "Bright Minds", OwnerID: owner.ID}
	if err := st.CreateTenant(ctx, &tenant); err != nil {
		t.Fatal(err)
	}
	batch := domain.Batch{CustomID: "BATCH-1", TenantID: tenant.ID, Name: "Morning", Standard: "8th"}
	if err := st.CreateBatch(ctx, &batch); err != nil {
		t.Fatal(err)
	}
	student := domain.Student{CustomID: "STU-1", TenantID: tenant.ID, BatchID: batch.ID, Name: "Asha", Standard: "8th"}
	if err := st.CreateStudent(ctx, &student); err != nil {
		t.Fatal(err)
	}
	return st
}

func run(t *testing.T, cfg *config.Config, open opener, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(cfg, open)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestExportThenImport(t *testing.T) {
	dir := t.TempDir()
	src := seededStore(t, true)

	_, stderr, err := run(t, &config.Config{}, memOpener(src), "export", "--tenant", "TUI-1", "--out", dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "backup_TUI-1_*.zip"))
	if len(matches) != 1 {
		t.Fatalf("archives in %s = %v (stderr %q)", dir, matches, stderr)
	}

	dst := seededStore(t, false)
	out, _, err := run(t, &config.Config{}, memOpener(dst), "import", matches[0], "-o", "json")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	var sum core.ImportSummary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if sum.BatchCount != 1 || sum.StudentCount != 1 || sum.TenantCustomID != "TUI-1" {
		t.Errorf("summary = %+v", sum)
	}
}

func TestExportToStdout(t *testing.T) {
	out, _, err := run(t, &config.Config{}, memOpener(seededStore(t, true)), "export", "--tenant", "TUI-1", "--out", "-")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "PK") {
		t.Errorf("stdout is not a zip: %q", out[:min(len(out), 8)])
	}
}

func TestExportRequiresTenant(t *testing.T) {
	if _, _, err := run(t, &config.Config{}, memOpener(seededStore(t, true)), "export"); err == nil {
		t.Error("missing --tenant accepted")
	}
	_, _, err := run(t, &config.Config{}, memOpener(seededStore(t, true)), "export", "--tenant", "TUI-7", "--out", t.TempDir())
	if core.MapError(err).Code != "REQ004" {
		t.Errorf("unknown tenant: %v", err)
	}
}

func TestImportMissingFile(t *testing.T) {
	_, _, err := run(t, &config.Config{}, memOpener(seededStore(t, false)), "import", filepath.Join(t.TempDir(), "nope.zip"))
	if !os.IsNotExist(err) {
		t.Errorf("error = %v", err)
	}
}

func TestBackfillYAML(t *testing.T) {
	st := seededStore(t, true)
	tenant, _ := st.TenantByCustomID(context.Background(), "TUI-1")
	if err := st.CreateStudent(context.Background(), &domain.Student{TenantID: tenant.ID, Name: "No ID"}); err != nil {
		t.Fatal(err)
	}
	out, _, err := run(t, &config.Config{}, memOpener(st), "backfill-ids")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "students: 1") || !strings.Contains(out, "tenants: 0") {
		t.Errorf("output = %q", out)
	}
}

func TestTokenCommand(t *testing.T) {
	if _, _, err := run(t, &config.Config{}, nil, "token", "--user", "u1"); err == nil {
		t.Error("token without secret accepted")
	}

	cfg := &config.Config{Security: config.SecurityConfig{JWTSecret: "s3cret"}}
	out, _, err := run(t, cfg, nil, "token", "--user", "u1", "--role", "tuition_owner")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := mw.ParseToken([]byte("s3cret"), strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "tuition_owner" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestPrintResultRejectsUnknownFormat(t *testing.T) {
	if err := printResult(&bytes.Buffer{}, "toml", map[string]int{"a": 1}); err == nil {
		t.Error("toml accepted")
	}
}
