package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/tuitiondesk/internal/backup"
	"github.com/JonMunkholm/tuitiondesk/internal/reports"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
	"github.com/JonMunkholm/tuitiondesk/internal/tokens"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "wrapped invalid archive",
			err:      fmt.Errorf("read archive: %w", backup.ErrInvalidArchive),
			wantCode: "BAK001",
		},
		{
			name:     "missing tenant table",
			err:      backup.ErrMissingTenantTable,
			wantCode: "BAK002",
		},
		{
			name:     "unresolved owner",
			err:      fmt.Errorf("restore tenant: %w", &backup.ReferenceError{Ref: backup.RefTenantOwner, Key: "999"}),
			wantCode: "IMP001",
		},
		{
			name:     "limiter busy",
			err:      ErrTooManyImports,
			wantCode: "IMP002",
		},
		{
			name:     "missing param",
			err:      missing("tuition_id"),
			wantCode: "REQ001",
		},
		{
			name:     "report without month",
			err:      reports.ErrMissingMonth,
			wantCode: "REQ001",
		},
		{
			name:     "empty report",
			err:      reports.ErrNoRows,
			wantCode: "REQ004",
		},
		{
			name:     "expired link",
			err:      fmt.Errorf("get token: %w", tokens.ErrNotFound),
			wantCode: "AUTH001",
		},
		{
			name:     "store not found",
			err:      fmt.Errorf("tuition TUI-9: %w", store.ErrNotFound),
			wantCode: "DB001",
		},
		{
			name:     "driver duplicate key",
			err:      errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode: "DB002",
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp: connection refused"),
			wantCode: "DB004",
		},
		{
			name:     "deadline",
			err:      fmt.Errorf("restore fees: %w", context.DeadlineExceeded),
			wantCode: "DB006",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_Detail(t *testing.T) {
	ref := &backup.ReferenceError{Ref: backup.RefTenantOwner, Key: "9990000000"}
	if got := MapError(fmt.Errorf("restore tenant: %w", ref)).Message; got != ref.Error() {
		t.Errorf("reference message = %q", got)
	}

	if got := MapError(fmt.Errorf("export: %w", missing("tuition_id"))).Message; got != "missing required parameter: tuition_id" {
		t.Errorf("missing param message = %q", got)
	}

	ve := &ValidationError{Fields: map[string]string{"Status": "is required", "Amount": "must be greater than 0"}}
	got := MapError(ve)
	if got.Code != "REQ002" || !strings.Contains(got.Message, "Amount must be greater than 0; Status is required") {
		t.Errorf("validation = %+v", got)
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrTooManyImports)

	expected := "System is busy processing other imports (Code: IMP002). Please wait a moment and try again"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", store.ErrConflict, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("create batch: %w", store.ErrConflict)
		userErr := NewUserError(techErr)

		if userErr.Error() != "A record with this ID already exists" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, store.ErrConflict) {
			t.Error("Unwrap() should expose the original error")
		}
	})
}
