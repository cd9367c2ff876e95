package mongostore

import "testing"

func TestCustomKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"upper", "STU-1", "STU-1"},
		{"lower", "stu-1", "STU-1"},
		{"mixed with spaces", "  Batch-12 ", "BATCH-12"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := customKey(tt.in); got != tt.want {
				t.Errorf("customKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCustomKey_LookupMatchesStoredForm(t *testing.T) {
	stored := customKey("tui-7")
	for _, ref := range []string{"TUI-7", "tui-7", "Tui-7 "} {
		if customKey(ref) != stored {
			t.Errorf("lookup key for %q = %q, stored %q", ref, customKey(ref), stored)
		}
	}
}
