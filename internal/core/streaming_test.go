package core

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestCountingReader(t *testing.T) {
	r := NewCountingReader(strings.NewReader("hello,world"), 0)
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello,world" || r.BytesRead != 11 {
		t.Errorf("read %q, counted %d", data, r.BytesRead)
	}
}

func TestReadUpload(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		limit   int64
		wantErr error
	}{
		{"under limit", bytes.Repeat([]byte("x"), 10), 10, nil},
		{"unlimited", bytes.Repeat([]byte("x"), 4096), 0, nil},
		{"over limit", bytes.Repeat([]byte("x"), 11), 10, ErrArchiveTooLarge},
		{"empty", nil, 10, ErrMissingParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ReadUpload(bytes.NewReader(tt.input), tt.limit)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(data, tt.input) {
				t.Errorf("got %d bytes, want %d", len(data), len(tt.input))
			}
		})
	}
}
