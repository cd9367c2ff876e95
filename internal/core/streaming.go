package core

// streaming.go reads uploaded archives into memory under a size cap.
//
// The ZIP central directory sits at the end of the file, so an archive is
// buffered whole before decoding. CountingReader tracks how much has been
// read so an oversized upload fails as soon as it crosses the limit instead
// of after it has been fully received.

import (
	"bytes"
	"fmt"
	"io"
)

// CountingReader wraps an io.Reader to track bytes read and enforce an
// optional limit.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Limit     int64 // 0 means unlimited
}

// NewCountingReader wraps r. A positive limit makes Read fail with
// ErrArchiveTooLarge once more than limit bytes have been seen.
func NewCountingReader(r io.Reader, limit int64) *CountingReader {
	return &CountingReader{reader: r, Limit: limit}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.Limit > 0 && r.BytesRead > r.Limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrArchiveTooLarge, r.Limit)
	}
	return n, err
}

// ReadUpload buffers r, failing with ErrArchiveTooLarge past limit and with
// ErrMissingParam for an empty body.
func ReadUpload(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(NewCountingReader(r, limit)); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, missing("file")
	}
	return buf.Bytes(), nil
}
