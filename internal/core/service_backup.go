package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/tuitiondesk/internal/backup"
	"github.com/JonMunkholm/tuitiondesk/internal/logging"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
)

// Export builds the backup archive of the tenant named by ref (TUI-n or
// internal ID).
func (s *Service) Export(ctx context.Context, ref string) (*backup.Bundle, error) {
	if ref == "" {
		return nil, missing("tuition_id")
	}
	logger := logging.FromContext(ctx)
	start := time.Now()
	logger.Info("export started", "tuition", ref)

	bundle, err := backup.NewExporter(s.store).Export(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: tuition %s: %w", ErrNoRecords, ref, err)
		}
		return nil, fmt.Errorf("export %s: %w", ref, err)
	}

	logger.Info("export finished",
		"tuition_id", bundle.Tenant.ID,
		"entries", len(bundle.Manifest.Entries),
		"bytes", len(bundle.Data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.audit(ctx, AuditEntry{
		Action:   ActionExport,
		TenantID: bundle.Tenant.ID,
		Subject:  bundle.FileName,
		Detail:   []any{"entries", len(bundle.Manifest.Entries)},
	})
	return bundle, nil
}

// ImportSummary is the response to a successful import. The first six
// fields are the original response shape; the rest are additive.
type ImportSummary struct {
	Message        string `json:"message"`
	TenantID       string `json:"tuitionId"`
	BatchCount     int    `json:"batchCount"`
	StudentCount   int    `json:"studentCount"`
	FeeCount       int    `json:"feeCount"`
	AttCount       int    `json:"attCount"`
	TenantCustomID string `json:"tuitionCustomId"`
	TenantReused   bool   `json:"tuitionReused"`
	PaperCount     int    `json:"paperCount"`

	ReusedBatches     int `json:"reusedBatches"`
	ReusedStudents    int `json:"reusedStudents"`
	SkippedStudents   int `json:"skippedStudents"`
	SkippedFees       int `json:"skippedFees"`
	UnchangedFees     int `json:"unchangedFees"`
	SkippedAttendance int `json:"skippedAttendance"`
	ExistingAtt       int `json:"existingAttendance"`
	SkippedPapers     int `json:"skippedPapers"`
	DroppedRefs       int `json:"droppedReferences"`

	ArchiveEntries int `json:"archiveEntries"`
	ArchiveRows    int `json:"archiveRows"`
}

func newImportSummary(r *backup.Result) *ImportSummary {
	return &ImportSummary{
		Message:           "Backup imported successfully",
		TenantID:          r.TenantID,
		TenantCustomID:    r.TenantCustomID,
		TenantReused:      r.TenantReused,
		BatchCount:        r.Batches,
		StudentCount:      r.Students,
		FeeCount:          r.Fees,
		AttCount:          r.Attendance,
		PaperCount:        r.Papers,
		ReusedBatches:     r.ReusedBatches,
		ReusedStudents:    r.ReusedStudents,
		SkippedStudents:   r.SkippedStudents,
		SkippedFees:       r.SkippedFees,
		UnchangedFees:     r.UnchangedFees,
		SkippedAttendance: r.SkippedAtt,
		ExistingAtt:       r.ExistingAtt,
		SkippedPapers:     r.SkippedPapers,
		DroppedRefs:       r.DroppedRefs,
		ArchiveEntries:    r.ArchiveEntries,
		ArchiveRows:       r.ArchiveRowsTotal,
	}
}

// Import reads an archive from r and restores it. At most the limiter's
// capacity of imports run at once.
func (s *Service) Import(ctx context.Context, r io.Reader) (*ImportSummary, error) {
	var summary *ImportSummary
	err := s.limiter.Do(ctx, func(ctx context.Context) error {
		data, err := ReadUpload(r, s.opts.MaxArchiveSize)
		if err != nil {
			return err
		}
		summary, err = s.importArchive(ctx, data)
		return err
	})
	return summary, err
}

func (s *Service) importArchive(ctx context.Context, data []byte) (*ImportSummary, error) {
	logger := logging.FromContext(ctx)
	start := time.Now()

	archive, err := backup.ReadArchive(data, s.opts.MaxUncompressed)
	if err != nil {
		return nil, err
	}
	logger.Info("import started", "bytes", len(data), "entries", len(archive.Entries), "ignored", len(archive.Ignored))

	res, err := backup.NewReconciler(s.store, backup.Options{RowConcurrency: s.opts.RowConcurrency}).Restore(ctx, archive)
	if err != nil {
		logger.Error("import failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	summary := newImportSummary(res)
	logger.Info("import finished",
		"tuition_id", res.TenantID,
		"batches", res.Batches,
		"students", res.Students,
		"fees", res.Fees,
		"attendance", res.Attendance,
		"papers", res.Papers,
		"skipped_fees", res.SkippedFees,
		"skipped_attendance", res.SkippedAtt,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.audit(ctx, AuditEntry{
		Action:   ActionImport,
		TenantID: res.TenantID,
		Subject:  res.TenantCustomID,
		Detail: []any{
			"batches", res.Batches,
			"students", res.Students,
			"fees", res.Fees,
			"attendance", res.Attendance,
		},
	})
	return summary, nil
}
