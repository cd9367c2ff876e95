package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/tuitiondesk/internal/backup"
	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/logging"
	"github.com/JonMunkholm/tuitiondesk/internal/reports"
)

// ReportRequest names a report and its filters.
type ReportRequest struct {
	TenantRef string
	Kind      string
	Format    string
	Filter    reports.Filter
}

// Report builds one tenant report.
func (s *Service) Report(ctx context.Context, req ReportRequest) (*reports.Report, reports.Format, error) {
	kind, err := reports.ParseKind(req.Kind)
	if err != nil {
		return nil, "", err
	}
	format, err := reports.ParseFormat(req.Format)
	if err != nil {
		return nil, "", invalid("format", "must be one of: csv xlsx")
	}
	t, err := s.tenant(ctx, req.TenantRef)
	if err != nil {
		return nil, "", err
	}
	if kind == reports.KindAttendanceSummary && req.Filter.Month == "" {
		return nil, "", reports.ErrMissingMonth
	}

	ds, err := backup.NewExporter(s.store).Load(ctx, t)
	if err != nil {
		return nil, "", err
	}
	in := &reports.Input{
		Tenant:     t,
		Batches:    ds.Batches,
		Students:   ds.Students,
		Payments:   ds.Payments,
		Attendance: ds.Attendance,
		Users:      make(map[string]domain.User),
	}
	if kind == reports.KindAttendance {
		var ids []string
		for _, a := range ds.Attendance {
			if a.MarkedBy != "" {
				ids = append(ids, a.MarkedBy)
			}
		}
		users, err := s.store.UsersByIDs(ctx, ids)
		if err != nil {
			return nil, "", fmt.Errorf("load markers: %w", err)
		}
		for _, u := range users {
			in.Users[u.ID] = u
		}
	}

	rep, err := reports.Build(kind, in, req.Filter)
	if err != nil {
		return nil, "", err
	}
	logging.FromContext(ctx).Info("report built", "kind", kind, "format", format, "rows", rep.Sheet.Len())
	return rep, format, nil
}
