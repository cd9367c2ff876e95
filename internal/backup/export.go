package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/store"
)

// Bundle is a finished export.
type Bundle struct {
	FileName string
	Data     []byte
	Manifest *Manifest
	Tenant   domain.Tenant
}

// Exporter reads one tenant and produces its archive. Export never writes
// to the store.
type Exporter struct {
	store store.Store
	now   func() time.Time
}

// NewExporter returns an Exporter over s.
func NewExporter(s store.Store) *Exporter {
	return &Exporter{store: s, now: time.Now}
}

// ResolveTenant accepts a tenant custom ID (TUI-n) or an internal ID.
func ResolveTenant(ctx context.Context, s store.Store, ref string) (domain.Tenant, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Tenant{}, fmt.Errorf("tenant reference: %w", store.ErrNotFound)
	}
	lookups := []func(context.Context, string) (domain.Tenant, error){s.TenantByID, s.TenantByCustomID}
	if _, ok := domain.ParseCustomID(domain.KindTenant, ref); ok {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}
	var err error
	for _, lookup := range lookups {
		var t domain.Tenant
		if t, err = lookup(ctx, ref); err == nil {
			return t, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.Tenant{}, err
		}
	}
	return domain.Tenant{}, fmt.Errorf("tuition %s: %w", ref, err)
}

// Load gathers a tenant's dataset.
func (e *Exporter) Load(ctx context.Context, t domain.Tenant) (*Dataset, error) {
	ds := &Dataset{Tenant: t}
	var err error
	if ds.Batches, err = e.store.BatchesByTenant(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}
	if ds.Students, err = e.store.StudentsByTenant(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	if ds.Payments, err = e.store.PaymentsByTenant(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	if ds.Attendance, err = e.store.AttendanceByTenant(ctx, t.ID, store.AttendanceFilter{}); err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	if ds.Papers, err = e.store.PapersByTenant(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("load papers: %w", err)
	}
	return ds, nil
}

// Export builds the archive for the tenant named by ref.
func (e *Exporter) Export(ctx context.Context, ref string) (*Bundle, error) {
	t, err := ResolveTenant(ctx, e.store, ref)
	if err != nil {
		return nil, err
	}
	ds, err := e.Load(ctx, t)
	if err != nil {
		return nil, err
	}

	sheets, err := NewProjector(NewMapper(e.store)).Project(ctx, ds)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	m := &Manifest{
		Format:      ContractVersion,
		TuitionID:   t.CustomID,
		TuitionName: t.Name,
		ExportedAt:  now.Truncate(time.Second),
	}
	buf, err := BuildArchive(sheets, m)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		FileName: FileName(t, now),
		Data:     buf.Bytes(),
		Manifest: m,
		Tenant:   t,
	}, nil
}

// FileName is backup_<tenant-id>_<YYYY-MM-DD>.zip, preferring the custom ID.
func FileName(t domain.Tenant, at time.Time) string {
	id := t.CustomID
	if id == "" {
		id = t.ID
	}
	return fmt.Sprintf("backup_%s_%s.zip", id, at.UTC().Format(time.DateOnly))
}
