package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/logging"
)

// BackfillResult counts IDs assigned per kind.
type BackfillResult struct {
	Tenants  int `json:"tenants"`
	Batches  int `json:"batches"`
	Students int `json:"students"`
}

// Total is the number of records updated.
func (r BackfillResult) Total() int { return r.Tenants + r.Batches + r.Students }

// BackfillCustomIDs gives every tenant, batch and student without a durable
// ID the next one of its kind. Counters are first raised past every ID
// already in use so minted IDs never collide. Records are visited in
// creation order, so running it twice is a no-op.
func (s *Service) BackfillCustomIDs(ctx context.Context) (BackfillResult, error) {
	var res BackfillResult

	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		return res, fmt.Errorf("list tenants: %w", err)
	}
	var batches []domain.Batch
	var students []domain.Student
	for _, t := range tenants {
		bs, err := s.store.BatchesByTenant(ctx, t.ID)
		if err != nil {
			return res, fmt.Errorf("list batches: %w", err)
		}
		batches = append(batches, bs...)
		ss, err := s.store.StudentsByTenant(ctx, t.ID)
		if err != nil {
			return res, fmt.Errorf("list students: %w", err)
		}
		students = append(students, ss...)
	}

	seen := map[domain.Kind][]string{}
	for _, t := range tenants {
		seen[domain.KindTenant] = append(seen[domain.KindTenant], t.CustomID)
	}
	for _, b := range batches {
		seen[domain.KindBatch] = append(seen[domain.KindBatch], b.CustomID)
	}
	for _, st := range students {
		seen[domain.KindStudent] = append(seen[domain.KindStudent], st.CustomID)
	}
	for _, k := range domain.Kinds {
		if err := s.advancePast(ctx, k, seen[k]); err != nil {
			return res, err
		}
	}

	sort.SliceStable(tenants, func(i, j int) bool { return tenants[i].CreatedAt.Before(tenants[j].CreatedAt) })
	for _, t := range tenants {
		if strings.TrimSpace(t.CustomID) != "" {
			continue
		}
		if t.CustomID, err = s.mint(ctx, domain.KindTenant); err != nil {
			return res, err
		}
		if err := s.store.UpdateTenant(ctx, t); err != nil {
			return res, fmt.Errorf("update tenant %s: %w", t.ID, err)
		}
		res.Tenants++
	}

	sort.SliceStable(batches, func(i, j int) bool { return batches[i].CreatedAt.Before(batches[j].CreatedAt) })
	for _, b := range batches {
		if strings.TrimSpace(b.CustomID) != "" {
			continue
		}
		if b.CustomID, err = s.mint(ctx, domain.KindBatch); err != nil {
			return res, err
		}
		if err := s.store.UpdateBatch(ctx, b); err != nil {
			return res, fmt.Errorf("update batch %s: %w", b.ID, err)
		}
		res.Batches++
	}

	sort.SliceStable(students, func(i, j int) bool { return students[i].CreatedAt.Before(students[j].CreatedAt) })
	for _, st := range students {
		if strings.TrimSpace(st.CustomID) != "" {
			continue
		}
		if st.CustomID, err = s.mint(ctx, domain.KindStudent); err != nil {
			return res, err
		}
		if err := s.store.UpdateStudent(ctx, st); err != nil {
			return res, fmt.Errorf("update student %s: %w", st.ID, err)
		}
		res.Students++
	}

	logging.FromContext(ctx).Info("custom id backfill finished",
		"tenants", res.Tenants, "batches", res.Batches, "students", res.Students)
	if res.Total() > 0 {
		s.audit(ctx, AuditEntry{
			Action: ActionBackfill,
			Detail: []any{"tenants", res.Tenants, "batches", res.Batches, "students", res.Students},
		})
	}
	return res, nil
}

func (s *Service) advancePast(ctx context.Context, k domain.Kind, ids []string) error {
	var max int64
	for _, id := range ids {
		if n, ok := domain.ParseCustomID(k, id); ok && n > max {
			max = n
		}
	}
	if max == 0 {
		return nil
	}
	if err := s.store.AdvanceSequence(ctx, k, max); err != nil {
		return fmt.Errorf("advance %s counter: %w", k, err)
	}
	return nil
}
