package backup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
)

// RetentionPolicy bounds how many snapshots, and for how long, a tenant
// keeps (spec.md §4.8).
type RetentionPolicy struct {
	MaxAge   time.Duration
	MaxCount int
}

// Prune deletes tenantID's snapshots older than policy.MaxAge, then deletes
// the oldest excess beyond policy.MaxCount, and returns the deleted keys.
func (s *Service) Prune(ctx context.Context, tenantID string, policy RetentionPolicy, now time.Time) ([]string, error) {
	prefix := fmt.Sprintf("%s/%s/", s.prefix, tenantID)
	objects, err := s.blobs.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots for %s: %w", tenantID, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].CreatedAt.After(objects[j].CreatedAt) })

	toDelete := make(map[string]struct{})
	if policy.MaxAge > 0 {
		cutoff := now.Add(-policy.MaxAge)
		for _, o := range objects {
			if o.CreatedAt.Before(cutoff) {
				toDelete[o.Key] = struct{}{}
			}
		}
	}
	if policy.MaxCount > 0 && len(objects) > policy.MaxCount {
		for _, o := range objects[policy.MaxCount:] {
			toDelete[o.Key] = struct{}{}
		}
	}

	deleted := make([]string, 0, len(toDelete))
	for key := range toDelete {
		if err := s.blobs.Delete(ctx, key); err != nil {
			return deleted, fmt.Errorf("deleting %s: %w", key, err)
		}
		deleted = append(deleted, key)
	}

	if s.audit != nil && len(deleted) > 0 {
		s.audit.Log(govern.AuditEntry{
			TenantID: tenantID, Action: "backup.prune",
			TargetKind: "snapshot", TargetID: fmt.Sprintf("%d deleted", len(deleted)),
		})
	}
	return deleted, nil
}
