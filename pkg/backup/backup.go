// Package backup implements the Snapshot & Backup Service (C8): serialize a
// tenant's graph, checksum it, upload it through a staging/commit protocol,
// restore it with checksum verification, and enforce a retention policy.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
	"github.com/kikokikok/aeterna-sub000/pkg/graph"
)

// BlobStore is the object-storage contract the backup service is written
// against (spec.md §4.8: put/head/get/copy/delete). FilesystemBlobStore is
// the adapter this module ships and wires by default; an S3- or GCS-backed
// adapter can satisfy the same interface without the service knowing the
// difference.
type BlobStore interface {
	Put(ctx context.Context, key string, body []byte, metadata map[string]string) error
	Head(ctx context.Context, key string) (metadata map[string]string, err error)
	Get(ctx context.Context, key string) (body []byte, metadata map[string]string, err error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
	// List returns every key under prefix, for the retention sweep.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectInfo is the subset of object metadata the retention policy needs.
type ObjectInfo struct {
	Key       string
	CreatedAt time.Time
}

// Manifest is the snapshot-metadata JSON carried alongside a snapshot's
// checksum (spec.md §4.8).
type Manifest struct {
	SnapshotID string    `json:"snapshot_id"`
	TenantID   string    `json:"tenant_id"`
	Checksum   string    `json:"checksum"`
	NodeCount  int       `json:"node_count"`
	EdgeCount  int       `json:"edge_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// snapshotPayload is the on-disk envelope: the row-tagged export plus the
// manifest it was checksummed against, so Restore can re-verify end to end.
type snapshotPayload struct {
	Manifest Manifest          `json:"manifest"`
	Rows     []graph.SnapshotRow `json:"rows"`
}

// Service implements Backup, Restore, and retention sweeps.
type Service struct {
	blobs  BlobStore
	graph  *graph.Service
	prefix string
	audit  *govern.AuditSink
}

func NewService(blobs BlobStore, graphSvc *graph.Service, prefix string, audit *govern.AuditSink) *Service {
	return &Service{blobs: blobs, graph: graphSvc, prefix: prefix, audit: audit}
}

// canonicalKey returns the published key for a snapshot (spec.md §4.8:
// `{prefix}/{tenant}/{utc-ymdhms}/snapshot_{id}.parquet`). The format name
// in the key is retained from the source naming convention even though the
// payload itself is JSON; callers should not parse the extension.
func (s *Service) canonicalKey(tenantID, snapshotID string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s/snapshot_%s.parquet", s.prefix, tenantID, at.UTC().Format("20060102_150405"), snapshotID)
}

func stagingKey(snapshotID string) string {
	return ".staging/" + snapshotID
}

// Backup serializes tctx's tenant subgraph, checksums it, and uploads it
// through the staging/commit protocol (spec.md §4.8): stage, copy to the
// canonical key, delete the staging object. A failure after the copy step
// leaves the staging object in place; Prune lists only keys under
// {prefix}/{tenant}/ and does not remove .staging/ objects.
func (s *Service) Backup(ctx context.Context, tctx graph.Ctx) (Manifest, error) {
	rows, checksum, err := s.graph.ExportSnapshot(ctx, tctx)
	if err != nil {
		return Manifest{}, fmt.Errorf("exporting snapshot: %w", err)
	}

	var nodeCount, edgeCount int
	for _, r := range rows {
		if r.Kind == "node" {
			nodeCount++
		} else {
			edgeCount++
		}
	}

	now := time.Now().UTC()
	manifest := Manifest{
		SnapshotID: uuid.NewString(),
		TenantID:   tctx.TenantID,
		Checksum:   checksum,
		NodeCount:  nodeCount,
		EdgeCount:  edgeCount,
		CreatedAt:  now,
	}

	payload, err := json.Marshal(snapshotPayload{Manifest: manifest, Rows: rows})
	if err != nil {
		return Manifest{}, fmt.Errorf("serializing snapshot payload: %w", err)
	}

	metadata := map[string]string{
		"checksum":          manifest.Checksum,
		"tenant_id":         manifest.TenantID,
		"snapshot_id":       manifest.SnapshotID,
		"snapshot_metadata": mustMarshal(manifest),
	}

	staging := stagingKey(manifest.SnapshotID)
	if err := s.blobs.Put(ctx, staging, payload, metadata); err != nil {
		return Manifest{}, fmt.Errorf("uploading staging object: %w", err)
	}

	canonical := s.canonicalKey(manifest.TenantID, manifest.SnapshotID, now)
	if err := s.blobs.Copy(ctx, staging, canonical); err != nil {
		return Manifest{}, fmt.Errorf("publishing snapshot: %w", err)
	}
	if err := s.blobs.Delete(ctx, staging); err != nil {
		return Manifest{}, fmt.Errorf("cleaning up staging object: %w", err)
	}

	if s.audit != nil {
		s.audit.Log(govern.AuditEntry{
			TenantID: manifest.TenantID, Action: "backup.create",
			TargetKind: "snapshot", TargetID: manifest.SnapshotID,
		})
	}
	return manifest, nil
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Restore downloads the object at key, verifies its checksum against the
// embedded manifest, then truncates and bulk-inserts the target tenant's
// graph (spec.md §4.8).
func (s *Service) Restore(ctx context.Context, tctx graph.Ctx, key string) (Manifest, error) {
	body, _, err := s.blobs.Get(ctx, key)
	if err != nil {
		return Manifest{}, fmt.Errorf("downloading snapshot %s: %w", key, err)
	}

	var payload snapshotPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Manifest{}, fmt.Errorf("parsing snapshot payload: %w", err)
	}

	actual, err := graph.ChecksumRows(payload.Rows)
	if err != nil {
		return Manifest{}, fmt.Errorf("checksumming downloaded snapshot: %w", err)
	}
	if actual != payload.Manifest.Checksum {
		return Manifest{}, govern.ChecksumMismatch(payload.Manifest.Checksum, actual)
	}

	if err := s.graph.ImportSnapshot(ctx, tctx, payload.Rows); err != nil {
		return Manifest{}, fmt.Errorf("importing snapshot: %w", err)
	}

	if s.audit != nil {
		s.audit.Log(govern.AuditEntry{
			TenantID: payload.Manifest.TenantID, Action: "backup.restore",
			TargetKind: "snapshot", TargetID: payload.Manifest.SnapshotID,
		})
	}
	return payload.Manifest, nil
}
