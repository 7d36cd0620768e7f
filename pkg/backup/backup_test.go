package backup

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
	gstore "github.com/kikokikok/aeterna-sub000/internal/store"
	"github.com/kikokikok/aeterna-sub000/pkg/graph"
)

// memBlobStore is an in-process BlobStore fake; good enough to exercise the
// staging/commit protocol and the retention sweep without a real object
// store.
type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	created map[string]time.Time
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
		created: make(map[string]time.Time),
	}
}

func (m *memBlobStore) Put(_ context.Context, key string, body []byte, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	m.meta[key] = metadata
	m.created[key] = time.Now().UTC()
	return nil
}

func (m *memBlobStore) Head(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta[key], nil
}

func (m *memBlobStore) Get(_ context.Context, key string) ([]byte, map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key], m.meta[key], nil
}

func (m *memBlobStore) Copy(_ context.Context, srcKey, dstKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[dstKey] = m.objects[srcKey]
	m.meta[dstKey] = m.meta[srcKey]
	m.created[dstKey] = time.Now().UTC()
	return nil
}

func (m *memBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.meta, key)
	delete(m.created, key)
	return nil
}

func (m *memBlobStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for k := range m.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, ObjectInfo{Key: k, CreatedAt: m.created[k]})
		}
	}
	return out, nil
}

func newTestGraph(t *testing.T) *graph.Service {
	t.Helper()
	db, err := gstore.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate("../../migrations"); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return graph.NewService(db, nil, nil)
}

func seedGraph(t *testing.T, g *graph.Service, tctx graph.Ctx) {
	t.Helper()
	ctx := context.Background()
	n := graph.Node{ID: "n1", TenantID: tctx.TenantID, Label: "fact", Properties: json.RawMessage(`{}`)}
	if err := g.AddNode(ctx, tctx, n); err != nil {
		t.Fatalf("seeding node: %v", err)
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	tctx := graph.Ctx{TenantID: "acme"}
	seedGraph(t, g, tctx)

	blobs := newMemBlobStore()
	svc := NewService(blobs, g, "snapshots", nil)

	manifest, err := svc.Backup(ctx, tctx)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if manifest.NodeCount != 1 {
		t.Fatalf("node_count = %d, want 1", manifest.NodeCount)
	}

	// the staging key must not remain after a successful backup.
	if _, ok := blobs.objects[stagingKey(manifest.SnapshotID)]; ok {
		t.Fatal("staging object was not cleaned up after publish")
	}

	var canonicalKey string
	for k := range blobs.objects {
		canonicalKey = k
	}

	restored, err := svc.Restore(ctx, tctx, canonicalKey)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Checksum != manifest.Checksum {
		t.Fatalf("restored checksum = %s, want %s", restored.Checksum, manifest.Checksum)
	}

	rows, _, err := g.ExportSnapshot(ctx, tctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly the restored node to survive, got %d rows", len(rows))
	}
}

func TestRestoreRejectsChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	tctx := graph.Ctx{TenantID: "acme"}
	seedGraph(t, g, tctx)

	blobs := newMemBlobStore()
	svc := NewService(blobs, g, "snapshots", nil)

	manifest, err := svc.Backup(ctx, tctx)
	if err != nil {
		t.Fatal(err)
	}
	var key string
	for k := range blobs.objects {
		key = k
	}

	body := blobs.objects[key]
	var payload snapshotPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatal(err)
	}
	payload.Manifest.Checksum = "corrupted"
	tampered, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	blobs.objects[key] = tampered
	_ = manifest

	if _, err := svc.Restore(ctx, tctx, key); !govern.Is(err, govern.KindChecksumMismatch) {
		t.Fatalf("expected KindChecksumMismatch, got %v", err)
	}
}

func TestPruneDeletesByAge(t *testing.T) {
	ctx := context.Background()
	g := newTestGraph(t)
	tctx := graph.Ctx{TenantID: "acme"}
	seedGraph(t, g, tctx)

	blobs := newMemBlobStore()
	svc := NewService(blobs, g, "snapshots", nil)

	var keys []string
	for i := 0; i < 5; i++ {
		m, err := svc.Backup(ctx, tctx)
		if err != nil {
			t.Fatal(err)
		}
		key := svc.canonicalKey(m.TenantID, m.SnapshotID, m.CreatedAt)
		keys = append(keys, key)
	}
	// Age the first two artificially past the retention window.
	blobs.mu.Lock()
	blobs.created[keys[0]] = time.Now().UTC().Add(-48 * time.Hour)
	blobs.created[keys[1]] = time.Now().UTC().Add(-48 * time.Hour)
	blobs.mu.Unlock()

	deleted, err := svc.Prune(ctx, "acme", RetentionPolicy{MaxAge: 24 * time.Hour, MaxCount: 10}, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted = %d, want 2 (age-based)", len(deleted))
	}

	remaining, err := blobs.List(ctx, "snapshots/acme/")
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 3 {
		t.Fatalf("remaining = %d, want 3", len(remaining))
	}
}
