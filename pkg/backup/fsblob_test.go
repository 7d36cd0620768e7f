package backup

import (
	"context"
	"testing"
)

func TestFilesystemBlobStorePutGetRoundTrip(t *testing.T) {
	store, err := NewFilesystemBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "acme/2026/snapshot_1.parquet", []byte("payload"), map[string]string{"checksum": "abc"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	body, meta, err := store.Get(ctx, "acme/2026/snapshot_1.parquet")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("body = %q, want payload", body)
	}
	if meta["checksum"] != "abc" {
		t.Fatalf("checksum = %q, want abc", meta["checksum"])
	}
}

func TestFilesystemBlobStoreCopyThenDeleteStaging(t *testing.T) {
	store, err := NewFilesystemBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, ".staging/1", []byte("payload"), map[string]string{"checksum": "abc"}); err != nil {
		t.Fatalf("put staging: %v", err)
	}
	if err := store.Copy(ctx, ".staging/1", "acme/snapshot_1.parquet"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if err := store.Delete(ctx, ".staging/1"); err != nil {
		t.Fatalf("delete staging: %v", err)
	}

	if _, _, err := store.Get(ctx, ".staging/1"); err == nil {
		t.Fatal("expected staging key to be gone")
	}
	body, _, err := store.Get(ctx, "acme/snapshot_1.parquet")
	if err != nil {
		t.Fatalf("get copied key: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("body = %q, want payload", body)
	}
}

func TestFilesystemBlobStoreListReturnsOnlyDataFiles(t *testing.T) {
	store, err := NewFilesystemBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key := "acme/snap_" + string(rune('a'+i))
		if err := store.Put(ctx, key, []byte("x"), nil); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	objs, err := store.List(ctx, "acme")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objs) != 3 {
		t.Fatalf("len(objs) = %d, want 3", len(objs))
	}
	for _, o := range objs {
		if len(o.Key) > 4 && o.Key[len(o.Key)-5:] == ".json" {
			t.Fatalf("list leaked metadata file: %s", o.Key)
		}
	}
}
