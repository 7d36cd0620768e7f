package repomanager

import (
	"context"
	"testing"
)

func TestNoopManagerSyncReturnsRepoID(t *testing.T) {
	m := NewNoopManager()
	result, err := m.Sync(context.Background(), "repo-1")
	if err != nil {
		t.Fatal(err)
	}
	if result.RepoID != "repo-1" {
		t.Fatalf("repo_id = %s, want repo-1", result.RepoID)
	}
	if result.FilesIndexed != 0 {
		t.Fatalf("files_indexed = %d, want 0", result.FilesIndexed)
	}
}
