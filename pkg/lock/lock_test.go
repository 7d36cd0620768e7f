package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewService(rdb, nil)
}

func TestAcquireReleaseLock(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	token, ok, err := svc.AcquireLock(ctx, "quick_scan", time.Minute)
	if err != nil || !ok || token == "" {
		t.Fatalf("acquire_lock = %q, %v, %v", token, ok, err)
	}

	_, ok, err = svc.AcquireLock(ctx, "quick_scan", time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to fail while held")
	}

	if err := svc.ReleaseLock(ctx, "quick_scan", token); err != nil {
		t.Fatalf("release_lock: %v", err)
	}

	_, ok, err = svc.AcquireLock(ctx, "quick_scan", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire after release = %v, %v", ok, err)
	}
}

func TestReleaseLockRequiresMatchingToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	token, ok, err := svc.AcquireLock(ctx, "job", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire: %v, %v", ok, err)
	}

	if err := svc.ReleaseLock(ctx, "job", "wrong-token"); err != nil {
		t.Fatalf("release with wrong token should not error: %v", err)
	}

	_, ok, err = svc.AcquireLock(ctx, "job", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("lock must still be held — release with wrong token must be a no-op")
	}
	_ = token
}

func TestJobCompletionMarker(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	recent, err := svc.CheckJobRecentlyCompleted(ctx, "weekly_report")
	if err != nil || recent {
		t.Fatalf("recent = %v, %v, want false", recent, err)
	}

	if err := svc.RecordJobCompletion(ctx, "weekly_report", time.Hour); err != nil {
		t.Fatalf("record_job_completion: %v", err)
	}

	recent, err = svc.CheckJobRecentlyCompleted(ctx, "weekly_report")
	if err != nil || !recent {
		t.Fatalf("recent = %v, %v, want true", recent, err)
	}
}
