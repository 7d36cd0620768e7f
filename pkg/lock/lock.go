// Package lock implements the Distributed Lock & Job-Dedup Service (C3): a
// best-effort exclusive lease on a named job plus a recent-completion
// marker, both over Redis as the shared key/value store.
package lock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix   = "aeterna:lock:"
	markerKeyPrefix = "aeterna:completed:"
)

// Service wraps a Redis client with the acquire/release and
// marker-check/record operations spec.md §4.3 names. Both capabilities are
// allowed to fail; callers degrade gracefully (§4.4) rather than treat a
// Redis error as fatal.
type Service struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewService constructs a lock Service.
func NewService(rdb *redis.Client, logger *slog.Logger) *Service {
	return &Service{rdb: rdb, logger: logger}
}

// AcquireLock sets key to a fresh token iff absent, with the given TTL. It
// returns ("", false, nil) if the lock is already held by someone else, and
// a non-nil error only on infrastructure failure.
func (s *Service) AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error) {
	token = uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, lockKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// releaseScript performs an atomic check-and-delete: the key is removed only
// if its current value still matches the caller's token, so a lock that has
// already expired and been re-acquired by someone else is never deleted out
// from under them.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// ReleaseLock deletes key iff its value still equals token. Release failures
// are the caller's to log and swallow — the lock's TTL is the backstop.
func (s *Service) ReleaseLock(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, s.rdb, []string{lockKeyPrefix + key}, token).Err()
}

// LockKey returns the lock name for a named job (spec.md §4.4
// lock_key(name)): the job name itself. AcquireLock and ReleaseLock add the
// Redis key prefix.
func LockKey(jobName string) string {
	return jobName
}

// CheckJobRecentlyCompleted reports whether job has a completion marker
// still within its window.
func (s *Service) CheckJobRecentlyCompleted(ctx context.Context, job string) (bool, error) {
	n, err := s.rdb.Exists(ctx, markerKeyPrefix+job).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordJobCompletion sets a time-windowed marker for job.
func (s *Service) RecordJobCompletion(ctx context.Context, job string, window time.Duration) error {
	return s.rdb.Set(ctx, markerKeyPrefix+job, time.Now().UTC().Format(time.RFC3339Nano), window).Err()
}
