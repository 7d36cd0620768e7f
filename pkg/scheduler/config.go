package scheduler

// JobConfig holds the coordination knobs run_job consults: lock TTL, the
// per-job execution timeout, and the dedup window. Grounded on
// knowledge/src/scheduler.rs's JobConfig (lock_ttl_seconds,
// job_timeout_seconds, deduplication_window_seconds, lock_key(name)).
type JobConfig struct {
	LockTTLSeconds             int
	JobTimeoutSeconds          int
	DeduplicationWindowSeconds int
}

// DefaultJobConfig returns the defaults spec.md §4.3/§4.4 assumes when a
// deployment does not override them.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		LockTTLSeconds:             120,
		JobTimeoutSeconds:          600,
		DeduplicationWindowSeconds: 3600,
	}
}

// LockKey builds the Redis lock key for a named job.
func (c JobConfig) LockKey(name string) string {
	return "job_lock:" + name
}

// dlqRetryBudget is the number of extra retries a dead-letter event gets
// beyond its own max_retries before it is marked permanently failed.
const dlqRetryBudget = 3

// dlqBatchLimit caps how many dead-letter events a single DLQ processing
// tick reads per company-kind unit.
const dlqBatchLimit = 100

// triggerFailureSentinel is a forced-failure hook for tests: a job name
// containing this substring fails run_job without any side effects.
const triggerFailureSentinel = "TRIGGER_FAILURE"

// Deployment modes gate which jobs actually run (spec.md §4.4).
const (
	ModeLocal  = "local"
	ModeHybrid = "hybrid"
	ModeRemote = "remote"
)
