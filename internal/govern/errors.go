// Package govern holds the error taxonomy and audit sink shared by every
// control-plane subsystem (tenant, graph, lock, scheduler, metapolicy,
// approval, confirmation, backup).
package govern

import (
	"errors"
	"fmt"
)

// Kind identifies a taxonomy entry independent of its formatted message, so
// callers can branch with errors.Is/As instead of string matching.
type Kind string

const (
	KindInvalidTenantContext  Kind = "invalid_tenant_context"
	KindInvalidTenantIDFormat Kind = "invalid_tenant_id_format"
	KindTenantViolation       Kind = "tenant_violation"
	KindReferentialIntegrity  Kind = "referential_integrity"
	KindNodeNotFound          Kind = "node_not_found"
	KindEdgeNotFound          Kind = "edge_not_found"
	KindSerialization         Kind = "serialization"
	KindMaxDepthExceeded      Kind = "max_depth_exceeded"
	KindTimeout               Kind = "timeout"
	KindChecksumMismatch      Kind = "checksum_mismatch"
	KindMigration             Kind = "migration"
	KindSchema                Kind = "schema"
	KindLock                  Kind = "lock"
	KindKVStore               Kind = "kv_store"
	KindBlob                  Kind = "blob"
	KindAnalyticalSink        Kind = "analytical_sink"
	KindAuthorizationDenied   Kind = "authorization_denied"
	KindDelegationDepth       Kind = "delegation_depth_exceeded"
	KindRiskRestricted        Kind = "risk_restricted"
	KindMissingReason         Kind = "missing_reason"
	KindDuplicateDecision     Kind = "duplicate_decision"
)

// Error is the taxonomy's typed error. Two Errors compare equal under
// errors.Is when their Kind matches, regardless of Message.
type Error struct {
	Kind    Kind
	Message string
	// Expected/Actual carry the two checksums for KindChecksumMismatch; zero
	// value for every other kind.
	Expected string
	Actual   string
}

func (e *Error) Error() string {
	if e.Kind == KindChecksumMismatch {
		return fmt.Sprintf("%s: expected %s, got %s", e.Message, e.Expected, e.Actual)
	}
	return e.Message
}

// Is implements the errors.Is contract by Kind, ignoring Message so callers
// can test "is this a NodeNotFound" without constructing an identical string.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs a taxonomy error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ChecksumMismatch constructs the one taxonomy entry that carries two values
// instead of a free-form message.
func ChecksumMismatch(expected, actual string) *Error {
	return &Error{
		Kind:     KindChecksumMismatch,
		Message:  "checksum mismatch",
		Expected: expected,
		Actual:   actual,
	}
}

// Is reports whether err is (or wraps) a taxonomy error of the given kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}
