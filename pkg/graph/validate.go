package graph

import (
	"strings"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
)

// sqlInjectionPatterns are substrings a tenant id must never contain,
// checked case-insensitively (spec.md §4.2 "rejects embedded SQL control
// tokens").
var sqlInjectionPatterns = []string{
	"--", ";", "'", `"`, "/*", "*/",
	"UNION", "SELECT", "INSERT", "UPDATE", "DELETE", "DROP", "EXEC", "EXECUTE", "XP_",
}

func isTenantIDChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

// validateTenantIDFormat enforces spec.md §4.2's exact tenant-id rule set:
// non-empty, <=128 chars, [A-Za-z0-9_-] only, no embedded SQL control
// tokens. Every rejection writes a security-audit entry via sink (sink may
// be nil in contexts where no audit trail is available, e.g. unit tests).
func validateTenantIDFormat(tenantID string, sink *govern.AuditSink) error {
	if tenantID == "" {
		auditReject(sink, tenantID, "empty_tenant_id", "Empty tenant ID")
		return govern.New(govern.KindInvalidTenantIDFormat, "tenant ID cannot be empty")
	}

	if len(tenantID) > 128 {
		auditReject(sink, tenantID, "tenant_id_too_long", "Tenant ID exceeds 128 chars")
		return govern.New(govern.KindInvalidTenantIDFormat, "tenant ID exceeds maximum length of 128 characters")
	}

	for _, c := range tenantID {
		if !isTenantIDChar(c) {
			auditReject(sink, tenantID, "invalid_tenant_id_chars", "Invalid characters in tenant ID")
			return govern.New(govern.KindInvalidTenantIDFormat, "tenant ID contains invalid characters (allowed: alphanumeric, -, _)")
		}
	}

	upper := strings.ToUpper(tenantID)
	for _, pattern := range sqlInjectionPatterns {
		if strings.Contains(upper, pattern) {
			auditReject(sink, tenantID, "sql_injection_attempt", "SQL injection pattern detected: "+pattern)
			return govern.New(govern.KindInvalidTenantIDFormat, "tenant ID contains disallowed pattern")
		}
	}

	return nil
}

func auditReject(sink *govern.AuditSink, tenantID, eventType, details string) {
	if sink == nil {
		return
	}
	sink.SecurityReject(tenantID, eventType, details, tenantID)
}

// validateTenant checks tctx.TenantID is well-formed and non-empty. Every
// graph operation calls this first.
func validateTenant(tctx Ctx, sink *govern.AuditSink) (string, error) {
	if tctx.TenantID == "" {
		return "", govern.New(govern.KindInvalidTenantContext, "tenant context missing tenant id")
	}
	if err := validateTenantIDFormat(tctx.TenantID, sink); err != nil {
		return "", err
	}
	return tctx.TenantID, nil
}
