package graph

import (
	"strings"
	"testing"
)

func TestValidateTenantIDFormatBoundary(t *testing.T) {
	cases := []struct {
		name     string
		tenantID string
	}{
		{"empty", ""},
		{"too long", strings.Repeat("a", 129)},
		{"trailing comment marker", "a;--"},
		{"sql keyword", "DROP TABLE x"},
		{"quote injection", "alice'OR'1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateTenantIDFormat(tc.tenantID, nil); err == nil {
				t.Fatalf("tenant id %q: expected InvalidTenantIdFormat, got nil", tc.tenantID)
			}
		})
	}
}

func TestValidateTenantIDFormatAccepts(t *testing.T) {
	for _, id := range []string{"acme-1", "Tenant_123", "a"} {
		if err := validateTenantIDFormat(id, nil); err != nil {
			t.Fatalf("tenant id %q: unexpected rejection: %v", id, err)
		}
	}
}
