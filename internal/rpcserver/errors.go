package rpcserver

import (
	"net/http"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
	"github.com/kikokikok/aeterna-sub000/internal/httpserver"
)

// statusFor maps a taxonomy Kind to the HTTP status a JSON client expects,
// defaulting to 500 for anything not in the taxonomy or not classifiable.
func statusFor(err error) int {
	switch {
	case govern.Is(err, govern.KindInvalidTenantContext),
		govern.Is(err, govern.KindInvalidTenantIDFormat),
		govern.Is(err, govern.KindMissingReason):
		return http.StatusBadRequest
	case govern.Is(err, govern.KindTenantViolation),
		govern.Is(err, govern.KindAuthorizationDenied),
		govern.Is(err, govern.KindRiskRestricted),
		govern.Is(err, govern.KindDelegationDepth):
		return http.StatusForbidden
	case govern.Is(err, govern.KindNodeNotFound),
		govern.Is(err, govern.KindEdgeNotFound):
		return http.StatusNotFound
	case govern.Is(err, govern.KindDuplicateDecision):
		return http.StatusConflict
	case govern.Is(err, govern.KindChecksumMismatch):
		return http.StatusUnprocessableEntity
	case govern.Is(err, govern.KindTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeErr classifies err by taxonomy Kind and writes the matching JSON
// error envelope.
func writeErr(w http.ResponseWriter, err error) {
	httpserver.RespondError(w, statusFor(err), "request_failed", err.Error())
}
