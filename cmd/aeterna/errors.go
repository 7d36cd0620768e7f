package main

import (
	"errors"

	"github.com/kikokikok/aeterna-sub000/internal/govern"
)

// errKind extracts the taxonomy Kind from err for JSON-mode error envelopes,
// falling back to "internal" for anything outside the taxonomy.
func errKind(err error) string {
	var ge *govern.Error
	if errors.As(err, &ge) {
		return string(ge.Kind)
	}
	return "internal"
}
