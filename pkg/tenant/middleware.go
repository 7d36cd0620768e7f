package tenant

import (
	"context"
	"net/http"
)

type contextKey int

const ctxKey contextKey = 0

// FromContext returns the Tenant Context attached to ctx, if any.
func FromContext(ctx context.Context) *Context {
	tc, _ := ctx.Value(ctxKey).(*Context)
	return tc
}

// WithContext attaches a Tenant Context to ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey, &tc)
}

// Middleware derives a Tenant Context from the X-Tenant-Id, X-Principal-Id
// and X-Principal-Kind headers and attaches it to the request context.
// Principal resolution (who issued these headers) is the caller's job, same
// as the CLI's --user/--tenant flags — this module does not prescribe an
// authentication scheme.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := Context{
			TenantID:      r.Header.Get("X-Tenant-Id"),
			PrincipalID:   r.Header.Get("X-Principal-Id"),
			PrincipalKind: r.Header.Get("X-Principal-Kind"),
		}
		if tc.PrincipalKind == "" {
			tc.PrincipalKind = "user"
		}
		r = r.WithContext(WithContext(r.Context(), tc))
		next.ServeHTTP(w, r)
	})
}
