// pkg/middleware/roles.go
package middleware

import (
	"context"
	"net/http"
	"time"

	"storegate/pkg/httputil"
)

// Principal is the authenticated platform session attached to a request by
// PlatformAuth.
type Principal struct {
	Subject   string
	Name      string
	Roles     []string
	TokenID   string
	ExpiresAt time.Time
}

type principalCtxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	if v := ctx.Value(principalCtxKey{}); v != nil {
		if p, ok := v.(Principal); ok {
			return p, true
		}
	}
	return Principal{}, false
}

// HasAnyRole reports whether the request principal holds at least one of the
// required roles. An empty requirement always passes; no principal never does.
func HasAnyRole(ctx context.Context, required []string) bool {
	if len(required) == 0 {
		return true
	}
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return false
	}
	set := map[string]struct{}{}
	for _, r := range p.Roles {
		set[r] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasAnyRole(r.Context(), []string{role}) {
				httputil.Fail(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
