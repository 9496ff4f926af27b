// pkg/middleware/platformauth.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"

	"storegate/pkg/httputil"
)

// AuthConfig configures platform session validation for the admin console.
type AuthConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   string
}

// RevocationChecker answers whether a token id has been revoked (logout).
// A nil checker disables the lookup.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// PlatformAuth validates the bearer session token on every console request
// and attaches the resulting Principal to the request context. It decides
// authentication only; what a principal may do is the console policy's call.
func PlatformAuth(cfg AuthConfig, revoked RevocationChecker, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				httputil.Fail(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimSpace(authz[len("Bearer "):])

			jt, err := jwt.Parse([]byte(raw),
				jwt.WithKey(jwa.HS256, cfg.SigningKey),
				jwt.WithIssuer(cfg.Issuer),
				jwt.WithAudience(cfg.Audience),
				jwt.WithValidate(true),
			)
			if err != nil {
				httputil.Fail(w, "invalid token", http.StatusUnauthorized)
				return
			}

			if revoked != nil {
				rev, err := revoked.IsRevoked(r.Context(), jt.JwtID())
				if err != nil {
					log.Errorw("revocation lookup", "err", err)
					httputil.Fail(w, "session check unavailable", http.StatusServiceUnavailable)
					return
				}
				if rev {
					httputil.Fail(w, "invalid token", http.StatusUnauthorized)
					return
				}
			}

			p := Principal{Subject: jt.Subject(), TokenID: jt.JwtID(), ExpiresAt: jt.Expiration()}
			if v, ok := jt.Get("name"); ok {
				p.Name, _ = v.(string)
			}
			if v, ok := jt.Get("roles"); ok {
				p.Roles = rolesClaim(v)
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// rolesClaim tolerates both JSON arrays and space-separated strings.
func rolesClaim(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	case string:
		return strings.Fields(t)
	}
	return nil
}
