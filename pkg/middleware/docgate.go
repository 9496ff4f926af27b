// pkg/middleware/docgate.go
package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"storegate/pkg/httputil"
)

// Rule maps one exact request path to the shared secret that unlocks it and,
// optionally, a role the platform session must already carry. Rules are
// evaluated in listed order, first match wins; unmatched paths pass through
// untouched.
type Rule struct {
	Path   string
	Secret string
	Role   string
}

// RulesForPaths builds one rule per path against a single shared secret,
// which is how the documentation endpoints are configured in practice.
func RulesForPaths(paths []string, secret string) []Rule {
	out := make([]Rule, 0, len(paths))
	for _, p := range paths {
		out = append(out, Rule{Path: p, Secret: secret})
	}
	return out
}

const deniedMessage = "access denied"

var gateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storegate_doc_gate_decisions_total",
	Help: "Doc gate decisions by outcome.",
}, []string{"outcome"})

// DocGate enforces a shared-secret token on the configured protected paths.
// It runs on every request in the pipeline, before routing, so no route can
// opt out of it. The token travels as the `token` query parameter; a missing
// token takes exactly the same denial path as a wrong one so the response
// never reveals why access failed. The token value itself is never logged.
func DocGate(rules []Rule, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := match(rules, r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			token := r.URL.Query().Get("token")
			if !tokenEqual(token, rule.Secret) {
				gateDecisions.WithLabelValues("denied").Inc()
				log.Infow("doc gate denied", "path", r.URL.Path)
				httputil.Fail(w, deniedMessage, http.StatusForbidden)
				return
			}
			if rule.Role != "" && !HasAnyRole(r.Context(), []string{rule.Role}) {
				gateDecisions.WithLabelValues("denied").Inc()
				log.Infow("doc gate denied", "path", r.URL.Path, "reason", "role")
				httputil.Fail(w, deniedMessage, http.StatusForbidden)
				return
			}
			gateDecisions.WithLabelValues("allowed").Inc()
			next.ServeHTTP(w, r)
		})
	}
}

func match(rules []Rule, path string) (Rule, bool) {
	for _, ru := range rules {
		if ru.Path == path {
			return ru, true
		}
	}
	return Rule{}, false
}

// tokenEqual compares in constant time. Both sides are hashed first so the
// comparison length never depends on the supplied token.
func tokenEqual(token, secret string) bool {
	a := sha256.Sum256([]byte(token))
	b := sha256.Sum256([]byte(secret))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
