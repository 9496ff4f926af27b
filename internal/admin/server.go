package admin

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storegate/internal/docs"
	mw "storegate/pkg/middleware"
)

// Handler builds the full request pipeline. The doc gate is installed with
// Use on the root router: it runs for every request before routing, so no
// route wiring below can bypass it.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(mw.RequestID())
	r.Use(mw.Recover(a.log))
	r.Use(mw.Tracing())
	r.Use(mw.DocGate(mw.RulesForPaths(a.cfg.DocPaths, a.cfg.DocSecret), a.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	surface := docs.AdminSurface()
	r.Get("/api/doc", surface.PageHandler("storegate admin", "1.0"))
	r.Get("/api/doc.json", surface.JSONHandler("storegate admin", "1.0"))

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(cors(a.cfg.CORSOrigins))

		// Login is the only console route reachable without a session.
		ar.Post("/session", a.createSession)

		ar.Group(func(g chi.Router) {
			var checker mw.RevocationChecker
			if a.revocations != nil {
				checker = a.revocations
			}
			g.Use(mw.PlatformAuth(mw.AuthConfig{
				SigningKey: []byte(a.cfg.SessionSigningKey),
				Issuer:     a.cfg.SessionIssuer,
				Audience:   a.cfg.SessionAudience,
			}, checker, a.log))

			g.Delete("/session", a.deleteSession)
			g.Post("/session/refresh", a.refreshSession)
			g.Get("/menu", a.getMenu)
			g.HandleFunc("/resources/{type}", a.serveResource)
			g.HandleFunc("/resources/{type}/*", a.serveResource)
		})
	})

	return r
}

// cors sets CORS headers and answers preflight for the console origins.
// allowed may contain exact origins or "*".
func cors(allowed []string) func(http.Handler) http.Handler {
	match := func(origin string) (string, bool) {
		if origin == "" {
			return "", false
		}
		for _, a := range allowed {
			a = strings.TrimSpace(a)
			if a == "*" || a == origin {
				return a, true
			}
		}
		return "", false
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if ao, ok := match(origin); ok {
				w.Header().Set("Access-Control-Allow-Origin", ao)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "86400")
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
