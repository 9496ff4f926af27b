package admin

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"storegate/pkg/httputil"
	mw "storegate/pkg/middleware"
)

// getMenu renders one entry per registered resource, in registration order.
// The menu is produced lazily from the registry on each request; there is no
// cached copy to drift out of sync.
func (a *App) getMenu(w http.ResponseWriter, r *http.Request) {
	entries := []MenuEntry{}
	a.registry.Menu(func(e MenuEntry) bool {
		entries = append(entries, e)
		return true
	})
	httputil.Success(w, map[string]any{"menu": entries}, http.StatusOK)
}

// serveResource routes /admin/resources/{type}/... to the registered
// controller. Authentication has already run in the pipeline; what remains
// here is the console policy check (may this role act on this section) and
// the delegation itself. The registry contributes routing metadata only.
func (a *App) serveResource(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "type")
	ctrl, ok := a.registry.Controller(entityType)
	if !ok {
		httputil.Fail(w, "unknown resource", http.StatusNotFound)
		return
	}

	p, _ := mw.PrincipalFrom(r.Context())
	verb := "write"
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		verb = "read"
	}
	allowed, err := a.policy.Allow(r.Context(), p.Roles, entityType, verb)
	if err != nil {
		a.log.Errorw("console policy", "err", err)
		httputil.Fail(w, "policy evaluation failed", http.StatusInternalServerError)
		return
	}
	if !allowed {
		httputil.Fail(w, "forbidden", http.StatusForbidden)
		return
	}

	// Rebase the URL so controllers see paths relative to their own root
	// ("/admin/resources/products" becomes "/").
	prefix := "/admin/resources/" + entityType
	r2 := r.Clone(r.Context())
	r2.URL.Path = strings.TrimPrefix(r.URL.Path, prefix)
	if r2.URL.Path == "" {
		r2.URL.Path = "/"
	}
	ctrl.ServeHTTP(w, r2)
}
