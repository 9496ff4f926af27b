// Package docs builds and serves the API documentation for the admin
// surface. These endpoints are sensitive (they enumerate internal routes)
// and sit behind the doc gate in the request pipeline.
package docs

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"
)

// Operation is a single HTTP operation surfaced in the document.
type Operation struct {
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Roles       []string       `json:"x-required-roles,omitempty"`
	Responses   map[string]any `json:"responses"`
}

// Registry holds the operations included in the generated document.
type Registry struct {
	ops []Operation
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) Register(op Operation) {
	if op.Method != "" {
		op.Method = strings.ToLower(op.Method)
	}
	if op.Responses == nil {
		op.Responses = map[string]any{"200": map[string]any{"description": "OK"}}
	}
	r.ops = append(r.ops, op)
}

// Build produces a minimal OpenAPI 3.1 document for the registered
// operations. Schemas stay inline; the document describes the surface, not
// the payloads.
func (r *Registry) Build(serviceName, version string) map[string]any {
	paths := map[string]any{}
	for _, op := range r.ops {
		if _, ok := paths[op.Path]; !ok {
			paths[op.Path] = map[string]any{}
		}
		m := map[string]any{
			"summary":     op.Summary,
			"description": op.Description,
			"tags":        op.Tags,
			"responses":   op.Responses,
		}
		if len(op.Roles) > 0 {
			m["x-required-roles"] = op.Roles
		}
		paths[op.Path].(map[string]any)[op.Method] = m
	}
	return map[string]any{
		"openapi": "3.1.0",
		"info":    map[string]any{"title": serviceName, "version": version},
		"paths":   paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"session": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
		"security": []map[string]any{{"session": []string{}}},
	}
}

// JSONHandler serves the built document as JSON.
func (r *Registry) JSONHandler(serviceName, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(r.Build(serviceName, version))
	}
}

var pageTmpl = template.Must(template.New("doc").Parse(`<!doctype html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
<p>Machine-readable document: <a href="/api/doc.json">/api/doc.json</a></p>
<table border="1" cellpadding="4">
<tr><th>Method</th><th>Path</th><th>Summary</th></tr>
{{range .Ops}}<tr><td>{{.Method}}</td><td>{{.Path}}</td><td>{{.Summary}}</td></tr>
{{end}}</table>
</body></html>
`))

// PageHandler serves a server-rendered HTML index of the same operations.
func (r *Registry) PageHandler(serviceName, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		data := struct {
			Title string
			Ops   []Operation
		}{Title: fmt.Sprintf("%s %s", serviceName, version), Ops: r.ops}
		_ = pageTmpl.Execute(w, data)
	}
}

// AdminSurface registers the operations of the admin console.
func AdminSurface() *Registry {
	r := NewRegistry()
	r.Register(Operation{Method: "POST", Path: "/admin/session", Summary: "Exchange credentials for a session token", Tags: []string{"session"}})
	r.Register(Operation{Method: "DELETE", Path: "/admin/session", Summary: "Revoke the current session token", Tags: []string{"session"}})
	r.Register(Operation{Method: "POST", Path: "/admin/session/refresh", Summary: "Rotate the current session token", Tags: []string{"session"}})
	r.Register(Operation{Method: "GET", Path: "/admin/menu", Summary: "Console menu for the registered resources", Tags: []string{"console"}})
	r.Register(Operation{Method: "GET", Path: "/admin/resources/{type}", Summary: "List entities of a registered resource", Tags: []string{"resources"}, Roles: []string{"viewer", "admin"}})
	r.Register(Operation{Method: "POST", Path: "/admin/resources/{type}", Summary: "Create an entity", Tags: []string{"resources"}, Roles: []string{"admin"}})
	r.Register(Operation{Method: "GET", Path: "/admin/resources/{type}/{id}", Summary: "Fetch one entity", Tags: []string{"resources"}, Roles: []string{"viewer", "admin"}})
	r.Register(Operation{Method: "PUT", Path: "/admin/resources/{type}/{id}", Summary: "Update an entity", Tags: []string{"resources"}, Roles: []string{"admin"}})
	r.Register(Operation{Method: "DELETE", Path: "/admin/resources/{type}/{id}", Summary: "Delete an entity", Tags: []string{"resources"}, Roles: []string{"admin"}})
	return r
}
