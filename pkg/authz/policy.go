// pkg/authz/policy.go
package authz

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// DefaultPolicy is the built-in console policy: admins can do everything,
// viewers can read. Deployments override it with CONSOLE_POLICY_FILE.
const DefaultPolicy = `package console

import rego.v1

default allow := false

allow if {
	"admin" in input.roles
}

allow if {
	"viewer" in input.roles
	input.verb == "read"
}
`

// Engine evaluates data.console.allow for a {roles, section, verb} input.
// The policy is compiled once at startup; evaluation is read-only and safe
// under concurrent requests.
type Engine struct {
	query rego.PreparedEvalQuery
}

// New compiles the given rego module. An empty source uses DefaultPolicy.
func New(ctx context.Context, source string) (*Engine, error) {
	if source == "" {
		source = DefaultPolicy
	}
	q, err := rego.New(
		rego.Query("data.console.allow"),
		rego.Module("console.rego", source),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile console policy: %w", err)
	}
	return &Engine{query: q}, nil
}

// NewFromFile loads the policy module from disk, falling back to the default
// when path is empty.
func NewFromFile(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return New(ctx, "")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read console policy: %w", err)
	}
	return New(ctx, string(b))
}

// Allow reports whether roles may perform verb on the console section.
// Unset or non-boolean results deny.
func (e *Engine) Allow(ctx context.Context, roles []string, section, verb string) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]any{
		"roles":   roles,
		"section": section,
		"verb":    verb,
	}))
	if err != nil {
		return false, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := rs[0].Expressions[0].Value.(bool)
	return allowed, nil
}
