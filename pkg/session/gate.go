// pkg/session/gate.go
package session

// Capability is what a view demands of the session: authentication alone
// (zero value) or authentication plus a role.
type Capability struct {
	Role string
}

type Decision int

const (
	// Render: the session satisfies the capability; show the view unchanged.
	Render Decision = iota
	// RedirectToLogin: no identity present; send the user to login and come
	// back to the requested view afterwards.
	RedirectToLogin
	// Forbidden: an identity is present but lacks the required role. The view
	// must show an explicit forbidden state, never partial content.
	Forbidden
)

// Verdict is a gate decision for a specific view. ReturnTo carries the
// originally requested view for the post-login redirect.
type Verdict struct {
	Decision Decision
	View     string
	ReturnTo string
}

// Gate decides, per navigable view, whether to render, redirect to login, or
// deny. It owns no state: every decision is derived from the Authority at
// the moment it is made.
type Gate struct {
	auth *Authority
}

func NewGate(auth *Authority) *Gate { return &Gate{auth: auth} }

// Guard evaluates the capability against the current session.
func (g *Gate) Guard(view string, cap Capability) Verdict {
	return verdictFor(g.auth.CurrentIdentity(), view, cap)
}

// Watch delivers a verdict for the view now and again on every session state
// change, so a logout while the view is open revokes rendering immediately
// rather than at the next navigation. The returned func stops watching.
func (g *Gate) Watch(view string, cap Capability, fn func(Verdict)) (cancel func()) {
	cancel = g.auth.Subscribe(func(id *Identity) {
		fn(verdictFor(id, view, cap))
	})
	fn(g.Guard(view, cap))
	return cancel
}

func verdictFor(id *Identity, view string, cap Capability) Verdict {
	if id == nil {
		return Verdict{Decision: RedirectToLogin, View: view, ReturnTo: view}
	}
	if cap.Role != "" && !id.HasRole(cap.Role) {
		return Verdict{Decision: Forbidden, View: view}
	}
	return Verdict{Decision: Render, View: view}
}
