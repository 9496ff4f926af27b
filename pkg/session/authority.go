// pkg/session/authority.go
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrBusy is returned when a session-mutating operation is already in
	// flight. Callers retry after the pending operation settles.
	ErrBusy = errors.New("session operation already in flight")
	// ErrAuthenticationFailed means the server rejected the credentials.
	// Distinct from transport errors, which are returned as-is.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrSessionExpired means the held credential is no longer valid.
	ErrSessionExpired = errors.New("session expired")
	// ErrSuperseded means a login or refresh completed after a logout took
	// over; its result was discarded instead of resurrecting the session.
	ErrSuperseded = errors.New("operation superseded by logout")
)

// Credentials are what the operator types at login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Config wires an Authority to the platform's session endpoints.
type Config struct {
	// Endpoint is the admin service base URL, e.g. https://admin.internal:8080.
	Endpoint string
	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
	// Now defaults to time.Now; tests substitute it.
	Now func() time.Time
}

// Authority is the single source of truth for "who is the current user".
// Reads never block on the network. Login and Refresh are serialized: while
// one is in flight a second mutator gets ErrBusy. Logout always proceeds and
// supersedes any in-flight login, so a late-arriving login success can never
// resurrect a logged-out session.
type Authority struct {
	store    CredentialStore
	log      *zap.SugaredLogger
	client   *http.Client
	endpoint string
	now      func() time.Time

	mu         sync.Mutex
	current    *Identity
	subs       []subscriber
	nextSubID  int
	inflight   bool
	generation uint64
}

type subscriber struct {
	id int
	fn func(*Identity)
}

// New constructs the Authority and hydrates it from the store. An expired or
// unparsable persisted credential is treated as absent and cleared, so a
// stale file can never produce a logged-in-looking state.
func New(store CredentialStore, cfg Config, log *zap.SugaredLogger) *Authority {
	a := &Authority{
		store:    store,
		log:      log,
		client:   cfg.HTTPClient,
		endpoint: cfg.Endpoint,
		now:      cfg.Now,
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: 15 * time.Second}
	}
	if a.now == nil {
		a.now = time.Now
	}
	a.hydrate()
	return a
}

func (a *Authority) hydrate() {
	id, err := a.store.Load()
	if err != nil {
		if !errors.Is(err, ErrCorruptCredential) {
			a.log.Warnw("credential load", "err", err)
		}
		_ = a.store.Clear()
		return
	}
	if id == nil {
		return
	}
	if id.Expired(a.now()) {
		_ = a.store.Clear()
		return
	}
	a.current = id
}

// CurrentIdentity returns the present identity, or nil when logged out. An
// identity whose credential has expired is reported as absent.
func (a *Authority) CurrentIdentity() *Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil || a.current.Expired(a.now()) {
		return nil
	}
	cp := *a.current
	return &cp
}

func (a *Authority) HasRole(role string) bool {
	return a.CurrentIdentity().HasRole(role)
}

// Subscribe registers fn to be called synchronously, in mutation order, with
// the identity resulting from each completed login/logout/refresh. fn runs
// under the Authority's lock and must not call back into it; the new state is
// handed to it directly. The returned func cancels the subscription.
func (a *Authority) Subscribe(fn func(*Identity)) (cancel func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextSubID++
	id := a.nextSubID
	a.subs = append(a.subs, subscriber{id: id, fn: fn})
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		for i, s := range a.subs {
			if s.id == id {
				a.subs = append(a.subs[:i], a.subs[i+1:]...)
				return
			}
		}
	}
}

func (a *Authority) notifyLocked(id *Identity) {
	for _, s := range a.subs {
		s.fn(id)
	}
}

// Login exchanges credentials with the platform's session endpoint and, on
// success, installs the resulting identity. The store is left untouched on
// failure.
func (a *Authority) Login(ctx context.Context, creds Credentials) (*Identity, error) {
	gen, err := a.beginMutation()
	if err != nil {
		return nil, err
	}

	token, err := a.exchange(ctx, creds)
	if err != nil {
		a.endMutation()
		return nil, err
	}
	id, err := identityFromCredential(token)
	if err != nil {
		a.endMutation()
		return nil, fmt.Errorf("parse issued credential: %w", err)
	}

	return a.commit(gen, id)
}

// Refresh exchanges the current credential for a fresh one. Same single
// flight discipline as Login.
func (a *Authority) Refresh(ctx context.Context) (*Identity, error) {
	curr := a.CurrentIdentity()
	if curr == nil {
		return nil, ErrSessionExpired
	}
	gen, err := a.beginMutation()
	if err != nil {
		return nil, err
	}

	token, err := a.renew(ctx, curr.Credential)
	if err != nil {
		a.endMutation()
		return nil, err
	}
	id, err := identityFromCredential(token)
	if err != nil {
		a.endMutation()
		return nil, fmt.Errorf("parse renewed credential: %w", err)
	}

	return a.commit(gen, id)
}

// Logout clears the session. It is idempotent, never returns an error for an
// already-absent session, and supersedes any in-flight login. Server-side
// revocation is best effort; the local state is cleared regardless.
func (a *Authority) Logout(ctx context.Context) {
	a.mu.Lock()
	a.generation++
	old := a.current
	a.current = nil
	_ = a.store.Clear()
	if old != nil {
		a.notifyLocked(nil)
	}
	a.mu.Unlock()

	if old != nil && old.Credential != "" {
		if err := a.revoke(ctx, old.Credential); err != nil {
			a.log.Warnw("session revoke", "err", err)
		}
	}
}

func (a *Authority) beginMutation() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inflight {
		return 0, ErrBusy
	}
	a.inflight = true
	a.generation++
	return a.generation, nil
}

func (a *Authority) endMutation() {
	a.mu.Lock()
	a.inflight = false
	a.mu.Unlock()
}

// commit installs the identity unless a logout moved the generation on while
// the exchange was in flight.
func (a *Authority) commit(gen uint64, id *Identity) (*Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight = false
	if gen != a.generation {
		return nil, ErrSuperseded
	}
	a.current = id
	if err := a.store.Save(id); err != nil {
		a.log.Warnw("credential persist", "err", err)
	}
	a.notifyLocked(id)
	cp := *id
	return &cp, nil
}

type sessionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Token string `json:"token"`
	} `json:"data"`
}

func (a *Authority) exchange(ctx context.Context, creds Credentials) (string, error) {
	body, _ := json.Marshal(creds)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/admin/session", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.sessionCall(req)
}

func (a *Authority) renew(ctx context.Context, credential string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/admin/session/refresh", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	return a.sessionCall(req)
}

func (a *Authority) revoke(ctx context.Context, credential string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.endpoint+"/admin/session", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("revoke: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (a *Authority) sessionCall(req *http.Request) (string, error) {
	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out sessionResponse
	if derr := json.NewDecoder(resp.Body).Decode(&out); derr != nil && resp.StatusCode == http.StatusOK {
		return "", fmt.Errorf("decode session response: %w", derr)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if out.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrAuthenticationFailed, out.Error)
		}
		return "", ErrAuthenticationFailed
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("session endpoint: unexpected status %d", resp.StatusCode)
	}
	if !out.Success || out.Data.Token == "" {
		return "", fmt.Errorf("session endpoint: malformed response")
	}
	return out.Data.Token, nil
}
