package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testLog = zap.NewNop().Sugar()

func signTestToken(t *testing.T, sub string, roles []string, exp time.Time) string {
	t.Helper()
	b := jwt.NewBuilder().Subject(sub).Expiration(exp).Claim("name", "Test User")
	if roles != nil {
		b = b.Claim("roles", roles)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("0123456789abcdef0123456789abcdef")))
	require.NoError(t, err)
	return string(signed)
}

func tokenServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"success":true,"data":{"token":%s}}`, mustJSON(token))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestLoginInstallsIdentity(t *testing.T) {
	token := signTestToken(t, "u1", []string{"admin"}, time.Now().Add(time.Hour))
	srv := tokenServer(t, token)
	store := NewMemoryStore()
	a := New(store, Config{Endpoint: srv.URL}, testLog)

	id, err := a.Login(context.Background(), Credentials{Username: "root", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "u1", id.Subject)
	assert.Equal(t, []string{"admin"}, id.Roles)
	assert.Equal(t, token, id.Credential)

	curr := a.CurrentIdentity()
	require.NotNil(t, curr)
	assert.Equal(t, "u1", curr.Subject)

	persisted, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, token, persisted.Credential)
}

func TestLoginRejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":"invalid credentials"}`))
	}))
	t.Cleanup(srv.Close)
	store := NewMemoryStore()
	a := New(store, Config{Endpoint: srv.URL}, testLog)

	_, err := a.Login(context.Background(), Credentials{Username: "root", Password: "wrong"})
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Contains(t, err.Error(), "invalid credentials")

	assert.Nil(t, a.CurrentIdentity())
	persisted, lerr := store.Load()
	require.NoError(t, lerr)
	assert.Nil(t, persisted, "failed login must not touch the store")
}

func TestLoginTransportErrorIsNotAuthFailure(t *testing.T) {
	a := New(NewMemoryStore(), Config{
		Endpoint:   "http://127.0.0.1:1",
		HTTPClient: &http.Client{Timeout: 200 * time.Millisecond},
	}, testLog)

	_, err := a.Login(context.Background(), Credentials{Username: "root", Password: "pw"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthenticationFailed)
}

func TestSecondMutatorIsBusy(t *testing.T) {
	token := signTestToken(t, "u1", nil, time.Now().Add(time.Hour))
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		_, _ = fmt.Fprintf(w, `{"success":true,"data":{"token":%s}}`, mustJSON(token))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	a := New(NewMemoryStore(), Config{Endpoint: srv.URL}, testLog)

	done := make(chan error, 1)
	go func() {
		_, err := a.Login(context.Background(), Credentials{Username: "root", Password: "pw"})
		done <- err
	}()
	<-entered

	_, err := a.Login(context.Background(), Credentials{Username: "root", Password: "pw"})
	assert.ErrorIs(t, err, ErrBusy)

	release <- struct{}{}
	require.NoError(t, <-done)
}

func TestLogoutSupersedesPendingLogin(t *testing.T) {
	token := signTestToken(t, "u1", nil, time.Now().Add(time.Hour))
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		_, _ = fmt.Fprintf(w, `{"success":true,"data":{"token":%s}}`, mustJSON(token))
	}))
	t.Cleanup(srv.Close)

	store := NewMemoryStore()
	a := New(store, Config{Endpoint: srv.URL}, testLog)

	done := make(chan error, 1)
	go func() {
		_, err := a.Login(context.Background(), Credentials{Username: "root", Password: "pw"})
		done <- err
	}()
	<-entered

	// The user logs out while the exchange is still on the wire. The login
	// completing afterwards must not resurrect the session.
	a.Logout(context.Background())
	close(release)

	err := <-done
	require.ErrorIs(t, err, ErrSuperseded)
	assert.Nil(t, a.CurrentIdentity())
	persisted, lerr := store.Load()
	require.NoError(t, lerr)
	assert.Nil(t, persisted)
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(&Identity{
		Subject:    "u1",
		Credential: "tok",
		ExpiresAt:  time.Now().Add(time.Hour),
	}))
	a := New(store, Config{
		Endpoint:   "http://127.0.0.1:1",
		HTTPClient: &http.Client{Timeout: 200 * time.Millisecond},
	}, testLog)
	require.NotNil(t, a.CurrentIdentity())

	var calls []*Identity
	cancel := a.Subscribe(func(id *Identity) { calls = append(calls, id) })
	defer cancel()

	a.Logout(context.Background())
	a.Logout(context.Background())
	a.Logout(context.Background())

	assert.Nil(t, a.CurrentIdentity())
	// Only the transition from present to absent notifies; repeats are silent.
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0])
}

func TestHydrateExpiredCredentialClearsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(&Identity{
		Subject:    "u1",
		Credential: "tok",
		ExpiresAt:  time.Now().Add(-time.Minute),
	}))

	a := New(store, Config{Endpoint: "http://127.0.0.1:1"}, testLog)
	assert.Nil(t, a.CurrentIdentity())

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist, "expired credential must be cleared on startup")
}

func TestHydrateCorruptCredentialClearsStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	a := New(NewFileStore(path), Config{Endpoint: "http://127.0.0.1:1"}, testLog)
	assert.Nil(t, a.CurrentIdentity())

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHydrateValidCredential(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(&Identity{
		Subject:    "u1",
		Roles:      []string{"viewer"},
		Credential: "tok",
		ExpiresAt:  time.Now().Add(time.Hour),
	}))

	a := New(store, Config{Endpoint: "http://127.0.0.1:1"}, testLog)
	id := a.CurrentIdentity()
	require.NotNil(t, id)
	assert.Equal(t, "u1", id.Subject)
	assert.True(t, a.HasRole("viewer"))
	assert.False(t, a.HasRole("admin"))
}

func TestExpiryCrossedWhileRunning(t *testing.T) {
	now := time.Now()
	clock := now
	store := NewMemoryStore()
	require.NoError(t, store.Save(&Identity{
		Subject:    "u1",
		Credential: "tok",
		ExpiresAt:  now.Add(time.Minute),
	}))

	a := New(store, Config{
		Endpoint: "http://127.0.0.1:1",
		Now:      func() time.Time { return clock },
	}, testLog)
	require.NotNil(t, a.CurrentIdentity())

	clock = now.Add(2 * time.Minute)
	assert.Nil(t, a.CurrentIdentity(), "an identity past expiry reads as absent")
	assert.False(t, a.HasRole("admin"))
}

func TestRefreshRotatesCredential(t *testing.T) {
	oldToken := signTestToken(t, "u1", []string{"admin"}, time.Now().Add(time.Minute))
	newToken := signTestToken(t, "u1", []string{"admin"}, time.Now().Add(time.Hour))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+oldToken, r.Header.Get("Authorization"))
		_, _ = fmt.Fprintf(w, `{"success":true,"data":{"token":%s}}`, mustJSON(newToken))
	}))
	t.Cleanup(srv.Close)

	store := NewMemoryStore()
	require.NoError(t, store.Save(&Identity{
		Subject:    "u1",
		Credential: oldToken,
		ExpiresAt:  time.Now().Add(time.Minute),
	}))
	a := New(store, Config{Endpoint: srv.URL}, testLog)

	id, err := a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, newToken, id.Credential)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, newToken, persisted.Credential)
}

func TestRefreshWithoutSession(t *testing.T) {
	a := New(NewMemoryStore(), Config{Endpoint: "http://127.0.0.1:1"}, testLog)
	_, err := a.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSubscribeDeliversTransitions(t *testing.T) {
	token := signTestToken(t, "u1", []string{"admin"}, time.Now().Add(time.Hour))
	srv := tokenServer(t, token)
	a := New(NewMemoryStore(), Config{Endpoint: srv.URL}, testLog)

	var calls []*Identity
	cancel := a.Subscribe(func(id *Identity) { calls = append(calls, id) })

	_, err := a.Login(context.Background(), Credentials{Username: "root", Password: "pw"})
	require.NoError(t, err)
	a.Logout(context.Background())

	require.Len(t, calls, 2)
	require.NotNil(t, calls[0])
	assert.Equal(t, "u1", calls[0].Subject)
	assert.Nil(t, calls[1])

	cancel()
	_, err = a.Login(context.Background(), Credentials{Username: "root", Password: "pw"})
	require.NoError(t, err)
	assert.Len(t, calls, 2, "cancelled subscriber receives nothing further")
}

func TestIdentityExpiredSemantics(t *testing.T) {
	now := time.Now()
	var nilID *Identity
	assert.True(t, nilID.Expired(now))
	assert.True(t, (&Identity{ExpiresAt: now}).Expired(now))
	assert.True(t, (&Identity{ExpiresAt: now.Add(-time.Second)}).Expired(now))
	assert.False(t, (&Identity{ExpiresAt: now.Add(time.Second)}).Expired(now))
	assert.False(t, (&Identity{}).Expired(now), "zero expiry never expires")
}

func TestIdentityFromCredentialClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signTestToken(t, "u42", []string{"admin", "viewer"}, exp)

	id, err := identityFromCredential(token)
	require.NoError(t, err)
	assert.Equal(t, "u42", id.Subject)
	assert.Equal(t, "Test User", id.Name)
	assert.Equal(t, []string{"admin", "viewer"}, id.Roles)
	assert.True(t, exp.Equal(id.ExpiresAt))
	assert.Equal(t, token, id.Credential)

	_, err = identityFromCredential("not-a-token")
	assert.Error(t, err)
}
