package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"storegate/pkg/httputil"
	mw "storegate/pkg/middleware"
)

// createSession exchanges username/password for a signed session token.
// Unknown account and wrong password answer identically.
func (a *App) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.Fail(w, "bad json", http.StatusBadRequest)
		return
	}
	acct, err := a.accounts.FindByUsername(r.Context(), body.Username)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			a.log.Errorw("account lookup", "err", err)
			httputil.Fail(w, "account lookup unavailable", http.StatusServiceUnavailable)
			return
		}
		httputil.Fail(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	ok, err := VerifyPassword(body.Password, acct.PasswordHash)
	if err != nil || !ok {
		httputil.Fail(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, exp, err := a.issueToken(acct)
	if err != nil {
		a.log.Errorw("token issue", "err", err)
		httputil.Fail(w, "token issue failed", http.StatusInternalServerError)
		return
	}
	a.log.Infow("console login", "subject", acct.ID)
	httputil.Success(w, map[string]any{"token": token, "expires_at": exp}, http.StatusOK)
}

// deleteSession revokes the presented token. Idempotent: revoking an
// already-revoked or expired token still answers success.
func (a *App) deleteSession(w http.ResponseWriter, r *http.Request) {
	p, _ := mw.PrincipalFrom(r.Context())
	if a.revocations != nil && p.TokenID != "" {
		if err := a.revocations.Revoke(r.Context(), p.TokenID, time.Until(p.ExpiresAt)); err != nil {
			a.log.Errorw("token revoke", "err", err)
			httputil.Fail(w, "revocation unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	a.log.Infow("console logout", "subject", p.Subject)
	httputil.Success(w, nil, http.StatusOK)
}

// refreshSession rotates the session: a fresh token is issued and the old
// one revoked, so a leaked prior token dies with the rotation.
func (a *App) refreshSession(w http.ResponseWriter, r *http.Request) {
	p, _ := mw.PrincipalFrom(r.Context())
	acct, err := a.accounts.FindByID(r.Context(), p.Subject)
	if err != nil {
		httputil.Fail(w, "invalid token", http.StatusUnauthorized)
		return
	}
	token, exp, err := a.issueToken(acct)
	if err != nil {
		a.log.Errorw("token issue", "err", err)
		httputil.Fail(w, "token issue failed", http.StatusInternalServerError)
		return
	}
	if a.revocations != nil && p.TokenID != "" {
		if err := a.revocations.Revoke(r.Context(), p.TokenID, time.Until(p.ExpiresAt)); err != nil {
			a.log.Warnw("stale token revoke", "err", err)
		}
	}
	httputil.Success(w, map[string]any{"token": token, "expires_at": exp}, http.StatusOK)
}

func (a *App) issueToken(acct Account) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(a.cfg.SessionTTL)
	tok, err := jwt.NewBuilder().
		Issuer(a.cfg.SessionIssuer).
		Audience([]string{a.cfg.SessionAudience}).
		Subject(acct.ID).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(exp).
		Claim("name", acct.Name).
		Claim("roles", acct.Roles).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(a.cfg.SessionSigningKey)))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), exp, nil
}
