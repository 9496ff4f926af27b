// pkg/session/identity.go
package session

import (
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Identity is an authenticated principal as seen by the client. Credential is
// the platform-issued bearer token; the client never verifies its signature
// (the server does), it only reads claims to know who it is and until when.
type Identity struct {
	Subject    string    `json:"subject"`
	Name       string    `json:"name,omitempty"`
	Roles      []string  `json:"roles,omitempty"`
	Credential string    `json:"credential"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the credential is past its expiry. A zero expiry
// never expires.
func (id *Identity) Expired(now time.Time) bool {
	if id == nil {
		return true
	}
	return !id.ExpiresAt.IsZero() && !now.Before(id.ExpiresAt)
}

func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// identityFromCredential reads the claims out of a bearer token without
// verifying it. Unparsable tokens are rejected.
func identityFromCredential(credential string) (*Identity, error) {
	jt, err := jwt.Parse([]byte(credential), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return nil, err
	}
	id := &Identity{
		Subject:    jt.Subject(),
		Credential: credential,
		ExpiresAt:  jt.Expiration(),
	}
	if v, ok := jt.Get("name"); ok {
		id.Name, _ = v.(string)
	}
	if v, ok := jt.Get("roles"); ok {
		if arr, ok := v.([]any); ok {
			for _, e := range arr {
				if s, ok := e.(string); ok && s != "" {
					id.Roles = append(id.Roles, s)
				}
			}
		}
	}
	return id, nil
}
