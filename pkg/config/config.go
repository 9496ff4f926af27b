// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfiguration marks a fatal startup misconfiguration. The service must
// refuse to start rather than run without its access controls.
var ErrConfiguration = errors.New("configuration error")

type Config struct {
	Env      string
	HTTPAddr string

	// Shared-secret gate over the documentation endpoints.
	// DocPaths is an explicit allow-list of exact paths; extending it is a
	// configuration change, never a code change.
	DocSecret string
	DocPaths  []string

	// Platform session tokens issued/validated by the admin console.
	SessionSigningKey string
	SessionIssuer     string
	SessionAudience   string
	SessionTTL        time.Duration

	// Admin console
	CORSOrigins []string
	ResourceDir string // optional dir of declarative resource specs (yaml/json)
	PolicyFile  string // optional rego policy overriding the built-in console policy

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:               env("STOREGATE_ENV", "dev"),
		HTTPAddr:          env("STOREGATE_HTTP_ADDR", ":8080"),
		DocSecret:         env("DOC_GATE_SECRET", ""),
		DocPaths:          envList("DOC_GATE_PATHS", "/api/doc,/api/doc.json"),
		SessionSigningKey: env("SESSION_SIGNING_KEY", ""),
		SessionIssuer:     env("SESSION_ISSUER", "storegate-admin"),
		SessionAudience:   env("SESSION_AUDIENCE", "storegate-console"),
		SessionTTL:        envDur("SESSION_TTL_SEC", 3600) * time.Second,
		CORSOrigins:       envList("ADMIN_CORS_ORIGINS", "http://localhost:3001"),
		ResourceDir:       env("RESOURCE_DIR", ""),
		PolicyFile:        env("CONSOLE_POLICY_FILE", ""),
		RedisURL:          env("REDIS_URL", ""),
		DatabaseURL:       env("DATABASE_URL", ""),
	}
	return cfg
}

// Validate fails closed: a missing secret must abort startup, never degrade
// to "no protection".
func (c Config) Validate() error {
	if strings.TrimSpace(c.DocSecret) == "" {
		return fmt.Errorf("%w: DOC_GATE_SECRET is required", ErrConfiguration)
	}
	if strings.TrimSpace(c.SessionSigningKey) == "" {
		return fmt.Errorf("%w: SESSION_SIGNING_KEY is required", ErrConfiguration)
	}
	if len(c.SessionSigningKey) < 32 {
		return fmt.Errorf("%w: SESSION_SIGNING_KEY must be at least 32 bytes", ErrConfiguration)
	}
	for _, p := range c.DocPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: DOC_GATE_PATHS entry %q is not an absolute path", ErrConfiguration, p)
		}
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envList(k, def string) []string {
	v := os.Getenv(k)
	if v == "" {
		v = def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}
