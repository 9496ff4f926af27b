package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		DocSecret:         "s3cr3t",
		DocPaths:          []string{"/api/doc", "/api/doc.json"},
		SessionSigningKey: strings.Repeat("k", 32),
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateFailsClosedOnMissingDocSecret(t *testing.T) {
	cfg := validConfig()
	cfg.DocSecret = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	cfg.DocSecret = "   "
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)
}

func TestValidateRejectsWeakSigningKey(t *testing.T) {
	cfg := validConfig()
	cfg.SessionSigningKey = ""
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)

	cfg.SessionSigningKey = "too-short"
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)
}

func TestValidateRejectsRelativeDocPaths(t *testing.T) {
	cfg := validConfig()
	cfg.DocPaths = []string{"/api/doc", "api/doc.json"}
	assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("STOREGATE_ENV", "prod")
	t.Setenv("DOC_GATE_SECRET", "s3cr3t")
	t.Setenv("DOC_GATE_PATHS", "/api/doc, /api/doc.json ,")
	t.Setenv("SESSION_SIGNING_KEY", strings.Repeat("k", 32))
	t.Setenv("SESSION_TTL_SEC", "600")

	cfg := Load()
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "s3cr3t", cfg.DocSecret)
	assert.Equal(t, []string{"/api/doc", "/api/doc.json"}, cfg.DocPaths)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOC_GATE_PATHS", "")
	t.Setenv("SESSION_ISSUER", "")
	cfg := Load()
	assert.Equal(t, []string{"/api/doc", "/api/doc.json"}, cfg.DocPaths)
	assert.Equal(t, "storegate-admin", cfg.SessionIssuer)
	assert.Equal(t, "storegate-console", cfg.SessionAudience)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
}
