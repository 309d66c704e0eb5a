package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080/api/v1", cfg.API.BaseURL)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, "portal_session", cfg.Session.CookieName)
	assert.Equal(t, 60, cfg.Auth.OTPResendCooldownSec)
	assert.Equal(t, "skip", cfg.Workflow.PaidQuestions)
}

func TestLoad_CustomEnv(t *testing.T) {
	os.Clearenv()
	t.Setenv("API_BASE_URL", "https://api.example.com/api/v1/")
	t.Setenv("ASSET_BASE_URL", "https://cdn.example.com/")
	t.Setenv("SESSION_BACKEND", "FILE")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("PAID_WEBINAR_QUESTIONS", "Collect")
	t.Setenv("API_TIMEOUT_SEC", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/api/v1", cfg.API.BaseURL)
	assert.Equal(t, "https://cdn.example.com", cfg.API.AssetBaseURL)
	assert.Equal(t, "file", cfg.Session.Backend)
	assert.True(t, cfg.Session.Secure)
	assert.Equal(t, "collect", cfg.Workflow.PaidQuestions)
	assert.Equal(t, 5, cfg.API.TimeoutSec)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	os.Clearenv()
	t.Setenv("SESSION_TTL_HOURS", "forever")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.Session.TTLHours)
}
