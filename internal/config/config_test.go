package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_NAME", "campus")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, "firebase", cfg.AuthMode)
	assert.Equal(t, int64(5<<20), cfg.UploadMaxBytes)
	assert.Equal(t, 168, cfg.RequestTTLHours)
	assert.Equal(t, []string{"vercel.app"}, cfg.AllowedOriginSuffixes)
}

func TestLoadNormalizesAuthMode(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_MODE", "  JWT ")
	t.Setenv("ALLOWED_ORIGIN_SUFFIXES", "vercel.app,campus.example.edu")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "jwt", cfg.AuthMode)
	assert.Equal(t, []string{"vercel.app", "campus.example.edu"}, cfg.AllowedOriginSuffixes)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	require.NoError(t, os.Unsetenv("DB_USER"))

	_, err := Load()
	assert.Error(t, err)
}
