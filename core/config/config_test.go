package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "appointly", cfg.Database.DBName)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_NAME", "appointly_test")
	t.Setenv("GOOGLE_CLIENT_ID", "gid")
	t.Setenv("GOOGLE_CLIENT_SECRET", "gsecret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "appointly_test", cfg.Database.DBName)
	assert.Equal(t, "gid", cfg.GoogleAPI.ClientID)
	assert.Equal(t, "gsecret", cfg.GoogleAPI.ClientSecret)
}

func TestLoadDerivesRedirectURIs(t *testing.T) {
	t.Setenv("APP_URL", "https://app.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://app.example.com/api/v1/calendar/callback/google", cfg.GoogleAPI.RedirectURI)
	assert.Equal(t, "https://app.example.com/api/v1/calendar/callback/microsoft", cfg.MicrosoftAPI.RedirectURI)
}

func TestGetSafeAfterLoad(t *testing.T) {
	_, err := Load()
	require.NoError(t, err)

	cfg, ok := GetSafe()
	assert.True(t, ok)
	assert.NotNil(t, cfg)
}

func TestSetForTesting(t *testing.T) {
	restore := SetForTesting(&Config{AppURL: "http://test"})
	defer restore()

	assert.Equal(t, "http://test", Get().AppURL)
}
