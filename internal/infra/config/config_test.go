package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.MessageInterval)
	assert.Equal(t, 5*time.Second, cfg.ConversationInterval)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, time.Second, cfg.FetchMinInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NESTCHAT_API_URL", "https://api.example.com/")
	t.Setenv("NESTCHAT_MESSAGE_INTERVAL", "10s")
	t.Setenv("NESTCHAT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL, "trailing slash trimmed")
	assert.Equal(t, 10*time.Second, cfg.MessageInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("NESTCHAT_CACHE_TTL", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "NESTCHAT_CACHE_TTL")
}

func TestLoadRejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("NESTCHAT_MESSAGE_INTERVAL", "0s")

	_, err := Load()
	assert.ErrorContains(t, err, "polling intervals")
}
