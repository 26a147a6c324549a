package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CHAT_PER_PAGE", "")
	t.Setenv("CHAT_BACKEND", "")

	cfg := Load()

	assert.Equal(t, "8000", cfg.ServerPort)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 20, cfg.Client.PerPage)
	assert.Equal(t, "resource", cfg.Client.Backend)
	assert.Equal(t, "mobile", cfg.Client.Platform)
	assert.Equal(t, "en-US", cfg.Client.Language)
	assert.Equal(t, "general", cfg.Client.Topic)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CHAT_PER_PAGE", "5")
	t.Setenv("CHAT_HTTP_TIMEOUT", "2s")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 5, cfg.Client.PerPage)
	assert.Equal(t, 2*time.Second, cfg.Client.HTTPTimeout)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, 60, cfg.RateLimitRequests)
}
