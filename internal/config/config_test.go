package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WS_SEND_BUFFER", "not-a-number")
	t.Setenv("WS_PONG_WAIT", "")

	cfg := Load()
	assert.Equal(t, 256, cfg.Realtime.SendBuffer)
	assert.Equal(t, 60*time.Second, cfg.Realtime.PongWait)
	assert.Equal(t, int64(4<<20), cfg.Realtime.MaxMessageSize)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, "warn", cfg.Database.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("GO_ENV", "production")
	t.Setenv("BOARD_RELAY", "channel")
	t.Setenv("MDNS_ENABLED", "true")
	t.Setenv("WS_SEND_BUFFER", "32")
	t.Setenv("DOCUMENT_CACHE_TTL", "90s")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("DB_LOG_LEVEL", "info")

	cfg := Load()
	assert.Equal(t, "8080", cfg.App.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "channel", cfg.App.Relay)
	assert.True(t, cfg.App.MDNSEnabled)
	assert.Equal(t, 32, cfg.Realtime.SendBuffer)
	assert.Equal(t, 90*time.Second, cfg.Realtime.DocumentCacheTTL)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "info", cfg.Database.LogLevel)
}
