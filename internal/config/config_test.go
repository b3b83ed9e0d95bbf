package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.True(t, c.DBMigrate)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "dev", c.Auth.Mode)
	assert.Equal(t, 4, c.Webhook.Workers)
	assert.Equal(t, 3, c.Webhook.MaxAttempts)
	assert.Equal(t, time.Second, c.Webhook.BaseDelay)
	assert.Equal(t, time.Minute, c.Webhook.MaxDelay)
	assert.Equal(t, 250*time.Millisecond, c.Webhook.PollInterval)
	assert.InDelta(t, 0.1, c.Webhook.Jitter, 1e-9)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("AUTH_MODE", "hmac")
	t.Setenv("AUTH_HMAC_SECRET", "shh")
	t.Setenv("WEBHOOK_MAX_ATTEMPTS", "5")
	t.Setenv("WEBHOOK_BASE_DELAY", "200ms")
	t.Setenv("WEBHOOK_RATE_RPS", "2.5")

	c, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, "text", c.Log.Format)
	assert.Equal(t, "shh", c.Auth.HMACSecret)
	assert.Equal(t, 5, c.Webhook.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, c.Webhook.BaseDelay)
	assert.InDelta(t, 2.5, c.Webhook.RateRPS, 1e-9)

	r := c.Redacted()
	assert.Equal(t, "********", r.Auth.HMACSecret)
	assert.Equal(t, "shh", c.Auth.HMACSecret)
}

func TestParseInvalid(t *testing.T) {
	t.Setenv("AUTH_MODE", "hmac")
	t.Setenv("WEBHOOK_WORKERS", "0")
	t.Setenv("WEBHOOK_JITTER", "2")

	_, err := Parse()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "AUTH_HMAC_SECRET")
	assert.ErrorContains(t, err, "WEBHOOK_WORKERS")
	assert.ErrorContains(t, err, "WEBHOOK_JITTER")
}

func TestParseMalformed(t *testing.T) {
	t.Setenv("WEBHOOK_TIMEOUT", "soon")
	_, err := Parse()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
