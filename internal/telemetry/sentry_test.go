package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trapwatch/trapwatch/internal/conf"
	"github.com/trapwatch/trapwatch/internal/logger"
)

func TestInit_Disabled(t *testing.T) {
	enabled, err := Init(conf.SentrySettings{}, "test", logger.NewTestLogger())
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestInit_InvalidDSN(t *testing.T) {
	enabled, err := Init(conf.SentrySettings{Enabled: true, DSN: "::not a dsn::"}, "test", logger.NewTestLogger())
	require.Error(t, err)
	assert.False(t, enabled)
}

func TestBeforeSend_Scrubs(t *testing.T) {
	event := &sentry.Event{
		ServerName: "trap-host-01",
		User:       sentry.User{IPAddress: "10.0.0.4"},
		Message:    "dial mysql://trap:hunter2@db:3306 failed",
		Exception:  []sentry.Exception{{Value: "password=hunter2 rejected"}},
	}

	got := beforeSend(event, nil)
	assert.Empty(t, got.ServerName)
	assert.Empty(t, got.User.IPAddress)
	assert.NotContains(t, got.Message, "hunter2")
	assert.NotContains(t, got.Exception[0].Value, "hunter2")
}
