// Package telemetry wires optional Sentry error reporting.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/trapwatch/trapwatch/internal/conf"
	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/logger"
)

const flushTimeout = 2 * time.Second

// Init initializes the Sentry SDK and routes built errors to it. It is a
// no-op returning false when reporting is disabled.
func Init(settings conf.SentrySettings, release string, log logger.Logger) (bool, error) {
	if !settings.Enabled {
		errors.SetTelemetryReporter(nil)
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       settings.SampleRate,
		Environment:      settings.Environment,
		Release:          "trapwatch@" + release,
		AttachStacktrace: false,
		ServerName:       "",
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return false, errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	if log != nil {
		log.Info("sentry error reporting enabled",
			logger.String("environment", settings.Environment),
			logger.Float64("sample_rate", settings.SampleRate))
	}
	return true, nil
}

// Flush waits briefly for queued events to be sent.
func Flush() bool {
	return sentry.Flush(flushTimeout)
}

// beforeSend strips anything that could identify the host or leak
// credentials.
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.ServerName = ""
	event.User = sentry.User{}
	event.Request = nil
	event.Message = errors.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = errors.ScrubMessage(event.Exception[i].Value)
	}
	return event
}
