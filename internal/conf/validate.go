package conf

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError collects every problem found in a Settings value.
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

var (
	validLogLevels  = []string{"trace", "debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"text", "json"}
	cronParser      = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// ParseSchedule parses a 5-field cron expression or descriptor (@hourly).
func ParseSchedule(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}
	add := func(errs ...string) {
		ve.Errors = append(ve.Errors, errs...)
	}

	add(validateMain(&settings.Main)...)
	add(validateLogging(settings)...)
	add(validateDatabase(&settings.Database)...)
	add(validateVisits(&settings.Visits)...)
	add(validateTaxonomy(&settings.Taxonomy)...)
	add(validateWebServer(&settings.WebServer)...)
	add(validateMQTT(&settings.MQTT)...)
	add(validateNotification(&settings.Notification)...)
	add(validateDigest(&settings.Digest)...)
	add(validateSentry(&settings.Sentry)...)

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateMain(m *MainSettings) []string {
	if m.Timezone == "" {
		return nil
	}
	if _, err := time.LoadLocation(m.Timezone); err != nil {
		return []string{fmt.Sprintf("main.timezone: %v", err)}
	}
	return nil
}

func validateLogging(s *Settings) []string {
	var errs []string
	level := strings.ToLower(s.Logging.DefaultLevel)
	if level != "" && !slices.Contains(validLogLevels, level) {
		errs = append(errs, fmt.Sprintf("logging.defaultlevel: unknown level %q", s.Logging.DefaultLevel))
	}
	for module, l := range s.Logging.ModuleLevels {
		if !slices.Contains(validLogLevels, strings.ToLower(l)) {
			errs = append(errs, fmt.Sprintf("logging.modulelevels.%s: unknown level %q", module, l))
		}
	}
	if f := strings.ToLower(s.Logging.Format); f != "" && !slices.Contains(validLogFormats, f) {
		errs = append(errs, fmt.Sprintf("logging.format: must be text or json, got %q", s.Logging.Format))
	}
	return errs
}

func validateDatabase(d *DatabaseSettings) []string {
	switch d.Type {
	case "sqlite":
		if d.SQLite.Path == "" {
			return []string{"database.sqlite.path is required"}
		}
	case "mysql":
		var errs []string
		if d.MySQL.Host == "" {
			errs = append(errs, "database.mysql.host is required")
		}
		if d.MySQL.Database == "" {
			errs = append(errs, "database.mysql.database is required")
		}
		if d.MySQL.Port < 0 || d.MySQL.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.mysql.port: %d out of range", d.MySQL.Port))
		}
		return errs
	default:
		return []string{fmt.Sprintf("database.type: unsupported type %q", d.Type)}
	}
	return nil
}

func validateVisits(v *VisitsSettings) []string {
	var errs []string
	if v.GapSeconds <= 0 {
		errs = append(errs, "visits.gapseconds must be positive")
	}
	if v.MaxVideoSeconds < 0 {
		errs = append(errs, "visits.maxvideoseconds must not be negative")
	}
	if v.TrailingSlackMinutes < 0 {
		errs = append(errs, "visits.trailingslackminutes must not be negative")
	}
	if v.FetchLimit <= 0 {
		errs = append(errs, "visits.fetchlimit must be positive")
	}
	if v.RecordingsLimit < v.FetchLimit {
		errs = append(errs, fmt.Sprintf("visits.recordingslimit (%d) must not be below fetchlimit (%d)", v.RecordingsLimit, v.FetchLimit))
	}
	if slices.Contains(v.NonAnimalTags, "false-positive") {
		errs = append(errs, "visits.nonanimaltags must not contain false-positive")
	}
	return errs
}

func validateTaxonomy(t *TaxonomySettings) []string {
	switch t.Source {
	case "embedded":
	case "remote":
		if t.Remote.URL == "" {
			return []string{"taxonomy.remote.url is required for the remote source"}
		}
		u, err := url.Parse(t.Remote.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return []string{fmt.Sprintf("taxonomy.remote.url: invalid URL %q", t.Remote.URL)}
		}
	default:
		return []string{fmt.Sprintf("taxonomy.source: unknown source %q", t.Source)}
	}
	return nil
}

func validateWebServer(w *WebServerSettings) []string {
	if !w.Enabled {
		return nil
	}
	var errs []string
	if w.Listen == "" {
		errs = append(errs, "webserver.listen is required")
	}
	if w.RateLimit.RPS <= 0 || w.RateLimit.Burst <= 0 {
		errs = append(errs, "webserver.ratelimit rps and burst must be positive")
	}
	return errs
}

func validateMQTT(m *MQTTSettings) []string {
	if !m.Enabled {
		return nil
	}
	var errs []string
	if m.Broker == "" {
		errs = append(errs, "mqtt.broker is required")
	}
	if m.Topic == "" {
		errs = append(errs, "mqtt.topic is required")
	}
	if m.QoS > 2 {
		errs = append(errs, fmt.Sprintf("mqtt.qos: %d is not 0, 1 or 2", m.QoS))
	}
	return errs
}

func validateNotification(n *NotificationSettings) []string {
	if n.Enabled && len(n.URLs) == 0 {
		return []string{"notification.urls: at least one URL is required"}
	}
	return nil
}

func validateDigest(d *DigestSettings) []string {
	if !d.Enabled {
		return nil
	}
	var errs []string
	if _, err := ParseSchedule(d.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("digest.schedule: %v", err))
	}
	if len(d.Stations) == 0 {
		errs = append(errs, "digest.stations: at least one station is required")
	}
	if d.Lookback <= 0 {
		errs = append(errs, "digest.lookback must be positive")
	}
	return errs
}

func validateSentry(s *SentrySettings) []string {
	if !s.Enabled {
		return nil
	}
	var errs []string
	if s.DSN == "" {
		errs = append(errs, "sentry.dsn is required")
	}
	if s.SampleRate < 0 || s.SampleRate > 1 {
		errs = append(errs, "sentry.samplerate must be between 0 and 1")
	}
	return errs
}
