package conf

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSettings(t *testing.T) *Settings {
	t.Helper()
	v := viper.New()
	setDefaultConfig(v)
	s := &Settings{}
	require.NoError(t, v.Unmarshal(s))
	return s
}

func TestValidateSettings_Defaults(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateSettings(defaultSettings(t)))
}

func TestValidateSettings_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		message string
	}{
		{"zero gap", func(s *Settings) { s.Visits.GapSeconds = 0 }, "gapseconds"},
		{"fetch above limit", func(s *Settings) { s.Visits.FetchLimit = 5000 }, "recordingslimit"},
		{"false-positive as non-animal", func(s *Settings) {
			s.Visits.NonAnimalTags = append(s.Visits.NonAnimalTags, "false-positive")
		}, "false-positive"},
		{"unknown db", func(s *Settings) { s.Database.Type = "oracle" }, "database.type"},
		{"mysql without host", func(s *Settings) {
			s.Database.Type = "mysql"
			s.Database.MySQL.Host = ""
		}, "mysql.host"},
		{"remote taxonomy without url", func(s *Settings) { s.Taxonomy.Source = "remote" }, "remote.url"},
		{"remote taxonomy bad url", func(s *Settings) {
			s.Taxonomy.Source = "remote"
			s.Taxonomy.Remote.URL = "ftp://example.org"
		}, "invalid URL"},
		{"bad cron", func(s *Settings) {
			s.Digest.Enabled = true
			s.Digest.Stations = []int64{1}
			s.Digest.Schedule = "every tuesday"
		}, "digest.schedule"},
		{"digest without stations", func(s *Settings) { s.Digest.Enabled = true }, "digest.stations"},
		{"bad log level", func(s *Settings) { s.Logging.DefaultLevel = "loud" }, "defaultlevel"},
		{"bad log format", func(s *Settings) { s.Logging.Format = "xml" }, "logging.format"},
		{"mqtt without broker", func(s *Settings) {
			s.MQTT.Enabled = true
			s.MQTT.Broker = ""
		}, "mqtt.broker"},
		{"notification without urls", func(s *Settings) { s.Notification.Enabled = true }, "notification.urls"},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "sentry.dsn"},
		{"bad timezone", func(s *Settings) { s.Main.Timezone = "Mars/Olympus" }, "main.timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := defaultSettings(t)
			tt.mutate(s)

			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	sched, err := ParseSchedule("0 6 * * *")
	require.NoError(t, err)
	assert.NotNil(t, sched)

	_, err = ParseSchedule("0 6 * *")
	assert.Error(t, err)
}
