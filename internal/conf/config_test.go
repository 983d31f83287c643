package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trapwatch/trapwatch/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EmbeddedDefaultsAreValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, settings.ConfigFile())
	assert.Same(t, settings, GetSettings())

	assert.Equal(t, "sqlite", settings.Database.Type)
	assert.Equal(t, 600*time.Second, settings.Visits.Gap())
	assert.Equal(t, 600*time.Second, settings.Visits.MaxVideoLength())
	assert.Equal(t, 70*time.Minute, settings.Visits.TrailingSlack())
	assert.Equal(t, 200, settings.Visits.FetchLimit)
	assert.Equal(t, 2000, settings.Visits.RecordingsLimit)
	assert.Contains(t, settings.Visits.NonAnimalTags, "poor tracking")
	assert.NotContains(t, settings.Visits.NonAnimalTags, "false-positive")
	assert.Equal(t, time.Hour, settings.Taxonomy.CacheTTL)
	assert.Equal(t, "warn", settings.Logging.ModuleLevels["datastore"])
	assert.Equal(t, []string{"stoat", "ferret", "weasel", "cat"}, settings.Notification.Species)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  type: mysql
  mysql:
    host: db.internal
visits:
  fetchlimit: 500
digest:
  enabled: true
  schedule: "@hourly"
  stations: [4, 9]
  lookback: 90m
`)

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", settings.Database.Type)
	assert.Equal(t, "db.internal", settings.Database.MySQL.Host)
	assert.Equal(t, 3306, settings.Database.MySQL.Port)
	assert.Equal(t, 500, settings.Visits.FetchLimit)
	assert.Equal(t, 600, settings.Visits.GapSeconds)
	assert.Equal(t, []int64{4, 9}, settings.Digest.Stations)
	assert.Equal(t, 90*time.Minute, settings.Digest.Lookback)
	assert.Equal(t, 200*time.Millisecond, settings.Database.SlowQueryThreshold)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  type: sqlite\n")
	t.Setenv("TRAPWATCH_DATABASE_SQLITE_PATH", "/var/lib/trapwatch/db.sqlite")
	t.Setenv("TRAPWATCH_VISITS_FETCHLIMIT", "300")
	t.Setenv("TRAPWATCH_WEBSERVER_LISTEN", "127.0.0.1:9000")

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/trapwatch/db.sqlite", settings.Database.SQLite.Path)
	assert.Equal(t, 300, settings.Visits.FetchLimit)
	assert.Equal(t, "127.0.0.1:9000", settings.WebServer.Listen)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoad_InvalidSettings(t *testing.T) {
	path := writeConfig(t, "database:\n  type: postgres\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Errors[0], "postgres")
}

func TestWriteDefaultConfig_RefusesOverwrite(t *testing.T) {
	path := writeConfig(t, "main:\n  name: mine\n")
	require.Error(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mine")
}

func TestLoad_ResolvesSecrets(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "mqtt-password")
	require.NoError(t, os.WriteFile(secretFile, []byte("from-file\n"), 0o600))
	t.Setenv("TRAPWATCH_TEST_DB_PASSWORD", "from-env")

	path := writeConfig(t, `database:
  type: mysql
  mysql:
    password: ${TRAPWATCH_TEST_DB_PASSWORD}
mqtt:
  password: file:`+secretFile+`
notification:
  urls: ["ntfy://ntfy.sh/${TRAPWATCH_TEST_TOPIC:-traps}"]
`)

	settings, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", settings.Database.MySQL.Password)
	assert.Equal(t, "from-file", settings.MQTT.Password)
	assert.Equal(t, []string{"ntfy://ntfy.sh/traps"}, settings.Notification.URLs)
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfig(t, "mqtt:\n  password: ${TRAPWATCH_TEST_NEVER_SET}\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "password:")
}
