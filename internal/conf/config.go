// Package conf loads trapwatch settings from config.yaml, environment
// variables and built-in defaults.
package conf

import (
	_ "embed" // For embedding data
	"sync"
	"time"

	"github.com/trapwatch/trapwatch/internal/logger"
)

//go:embed config.yaml
var defaultConfigYAML []byte

// EnvPrefix prefixes every environment override, e.g. TRAPWATCH_DATABASE_TYPE.
const EnvPrefix = "TRAPWATCH"

// Settings is the complete application configuration.
type Settings struct {
	Main         MainSettings         `mapstructure:"main"`
	Logging      logger.LoggingConfig `mapstructure:"logging"`
	Database     DatabaseSettings     `mapstructure:"database"`
	Visits       VisitsSettings       `mapstructure:"visits"`
	Taxonomy     TaxonomySettings     `mapstructure:"taxonomy"`
	WebServer    WebServerSettings    `mapstructure:"webserver"`
	Metrics      MetricsSettings      `mapstructure:"metrics"`
	MQTT         MQTTSettings         `mapstructure:"mqtt"`
	Notification NotificationSettings `mapstructure:"notification"`
	Digest       DigestSettings       `mapstructure:"digest"`
	Sentry       SentrySettings       `mapstructure:"sentry"`

	configFile string
}

// ConfigFile returns the file the settings were read from, or "".
func (s *Settings) ConfigFile() string {
	return s.configFile
}

// MainSettings identifies the instance.
type MainSettings struct {
	Name     string `mapstructure:"name"`
	Timezone string `mapstructure:"timezone"`
}

// DatabaseSettings selects the recording store.
type DatabaseSettings struct {
	Type   string `mapstructure:"type"` // sqlite or mysql
	SQLite struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"sqlite"`
	MySQL struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		Database string `mapstructure:"database"`
	} `mapstructure:"mysql"`
	IncludeFiltered    bool          `mapstructure:"includefiltered"`
	SlowQueryThreshold time.Duration `mapstructure:"slowquerythreshold"`
}

// VisitsSettings tunes clustering and classification.
type VisitsSettings struct {
	GapSeconds           int      `mapstructure:"gapseconds"`
	MaxVideoSeconds      int      `mapstructure:"maxvideoseconds"`
	TrailingSlackMinutes int      `mapstructure:"trailingslackminutes"`
	FetchLimit           int      `mapstructure:"fetchlimit"`
	RecordingsLimit      int      `mapstructure:"recordingslimit"`
	NonAnimalTags        []string `mapstructure:"nonanimaltags"`
	UnidentifiedTags     []string `mapstructure:"unidentifiedtags"`
}

// Gap returns the visit gap as a duration.
func (v VisitsSettings) Gap() time.Duration {
	return time.Duration(v.GapSeconds) * time.Second
}

// MaxVideoLength returns the assumed longest recording.
func (v VisitsSettings) MaxVideoLength() time.Duration {
	return time.Duration(v.MaxVideoSeconds) * time.Second
}

// TrailingSlack returns how far past the search window recordings are fetched.
func (v VisitsSettings) TrailingSlack() time.Duration {
	return time.Duration(v.TrailingSlackMinutes) * time.Minute
}

// TaxonomySettings selects where common ancestors come from.
type TaxonomySettings struct {
	Source string `mapstructure:"source"` // embedded or remote
	File   string `mapstructure:"file"`
	Remote struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"remote"`
	CacheTTL time.Duration `mapstructure:"cachettl"`
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled   bool   `mapstructure:"enabled"`
	Listen    string `mapstructure:"listen"`
	RateLimit struct {
		RPS   float64 `mapstructure:"rps"`
		Burst int     `mapstructure:"burst"`
	} `mapstructure:"ratelimit"`
	CacheTTL        time.Duration `mapstructure:"cachettl"`
	ShutdownTimeout time.Duration `mapstructure:"shutdowntimeout"`
}

// MetricsSettings toggles the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MQTTSettings configures visit publishing.
type MQTTSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"clientid"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Retain   bool   `mapstructure:"retain"`
	QoS      byte   `mapstructure:"qos"`
}

// NotificationSettings configures species alerts.
type NotificationSettings struct {
	Enabled bool     `mapstructure:"enabled"`
	URLs    []string `mapstructure:"urls"`
	Species []string `mapstructure:"species"`
	Title   string   `mapstructure:"title"`
}

// DigestSettings configures the scheduled visit digest.
type DigestSettings struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	Group    int64         `mapstructure:"group"`
	Stations []int64       `mapstructure:"stations"`
	Lookback time.Duration `mapstructure:"lookback"`
}

// SentrySettings configures error reporting.
type SentrySettings struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"samplerate"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// GetSettings returns the most recently loaded settings, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

func setSettings(s *Settings) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()
	settingsInstance = s
}

// DefaultConfigYAML returns the commented default configuration file.
func DefaultConfigYAML() []byte {
	out := make([]byte, len(defaultConfigYAML))
	copy(out, defaultConfigYAML)
	return out
}
