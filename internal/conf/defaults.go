package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default label sets. "false-positive" is added to the non-thing set at
// runtime and must not be listed here.
var (
	defaultNonAnimalTags = []string{
		"insect", "unidentified", "unknown", "unclassified",
		"part", "poor tracking", "bad track", "other",
	}
	defaultUnidentifiedTags = []string{
		"unidentified", "unknown", "unclassified",
		"part", "poor tracking", "bad track",
	}
)

func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("main.name", "trapwatch")
	v.SetDefault("main.timezone", "Local")

	v.SetDefault("logging.defaultlevel", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.timezone", "")
	v.SetDefault("logging.filepath", "")
	v.SetDefault("logging.modulelevels", map[string]string{})

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite.path", "trapwatch.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "trapwatch")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "trapwatch")
	v.SetDefault("database.includefiltered", false)
	v.SetDefault("database.slowquerythreshold", 200*time.Millisecond)

	v.SetDefault("visits.gapseconds", 600)
	v.SetDefault("visits.maxvideoseconds", 600)
	v.SetDefault("visits.trailingslackminutes", 70)
	v.SetDefault("visits.fetchlimit", 200)
	v.SetDefault("visits.recordingslimit", 2000)
	v.SetDefault("visits.nonanimaltags", defaultNonAnimalTags)
	v.SetDefault("visits.unidentifiedtags", defaultUnidentifiedTags)

	v.SetDefault("taxonomy.source", "embedded")
	v.SetDefault("taxonomy.file", "")
	v.SetDefault("taxonomy.remote.url", "")
	v.SetDefault("taxonomy.remote.timeout", 5*time.Second)
	v.SetDefault("taxonomy.cachettl", time.Hour)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", ":8080")
	v.SetDefault("webserver.ratelimit.rps", 10.0)
	v.SetDefault("webserver.ratelimit.burst", 20)
	v.SetDefault("webserver.cachettl", 30*time.Second)
	v.SetDefault("webserver.shutdowntimeout", 10*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "trapwatch")
	v.SetDefault("mqtt.clientid", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.retain", false)
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.species", []string{})
	v.SetDefault("notification.title", "trapwatch: {{.Classification}} at {{.Station}}")

	v.SetDefault("digest.enabled", false)
	v.SetDefault("digest.schedule", "*/15 * * * *")
	v.SetDefault("digest.group", 0)
	v.SetDefault("digest.stations", []int64{})
	v.SetDefault("digest.lookback", 2*time.Hour)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.samplerate", 1.0)
}
