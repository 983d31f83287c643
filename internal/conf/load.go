package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/secrets"
)

// DefaultConfigPaths returns where config.yaml is searched for when no
// explicit file is given, in priority order.
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "trapwatch"))
	}
	return append(paths, "/etc/trapwatch")
}

// Load reads settings from configFile, or from config.yaml in the default
// paths when configFile is empty. A missing default file is not an error.
// Environment variables override both.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, configError(err, "read_config", configFile)
		}
	} else {
		v.SetConfigName("config")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, configError(err, "read_config", "")
			}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, configError(err, "unmarshal", v.ConfigFileUsed())
	}
	settings.configFile = v.ConfigFileUsed()

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Context("config_file", settings.configFile).
			Build()
	}

	setSettings(settings)
	return settings, nil
}

// WriteDefaultConfig writes the default config.yaml to path unless a file
// already exists there.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file %s already exists", path).
			Component("conf").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return configError(err, "create_config_dir", path)
	}
	if err := os.WriteFile(path, defaultConfigYAML, 0o600); err != nil {
		return configError(err, "write_config", path)
	}
	return nil
}

// resolveSecrets replaces ${VAR} and file: references in credential fields.
func resolveSecrets(s *Settings) error {
	fields := map[string]*string{
		"database.mysql.password": &s.Database.MySQL.Password,
		"mqtt.username":           &s.MQTT.Username,
		"mqtt.password":           &s.MQTT.Password,
		"sentry.dsn":              &s.Sentry.DSN,
		"taxonomy.remote.url":     &s.Taxonomy.Remote.URL,
	}
	for i := range s.Notification.URLs {
		fields[fmt.Sprintf("notification.urls[%d]", i)] = &s.Notification.URLs[i]
	}
	return secrets.ResolveAll(fields)
}

func configError(err error, operation, path string) error {
	return errors.New(err).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("operation", operation).
		Context("config_file", path).
		Build()
}
