package datastore

import "github.com/trapwatch/trapwatch/internal/conf"

// ConfigFromSettings builds a Config from the database settings section.
func ConfigFromSettings(s conf.DatabaseSettings) Config {
	return Config{
		Type:   s.Type,
		SQLite: SQLiteConfig{Path: s.SQLite.Path},
		MySQL: MySQLConfig{
			Host:     s.MySQL.Host,
			Port:     s.MySQL.Port,
			Username: s.MySQL.Username,
			Password: s.MySQL.Password,
			Database: s.MySQL.Database,
		},
		IncludeFiltered: s.IncludeFiltered,
		SlowThreshold:   s.SlowQueryThreshold,
	}
}
