package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trapwatch/trapwatch/internal/conf"
)

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	var s conf.DatabaseSettings
	s.Type = TypeMySQL
	s.MySQL.Host = "db.internal"
	s.MySQL.Port = 3307
	s.MySQL.Username = "reader"
	s.MySQL.Database = "cacophony"
	s.IncludeFiltered = true
	s.SlowQueryThreshold = time.Second

	cfg := ConfigFromSettings(s)
	assert.Equal(t, TypeMySQL, cfg.Type)
	assert.Equal(t, MySQLConfig{Host: "db.internal", Port: 3307, Username: "reader", Database: "cacophony"}, cfg.MySQL)
	assert.True(t, cfg.IncludeFiltered)
	assert.Equal(t, time.Second, cfg.SlowThreshold)
}
