package taxonomy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trapwatch/trapwatch/internal/conf"
)

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	var s conf.TaxonomySettings
	s.Source = SourceRemote
	s.Remote.URL = "https://taxonomy.example.org"
	s.Remote.Timeout = 3 * time.Second
	s.CacheTTL = time.Hour

	assert.Equal(t, Config{
		Source:        SourceRemote,
		RemoteURL:     "https://taxonomy.example.org",
		RemoteTimeout: 3 * time.Second,
		CacheTTL:      time.Hour,
	}, ConfigFromSettings(s))
}
