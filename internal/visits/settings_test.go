package visits

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trapwatch/trapwatch/internal/conf"
)

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	cfg := ConfigFromSettings(conf.VisitsSettings{
		GapSeconds:           300,
		MaxVideoSeconds:      120,
		TrailingSlackMinutes: 10,
		FetchLimit:           50,
		RecordingsLimit:      500,
		NonAnimalTags:        []string{"insect"},
	})
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.VisitGap)
	assert.Equal(t, 2*time.Minute, cfg.MaxVideoLength)
	assert.Equal(t, 10*time.Minute, cfg.TrailingSlack)
	assert.True(t, cfg.Tags.IsNonAnimal("insect"))
	assert.False(t, cfg.Tags.IsNonAnimal("other"))
	assert.True(t, cfg.Tags.IsUnidentified("unknown"), "defaults used for empty list")
}
