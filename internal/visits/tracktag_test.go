package visits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackTagResolver_Resolve(t *testing.T) {
	t.Parallel()

	resolver := NewTrackTagResolver(DefaultTagSets(), testTaxonomy())

	tests := []struct {
		name          string
		tags          []TrackTag
		wantWhat      string
		wantAutomatic bool
		wantConflict  bool
	}{
		{
			name:     "human wins over AI",
			tags:     []TrackTag{aiTag("rat"), humanTag("possum")},
			wantWhat: "possum",
		},
		{
			name:         "disagreement resolves to parent",
			tags:         []TrackTag{humanTag("stoat"), humanTag("mustelid"), aiTag("cat")},
			wantWhat:     "mustelid",
			wantConflict: true,
		},
		{
			name:         "disagreement with deeper ancestor",
			tags:         []TrackTag{humanTag("stoat"), humanTag("ferret")},
			wantWhat:     "mustelid",
			wantConflict: true,
		},
		{
			name:         "no common ancestor",
			tags:         []TrackTag{humanTag("possum"), humanTag("rat")},
			wantWhat:     ConflictingTags,
			wantConflict: true,
		},
		{
			name:     "agreeing humans",
			tags:     []TrackTag{humanTag("cat"), humanTag("cat")},
			wantWhat: "cat",
		},
		{
			name:          "non-animal human tag falls through to AI",
			tags:          []TrackTag{humanTag("unidentified"), aiTag("possum")},
			wantWhat:      "possum",
			wantAutomatic: true,
		},
		{
			name:     "human false-positive is kept",
			tags:     []TrackTag{humanTag(FalsePositive), aiTag("possum")},
			wantWhat: FalsePositive,
		},
		{
			name:          "first automatic tag is used",
			tags:          []TrackTag{aiTag("rat"), aiTag("mouse")},
			wantWhat:      "rat",
			wantAutomatic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := resolver.Resolve(tt.tags)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantWhat, got.What)
			assert.Equal(t, tt.wantAutomatic, got.Automatic)
			if tt.wantConflict {
				require.NotNil(t, got.Data)
				assert.True(t, got.Data.UserTagsConflict)
			} else if got.Data != nil {
				assert.False(t, got.Data.UserTagsConflict)
			}
		})
	}
}

func TestTrackTagResolver_NoUsableTag(t *testing.T) {
	t.Parallel()

	resolver := NewTrackTagResolver(DefaultTagSets(), testTaxonomy())
	assert.Nil(t, resolver.Resolve(nil))
	assert.Nil(t, resolver.Resolve([]TrackTag{humanTag("part"), humanTag("poor tracking")}))
}

func TestTrackTagResolver_ConflictCopiesFirstConfidence(t *testing.T) {
	t.Parallel()

	first := humanTag("stoat")
	first.Confidence = 0.42
	resolver := NewTrackTagResolver(DefaultTagSets(), testTaxonomy())

	got := resolver.Resolve([]TrackTag{first, humanTag("mustelid")})
	require.NotNil(t, got)
	assert.InDelta(t, 0.42, got.Confidence, 0.0001)
}

func TestTrackTagResolver_WithoutTaxonomy(t *testing.T) {
	t.Parallel()

	resolver := NewTrackTagResolver(DefaultTagSets(), nil)
	got := resolver.Resolve([]TrackTag{humanTag("stoat"), humanTag("mustelid")})
	require.NotNil(t, got)
	assert.Equal(t, ConflictingTags, got.What)
}

func TestTrackTagResolver_ConflictKeepsLabelSpelling(t *testing.T) {
	t.Parallel()

	resolver := NewTrackTagResolver(DefaultTagSets(), testTaxonomy())

	got := resolver.Resolve([]TrackTag{humanTag("Stoat"), humanTag("Mustelid")})
	require.NotNil(t, got)
	assert.Equal(t, "Mustelid", got.What)
	assert.True(t, got.Data.UserTagsConflict)

	// an ancestor that is not one of the labels comes back as the taxonomy spells it
	got = resolver.Resolve([]TrackTag{humanTag("Stoat"), humanTag("Ferret")})
	require.NotNil(t, got)
	assert.Equal(t, "mustelid", got.What)
}

func TestTrackTagResolver_DoesNotAliasInput(t *testing.T) {
	t.Parallel()

	tags := []TrackTag{humanTag("cat")}
	resolver := NewTrackTagResolver(DefaultTagSets(), nil)

	got := resolver.Resolve(tags)
	got.What = "dog"
	assert.Equal(t, "cat", tags[0].What)
}
