package visits

import (
	"slices"
	"strings"
	"time"
)

var baseTime = time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC)

// treeTaxonomy is a parent-pointer hierarchy rooted at "all".
type treeTaxonomy map[string]string

func testTaxonomy() treeTaxonomy {
	return treeTaxonomy{
		"mammal":   "all",
		"mustelid": "mammal",
		"stoat":    "mustelid",
		"ferret":   "mustelid",
		"rodent":   "all",
		"rat":      "rodent",
		"mouse":    "rodent",
		"possum":   "all",
		"cat":      "all",
		"bird":     "all",
	}
}

func (tt treeTaxonomy) path(label string) []string {
	path := []string{strings.ToLower(label)}
	for cur := path[0]; cur != "all"; {
		parent, ok := tt[cur]
		if !ok {
			return []string{"all"}
		}
		path = append(path, parent)
		cur = parent
	}
	slices.Reverse(path)
	return path
}

func (tt treeTaxonomy) CommonAncestor(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	common := tt.path(labels[0])
	for _, l := range labels[1:] {
		p := tt.path(l)
		n := 0
		for n < len(common) && n < len(p) && common[n] == p[n] {
			n++
		}
		common = common[:n]
	}
	if len(common) == 0 {
		return ""
	}
	return common[len(common)-1]
}

func humanTag(what string) TrackTag {
	return TrackTag{What: what, Confidence: 0.9}
}

func aiTag(what string) TrackTag {
	return TrackTag{What: what, Automatic: true, Confidence: 0.8}
}

func track(id int64, mass float64, tags ...TrackTag) Track {
	start, end := 1.5, 9.0
	positions := []Position{}
	if mass > 0 {
		positions = append(positions, Position{Mass: mass / 2}, Position{Mass: mass / 2})
	}
	return Track{
		ID:   id,
		Tags: tags,
		Data: &TrackData{StartS: &start, EndS: &end, Positions: positions},
	}
}

func recording(id, station int64, offset time.Duration, duration float64, tracks ...Track) Recording {
	return Recording{
		ID:                id,
		StationID:         station,
		StationName:       "station",
		GroupID:           1,
		GroupName:         "group",
		Type:              RecordingTypeThermalRaw,
		RecordingDateTime: baseTime.Add(offset),
		Duration:          duration,
		ProcessingState:   "FINISHED",
		Tracks:            tracks,
	}
}

func newTestClassifier() *Classifier {
	return NewClassifier(DefaultTagSets(), testTaxonomy())
}
