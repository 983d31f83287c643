package visits

import (
	"fmt"
	"strings"

	"github.com/trapwatch/trapwatch/internal/errors"
)

// ErrMultipleUserTags marks a cluster whose human tags tie between more
// than one label. Splitting such a cluster into per-label visits is not
// supported.
var ErrMultipleUserTags = errors.NewStd("cluster has multiple tied user tags")

// UnsupportedClusterError is returned by ClassifyCluster for clusters it
// refuses to classify.
type UnsupportedClusterError struct {
	StationID  int64
	Labels     []string
	Recordings []Recording
}

func (e *UnsupportedClusterError) Error() string {
	return fmt.Sprintf("station %d: %v: %s", e.StationID, ErrMultipleUserTags, strings.Join(e.Labels, ", "))
}

func (e *UnsupportedClusterError) Unwrap() error {
	return ErrMultipleUserTags
}

// Classifier reduces clusters of recordings to classified visits.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	tags     TagSets
	resolver *TrackTagResolver
	selector *BestGuessSelector
}

// NewClassifier wires a classifier around the given label sets and taxonomy.
func NewClassifier(tags TagSets, taxonomy AncestorFinder) *Classifier {
	return &Classifier{
		tags:     tags,
		resolver: NewTrackTagResolver(tags, taxonomy),
		selector: NewBestGuessSelector(tags, taxonomy),
	}
}

// CalculateTrackTags reduces a recording to its visit tracks.
func (c *Classifier) CalculateTrackTags(rec Recording) VisitRecording {
	vr := VisitRecording{
		RecID:           rec.ID,
		Start:           isoString(rec.RecordingDateTime),
		ProcessingState: rec.ProcessingState,
		Tracks:          make([]VisitTrack, 0, len(rec.Tracks)),
	}

	for _, track := range rec.Tracks {
		vt := VisitTrack{ID: track.ID}

		if tag := c.resolver.Resolve(track.Tags); tag != nil {
			vt.Tag = tag.What
			vt.IsAITagged = tag.Automatic
			vt.UserTagsConflict = tag.Data != nil && tag.Data.UserTagsConflict
		}
		if ai, ok := firstAutomatic(track.Tags); ok {
			vt.AITag = ai.What
		}
		if track.Data != nil {
			vt.Start = SecondsOf(track.Data.StartS)
			vt.End = SecondsOf(track.Data.EndS)
			for _, p := range track.Data.Positions {
				vt.Mass += p.Mass
			}
		}

		vr.Tracks = append(vr.Tracks, vt)
	}
	return vr
}

// ClassifyCluster classifies one cluster. It returns a single result, or an
// *UnsupportedClusterError when human taggers tie between labels.
func (c *Classifier) ClassifyCluster(stationID int64, cluster Cluster) ([]ClassifiedCluster, error) {
	visitRecs := make([]VisitRecording, 0, len(cluster))
	var allTracks []VisitTrack
	for _, rec := range cluster {
		vr := c.CalculateTrackTags(rec)
		visitRecs = append(visitRecs, vr)
		allTracks = append(allTracks, vr.Tracks...)
	}

	human := c.selector.BestUserGuess(allTracks)

	var def VisitDef
	switch len(human) {
	case 0:
		label := c.bestAILabelByMass(allTracks)
		def = VisitDef{Classification: label, ClassificationAI: label}

	case 1:
		humanLabel := human[0].Label
		aiLabel := NoneLabel
		if ai := c.selector.BestAIGuess(allTracks); len(ai) > 0 {
			aiLabel = ai[0].Label
		}

		if c.tags.IsNonThing(humanLabel) && c.isRealAnimal(aiLabel) {
			def = VisitDef{Classification: aiLabel, ClassificationAI: humanLabel}
		} else {
			def = VisitDef{Classification: humanLabel, ClassificationAI: aiLabel, ClassFromUserTag: true}
		}
		for _, t := range human[0].Tracks {
			if t.UserTagsConflict {
				def.UserTagsConflict = true
				break
			}
		}

	default:
		labels := make([]string, 0, len(human))
		for _, h := range human {
			labels = append(labels, h.Label)
		}
		return nil, &UnsupportedClusterError{
			StationID:  stationID,
			Labels:     labels,
			Recordings: cluster,
		}
	}

	return []ClassifiedCluster{{
		Def:             def,
		Recordings:      cluster,
		VisitRecordings: visitRecs,
	}}, nil
}

// bestAILabelByMass picks the AI label, breaking count ties by total track
// mass. Equal masses keep the earlier candidate.
func (c *Classifier) bestAILabelByMass(tracks []VisitTrack) string {
	candidates := c.selector.BestAIGuess(tracks)
	if len(candidates) == 0 {
		return NoneLabel
	}

	best, bestMass := candidates[0].Label, totalMass(candidates[0].Tracks)
	for _, cand := range candidates[1:] {
		if m := totalMass(cand.Tracks); m > bestMass {
			best, bestMass = cand.Label, m
		}
	}
	return best
}

func (c *Classifier) isRealAnimal(label string) bool {
	return label != NoneLabel && !c.tags.IsNonThing(label)
}

func totalMass(tracks []VisitTrack) float64 {
	var sum float64
	for _, t := range tracks {
		sum += t.Mass
	}
	return sum
}
