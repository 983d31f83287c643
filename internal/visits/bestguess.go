package visits

import "strings"

// TagCount is one label and the tracks that carry it.
type TagCount struct {
	Label  string
	Tracks []VisitTrack
}

// BestGuessSelector tallies visit tracks by label and picks the most
// frequent labels. Ties are returned whole for the caller to break.
type BestGuessSelector struct {
	tags     TagSets
	taxonomy AncestorFinder
}

// NewBestGuessSelector creates a selector. taxonomy may be nil.
func NewBestGuessSelector(tags TagSets, taxonomy AncestorFinder) *BestGuessSelector {
	return &BestGuessSelector{tags: tags, taxonomy: taxonomy}
}

// AITracks returns the AI-tagged tracks naming a real thing. When there are
// none, every AI-tagged track is returned, false positives included.
func (s *BestGuessSelector) AITracks(tracks []VisitTrack) []VisitTrack {
	return s.filterWithFallback(tracks, func(t VisitTrack) bool {
		return t.IsAITagged && t.Tag != ""
	})
}

// UserTracks is the human-tagged analogue of AITracks.
func (s *BestGuessSelector) UserTracks(tracks []VisitTrack) []VisitTrack {
	return s.filterWithFallback(tracks, func(t VisitTrack) bool {
		return !t.IsAITagged && t.Tag != ""
	})
}

func (s *BestGuessSelector) filterWithFallback(tracks []VisitTrack, keep func(VisitTrack) bool) []VisitTrack {
	var all, things []VisitTrack
	for _, t := range tracks {
		if !keep(t) {
			continue
		}
		all = append(all, t)
		if !s.tags.IsNonThing(t.Tag) {
			things = append(things, t)
		}
	}
	if len(things) > 0 {
		return things
	}
	return all
}

// BestGuess drops unidentified labels when anything else is present and
// returns every remaining entry that shares the highest track count.
func (s *BestGuessSelector) BestGuess(counts []TagCount) []TagCount {
	candidates := counts
	var identified []TagCount
	for _, c := range counts {
		if !s.tags.IsUnidentified(c.Label) {
			identified = append(identified, c)
		}
	}
	if len(identified) > 0 {
		candidates = identified
	}

	maxTracks := 0
	for _, c := range candidates {
		maxTracks = max(maxTracks, len(c.Tracks))
	}

	var best []TagCount
	for _, c := range candidates {
		if len(c.Tracks) == maxTracks {
			best = append(best, c)
		}
	}
	return best
}

// BestAIGuess returns the most frequent AI labels across tracks.
func (s *BestGuessSelector) BestAIGuess(tracks []VisitTrack) []TagCount {
	return s.BestGuess(Tally(s.AITracks(tracks)))
}

// BestUserGuess returns the most frequent human labels across tracks. A tie
// is narrowed to one label when the taxonomy says that label is the common
// ancestor of the tied tracks' labels.
func (s *BestGuessSelector) BestUserGuess(tracks []VisitTrack) []TagCount {
	best := s.BestGuess(Tally(s.UserTracks(tracks)))
	if len(best) <= 1 || s.taxonomy == nil {
		return best
	}

	labels := make([]string, 0, len(best))
	for _, c := range best {
		labels = append(labels, c.Label)
	}
	ancestor := s.taxonomy.CommonAncestor(labels)
	// the taxonomy may answer in its own case
	for _, c := range best {
		if ancestor != "" && strings.EqualFold(c.Label, ancestor) {
			return []TagCount{c}
		}
	}
	return best
}

// Tally groups tracks by Tag in order of first appearance.
func Tally(tracks []VisitTrack) []TagCount {
	index := make(map[string]int)
	var counts []TagCount
	for _, t := range tracks {
		i, ok := index[t.Tag]
		if !ok {
			i = len(counts)
			index[t.Tag] = i
			counts = append(counts, TagCount{Label: t.Tag})
		}
		counts[i].Tracks = append(counts[i].Tracks, t)
	}
	return counts
}
