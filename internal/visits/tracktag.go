package visits

import (
	"context"
	"strings"
)

// AncestorFinder looks up the most specific taxonomic label that subsumes
// every given label. It returns "" when there is none.
type AncestorFinder interface {
	CommonAncestor(labels []string) string
}

// ContextAncestorFinder is an AncestorFinder whose lookups can be bounded by
// a request context, typically because they leave the process.
type ContextAncestorFinder interface {
	AncestorFinder
	CommonAncestorContext(ctx context.Context, labels []string) string
}

// boundFinder pins a ContextAncestorFinder to one context.
type boundFinder struct {
	ctx    context.Context
	finder ContextAncestorFinder
}

func (b boundFinder) CommonAncestor(labels []string) string {
	return b.finder.CommonAncestorContext(b.ctx, labels)
}

// TrackTagResolver picks one canonical tag for a track out of the tags left
// by its human and automatic taggers.
type TrackTagResolver struct {
	tags     TagSets
	taxonomy AncestorFinder
}

// NewTrackTagResolver creates a resolver. taxonomy may be nil, in which case
// every human disagreement resolves to "conflicting tags".
func NewTrackTagResolver(tags TagSets, taxonomy AncestorFinder) *TrackTagResolver {
	return &TrackTagResolver{tags: tags, taxonomy: taxonomy}
}

// Resolve returns the canonical tag for a track, or nil when there is none.
//
// Human animal tags win. When humans disagree, a synthetic human tag named
// after the labels' common ancestor (or "conflicting tags") is returned,
// marked with UserTagsConflict. Without a human animal tag the first
// automatic tag is used. The returned tag is a copy.
func (r *TrackTagResolver) Resolve(tags []TrackTag) *TrackTag {
	var animalTags []TrackTag
	for _, tag := range tags {
		if !tag.Automatic && !r.tags.IsNonAnimal(tag.What) {
			animalTags = append(animalTags, tag)
		}
	}

	labels := uniqueLabels(animalTags)
	if len(labels) > 1 {
		return &TrackTag{
			What:       r.conflictLabel(labels),
			Automatic:  false,
			Confidence: animalTags[0].Confidence,
			Data:       &TagData{UserTagsConflict: true},
		}
	}

	if len(animalTags) > 0 {
		tag := animalTags[0]
		return &tag
	}

	if tag, ok := firstAutomatic(tags); ok {
		return &tag
	}
	return nil
}

func (r *TrackTagResolver) conflictLabel(labels []string) string {
	if r.taxonomy == nil {
		return ConflictingTags
	}
	ancestor := r.taxonomy.CommonAncestor(labels)
	if ancestor == "" || strings.EqualFold(ancestor, RootAncestor) {
		return ConflictingTags
	}
	// keep the tagger's spelling when the ancestor is one of the labels
	for _, l := range labels {
		if strings.EqualFold(l, ancestor) {
			return l
		}
	}
	return ancestor
}

// uniqueLabels returns the distinct labels in order of first appearance.
func uniqueLabels(tags []TrackTag) []string {
	seen := make(map[string]struct{}, len(tags))
	labels := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag.What]; ok {
			continue
		}
		seen[tag.What] = struct{}{}
		labels = append(labels, tag.What)
	}
	return labels
}

func firstAutomatic(tags []TrackTag) (TrackTag, bool) {
	for _, tag := range tags {
		if tag.Automatic {
			return tag, true
		}
	}
	return TrackTag{}, false
}
