package visits

import "slices"

// Labels with fixed meaning in classification.
const (
	FalsePositive   = "false-positive"
	ConflictingTags = "conflicting tags"
	NoneLabel       = "none"

	// RootAncestor is what the taxonomy returns when labels share nothing
	// more specific than the root.
	RootAncestor = "all"
)

// DefaultNonAnimalTags are human or AI labels that do not name an animal.
// "false-positive" is not one of them, so a human false-positive tag
// survives tag resolution.
var DefaultNonAnimalTags = []string{
	"insect",
	"unidentified",
	"unknown",
	"unclassified",
	"part",
	"poor tracking",
	"bad track",
	"other",
}

// DefaultUnidentifiedTags are labels that mean "something, but we can't
// say what".
var DefaultUnidentifiedTags = []string{
	"unidentified",
	"unknown",
	"unclassified",
	"part",
	"poor tracking",
	"bad track",
}

// TagSets is the read-only label configuration shared by every stage of
// the pipeline. It is built once at startup and safe for concurrent use.
type TagSets struct {
	nonAnimal    map[string]struct{}
	unidentified map[string]struct{}
	nonThing     map[string]struct{}
}

// NewTagSets builds the label sets. The non-thing set is always the
// non-animal set plus "false-positive".
func NewTagSets(nonAnimal, unidentified []string) TagSets {
	ts := TagSets{
		nonAnimal:    toSet(nonAnimal),
		unidentified: toSet(unidentified),
		nonThing:     toSet(nonAnimal),
	}
	ts.nonThing[FalsePositive] = struct{}{}
	return ts
}

// DefaultTagSets returns the built-in label sets.
func DefaultTagSets() TagSets {
	return NewTagSets(DefaultNonAnimalTags, DefaultUnidentifiedTags)
}

// IsNonAnimal reports whether label is in NON_ANIMAL_TAGS.
func (ts TagSets) IsNonAnimal(label string) bool {
	_, ok := ts.nonAnimal[label]
	return ok
}

// IsUnidentified reports whether label is in UNIDENTIFIED_TAGS.
func (ts TagSets) IsUnidentified(label string) bool {
	_, ok := ts.unidentified[label]
	return ok
}

// IsNonThing reports whether label is in NON_ANIMAL_TAGS or is "false-positive".
func (ts TagSets) IsNonThing(label string) bool {
	_, ok := ts.nonThing[label]
	return ok
}

// NonAnimal returns the configured non-animal labels, sorted.
func (ts TagSets) NonAnimal() []string {
	return sortedKeys(ts.nonAnimal)
}

// Unidentified returns the configured unidentified labels, sorted.
func (ts TagSets) Unidentified() []string {
	return sortedKeys(ts.unidentified)
}

func toSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels)+1)
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
