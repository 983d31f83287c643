package visits

import "github.com/trapwatch/trapwatch/internal/conf"

// ConfigFromSettings builds engine parameters from the visits settings
// section. Empty tag lists fall back to the built-in sets.
func ConfigFromSettings(s conf.VisitsSettings) Config {
	nonAnimal := s.NonAnimalTags
	if len(nonAnimal) == 0 {
		nonAnimal = DefaultNonAnimalTags
	}
	unidentified := s.UnidentifiedTags
	if len(unidentified) == 0 {
		unidentified = DefaultUnidentifiedTags
	}
	return Config{
		VisitGap:        s.Gap(),
		MaxVideoLength:  s.MaxVideoLength(),
		TrailingSlack:   s.TrailingSlack(),
		FetchLimit:      s.FetchLimit,
		RecordingsLimit: s.RecordingsLimit,
		Tags:            NewTagSets(nonAnimal, unidentified),
	}
}
