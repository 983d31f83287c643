package visits

import (
	"time"

	"github.com/trapwatch/trapwatch/internal/errors"
)

// Timing and paging constants. Changing any of them changes which
// recordings end up in which visit.
const (
	DefaultVisitGap        = 600 * time.Second
	DefaultMaxVideoLength  = 600 * time.Second
	DefaultTrailingSlack   = 70 * time.Minute
	DefaultFetchLimit      = 200
	DefaultRecordingsLimit = 2000
)

// Config holds the pipeline parameters.
type Config struct {
	// VisitGap is the longest silence between two recordings of one visit.
	VisitGap time.Duration
	// MaxVideoLength is the longest recording expected; it widens the
	// fetch window backwards so a visit starting at the window edge is
	// seen whole.
	MaxVideoLength time.Duration
	// TrailingSlack widens the fetch window forwards.
	TrailingSlack time.Duration
	// FetchLimit caps the rows requested from the fetcher.
	FetchLimit int
	// RecordingsLimit is the hard upper bound FetchLimit may be raised to.
	RecordingsLimit int
	Tags            TagSets
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		VisitGap:        DefaultVisitGap,
		MaxVideoLength:  DefaultMaxVideoLength,
		TrailingSlack:   DefaultTrailingSlack,
		FetchLimit:      DefaultFetchLimit,
		RecordingsLimit: DefaultRecordingsLimit,
		Tags:            DefaultTagSets(),
	}
}

// Validate checks that the parameters are usable.
func (c Config) Validate() error {
	switch {
	case c.VisitGap <= 0:
		return configError("visit gap must be positive", "visit_gap", c.VisitGap)
	case c.MaxVideoLength < 0:
		return configError("max video length must not be negative", "max_video_length", c.MaxVideoLength)
	case c.TrailingSlack < 0:
		return configError("trailing slack must not be negative", "trailing_slack", c.TrailingSlack)
	case c.FetchLimit <= 0:
		return configError("fetch limit must be positive", "fetch_limit", c.FetchLimit)
	case c.FetchLimit > c.RecordingsLimit:
		return configError("fetch limit exceeds recordings limit", "fetch_limit", c.FetchLimit)
	}
	return nil
}

func configError(msg, key string, value any) error {
	return errors.Newf("%s", msg).
		Component("visits").
		Category(errors.CategoryConfiguration).
		Context(key, value).
		Build()
}

// Window is a half-open time range [From, Until).
type Window struct {
	From  time.Time
	Until time.Time
}

// Contains reports whether t lies in the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.Until)
}

// WidenWindow returns the fetch window for a search window. The start moves
// back by one gap plus one maximum-length recording; the end moves forward
// by the trailing slack.
func (c Config) WidenWindow(search Window) Window {
	return Window{
		From:  search.From.Add(-(c.VisitGap + c.MaxVideoLength)),
		Until: search.Until.Add(c.TrailingSlack),
	}
}

// Criteria selects the recordings to build visits from.
type Criteria struct {
	Stations    []int64
	GroupID     int64
	SearchFrom  time.Time
	SearchUntil time.Time
	// Types restricts recording types; empty means all.
	Types []RecordingType
	// Now is when the query runs. Recordings cannot exist after it, so a
	// visit ending within one gap of Now may still grow. Zero means the
	// fetch window end is the only horizon.
	Now time.Time
}

// Search returns the un-widened search window.
func (c Criteria) Search() Window {
	return Window{From: c.SearchFrom, Until: c.SearchUntil}
}

// Horizon returns the latest time data can exist for: the end of the fetched
// window, or Now when that is earlier.
func (c Criteria) Horizon(fetched Window) time.Time {
	if !c.Now.IsZero() && c.Now.Before(fetched.Until) {
		return c.Now
	}
	return fetched.Until
}

// Validate rejects criteria that cannot select anything meaningful.
func (c Criteria) Validate() error {
	if len(c.Stations) == 0 {
		return criteriaError("at least one station is required", "stations", c.Stations)
	}
	if c.SearchFrom.IsZero() || c.SearchUntil.IsZero() {
		return criteriaError("search window requires both from and until", "from", c.SearchFrom)
	}
	if !c.SearchFrom.Before(c.SearchUntil) {
		return criteriaError("search from must be before until", "until", c.SearchUntil)
	}
	for _, t := range c.Types {
		if !t.Valid() {
			return criteriaError("unknown recording type", "type", string(t))
		}
	}
	return nil
}

func criteriaError(msg, key string, value any) error {
	return errors.Newf("%s", msg).
		Component("visits").
		Category(errors.CategoryValidation).
		Context(key, value).
		Build()
}
