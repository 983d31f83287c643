// Package visits turns a snapshot of tagged camera-trap recordings into
// visits: temporally clustered bursts of activity at one station, each with
// a single best-guess label.
//
// The pipeline is pure and synchronous. Recordings are clustered per
// station, every track's tags are resolved to one canonical tag, and the
// cluster's tracks are tallied into a human-preferred classification and
// an AI-only classification.
package visits

import (
	"encoding/json"
	"strconv"
	"time"
)

// RecordingType is the kind of media a recording holds.
type RecordingType string

const (
	RecordingTypeThermalRaw    RecordingType = "thermalRaw"
	RecordingTypeAudio         RecordingType = "audio"
	RecordingTypeIRRaw         RecordingType = "irRaw"
	RecordingTypeTrailCamImage RecordingType = "trailcam-image"
	RecordingTypeTrailCamVideo RecordingType = "trailcam-video"
)

// Valid reports whether t is a known recording type.
func (t RecordingType) Valid() bool {
	switch t {
	case RecordingTypeThermalRaw, RecordingTypeAudio, RecordingTypeIRRaw,
		RecordingTypeTrailCamImage, RecordingTypeTrailCamVideo:
		return true
	}
	return false
}

// Recording is a read-only snapshot of a persisted recording and its tracks.
type Recording struct {
	ID                int64
	StationID         int64
	StationName       string
	GroupID           int64
	GroupName         string
	DeviceID          int64
	DeviceName        string
	Type              RecordingType
	RecordingDateTime time.Time
	Duration          float64 // seconds
	ProcessingState   string
	Tracks            []Track
}

// End returns when the recording stopped.
func (r Recording) End() time.Time {
	return r.RecordingDateTime.Add(seconds(r.Duration))
}

// Track is one detected subject inside a recording.
type Track struct {
	ID   int64
	Tags []TrackTag
	Data *TrackData
}

// TrackData is the optional per-track blob. Any part of it may be missing.
type TrackData struct {
	StartS    *float64
	EndS      *float64
	Positions []Position
}

// Position is one frame of a track; only mass matters here.
type Position struct {
	Mass float64
}

// TrackTag is one tagger's label for a track.
type TrackTag struct {
	ID         int64
	What       string
	Automatic  bool
	Confidence float64
	Data       *TagData
}

// TagData carries markers attached to a tag. UserTagsConflict is only set
// on the synthetic tag produced when human taggers disagree.
type TagData struct {
	UserTagsConflict bool
}

// Seconds is an optional offset in seconds. It encodes as a JSON number,
// or as an empty string when unset.
type Seconds struct {
	Value float64
	Valid bool
}

// SecondsOf wraps a possibly-nil float.
func SecondsOf(v *float64) Seconds {
	if v == nil {
		return Seconds{}
	}
	return Seconds{Value: *v, Valid: true}
}

// MarshalJSON implements json.Marshaler.
func (s Seconds) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte(`""`), nil
	}
	return strconv.AppendFloat(nil, s.Value, 'f', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f, ok := v.(float64)
	*s = Seconds{Value: f, Valid: ok}
	return nil
}

// VisitTrack is a track reduced to what classification needs.
type VisitTrack struct {
	ID int64 `json:"id"`
	// Tag is the canonical label, empty when the track has no usable tag.
	Tag string `json:"tag"`
	// AITag is the first automatic label on the track, regardless of Tag.
	AITag string `json:"aiTag"`
	// IsAITagged is true when Tag came from an automatic tagger.
	IsAITagged       bool    `json:"isAITagged"`
	Start            Seconds `json:"start"`
	End              Seconds `json:"end"`
	Mass             float64 `json:"mass"`
	UserTagsConflict bool    `json:"userTagsConflict,omitempty"`
}

// VisitRecording is a recording reduced to its visit tracks.
type VisitRecording struct {
	RecID           int64        `json:"recId"`
	Start           string       `json:"start"`
	ProcessingState string       `json:"processingState"`
	Tracks          []VisitTrack `json:"tracks"`
}

// VisitDef is the classification of one visit.
type VisitDef struct {
	Classification   string `json:"classification"`
	ClassificationAI string `json:"classificationAi"`
	ClassFromUserTag bool   `json:"classFromUserTag"`
	UserTagsConflict bool   `json:"userTagsConflict,omitempty"`
}

// ClassifiedCluster pairs a VisitDef with the recordings it was derived from.
type ClassifiedCluster struct {
	Def             VisitDef
	Recordings      []Recording
	VisitRecordings []VisitRecording
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// isoString renders t the way the recording API does: UTC, millisecond
// precision.
func isoString(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
