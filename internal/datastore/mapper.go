package datastore

import (
	"github.com/antonholmquist/jason"

	"github.com/trapwatch/trapwatch/internal/visits"
)

// toVisitRecording converts a loaded recording with its associations.
// Unparseable track or tag blobs degrade to missing data.
func toVisitRecording(rec *Recording) visits.Recording {
	out := visits.Recording{
		ID:                int64(rec.ID),
		StationID:         int64(rec.StationID),
		GroupID:           int64(rec.GroupID),
		DeviceID:          int64(rec.DeviceID),
		Type:              visits.RecordingType(rec.Type),
		RecordingDateTime: rec.RecordingDateTime,
		Duration:          rec.Duration,
		ProcessingState:   rec.ProcessingState,
		Tracks:            make([]visits.Track, 0, len(rec.Tracks)),
	}
	if rec.Station != nil {
		out.StationName = rec.Station.Name
	}
	if rec.Group != nil {
		out.GroupName = rec.Group.Name
	}
	if rec.Device != nil {
		out.DeviceName = rec.Device.Name
	}

	for i := range rec.Tracks {
		t := &rec.Tracks[i]
		track := visits.Track{
			ID:   int64(t.ID),
			Data: parseTrackData(t.Data),
			Tags: make([]visits.TrackTag, 0, len(t.Tags)),
		}
		for j := range t.Tags {
			tag := &t.Tags[j]
			track.Tags = append(track.Tags, visits.TrackTag{
				ID:         int64(tag.ID),
				What:       tag.What,
				Automatic:  tag.Automatic,
				Confidence: tag.Confidence,
				Data:       parseTagData(tag.Data),
			})
		}
		out.Tracks = append(out.Tracks, track)
	}
	return out
}

// parseTrackData reads start_s, end_s and positions[].mass from a track
// blob. Any of them may be absent.
func parseTrackData(raw string) *visits.TrackData {
	if raw == "" {
		return nil
	}
	obj, err := jason.NewObjectFromBytes([]byte(raw))
	if err != nil {
		return nil
	}

	data := &visits.TrackData{}
	if v, err := obj.GetFloat64("start_s"); err == nil {
		data.StartS = &v
	}
	if v, err := obj.GetFloat64("end_s"); err == nil {
		data.EndS = &v
	}
	if positions, err := obj.GetObjectArray("positions"); err == nil {
		data.Positions = make([]visits.Position, 0, len(positions))
		for _, p := range positions {
			mass, _ := p.GetFloat64("mass")
			data.Positions = append(data.Positions, visits.Position{Mass: mass})
		}
	}
	return data
}

func parseTagData(raw string) *visits.TagData {
	if raw == "" {
		return nil
	}
	obj, err := jason.NewObjectFromBytes([]byte(raw))
	if err != nil {
		return nil
	}
	conflict, err := obj.GetBoolean("userTagsConflict")
	if err != nil {
		return nil
	}
	return &visits.TagData{UserTagsConflict: conflict}
}
