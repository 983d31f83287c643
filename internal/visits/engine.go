package visits

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/trapwatch/trapwatch/internal/errors"
)

// Visit is one classified burst of activity at a station.
type Visit struct {
	StationID   int64  `json:"stationId"`
	StationName string `json:"station,omitempty"`
	GroupID     int64  `json:"groupId"`
	GroupName   string `json:"group,omitempty"`
	DeviceID    int64  `json:"deviceId,omitempty"`
	DeviceName  string `json:"device,omitempty"`
	VisitDef
	TimeStart time.Time `json:"timeStart"`
	TimeEnd   time.Time `json:"timeEnd"`
	// Incomplete is set when more recordings may belong to this visit
	// than were fetched.
	Incomplete bool             `json:"incomplete"`
	Recordings []VisitRecording `json:"recordings"`
}

// Key identifies a visit across repeated generations over overlapping
// windows.
func (v Visit) Key() string {
	first := int64(0)
	if n := len(v.Recordings); n > 0 {
		first = v.Recordings[n-1].RecID
	}
	return visitKey(v.StationID, v.TimeStart, first)
}

// UnsupportedVisit describes a cluster that could not be classified.
type UnsupportedVisit struct {
	StationID    int64     `json:"stationId"`
	Labels       []string  `json:"labels"`
	RecordingIDs []int64   `json:"recordingIds"`
	TimeStart    time.Time `json:"timeStart"`
	TimeEnd      time.Time `json:"timeEnd"`
	Reason       string    `json:"reason"`
}

// Result is the output of one visit generation.
type Result struct {
	Visits      []Visit            `json:"visits"`
	Unsupported []UnsupportedVisit `json:"unsupported"`
	// Recordings and Clusters count the input seen, before window trimming.
	Recordings int `json:"-"`
	Clusters   int `json:"-"`
}

// Engine runs the clustering and classification pipeline over a snapshot.
// It performs no I/O and is safe for concurrent use.
type Engine struct {
	cfg        Config
	taxonomy   AncestorFinder
	classifier *Classifier
}

// NewEngine creates an engine. taxonomy may be nil.
func NewEngine(cfg Config, taxonomy AncestorFinder) *Engine {
	return &Engine{
		cfg:        cfg,
		taxonomy:   taxonomy,
		classifier: NewClassifier(cfg.Tags, taxonomy),
	}
}

// Config returns the engine's parameters.
func (e *Engine) Config() Config {
	return e.cfg
}

// Classifier exposes the engine's classifier.
func (e *Engine) Classifier() *Classifier {
	return e.classifier
}

// Generate builds visits from recordings fetched for criteria. recordings
// must be sorted newest first, as returned by a RecordingFetcher queried
// with the widened window and the configured fetch limit.
func (e *Engine) Generate(recordings []Recording, criteria Criteria) Result {
	return e.generate(e.classifier, recordings, criteria)
}

// GenerateContext is Generate with taxonomy lookups bounded by ctx when the
// taxonomy accepts a context. Once ctx is done, lookups answer "" and
// conflicting human tags resolve to ConflictingTags.
func (e *Engine) GenerateContext(ctx context.Context, recordings []Recording, criteria Criteria) Result {
	cf, ok := e.taxonomy.(ContextAncestorFinder)
	if !ok {
		return e.Generate(recordings, criteria)
	}
	classifier := NewClassifier(e.cfg.Tags, boundFinder{ctx: ctx, finder: cf})
	return e.generate(classifier, recordings, criteria)
}

func (e *Engine) generate(classifier *Classifier, recordings []Recording, criteria Criteria) Result {
	search := criteria.Search()
	fetched := e.cfg.WidenWindow(search)
	horizon := criteria.Horizon(fetched)
	truncated := len(recordings) >= e.cfg.FetchLimit
	var oldestID int64
	if n := len(recordings); n > 0 {
		oldestID = recordings[n-1].ID
	}

	clusters := ClusterRecordings(recordings, e.cfg.VisitGap)
	result := Result{
		Visits:      []Visit{},
		Unsupported: []UnsupportedVisit{},
		Recordings:  len(recordings),
	}

	for _, stationID := range clusters.StationIDs() {
		for _, cluster := range clusters[stationID] {
			result.Clusters++
			start, end := clusterSpan(cluster)
			if !search.Contains(start) {
				continue
			}

			classified, err := classifier.ClassifyCluster(stationID, cluster)
			if err != nil {
				var unsupported *UnsupportedClusterError
				if errors.As(err, &unsupported) {
					result.Unsupported = append(result.Unsupported, UnsupportedVisit{
						StationID:    stationID,
						Labels:       unsupported.Labels,
						RecordingIDs: recordingIDs(cluster),
						TimeStart:    start,
						TimeEnd:      end,
						Reason:       ErrMultipleUserTags.Error(),
					})
				}
				continue
			}

			newest := cluster[0]
			incomplete := newest.End().Add(e.cfg.VisitGap).After(horizon) ||
				(truncated && cluster[len(cluster)-1].ID == oldestID)

			for _, cc := range classified {
				result.Visits = append(result.Visits, Visit{
					StationID:   stationID,
					StationName: newest.StationName,
					GroupID:     newest.GroupID,
					GroupName:   newest.GroupName,
					DeviceID:    newest.DeviceID,
					DeviceName:  newest.DeviceName,
					VisitDef:    cc.Def,
					TimeStart:   start,
					TimeEnd:     end,
					Incomplete:  incomplete,
					Recordings:  cc.VisitRecordings,
				})
			}
		}
	}

	slices.SortStableFunc(result.Visits, func(a, b Visit) int {
		return b.TimeStart.Compare(a.TimeStart)
	})
	return result
}

// clusterSpan returns the oldest start and the latest end in a cluster.
func clusterSpan(cluster Cluster) (start, end time.Time) {
	start = cluster[len(cluster)-1].RecordingDateTime
	for _, rec := range cluster {
		if e := rec.End(); e.After(end) {
			end = e
		}
	}
	return start, end
}

func recordingIDs(cluster Cluster) []int64 {
	ids := make([]int64, 0, len(cluster))
	for _, rec := range cluster {
		ids = append(ids, rec.ID)
	}
	return ids
}

func visitKey(stationID int64, start time.Time, firstRecID int64) string {
	return fmt.Sprintf("%d:%s:%d", stationID, isoString(start), firstRecID)
}
