package visits

import (
	"slices"
	"time"
)

// Cluster is a run of recordings at one station that belong to the same
// burst of activity, newest first.
type Cluster []Recording

// StationClusters maps a station id to its clusters, newest first.
type StationClusters map[int64][]Cluster

// StationIDs returns the stations in ascending id order.
func (sc StationClusters) StationIDs() []int64 {
	ids := make([]int64, 0, len(sc))
	for id := range sc {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ClusterRecordings groups recordings into per-station clusters in a single
// pass. recordings must be sorted newest first; stations may be interleaved.
//
// A recording joins the station's open cluster when the previously seen
// (later) recording at that station started before this recording's end
// plus gap. Otherwise it opens a new cluster.
func ClusterRecordings(recordings []Recording, gap time.Duration) StationClusters {
	clusters := make(StationClusters)
	// index of the open cluster per station
	open := make(map[int64]int)

	for _, rec := range recordings {
		stationClusters := clusters[rec.StationID]
		idx, hasOpen := open[rec.StationID]

		if hasOpen {
			current := stationClusters[idx]
			prev := current[len(current)-1]
			deadline := rec.End().Add(gap)
			if prev.RecordingDateTime.Before(deadline) {
				stationClusters[idx] = append(current, rec)
				continue
			}
		}

		clusters[rec.StationID] = append(stationClusters, Cluster{rec})
		open[rec.StationID] = len(clusters[rec.StationID]) - 1
	}

	return clusters
}
