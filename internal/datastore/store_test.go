package datastore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/logger"
	"github.com/trapwatch/trapwatch/internal/visits"
)

var t0 = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

type recordedQuery struct {
	operation string
	rows      int
	err       error
}

type fakeQueryRecorder struct {
	queries []recordedQuery
}

func (f *fakeQueryRecorder) RecordQuery(operation string, _ time.Duration, rows int, err error) {
	f.queries = append(f.queries, recordedQuery{operation, rows, err})
}

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := Open(Config{
		Type:   TypeSQLite,
		SQLite: SQLiteConfig{Path: filepath.Join(t.TempDir(), "trapwatch.db")},
	}, logger.NewTestLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fixture struct {
	group            Group
	north, south     Station
	device           Device
	newest, older    Recording
	otherStation     Recording
	outside, deleted Recording
	video            Recording
}

func seed(t *testing.T, store *Store) *fixture {
	t.Helper()
	db := store.DB()
	f := &fixture{group: Group{Name: "hutt valley"}}
	require.NoError(t, db.Create(&f.group).Error)

	f.device = Device{GroupID: f.group.ID, Name: "cam-01"}
	require.NoError(t, db.Create(&f.device).Error)
	f.north = Station{GroupID: f.group.ID, Name: "north"}
	f.south = Station{GroupID: f.group.ID, Name: "south"}
	require.NoError(t, db.Create(&f.north).Error)
	require.NoError(t, db.Create(&f.south).Error)

	mk := func(station Station, offset time.Duration, typ string, tracks ...Track) Recording {
		return Recording{
			GroupID:           f.group.ID,
			StationID:         station.ID,
			DeviceID:          f.device.ID,
			Type:              typ,
			RecordingDateTime: t0.Add(offset),
			Duration:          20,
			ProcessingState:   "FINISHED",
			Tracks:            tracks,
		}
	}

	f.newest = mk(f.north, 5*time.Minute, "thermalRaw",
		Track{
			Data: `{"start_s": 1.5, "end_s": 8.25, "positions": [{"mass": 40}, {"mass": 60}]}`,
			Tags: []TrackTag{
				{What: "possum", Automatic: true, Confidence: 0.9, Used: true},
				{What: "cat", Confidence: 1, Used: true, Data: `{"userTagsConflict": true}`},
				{What: "rat", Automatic: true, Confidence: 0.5, Used: false},
				{What: "dog", Confidence: 1, Used: true, Archived: true},
			},
		},
		Track{Data: `{"start_s": 2}`, Archived: true, Tags: []TrackTag{{What: "stoat", Used: true}}},
		Track{Data: `not json`, Filtered: true, Tags: []TrackTag{{What: "mouse", Automatic: true, Used: true}}},
	)
	f.older = mk(f.north, 0, "thermalRaw", Track{Tags: []TrackTag{{What: "possum", Automatic: true, Used: true}}})
	f.otherStation = mk(f.south, 2*time.Minute, "thermalRaw")
	f.video = mk(f.north, 3*time.Minute, "trailcam-video")
	f.outside = mk(f.north, -2*time.Hour, "thermalRaw")
	f.deleted = mk(f.north, time.Minute, "thermalRaw")

	for _, rec := range []*Recording{&f.newest, &f.older, &f.otherStation, &f.video, &f.outside, &f.deleted} {
		require.NoError(t, db.Create(rec).Error)
	}
	require.NoError(t, db.Delete(&f.deleted).Error)
	return f
}

func window() visits.Window {
	return visits.Window{From: t0.Add(-time.Hour), Until: t0.Add(time.Hour)}
}

func recIDs(recs []visits.Recording) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestStore_QueryRecordingsFiltersAndOrders(t *testing.T) {
	t.Parallel()

	metrics := &fakeQueryRecorder{}
	store := openTestStore(t, WithQueryRecorder(metrics))
	f := seed(t, store)

	recs, err := store.QueryRecordings(context.Background(), visits.Query{
		Window:   window(),
		GroupID:  int64(f.group.ID),
		Stations: []int64{int64(f.north.ID)},
		Limit:    200,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{int64(f.newest.ID), int64(f.video.ID), int64(f.older.ID)}, recIDs(recs))

	newest := recs[0]
	assert.Equal(t, "north", newest.StationName)
	assert.Equal(t, "hutt valley", newest.GroupName)
	assert.Equal(t, "cam-01", newest.DeviceName)
	assert.Equal(t, visits.RecordingTypeThermalRaw, newest.Type)
	assert.True(t, newest.RecordingDateTime.Equal(t0.Add(5*time.Minute)))
	assert.InDelta(t, 20.0, newest.Duration, 0.001)

	// archived and filtered tracks are dropped, unused and archived tags too
	require.Len(t, newest.Tracks, 1)
	tr := newest.Tracks[0]
	require.Len(t, tr.Tags, 2)
	assert.Equal(t, "possum", tr.Tags[0].What)
	assert.True(t, tr.Tags[0].Automatic)
	assert.Equal(t, "cat", tr.Tags[1].What)
	require.NotNil(t, tr.Tags[1].Data)
	assert.True(t, tr.Tags[1].Data.UserTagsConflict)
	assert.Nil(t, tr.Tags[0].Data)

	require.NotNil(t, tr.Data)
	require.NotNil(t, tr.Data.StartS)
	assert.InDelta(t, 1.5, *tr.Data.StartS, 0.001)
	assert.InDelta(t, 8.25, *tr.Data.EndS, 0.001)
	require.Len(t, tr.Data.Positions, 2)
	assert.InDelta(t, 60.0, tr.Data.Positions[1].Mass, 0.001)

	require.Len(t, metrics.queries, 1)
	assert.Equal(t, recordedQuery{"query_recordings", 3, nil}, metrics.queries[0])
}

func TestOpen_InMemorySharedAcrossQueries(t *testing.T) {
	t.Parallel()

	store, err := Open(Config{Type: TypeSQLite}, logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sqlDB, err := store.DB().DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	f := seed(t, store)
	q := visits.Query{
		Window:   window(),
		GroupID:  int64(f.group.ID),
		Stations: []int64{int64(f.north.ID)},
		Limit:    200,
	}

	var wg sync.WaitGroup
	counts := make([]int, 4)
	errs := make([]error, 4)
	for i := range counts {
		wg.Go(func() {
			recs, err := store.QueryRecordings(context.Background(), q)
			counts[i], errs[i] = len(recs), err
		})
	}
	wg.Wait()

	for i := range counts {
		require.NoError(t, errs[i])
		assert.Equal(t, 3, counts[i], "query %d saw the seeded database", i)
	}
}

func TestStore_QueryRecordingsIncludeFiltered(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, WithIncludeFiltered(true))
	f := seed(t, store)

	recs, err := store.QueryRecordings(context.Background(), visits.Query{
		Window:   window(),
		Stations: []int64{int64(f.north.ID)},
		Types:    []visits.RecordingType{visits.RecordingTypeThermalRaw},
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Len(t, recs[0].Tracks, 2)
	assert.Nil(t, recs[0].Tracks[1].Data, "unparseable blob degrades to no data")
}

func TestStore_QueryRecordingsLimitAndStations(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	f := seed(t, store)

	recs, err := store.QueryRecordings(context.Background(), visits.Query{
		Window:   window(),
		Stations: []int64{int64(f.north.ID), int64(f.south.ID)},
		Limit:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{int64(f.newest.ID), int64(f.video.ID)}, recIDs(recs))

	recs, err = store.QueryRecordings(context.Background(), visits.Query{
		Window:   window(),
		Stations: []int64{int64(f.south.ID)},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{int64(f.otherStation.ID)}, recIDs(recs))
	assert.Empty(t, recs[0].Tracks)
}

func TestStore_FeedsVisitService(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	f := seed(t, store)

	svc := visits.NewService(store, visits.NewEngine(visits.DefaultConfig(), nil),
		visits.WithLogger(logger.NewTestLogger()))
	result, err := svc.Visits(context.Background(), visits.Criteria{
		Stations:    []int64{int64(f.north.ID)},
		GroupID:     int64(f.group.ID),
		SearchFrom:  t0.Add(-30 * time.Minute),
		SearchUntil: t0.Add(30 * time.Minute),
		Types:       []visits.RecordingType{visits.RecordingTypeThermalRaw},
	})
	require.NoError(t, err)
	require.Len(t, result.Visits, 1)

	v := result.Visits[0]
	assert.Equal(t, "cat", v.Classification)
	assert.True(t, v.ClassFromUserTag)
	assert.True(t, v.UserTagsConflict)
	assert.Equal(t, "possum", v.ClassificationAI)
	assert.Len(t, v.Recordings, 2)
}

func TestOpen_UnsupportedType(t *testing.T) {
	t.Parallel()

	_, err := Open(Config{Type: "oracle"}, logger.NewTestLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestStore_NotInitialized(t *testing.T) {
	t.Parallel()

	store := New(nil, TypeSQLite, logger.NewTestLogger())
	_, err := store.QueryRecordings(context.Background(), visits.Query{})
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, store.Close(), ErrNotInitialized)
	require.ErrorIs(t, store.Ping(context.Background()), ErrNotInitialized)
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()

	dsn := MySQLDSN(MySQLConfig{
		Host:     "db.internal",
		Username: "trap",
		Password: "p@ss:word",
		Database: "trapwatch",
	})
	assert.Contains(t, dsn, "trap:p@ss:word@tcp(db.internal:3306)/trapwatch?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestParseTrackData(t *testing.T) {
	t.Parallel()

	assert.Nil(t, parseTrackData(""))
	assert.Nil(t, parseTrackData("[1,2]"))

	d := parseTrackData(`{"positions": [{"x": 1}, {"mass": 7}]}`)
	require.NotNil(t, d)
	assert.Nil(t, d.StartS)
	require.Len(t, d.Positions, 2)
	assert.Zero(t, d.Positions[0].Mass)
	assert.InDelta(t, 7.0, d.Positions[1].Mass, 0.001)
}
