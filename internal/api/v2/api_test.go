package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/logger"
	"github.com/trapwatch/trapwatch/internal/visits"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-cache janitors stop only when their cache is collected
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

type fakeVisitService struct {
	mu     sync.Mutex
	calls  []visits.Criteria
	result visits.Result
	err    error
}

func (f *fakeVisitService) Visits(_ context.Context, criteria visits.Criteria) (visits.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, criteria)
	return f.result, f.err
}

func (f *fakeVisitService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeFinder struct {
	ancestors map[string]string
	paths     map[string][]string
}

func (f fakeFinder) CommonAncestor(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return f.ancestors[labels[0]]
}

func (f fakeFinder) Path(label string) []string {
	return f.paths[label]
}

type fakeHealth struct{ err error }

func (f fakeHealth) Ping(context.Context) error { return f.err }

type cacheLookups struct {
	mu        sync.Mutex
	hit, miss int
}

func (c *cacheLookups) RecordCacheLookup(_ string, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hit++
	} else {
		c.miss++
	}
}

func setupTestController(t *testing.T, svc VisitService, opts ...Option) *echo.Echo {
	t.Helper()
	e := echo.New()
	opts = append([]Option{WithLogger(logger.NewTestLogger())}, opts...)
	c := New(e, svc, opts)
	t.Cleanup(c.Shutdown)
	return e
}

func doGet(e *echo.Echo, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		e := setupTestController(t, &fakeVisitService{},
			WithHealthChecker(fakeHealth{}), WithVersion("1.2.3"))

		rec := doGet(e, "/api/v2/health")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "1.2.3", body["version"])
		assert.Equal(t, "connected", body["database_status"])
	})

	t.Run("database down", func(t *testing.T) {
		t.Parallel()
		e := setupTestController(t, &fakeVisitService{},
			WithHealthChecker(fakeHealth{err: errors.NewStd("connection refused")}))

		rec := doGet(e, "/api/v2/health")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})
}

func TestGetVisits(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC)
	result := visits.Result{
		Visits: []visits.Visit{{
			StationID: 1,
			GroupID:   3,
			VisitDef: visits.VisitDef{
				Classification:   "possum",
				ClassificationAI: "possum",
				ClassFromUserTag: true,
			},
			TimeStart: start,
			TimeEnd:   start.Add(30 * time.Second),
		}},
		Unsupported: []visits.UnsupportedVisit{{
			StationID: 2,
			Labels:    []string{"cat", "rat"},
			Reason:    visits.ErrMultipleUserTags.Error(),
		}},
	}

	t.Run("returns visits and unsupported clusters", func(t *testing.T) {
		t.Parallel()
		svc := &fakeVisitService{result: result}
		e := setupTestController(t, svc)

		rec := doGet(e, "/api/v2/monitoring/visits?stations=2,1&stations=1&group=3"+
			"&from=2024-03-14T00:00:00Z&until=2024-03-15T00:00:00Z&types=thermalRaw")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body VisitsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, []int64{1, 2}, body.Params.Stations)
		assert.Equal(t, int64(3), body.Params.GroupID)
		assert.Equal(t, "2024-03-14T00:00:00Z", body.Params.From)
		assert.Equal(t, []string{"thermalRaw"}, body.Params.Types)
		require.Len(t, body.Visits, 1)
		assert.Equal(t, "possum", body.Visits[0].Classification)
		require.Len(t, body.Unsupported, 1)
		assert.Equal(t, []string{"cat", "rat"}, body.Unsupported[0].Labels)

		require.Equal(t, 1, svc.callCount())
		got := svc.calls[0]
		assert.Equal(t, []int64{2, 1}, got.Stations)
		assert.Equal(t, []visits.RecordingType{visits.RecordingTypeThermalRaw}, got.Types)
	})

	t.Run("empty result encodes arrays", func(t *testing.T) {
		t.Parallel()
		e := setupTestController(t, &fakeVisitService{})

		rec := doGet(e, "/api/v2/monitoring/visits?stations=1&from=2024-03-14T00:00:00Z&until=2024-03-15T00:00:00Z")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"visits":[]`)
		assert.Contains(t, rec.Body.String(), `"unsupported":[]`)
	})

	t.Run("default window", func(t *testing.T) {
		t.Parallel()
		svc := &fakeVisitService{}
		e := setupTestController(t, svc, WithCacheTTL(0))

		rec := doGet(e, "/api/v2/monitoring/visits?stations=1")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 1, svc.callCount())
		got := svc.calls[0]
		assert.Equal(t, DefaultVisitWindow, got.SearchUntil.Sub(got.SearchFrom))
		assert.Equal(t, got.SearchUntil, got.Now, "visits ending near the query time stay incomplete")
	})

	tests := []struct {
		name  string
		query string
	}{
		{"missing stations", "from=2024-03-14T00:00:00Z"},
		{"bad station id", "stations=abc"},
		{"bad group", "stations=1&group=x"},
		{"bad from", "stations=1&from=yesterday"},
		{"inverted window", "stations=1&from=2024-03-15T00:00:00Z&until=2024-03-14T00:00:00Z"},
		{"unknown type", "stations=1&types=hologram"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeVisitService{}
			e := setupTestController(t, svc)

			rec := doGet(e, "/api/v2/monitoring/visits?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, svc.callCount())

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, http.StatusBadRequest, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}

	t.Run("fetch failure", func(t *testing.T) {
		t.Parallel()
		svc := &fakeVisitService{err: errors.Newf("database is locked").
			Category(errors.CategoryDatabase).Build()}
		e := setupTestController(t, svc)

		rec := doGet(e, "/api/v2/monitoring/visits?stations=1&from=2024-03-14T00:00:00Z&until=2024-03-15T00:00:00Z")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("service validation error", func(t *testing.T) {
		t.Parallel()
		svc := &fakeVisitService{err: errors.Newf("bad criteria").
			Category(errors.CategoryValidation).Build()}
		e := setupTestController(t, svc)

		rec := doGet(e, "/api/v2/monitoring/visits?stations=1&from=2024-03-14T00:00:00Z&until=2024-03-15T00:00:00Z")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetVisits_ResponseCache(t *testing.T) {
	t.Parallel()

	svc := &fakeVisitService{}
	lookups := &cacheLookups{}
	e := setupTestController(t, svc, WithCacheTTL(time.Minute), WithCacheRecorder(lookups))

	window := "&from=2024-03-14T00:00:00Z&until=2024-03-15T00:00:00Z"
	require.Equal(t, http.StatusOK, doGet(e, "/api/v2/monitoring/visits?stations=1,2"+window).Code)
	// same canonical query in another spelling
	require.Equal(t, http.StatusOK, doGet(e, "/api/v2/monitoring/visits?stations=2&stations=1"+window).Code)
	require.Equal(t, http.StatusOK, doGet(e, "/api/v2/monitoring/visits?stations=3"+window).Code)

	assert.Equal(t, 2, svc.callCount())
	assert.Equal(t, 1, lookups.hit)
	assert.Equal(t, 2, lookups.miss)
}

func TestGetCommonAncestor(t *testing.T) {
	t.Parallel()

	finder := fakeFinder{
		ancestors: map[string]string{"stoat": "mustelid", "possum": ""},
		paths:     map[string][]string{"mustelid": {"all", "mammal", "mustelid"}},
	}

	t.Run("ancestor with path", func(t *testing.T) {
		t.Parallel()
		e := setupTestController(t, &fakeVisitService{}, WithTaxonomy(finder))

		rec := doGet(e, "/api/v2/taxonomy/ancestor?tags=stoat&tags=ferret")
		require.Equal(t, http.StatusOK, rec.Code)

		var body AncestorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, []string{"stoat", "ferret"}, body.Tags)
		assert.Equal(t, "mustelid", body.Ancestor)
		assert.Equal(t, []string{"all", "mammal", "mustelid"}, body.Path)
	})

	t.Run("no ancestor", func(t *testing.T) {
		t.Parallel()
		e := setupTestController(t, &fakeVisitService{}, WithTaxonomy(finder))

		rec := doGet(e, "/api/v2/taxonomy/ancestor?tags=possum,rat")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"ancestor":""`)
		assert.NotContains(t, rec.Body.String(), `"path"`)
	})

	t.Run("missing tags", func(t *testing.T) {
		t.Parallel()
		e := setupTestController(t, &fakeVisitService{}, WithTaxonomy(finder))
		assert.Equal(t, http.StatusBadRequest, doGet(e, "/api/v2/taxonomy/ancestor").Code)
	})

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		e := setupTestController(t, &fakeVisitService{})
		assert.Equal(t, http.StatusServiceUnavailable, doGet(e, "/api/v2/taxonomy/ancestor?tags=cat").Code)
	})
}

func TestHandleError_UsesRequestID(t *testing.T) {
	t.Parallel()

	e := setupTestController(t, &fakeVisitService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v2/monitoring/visits", http.NoBody)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-42", body.CorrelationID)
}
